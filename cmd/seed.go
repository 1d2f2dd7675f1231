package cmd

import (
	"fmt"
	"os"

	"github.com/huangsam/teampulse/internal/seed"
	"github.com/spf13/cobra"
)

// seedCmd loads projects and rosters from a YAML file.
var seedCmd = &cobra.Command{
	Use:   "seed <file.yaml>",
	Short: "Load projects, integrations and team rosters from YAML",
	Long: `Create or replace projects from a seed file. Each project's GitHub repo,
Jira key and roster are replaced as a whole, so re-running a seed is safe.

Example file:
  projects:
    - id: capstone-a
      name: Capstone A
      created_at: 2025-01-06T00:00:00Z
      github: acme/capstone-a
      jira: CAPA
      members:
        - student_id: s1
          name: Ada
          role: leader
          github: ada@example.com
          jira: acc-ada`,
	Args:    cobra.ExactArgs(1),
	PreRunE: sharedSetupWrapper,
	RunE: func(cmd *cobra.Command, args []string) error {
		file, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("failed to open seed file: %w", err)
		}
		defer func() { _ = file.Close() }()

		f, err := seed.Load(file)
		if err != nil {
			return err
		}
		n, err := seed.Apply(rootCtx, deps.store, f)
		if err != nil {
			return err
		}
		cmd.Printf("Seeded %d projects.\n", n)
		return nil
	},
}
