// Package main is the entrypoint of the teampulse CLI.
package main

import (
	"os"

	"github.com/huangsam/teampulse/cmd"
	"github.com/huangsam/teampulse/internal/contract"
)

func main() {
	if err := cmd.Execute(); err != nil {
		contract.Logger().WithError(err).Error("teampulse failed")
		os.Exit(1)
	}
}
