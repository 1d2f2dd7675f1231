package iostore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/huangsam/teampulse/internal/contract"
	"github.com/huangsam/teampulse/schema"
)

// GetProject returns a project or ErrNotFound.
func (s *StoreImpl) GetProject(ctx context.Context, projectID string) (schema.Project, error) {
	var p schema.Project
	var created int64
	err := s.db.QueryRowContext(ctx,
		s.bind("SELECT project_id, name, created_at FROM projects WHERE project_id = ?"),
		projectID,
	).Scan(&p.ID, &p.Name, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return p, fmt.Errorf("project %s: %w", projectID, contract.ErrNotFound)
	}
	if err != nil {
		return p, fmt.Errorf("failed to load project %s: %w", projectID, err)
	}
	p.CreatedAt = time.Unix(created, 0).UTC()
	return p, nil
}

// ListProjects returns every project ordered by id.
func (s *StoreImpl) ListProjects(ctx context.Context) ([]schema.Project, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT project_id, name, created_at FROM projects ORDER BY project_id")
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var projects []schema.Project
	for rows.Next() {
		var p schema.Project
		var created int64
		if err := rows.Scan(&p.ID, &p.Name, &created); err != nil {
			return nil, fmt.Errorf("failed to scan project: %w", err)
		}
		p.CreatedAt = time.Unix(created, 0).UTC()
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

// GetIntegration returns the external links of a project. A project without
// an integration row has no links; an unknown project is ErrNotFound.
func (s *StoreImpl) GetIntegration(ctx context.Context, projectID string) (schema.ProjectIntegration, error) {
	integ := schema.ProjectIntegration{ProjectID: projectID}
	var github, jira sql.NullString
	err := s.db.QueryRowContext(ctx,
		s.bind(`SELECT i.github_repo_id, i.jira_project_id
			FROM projects p LEFT JOIN project_integrations i ON i.project_id = p.project_id
			WHERE p.project_id = ?`),
		projectID,
	).Scan(&github, &jira)
	if errors.Is(err, sql.ErrNoRows) {
		return integ, fmt.Errorf("project %s: %w", projectID, contract.ErrNotFound)
	}
	if err != nil {
		return integ, fmt.Errorf("failed to load integration for %s: %w", projectID, err)
	}
	integ.GitHubRepoID = github.String
	integ.JiraProjectID = jira.String
	return integ, nil
}

// GetActiveTeamMembers returns the ACTIVE members of a project with their external identities.
func (s *StoreImpl) GetActiveTeamMembers(ctx context.Context, projectID string) ([]schema.TeamMember, error) {
	rows, err := s.db.QueryContext(ctx,
		s.bind(`SELECT student_id, name, role, status, joined_at FROM team_members
			WHERE project_id = ? AND status = ? ORDER BY student_id`),
		projectID, string(schema.ActiveParticipation),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load roster for %s: %w", projectID, err)
	}

	var members []schema.TeamMember
	index := make(map[string]int)
	for rows.Next() {
		var m schema.TeamMember
		var role, status string
		var joined int64
		if err := rows.Scan(&m.StudentID, &m.Name, &role, &status, &joined); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("failed to scan team member: %w", err)
		}
		if m.Role, err = schema.ParseTeamRole(role); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("%w: %v", contract.ErrIntegrity, err)
		}
		if m.Status, err = schema.ParseParticipationStatus(status); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("%w: %v", contract.ErrIntegrity, err)
		}
		m.JoinedAt = time.Unix(joined, 0).UTC()
		index[m.StudentID] = len(members)
		members = append(members, m)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, err
	}
	_ = rows.Close()

	// SQLite holds a single connection, so the first result set must be closed before this query.
	idRows, err := s.db.QueryContext(ctx,
		s.bind("SELECT student_id, source, account FROM member_identities WHERE project_id = ? ORDER BY student_id, source, account"),
		projectID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load identities for %s: %w", projectID, err)
	}
	defer func() { _ = idRows.Close() }()

	for idRows.Next() {
		var studentID, source, account string
		if err := idRows.Scan(&studentID, &source, &account); err != nil {
			return nil, fmt.Errorf("failed to scan identity: %w", err)
		}
		i, ok := index[studentID]
		if !ok {
			continue
		}
		src, err := schema.ParseSource(source)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", contract.ErrIntegrity, err)
		}
		members[i].Identities = append(members[i].Identities, schema.ExternalIdentity{Source: src, Account: account})
	}
	return members, idRows.Err()
}

// UpsertProject replaces a project's row, integration and roster in one transaction.
func (s *StoreImpl) UpsertProject(ctx context.Context, p schema.Project, integ schema.ProjectIntegration, members []schema.TeamMember) error {
	if p.CreatedAt.IsZero() {
		p.CreatedAt = s.now()
	}
	return s.inTx(ctx, func(tx *sql.Tx) error {
		projectQuery := s.upsertQuery("projects", []string{"project_id", "name", "created_at"}, []string{"project_id"}, replaceValue)
		if _, err := tx.ExecContext(ctx, projectQuery, p.ID, p.Name, p.CreatedAt.Unix()); err != nil {
			return fmt.Errorf("failed to save project %s: %w", p.ID, err)
		}

		integQuery := s.upsertQuery("project_integrations",
			[]string{"project_id", "github_repo_id", "jira_project_id"}, []string{"project_id"}, replaceValue)
		if _, err := tx.ExecContext(ctx, integQuery,
			p.ID, stringOrNull(integ.GitHubRepoID), stringOrNull(integ.JiraProjectID),
		); err != nil {
			return fmt.Errorf("failed to save integration for %s: %w", p.ID, err)
		}

		for _, table := range []string{"member_identities", "team_members"} {
			if _, err := tx.ExecContext(ctx, s.bind("DELETE FROM "+table+" WHERE project_id = ?"), p.ID); err != nil {
				return fmt.Errorf("failed to clear %s for %s: %w", table, p.ID, err)
			}
		}

		memberQuery := s.bind(`INSERT INTO team_members (project_id, student_id, name, role, status, joined_at)
			VALUES (?, ?, ?, ?, ?, ?)`)
		identityQuery := s.bind(`INSERT INTO member_identities (project_id, source, account, student_id)
			VALUES (?, ?, ?, ?)`)
		for _, m := range members {
			joined := m.JoinedAt
			if joined.IsZero() {
				joined = p.CreatedAt
			}
			if _, err := tx.ExecContext(ctx, memberQuery,
				p.ID, m.StudentID, m.Name, string(m.Role), string(m.Status), joined.Unix(),
			); err != nil {
				return fmt.Errorf("failed to save member %s: %w", m.StudentID, err)
			}
			for _, id := range m.Identities {
				if _, err := tx.ExecContext(ctx, identityQuery, p.ID, string(id.Source), id.Account, m.StudentID); err != nil {
					return fmt.Errorf("failed to save identity %s/%s: %w", id.Source, id.Account, err)
				}
			}
		}
		return nil
	})
}
