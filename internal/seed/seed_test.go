package seed

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/huangsam/teampulse/internal/iostore"
	"github.com/huangsam/teampulse/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const sample = `
projects:
  - id: capstone
    name: Capstone
    created_at: 2025-01-06T00:00:00Z
    github: acme/app
    jira: APP
    members:
      - student_id: s1
        name: Ada
        role: leader
        github: ada@example.com
        jira: acc-ada
      - student_id: s2
        name: Bob
        joined_at: 2025-01-20T09:00:00Z
      - student_id: s3
        name: Cy
        status: left
  - id: solo
    name: Solo
`

func TestLoad(t *testing.T) {
	f, err := Load(strings.NewReader(sample))
	require.NoError(t, err)
	require.Len(t, f.Projects, 2)

	p, integ, members := f.Projects[0].Records()
	assert.Equal(t, schema.Project{ID: "capstone", Name: "Capstone", CreatedAt: time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC)}, p)
	assert.Equal(t, schema.ProjectIntegration{ProjectID: "capstone", GitHubRepoID: "acme/app", JiraProjectID: "APP"}, integ)
	require.Len(t, members, 3)
	assert.Equal(t, schema.LeaderRole, members[0].Role)
	assert.Equal(t, schema.ActiveParticipation, members[0].Status)
	assert.Equal(t, []schema.ExternalIdentity{
		{Source: schema.GitHubSource, Account: "ada@example.com"},
		{Source: schema.JiraSource, Account: "acc-ada"},
	}, members[0].Identities)
	assert.Equal(t, schema.MemberRole, members[1].Role)
	assert.Equal(t, time.Date(2025, 1, 20, 9, 0, 0, 0, time.UTC), members[1].JoinedAt)
	assert.Empty(t, members[1].Identities)
	assert.Equal(t, schema.LeftParticipation, members[2].Status)

	_, integ, members = f.Projects[1].Records()
	assert.False(t, integ.HasAny())
	assert.Empty(t, members)
}

func TestLoadRejects(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr string
	}{
		{"empty", "", "seed file is empty"},
		{"no projects", "projects: []\n", "failed min"},
		{"unknown field", "projects:\n  - id: p\n    name: P\n    owner: x\n", "field owner not found"},
		{"missing name", "projects:\n  - id: p\n", "projects[0].name: failed required"},
		{"duplicate project", "projects:\n  - {id: p, name: P}\n  - {id: p, name: Q}\n", "failed unique=ID"},
		{"bad repo", "projects:\n  - {id: p, name: P, github: app}\n", "failed contains=/"},
		{"bad role", "projects:\n  - id: p\n    name: P\n    members:\n      - {student_id: s1, name: A, role: owner}\n", "failed oneof=LEADER MEMBER"},
		{"duplicate member", "projects:\n  - id: p\n    name: P\n    members:\n      - {student_id: s1, name: A}\n      - {student_id: s1, name: B}\n", "failed unique=StudentID"},
		{"two leaders", "projects:\n  - id: p\n    name: P\n    members:\n      - {student_id: s1, name: A, role: LEADER}\n      - {student_id: s2, name: B, role: LEADER}\n", "failed single_leader"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(strings.NewReader(tt.input))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadAllowsLeftLeader(t *testing.T) {
	input := "projects:\n  - id: p\n    name: P\n    members:\n      - {student_id: s1, name: A, role: LEADER, status: LEFT}\n      - {student_id: s2, name: B, role: LEADER}\n"
	_, err := Load(strings.NewReader(input))
	assert.NoError(t, err)
}

func TestApply(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	store, err := iostore.Open(schema.SQLiteBackend, ":memory:", iostore.Options{Now: func() time.Time { return now }})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	f, err := Load(strings.NewReader(sample))
	require.NoError(t, err)
	n, err := Apply(ctx, store, f)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	projects, err := store.ListProjects(ctx)
	require.NoError(t, err)
	require.Len(t, projects, 2)
	assert.Equal(t, now, projects[1].CreatedAt, "missing created_at defaults to the store clock")

	members, err := store.GetActiveTeamMembers(ctx, "capstone")
	require.NoError(t, err)
	require.Len(t, members, 2, "departed members are not active")
	assert.Equal(t, time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC), members[0].JoinedAt, "joined_at defaults to project creation")

	// Seeding again replaces the roster instead of duplicating it.
	_, err = Apply(ctx, store, f)
	require.NoError(t, err)
	members, err = store.GetActiveTeamMembers(ctx, "capstone")
	require.NoError(t, err)
	assert.Len(t, members, 2)
}

func TestApplyStopsAtFirstFailure(t *testing.T) {
	f, err := Load(strings.NewReader(sample))
	require.NoError(t, err)

	store := &iostore.MockStore{}
	store.On("UpsertProject", mock.Anything, mock.MatchedBy(func(p schema.Project) bool { return p.ID == "capstone" }), mock.Anything, mock.Anything).
		Return(errors.New("disk full")).Once()

	n, err := Apply(context.Background(), store, f)
	require.Error(t, err)
	assert.Equal(t, 0, n)
	assert.Contains(t, err.Error(), "failed to seed project capstone: disk full")
	store.AssertExpectations(t)
}
