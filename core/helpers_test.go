package core

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/huangsam/teampulse/internal/iostore"
	"github.com/huangsam/teampulse/schema"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC)

// fakeClock is a settable clock shared by a service under test.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: testNow}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func newTestStore(t *testing.T) *iostore.StoreImpl {
	t.Helper()
	store, err := iostore.Open(schema.SQLiteBackend, ":memory:", iostore.Options{
		MergeRetries: 3,
		Now:          func() time.Time { return testNow },
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

var (
	ada = schema.TeamMember{
		StudentID: "s1", Name: "Ada", Role: schema.LeaderRole, Status: schema.ActiveParticipation,
		Identities: []schema.ExternalIdentity{
			{Source: schema.GitHubSource, Account: "ada@example.com"},
			{Source: schema.JiraSource, Account: "acc-ada"},
		},
	}
	bob = schema.TeamMember{
		StudentID: "s2", Name: "Bob", Role: schema.MemberRole, Status: schema.ActiveParticipation,
		Identities: []schema.ExternalIdentity{{Source: schema.GitHubSource, Account: "bob@example.com"}},
	}
	cy = schema.TeamMember{StudentID: "s3", Name: "Cy", Role: schema.MemberRole, Status: schema.LeftParticipation}
)

// seedProject creates a project linked to GitHub and Jira with Ada, Bob and a departed Cy.
func seedProject(t *testing.T, store *iostore.StoreImpl, projectID string, created time.Time, members ...schema.TeamMember) {
	t.Helper()
	if len(members) == 0 {
		members = []schema.TeamMember{ada, bob, cy}
	}
	require.NoError(t, store.UpsertProject(context.Background(),
		schema.Project{ID: projectID, Name: "Project " + projectID, CreatedAt: created},
		schema.ProjectIntegration{ProjectID: projectID, GitHubRepoID: "acme/" + projectID, JiraProjectID: "APP"},
		members,
	))
}

// recordCommit merges one attributed commit straight into the store.
func recordCommit(t *testing.T, store *iostore.StoreImpl, projectID, studentID, sha string, at time.Time) {
	t.Helper()
	_, err := store.ApplyBatch(context.Background(), schema.MergeBatch{
		ProjectID: projectID,
		Source:    schema.GitHubSource,
		Deltas: []schema.ActivityDelta{{
			EventID:    sha,
			Source:     schema.GitHubSource,
			Kind:       schema.CommitEvent,
			StudentID:  studentID,
			OccurredAt: at,
			Counters:   schema.ActivityCounters{Commits: 1, LinesAdded: 10},
		}},
	})
	require.NoError(t, err)
}
