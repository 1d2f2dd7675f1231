// Package seed loads projects, integrations and rosters from a YAML file.
package seed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/huangsam/teampulse/schema"
	"gopkg.in/yaml.v3"
)

// File is the top level of a seed file.
type File struct {
	Projects []Project `yaml:"projects" validate:"required,min=1,unique=ID,dive"`
}

// Project is one project with its external links and roster.
type Project struct {
	ID        string    `yaml:"id" validate:"required,max=64"`
	Name      string    `yaml:"name" validate:"required,max=255"`
	CreatedAt time.Time `yaml:"created_at"`
	GitHub    string    `yaml:"github" validate:"omitempty,contains=/"`
	Jira      string    `yaml:"jira"`
	Members   []Member  `yaml:"members" validate:"unique=StudentID,dive"`
}

// Member is one roster entry.
type Member struct {
	StudentID string    `yaml:"student_id" validate:"required,max=64"`
	Name      string    `yaml:"name" validate:"required"`
	Role      string    `yaml:"role" validate:"omitempty,oneof=LEADER MEMBER"`
	Status    string    `yaml:"status" validate:"omitempty,oneof=ACTIVE LEFT"`
	JoinedAt  time.Time `yaml:"joined_at"`
	GitHub    string    `yaml:"github"`
	Jira      string    `yaml:"jira"`
}

// ProjectWriter saves one project with its links and roster.
type ProjectWriter interface {
	UpsertProject(ctx context.Context, p schema.Project, integ schema.ProjectIntegration, members []schema.TeamMember) error
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// Report yaml names in errors.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("yaml"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	v.RegisterStructValidation(singleLeader, Project{})
	return v
}

// singleLeader rejects projects with more than one active leader.
func singleLeader(sl validator.StructLevel) {
	p := sl.Current().Interface().(Project)
	leaders := 0
	for _, m := range p.Members {
		if m.Role == string(schema.LeaderRole) && m.Status != string(schema.LeftParticipation) {
			leaders++
		}
	}
	if leaders > 1 {
		sl.ReportError(p.Members, "members", "Members", "single_leader", "")
	}
}

// Load decodes and validates a seed file. Role and status values are case-insensitive.
func Load(r io.Reader) (*File, error) {
	var f File
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("seed file is empty")
		}
		return nil, fmt.Errorf("failed to parse seed file: %w", err)
	}
	f.normalize()
	if err := validate.Struct(&f); err != nil {
		return nil, describe(err)
	}
	return &f, nil
}

func (f *File) normalize() {
	for i := range f.Projects {
		p := &f.Projects[i]
		p.ID = strings.TrimSpace(p.ID)
		p.GitHub = strings.TrimSpace(p.GitHub)
		p.Jira = strings.TrimSpace(p.Jira)
		for j := range p.Members {
			m := &p.Members[j]
			m.StudentID = strings.TrimSpace(m.StudentID)
			m.Role = strings.ToUpper(strings.TrimSpace(m.Role))
			m.Status = strings.ToUpper(strings.TrimSpace(m.Status))
		}
	}
}

// describe flattens validation errors into one readable error.
func describe(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("invalid seed file: %w", err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		if fe.Param() != "" {
			msgs = append(msgs, fmt.Sprintf("%s: failed %s=%s", fe.Namespace(), fe.Tag(), fe.Param()))
		} else {
			msgs = append(msgs, fmt.Sprintf("%s: failed %s", fe.Namespace(), fe.Tag()))
		}
	}
	return fmt.Errorf("invalid seed file: %s", strings.Join(msgs, "; "))
}

// Records converts a seed project into the store's types.
func (p Project) Records() (schema.Project, schema.ProjectIntegration, []schema.TeamMember) {
	project := schema.Project{ID: p.ID, Name: p.Name, CreatedAt: p.CreatedAt.UTC()}
	integ := schema.ProjectIntegration{ProjectID: p.ID, GitHubRepoID: p.GitHub, JiraProjectID: p.Jira}

	members := make([]schema.TeamMember, 0, len(p.Members))
	for _, m := range p.Members {
		tm := schema.TeamMember{
			StudentID: m.StudentID,
			Name:      m.Name,
			Role:      schema.MemberRole,
			Status:    schema.ActiveParticipation,
			JoinedAt:  m.JoinedAt.UTC(),
		}
		if m.Role != "" {
			tm.Role = schema.TeamRole(m.Role)
		}
		if m.Status != "" {
			tm.Status = schema.ParticipationStatus(m.Status)
		}
		if m.GitHub != "" {
			tm.Identities = append(tm.Identities, schema.ExternalIdentity{Source: schema.GitHubSource, Account: m.GitHub})
		}
		if m.Jira != "" {
			tm.Identities = append(tm.Identities, schema.ExternalIdentity{Source: schema.JiraSource, Account: m.Jira})
		}
		members = append(members, tm)
	}
	return project, integ, members
}

// Apply writes every project in the file. It stops at the first failure and
// reports how many projects were saved.
func Apply(ctx context.Context, store ProjectWriter, f *File) (int, error) {
	for i, p := range f.Projects {
		project, integ, members := p.Records()
		if err := store.UpsertProject(ctx, project, integ, members); err != nil {
			return i, fmt.Errorf("failed to seed project %s: %w", p.ID, err)
		}
	}
	return len(f.Projects), nil
}
