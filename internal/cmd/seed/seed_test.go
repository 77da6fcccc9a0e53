package seed

import (
	"context"
	"strings"
	"testing"

	"github.com/chirino/taskmate/internal/model"
	registrystore "github.com/chirino/taskmate/internal/registry/store"
	"github.com/chirino/taskmate/internal/security"
	"github.com/stretchr/testify/require"
)

type fakeUsers struct {
	byEmail map[string]*model.User
	created []registrystore.CreateUserRequest
}

func (f *fakeUsers) GetUserByEmail(_ context.Context, email string) (*model.User, error) {
	if u, ok := f.byEmail[email]; ok {
		return u, nil
	}
	return nil, &registrystore.NotFoundError{Resource: "user", ID: email}
}

func (f *fakeUsers) CreateUser(_ context.Context, req registrystore.CreateUserRequest) (*model.User, error) {
	f.created = append(f.created, req)
	u := &model.User{Name: req.Name, Email: req.Email, Role: req.Role, JobTitle: req.JobTitle}
	f.byEmail[req.Email] = u
	return u, nil
}

const seedYAML = `
users:
  - name: Admin
    email: Admin@Example.com
    password: secret123
    role: admin
    jobTitle: Manager
  - name: Ann
    email: ann@example.com
    password: secret123
`

func TestParse(t *testing.T) {
	f, err := Parse(strings.NewReader(seedYAML))
	require.NoError(t, err)
	require.Len(t, f.Users, 2)
	require.Equal(t, "admin@example.com", f.Users[0].Email)
	require.Equal(t, model.RoleAdmin, f.Users[0].Role)
	require.Equal(t, model.RoleUser, f.Users[1].Role)
	require.Equal(t, model.DefaultJobTitle, f.Users[1].JobTitle)
}

func TestParseRejectsBadUsers(t *testing.T) {
	cases := map[string]string{
		"missing name":  "users:\n  - email: a@example.com\n    password: secret123\n",
		"bad email":     "users:\n  - name: A\n    email: nope\n    password: secret123\n",
		"short pass":    "users:\n  - name: A\n    email: a@example.com\n    password: abc\n",
		"unknown role":  "users:\n  - name: A\n    email: a@example.com\n    password: secret123\n    role: root\n",
		"unknown field": "users:\n  - name: A\n    mail: a@example.com\n",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(doc))
			require.Error(t, err)
		})
	}
}

func TestRunSkipsExistingUsers(t *testing.T) {
	f, err := Parse(strings.NewReader(seedYAML))
	require.NoError(t, err)
	store := &fakeUsers{byEmail: map[string]*model.User{
		"ann@example.com": {Name: "Ann", Email: "ann@example.com", Role: model.RoleUser},
	}}

	res, err := Run(context.Background(), store, f)
	require.NoError(t, err)
	require.Equal(t, Result{Created: 1, Skipped: 1}, res)
	require.Len(t, store.created, 1)
	require.Equal(t, "admin@example.com", store.created[0].Email)
	require.True(t, security.CheckPassword(store.created[0].PasswordHash, "secret123"))

	res, err = Run(context.Background(), store, f)
	require.NoError(t, err)
	require.Equal(t, Result{Skipped: 2}, res)
}
