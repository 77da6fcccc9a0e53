package seed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/chirino/taskmate/internal/cmd/migrate"
	"github.com/chirino/taskmate/internal/config"
	"github.com/chirino/taskmate/internal/model"
	registrymigrate "github.com/chirino/taskmate/internal/registry/migrate"
	registrystore "github.com/chirino/taskmate/internal/registry/store"
	"github.com/chirino/taskmate/internal/security"
	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"

	_ "github.com/chirino/taskmate/internal/plugin/store/mongo"
)

// File is the layout of a seed file.
type File struct {
	Users []User `yaml:"users"`
}

// User is one account to create.
type User struct {
	Name     string     `yaml:"name"`
	Email    string     `yaml:"email"`
	Password string     `yaml:"password"`
	Role     model.Role `yaml:"role"`
	JobTitle string     `yaml:"jobTitle"`
}

// UserStore is the subset of the task store seeding needs.
type UserStore interface {
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	CreateUser(ctx context.Context, req registrystore.CreateUserRequest) (*model.User, error)
}

// Result counts what a seed run did.
type Result struct {
	Created int
	Skipped int
}

// Command returns the seed sub-command.
func Command() *cli.Command {
	return &cli.Command{
		Name:  "seed",
		Usage: "Create users listed in a YAML file",
		Flags: append(migrate.DatabaseFlags(),
			&cli.StringFlag{
				Name:     "file",
				Aliases:  []string{"f"},
				Usage:    "YAML file with a top-level users list",
				Required: true,
			},
		),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			f, err := os.Open(cmd.String("file"))
			if err != nil {
				return err
			}
			defer f.Close()
			seedFile, err := Parse(f)
			if err != nil {
				return err
			}

			cfg := migrate.DatabaseConfig(cmd)
			ctx = config.WithContext(ctx, &cfg)
			if err := registrymigrate.RunAll(ctx); err != nil {
				return err
			}
			loader, err := registrystore.Select(cfg.DatastoreType)
			if err != nil {
				return err
			}
			store, err := loader(ctx)
			if err != nil {
				return fmt.Errorf("failed to initialize store: %w", err)
			}
			if c, ok := store.(interface{ Close(context.Context) error }); ok {
				defer c.Close(context.Background())
			}

			res, err := Run(ctx, store, seedFile)
			if err != nil {
				return err
			}
			log.Info("Seed completed", "created", res.Created, "skipped", res.Skipped)
			return nil
		},
	}
}

// Parse decodes and validates a seed file.
func Parse(r io.Reader) (*File, error) {
	var f File
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse seed file: %w", err)
	}
	for i := range f.Users {
		u := &f.Users[i]
		u.Email = strings.ToLower(strings.TrimSpace(u.Email))
		if u.Role == "" {
			u.Role = model.RoleUser
		}
		if u.JobTitle == "" {
			u.JobTitle = model.DefaultJobTitle
		}
		switch {
		case strings.TrimSpace(u.Name) == "":
			return nil, fmt.Errorf("seed user %d: name is required", i+1)
		case !strings.Contains(u.Email, "@"):
			return nil, fmt.Errorf("seed user %q: a valid email is required", u.Name)
		case len(u.Password) < 6:
			return nil, fmt.Errorf("seed user %q: password must be at least 6 characters", u.Email)
		case !u.Role.Valid():
			return nil, fmt.Errorf("seed user %q: unknown role %q", u.Email, u.Role)
		}
	}
	return &f, nil
}

// Run creates every user in f whose email is not taken yet.
func Run(ctx context.Context, store UserStore, f *File) (Result, error) {
	var res Result
	for _, u := range f.Users {
		_, err := store.GetUserByEmail(ctx, u.Email)
		if err == nil {
			log.Debug("Seed user exists", "email", u.Email)
			res.Skipped++
			continue
		}
		if !registrystore.IsNotFound(err) {
			return res, fmt.Errorf("look up %s: %w", u.Email, err)
		}

		hash, err := security.HashPassword(u.Password)
		if err != nil {
			return res, err
		}
		created, err := store.CreateUser(ctx, registrystore.CreateUserRequest{
			Name:         u.Name,
			Email:        u.Email,
			PasswordHash: hash,
			Role:         u.Role,
			JobTitle:     u.JobTitle,
		})
		if err != nil {
			return res, fmt.Errorf("create %s: %w", u.Email, err)
		}
		log.Info("Seeded user", "email", created.Email, "role", created.Role)
		res.Created++
	}
	return res, nil
}
