package migrate

import (
	"context"

	"github.com/charmbracelet/log"
	"github.com/chirino/taskmate/internal/config"
	registrymigrate "github.com/chirino/taskmate/internal/registry/migrate"
	"github.com/urfave/cli/v3"

	// Store plugins register their migrators alongside the store.
	_ "github.com/chirino/taskmate/internal/plugin/store/mongo"
)

// Command returns the migrate sub-command.
func Command() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "Create collections and indexes",
		Flags: DatabaseFlags(),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg := DatabaseConfig(cmd)
			ctx = config.WithContext(ctx, &cfg)

			log.Info("Running migrations", "migrators", registrymigrate.Names())
			if err := registrymigrate.RunAll(ctx); err != nil {
				return err
			}
			log.Info("All migrations completed successfully")
			return nil
		},
	}
}

// DatabaseFlags are the connection flags shared by commands that only talk to the datastore.
func DatabaseFlags() []cli.Flag {
	defaults := config.DefaultConfig()
	return []cli.Flag{
		&cli.StringFlag{
			Name:     "db-url",
			Sources:  cli.EnvVars("TASKMATE_DB_URL", "MONGO_URI"),
			Usage:    "Database connection URL",
			Required: true,
		},
		&cli.StringFlag{
			Name:    "db-kind",
			Sources: cli.EnvVars("TASKMATE_DB_KIND"),
			Usage:   "Store backend (mongo)",
			Value:   defaults.DatastoreType,
		},
		&cli.StringFlag{
			Name:    "db-name",
			Sources: cli.EnvVars("TASKMATE_DB_NAME"),
			Usage:   "Database name",
			Value:   defaults.DBName,
		},
	}
}

// DatabaseConfig builds a config from DatabaseFlags with migrations enabled.
func DatabaseConfig(cmd *cli.Command) config.Config {
	cfg := config.DefaultConfig()
	cfg.DBURL = cmd.String("db-url")
	cfg.DatastoreType = cmd.String("db-kind")
	cfg.DBName = cmd.String("db-name")
	cfg.DatastoreMigrateAtStart = true
	return cfg
}
