package main

import (
	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/ayush/research-hub/internal/config"
	"github.com/ayush/research-hub/internal/store"
)

// migrator is the part of *store.Migrator the subcommands drive.
type migrator interface {
	Up() error
	Down() error
	Version() (version uint, dirty bool, err error)
	Close() error
}

// openMigrator is replaced in tests.
var openMigrator = func(dsn string) (migrator, error) {
	m, err := store.NewMigrator(dsn)
	if err != nil {
		return nil, err
	}
	return m, nil
}

// NewMigrateCmd creates the migrate subcommand.
func NewMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the PostgreSQL schema",
		Long:  `Apply, roll back or inspect the embedded user schema migrations.`,
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			RunE: withMigrator(func(cmd *cobra.Command, m migrator) error {
				if err := m.Up(); err != nil {
					return err
				}
				cmd.Println("Migrations completed successfully")
				return nil
			}),
		},
		&cobra.Command{
			Use:   "down",
			Short: "Roll back every migration",
			RunE: withMigrator(func(cmd *cobra.Command, m migrator) error {
				if err := m.Down(); err != nil {
					return err
				}
				cmd.Println("Migrations rolled back")
				return nil
			}),
		},
		&cobra.Command{
			Use:   "version",
			Short: "Print the current schema version",
			RunE: withMigrator(func(cmd *cobra.Command, m migrator) error {
				v, dirty, err := m.Version()
				if err != nil {
					return err
				}
				cmd.Printf("version %d (dirty: %t)\n", v, dirty)
				return nil
			}),
		},
	)
	return cmd
}

func withMigrator(run func(*cobra.Command, migrator) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.Decode(cmd.Flags(), configFile)
		if err != nil {
			return err
		}
		if cfg.PostgresDSN == "" {
			return oops.Code("CONFIG_INVALID").Errorf("postgres-dsn is required")
		}

		m, err := openMigrator(cfg.PostgresDSN)
		if err != nil {
			return err
		}
		defer func() { _ = m.Close() }()
		return run(cmd, m)
	}
}

// migrateUp applies pending migrations before the server starts.
func migrateUp(dsn string) error {
	m, err := openMigrator(dsn)
	if err != nil {
		return err
	}
	defer func() { _ = m.Close() }()
	return m.Up()
}
