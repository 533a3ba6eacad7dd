// Command migrate manages the versioned postgres schema of the billing
// store. SQLite databases are created on startup and need no migrations.
package main

import (
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"time"

	"github.com/freelance/backend/internal/infrastructure/config"
	"github.com/freelance/backend/internal/infrastructure/logger"
	"github.com/freelance/backend/internal/infrastructure/migration"
	_ "github.com/lib/pq"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const defaultCreateDir = "internal/infrastructure/migration/sql"

type tool struct {
	path     string
	logLevel string
	log      *zap.Logger
}

func main() {
	t := &tool{}
	root := &cobra.Command{
		Use:           "migrate",
		Short:         "Freelance billing database migration tool",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			t.log, err = logger.New(&logger.Config{
				Level:      t.logLevel,
				Format:     "console",
				Output:     "stdout",
				TimeFormat: "2006-01-02 15:04:05",
			})
			return err
		},
	}
	root.PersistentFlags().StringVar(&t.path, "path", "", "Read migrations from this directory instead of the embedded set")
	root.PersistentFlags().StringVar(&t.logLevel, "log-level", "info", "Log level (debug, info, warn, error)")

	root.AddCommand(
		t.schemaCmd("up", "Apply all pending migrations", cobra.NoArgs, func(m *migration.Migrator, _ []string) error {
			return m.Up()
		}),
		t.schemaCmd("down", "Roll back all migrations", cobra.NoArgs, func(m *migration.Migrator, _ []string) error {
			return m.Down()
		}),
		t.schemaCmd("step <n>", "Apply n migrations, negative n rolls back", cobra.ExactArgs(1), func(m *migration.Migrator, args []string) error {
			n, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid step count %q", args[0])
			}
			return m.Steps(n)
		}),
		t.schemaCmd("version", "Show the applied migration version", cobra.NoArgs, func(m *migration.Migrator, _ []string) error {
			version, dirty, err := m.Version()
			if err != nil {
				return err
			}
			if version == 0 {
				t.log.Info("No migrations applied")
				return nil
			}
			t.log.Info("Current migration version", zap.Uint("version", version), zap.Bool("dirty", dirty))
			return nil
		}),
		t.schemaCmd("force <version>", "Mark a version applied and clean, to recover a dirty schema", cobra.ExactArgs(1), func(m *migration.Migrator, args []string) error {
			version, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid version %q", args[0])
			}
			return m.Force(version)
		}),
		t.createCmd(),
		t.listCmd(),
	)

	err := root.Execute()
	if t.log != nil {
		if err != nil {
			t.log.Error("Migration failed", zap.Error(err))
		}
		_ = logger.Sync(t.log)
	} else if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	if err != nil {
		os.Exit(1)
	}
}

// schemaCmd runs fn against the configured postgres database
func (t *tool) schemaCmd(use, short string, args cobra.PositionalArgs, fn func(*migration.Migrator, []string) error) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  args,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := t.openMigrator()
			if err != nil {
				return err
			}
			defer func() {
				if err := m.Close(); err != nil {
					t.log.Warn("Failed to close migrator", zap.Error(err))
				}
			}()

			// an interrupted migration leaves the schema dirty
			signal.Ignore(os.Interrupt)
			return fn(m, args)
		},
	}
}

func (t *tool) openMigrator() (*migration.Migrator, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if cfg.Database.Driver != config.DriverPostgres {
		return nil, fmt.Errorf("versioned migrations only apply to postgres, database.driver is %q", cfg.Database.Driver)
	}

	db, err := sql.Open("postgres", cfg.Database.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	var m *migration.Migrator
	if t.path == "" {
		m, err = migration.New(db, t.log)
	} else {
		m, err = migration.NewFromDir(db, t.path, t.log)
	}
	if err != nil {
		db.Close()
		return nil, err
	}
	return m, nil
}

func (t *tool) createCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "create <name> [description]",
		Short: "Write an empty up/down migration pair",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			description := ""
			if len(args) > 1 {
				description = args[1]
			}
			dir := t.path
			if dir == "" {
				dir = defaultCreateDir
			}
			mf, err := migration.CreateMigration(dir, args[0], description, time.Now().UTC())
			if err != nil {
				return err
			}
			t.log.Info("Migration created",
				zap.String("version", mf.Version),
				zap.String("up_file", mf.UpPath),
				zap.String("down_file", mf.DownPath))
			return nil
		},
	}
}

func (t *tool) listCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List available migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var names []string
			var err error
			if t.path == "" {
				names, err = migration.ListEmbedded()
			} else {
				names, err = migration.ListMigrations(os.DirFS(t.path), ".")
			}
			if err != nil {
				return err
			}
			if len(names) == 0 {
				t.log.Info("No migrations found")
			}
			for _, name := range names {
				fmt.Fprintln(cmd.OutOrStdout(), "  -", name)
			}
			return nil
		},
	}
}
