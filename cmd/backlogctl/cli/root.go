package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/backlog-dim/backlog-dim/internal/app"
	"github.com/backlog-dim/backlog-dim/internal/metadata"
	"github.com/backlog-dim/backlog-dim/internal/platform/db"
	"github.com/backlog-dim/backlog-dim/internal/rbac"
	"github.com/backlog-dim/backlog-dim/internal/users"
)

// Backend is what the data commands operate on.
type Backend struct {
	RBAC     RBACAdmin
	Users    UserStore
	Catalogs CatalogCreator
	Close    func()
}

// Runtime lets tests replace the database-facing pieces.
type Runtime struct {
	Migrate func(ctx context.Context, dsn string) error
	Open    func(ctx context.Context, dsn string) (*Backend, error)
}

func defaultRuntime() Runtime {
	return Runtime{
		Migrate: db.Migrate,
		Open: func(ctx context.Context, dsn string) (*Backend, error) {
			pool, err := db.New(ctx, dsn)
			if err != nil {
				return nil, err
			}
			return &Backend{
				RBAC:     rbac.NewService(rbac.NewRepository(pool)),
				Users:    users.NewRepository(pool),
				Catalogs: metadata.NewService(metadata.NewRepository(pool)),
				Close:    pool.Close,
			}, nil
		},
	}
}

// Execute runs the CLI.
func Execute() int {
	if err := newRootCmd(defaultRuntime()).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func newRootCmd(rt Runtime) *cobra.Command {
	var (
		dsn    string
		output string
	)
	rootCmd := &cobra.Command{
		Use:           "backlogctl",
		Short:         "Operational commands for Backlog-DIM",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&dsn, "dsn", "", "Postgres DSN (defaults to PG_DSN)")
	rootCmd.PersistentFlags().StringVarP(&output, "output", "o", "table", "Output format (table, json)")

	resolveDSN := func() (string, error) {
		if dsn != "" {
			return dsn, nil
		}
		if v := os.Getenv("PG_DSN"); v != "" {
			return v, nil
		}
		cfg, err := app.LoadConfig()
		if err != nil {
			return "", err
		}
		return cfg.PGDSN, nil
	}
	withBackend := func(cmd *cobra.Command, fn func(*Backend) error) error {
		target, err := resolveDSN()
		if err != nil {
			return err
		}
		backend, err := rt.Open(cmd.Context(), target)
		if err != nil {
			return fmt.Errorf("connect: %w", err)
		}
		if backend.Close != nil {
			defer backend.Close()
		}
		return fn(backend)
	}

	rootCmd.AddCommand(
		newMigrateCmd(rt, resolveDSN),
		newSeedCmd(withBackend),
		newPerfisCmd(withBackend, &output),
	)
	return rootCmd
}

func newMigrateCmd(rt Runtime, resolveDSN func() (string, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			target, err := resolveDSN()
			if err != nil {
				return err
			}
			if err := rt.Migrate(cmd.Context(), target); err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
			return nil
		},
	}
}
