package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/quoteboard/quoteboard/internal/app"
	"github.com/quoteboard/quoteboard/internal/auth/password"
	"github.com/quoteboard/quoteboard/internal/bootstrap"
	"github.com/quoteboard/quoteboard/internal/platform/db"
)

var (
	errNotConfirmed = errors.New("refusing to reset the schema without --confirm-destroy")
	errProduction   = errors.New("refusing to bootstrap APP_ENV=production without --allow-production")
)

type flags struct {
	confirmDestroy  bool
	allowProduction bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newCommand().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newCommand() *cobra.Command {
	var f flags
	cmd := &cobra.Command{
		Use:   "bootstrap",
		Short: "Drop and rebuild the database, then seed roles and the superadmin",
		Long: "bootstrap resets the schema from the embedded migrations, writes the " +
			"superadmin, admin and user roles and creates the superadmin account from " +
			"SUPERADMIN_EMAIL and SUPERADMIN_PASSWORD. Every existing row is deleted.",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := app.LoadBootstrapConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if err := checkGuards(cfg, f); err != nil {
				return err
			}
			return run(cmd.Context(), cfg)
		},
	}
	cmd.Flags().BoolVar(&f.confirmDestroy, "confirm-destroy", false, "acknowledge that all data is deleted")
	cmd.Flags().BoolVar(&f.allowProduction, "allow-production", false, "permit running against APP_ENV=production")
	return cmd
}

func checkGuards(cfg *app.BootstrapConfig, f flags) error {
	if !f.confirmDestroy {
		return errNotConfirmed
	}
	if cfg.IsProduction() && !f.allowProduction {
		return errProduction
	}
	return nil
}

func run(ctx context.Context, cfg *app.BootstrapConfig) error {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	pool, err := db.New(ctx, cfg.PGDSN, 2)
	if err != nil {
		return err
	}
	defer pool.Close()

	logger.Warn("resetting schema", slog.String("app_env", cfg.AppEnv))
	if err := bootstrap.Reset(ctx, pool); err != nil {
		return err
	}

	seeder := bootstrap.NewSeeder(pool, password.NewHasher(password.DefaultParams), logger)
	result, err := seeder.Seed(ctx, bootstrap.Superadmin{
		Email:     cfg.Email,
		Password:  cfg.Password,
		FirstName: cfg.FirstName,
		LastName:  cfg.LastName,
	})
	if err != nil {
		return err
	}
	logger.Info("bootstrap complete", slog.String("superadmin_id", result.SuperadminID.String()))
	return nil
}
