package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/oliver453/lochlann-se/internal/app"
	"github.com/oliver453/lochlann-se/internal/config"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "tablebook",
		Short:        "Restaurant table booking service",
		SilenceUsage: true,
	}

	root.AddCommand(newServeCmd())
	root.AddCommand(newMigrateCmd())
	return root
}

func newServeCmd() *cobra.Command {
	var migrateUp bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the booking HTTP API and background jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				log.Printf("Failed to load config: %v", err)
				return err
			}

			logger := app.NewLogger(cfg.Environment)
			defer logger.Sync()

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			var stores app.Stores
			switch cfg.StorageDriver {
			case config.StorageDriverMemory:
				logger.Warn("Using in-memory storage, bookings are lost on restart")
				stores = app.MemoryStores()
			default:
				pool, err := app.OpenPool(ctx, cfg.GetDBDSN())
				if err != nil {
					logger.Error("Failed to connect to database", zap.Error(err))
					return err
				}
				defer pool.Close()

				if migrateUp {
					migrator, err := app.NewMigrator(pool, logger)
					if err != nil {
						return err
					}
					err = migrator.Run(ctx)
					migrator.Close()
					if err != nil {
						logger.Error("Failed to apply migrations", zap.Error(err))
						return err
					}
				}
				stores = app.PostgresStores(pool, cfg.AllocationTimeout)
			}

			server, err := app.NewServer(ctx, cfg, stores, logger)
			if err != nil {
				logger.Error("Failed to build server", zap.Error(err))
				return err
			}

			logger.Info("Starting tablebook",
				zap.String("environment", cfg.Environment),
				zap.String("storage", cfg.StorageDriver))
			return server.Run(ctx)
		},
	}

	cmd.Flags().BoolVar(&migrateUp, "migrate", true, "apply database migrations on startup")
	return cmd
}

func newMigrateCmd() *cobra.Command {
	var down bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply (or roll back one) database migration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			logger := app.NewLogger(cfg.Environment)
			defer logger.Sync()

			ctx := context.Background()
			pool, err := app.OpenPool(ctx, cfg.GetDBDSN())
			if err != nil {
				return err
			}
			defer pool.Close()

			migrator, err := app.NewMigrator(pool, logger)
			if err != nil {
				return err
			}
			defer migrator.Close()

			if down {
				return migrator.Down(ctx)
			}
			return migrator.Run(ctx)
		},
	}

	cmd.Flags().BoolVar(&down, "down", false, "roll back the latest migration")
	return cmd
}
