package main

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"syscall"

	api "codentor-backend/cmd/api"
	authdomain "codentor-backend/internal/auth/domain"
	calendardomain "codentor-backend/internal/calendar/domain"
	notedomain "codentor-backend/internal/note/domain"
	notificationdomain "codentor-backend/internal/notification/domain"
	taskdomain "codentor-backend/internal/task/domain"
	"codentor-backend/pkg/config"
	"codentor-backend/pkg/database"
	"codentor-backend/pkg/logger"

	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "codentor",
		Short:         "Codentor task, calendar sync and reminder backend",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(serveCmd(), scanRemindersCmd(), migrateCmd())
	// Running without a subcommand serves HTTP.
	root.RunE = serveCmd().RunE
	return root
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and, when enabled, the reminder scheduler",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, db, err := bootstrap()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			handler, err := api.NewHandler(ctx, cfg, db)
			if err != nil {
				logger.L().WithError(err).Error("[Main] Failed to wire handlers")
				return err
			}
			defer handler.Close()

			if err := handler.Start(ctx, ":"+cfg.Port); err != nil {
				logger.L().WithError(err).Error("[Main] Server stopped with error")
				return err
			}
			logger.L().Info("[Main] Server stopped")
			return nil
		},
	}
}

func scanRemindersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "scan-reminders",
		Short: "Run one reminder scan and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, db, err := bootstrap()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			handler, err := api.NewHandler(ctx, cfg, db)
			if err != nil {
				return err
			}
			defer handler.Close()

			result, err := handler.Scanner.Scan(ctx)
			if err != nil {
				logger.L().WithError(err).Error("[Main] Reminder scan failed")
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(result)
		},
	}
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database schema migrations and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, _, err := bootstrap()
			if err == nil {
				logger.L().Info("[Main] Schema is up to date")
			}
			return err
		},
	}
}

// bootstrap loads configuration, opens the database and migrates it.
func bootstrap() (*config.Config, *gorm.DB, error) {
	cfg := config.Load()
	logger.Init(cfg.LogLevel, cfg.LogFormat)
	log := logger.WithComponent("Main")

	db, err := database.NewConnection(cfg)
	if err != nil {
		log.WithError(err).Error("[Main] Failed to connect to database")
		return nil, nil, err
	}

	if err := db.AutoMigrate(
		&authdomain.User{},
		&authdomain.RefreshToken{},
		&authdomain.FCMToken{},
		&authdomain.PushSubscription{},
		&taskdomain.Task{},
		&calendardomain.GoogleToken{},
		&notificationdomain.Notification{},
		&notedomain.Note{},
	); err != nil {
		log.WithError(err).Error("[Main] Failed to migrate database")
		return nil, nil, err
	}

	if missing := cfg.MissingProviders(); len(missing) > 0 {
		for provider, vars := range missing {
			log.WithField("missing", vars).Warnf("[Main] %s disabled", provider)
		}
	}
	return cfg, db, nil
}
