package cmd

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"proofid/internal/platform/httpserver"
	"proofid/internal/platform/logger"
)

const shutdownTimeout = 10 * time.Second

var (
	autoMigrate    bool
	insecureDevKey bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	Long: `Starts the HTTP API. At least one admin principal must be configured
(PROOFID_ADMINS or --admins) and JWT_SIGNING_KEY must be set; the server
refuses to start otherwise. --insecure-dev-key allows the built-in
development key for local runs.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		log := logger.New(os.Stderr, cfg.LogLevel, cfg.LogFormat)
		cfg.JWT.AllowDevKey = insecureDevKey
		if cfg.UsesDevSigningKey() && insecureDevKey {
			log.Warn("using the development signing key; tokens can be forged by anyone")
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		app, err := buildApplication(ctx, cfg, log, autoMigrate)
		if err != nil {
			return err
		}

		log.Info("starting proofid", "admins", len(cfg.Admins))
		err = httpserver.Run(ctx, httpserver.New(cfg.Addr, app.router), log, shutdownTimeout)
		if closeErr := app.close(); closeErr != nil {
			log.Error("shutdown cleanup failed", "error", closeErr)
		}
		log.Info("proofid stopped")
		return err
	},
}

func init() {
	serveCmd.Flags().BoolVar(&autoMigrate, "migrate", true, "Apply database migrations on startup when DATABASE_URL is set")
	serveCmd.Flags().BoolVar(&insecureDevKey, "insecure-dev-key", false, "Allow the built-in development JWT signing key")
}
