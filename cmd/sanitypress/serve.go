package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/eringen/sanitypress"
	"github.com/eringen/sanitypress/views"
)

const shutdownTimeout = 10 * time.Second

var staticDir string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the site",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		app := sanitypress.New(cfg, views.Default(), sanitypress.WithStaticDir(staticDir))
		if err := app.Setup(); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		errc := make(chan error, 1)
		go func() { errc <- app.Start() }()

		select {
		case err := <-errc:
			_ = app.Close()
			return err
		case <-ctx.Done():
		}

		app.Logger.Info("shutting down", zap.Duration("timeout", shutdownTimeout))
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return app.Shutdown(shutdownCtx)
	},
}

func init() {
	serveCmd.Flags().StringVar(&staticDir, "static", "public", "Directory served under /public")
	rootCmd.AddCommand(serveCmd)
}
