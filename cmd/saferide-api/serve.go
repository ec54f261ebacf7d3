// README: serve subcommand; runs the HTTP API, hazard refresher and reservation sweeper.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"saferide/internal/app"
	"saferide/internal/config"
	"saferide/internal/logging"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the dispatch API",
	RunE:  serve,
}

func serve(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	svc, err := app.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := svc.Close(); err != nil {
			logging.New("main").Errorf("service close: %v", err)
		}
	}()
	return svc.Run(ctx)
}
