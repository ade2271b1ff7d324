package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"fooddispatch/internal/config"
	httptransport "fooddispatch/internal/http"
	"fooddispatch/internal/infra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and the expiry sweeper",
	RunE:  serve,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func serve(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.close()

	router := httptransport.NewRouter(httptransport.RouterDeps{
		Dispatch: a.dispatch,
		Location: a.location,
	}, infra.NewLogger(cfg.Env, "http"))

	go a.dispatch.RunSweeper(ctx)

	return httptransport.NewServer(cfg.HTTP.Addr, router, a.log).Run(ctx)
}
