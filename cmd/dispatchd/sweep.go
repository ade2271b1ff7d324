package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"fooddispatch/internal/config"
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Expire overdue assignments once and exit",
	RunE:  sweep,
}

func init() {
	rootCmd.AddCommand(sweepCmd)
}

func sweep(cmd *cobra.Command, args []string) error {
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

	report, err := a.dispatch.Sweep(ctx)
	if err != nil {
		return err
	}
	a.log.Info().
		Int("expired", report.Expired).
		Int("exhausted", report.Exhausted).
		Int("redispatched", report.Redispatched).
		Int("skipped", report.Skipped).
		Msg("sweep done")
	return nil
}
