package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"fooddispatch/internal/config"
	"fooddispatch/internal/infra"
)

var migrationFile string

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the SQL schema",
	RunE:  migrate,
}

func init() {
	migrateCmd.Flags().StringVarP(&migrationFile, "file", "f", "", "migration file (default: migrations/0001_init.sql under the module root)")
	rootCmd.AddCommand(migrateCmd)
}

func migrate(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	path := migrationFile
	if path == "" {
		if path, err = infra.MigrationPath(); err != nil {
			return fmt.Errorf("locate migration: %w", err)
		}
	}

	db, err := infra.NewDB(ctx, cfg.DB.DSN)
	if err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	defer db.Close()

	if err := infra.Migrate(ctx, db, path); err != nil {
		return err
	}
	log := infra.NewLogger(cfg.Env, "migrate")
	log.Info().Str("file", path).Msg("migration applied")
	return nil
}
