package main

import (
	"context"
	"fmt"
	"os"

	"github.com/omrelabs/omre/internal/shared"
	"github.com/urfave/cli/v3"
)

// SetupDatabase initializes the database and runs migrations. With
// --rollback it reverses the most recent migration instead.
func (r *Runner) SetupDatabase(ctx context.Context, cmd *cli.Command) error {
	if cmd.Bool("local") {
		r.config.CloudDatabase.URL = ""
	}

	db, err := r.openStore()
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if cmd.Bool("rollback") {
		r.logger.Info("rolling back most recent migration")
		if err := shared.RollbackMigration(db); err != nil {
			return fmt.Errorf("failed to roll back migration: %w", err)
		}
		r.writePlain("✓ Rollback complete\n")
		return nil
	}

	r.logger.Info("running database migrations")
	if err := shared.RunMigrations(db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	r.writePlain("✓ Database ready\n")
	return nil
}

// SetupConfig writes a starter config file for editing.
func (r *Runner) SetupConfig(ctx context.Context, cmd *cli.Command) error {
	outputPath := cmd.String("output")

	if _, err := os.Stat(outputPath); err == nil {
		return fmt.Errorf("%w: %s already exists", shared.ErrInvalidArgument, outputPath)
	}

	if err := shared.CreateConfigFile(outputPath); err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}

	r.writePlain("✓ Config written to %s\n", outputPath)
	r.writePlain("Next steps:\n")
	r.writePlain("1. Fill in credentials.kite with your Kite Connect app keys\n")
	r.writePlain("2. Run 'omre kite login' to authenticate\n")
	r.writePlain("3. Run 'omre pipeline run all' to build predictions\n")

	return nil
}
