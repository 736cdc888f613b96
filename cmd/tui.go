package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/omrelabs/omre/internal/repositories"
	"github.com/omrelabs/omre/internal/shared"
	"github.com/omrelabs/omre/internal/tasks"
	"github.com/omrelabs/omre/internal/ui"
	"github.com/urfave/cli/v3"
)

// TUI launches the interactive terminal UI for browsing predictions and
// running the pipeline. Without Kite credentials the pipeline view is
// disabled and the TUI is read-only.
func (r *Runner) TUI(ctx context.Context, cmd *cli.Command) error {
	// Redirect logs to file to avoid interfering with TUI rendering
	logPath := filepath.Join("tmp", "omre-tui.log")
	if err := os.MkdirAll(filepath.Dir(logPath), 0755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer logFile.Close()
	r.SetLogger(shared.NewLogger(logFile))

	db, err := r.openStore()
	if err != nil {
		return err
	}
	defer db.Close()

	if err := shared.RunMigrations(db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	predictions := repositories.NewPredictionRepository(db)

	var engine *tasks.PipelineEngine
	if r.market != nil {
		if sessions, err := repositories.NewSessionRepository(db); err == nil {
			r.restoreSession(sessions)
		}
		instruments := repositories.NewInstrumentRepository(db)
		candles := repositories.NewCandleRepository(db)
		engine = tasks.NewPipelineEngine(r.market, instruments, candles, predictions, r.logger, r.config.Pipeline)
	}

	model := ui.NewModel(ctx, predictions, engine)
	p := tea.NewProgram(model)

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}

	return nil
}
