package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/omrelabs/omre/internal/repositories"
	"github.com/omrelabs/omre/internal/services"
	"github.com/omrelabs/omre/internal/shared"
	"github.com/omrelabs/omre/internal/tasks"
	"github.com/urfave/cli/v3"
)

// PipelineRun runs a single pipeline job in the foreground with live
// progress output. The job argument defaults to "all".
func (r *Runner) PipelineRun(ctx context.Context, cmd *cli.Command) error {
	job := cmd.StringArg("job")
	if job == "" {
		job = tasks.JobAll
	}

	if r.market == nil {
		return fmt.Errorf("%w: Kite service not initialized", shared.ErrServiceUnavailable)
	}

	db, err := r.openStore()
	if err != nil {
		return err
	}
	defer db.Close()

	if err := shared.RunMigrations(db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	if sessions, err := repositories.NewSessionRepository(db); err == nil {
		r.restoreSession(sessions)
	}

	instruments := repositories.NewInstrumentRepository(db)
	candles := repositories.NewCandleRepository(db)
	predictions := repositories.NewPredictionRepository(db)
	users := repositories.NewUserRepository(db)
	alerts := repositories.NewAlertRepository(db)
	notifications := repositories.NewNotificationRepository(db)

	engine := tasks.NewPipelineEngine(r.market, instruments, candles, predictions, r.logger, r.config.Pipeline)

	var mailer services.Mailer
	if r.config.Email.SendGridKey != "" {
		if m, err := services.NewSendGridMailer(
			r.config.Email.SendGridKey,
			r.config.Email.From,
			r.config.Email.FromName,
		); err == nil {
			mailer = m
		}
	}
	sweeper := tasks.NewAlertEngine(r.market, alerts, notifications, users, mailer, r.logger)

	r.writePlain("Running pipeline job: %s\n\n", job)

	progressCh := make(chan tasks.ProgressUpdate, 50)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for update := range progressCh {
			switch update.Phase {
			case tasks.SyncInstruments:
				r.writePlain("📥 %s\n", update.Message)
			case tasks.FetchHistory:
				r.writePlain("   %s\n", update.Message)
			case tasks.ComputeFeatures:
				r.writePlain("   %s\n", update.Message)
			case tasks.ScorePredictions:
				r.writePlain("📊 %s\n", update.Message)
			case tasks.EvaluateAlerts:
				r.writePlain("🔔 %s\n", update.Message)
			}
		}
	}()

	start := time.Now()
	err = r.runJob(ctx, job, engine, sweeper, progressCh)
	close(progressCh)
	<-done

	if err != nil {
		return err
	}

	r.writePlain("\n")
	r.writePlainHeader("Pipeline Complete")
	r.writePlain("Job: %s\n", job)
	r.writePlain("Duration: %s\n", time.Since(start).Round(time.Millisecond))

	top, err := predictions.Top(3)
	if err == nil && len(top) > 0 {
		r.writePlain("\nTop predictions:\n")
		for i, p := range top {
			r.writePlain("  %d. %s  %.4f (%s)\n", i+1, p.Tradingsymbol, p.Score, p.Signal)
		}
	}

	return nil
}

// PipelineStatus queries the job registry of a running server over its
// /status endpoint.
func (r *Runner) PipelineStatus(ctx context.Context, cmd *cli.Command) error {
	base := cmd.String("url")
	if base == "" {
		host := r.config.Server.Host
		if host == "" || host == "0.0.0.0" {
			host = "127.0.0.1"
		}
		base = fmt.Sprintf("http://%s:%d", host, r.config.Server.Port)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"/status", nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: is the server running? %v", shared.ErrServiceUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: status %d", shared.ErrServiceUnavailable, resp.StatusCode)
	}

	var statuses map[string]tasks.JobStatus
	if err := json.NewDecoder(resp.Body).Decode(&statuses); err != nil {
		return fmt.Errorf("failed to decode status response: %w", err)
	}

	if cmd.Bool("json") {
		return r.writeJSON(statuses, true)
	}

	for _, job := range tasks.Jobs {
		status, ok := statuses[job]
		if !ok {
			continue
		}
		r.writePlain("%-10s %s", job, status.State)
		if status.Error != "" {
			r.writePlain("  (%s)", status.Error)
		}
		r.writePlain("\n")
	}

	return nil
}

func (r *Runner) runJob(ctx context.Context, job string, engine *tasks.PipelineEngine, sweeper *tasks.AlertEngine, progress chan<- tasks.ProgressUpdate) error {
	switch job {
	case tasks.JobFetch:
		if _, err := engine.SyncInstruments(ctx, progress); err != nil {
			return err
		}
		_, err := engine.FetchHistory(ctx, progress)
		return err
	case tasks.JobFeatures:
		return engine.ComputeFeatures(ctx, progress)
	case tasks.JobScoring:
		_, _, err := engine.ScorePredictions(ctx, progress)
		return err
	case tasks.JobSync:
		_, err := sweeper.Sweep(ctx, progress)
		return err
	case tasks.JobAll:
		if _, err := engine.Run(ctx, progress); err != nil {
			return err
		}
		_, err := sweeper.Sweep(ctx, progress)
		return err
	default:
		return fmt.Errorf("%w: %s (valid: %v)", shared.ErrJobUnknown, job, tasks.Jobs)
	}
}
