package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/omrelabs/omre/internal/cache"
	"github.com/omrelabs/omre/internal/repositories"
	"github.com/omrelabs/omre/internal/server"
	"github.com/omrelabs/omre/internal/services"
	"github.com/omrelabs/omre/internal/shared"
	"github.com/omrelabs/omre/internal/tasks"
	"github.com/urfave/cli/v3"
)

const shutdownTimeout = 10 * time.Second

// Serve boots the full web surface: migrations, stored session restore,
// pipeline controller, and the HTTP server. It blocks until SIGINT or
// SIGTERM, then drains in-flight requests.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	db, err := r.openStore()
	if err != nil {
		return err
	}
	defer db.Close()

	r.logger.Info("running database migrations")
	if err := shared.RunMigrations(db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	sessions, err := repositories.NewSessionRepository(db)
	if err != nil {
		return fmt.Errorf("failed to open session store: %w", err)
	}

	r.restoreSession(sessions)

	quotes := cache.New(r.config.Cache, r.logger)

	var mailer services.Mailer
	if r.config.Email.SendGridKey != "" {
		if m, err := services.NewSendGridMailer(
			r.config.Email.SendGridKey,
			r.config.Email.From,
			r.config.Email.FromName,
		); err == nil {
			mailer = m
		} else {
			r.logger.Warn("mailer disabled", "error", err)
		}
	}

	var controller *tasks.Controller
	if r.market != nil {
		instruments := repositories.NewInstrumentRepository(db)
		candles := repositories.NewCandleRepository(db)
		predictions := repositories.NewPredictionRepository(db)
		users := repositories.NewUserRepository(db)
		alerts := repositories.NewAlertRepository(db)
		notifications := repositories.NewNotificationRepository(db)

		engine := tasks.NewPipelineEngine(r.market, instruments, candles, predictions,
			shared.WithLogger(r.logger, "component", "pipeline"), r.config.Pipeline)
		alertEngine := tasks.NewAlertEngine(r.market, alerts, notifications, users, mailer,
			shared.WithLogger(r.logger, "component", "alerts"),
		)
		controller = tasks.NewController(engine, alertEngine, shared.WithLogger(r.logger, "component", "jobs"))
	} else {
		r.logger.Warn("no Kite credentials configured; pipeline and broker routes degraded")
	}

	router := server.NewRouter(server.Deps{
		DB:       db,
		Sessions: sessions,
		Market:   r.market,
		Google:   r.google,
		Quotes:   quotes,
		Pipeline: controller,
		Config:   r.config,
		Logger:   r.logger,
	})

	port := r.config.Server.Port
	if p := int(cmd.Int("port")); p != 0 {
		port = p
	}
	addr := fmt.Sprintf("%s:%d", r.config.Server.Host, port)

	srv := server.NewServer(addr, router, r.logger)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	r.logger.Info("server started", "addr", addr)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	r.logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	return srv.Shutdown(shutdownCtx)
}

// restoreSession pushes a stored broker token into the market client so
// a restart does not force a fresh login while the token is current.
func (r *Runner) restoreSession(sessions *repositories.SessionRepository) {
	if r.market == nil {
		return
	}

	session, err := sessions.Load()
	if err != nil {
		return
	}
	if session.Stale(time.Now()) {
		r.logger.Warn("stored Kite session is stale; visit /login to refresh")
		return
	}

	if svc, ok := r.market.(interface{ SetAccessToken(string) }); ok {
		svc.SetAccessToken(session.AccessToken)
		r.logger.Info("restored Kite session", "user", session.UserID)
	}
}
