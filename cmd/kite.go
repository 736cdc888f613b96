package main

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/omrelabs/omre/internal/repositories"
	"github.com/omrelabs/omre/internal/server"
	"github.com/omrelabs/omre/internal/shared"
	"github.com/urfave/cli/v3"
)

// KiteLogin performs the Kite Connect login flow.
//
// Starts a local HTTP server on the redirect port, opens the browser for
// user authorization, exchanges the request token for a session, and
// stores it for the pipeline and serve commands.
func (r *Runner) KiteLogin(ctx context.Context, cmd *cli.Command) error {
	if r.market == nil {
		return fmt.Errorf("%w: KITE_API_KEY and KITE_API_SECRET must be set", shared.ErrMissingCredentials)
	}

	loginURL := r.market.LoginURL("")
	callback := server.NewCallbackHandler()
	router := server.NewBasicRouter()
	router.Handler(callback)

	serverAddr := r.callbackAddr()
	httpServer := &http.Server{
		Addr:    serverAddr,
		Handler: router,
	}

	serverErrors := make(chan error, 1)
	go func() {
		r.logger.Infof("starting callback server at %v", serverAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrors <- err
		}
	}()

	time.Sleep(100 * time.Millisecond)

	r.writePlain("→ Opening browser for Kite login...\n")
	if err := shared.OpenBrowser(loginURL); err != nil {
		r.logger.Warnf("failed to open browser automatically %v", err)
		r.writePlain("Please open this URL in your browser:\n%s\n\n", loginURL)
	}

	r.writePlain("→ Waiting for authorization (2 minute timeout)...\n")

	timeout := time.NewTimer(2 * time.Minute)
	defer timeout.Stop()

	var result server.CallbackResult

	select {
	case result = <-callback.Result():
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)
	case <-timeout.C:
		return fmt.Errorf("%w: authorization timed out after 2 minutes", shared.ErrTimeout)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		r.logger.Warn("error shutting down server", "error", err)
	}

	if result.Error() != nil {
		return fmt.Errorf("%w: %v", shared.ErrAuthFailed, result.Error())
	}

	session, err := r.market.GenerateSession(ctx, result.RequestToken)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrAuthFailed, err)
	}

	db, err := r.openStore()
	if err != nil {
		return err
	}
	defer db.Close()

	sessions, err := repositories.NewSessionRepository(db)
	if err != nil {
		return err
	}
	if err := sessions.Save(session); err != nil {
		return fmt.Errorf("failed to store session: %w", err)
	}

	r.writePlain("✓ Login successful\n")
	r.writePlain("User: %s (%s)\n", session.UserName, session.UserID)
	r.writePlain("You can now run: omre pipeline run all\n")

	return nil
}

// KiteStatus reports the stored session and whether its token is still
// within today's cycle.
func (r *Runner) KiteStatus(ctx context.Context, cmd *cli.Command) error {
	db, err := r.openStore()
	if err != nil {
		return err
	}
	defer db.Close()

	sessions, err := repositories.NewSessionRepository(db)
	if err != nil {
		return err
	}

	session, err := sessions.Load()
	if err != nil {
		r.writePlain("✗ No stored Kite session\n")
		r.writePlain("Run 'omre kite login' to authenticate\n")
		return nil
	}

	r.writePlain("User: %s (%s)\n", session.UserName, session.UserID)
	r.writePlain("Logged in: %s\n", session.LoginTime.Format("02 Jan 2006 15:04 MST"))
	if session.Stale(time.Now()) {
		r.writePlain("Token: ✗ stale (broker tokens expire daily)\n")
		r.writePlain("Run 'omre kite login' to refresh\n")
	} else {
		r.writePlain("Token: ✓ active\n")
	}

	return nil
}

// callbackAddr derives the listen address from the configured redirect
// URL so the browser lands on the local callback server.
func (r *Runner) callbackAddr() string {
	if redirect := r.config.Credentials.Kite.RedirectURL; redirect != "" {
		if u, err := url.Parse(redirect); err == nil && u.Host != "" {
			return u.Host
		}
	}
	return fmt.Sprintf("%s:%d", r.config.Server.Host, r.config.Server.Port)
}
