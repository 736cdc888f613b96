package server

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/charmbracelet/log"

	"github.com/omrelabs/omre/internal/repositories"
	"github.com/omrelabs/omre/internal/services"
	"github.com/omrelabs/omre/internal/shared"
	"github.com/omrelabs/omre/internal/tasks"
)

// BrokerAuthHandler runs the broker login flow on the web surface:
// /login redirects to the broker, /callback exchanges the request token,
// persists the session, and kicks off a full pipeline run.
type BrokerAuthHandler struct {
	market   services.MarketService
	sessions *repositories.SessionRepository
	pipeline *tasks.Controller
	logger   *log.Logger
}

// NewBrokerAuthHandler creates the broker auth handler.
func NewBrokerAuthHandler(
	market services.MarketService,
	sessions *repositories.SessionRepository,
	pipeline *tasks.Controller,
	logger *log.Logger,
) *BrokerAuthHandler {
	return &BrokerAuthHandler{market: market, sessions: sessions, pipeline: pipeline, logger: logger}
}

// Routes returns the HTTP routes this handler serves.
func (h *BrokerAuthHandler) Routes() []string {
	return []string{"GET /login", "GET /callback"}
}

func (h *BrokerAuthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Pattern {
	case "GET /login":
		h.login(w, r)
	case "GET /callback":
		h.callback(w, r)
	default:
		http.NotFound(w, r)
	}
}

func (h *BrokerAuthHandler) login(w http.ResponseWriter, r *http.Request) {
	if h.market == nil {
		writeError(w, fmt.Errorf("%w: broker credentials not configured", shared.ErrServiceUnavailable))
		return
	}
	http.Redirect(w, r, h.market.LoginURL(""), http.StatusFound)
}

func (h *BrokerAuthHandler) callback(w http.ResponseWriter, r *http.Request) {
	if h.market == nil {
		writeError(w, fmt.Errorf("%w: broker credentials not configured", shared.ErrServiceUnavailable))
		return
	}

	requestToken := r.URL.Query().Get("request_token")
	if requestToken == "" {
		status := r.URL.Query().Get("status")
		writeError(w, fmt.Errorf("%w: no request token in callback (status=%s)", shared.ErrAuthFailed, status))
		return
	}

	session, err := h.market.GenerateSession(r.Context(), requestToken)
	if err != nil {
		writeError(w, err)
		return
	}

	if h.sessions != nil {
		if err := h.sessions.Save(session); err != nil {
			writeError(w, err)
			return
		}
	}

	// The engine's client needs the fresh token for the pipeline run.
	if setter, ok := h.market.(interface{ SetAccessToken(string) }); ok {
		setter.SetAccessToken(session.AccessToken)
	}

	h.logger.Info("broker session established", "user", session.UserID)

	if h.pipeline != nil {
		if err := h.pipeline.Run(tasks.JobAll); err != nil && !errors.Is(err, shared.ErrJobRunning) {
			h.logger.Error("failed to start pipeline after login", "error", err)
		}
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprintf(w, successPage, "Login Successful", "Market data refresh has started. You can return to the dashboard.")
}

// successPage is the minimal page shown after a completed browser flow.
const successPage = `
<!DOCTYPE html>
<html>
<head>
    <title>%[1]s</title>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, sans-serif;
               display: flex; align-items: center; justify-content: center; height: 100vh;
               margin: 0; background: #f5f5f5; }
        .container { text-align: center; background: white; padding: 2rem;
                     border-radius: 8px; box-shadow: 0 2px 4px rgba(0,0,0,0.1); }
        h1 { color: #387ed1; margin: 0 0 1rem 0; }
        p { color: #666; margin: 0; }
    </style>
</head>
<body>
    <div class="container">
        <h1>&#10003; %[1]s</h1>
        <p>%[2]s</p>
    </div>
</body>
</html>
`
