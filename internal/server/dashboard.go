package server

import (
	"embed"
	"errors"
	"html/template"
	"net/http"
	"time"

	"github.com/charmbracelet/log"

	"github.com/omrelabs/omre/internal/models"
	"github.com/omrelabs/omre/internal/repositories"
	"github.com/omrelabs/omre/internal/shared"
)

//go:embed templates/*.html
var templateFS embed.FS

var dashboardTemplate = template.Must(
	template.New("dashboard.html").
		Funcs(template.FuncMap{"inc": func(i int) int { return i + 1 }}).
		ParseFS(templateFS, "templates/dashboard.html"))

// Broker token status shown on the dashboard and health endpoint.
const (
	TokenActive  = "active"
	TokenExpired = "expired"
	TokenMissing = "missing"
)

// DashboardHandler serves the mobile dashboard page, the legacy top-10
// JSON endpoint, and the health check.
type DashboardHandler struct {
	predictions *repositories.PredictionRepository
	sessions    *repositories.SessionRepository
	logger      *log.Logger
}

// NewDashboardHandler creates the dashboard handler.
func NewDashboardHandler(
	predictions *repositories.PredictionRepository,
	sessions *repositories.SessionRepository,
	logger *log.Logger,
) *DashboardHandler {
	return &DashboardHandler{predictions: predictions, sessions: sessions, logger: logger}
}

// Routes returns the HTTP routes this handler serves.
func (h *DashboardHandler) Routes() []string {
	return []string{"GET /{$}", "GET /health", "GET /api/top10"}
}

func (h *DashboardHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Pattern {
	case "GET /{$}":
		h.page(w, r)
	case "GET /health":
		h.health(w, r)
	case "GET /api/top10":
		h.top10(w, r)
	default:
		http.NotFound(w, r)
	}
}

// tokenStatus classifies the stored broker session.
func (h *DashboardHandler) tokenStatus() string {
	if h.sessions == nil {
		return TokenMissing
	}

	session, err := h.sessions.Load()
	if err != nil {
		if !errors.Is(err, shared.ErrNotAuthenticated) {
			h.logger.Error("failed to load broker session", "error", err)
		}
		return TokenMissing
	}
	if session.Stale(time.Now()) {
		return TokenExpired
	}
	return TokenActive
}

func (h *DashboardHandler) page(w http.ResponseWriter, r *http.Request) {
	predictions, err := h.predictions.Top(10)
	if err != nil {
		h.logger.Error("failed to load predictions", "error", err)
		predictions = nil
	}

	data := struct {
		TokenStatus string
		Regime      models.Regime
		GeneratedAt string
		Predictions []models.Prediction
	}{
		TokenStatus: h.tokenStatus(),
		Regime:      models.RegimeNeutral,
		GeneratedAt: "never",
		Predictions: predictions,
	}
	if len(predictions) > 0 {
		data.Regime = predictions[0].MarketRegime
		data.GeneratedAt = predictions[0].GeneratedAt.Format("02 Jan 15:04 MST")
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := dashboardTemplate.Execute(w, data); err != nil {
		h.logger.Error("failed to render dashboard", "error", err)
	}
}

func (h *DashboardHandler) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"token":  h.tokenStatus(),
	})
}

func (h *DashboardHandler) top10(w http.ResponseWriter, _ *http.Request) {
	predictions, err := h.predictions.Top(10)
	if err != nil {
		writeError(w, err)
		return
	}

	regime := models.RegimeNeutral
	if len(predictions) > 0 {
		regime = predictions[0].MarketRegime
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"market_regime": regime,
		"predictions":   predictions,
	})
}
