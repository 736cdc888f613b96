package server

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/omrelabs/omre/internal/models"
	"github.com/omrelabs/omre/internal/repositories"
	"github.com/omrelabs/omre/internal/shared"
)

// AlertsHandler manages price alerts and in-app notifications for the
// authenticated user.
type AlertsHandler struct {
	alerts        *repositories.AlertRepository
	notifications *repositories.NotificationRepository
}

// NewAlertsHandler creates the alerts handler.
func NewAlertsHandler(
	alerts *repositories.AlertRepository,
	notifications *repositories.NotificationRepository,
) *AlertsHandler {
	return &AlertsHandler{alerts: alerts, notifications: notifications}
}

// Routes returns the HTTP routes this handler serves.
func (h *AlertsHandler) Routes() []string {
	return []string{
		"POST /api/v1/alerts",
		"GET /api/v1/alerts",
		"DELETE /api/v1/alerts/{id}",
		"GET /api/v1/notifications",
		"PUT /api/v1/notifications/{id}/read",
		"PUT /api/v1/notifications/read-all",
	}
}

func (h *AlertsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserID(r.Context())
	if !ok {
		writeError(w, shared.ErrNotAuthenticated)
		return
	}

	switch r.Pattern {
	case "POST /api/v1/alerts":
		h.create(w, r, userID)
	case "GET /api/v1/alerts":
		h.list(w, userID)
	case "DELETE /api/v1/alerts/{id}":
		h.remove(w, r, userID)
	case "GET /api/v1/notifications":
		h.notificationsList(w, r, userID)
	case "PUT /api/v1/notifications/{id}/read":
		h.markRead(w, r, userID)
	case "PUT /api/v1/notifications/read-all":
		h.markAllRead(w, userID)
	default:
		http.NotFound(w, r)
	}
}

type alertRequest struct {
	Tradingsymbol string  `json:"tradingsymbol"`
	Condition     string  `json:"condition"`
	TargetPrice   float64 `json:"target_price"`
}

func (h *AlertsHandler) create(w http.ResponseWriter, r *http.Request, userID string) {
	var req alertRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	alert := &models.PriceAlert{
		UserID:        userID,
		Tradingsymbol: strings.ToUpper(strings.TrimSpace(req.Tradingsymbol)),
		Condition:     models.AlertCondition(strings.ToUpper(strings.TrimSpace(req.Condition))),
		TargetPrice:   req.TargetPrice,
	}
	if err := h.alerts.Create(alert); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, alert)
}

func (h *AlertsHandler) list(w http.ResponseWriter, userID string) {
	alerts, err := h.alerts.ListByUser(userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"alerts": alerts})
}

func (h *AlertsHandler) remove(w http.ResponseWriter, r *http.Request, userID string) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}

	if err := h.alerts.Delete(id, userID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AlertsHandler) notificationsList(w http.ResponseWriter, r *http.Request, userID string) {
	notifications, err := h.notifications.ListByUser(userID, intQuery(r, "limit", 50))
	if err != nil {
		writeError(w, err)
		return
	}

	unread, err := h.notifications.UnreadCount(userID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"notifications": notifications,
		"unread":        unread,
	})
}

func (h *AlertsHandler) markRead(w http.ResponseWriter, r *http.Request, userID string) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}

	if err := h.notifications.MarkRead(id, userID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AlertsHandler) markAllRead(w http.ResponseWriter, userID string) {
	if err := h.notifications.MarkAllRead(userID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// pathID parses the numeric {id} path segment.
func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		return 0, shared.ErrInvalidArgument
	}
	return id, nil
}
