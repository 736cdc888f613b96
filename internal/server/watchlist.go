package server

import (
	"net/http"
	"strings"

	"github.com/omrelabs/omre/internal/repositories"
	"github.com/omrelabs/omre/internal/shared"
)

// WatchlistHandler manages the authenticated user's watchlist.
type WatchlistHandler struct {
	watchlist *repositories.WatchlistRepository
}

// NewWatchlistHandler creates the watchlist handler.
func NewWatchlistHandler(watchlist *repositories.WatchlistRepository) *WatchlistHandler {
	return &WatchlistHandler{watchlist: watchlist}
}

// Routes returns the HTTP routes this handler serves.
func (h *WatchlistHandler) Routes() []string {
	return []string{
		"GET /api/v1/watchlist",
		"POST /api/v1/watchlist",
		"DELETE /api/v1/watchlist/{symbol}",
		"GET /api/v1/watchlist/check/{symbol}",
	}
}

func (h *WatchlistHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserID(r.Context())
	if !ok {
		writeError(w, shared.ErrNotAuthenticated)
		return
	}

	switch r.Pattern {
	case "GET /api/v1/watchlist":
		h.list(w, userID)
	case "POST /api/v1/watchlist":
		h.add(w, r, userID)
	case "DELETE /api/v1/watchlist/{symbol}":
		h.remove(w, r, userID)
	case "GET /api/v1/watchlist/check/{symbol}":
		h.check(w, r, userID)
	default:
		http.NotFound(w, r)
	}
}

func (h *WatchlistHandler) list(w http.ResponseWriter, userID string) {
	items, err := h.watchlist.List(userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"watchlist": items})
}

func (h *WatchlistHandler) add(w http.ResponseWriter, r *http.Request, userID string) {
	var req struct {
		Tradingsymbol string `json:"tradingsymbol"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	if err := h.watchlist.Add(userID, req.Tradingsymbol); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"tradingsymbol": strings.ToUpper(strings.TrimSpace(req.Tradingsymbol))})
}

func (h *WatchlistHandler) remove(w http.ResponseWriter, r *http.Request, userID string) {
	symbol := r.PathValue("symbol")
	if err := h.watchlist.Remove(userID, symbol); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *WatchlistHandler) check(w http.ResponseWriter, r *http.Request, userID string) {
	symbol := strings.ToUpper(strings.TrimSpace(r.PathValue("symbol")))

	items, err := h.watchlist.List(userID)
	if err != nil {
		writeError(w, err)
		return
	}

	found := false
	for _, item := range items {
		if item.Tradingsymbol == symbol {
			found = true
			break
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"tradingsymbol": symbol, "in_watchlist": found})
}
