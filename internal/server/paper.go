package server

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/omrelabs/omre/internal/models"
	"github.com/omrelabs/omre/internal/repositories"
	"github.com/omrelabs/omre/internal/shared"
)

// PaperHandler serves the paper trading surface: market orders filled
// at the live quote, portfolio state, trade history, and reset.
type PaperHandler struct {
	portfolios *repositories.PortfolioRepository
	quotes     *QuoteProvider
}

// NewPaperHandler creates the paper trading handler.
func NewPaperHandler(portfolios *repositories.PortfolioRepository, quotes *QuoteProvider) *PaperHandler {
	return &PaperHandler{portfolios: portfolios, quotes: quotes}
}

// Routes returns the HTTP routes this handler serves.
func (h *PaperHandler) Routes() []string {
	return []string{
		"POST /api/v1/paper/trade",
		"GET /api/v1/paper/portfolio",
		"GET /api/v1/paper/history",
		"POST /api/v1/paper/reset",
	}
}

func (h *PaperHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserID(r.Context())
	if !ok {
		writeError(w, shared.ErrNotAuthenticated)
		return
	}

	switch r.Pattern {
	case "POST /api/v1/paper/trade":
		h.trade(w, r, userID)
	case "GET /api/v1/paper/portfolio":
		h.portfolio(w, r, userID)
	case "GET /api/v1/paper/history":
		h.history(w, r, userID)
	case "POST /api/v1/paper/reset":
		h.reset(w, userID)
	default:
		http.NotFound(w, r)
	}
}

type tradeRequest struct {
	Tradingsymbol string `json:"tradingsymbol"`
	Side          string `json:"side"`
	Quantity      int    `json:"quantity"`
}

func (h *PaperHandler) trade(w http.ResponseWriter, r *http.Request, userID string) {
	var req tradeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	side := models.Side(strings.ToUpper(strings.TrimSpace(req.Side)))
	if side != models.SideBuy && side != models.SideSell {
		writeError(w, fmt.Errorf("%w: side must be BUY or SELL", shared.ErrInvalidInput))
		return
	}

	symbol := strings.ToUpper(strings.TrimSpace(req.Tradingsymbol))
	if symbol == "" {
		writeError(w, fmt.Errorf("%w: tradingsymbol is required", shared.ErrInvalidInput))
		return
	}

	price, err := h.quotes.Price(r.Context(), symbol)
	if err != nil {
		writeError(w, err)
		return
	}

	portfolio, err := h.portfolios.GetOrCreate(userID)
	if err != nil {
		writeError(w, err)
		return
	}

	transaction, err := h.portfolios.ExecuteTrade(portfolio.ID, side, symbol, req.Quantity, price)
	if err != nil {
		writeError(w, err)
		return
	}

	updated, err := h.portfolios.GetOrCreate(userID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"transaction":  transaction,
		"cash_balance": updated.CashBalance,
	})
}

func (h *PaperHandler) portfolio(w http.ResponseWriter, r *http.Request, userID string) {
	portfolio, err := h.portfolios.GetOrCreate(userID)
	if err != nil {
		writeError(w, err)
		return
	}

	positions, err := h.portfolios.Positions(portfolio.ID)
	if err != nil {
		writeError(w, err)
		return
	}

	type positionView struct {
		models.Position
		LastPrice    float64 `json:"last_price,omitempty"`
		UnrealizedPL float64 `json:"unrealized_pnl,omitempty"`
	}

	views := make([]positionView, 0, len(positions))
	invested := 0.0
	for _, position := range positions {
		view := positionView{Position: position}
		if price, err := h.quotes.Price(r.Context(), position.Tradingsymbol); err == nil {
			view.LastPrice = price
			view.UnrealizedPL = position.UnrealizedPnL(price)
		}
		invested += float64(position.Quantity) * position.AveragePrice
		views = append(views, view)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"cash_balance": portfolio.CashBalance,
		"invested":     invested,
		"positions":    views,
	})
}

func (h *PaperHandler) history(w http.ResponseWriter, r *http.Request, userID string) {
	portfolio, err := h.portfolios.GetOrCreate(userID)
	if err != nil {
		writeError(w, err)
		return
	}

	transactions, err := h.portfolios.Transactions(portfolio.ID, intQuery(r, "limit", 50))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"transactions": transactions})
}

func (h *PaperHandler) reset(w http.ResponseWriter, userID string) {
	portfolio, err := h.portfolios.GetOrCreate(userID)
	if err != nil {
		writeError(w, err)
		return
	}

	if err := h.portfolios.Reset(portfolio.ID); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"cash_balance": float64(models.StartingBalance)})
}
