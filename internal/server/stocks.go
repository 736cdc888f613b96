package server

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/omrelabs/omre/internal/models"
	"github.com/omrelabs/omre/internal/repositories"
)

// StocksHandler serves prediction and instrument lookups for the
// dashboard's stock views.
type StocksHandler struct {
	predictions *repositories.PredictionRepository
	instruments *repositories.InstrumentRepository
	candles     *repositories.CandleRepository
	quotes      *QuoteProvider
}

// NewStocksHandler creates the stocks handler.
func NewStocksHandler(
	predictions *repositories.PredictionRepository,
	instruments *repositories.InstrumentRepository,
	candles *repositories.CandleRepository,
	quotes *QuoteProvider,
) *StocksHandler {
	return &StocksHandler{predictions: predictions, instruments: instruments, candles: candles, quotes: quotes}
}

// Routes returns the HTTP routes this handler serves.
func (h *StocksHandler) Routes() []string {
	return []string{
		"GET /api/v1/stocks/top-scorers",
		"GET /api/v1/stocks/search",
		"GET /api/v1/stocks/{symbol}",
		"GET /api/v1/stocks/{symbol}/history",
	}
}

func (h *StocksHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Pattern {
	case "GET /api/v1/stocks/top-scorers":
		h.topScorers(w, r)
	case "GET /api/v1/stocks/search":
		h.search(w, r)
	case "GET /api/v1/stocks/{symbol}":
		h.detail(w, r)
	case "GET /api/v1/stocks/{symbol}/history":
		h.history(w, r)
	default:
		http.NotFound(w, r)
	}
}

func (h *StocksHandler) topScorers(w http.ResponseWriter, r *http.Request) {
	limit := intQuery(r, "limit", 10)
	predictions, err := h.predictions.Top(limit)
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
		"stocks":        predictions,
	})
}

func (h *StocksHandler) search(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	results, err := h.instruments.Search(q, intQuery(r, "limit", 20))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"results": results})
}

func (h *StocksHandler) detail(w http.ResponseWriter, r *http.Request) {
	symbol := strings.ToUpper(r.PathValue("symbol"))

	instrument, err := h.instruments.GetBySymbol(symbol)
	if err != nil {
		writeError(w, err)
		return
	}

	response := map[string]any{"instrument": instrument}

	if prediction, err := h.predictions.GetBySymbol(symbol); err == nil {
		response["prediction"] = prediction
	}
	if price, err := h.quotes.Price(r.Context(), symbol); err == nil {
		response["last_price"] = price
	}

	writeJSON(w, http.StatusOK, response)
}

func (h *StocksHandler) history(w http.ResponseWriter, r *http.Request) {
	symbol := strings.ToUpper(r.PathValue("symbol"))

	instrument, err := h.instruments.GetBySymbol(symbol)
	if err != nil {
		writeError(w, err)
		return
	}

	days := intQuery(r, "days", 365)
	candles, err := h.candles.History(instrument.InstrumentToken, days)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"tradingsymbol": symbol,
		"candles":       candles,
	})
}

// intQuery reads a positive integer query parameter with a default.
func intQuery(r *http.Request, key string, fallback int) int {
	value := r.URL.Query().Get(key)
	if value == "" {
		return fallback
	}
	n, err := strconv.Atoi(value)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}
