package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/omrelabs/omre/internal/cache"
	"github.com/omrelabs/omre/internal/models"
	"github.com/omrelabs/omre/internal/repositories"
	"github.com/omrelabs/omre/internal/shared"
	"github.com/omrelabs/omre/internal/tasks"
	tu "github.com/omrelabs/omre/internal/testing"
)

type appFixture struct {
	db          *sql.DB
	market      *tu.MockMarket
	sessions    *repositories.SessionRepository
	predictions *repositories.PredictionRepository
	instruments *repositories.InstrumentRepository
	router      *BasicRouter
	cfg         *shared.Config
}

func newAppFixture(t *testing.T) *appFixture {
	t.Helper()

	db := tu.SetupDB(t)
	logger := shared.NewLogger(io.Discard)

	sessions, err := repositories.NewSessionRepository(db)
	if err != nil {
		t.Fatalf("failed to create session store: %v", err)
	}

	market := &tu.MockMarket{}
	cfg := shared.DefaultConfig()

	engine := tasks.NewPipelineEngine(
		market,
		repositories.NewInstrumentRepository(db),
		repositories.NewCandleRepository(db),
		repositories.NewPredictionRepository(db),
		logger, cfg.Pipeline)
	controller := tasks.NewController(engine, nil, logger)

	router := NewRouter(Deps{
		DB:       db,
		Sessions: sessions,
		Market:   market,
		Quotes:   cache.NewMemoryCache(128, time.Minute),
		Pipeline: controller,
		Config:   cfg,
		Logger:   logger,
	})

	return &appFixture{
		db:          db,
		market:      market,
		sessions:    sessions,
		predictions: repositories.NewPredictionRepository(db),
		instruments: repositories.NewInstrumentRepository(db),
		router:      router,
		cfg:         cfg,
	}
}

func (f *appFixture) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to encode body: %v", err)
		}
		reader = strings.NewReader(string(encoded))
	}

	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	recorder := httptest.NewRecorder()
	f.router.ServeHTTP(recorder, req)
	return recorder
}

func (f *appFixture) signup(t *testing.T, email string) string {
	t.Helper()

	resp := f.do(t, http.MethodPost, "/api/v1/auth/signup", "", map[string]string{
		"email":     email,
		"password":  "hunter22",
		"full_name": "Test Trader",
	})
	if resp.Code != http.StatusCreated {
		t.Fatalf("signup failed with status %d: %s", resp.Code, resp.Body.String())
	}

	var body struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to decode signup response: %v", err)
	}
	return body.Token
}

func seedPrediction(t *testing.T, f *appFixture, symbol string, score float64) {
	t.Helper()

	if err := f.instruments.Upsert([]models.Instrument{{
		InstrumentToken: int64(len(symbol)*1000 + int(score*100)),
		Tradingsymbol:   symbol,
		Name:            symbol + " Ltd",
		Exchange:        "NSE",
		LotSize:         1,
		IsActive:        true,
	}}); err != nil {
		t.Fatalf("failed to seed instrument: %v", err)
	}

	top, _ := f.predictions.Top(100)
	top = append(top, models.Prediction{
		InstrumentToken: int64(len(symbol)*1000 + int(score*100)),
		Tradingsymbol:   symbol,
		Score:           score,
		Signal:          models.SignalBuy,
		LastClose:       100,
		StopLoss:        90,
		Target:          115,
		MarketRegime:    models.RegimeBullish,
		GeneratedAt:     time.Now().UTC(),
	})
	if err := f.predictions.ReplaceAll(top); err != nil {
		t.Fatalf("failed to seed prediction: %v", err)
	}
}

func TestDashboard(t *testing.T) {
	f := newAppFixture(t)

	t.Run("PageRendersWithoutToken", func(t *testing.T) {
		resp := f.do(t, http.MethodGet, "/", "", nil)
		if resp.Code != http.StatusOK {
			t.Fatalf("Expected 200, got %d", resp.Code)
		}
		page := resp.Body.String()
		if !strings.Contains(page, "OMRE") || !strings.Contains(page, "missing") {
			t.Errorf("Dashboard missing expected content")
		}
		if !strings.Contains(page, "No predictions yet") {
			t.Errorf("Expected empty state on fresh database")
		}
	})

	t.Run("HealthReportsTokenStatus", func(t *testing.T) {
		resp := f.do(t, http.MethodGet, "/health", "", nil)
		if resp.Code != http.StatusOK {
			t.Fatalf("Expected 200, got %d", resp.Code)
		}

		var body map[string]string
		if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
			t.Fatalf("failed to decode health: %v", err)
		}
		if body["status"] != "ok" || body["token"] != TokenMissing {
			t.Errorf("Unexpected health body: %v", body)
		}
	})

	t.Run("HealthWithFreshSession", func(t *testing.T) {
		err := f.sessions.Save(&models.KiteSession{
			UserID:      "AB1234",
			APIKey:      "key",
			AccessToken: "token",
			LoginTime:   time.Now(),
		})
		if err != nil {
			t.Fatalf("failed to save session: %v", err)
		}

		resp := f.do(t, http.MethodGet, "/health", "", nil)
		var body map[string]string
		if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
			t.Fatalf("failed to decode health: %v", err)
		}
		if body["token"] != TokenActive {
			t.Errorf("Expected active token, got %q", body["token"])
		}
	})

	t.Run("Top10", func(t *testing.T) {
		seedPrediction(t, f, "TCS", 0.91)
		seedPrediction(t, f, "INFY", 0.74)

		resp := f.do(t, http.MethodGet, "/api/top10", "", nil)
		if resp.Code != http.StatusOK {
			t.Fatalf("Expected 200, got %d", resp.Code)
		}

		var body struct {
			MarketRegime string              `json:"market_regime"`
			Predictions  []models.Prediction `json:"predictions"`
		}
		if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
			t.Fatalf("failed to decode top10: %v", err)
		}
		if body.MarketRegime != "BULLISH" {
			t.Errorf("Expected BULLISH regime, got %q", body.MarketRegime)
		}
		if len(body.Predictions) != 2 || body.Predictions[0].Tradingsymbol != "TCS" {
			t.Errorf("Expected TCS first by score, got %v", body.Predictions)
		}
	})

	t.Run("UnknownPathIs404", func(t *testing.T) {
		resp := f.do(t, http.MethodGet, "/nope", "", nil)
		if resp.Code != http.StatusNotFound {
			t.Errorf("Expected 404, got %d", resp.Code)
		}
	})
}

func TestBrokerLoginFlow(t *testing.T) {
	f := newAppFixture(t)

	f.market.LoginURLFunc = func(state string) string {
		return "https://broker.example.com/connect/login?v=3&api_key=key"
	}
	f.market.GenerateSessionFunc = func(ctx context.Context, requestToken string) (*models.KiteSession, error) {
		if requestToken != "req123" {
			return nil, fmt.Errorf("%w: bad request token", shared.ErrAuthFailed)
		}
		return &models.KiteSession{
			UserID:      "AB1234",
			APIKey:      "key",
			AccessToken: "fresh-token",
			LoginTime:   time.Now(),
		}, nil
	}
	f.market.InstrumentsFunc = func(ctx context.Context) ([]models.Instrument, error) {
		return nil, nil
	}

	t.Run("LoginRedirects", func(t *testing.T) {
		resp := f.do(t, http.MethodGet, "/login", "", nil)
		if resp.Code != http.StatusFound {
			t.Fatalf("Expected 302, got %d", resp.Code)
		}
		if !strings.Contains(resp.Header().Get("Location"), "broker.example.com") {
			t.Errorf("Unexpected redirect target: %s", resp.Header().Get("Location"))
		}
	})

	t.Run("CallbackPersistsSession", func(t *testing.T) {
		resp := f.do(t, http.MethodGet, "/callback?request_token=req123", "", nil)
		if resp.Code != http.StatusOK {
			t.Fatalf("Expected 200, got %d: %s", resp.Code, resp.Body.String())
		}

		session, err := f.sessions.Load()
		if err != nil {
			t.Fatalf("session not persisted: %v", err)
		}
		if session.AccessToken != "fresh-token" {
			t.Errorf("Expected fresh token, got %q", session.AccessToken)
		}
	})

	t.Run("CallbackWithoutToken", func(t *testing.T) {
		resp := f.do(t, http.MethodGet, "/callback?status=cancelled", "", nil)
		if resp.Code != http.StatusUnauthorized {
			t.Errorf("Expected 401, got %d", resp.Code)
		}
	})
}

func TestPipelineEndpoints(t *testing.T) {
	f := newAppFixture(t)
	f.market.InstrumentsFunc = func(ctx context.Context) ([]models.Instrument, error) {
		return nil, nil
	}

	t.Run("UnknownJob", func(t *testing.T) {
		resp := f.do(t, http.MethodGet, "/run/defrag", "", nil)
		if resp.Code != http.StatusNotFound {
			t.Errorf("Expected 404, got %d", resp.Code)
		}
	})

	t.Run("RunAndStatus", func(t *testing.T) {
		resp := f.do(t, http.MethodGet, "/run/fetch", "", nil)
		if resp.Code != http.StatusAccepted {
			t.Fatalf("Expected 202, got %d: %s", resp.Code, resp.Body.String())
		}

		deadline := time.Now().Add(2 * time.Second)
		for time.Now().Before(deadline) {
			resp = f.do(t, http.MethodGet, "/status", "", nil)
			var statuses map[string]tasks.JobStatus
			if err := json.Unmarshal(resp.Body.Bytes(), &statuses); err != nil {
				t.Fatalf("failed to decode status: %v", err)
			}
			if statuses["fetch"].State == tasks.JobDone {
				return
			}
			if statuses["fetch"].State == tasks.JobFailed {
				t.Fatalf("fetch job failed: %s", statuses["fetch"].Error)
			}
			time.Sleep(5 * time.Millisecond)
		}
		t.Fatal("fetch job never finished")
	})

	t.Run("StopIdleJob", func(t *testing.T) {
		resp := f.do(t, http.MethodGet, "/stop/scoring", "", nil)
		if resp.Code != http.StatusNotFound {
			t.Errorf("Expected 404 for stopping an idle job, got %d", resp.Code)
		}
	})
}

func TestAuthAndUsers(t *testing.T) {
	f := newAppFixture(t)

	token := f.signup(t, "trader@example.com")

	t.Run("DuplicateSignup", func(t *testing.T) {
		resp := f.do(t, http.MethodPost, "/api/v1/auth/signup", "", map[string]string{
			"email": "trader@example.com", "password": "hunter22", "full_name": "Again",
		})
		if resp.Code == http.StatusCreated {
			t.Error("Expected duplicate signup to fail")
		}
	})

	t.Run("LoginRightPassword", func(t *testing.T) {
		resp := f.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
			"email": "trader@example.com", "password": "hunter22",
		})
		if resp.Code != http.StatusOK {
			t.Errorf("Expected 200, got %d", resp.Code)
		}
	})

	t.Run("LoginWrongPassword", func(t *testing.T) {
		resp := f.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
			"email": "trader@example.com", "password": "wrong",
		})
		if resp.Code != http.StatusUnauthorized {
			t.Errorf("Expected 401, got %d", resp.Code)
		}
	})

	t.Run("LoginUnknownUser", func(t *testing.T) {
		resp := f.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
			"email": "ghost@example.com", "password": "hunter22",
		})
		if resp.Code != http.StatusUnauthorized {
			t.Errorf("Expected 401, got %d", resp.Code)
		}
	})

	t.Run("Me", func(t *testing.T) {
		resp := f.do(t, http.MethodGet, "/api/v1/users/me", token, nil)
		if resp.Code != http.StatusOK {
			t.Fatalf("Expected 200, got %d", resp.Code)
		}

		var user models.User
		if err := json.Unmarshal(resp.Body.Bytes(), &user); err != nil {
			t.Fatalf("failed to decode user: %v", err)
		}
		if user.Email != "trader@example.com" {
			t.Errorf("Unexpected user: %v", user)
		}
	})

	t.Run("MeWithoutToken", func(t *testing.T) {
		resp := f.do(t, http.MethodGet, "/api/v1/users/me", "", nil)
		if resp.Code != http.StatusUnauthorized {
			t.Errorf("Expected 401, got %d", resp.Code)
		}
	})

	t.Run("MeWithGarbageToken", func(t *testing.T) {
		resp := f.do(t, http.MethodGet, "/api/v1/users/me", "not-a-jwt", nil)
		if resp.Code != http.StatusUnauthorized {
			t.Errorf("Expected 401, got %d", resp.Code)
		}
	})

	t.Run("GoogleLoginUnconfigured", func(t *testing.T) {
		resp := f.do(t, http.MethodGet, "/api/v1/auth/google/login", "", nil)
		if resp.Code != http.StatusServiceUnavailable {
			t.Errorf("Expected 503, got %d", resp.Code)
		}
	})
}

func TestWatchlistEndpoints(t *testing.T) {
	f := newAppFixture(t)
	token := f.signup(t, "watcher@example.com")

	t.Run("AddAndList", func(t *testing.T) {
		resp := f.do(t, http.MethodPost, "/api/v1/watchlist", token, map[string]string{"tradingsymbol": "tcs"})
		if resp.Code != http.StatusCreated {
			t.Fatalf("Expected 201, got %d: %s", resp.Code, resp.Body.String())
		}

		resp = f.do(t, http.MethodGet, "/api/v1/watchlist", token, nil)
		var body struct {
			Watchlist []models.WatchlistItem `json:"watchlist"`
		}
		if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
			t.Fatalf("failed to decode watchlist: %v", err)
		}
		if len(body.Watchlist) != 1 || body.Watchlist[0].Tradingsymbol != "TCS" {
			t.Errorf("Expected normalized TCS entry, got %v", body.Watchlist)
		}
	})

	t.Run("Check", func(t *testing.T) {
		resp := f.do(t, http.MethodGet, "/api/v1/watchlist/check/tcs", token, nil)
		var body struct {
			InWatchlist bool `json:"in_watchlist"`
		}
		if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
			t.Fatalf("failed to decode check: %v", err)
		}
		if !body.InWatchlist {
			t.Error("Expected TCS to be in the watchlist")
		}
	})

	t.Run("Remove", func(t *testing.T) {
		resp := f.do(t, http.MethodDelete, "/api/v1/watchlist/TCS", token, nil)
		if resp.Code != http.StatusNoContent {
			t.Fatalf("Expected 204, got %d", resp.Code)
		}

		resp = f.do(t, http.MethodDelete, "/api/v1/watchlist/TCS", token, nil)
		if resp.Code != http.StatusNotFound {
			t.Errorf("Expected 404 on double remove, got %d", resp.Code)
		}
	})

	t.Run("Unauthenticated", func(t *testing.T) {
		resp := f.do(t, http.MethodGet, "/api/v1/watchlist", "", nil)
		if resp.Code != http.StatusUnauthorized {
			t.Errorf("Expected 401, got %d", resp.Code)
		}
	})
}

func TestPaperTradingEndpoints(t *testing.T) {
	f := newAppFixture(t)
	token := f.signup(t, "paper@example.com")

	f.market.QuoteFunc = func(ctx context.Context, symbols []string) (map[string]float64, error) {
		return map[string]float64{"TCS": 4000}, nil
	}

	t.Run("FreshPortfolio", func(t *testing.T) {
		resp := f.do(t, http.MethodGet, "/api/v1/paper/portfolio", token, nil)
		if resp.Code != http.StatusOK {
			t.Fatalf("Expected 200, got %d: %s", resp.Code, resp.Body.String())
		}

		var body struct {
			CashBalance float64 `json:"cash_balance"`
		}
		if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
			t.Fatalf("failed to decode portfolio: %v", err)
		}
		if body.CashBalance != models.StartingBalance {
			t.Errorf("Expected starting balance, got %v", body.CashBalance)
		}
	})

	t.Run("BuyAtQuote", func(t *testing.T) {
		resp := f.do(t, http.MethodPost, "/api/v1/paper/trade", token, map[string]any{
			"tradingsymbol": "TCS", "side": "buy", "quantity": 10,
		})
		if resp.Code != http.StatusCreated {
			t.Fatalf("Expected 201, got %d: %s", resp.Code, resp.Body.String())
		}

		var body struct {
			CashBalance float64            `json:"cash_balance"`
			Transaction models.Transaction `json:"transaction"`
		}
		if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
			t.Fatalf("failed to decode trade: %v", err)
		}
		if body.Transaction.Price != 4000 {
			t.Errorf("Expected fill at the quote, got %v", body.Transaction.Price)
		}
		if body.CashBalance != models.StartingBalance-40000 {
			t.Errorf("Expected debited balance, got %v", body.CashBalance)
		}
	})

	t.Run("InvalidSide", func(t *testing.T) {
		resp := f.do(t, http.MethodPost, "/api/v1/paper/trade", token, map[string]any{
			"tradingsymbol": "TCS", "side": "HOLD", "quantity": 10,
		})
		if resp.Code != http.StatusBadRequest {
			t.Errorf("Expected 400, got %d", resp.Code)
		}
	})

	t.Run("InsufficientFunds", func(t *testing.T) {
		resp := f.do(t, http.MethodPost, "/api/v1/paper/trade", token, map[string]any{
			"tradingsymbol": "TCS", "side": "BUY", "quantity": 1000000,
		})
		if resp.Code != http.StatusUnprocessableEntity {
			t.Errorf("Expected 422, got %d", resp.Code)
		}
	})

	t.Run("UnknownSymbol", func(t *testing.T) {
		resp := f.do(t, http.MethodPost, "/api/v1/paper/trade", token, map[string]any{
			"tradingsymbol": "NOPE", "side": "BUY", "quantity": 1,
		})
		if resp.Code != http.StatusServiceUnavailable {
			t.Errorf("Expected 503 when no price is available, got %d", resp.Code)
		}
	})

	t.Run("HistoryAndReset", func(t *testing.T) {
		resp := f.do(t, http.MethodGet, "/api/v1/paper/history", token, nil)
		var history struct {
			Transactions []models.Transaction `json:"transactions"`
		}
		if err := json.Unmarshal(resp.Body.Bytes(), &history); err != nil {
			t.Fatalf("failed to decode history: %v", err)
		}
		if len(history.Transactions) != 1 {
			t.Fatalf("Expected 1 transaction, got %d", len(history.Transactions))
		}

		resp = f.do(t, http.MethodPost, "/api/v1/paper/reset", token, nil)
		if resp.Code != http.StatusOK {
			t.Fatalf("Expected 200, got %d", resp.Code)
		}

		resp = f.do(t, http.MethodGet, "/api/v1/paper/portfolio", token, nil)
		var body struct {
			CashBalance float64 `json:"cash_balance"`
		}
		if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
			t.Fatalf("failed to decode portfolio: %v", err)
		}
		if body.CashBalance != models.StartingBalance {
			t.Errorf("Expected starting balance after reset, got %v", body.CashBalance)
		}
	})
}

func TestStocksEndpoints(t *testing.T) {
	f := newAppFixture(t)
	seedPrediction(t, f, "TCS", 0.88)

	t.Run("TopScorers", func(t *testing.T) {
		resp := f.do(t, http.MethodGet, "/api/v1/stocks/top-scorers", "", nil)
		if resp.Code != http.StatusOK {
			t.Fatalf("Expected 200, got %d", resp.Code)
		}

		var body struct {
			MarketRegime string              `json:"market_regime"`
			Stocks       []models.Prediction `json:"stocks"`
		}
		if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
			t.Fatalf("failed to decode: %v", err)
		}
		if len(body.Stocks) != 1 || body.MarketRegime != "BULLISH" {
			t.Errorf("Unexpected top scorers: %+v", body)
		}
	})

	t.Run("Search", func(t *testing.T) {
		resp := f.do(t, http.MethodGet, "/api/v1/stocks/search?q=tc", "", nil)
		var body struct {
			Results []models.Instrument `json:"results"`
		}
		if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
			t.Fatalf("failed to decode: %v", err)
		}
		if len(body.Results) != 1 {
			t.Errorf("Expected 1 result, got %d", len(body.Results))
		}
	})

	t.Run("DetailUnknownSymbol", func(t *testing.T) {
		resp := f.do(t, http.MethodGet, "/api/v1/stocks/GHOST", "", nil)
		if resp.Code != http.StatusNotFound {
			t.Errorf("Expected 404, got %d", resp.Code)
		}
	})

	t.Run("Detail", func(t *testing.T) {
		resp := f.do(t, http.MethodGet, "/api/v1/stocks/tcs", "", nil)
		if resp.Code != http.StatusOK {
			t.Fatalf("Expected 200, got %d", resp.Code)
		}
		if !strings.Contains(resp.Body.String(), "prediction") {
			t.Errorf("Expected prediction in detail response")
		}
	})
}

func TestAlertsEndpoints(t *testing.T) {
	f := newAppFixture(t)
	token := f.signup(t, "alerts@example.com")

	t.Run("CreateAndList", func(t *testing.T) {
		resp := f.do(t, http.MethodPost, "/api/v1/alerts", token, map[string]any{
			"tradingsymbol": "tcs", "condition": "above", "target_price": 4200.0,
		})
		if resp.Code != http.StatusCreated {
			t.Fatalf("Expected 201, got %d: %s", resp.Code, resp.Body.String())
		}

		resp = f.do(t, http.MethodGet, "/api/v1/alerts", token, nil)
		var body struct {
			Alerts []models.PriceAlert `json:"alerts"`
		}
		if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
			t.Fatalf("failed to decode alerts: %v", err)
		}
		if len(body.Alerts) != 1 || body.Alerts[0].Condition != models.ConditionAbove {
			t.Errorf("Unexpected alerts: %v", body.Alerts)
		}
	})

	t.Run("InvalidCondition", func(t *testing.T) {
		resp := f.do(t, http.MethodPost, "/api/v1/alerts", token, map[string]any{
			"tradingsymbol": "TCS", "condition": "SIDEWAYS", "target_price": 4200.0,
		})
		if resp.Code != http.StatusBadRequest {
			t.Errorf("Expected 400, got %d", resp.Code)
		}
	})

	t.Run("DeleteOtherUsersAlert", func(t *testing.T) {
		other := f.signup(t, "other@example.com")
		resp := f.do(t, http.MethodDelete, "/api/v1/alerts/1", other, nil)
		if resp.Code != http.StatusNotFound {
			t.Errorf("Expected 404, got %d", resp.Code)
		}
	})

	t.Run("Notifications", func(t *testing.T) {
		resp := f.do(t, http.MethodGet, "/api/v1/notifications", token, nil)
		if resp.Code != http.StatusOK {
			t.Fatalf("Expected 200, got %d", resp.Code)
		}

		resp = f.do(t, http.MethodPut, "/api/v1/notifications/read-all", token, nil)
		if resp.Code != http.StatusNoContent {
			t.Errorf("Expected 204, got %d", resp.Code)
		}
	})
}

func TestCallbackHandler(t *testing.T) {
	t.Run("DeliversToken", func(t *testing.T) {
		handler := NewCallbackHandler()
		recorder := httptest.NewRecorder()
		handler.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/callback?request_token=abc", nil))

		if recorder.Code != http.StatusOK {
			t.Fatalf("Expected 200, got %d", recorder.Code)
		}

		result := <-handler.Result()
		if result.Error() != nil || result.RequestToken != "abc" {
			t.Errorf("Unexpected result: %+v", result)
		}
	})

	t.Run("SecondCallbackRejected", func(t *testing.T) {
		handler := NewCallbackHandler()
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/callback?request_token=abc", nil))

		recorder := httptest.NewRecorder()
		handler.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/callback?request_token=def", nil))
		if recorder.Code != http.StatusBadRequest {
			t.Errorf("Expected 400 on replay, got %d", recorder.Code)
		}
	})

	t.Run("MissingToken", func(t *testing.T) {
		handler := NewCallbackHandler()
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/callback?status=cancelled", nil))

		result := <-handler.Result()
		if result.Error() == nil {
			t.Error("Expected an error result")
		}
	})
}

func TestRateLimit(t *testing.T) {
	handler := RateLimit(1, 2)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	statuses := make([]int, 0, 4)
	for range 4 {
		recorder := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		handler.ServeHTTP(recorder, req)
		statuses = append(statuses, recorder.Code)
	}

	if statuses[0] != http.StatusOK || statuses[1] != http.StatusOK {
		t.Errorf("Expected the burst to pass, got %v", statuses)
	}
	if statuses[3] != http.StatusTooManyRequests {
		t.Errorf("Expected 429 after the burst, got %v", statuses)
	}

	// A different client has its own budget.
	recorder := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.2:1234"
	handler.ServeHTTP(recorder, req)
	if recorder.Code != http.StatusOK {
		t.Errorf("Expected a fresh client to pass, got %d", recorder.Code)
	}
}

func TestCORS(t *testing.T) {
	handler := CORS()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, httptest.NewRequest(http.MethodOptions, "/", nil))
	if recorder.Code != http.StatusNoContent {
		t.Errorf("Expected preflight 204, got %d", recorder.Code)
	}

	recorder = httptest.NewRecorder()
	handler.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/", nil))
	if recorder.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Error("Expected permissive CORS header")
	}
	if recorder.Code != http.StatusTeapot {
		t.Errorf("Expected wrapped handler to run, got %d", recorder.Code)
	}
}
