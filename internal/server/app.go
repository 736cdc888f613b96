package server

import (
	"database/sql"
	"time"

	"github.com/charmbracelet/log"

	"github.com/omrelabs/omre/internal/cache"
	"github.com/omrelabs/omre/internal/repositories"
	"github.com/omrelabs/omre/internal/services"
	"github.com/omrelabs/omre/internal/shared"
	"github.com/omrelabs/omre/internal/tasks"
)

// Per-client request budget for the public surface.
const (
	requestsPerSecond = 10
	requestBurst      = 30
)

// Deps carries everything the web surface needs. Market, Google,
// Sessions, and Pipeline may be nil when their credentials or stores
// are not configured; the affected routes then degrade instead of the
// process failing to start.
type Deps struct {
	DB       *sql.DB
	Sessions *repositories.SessionRepository
	Market   services.MarketService
	Google   *services.GoogleService
	Quotes   cache.Cache
	Pipeline *tasks.Controller
	Config   *shared.Config
	Logger   *log.Logger
}

// NewRouter assembles the full route table with logging, CORS, and
// rate limiting applied to every surface.
func NewRouter(deps Deps) *BasicRouter {
	users := repositories.NewUserRepository(deps.DB)
	instruments := repositories.NewInstrumentRepository(deps.DB)
	candles := repositories.NewCandleRepository(deps.DB)
	predictions := repositories.NewPredictionRepository(deps.DB)
	watchlist := repositories.NewWatchlistRepository(deps.DB)
	portfolios := repositories.NewPortfolioRepository(deps.DB)
	alerts := repositories.NewAlertRepository(deps.DB)
	notifications := repositories.NewNotificationRepository(deps.DB)

	quotes := NewQuoteProvider(deps.Market, deps.Quotes, instruments, candles)

	secret := deps.Config.Auth.JWTSecret
	expiry := time.Duration(deps.Config.Auth.TokenExpiry) * time.Minute

	router := NewBasicRouter()
	router.Use(
		RequestLogger(deps.Logger),
		CORS(),
		RateLimit(requestsPerSecond, requestBurst),
	)

	router.Handler(NewDashboardHandler(predictions, deps.Sessions, deps.Logger))
	router.Handler(NewBrokerAuthHandler(deps.Market, deps.Sessions, deps.Pipeline, deps.Logger))
	router.Handler(NewPipelineHandler(deps.Pipeline, deps.Logger))
	router.Handler(NewAuthHandler(users, deps.Google, secret, expiry, deps.Logger))
	router.Handler(NewStocksHandler(predictions, instruments, candles, quotes))

	router.Handler(Authed(secret, NewUsersHandler(users)))
	router.Handler(Authed(secret, NewWatchlistHandler(watchlist)))
	router.Handler(Authed(secret, NewPaperHandler(portfolios, quotes)))
	router.Handler(Authed(secret, NewAlertsHandler(alerts, notifications)))

	return router
}
