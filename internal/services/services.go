// package services defines interface MarketService for interacting with broker HTTP APIs
package services

import (
	"context"
	"time"

	"github.com/omrelabs/omre/internal/models"
)

// MarketService defines the interface for broker market data providers.
type MarketService interface {
	// LoginURL returns the browser URL that starts the broker login flow.
	// The state token is carried through the redirect for CSRF checking.
	LoginURL(state string) string

	// GenerateSession exchanges the request token from the login redirect
	// for an access token and account identity.
	GenerateSession(ctx context.Context, requestToken string) (*models.KiteSession, error)

	// Profile retrieves the account identity for the current session.
	Profile(ctx context.Context) (*models.KiteSession, error)

	// Instruments retrieves the tradable equity universe.
	Instruments(ctx context.Context) ([]models.Instrument, error)

	// Historical retrieves daily bars for one instrument in [from, to].
	Historical(ctx context.Context, instrumentToken int64, from, to time.Time) ([]models.Candle, error)

	// Quote retrieves last traded prices keyed by tradingsymbol.
	Quote(ctx context.Context, symbols []string) (map[string]float64, error)

	// Name returns the name of the service (e.g., "Kite")
	Name() string
}
