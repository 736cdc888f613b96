// package testing contains shared testing utilities
package testing

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"net/http"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/omrelabs/omre/internal/models"
	"github.com/omrelabs/omre/internal/shared"
)

// SetupDB opens an in-memory database and applies the production
// migrations, so tests exercise the same DDL the server runs.
func SetupDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := shared.RunMigrations(db); err != nil {
		t.Fatalf("Failed to apply migrations: %v", err)
	}

	return db
}

// MockMarket is a configurable test double for the broker service. Unset
// function fields return empty values.
type MockMarket struct {
	LoginURLFunc        func(state string) string
	GenerateSessionFunc func(ctx context.Context, requestToken string) (*models.KiteSession, error)
	ProfileFunc         func(ctx context.Context) (*models.KiteSession, error)
	InstrumentsFunc     func(ctx context.Context) ([]models.Instrument, error)
	HistoricalFunc      func(ctx context.Context, instrumentToken int64, from, to time.Time) ([]models.Candle, error)
	QuoteFunc           func(ctx context.Context, symbols []string) (map[string]float64, error)
}

func (m *MockMarket) Name() string { return "mock" }

func (m *MockMarket) LoginURL(state string) string {
	if m.LoginURLFunc != nil {
		return m.LoginURLFunc(state)
	}
	return "https://example.com/login"
}

func (m *MockMarket) GenerateSession(ctx context.Context, requestToken string) (*models.KiteSession, error) {
	if m.GenerateSessionFunc != nil {
		return m.GenerateSessionFunc(ctx, requestToken)
	}
	return &models.KiteSession{UserID: "AB1234", AccessToken: "token", LoginTime: time.Now()}, nil
}

func (m *MockMarket) Profile(ctx context.Context) (*models.KiteSession, error) {
	if m.ProfileFunc != nil {
		return m.ProfileFunc(ctx)
	}
	return &models.KiteSession{UserID: "AB1234"}, nil
}

func (m *MockMarket) Instruments(ctx context.Context) ([]models.Instrument, error) {
	if m.InstrumentsFunc != nil {
		return m.InstrumentsFunc(ctx)
	}
	return []models.Instrument{}, nil
}

func (m *MockMarket) Historical(ctx context.Context, instrumentToken int64, from, to time.Time) ([]models.Candle, error) {
	if m.HistoricalFunc != nil {
		return m.HistoricalFunc(ctx, instrumentToken, from, to)
	}
	return []models.Candle{}, nil
}

func (m *MockMarket) Quote(ctx context.Context, symbols []string) (map[string]float64, error) {
	if m.QuoteFunc != nil {
		return m.QuoteFunc(ctx, symbols)
	}
	return map[string]float64{}, nil
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// LimitedWriter fails after a certain number of writes
type LimitedWriter struct {
	maxWrites int
	written   int
	target    io.Writer
}

func (l *LimitedWriter) Write(p []byte) (n int, err error) {
	if l.written >= l.maxWrites {
		return 0, errors.New("write limit exceeded")
	}
	l.written++
	return l.target.Write(p)
}

func NewLimitedWriter(maxWrites, written int, target io.Writer) LimitedWriter {
	return LimitedWriter{maxWrites: maxWrites, written: written, target: target}
}

// MockRoundTripper allows custom HTTP responses for testing
type MockRoundTripper struct {
	response *http.Response
	err      error
}

func NewMockRoundTripper(r *http.Response, e error) *MockRoundTripper {
	return &MockRoundTripper{response: r, err: e}
}

func (m *MockRoundTripper) RoundTrip(*http.Request) (*http.Response, error) {
	return m.response, m.err
}

// RouterRoundTripper dispatches requests to per-path handlers so a test
// can script a whole API exchange.
type RouterRoundTripper struct {
	Handlers map[string]func(*http.Request) (*http.Response, error)
}

func (m *RouterRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	if handler, ok := m.Handlers[req.URL.Path]; ok {
		return handler(req)
	}
	return nil, errors.New("no handler for " + req.URL.Path)
}

// FCloser simulates a failure when reading response body
type FCloser struct{}

func (f *FCloser) Read(p []byte) (n int, err error) {
	return 0, errors.New("read failed")
}

func (f *FCloser) Close() error {
	return nil
}

// MustSeedUser inserts a user row directly and returns its id.
func MustSeedUser(t *testing.T, db *sql.DB, email string) string {
	t.Helper()

	id := "user-" + email
	_, err := db.Exec(
		"INSERT INTO users (id, email, password_hash, full_name) VALUES ($1, $2, $3, $4)",
		id, email, "x", "Test User")
	if err != nil {
		t.Fatalf("Failed to seed user: %v", err)
	}
	return id
}
