package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/omrelabs/omre/internal/shared"
	tu "github.com/omrelabs/omre/internal/testing"
)

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}

func newTestKite(t *testing.T, transport http.RoundTripper) *KiteService {
	t.Helper()

	service, err := NewKiteService("test_key", "test_secret", "http://localhost:5000/callback")
	if err != nil {
		t.Fatalf("failed to create service: %v", err)
	}
	service.httpClient = &http.Client{Transport: transport}
	return service
}

func TestNewKiteService(t *testing.T) {
	if _, err := NewKiteService("", "", ""); !errors.Is(err, shared.ErrMissingCredentials) {
		t.Errorf("expected ErrMissingCredentials, got %v", err)
	}
}

func TestKiteLoginURL(t *testing.T) {
	service := newTestKite(t, nil)

	loginURL := service.LoginURL("abc123")
	parsed, err := url.Parse(loginURL)
	if err != nil {
		t.Fatalf("failed to parse login url: %v", err)
	}

	if !strings.HasPrefix(loginURL, "https://kite.zerodha.com/connect/login") {
		t.Errorf("unexpected login url: %s", loginURL)
	}

	q := parsed.Query()
	if q.Get("api_key") != "test_key" {
		t.Errorf("expected api_key test_key, got %s", q.Get("api_key"))
	}
	if q.Get("v") != "3" {
		t.Errorf("expected v=3, got %s", q.Get("v"))
	}
	if q.Get("redirect_params") != "state=abc123" {
		t.Errorf("expected state in redirect_params, got %s", q.Get("redirect_params"))
	}
}

func TestKiteGenerateSession(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		var gotForm url.Values

		transport := &tu.RouterRoundTripper{
			Handlers: map[string]func(*http.Request) (*http.Response, error){
				"/session/token": func(req *http.Request) (*http.Response, error) {
					body, _ := io.ReadAll(req.Body)
					gotForm, _ = url.ParseQuery(string(body))

					if req.Header.Get("X-Kite-Version") != "3" {
						t.Error("expected X-Kite-Version header")
					}

					return jsonResponse(200, `{
						"status": "success",
						"data": {
							"user_id": "AB1234",
							"user_name": "A Trader",
							"email": "trader@example.com",
							"access_token": "the_access_token",
							"public_token": "the_public_token",
							"login_time": "2024-03-15 08:01:02"
						}
					}`), nil
				},
			},
		}

		service := newTestKite(t, transport)

		session, err := service.GenerateSession(context.Background(), "req_token")
		if err != nil {
			t.Fatalf("failed to generate session: %v", err)
		}

		sum := sha256.Sum256([]byte("test_key" + "req_token" + "test_secret"))
		if gotForm.Get("checksum") != hex.EncodeToString(sum[:]) {
			t.Errorf("wrong checksum: %s", gotForm.Get("checksum"))
		}
		if gotForm.Get("api_key") != "test_key" || gotForm.Get("request_token") != "req_token" {
			t.Errorf("unexpected form: %v", gotForm)
		}

		if session.AccessToken != "the_access_token" || session.UserID != "AB1234" {
			t.Errorf("unexpected session: %+v", session)
		}
		if session.LoginTime.Hour() != 8 {
			t.Errorf("expected parsed login time, got %v", session.LoginTime)
		}
		if !service.Authenticated() {
			t.Error("service should hold the access token after session generation")
		}
	})

	t.Run("APIError", func(t *testing.T) {
		transport := tu.NewMockRoundTripper(jsonResponse(400, `{
			"status": "error",
			"message": "Token is invalid or has expired.",
			"error_type": "TokenException"
		}`), nil)

		service := newTestKite(t, transport)

		if _, err := service.GenerateSession(context.Background(), "bad"); !errors.Is(err, shared.ErrAuthFailed) {
			t.Errorf("expected ErrAuthFailed, got %v", err)
		}
	})

	t.Run("EmptyToken", func(t *testing.T) {
		service := newTestKite(t, nil)
		if _, err := service.GenerateSession(context.Background(), ""); !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})
}

func TestKiteProfile(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		transport := &tu.RouterRoundTripper{
			Handlers: map[string]func(*http.Request) (*http.Response, error){
				"/user/profile": func(req *http.Request) (*http.Response, error) {
					if req.Header.Get("Authorization") != "token test_key:tok" {
						t.Errorf("unexpected authorization header: %s", req.Header.Get("Authorization"))
					}
					return jsonResponse(200, `{
						"status": "success",
						"data": {"user_id": "AB1234", "user_name": "A Trader", "email": "t@example.com"}
					}`), nil
				},
			},
		}

		service := newTestKite(t, transport)
		service.SetAccessToken("tok")

		profile, err := service.Profile(context.Background())
		if err != nil {
			t.Fatalf("failed to fetch profile: %v", err)
		}
		if profile.UserID != "AB1234" {
			t.Errorf("unexpected profile: %+v", profile)
		}
	})

	t.Run("NotAuthenticated", func(t *testing.T) {
		service := newTestKite(t, nil)
		if _, err := service.Profile(context.Background()); !errors.Is(err, shared.ErrNotAuthenticated) {
			t.Errorf("expected ErrNotAuthenticated, got %v", err)
		}
	})

	t.Run("ExpiredTokenDoesNotRetry", func(t *testing.T) {
		calls := 0
		transport := &tu.RouterRoundTripper{
			Handlers: map[string]func(*http.Request) (*http.Response, error){
				"/user/profile": func(req *http.Request) (*http.Response, error) {
					calls++
					return jsonResponse(403, `{"status":"error","message":"expired"}`), nil
				},
			},
		}

		service := newTestKite(t, transport)
		service.SetAccessToken("stale")

		if _, err := service.Profile(context.Background()); !errors.Is(err, shared.ErrTokenExpired) {
			t.Errorf("expected ErrTokenExpired, got %v", err)
		}
		if calls != 1 {
			t.Errorf("expected a single request for an expired token, got %d", calls)
		}
	})
}

func TestKiteInstruments(t *testing.T) {
	csvDump := `instrument_token,exchange_token,tradingsymbol,name,last_price,expiry,strike,tick_size,lot_size,instrument_type,segment,exchange
408065,1594,INFY,INFOSYS,0,,0,0.05,1,EQ,NSE,NSE
5633,22,ACC,ACC,0,,0,0.05,1,EQ,NSE,NSE
12345,48,NIFTY24APRFUT,,0,2024-04-25,0,0.05,50,FUT,NFO-FUT,NFO
67890,265,SILVERMIC,,0,,0,1,1,EQ,MCX,MCX
`

	transport := &tu.RouterRoundTripper{
		Handlers: map[string]func(*http.Request) (*http.Response, error){
			"/instruments": func(req *http.Request) (*http.Response, error) {
				return &http.Response{
					StatusCode: 200,
					Header:     http.Header{"Content-Type": []string{"text/csv"}},
					Body:       io.NopCloser(strings.NewReader(csvDump)),
				}, nil
			},
		},
	}

	service := newTestKite(t, transport)
	service.SetAccessToken("tok")

	instruments, err := service.Instruments(context.Background())
	if err != nil {
		t.Fatalf("failed to fetch instruments: %v", err)
	}

	if len(instruments) != 2 {
		t.Fatalf("expected 2 NSE equities, got %d", len(instruments))
	}
	if instruments[0].Tradingsymbol != "INFY" || instruments[0].InstrumentToken != 408065 {
		t.Errorf("unexpected first instrument: %+v", instruments[0])
	}
	if !instruments[0].IsActive {
		t.Error("dump instruments should be active")
	}
}

func TestKiteHistorical(t *testing.T) {
	transport := &tu.RouterRoundTripper{
		Handlers: map[string]func(*http.Request) (*http.Response, error){
			"/instruments/historical/408065/day": func(req *http.Request) (*http.Response, error) {
				q := req.URL.Query()
				if q.Get("from") == "" || q.Get("to") == "" {
					t.Error("expected from and to parameters")
				}
				return jsonResponse(200, `{
					"status": "success",
					"data": {"candles": [
						["2024-03-14T00:00:00+0530", 1500, 1520.5, 1490, 1510, 250000],
						["2024-03-15T00:00:00+0530", 1510, 1530, 1505, 1525, 300000]
					]}
				}`), nil
			},
		},
	}

	service := newTestKite(t, transport)
	service.SetAccessToken("tok")

	from := time.Date(2024, 3, 14, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)

	candles, err := service.Historical(context.Background(), 408065, from, to)
	if err != nil {
		t.Fatalf("failed to fetch candles: %v", err)
	}

	if len(candles) != 2 {
		t.Fatalf("expected 2 candles, got %d", len(candles))
	}
	if candles[0].High != 1520.5 || candles[0].Volume != 250000 {
		t.Errorf("unexpected candle: %+v", candles[0])
	}
	if candles[0].InstrumentToken != 408065 {
		t.Errorf("candle should carry the instrument token")
	}
	if candles[1].TS.Day() != 15 {
		t.Errorf("unexpected timestamp: %v", candles[1].TS)
	}
}

func TestKiteQuote(t *testing.T) {
	transport := &tu.RouterRoundTripper{
		Handlers: map[string]func(*http.Request) (*http.Response, error){
			"/quote/ltp": func(req *http.Request) (*http.Response, error) {
				return jsonResponse(200, `{
					"status": "success",
					"data": {
						"NSE:INFY": {"instrument_token": 408065, "last_price": 1512.4},
						"NSE:TCS": {"instrument_token": 2953217, "last_price": 3901.1}
					}
				}`), nil
			},
		},
	}

	service := newTestKite(t, transport)
	service.SetAccessToken("tok")

	quotes, err := service.Quote(context.Background(), []string{"infy", "TCS"})
	if err != nil {
		t.Fatalf("failed to fetch quotes: %v", err)
	}

	if quotes["INFY"] != 1512.4 || quotes["TCS"] != 3901.1 {
		t.Errorf("unexpected quotes: %v", quotes)
	}

	t.Run("Empty", func(t *testing.T) {
		quotes, err := service.Quote(context.Background(), nil)
		if err != nil {
			t.Fatalf("empty quote request should succeed: %v", err)
		}
		if len(quotes) != 0 {
			t.Errorf("expected empty map, got %v", quotes)
		}
	})
}

func TestParseCandleRow(t *testing.T) {
	if _, err := parseCandleRow(1, nil); err == nil {
		t.Error("short rows should fail")
	}
}
