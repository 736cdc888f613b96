// Kite Connect implementation of [MarketService]
//
// Kite Connect API response types based on https://kite.trade/docs/connect/v3/
package services

import (
	"context"
	"crypto/sha256"
	"encoding/csv"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/omrelabs/omre/internal/models"
	"github.com/omrelabs/omre/internal/shared"
)

const (
	kiteLoginURL = "https://kite.zerodha.com/connect/login"
	kiteBaseURL  = "https://api.kite.trade"
	kiteVersion  = "3"

	// The broker allows 3 requests per second on the historical endpoints.
	kiteRatePerSecond = 3
)

// kiteEnvelope wraps every JSON response from the API.
type kiteEnvelope struct {
	Status    string          `json:"status"`
	Message   string          `json:"message"`
	ErrorType string          `json:"error_type"`
	Data      json.RawMessage `json:"data"`
}

// kiteSessionData is the session/token response payload.
type kiteSessionData struct {
	UserID      string `json:"user_id"`
	UserName    string `json:"user_name"`
	Email       string `json:"email"`
	AccessToken string `json:"access_token"`
	PublicToken string `json:"public_token"`
	LoginTime   string `json:"login_time"`
}

// kiteProfileData is the user/profile response payload.
type kiteProfileData struct {
	UserID   string `json:"user_id"`
	UserName string `json:"user_name"`
	Email    string `json:"email"`
	Broker   string `json:"broker"`
}

// kiteHistoricalData is the historical candles payload. Each candle is a
// positional array: [timestamp, open, high, low, close, volume].
type kiteHistoricalData struct {
	Candles [][]json.RawMessage `json:"candles"`
}

// kiteLTPData is one entry of the quote/ltp payload.
type kiteLTPData struct {
	InstrumentToken int64   `json:"instrument_token"`
	LastPrice       float64 `json:"last_price"`
}

// KiteService implements [MarketService] against the Kite Connect API.
// All requests flow through a shared rate limiter and the retry helper so
// bulk history pulls survive transient failures without tripping the API.
type KiteService struct {
	apiKey      string
	apiSecret   string
	accessToken string
	redirectURL string

	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewKiteService creates a Kite service with the given credentials.
func NewKiteService(apiKey, apiSecret, redirectURL string) (*KiteService, error) {
	if apiKey == "" || apiSecret == "" {
		return nil, fmt.Errorf("%w: api key and secret are required", shared.ErrMissingCredentials)
	}

	return &KiteService{
		apiKey:      apiKey,
		apiSecret:   apiSecret,
		redirectURL: redirectURL,
		baseURL:     kiteBaseURL,
		httpClient:  http.DefaultClient,
		limiter:     rate.NewLimiter(rate.Limit(kiteRatePerSecond), 1),
	}, nil
}

// SetAccessToken installs a previously obtained access token.
func (s *KiteService) SetAccessToken(token string) {
	s.accessToken = token
}

// Authenticated reports whether a session token is installed.
func (s *KiteService) Authenticated() bool {
	return s.accessToken != ""
}

func (s *KiteService) Name() string {
	return "Kite"
}

// LoginURL returns the browser URL that starts the login flow.
func (s *KiteService) LoginURL(state string) string {
	v := url.Values{}
	v.Set("v", kiteVersion)
	v.Set("api_key", s.apiKey)
	if state != "" {
		v.Set("redirect_params", "state="+state)
	}
	return kiteLoginURL + "?" + v.Encode()
}

// GenerateSession exchanges a request token for an access token. The
// checksum is SHA-256 over api_key + request_token + api_secret.
func (s *KiteService) GenerateSession(ctx context.Context, requestToken string) (*models.KiteSession, error) {
	if requestToken == "" {
		return nil, fmt.Errorf("%w: request token is required", shared.ErrInvalidInput)
	}

	sum := sha256.Sum256([]byte(s.apiKey + requestToken + s.apiSecret))

	form := url.Values{}
	form.Set("api_key", s.apiKey)
	form.Set("request_token", requestToken)
	form.Set("checksum", hex.EncodeToString(sum[:]))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		s.baseURL+"/session/token", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("X-Kite-Version", kiteVersion)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	var data kiteSessionData
	if err := s.send(ctx, req, &data); err != nil {
		return nil, fmt.Errorf("%w: %w", shared.ErrAuthFailed, err)
	}

	s.accessToken = data.AccessToken

	session := &models.KiteSession{
		UserID:      data.UserID,
		UserName:    data.UserName,
		Email:       data.Email,
		APIKey:      s.apiKey,
		AccessToken: data.AccessToken,
		PublicToken: data.PublicToken,
		LoginTime:   time.Now(),
	}
	if t, err := time.Parse("2006-01-02 15:04:05", data.LoginTime); err == nil {
		session.LoginTime = t
	}

	return session, nil
}

// Profile retrieves the account identity for the current session.
func (s *KiteService) Profile(ctx context.Context) (*models.KiteSession, error) {
	var data kiteProfileData
	if err := s.doRequest(ctx, http.MethodGet, "/user/profile", &data); err != nil {
		return nil, err
	}

	return &models.KiteSession{
		UserID:      data.UserID,
		UserName:    data.UserName,
		Email:       data.Email,
		APIKey:      s.apiKey,
		AccessToken: s.accessToken,
	}, nil
}

// Instruments retrieves the NSE equity universe from the instrument dump.
// The endpoint returns CSV, not JSON.
func (s *KiteService) Instruments(ctx context.Context) ([]models.Instrument, error) {
	if !s.Authenticated() {
		return nil, fmt.Errorf("%w: call GenerateSession first", shared.ErrNotAuthenticated)
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/instruments", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	s.authorize(req)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", shared.ErrAPIRequest, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: instrument dump returned status %d", shared.ErrAPIRequest, resp.StatusCode)
	}

	return parseInstrumentCSV(resp.Body)
}

// Historical retrieves daily bars for one instrument between from and to.
func (s *KiteService) Historical(ctx context.Context, instrumentToken int64, from, to time.Time) ([]models.Candle, error) {
	endpoint := fmt.Sprintf("/instruments/historical/%d/day?from=%s&to=%s",
		instrumentToken,
		url.QueryEscape(from.Format("2006-01-02 15:04:05")),
		url.QueryEscape(to.Format("2006-01-02 15:04:05")))

	var data kiteHistoricalData
	if err := s.doRequest(ctx, http.MethodGet, endpoint, &data); err != nil {
		return nil, err
	}

	candles := make([]models.Candle, 0, len(data.Candles))
	for _, row := range data.Candles {
		candle, err := parseCandleRow(instrumentToken, row)
		if err != nil {
			return nil, err
		}
		candles = append(candles, candle)
	}

	return candles, nil
}

// Quote retrieves last traded prices for NSE symbols.
func (s *KiteService) Quote(ctx context.Context, symbols []string) (map[string]float64, error) {
	if len(symbols) == 0 {
		return map[string]float64{}, nil
	}

	v := url.Values{}
	for _, symbol := range symbols {
		v.Add("i", "NSE:"+strings.ToUpper(symbol))
	}

	var data map[string]kiteLTPData
	if err := s.doRequest(ctx, http.MethodGet, "/quote/ltp?"+v.Encode(), &data); err != nil {
		return nil, err
	}

	quotes := make(map[string]float64, len(data))
	for key, quote := range data {
		symbol := strings.TrimPrefix(key, "NSE:")
		quotes[symbol] = quote.LastPrice
	}

	return quotes, nil
}

// doRequest performs an authenticated JSON request against the API with
// rate limiting and retries.
func (s *KiteService) doRequest(ctx context.Context, method, endpoint string, result any) error {
	if !s.Authenticated() {
		return fmt.Errorf("%w: call GenerateSession first", shared.ErrNotAuthenticated)
	}

	// Expired tokens are not transient; report them without burning retries.
	var authErr error
	err := shared.Retry(ctx, shared.DefaultMaxRetries, func() error {
		if err := s.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limiter: %w", err)
		}

		req, err := http.NewRequestWithContext(ctx, method, s.baseURL+endpoint, nil)
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		s.authorize(req)

		if err := s.send(ctx, req, result); err != nil {
			if errors.Is(err, shared.ErrTokenExpired) {
				authErr = err
				return nil
			}
			return err
		}
		return nil
	})
	if authErr != nil {
		return authErr
	}
	return err
}

// send executes one request and decodes the standard response envelope.
func (s *KiteService) send(_ context.Context, req *http.Request, result any) error {
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", shared.ErrAPIRequest, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusUnauthorized {
		return fmt.Errorf("%w: status %d", shared.ErrTokenExpired, resp.StatusCode)
	}

	var envelope kiteEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	if envelope.Status != "success" {
		return fmt.Errorf("%w: %s (%s)", shared.ErrAPIRequest, envelope.Message, envelope.ErrorType)
	}

	if result != nil {
		if err := json.Unmarshal(envelope.Data, result); err != nil {
			return fmt.Errorf("failed to decode response data: %w", err)
		}
	}

	return nil
}

func (s *KiteService) authorize(req *http.Request) {
	req.Header.Set("X-Kite-Version", kiteVersion)
	req.Header.Set("Authorization", "token "+s.apiKey+":"+s.accessToken)
}

// parseInstrumentCSV reads the instrument dump and keeps NSE equities.
func parseInstrumentCSV(r io.Reader) ([]models.Instrument, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read instrument header: %w", err)
	}

	col := make(map[string]int, len(header))
	for i, name := range header {
		col[name] = i
	}
	for _, required := range []string{"instrument_token", "tradingsymbol", "instrument_type", "exchange"} {
		if _, ok := col[required]; !ok {
			return nil, fmt.Errorf("%w: instrument dump missing column %s", shared.ErrAPIRequest, required)
		}
	}

	var instruments []models.Instrument
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read instrument row: %w", err)
		}

		field := func(name string) string {
			if i, ok := col[name]; ok && i < len(record) {
				return record[i]
			}
			return ""
		}

		if field("exchange") != "NSE" || field("instrument_type") != "EQ" {
			continue
		}

		token, err := strconv.ParseInt(field("instrument_token"), 10, 64)
		if err != nil {
			continue
		}

		lotSize, _ := strconv.Atoi(field("lot_size"))
		if lotSize == 0 {
			lotSize = 1
		}

		instruments = append(instruments, models.Instrument{
			InstrumentToken: token,
			Tradingsymbol:   field("tradingsymbol"),
			Name:            field("name"),
			Exchange:        "NSE",
			Segment:         field("segment"),
			LotSize:         lotSize,
			IsActive:        true,
		})
	}

	return instruments, nil
}

// parseCandleRow decodes one positional candle array.
func parseCandleRow(instrumentToken int64, row []json.RawMessage) (models.Candle, error) {
	if len(row) < 6 {
		return models.Candle{}, fmt.Errorf("%w: candle row has %d fields", shared.ErrAPIRequest, len(row))
	}

	var ts string
	if err := json.Unmarshal(row[0], &ts); err != nil {
		return models.Candle{}, fmt.Errorf("failed to decode candle timestamp: %w", err)
	}

	parsed, err := time.Parse("2006-01-02T15:04:05-0700", ts)
	if err != nil {
		parsed, err = time.Parse(time.RFC3339, ts)
		if err != nil {
			return models.Candle{}, fmt.Errorf("failed to parse candle timestamp %q: %w", ts, err)
		}
	}

	values := make([]float64, 5)
	for i := 0; i < 5; i++ {
		if err := json.Unmarshal(row[i+1], &values[i]); err != nil {
			return models.Candle{}, fmt.Errorf("failed to decode candle field %d: %w", i+1, err)
		}
	}

	return models.Candle{
		InstrumentToken: instrumentToken,
		TS:              parsed,
		Open:            values[0],
		High:            values[1],
		Low:             values[2],
		Close:           values[3],
		Volume:          int64(values[4]),
	}, nil
}
