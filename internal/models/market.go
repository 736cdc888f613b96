package models

import (
	"fmt"
	"time"

	"github.com/omrelabs/omre/internal/shared"
)

// Signal classifies a prediction for display.
type Signal string

const (
	SignalBuy   Signal = "BUY"
	SignalWatch Signal = "WATCH"
	SignalAvoid Signal = "AVOID"
)

// Regime labels the broad market state derived from index trend.
type Regime string

const (
	RegimeBullish Regime = "BULLISH"
	RegimeBearish Regime = "BEARISH"
	RegimeNeutral Regime = "NEUTRAL"
)

// Instrument is a tradable instrument from the broker's instrument dump.
type Instrument struct {
	InstrumentToken int64  `json:"instrument_token"`
	Tradingsymbol   string `json:"tradingsymbol"`
	Name            string `json:"name"`
	Exchange        string `json:"exchange"`
	Segment         string `json:"segment"`
	LotSize         int    `json:"lot_size"`
	IsActive        bool   `json:"is_active"`
}

// Validate checks instrument invariants.
func (i *Instrument) Validate() error {
	if i.InstrumentToken == 0 {
		return fmt.Errorf("%w: instrument token is required", shared.ErrInvalidInput)
	}
	if i.Tradingsymbol == "" {
		return fmt.Errorf("%w: tradingsymbol is required", shared.ErrInvalidInput)
	}
	return nil
}

// Candle is a daily OHLCV bar. Feature columns are nil until the feature
// job has processed the bar.
type Candle struct {
	InstrumentToken int64     `json:"instrument_token"`
	TS              time.Time `json:"ts"`
	Open            float64   `json:"open"`
	High            float64   `json:"high"`
	Low             float64   `json:"low"`
	Close           float64   `json:"close"`
	Volume          int64     `json:"volume"`

	LogReturn *float64 `json:"log_return,omitempty"`
	RSI14     *float64 `json:"rsi_14,omitempty"`
	EMA50Div  *float64 `json:"ema_50_div,omitempty"`
	EMA200Div *float64 `json:"ema_200_div,omitempty"`
	ATR14Norm *float64 `json:"atr_14_norm,omitempty"`
	RelVolume *float64 `json:"rvol,omitempty"`
}

// HasFeatures reports whether every feature column has been computed.
func (c *Candle) HasFeatures() bool {
	return c.LogReturn != nil && c.RSI14 != nil && c.EMA50Div != nil &&
		c.EMA200Div != nil && c.ATR14Norm != nil && c.RelVolume != nil
}

// Prediction is the scored output for one instrument, replaced on every
// scoring run.
type Prediction struct {
	ID              int64     `json:"id"`
	InstrumentToken int64     `json:"instrument_token"`
	Tradingsymbol   string    `json:"tradingsymbol"`
	Score           float64   `json:"omre_score"`
	Signal          Signal    `json:"signal"`
	LastClose       float64   `json:"last_close"`
	StopLoss        float64   `json:"stop_loss"`
	Target          float64   `json:"target"`
	MarketRegime    Regime    `json:"market_regime"`
	GeneratedAt     time.Time `json:"generated_at"`
}

// Validate checks prediction invariants.
func (p *Prediction) Validate() error {
	if p.InstrumentToken == 0 || p.Tradingsymbol == "" {
		return fmt.Errorf("%w: prediction must reference an instrument", shared.ErrInvalidInput)
	}
	switch p.Signal {
	case SignalBuy, SignalWatch, SignalAvoid:
	default:
		return fmt.Errorf("%w: unknown signal %q", shared.ErrInvalidInput, p.Signal)
	}
	return nil
}
