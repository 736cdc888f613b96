package analytics

import (
	"math"
	"time"

	"github.com/omrelabs/omre/internal/models"
)

// Signal thresholds on the composite score.
const (
	buyThreshold   = 0.70
	watchThreshold = 0.40
)

// Stop and target distances in ATR multiples.
const (
	stopATRMultiple   = 2.0
	targetATRMultiple = 3.0
)

// Score computes the composite score for an instrument from its latest
// featured candle and wraps it in a prediction. Returns nil when the bar
// is missing features.
func Score(instrument models.Instrument, latest models.Candle, regime models.Regime, generatedAt time.Time) *models.Prediction {
	if !latest.HasFeatures() {
		return nil
	}

	// Momentum: RSI mapped to [0,1], strongest in the 55-70 band.
	rsi := *latest.RSI14
	momentum := 1 - math.Abs(rsi-62.5)/62.5
	momentum = clamp(momentum, 0, 1)

	// Trend: positive divergence from both EMAs, saturating at 10%.
	trend := clamp(*latest.EMA50Div/0.10, -1, 1)*0.5 + clamp(*latest.EMA200Div/0.10, -1, 1)*0.5
	trend = (trend + 1) / 2

	// Participation: relative volume above 1 adds conviction, capped at 2x.
	participation := clamp((*latest.RelVolume-0.5)/1.5, 0, 1)

	// Volatility penalty: beyond 4% daily range the score decays.
	volatility := clamp(1-(*latest.ATR14Norm/0.04-1), 0, 1)

	score := 0.35*trend + 0.30*momentum + 0.20*participation + 0.15*volatility
	score = clamp(score, 0, 1)

	// A bearish tape caps everything below the buy threshold.
	if regime == models.RegimeBearish {
		score = math.Min(score, buyThreshold-0.01)
	}

	atr := *latest.ATR14Norm * latest.Close

	return &models.Prediction{
		InstrumentToken: instrument.InstrumentToken,
		Tradingsymbol:   instrument.Tradingsymbol,
		Score:           round4(score),
		Signal:          signalFor(score),
		LastClose:       latest.Close,
		StopLoss:        round2(latest.Close - stopATRMultiple*atr),
		Target:          round2(latest.Close + targetATRMultiple*atr),
		MarketRegime:    regime,
		GeneratedAt:     generatedAt,
	}
}

func signalFor(score float64) models.Signal {
	switch {
	case score >= buyThreshold:
		return models.SignalBuy
	case score >= watchThreshold:
		return models.SignalWatch
	default:
		return models.SignalAvoid
	}
}

// RegimeFromBreadth derives the market regime from the share of
// instruments trading above their 200 bar EMA.
func RegimeFromBreadth(aboveSlowEMA, total int) models.Regime {
	if total == 0 {
		return models.RegimeNeutral
	}

	breadth := float64(aboveSlowEMA) / float64(total)
	switch {
	case breadth >= 0.60:
		return models.RegimeBullish
	case breadth <= 0.40:
		return models.RegimeBearish
	default:
		return models.RegimeNeutral
	}
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }
func round4(v float64) float64 { return math.Round(v*10000) / 10000 }
