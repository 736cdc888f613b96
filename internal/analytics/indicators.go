// Package analytics computes the indicator features and composite scores
// that drive the dashboard rankings.
//
// Feature definitions follow the columns persisted on stock_history:
// daily log return, Wilder RSI over 14 bars, price divergence from the 50
// and 200 bar EMAs, ATR over 14 bars normalized by close, and relative
// volume against a 20 bar average.
package analytics

import (
	"math"

	"github.com/omrelabs/omre/internal/models"
)

const (
	rsiPeriod     = 14
	atrPeriod     = 14
	emaFastPeriod = 50
	emaSlowPeriod = 200
	rvolPeriod    = 20
)

// ComputeFeatures fills the feature columns on a candle series. The input
// must be one instrument in ascending time order; bars without enough
// history keep nil features.
func ComputeFeatures(candles []models.Candle) []models.Candle {
	n := len(candles)
	if n == 0 {
		return candles
	}

	closes := make([]float64, n)
	volumes := make([]float64, n)
	for i, candle := range candles {
		closes[i] = candle.Close
		volumes[i] = float64(candle.Volume)
	}

	emaFast := ema(closes, emaFastPeriod)
	emaSlow := ema(closes, emaSlowPeriod)
	rsi := wilderRSI(closes, rsiPeriod)
	atr := averageTrueRange(candles, atrPeriod)
	volAvg := sma(volumes, rvolPeriod)

	for i := range candles {
		if i > 0 && closes[i-1] > 0 && closes[i] > 0 {
			v := math.Log(closes[i] / closes[i-1])
			candles[i].LogReturn = &v
		}
		if rsi[i] != nil {
			candles[i].RSI14 = rsi[i]
		}
		if emaFast[i] != nil && *emaFast[i] > 0 {
			v := (closes[i] - *emaFast[i]) / *emaFast[i]
			candles[i].EMA50Div = &v
		}
		if emaSlow[i] != nil && *emaSlow[i] > 0 {
			v := (closes[i] - *emaSlow[i]) / *emaSlow[i]
			candles[i].EMA200Div = &v
		}
		if atr[i] != nil && closes[i] > 0 {
			v := *atr[i] / closes[i]
			candles[i].ATR14Norm = &v
		}
		if volAvg[i] != nil && *volAvg[i] > 0 {
			v := volumes[i] / *volAvg[i]
			candles[i].RelVolume = &v
		}
	}

	return candles
}

// ema computes an exponential moving average seeded with the simple
// average of the first period values.
func ema(values []float64, period int) []*float64 {
	out := make([]*float64, len(values))
	if len(values) < period {
		return out
	}

	var sum float64
	for i := 0; i < period; i++ {
		sum += values[i]
	}
	current := sum / float64(period)
	out[period-1] = ptr(current)

	multiplier := 2.0 / float64(period+1)
	for i := period; i < len(values); i++ {
		current = (values[i]-current)*multiplier + current
		out[i] = ptr(current)
	}

	return out
}

// sma computes a simple moving average over a trailing window.
func sma(values []float64, period int) []*float64 {
	out := make([]*float64, len(values))
	if len(values) < period {
		return out
	}

	var sum float64
	for i, v := range values {
		sum += v
		if i >= period {
			sum -= values[i-period]
		}
		if i >= period-1 {
			out[i] = ptr(sum / float64(period))
		}
	}

	return out
}

// wilderRSI computes the relative strength index with Wilder smoothing.
func wilderRSI(closes []float64, period int) []*float64 {
	out := make([]*float64, len(closes))
	if len(closes) <= period {
		return out
	}

	var gainSum, lossSum float64
	for i := 1; i <= period; i++ {
		delta := closes[i] - closes[i-1]
		if delta > 0 {
			gainSum += delta
		} else {
			lossSum -= delta
		}
	}

	avgGain := gainSum / float64(period)
	avgLoss := lossSum / float64(period)
	out[period] = ptr(rsiValue(avgGain, avgLoss))

	for i := period + 1; i < len(closes); i++ {
		delta := closes[i] - closes[i-1]
		gain, loss := 0.0, 0.0
		if delta > 0 {
			gain = delta
		} else {
			loss = -delta
		}

		avgGain = (avgGain*float64(period-1) + gain) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + loss) / float64(period)
		out[i] = ptr(rsiValue(avgGain, avgLoss))
	}

	return out
}

func rsiValue(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs)
}

// averageTrueRange computes the ATR with Wilder smoothing.
func averageTrueRange(candles []models.Candle, period int) []*float64 {
	out := make([]*float64, len(candles))
	if len(candles) <= period {
		return out
	}

	trueRanges := make([]float64, len(candles))
	trueRanges[0] = candles[0].High - candles[0].Low
	for i := 1; i < len(candles); i++ {
		highLow := candles[i].High - candles[i].Low
		highClose := math.Abs(candles[i].High - candles[i-1].Close)
		lowClose := math.Abs(candles[i].Low - candles[i-1].Close)
		trueRanges[i] = math.Max(highLow, math.Max(highClose, lowClose))
	}

	var sum float64
	for i := 1; i <= period; i++ {
		sum += trueRanges[i]
	}
	current := sum / float64(period)
	out[period] = ptr(current)

	for i := period + 1; i < len(candles); i++ {
		current = (current*float64(period-1) + trueRanges[i]) / float64(period)
		out[i] = ptr(current)
	}

	return out
}

func ptr(v float64) *float64 { return &v }
