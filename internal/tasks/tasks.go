// Package tasks runs the market data pipeline and alert sweeps as
// long-running background jobs with progress reporting.
package tasks

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"github.com/omrelabs/omre/internal/analytics"
	"github.com/omrelabs/omre/internal/models"
	"github.com/omrelabs/omre/internal/repositories"
	"github.com/omrelabs/omre/internal/services"
	"github.com/omrelabs/omre/internal/shared"
)

const (
	defaultHistoryStart = "2015-01-01"
	defaultChunkDays    = 1800

	// scoringWindowDays bounds the history loaded for scoring lookups.
	scoringWindowDays = 30
)

// PipelineResult summarizes a completed pipeline run.
type PipelineResult struct {
	Instruments  int           `json:"instruments"`
	CandlesAdded int           `json:"candles_added"`
	Scored       int           `json:"scored"`
	Regime       models.Regime `json:"market_regime"`
	Duration     time.Duration `json:"duration"`
}

// PipelineEngine orchestrates the daily data pipeline: instrument sync,
// incremental history fetch, feature computation, and scoring.
type PipelineEngine struct {
	market      services.MarketService
	instruments *repositories.InstrumentRepository
	candles     *repositories.CandleRepository
	predictions *repositories.PredictionRepository
	logger      *log.Logger
	cfg         shared.PipelineConfig

	now func() time.Time
}

// NewPipelineEngine creates a pipeline engine over the given market
// service and repositories.
func NewPipelineEngine(
	market services.MarketService,
	instruments *repositories.InstrumentRepository,
	candles *repositories.CandleRepository,
	predictions *repositories.PredictionRepository,
	logger *log.Logger,
	cfg shared.PipelineConfig,
) *PipelineEngine {
	return &PipelineEngine{
		market:      market,
		instruments: instruments,
		candles:     candles,
		predictions: predictions,
		logger:      logger,
		cfg:         cfg,
		now:         time.Now,
	}
}

// Run executes every pipeline phase in order. Progress updates are sent
// on the channel when a receiver is ready; a slow receiver never blocks
// the run.
func (e *PipelineEngine) Run(ctx context.Context, progress chan<- ProgressUpdate) (*PipelineResult, error) {
	start := e.now()

	count, err := e.SyncInstruments(ctx, progress)
	if err != nil {
		return nil, err
	}

	added, err := e.FetchHistory(ctx, progress)
	if err != nil {
		return nil, err
	}

	if err := e.ComputeFeatures(ctx, progress); err != nil {
		return nil, err
	}

	scored, regime, err := e.ScorePredictions(ctx, progress)
	if err != nil {
		return nil, err
	}

	result := &PipelineResult{
		Instruments:  count,
		CandlesAdded: added,
		Scored:       scored,
		Regime:       regime,
		Duration:     e.now().Sub(start),
	}

	e.logger.Info("pipeline run complete",
		"instruments", result.Instruments,
		"candles_added", result.CandlesAdded,
		"scored", result.Scored,
		"regime", result.Regime,
		"duration", result.Duration)

	return result, nil
}

// SyncInstruments refreshes the instrument master from the broker dump.
func (e *PipelineEngine) SyncInstruments(ctx context.Context, progress chan<- ProgressUpdate) (int, error) {
	instruments, err := e.market.Instruments(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: instrument sync: %v", shared.ErrPipelineFailed, err)
	}

	if err := e.instruments.Upsert(instruments); err != nil {
		return 0, fmt.Errorf("%w: %v", shared.ErrPipelineFailed, err)
	}

	e.logger.Info("instrument master synced", "count", len(instruments))
	sendProgress(progress, syncInstrumentsUpdate(len(instruments)))

	return len(instruments), nil
}

// FetchHistory pulls daily bars for every active instrument, resuming
// from the bar after the latest stored one. Instruments are walked one
// at a time to keep memory flat on small hosts.
func (e *PipelineEngine) FetchHistory(ctx context.Context, progress chan<- ProgressUpdate) (int, error) {
	instruments, err := e.instruments.List()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", shared.ErrPipelineFailed, err)
	}

	today := e.today()
	added := 0

	for i, instrument := range instruments {
		if err := ctx.Err(); err != nil {
			return added, err
		}

		from, err := e.resumeFrom(instrument.InstrumentToken)
		if err != nil {
			return added, err
		}
		if from.After(today) {
			sendProgress(progress, fetchHistoryUpdate(i+1, len(instruments), instrument.Tradingsymbol, 0))
			continue
		}

		count, err := e.fetchRange(ctx, instrument.InstrumentToken, from, today)
		if err != nil {
			return added, fmt.Errorf("%w: %s: %v", shared.ErrPipelineFailed, instrument.Tradingsymbol, err)
		}

		added += count
		sendProgress(progress, fetchHistoryUpdate(i+1, len(instruments), instrument.Tradingsymbol, count))
	}

	e.logger.Info("history fetch complete", "instruments", len(instruments), "candles_added", added)
	return added, nil
}

// resumeFrom returns the first date to request for an instrument: the
// day after the latest stored bar, or the configured history start for
// an empty series.
func (e *PipelineEngine) resumeFrom(instrumentToken int64) (time.Time, error) {
	latest, err := e.candles.LatestTimestamp(instrumentToken)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %v", shared.ErrPipelineFailed, err)
	}
	if !latest.IsZero() {
		return latest.AddDate(0, 0, 1), nil
	}
	return e.historyStart(), nil
}

// fetchRange requests bars between from and to in bounded chunks so a
// cold backfill stays within the broker's per-request span limit.
func (e *PipelineEngine) fetchRange(ctx context.Context, instrumentToken int64, from, to time.Time) (int, error) {
	chunkDays := e.cfg.ChunkDays
	if chunkDays <= 0 {
		chunkDays = defaultChunkDays
	}

	added := 0
	for !from.After(to) {
		if err := ctx.Err(); err != nil {
			return added, err
		}

		end := from.AddDate(0, 0, chunkDays-1)
		if end.After(to) {
			end = to
		}

		candles, err := e.market.Historical(ctx, instrumentToken, from, end)
		if err != nil {
			return added, err
		}

		if err := e.candles.BulkUpsert(candles); err != nil {
			return added, err
		}

		added += len(candles)
		from = end.AddDate(0, 0, 1)
	}

	return added, nil
}

// ComputeFeatures recomputes the indicator columns over each
// instrument's full stored series.
func (e *PipelineEngine) ComputeFeatures(ctx context.Context, progress chan<- ProgressUpdate) error {
	instruments, err := e.instruments.List()
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrPipelineFailed, err)
	}

	for i, instrument := range instruments {
		if err := ctx.Err(); err != nil {
			return err
		}

		history, err := e.candles.History(instrument.InstrumentToken, 0)
		if err != nil {
			return fmt.Errorf("%w: %s: %v", shared.ErrPipelineFailed, instrument.Tradingsymbol, err)
		}
		if len(history) == 0 {
			continue
		}

		enriched := analytics.ComputeFeatures(history)
		if err := e.candles.UpdateFeatures(enriched); err != nil {
			return fmt.Errorf("%w: %s: %v", shared.ErrPipelineFailed, instrument.Tradingsymbol, err)
		}

		sendProgress(progress, computeFeaturesUpdate(i+1, len(instruments), instrument.Tradingsymbol))
	}

	e.logger.Info("feature computation complete", "instruments", len(instruments))
	return nil
}

// ScorePredictions derives the market regime from EMA breadth, scores
// every instrument's latest featured bar, and replaces the prediction
// table in one transaction.
func (e *PipelineEngine) ScorePredictions(ctx context.Context, progress chan<- ProgressUpdate) (int, models.Regime, error) {
	instruments, err := e.instruments.List()
	if err != nil {
		return 0, "", fmt.Errorf("%w: %v", shared.ErrPipelineFailed, err)
	}

	type latestBar struct {
		instrument models.Instrument
		candle     models.Candle
	}

	var (
		bars      []latestBar
		aboveSlow int
	)

	for _, instrument := range instruments {
		if err := ctx.Err(); err != nil {
			return 0, "", err
		}

		history, err := e.candles.History(instrument.InstrumentToken, scoringWindowDays)
		if err != nil {
			return 0, "", fmt.Errorf("%w: %s: %v", shared.ErrPipelineFailed, instrument.Tradingsymbol, err)
		}

		latest, ok := latestFeatured(history)
		if !ok {
			continue
		}

		bars = append(bars, latestBar{instrument: instrument, candle: latest})
		if *latest.EMA200Div > 0 {
			aboveSlow++
		}
	}

	regime := analytics.RegimeFromBreadth(aboveSlow, len(bars))
	generatedAt := e.now().UTC()

	predictions := make([]models.Prediction, 0, len(bars))
	for _, bar := range bars {
		predictions = append(predictions, *analytics.Score(bar.instrument, bar.candle, regime, generatedAt))
	}

	if err := e.predictions.ReplaceAll(predictions); err != nil {
		return 0, "", fmt.Errorf("%w: %v", shared.ErrPipelineFailed, err)
	}

	e.logger.Info("scoring complete", "scored", len(predictions), "regime", regime)
	sendProgress(progress, scoringUpdate(len(predictions), len(instruments), string(regime)))

	return len(predictions), regime, nil
}

// latestFeatured returns the newest bar with a complete feature set.
func latestFeatured(history []models.Candle) (models.Candle, bool) {
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].HasFeatures() {
			return history[i], true
		}
	}
	return models.Candle{}, false
}

func (e *PipelineEngine) historyStart() time.Time {
	start := e.cfg.HistoryStart
	if start == "" {
		start = defaultHistoryStart
	}

	parsed, err := time.Parse("2006-01-02", start)
	if err != nil {
		parsed, _ = time.Parse("2006-01-02", defaultHistoryStart)
	}
	return parsed
}

func (e *PipelineEngine) today() time.Time {
	now := e.now()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}

// sendProgress delivers an update without blocking when nobody is
// listening.
func sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}

	select {
	case progress <- update:
	default:
	}
}
