package repositories

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/omrelabs/omre/internal/models"
)

// CandleRepository persists daily bars and their feature columns.
type CandleRepository struct {
	db *sql.DB
}

// NewCandleRepository creates a new [CandleRepository] with the given database connection
func NewCandleRepository(db *sql.DB) *CandleRepository {
	return &CandleRepository{db: db}
}

// LatestTimestamp returns the most recent bar timestamp for one
// instrument, or the zero time when no history exists. Queried one
// instrument at a time to keep memory flat on small cloud instances.
func (r *CandleRepository) LatestTimestamp(instrumentToken int64) (time.Time, error) {
	var latest time.Time
	err := r.db.QueryRow(`
		SELECT ts FROM stock_history
		WHERE instrument_token = $1
		ORDER BY ts DESC
		LIMIT 1
	`, instrumentToken).Scan(&latest)
	if err == sql.ErrNoRows {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to query latest timestamp: %w", err)
	}

	return latest, nil
}

// BulkUpsert writes a batch of bars in one transaction, replacing
// duplicates on (instrument_token, ts).
func (r *CandleRepository) BulkUpsert(candles []models.Candle) error {
	if len(candles) == 0 {
		return nil
	}

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO stock_history (instrument_token, ts, open, high, low, close, volume)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (instrument_token, ts) DO UPDATE SET
			open = excluded.open,
			high = excluded.high,
			low = excluded.low,
			close = excluded.close,
			volume = excluded.volume
	`

	stmt, err := tx.Prepare(query)
	if err != nil {
		return fmt.Errorf("failed to prepare upsert: %w", err)
	}
	defer stmt.Close()

	for _, candle := range candles {
		if _, err := stmt.Exec(candle.InstrumentToken, candle.TS, candle.Open,
			candle.High, candle.Low, candle.Close, candle.Volume); err != nil {
			return fmt.Errorf("failed to upsert candle: %w", err)
		}
	}

	return tx.Commit()
}

// History retrieves bars for one instrument in ascending time order,
// optionally bounded to the trailing number of days.
func (r *CandleRepository) History(instrumentToken int64, days int) ([]models.Candle, error) {
	query := `
		SELECT instrument_token, ts, open, high, low, close, volume,
			log_return, rsi_14, ema_50_div, ema_200_div, atr_14_norm, rvol
		FROM stock_history
		WHERE instrument_token = $1
	`
	args := []any{instrumentToken}

	if days > 0 {
		query += " AND ts >= $2"
		args = append(args, time.Now().AddDate(0, 0, -days))
	}

	query += " ORDER BY ts ASC"

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	var candles []models.Candle
	for rows.Next() {
		var (
			candle    models.Candle
			logReturn sql.NullFloat64
			rsi       sql.NullFloat64
			ema50     sql.NullFloat64
			ema200    sql.NullFloat64
			atr       sql.NullFloat64
			rvol      sql.NullFloat64
		)

		if err := rows.Scan(&candle.InstrumentToken, &candle.TS, &candle.Open,
			&candle.High, &candle.Low, &candle.Close, &candle.Volume,
			&logReturn, &rsi, &ema50, &ema200, &atr, &rvol); err != nil {
			return nil, fmt.Errorf("failed to scan candle: %w", err)
		}

		candle.LogReturn = nullFloat(logReturn)
		candle.RSI14 = nullFloat(rsi)
		candle.EMA50Div = nullFloat(ema50)
		candle.EMA200Div = nullFloat(ema200)
		candle.ATR14Norm = nullFloat(atr)
		candle.RelVolume = nullFloat(rvol)

		candles = append(candles, candle)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return candles, nil
}

// UpdateFeatures writes the computed feature columns for a batch of bars.
func (r *CandleRepository) UpdateFeatures(candles []models.Candle) error {
	if len(candles) == 0 {
		return nil
	}

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		UPDATE stock_history
		SET log_return = $1, rsi_14 = $2, ema_50_div = $3,
			ema_200_div = $4, atr_14_norm = $5, rvol = $6
		WHERE instrument_token = $7 AND ts = $8
	`

	stmt, err := tx.Prepare(query)
	if err != nil {
		return fmt.Errorf("failed to prepare update: %w", err)
	}
	defer stmt.Close()

	for _, candle := range candles {
		if _, err := stmt.Exec(floatArg(candle.LogReturn), floatArg(candle.RSI14),
			floatArg(candle.EMA50Div), floatArg(candle.EMA200Div),
			floatArg(candle.ATR14Norm), floatArg(candle.RelVolume),
			candle.InstrumentToken, candle.TS); err != nil {
			return fmt.Errorf("failed to update features: %w", err)
		}
	}

	return tx.Commit()
}

// LatestClose returns the most recent closing price for one instrument.
func (r *CandleRepository) LatestClose(instrumentToken int64) (float64, time.Time, error) {
	var (
		close float64
		ts    time.Time
	)
	err := r.db.QueryRow(`
		SELECT close, ts FROM stock_history
		WHERE instrument_token = $1
		ORDER BY ts DESC
		LIMIT 1
	`, instrumentToken).Scan(&close, &ts)
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("failed to query latest close: %w", err)
	}
	return close, ts, nil
}

func nullFloat(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

func floatArg(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}
