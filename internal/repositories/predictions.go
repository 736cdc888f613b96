package repositories

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/omrelabs/omre/internal/models"
	"github.com/omrelabs/omre/internal/shared"
)

// PredictionRepository persists scored output. Each scoring run replaces
// the full table so the dashboard never mixes runs.
type PredictionRepository struct {
	db *sql.DB
}

// NewPredictionRepository creates a new [PredictionRepository] with the given database connection
func NewPredictionRepository(db *sql.DB) *PredictionRepository {
	return &PredictionRepository{db: db}
}

// ReplaceAll swaps the prediction set atomically.
func (r *PredictionRepository) ReplaceAll(predictions []models.Prediction) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM predictions"); err != nil {
		return fmt.Errorf("failed to clear predictions: %w", err)
	}

	query := `
		INSERT INTO predictions (instrument_token, tradingsymbol, omre_score, signal,
			last_close, stop_loss, target, market_regime, generated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	stmt, err := tx.Prepare(query)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, prediction := range predictions {
		if err := prediction.Validate(); err != nil {
			return fmt.Errorf("validation failed: %w", err)
		}
		if _, err := stmt.Exec(prediction.InstrumentToken, prediction.Tradingsymbol,
			prediction.Score, string(prediction.Signal), prediction.LastClose,
			prediction.StopLoss, prediction.Target, string(prediction.MarketRegime),
			prediction.GeneratedAt); err != nil {
			return fmt.Errorf("failed to insert prediction %s: %w", prediction.Tradingsymbol, err)
		}
	}

	return tx.Commit()
}

// Top retrieves the highest scoring predictions in descending score order
func (r *PredictionRepository) Top(limit int) ([]models.Prediction, error) {
	if limit <= 0 {
		limit = 10
	}

	query := `
		SELECT id, instrument_token, tradingsymbol, omre_score, signal,
			last_close, stop_loss, target, market_regime, generated_at
		FROM predictions
		ORDER BY omre_score DESC
		LIMIT $1
	`

	rows, err := r.db.Query(query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query predictions: %w", err)
	}
	defer rows.Close()

	return scanPredictions(rows)
}

// GetBySymbol retrieves the prediction for one symbol
func (r *PredictionRepository) GetBySymbol(symbol string) (*models.Prediction, error) {
	query := `
		SELECT id, instrument_token, tradingsymbol, omre_score, signal,
			last_close, stop_loss, target, market_regime, generated_at
		FROM predictions
		WHERE tradingsymbol = $1
	`

	var prediction models.Prediction
	err := r.db.QueryRow(query, strings.ToUpper(symbol)).Scan(&prediction.ID,
		&prediction.InstrumentToken, &prediction.Tradingsymbol, &prediction.Score,
		&prediction.Signal, &prediction.LastClose, &prediction.StopLoss,
		&prediction.Target, &prediction.MarketRegime, &prediction.GeneratedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: no prediction for %s", shared.ErrNotFound, symbol)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query prediction: %w", err)
	}

	return &prediction, nil
}

func scanPredictions(rows *sql.Rows) ([]models.Prediction, error) {
	var predictions []models.Prediction
	for rows.Next() {
		var prediction models.Prediction
		if err := rows.Scan(&prediction.ID, &prediction.InstrumentToken,
			&prediction.Tradingsymbol, &prediction.Score, &prediction.Signal,
			&prediction.LastClose, &prediction.StopLoss, &prediction.Target,
			&prediction.MarketRegime, &prediction.GeneratedAt); err != nil {
			return nil, fmt.Errorf("failed to scan prediction: %w", err)
		}
		predictions = append(predictions, prediction)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return predictions, nil
}
