package repositories

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/omrelabs/omre/internal/models"
	"github.com/omrelabs/omre/internal/shared"
)

// InstrumentRepository persists the instrument master synced from the
// broker's instrument dump.
type InstrumentRepository struct {
	db *sql.DB
}

// NewInstrumentRepository creates a new [InstrumentRepository] with the given database connection
func NewInstrumentRepository(db *sql.DB) *InstrumentRepository {
	return &InstrumentRepository{db: db}
}

// Upsert inserts or refreshes a batch of instruments in one transaction.
func (r *InstrumentRepository) Upsert(instruments []models.Instrument) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO stock_master (instrument_token, tradingsymbol, name, exchange, segment, lot_size, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (instrument_token) DO UPDATE SET
			tradingsymbol = excluded.tradingsymbol,
			name = excluded.name,
			exchange = excluded.exchange,
			segment = excluded.segment,
			lot_size = excluded.lot_size,
			is_active = excluded.is_active
	`

	stmt, err := tx.Prepare(query)
	if err != nil {
		return fmt.Errorf("failed to prepare upsert: %w", err)
	}
	defer stmt.Close()

	for _, instrument := range instruments {
		if err := instrument.Validate(); err != nil {
			return fmt.Errorf("validation failed: %w", err)
		}
		if _, err := stmt.Exec(instrument.InstrumentToken, instrument.Tradingsymbol,
			instrument.Name, instrument.Exchange, instrument.Segment,
			instrument.LotSize, instrument.IsActive); err != nil {
			return fmt.Errorf("failed to upsert instrument %s: %w", instrument.Tradingsymbol, err)
		}
	}

	return tx.Commit()
}

// List retrieves all active instruments ordered by symbol
func (r *InstrumentRepository) List() ([]models.Instrument, error) {
	query := `
		SELECT instrument_token, tradingsymbol, name, exchange, segment, lot_size, is_active
		FROM stock_master
		WHERE is_active = TRUE
		ORDER BY tradingsymbol ASC
	`

	rows, err := r.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query instruments: %w", err)
	}
	defer rows.Close()

	return scanInstruments(rows)
}

// GetBySymbol retrieves one instrument by its trading symbol
func (r *InstrumentRepository) GetBySymbol(symbol string) (*models.Instrument, error) {
	query := `
		SELECT instrument_token, tradingsymbol, name, exchange, segment, lot_size, is_active
		FROM stock_master
		WHERE tradingsymbol = $1
	`

	var instrument models.Instrument
	err := r.db.QueryRow(query, strings.ToUpper(symbol)).Scan(
		&instrument.InstrumentToken, &instrument.Tradingsymbol, &instrument.Name,
		&instrument.Exchange, &instrument.Segment, &instrument.LotSize, &instrument.IsActive)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", shared.ErrInstrumentNotFound, symbol)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query instrument: %w", err)
	}

	return &instrument, nil
}

// Search finds instruments whose symbol or name contains the query string.
func (r *InstrumentRepository) Search(q string, limit int) ([]models.Instrument, error) {
	if limit <= 0 || limit > 50 {
		limit = 20
	}

	query := `
		SELECT instrument_token, tradingsymbol, name, exchange, segment, lot_size, is_active
		FROM stock_master
		WHERE is_active = TRUE AND (tradingsymbol LIKE $1 OR UPPER(name) LIKE $1)
		ORDER BY tradingsymbol ASC
		LIMIT $2
	`

	pattern := "%" + strings.ToUpper(strings.TrimSpace(q)) + "%"
	rows, err := r.db.Query(query, pattern, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search instruments: %w", err)
	}
	defer rows.Close()

	return scanInstruments(rows)
}

// Count returns the number of active instruments
func (r *InstrumentRepository) Count() (int, error) {
	var count int
	err := r.db.QueryRow("SELECT COUNT(*) FROM stock_master WHERE is_active = TRUE").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count instruments: %w", err)
	}
	return count, nil
}

func scanInstruments(rows *sql.Rows) ([]models.Instrument, error) {
	var instruments []models.Instrument
	for rows.Next() {
		var instrument models.Instrument
		if err := rows.Scan(&instrument.InstrumentToken, &instrument.Tradingsymbol,
			&instrument.Name, &instrument.Exchange, &instrument.Segment,
			&instrument.LotSize, &instrument.IsActive); err != nil {
			return nil, fmt.Errorf("failed to scan instrument: %w", err)
		}
		instruments = append(instruments, instrument)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return instruments, nil
}
