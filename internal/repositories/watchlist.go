package repositories

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/omrelabs/omre/internal/models"
	"github.com/omrelabs/omre/internal/shared"
)

// WatchlistRepository persists per-user tracked symbols.
type WatchlistRepository struct {
	db *sql.DB
}

// NewWatchlistRepository creates a new [WatchlistRepository] with the given database connection
func NewWatchlistRepository(db *sql.DB) *WatchlistRepository {
	return &WatchlistRepository{db: db}
}

// Add puts a symbol on the user's watchlist, enforcing the size cap.
// Adding a symbol that is already tracked is a no-op.
func (r *WatchlistRepository) Add(userID, symbol string) error {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return fmt.Errorf("%w: tradingsymbol is required", shared.ErrInvalidInput)
	}

	count, err := r.Count(userID)
	if err != nil {
		return err
	}
	if count >= models.MaxWatchlistSize {
		return fmt.Errorf("%w: watchlist is limited to %d symbols", shared.ErrInvalidInput, models.MaxWatchlistSize)
	}

	query := `
		INSERT INTO watchlists (user_id, tradingsymbol)
		VALUES ($1, $2)
		ON CONFLICT (user_id, tradingsymbol) DO NOTHING
	`

	if _, err := r.db.Exec(query, userID, symbol); err != nil {
		return fmt.Errorf("failed to add to watchlist: %w", err)
	}

	return nil
}

// Remove takes a symbol off the user's watchlist
func (r *WatchlistRepository) Remove(userID, symbol string) error {
	query := "DELETE FROM watchlists WHERE user_id = $1 AND tradingsymbol = $2"

	result, err := r.db.Exec(query, userID, strings.ToUpper(strings.TrimSpace(symbol)))
	if err != nil {
		return fmt.Errorf("failed to remove from watchlist: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s is not on the watchlist", shared.ErrNotFound, symbol)
	}

	return nil
}

// List retrieves the user's watchlist in the order symbols were added
func (r *WatchlistRepository) List(userID string) ([]models.WatchlistItem, error) {
	query := `
		SELECT id, user_id, tradingsymbol, added_at
		FROM watchlists
		WHERE user_id = $1
		ORDER BY added_at ASC, id ASC
	`

	rows, err := r.db.Query(query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query watchlist: %w", err)
	}
	defer rows.Close()

	var items []models.WatchlistItem
	for rows.Next() {
		var item models.WatchlistItem
		if err := rows.Scan(&item.ID, &item.UserID, &item.Tradingsymbol, &item.AddedAt); err != nil {
			return nil, fmt.Errorf("failed to scan watchlist item: %w", err)
		}
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return items, nil
}

// Count returns the number of symbols on the user's watchlist
func (r *WatchlistRepository) Count(userID string) (int, error) {
	var count int
	err := r.db.QueryRow("SELECT COUNT(*) FROM watchlists WHERE user_id = $1", userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count watchlist: %w", err)
	}
	return count, nil
}
