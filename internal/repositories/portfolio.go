package repositories

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/omrelabs/omre/internal/models"
	"github.com/omrelabs/omre/internal/shared"
)

// PortfolioRepository persists paper trading state. Trades run inside a
// transaction with a balance-guarded debit so concurrent fills cannot
// overdraw the cash balance.
type PortfolioRepository struct {
	db *sql.DB
}

// NewPortfolioRepository creates a new [PortfolioRepository] with the given database connection
func NewPortfolioRepository(db *sql.DB) *PortfolioRepository {
	return &PortfolioRepository{db: db}
}

// GetOrCreate retrieves a user's portfolio, creating one with the starting
// balance on first use.
func (r *PortfolioRepository) GetOrCreate(userID string) (*models.Portfolio, error) {
	portfolio, err := r.getByUser(userID)
	if err == nil {
		return portfolio, nil
	}
	if err != sql.ErrNoRows {
		return nil, fmt.Errorf("failed to query portfolio: %w", err)
	}

	fresh := models.NewPortfolio(userID)
	query := `
		INSERT INTO portfolios (id, user_id, cash_balance, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id) DO NOTHING
	`
	if _, err := r.db.Exec(query, fresh.ID, fresh.UserID, fresh.CashBalance, fresh.CreatedAt); err != nil {
		return nil, fmt.Errorf("failed to create portfolio: %w", err)
	}

	// Re-read in case a concurrent request created it first.
	portfolio, err = r.getByUser(userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load portfolio: %w", err)
	}
	return portfolio, nil
}

func (r *PortfolioRepository) getByUser(userID string) (*models.Portfolio, error) {
	var portfolio models.Portfolio
	err := r.db.QueryRow(`
		SELECT id, user_id, cash_balance, created_at
		FROM portfolios
		WHERE user_id = $1
	`, userID).Scan(&portfolio.ID, &portfolio.UserID, &portfolio.CashBalance, &portfolio.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &portfolio, nil
}

// Positions retrieves all open positions for a portfolio
func (r *PortfolioRepository) Positions(portfolioID string) ([]models.Position, error) {
	query := `
		SELECT id, portfolio_id, tradingsymbol, quantity, average_price, updated_at
		FROM positions
		WHERE portfolio_id = $1 AND quantity != 0
		ORDER BY tradingsymbol ASC
	`

	rows, err := r.db.Query(query, portfolioID)
	if err != nil {
		return nil, fmt.Errorf("failed to query positions: %w", err)
	}
	defer rows.Close()

	var positions []models.Position
	for rows.Next() {
		var position models.Position
		if err := rows.Scan(&position.ID, &position.PortfolioID, &position.Tradingsymbol,
			&position.Quantity, &position.AveragePrice, &position.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan position: %w", err)
		}
		positions = append(positions, position)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return positions, nil
}

// Transactions retrieves the most recent fills for a portfolio
func (r *PortfolioRepository) Transactions(portfolioID string, limit int) ([]models.Transaction, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, portfolio_id, tradingsymbol, side, quantity, price, executed_at
		FROM transactions
		WHERE portfolio_id = $1
		ORDER BY executed_at DESC, id DESC
		LIMIT $2
	`

	rows, err := r.db.Query(query, portfolioID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()

	var transactions []models.Transaction
	for rows.Next() {
		var transaction models.Transaction
		if err := rows.Scan(&transaction.ID, &transaction.PortfolioID,
			&transaction.Tradingsymbol, &transaction.Side, &transaction.Quantity,
			&transaction.Price, &transaction.ExecutedAt); err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		transactions = append(transactions, transaction)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return transactions, nil
}

// ExecuteTrade fills a paper trade atomically: the cash debit, position
// update and transaction record commit together or not at all.
func (r *PortfolioRepository) ExecuteTrade(portfolioID string, side models.Side, symbol string, quantity int, price float64) (*models.Transaction, error) {
	trade := &models.Transaction{
		PortfolioID:   portfolioID,
		Tradingsymbol: strings.ToUpper(strings.TrimSpace(symbol)),
		Side:          side,
		Quantity:      quantity,
		Price:         price,
		ExecutedAt:    time.Now(),
	}
	if err := trade.Validate(); err != nil {
		return nil, err
	}

	tx, err := r.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	notional := float64(quantity) * price

	position := models.Position{PortfolioID: portfolioID, Tradingsymbol: trade.Tradingsymbol}
	err = tx.QueryRow(`
		SELECT quantity, average_price FROM positions
		WHERE portfolio_id = $1 AND tradingsymbol = $2
	`, portfolioID, trade.Tradingsymbol).Scan(&position.Quantity, &position.AveragePrice)
	if err != nil && err != sql.ErrNoRows {
		return nil, fmt.Errorf("failed to load position: %w", err)
	}

	if side == models.SideBuy {
		// Guarded debit; zero rows affected means the balance was short.
		result, err := tx.Exec(`
			UPDATE portfolios
			SET cash_balance = cash_balance - $1
			WHERE id = $2 AND cash_balance >= $1
		`, notional, portfolioID)
		if err != nil {
			return nil, fmt.Errorf("failed to debit cash: %w", err)
		}
		rows, err := result.RowsAffected()
		if err != nil {
			return nil, fmt.Errorf("failed to get affected rows: %w", err)
		}
		if rows == 0 {
			return nil, fmt.Errorf("%w: trade requires %.2f", shared.ErrInsufficientFunds, notional)
		}
	} else {
		// A sell past the held quantity opens a short; the credited
		// balance must still cover buying the short back at this price.
		var margin float64
		if newQty := position.Quantity - quantity; newQty < 0 {
			margin = float64(-newQty) * price
		}
		result, err := tx.Exec(`
			UPDATE portfolios
			SET cash_balance = cash_balance + $1
			WHERE id = $2 AND cash_balance + $1 >= $3
		`, notional, portfolioID, margin)
		if err != nil {
			return nil, fmt.Errorf("failed to credit cash: %w", err)
		}
		rows, err := result.RowsAffected()
		if err != nil {
			return nil, fmt.Errorf("failed to get affected rows: %w", err)
		}
		if rows == 0 {
			return nil, fmt.Errorf("%w: short requires %.2f margin", shared.ErrInsufficientFunds, margin)
		}
	}

	remaining := position.Apply(side, quantity, price)

	if remaining == 0 {
		if _, err := tx.Exec(`
			DELETE FROM positions WHERE portfolio_id = $1 AND tradingsymbol = $2
		`, portfolioID, trade.Tradingsymbol); err != nil {
			return nil, fmt.Errorf("failed to close position: %w", err)
		}
	} else {
		if _, err := tx.Exec(`
			INSERT INTO positions (portfolio_id, tradingsymbol, quantity, average_price, updated_at)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (portfolio_id, tradingsymbol) DO UPDATE SET
				quantity = excluded.quantity,
				average_price = excluded.average_price,
				updated_at = excluded.updated_at
		`, portfolioID, trade.Tradingsymbol, position.Quantity, position.AveragePrice, position.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to update position: %w", err)
		}
	}

	if _, err := tx.Exec(`
		INSERT INTO transactions (portfolio_id, tradingsymbol, side, quantity, price, executed_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, portfolioID, trade.Tradingsymbol, string(side), quantity, price, trade.ExecutedAt); err != nil {
		return nil, fmt.Errorf("failed to record transaction: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit trade: %w", err)
	}

	return trade, nil
}

// Reset wipes a portfolio back to the starting balance, dropping every
// position and transaction.
func (r *PortfolioRepository) Reset(portfolioID string) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin reset: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM positions WHERE portfolio_id = $1", portfolioID); err != nil {
		return fmt.Errorf("failed to clear positions: %w", err)
	}
	if _, err := tx.Exec("DELETE FROM transactions WHERE portfolio_id = $1", portfolioID); err != nil {
		return fmt.Errorf("failed to clear transactions: %w", err)
	}

	result, err := tx.Exec("UPDATE portfolios SET cash_balance = $1 WHERE id = $2",
		float64(models.StartingBalance), portfolioID)
	if err != nil {
		return fmt.Errorf("failed to reset balance: %w", err)
	}
	if rows, err := result.RowsAffected(); err == nil && rows == 0 {
		return fmt.Errorf("%w: portfolio %s", shared.ErrNotFound, portfolioID)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit reset: %w", err)
	}
	return nil
}
