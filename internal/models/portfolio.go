package models

import (
	"fmt"
	"time"

	"github.com/omrelabs/omre/internal/shared"
)

// StartingBalance is the paper trading cash every new portfolio begins with.
const StartingBalance = 1_000_000

// Side is the direction of a paper trade.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Portfolio holds a user's paper trading cash. One portfolio per user.
type Portfolio struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	CashBalance float64   `json:"cash_balance"`
	CreatedAt   time.Time `json:"created_at"`
}

// NewPortfolio creates a portfolio with the starting balance.
func NewPortfolio(userID string) *Portfolio {
	return &Portfolio{
		ID:          shared.GenerateID(),
		UserID:      userID,
		CashBalance: StartingBalance,
		CreatedAt:   time.Now(),
	}
}

// Position is an open paper holding. Negative quantity is a short.
type Position struct {
	ID            int64     `json:"id"`
	PortfolioID   string    `json:"portfolio_id"`
	Tradingsymbol string    `json:"tradingsymbol"`
	Quantity      int       `json:"quantity"`
	AveragePrice  float64   `json:"average_price"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// MarketValue returns the position value at the given price.
func (p *Position) MarketValue(price float64) float64 {
	return float64(p.Quantity) * price
}

// UnrealizedPnL returns profit and loss against the average entry price.
func (p *Position) UnrealizedPnL(price float64) float64 {
	return float64(p.Quantity) * (price - p.AveragePrice)
}

// Apply folds a fill into the position. Expanding a position reprices the
// average as a weighted mean; reducing or covering keeps the existing
// average. Returns the updated quantity.
func (p *Position) Apply(side Side, quantity int, price float64) int {
	signed := quantity
	if side == SideSell {
		signed = -quantity
	}

	next := p.Quantity + signed
	expanding := (p.Quantity >= 0 && signed > 0) || (p.Quantity <= 0 && signed < 0)

	if expanding {
		prevAbs := abs(p.Quantity)
		total := prevAbs + quantity
		if total > 0 {
			p.AveragePrice = (p.AveragePrice*float64(prevAbs) + price*float64(quantity)) / float64(total)
		}
	} else if (p.Quantity > 0 && next < 0) || (p.Quantity < 0 && next > 0) {
		// Crossed through flat; the remainder opens at the fill price.
		p.AveragePrice = price
	}

	p.Quantity = next
	if p.Quantity == 0 {
		p.AveragePrice = 0
	}
	p.UpdatedAt = time.Now()
	return p.Quantity
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

// Transaction records one paper trade fill.
type Transaction struct {
	ID            int64     `json:"id"`
	PortfolioID   string    `json:"portfolio_id"`
	Tradingsymbol string    `json:"tradingsymbol"`
	Side          Side      `json:"side"`
	Quantity      int       `json:"quantity"`
	Price         float64   `json:"price"`
	ExecutedAt    time.Time `json:"executed_at"`
}

// Validate checks trade invariants before execution.
func (t *Transaction) Validate() error {
	if t.Tradingsymbol == "" {
		return fmt.Errorf("%w: tradingsymbol is required", shared.ErrInvalidInput)
	}
	if t.Quantity <= 0 {
		return fmt.Errorf("%w: quantity must be positive", shared.ErrInvalidInput)
	}
	if t.Side != SideBuy && t.Side != SideSell {
		return fmt.Errorf("%w: side must be BUY or SELL", shared.ErrInvalidInput)
	}
	if t.Price <= 0 {
		return fmt.Errorf("%w: price must be positive", shared.ErrInvalidInput)
	}
	return nil
}
