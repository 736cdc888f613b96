package models

import (
	"fmt"
	"time"

	"github.com/omrelabs/omre/internal/shared"
)

// AlertCondition is the direction a price alert watches.
type AlertCondition string

const (
	ConditionAbove AlertCondition = "ABOVE"
	ConditionBelow AlertCondition = "BELOW"
)

// PriceAlert fires once when its condition is met, then deactivates.
type PriceAlert struct {
	ID            int64          `json:"id"`
	UserID        string         `json:"user_id"`
	Tradingsymbol string         `json:"tradingsymbol"`
	Condition     AlertCondition `json:"condition"`
	TargetPrice   float64        `json:"target_price"`
	IsActive      bool           `json:"is_active"`
	TriggeredAt   *time.Time     `json:"triggered_at,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
}

// Validate checks alert invariants.
func (a *PriceAlert) Validate() error {
	if a.Tradingsymbol == "" {
		return fmt.Errorf("%w: tradingsymbol is required", shared.ErrInvalidInput)
	}
	if a.Condition != ConditionAbove && a.Condition != ConditionBelow {
		return fmt.Errorf("%w: condition must be ABOVE or BELOW", shared.ErrInvalidInput)
	}
	if a.TargetPrice <= 0 {
		return fmt.Errorf("%w: target price must be positive", shared.ErrInvalidInput)
	}
	return nil
}

// ShouldTrigger reports whether the given price satisfies the alert.
func (a *PriceAlert) ShouldTrigger(price float64) bool {
	if !a.IsActive {
		return false
	}
	switch a.Condition {
	case ConditionAbove:
		return price >= a.TargetPrice
	case ConditionBelow:
		return price <= a.TargetPrice
	}
	return false
}
