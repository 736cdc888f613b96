package repositories

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/omrelabs/omre/internal/models"
	"github.com/omrelabs/omre/internal/shared"
)

// AlertRepository persists price alerts.
type AlertRepository struct {
	db *sql.DB
}

// NewAlertRepository creates a new [AlertRepository] with the given database connection
func NewAlertRepository(db *sql.DB) *AlertRepository {
	return &AlertRepository{db: db}
}

// Create inserts a new alert
func (r *AlertRepository) Create(alert *models.PriceAlert) error {
	alert.Tradingsymbol = strings.ToUpper(strings.TrimSpace(alert.Tradingsymbol))
	if err := alert.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	alert.IsActive = true
	alert.CreatedAt = time.Now()

	query := `
		INSERT INTO price_alerts (user_id, tradingsymbol, condition, target_price, is_active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	if _, err := r.db.Exec(query, alert.UserID, alert.Tradingsymbol,
		string(alert.Condition), alert.TargetPrice, alert.IsActive, alert.CreatedAt); err != nil {
		return fmt.Errorf("failed to insert alert: %w", err)
	}

	return nil
}

// ListByUser retrieves all alerts belonging to a user, newest first
func (r *AlertRepository) ListByUser(userID string) ([]models.PriceAlert, error) {
	query := `
		SELECT id, user_id, tradingsymbol, condition, target_price, is_active, triggered_at, created_at
		FROM price_alerts
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
	`

	rows, err := r.db.Query(query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query alerts: %w", err)
	}
	defer rows.Close()

	return scanAlerts(rows)
}

// ListActive retrieves every active alert across all users, for the
// evaluation sweep after each pipeline run.
func (r *AlertRepository) ListActive() ([]models.PriceAlert, error) {
	query := `
		SELECT id, user_id, tradingsymbol, condition, target_price, is_active, triggered_at, created_at
		FROM price_alerts
		WHERE is_active = TRUE
		ORDER BY tradingsymbol ASC
	`

	rows, err := r.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query active alerts: %w", err)
	}
	defer rows.Close()

	return scanAlerts(rows)
}

// MarkTriggered deactivates an alert and stamps the trigger time
func (r *AlertRepository) MarkTriggered(id int64) error {
	query := `
		UPDATE price_alerts
		SET is_active = FALSE, triggered_at = $1
		WHERE id = $2 AND is_active = TRUE
	`

	result, err := r.db.Exec(query, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to mark alert triggered: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: alert %d not found or inactive", shared.ErrNotFound, id)
	}

	return nil
}

// Delete removes an alert owned by the given user
func (r *AlertRepository) Delete(id int64, userID string) error {
	result, err := r.db.Exec("DELETE FROM price_alerts WHERE id = $1 AND user_id = $2", id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete alert: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: alert %d", shared.ErrNotFound, id)
	}

	return nil
}

func scanAlerts(rows *sql.Rows) ([]models.PriceAlert, error) {
	var alerts []models.PriceAlert
	for rows.Next() {
		var (
			alert       models.PriceAlert
			triggeredAt sql.NullTime
		)
		if err := rows.Scan(&alert.ID, &alert.UserID, &alert.Tradingsymbol,
			&alert.Condition, &alert.TargetPrice, &alert.IsActive,
			&triggeredAt, &alert.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan alert: %w", err)
		}
		if triggeredAt.Valid {
			alert.TriggeredAt = &triggeredAt.Time
		}
		alerts = append(alerts, alert)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return alerts, nil
}
