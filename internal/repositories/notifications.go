package repositories

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/omrelabs/omre/internal/models"
	"github.com/omrelabs/omre/internal/shared"
)

// NotificationRepository persists in-app notifications.
type NotificationRepository struct {
	db *sql.DB
}

// NewNotificationRepository creates a new [NotificationRepository] with the given database connection
func NewNotificationRepository(db *sql.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// Create inserts a new notification
func (r *NotificationRepository) Create(notification *models.Notification) error {
	if notification.Title == "" {
		return fmt.Errorf("%w: title is required", shared.ErrInvalidInput)
	}

	notification.CreatedAt = time.Now()

	query := `
		INSERT INTO notifications (user_id, kind, title, body, is_read, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	if _, err := r.db.Exec(query, notification.UserID, string(notification.Kind),
		notification.Title, notification.Body, notification.IsRead, notification.CreatedAt); err != nil {
		return fmt.Errorf("failed to insert notification: %w", err)
	}

	return nil
}

// ListByUser retrieves the user's most recent notifications
func (r *NotificationRepository) ListByUser(userID string, limit int) ([]models.Notification, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, user_id, kind, title, body, is_read, created_at
		FROM notifications
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`

	rows, err := r.db.Query(query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query notifications: %w", err)
	}
	defer rows.Close()

	var notifications []models.Notification
	for rows.Next() {
		var (
			notification models.Notification
			body         sql.NullString
		)
		if err := rows.Scan(&notification.ID, &notification.UserID, &notification.Kind,
			&notification.Title, &body, &notification.IsRead, &notification.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		notification.Body = body.String
		notifications = append(notifications, notification)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return notifications, nil
}

// MarkRead marks one notification as read
func (r *NotificationRepository) MarkRead(id int64, userID string) error {
	query := `
		UPDATE notifications
		SET is_read = TRUE
		WHERE id = $1 AND user_id = $2
	`

	result, err := r.db.Exec(query, id, userID)
	if err != nil {
		return fmt.Errorf("failed to mark notification read: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: notification %d", shared.ErrNotFound, id)
	}

	return nil
}

// MarkAllRead marks every notification for the user as read
func (r *NotificationRepository) MarkAllRead(userID string) error {
	if _, err := r.db.Exec("UPDATE notifications SET is_read = TRUE WHERE user_id = $1", userID); err != nil {
		return fmt.Errorf("failed to mark notifications read: %w", err)
	}
	return nil
}

// UnreadCount returns how many notifications the user has not read
func (r *NotificationRepository) UnreadCount(userID string) (int, error) {
	var count int
	err := r.db.QueryRow(
		"SELECT COUNT(*) FROM notifications WHERE user_id = $1 AND is_read = FALSE",
		userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count unread notifications: %w", err)
	}
	return count, nil
}
