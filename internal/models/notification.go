package models

import "time"

// NotificationKind distinguishes what produced a notification.
type NotificationKind string

const (
	NotificationAlert       NotificationKind = "alert"
	NotificationSystem      NotificationKind = "system"
	NotificationScoreChange NotificationKind = "score_change"
)

// Notification is an in-app message shown on the dashboard.
type Notification struct {
	ID        int64            `json:"id"`
	UserID    string           `json:"user_id"`
	Kind      NotificationKind `json:"kind"`
	Title     string           `json:"title"`
	Body      string           `json:"body,omitempty"`
	IsRead    bool             `json:"is_read"`
	CreatedAt time.Time        `json:"created_at"`
}
