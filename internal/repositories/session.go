package repositories

import (
	"database/sql"
	"fmt"

	"github.com/omrelabs/omre/internal/models"
	"github.com/omrelabs/omre/internal/shared"
)

// SessionRepository keeps the broker session in the local store. Only the
// most recent session is retained; saving replaces whatever came before.
type SessionRepository struct {
	db *sql.DB
}

// NewSessionRepository creates a [SessionRepository] backed by the local
// database and ensures its table exists.
func NewSessionRepository(db *sql.DB) (*SessionRepository, error) {
	query := `
		CREATE TABLE IF NOT EXISTS kite_sessions (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			user_id TEXT NOT NULL,
			user_name TEXT,
			email TEXT,
			api_key TEXT NOT NULL,
			access_token TEXT NOT NULL,
			public_token TEXT,
			login_time TIMESTAMP NOT NULL
		)
	`
	if _, err := db.Exec(query); err != nil {
		return nil, fmt.Errorf("failed to create session table: %w", err)
	}

	return &SessionRepository{db: db}, nil
}

// Save replaces the stored session
func (r *SessionRepository) Save(session *models.KiteSession) error {
	if session.AccessToken == "" {
		return fmt.Errorf("%w: access token is required", shared.ErrInvalidInput)
	}

	query := `
		INSERT INTO kite_sessions (id, user_id, user_name, email, api_key, access_token, public_token, login_time)
		VALUES (1, $1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			user_id = excluded.user_id,
			user_name = excluded.user_name,
			email = excluded.email,
			api_key = excluded.api_key,
			access_token = excluded.access_token,
			public_token = excluded.public_token,
			login_time = excluded.login_time
	`

	if _, err := r.db.Exec(query, session.UserID, session.UserName, session.Email,
		session.APIKey, session.AccessToken, session.PublicToken, session.LoginTime); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}

	return nil
}

// Load retrieves the stored session
func (r *SessionRepository) Load() (*models.KiteSession, error) {
	var session models.KiteSession
	err := r.db.QueryRow(`
		SELECT user_id, user_name, email, api_key, access_token, public_token, login_time
		FROM kite_sessions
		WHERE id = 1
	`).Scan(&session.UserID, &session.UserName, &session.Email, &session.APIKey,
		&session.AccessToken, &session.PublicToken, &session.LoginTime)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: no stored session, run the login flow first", shared.ErrNotAuthenticated)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	return &session, nil
}

// Clear removes the stored session
func (r *SessionRepository) Clear() error {
	if _, err := r.db.Exec("DELETE FROM kite_sessions WHERE id = 1"); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	return nil
}
