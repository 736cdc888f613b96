package repositories

import (
	"database/sql"
	"fmt"

	"github.com/omrelabs/omre/internal/models"
	"github.com/omrelabs/omre/internal/shared"
)

// UserRepository persists [models.User] accounts.
type UserRepository struct {
	db *sql.DB
}

// NewUserRepository creates a new [UserRepository] with the given database connection
func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

// Create inserts a new user into the database
func (r *UserRepository) Create(user *models.User) error {
	if err := user.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	query := `
		INSERT INTO users (id, email, password_hash, full_name, google_id, picture_url, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.db.Exec(query, user.ID, user.Email,
		nullString(user.PasswordHash), user.FullName,
		nullString(user.GoogleID), user.PictureURL, user.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert user: %w", err)
	}

	return nil
}

// Get retrieves a user by ID
func (r *UserRepository) Get(id string) (*models.User, error) {
	return r.getBy("id", id)
}

// GetByEmail retrieves a user by email
func (r *UserRepository) GetByEmail(email string) (*models.User, error) {
	return r.getBy("email", email)
}

// GetByGoogleID retrieves a user linked to a Google account
func (r *UserRepository) GetByGoogleID(googleID string) (*models.User, error) {
	return r.getBy("google_id", googleID)
}

func (r *UserRepository) getBy(column, value string) (*models.User, error) {
	query := fmt.Sprintf(`
		SELECT id, email, password_hash, full_name, google_id, picture_url, created_at
		FROM users
		WHERE %s = $1
	`, column)

	var (
		user         models.User
		passwordHash sql.NullString
		googleID     sql.NullString
	)

	err := r.db.QueryRow(query, value).Scan(&user.ID, &user.Email, &passwordHash,
		&user.FullName, &googleID, &user.PictureURL, &user.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", shared.ErrUserNotFound, value)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query user: %w", err)
	}

	user.PasswordHash = passwordHash.String
	user.GoogleID = googleID.String

	return &user, nil
}

// LinkGoogle attaches a Google identity to an existing account
func (r *UserRepository) LinkGoogle(userID, googleID, pictureURL string) error {
	query := `
		UPDATE users
		SET google_id = $1, picture_url = $2
		WHERE id = $3
	`

	result, err := r.db.Exec(query, googleID, pictureURL, userID)
	if err != nil {
		return fmt.Errorf("failed to link google account: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", shared.ErrUserNotFound, userID)
	}

	return nil
}

// nullString maps empty strings to SQL NULL so unique indexes ignore them.
func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
