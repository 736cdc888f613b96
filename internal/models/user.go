package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/omrelabs/omre/internal/shared"
)

// User is a dashboard account. PasswordHash is empty for accounts created
// through Google sign-in.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	FullName     string    `json:"full_name"`
	GoogleID     string    `json:"-"`
	PictureURL   string    `json:"picture_url,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// NewUser creates a user with a generated id and hashed password.
func NewUser(email, password, fullName string) (*User, error) {
	user := &User{
		ID:        shared.GenerateID(),
		Email:     strings.ToLower(strings.TrimSpace(email)),
		FullName:  strings.TrimSpace(fullName),
		CreatedAt: time.Now(),
	}

	if password != "" {
		hash, err := shared.HashPassword(password)
		if err != nil {
			return nil, err
		}
		user.PasswordHash = hash
	}

	if err := user.Validate(); err != nil {
		return nil, err
	}

	return user, nil
}

// NewGoogleUser creates a user from a verified Google identity.
func NewGoogleUser(email, fullName, googleID, pictureURL string) (*User, error) {
	user := &User{
		ID:         shared.GenerateID(),
		Email:      strings.ToLower(strings.TrimSpace(email)),
		FullName:   strings.TrimSpace(fullName),
		GoogleID:   googleID,
		PictureURL: pictureURL,
		CreatedAt:  time.Now(),
	}

	if err := user.Validate(); err != nil {
		return nil, err
	}

	return user, nil
}

// Validate checks the account invariants.
func (u *User) Validate() error {
	if u.ID == "" {
		return fmt.Errorf("%w: user id is required", shared.ErrInvalidInput)
	}
	if u.Email == "" || !strings.Contains(u.Email, "@") {
		return fmt.Errorf("%w: valid email is required", shared.ErrInvalidInput)
	}
	if u.PasswordHash == "" && u.GoogleID == "" {
		return fmt.Errorf("%w: either a password or a google account is required", shared.ErrInvalidInput)
	}
	return nil
}

// CheckPassword compares a plaintext password against the stored hash.
func (u *User) CheckPassword(password string) error {
	if u.PasswordHash == "" {
		return fmt.Errorf("%w: account uses google sign-in", shared.ErrInvalidCredentials)
	}
	return shared.CheckPassword(u.PasswordHash, password)
}
