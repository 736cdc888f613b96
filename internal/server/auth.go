package server

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/charmbracelet/log"

	"github.com/omrelabs/omre/internal/models"
	"github.com/omrelabs/omre/internal/repositories"
	"github.com/omrelabs/omre/internal/services"
	"github.com/omrelabs/omre/internal/shared"
)

// AuthHandler serves account signup and login, including the Google
// social sign-in flow. Tokens are HS256 JWTs.
type AuthHandler struct {
	users  *repositories.UserRepository
	google *services.GoogleService
	secret string
	expiry time.Duration
	logger *log.Logger
}

// NewAuthHandler creates the auth handler. google may be nil when
// social sign-in is not configured.
func NewAuthHandler(
	users *repositories.UserRepository,
	google *services.GoogleService,
	secret string,
	expiry time.Duration,
	logger *log.Logger,
) *AuthHandler {
	if expiry <= 0 {
		expiry = shared.DefaultTokenExpiry
	}
	return &AuthHandler{users: users, google: google, secret: secret, expiry: expiry, logger: logger}
}

// Routes returns the HTTP routes this handler serves.
func (h *AuthHandler) Routes() []string {
	return []string{
		"POST /api/v1/auth/signup",
		"POST /api/v1/auth/login",
		"GET /api/v1/auth/google/login",
		"GET /api/v1/auth/google/callback",
	}
}

func (h *AuthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Pattern {
	case "POST /api/v1/auth/signup":
		h.signup(w, r)
	case "POST /api/v1/auth/login":
		h.login(w, r)
	case "GET /api/v1/auth/google/login":
		h.googleLogin(w, r)
	case "GET /api/v1/auth/google/callback":
		h.googleCallback(w, r)
	default:
		http.NotFound(w, r)
	}
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name"`
}

type tokenResponse struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

func (h *AuthHandler) signup(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	user, err := models.NewUser(req.Email, req.Password, req.FullName)
	if err != nil {
		writeError(w, err)
		return
	}

	if err := h.users.Create(user); err != nil {
		writeError(w, err)
		return
	}

	h.logger.Info("user signed up", "user", user.ID)
	h.respondWithToken(w, http.StatusCreated, user)
}

func (h *AuthHandler) login(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	user, err := h.users.GetByEmail(req.Email)
	if err != nil {
		if errors.Is(err, shared.ErrUserNotFound) {
			err = shared.ErrInvalidCredentials
		}
		writeError(w, err)
		return
	}

	if err := shared.CheckPassword(user.PasswordHash, req.Password); err != nil {
		writeError(w, shared.ErrInvalidCredentials)
		return
	}

	h.respondWithToken(w, http.StatusOK, user)
}

func (h *AuthHandler) googleLogin(w http.ResponseWriter, r *http.Request) {
	if h.google == nil {
		writeError(w, fmt.Errorf("%w: google sign-in not configured", shared.ErrServiceUnavailable))
		return
	}

	state, err := shared.GenerateState()
	if err != nil {
		writeError(w, err)
		return
	}

	http.Redirect(w, r, h.google.AuthURL(state), http.StatusFound)
}

func (h *AuthHandler) googleCallback(w http.ResponseWriter, r *http.Request) {
	if h.google == nil {
		writeError(w, fmt.Errorf("%w: google sign-in not configured", shared.ErrServiceUnavailable))
		return
	}

	code := r.URL.Query().Get("code")
	identity, err := h.google.Exchange(r.Context(), code)
	if err != nil {
		writeError(w, err)
		return
	}

	user, err := h.findOrCreateGoogleUser(identity)
	if err != nil {
		writeError(w, err)
		return
	}

	h.respondWithToken(w, http.StatusOK, user)
}

// findOrCreateGoogleUser resolves a Google identity to a local account:
// by google id, then by email (linking the account), then by signup.
func (h *AuthHandler) findOrCreateGoogleUser(identity *services.GoogleIdentity) (*models.User, error) {
	user, err := h.users.GetByGoogleID(identity.ID)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, shared.ErrUserNotFound) {
		return nil, err
	}

	user, err = h.users.GetByEmail(identity.Email)
	if err == nil {
		if err := h.users.LinkGoogle(user.ID, identity.ID, identity.Picture); err != nil {
			return nil, err
		}
		user.GoogleID = identity.ID
		user.PictureURL = identity.Picture
		return user, nil
	}
	if !errors.Is(err, shared.ErrUserNotFound) {
		return nil, err
	}

	user, err = models.NewGoogleUser(identity.Email, identity.Name, identity.ID, identity.Picture)
	if err != nil {
		return nil, err
	}
	if err := h.users.Create(user); err != nil {
		return nil, err
	}

	h.logger.Info("user signed up via google", "user", user.ID)
	return user, nil
}

func (h *AuthHandler) respondWithToken(w http.ResponseWriter, status int, user *models.User) {
	token, err := shared.CreateToken(h.secret, user.ID, user.Email, h.expiry)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, status, tokenResponse{Token: token, User: user})
}

// UsersHandler serves the authenticated user's own profile.
type UsersHandler struct {
	users *repositories.UserRepository
}

// NewUsersHandler creates the users handler.
func NewUsersHandler(users *repositories.UserRepository) *UsersHandler {
	return &UsersHandler{users: users}
}

// Routes returns the HTTP routes this handler serves.
func (h *UsersHandler) Routes() []string {
	return []string{"GET /api/v1/users/me"}
}

func (h *UsersHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserID(r.Context())
	if !ok {
		writeError(w, shared.ErrNotAuthenticated)
		return
	}

	user, err := h.users.Get(userID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, user)
}
