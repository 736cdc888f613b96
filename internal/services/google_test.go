package services

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/omrelabs/omre/internal/shared"
	tu "github.com/omrelabs/omre/internal/testing"
)

func newTestGoogle(t *testing.T, transport http.RoundTripper) *GoogleService {
	t.Helper()

	service, err := NewGoogleService("client_id", "client_secret", "http://localhost:5000/api/v1/auth/google/callback")
	if err != nil {
		t.Fatalf("failed to create service: %v", err)
	}
	if transport != nil {
		service.httpClient = &http.Client{Transport: transport}
	}
	return service
}

func TestNewGoogleService(t *testing.T) {
	if _, err := NewGoogleService("", "", ""); !errors.Is(err, shared.ErrMissingCredentials) {
		t.Errorf("expected ErrMissingCredentials, got %v", err)
	}
}

func TestGoogleAuthURL(t *testing.T) {
	service := newTestGoogle(t, nil)

	authURL := service.AuthURL("state123")
	if !strings.HasPrefix(authURL, "https://accounts.google.com/o/oauth2/v2/auth") {
		t.Errorf("unexpected auth url: %s", authURL)
	}
	if !strings.Contains(authURL, "state=state123") {
		t.Error("expected state parameter in auth url")
	}
	if !strings.Contains(authURL, "scope=openid+email+profile") {
		t.Errorf("expected scopes in auth url: %s", authURL)
	}
}

func TestGoogleExchange(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		transport := &tu.RouterRoundTripper{
			Handlers: map[string]func(*http.Request) (*http.Response, error){
				"/token": func(req *http.Request) (*http.Response, error) {
					return jsonResponse(200, `{
						"access_token": "google_access",
						"token_type": "Bearer",
						"expires_in": 3600
					}`), nil
				},
				"/oauth2/v2/userinfo": func(req *http.Request) (*http.Response, error) {
					if req.Header.Get("Authorization") != "Bearer google_access" {
						t.Errorf("unexpected authorization: %s", req.Header.Get("Authorization"))
					}
					return jsonResponse(200, `{
						"id": "google-123",
						"email": "trader@example.com",
						"verified_email": true,
						"name": "A Trader",
						"picture": "https://pic.example.com/a.png"
					}`), nil
				},
			},
		}

		service := newTestGoogle(t, transport)

		identity, err := service.Exchange(context.Background(), "auth_code")
		if err != nil {
			t.Fatalf("failed to exchange code: %v", err)
		}
		if identity.ID != "google-123" || identity.Email != "trader@example.com" {
			t.Errorf("unexpected identity: %+v", identity)
		}
	})

	t.Run("BadCode", func(t *testing.T) {
		transport := tu.NewMockRoundTripper(jsonResponse(400, `{"error": "invalid_grant"}`), nil)
		service := newTestGoogle(t, transport)

		if _, err := service.Exchange(context.Background(), "bad"); !errors.Is(err, shared.ErrAuthFailed) {
			t.Errorf("expected ErrAuthFailed, got %v", err)
		}
	})

	t.Run("EmptyCode", func(t *testing.T) {
		service := newTestGoogle(t, nil)
		if _, err := service.Exchange(context.Background(), ""); !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})

	t.Run("MissingEmail", func(t *testing.T) {
		transport := &tu.RouterRoundTripper{
			Handlers: map[string]func(*http.Request) (*http.Response, error){
				"/token": func(req *http.Request) (*http.Response, error) {
					return jsonResponse(200, `{"access_token": "tok", "token_type": "Bearer"}`), nil
				},
				"/oauth2/v2/userinfo": func(req *http.Request) (*http.Response, error) {
					return jsonResponse(200, `{"id": "google-123"}`), nil
				},
			},
		}

		service := newTestGoogle(t, transport)
		if _, err := service.Exchange(context.Background(), "code"); !errors.Is(err, shared.ErrAuthFailed) {
			t.Errorf("expected ErrAuthFailed, got %v", err)
		}
	})
}
