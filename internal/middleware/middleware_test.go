package middleware_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/technosupport/ts-camstream/internal/cameras"
	"github.com/technosupport/ts-camstream/internal/data"
	"github.com/technosupport/ts-camstream/internal/middleware"
	"github.com/technosupport/ts-camstream/internal/tokens"
)

// Mock Token Validator
type MockTokenValidator struct{}

func (m MockTokenValidator) ValidateToken(token string) (*tokens.Claims, error) {
	switch token {
	case "valid-access":
		c := &tokens.Claims{Email: "alice@example.com", TokenType: tokens.Access}
		c.ID = "jti-1"
		return c, nil
	case "valid-refresh":
		c := &tokens.Claims{Email: "alice@example.com", TokenType: tokens.Refresh}
		c.ID = "jti-2"
		return c, nil
	case "revoked-access":
		c := &tokens.Claims{Email: "mallory@example.com", TokenType: tokens.Access}
		c.ID = "revoked-jti"
		return c, nil
	}
	return nil, tokens.ErrInvalidToken
}

// Mock Blacklist
type MockBlacklist struct{}

func (m MockBlacklist) IsBlacklisted(ctx context.Context, jti string) (bool, error) {
	return jti == "revoked-jti", nil
}
func (m MockBlacklist) AddToBlacklist(ctx context.Context, jti string, ttl time.Duration) error {
	return nil
}

func TestJWTAuthMiddleware_Success(t *testing.T) {
	mw := middleware.NewJWTAuth(MockTokenValidator{}, MockBlacklist{})

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Authorization", "Bearer valid-access")
	w := httptest.NewRecorder()

	mw.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ac, ok := middleware.GetAuthContext(r.Context())
		if !ok || ac.Actor != "alice@example.com" {
			t.Errorf("AuthContext missing or invalid")
		}
		w.WriteHeader(http.StatusOK)
	})).ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected 200, got %d", w.Code)
	}
}

func TestJWTAuthMiddleware_Rejections(t *testing.T) {
	mw := middleware.NewJWTAuth(MockTokenValidator{}, MockBlacklist{})
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("handler should not run")
	})

	cases := []struct {
		name   string
		header string
	}{
		{"missing header", ""},
		{"malformed header", "valid-access"},
		{"invalid token", "Bearer garbage"},
		{"refresh token", "Bearer valid-refresh"},
		{"revoked token", "Bearer revoked-access"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			w := httptest.NewRecorder()
			mw.Middleware(next).ServeHTTP(w, req)
			if w.Code != http.StatusUnauthorized {
				t.Errorf("%s: expected 401, got %d", tc.name, w.Code)
			}
		})
	}
}

// Mock device authenticator
type MockDeviceAuth struct{}

func (m MockDeviceAuth) Authenticate(ctx context.Context, apiKey string) (*data.Camera, error) {
	if apiKey == "good-key" {
		return &data.Camera{ID: uuid.New(), Name: "porch", IsActive: true}, nil
	}
	return nil, cameras.ErrUnauthorized
}

func TestAPIKeyAuth_Success(t *testing.T) {
	mw := middleware.NewAPIKeyAuth(MockDeviceAuth{})

	form := url.Values{"api_key": {"good-key"}}
	req := httptest.NewRequest("POST", "/", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()

	mw.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cam, ok := middleware.GetCamera(r.Context())
		if !ok || cam.Name != "porch" {
			t.Errorf("camera missing from context")
		}
		w.WriteHeader(http.StatusOK)
	})).ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected 200, got %d", w.Code)
	}
}

func TestAPIKeyAuth_BadKey(t *testing.T) {
	mw := middleware.NewAPIKeyAuth(MockDeviceAuth{})
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("handler should not run")
	})

	form := url.Values{"api_key": {"bad-key"}}
	req := httptest.NewRequest("POST", "/", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()

	mw.Middleware(next).ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"result":"NOK"`) {
		t.Errorf("expected NOK body, got %s", w.Body.String())
	}
}

func TestAPIKeyAuth_MissingKey(t *testing.T) {
	mw := middleware.NewAPIKeyAuth(MockDeviceAuth{})
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("handler should not run")
	})

	req := httptest.NewRequest("POST", "/", nil)
	w := httptest.NewRecorder()

	mw.Middleware(next).ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401, got %d", w.Code)
	}
}
