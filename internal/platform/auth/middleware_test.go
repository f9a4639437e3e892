package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

var testCfg = JWTConfig{
	Secret:   []byte("test-secret"),
	Issuer:   "telecare",
	Audience: "telecare-api",
}

func runMiddleware(t *testing.T, mw echo.MiddlewareFunc, req *http.Request) (Actor, error) {
	t.Helper()
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	var got Actor
	handler := mw(func(c echo.Context) error {
		got = ActorFromContext(c.Request().Context())
		return c.NoContent(http.StatusOK)
	})
	return got, handler(c)
}

func TestJWTMiddleware_ValidToken(t *testing.T) {
	actor := Actor{ID: uuid.New(), Role: "doctor"}
	token, err := Sign(testCfg, actor, time.Hour)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)

	got, err := runMiddleware(t, JWTMiddleware(testCfg), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.ID != actor.ID || got.Role != "doctor" {
		t.Errorf("actor = %+v, want %+v", got, actor)
	}
}

func TestJWTMiddleware_MissingHeader(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	_, err := runMiddleware(t, JWTMiddleware(testCfg), req)
	var httpErr *echo.HTTPError
	if !errors.As(err, &httpErr) || httpErr.Code != http.StatusUnauthorized {
		t.Errorf("err = %v, want 401", err)
	}
}

func TestJWTMiddleware_WrongSecret(t *testing.T) {
	token, err := Sign(JWTConfig{Secret: []byte("other-secret"), Issuer: testCfg.Issuer, Audience: testCfg.Audience},
		Actor{ID: uuid.New(), Role: "patient"}, time.Hour)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)

	_, err = runMiddleware(t, JWTMiddleware(testCfg), req)
	var httpErr *echo.HTTPError
	if !errors.As(err, &httpErr) || httpErr.Code != http.StatusUnauthorized {
		t.Errorf("err = %v, want 401", err)
	}
}

func TestJWTMiddleware_ExpiredToken(t *testing.T) {
	token, err := Sign(testCfg, Actor{ID: uuid.New(), Role: "patient"}, -time.Minute)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)

	_, err = runMiddleware(t, JWTMiddleware(testCfg), req)
	var httpErr *echo.HTTPError
	if !errors.As(err, &httpErr) || httpErr.Code != http.StatusUnauthorized {
		t.Errorf("err = %v, want 401", err)
	}
}

func TestJWTMiddleware_MalformedHeader(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Token abc")

	_, err := runMiddleware(t, JWTMiddleware(testCfg), req)
	var httpErr *echo.HTTPError
	if !errors.As(err, &httpErr) || httpErr.Code != http.StatusUnauthorized {
		t.Errorf("err = %v, want 401", err)
	}
}

func TestDevAuthMiddleware_InjectsAdmin(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	got, err := runMiddleware(t, DevAuthMiddleware(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Role != "admin" {
		t.Errorf("role = %s, want admin", got.Role)
	}
}

func TestActorFromContext_Empty(t *testing.T) {
	actor := ActorFromContext(context.Background())
	if actor.ID != uuid.Nil || actor.Role != "" {
		t.Errorf("actor = %+v, want zero value", actor)
	}
}

func TestRequireRole(t *testing.T) {
	cases := []struct {
		name     string
		role     string
		required []string
		allow    bool
	}{
		{"exact match", "doctor", []string{"doctor"}, true},
		{"one of several", "patient", []string{"doctor", "patient"}, true},
		{"admin passes everything", "admin", []string{"doctor"}, true},
		{"denied", "patient", []string{"doctor"}, false},
		{"no actor", "", []string{"doctor"}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tc.role != "" {
				req = req.WithContext(WithActor(req.Context(), Actor{ID: uuid.New(), Role: tc.role}))
			}

			_, err := runMiddleware(t, RequireRole(tc.required...), req)
			if tc.allow && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if !tc.allow {
				var httpErr *echo.HTTPError
				if !errors.As(err, &httpErr) || httpErr.Code != http.StatusForbidden {
					t.Errorf("err = %v, want 403", err)
				}
			}
		})
	}
}
