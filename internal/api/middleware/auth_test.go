package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/good-yellow-bee/vitalguard/internal/api/auth"
)

func TestJWTAuth_ValidToken(t *testing.T) {
	secret := []byte("test-secret-key-32-bytes-long!!")
	jwtService := auth.NewJWTService(secret, 15*time.Minute)

	token, err := jwtService.GenerateToken("op-123", "nurse.jones", auth.RoleAdmin)
	if err != nil {
		t.Fatalf("failed to generate token: %v", err)
	}

	var gotSubject, gotUsername, gotRole, gotActor string
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSubject = GetSubject(r.Context())
		gotUsername = GetUsername(r.Context())
		gotRole = GetRole(r.Context())
		gotActor = Actor(r.Context(), "spoofed")
		w.WriteHeader(http.StatusOK)
	})

	wrapped := JWTAuth(jwtService, nil)(handler)

	req := httptest.NewRequest("GET", "/test", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()

	wrapped.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if gotSubject != "op-123" {
		t.Errorf("Subject = %q, want %q", gotSubject, "op-123")
	}
	if gotUsername != "nurse.jones" {
		t.Errorf("Username = %q, want %q", gotUsername, "nurse.jones")
	}
	if gotRole != auth.RoleAdmin {
		t.Errorf("Role = %q, want %q", gotRole, auth.RoleAdmin)
	}
	if gotActor != "nurse.jones" {
		t.Errorf("Actor = %q, token identity must win over the body", gotActor)
	}
}

func TestJWTAuth_MissingToken(t *testing.T) {
	jwtService := auth.NewJWTService([]byte("test-secret-key-32-bytes-long!!"), 15*time.Minute)

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler should not be called")
	})

	wrapped := JWTAuth(jwtService, nil)(handler)

	req := httptest.NewRequest("GET", "/test", nil)
	rec := httptest.NewRecorder()

	wrapped.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
	if !strings.Contains(rec.Body.String(), `"code":"UNAUTHORIZED"`) {
		t.Errorf("body = %s, want UNAUTHORIZED envelope", rec.Body.String())
	}
}

func TestJWTAuth_InvalidToken(t *testing.T) {
	jwtService := auth.NewJWTService([]byte("test-secret-key-32-bytes-long!!"), 15*time.Minute)

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler should not be called")
	})

	wrapped := JWTAuth(jwtService, nil)(handler)

	tests := []struct {
		name   string
		header string
	}{
		{"no bearer prefix", "some-token"},
		{"wrong scheme", "Basic dXNlcjpwYXNz"},
		{"invalid token", "Bearer invalid-token"},
		{"empty bearer", "Bearer "},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/test", nil)
			req.Header.Set("Authorization", tc.header)
			rec := httptest.NewRecorder()

			wrapped.ServeHTTP(rec, req)

			if rec.Code != http.StatusUnauthorized {
				t.Errorf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
			}
		})
	}
}

func TestJWTAuth_ExpiredToken(t *testing.T) {
	jwtService := auth.NewJWTService([]byte("test-secret-key-32-bytes-long!!"), time.Millisecond)

	token, err := jwtService.GenerateToken("op-123", "nurse.jones", auth.RoleOperator)
	if err != nil {
		t.Fatalf("failed to generate token: %v", err)
	}

	time.Sleep(10 * time.Millisecond)

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler should not be called")
	})

	req := httptest.NewRequest("GET", "/test", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()

	JWTAuth(jwtService, nil)(handler).ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

func TestJWTAuth_Disabled(t *testing.T) {
	called := false
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		if got := Actor(r.Context(), "dr.who"); got != "dr.who" {
			t.Errorf("Actor = %q, want body actor", got)
		}
	})

	req := httptest.NewRequest("GET", "/test", nil)
	JWTAuth(nil, nil)(handler).ServeHTTP(httptest.NewRecorder(), req)

	if !called {
		t.Error("handler should be called when auth is disabled")
	}
}

func TestContextHelpers_Empty(t *testing.T) {
	ctx := context.Background()

	if got := GetSubject(ctx); got != "" {
		t.Errorf("GetSubject = %q, want empty", got)
	}
	if got := GetUsername(ctx); got != "" {
		t.Errorf("GetUsername = %q, want empty", got)
	}
	if got := GetRole(ctx); got != "" {
		t.Errorf("GetRole = %q, want empty", got)
	}
	if got := GetClaims(ctx); got != nil {
		t.Errorf("GetClaims = %v, want nil", got)
	}
	if got := Actor(ctx, "  "); got != "operator" {
		t.Errorf("Actor = %q, want default %q", got, "operator")
	}
}
