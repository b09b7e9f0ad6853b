package middleware

import (
	"context"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/good-yellow-bee/vitalguard/internal/api/auth"
	"github.com/good-yellow-bee/vitalguard/internal/api/response"
)

// Context keys for storing operator information.
type contextKey string

const (
	subjectKey  contextKey = "subject"
	usernameKey contextKey = "username"
	roleKey     contextKey = "role"
	claimsKey   contextKey = "claims"
)

// JWTAuth returns middleware that validates bearer tokens. A nil service
// disables authentication.
func JWTAuth(jwtService *auth.JWTService, logger *zap.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(next http.Handler) http.Handler {
		if jwtService == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				response.JSONError(w, response.ErrInvalidToken)
				return
			}

			// Parse Bearer token
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				response.JSONError(w, response.ErrInvalidToken)
				return
			}

			claims, err := jwtService.ValidateToken(parts[1])
			if err != nil {
				logger.Debug("jwt auth failed", zap.String("remote_addr", r.RemoteAddr), zap.Error(err))
				response.JSONError(w, response.ErrInvalidToken)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
		})
	}
}

// WithClaims stores validated claims in ctx.
func WithClaims(ctx context.Context, claims *auth.Claims) context.Context {
	ctx = context.WithValue(ctx, subjectKey, claims.Subject)
	ctx = context.WithValue(ctx, usernameKey, claims.Username)
	ctx = context.WithValue(ctx, roleKey, claims.Role)
	return context.WithValue(ctx, claimsKey, claims)
}

// GetSubject returns the operator id from context.
func GetSubject(ctx context.Context) string {
	if v := ctx.Value(subjectKey); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// GetUsername returns the username from context.
func GetUsername(ctx context.Context) string {
	if v := ctx.Value(usernameKey); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// GetRole returns the operator role from context.
func GetRole(ctx context.Context) string {
	if v := ctx.Value(roleKey); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// GetClaims returns the JWT claims from context.
func GetClaims(ctx context.Context) *auth.Claims {
	if v := ctx.Value(claimsKey); v != nil {
		if c, ok := v.(*auth.Claims); ok {
			return c
		}
	}
	return nil
}

// Actor resolves who a lifecycle change is attributed to. Authenticated
// requests use the token; otherwise fallback is used, then "operator".
func Actor(ctx context.Context, fallback string) string {
	if c := GetClaims(ctx); c != nil {
		return c.Actor()
	}
	if fallback = strings.TrimSpace(fallback); fallback != "" {
		return fallback
	}
	return "operator"
}
