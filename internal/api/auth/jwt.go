// Package auth issues and validates the bearer tokens carried by operators
// of the alert console.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	RoleOperator = "operator"
	RoleAdmin    = "admin"
)

const (
	tokenIssuer     = "vitalguard"
	defaultTokenTTL = 12 * time.Hour
)

// Claims identify an operator. Username is the name alert lifecycle changes
// are attributed to.
type Claims struct {
	jwt.RegisteredClaims
	Username string `json:"usr"`
	Role     string `json:"role"`
}

// Actor returns the username, falling back to the subject.
func (c *Claims) Actor() string {
	if c.Username != "" {
		return c.Username
	}
	return c.Subject
}

// JWTService signs and verifies HS256 operator tokens.
type JWTService struct {
	secret []byte
	ttl    time.Duration
	parser *jwt.Parser
}

// NewJWTService returns a service issuing tokens valid for ttl (12h when
// zero).
func NewJWTService(secret []byte, ttl time.Duration) *JWTService {
	if ttl <= 0 {
		ttl = defaultTokenTTL
	}
	return &JWTService{
		secret: secret,
		ttl:    ttl,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithIssuer(tokenIssuer),
			jwt.WithExpirationRequired(),
		),
	}
}

func (s *JWTService) TTL() time.Duration {
	return s.ttl
}

// GenerateToken signs a token for subject. An empty role means operator.
func (s *JWTService) GenerateToken(subject, username, role string) (string, error) {
	if subject == "" {
		return "", errors.New("subject is required")
	}
	if role == "" {
		role = RoleOperator
	}
	if !validRole(role) {
		return "", fmt.Errorf("invalid role %q", role)
	}

	now := time.Now()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
		Username: username,
		Role:     role,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// ValidateToken verifies signature, issuer, expiry and role.
func (s *JWTService) ValidateToken(raw string) (*Claims, error) {
	claims := &Claims{}
	if _, err := s.parser.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	}); err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}
	if !validRole(claims.Role) {
		return nil, fmt.Errorf("invalid role %q", claims.Role)
	}
	return claims, nil
}

func validRole(role string) bool {
	return role == RoleOperator || role == RoleAdmin
}
