// Package auth issues and validates admin session tokens and checks the
// dashboard access key.
package auth

import (
	"crypto/subtle"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ErrInvalidToken covers every token rejection: bad signature, wrong
// algorithm, malformed, or expired. Callers map it to 401.
var ErrInvalidToken = errors.New("invalid session token")

// Claims carries the admin identity inside a session token.
type Claims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// Tokens signs and validates HS256 admin session tokens.
type Tokens struct {
	signingKey []byte
	issuer     string
	ttl        time.Duration
}

func NewTokens(signingKey, issuer string, ttl time.Duration) *Tokens {
	return &Tokens{
		signingKey: []byte(signingKey),
		issuer:     issuer,
		ttl:        ttl,
	}
}

// Issue mints a session token for a verified admin email.
func (t *Tokens) Issue(email string) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    t.issuer,
			ID:        uuid.NewString(),
		},
	})
	return token.SignedString(t.signingKey)
}

// Validate parses a token string and returns its claims.
func (t *Tokens) Validate(tokenString string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return t.signingKey, nil
	})
	if err != nil || !parsed.Valid {
		return nil, ErrInvalidToken
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// TTL reports the session lifetime, for response bodies.
func (t *Tokens) TTL() time.Duration {
	return t.ttl
}

// ValidAccessKey compares a submitted dashboard access key against the
// configured one in constant time. An empty configured key rejects
// everything.
func ValidAccessKey(configured, submitted string) bool {
	if configured == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(configured), []byte(submitted)) == 1
}
