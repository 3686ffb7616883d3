package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// clockSkew tolerated when checking exp/nbf/iat of integrator-issued tokens.
const clockSkew = 5 * time.Second

var hmacMethods = []string{
	jwt.SigningMethodHS256.Alg(),
	jwt.SigningMethodHS384.Alg(),
	jwt.SigningMethodHS512.Alg(),
}

// UserClaims are the claims an integrator signs for one of its widget users.
// The user identifier travels in "id"; "sub" is accepted for older integrations.
type UserClaims struct {
	ID string `json:"id,omitempty"`
	jwt.RegisteredClaims
}

// UserID returns the subject of the token, preferring the "id" claim.
func (c *UserClaims) UserID() string {
	if id := strings.TrimSpace(c.ID); id != "" {
		return id
	}
	return strings.TrimSpace(c.Subject)
}

// VerifyUserToken checks the signature against the widget secret and the
// time-based claims, and returns the verified user identifier.
func VerifyUserToken(token string, secret []byte, now func() time.Time) (string, error) {
	token = strings.TrimSpace(token)
	if token == "" || len(secret) == 0 {
		return "", ErrInvalidToken
	}
	if now == nil {
		now = time.Now
	}
	claims := &UserClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return secret, nil
	},
		jwt.WithValidMethods(hmacMethods),
		jwt.WithTimeFunc(now),
		jwt.WithLeeway(clockSkew),
		jwt.WithIssuedAt(),
	)
	if err != nil || !parsed.Valid {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	userID := claims.UserID()
	if userID == "" {
		return "", ErrMissingSubject
	}
	return userID, nil
}

// MintUserToken signs an HS256 token for userID with the widget secret. A
// non-positive ttl produces a token without expiry.
func MintUserToken(secret, userID string, ttl time.Duration, now time.Time) (string, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return "", errors.New("userID is required")
	}
	if secret == "" {
		return "", errors.New("widget secret is required")
	}
	claims := UserClaims{
		ID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt: jwt.NewNumericDate(now),
		},
	}
	if ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}
