package dispatch

import (
	"errors"
	"fmt"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
)

// Claims are the registration token claims; the subject is the worker or
// relay name.
type Claims struct {
	jwt.RegisteredClaims
}

// IssueToken returns an HS256 token for name valid for ttl.
func IssueToken(secret []byte, name string, ttl time.Duration) (string, error) {
	if len(secret) == 0 {
		return "", errors.New("dispatch: empty token secret")
	}
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   name,
			ID:        "register-" + now.Format("20060102T150405"),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

// VerifyToken checks the signature and expiry of token and that it was
// issued for name.
func VerifyToken(secret []byte, token, name string) error {
	if token == "" {
		return fmt.Errorf("missing token: %w", ErrUnauthorized)
	}
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	tok, err := parser.ParseWithClaims(token, &Claims{}, func(*jwt.Token) (any, error) {
		return secret, nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	claims, ok := tok.Claims.(*Claims)
	if !ok || !tok.Valid {
		return fmt.Errorf("invalid claims: %w", ErrUnauthorized)
	}
	if claims.Subject != name {
		return fmt.Errorf("token issued for %q, not %q: %w", claims.Subject, name, ErrUnauthorized)
	}

	return nil
}
