package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidCredential is returned for any token that does not verify.
var ErrInvalidCredential = errors.New("invalid credentials")

// Verifier turns a bearer credential into a subject id.
type Verifier interface {
	Verify(ctx context.Context, token string) (string, error)
}

// JWTVerifier accepts HS256 tokens signed with Secret. Issuer is checked when set.
type JWTVerifier struct {
	Secret string
	Issuer string
}

func (v JWTVerifier) Verify(_ context.Context, token string) (string, error) {
	if strings.TrimSpace(v.Secret) == "" {
		return "", errors.New("jwt secret not configured")
	}
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if v.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.Issuer))
	}
	claims := &jwt.RegisteredClaims{}
	parsed, err := jwt.NewParser(opts...).ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return []byte(v.Secret), nil
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidCredential, err)
	}
	if !parsed.Valid {
		return "", ErrInvalidCredential
	}
	if claims.Subject == "" {
		return "", fmt.Errorf("%w: subject claim required", ErrInvalidCredential)
	}
	return claims.Subject, nil
}

// Issuer mints tokens the JWTVerifier with the same secret accepts.
// It backs the dev login endpoint and the token CLI.
type Issuer struct {
	Secret string
	Issuer string
	TTL    time.Duration
	Now    func() time.Time
}

func (i Issuer) Mint(subject string) (string, error) {
	subject = strings.TrimSpace(subject)
	if subject == "" {
		return "", errors.New("subject required")
	}
	if strings.TrimSpace(i.Secret) == "" {
		return "", errors.New("jwt secret not configured")
	}
	now := time.Now
	if i.Now != nil {
		now = i.Now
	}
	ttl := i.TTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	issued := now().UTC()
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		Issuer:    i.Issuer,
		IssuedAt:  jwt.NewNumericDate(issued),
		ExpiresAt: jwt.NewNumericDate(issued.Add(ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(i.Secret))
}
