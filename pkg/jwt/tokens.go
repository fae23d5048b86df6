package jwt

import (
	"errors"
	"fmt"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
)

// DefaultTTL is the lifetime of an issued token.
const DefaultTTL = 24 * time.Hour

var (
	// ErrInvalidToken covers every verification failure: bad signature, bad encoding, expiry.
	ErrInvalidToken = errors.New("jwt: invalid token")
	// ErrMissingSecret is returned when the codec has no signing key.
	ErrMissingSecret = errors.New("jwt: signing secret not configured")
)

// Claims defines JWT payload. Subject carries the identity email.
type Claims struct {
	Role string `json:"role"`
	jwtlib.RegisteredClaims
}

// ExpiresAtTime returns the expiry instant, or the zero time when absent.
func (c *Claims) ExpiresAtTime() time.Time {
	if c == nil || c.ExpiresAt == nil {
		return time.Time{}
	}
	return c.ExpiresAt.Time
}

// Codec signs and verifies HS256 tokens with a process-wide secret.
type Codec struct {
	secret []byte
	ttl    time.Duration
}

// NewCodec returns a Codec. A non-positive ttl falls back to DefaultTTL.
func NewCodec(secret string, ttl time.Duration) Codec {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return Codec{secret: []byte(secret), ttl: ttl}
}

// TTL reports the lifetime applied to issued tokens.
func (c Codec) TTL() time.Duration {
	return c.ttl
}

// Issue signs a token for subject with role, issued at now. The iat and exp
// claims are encoded at second granularity, so now is truncated first and the
// token expires at now.Truncate(time.Second).Add(TTL()).
func (c Codec) Issue(subject, role string, now time.Time) (string, error) {
	if len(c.secret) == 0 {
		return "", ErrMissingSecret
	}
	now = now.Truncate(time.Second)
	claims := Claims{
		Role: role,
		RegisteredClaims: jwtlib.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwtlib.NewNumericDate(now),
			ExpiresAt: jwtlib.NewNumericDate(now.Add(c.ttl)),
		},
	}
	token := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims)
	return token.SignedString(c.secret)
}

// Verify validates signature and expiry of token as observed at now.
func (c Codec) Verify(token string, now time.Time) (*Claims, error) {
	if len(c.secret) == 0 {
		return nil, ErrMissingSecret
	}
	parsed, err := jwtlib.ParseWithClaims(token, &Claims{}, func(t *jwtlib.Token) (interface{}, error) {
		return c.secret, nil
	},
		jwtlib.WithValidMethods([]string{jwtlib.SigningMethodHS256.Name}),
		jwtlib.WithExpirationRequired(),
		jwtlib.WithTimeFunc(func() time.Time { return now }),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
