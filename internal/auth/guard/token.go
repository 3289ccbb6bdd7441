package guard

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/hkdf"
)

// Verdict is the outcome of checking a token's signature and expiry.
type Verdict int

const (
	Malformed Verdict = iota
	Valid
	Expired
)

func (v Verdict) String() string {
	switch v {
	case Valid:
		return "valid"
	case Expired:
		return "expired"
	default:
		return "malformed"
	}
}

const keyInfo = "usersapi/single-use-token/v1"

// deriveKey stretches the configured secret into a fixed-size HMAC key.
func deriveKey(secret string) ([]byte, error) {
	key := make([]byte, 32)
	r := hkdf.New(sha256.New, []byte(secret), nil, []byte(keyInfo))
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, err
	}
	return key, nil
}

// Issue returns a freshly signed token valid for the configured TTL. Issued
// tokens are not recorded anywhere.
func (g *Guard) Issue() (string, error) {
	now := g.now()
	claims := jwt.RegisteredClaims{
		ID:        uuid.NewString(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(g.ttl)),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(g.key)
	if err != nil {
		return "", fmt.Errorf("%w: sign token: %v", ErrInternal, err)
	}
	g.metrics.issued()
	return signed, nil
}

// Verify checks signature and expiry only. It never touches the used set.
func (g *Guard) Verify(token string) Verdict {
	v, _, _ := g.verify(token)
	return v
}

// verify also returns the expiry of a Valid token and reports failures of
// the verification machinery itself (as opposed to bad tokens), which Admit
// surfaces as ErrInternal.
func (g *Guard) verify(token string) (Verdict, time.Time, error) {
	var claims jwt.RegisteredClaims
	_, err := g.parser.ParseWithClaims(token, &claims, g.keyFunc)
	switch {
	case err == nil:
		// WithExpirationRequired guarantees exp is set.
		return Valid, claims.ExpiresAt.Time, nil
	case errors.Is(err, jwt.ErrTokenUnverifiable):
		return Malformed, time.Time{}, err
	case errors.Is(err, jwt.ErrTokenExpired):
		// Claims are validated only after the signature checked out.
		return Expired, time.Time{}, nil
	default:
		return Malformed, time.Time{}, nil
	}
}

// keyFunc only fails on misconfiguration; foreign algorithms are already
// rejected by the parser's method allow-list.
func (g *Guard) keyFunc(*jwt.Token) (interface{}, error) {
	if len(g.key) == 0 {
		return nil, errors.New("signing key not configured")
	}
	return g.key, nil
}

// TokenID returns the jti of a token without verifying it. Only meant for
// log correlation after Admit succeeded.
func TokenID(token string) string {
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return ""
	}
	return claims.ID
}
