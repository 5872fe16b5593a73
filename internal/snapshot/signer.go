// Package snapshot carries the tank stage result to the mix stage as a signed,
// expiring token so clients cannot alter totals between the two calls.
package snapshot

import (
	"errors"
	"fmt"
	"time"

	"github.com/couchcryptid/fertigation-mix/internal/domain"
	"github.com/golang-jwt/jwt/v5"
	"github.com/jonboulle/clockwork"
)

// ErrInvalidToken is returned for tokens that are malformed, tampered with,
// signed with another key or expired.
var ErrInvalidToken = errors.New("invalid snapshot token")

const issuer = "fertigation-mix"

type claims struct {
	jwt.RegisteredClaims
	Snapshot domain.Snapshot `json:"snapshot"`
}

// Signer issues and verifies HS256 snapshot tokens.
type Signer struct {
	key   []byte
	ttl   time.Duration
	clock clockwork.Clock
}

// NewSigner creates a Signer. Tokens expire ttl after issue.
func NewSigner(key []byte, ttl time.Duration, clock clockwork.Clock) *Signer {
	return &Signer{key: key, ttl: ttl, clock: clock}
}

// Sign encodes snap into a token.
func (s *Signer) Sign(snap domain.Snapshot) (string, error) {
	now := s.clock.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			ID:        snap.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
		Snapshot: snap,
	})
	signed, err := token.SignedString(s.key)
	if err != nil {
		return "", fmt.Errorf("sign snapshot: %w", err)
	}
	return signed, nil
}

// Parse verifies a token and returns its snapshot.
func (s *Signer) Parse(token string) (domain.Snapshot, error) {
	var c claims
	_, err := jwt.ParseWithClaims(token, &c,
		func(*jwt.Token) (any, error) { return s.key, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.clock.Now),
	)
	if err != nil {
		return domain.Snapshot{}, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	return c.Snapshot, nil
}
