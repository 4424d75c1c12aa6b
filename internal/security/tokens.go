package security

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	// ErrInvalidToken is returned when an ingest token is malformed, expired or signed with another key.
	ErrInvalidToken = errors.New("invalid token")
	// ErrIngestDisabled is returned when no ingest secret is configured.
	ErrIngestDisabled = errors.New("payment ingest is not configured")
)

// NewSessionToken returns a fresh opaque session token: a random (v4) UUID, 122 bits of entropy.
func NewSessionToken() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("session token: %w", err)
	}
	return id.String(), nil
}

// IngestClaims are the claims of a payment-ingest bearer token.
type IngestClaims struct {
	jwt.RegisteredClaims
	Scope string `json:"scope"`
}

const ingestScope = "payments:ingest"

// IngestTokens issues and validates HS256 tokens that authorize the bank-mail bot to push payments.
type IngestTokens struct {
	secret []byte
	issuer string
	nowF   func() time.Time
}

// NewIngestTokens returns an IngestTokens keyed with secret. An empty secret disables ingest.
func NewIngestTokens(secret, issuer string) *IngestTokens {
	return &IngestTokens{secret: []byte(secret), issuer: issuer, nowF: time.Now}
}

// Issue signs a token for subject valid for ttl.
func (t *IngestTokens) Issue(subject string, ttl time.Duration) (string, error) {
	if len(t.secret) == 0 {
		return "", ErrIngestDisabled
	}
	now := t.nowF().UTC()
	claims := IngestClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			Subject:   subject,
			Issuer:    t.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Scope: ingestScope,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
}

// Validate parses tokenString (signature, exp, iss, scope) and returns its subject.
func (t *IngestTokens) Validate(tokenString string) (string, error) {
	if len(t.secret) == 0 {
		return "", ErrIngestDisabled
	}
	token, err := jwt.ParseWithClaims(tokenString, &IngestClaims{}, func(token *jwt.Token) (interface{}, error) {
		return t.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(t.issuer),
		jwt.WithTimeFunc(t.nowF),
	)
	if err != nil {
		return "", ErrInvalidToken
	}
	claims, ok := token.Claims.(*IngestClaims)
	if !ok || !token.Valid || claims.Scope != ingestScope {
		return "", ErrInvalidToken
	}
	return claims.Subject, nil
}
