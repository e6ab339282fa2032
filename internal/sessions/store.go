// Package sessions keeps each browser's auth.State between requests,
// keyed by an opaque id carried in a cookie.
package sessions

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"presupuestos/internal/auth"
)

var (
	ErrMissingID = errors.New("session: missing id")
	ErrExpired   = errors.New("session: expires_at must be in the future")
)

// Record is one stored browser session.
type Record struct {
	ID        string     `json:"id"`
	State     auth.State `json:"state"`
	ExpiresAt time.Time  `json:"expiresAt"`
}

// Store defines how sessions are stored and retrieved.
type Store interface {
	// Save creates or replaces the record until its expiry.
	Save(ctx context.Context, r Record) error
	// Get returns nil, nil for unknown or expired ids.
	Get(ctx context.Context, id string) (*Record, error)
	Delete(ctx context.Context, id string) error
}

func (r Record) validate(now time.Time) error {
	if r.ID == "" {
		return ErrMissingID
	}
	if !r.ExpiresAt.After(now) {
		return ErrExpired
	}
	return nil
}

// GenerateID returns a random URL-safe id with 256 bits of entropy.
func GenerateID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("session: failed to generate id: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
