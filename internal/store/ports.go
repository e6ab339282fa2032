// Package store declares the persistence ports shared by the local
// backends. Adapters live in store/memory and storage (SQLite).
package store

import (
	"context"
	"errors"
	"strings"
	"time"

	"presupuestos/internal/auth"
	"presupuestos/internal/docstore"
)

var (
	ErrEmailTaken      = errors.New("email already registered")
	ErrAccountNotFound = errors.New("account not found")
)

// Account is a credential record of the local identity provider.
type Account struct {
	UID          string
	Email        string
	PasswordHash []byte
	Disabled     bool
	CreatedAt    time.Time
}

// Ports for the local backends.
type (
	AccountStore interface {
		// CreateAccount fails with ErrEmailTaken when the email exists.
		CreateAccount(ctx context.Context, a Account) error
		// AccountByEmail fails with ErrAccountNotFound.
		AccountByEmail(ctx context.Context, email string) (Account, error)
	}

	// TokenRevocations remembers signed-out tokens until they expire.
	TokenRevocations interface {
		RevokeToken(ctx context.Context, id string, expires time.Time) error
		IsRevoked(ctx context.Context, id string) (bool, error)
	}

	ProfileStore  = auth.ProfileStore
	DocumentStore = docstore.Store
)

// NormalizeEmail is the lookup key of an account.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
