package backend

import (
	"context"
	"net/http"
	"time"

	"presupuestos/internal/auth"
	"presupuestos/internal/presupuestos"
)

// Backend groups the services one data backend provides.
type Backend struct {
	Type BackendType

	Identity auth.IdentityProvider
	Profiles auth.ProfileStore

	// Presupuestos is the budget client pointed at the backend's document
	// endpoint.
	Presupuestos *presupuestos.Client

	// Documents serves the document endpoint locally. Nil for hosted backends.
	Documents http.Handler

	// Ping reports whether the backend's storage is reachable.
	Ping func(ctx context.Context) error
}

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// BackendResult contains the backend instance and optional cleanup function
type BackendResult struct {
	Backend *Backend
	Cleanup CleanupFunc
}

// Factory creates backends based on configuration
type Factory interface {
	// CreateBackend creates a backend instance based on the provided config
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// Config holds configuration for backend creation
type Config struct {
	// Backend type
	Type BackendType

	// Root of the budget endpoint
	PresupuestosBaseURL string

	// SQLite specific
	SQLiteDBPath string

	// Local identity provider
	TokenSigningKey  []byte
	TokenTTL         time.Duration
	LoginMaxAttempts int
	LoginLockout     time.Duration

	// Hosted backend specific
	FirebaseAPIKey           string
	FirebaseProjectID        string
	GoogleServiceAccountJSON string
	GoogleServiceAccountFile string
}

// BackendType represents the type of backend
type BackendType string

const (
	MemoryBackend   BackendType = "memory"
	SQLiteBackend   BackendType = "sqlite"
	FirebaseBackend BackendType = "firebase"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case MemoryBackend, SQLiteBackend, FirebaseBackend:
		return true
	default:
		return false
	}
}

// Local reports whether the backend serves its own document endpoint.
func (bt BackendType) Local() bool {
	return bt == MemoryBackend || bt == SQLiteBackend
}
