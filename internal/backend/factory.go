package backend

import (
	"context"
	"crypto/rand"
	"fmt"
	"log/slog"
	"time"

	"presupuestos/internal/cache"
	"presupuestos/internal/docstore"
	"presupuestos/internal/firebase"
	"presupuestos/internal/identity"
	applog "presupuestos/internal/log"
	"presupuestos/internal/presupuestos"
	"presupuestos/internal/storage"
	"presupuestos/internal/store"
	"presupuestos/internal/store/memory"
)

// localStore is what a local backend persists through.
type localStore interface {
	store.AccountStore
	store.TokenRevocations
	store.ProfileStore
	store.DocumentStore
}

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *slog.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *slog.Logger) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultFactory{
		logger: logger,
	}
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	switch config.Type {
	case SQLiteBackend:
		return f.createSQLiteBackend(config)
	case FirebaseBackend:
		return f.createFirebaseBackend(ctx, config)
	case MemoryBackend:
		return f.createMemoryBackend(config)
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}

func (f *DefaultFactory) createSQLiteBackend(config Config) (*BackendResult, error) {
	repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
	}

	b, err := f.local(config, repo, repo.Ping)
	if err != nil {
		repo.Close()
		return nil, err
	}

	f.logger.Info("Initialized SQLite backend", "db_path", config.SQLiteDBPath)

	return &BackendResult{
		Backend: b,
		Cleanup: repo.Close,
	}, nil
}

func (f *DefaultFactory) createMemoryBackend(config Config) (*BackendResult, error) {
	b, err := f.local(config, memory.New(), func(context.Context) error { return nil })
	if err != nil {
		return nil, err
	}

	f.logger.Info("Initialized memory backend")

	return &BackendResult{
		Backend: b,
		Cleanup: nil, // No cleanup needed for memory backend
	}, nil
}

// local wires the self-hosted identity provider and document endpoint over s.
func (f *DefaultFactory) local(config Config, s localStore, ping func(context.Context) error) (*Backend, error) {
	key := config.TokenSigningKey
	if len(key) == 0 {
		key = make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			return nil, fmt.Errorf("generate signing key: %w", err)
		}
		f.logger.Warn("TOKEN_SIGNING_KEY not set, using an ephemeral key; sessions end on restart")
	}

	provider, err := identity.NewProvider(s, s, key,
		identity.WithTokenTTL(config.TokenTTL),
		identity.WithLockout(config.LoginMaxAttempts, config.LoginLockout),
		identity.WithLogger(f.logger.With(applog.FieldComponent, applog.ComponentIdentity)))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize identity provider: %w", err)
	}

	docs := docstore.NewHandler(s, []string{presupuestos.Collection},
		docstore.WithTokenVerifier(func(ctx context.Context, token string) error {
			_, err := provider.VerifyToken(ctx, token)
			return err
		}),
		docstore.WithLogger(f.logger.With(applog.FieldComponent, applog.ComponentDocstore)))

	client, err := f.client(config)
	if err != nil {
		return nil, err
	}

	return &Backend{
		Type:         config.Type,
		Identity:     provider,
		Profiles:     s,
		Presupuestos: client,
		Documents:    docs,
		Ping:         ping,
	}, nil
}

func (f *DefaultFactory) createFirebaseBackend(ctx context.Context, config Config) (*BackendResult, error) {
	creds, err := firebase.LoadCredentials(ctx, firebase.ServiceAccount{
		JSON: config.GoogleServiceAccountJSON,
		File: config.GoogleServiceAccountFile,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load service account credentials: %w", err)
	}

	provider, err := firebase.NewIdentityProvider(ctx, config.FirebaseAPIKey)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize identity provider: %w", err)
	}
	remote, err := firebase.NewProfileStore(ctx, config.FirebaseProjectID, creds)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize profile store: %w", err)
	}
	client, err := f.client(config)
	if err != nil {
		return nil, err
	}

	profiles := cache.NewProfiles(remote, cache.DefaultProfileEntries, cache.DefaultProfileTTL,
		f.logger.With(applog.FieldComponent, applog.ComponentProfiles))
	profiles.StartJanitor(time.Minute)

	f.logger.Info("Initialized firebase backend",
		"project_id", config.FirebaseProjectID,
		applog.FieldURL, config.PresupuestosBaseURL)

	return &BackendResult{
		Backend: &Backend{
			Type:         config.Type,
			Identity:     provider,
			Profiles:     profiles,
			Presupuestos: client,
			Ping: func(ctx context.Context) error {
				_, err := remote.Get(ctx, "readiness-probe")
				return err
			},
		},
		Cleanup: func() error {
			profiles.Stop()
			return nil
		},
	}, nil
}

func (f *DefaultFactory) client(config Config) (*presupuestos.Client, error) {
	c, err := presupuestos.New(config.PresupuestosBaseURL,
		presupuestos.WithLogger(f.logger.With(applog.FieldComponent, applog.ComponentPresupuestos)))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize presupuestos client: %w", err)
	}
	return c, nil
}
