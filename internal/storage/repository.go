package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"presupuestos/internal/core"
	applog "presupuestos/internal/log"
	"presupuestos/internal/store"

	_ "modernc.org/sqlite"
)

type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
	now     func() time.Time
}

var (
	_ store.AccountStore     = (*SQLiteRepository)(nil)
	_ store.TokenRevocations = (*SQLiteRepository)(nil)
	_ store.ProfileStore     = (*SQLiteRepository)(nil)
	_ store.DocumentStore    = (*SQLiteRepository)(nil)
)

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	// Run migrations
	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	repo := &SQLiteRepository{
		db:      db,
		queries: New(db),
		now:     time.Now,
	}

	return repo, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping reports whether the database is reachable.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// CreateAccount implements store.AccountStore
func (r *SQLiteRepository) CreateAccount(ctx context.Context, a store.Account) error {
	created := a.CreatedAt
	if created.IsZero() {
		created = r.now()
	}
	n, err := r.queries.InsertAccount(ctx, AccountRow{
		UID:          a.UID,
		Email:        store.NormalizeEmail(a.Email),
		PasswordHash: a.PasswordHash,
		Disabled:     a.Disabled,
		CreatedAt:    created.Unix(),
	})
	if err != nil {
		return fmt.Errorf("insert account: %w", err)
	}
	if n == 0 {
		return store.ErrEmailTaken
	}

	slog.InfoContext(ctx, "Account saved to SQLite",
		applog.FieldUID, a.UID,
		applog.FieldEmail, a.Email)
	return nil
}

// AccountByEmail implements store.AccountStore
func (r *SQLiteRepository) AccountByEmail(ctx context.Context, email string) (store.Account, error) {
	row, err := r.queries.GetAccountByEmail(ctx, store.NormalizeEmail(email))
	if errors.Is(err, sql.ErrNoRows) {
		return store.Account{}, store.ErrAccountNotFound
	}
	if err != nil {
		return store.Account{}, fmt.Errorf("get account: %w", err)
	}
	return store.Account{
		UID:          row.UID,
		Email:        row.Email,
		PasswordHash: row.PasswordHash,
		Disabled:     row.Disabled,
		CreatedAt:    time.Unix(row.CreatedAt, 0),
	}, nil
}

// RevokeToken implements store.TokenRevocations
func (r *SQLiteRepository) RevokeToken(ctx context.Context, id string, expires time.Time) error {
	if err := r.queries.DeleteExpiredTokens(ctx, r.now().Unix()); err != nil {
		return fmt.Errorf("prune revoked tokens: %w", err)
	}
	if err := r.queries.InsertRevokedToken(ctx, id, expires.Unix()); err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	return nil
}

// IsRevoked implements store.TokenRevocations
func (r *SQLiteRepository) IsRevoked(ctx context.Context, id string) (bool, error) {
	n, err := r.queries.CountRevokedToken(ctx, id)
	if err != nil {
		return false, fmt.Errorf("check revoked token: %w", err)
	}
	return n > 0, nil
}

// Upsert implements auth.ProfileStore
func (r *SQLiteRepository) Upsert(ctx context.Context, id core.Identity) error {
	if err := id.Validate(); err != nil {
		return err
	}
	if err := r.queries.UpsertProfile(ctx, ProfileRow{
		UID:         id.UID,
		Email:       id.Email,
		DisplayName: id.DisplayName,
	}); err != nil {
		return fmt.Errorf("upsert profile %s: %w", id.UID, err)
	}
	return nil
}

// Get implements auth.ProfileStore
func (r *SQLiteRepository) Get(ctx context.Context, uid string) (*core.Identity, error) {
	row, err := r.queries.GetProfile(ctx, uid)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get profile %s: %w", uid, err)
	}
	return &core.Identity{UID: row.UID, Email: row.Email, DisplayName: row.DisplayName}, nil
}

// InsertDocument implements docstore.Store
func (r *SQLiteRepository) InsertDocument(ctx context.Context, collection string, doc json.RawMessage) (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("generate document id: %w", err)
	}
	if err := r.queries.PutDocument(ctx, collection, id.String(), string(doc)); err != nil {
		return "", fmt.Errorf("insert document: %w", err)
	}
	return id.String(), nil
}

// Document implements docstore.Store
func (r *SQLiteRepository) Document(ctx context.Context, collection, id string) (json.RawMessage, bool, error) {
	body, err := r.queries.GetDocument(ctx, collection, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get document: %w", err)
	}
	return json.RawMessage(body), true, nil
}

// Documents implements docstore.Store
func (r *SQLiteRepository) Documents(ctx context.Context, collection string) (map[string]json.RawMessage, error) {
	rows, err := r.queries.ListDocuments(ctx, collection)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	out := make(map[string]json.RawMessage, len(rows))
	for _, row := range rows {
		out[row.ID] = json.RawMessage(row.Body)
	}
	return out, nil
}

// PutDocument implements docstore.Store
func (r *SQLiteRepository) PutDocument(ctx context.Context, collection, id string, doc json.RawMessage) error {
	if err := r.queries.PutDocument(ctx, collection, id, string(doc)); err != nil {
		return fmt.Errorf("put document: %w", err)
	}
	return nil
}

// DeleteDocument implements docstore.Store
func (r *SQLiteRepository) DeleteDocument(ctx context.Context, collection, id string) error {
	if err := r.queries.DeleteDocument(ctx, collection, id); err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	return nil
}
