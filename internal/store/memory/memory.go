// Package memory keeps accounts, profiles and documents in process memory.
// Everything is lost on restart; it backs DATA_BACKEND=memory and tests.
package memory

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"

	"presupuestos/internal/core"
	"presupuestos/internal/store"
)

type Store struct {
	mu       sync.Mutex
	accounts map[string]store.Account
	profiles map[string]core.Identity
	docs     map[string]map[string]json.RawMessage
	revoked  map[string]time.Time
	now      func() time.Time
}

var (
	_ store.AccountStore     = (*Store)(nil)
	_ store.TokenRevocations = (*Store)(nil)
	_ store.ProfileStore     = (*Store)(nil)
	_ store.DocumentStore    = (*Store)(nil)
)

func New() *Store {
	return &Store{
		accounts: map[string]store.Account{},
		profiles: map[string]core.Identity{},
		docs:     map[string]map[string]json.RawMessage{},
		revoked:  map[string]time.Time{},
		now:      time.Now,
	}
}

func (s *Store) CreateAccount(_ context.Context, a store.Account) error {
	key := store.NormalizeEmail(a.Email)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[key]; ok {
		return store.ErrEmailTaken
	}
	a.Email = key
	a.PasswordHash = append([]byte(nil), a.PasswordHash...)
	s.accounts[key] = a
	return nil
}

func (s *Store) AccountByEmail(_ context.Context, email string) (store.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[store.NormalizeEmail(email)]
	if !ok {
		return store.Account{}, store.ErrAccountNotFound
	}
	a.PasswordHash = append([]byte(nil), a.PasswordHash...)
	return a, nil
}

func (s *Store) RevokeToken(_ context.Context, id string, expires time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	for k, exp := range s.revoked {
		if now.After(exp) {
			delete(s.revoked, k)
		}
	}
	s.revoked[id] = expires
	return nil
}

func (s *Store) IsRevoked(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.revoked[id]
	return ok, nil
}

// Upsert merges uid and email; an empty display name keeps the stored one.
func (s *Store) Upsert(_ context.Context, id core.Identity) error {
	if err := id.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if prev, ok := s.profiles[id.UID]; ok && id.DisplayName == "" {
		id.DisplayName = prev.DisplayName
	}
	s.profiles[id.UID] = id
	return nil
}

func (s *Store) Get(_ context.Context, uid string) (*core.Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[uid]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

// InsertDocument assigns a time-ordered id so listings come back in insertion order.
func (s *Store) InsertDocument(_ context.Context, collection string, doc json.RawMessage) (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bucket(collection)[id.String()] = clone(doc)
	return id.String(), nil
}

func (s *Store) Document(_ context.Context, collection, id string) (json.RawMessage, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[collection][id]
	if !ok {
		return nil, false, nil
	}
	return clone(doc), true, nil
}

func (s *Store) Documents(_ context.Context, collection string) (map[string]json.RawMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]json.RawMessage, len(s.docs[collection]))
	for id, doc := range s.docs[collection] {
		out[id] = clone(doc)
	}
	return out, nil
}

func (s *Store) PutDocument(_ context.Context, collection, id string, doc json.RawMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bucket(collection)[id] = clone(doc)
	return nil
}

func (s *Store) DeleteDocument(_ context.Context, collection, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.docs[collection], id)
	return nil
}

func (s *Store) bucket(collection string) map[string]json.RawMessage {
	b, ok := s.docs[collection]
	if !ok {
		b = map[string]json.RawMessage{}
		s.docs[collection] = b
	}
	return b
}

func clone(doc json.RawMessage) json.RawMessage {
	return append(json.RawMessage(nil), doc...)
}
