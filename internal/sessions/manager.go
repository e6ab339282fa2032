package sessions

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"presupuestos/internal/auth"
)

const DefaultTTL = 24 * time.Hour

// Manager ties a Store to the session cookie.
type Manager struct {
	store  Store
	ttl    time.Duration
	cookie CookieOptions
	now    func() time.Time
}

func NewManager(store Store, ttl time.Duration, cookie CookieOptions) *Manager {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Manager{store: store, ttl: ttl, cookie: cookie, now: time.Now}
}

// Load restores the session carried by r. Requests without a live record
// get a fresh signed-out session and an empty id.
func (m *Manager) Load(r *http.Request) (string, *auth.Session, error) {
	id := IDFromRequest(r)
	if id == "" {
		return "", auth.NewSession(), nil
	}
	rec, err := m.store.Get(r.Context(), id)
	if err != nil {
		return "", nil, fmt.Errorf("load session: %w", err)
	}
	if rec == nil {
		return "", auth.NewSession(), nil
	}
	return id, auth.RestoreSession(rec.State), nil
}

// Persist saves the state of sess under id, issuing a new id when empty,
// and refreshes the cookie. Signed-out sessions are deleted instead.
func (m *Manager) Persist(ctx context.Context, w http.ResponseWriter, id string, sess *auth.Session) (string, error) {
	state := sess.State()
	if state.User == nil {
		if id != "" {
			if err := m.store.Delete(ctx, id); err != nil {
				return "", fmt.Errorf("delete session: %w", err)
			}
			ClearCookie(w, m.cookie)
		}
		return "", nil
	}

	if id == "" {
		var err error
		if id, err = GenerateID(); err != nil {
			return "", err
		}
	}
	expires := m.now().Add(m.ttl)
	if err := m.store.Save(ctx, Record{ID: id, State: state, ExpiresAt: expires}); err != nil {
		return "", fmt.Errorf("save session: %w", err)
	}
	SetCookie(w, id, expires, m.cookie)
	return id, nil
}

// Renew stores a signed-in sess under a freshly generated id and drops the
// record behind oldID, so an id issued before sign-in never carries a user.
func (m *Manager) Renew(ctx context.Context, w http.ResponseWriter, oldID string, sess *auth.Session) (string, error) {
	if sess.State().User == nil {
		return m.Persist(ctx, w, oldID, sess)
	}
	if oldID != "" {
		if err := m.store.Delete(ctx, oldID); err != nil {
			return "", fmt.Errorf("delete session: %w", err)
		}
	}
	return m.Persist(ctx, w, "", sess)
}

// Ping reports whether the backing store is reachable.
func (m *Manager) Ping(ctx context.Context) error {
	_, err := m.store.Get(ctx, "ping")
	return err
}
