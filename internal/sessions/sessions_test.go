package sessions

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"presupuestos/internal/auth"
	"presupuestos/internal/core"
)

func signedIn() auth.State {
	return auth.State{User: &core.Identity{UID: "u1", Email: "a@b.com"}, IDToken: "tok"}
}

func exerciseStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	if rec, err := s.Get(ctx, "missing"); rec != nil || err != nil {
		t.Fatalf("expected nil record, got %+v %v", rec, err)
	}
	if err := s.Save(ctx, Record{State: signedIn(), ExpiresAt: time.Now().Add(time.Hour)}); err != ErrMissingID {
		t.Fatalf("expected ErrMissingID, got %v", err)
	}
	if err := s.Save(ctx, Record{ID: "old", ExpiresAt: time.Now().Add(-time.Second)}); err != ErrExpired {
		t.Fatalf("expected ErrExpired, got %v", err)
	}

	if err := s.Save(ctx, Record{ID: "s1", State: signedIn(), ExpiresAt: time.Now().Add(time.Hour)}); err != nil {
		t.Fatalf("save: %v", err)
	}
	rec, err := s.Get(ctx, "s1")
	if err != nil || rec == nil {
		t.Fatalf("get: %+v %v", rec, err)
	}
	if rec.State.User.UID != "u1" || rec.State.IDToken != "tok" {
		t.Fatalf("unexpected state: %+v", rec.State)
	}

	if err := s.Delete(ctx, "s1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if rec, _ := s.Get(ctx, "s1"); rec != nil {
		t.Fatalf("record survived delete")
	}
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemoryStore())
}

func TestMemoryStoreExpiry(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	if err := s.Save(ctx, Record{ID: "s1", State: signedIn(), ExpiresAt: now.Add(time.Minute)}); err != nil {
		t.Fatalf("save: %v", err)
	}
	now = now.Add(2 * time.Minute)
	if rec, _ := s.Get(ctx, "s1"); rec != nil {
		t.Fatalf("expired record returned")
	}
}

func TestRedisStore(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	client, err := DialRedis(context.Background(), addr, os.Getenv("REDIS_PASSWORD"))
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer client.Close()
	exerciseStore(t, NewRedisStore(client))
}

func TestGenerateID(t *testing.T) {
	a, err := GenerateID()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	b, _ := GenerateID()
	if a == b || len(a) != 43 {
		t.Fatalf("unexpected ids %q %q", a, b)
	}
}

func TestManagerRoundTrip(t *testing.T) {
	ctx := context.Background()
	m := NewManager(NewMemoryStore(), time.Hour, CookieOptions{})

	// No cookie: fresh signed-out session.
	id, sess, err := m.Load(httptest.NewRequest(http.MethodGet, "/", nil))
	if err != nil || id != "" || sess.IsAuthenticated() {
		t.Fatalf("unexpected fresh load: %q %v", id, err)
	}

	// Persisting a signed-out session issues nothing.
	rr := httptest.NewRecorder()
	if id, err = m.Persist(ctx, rr, "", sess); err != nil || id != "" || len(rr.Result().Cookies()) != 0 {
		t.Fatalf("signed-out session must not be stored")
	}

	rr = httptest.NewRecorder()
	id, err = m.Persist(ctx, rr, "", auth.RestoreSession(signedIn()))
	if err != nil || id == "" {
		t.Fatalf("persist: %q %v", id, err)
	}
	cookies := rr.Result().Cookies()
	if len(cookies) != 1 || cookies[0].Name != CookieName || cookies[0].Value != id || !cookies[0].HttpOnly {
		t.Fatalf("unexpected cookie: %+v", cookies)
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookies[0])
	gotID, restored, err := m.Load(req)
	if err != nil || gotID != id || restored.Current().UID != "u1" || restored.IDToken() != "tok" {
		t.Fatalf("unexpected restore: %q %+v %v", gotID, restored.State(), err)
	}

	// Signing out deletes the record and clears the cookie.
	rr = httptest.NewRecorder()
	if _, err := m.Persist(ctx, rr, id, auth.NewSession()); err != nil {
		t.Fatalf("persist sign-out: %v", err)
	}
	cleared := rr.Result().Cookies()
	if len(cleared) != 1 || cleared[0].MaxAge >= 0 {
		t.Fatalf("cookie not cleared: %+v", cleared)
	}
	if _, sess, _ := m.Load(req); sess.IsAuthenticated() {
		t.Fatalf("deleted session restored")
	}
}

func TestManagerRenewIssuesNewID(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	m := NewManager(store, time.Hour, CookieOptions{})

	rr := httptest.NewRecorder()
	oldID, err := m.Persist(ctx, rr, "", auth.RestoreSession(signedIn()))
	if err != nil {
		t.Fatal(err)
	}

	rr = httptest.NewRecorder()
	newID, err := m.Renew(ctx, rr, oldID, auth.RestoreSession(signedIn()))
	if err != nil {
		t.Fatalf("renew: %v", err)
	}
	if newID == "" || newID == oldID {
		t.Fatalf("renew kept id %q", newID)
	}
	cookies := rr.Result().Cookies()
	if len(cookies) != 1 || cookies[0].Value != newID {
		t.Fatalf("unexpected cookie: %+v", cookies)
	}

	if rec, err := store.Get(ctx, oldID); err != nil || rec != nil {
		t.Errorf("old record still present: %+v %v", rec, err)
	}
	old := httptest.NewRequest(http.MethodGet, "/", nil)
	old.AddCookie(&http.Cookie{Name: CookieName, Value: oldID})
	if _, sess, _ := m.Load(old); sess.IsAuthenticated() {
		t.Error("old id still authenticates")
	}

	// An id that never held a record is simply replaced.
	rr = httptest.NewRecorder()
	if id, err := m.Renew(ctx, rr, "unknown", auth.RestoreSession(signedIn())); err != nil || id == "unknown" || id == "" {
		t.Errorf("renew from unknown id = %q, %v", id, err)
	}
}
