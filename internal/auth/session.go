package auth

import (
	"sync"

	"presupuestos/internal/core"
)

// State is the persistable part of a session.
type State struct {
	User    *core.Identity `json:"user,omitempty"`
	IDToken string         `json:"idToken,omitempty"`
}

// Session is the explicit session context of one user agent: the current
// identity, the provider token, and the observers of auth-state changes.
// The zero value is not usable; use NewSession or RestoreSession.
type Session struct {
	mu     sync.Mutex
	state  State
	subs   []subscriber
	nextID int
	closed bool
}

type subscriber struct {
	id int
	fn func(*core.Identity)
}

// NewSession returns a signed-out session.
func NewSession() *Session {
	return &Session{}
}

// RestoreSession rebuilds a session from a persisted state.
func RestoreSession(st State) *Session {
	s := &Session{}
	if st.User != nil {
		u := *st.User
		s.state = State{User: &u, IDToken: st.IDToken}
	}
	return s
}

// Current returns a copy of the signed-in identity, or nil.
func (s *Session) Current() *core.Identity {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.User == nil {
		return nil
	}
	u := *s.state.User
	return &u
}

// IsAuthenticated reports whether a provider session exists.
func (s *Session) IsAuthenticated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.User != nil
}

// IDToken returns the provider token of the current session, or "".
func (s *Session) IDToken() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.IDToken
}

// State returns a copy of the persistable state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := State{IDToken: s.state.IDToken}
	if s.state.User != nil {
		u := *s.state.User
		st.User = &u
	}
	return st
}

// Subscribe registers fn for every later auth-state change. fn receives the
// new identity, or nil after sign-out. Callbacks run in registration order
// on the goroutine that changed the state. The returned func unsubscribes.
func (s *Session) Subscribe(fn func(*core.Identity)) (unsubscribe func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return func() {}
	}
	s.nextID++
	id := s.nextID
	s.subs = append(s.subs, subscriber{id: id, fn: fn})

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			for i, sub := range s.subs {
				if sub.id == id {
					s.subs = append(s.subs[:i], s.subs[i+1:]...)
					return
				}
			}
		})
	}
}

// Close drops every subscription. Later state changes still update the
// session but notify nobody.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.subs = nil
}

func (s *Session) signIn(user core.Identity, idToken string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = State{User: &user, IDToken: idToken}
}

func (s *Session) signOut() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = State{}
}

// publish replaces the current identity with the projected one, when it
// still belongs to the signed-in uid, and notifies subscribers.
func (s *Session) publish(user *core.Identity) {
	s.mu.Lock()
	if user != nil && s.state.User != nil && s.state.User.UID == user.UID {
		u := *user
		s.state.User = &u
	}
	subs := append([]subscriber(nil), s.subs...)
	s.mu.Unlock()

	for _, sub := range subs {
		if user == nil {
			sub.fn(nil)
			continue
		}
		u := *user
		sub.fn(&u)
	}
}
