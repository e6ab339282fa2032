package core

import (
	"errors"
	"strings"
)

type (
	// Identity is the user as known to the identity provider and mirrored
	// into the profile store under users/{uid}.
	Identity struct {
		UID         string `json:"uid"`
		Email       string `json:"email"`
		DisplayName string `json:"displayName,omitempty"`
	}

	// Credential is the transient email/password pair collected by a form.
	Credential struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}

	// Presupuesto is an opaque budget record: string keys to JSON values.
	Presupuesto map[string]any
)

var (
	ErrEmptyUID   = errors.New("empty uid")
	ErrEmptyEmail = errors.New("empty email")
)

func (i Identity) Validate() error {
	if strings.TrimSpace(i.UID) == "" {
		return ErrEmptyUID
	}
	if strings.TrimSpace(i.Email) == "" {
		return ErrEmptyEmail
	}
	return nil
}

// ProfilePath returns the document path of the identity's profile mirror.
func (i Identity) ProfilePath() string {
	return ProfilePath(i.UID)
}

// ProfilePath returns users/{uid}.
func ProfilePath(uid string) string {
	return "users/" + uid
}

// Clone returns a shallow copy so callers can't mutate a stored record.
func (p Presupuesto) Clone() Presupuesto {
	if p == nil {
		return nil
	}
	out := make(Presupuesto, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}
