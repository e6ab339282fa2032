package auth

import (
	"context"

	"presupuestos/internal/core"
)

// Ports for the identity and profile backends.
type (
	// Credentials is what a provider returns after creating an account or
	// signing in.
	Credentials struct {
		User         core.Identity
		IDToken      string
		RefreshToken string
	}

	// IdentityProvider owns accounts and provider sessions. Failures are
	// reported as *Error with one of the auth/* codes.
	IdentityProvider interface {
		CreateAccount(ctx context.Context, email, password string) (Credentials, error)
		SignIn(ctx context.Context, email, password string) (Credentials, error)
		// SignOut invalidates the provider session behind idToken.
		SignOut(ctx context.Context, idToken string) error
	}

	// ProfileStore keeps the users/{uid} mirror.
	ProfileStore interface {
		// Upsert merges uid, email and displayName into users/{uid} without
		// touching other fields. An empty displayName keeps the stored one.
		Upsert(ctx context.Context, id core.Identity) error
		// Get returns nil, nil when there is no profile for uid.
		Get(ctx context.Context, uid string) (*core.Identity, error)
	}

	// Confirmer asks the user to confirm a destructive action.
	Confirmer interface {
		Confirm(ctx context.Context, p Prompt) (bool, error)
	}

	// Navigator moves the user agent to another screen.
	Navigator interface {
		Navigate(ctx context.Context, route string)
	}
)

// Prompt is a confirmation dialog.
type Prompt struct {
	Title       string `json:"title"`
	ConfirmText string `json:"confirmText"`
	CancelText  string `json:"cancelText"`
}

// LogoutPrompt is shown before closing a session.
var LogoutPrompt = Prompt{
	Title:       "Seguro que desea cerrar sesion?",
	ConfirmText: "Si, cerrar sesion",
	CancelText:  "Cancelar",
}

// Routes the session flow navigates to.
const (
	RouteHome         = "/inicio"
	RouteSessionEntry = "/sesion"
)

// ConfirmerFunc adapts a function to Confirmer.
type ConfirmerFunc func(ctx context.Context, p Prompt) (bool, error)

func (f ConfirmerFunc) Confirm(ctx context.Context, p Prompt) (bool, error) { return f(ctx, p) }

// Answer is a Confirmer that always gives the same answer.
type Answer bool

func (a Answer) Confirm(context.Context, Prompt) (bool, error) { return bool(a), nil }

// NavigatorFunc adapts a function to Navigator.
type NavigatorFunc func(ctx context.Context, route string)

func (f NavigatorFunc) Navigate(ctx context.Context, route string) { f(ctx, route) }

var nopNavigator = NavigatorFunc(func(context.Context, string) {})
