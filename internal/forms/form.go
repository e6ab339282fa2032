// Package forms holds the login and registration form state machines.
//
// A form collects an email and a password, validates them, and hands a
// snapshot to the session service on a separate goroutine:
//
//	Editing -> Submitting -> Succeeded (navigates to /inicio)
//	                      -> Editing   (error already presented)
package forms

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"presupuestos/internal/auth"
	"presupuestos/internal/core"
	applog "presupuestos/internal/log"
)

// State of a form.
type State int

const (
	StateEditing State = iota
	StateSubmitting
	StateSucceeded
)

func (s State) String() string {
	switch s {
	case StateEditing:
		return "editing"
	case StateSubmitting:
		return "submitting"
	case StateSucceeded:
		return "succeeded"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// ResetPolicy decides when the fields are emptied after a submission.
type ResetPolicy int

const (
	// ResetOnDispatch empties the fields as soon as the call is dispatched,
	// before the outcome is known.
	ResetOnDispatch ResetPolicy = iota
	// ResetOnSettle empties the fields when the call settles.
	ResetOnSettle
)

func (p ResetPolicy) String() string {
	if p == ResetOnSettle {
		return "settle"
	}
	return "dispatch"
}

// ParseResetPolicy accepts "dispatch" and "settle".
func ParseResetPolicy(s string) (ResetPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "dispatch":
		return ResetOnDispatch, nil
	case "settle":
		return ResetOnSettle, nil
	default:
		return ResetOnDispatch, fmt.Errorf("unknown form reset policy %q", s)
	}
}

// ErrSubmitting is returned by Submit while a submission is in flight.
var ErrSubmitting = errors.New("form is already submitting")

type submitFunc func(ctx context.Context, sess *auth.Session, cred core.Credential) error

// Form is safe for concurrent use.
type Form struct {
	name   string
	submit submitFunc
	sess   *auth.Session
	nav    auth.Navigator
	policy ResetPolicy
	logger *slog.Logger

	mu       sync.Mutex
	email    string
	password string
	state    State
	lastErr  error
}

type Option func(*Form)

func WithResetPolicy(p ResetPolicy) Option {
	return func(f *Form) { f.policy = p }
}

func WithLogger(logger *slog.Logger) Option {
	return func(f *Form) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// NewLoginForm submits through svc.Login.
func NewLoginForm(svc *auth.Service, sess *auth.Session, nav auth.Navigator, opts ...Option) *Form {
	return newForm("login", svc.Login, sess, nav, opts)
}

// NewRegistrationForm submits through svc.Register.
func NewRegistrationForm(svc *auth.Service, sess *auth.Session, nav auth.Navigator, opts ...Option) *Form {
	return newForm("registro", svc.Register, sess, nav, opts)
}

func newForm(name string, submit submitFunc, sess *auth.Session, nav auth.Navigator, opts []Option) *Form {
	if nav == nil {
		nav = auth.NavigatorFunc(func(context.Context, string) {})
	}
	f := &Form{
		name:   name,
		submit: submit,
		sess:   sess,
		nav:    nav,
		policy: ResetOnDispatch,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func (f *Form) SetEmail(v string) {
	f.mu.Lock()
	f.email = v
	f.mu.Unlock()
}

func (f *Form) SetPassword(v string) {
	f.mu.Lock()
	f.password = v
	f.mu.Unlock()
}

// Values returns the current field contents.
func (f *Form) Values() core.Credential {
	f.mu.Lock()
	defer f.mu.Unlock()
	return core.Credential{Email: f.email, Password: f.password}
}

func (f *Form) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// Err is the error of the last settled submission, or nil.
func (f *Form) Err() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastErr
}

// Validate checks the current fields without submitting.
func (f *Form) Validate() error {
	return f.Values().Validate()
}

// Submit validates the fields and, if they pass, dispatches the session
// call. An invalid form returns a *core.ValidationError and stays editing.
func (f *Form) Submit(ctx context.Context) (*Pending, error) {
	f.mu.Lock()
	if f.state == StateSubmitting {
		f.mu.Unlock()
		return nil, ErrSubmitting
	}
	cred := core.Credential{Email: f.email, Password: f.password}
	if err := cred.Validate(); err != nil {
		f.mu.Unlock()
		f.logger.DebugContext(ctx, "Form rejected",
			applog.FieldComponent, applog.ComponentForms,
			applog.FieldForm, f.name,
			applog.FieldError, err)
		return nil, err
	}
	f.state = StateSubmitting
	f.lastErr = nil
	if f.policy == ResetOnDispatch {
		f.clear()
	}
	f.mu.Unlock()

	p := &Pending{done: make(chan struct{})}
	go func() {
		err := f.submit(ctx, f.sess, cred)
		f.settle(ctx, err)
		p.err = err
		close(p.done)
	}()
	return p, nil
}

func (f *Form) settle(ctx context.Context, err error) {
	f.mu.Lock()
	if f.policy == ResetOnSettle {
		f.clear()
	}
	f.lastErr = err
	if err != nil {
		f.state = StateEditing
	} else {
		f.state = StateSucceeded
	}
	f.mu.Unlock()

	if err != nil {
		f.logger.DebugContext(ctx, "Form submission failed",
			applog.FieldComponent, applog.ComponentForms,
			applog.FieldForm, f.name,
			applog.FieldAuthCode, auth.CodeOf(err))
		return
	}
	f.nav.Navigate(ctx, auth.RouteHome)
}

func (f *Form) clear() {
	f.email = ""
	f.password = ""
}

// Pending is a dispatched submission.
type Pending struct {
	done chan struct{}
	err  error
}

// Done is closed when the submission settles.
func (p *Pending) Done() <-chan struct{} { return p.done }

// Wait blocks until the submission settles or ctx ends, and returns the
// session service's error.
func (p *Pending) Wait(ctx context.Context) error {
	select {
	case <-p.done:
		return p.err
	case <-ctx.Done():
		return ctx.Err()
	}
}
