package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"presupuestos/internal/core"
	applog "presupuestos/internal/log"
	"presupuestos/internal/notify"
)

// Success dialogs.
var (
	NoticeAccountActivated = notify.Success("Cuenta Activada", "La cuenta ya ha sido activada")
	NoticeSessionStarted   = notify.Success("Sesion Iniciada", "La sesion ha sido iniciada")
)

// Service bridges credentials to the identity provider and keeps the
// profile mirror in step. It holds no per-user state: every call takes the
// Session it acts on.
type Service struct {
	provider  IdentityProvider
	profiles  ProfileStore
	sink      notify.Sink
	confirmer Confirmer
	navigator Navigator
	logger    *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithSink sets where notifications go. Defaults to notify.Discard.
func WithSink(sink notify.Sink) Option {
	return func(s *Service) {
		if sink != nil {
			s.sink = sink
		}
	}
}

// WithConfirmer sets the logout confirmation. Defaults to always declining.
func WithConfirmer(c Confirmer) Option {
	return func(s *Service) {
		if c != nil {
			s.confirmer = c
		}
	}
}

// WithNavigator sets the navigation target of logout.
func WithNavigator(n Navigator) Option {
	return func(s *Service) {
		if n != nil {
			s.navigator = n
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func NewService(provider IdentityProvider, profiles ProfileStore, opts ...Option) *Service {
	s := &Service{
		provider:  provider,
		profiles:  profiles,
		sink:      notify.Discard,
		confirmer: Answer(false),
		navigator: nopNavigator,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// With returns a copy of s with opts applied. Request handlers use it to
// attach a per-request sink, confirmer and navigator to a shared service.
func (s *Service) With(opts ...Option) *Service {
	c := *s
	for _, opt := range opts {
		opt(&c)
	}
	return &c
}

// Register creates the account, mirrors the profile and signs sess in.
// Success is signalled only after the mirror write completes.
func (s *Service) Register(ctx context.Context, sess *Session, cred core.Credential) error {
	creds, err := s.provider.CreateAccount(ctx, cred.Email, cred.Password)
	if err != nil {
		return s.fail(ctx, applog.OpRegister, cred.Email, err)
	}
	return s.complete(ctx, applog.OpRegister, sess, creds, NoticeAccountActivated)
}

// Login signs in with the provider, re-mirrors the profile and signs sess in.
func (s *Service) Login(ctx context.Context, sess *Session, cred core.Credential) error {
	creds, err := s.provider.SignIn(ctx, cred.Email, cred.Password)
	if err != nil {
		return s.fail(ctx, applog.OpLogin, cred.Email, err)
	}
	return s.complete(ctx, applog.OpLogin, sess, creds, NoticeSessionStarted)
}

func (s *Service) complete(ctx context.Context, op string, sess *Session, creds Credentials, notice notify.Notification) error {
	if err := s.profiles.Upsert(ctx, creds.User); err != nil {
		// Keep the provider session and the mirror consistent: nobody is
		// signed in without a profile write.
		if serr := s.provider.SignOut(ctx, creds.IDToken); serr != nil {
			s.logger.WarnContext(ctx, "Failed to revoke provider session after mirror failure",
				applog.FieldUID, creds.User.UID,
				applog.FieldError, serr)
		}
		return s.fail(ctx, op, creds.User.Email, &MirrorError{UID: creds.User.UID, Err: err})
	}

	sess.signIn(creds.User, creds.IDToken)
	s.refresh(ctx, sess)

	s.logger.InfoContext(ctx, "Session started",
		applog.FieldOperation, op,
		applog.FieldUID, creds.User.UID,
		applog.FieldEmail, creds.User.Email)

	s.sink.Present(ctx, notice)
	return nil
}

// Logout asks for confirmation and, only if confirmed, closes the provider
// session, clears sess and navigates to the session-entry screen. It reports
// whether the session was closed.
func (s *Service) Logout(ctx context.Context, sess *Session) (bool, error) {
	ok, err := s.confirmer.Confirm(ctx, LogoutPrompt)
	if err != nil {
		return false, fmt.Errorf("confirm logout: %w", err)
	}
	if !ok {
		s.logger.DebugContext(ctx, "Logout cancelled")
		return false, nil
	}

	var uid string
	if u := sess.Current(); u != nil {
		uid = u.UID
	}
	if token := sess.IDToken(); token != "" {
		if err := s.provider.SignOut(ctx, token); err != nil {
			return false, s.fail(ctx, applog.OpLogout, "", err)
		}
	}

	sess.signOut()
	s.refresh(ctx, sess)

	s.logger.InfoContext(ctx, "Session closed",
		applog.FieldOperation, applog.OpLogout,
		applog.FieldUID, uid)

	s.navigator.Navigate(ctx, RouteSessionEntry)
	return true, nil
}

// IsAuthenticated is a snapshot of whether sess holds a provider session.
func (s *Service) IsAuthenticated(sess *Session) bool {
	return sess != nil && sess.IsAuthenticated()
}

// CurrentUser returns the signed-in identity as seen through the profile
// mirror, or nil when signed out.
func (s *Service) CurrentUser(ctx context.Context, sess *Session) *core.Identity {
	cur := sess.Current()
	if cur == nil {
		return nil
	}
	return s.project(ctx, *cur)
}

// ClassifyError maps err to its alert without presenting it.
func (s *Service) ClassifyError(err error) Alert {
	return ClassifyError(err)
}

// Alert classifies err and presents it as an error dialog.
func (s *Service) Alert(ctx context.Context, err error) Alert {
	a := ClassifyError(err)
	s.sink.Present(ctx, notify.Failure(a.Title, a.Message))
	return a
}

func (s *Service) fail(ctx context.Context, op, email string, err error) error {
	s.logger.WarnContext(ctx, "Session operation failed",
		applog.FieldOperation, op,
		applog.FieldEmail, email,
		applog.FieldAuthCode, CodeOf(err),
		applog.FieldError, err)
	s.Alert(ctx, err)
	return err
}

// refresh re-reads the mirror for the session's uid and publishes it to the
// session's subscribers, or nil when signed out.
func (s *Service) refresh(ctx context.Context, sess *Session) {
	cur := sess.Current()
	if cur == nil {
		sess.publish(nil)
		return
	}
	sess.publish(s.project(ctx, *cur))
}

func (s *Service) project(ctx context.Context, user core.Identity) *core.Identity {
	profile, err := s.profiles.Get(ctx, user.UID)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to read profile mirror",
			applog.FieldUID, user.UID,
			applog.FieldError, err)
		return &user
	}
	if profile == nil || profile.UID != user.UID {
		return &user
	}
	return profile
}

// IsMirrorError reports whether err came from the profile mirror write.
func IsMirrorError(err error) bool {
	var merr *MirrorError
	return errors.As(err, &merr)
}
