package http

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"

	"presupuestos/internal/auth"
	"presupuestos/internal/core"
	"presupuestos/internal/forms"
	applog "presupuestos/internal/log"
	"presupuestos/internal/notify"
)

// routeRecorder is the Navigator of one request: the last route becomes
// the response's redirect.
type routeRecorder struct {
	mu    sync.Mutex
	route string
}

func (n *routeRecorder) Navigate(_ context.Context, route string) {
	n.mu.Lock()
	n.route = route
	n.mu.Unlock()
}

func (n *routeRecorder) Route() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.route
}

type formConstructor func(svc *auth.Service, sess *auth.Session, nav auth.Navigator, opts ...forms.Option) *forms.Form

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	s.submitForm(w, r, forms.NewRegistrationForm, applog.OpRegister, http.StatusCreated)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	s.submitForm(w, r, forms.NewLoginForm, applog.OpLogin, http.StatusOK)
}

// submitForm drives one session form: fill, submit, wait for settlement,
// then store the session under a new id and answer with what the form produced.
func (s *Server) submitForm(w http.ResponseWriter, r *http.Request, newForm formConstructor, op string, okStatus int) {
	ctx := r.Context()

	cred, err := ParseCredential(w, r)
	if err != nil {
		BadRequestError("Formato de peticion no valido").Write(w)
		return
	}

	id, sess, err := s.sessions.Load(r)
	if err != nil {
		s.internalError(w, r, op, err)
		return
	}

	rec := notify.NewRecorder()
	nav := &routeRecorder{}
	svc := s.auth.With(auth.WithSink(notify.Multi(rec, s.sink)))
	form := newForm(svc, sess, nav,
		forms.WithResetPolicy(s.resetPolicy),
		forms.WithLogger(s.logger))
	form.SetEmail(cred.Email)
	form.SetPassword(cred.Password)

	pending, err := form.Submit(ctx)
	if err != nil {
		var verr *core.ValidationError
		if errors.As(err, &verr) {
			ValidationError(verr.Fields()).Write(w)
			return
		}
		s.internalError(w, r, op, err)
		return
	}

	if err := pending.Wait(ctx); err != nil {
		if ctx.Err() != nil {
			return
		}
		atomic.AddInt64(&s.appMetrics.authFailures, 1)
		s.alert(w, err, rec.Notifications())
		return
	}

	if _, err := s.sessions.Renew(ctx, w, id, sess); err != nil {
		s.internalError(w, r, op, err)
		return
	}

	if op == applog.OpRegister {
		atomic.AddInt64(&s.appMetrics.registrations, 1)
	} else {
		atomic.AddInt64(&s.appMetrics.logins, 1)
	}

	user := svc.CurrentUser(ctx, sess)
	if user != nil {
		applog.NewStructuredLogger(applog.FromContext(ctx)).LogSessionEvent(ctx, op, user.UID, user.Email)
	}

	resp := NewJSONResponse().
		Status(okStatus).
		Redirect(nav.Route()).
		Field("user", user).
		Notifications(rec.Notifications())
	if n, ok := rec.Last(); ok {
		resp.Message(n.Text)
	}
	resp.Write(w)
}

// handleLogout closes the session when the body confirms it ({"confirm": true}).
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	p := NewRequestBodyParser(w, r)
	if err := p.Parse(); err != nil {
		BadRequestError("Formato de peticion no valido").Write(w)
		return
	}

	id, sess, err := s.sessions.Load(r)
	if err != nil {
		s.internalError(w, r, applog.OpLogout, err)
		return
	}

	rec := notify.NewRecorder()
	nav := &routeRecorder{}
	svc := s.auth.With(
		auth.WithSink(notify.Multi(rec, s.sink)),
		auth.WithConfirmer(auth.Answer(p.Bool("confirm"))),
		auth.WithNavigator(nav))

	closed, err := svc.Logout(ctx, sess)
	if err != nil {
		s.alert(w, err, rec.Notifications())
		return
	}
	if closed {
		if _, err := s.sessions.Persist(ctx, w, id, sess); err != nil {
			s.internalError(w, r, applog.OpLogout, err)
			return
		}
		atomic.AddInt64(&s.appMetrics.logouts, 1)
	}

	NewJSONResponse().
		Field("loggedOut", closed).
		Field("prompt", auth.LogoutPrompt).
		Redirect(nav.Route()).
		Notifications(rec.Notifications()).
		Write(w)
}

// handleSessionStatus reports who is signed in, as seen through the profile
// mirror.
func (s *Server) handleSessionStatus(w http.ResponseWriter, r *http.Request) {
	_, sess, err := s.sessions.Load(r)
	if err != nil {
		s.internalError(w, r, applog.OpRead, err)
		return
	}
	NewJSONResponse().
		Field("authenticated", s.auth.IsAuthenticated(sess)).
		Field("user", s.auth.CurrentUser(r.Context(), sess)).
		Write(w)
}

// alert answers a failed session operation with its classified dialog.
func (s *Server) alert(w http.ResponseWriter, err error, notifications []notify.Notification) {
	a := auth.ClassifyError(err)
	code := auth.CodeOf(err)
	if code == "" && auth.IsMirrorError(err) {
		code = "mirror"
	}
	ErrorResponse(authStatus(err), a.Message, code).
		Field("title", a.Title).
		Notifications(notifications).
		Write(w)
}

func (s *Server) internalError(w http.ResponseWriter, r *http.Request, op string, err error) {
	applog.NewStructuredLogger(applog.FromContext(r.Context())).
		LogError(r.Context(), "Request failed", err, op, nil)
	InternalServerError("Internal server error").Write(w)
}
