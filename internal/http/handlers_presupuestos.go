package http

import (
	"errors"
	"net/http"

	"presupuestos/internal/auth"
	applog "presupuestos/internal/log"
	"presupuestos/internal/presupuestos"
)

type sessionHandler func(w http.ResponseWriter, r *http.Request, sess *auth.Session)

// requireSession rejects requests without a signed-in session.
func (s *Server) requireSession(next sessionHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, sess, err := s.sessions.Load(r)
		if err != nil {
			s.internalError(w, r, applog.OpRead, err)
			return
		}
		if !s.auth.IsAuthenticated(sess) {
			UnauthorizedError("Inicie sesion para continuar").Write(w)
			return
		}
		next(w, r, sess)
	}
}

func (s *Server) clientFor(sess *auth.Session) *presupuestos.Client {
	return s.presupuestos.WithAuth(sess.IDToken())
}

func (s *Server) handleListPresupuestos(w http.ResponseWriter, r *http.Request, sess *auth.Session) {
	resp, err := s.clientFor(sess).List(r.Context())
	s.relay(w, r, applog.OpList, resp, err)
}

func (s *Server) handleCreatePresupuesto(w http.ResponseWriter, r *http.Request, sess *auth.Session) {
	record, err := ParsePresupuesto(w, r)
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	resp, err := s.clientFor(sess).Create(r.Context(), record)
	s.relay(w, r, applog.OpCreate, resp, err)
}

func (s *Server) handleGetPresupuesto(w http.ResponseWriter, r *http.Request, sess *auth.Session) {
	resp, err := s.clientFor(sess).Get(r.Context(), r.PathValue("id"))
	s.relay(w, r, applog.OpRead, resp, err)
}

func (s *Server) handleUpdatePresupuesto(w http.ResponseWriter, r *http.Request, sess *auth.Session) {
	record, err := ParsePresupuesto(w, r)
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	resp, err := s.clientFor(sess).Update(r.Context(), record, r.PathValue("id"))
	s.relay(w, r, applog.OpUpdate, resp, err)
}

func (s *Server) handleDeletePresupuesto(w http.ResponseWriter, r *http.Request, sess *auth.Session) {
	resp, err := s.clientFor(sess).Delete(r.Context(), r.PathValue("id"))
	s.relay(w, r, applog.OpDelete, resp, err)
}

// relay passes the backend reply through unchanged, status included.
// Transport failures become 502.
func (s *Server) relay(w http.ResponseWriter, r *http.Request, op string, resp *presupuestos.Response, err error) {
	if err != nil {
		var serr *presupuestos.StatusError
		if errors.As(err, &serr) {
			writeBody(w, serr.Response.StatusCode, serr.Response.Body)
			return
		}
		if r.Context().Err() != nil {
			return
		}
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "Presupuestos backend unreachable",
			applog.FieldOperation, op,
			applog.FieldPresupuestoID, r.PathValue("id"),
			applog.FieldError, err)
		ErrorResponse(http.StatusBadGateway,
			"No se ha podido conectar al servidor. Compruebe su conexion.",
			auth.CodeNetworkRequestFailed).Write(w)
		return
	}
	writeBody(w, resp.StatusCode, resp.Body)
}

func writeBody(w http.ResponseWriter, status int, body []byte) {
	if len(body) == 0 {
		body = []byte("null")
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}
