package http

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"presupuestos/internal/auth"
	"presupuestos/internal/forms"
	applog "presupuestos/internal/log"
	"presupuestos/internal/middleware/ratelimit"
	"presupuestos/internal/middleware/security"
	"presupuestos/internal/middleware/trace"
	"presupuestos/internal/notify"
	"presupuestos/internal/presupuestos"
	"presupuestos/internal/sessions"
)

// DocumentsPath is where a local document endpoint is mounted.
const DocumentsPath = "/rtdb"

// Deps are the services the HTTP API exposes.
type Deps struct {
	Auth         *auth.Service
	Sessions     *sessions.Manager
	Presupuestos *presupuestos.Client

	// Documents is the local document endpoint, mounted under DocumentsPath
	// when set.
	Documents http.Handler

	// Sink receives every notification in addition to the response body.
	Sink notify.Sink

	ResetPolicy        forms.ResetPolicy
	RateLimitPerMinute int

	// Ready checks the backend's storage.
	Ready func(ctx context.Context) error

	Logger *slog.Logger
}

type appMetrics struct {
	uptime        time.Time
	registrations int64
	logins        int64
	logouts       int64
	authFailures  int64
}

type Server struct {
	http.Server

	auth         *auth.Service
	sessions     *sessions.Manager
	presupuestos *presupuestos.Client
	sink         notify.Sink
	resetPolicy  forms.ResetPolicy
	ready        func(ctx context.Context) error
	logger       *slog.Logger

	rateLimiter      *ratelimit.Limiter
	securityDetector *security.Detector
	traceMiddleware  *trace.Middleware
	appMetrics       *appMetrics

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(addr string, deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	sink := deps.Sink
	if sink == nil {
		sink = notify.Discard
	}

	s := &Server{
		auth:         deps.Auth,
		sessions:     deps.Sessions,
		presupuestos: deps.Presupuestos,
		sink:         sink,
		resetPolicy:  deps.ResetPolicy,
		ready:        deps.Ready,
		logger:       logger.With(applog.FieldComponent, applog.ComponentHTTP),
		rateLimiter: ratelimit.NewLimiter(ratelimit.Config{
			RequestsPerMinute: deps.RateLimitPerMinute,
		}),
		securityDetector: security.NewDetector(logger),
		appMetrics:       &appMetrics{uptime: time.Now()},
	}
	s.traceMiddleware = trace.NewMiddleware(s.securityDetector.ExtractClientIP, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /metrics", s.handleMetrics)

	mux.HandleFunc("POST /api/registro", s.handleRegister)
	mux.HandleFunc("POST /api/sesion", s.handleLogin)
	mux.HandleFunc("GET /api/sesion", s.handleSessionStatus)
	mux.HandleFunc("POST /api/sesion/cerrar", s.handleLogout)

	mux.HandleFunc("GET /api/presupuestos", s.requireSession(s.handleListPresupuestos))
	mux.HandleFunc("POST /api/presupuestos", s.requireSession(s.handleCreatePresupuesto))
	mux.HandleFunc("GET /api/presupuestos/{id}", s.requireSession(s.handleGetPresupuesto))
	mux.HandleFunc("PUT /api/presupuestos/{id}", s.requireSession(s.handleUpdatePresupuesto))
	mux.HandleFunc("DELETE /api/presupuestos/{id}", s.requireSession(s.handleDeletePresupuesto))

	if deps.Documents != nil {
		mux.Handle(DocumentsPath+"/", http.StripPrefix(DocumentsPath, deps.Documents))
	}

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		NotFoundError("Not found").Write(w)
	})

	// Reads are not rate limited; the document endpoint is called by this
	// process itself.
	limited := s.rateLimiter.Middleware(
		s.securityDetector.ExtractClientIP,
		func(r *http.Request) bool {
			return r.Method == http.MethodGet || r.Method == http.MethodHead ||
				strings.HasPrefix(r.URL.Path, DocumentsPath+"/")
		},
		func(w http.ResponseWriter, r *http.Request) {
			s.logger.WarnContext(r.Context(), "Rate limit exceeded",
				applog.FieldClientIP, s.securityDetector.ExtractClientIP(r),
				applog.FieldMethod, r.Method,
				applog.FieldPath, r.URL.Path)
			ErrorResponse(http.StatusTooManyRequests,
				"Se han hecho demasiadas peticiones al servidor, por favor espere unos minutos.",
				auth.CodeTooManyRequests).Write(w)
		},
	)(mux)

	var handler http.Handler = limited
	handler = s.securityDetector.Middleware(handler)
	handler = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(handler)
	handler = s.traceMiddleware.Middleware(handler)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

// Shutdown gracefully shuts down the server and cleanup routines
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.rateLimiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}
