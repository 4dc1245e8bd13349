// Package http exposes the ledger as a JSON API.
package http

import (
	"context"
	"net/http"
	"time"

	"finledger/internal/auth"
	"finledger/internal/core"
	applog "finledger/internal/log"
	"finledger/internal/middleware/ratelimit"
	"finledger/internal/middleware/security"
	"finledger/internal/middleware/trace"
	"finledger/internal/services"
	"finledger/internal/session"
)

// Services are the operations the API exposes. Ready reports whether the
// backing store is reachable.
type Services struct {
	Transactions *services.TransactionService
	Scheduled    *services.ScheduledService
	Reports      *services.ReportService
	Chat         *services.ChatService
	Sessions     *session.Store
	Verifier     *auth.Verifier
	Ready        func(ctx context.Context) error
}

type Options struct {
	Addr              string
	Logger            *applog.Logger
	RequestsPerMinute int
	// TrustedProxies are CIDRs, beyond the private ranges, whose forwarding
	// headers are believed.
	TrustedProxies []string
}

type Server struct {
	*http.Server

	svc      Services
	now      func() time.Time
	limiter  *ratelimit.Limiter
	detector *security.Detector
	tracer   *trace.Middleware
}

func NewServer(opts Options, svc Services) (*Server, error) {
	logger := opts.Logger
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}

	detector := security.NewDetector()
	for _, cidr := range opts.TrustedProxies {
		if err := detector.AddTrustedProxy(cidr); err != nil {
			return nil, err
		}
	}

	s := &Server{
		svc:      svc,
		now:      time.Now,
		detector: detector,
		tracer:   trace.NewMiddleware(detector.ExtractClientIP),
		limiter: ratelimit.NewLimiter(ratelimit.Config{
			RequestsPerMinute: opts.RequestsPerMinute,
			CleanupInterval:   5 * time.Minute,
		}),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.Handle("/api/", s.apiHandler())

	var handler http.Handler = mux
	handler = s.limiter.Middleware(detector.ExtractClientIP, rateLimited)(handler)
	handler = detector.Middleware(true)(handler)
	handler = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(handler)
	handler = s.tracer.Middleware(handler)
	handler = applog.Middleware(logger.WithComponent(applog.ComponentHTTP))(handler)

	s.Server = &http.Server{
		Addr:              opts.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s, nil
}

func (s *Server) apiHandler() http.Handler {
	api := http.NewServeMux()

	api.HandleFunc("GET /api/dashboard", s.handleDashboard)

	api.HandleFunc("GET /api/transactions", s.handleListTransactions)
	api.HandleFunc("POST /api/transactions", s.handleCreateTransaction)
	api.HandleFunc("PUT /api/transactions/{id}", s.handleUpdateTransaction)
	api.HandleFunc("DELETE /api/transactions/{id}", s.handleDeleteTransaction)

	api.HandleFunc("GET /api/scheduled", s.handleListScheduled)
	api.HandleFunc("POST /api/scheduled", s.handleCreateScheduled)
	api.HandleFunc("POST /api/scheduled/{id}/confirm", s.handleConfirmScheduled)
	api.HandleFunc("DELETE /api/scheduled/{id}", s.handleDeleteScheduled)

	api.HandleFunc("GET /api/projection", s.handleProjection)
	api.HandleFunc("GET /api/series", s.handleSeries)
	api.HandleFunc("GET /api/stats", s.handleStats)
	api.HandleFunc("GET /api/categories", s.handleCategories)

	api.HandleFunc("GET /api/chat", s.handleChatHistory)
	api.HandleFunc("POST /api/chat", s.handleChatSend)

	api.HandleFunc("POST /api/session/signout", s.handleSignOut)

	return auth.Middleware(s.svc.Verifier, unauthorized)(s.withSession(api))
}

type sessionKey struct{}

// withSession opens the caller's session, loading their ledger on first
// use, and tags the request logger with the user id.
func (s *Server) withSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := auth.IdentityFromContext(r.Context())
		if !ok {
			unauthorized(w, r, auth.ErrMissingToken)
			return
		}
		if r.URL.Path == "/api/session/signout" {
			next.ServeHTTP(w, r)
			return
		}

		sess, err := s.svc.Sessions.Open(r.Context(), id)
		if err != nil {
			writeError(w, r, applog.OpRead, err)
			return
		}
		ctx := context.WithValue(r.Context(), sessionKey{}, sess)
		ctx = applog.NewContext(ctx, applog.FromContext(ctx).With(applog.FieldUserID, id.UserID))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func sessionFrom(r *http.Request) *session.Session {
	sess, _ := r.Context().Value(sessionKey{}).(*session.Session)
	return sess
}

func userID(r *http.Request) string {
	id, _ := auth.IdentityFromContext(r.Context())
	return id.UserID
}

// guard latches op on id for the caller's session. The returned release
// must be called once the operation finishes.
func guard(r *http.Request, op, id string) (func(), error) {
	sess := sessionFrom(r)
	if sess == nil {
		return func() {}, nil
	}
	release, ok := sess.Guard(session.GuardKey(op, id))
	if !ok {
		return nil, errBusy
	}
	return release, nil
}

func (s *Server) today() core.Date {
	return core.Today(s.now())
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	NewResponse().JSON(map[string]string{"status": "ok"}).Write(w)
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.svc.Ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.svc.Ready(ctx); err != nil {
			applog.FromContext(r.Context()).WarnContext(r.Context(), "Readiness check failed", applog.FieldError, err.Error())
			NewResponse().Status(http.StatusServiceUnavailable).JSON(map[string]string{"status": "unavailable"}).Write(w)
			return
		}
	}
	NewResponse().JSON(map[string]string{"status": "ready"}).Write(w)
}

// Shutdown stops accepting requests and the limiter's cleanup loop.
func (s *Server) Shutdown(ctx context.Context) error {
	s.limiter.Stop()
	return s.Server.Shutdown(ctx)
}

type Metrics struct {
	Requests  trace.Metrics
	RateLimit ratelimit.Metrics
	Security  security.DetectionMetrics
	Sessions  int
}

func (s *Server) Metrics() Metrics {
	return Metrics{
		Requests:  s.tracer.GetMetrics(),
		RateLimit: s.limiter.GetMetrics(),
		Security:  s.detector.GetMetrics(),
		Sessions:  s.svc.Sessions.Len(),
	}
}
