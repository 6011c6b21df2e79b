// Package http is the HTTP surface of the expense service.
package http

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"expensed/internal/core"
	applog "expensed/internal/log"
	"expensed/internal/middleware/ratelimit"
	"expensed/internal/middleware/security"
	"expensed/internal/middleware/trace"
	"expensed/internal/services"
)

// AuthService is the credential store surface the handlers need.
type AuthService interface {
	Register(ctx context.Context, username, password string) (string, error)
	Login(ctx context.Context, username, password string) (string, error)
	Verify(tokenString string) (core.Identity, error)
}

// ExpenseService is the expense store surface the handlers need.
type ExpenseService interface {
	Create(ctx context.Context, ownerID string, input services.ExpenseInput) (core.Expense, error)
	List(ctx context.Context, ownerID string) ([]core.Expense, error)
	Update(ctx context.Context, ownerID, expenseID string, patch core.ExpensePatch) (core.Expense, error)
	Delete(ctx context.Context, ownerID, expenseID string) error
	Summarize(ctx context.Context, ownerID string) (core.Summary, error)
}

// Options tunes the middleware stack.
type Options struct {
	// Requests per minute per client IP on the unauthenticated auth routes.
	// Zero uses the limiter default.
	RateLimitPerMinute int

	// Logger stored in each request context. Nil gets a default http-component
	// logger.
	Logger *applog.Logger
}

type Server struct {
	router   chi.Router
	auth     AuthService
	expenses ExpenseService
	limiter  *ratelimit.Limiter
}

func NewServer(authSvc AuthService, expenseSvc ExpenseService, opts Options) *Server {
	s := &Server{
		auth:     authSvc,
		expenses: expenseSvc,
		limiter:  ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.RateLimitPerMinute}),
	}

	logger := opts.Logger
	if logger == nil {
		logger = applog.New(applog.DefaultConfig()).WithComponent(applog.ComponentHTTP)
	}

	resolver := security.NewResolver()
	tracer := trace.NewMiddleware(resolver.ExtractClientIP)
	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())

	r := chi.NewRouter()
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(applog.Middleware(logger))
	r.Use(tracer.Middleware)
	r.Use(headers.Middleware)

	r.Get("/healthz", s.handleHealthz)
	r.Get("/readyz", s.handleReadyz)

	limited := s.limiter.Middleware(resolver.ExtractClientIP, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "60")
		respondWithJSON(w, http.StatusTooManyRequests, map[string]string{"error": "Too many requests, try again later"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(limited)
			r.Post("/register", s.handleRegister)
			r.Post("/login", s.handleLogin)
		})

		r.Group(func(r chi.Router) {
			r.Use(requireAuth(s.auth))
			r.Get("/expenses", s.handleListExpenses)
			r.Post("/expenses", s.handleCreateExpense)
			r.Get("/expenses/summary", s.handleSummary)
			r.Put("/expenses/{id}", s.handleUpdateExpense)
			r.Delete("/expenses/{id}", s.handleDeleteExpense)
		})
	})

	s.router = r
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Close releases middleware resources.
func (s *Server) Close() {
	s.limiter.Stop()
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
