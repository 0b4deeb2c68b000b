// Package web provides the HTTP server and handlers for the registration
// intake form and the admin dashboard API.
package web

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/JonMunkholm/regdesk/internal/auth"
	"github.com/JonMunkholm/regdesk/internal/config"
	"github.com/JonMunkholm/regdesk/internal/core"
	"github.com/JonMunkholm/regdesk/internal/filestore"
	"github.com/JonMunkholm/regdesk/internal/otp"
	"github.com/JonMunkholm/regdesk/internal/web/middleware"
)

// Server is the HTTP server for the registration backend.
type Server struct {
	cfg     *config.Config
	service *core.Service
	otps    *otp.Service
	tokens  *auth.Tokens
	files   filestore.Store
	router  *chi.Mux
	server  *http.Server
}

// NewServer wires the router, middleware, and handlers.
func NewServer(cfg *config.Config, service *core.Service, otps *otp.Service, tokens *auth.Tokens, files filestore.Store) *Server {
	s := &Server{
		cfg:     cfg,
		service: service,
		otps:    otps,
		tokens:  tokens,
		files:   files,
		router:  chi.NewRouter(),
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

// setupMiddleware configures middleware for all routes. Downstream calls
// carry no per-request timeout: a hung store or SMTP call hangs the request
// rather than half-completing an attachment cleanup.
func (s *Server) setupMiddleware() {
	s.router.Use(chimw.RequestID)
	s.router.Use(chimw.RealIP)
	s.router.Use(middleware.Logger)
	s.router.Use(chimw.Recoverer)
	s.router.Use(chimw.Compress(5))

	s.router.Use(middleware.CORS)
	s.router.Use(securityHeaders)
	s.router.Use(middleware.Metrics)

	if s.cfg.Rate.Enabled {
		limiter := newRateLimiter(s.cfg.Rate.RequestsPerMinute, time.Minute)
		s.router.Use(limiter.middleware)
	}
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	s.router.Get("/healthz", s.handleHealth)
	s.router.Handle("/metrics", promhttp.Handler())

	s.router.Route("/api", func(r chi.Router) {
		// Public intake surface
		r.Post("/submit", s.handleSubmit)
		r.Get("/submit/validation-rules", s.handleValidationRules)
		r.Get("/validation-rules", s.handleValidationRules)

		r.Route("/admin", func(r chi.Router) {
			// Login flow stays open; everything else can be gated.
			r.Post("/send-otp", s.handleSendOTP)
			r.Post("/verify-otp", s.handleVerifyOTP)
			r.Post("/verify-access-key", s.handleVerifyAccessKey)

			r.Group(func(r chi.Router) {
				r.Use(middleware.BearerAuth(s.tokens, s.cfg.Auth.Required))

				r.Get("/registrations", s.handleListRegistrations)
				r.Get("/registrations/{id}", s.handleGetRegistration)
				r.Put("/registrations/{id}", s.handleUpdateRegistration)
				r.Delete("/registrations/{id}", s.handleDeleteRegistration)
				r.Post("/registrations/bulk-action", s.handleBulkAction)

				r.Get("/export", s.handleExport)
				r.Get("/stats", s.handleStats)
				r.Get("/templates", s.handleTemplates)
				r.Post("/send-mail", s.handleSendMail)

				r.Get("/file/*", s.handleFileDownload)
			})
		})
	})

	s.router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		s.respondJSON(w, http.StatusNotFound, envelope{
			Success: false,
			Message: "API endpoint not found",
		})
	})
}

// Start begins listening for HTTP requests.
func (s *Server) Start(addr string) error {
	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		IdleTimeout:  s.cfg.Server.IdleTimeout,
	}
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the underlying chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, envelope{Success: true, Message: "ok"})
}

// securityHeaders adds security headers to all responses.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("X-XSS-Protection", "1; mode=block")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

		next.ServeHTTP(w, r)
	})
}

// rateLimiter implements a simple token bucket rate limiter per IP.
type rateLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	rate     int
	window   time.Duration
}

type visitor struct {
	tokens    int
	lastReset time.Time
}

func newRateLimiter(rate int, window time.Duration) *rateLimiter {
	rl := &rateLimiter{
		visitors: make(map[string]*visitor),
		rate:     rate,
		window:   window,
	}
	go rl.cleanup()
	return rl
}

// cleanup removes stale visitor entries every minute.
func (rl *rateLimiter) cleanup() {
	for {
		time.Sleep(time.Minute)
		rl.mu.Lock()
		for ip, v := range rl.visitors {
			if time.Since(v.lastReset) > rl.window*2 {
				delete(rl.visitors, ip)
			}
		}
		rl.mu.Unlock()
	}
}

// allow checks if the request should be allowed and consumes a token if so.
func (rl *rateLimiter) allow(ip string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	v, exists := rl.visitors[ip]
	if !exists {
		rl.visitors[ip] = &visitor{
			tokens:    rl.rate - 1,
			lastReset: time.Now(),
		}
		return true
	}

	if time.Since(v.lastReset) > rl.window {
		v.tokens = rl.rate - 1
		v.lastReset = time.Now()
		return true
	}

	if v.tokens <= 0 {
		return false
	}

	v.tokens--
	return true
}

// middleware returns an HTTP middleware that rate limits by IP.
func (rl *rateLimiter) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := r.RemoteAddr
		if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
			ip = realIP
		}

		if !rl.allow(ip) {
			w.Header().Set("Retry-After", "60")
			http.Error(w, `{"success":false,"message":"Too many requests"}`, http.StatusTooManyRequests)
			return
		}

		next.ServeHTTP(w, r)
	})
}
