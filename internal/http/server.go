// Package http exposes the webhook endpoints and health probes.
package http

import (
	"context"
	"fmt"
	"net/http"
	"runtime/debug"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"expensebot/internal/log"
	"expensebot/internal/middleware/ratelimit"
	"expensebot/internal/middleware/security"
	"expensebot/internal/middleware/trace"
)

// MaxBodyBytes caps webhook payloads.
const MaxBodyBytes = 1 << 20

// Enqueuer accepts raw, verified webhook payloads for background processing.
type Enqueuer interface {
	Enqueue(ctx context.Context, payload []byte) error
}

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Services reports which optional integrations are configured.
type Services struct {
	AIText    bool `json:"ai_text"`
	AIVision  bool `json:"ai_vision"`
	Messaging bool `json:"messaging"`
}

type Config struct {
	Addr               string
	VerifyToken        string
	AppSecret          string
	RateLimitPerMinute int
	TrustedProxies     []string
	// Metrics exposes the Prometheus registry on GET /metrics.
	Metrics            bool
}

type Deps struct {
	Queue    Enqueuer
	Storage  Pinger
	Services Services
	Logger   *log.Logger
}

type Server struct {
	http.Server
	cfg      Config
	queue    Enqueuer
	storage  Pinger
	services Services
	limiter  *ratelimit.Limiter
	logger   *log.Logger
	now      func() time.Time

	shutdownOnce sync.Once
}

func NewServer(cfg Config, deps Deps) (*Server, error) {
	ips, err := security.NewIPResolver(cfg.TrustedProxies...)
	if err != nil {
		return nil, fmt.Errorf("trusted proxies: %w", err)
	}
	logger := deps.Logger
	if logger == nil {
		logger = log.Discard()
	}

	s := &Server{
		cfg:      cfg,
		queue:    deps.Queue,
		storage:  deps.Storage,
		services: deps.Services,
		logger:   logger.WithComponent(log.ComponentHTTP),
		now:      time.Now,
	}

	r := mux.NewRouter()
	r.Use(s.recoverer)
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/healthz", handleLive).Methods(http.MethodGet)
	r.HandleFunc("/readyz", s.handleReady).Methods(http.MethodGet)
	if cfg.Metrics {
		r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	}

	r.HandleFunc("/webhook", s.handleVerify).Methods(http.MethodGet)
	var receive http.Handler = http.HandlerFunc(s.handleWebhook)
	if cfg.RateLimitPerMinute > 0 {
		s.limiter = ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: cfg.RateLimitPerMinute})
		receive = s.limiter.Middleware(ips.ClientIP, func(r *http.Request, ip string) {
			log.FromContext(r.Context()).WithComponent(log.ComponentRateLimit).WarnContext(r.Context(),
				"Rate limit exceeded", log.FieldClientIP, ip, log.FieldPath, r.URL.Path)
		})(receive)
	}
	r.Handle("/webhook", receive).Methods(http.MethodPost)

	var h http.Handler = r
	h = security.Headers(security.DefaultHeadersConfig())(h)
	h = trace.Middleware(ips.ClientIP)(h)
	h = log.Middleware(logger, nil)(h)

	s.Server = http.Server{
		Addr:              cfg.Addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s, nil
}

// Shutdown stops the rate limiter sweep and drains open connections.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		if s.limiter != nil {
			s.limiter.Stop()
		}
		err = s.Server.Shutdown(ctx)
	})
	return err
}

func (s *Server) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				log.FromContext(r.Context()).WithComponent(log.ComponentHTTP).ErrorContext(r.Context(),
					"Handler panicked",
					"panic", rec,
					"stack", string(debug.Stack()),
					log.FieldPath, r.URL.Path,
				)
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}
