// Package http serves the JSON API: income targets, progress, categories,
// and report export.
package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"dompet/internal/amqp"
	"dompet/internal/auth"
	"dompet/internal/cache"
	"dompet/internal/core"
	"dompet/internal/drive"
	"dompet/internal/export"
	applog "dompet/internal/log"
	"dompet/internal/middleware/ratelimit"
	"dompet/internal/middleware/security"
	"dompet/internal/middleware/trace"
	"dompet/internal/syncstatus"
	"dompet/internal/targets"
	"dompet/internal/worker"
)

// Backend is the persistence the API reads and writes.
type Backend interface {
	targets.Backend
	Ping(ctx context.Context) error
}

// Reporter builds reports and uploads them to Google Drive.
type Reporter interface {
	Report(ctx context.Context, userID string, month core.MonthKey, period string) (export.Report, error)
	Export(ctx context.Context, req worker.Request) ([]worker.Uploaded, error)
}

// JobQueue hands Drive exports to the export worker.
type JobQueue interface {
	Enqueue(ctx context.Context, job *amqp.ExportJobMessage) error
}

// ClientConfig is the public configuration a browser client needs to sign
// in and to obtain a Google token.
type ClientConfig struct {
	SupabaseURL            string `json:"supabase_url,omitempty"`
	SupabasePublishableKey string `json:"supabase_publishable_key,omitempty"`
	GoogleClientID         string `json:"google_client_id,omitempty"`
	GoogleScriptURL        string `json:"google_script_url,omitempty"`
	DriveScope             string `json:"drive_scope"`
}

type Options struct {
	Addr     string
	Backend  Backend
	Verifier *auth.Verifier
	Reporter Reporter
	// Queue is optional; without it Drive exports run inline.
	Queue JobQueue
	// Events receives every sync notification in addition to the per-user
	// tracker.
	Events         syncstatus.Observer
	Logger         *applog.Logger
	AllowedOrigins []string
	Client         ClientConfig

	RequestsPerMinute int
	MaxSessions       int
	SessionTTL        time.Duration
}

type Server struct {
	http.Server

	backend  Backend
	reporter Reporter
	queue    JobQueue
	client   ClientConfig
	logger   *applog.Logger

	sessions *sessions
	caches   *cache.Manager
	limiter  *ratelimit.Limiter
	tracer   *trace.Middleware
	detector *security.Detector
	now      func() time.Time

	shutdownOnce sync.Once
}

// NewServer wires routes and middleware, returning a ready-to-run server.
func NewServer(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	if opts.MaxSessions <= 0 {
		opts.MaxSessions = 1000
	}
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = 30 * time.Minute
	}
	if opts.Client.DriveScope == "" {
		opts.Client.DriveScope = drive.Scope
	}

	s := &Server{
		Server: http.Server{
			Addr:              opts.Addr,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       30 * time.Second,
			WriteTimeout:      2 * time.Minute,
			IdleTimeout:       2 * time.Minute,
		},
		backend:  opts.Backend,
		reporter: opts.Reporter,
		queue:    opts.Queue,
		client:   opts.Client,
		logger:   logger.WithComponent(applog.ComponentHTTP),
		caches:   cache.NewManager(logger.Logger),
		limiter:  ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.RequestsPerMinute}),
		detector: security.NewDetector(),
		now:      time.Now,
	}
	s.sessions = newSessions(opts.Backend, opts.Events, logger.Logger, opts.MaxSessions, opts.SessionTTL)
	s.caches.Register("sessions", s.sessions.lru)
	s.caches.StartCleanup(5 * time.Minute)
	s.tracer = trace.NewMiddleware(s.detector.ExtractClientIP, logger)

	reg := prometheus.NewRegistry()
	reg.MustRegister(s.tracer.Collectors()...)
	reg.MustRegister(
		collectors.NewGoCollector(),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "dompet",
			Name:      "sessions",
			Help:      "Signed-in users with a cached session.",
		}, func() float64 { return float64(s.sessions.lru.Size()) }),
	)

	api := http.NewServeMux()
	api.HandleFunc("GET /api/targets", s.handleListTargets)
	api.HandleFunc("PUT /api/targets/{month}/{category}", s.handlePutTarget)
	api.HandleFunc("PATCH /api/targets/{month}/{category}", s.handleDraftTarget)
	api.HandleFunc("DELETE /api/targets/{month}/{category}", s.handleDeleteTarget)
	api.HandleFunc("GET /api/progress", s.handleProgress)
	api.HandleFunc("GET /api/categories", s.handleListCategories)
	api.HandleFunc("POST /api/categories", s.handleAddCategory)
	api.HandleFunc("DELETE /api/categories/{category}", s.handleDeleteCategory)
	api.HandleFunc("GET /api/reports/{file}", s.handleDownloadReport)
	api.HandleFunc("POST /api/reports/{month}/drive", s.handleDriveExport)
	api.HandleFunc("GET /api/sync-status", s.handleSyncStatus)

	limited := s.limiter.Middleware(userKey, true, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusTooManyRequests, errorBody{Error: "rate limit exceeded"})
	})

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /statsz", s.handleStats)
	mux.Handle("GET /metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	mux.HandleFunc("GET /api/config", s.handleClientConfig)
	mux.Handle("/api/", security.NoStore(auth.Middleware(opts.Verifier)(limited(api))))

	headers := security.DefaultHeadersConfig()
	headers.AllowedOrigins = opts.AllowedOrigins

	s.Handler = applog.Middleware(logger)(
		s.tracer.Middleware(
			s.detector.Middleware(
				security.NewHeadersMiddleware(headers).Middleware(mux))))
	return s
}

// userKey limits by user once authenticated.
func userKey(r *http.Request) string {
	if u, ok := auth.UserFromContext(r.Context()); ok {
		return "user:" + u.ID
	}
	return "anon"
}

// Shutdown stops background routines, then the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.caches.Stop()
		s.limiter.Stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := s.backend.Ping(ctx); err != nil {
		s.logger.WarnContext(ctx, "Readiness check failed", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: "backend unavailable"})
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

type statsResponse struct {
	Requests           int64 `json:"requests"`
	ServerErrors       int64 `json:"server_errors"`
	AvgResponseMicros  int64 `json:"avg_response_us"`
	RateLimitHits      int64 `json:"rate_limit_hits"`
	RateLimitClients   int64 `json:"rate_limit_clients"`
	SuspiciousRequests int64 `json:"suspicious_requests"`
	Sessions           int   `json:"sessions"`
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	tm := s.tracer.GetMetrics()
	rm := s.limiter.GetMetrics()
	dm := s.detector.GetMetrics()
	writeJSON(w, http.StatusOK, statsResponse{
		Requests:           tm.TotalRequests,
		ServerErrors:       tm.ServerErrors,
		AvgResponseMicros:  tm.AverageResponseTime,
		RateLimitHits:      rm.TotalHits,
		RateLimitClients:   rm.ClientCount,
		SuspiciousRequests: dm.SuspiciousRequests,
		Sessions:           s.sessions.lru.Size(),
	})
}

func (s *Server) handleClientConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.client)
}

// session resolves the signed-in user's session.
func (s *Server) session(r *http.Request) (*session, core.User, error) {
	u, err := currentUser(r)
	if err != nil {
		return nil, core.User{}, err
	}
	sess, err := s.sessions.get(r.Context(), u.ID)
	return sess, u, err
}
