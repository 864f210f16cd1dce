package http

import (
	"context"
	"html/template"
	"net/http"
	"sync"
	"time"

	"carbontracker/internal/assist"
	"carbontracker/internal/auth"
	"carbontracker/internal/cache"
	"carbontracker/internal/core"
	applog "carbontracker/internal/log"
	"carbontracker/internal/middleware/ratelimit"
	"carbontracker/internal/middleware/security"
	"carbontracker/internal/middleware/trace"
	"carbontracker/internal/records"
	"carbontracker/internal/task"
	appweb "carbontracker/web"
)

// Defaults for Options fields left zero.
const (
	DefaultCacheTTL     = 30 * time.Second
	DefaultCacheEntries = 500
	DefaultLoadTimeout  = 10 * time.Second

	// DefaultAssistTimeout bounds one assistant call including its retries.
	DefaultAssistTimeout = 20 * time.Second
)

// Options wires the dashboard to its collaborators. Store is required; a nil
// Assistant disables the /api/assist routes and a nil Verifier rejects every
// /api request.
type Options struct {
	Store     records.Store
	Verifier  *auth.Verifier
	Assistant *assist.Assistant
	Tasks     *task.Tracker
	Logger    *applog.Logger

	// Ready reports backend readiness for /readyz. Nil means always ready.
	Ready func(context.Context) error

	Location     *time.Location
	CacheTTL     time.Duration
	CacheEntries int
	LoadTimeout  time.Duration

	// AssistTimeout bounds a whole assistant call, retries and backoff
	// included. Keep it below the server's WriteTimeout.
	AssistTimeout time.Duration

	WriteLimit  ratelimit.Config
	AssistLimit ratelimit.Config
}

type Server struct {
	http.Server

	store     records.Store
	verifier  *auth.Verifier
	assistant *assist.Assistant
	tasks     *task.Tracker
	logger    *applog.Logger
	ready     func(context.Context) error
	loc       *time.Location
	now       func() time.Time
	timeout   time.Duration
	assistTTL time.Duration
	templates *template.Template
	started   time.Time

	purchases     *cache.Loading[[]core.Purchase]
	writeLimiter  *ratelimit.Limiter
	assistLimiter *ratelimit.Limiter
	detector      *security.Detector
	tracer        *trace.Middleware

	stopCacheCleanup chan struct{}
	shutdownOnce     sync.Once
}

// NewServer configures routes and templates, returning a ready-to-run http.Server.
func NewServer(addr string, opts Options) *Server {
	if opts.Tasks == nil {
		opts.Tasks = task.NewTracker()
	}
	if opts.Logger == nil {
		opts.Logger = applog.FromContext(context.Background())
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = DefaultCacheTTL
	}
	if opts.CacheEntries <= 0 {
		opts.CacheEntries = DefaultCacheEntries
	}
	if opts.LoadTimeout <= 0 {
		opts.LoadTimeout = DefaultLoadTimeout
	}
	if opts.AssistTimeout <= 0 {
		opts.AssistTimeout = DefaultAssistTimeout
	}
	if opts.AssistLimit.Requests <= 0 {
		opts.AssistLimit = ratelimit.Config{Requests: 10, Window: time.Minute}
	}

	logger := opts.Logger.WithComponent(applog.ComponentHTTP)
	if opts.Verifier == nil {
		logger.Warn("No token verifier configured, API requests will be rejected")
	}
	detector := security.NewDetector()

	s := &Server{
		store:            opts.Store,
		verifier:         opts.Verifier,
		assistant:        opts.Assistant,
		tasks:            opts.Tasks,
		logger:           logger,
		ready:            opts.Ready,
		loc:              opts.Location,
		now:              time.Now,
		timeout:          opts.LoadTimeout,
		assistTTL:        opts.AssistTimeout,
		started:          time.Now(),
		purchases:        cache.NewLoading[[]core.Purchase](opts.CacheEntries, opts.CacheTTL),
		writeLimiter:     ratelimit.NewLimiter(opts.WriteLimit),
		assistLimiter:    ratelimit.NewLimiter(opts.AssistLimit),
		detector:         detector,
		tracer:           trace.NewMiddleware(logger, detector.ClientIP),
		stopCacheCleanup: make(chan struct{}),
	}

	t, err := appweb.Templates()
	if err != nil {
		logger.Warn("Failed parsing templates", "error", err)
	}
	s.templates = t

	s.Server = http.Server{
		Addr:              addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go s.startCacheCleanup()
	return s
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	if sub, err := appweb.Static(); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		mux.Handle("GET /static/", security.StaticAssetMiddleware(3600)(static))
	} else {
		s.logger.Warn("Failed to mount embedded static FS", "error", err)
	}

	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	byUser := func(r *http.Request) string {
		sess, _ := auth.FromContext(r.Context())
		return sess.UserID
	}
	writes := s.writeLimiter.Middleware(byUser, writeRateLimited)
	assists := s.assistLimiter.Middleware(byUser, writeRateLimited)

	api := http.NewServeMux()
	api.HandleFunc("GET /api/purchases", s.handleListPurchases)
	api.Handle("POST /api/purchases", writes(http.HandlerFunc(s.handleCreatePurchase)))
	api.Handle("PUT /api/purchases/{id}", writes(http.HandlerFunc(s.handleUpdatePurchase)))
	api.Handle("DELETE /api/purchases/{id}", writes(http.HandlerFunc(s.handleDeletePurchase)))
	api.HandleFunc("GET /api/trend", s.handleTrend)
	api.HandleFunc("GET /api/categories", s.handleCategories)
	api.HandleFunc("GET /api/summary", s.handleSummary)
	api.Handle("POST /api/assist/estimate", assists(http.HandlerFunc(s.handleEstimate)))
	api.Handle("POST /api/assist/tips", assists(http.HandlerFunc(s.handleTips)))
	mux.Handle("/api/", applog.ComponentMiddleware(applog.ComponentPurchase)(security.NoStore(s.verifier.Require(api))))

	var h http.Handler = mux
	h = security.Headers(security.DefaultHeadersConfig())(h)
	h = s.detector.Block(h)
	h = s.tracer.Middleware(h)
	return h
}

func (s *Server) startCacheCleanup() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if n := s.purchases.CleanExpired(); n > 0 {
				s.logger.Debug("Cache cleanup completed", "entries_removed", n)
			}
		case <-s.stopCacheCleanup:
			return
		}
	}
}

// Shutdown gracefully shuts down the server and cleanup routines
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		close(s.stopCacheCleanup)
		s.writeLimiter.Stop()
		s.assistLimiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

// loadPurchases returns the caller's records through the per-user cache.
func (s *Server) loadPurchases(ctx context.Context, sess auth.Session) ([]core.Purchase, error) {
	return s.purchases.Get(ctx, sess.UserID, func(ctx context.Context) ([]core.Purchase, error) {
		ctx, cancel := context.WithTimeout(ctx, s.timeout)
		defer cancel()
		list, err := s.store.List(ctx, sess)
		if err != nil {
			return nil, err
		}
		s.logger.DebugContext(ctx, "Purchases loaded",
			applog.FieldUserID, sess.UserID,
			"count", len(list))
		return list, nil
	})
}
