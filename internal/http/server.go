// Package http serves the budgetbuddy JSON API on gin.
package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"budgetbuddy/internal/log"
	"budgetbuddy/internal/metrics"
	"budgetbuddy/internal/middleware/ratelimit"
	"budgetbuddy/internal/middleware/security"
	"budgetbuddy/internal/notify"
	"budgetbuddy/internal/offline"
	"budgetbuddy/internal/recordstore"
	"budgetbuddy/internal/services"
	"budgetbuddy/internal/session"
)

// Deps are the services behind the API.
type Deps struct {
	Dashboard  *services.DashboardService
	Mutations  *services.MutationService
	Reconciler *services.Reconciler
	Queue      *offline.Queue
	Session    *session.Session
	Events     *notify.Broadcaster
	Pinger     recordstore.Pinger
	Metrics    *metrics.Metrics
	Logger     *log.Logger
}

// Options tune the HTTP layer.
type Options struct {
	AllowOrigins      []string
	RequestsPerMinute int
	// EventKeepAlive is the interval of SSE comment frames.
	EventKeepAlive time.Duration
}

// DefaultOptions returns sensible defaults
func DefaultOptions() Options {
	return Options{
		AllowOrigins:      []string{"*"},
		RequestsPerMinute: 120,
		EventKeepAlive:    15 * time.Second,
	}
}

type Server struct {
	http.Server
	deps    Deps
	opts    Options
	logger  *log.Logger
	limiter *ratelimit.Limiter
	started time.Time

	closing   chan struct{}
	closeOnce sync.Once
}

// NewServer builds the router and an http.Server listening on addr.
func NewServer(addr string, deps Deps, opts Options) *Server {
	if deps.Logger == nil {
		deps.Logger = log.Default(log.ComponentHTTP)
	}
	defaults := DefaultOptions()
	if len(opts.AllowOrigins) == 0 {
		opts.AllowOrigins = defaults.AllowOrigins
	}
	if opts.RequestsPerMinute <= 0 {
		opts.RequestsPerMinute = defaults.RequestsPerMinute
	}
	if opts.EventKeepAlive <= 0 {
		opts.EventKeepAlive = defaults.EventKeepAlive
	}

	s := &Server{
		deps:    deps,
		opts:    opts,
		logger:  deps.Logger,
		started: time.Now(),
		closing: make(chan struct{}),
	}
	s.limiter = ratelimit.NewLimiter(ratelimit.Config{
		RequestsPerMinute: opts.RequestsPerMinute,
		OnLimit: func(clientIP string) {
			deps.Metrics.RateLimited()
			s.logger.Warn("Rate limit exceeded", log.FieldClientIP, clientIP)
		},
	})

	s.Addr = addr
	s.Handler = s.routes()
	// Configure server timeouts and limits. No WriteTimeout: /api/events streams.
	s.ReadHeaderTimeout = 10 * time.Second
	s.ReadTimeout = 10 * time.Second
	s.IdleTimeout = 60 * time.Second
	s.MaxHeaderBytes = 1 << 16 // 64KB
	return s
}

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(log.GinMiddleware(s.logger))
	r.Use(s.countRequests())
	r.Use(security.Headers(security.DefaultHeadersConfig()))
	r.Use(cors.New(cors.Config{
		AllowOrigins:  s.opts.AllowOrigins,
		AllowMethods:  []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", log.RequestIDHeader},
		ExposeHeaders: []string{"Content-Length", log.RequestIDHeader},
		MaxAge:        12 * time.Hour,
	}))

	r.GET("/health", s.handleHealth)
	r.GET("/ready", s.handleReady)
	r.GET("/metrics", gin.WrapH(s.deps.Metrics.Handler()))

	api := r.Group("/api")
	api.Use(s.limiter.Middleware())
	{
		api.POST("/session", s.handleSessionInit)
		api.GET("/session", s.handleSessionGet)
		api.DELETE("/session", s.handleSessionReset)

		api.GET("/dashboard", s.handleDashboard)
		api.POST("/dashboard/refresh", s.handleDashboardRefresh)

		api.POST("/transactions", s.handleCreateTransaction)
		api.PUT("/transactions/:id", s.handleUpdateTransaction)
		api.DELETE("/transactions/:id", s.handleDeleteTransaction)

		api.POST("/budgets", s.handleCreateBudget)
		api.PUT("/budgets/:id", s.handleUpdateBudget)
		api.DELETE("/budgets/:id", s.handleDeleteBudget)

		api.GET("/sync", s.handleSyncStatus)
		api.POST("/sync/online", s.handleGoOnline)
		api.POST("/sync/offline", s.handleGoOffline)
		api.GET("/sync/queue", s.handleQueueList)
		api.DELETE("/sync/queue", s.handleQueueClear)
	}
	// The event stream is long-lived and not rate limited.
	r.GET("/api/events", s.handleEvents)

	return r
}

func (s *Server) countRequests() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		s.deps.Metrics.HTTPRequest(c.Request.Method, c.FullPath(), c.Writer.Status())
	}
}

// Shutdown ends open event streams, stops accepting requests, waits for
// in-flight ones and stops the limiter's cleanup loop.
func (s *Server) Shutdown(ctx context.Context) error {
	s.closeOnce.Do(func() { close(s.closing) })
	defer s.limiter.Stop()
	return s.Server.Shutdown(ctx)
}
