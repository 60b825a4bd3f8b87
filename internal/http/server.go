// Package http exposes the treasury ledger as a JSON API.
package http

import (
	"context"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"treasury/internal/core"
	"treasury/internal/ledger"
	"treasury/internal/log"
	"treasury/internal/middleware/ratelimit"
	"treasury/internal/middleware/security"
)

// Treasury is the ledger surface the API serves.
type Treasury interface {
	Statistics(ctx context.Context) (core.Statistics, error)
	Entries(ctx context.Context) ([]core.Entry, error)
	RecordEntry(ctx context.Context, req ledger.EntryRequest) ([]core.Entry, error)
	DeleteEntry(ctx context.Context, id string) error
	Configuration(ctx context.Context) (core.Configuration, error)
	UpdateConfiguration(ctx context.Context, cfg core.Configuration) (bool, error)
	RecomputeAllocations(ctx context.Context) (ledger.RecomputeResult, error)
	TopUpRentReserve(ctx context.Context) ([]core.Entry, error)
	FindDuplicates(ctx context.Context) ([]ledger.DuplicateGroup, error)
	RemoveDuplicates(ctx context.Context) ([]string, error)
	SaveReport(ctx context.Context, generatedBy string) (core.Report, error)
	Reports(ctx context.Context) ([]core.Report, error)
}

// Options tunes the middleware stack.
type Options struct {
	AllowedOrigins     []string
	RateLimitPerMinute int
	Logger             *log.Logger
}

type Server struct {
	http.Server
	engine   *gin.Engine
	treasury Treasury
	limiter  *ratelimit.Limiter
	detector *security.Detector
	logger   *log.Logger
	now      func() time.Time

	shutdownOnce sync.Once
}

// NewServer configures middleware and routes, returning a ready-to-run http.Server.
func NewServer(addr string, treasury Treasury, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	logger = logger.WithComponent(log.ComponentHTTP)

	engine := gin.New()
	if err := engine.SetTrustedProxies(security.TrustedProxies); err != nil {
		logger.Warn("Invalid trusted proxy list", "error", err)
	}

	s := &Server{
		Server: http.Server{
			Addr:              addr,
			Handler:           engine,
			ReadHeaderTimeout: 10 * time.Second,
		},
		engine:   engine,
		treasury: treasury,
		limiter:  ratelimit.NewLimiter(ratelimit.Config{Budget: opts.RateLimitPerMinute, Window: time.Minute}),
		detector: security.NewDetector(),
		logger:   logger,
		now:      time.Now,
	}

	engine.Use(
		gin.Recovery(),
		log.Middleware(logger),
		security.Headers(security.DefaultHeadersConfig()),
		s.detector.Middleware(),
		cors.New(corsConfig(opts.AllowedOrigins)),
	)
	s.routes()
	return s
}

func (s *Server) routes() {
	s.engine.GET("/health", s.handleHealth)

	api := s.engine.Group("/api", s.limiter.Middleware())
	api.GET("/statistics", s.handleStatistics)

	api.GET("/entries", s.handleListEntries)
	api.POST("/entries", s.handleCreateEntry)
	api.DELETE("/entries/:id", s.handleDeleteEntry)

	api.GET("/configuration", s.handleGetConfiguration)
	api.PUT("/configuration", s.handleUpdateConfiguration)

	api.POST("/allocations/recompute", s.handleRecompute)
	api.POST("/rent-reserve/top-up", s.handleTopUp)

	api.GET("/duplicates", s.handleFindDuplicates)
	api.DELETE("/duplicates", s.handleRemoveDuplicates)

	api.GET("/reports", s.handleListReports)
	api.POST("/reports", s.handleSaveReport)

	api.GET("/export/entries.csv", s.handleExportEntries)
	api.GET("/export/summary.csv", s.handleExportSummary)
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", log.RequestIDHeader},
		ExposeHeaders: []string{"Content-Length", "Content-Disposition", log.RequestIDHeader},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 || slices.Contains(origins, "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	return cfg
}

// Shutdown gracefully shuts down the server and the rate limiter.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}
