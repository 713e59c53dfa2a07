package api

import (
	"context"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/m0h1nd4/parallel-ping-sweeper/internal/config"
	"github.com/m0h1nd4/parallel-ping-sweeper/internal/hosts"
	"github.com/m0h1nd4/parallel-ping-sweeper/internal/report"
	"github.com/m0h1nd4/parallel-ping-sweeper/internal/sweeper"
)

const (
	statusRunning   = "running"
	statusCompleted = "completed"
	statusFailed    = "failed"
)

type job struct {
	id         string
	network    string
	status     string
	err        string
	startedAt  time.Time
	finishedAt time.Time
	result     *sweeper.Result
}

type runFunc func(ctx context.Context, cfg config.SweepConfig, network hosts.Network) (*sweeper.Result, error)

// Server represents the HTTP API server. Sweep jobs run asynchronously and
// are held in memory for the lifetime of the process.
type Server struct {
	defaults config.SweepConfig
	logger   *zap.SugaredLogger
	router   *gin.Engine
	run      runFunc

	mu   sync.RWMutex
	jobs map[string]*job
}

// New creates a new API server with the given sweep defaults.
func New(defaults config.SweepConfig, logger *zap.SugaredLogger) *Server {
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		defaults: defaults,
		logger:   logger,
		router:   gin.New(),
		jobs:     make(map[string]*job),
	}
	s.run = s.runSweep

	s.setupRoutes()
	return s
}

// Router returns the gin router.
func (s *Server) Router() *gin.Engine {
	return s.router
}

func (s *Server) setupRoutes() {
	s.router.Use(gin.Recovery())
	s.router.Use(s.loggingMiddleware())

	s.router.GET("/health", s.healthHandler)

	v1 := s.router.Group("/api/v1")
	{
		v1.POST("/sweep", s.startSweepHandler)
		v1.GET("/sweep/:id", s.sweepStatusHandler)
		v1.GET("/sweeps", s.listSweepsHandler)
	}
}

func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.Request.URL.Path

		c.Next()

		s.logger.Debugw("Request completed",
			"path", path,
			"status", c.Writer.Status(),
			"method", c.Request.Method,
		)
	}
}

func (s *Server) healthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "ping-sweeper",
	})
}

func (s *Server) startSweepHandler(c *gin.Context) {
	var req SweepRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "network is required"})
		return
	}

	cfg := s.mergeConfig(req)
	if err := cfg.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	network, err := hosts.ParseNetwork(req.Network)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	j := &job{
		id:        uuid.New().String(),
		network:   network.String(),
		status:    statusRunning,
		startedAt: time.Now().UTC(),
	}

	s.mu.Lock()
	s.jobs[j.id] = j
	s.mu.Unlock()

	s.logger.Infow("Sweep job admitted", "sweep_id", j.id, "network", j.network)

	go s.execute(j, cfg, network)

	c.JSON(http.StatusAccepted, SweepAccepted{
		SweepID: j.id,
		Status:  j.status,
		Network: j.network,
	})
}

func (s *Server) execute(j *job, cfg config.SweepConfig, network hosts.Network) {
	result, err := s.run(context.Background(), cfg, network)

	s.mu.Lock()
	defer s.mu.Unlock()

	j.finishedAt = time.Now().UTC()
	if err != nil {
		j.status = statusFailed
		j.err = err.Error()
		s.logger.Errorw("Sweep job failed", "sweep_id", j.id, "error", err)
		return
	}
	j.status = statusCompleted
	j.result = result
}

func (s *Server) runSweep(ctx context.Context, cfg config.SweepConfig, network hosts.Network) (*sweeper.Result, error) {
	sw := sweeper.New(cfg, sweeper.NewExecutor(cfg), s.logger)
	return sw.Run(ctx, network)
}

func (s *Server) sweepStatusHandler(c *gin.Context) {
	s.mu.RLock()
	j, ok := s.jobs[c.Param("id")]
	if !ok {
		s.mu.RUnlock()
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown sweep id"})
		return
	}
	status := s.statusOf(j)
	s.mu.RUnlock()

	c.JSON(http.StatusOK, status)
}

func (s *Server) listSweepsHandler(c *gin.Context) {
	s.mu.RLock()
	statuses := make([]SweepStatus, 0, len(s.jobs))
	for _, j := range s.jobs {
		status := s.statusOf(j)
		status.Report = nil // summaries only
		statuses = append(statuses, status)
	}
	s.mu.RUnlock()

	sort.Slice(statuses, func(i, k int) bool {
		return statuses[i].StartedAt < statuses[k].StartedAt
	})

	c.JSON(http.StatusOK, gin.H{"sweeps": statuses, "count": len(statuses)})
}

// statusOf must be called with the jobs lock held.
func (s *Server) statusOf(j *job) SweepStatus {
	status := SweepStatus{
		SweepID:   j.id,
		Status:    j.status,
		Network:   j.network,
		StartedAt: j.startedAt.Format(time.RFC3339),
		Error:     j.err,
	}
	if !j.finishedAt.IsZero() {
		status.FinishedAt = j.finishedAt.Format(time.RFC3339)
	}
	if j.result != nil {
		doc := report.BuildDocument(j.result)
		status.Report = &doc
	}
	return status
}

func (s *Server) mergeConfig(req SweepRequest) config.SweepConfig {
	cfg := s.defaults
	if req.Concurrency > 0 {
		cfg.Concurrency = req.Concurrency
	}
	if req.TimeoutS > 0 {
		cfg.TimeoutS = req.TimeoutS
	}
	if req.Count > 0 {
		cfg.Count = req.Count
	}
	if req.Probe != "" {
		cfg.Probe = req.Probe
	}
	if req.RateLimit > 0 {
		cfg.RateLimit = req.RateLimit
	}
	cfg.OnlyOnline = req.OnlyOnline
	cfg.Quiet = true // service mode never writes to the console
	return cfg
}
