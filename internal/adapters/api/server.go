// Package api serves the live monitoring interface: pull endpoints for the
// latest sample and derived statistics, a websocket push stream, and the
// Prometheus scrape endpoint.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"github.com/ghalamif/perfmon/internal/app/analysis"
	"github.com/ghalamif/perfmon/internal/app/stats"
	"github.com/ghalamif/perfmon/internal/domain"
	"github.com/ghalamif/perfmon/internal/ports"
)

// Source is what the server reads from the running monitor.
type Source interface {
	Latest() (domain.Sample, bool)
	Stats() stats.Summary
	Trends() analysis.Trends
	History() []domain.Sample
	Thresholds() domain.Thresholds
	AbnormalRecords(ctx context.Context) ([]domain.Record, error)
	HardwareInfo(ctx context.Context) (domain.HardwareInfo, error)
}

type Config struct {
	Addr      string
	RateLimit float64
	Burst     int
	// Refresh is how often the latest sample is pushed to stream clients.
	Refresh time.Duration
}

type Option func(*Server)

// WithGatherer serves /metrics from g instead of the default registry.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) {
		if g != nil {
			s.gatherer = g
		}
	}
}

type Server struct {
	cfg      Config
	src      Source
	obs      ports.Observability
	gatherer prometheus.Gatherer

	hub     *Hub
	limiter *RateLimiter
	engine  *gin.Engine

	mu     sync.Mutex
	srv    *http.Server
	stop   chan struct{}
	wg     sync.WaitGroup
	lastTS time.Time
}

func NewServer(cfg Config, src Source, obs ports.Observability, opts ...Option) *Server {
	if cfg.Refresh <= 0 {
		cfg.Refresh = time.Second
	}
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = 20
	}
	if cfg.Burst <= 0 {
		cfg.Burst = int(cfg.RateLimit) * 2
	}
	if obs == nil {
		obs = ports.NopObservability{}
	}
	s := &Server{
		cfg:      cfg,
		src:      src,
		obs:      obs,
		gatherer: prometheus.DefaultGatherer,
		hub:      NewHub(obs),
		limiter:  NewRateLimiter(rate.Limit(cfg.RateLimit), cfg.Burst),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	s.engine = s.routes()
	return s
}

func (s *Server) Handler() http.Handler { return s.engine }

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})))

	v1 := r.Group("/api/v1", s.limiter.Middleware())
	v1.GET("/latest", s.handleLatest)
	v1.GET("/history", s.handleHistory)
	v1.GET("/stats", s.handleStats)
	v1.GET("/trends", s.handleTrends)
	v1.GET("/thresholds", s.handleThresholds)
	v1.GET("/abnormal", s.handleAbnormal)
	v1.GET("/hardware", s.handleHardware)
	v1.GET("/stream", s.hub.HandleWebSocket())
	return r
}

func (s *Server) handleLatest(c *gin.Context) {
	sample, ok := s.src.Latest()
	if !ok {
		c.Status(http.StatusNoContent)
		return
	}
	c.JSON(http.StatusOK, sample)
}

func (s *Server) handleHistory(c *gin.Context) {
	c.JSON(http.StatusOK, s.src.History())
}

func (s *Server) handleStats(c *gin.Context) {
	c.JSON(http.StatusOK, s.src.Stats())
}

func (s *Server) handleTrends(c *gin.Context) {
	c.JSON(http.StatusOK, s.src.Trends())
}

func (s *Server) handleThresholds(c *gin.Context) {
	c.JSON(http.StatusOK, s.src.Thresholds())
}

func (s *Server) handleAbnormal(c *gin.Context) {
	limit := 0
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a non-negative integer"})
			return
		}
		limit = n
	}

	recs, err := s.src.AbnormalRecords(c.Request.Context())
	if err != nil {
		s.obs.LogError("abnormal_query_failed", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}
	if limit > 0 && len(recs) > limit {
		recs = recs[len(recs)-limit:]
	}
	if recs == nil {
		recs = []domain.Record{}
	}
	c.JSON(http.StatusOK, recs)
}

func (s *Server) handleHardware(c *gin.Context) {
	info, err := s.src.HardwareInfo(c.Request.Context())
	if errors.Is(err, domain.ErrHardwareInfoUnavailable) {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		s.obs.LogError("hardware_info_failed", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, info)
}

// Start listens on cfg.Addr and begins the push refresh loop.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ln)
}

// Serve is Start on an existing listener.
func (s *Server) Serve(ln net.Listener) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.srv != nil {
		return errors.New("api server already started")
	}

	s.srv = &http.Server{
		Handler:           s.engine,
		ReadHeaderTimeout: 5 * time.Second,
	}
	s.stop = make(chan struct{})

	s.wg.Add(3)
	go func() {
		defer s.wg.Done()
		s.hub.Run(s.stop)
	}()
	go func() {
		defer s.wg.Done()
		s.limiter.Run(s.stop)
	}()
	go func() {
		defer s.wg.Done()
		s.refreshLoop(s.stop)
	}()

	go func(srv *http.Server) {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.obs.LogError("api_server_exited", err)
		}
	}(s.srv)

	s.obs.LogInfo("api_listening", ports.Field{Key: "addr", Value: ln.Addr().String()})
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	srv, stop := s.srv, s.stop
	s.srv, s.stop = nil, nil
	s.mu.Unlock()
	if srv == nil {
		return nil
	}

	close(stop)
	err := srv.Shutdown(ctx)
	s.wg.Wait()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// refreshLoop is the display refresh task: it reads the latest sample slot
// and pushes it when it has changed.
func (s *Server) refreshLoop(stop <-chan struct{}) {
	ticker := time.NewTicker(s.cfg.Refresh)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			s.pushLatest()
		}
	}
}

func (s *Server) pushLatest() {
	sample, ok := s.src.Latest()
	if !ok || sample.Timestamp.Equal(s.lastTS) {
		return
	}
	s.lastTS = sample.Timestamp
	msg, err := json.Marshal(sample)
	if err != nil {
		s.obs.LogError("stream_encode_failed", err)
		return
	}
	s.hub.Broadcast(msg)
}
