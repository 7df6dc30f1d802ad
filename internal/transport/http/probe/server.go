// Package probehttp exposes the probe service over HTTP.
package probehttp

import (
	"context"
	"errors"
	"net/http"
	"time"

	"stratprobe/internal/probe"
	"stratprobe/internal/strategy"

	"github.com/gin-gonic/gin"
)

// Server hosts the probe API.
type Server struct {
	addr      string
	svc       *probe.Service
	router    *gin.Engine
	startedAt time.Time
}

// Config describes the server's dependencies.
type Config struct {
	Addr string
	Svc  *probe.Service
}

// NewServer builds the HTTP server and registers its routes.
func NewServer(cfg Config) (*Server, error) {
	if cfg.Svc == nil {
		return nil, errors.New("probe service is required")
	}
	if cfg.Addr == "" {
		cfg.Addr = ":9990"
	}
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	s := &Server{
		addr:      cfg.Addr,
		svc:       cfg.Svc,
		router:    router,
		startedAt: time.Now(),
	}
	s.registerRoutes()
	return s, nil
}

func (s *Server) registerRoutes() {
	api := s.router.Group("/api/probe")
	api.GET("/status", s.handleStatus)
	api.GET("/strategies", s.handleStrategies)
	api.POST("/runs", s.handleRunSubmit)
	api.GET("/runs", s.handleRunList)
	api.GET("/runs/:id", s.handleRunDetail)
}

// Handler returns the underlying handler, for tests.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) handleStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":         "ok",
		"uptime_seconds": time.Since(s.startedAt).Seconds(),
		"strategies":     len(strategy.All()),
	})
}

func (s *Server) handleStrategies(c *gin.Context) {
	defs := strategy.All()
	out := make([]gin.H, 0, len(defs))
	for _, def := range defs {
		out = append(out, gin.H{
			"name":                def.Name,
			"display_name":        def.DisplayName,
			"sides":               def.Sides,
			"atr_stop_mult":       def.ATRStopMult,
			"atr_target_mult":     def.ATRTargetMult,
			"trailing_atr_mult":   def.TrailingATRMult,
			"time_stop_bars":      def.TimeStopBars,
			"required_indicators": def.RequiredIndicators,
		})
	}
	c.JSON(http.StatusOK, gin.H{"strategies": out})
}

func (s *Server) handleRunSubmit(c *gin.Context) {
	var req struct {
		Symbol    string `json:"symbol" binding:"required"`
		Timeframe string `json:"timeframe" binding:"required"`
		Strategy  string `json:"strategy" binding:"required"`
		Risk      string `json:"risk"`
		Start     string `json:"start" binding:"required"`
		End       string `json:"end" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	start, err := time.Parse(time.RFC3339, req.Start)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "start must be RFC3339"})
		return
	}
	end, err := time.Parse(time.RFC3339, req.End)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "end must be RFC3339"})
		return
	}
	run, err := s.svc.SubmitRun(probe.RunRequest{
		Symbol:    req.Symbol,
		Timeframe: req.Timeframe,
		Strategy:  req.Strategy,
		Risk:      req.Risk,
		Start:     start,
		End:       end,
	})
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"run": run})
}

func (s *Server) handleRunList(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"runs": s.svc.Tracker().List()})
}

func (s *Server) handleRunDetail(c *gin.Context) {
	run, err := s.svc.Tracker().Get(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"run": run})
}

// Start serves until ctx is cancelled or the listener fails.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{Addr: s.addr, Handler: s.router}
	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shCtx)
		return nil
	case err := <-errCh:
		return err
	}
}
