package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"siem-mcp/internal/elastic"
	"siem-mcp/internal/models"
	"siem-mcp/internal/pipeline"
	"siem-mcp/internal/results"
	"siem-mcp/internal/siemerr"

	"github.com/gin-gonic/gin"
	last9mcp "github.com/last9/mcp-go-sdk/mcp"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog"
)

// pipelineRunner is the part of pipeline.Runner the HTTP API needs.
type pipelineRunner interface {
	RunElastic(ctx context.Context, question string) pipeline.ElasticRun
	RunSplunk(ctx context.Context, question string) pipeline.SplunkRun
	Summarize(ctx context.Context, req pipeline.SummaryRequest) pipeline.Report
}

// resultLister reads the results ledger.
type resultLister interface {
	List(ctx context.Context, backend string, limit int) ([]results.Record, error)
}

// HTTPServer serves the MCP streamable HTTP transport next to a small JSON API
// for clients that do not speak MCP.
type HTTPServer struct {
	server    *last9mcp.Last9MCPServer
	config    models.Config
	runner    pipelineRunner
	ledger    resultLister
	logger    zerolog.Logger
	startTime time.Time
}

// NewHTTPServer creates a new HTTP server over the components of a.
func NewHTTPServer(server *last9mcp.Last9MCPServer, config models.Config, a *app) *HTTPServer {
	h := &HTTPServer{
		server: server,
		config: config,
		logger: a.logger.With().Str("component", "http_server").Logger(),
	}
	// interface fields stay nil when the component is missing
	if a.runner != nil {
		h.runner = a.runner
	}
	if a.ledger != nil {
		h.ledger = a.ledger
	}
	return h
}

func (h *HTTPServer) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), h.logRequests())

	r.GET("/health", h.handleHealth)

	if h.server != nil {
		// Stateless handler: tool calls work without session setup
		mcpHandler := gin.WrapH(mcp.NewStreamableHTTPHandler(func(req *http.Request) *mcp.Server {
			return h.server.Server
		}, nil))
		r.Any("/mcp", mcpHandler)
		r.NoRoute(func(c *gin.Context) {
			if c.Request.URL.Path != "/" {
				c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
				return
			}
			mcpHandler(c)
		})
	}

	api := r.Group("/api")
	api.POST("/elk", h.handleElastic)
	api.POST("/splunk", h.handleSplunk)
	api.POST("/report", h.handleReport)
	api.GET("/results", h.handleResults)

	return r
}

// Start serves until SIGINT or SIGTERM, then shuts down gracefully.
func (h *HTTPServer) Start() error {
	gin.SetMode(gin.ReleaseMode)

	addr := h.config.Host + ":" + h.config.Port
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           h.routes(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		// pipeline runs wait on the model and on Splunk jobs
		WriteTimeout: backendTimeout(h.config) + 2*time.Minute,
		IdleTimeout:  60 * time.Second,
	}
	h.startTime = time.Now()

	h.logger.Info().Str("addr", addr).Msg("MCP server listening")

	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, syscall.SIGINT, syscall.SIGTERM)

	serverErr := make(chan error, 1)
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case sig := <-signalChan:
		h.logger.Info().Str("signal", sig.String()).Msg("received signal, shutting down")
	case err := <-serverErr:
		h.logger.Error().Err(err).Msg("server error")
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		h.logger.Error().Err(err).Msg("graceful shutdown failed")
		return err
	}
	h.logger.Info().Msg("HTTP server shutdown complete")

	if err := h.server.Shutdown(shutdownCtx); err != nil {
		h.logger.Error().Err(err).Msg("MCP server shutdown error")
		return err
	}
	h.logger.Info().Msg("MCP server shutdown complete")
	return nil
}

func (h *HTTPServer) logRequests() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		h.logger.Debug().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("elapsed", time.Since(start)).
			Msg("request")
	}
}

func (h *HTTPServer) handleHealth(c *gin.Context) {
	uptime := ""
	if !h.startTime.IsZero() {
		uptime = time.Since(h.startTime).Round(time.Second).String()
	}
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"server":  serverName,
		"version": Version,
		"uptime":  uptime,
		"llm":     h.runner != nil,
	})
}

type askRequest struct {
	Question string `json:"question" binding:"required"`
}

func (h *HTTPServer) bindQuestion(c *gin.Context) (string, bool) {
	if h.runner == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "no language model is configured"})
		return "", false
	}
	var req askRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON body or missing question field"})
		return "", false
	}
	return req.Question, true
}

func (h *HTTPServer) handleElastic(c *gin.Context) {
	question, ok := h.bindQuestion(c)
	if !ok {
		return
	}
	run := h.runner.RunElastic(c.Request.Context(), question)
	c.JSON(statusFor(run.Error), run)
}

func (h *HTTPServer) handleSplunk(c *gin.Context) {
	question, ok := h.bindQuestion(c)
	if !ok {
		return
	}
	run := h.runner.RunSplunk(c.Request.Context(), question)
	c.JSON(statusFor(run.Error), run)
}

func (h *HTTPServer) handleReport(c *gin.Context) {
	if h.runner == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "no language model is configured"})
		return
	}
	var req struct {
		SavedFile string `json:"saved_file"`
		Query     string `json:"query"`
		Message   string `json:"message"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON body"})
		return
	}

	rep := h.runner.Summarize(c.Request.Context(), pipeline.SummaryRequest{
		SavedFile: req.SavedFile,
		Query:     req.Query,
		Message:   req.Message,
	})
	c.JSON(statusFor(rep.Error), rep)
}

func (h *HTTPServer) handleResults(c *gin.Context) {
	if h.ledger == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "results ledger is disabled"})
		return
	}
	var q struct {
		Backend string `form:"backend" binding:"omitempty,oneof=elk splunk"`
		Limit   int    `form:"limit" binding:"gte=0,lte=1000"`
	}
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	records, err := h.ledger.List(c.Request.Context(), q.Backend, q.Limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list results"})
		return
	}
	if records == nil {
		records = []results.Record{}
	}
	c.JSON(http.StatusOK, gin.H{"results": records})
}

// statusFor maps a run failure to an HTTP status. The body always carries the
// full run so callers see the stage that failed.
func statusFor(f *pipeline.Failure) int {
	if f == nil {
		return http.StatusOK
	}
	switch f.Kind {
	case string(siemerr.KindConfig):
		return http.StatusServiceUnavailable
	case string(siemerr.KindNotFound):
		return http.StatusNotFound
	case elastic.ErrKindInvalidRequest:
		return http.StatusUnprocessableEntity
	case string(siemerr.KindTransport), string(siemerr.KindSearch), string(siemerr.KindModel),
		elastic.ErrKindHTTP, elastic.ErrKindDecode:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
