// Package server exposes the morph pipeline over HTTP and WebSocket.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/MeKo-Tech/morpho/internal/pipeline"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// morpher is the part of the pipeline the server needs.
type morpher interface {
	Run(ctx context.Context, job pipeline.Job) (*pipeline.Output, error)
}

// Server holds the HTTP server state and dependencies.
type Server struct {
	pipeline      morpher
	corsOrigin    string
	maxUploadMB   int64
	timeoutSec    int
	maxFrames     int
	defaultFrames int
	gifDelay      int
}

// Config holds server configuration.
type Config struct {
	Host           string
	Port           int
	CORSOrigin     string
	MaxUploadMB    int64
	TimeoutSec     int
	MaxFrames      int
	DefaultFrames  int
	GIFDelay       int
	PipelineConfig pipeline.Config
}

// HealthResponse is returned by /health.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
	Time    string `json:"time"`
}

// MorphResult is the JSON body of a successful morph.
type MorphResult struct {
	Width   int               `json:"width"`
	Height  int               `json:"height"`
	Frames  []string          `json:"frames"`
	Summary *pipeline.Summary `json:"summary,omitempty"`
}

// MorphResponse wraps a result or an error.
type MorphResponse struct {
	Success bool         `json:"success"`
	Result  *MorphResult `json:"result,omitempty"`
	Error   string       `json:"error,omitempty"`
}

// NewServer creates a morph server instance.
func NewServer(config Config) (*Server, error) {
	pl, err := pipeline.NewBuilder().
		WithConfig(config.PipelineConfig).
		WithLogger(slog.Default()).
		Build()
	if err != nil {
		return nil, fmt.Errorf("build pipeline: %w", err)
	}
	return newServer(pl, config), nil
}

func newServer(pl morpher, config Config) *Server {
	s := &Server{
		pipeline:      pl,
		corsOrigin:    config.CORSOrigin,
		maxUploadMB:   config.MaxUploadMB,
		timeoutSec:    config.TimeoutSec,
		maxFrames:     config.MaxFrames,
		defaultFrames: config.DefaultFrames,
		gifDelay:      config.GIFDelay,
	}
	if s.corsOrigin == "" {
		s.corsOrigin = "*"
	}
	if s.maxUploadMB <= 0 {
		s.maxUploadMB = 20
	}
	if s.gifDelay <= 0 {
		s.gifDelay = 10
	}
	return s
}

// SetupRoutes configures the HTTP routes.
func (s *Server) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/health", s.corsMiddleware(s.healthHandler))
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/morph", s.corsMiddleware(s.morphHandler))
	mux.HandleFunc("/ws/morph", s.corsMiddleware(s.morphWebSocketHandler))
}

// Handler returns a mux with every route installed.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.SetupRoutes(mux)
	return mux
}
