package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/MeKo-Tech/morpho/internal/config"
	"github.com/MeKo-Tech/morpho/internal/server"
	"github.com/spf13/cobra"
)

func newServeCommand(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP server for the morph API",
		Long: `Start an HTTP server that morphs uploaded images.

The server provides the following endpoints:
  POST /morph     - Morph two uploaded images (multipart form)
  GET  /ws/morph  - Morph over a WebSocket with progress messages
  GET  /health    - Health check endpoint
  GET  /metrics   - Prometheus metrics

Examples:
  morpho serve
  morpho serve --port 8080
  morpho serve --host 0.0.0.0 --port 3000 --max-frames 30`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGTERM, os.Interrupt)
			defer stop()
			return runServer(ctx, c.config(), nil)
		},
	}

	f := cmd.Flags()
	f.StringP("host", "H", "localhost", "server host")
	f.IntP("port", "p", 8080, "server port")
	f.String("cors-origin", "*", "CORS allowed origins")
	f.Int("max-upload-size", 20, "maximum upload size in MB")
	f.Int("timeout", 60, "request timeout in seconds")
	f.Int("shutdown-timeout", 10, "shutdown timeout in seconds")
	f.Int("max-frames", 60, "largest frame count a request may ask for (0 disables the limit)")
	f.Int("max-size", 300, "downscale uploads larger than this many pixels on either side (0 disables)")
	bindFlag(f, "host", "server.host")
	bindFlag(f, "port", "server.port")
	bindFlag(f, "cors-origin", "server.cors_origin")
	bindFlag(f, "max-upload-size", "server.max_upload_mb")
	bindFlag(f, "timeout", "server.timeout_sec")
	bindFlag(f, "shutdown-timeout", "server.shutdown_timeout")
	bindFlag(f, "max-frames", "server.max_frames")
	bindFlag(f, "max-size", "morph.max_image_size")

	return cmd
}

// serverConfig maps the loaded configuration onto the server's settings.
func serverConfig(cfg *config.Config) (server.Config, error) {
	pc, err := cfg.ToPipelineConfig()
	if err != nil {
		return server.Config{}, err
	}
	return server.Config{
		Host:           cfg.Server.Host,
		Port:           cfg.Server.Port,
		CORSOrigin:     cfg.Server.CORSOrigin,
		MaxUploadMB:    int64(cfg.Server.MaxUploadMB),
		TimeoutSec:     cfg.Server.TimeoutSec,
		MaxFrames:      cfg.Server.MaxFrames,
		DefaultFrames:  cfg.Morph.Frames,
		GIFDelay:       cfg.GIFDelay(),
		PipelineConfig: pc,
	}, nil
}

// runServer serves until ctx is done, then shuts down gracefully. When ready
// is non-nil it receives the bound address once the listener is open.
func runServer(ctx context.Context, cfg *config.Config, ready chan<- string) error {
	sc, err := serverConfig(cfg)
	if err != nil {
		return err
	}

	morphServer, err := server.NewServer(sc)
	if err != nil {
		return fmt.Errorf("failed to initialize server: %w", err)
	}

	timeout := time.Duration(sc.TimeoutSec) * time.Second
	httpServer := &http.Server{
		Handler:           morphServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       timeout,
		WriteTimeout:      timeout + 5*time.Second,
	}

	addr := net.JoinHostPort(sc.Host, strconv.Itoa(sc.Port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	if ready != nil {
		ready <- ln.Addr().String()
	}

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("Starting morph server", "address", ln.Addr().String())
		if err := httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			slog.Error("Server error", "error", err)
			return err
		}
		return nil
	case <-ctx.Done():
		slog.Info("Received shutdown signal")
	}

	shutdownTimeout := time.Duration(cfg.Server.ShutdownTimeout) * time.Second
	slog.Info("Starting graceful shutdown", "timeout", shutdownTimeout)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
		return err
	}
	slog.Info("Graceful shutdown completed")
	return nil
}
