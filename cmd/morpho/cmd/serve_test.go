package cmd

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/MeKo-Tech/morpho/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServerConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Server.MaxUploadMB = 7
	cfg.Morph.Frames = 4
	cfg.Output.GIFDelayMS = 250

	sc, err := serverConfig(&cfg)
	require.NoError(t, err)
	assert.Equal(t, int64(7), sc.MaxUploadMB)
	assert.Equal(t, 4, sc.DefaultFrames)
	assert.Equal(t, 25, sc.GIFDelay)
	assert.Equal(t, 300, sc.PipelineConfig.MaxImageSize)

	cfg.Output.OverlayColor = "red"
	_, err = serverConfig(&cfg)
	require.Error(t, err)
}

func TestRunServer_GracefulShutdown(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Server.Host = "127.0.0.1"
	cfg.Server.Port = 0
	cfg.Server.ShutdownTimeout = 2

	ctx, cancel := context.WithCancel(context.Background())
	ready := make(chan string, 1)
	done := make(chan error, 1)
	go func() { done <- runServer(ctx, &cfg, ready) }()

	var addr string
	select {
	case addr = <-ready:
	case err := <-done:
		t.Fatalf("server exited early: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not start")
	}

	resp, err := http.Get("http://" + addr + "/health")
	require.NoError(t, err)
	var health struct {
		Status string `json:"status"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "healthy", health.Status)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestServeCommand_InvalidPort(t *testing.T) {
	_, _, err := executeCommand(t, "serve", "--port", "70000")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid server port")
}
