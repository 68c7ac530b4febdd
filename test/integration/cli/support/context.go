package support

import (
	"fmt"
	"image/color"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/MeKo-Tech/morpho/internal/testutil"
	"github.com/disintegration/imaging"
)

// TestContext holds the state for integration tests.
type TestContext struct {
	// Command execution state
	LastCommand   string
	LastOutput    string
	LastStderr    string
	LastError     error
	LastExitCode  int
	LastStartTime time.Time
	LastDuration  time.Duration

	// Test environment
	TempDir string
	Fixture *Fixture

	// Server management
	HTTPTestServer *HTTPTestServerWrapper

	// HTTP response state
	LastHTTPStatusCode int
	LastHTTPResponse   string
	LastHTTPHeaders    map[string]string
}

// Fixture names the input files written for a scenario.
type Fixture struct {
	Source      string
	Destination string
	Pairs       string
}

// NewTestContext creates a new test context with its own temp directory.
func NewTestContext() (*TestContext, error) {
	tempDir, err := os.MkdirTemp("", "morpho-test-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp directory: %w", err)
	}
	return &TestContext{
		TempDir:         tempDir,
		LastHTTPHeaders: map[string]string{},
	}, nil
}

// Cleanup stops the server and removes the temp directory.
func (testCtx *TestContext) Cleanup() error {
	var errs []error
	if err := testCtx.StopServer(); err != nil {
		errs = append(errs, fmt.Errorf("failed to stop server: %w", err))
	}
	if err := os.RemoveAll(testCtx.TempDir); err != nil && !os.IsNotExist(err) {
		errs = append(errs, fmt.Errorf("failed to remove temp directory %s: %w", testCtx.TempDir, err))
	}
	if len(errs) > 0 {
		return fmt.Errorf("cleanup errors: %v", errs)
	}
	return nil
}

// Path resolves name inside the scenario's temp directory.
func (testCtx *TestContext) Path(name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(testCtx.TempDir, name)
}

// writeFixture writes a source, a differently sized destination and a pairs
// file into dir.
func writeFixture(dir string) (*Fixture, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, err
	}
	fx := &Fixture{
		Source:      filepath.Join(dir, "source.png"),
		Destination: filepath.Join(dir, "destination.png"),
		Pairs:       filepath.Join(dir, "pairs.yaml"),
	}
	src := testutil.Checkerboard(48, 48, 8, color.NRGBA{R: 220, A: 255}, color.NRGBA{R: 90, G: 20, A: 255})
	dst := testutil.Checkerboard(64, 64, 16, color.NRGBA{B: 220, A: 255}, color.NRGBA{G: 30, B: 90, A: 255})
	if err := imaging.Save(src, fx.Source); err != nil {
		return nil, err
	}
	if err := imaging.Save(dst, fx.Destination); err != nil {
		return nil, err
	}
	if err := os.WriteFile(fx.Pairs, []byte(testutil.FixturePairs), 0o600); err != nil {
		return nil, err
	}
	return fx, nil
}

// substituteCommandVariables expands {tmp}, {source}, {destination} and
// {pairs} placeholders.
func (testCtx *TestContext) substituteCommandVariables(command string) string {
	pairs := []string{"{tmp}", testCtx.TempDir}
	if fx := testCtx.Fixture; fx != nil {
		pairs = append(pairs,
			"{source}", fx.Source,
			"{destination}", fx.Destination,
			"{pairs}", fx.Pairs,
		)
	}
	return strings.NewReplacer(pairs...).Replace(command)
}
