package progress

import (
	"bytes"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNoOp(t *testing.T) {
	cb := OrNoOp(nil)
	assert.IsType(t, NoOp{}, cb)

	cb.OnStart(3)
	cb.OnProgress(1, 3)
	cb.OnComplete()
	cb.OnError(2, assert.AnError)
}

func TestConsole(t *testing.T) {
	var buf bytes.Buffer
	cb := NewConsole(&buf, "morph: ", "frame").WithWidth(10)

	cb.OnStart(4)
	assert.Contains(t, buf.String(), "morph: 0/4 frames")

	buf.Reset()
	cb.OnProgress(2, 4)
	assert.Contains(t, buf.String(), "2/4 (50.0%)")
	assert.Contains(t, buf.String(), "█████░░░░░")

	buf.Reset()
	cb.OnComplete()
	assert.Contains(t, buf.String(), "morph: done in")

	buf.Reset()
	cb.OnError(3, assert.AnError)
	assert.Contains(t, buf.String(), "frame 3 failed")
}

func TestConsole_UpdateThrottling(t *testing.T) {
	var buf bytes.Buffer
	cb := NewConsole(&buf, "", "job").WithUpdateInterval(time.Hour)

	cb.OnStart(10)
	buf.Reset()

	cb.OnProgress(1, 10)
	assert.NotEmpty(t, buf.String())

	buf.Reset()
	cb.OnProgress(2, 10)
	assert.Empty(t, buf.String())

	cb.OnProgress(10, 10)
	assert.Contains(t, buf.String(), "10/10")
}

func TestLog(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	cb := NewLog(logger, slog.LevelInfo, "morph").WithInterval(2)

	cb.OnStart(5)
	assert.Contains(t, buf.String(), "morph started")
	assert.Contains(t, buf.String(), "total=5")

	buf.Reset()
	cb.OnProgress(1, 5)
	assert.Empty(t, buf.String())

	cb.OnProgress(2, 5)
	assert.Contains(t, buf.String(), "current=2")

	buf.Reset()
	cb.OnProgress(5, 5)
	assert.Contains(t, buf.String(), "current=5")

	buf.Reset()
	cb.OnError(4, assert.AnError)
	assert.Contains(t, buf.String(), "level=ERROR")

	buf.Reset()
	cb.OnComplete()
	assert.Contains(t, buf.String(), "morph completed")
}

func TestMultiAndFuncs(t *testing.T) {
	var (
		mu     sync.Mutex
		starts int
		last   int
		errs   int
		done   bool
	)
	f := Funcs{
		Start: func(int) { mu.Lock(); starts++; mu.Unlock() },
		Progress: func(current, _ int) {
			mu.Lock()
			last = current
			mu.Unlock()
		},
		Complete: func() { done = true },
		Error:    func(int, error) { errs++ },
	}

	m := Multi{f, NoOp{}, f}
	m.OnStart(3)
	m.OnProgress(3, 3)
	m.OnError(1, assert.AnError)
	m.OnComplete()

	assert.Equal(t, 2, starts)
	assert.Equal(t, 3, last)
	assert.Equal(t, 2, errs)
	assert.True(t, done)

	Funcs{}.OnProgress(1, 1)
}

func TestThrottled(t *testing.T) {
	var calls []int
	inner := Funcs{Progress: func(c, _ int) { calls = append(calls, c) }}
	cb := NewThrottled(inner, time.Hour)

	cb.OnStart(3)
	cb.OnProgress(1, 3)
	cb.OnProgress(2, 3)
	cb.OnProgress(3, 3)
	cb.OnComplete()

	assert.Equal(t, []int{1, 3}, calls)
}
