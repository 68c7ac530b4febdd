// Package progress reports advancement of long-running morph and batch work.
package progress

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"
)

// Callback receives progress notifications. Implementations must be safe for
// concurrent use: frames finish on several goroutines at once.
type Callback interface {
	// OnStart is called once with the number of units of work.
	OnStart(total int)

	// OnProgress is called after each finished unit.
	OnProgress(current, total int)

	// OnComplete is called when all work finished successfully.
	OnComplete()

	// OnError is called when unit current failed.
	OnError(current int, err error)
}

// NoOp ignores every notification.
type NoOp struct{}

func (NoOp) OnStart(int)         {}
func (NoOp) OnProgress(int, int) {}
func (NoOp) OnComplete()         {}
func (NoOp) OnError(int, error)  {}

// OrNoOp returns cb, or NoOp when cb is nil.
func OrNoOp(cb Callback) Callback {
	if cb == nil {
		return NoOp{}
	}
	return cb
}

// Console draws a progress bar on a terminal.
type Console struct {
	writer         io.Writer
	prefix         string
	unit           string
	width          int
	updateInterval time.Duration
	showETA        bool

	mu         sync.Mutex
	lastUpdate time.Time
	startTime  time.Time
}

// NewConsole creates a console progress bar. A nil writer means stderr.
func NewConsole(writer io.Writer, prefix, unit string) *Console {
	if writer == nil {
		writer = os.Stderr
	}
	if unit == "" {
		unit = "item"
	}
	return &Console{
		writer:         writer,
		prefix:         prefix,
		unit:           unit,
		width:          40,
		updateInterval: 100 * time.Millisecond,
		showETA:        true,
	}
}

// WithWidth sets the bar width in characters.
func (c *Console) WithWidth(width int) *Console {
	c.width = width
	return c
}

// WithUpdateInterval sets the minimum delay between redraws.
func (c *Console) WithUpdateInterval(interval time.Duration) *Console {
	c.updateInterval = interval
	return c
}

// WithETA toggles the remaining time estimate.
func (c *Console) WithETA(show bool) *Console {
	c.showETA = show
	return c
}

func (c *Console) OnStart(total int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.startTime = time.Now()
	c.lastUpdate = time.Time{}
	_, _ = fmt.Fprintf(c.writer, "%s0/%d %ss\n", c.prefix, total, c.unit)
}

func (c *Console) OnProgress(current, total int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	if current < total && now.Sub(c.lastUpdate) < c.updateInterval {
		return
	}
	c.lastUpdate = now
	c.draw(current, total, now)
}

func (c *Console) OnComplete() {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, _ = fmt.Fprintf(c.writer, "\n%sdone in %v\n", c.prefix, time.Since(c.startTime).Round(time.Millisecond))
}

func (c *Console) OnError(current int, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, _ = fmt.Fprintf(c.writer, "\n%s%s %d failed: %v\n", c.prefix, c.unit, current, err)
}

func (c *Console) draw(current, total int, now time.Time) {
	if total <= 0 {
		return
	}
	if current > total {
		current = total
	}

	filled := c.width * current / total
	bar := strings.Repeat("█", filled) + strings.Repeat("░", c.width-filled)
	status := fmt.Sprintf("\r%s[%s] %d/%d (%.1f%%)", c.prefix, bar, current, total,
		float64(current)/float64(total)*100)

	elapsed := now.Sub(c.startTime)
	if c.showETA && current > 0 && current < total && elapsed > 0 {
		eta := time.Duration(float64(elapsed) * float64(total-current) / float64(current))
		status += fmt.Sprintf(" ETA %v", eta.Round(time.Millisecond))
	}
	_, _ = fmt.Fprint(c.writer, status)
}

// Log writes progress through slog.
type Log struct {
	logger   *slog.Logger
	level    slog.Level
	msg      string
	interval int

	mu        sync.Mutex
	lastLog   int
	startTime time.Time
}

// NewLog creates a slog-backed callback that logs every interval units.
func NewLog(logger *slog.Logger, level slog.Level, msg string) *Log {
	if logger == nil {
		logger = slog.Default()
	}
	return &Log{logger: logger, level: level, msg: msg, interval: 1}
}

// WithInterval sets how many units pass between log lines.
func (l *Log) WithInterval(interval int) *Log {
	if interval < 1 {
		interval = 1
	}
	l.interval = interval
	return l
}

func (l *Log) OnStart(total int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.startTime = time.Now()
	l.lastLog = 0
	l.logger.Log(context.Background(), l.level, l.msg+" started", "total", total)
}

func (l *Log) OnProgress(current, total int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if current-l.lastLog < l.interval && current != total {
		return
	}
	l.lastLog = current
	l.logger.Log(context.Background(), l.level, l.msg+" progress",
		"current", current,
		"total", total,
		"elapsed", time.Since(l.startTime).Round(time.Millisecond),
	)
}

func (l *Log) OnComplete() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.logger.Log(context.Background(), l.level, l.msg+" completed",
		"elapsed", time.Since(l.startTime).Round(time.Millisecond))
}

func (l *Log) OnError(current int, err error) {
	l.logger.Error(l.msg+" failed", "current", current, "error", err)
}

// Multi fans notifications out to several callbacks in order.
type Multi []Callback

func (m Multi) OnStart(total int) {
	for _, cb := range m {
		cb.OnStart(total)
	}
}

func (m Multi) OnProgress(current, total int) {
	for _, cb := range m {
		cb.OnProgress(current, total)
	}
}

func (m Multi) OnComplete() {
	for _, cb := range m {
		cb.OnComplete()
	}
}

func (m Multi) OnError(current int, err error) {
	for _, cb := range m {
		cb.OnError(current, err)
	}
}

// Throttled forwards at most one OnProgress per interval, always letting the
// final update through.
type Throttled struct {
	wrapped     Callback
	minInterval time.Duration

	mu         sync.Mutex
	lastUpdate time.Time
}

// NewThrottled wraps cb.
func NewThrottled(cb Callback, minInterval time.Duration) *Throttled {
	return &Throttled{wrapped: cb, minInterval: minInterval}
}

func (t *Throttled) OnStart(total int) { t.wrapped.OnStart(total) }

func (t *Throttled) OnProgress(current, total int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := time.Now()
	if current == total || t.lastUpdate.IsZero() || now.Sub(t.lastUpdate) >= t.minInterval {
		t.lastUpdate = now
		t.wrapped.OnProgress(current, total)
	}
}

func (t *Throttled) OnComplete() { t.wrapped.OnComplete() }

func (t *Throttled) OnError(current int, err error) { t.wrapped.OnError(current, err) }

// Funcs adapts plain functions to Callback; nil fields are skipped.
type Funcs struct {
	Start    func(total int)
	Progress func(current, total int)
	Complete func()
	Error    func(current int, err error)
}

func (f Funcs) OnStart(total int) {
	if f.Start != nil {
		f.Start(total)
	}
}

func (f Funcs) OnProgress(current, total int) {
	if f.Progress != nil {
		f.Progress(current, total)
	}
}

func (f Funcs) OnComplete() {
	if f.Complete != nil {
		f.Complete()
	}
}

func (f Funcs) OnError(current int, err error) {
	if f.Error != nil {
		f.Error(current, err)
	}
}
