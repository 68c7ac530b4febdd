// Package common provides small helpers shared by the morpho commands and
// packages.
package common

import (
	"fmt"
	"strings"
	"time"
)

// Timer measures a single named span.
type Timer struct {
	name     string
	start    time.Time
	duration time.Duration
}

// NewNamedTimer starts a timer.
func NewNamedTimer(name string) *Timer {
	return &Timer{name: name, start: time.Now()}
}

// Stop records and returns the elapsed time. Calling it again extends the
// measurement to the new moment.
func (t *Timer) Stop() time.Duration {
	t.duration = time.Since(t.start)
	return t.duration
}

// Duration returns the value recorded by the last Stop.
func (t *Timer) Duration() time.Duration { return t.duration }

// Name returns the timer name.
func (t *Timer) Name() string { return t.name }

func (t *Timer) String() string {
	if t.name == "" {
		return t.duration.String()
	}
	return fmt.Sprintf("%s: %v", t.name, t.duration)
}

// Laps collects the durations of consecutive named stages in order.
type Laps struct {
	names     []string
	durations []time.Duration
}

// Measure runs fn, records its duration under name and returns fn's error.
func (l *Laps) Measure(name string, fn func() error) error {
	t := NewNamedTimer(name)
	err := fn()
	l.names = append(l.names, name)
	l.durations = append(l.durations, t.Stop())
	return err
}

// Get returns the duration recorded for name, or zero.
func (l *Laps) Get(name string) time.Duration {
	for i, n := range l.names {
		if n == name {
			return l.durations[i]
		}
	}
	return 0
}

// Total sums all recorded stages.
func (l *Laps) Total() time.Duration {
	var sum time.Duration
	for _, d := range l.durations {
		sum += d
	}
	return sum
}

// String renders "load=12ms morph=80ms ...", durations rounded to
// milliseconds.
func (l *Laps) String() string {
	parts := make([]string, len(l.names))
	for i, n := range l.names {
		parts[i] = fmt.Sprintf("%s=%v", n, l.durations[i].Round(time.Millisecond))
	}
	return strings.Join(parts, " ")
}
