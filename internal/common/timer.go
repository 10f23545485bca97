// Package common provides small shared helpers.
package common

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// Timer measures a session and optional named laps within it.
type Timer struct {
	mu       sync.Mutex
	name     string
	start    time.Time
	last     time.Time
	duration time.Duration
	laps     []Lap
	now      func() time.Time
}

// Lap is the time spent between two Lap calls (or since start).
type Lap struct {
	Name     string        `json:"name"`
	Duration time.Duration `json:"duration_ns"`
}

// NewNamedTimer starts a timer with the given name.
func NewNamedTimer(name string) *Timer {
	return newTimer(name, time.Now)
}

func newTimer(name string, now func() time.Time) *Timer {
	t := now()
	return &Timer{name: name, start: t, last: t, now: now}
}

// Lap records the time since the previous lap under name.
func (t *Timer) Lap(name string) time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	d := now.Sub(t.last)
	t.last = now
	t.laps = append(t.laps, Lap{Name: name, Duration: d})
	return d
}

// Stop records and returns the total elapsed duration.
func (t *Timer) Stop() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.duration = t.now().Sub(t.start)
	return t.duration
}

// Duration returns the recorded duration (only valid after Stop).
func (t *Timer) Duration() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.duration
}

// Laps returns a copy of the recorded laps.
func (t *Timer) Laps() []Lap {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]Lap(nil), t.laps...)
}

// Name returns the timer name.
func (t *Timer) Name() string { return t.name }

// String returns "name: total (lap=..., ...)".
func (t *Timer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()

	var b strings.Builder
	if t.name != "" {
		b.WriteString(t.name)
		b.WriteString(": ")
	}
	b.WriteString(t.duration.String())
	if len(t.laps) > 0 {
		parts := make([]string, len(t.laps))
		for i, l := range t.laps {
			parts[i] = fmt.Sprintf("%s=%v", l.Name, l.Duration)
		}
		b.WriteString(" (" + strings.Join(parts, ", ") + ")")
	}
	return b.String()
}
