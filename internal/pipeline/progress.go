package pipeline

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

// ProgressEvent describes how far a search (or a batch of searches) has come.
type ProgressEvent struct {
	Completed int     `json:"completed"`
	Total     int     `json:"total"`
	Percent   float64 `json:"percent"`
	Message   string  `json:"message"`
	Hits      int     `json:"hits"`
}

// Done reports whether the event marks the last step.
func (e ProgressEvent) Done() bool {
	return e.Total > 0 && e.Completed >= e.Total
}

// NewProgressEvent computes the percentage for completed out of total.
func NewProgressEvent(completed, total, hits int, message string) ProgressEvent {
	ev := ProgressEvent{Completed: completed, Total: total, Hits: hits, Message: message}
	if total > 0 {
		ev.Percent = float64(completed) / float64(total) * 100.0
	}
	return ev
}

// ProgressCallback receives progress events. Implementations must tolerate
// being called once per attempt; throttling is their own concern.
type ProgressCallback interface {
	// OnStart is called before the first attempt with the planned step count.
	OnStart(total int)

	// OnProgress is called after each completed step.
	OnProgress(ev ProgressEvent)

	// OnComplete is called once with the final event.
	OnComplete(ev ProgressEvent)

	// OnError is called when the session stops early.
	OnError(err error)
}

// NoOpProgressCallback implements ProgressCallback but does nothing.
type NoOpProgressCallback struct{}

func (NoOpProgressCallback) OnStart(int)              {}
func (NoOpProgressCallback) OnProgress(ProgressEvent) {}
func (NoOpProgressCallback) OnComplete(ProgressEvent) {}
func (NoOpProgressCallback) OnError(error)            {}

// ProgressFunc adapts a function receiving every progress event (including
// the final one) to ProgressCallback.
type ProgressFunc func(ev ProgressEvent)

func (f ProgressFunc) OnStart(total int)           { f(NewProgressEvent(0, total, 0, "starting")) }
func (f ProgressFunc) OnProgress(ev ProgressEvent) { f(ev) }
func (f ProgressFunc) OnComplete(ev ProgressEvent) { f(ev) }
func (f ProgressFunc) OnError(error)               {}

// ConsoleProgressCallback displays a progress bar on the console.
type ConsoleProgressCallback struct {
	writer         io.Writer
	prefix         string
	width          int
	lastUpdate     time.Time
	updateInterval time.Duration
	mutex          sync.Mutex
	startTime      time.Time
	showRate       bool
}

// NewConsoleProgressCallback creates a new console progress reporter.
func NewConsoleProgressCallback(writer io.Writer, prefix string) *ConsoleProgressCallback {
	if writer == nil {
		writer = os.Stderr
	}
	return &ConsoleProgressCallback{
		writer:         writer,
		prefix:         prefix,
		width:          40,
		updateInterval: 100 * time.Millisecond,
		showRate:       true,
	}
}

// WithWidth sets the progress bar width.
func (c *ConsoleProgressCallback) WithWidth(width int) *ConsoleProgressCallback {
	c.width = width
	return c
}

// WithUpdateInterval sets how frequently the progress bar redraws.
func (c *ConsoleProgressCallback) WithUpdateInterval(interval time.Duration) *ConsoleProgressCallback {
	c.updateInterval = interval
	return c
}

// WithRate toggles the attempts-per-second suffix.
func (c *ConsoleProgressCallback) WithRate(show bool) *ConsoleProgressCallback {
	c.showRate = show
	return c
}

func (c *ConsoleProgressCallback) OnStart(total int) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.startTime = time.Now()
	c.lastUpdate = time.Time{}

	_, _ = fmt.Fprintf(c.writer, "%s0/%d (0.0%%)\n", c.prefix, total)
}

func (c *ConsoleProgressCallback) OnProgress(ev ProgressEvent) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	now := time.Now()
	if now.Sub(c.lastUpdate) < c.updateInterval && !ev.Done() {
		return
	}
	c.lastUpdate = now

	c.drawProgressBar(ev, now)
}

func (c *ConsoleProgressCallback) OnComplete(ev ProgressEvent) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	elapsed := time.Since(c.startTime)
	_, _ = fmt.Fprintf(c.writer, "\n%s%s in %v\n", c.prefix, ev.Message, elapsed.Round(time.Millisecond))
}

func (c *ConsoleProgressCallback) OnError(err error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	_, _ = fmt.Fprintf(c.writer, "\n%sStopped: %v\n", c.prefix, err)
}

func (c *ConsoleProgressCallback) drawProgressBar(ev ProgressEvent, now time.Time) {
	if ev.Total == 0 {
		return
	}

	filled := c.width * ev.Completed / ev.Total
	if filled > c.width {
		filled = c.width
	}
	bar := strings.Repeat("█", filled) + strings.Repeat("░", c.width-filled)

	status := fmt.Sprintf("\r%s[%s] %d/%d (%.1f%%) hits=%d", c.prefix, bar, ev.Completed, ev.Total, ev.Percent, ev.Hits)

	elapsed := now.Sub(c.startTime)
	if c.showRate && elapsed > 0 && ev.Completed > 0 {
		status += fmt.Sprintf(" %.1f/s", float64(ev.Completed)/elapsed.Seconds())
	}

	_, _ = fmt.Fprint(c.writer, status)
}

// LogProgressCallback logs progress updates using slog.
type LogProgressCallback struct {
	logger    *slog.Logger
	level     slog.Level
	prefix    string
	interval  int // log every N steps
	lastLog   int
	startTime time.Time
	mutex     sync.Mutex
}

// NewLogProgressCallback creates a new log-based progress reporter.
func NewLogProgressCallback(logger *slog.Logger, level slog.Level, prefix string) *LogProgressCallback {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogProgressCallback{
		logger:   logger,
		level:    level,
		prefix:   prefix,
		interval: 10,
	}
}

// WithInterval sets how frequently to log progress (every N steps).
func (l *LogProgressCallback) WithInterval(interval int) *LogProgressCallback {
	l.interval = interval
	return l
}

func (l *LogProgressCallback) OnStart(total int) {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	l.startTime = time.Now()
	l.lastLog = 0
	l.logger.Log(context.Background(), l.level, l.prefix+"search started", "total", total)
}

func (l *LogProgressCallback) OnProgress(ev ProgressEvent) {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	if ev.Completed-l.lastLog < l.interval && !ev.Done() {
		return
	}
	l.lastLog = ev.Completed
	l.logger.Log(context.Background(), l.level, l.prefix+"search progress",
		"completed", ev.Completed,
		"total", ev.Total,
		"percent", fmt.Sprintf("%.1f", ev.Percent),
		"hits", ev.Hits,
		"elapsed", time.Since(l.startTime).Round(time.Millisecond),
	)
}

func (l *LogProgressCallback) OnComplete(ev ProgressEvent) {
	l.logger.Log(context.Background(), l.level, l.prefix+ev.Message,
		"hits", ev.Hits,
		"elapsed", time.Since(l.startTime).Round(time.Millisecond),
	)
}

func (l *LogProgressCallback) OnError(err error) {
	l.logger.Log(context.Background(), slog.LevelWarn, l.prefix+"search stopped", "error", err)
}

// MultiProgressCallback fans events out to several callbacks.
type MultiProgressCallback struct {
	callbacks []ProgressCallback
}

// NewMultiProgressCallback creates a progress callback that reports to all callbacks.
func NewMultiProgressCallback(callbacks ...ProgressCallback) *MultiProgressCallback {
	return &MultiProgressCallback{callbacks: callbacks}
}

// Add adds another progress callback.
func (m *MultiProgressCallback) Add(callback ProgressCallback) {
	m.callbacks = append(m.callbacks, callback)
}

func (m *MultiProgressCallback) OnStart(total int) {
	for _, cb := range m.callbacks {
		cb.OnStart(total)
	}
}

func (m *MultiProgressCallback) OnProgress(ev ProgressEvent) {
	for _, cb := range m.callbacks {
		cb.OnProgress(ev)
	}
}

func (m *MultiProgressCallback) OnComplete(ev ProgressEvent) {
	for _, cb := range m.callbacks {
		cb.OnComplete(ev)
	}
}

func (m *MultiProgressCallback) OnError(err error) {
	for _, cb := range m.callbacks {
		cb.OnError(err)
	}
}

// ThrottledProgressCallback drops progress events that arrive faster than
// minInterval. The final step is always forwarded.
type ThrottledProgressCallback struct {
	wrapped     ProgressCallback
	minInterval time.Duration
	lastUpdate  time.Time
	mutex       sync.Mutex
}

// NewThrottledProgressCallback creates a throttled wrapper around another callback.
func NewThrottledProgressCallback(wrapped ProgressCallback, minInterval time.Duration) *ThrottledProgressCallback {
	return &ThrottledProgressCallback{
		wrapped:     wrapped,
		minInterval: minInterval,
	}
}

func (t *ThrottledProgressCallback) OnStart(total int) {
	t.wrapped.OnStart(total)
}

func (t *ThrottledProgressCallback) OnProgress(ev ProgressEvent) {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	now := time.Now()
	if ev.Done() || t.lastUpdate.IsZero() || now.Sub(t.lastUpdate) >= t.minInterval {
		t.lastUpdate = now
		t.wrapped.OnProgress(ev)
	}
}

func (t *ThrottledProgressCallback) OnComplete(ev ProgressEvent) {
	t.wrapped.OnComplete(ev)
}

func (t *ThrottledProgressCallback) OnError(err error) {
	t.wrapped.OnError(err)
}
