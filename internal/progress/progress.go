// Package progress reports completion of label batches and remote downloads.
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

// Unknown is passed as total when the amount of work is not known up front,
// e.g. a download without Content-Length.
const Unknown = -1

// Callback receives progress events. OnProgress may be called from several
// goroutines; implementations serialise internally.
type Callback interface {
	OnStart(total int)
	OnProgress(current, total int)
	OnComplete()
	OnError(current int, err error)
}

// Noop discards all events.
type Noop struct{}

func (Noop) OnStart(int)         {}
func (Noop) OnProgress(int, int) {}
func (Noop) OnComplete()         {}
func (Noop) OnError(int, error)  {}

// OrNoop returns cb, or Noop when cb is nil.
func OrNoop(cb Callback) Callback {
	if cb == nil {
		return Noop{}
	}
	return cb
}

// Console draws a progress bar on a terminal.
type Console struct {
	writer         io.Writer
	prefix         string
	width          int
	lastUpdate     time.Time
	updateInterval time.Duration
	mutex          sync.Mutex
	startTime      time.Time
}

// NewConsole creates a console reporter writing to w (stderr when nil).
func NewConsole(w io.Writer, prefix string) *Console {
	if w == nil {
		w = os.Stderr
	}
	return &Console{
		writer:         w,
		prefix:         prefix,
		width:          40,
		updateInterval: 100 * time.Millisecond,
	}
}

// WithUpdateInterval sets the minimum time between redraws.
func (c *Console) WithUpdateInterval(d time.Duration) *Console {
	c.updateInterval = d
	return c
}

func (c *Console) OnStart(total int) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.startTime = time.Now()
	c.lastUpdate = time.Time{}
	if total == Unknown {
		_, _ = fmt.Fprintf(c.writer, "%sstarting\n", c.prefix)
		return
	}
	_, _ = fmt.Fprintf(c.writer, "%s0/%d (0.0%%)\n", c.prefix, total)
}

func (c *Console) OnProgress(current, total int) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	now := time.Now()
	if now.Sub(c.lastUpdate) < c.updateInterval && current != total {
		return
	}
	c.lastUpdate = now

	if total <= 0 {
		_, _ = fmt.Fprintf(c.writer, "\r%s%d", c.prefix, current)
		return
	}
	percent := float64(current) / float64(total) * 100.0
	filled := min(c.width*current/total, c.width)
	bar := strings.Repeat("█", filled) + strings.Repeat("░", c.width-filled)
	status := fmt.Sprintf("\r%s[%s] %d/%d (%.1f%%)", c.prefix, bar, current, total, percent)
	if elapsed := now.Sub(c.startTime); elapsed > 0 && current > 0 {
		status += fmt.Sprintf(" %.1f/s", float64(current)/elapsed.Seconds())
	}
	_, _ = fmt.Fprint(c.writer, status)
}

func (c *Console) OnComplete() {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	_, _ = fmt.Fprintf(c.writer, "\n%sdone in %v\n", c.prefix, time.Since(c.startTime).Round(time.Millisecond))
}

func (c *Console) OnError(current int, err error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	_, _ = fmt.Fprintf(c.writer, "\n%sitem %d failed: %v\n", c.prefix, current, err)
}

// Log reports progress through slog every interval items.
type Log struct {
	logger    *slog.Logger
	level     slog.Level
	interval  int
	mutex     sync.Mutex
	lastLog   int
	startTime time.Time
}

// NewLog creates a slog reporter. A nil logger uses slog.Default.
func NewLog(logger *slog.Logger, level slog.Level) *Log {
	if logger == nil {
		logger = slog.Default()
	}
	return &Log{logger: logger, level: level, interval: 10}
}

// WithInterval sets how many items pass between log lines.
func (l *Log) WithInterval(n int) *Log {
	l.interval = max(n, 1)
	return l
}

func (l *Log) OnStart(total int) {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	l.startTime = time.Now()
	l.lastLog = 0
	l.logger.Log(context.Background(), l.level, "Rendering started", "total", total)
}

func (l *Log) OnProgress(current, total int) {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	if current-l.lastLog < l.interval && current != total {
		return
	}
	l.lastLog = current
	l.logger.Log(context.Background(), l.level, "Rendering progress",
		"current", current,
		"total", total,
		"elapsed", time.Since(l.startTime).Round(time.Millisecond),
	)
}

func (l *Log) OnComplete() {
	l.logger.Log(context.Background(), l.level, "Rendering completed", "elapsed", time.Since(l.startTime).Round(time.Millisecond))
}

func (l *Log) OnError(current int, err error) {
	l.logger.Log(context.Background(), slog.LevelError, "Item failed", "index", current, "error", err)
}

// Multi fans events out to several callbacks.
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

// Tracker counts processed and failed items for summaries.
type Tracker struct {
	mutex     sync.Mutex
	total     int
	processed int
	failed    int
	start     time.Time
}

// Stats is a snapshot of a Tracker.
type Stats struct {
	Total     int           `json:"total"`
	Processed int           `json:"processed"`
	Failed    int           `json:"failed"`
	Elapsed   time.Duration `json:"elapsedNs"`
}

func (t *Tracker) OnStart(total int) {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	t.total, t.processed, t.failed, t.start = total, 0, 0, time.Now()
}

func (t *Tracker) OnProgress(current, _ int) {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	t.processed = max(t.processed, current)
}

func (t *Tracker) OnComplete() {}

func (t *Tracker) OnError(int, error) {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	t.failed++
}

// Stats returns the current counts.
func (t *Tracker) Stats() Stats {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	var elapsed time.Duration
	if !t.start.IsZero() {
		elapsed = time.Since(t.start)
	}
	return Stats{Total: t.total, Processed: t.processed, Failed: t.failed, Elapsed: elapsed}
}
