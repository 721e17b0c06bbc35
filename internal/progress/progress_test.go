package progress

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNoop(t *testing.T) {
	cb := OrNoop(nil)
	assert.IsType(t, Noop{}, cb)
	cb.OnStart(10)
	cb.OnProgress(5, 10)
	cb.OnComplete()
	cb.OnError(3, assert.AnError)
}

func TestConsole(t *testing.T) {
	var buf bytes.Buffer
	cb := NewConsole(&buf, "labels: ").WithUpdateInterval(0)

	cb.OnStart(10)
	assert.Contains(t, buf.String(), "labels: 0/10 (0.0%)")

	buf.Reset()
	cb.OnProgress(5, 10)
	assert.Contains(t, buf.String(), "5/10")
	assert.Contains(t, buf.String(), "50.0%")

	buf.Reset()
	cb.OnError(3, assert.AnError)
	assert.Contains(t, buf.String(), "item 3 failed")

	buf.Reset()
	cb.OnComplete()
	assert.Contains(t, buf.String(), "labels: done in")
}

func TestConsole_Indeterminate(t *testing.T) {
	var buf bytes.Buffer
	cb := NewConsole(&buf, "download: ").WithUpdateInterval(0)

	cb.OnStart(Unknown)
	cb.OnProgress(4096, Unknown)
	out := buf.String()
	assert.Contains(t, out, "download: starting")
	assert.Contains(t, out, "download: 4096")
	assert.NotContains(t, out, "%)")
}

func TestConsole_Throttles(t *testing.T) {
	var buf bytes.Buffer
	cb := NewConsole(&buf, "").WithUpdateInterval(time.Hour)

	cb.OnStart(10)
	buf.Reset()
	cb.OnProgress(1, 10)
	cb.OnProgress(2, 10)
	cb.OnProgress(3, 10)
	assert.Equal(t, 1, strings.Count(buf.String(), "\r"))

	cb.OnProgress(10, 10)
	assert.Contains(t, buf.String(), "10/10")
}

func TestLog_Interval(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	cb := NewLog(logger, slog.LevelInfo).WithInterval(5)

	cb.OnStart(12)
	for i := 1; i <= 12; i++ {
		cb.OnProgress(i, 12)
	}
	cb.OnComplete()

	out := buf.String()
	assert.Equal(t, 3, strings.Count(out, "Rendering progress"), out)
	assert.Contains(t, out, "Rendering started")
	assert.Contains(t, out, "Rendering completed")
}

func TestMultiAndTracker(t *testing.T) {
	tracker := &Tracker{}
	var buf bytes.Buffer
	multi := Multi{tracker, NewConsole(&buf, "").WithUpdateInterval(0)}

	multi.OnStart(4)
	multi.OnProgress(1, 4)
	multi.OnError(1, assert.AnError)
	multi.OnProgress(2, 4)
	multi.OnComplete()

	stats := tracker.Stats()
	assert.Equal(t, 4, stats.Total)
	assert.Equal(t, 2, stats.Processed)
	assert.Equal(t, 1, stats.Failed)
	assert.NotEmpty(t, buf.String())
}
