package router

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/labelkit/internal/apperr"
	"github.com/MeKo-Tech/labelkit/internal/barcode"
	"github.com/MeKo-Tech/labelkit/internal/units"
)

type stubChecker struct {
	calls atomic.Int32
	err   error
}

func (s *stubChecker) Check(context.Context) error {
	s.calls.Add(1)
	return s.err
}

func qrDual() barcode.Config {
	cfg := barcode.DefaultConfig()
	cfg.Type = barcode.TypeQR
	cfg.DualMode = true
	cfg.DualDimensions = &barcode.Dimensions{Width: 2, Height: 2, Unit: units.CM}
	cfg.DualFont = &barcode.Font{Family: "Arial", Size: 8}
	return cfg
}

func TestComplexityFactor(t *testing.T) {
	large := barcode.DefaultConfig()
	large.Dimensions = barcode.Dimensions{Width: 15, Height: 10, Unit: units.CM}
	stretch := barcode.DefaultConfig()
	stretch.Options.Stretch = true
	inches := barcode.DefaultConfig()
	inches.Dimensions = barcode.Dimensions{Width: 5, Height: 4, Unit: units.Inches}
	all := qrDual()
	all.Dimensions = large.Dimensions
	all.Options.Stretch = true

	tests := []struct {
		name string
		cfg  barcode.Config
		want float64
	}{
		{"plain code128", barcode.DefaultConfig(), 1},
		{"qr dual", qrDual(), 3},
		{"large", large, 1.2},
		{"stretch", stretch, 1.1},
		{"large in inches", inches, 1.2},
		{"everything", all, 1.5 * 2 * 1.2 * 1.1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, ComplexityFactor(tt.cfg), 1e-9)
		})
	}
}

func TestAdjustedThreshold(t *testing.T) {
	assert.Equal(t, 20, AdjustedThreshold(20, 1))
	assert.Equal(t, 6, AdjustedThreshold(20, 3))
	assert.Equal(t, 5, AdjustedThreshold(20, 3.96))
	assert.Equal(t, 18, AdjustedThreshold(20, 1.1))
	assert.Equal(t, 20, AdjustedThreshold(20, 0.5))
}

func TestDecide_Boundaries(t *testing.T) {
	tests := []struct {
		name       string
		items      int
		checkErr   error
		wantMode   Mode
		wantChecks int32
		reason     string
	}{
		{"20 stays local without a health check", 20, nil, Local, 0, "within local threshold"},
		{"1 stays local", 1, nil, Local, 0, "within local threshold"},
		{"21 goes remote", 21, nil, Remote, 1, "remote available"},
		{"21 falls back when remote down", 21, errors.New("refused"), Local, 1, "remote unavailable"},
		{"101 remote", 101, nil, Remote, 1, "high volume"},
		{"101 falls back", 101, errors.New("timeout"), Local, 1, "falling back to local"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &stubChecker{err: tt.checkErr}
			r := New(DefaultSettings(), p, nil)

			d := r.Decide(context.Background(), tt.items, barcode.DefaultConfig())
			assert.Equal(t, tt.wantMode, d.Mode)
			assert.Equal(t, tt.wantChecks, p.calls.Load())
			assert.Equal(t, tt.wantChecks > 0, d.RemoteChecked)
			assert.Contains(t, d.Reason, tt.reason)
			assert.Equal(t, 20, d.Threshold)
		})
	}
}

func TestDecide_NoRemoteConfigured(t *testing.T) {
	r := New(DefaultSettings(), NewHTTPHealthChecker("", time.Second), nil)
	d := r.Decide(context.Background(), 500, barcode.DefaultConfig())
	assert.Equal(t, Local, d.Mode)
	assert.False(t, d.RemoteChecked)
	assert.Contains(t, d.Reason, "no remote server configured")
}

func TestDecide_QRDualScenario(t *testing.T) {
	p := &stubChecker{}
	r := New(DefaultSettings(), p, nil)

	d := r.Decide(context.Background(), 30, qrDual())
	assert.InDelta(t, 3.0, d.ComplexityFactor, 1e-9)
	assert.Equal(t, 6, d.Threshold)
	assert.EqualValues(t, 1, p.calls.Load())
	assert.Equal(t, Remote, d.Mode)
	assert.Equal(t, Remote, d.Estimate.Mode)
	assert.InDelta(t, 30*20*3+1500, d.Estimate.Milliseconds, 1e-9)
	assert.InDelta(t, 30*50*3+200, d.Alternative.Milliseconds, 1e-9)
}

func TestDecide_LocalNeverChecksRemoteProperty(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("items at or below the adjusted threshold never check the remote", prop.ForAll(
		func(items int, qr, dual, stretch bool) bool {
			cfg := barcode.DefaultConfig()
			if qr {
				cfg.Type = barcode.TypeQR
			}
			if dual {
				cfg.DualMode = true
			}
			cfg.Options.Stretch = stretch
			p := &stubChecker{}
			d := New(DefaultSettings(), p, nil).Decide(context.Background(), items, cfg)
			if items <= d.Threshold {
				return d.Mode == Local && p.calls.Load() == 0
			}
			return p.calls.Load() == 1 && d.Mode == Remote
		},
		gen.IntRange(1, 1000),
		gen.Bool(),
		gen.Bool(),
		gen.Bool(),
	))

	properties.TestingRun(t)
}

func TestEstimateTime(t *testing.T) {
	e := EstimateTime(Local, 5, 1, DefaultSettings().Local)
	assert.InDelta(t, 450, e.Milliseconds, 1e-9)
	assert.Equal(t, "about 450ms", e.Human)

	e = EstimateTime(Remote, 100, 1, DefaultSettings().Remote)
	assert.Equal(t, "about 3.5s", e.Human)

	e = EstimateTime(Local, 1000, 3, DefaultSettings().Local)
	assert.Equal(t, "about 2m30s", e.Human)
}

func TestHTTPHealthChecker(t *testing.T) {
	healthy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/health", r.URL.Path)
		w.WriteHeader(http.StatusOK)
	}))
	defer healthy.Close()

	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer down.Close()

	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(2 * time.Second):
		case <-r.Context().Done():
		}
	}))
	defer slow.Close()

	ctx := context.Background()
	require.NoError(t, NewHTTPHealthChecker(healthy.URL+"/", time.Second).Check(ctx))

	err := NewHTTPHealthChecker(down.URL, time.Second).Check(ctx)
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindRemoteUnavailable))
	assert.Contains(t, err.Error(), "503")

	start := time.Now()
	err = NewHTTPHealthChecker(slow.URL, 50*time.Millisecond).Check(ctx)
	assert.True(t, apperr.Is(err, apperr.KindRemoteUnavailable))
	assert.Less(t, time.Since(start), time.Second)

	assert.Nil(t, NewHTTPHealthChecker("  ", time.Second))
}
