package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/labelkit/internal/barcode"
	"github.com/MeKo-Tech/labelkit/internal/cache"
	"github.com/MeKo-Tech/labelkit/internal/pipeline"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestServer builds a server over a real local pipeline.
func newTestServer(t *testing.T, cfg Config, c cache.Cache) *Server {
	t.Helper()
	p, err := pipeline.NewBuilder().WithWorkers(4).WithLogger(quietLogger()).LocalOnly().Build()
	require.NoError(t, err)
	s, err := NewServer(cfg, Options{Pipeline: p, Cache: c, Version: "test", Logger: quietLogger()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func newTestMux(t *testing.T, cfg Config, c cache.Cache) *http.ServeMux {
	t.Helper()
	mux := http.NewServeMux()
	newTestServer(t, cfg, c).SetupRoutes(mux)
	return mux
}

func values(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("%d", 20001+i)
	}
	return out
}

func postJSON(t *testing.T, h http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func defaultConfig() barcode.Config { return barcode.DefaultConfig() }
