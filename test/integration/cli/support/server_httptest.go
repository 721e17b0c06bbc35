package support

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"

	"github.com/MeKo-Tech/labelkit/internal/pipeline"
	"github.com/MeKo-Tech/labelkit/internal/server"
)

// HTTPTestServerWrapper wraps httptest.Server for in-process scenarios.
type HTTPTestServerWrapper struct {
	Server     *httptest.Server
	TestServer *server.Server
}

// createTestHTTPServer serves the real routes over a local-only pipeline.
func (testCtx *TestContext) createTestHTTPServer() (*HTTPTestServerWrapper, error) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	p, err := pipeline.NewBuilder().WithWorkers(2).WithLogger(logger).LocalOnly().Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build pipeline: %w", err)
	}
	s, err := server.NewServer(server.DefaultConfig(), server.Options{Pipeline: p, Version: "test", Logger: logger})
	if err != nil {
		return nil, fmt.Errorf("failed to create server: %w", err)
	}

	mux := http.NewServeMux()
	s.SetupRoutes(mux)
	return &HTTPTestServerWrapper{Server: httptest.NewServer(mux), TestServer: s}, nil
}

// stopTestHTTPServer closes the in-process server.
func (testCtx *TestContext) stopTestHTTPServer() error {
	w := testCtx.HTTPTestServer
	testCtx.HTTPTestServer = nil
	w.Server.Close()
	return w.TestServer.Close()
}

// anInProcessServerIsRunning starts the routes on an httptest server.
func (testCtx *TestContext) anInProcessServerIsRunning() error {
	w, err := testCtx.createTestHTTPServer()
	if err != nil {
		return err
	}
	testCtx.HTTPTestServer = w
	return nil
}
