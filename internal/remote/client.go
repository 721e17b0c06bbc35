package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/MeKo-Tech/labelkit/internal/apperr"
	"github.com/MeKo-Tech/labelkit/internal/progress"
	"github.com/MeKo-Tech/labelkit/internal/version"
)

const chunkSize = 32 * 1024

// Document is a downloaded response body.
type Document struct {
	Data        []byte
	ContentType string
	RequestID   string
}

// Client talks to a generation server. Requests are single POSTs with no
// retries; the caller falls back to local rendering on failure.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a client for baseURL. timeout bounds each whole request.
func NewClient(baseURL string, timeout time.Duration, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// Bulk renders labels remotely and returns the zip archive.
func (c *Client) Bulk(ctx context.Context, req BulkRequest, cb progress.Callback) (*Document, error) {
	if err := ValidateData(req.Data, 1, MaxBulkItems); err != nil {
		return nil, err
	}
	return c.post(ctx, PathBulk, req, cb)
}

// Print renders a print sheet remotely and returns the PNG or PDF.
func (c *Client) Print(ctx context.Context, req PrintRequest, cb progress.Callback) (*Document, error) {
	if err := ValidateData(req.Data, MinPrintItems, MaxPrintItems); err != nil {
		return nil, err
	}
	format, err := ValidateFormat(req.Format)
	if err != nil {
		return nil, err
	}
	req.Format = format
	return c.post(ctx, PathPrint, req, cb)
}

func (c *Client) post(ctx context.Context, path string, body any, cb progress.Callback) (*Document, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	requestID := uuid.NewString()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, apperr.RemoteUnavailable(err, "build request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(HeaderRequestID, requestID)
	req.Header.Set("User-Agent", version.UserAgent())

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, apperr.RemoteUnavailable(err, "POST %s", path)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var er ErrorResponse
		if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&er); err != nil {
			return nil, apperr.RemoteUnavailable(nil, "POST %s returned %d", path, resp.StatusCode)
		}
		return nil, er.AsError(resp.StatusCode)
	}

	data, err := ReadWithProgress(resp.Body, resp.ContentLength, cb)
	if err != nil {
		return nil, apperr.RemoteUnavailable(err, "download from %s interrupted", path)
	}

	c.logger.Info("Remote generation finished",
		"path", path,
		"request_id", requestID,
		"bytes", len(data),
		"duration", time.Since(start).Round(time.Millisecond))
	return &Document{Data: data, ContentType: resp.Header.Get("Content-Type"), RequestID: requestID}, nil
}

// ReadWithProgress reads r in chunks, reporting bytes read. A total of -1
// (unknown length) reports indeterminate progress.
func ReadWithProgress(r io.Reader, total int64, cb progress.Callback) ([]byte, error) {
	cb = progress.OrNoop(cb)
	t := progress.Unknown
	if total >= 0 {
		t = int(total)
	}
	cb.OnStart(t)
	defer cb.OnComplete()

	var buf bytes.Buffer
	if total > 0 {
		buf.Grow(int(total))
	}
	chunk := make([]byte, chunkSize)
	for {
		n, err := r.Read(chunk)
		if n > 0 {
			buf.Write(chunk[:n])
			cb.OnProgress(buf.Len(), t)
		}
		if errors.Is(err, io.EOF) {
			return buf.Bytes(), nil
		}
		if err != nil {
			cb.OnError(buf.Len(), err)
			return nil, err
		}
	}
}
