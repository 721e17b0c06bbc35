package server

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/labelkit/internal/apperr"
	"github.com/MeKo-Tech/labelkit/internal/barcode"
	"github.com/MeKo-Tech/labelkit/internal/cache"
	"github.com/MeKo-Tech/labelkit/internal/layout"
	"github.com/MeKo-Tech/labelkit/internal/output"
	"github.com/MeKo-Tech/labelkit/internal/remote"
	"github.com/MeKo-Tech/labelkit/internal/router"
)

func TestServer_HealthHandler(t *testing.T) {
	mux := newTestMux(t, DefaultConfig(), nil)

	tests := []struct {
		name           string
		method         string
		expectedStatus int
	}{
		{"GET request success", http.MethodGet, http.StatusOK},
		{"POST request not allowed", http.MethodPost, http.StatusMethodNotAllowed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, httptest.NewRequest(tt.method, remote.PathHealth, nil))
			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
			if tt.expectedStatus == http.StatusOK {
				var resp remote.HealthResponse
				require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
				assert.Equal(t, "healthy", resp.Status)
				assert.Equal(t, "test", resp.Version)
				assert.NotEmpty(t, resp.Time)
			}
		})
	}
}

func TestServer_FontsHandler(t *testing.T) {
	mux := newTestMux(t, DefaultConfig(), nil)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/fonts", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Families []string `json:"families"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Contains(t, resp.Families, "go")
}

func TestServer_BulkHandler(t *testing.T) {
	mux := newTestMux(t, DefaultConfig(), nil)

	w := postJSON(t, mux, remote.PathBulk, remote.BulkRequest{Data: values(4), Config: defaultConfig()})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, output.ContentTypeZip, w.Header().Get("Content-Type"))
	assert.Equal(t, "0", w.Header().Get(HeaderSkipped))
	assert.Equal(t, string(router.Local), w.Header().Get(HeaderMode))
	assert.NotEmpty(t, w.Header().Get(remote.HeaderRequestID))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "labels.zip")

	body := w.Body.Bytes()
	zr, err := zip.NewReader(bytes.NewReader(body), int64(len(body)))
	require.NoError(t, err)
	require.Len(t, zr.File, 4)
	assert.Equal(t, "001_20001.png", zr.File[0].Name)
}

func TestServer_BulkHandler_SkipsBadValues(t *testing.T) {
	mux := newTestMux(t, DefaultConfig(), nil)
	cfg := defaultConfig()
	cfg.Type = barcode.TypeEAN8

	w := postJSON(t, mux, remote.PathBulk, remote.BulkRequest{Data: []string{"9638507", "nope", "1234567"}, Config: cfg})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "1", w.Header().Get(HeaderSkipped))
}

func TestServer_ErrorMapping(t *testing.T) {
	mux := newTestMux(t, DefaultConfig(), nil)

	badDims := defaultConfig()
	badDims.Dimensions.Height = 99
	ean := defaultConfig()
	ean.Type = barcode.TypeEAN13
	narrow := 2.0

	tests := []struct {
		name   string
		path   string
		body   any
		status int
		kind   apperr.Kind
		field  string
	}{
		{"empty bulk", remote.PathBulk, remote.BulkRequest{Config: defaultConfig()}, http.StatusBadRequest, apperr.KindValidation, "data"},
		{"too many bulk items", remote.PathBulk, remote.BulkRequest{Data: values(1001), Config: defaultConfig()}, http.StatusBadRequest, apperr.KindValidation, "data"},
		{"bad dimensions", remote.PathBulk, remote.BulkRequest{Data: values(1), Config: badDims}, http.StatusBadRequest, apperr.KindValidation, "dimensions.height"},
		{"all values unencodable", remote.PathBulk, remote.BulkRequest{Data: []string{"x"}, Config: ean}, http.StatusUnprocessableEntity, apperr.KindSymbology, ""},
		{"print below minimum", remote.PathPrint, remote.PrintRequest{Data: values(19), Config: defaultConfig()}, http.StatusBadRequest, apperr.KindValidation, "data"},
		{"print bad format", remote.PathPrint, remote.PrintRequest{Data: values(20), Config: defaultConfig(), Format: "svg"}, http.StatusBadRequest, apperr.KindValidation, "format"},
		{"print infeasible", remote.PathPrint, remote.PrintRequest{Data: values(20), Config: defaultConfig(), Layout: &layout.Override{CanvasWidth: &narrow}}, http.StatusUnprocessableEntity, apperr.KindLayoutInfeasible, ""},
		{"empty bulk item", remote.PathBulk, remote.BulkRequest{Data: []string{"A", ""}, Config: defaultConfig()}, http.StatusBadRequest, apperr.KindValidation, "data[1]"},
		{"empty print item", remote.PathPrint, remote.PrintRequest{Data: append(values(19), ""), Config: defaultConfig()}, http.StatusBadRequest, apperr.KindValidation, "data[19]"},
		{"estimate zero items", remote.PathEstimate, remote.EstimateRequest{Config: defaultConfig()}, http.StatusBadRequest, apperr.KindValidation, "itemCount"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := postJSON(t, mux, tt.path, tt.body)
			assert.Equal(t, tt.status, w.Code)

			var resp remote.ErrorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.False(t, resp.Success)
			assert.Equal(t, string(tt.kind), resp.Kind)
			assert.Equal(t, tt.field, resp.Field)
			assert.NotEmpty(t, resp.RequestID)
		})
	}
}

func TestServer_InvalidJSON(t *testing.T) {
	mux := newTestMux(t, DefaultConfig(), nil)
	req := httptest.NewRequest(http.MethodPost, remote.PathBulk, strings.NewReader("{not json"))
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestServer_BodyTooLarge(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxBodyMB = 1
	mux := newTestMux(t, cfg, nil)

	big := strings.Repeat("9", 2*1024*1024)
	w := postJSON(t, mux, remote.PathBulk, remote.BulkRequest{Data: []string{big}, Config: defaultConfig()})
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestServer_PrintHandler(t *testing.T) {
	mux := newTestMux(t, DefaultConfig(), nil)

	w := postJSON(t, mux, remote.PathPrint, remote.PrintRequest{Data: values(20), Config: defaultConfig()})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, output.ContentTypePNG, w.Header().Get("Content-Type"))
	_, err := png.Decode(bytes.NewReader(w.Body.Bytes()))
	require.NoError(t, err)

	w = postJSON(t, mux, remote.PathPrint, remote.PrintRequest{Data: values(20), Config: defaultConfig(), Format: remote.FormatPDF})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, output.ContentTypePDF, w.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(w.Body.Bytes(), []byte("%PDF-")))
}

func TestServer_PrintHandler_AbortsOnBadValue(t *testing.T) {
	mux := newTestMux(t, DefaultConfig(), nil)
	cfg := defaultConfig()
	cfg.Type = barcode.TypeEAN8
	data := make([]string, 20)
	for i := range data {
		data[i] = fmt.Sprintf("%07d", i)
	}
	data[7] = "BROKEN"

	w := postJSON(t, mux, remote.PathPrint, remote.PrintRequest{Data: data, Config: cfg})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	var resp remote.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "BROKEN", resp.Value)
}

func TestServer_LabelsHandler(t *testing.T) {
	mux := newTestMux(t, DefaultConfig(), nil)

	w := postJSON(t, mux, PathLabels, remote.BulkRequest{Data: values(2), Config: defaultConfig()})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	n, err := output.PageCount(w.Body.Bytes())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestServer_EstimateHandler(t *testing.T) {
	mux := newTestMux(t, DefaultConfig(), nil)

	w := postJSON(t, mux, remote.PathEstimate, remote.EstimateRequest{ItemCount: 10, Config: defaultConfig()})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var d router.Decision
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &d))
	assert.Equal(t, router.Local, d.Mode)
	assert.Equal(t, 20, d.Threshold)
	assert.Equal(t, "about 700ms", d.Estimate.Human)
}

func TestServer_Cache(t *testing.T) {
	mem := cache.NewMemory(8)
	mux := newTestMux(t, DefaultConfig(), mem)
	body := remote.PrintRequest{Data: values(20), Config: defaultConfig()}

	first := postJSON(t, mux, remote.PathPrint, body)
	require.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, "MISS", first.Header().Get(HeaderCache))
	assert.Equal(t, 1, mem.Len())

	second := postJSON(t, mux, remote.PathPrint, body)
	require.Equal(t, http.StatusOK, second.Code)
	assert.Equal(t, "HIT", second.Header().Get(HeaderCache))
	assert.Equal(t, first.Body.Bytes(), second.Body.Bytes())
}

func TestServer_LabelQuota(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RateLimit = RateLimitConfig{Enabled: true, MaxLabelsPerDay: 5}
	mux := newTestMux(t, cfg, nil)

	w := postJSON(t, mux, remote.PathBulk, remote.BulkRequest{Data: values(4), Config: defaultConfig()})
	require.Equal(t, http.StatusOK, w.Code)

	w = postJSON(t, mux, remote.PathBulk, remote.BulkRequest{Data: values(2), Config: defaultConfig()})
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "labels", w.Header().Get("X-Quota-Type"))
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, statusFor(apperr.Validation("x", "bad")))
	assert.Equal(t, http.StatusUnprocessableEntity, statusFor(apperr.Symbology("v", nil, "bad")))
	assert.Equal(t, http.StatusUnprocessableEntity, statusFor(apperr.LayoutInfeasible("wide")))
	assert.Equal(t, http.StatusServiceUnavailable, statusFor(apperr.RemoteUnavailable(nil, "down")))
	assert.Equal(t, http.StatusInternalServerError, statusFor(apperr.IO(nil, "disk")))
	assert.Equal(t, http.StatusGatewayTimeout, statusFor(fmt.Errorf("render: %w", context.DeadlineExceeded)))
	assert.Equal(t, http.StatusInternalServerError, statusFor(errors.New("boom")))
}

func TestServer_RemoteClientRoundTrip(t *testing.T) {
	srv := httptest.NewServer(newTestMux(t, DefaultConfig(), nil))
	defer srv.Close()

	c := remote.NewClient(srv.URL, 30*time.Second, quietLogger())
	doc, err := c.Print(context.Background(), remote.PrintRequest{Data: values(20), Config: defaultConfig()}, nil)
	require.NoError(t, err)
	assert.Equal(t, output.ContentTypePNG, doc.ContentType)

	cfg := defaultConfig()
	cfg.Type = barcode.TypeEAN13
	_, err = c.Bulk(context.Background(), remote.BulkRequest{Data: []string{"ABC"}, Config: cfg}, nil)
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindSymbology))

	require.NoError(t, router.NewHTTPHealthChecker(srv.URL, time.Second).Check(context.Background()))
}
