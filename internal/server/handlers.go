package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/MeKo-Tech/labelkit/internal/apperr"
	"github.com/MeKo-Tech/labelkit/internal/cache"
	"github.com/MeKo-Tech/labelkit/internal/output"
	"github.com/MeKo-Tech/labelkit/internal/pipeline"
	"github.com/MeKo-Tech/labelkit/internal/progress"
	"github.com/MeKo-Tech/labelkit/internal/remote"
	"github.com/MeKo-Tech/labelkit/internal/router"
)

// Response headers.
const (
	HeaderMode    = "X-Generation-Mode"
	HeaderSkipped = "X-Skipped-Items"
	HeaderCache   = "X-Cache"
)

// healthHandler returns server health status.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeErrorResponse(w, r, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.writeJSON(w, http.StatusOK, remote.HealthResponse{
		Status:  "healthy",
		Version: s.version,
		Time:    time.Now().UTC().Format(time.RFC3339),
	})
}

// fontsHandler lists the font families labels can use.
func (s *Server) fontsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeErrorResponse(w, r, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	families := s.pipeline.FontFamilies()
	s.writeJSON(w, http.StatusOK, map[string]any{"families": families, "count": len(families)})
}

// estimateHandler returns the routing decision and time estimate for a job.
func (s *Server) estimateHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeErrorResponse(w, r, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req remote.EstimateRequest
	if !s.decode(w, r, &req) {
		return
	}
	d, err := s.pipeline.Estimate(r.Context(), req.ItemCount, req.Config)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	routingDecisions.WithLabelValues(string(d.Mode)).Inc()
	s.writeJSON(w, http.StatusOK, d)
}

// bulkHandler renders one PNG per label and returns them zipped. Values
// that cannot be encoded are skipped; the count is in X-Skipped-Items.
func (s *Server) bulkHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeErrorResponse(w, r, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req remote.BulkRequest
	if !s.decode(w, r, &req) {
		return
	}
	if err := remote.ValidateData(req.Data, 1, remote.MaxBulkItems); err != nil {
		s.writeError(w, r, err)
		return
	}
	if !s.consumeLabels(w, r, len(req.Data)) {
		return
	}
	requestItems.WithLabelValues("bulk").Observe(float64(len(req.Data)))

	key := cache.Key("bulk", req)
	if s.serveCached(w, r, key, output.ContentTypeZip, "labels.zip") {
		return
	}

	ctx, cancel := s.requestContext(r)
	defer cancel()
	start := time.Now()
	res, err := s.pipeline.Bulk(ctx, pipeline.Request{
		Data:     req.Data,
		Config:   req.Config,
		Progress: s.progressLog(r),
		Local:    true,
	})
	if err != nil {
		generationRequestsTotal.WithLabelValues("bulk", "error").Inc()
		s.writeError(w, r, err)
		return
	}
	generationRequestsTotal.WithLabelValues("bulk", "success").Inc()
	generationDuration.WithLabelValues("bulk").Observe(time.Since(start).Seconds())
	labelsRendered.WithLabelValues("bulk").Add(float64(len(res.Images)))
	labelsSkipped.Add(float64(len(res.Errors)))

	if len(res.Errors) == 0 {
		s.store(ctx, key, res.Archive)
	}
	w.Header().Set(HeaderSkipped, strconv.Itoa(len(res.Errors)))
	s.writeDocument(w, res.Archive, output.ContentTypeZip, "labels.zip", res.Mode, false)
}

// printHandler composes a print sheet. Any unencodable value fails the
// whole request since a partial sheet is not printable.
func (s *Server) printHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeErrorResponse(w, r, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req remote.PrintRequest
	if !s.decode(w, r, &req) {
		return
	}
	if err := remote.ValidateData(req.Data, remote.MinPrintItems, remote.MaxPrintItems); err != nil {
		s.writeError(w, r, err)
		return
	}
	format, err := remote.ValidateFormat(req.Format)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	req.Format = format
	if !s.consumeLabels(w, r, len(req.Data)) {
		return
	}
	requestItems.WithLabelValues("print").Observe(float64(len(req.Data)))

	filename := "print-sheet." + format
	contentType := output.ContentTypePNG
	if format == remote.FormatPDF {
		contentType = output.ContentTypePDF
	}
	key := cache.Key("print", req)
	if s.serveCached(w, r, key, contentType, filename) {
		return
	}

	ctx, cancel := s.requestContext(r)
	defer cancel()
	start := time.Now()
	res, err := s.pipeline.Print(ctx, pipeline.PrintRequest{
		Request:  pipeline.Request{Data: req.Data, Config: req.Config, Progress: s.progressLog(r), Local: true},
		Layout:   req.Layout,
		Format:   format,
		MinItems: remote.MinPrintItems,
	})
	if err != nil {
		generationRequestsTotal.WithLabelValues("print", "error").Inc()
		s.writeError(w, r, err)
		return
	}
	generationRequestsTotal.WithLabelValues("print", "success").Inc()
	generationDuration.WithLabelValues("print").Observe(time.Since(start).Seconds())
	sheetsGenerated.WithLabelValues(format).Inc()
	if res.Sheet != nil {
		labelsRendered.WithLabelValues("print").Add(float64(res.Sheet.Labels))
	}

	s.store(ctx, key, res.Document)
	s.writeDocument(w, res.Document, res.ContentType, filename, res.Mode, false)
}

// labelsHandler returns a PDF with one page per label.
func (s *Server) labelsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeErrorResponse(w, r, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req remote.BulkRequest
	if !s.decode(w, r, &req) {
		return
	}
	if err := remote.ValidateData(req.Data, 1, remote.MaxBulkItems); err != nil {
		s.writeError(w, r, err)
		return
	}
	if !s.consumeLabels(w, r, len(req.Data)) {
		return
	}
	requestItems.WithLabelValues("labels").Observe(float64(len(req.Data)))

	ctx, cancel := s.requestContext(r)
	defer cancel()
	start := time.Now()
	doc, err := s.pipeline.LabelPDF(ctx, pipeline.Request{Data: req.Data, Config: req.Config, Progress: s.progressLog(r), Local: true})
	if err != nil {
		generationRequestsTotal.WithLabelValues("labels", "error").Inc()
		s.writeError(w, r, err)
		return
	}
	generationRequestsTotal.WithLabelValues("labels", "success").Inc()
	generationDuration.WithLabelValues("labels").Observe(time.Since(start).Seconds())
	labelsRendered.WithLabelValues("labels").Add(float64(len(req.Data) * req.Config.ImagesPerItem()))
	s.writeDocument(w, doc, output.ContentTypePDF, "labels.pdf", router.Local, false)
}

func (s *Server) requestContext(r *http.Request) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(r.Context())
	}
	return context.WithTimeout(r.Context(), s.timeout)
}

func (s *Server) progressLog(r *http.Request) progress.Callback {
	return progress.NewLog(s.logger.With("request_id", requestIDFrom(r.Context())), slog.LevelDebug)
}

// decode reads a size-limited JSON body into v, writing the error response
// itself on failure.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxBodyMB*1024*1024)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.writeErrorResponse(w, r, fmt.Sprintf("request body exceeds %d MB", s.maxBodyMB), http.StatusRequestEntityTooLarge)
			return false
		}
		s.writeError(w, r, apperr.Validation("body", "invalid JSON: %v", err))
		return false
	}
	return true
}

// serveCached writes a cached document and reports whether it did.
func (s *Server) serveCached(w http.ResponseWriter, r *http.Request, key, contentType, filename string) bool {
	data, hit, err := s.cache.Get(r.Context(), key)
	switch {
	case err != nil:
		cacheLookups.WithLabelValues("error").Inc()
		s.logger.Warn("Cache lookup failed", "error", err)
		return false
	case !hit:
		cacheLookups.WithLabelValues("miss").Inc()
		return false
	}
	cacheLookups.WithLabelValues("hit").Inc()
	s.writeDocument(w, data, contentType, filename, router.Local, true)
	return true
}

func (s *Server) store(ctx context.Context, key string, data []byte) {
	if err := s.cache.Set(ctx, key, data, s.cacheTTL); err != nil {
		s.logger.Warn("Cache store failed", "error", err)
	}
}

func (s *Server) writeDocument(w http.ResponseWriter, data []byte, contentType, filename string, mode router.Mode, cached bool) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Header().Set(HeaderMode, string(mode))
	if cached {
		w.Header().Set(HeaderCache, "HIT")
	} else {
		w.Header().Set(HeaderCache, "MISS")
	}
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		s.logger.Warn("Failed to write response body", "error", err)
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("Error encoding response", "error", err)
	}
}

// statusFor maps an error to its HTTP status.
func statusFor(err error) int {
	switch apperr.KindOf(err) {
	case apperr.KindValidation:
		return http.StatusBadRequest
	case apperr.KindSymbology, apperr.KindLayoutInfeasible:
		return http.StatusUnprocessableEntity
	case apperr.KindRemoteUnavailable:
		return http.StatusServiceUnavailable
	case apperr.KindIO:
		return http.StatusInternalServerError
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

// writeError writes err as a JSON error body with its kind and field.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	resp := remote.ErrorResponse{Error: err.Error(), RequestID: requestIDFrom(r.Context())}
	var ae *apperr.Error
	if errors.As(err, &ae) {
		resp.Kind, resp.Field, resp.Value = string(ae.Kind), ae.Field, ae.Value
	}
	if status >= http.StatusInternalServerError {
		s.logger.Error("Request failed", "path", r.URL.Path, "request_id", resp.RequestID, "error", err)
	}
	s.writeJSON(w, status, resp)
}

// writeErrorResponse writes a JSON error response.
func (s *Server) writeErrorResponse(w http.ResponseWriter, r *http.Request, message string, statusCode int) {
	s.writeJSON(w, statusCode, remote.ErrorResponse{Error: message, RequestID: requestIDFrom(r.Context())})
}
