// Package remote holds the wire types of the generation server and an HTTP
// client that streams its responses with progress reporting.
package remote

import (
	"fmt"

	"github.com/MeKo-Tech/labelkit/internal/apperr"
	"github.com/MeKo-Tech/labelkit/internal/barcode"
	"github.com/MeKo-Tech/labelkit/internal/layout"
)

// Endpoint paths.
const (
	PathHealth   = "/health"
	PathBulk     = "/generate/bulk"
	PathPrint    = "/generate/print"
	PathEstimate = "/estimate"
	PathWS       = "/ws/generate"
)

// Item count limits per endpoint.
const (
	MaxBulkItems  = 1000
	MinPrintItems = 20
	MaxPrintItems = 1000
)

// Sheet formats accepted by the print endpoint.
const (
	FormatPNG = "png"
	FormatPDF = "pdf"
)

// Header carrying the request id.
const HeaderRequestID = "X-Request-ID"

// BulkRequest asks for one image per label, zipped.
type BulkRequest struct {
	Data   []string       `json:"data"`
	Config barcode.Config `json:"config"`
}

// PrintRequest asks for a composed print sheet.
type PrintRequest struct {
	Data   []string         `json:"data"`
	Config barcode.Config   `json:"config"`
	Layout *layout.Override `json:"layout,omitempty"`
	Format string           `json:"format,omitempty"`
}

// EstimateRequest asks for a routing decision without rendering.
type EstimateRequest struct {
	ItemCount int            `json:"itemCount"`
	Config    barcode.Config `json:"config"`
}

// ErrorResponse is the JSON body of every non-2xx response.
type ErrorResponse struct {
	Success   bool   `json:"success"`
	Error     string `json:"error"`
	Kind      string `json:"kind,omitempty"`
	Field     string `json:"field,omitempty"`
	Value     string `json:"value,omitempty"`
	RequestID string `json:"requestId,omitempty"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
	Time    string `json:"time"`
}

// ValidateData checks the item count against [lo, hi] and rejects empty
// items, naming the first one by index.
func ValidateData(data []string, lo, hi int) error {
	if n := len(data); n < lo || n > hi {
		return apperr.Validation("data", "must contain between %d and %d items, got %d", lo, hi, n)
	}
	return ValidateNonEmpty(data)
}

// ValidateNonEmpty returns a validation error for the first empty item.
func ValidateNonEmpty(data []string) error {
	for i, v := range data {
		if v == "" {
			return apperr.Validation(fmt.Sprintf("data[%d]", i), "must not be empty")
		}
	}
	return nil
}

// ValidateFormat checks a print format, defaulting empty to png.
func ValidateFormat(format string) (string, error) {
	switch format {
	case "", FormatPNG:
		return FormatPNG, nil
	case FormatPDF:
		return FormatPDF, nil
	}
	return "", apperr.Validation("format", "must be %q or %q, got %q", FormatPNG, FormatPDF, format)
}

// AsError turns a decoded error body back into an apperr error.
func (e ErrorResponse) AsError(status int) error {
	kind := apperr.Kind(e.Kind)
	if kind == "" {
		return apperr.RemoteUnavailable(nil, "server returned %d: %s", status, e.Error)
	}
	return &apperr.Error{Kind: kind, Field: e.Field, Value: e.Value, Message: fmt.Sprintf("remote: %s", e.Error)}
}
