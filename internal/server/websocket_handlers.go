package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/MeKo-Tech/labelkit/internal/apperr"
	"github.com/MeKo-Tech/labelkit/internal/barcode"
	"github.com/MeKo-Tech/labelkit/internal/layout"
	"github.com/MeKo-Tech/labelkit/internal/output"
	"github.com/MeKo-Tech/labelkit/internal/pipeline"
	"github.com/MeKo-Tech/labelkit/internal/remote"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 64 * 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// WebSocket job types.
const (
	wsJobBulk  = "bulk"
	wsJobPrint = "print"
)

// WebSocketRequest starts a generation job over a websocket.
type WebSocketRequest struct {
	Type      string           `json:"type"` // "bulk" or "print"
	RequestID string           `json:"requestId,omitempty"`
	Data      []string         `json:"data"`
	Config    barcode.Config   `json:"config"`
	Layout    *layout.Override `json:"layout,omitempty"`
	Format    string           `json:"format,omitempty"`
}

// WebSocketResponse is every message the server sends: progress updates,
// the final document, or an error.
type WebSocketResponse struct {
	Type        string  `json:"type"` // "progress", "result", "error"
	RequestID   string  `json:"requestId,omitempty"`
	Current     int     `json:"current,omitempty"`
	Total       int     `json:"total,omitempty"`
	Progress    float64 `json:"progress,omitempty"`
	ContentType string  `json:"contentType,omitempty"`
	Filename    string  `json:"filename,omitempty"`
	Data        []byte  `json:"data,omitempty"`
	Skipped     int     `json:"skipped,omitempty"`
	Error       string  `json:"error,omitempty"`
	Kind        string  `json:"kind,omitempty"`
	Field       string  `json:"field,omitempty"`
	Value       string  `json:"value,omitempty"`
}

// WebSocketConnWriter is an interface for writing WebSocket messages.
type WebSocketConnWriter interface {
	WriteMessage(messageType int, data []byte) error
}

// lockedWriter serialises writes from render workers and the reader loop.
type lockedWriter struct {
	mu   sync.Mutex
	conn WebSocketConnWriter
}

func (l *lockedWriter) WriteMessage(messageType int, data []byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.conn.WriteMessage(messageType, data)
}

// generateWebSocketHandler runs generation jobs and streams their progress.
func (s *Server) generateWebSocketHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("Failed to upgrade connection to WebSocket", "error", err)
		return
	}
	defer func() { _ = conn.Close() }()

	websocketConnections.Inc()
	defer websocketConnections.Dec()

	s.logger.Info("WebSocket connection established", "remote_addr", r.RemoteAddr)
	s.handleWebSocketConnection(r.Context(), conn, getClientIP(r))
}

// handleWebSocketConnection reads job requests until the client goes away.
func (s *Server) handleWebSocketConnection(ctx context.Context, conn *websocket.Conn, clientID string) {
	_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(10*time.Second)); err != nil {
					return
				}
			}
		}
	}()

	writer := &lockedWriter{conn: conn}
	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Error("WebSocket error", "error", err)
			}
			return
		}
		websocketMessagesTotal.WithLabelValues("received").Inc()
		if messageType == websocket.TextMessage {
			// Jobs run synchronously; the read deadline is lifted meanwhile.
			_ = conn.SetReadDeadline(time.Time{})
			s.handleWebSocketMessage(ctx, writer, clientID, data)
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		}
	}
}

// handleWebSocketMessage runs one job request.
func (s *Server) handleWebSocketMessage(ctx context.Context, conn WebSocketConnWriter, clientID string, data []byte) {
	var req WebSocketRequest
	if err := json.Unmarshal(data, &req); err != nil {
		s.sendWebSocketError(conn, "", apperr.Validation("body", "invalid JSON: %v", err))
		return
	}
	if req.RequestID == "" {
		req.RequestID = uuid.NewString()
	}

	var err error
	switch req.Type {
	case wsJobBulk:
		err = remote.ValidateData(req.Data, 1, remote.MaxBulkItems)
	case wsJobPrint:
		err = remote.ValidateData(req.Data, remote.MinPrintItems, remote.MaxPrintItems)
	default:
		err = apperr.Validation("type", "must be %q or %q, got %q", wsJobBulk, wsJobPrint, req.Type)
	}
	if err != nil {
		s.sendWebSocketError(conn, req.RequestID, err)
		return
	}
	if s.rateLimiter != nil {
		if err := s.rateLimiter.ConsumeLabels(clientID, int64(len(req.Data))); err != nil {
			rateLimitHits.WithLabelValues("labels").Inc()
			s.sendWebSocketError(conn, req.RequestID, err)
			return
		}
	}

	kind := "websocket_" + req.Type
	requestItems.WithLabelValues(kind).Observe(float64(len(req.Data)))
	cb := &wsProgress{server: s, conn: conn, requestID: req.RequestID}
	base := pipeline.Request{Data: req.Data, Config: req.Config, Progress: cb, Local: true}

	jobCtx, cancel := context.WithTimeout(ctx, s.jobTimeout())
	defer cancel()
	start := time.Now()
	resp := WebSocketResponse{Type: "result", RequestID: req.RequestID, Progress: 1}
	if req.Type == wsJobBulk {
		res, err := s.pipeline.Bulk(jobCtx, base)
		if err != nil {
			generationRequestsTotal.WithLabelValues(kind, "error").Inc()
			s.sendWebSocketError(conn, req.RequestID, err)
			return
		}
		labelsRendered.WithLabelValues(kind).Add(float64(len(res.Images)))
		labelsSkipped.Add(float64(len(res.Errors)))
		resp.Data, resp.ContentType, resp.Filename, resp.Skipped = res.Archive, output.ContentTypeZip, "labels.zip", len(res.Errors)
	} else {
		res, err := s.pipeline.Print(jobCtx, pipeline.PrintRequest{
			Request: base, Layout: req.Layout, Format: req.Format, MinItems: remote.MinPrintItems,
		})
		if err != nil {
			generationRequestsTotal.WithLabelValues(kind, "error").Inc()
			s.sendWebSocketError(conn, req.RequestID, err)
			return
		}
		sheetsGenerated.WithLabelValues(res.Format).Inc()
		if res.Sheet != nil {
			labelsRendered.WithLabelValues(kind).Add(float64(res.Sheet.Labels))
		}
		resp.Data, resp.ContentType, resp.Filename = res.Document, res.ContentType, "print-sheet."+res.Format
	}
	generationRequestsTotal.WithLabelValues(kind, "success").Inc()
	generationDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
	s.sendWebSocketResponse(conn, resp)
}

func (s *Server) jobTimeout() time.Duration {
	if s.timeout <= 0 {
		return 10 * time.Minute
	}
	return s.timeout
}

// wsProgress forwards render progress to the client.
type wsProgress struct {
	server    *Server
	conn      WebSocketConnWriter
	requestID string
}

func (p *wsProgress) OnStart(total int) {
	p.server.sendWebSocketResponse(p.conn, WebSocketResponse{Type: "progress", RequestID: p.requestID, Total: total})
}

func (p *wsProgress) OnProgress(current, total int) {
	msg := WebSocketResponse{Type: "progress", RequestID: p.requestID, Current: current, Total: total}
	if total > 0 {
		msg.Progress = float64(current) / float64(total)
	}
	p.server.sendWebSocketResponse(p.conn, msg)
}

func (p *wsProgress) OnComplete() {}

func (p *wsProgress) OnError(current int, err error) {
	p.server.logger.Debug("Label failed", "request_id", p.requestID, "index", current, "error", err)
}

// sendWebSocketResponse sends a response message over WebSocket.
func (s *Server) sendWebSocketResponse(conn WebSocketConnWriter, response WebSocketResponse) {
	data, err := json.Marshal(response)
	if err != nil {
		s.logger.Error("Failed to marshal WebSocket response", "error", err)
		return
	}
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		s.logger.Debug("Failed to send WebSocket message", "error", err)
		return
	}
	websocketMessagesTotal.WithLabelValues("sent").Inc()
}

// sendWebSocketError sends err with its kind tag.
func (s *Server) sendWebSocketError(conn WebSocketConnWriter, requestID string, err error) {
	resp := WebSocketResponse{Type: "error", RequestID: requestID, Error: err.Error()}
	var ae *apperr.Error
	var qe *QuotaExceededError
	switch {
	case errors.As(err, &ae):
		resp.Kind, resp.Field, resp.Value = string(ae.Kind), ae.Field, ae.Value
	case errors.As(err, &qe):
		resp.Kind = "quota_exceeded"
	}
	s.sendWebSocketResponse(conn, resp)
}
