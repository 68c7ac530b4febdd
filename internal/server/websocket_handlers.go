package server

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"image"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/MeKo-Tech/morpho/internal/pairs"
	"github.com/MeKo-Tech/morpho/internal/progress"
	"github.com/MeKo-Tech/morpho/internal/utils"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WebSocketMorphRequest is the single message a client sends. Images are
// base64 encoded; pairs is either a JSON object or a string holding a YAML or
// JSON pairs document.
type WebSocketMorphRequest struct {
	Source      string          `json:"source"`
	Destination string          `json:"destination"`
	Pairs       json.RawMessage `json:"pairs"`
	Frames      *int            `json:"frames,omitempty"`
	Parallel    *bool           `json:"parallel,omitempty"`
}

// WebSocketMorphResponse is streamed back while a morph runs.
type WebSocketMorphResponse struct {
	Type     string       `json:"type"`   // "progress", "complete", "error"
	Status   string       `json:"status"` // "processing", "completed", "error"
	Progress float64      `json:"progress"`
	Frame    int          `json:"frame,omitempty"` // completed frame computations
	Total    int          `json:"total,omitempty"`
	Result   *MorphResult `json:"result,omitempty"`
	Error    string       `json:"error,omitempty"`
	Code     int          `json:"code,omitempty"`
}

// WebSocketConnWriter is an interface for writing WebSocket messages.
type WebSocketConnWriter interface {
	WriteMessage(messageType int, data []byte) error
}

// lockedWriter serializes writes from concurrent progress callbacks.
type lockedWriter struct {
	mu   sync.Mutex
	conn WebSocketConnWriter
}

func (l *lockedWriter) WriteMessage(messageType int, data []byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.conn.WriteMessage(messageType, data)
}

// morphWebSocketHandler upgrades the connection and serves morph requests
// until the client goes away.
func (s *Server) morphWebSocketHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("Failed to upgrade connection to WebSocket", "error", err)
		return
	}
	defer func() { _ = conn.Close() }()

	websocketConnections.Inc()
	defer websocketConnections.Dec()

	slog.Info("WebSocket connection established", "remote_addr", r.RemoteAddr)

	out := &lockedWriter{conn: conn}
	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Error("WebSocket error", "error", err)
			}
			return
		}
		websocketMessagesTotal.WithLabelValues("received").Inc()

		if messageType == websocket.TextMessage {
			s.handleWebSocketMessage(r, out, data)
		}
	}
}

// handleWebSocketMessage runs one morph and streams its progress.
func (s *Server) handleWebSocketMessage(r *http.Request, conn WebSocketConnWriter, data []byte) {
	req, err := s.decodeWebSocketRequest(data)
	if err != nil {
		s.sendWebSocketError(conn, err)
		return
	}

	s.sendWebSocketResponse(conn, WebSocketMorphResponse{Type: "progress", Status: "processing"})

	cb := progress.NewThrottled(progress.Funcs{
		Progress: func(current, total int) {
			s.sendWebSocketResponse(conn, WebSocketMorphResponse{
				Type:     "progress",
				Status:   "processing",
				Progress: float64(current) / float64(total),
				Frame:    current,
				Total:    total,
			})
		},
	}, 50*time.Millisecond)

	ctx, cancel := s.requestContext(r.Context())
	defer cancel()

	out, err := s.run(ctx, "websocket", req, cb)
	if err != nil {
		s.sendWebSocketError(conn, err)
		return
	}
	result, err := buildResult(out)
	if err != nil {
		s.sendWebSocketError(conn, err)
		return
	}
	s.sendWebSocketResponse(conn, WebSocketMorphResponse{
		Type:     "complete",
		Status:   "completed",
		Progress: 1,
		Result:   result,
	})
}

func (s *Server) decodeWebSocketRequest(data []byte) (*morphRequest, error) {
	var msg WebSocketMorphRequest
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, badRequest("failed to parse request: %v", err)
	}

	src, err := decodeBase64Image(msg.Source, "source")
	if err != nil {
		return nil, err
	}
	dst, err := decodeBase64Image(msg.Destination, "destination")
	if err != nil {
		return nil, err
	}

	doc := []byte(msg.Pairs)
	var text string
	if json.Unmarshal(msg.Pairs, &text) == nil {
		doc = []byte(text)
	}
	if len(bytes.TrimSpace(doc)) == 0 || string(doc) == "null" {
		return nil, badRequest("no pairs provided")
	}
	set, err := pairs.Parse(doc)
	if err != nil {
		return nil, badRequest("%v", err)
	}

	req := &morphRequest{source: src, destination: dst, pairs: set, frames: s.frameDefault(), parallel: true}
	if msg.Frames != nil {
		req.frames = *msg.Frames
	}
	if msg.Parallel != nil {
		req.parallel = *msg.Parallel
	}
	return req, nil
}

func decodeBase64Image(data, field string) (image.Image, error) {
	if data == "" {
		return nil, badRequest("no %s image provided", field)
	}
	raw, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return nil, badRequest("invalid base64 in %s: %v", field, err)
	}
	uploadSizeBytes.Observe(float64(len(raw)))
	img, _, err := utils.DecodeImage(bytes.NewReader(raw))
	if err != nil {
		return nil, badRequest("invalid %s image: %v", field, err)
	}
	return img, nil
}

// sendWebSocketResponse sends a response message over WebSocket.
func (s *Server) sendWebSocketResponse(conn WebSocketConnWriter, response WebSocketMorphResponse) {
	data, err := json.Marshal(response)
	if err != nil {
		slog.Error("Failed to marshal WebSocket response", "error", err)
		return
	}

	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		slog.Error("Failed to send WebSocket message", "error", err)
		return
	}

	websocketMessagesTotal.WithLabelValues("sent").Inc()
}

// sendWebSocketError reports err with the same wording as the HTTP API.
func (s *Server) sendWebSocketError(conn WebSocketConnWriter, err error) {
	status, msg := statusFor(err)
	s.sendWebSocketResponse(conn, WebSocketMorphResponse{
		Type:   "error",
		Status: "error",
		Error:  msg,
		Code:   status,
	})
}
