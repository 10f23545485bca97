package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/dhjs0000/QERC/internal/export"
	"github.com/dhjs0000/QERC/internal/pipeline"
	"github.com/dhjs0000/QERC/internal/utils"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

const (
	wsReadTimeout  = 60 * time.Second
	wsPingInterval = 30 * time.Second
	wsQueueSize    = 4
)

// Frame types sent to the client.
const (
	FrameAccepted = "accepted"
	FrameProgress = "progress"
	FrameResult   = "result"
	FrameError    = "error"
)

// WebSocketRequest is the JSON form of a scan request. A binary frame is
// shorthand for {"type":"scan","image":<frame bytes>}.
type WebSocketRequest struct {
	Type     string `json:"type"` // "scan" or "cancel"
	Image    []byte `json:"image,omitempty"`
	Filename string `json:"filename,omitempty"`
}

// WebSocketFrame is one message sent to the client.
type WebSocketFrame struct {
	Type      string                  `json:"type"`
	RequestID string                  `json:"request_id,omitempty"`
	Progress  *pipeline.ProgressEvent `json:"progress,omitempty"`
	Result    *export.ImageResult     `json:"result,omitempty"`
	Error     string                  `json:"error,omitempty"`
	ErrorType string                  `json:"error_type,omitempty"`
}

// WebSocketConnWriter is the write side of a WebSocket connection.
type WebSocketConnWriter interface {
	WriteMessage(messageType int, data []byte) error
}

// wsSession serializes writes to one connection and tracks the running scan.
type wsSession struct {
	server *Server
	conn   WebSocketConnWriter

	writeMu sync.Mutex
	seq     atomic.Int64

	cancelMu sync.Mutex
	cancel   context.CancelFunc
}

func (ws *wsSession) send(frame WebSocketFrame) {
	data, err := json.Marshal(frame)
	if err != nil {
		ws.server.logger.Error("failed to marshal websocket frame", "error", err)
		return
	}
	ws.writeMu.Lock()
	defer ws.writeMu.Unlock()
	if err := ws.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		ws.server.logger.Debug("failed to send websocket frame", "error", err)
		return
	}
	websocketMessagesTotal.WithLabelValues("sent").Inc()
}

func (ws *wsSession) sendError(requestID, errorType, message string) {
	ws.send(WebSocketFrame{Type: FrameError, RequestID: requestID, Error: message, ErrorType: errorType})
}

func (ws *wsSession) nextID() string {
	return strconv.FormatInt(ws.seq.Add(1), 10)
}

func (ws *wsSession) setCancel(c context.CancelFunc) {
	ws.cancelMu.Lock()
	ws.cancel = c
	ws.cancelMu.Unlock()
}

func (ws *wsSession) cancelRunning() {
	ws.cancelMu.Lock()
	defer ws.cancelMu.Unlock()
	if ws.cancel != nil {
		ws.cancel()
	}
}

// wsProgress forwards search progress as frames.
type wsProgress struct {
	ws        *wsSession
	requestID string
}

func (p *wsProgress) OnStart(total int) {
	ev := pipeline.NewProgressEvent(0, total, 0, fmt.Sprintf("processing %d attempts", total))
	p.ws.send(WebSocketFrame{Type: FrameProgress, RequestID: p.requestID, Progress: &ev})
}

func (p *wsProgress) OnProgress(ev pipeline.ProgressEvent) {
	p.ws.send(WebSocketFrame{Type: FrameProgress, RequestID: p.requestID, Progress: &ev})
}

func (p *wsProgress) OnComplete(ev pipeline.ProgressEvent) {
	p.ws.send(WebSocketFrame{Type: FrameProgress, RequestID: p.requestID, Progress: &ev})
}

func (p *wsProgress) OnError(error) {}

// scanWebSocketHandler upgrades the connection and serves scan requests on
// it until the client goes away.
func (s *Server) scanWebSocketHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("failed to upgrade connection to websocket", "error", err)
		return
	}
	defer func() { _ = conn.Close() }()

	websocketConnections.Inc()
	defer websocketConnections.Dec()

	s.logger.Info("websocket connection established", "remote_addr", r.RemoteAddr)
	s.handleWebSocketConnection(r.Context(), conn)
}

// handleWebSocketConnection reads frames on a separate goroutine so that a
// cancel request can interrupt the scan in progress.
func (s *Server) handleWebSocketConnection(parent context.Context, conn *websocket.Conn) {
	ctx, stop := context.WithCancel(parent)
	defer stop()

	ws := &wsSession{server: s, conn: conn}

	_ = conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
	})

	go func() {
		ticker := time.NewTicker(wsPingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(10*time.Second)); err != nil {
					return
				}
			}
		}
	}()

	queue := make(chan scanJob, wsQueueSize)
	go func() {
		defer close(queue)
		defer stop()
		for {
			messageType, data, err := conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					s.logger.Debug("websocket read error", "error", err)
				}
				return
			}
			_ = conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
			websocketMessagesTotal.WithLabelValues("received").Inc()

			job, ok := ws.parseMessage(messageType, data)
			if !ok {
				continue
			}
			select {
			case queue <- job:
			default:
				ws.sendError(job.id, "busy", "too many queued scans")
			}
		}
	}()

	for job := range queue {
		s.processWebSocketScan(ctx, ws, job)
	}
}

type scanJob struct {
	id       string
	filename string
	data     []byte
}

// parseMessage turns a frame into a scan job. Cancel requests are handled
// here and produce no job.
func (ws *wsSession) parseMessage(messageType int, data []byte) (scanJob, bool) {
	switch messageType {
	case websocket.BinaryMessage:
		return scanJob{id: ws.nextID(), data: data}, true
	case websocket.TextMessage:
		var req WebSocketRequest
		if err := json.Unmarshal(data, &req); err != nil {
			ws.sendError("", "invalid_request", fmt.Sprintf("failed to parse request: %v", err))
			return scanJob{}, false
		}
		switch req.Type {
		case "cancel":
			ws.cancelRunning()
			return scanJob{}, false
		case "scan", "":
			if len(req.Image) == 0 {
				ws.sendError("", "invalid_request", "no image data provided")
				return scanJob{}, false
			}
			return scanJob{id: ws.nextID(), filename: req.Filename, data: req.Image}, true
		default:
			ws.sendError("", "invalid_request", "unsupported request type: "+req.Type)
			return scanJob{}, false
		}
	default:
		return scanJob{}, false
	}
}

// processWebSocketScan runs one search and streams its progress.
func (s *Server) processWebSocketScan(parent context.Context, ws *wsSession, job scanJob) {
	ws.send(WebSocketFrame{Type: FrameAccepted, RequestID: job.id})

	img, _, err := utils.DecodeImageBytes(job.data)
	if err != nil {
		scanRequestsTotal.WithLabelValues("websocket", "error").Inc()
		ws.sendError(job.id, "invalid_image", fmt.Sprintf("failed to decode image: %v", err))
		return
	}

	var progress pipeline.ProgressCallback = &wsProgress{ws: ws, requestID: job.id}
	if s.progressEvery > 0 {
		progress = pipeline.NewThrottledProgressCallback(progress, s.progressEvery)
	}
	searcher, err := s.builder().WithProgressCallback(progress).Build()
	if err != nil {
		ws.sendError(job.id, "processing_error", err.Error())
		return
	}

	var (
		ctx    context.Context
		cancel context.CancelFunc
	)
	if s.timeoutSec > 0 {
		ctx, cancel = context.WithTimeout(parent, time.Duration(s.timeoutSec)*time.Second)
	} else {
		ctx, cancel = context.WithCancel(parent)
	}
	ws.setCancel(cancel)
	defer func() {
		ws.setCancel(nil)
		cancel()
	}()

	name := job.filename
	if name == "" {
		name = "websocket-" + job.id
	}
	report, err := searcher.SearchInto(ctx, pipeline.NewAggregator(), name, img)
	if report == nil {
		scanRequestsTotal.WithLabelValues("websocket", "error").Inc()
		ws.sendError(job.id, "processing_error", err.Error())
		return
	}
	s.observeReport("websocket", report)

	result := export.FromReport(name, report)
	ws.send(WebSocketFrame{Type: FrameResult, RequestID: job.id, Result: &result})
}
