package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"recast/internal/convert"
	"recast/internal/logging"
	"recast/internal/queue"
)

const (
	// writeWait bounds a single frame or control write.
	writeWait = 10 * time.Second
	// pongWait is how long a client may stay silent before it is dropped.
	pongWait = 60 * time.Second
	// pingPeriod must be shorter than pongWait.
	pingPeriod = 54 * time.Second
	// clientBuffer is how many frames a client may fall behind before it is
	// dropped instead of blocking the broadcaster.
	clientBuffer = 16

	maxClientMessageSize = 512
)

// Frame is one WebSocket message. Type discriminates the payload shape.
type Frame struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// ProgressFrame mirrors a conversion progress event for WebSocket consumers.
type ProgressFrame struct {
	JobID   int64   `json:"jobId"`
	Stage   string  `json:"stage"`
	Percent float64 `json:"percent"`
	Message string  `json:"message,omitempty"`
	Speed   float64 `json:"speed,omitempty"`
	EtaMs   int64   `json:"etaMs,omitempty"`
}

// Hub fans conversion events out to connected WebSocket clients. Clients
// that cannot keep up are disconnected rather than allowed to stall the
// workflow.
type Hub struct {
	logger   *slog.Logger
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*hubClient]struct{}
	closed  bool
}

type hubClient struct {
	conn *websocket.Conn
	send chan []byte
}

// NewHub constructs a hub ready to accept connections.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Hub{
		logger:  logging.NewComponentLogger(logger, "websocket-hub"),
		clients: make(map[*hubClient]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// The API binds to loopback by default; origin checks would
			// reject CLI and non-browser clients that send none.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// HandleWebSocket upgrades the request and serves the client until it
// disconnects. Intended to be mounted as an http.HandlerFunc.
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debug("websocket upgrade failed", logging.Error(err))
		return
	}

	client := &hubClient{conn: conn, send: make(chan []byte, clientBuffer)}
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		_ = conn.Close()
		return
	}
	h.clients[client] = struct{}{}
	count := len(h.clients)
	h.mu.Unlock()
	h.logger.Debug("websocket client connected", logging.Int("clients", count))

	go h.writeLoop(client)
	h.readLoop(client)
}

// readLoop discards inbound messages and keeps the pong deadline fresh. It
// returns when the connection dies, which unregisters the client.
func (h *Hub) readLoop(client *hubClient) {
	defer h.remove(client)
	client.conn.SetReadLimit(maxClientMessageSize)
	_ = client.conn.SetReadDeadline(time.Now().Add(pongWait))
	client.conn.SetPongHandler(func(string) error {
		return client.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := client.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writeLoop(client *hubClient) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case payload, ok := <-client.send:
			if !ok {
				deadline := time.Now().Add(writeWait)
				_ = client.conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
				return
			}
			_ = client.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := client.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				h.remove(client)
				return
			}
		case <-ticker.C:
			_ = client.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := client.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				h.remove(client)
				return
			}
		}
	}
}

// remove unregisters the client and closes its send channel exactly once;
// map membership is the guard.
func (h *Hub) remove(client *hubClient) {
	h.mu.Lock()
	_, registered := h.clients[client]
	if registered {
		delete(h.clients, client)
		close(client.send)
	}
	count := len(h.clients)
	h.mu.Unlock()

	_ = client.conn.Close()
	if registered {
		h.logger.Debug("websocket client disconnected", logging.Int("clients", count))
	}
}

// Broadcast sends the frame to every connected client. Clients whose send
// buffer is full are dropped.
func (h *Hub) Broadcast(frame Frame) {
	payload, err := json.Marshal(frame)
	if err != nil {
		h.logger.Error("failed to encode websocket frame", logging.Error(err))
		return
	}

	var slow []*hubClient
	h.mu.Lock()
	for client := range h.clients {
		select {
		case client.send <- payload:
		default:
			slow = append(slow, client)
		}
	}
	for _, client := range slow {
		delete(h.clients, client)
		close(client.send)
	}
	h.mu.Unlock()

	for _, client := range slow {
		_ = client.conn.Close()
		h.logger.Debug("dropped slow websocket client")
	}
}

// BroadcastProgress publishes a progress frame for the given job.
func (h *Hub) BroadcastProgress(job *queue.Job, event convert.Progress) {
	if h == nil || job == nil {
		return
	}
	h.Broadcast(Frame{Type: "progress", Data: ProgressFrame{
		JobID:   job.ID,
		Stage:   string(event.Status),
		Percent: event.Ratio * 100,
		Message: event.Message,
		Speed:   event.Speed,
		EtaMs:   event.EtaMs,
	}})
}

// BroadcastJob publishes a queue job snapshot after a state change.
func (h *Hub) BroadcastJob(job *queue.Job) {
	if h == nil || job == nil {
		return
	}
	h.Broadcast(Frame{Type: "job", Data: FromJob(job)})
}

// ClientCount reports the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Close disconnects all clients and rejects future connections.
func (h *Hub) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	clients := make([]*hubClient, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
		close(client.send)
	}
	h.clients = make(map[*hubClient]struct{})
	h.mu.Unlock()

	for _, client := range clients {
		_ = client.conn.Close()
	}
}
