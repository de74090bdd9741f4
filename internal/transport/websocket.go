// SPDX-License-Identifier: MIT
package transport

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	applog "audioviz/internal/log"

	"github.com/gorilla/websocket"
)

const (
	wsPath         = "/ws"
	wsWriteTimeout = time.Second
	wsQueueLength  = 16
)

// ControlMessage is sent by clients to drive the presentation. Fields left
// out of the JSON object are nil.
type ControlMessage struct {
	Page *int `json:"page,omitempty"`
}

// wireFrame is the JSON form of a Frame.
type wireFrame struct {
	Type       string    `json:"type"`
	Seq        uint64    `json:"seq"`
	Timestamp  int64     `json:"ts"` // Unix milliseconds.
	Bands      []float64 `json:"bands"`
	Energy     []float64 `json:"energy,omitempty"`
	Beat       bool      `json:"beat"`
	Magnitudes []float64 `json:"magnitudes,omitempty"`
}

// WebSocketTransport broadcasts frames as JSON to every connected client and
// accepts control messages from them.
type WebSocketTransport struct {
	addr              string
	includeMagnitudes bool
	upgrader          websocket.Upgrader
	clients           map[*websocket.Conn]bool
	clientsMu         sync.Mutex
	broadcast         chan []byte
	server            *http.Server
	listener          net.Listener
	onControl         func(ControlMessage)
	done              chan struct{}
	closeOnce         sync.Once
	wg                sync.WaitGroup
	logger            *applog.Logger
}

// NewWebSocketTransport creates a transport that will listen on addr once
// started. With includeMagnitudes the raw spectrum is added to every frame.
func NewWebSocketTransport(addr string, includeMagnitudes bool) *WebSocketTransport {
	return &WebSocketTransport{
		addr:              addr,
		includeMagnitudes: includeMagnitudes,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				return true // Renderers are served from anywhere on the LAN.
			},
		},
		clients:   make(map[*websocket.Conn]bool),
		broadcast: make(chan []byte, wsQueueLength),
		done:      make(chan struct{}),
		logger:    applog.New("websocket"),
	}
}

// OnControl registers the handler for client control messages. It must be
// called before Start.
func (wst *WebSocketTransport) OnControl(fn func(ControlMessage)) {
	wst.onControl = fn
}

// Start binds the listener and begins serving clients on /ws.
func (wst *WebSocketTransport) Start() error {
	ln, err := net.Listen("tcp", wst.addr)
	if err != nil {
		return fmt.Errorf("websocket listen on %s: %w", wst.addr, err)
	}
	wst.listener = ln

	mux := http.NewServeMux()
	mux.HandleFunc(wsPath, wst.handleWebSocket)
	wst.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	wst.wg.Add(2)
	go func() {
		defer wst.wg.Done()
		wst.logger.Infof("serving on ws://%s%s", ln.Addr(), wsPath)
		if err := wst.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			wst.logger.Errorf("server error: %v", err)
		}
	}()
	go func() {
		defer wst.wg.Done()
		wst.handleBroadcasts()
	}()
	return nil
}

// Addr returns the bound address, or the configured one before Start.
func (wst *WebSocketTransport) Addr() string {
	if wst.listener != nil {
		return wst.listener.Addr().String()
	}
	return wst.addr
}

// ClientCount returns the number of connected clients.
func (wst *WebSocketTransport) ClientCount() int {
	wst.clientsMu.Lock()
	defer wst.clientsMu.Unlock()
	return len(wst.clients)
}

func (wst *WebSocketTransport) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := wst.upgrader.Upgrade(w, r, nil)
	if err != nil {
		wst.logger.Warnf("upgrade error: %v", err)
		return
	}

	wst.clientsMu.Lock()
	wst.clients[conn] = true
	total := len(wst.clients)
	wst.clientsMu.Unlock()
	wst.logger.Infof("client %s connected, total: %d", conn.RemoteAddr(), total)

	go wst.readLoop(conn)
}

// readLoop consumes control messages until the client goes away.
func (wst *WebSocketTransport) readLoop(conn *websocket.Conn) {
	defer wst.drop(conn)
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var msg ControlMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			wst.logger.Debugf("ignoring malformed control message: %v", err)
			continue
		}
		if wst.onControl != nil {
			wst.onControl(msg)
		}
	}
}

func (wst *WebSocketTransport) drop(conn *websocket.Conn) {
	wst.clientsMu.Lock()
	_, ok := wst.clients[conn]
	delete(wst.clients, conn)
	total := len(wst.clients)
	wst.clientsMu.Unlock()

	conn.Close()
	if ok {
		wst.logger.Infof("client disconnected, total: %d", total)
	}
}

// handleBroadcasts writes queued messages to all connected clients.
func (wst *WebSocketTransport) handleBroadcasts() {
	for {
		select {
		case <-wst.done:
			return
		case data := <-wst.broadcast:
			wst.clientsMu.Lock()
			for client := range wst.clients {
				client.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
				if err := client.WriteMessage(websocket.TextMessage, data); err != nil {
					wst.logger.Warnf("error sending to client: %v", err)
					client.Close()
					delete(wst.clients, client)
				}
			}
			wst.clientsMu.Unlock()
		}
	}
}

// Send encodes the frame and queues it for broadcast. When the queue is full
// the frame is dropped; the next tick carries newer data anyway.
func (wst *WebSocketTransport) Send(frame Frame) error {
	select {
	case <-wst.done:
		return ErrClosed
	default:
	}

	wf := wireFrame{
		Type:      "frame",
		Seq:       frame.Seq,
		Timestamp: frame.Timestamp.UnixMilli(),
		Bands:     frame.Bands,
		Energy:    frame.Energy,
		Beat:      frame.Beat,
	}
	if wst.includeMagnitudes {
		wf.Magnitudes = frame.Magnitudes
	}
	data, err := json.Marshal(wf)
	if err != nil {
		return fmt.Errorf("encode frame: %w", err)
	}

	select {
	case wst.broadcast <- data:
	default:
	}
	return nil
}

// Close shuts down the server and disconnects every client.
func (wst *WebSocketTransport) Close() error {
	var err error
	wst.closeOnce.Do(func() {
		close(wst.done)
		if wst.server != nil {
			err = wst.server.Close()
		}

		wst.clientsMu.Lock()
		for client := range wst.clients {
			client.Close()
		}
		wst.clients = make(map[*websocket.Conn]bool)
		wst.clientsMu.Unlock()

		wst.wg.Wait()
		wst.logger.Infof("closed")
	})
	return err
}

// Ensure WebSocketTransport satisfies the interface
var _ Transport = (*WebSocketTransport)(nil)
