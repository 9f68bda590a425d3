package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// ============================================================================
// State WebSocket: hub + per-client pumps + broadcaster
// ============================================================================
//
//   - DaemonState stays daemon-owned; the initial snapshot goes through the
//     event loop.
//   - A client is registered only after state_init is queued. Broadcasts
//     between the snapshot and registration are not replayed; every
//     position frame carries the absolute position.
//   - Broadcasts originate from the reducer (ReduceResult.Broadcasts).
//   - Slow clients are disconnected when their send buffer fills.
//   - Frames are JSON text with an envelope: {type, ts, data}.
//   - position_changed is coalesced latest-wins in a short window.
//
// ============================================================================

// wsStateInit is the `data` payload of "state_init".
type wsStateInit struct {
	SessionID string `json:"session_id"`
	StateSnapshot
}

type wsPositionChangedData struct {
	Position int64   `json:"position"`
	Delta    int64   `json:"delta"`
	Laps     int     `json:"laps"`
	Sector   int     `json:"sector"`
	Turns    float64 `json:"turns"`
}

type wsLapChangedData struct {
	Laps      int `json:"laps"`
	Direction int `json:"direction"`
}

type wsPitchChangedData struct {
	Pitch
	BaseNote int `json:"base_note"`
}

type wsMotionChangedData struct {
	TurnsPerSec float64 `json:"turns_per_sec"`
	Direction   int     `json:"direction"`
	Fast        bool    `json:"fast"`
}

type wsIdleChangedData struct {
	Idle bool `json:"idle"`
}

// wsOutboundEvent is a typed, externally-consumable state event.
type wsOutboundEvent struct {
	Type string
	Data any
	At   time.Time // zero means "now"
}

// envelope is the wire format for WS messages.
type envelope struct {
	Type string     `json:"type"`
	Ts   *time.Time `json:"ts,omitempty"`
	Data any        `json:"data,omitempty"`
}

func marshalEnvelope(ev wsOutboundEvent) ([]byte, error) {
	ts := ev.At
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	return json.Marshal(envelope{Type: ev.Type, Ts: &ts, Data: ev.Data})
}

// ============================================================================
// Hub
// ============================================================================

type Hub struct {
	logger *slog.Logger

	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client

	mu      sync.Mutex
	clients map[*Client]struct{}

	sendBuf int
}

type HubConfig struct {
	// SendBuf is the per-client outbound queue size (default 32).
	SendBuf int

	// BroadcastBuf is the hub inbound queue size (default 128).
	BroadcastBuf int
}

// NewHub constructs a hub. Call Run(ctx) to start it.
func NewHub(logger *slog.Logger, cfg HubConfig) *Hub {
	sendBuf := cfg.SendBuf
	if sendBuf <= 0 {
		sendBuf = 32
	}
	bcastBuf := cfg.BroadcastBuf
	if bcastBuf <= 0 {
		bcastBuf = 128
	}

	return &Hub{
		logger:     logger,
		broadcast:  make(chan []byte, bcastBuf),
		register:   make(chan *Client, 64),
		unregister: make(chan *Client, 64),
		clients:    make(map[*Client]struct{}),
		sendBuf:    sendBuf,
	}
}

// Run processes hub events until ctx is canceled, then disconnects all
// clients.
func (h *Hub) Run(ctx context.Context) {
	h.logger.Info("ws hub starting")

	for {
		select {
		case <-ctx.Done():
			h.logger.Info("ws hub stopping (context canceled)")
			h.closeAllClients()
			return

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = struct{}{}
			n := len(h.clients)
			h.mu.Unlock()
			h.logger.Info("ws client registered", "remote_addr", c.remoteAddr, "clients", n)

		case c := <-h.unregister:
			h.removeClient(c, "unregister")

		case msg := <-h.broadcast:
			var slow []*Client

			h.mu.Lock()
			for c := range h.clients {
				select {
				case c.send <- msg:
				default:
					slow = append(slow, c)
				}
			}
			h.mu.Unlock()

			for _, c := range slow {
				h.removeClient(c, "slow_client")
			}
		}
	}
}

// ClientCount returns the number of registered clients.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *Hub) closeAllClients() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		if c.conn != nil {
			_ = c.conn.Close()
		}
		safeCloseChan(c.send)
		delete(h.clients, c)
	}
}

func (h *Hub) removeClient(c *Client, reason string) {
	h.mu.Lock()
	_, ok := h.clients[c]
	if ok {
		delete(h.clients, c)
	}
	n := len(h.clients)
	h.mu.Unlock()

	if ok {
		if c.conn != nil {
			_ = c.conn.Close()
		}
		// Closing send makes writePump exit.
		safeCloseChan(c.send)

		h.logger.Info("ws client disconnected", "remote_addr", c.remoteAddr, "reason", reason, "clients", n)
	}
}

func safeCloseChan(ch chan []byte) {
	defer func() {
		_ = recover() // close of closed channel
	}()
	close(ch)
}

// BroadcastBytes enqueues a serialized frame. It drops the frame instead of
// blocking when the hub queue is full.
func (h *Hub) BroadcastBytes(msg []byte) {
	select {
	case h.broadcast <- msg:
	default:
		h.logger.Warn("ws hub broadcast queue full, dropping message", "bytes", len(msg))
	}
}

// ============================================================================
// Client
// ============================================================================

type Client struct {
	hub *Hub

	conn *websocket.Conn
	send chan []byte

	remoteAddr string
	logger     *slog.Logger
}

// NewClient creates a client with a buffered send channel.
func NewClient(hub *Hub, conn *websocket.Conn, remoteAddr string, logger *slog.Logger) *Client {
	sendBuf := 32
	if hub != nil && hub.sendBuf > 0 {
		sendBuf = hub.sendBuf
	}
	return &Client{
		hub:        hub,
		conn:       conn,
		send:       make(chan []byte, sendBuf),
		remoteAddr: remoteAddr,
		logger:     logger,
	}
}

const (
	writeWait  = 5 * time.Second
	pongWait   = 30 * time.Second
	pingPeriod = 20 * time.Second
)

// wsPositionCoalesceWindow bounds how often position_changed frames go out
// while the knob is spinning.
const wsPositionCoalesceWindow = 50 * time.Millisecond

func closeStatus(err error) (code int, text string, ok bool) {
	var ce *websocket.CloseError
	if errors.As(err, &ce) {
		return ce.Code, ce.Text, true
	}
	return 0, "", false
}

func (c *Client) logExit(pump, kind string, err error) {
	if errors.Is(err, websocket.ErrCloseSent) {
		return
	}
	if code, text, ok := closeStatus(err); ok {
		c.logger.Info("ws "+pump+" exiting (close)", "remote_addr", c.remoteAddr, "code", code, "reason", text)
		return
	}
	c.logger.Info("ws "+pump+" exiting ("+kind+" error)", "remote_addr", c.remoteAddr, "error", err)
}

// writePump writes queued frames and keepalive pings. It exits on write
// error or when send is closed.
func (c *Client) writePump(ctx context.Context) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				c.logExit("writePump", "write", err)
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.logExit("writePump", "ping", err)
				return
			}
		}
	}
}

// readPump discards incoming messages to notice disconnects and handle
// control frames, then unregisters the client.
func (c *Client) readPump(ctx context.Context) {
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if ctx.Err() != nil {
			return
		}
		if _, _, err := c.conn.ReadMessage(); err != nil {
			c.logExit("readPump", "read", err)
			if c.hub != nil {
				c.hub.unregister <- c
			}
			return
		}
	}
}

// ============================================================================
// HTTP handler
// ============================================================================

type Server struct {
	logger *slog.Logger
	hub    *Hub

	// events carries the initial snapshot request into the daemon loop.
	events chan<- Event

	// sessionID identifies this daemon run to clients, so they can tell a
	// restart (position back at zero) from a reset.
	sessionID string
}

type ServerConfig struct {
	Hub HubConfig
}

// NewServer constructs the state websocket server. Start Hub().Run and
// RunBroadcaster separately.
func NewServer(logger *slog.Logger, events chan<- Event, cfg ServerConfig) *Server {
	return &Server{
		logger:    logger,
		hub:       NewHub(logger, cfg.Hub),
		events:    events,
		sessionID: uuid.NewString(),
	}
}

func (s *Server) Hub() *Hub { return s.hub }

func (s *Server) SessionID() string { return s.sessionID }

// Register adds the websocket handler to mux.
func (s *Server) Register(mux *http.ServeMux, path string) {
	if mux == nil {
		return
	}
	mux.HandleFunc(path, s.handleStateWS)
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// requestSnapshot asks the daemon loop for a snapshot and waits for it.
func (s *Server) requestSnapshot(ctx context.Context) (StateSnapshot, error) {
	reply := make(chan StateSnapshot, 1)

	select {
	case <-ctx.Done():
		return StateSnapshot{}, ctx.Err()
	case s.events <- RequestStateSnapshot{Reply: reply}:
	}

	if _, has := ctx.Deadline(); !has {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, snapshotTimeout)
		defer cancel()
	}

	select {
	case <-ctx.Done():
		return StateSnapshot{}, ctx.Err()
	case snap := <-reply:
		return snap, nil
	}
}

// handleStateWS upgrades the connection, queues state_init and only then
// registers the client, so state_init is always its first frame.
func (s *Server) handleStateWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("ws upgrade failed", "error", err)
		return
	}

	client := NewClient(s.hub, conn, r.RemoteAddr, s.logger)

	if s.events != nil {
		initMsg, err := s.stateInit(r.Context())
		if err != nil {
			if !errors.Is(err, context.Canceled) {
				s.logger.Warn("ws state_init failed", "error", err, "remote_addr", r.RemoteAddr)
			}
			_ = conn.Close()
			return
		}
		// The send queue is empty and buffered.
		client.send <- initMsg
	}

	s.hub.register <- client

	// The pumps outlive the handler; net/http cancels r.Context() on return.
	go client.writePump(context.Background())
	go client.readPump(context.Background())
}

// stateInit builds the state_init frame from a fresh daemon snapshot.
func (s *Server) stateInit(ctx context.Context) ([]byte, error) {
	snap, err := s.requestSnapshot(ctx)
	if err != nil {
		return nil, err
	}
	return marshalEnvelope(wsOutboundEvent{
		Type: "state_init",
		Data: wsStateInit{SessionID: s.sessionID, StateSnapshot: snap},
	})
}

// ============================================================================
// Broadcaster
// ============================================================================

// RunBroadcaster marshals reducer broadcasts and fans them out through the
// hub. position_changed frames are flushed at most once per coalesce window
// (latest wins); any other event flushes the pending position first so
// ordering is preserved.
func RunBroadcaster(ctx context.Context, hub *Hub, src <-chan StateBroadcast, logger *slog.Logger) {
	if hub == nil || src == nil {
		return
	}

	var pending *wsOutboundEvent
	var timer *time.Timer
	var timerCh <-chan time.Time

	send := func(ev wsOutboundEvent) {
		msg, err := marshalEnvelope(ev)
		if err != nil {
			logger.Warn("ws broadcaster marshal failed", "error", err, "type", ev.Type)
			return
		}
		hub.BroadcastBytes(msg)
	}

	flushPending := func() {
		if pending == nil {
			return
		}
		send(*pending)
		pending = nil
	}

	stopTimer := func() {
		if timer != nil && !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer = nil
		timerCh = nil
	}

	for {
		select {
		case <-ctx.Done():
			flushPending()
			stopTimer()
			return

		case <-timerCh:
			flushPending()
			stopTimer()

		case b, ok := <-src:
			if !ok {
				flushPending()
				stopTimer()
				logger.Info("ws broadcaster stopping (source ended)")
				return
			}

			ev, ok := convertBroadcast(b)
			if !ok {
				continue
			}

			if ev.Type == "position_changed" {
				pending = &ev
				if timer == nil {
					timer = time.NewTimer(wsPositionCoalesceWindow)
					timerCh = timer.C
				}
				continue
			}

			flushPending()
			stopTimer()
			send(ev)
		}
	}
}

func convertBroadcast(b StateBroadcast) (wsOutboundEvent, bool) {
	switch ev := b.(type) {
	case BroadcastPositionChanged:
		return wsOutboundEvent{
			Type: "position_changed",
			Data: wsPositionChangedData{
				Position: ev.Position,
				Delta:    ev.Delta,
				Laps:     ev.Laps,
				Sector:   ev.Sector,
				Turns:    ev.Turns,
			},
			At: ev.At,
		}, true

	case BroadcastLapChanged:
		return wsOutboundEvent{
			Type: "lap_changed",
			Data: wsLapChangedData{Laps: ev.Laps, Direction: ev.Direction},
			At:   ev.At,
		}, true

	case BroadcastPitchChanged:
		return wsOutboundEvent{
			Type: "pitch_changed",
			Data: wsPitchChangedData{Pitch: ev.Pitch, BaseNote: ev.BaseNote},
			At:   ev.At,
		}, true

	case BroadcastMotionChanged:
		return wsOutboundEvent{
			Type: "motion_changed",
			Data: wsMotionChangedData{TurnsPerSec: ev.TurnsPerSec, Direction: ev.Direction, Fast: ev.Fast},
			At:   ev.At,
		}, true

	case BroadcastIdleChanged:
		return wsOutboundEvent{
			Type: "idle_changed",
			Data: wsIdleChangedData{Idle: ev.Idle},
			At:   ev.At,
		}, true

	default:
		return wsOutboundEvent{}, false
	}
}
