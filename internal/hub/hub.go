// Package hub fans broadcast messages out to connected WebSocket listeners
// and multiplexes inbound start/stop commands to the coordinator.
package hub

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/naman10parikh/vibetalk-sub000/internal/protocol"
)

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		// Local development tool; all listeners are on this machine.
		return true
	},
}

// CommandFunc handles an inbound listener command.
type CommandFunc func(cmd protocol.Command)

// DisconnectFunc is invoked when a listener connection closes, with the last
// session id that connection started (empty if none).
type DisconnectFunc func(sessionID string)

type conn struct {
	ws   *websocket.Conn
	send chan protocol.Message

	mu        sync.Mutex
	sessionID string
}

// Hub is the process-wide listener registry.
type Hub struct {
	mu    sync.RWMutex
	conns map[*conn]struct{}

	onCommand    CommandFunc
	onDisconnect DisconnectFunc
}

// New constructs an empty Hub.
func New() *Hub {
	return &Hub{conns: make(map[*conn]struct{})}
}

// OnCommand registers the inbound command handler. Must be called before
// ServeWS accepts connections.
func (h *Hub) OnCommand(f CommandFunc) { h.onCommand = f }

// OnDisconnect registers the connection-close handler.
func (h *Hub) OnDisconnect(f DisconnectFunc) { h.onDisconnect = f }

// ConnectionCount reports the number of connected listeners.
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

// Broadcast fans a message out to every connected listener. Slow listeners
// have messages dropped rather than blocking the caller.
func (h *Hub) Broadcast(msg protocol.Message) {
	if msg.Timestamp == 0 {
		msg.Timestamp = time.Now().UnixMilli()
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.conns {
		select {
		case c.send <- msg:
		default:
		}
	}
}

// EmitLog implements logging.Sink: every log line reaches listeners as a
// log message scoped to its session.
func (h *Hub) EmitLog(sessionID, level, text string) {
	m := protocol.New(protocol.TypeLog, sessionID)
	m.Step = level
	m.Message = text
	h.Broadcast(m)
}

// ServeWS upgrades the request and runs the connection until it closes.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) error {
	ws, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	c := &conn{ws: ws, send: make(chan protocol.Message, 64)}

	h.mu.Lock()
	h.conns[c] = struct{}{}
	h.mu.Unlock()

	go h.writePump(c)
	h.readPump(c)
	return nil
}

func (h *Hub) writePump(c *conn) {
	for msg := range c.send {
		if err := c.ws.WriteJSON(msg); err != nil {
			return
		}
	}
}

func (h *Hub) readPump(c *conn) {
	defer h.drop(c)
	for {
		mt, data, err := c.ws.ReadMessage()
		if err != nil {
			return
		}
		if mt != websocket.TextMessage {
			continue
		}
		var cmd protocol.Command
		if err := json.Unmarshal(data, &cmd); err != nil {
			continue
		}
		if cmd.SessionID == "" {
			continue
		}
		if cmd.Action == protocol.ActionStart {
			c.mu.Lock()
			c.sessionID = cmd.SessionID
			c.mu.Unlock()
		}
		if h.onCommand != nil {
			h.onCommand(cmd)
		}
	}
}

func (h *Hub) drop(c *conn) {
	h.mu.Lock()
	_, present := h.conns[c]
	delete(h.conns, c)
	h.mu.Unlock()
	if !present {
		return
	}
	close(c.send)
	_ = c.ws.Close()
	c.mu.Lock()
	sid := c.sessionID
	c.mu.Unlock()
	if h.onDisconnect != nil {
		h.onDisconnect(sid)
	}
}
