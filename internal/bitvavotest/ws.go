package bitvavotest

import (
	"encoding/json"
	"net/http"
	"strconv"
	"sync"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

type wsConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (c *wsConn) writeJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(v)
}

type wsChannel struct {
	Name     string   `json:"name"`
	Markets  []string `json:"markets"`
	Interval []string `json:"interval,omitempty"`
}

type wsAction struct {
	Action    string      `json:"action"`
	Channels  []wsChannel `json:"channels"`
	Key       string      `json:"key"`
	Signature string      `json:"signature"`
	Timestamp int64       `json:"timestamp"`
	Window    int64       `json:"window"`
}

// Subscribed delivers the channel names of every subscribe action received.
func (s *Server) Subscribed() <-chan []string {
	return s.subscribed
}

// Unsubscribed delivers the channel names of every unsubscribe action received.
func (s *Server) Unsubscribed() <-chan []string {
	return s.unsubscribe
}

// SetMuted makes the WebSocket endpoint read actions without answering them.
func (s *Server) SetMuted(muted bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.muted = muted
}

// Connections is the number of open WebSocket connections.
func (s *Server) Connections() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

// Subscriptions is the number of subscribe actions received so far.
func (s *Server) Subscriptions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.subscribeN
}

// Authentications is the number of authenticate actions received so far.
func (s *Server) Authentications() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.authRequest
}

// Publish writes an event to every open WebSocket connection.
func (s *Server) Publish(event any) {
	s.mu.Lock()
	conns := make([]*wsConn, 0, len(s.conns))
	for c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	for _, c := range conns {
		c.writeJSON(event)
	}
}

// DropConnections closes every open WebSocket connection from the server side.
func (s *Server) DropConnections() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.conns {
		c.conn.Close()
		delete(s.conns, c)
	}
}

func (s *Server) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	c := &wsConn{conn: conn}

	s.mu.Lock()
	s.conns[c] = struct{}{}
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.conns, c)
		s.mu.Unlock()
		conn.Close()
	}()

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var a wsAction
		if err := json.Unmarshal(msg, &a); err != nil {
			c.writeJSON(map[string]any{"errorCode": 107, "error": "Body is not valid JSON."})
			continue
		}
		s.handleAction(c, a)
	}
}

func (s *Server) handleAction(c *wsConn, a wsAction) {
	s.mu.Lock()
	muted := s.muted
	s.mu.Unlock()
	if muted {
		return
	}

	switch a.Action {
	case "subscribe", "unsubscribe":
		subs := make(map[string]any, len(a.Channels))
		names := make([]string, 0, len(a.Channels))
		for _, ch := range a.Channels {
			names = append(names, ch.Name)
			if len(ch.Interval) > 0 {
				byInterval := make(map[string][]string, len(ch.Interval))
				for _, iv := range ch.Interval {
					byInterval[iv] = ch.Markets
				}
				subs[ch.Name] = byInterval
			} else {
				subs[ch.Name] = ch.Markets
			}
		}
		c.writeJSON(map[string]any{"event": a.Action + "d", "subscriptions": subs})
		if a.Action == "unsubscribe" {
			select {
			case s.unsubscribe <- names:
			default:
			}
			return
		}
		s.mu.Lock()
		s.subscribeN++
		s.mu.Unlock()
		select {
		case s.subscribed <- names:
		default:
		}
	case "authenticate":
		s.mu.Lock()
		s.authRequest++
		s.mu.Unlock()
		ts := strconv.FormatInt(a.Timestamp, 10)
		if a.Key != Key || a.Signature != Sign(ts, "GET", "/v2/websocket", "") {
			c.writeJSON(map[string]any{"action": "authenticate", "errorCode": 309, "error": "The signature is invalid."})
			return
		}
		c.writeJSON(map[string]any{"event": "authenticate", "authenticated": true})
	default:
		c.writeJSON(map[string]any{"action": a.Action, "errorCode": 110, "error": "Invalid endpoint."})
	}
}
