// FilePath: internal/broadcast/client.go
package broadcast

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	nuts "github.com/vaudience/go-nuts"

	"github.com/vialibre/crosshub/internal/auth"
	"github.com/vialibre/crosshub/internal/config"
	"github.com/vialibre/crosshub/internal/models"
	"github.com/vialibre/crosshub/internal/ratelimit"
)

const maxMessageSize = 4096

// Server upgrades websocket requests, runs the authentication handshake
// and hands admitted connections to the hub.
type Server struct {
	hub      *Hub
	auth     *auth.Authenticator
	limiter  *ratelimit.Limiter
	cfg      config.SocketConfig
	deadline time.Duration
	upgrader websocket.Upgrader
}

func NewServer(hub *Hub, authenticator *auth.Authenticator, limiter *ratelimit.Limiter, cfg config.SocketConfig, handshakeTimeout time.Duration) *Server {
	return &Server{
		hub:      hub,
		auth:     authenticator,
		limiter:  limiter,
		cfg:      cfg,
		deadline: handshakeTimeout,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// Client is one authenticated socket connection.
type Client struct {
	hub      *Hub
	server   *Server
	conn     *websocket.Conn
	send     chan []byte
	ip       string
	operator *models.Operator
}

func (c *Client) ID() string {
	if c.operator != nil {
		return fmt.Sprintf("%s@%s", c.operator.Username, c.ip)
	}
	return c.ip
}

// clientIP prefers the first X-Forwarded-For hop, falling back to the
// connection's remote address.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		return strings.TrimSpace(strings.Split(fwd, ",")[0])
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// HandleWS is the websocket endpoint. The connection cap is checked before
// the upgrade with no side effect; the counter is only incremented after
// the token in the first frame authenticates.
func (s *Server) HandleWS(w http.ResponseWriter, r *http.Request) {
	ip := clientIP(r)

	ok, err := s.limiter.CheckConnection(r.Context(), ip)
	if err != nil {
		nuts.L.Errorf("[Socket] Connection check failed for %s: %v", ip, err)
		http.Error(w, "service unavailable", http.StatusServiceUnavailable)
		return
	}
	if !ok {
		nuts.L.Warnf("[Socket] Connection cap reached for %s", ip)
		http.Error(w, "too many connections", http.StatusTooManyRequests)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		nuts.L.Warnf("[Socket] Upgrade failed for %s: %v", ip, err)
		return
	}

	operator, err := s.handshake(r.Context(), conn)
	if err != nil {
		nuts.L.Warnf("[Socket] Handshake rejected for %s: %v", ip, err)
		writeClose(conn, websocket.ClosePolicyViolation, "authentication required")
		conn.Close()
		return
	}

	admitted, err := s.limiter.AcquireConnection(r.Context(), ip)
	if err != nil || !admitted {
		if err != nil {
			nuts.L.Errorf("[Socket] Connection acquire failed for %s: %v", ip, err)
		} else {
			nuts.L.Warnf("[Socket] Connection cap raced for %s", ip)
		}
		writeClose(conn, websocket.CloseTryAgainLater, "too many connections")
		conn.Close()
		return
	}

	client := &Client{
		hub:      s.hub,
		server:   s,
		conn:     conn,
		send:     make(chan []byte, s.cfg.ClientSendBuffer),
		ip:       ip,
		operator: operator,
	}

	s.hub.register(client)
	s.hub.join(client, UserRoom(operator.ID))
	s.hub.join(client, RoomNotifications)

	client.reply(EventConnected, map[string]any{
		"status":  "success",
		"message": "connected",
		"user": map[string]any{
			"id":       operator.ID,
			"username": operator.Username,
			"email":    operator.Email,
		},
	})

	nuts.L.Infof("[Socket] %s connected from %s", operator.Username, ip)

	go client.writePump()
	go client.readPump()
}

// handshake reads the first frame, which must carry the auth token, within
// the handshake deadline.
func (s *Server) handshake(ctx context.Context, conn *websocket.Conn) (*models.Operator, error) {
	conn.SetReadLimit(maxMessageSize)
	if err := conn.SetReadDeadline(time.Now().Add(s.deadline)); err != nil {
		return nil, err
	}
	_, raw, err := conn.ReadMessage()
	if err != nil {
		return nil, fmt.Errorf("no handshake frame: %w", err)
	}

	var hello struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(raw, &hello); err != nil || hello.Token == "" {
		return nil, fmt.Errorf("handshake frame missing token")
	}
	return s.auth.Authenticate(ctx, hello.Token)
}

func writeClose(conn *websocket.Conn, code int, reason string) {
	deadline := time.Now().Add(time.Second)
	conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), deadline)
}

func (c *Client) readPump() {
	defer func() {
		c.disconnect()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(c.server.cfg.PongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.server.cfg.PongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				nuts.L.Warnf("[Socket] Read error for %s: %v", c.ID(), err)
			}
			return
		}
		c.conn.SetReadDeadline(time.Now().Add(c.server.cfg.PongWait))

		var frame Frame
		if err := json.Unmarshal(raw, &frame); err != nil {
			c.replyError("invalid frame, expected {event, data}")
			continue
		}
		c.dispatch(&frame)
	}
}

func (c *Client) writePump() {
	pingPeriod := c.server.cfg.PongWait * 9 / 10
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(c.server.cfg.WriteWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				nuts.L.Warnf("[Socket] Write error for %s: %v", c.ID(), err)
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(c.server.cfg.WriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) disconnect() {
	c.hub.unregister(c)
	c.conn.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.server.limiter.ReleaseConnection(ctx, c.ip); err != nil {
		nuts.L.Warnf("[Socket] Failed to release connection slot for %s: %v", c.ip, err)
	}
	nuts.L.Infof("[Socket] %s disconnected", c.ID())
}

// dispatch routes a client frame. Every event charges the per-IP event
// budget; unknown events land in the catch-all reply.
func (c *Client) dispatch(frame *Frame) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	allowed, err := c.server.limiter.AllowEvent(ctx, c.ip)
	if err != nil {
		nuts.L.Errorf("[Socket] Event budget check failed for %s: %v", c.ID(), err)
		c.replyError("temporarily unavailable")
		return
	}
	if !allowed {
		// Pings over budget are dropped without an error frame.
		if frame.Event != EventPing {
			c.replyError("event rate limit exceeded, try again later")
		}
		return
	}

	switch frame.Event {
	case EventSubscribe:
		c.handleSubscribe(frame.Data)
	case EventUnsubscribe:
		c.handleUnsubscribe(frame.Data)
	case EventJoinRoom:
		c.handleJoinRoom(frame.Data)
	case EventLeaveRoom:
		c.handleLeaveRoom(frame.Data)
	case EventPing:
		c.reply(EventPong, map[string]any{
			"status":    "ok",
			"timestamp": time.Now().Unix(),
		})
	default:
		nuts.L.Warnf("[Socket] Unknown event %q from %s", frame.Event, c.ID())
		c.reply(EventError, map[string]any{
			"status":  "error",
			"message": fmt.Sprintf("event %q is not implemented", frame.Event),
			"event":   frame.Event,
		})
	}
}

// eventList decodes {"events": [...]} accepting both a list and a single
// string.
func eventList(data json.RawMessage) ([]string, bool) {
	var multi struct {
		Events []string `json:"events"`
	}
	if err := json.Unmarshal(data, &multi); err == nil && multi.Events != nil {
		return multi.Events, true
	}
	var single struct {
		Events string `json:"events"`
	}
	if err := json.Unmarshal(data, &single); err == nil && single.Events != "" {
		return []string{single.Events}, true
	}
	return nil, false
}

func (c *Client) handleSubscribe(data json.RawMessage) {
	events, ok := eventList(data)
	if !ok {
		c.replyError(`invalid format, "events" field required`)
		return
	}

	for _, name := range events {
		switch {
		case strings.HasPrefix(name, "crossing-"):
			c.hub.join(c, name)
		case fixedRooms[name]:
			c.hub.join(c, name)
		default:
			nuts.L.Warnf("[Socket] %s requested unknown topic %q", c.ID(), name)
		}
	}

	c.reply(EventSubscribed, map[string]any{
		"status":  "success",
		"events":  events,
		"message": "subscribed",
	})
}

func (c *Client) handleUnsubscribe(data json.RawMessage) {
	events, ok := eventList(data)
	if !ok {
		c.replyError(`invalid format, "events" field required`)
		return
	}

	for _, name := range events {
		c.hub.leave(c, name)
	}

	c.reply(EventUnsubscribed, map[string]any{
		"status":  "success",
		"events":  events,
		"message": "unsubscribed",
	})
}

func roomName(data json.RawMessage) (string, bool) {
	var payload struct {
		Room string `json:"room"`
	}
	if err := json.Unmarshal(data, &payload); err != nil || payload.Room == "" {
		return "", false
	}
	return payload.Room, true
}

func (c *Client) handleJoinRoom(data json.RawMessage) {
	room, ok := roomName(data)
	if !ok {
		c.replyError(`invalid format, "room" field required`)
		return
	}
	c.hub.join(c, room)
	c.reply(EventJoinedRoom, map[string]any{
		"status":  "success",
		"room":    room,
		"message": fmt.Sprintf("joined room %s", room),
	})
}

func (c *Client) handleLeaveRoom(data json.RawMessage) {
	room, ok := roomName(data)
	if !ok {
		c.replyError(`invalid format, "room" field required`)
		return
	}
	c.hub.leave(c, room)
	c.reply(EventLeftRoom, map[string]any{
		"status":  "success",
		"room":    room,
		"message": fmt.Sprintf("left room %s", room),
	})
}

func (c *Client) reply(event string, data any) {
	frame, err := marshalFrame(event, data)
	if err != nil {
		nuts.L.Errorf("[Socket] Failed to build %s reply: %v", event, err)
		return
	}
	select {
	case c.send <- frame:
	default:
		nuts.L.Warnf("[Socket] Send buffer full for %s, dropping %s reply", c.ID(), event)
	}
}

func (c *Client) replyError(message string) {
	c.reply(EventError, map[string]any{"message": message})
}
