package realtime

import (
	"encoding/json"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/greenpath/greenpath/internal/model"
	"github.com/greenpath/greenpath/internal/service"
)

// client is one WebSocket connection. readPump and writePump are the only
// goroutines touching conn: one reads, the other writes.
type client struct {
	hub  *Hub
	conn *websocket.Conn
	user *model.User
	send chan []byte

	mu   sync.RWMutex
	subs map[string]struct{}
}

func newClient(h *Hub, conn *websocket.Conn, user *model.User) *client {
	return &client{
		hub:  h,
		conn: conn,
		user: user,
		send: make(chan []byte, sendBuffer),
		subs: make(map[string]struct{}),
	}
}

func (c *client) id() string {
	if c.user == nil {
		return "anonymous@" + c.conn.RemoteAddr().String()
	}
	return c.user.Username + "@" + c.conn.RemoteAddr().String()
}

func (c *client) subscribe(channel string) {
	c.mu.Lock()
	c.subs[channel] = struct{}{}
	c.mu.Unlock()
}

func (c *client) subscribed(channel string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.subs[channel]
	return ok
}

// readPump handles incoming frames until the peer goes away.
func (c *client) readPump() {
	defer func() {
		c.hub.unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Debug("websocket read failed",
					slog.String("client", c.id()),
					slog.String("error", err.Error()),
				)
			}
			return
		}

		var in Frame
		if err := json.Unmarshal(raw, &in); err != nil {
			c.reply("error", map[string]string{"message": "frames must be JSON objects with a type"})
			continue
		}
		c.handle(in)
	}
}

// handle answers one client frame.
func (c *client) handle(in Frame) {
	switch in.Type {
	case "ping":
		c.reply("pong", map[string]int64{"timestamp": time.Now().UnixMilli()})

	case "subscribe":
		var body struct {
			Channel string `json:"channel"`
		}
		if err := json.Unmarshal(in.Data, &body); err != nil || body.Channel == "" {
			c.reply("error", map[string]string{"message": "subscribe needs a channel"})
			return
		}
		if !canSubscribe(c.user, body.Channel) {
			c.reply("error", map[string]string{"message": "not allowed to subscribe to " + body.Channel})
			return
		}
		c.subscribe(body.Channel)
		c.reply("subscribed", map[string]string{"channel": body.Channel})

	case "join_event_room":
		var body struct {
			EventID int64 `json:"eventId"`
		}
		if err := json.Unmarshal(in.Data, &body); err != nil || body.EventID <= 0 {
			c.reply("error", map[string]string{"message": "join_event_room needs an eventId"})
			return
		}
		channel := service.EventChannel(body.EventID)
		c.subscribe(channel)
		c.reply("joined_event_room", map[string]any{"eventId": body.EventID, "channel": channel})

	case "request_update":
		c.reply("update_requested", map[string]int64{"timestamp": time.Now().UnixMilli()})

	case "user_activity":
		c.reply("activity_received", map[string]int64{"timestamp": time.Now().UnixMilli()})

	default:
		c.reply("error", map[string]string{"message": "unknown message type " + strconv.Quote(in.Type)})
	}
}

// reply queues a frame for this client only. A full buffer drops the reply
// rather than block the read loop.
func (c *client) reply(kind string, data any) {
	payload, err := json.Marshal(data)
	if err != nil {
		return
	}
	msg, err := json.Marshal(Frame{Type: kind, Data: payload})
	if err != nil {
		return
	}

	c.hub.mu.RLock()
	defer c.hub.mu.RUnlock()
	if _, open := c.hub.clients[c]; !open {
		return
	}
	select {
	case c.send <- msg:
	default:
	}
}

// writePump drains send and keeps the connection alive with pings.
func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				if !errors.Is(err, websocket.ErrCloseSent) {
					c.hub.unregister(c)
				}
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.hub.unregister(c)
				return
			}
		}
	}
}

func isEventChannel(channel string) bool {
	rest, ok := strings.CutPrefix(channel, "event:")
	if !ok {
		return false
	}
	id, err := strconv.ParseInt(rest, 10, 64)
	return err == nil && id > 0
}
