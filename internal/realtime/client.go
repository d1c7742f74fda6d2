package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/pkordes/fleet-schedule/internal/domain"
	"github.com/pkordes/fleet-schedule/internal/timeline"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 4096
)

// Client is one browser connection.
type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	remote string
	send   chan []byte

	mu     sync.Mutex
	closed bool

	// gesture is only touched by readPump.
	gesture *timeline.Gesture
}

func newClient(h *Hub, conn *websocket.Conn, remote string) *Client {
	return &Client{
		hub:    h,
		conn:   conn,
		remote: remote,
		send:   make(chan []byte, 256),
	}
}

// queue marshals v and hands it to writePump without blocking. Messages to a
// full or closed connection are dropped.
func (c *Client) queue(v any) {
	data, err := json.Marshal(v)
	if err != nil {
		c.hub.log.Error("marshal websocket message", "error", err)
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.send <- data:
	default:
		c.hub.log.Warn("websocket client buffer full, message dropped", "remote", c.remote)
	}
}

// close stops writePump. Only the hub calls it.
func (c *Client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// readPump handles inbound messages until the connection fails.
func (c *Client) readPump(ctx context.Context) {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.log.Warn("websocket read", "error", err, "remote", c.remote)
			}
			return
		}

		var msg Inbound
		if err := json.Unmarshal(data, &msg); err != nil {
			c.queue(ErrorMessage{Type: TypeError, Message: "malformed message"})
			continue
		}
		if err := c.handle(ctx, msg); err != nil {
			c.hub.log.Info("websocket message rejected", "type", msg.Type, "error", err, "remote", c.remote)
			c.queue(ErrorMessage{Type: TypeError, Request: msg.Type, Message: err.Error()})
		}
	}
}

func (c *Client) handle(ctx context.Context, msg Inbound) error {
	switch msg.Type {
	case TypePing:
		c.queue(Pong{Type: TypePong})
		return nil

	case TypeFocus:
		if n := c.hub.store.RecomputeStatuses(); n > 0 {
			c.hub.log.Info("statuses recomputed on focus", "changed", n)
		}
		return nil

	case TypeDragStart:
		mode, err := timeline.ParseMode(msg.Mode)
		if err != nil {
			return err
		}
		trip, err := c.hub.store.Get(msg.TripID)
		if err != nil {
			return err
		}
		g, err := timeline.NewGesture(c.hub.store, trip, mode, msg.DayWidth)
		if err != nil {
			return err
		}
		// A new drag abandons one whose drag_end never arrived.
		c.gesture = g
		return nil

	case TypeDragMove:
		g, err := c.activeGesture(msg)
		if err != nil {
			return err
		}
		_, err = g.Move(ctx, msg.DX)
		return err

	case TypeDragEnd:
		g, err := c.activeGesture(msg)
		if err != nil {
			return err
		}
		c.gesture = nil
		_, err = g.End(ctx, msg.DX)
		return err
	}
	return fmt.Errorf("%w: unknown message type %q", domain.ErrValidation, msg.Type)
}

var errNoGesture = errors.New("no drag in progress for this trip")

func (c *Client) activeGesture(msg Inbound) (*timeline.Gesture, error) {
	if c.gesture == nil || c.gesture.TripID() != msg.TripID {
		return nil, fmt.Errorf("%w: %s", domain.ErrValidation, errNoGesture)
	}
	return c.gesture, nil
}

// writePump sends queued messages and keepalive pings.
func (c *Client) writePump() {
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
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
