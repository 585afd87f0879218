package services

import (
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// streamClient is one websocket subscriber of a room's state stream.
type streamClient struct {
	roomID   string
	viewerID string
	conn     *websocket.Conn
	send     chan []byte
	notify   chan struct{}
	once     sync.Once
	log      *zap.SugaredLogger
}

func (c *streamClient) Close() {
	c.once.Do(func() {
		close(c.send)
		c.conn.Close()
	})
}

// wake nudges the pusher loop; coalesces if one is already pending.
func (c *streamClient) wake() {
	select {
	case c.notify <- struct{}{}:
	default:
	}
}

// readPump drains inbound frames purely to detect disconnect; the stream is
// one-way. done is closed when the peer goes away.
func (c *streamClient) readPump(done chan<- struct{}) {
	defer close(done)
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.log.Debugw("client disconnected", "room", c.roomID, "viewer", c.viewerID)
			} else {
				c.log.Debugw("client read error", "room", c.roomID, "viewer", c.viewerID, "err", err)
			}
			return
		}
	}
}

func (c *streamClient) writePump() {
	defer c.conn.Close()
	for msg := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			c.log.Debugw("client write error", "room", c.roomID, "viewer", c.viewerID, "err", err)
			return
		}
	}
}
