package services

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/lettergame/loveletter-backend/utils/logger"
)

// heartbeatInterval is the fallback re-fetch cadence when the bus is quiet.
const heartbeatInterval = 25 * time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Streamer pushes per-viewer state snapshots over websockets. It never trusts
// the bus for content: every wake-up triggers a fresh projection, and frames
// are only sent when the fingerprint actually changed.
type Streamer struct {
	projector *Projector
	bus       *Bus
	rooms     *RoomManager
	log       *zap.SugaredLogger
}

func NewStreamer(projector *Projector, bus *Bus, rooms *RoomManager) *Streamer {
	return &Streamer{projector: projector, bus: bus, rooms: rooms, log: logger.Named("stream")}
}

// Handle upgrades GET /ws/rooms/:id to a state stream. Viewer identity is
// optional; with viewer+token supplied and valid, private fields (own hand,
// peek hints) are included.
func (s *Streamer) Handle(c *gin.Context) {
	roomID := c.Param("id")
	viewerID := c.Query("viewer")

	if viewerID != "" {
		if err := s.rooms.Authenticate(roomID, viewerID, c.Query("token")); err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "bad credentials"})
			return
		}
	}
	// Reject unknown rooms before upgrading.
	if _, _, _, err := s.projector.GetState(roomID, viewerID); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "room not found"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.log.Warnw("upgrade failed", "room", roomID, "err", err)
		return
	}

	client := &streamClient{
		roomID:   roomID,
		viewerID: viewerID,
		conn:     conn,
		send:     make(chan []byte, 8),
		notify:   make(chan struct{}, 1),
		log:      s.log,
	}

	unsubscribe := s.bus.Subscribe(roomID, client.wake)
	done := make(chan struct{})
	go client.writePump()
	go client.readPump(done)
	go s.push(client, unsubscribe, done)

	s.log.Infow("stream opened", "room", roomID, "viewer", viewerID)
}

// push re-projects on bus wake-ups and on a heartbeat, whichever fires first,
// and unsubscribes promptly when the client goes away.
func (s *Streamer) push(c *streamClient, unsubscribe func(), done <-chan struct{}) {
	defer unsubscribe()
	defer c.Close()

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	lastEtag := ""
	send := func() bool {
		etag, ok := s.sendState(c, lastEtag)
		lastEtag = etag
		return ok
	}

	if !send() {
		return
	}
	for {
		select {
		case <-done:
			return
		case <-c.notify:
			if !send() {
				return
			}
		case <-heartbeat.C:
			if !send() {
				return
			}
		}
	}
}

// sendState projects and enqueues one frame if the fingerprint moved since
// lastEtag. It returns the etag the client has actually been sent: a frame
// dropped on a full buffer does not advance it, so the next heartbeat retries.
func (s *Streamer) sendState(c *streamClient, lastEtag string) (string, bool) {
	state, etag, _, err := s.projector.GetState(c.roomID, c.viewerID)
	if err != nil {
		// Room deleted out from under us (cleanup); end the stream.
		s.log.Infow("stream closing, room gone", "room", c.roomID)
		return lastEtag, false
	}
	if etag == lastEtag {
		return lastEtag, true
	}
	frame, err := json.Marshal(gin.H{"type": "state", "etag": etag, "state": state})
	if err != nil {
		return lastEtag, false
	}
	select {
	case c.send <- frame:
		return etag, true
	default:
		s.log.Warnw("dropping frame, slow consumer", "room", c.roomID, "viewer", c.viewerID)
		return lastEtag, true
	}
}
