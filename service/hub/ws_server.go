package hub

import (
	"net"
	"net/http"
	"time"

	"BProject/logger"
	"BProject/service/syncx"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

const (
	writeWait    = 10 * time.Second
	pingInterval = 25 * time.Second
	readLimit    = 1 << 20 // 1MB
)

// Server exposes the hub over HTTP: the WebSocket upgrade plus the pull
// fallback endpoints.
type Server struct {
	hub *Hub
}

func NewServer(h *Hub) *Server { return &Server{hub: h} }

// Register mounts the routes.
func (s *Server) Register(r *gin.Engine) {
	r.GET("/ws", s.HandleWS)
	r.GET("/api/board/:id/state", s.HandleGetState)
	r.POST("/api/board/:id/state", s.HandlePostState)
}

// HandleWS upgrades a connection and runs its read loop until the peer goes
// away. One writer goroutine per connection drains the send queue.
func (s *Server) HandleWS(c *gin.Context) {
	docID := c.Query("docId")
	if docID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "docId required"})
		return
	}

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Infof("[hub] upgrade failed doc=%s err=%v", docID, err)
		return
	}

	room := s.hub.Room(docID)
	m := NewMember(s.hub.NextConnID(), ws, s.hub.conf.SendQueueSize, s.hub.conf.Clock())
	room.add(m)
	logger.Infof("[hub] connected conn=%s doc=%s remote=%s", m.ConnID, docID, ws.RemoteAddr())

	ws.SetReadLimit(readLimit)
	ws.SetPongHandler(func(string) error {
		m.Touch(s.hub.conf.Clock())
		return nil
	})

	go s.writeLoop(m)

	// Read loop: only reads; the writer goroutine owns all writes.
	for {
		mt, data, rerr := ws.ReadMessage()
		if rerr != nil {
			if websocket.IsCloseError(rerr,
				websocket.CloseNormalClosure,
				websocket.CloseGoingAway,
				websocket.CloseNoStatusReceived,
			) {
				logger.Infof("[hub] peer closed conn=%s", m.ConnID)
			} else if ne, ok := rerr.(net.Error); ok && ne.Timeout() {
				logger.Infof("[hub] read timeout conn=%s err=%v", m.ConnID, rerr)
			} else {
				logger.Infof("[hub] read err conn=%s err=%v", m.ConnID, rerr)
			}
			break
		}
		if mt != websocket.TextMessage && mt != websocket.BinaryMessage {
			continue
		}

		f, perr := syncx.ParseFrameJSON(data)
		if perr != nil {
			sample := data
			if len(sample) > 256 {
				sample = sample[:256]
			}
			logger.Warnf("[hub] malformed frame conn=%s err=%v sample=%q", m.ConnID, perr, sample)
			continue
		}

		m.Touch(s.hub.conf.Clock())
		if derr := s.hub.Disp().Dispatch(&HubContext{H: s.hub, R: room, M: m, Raw: data}, f); derr != nil {
			logger.Warnf("[hub] dispatch conn=%s type=%s err=%v", m.ConnID, f.Type, derr)
		}
	}

	s.hub.Drop(room, m)
}

// writeLoop is the single writer for one member; it also drives the
// transport-level ping.
func (s *Server) writeLoop(m *Member) {
	t := time.NewTicker(pingInterval)
	defer t.Stop()
	for {
		select {
		case data, ok := <-m.Send:
			if !ok {
				return
			}
			_ = m.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := m.Conn.WriteMessage(websocket.TextMessage, data); err != nil {
				logger.Infof("[hub] write err conn=%s err=%v", m.ConnID, err)
				return
			}
		case <-t.C:
			_ = m.Conn.WriteControl(websocket.PingMessage, []byte("ping"), time.Now().Add(writeWait))
		}
	}
}

// HandleGetState serves the pull fallback: latest state plus live roster.
func (s *Server) HandleGetState(c *gin.Context) {
	docID := c.Param("id")
	room := s.hub.Room(docID)
	c.JSON(http.StatusOK, room.Pull(s.hub.conf.Clock()))
}

// HandlePostState accepts a frame over HTTP as if it had arrived on a
// socket (the polling clients' outbound path).
func (s *Server) HandlePostState(c *gin.Context) {
	docID := c.Param("id")
	raw, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "read body"})
		return
	}
	f, perr := syncx.ParseFrameJSON(raw)
	if perr != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed frame"})
		return
	}
	room := s.hub.Room(docID)
	if derr := s.hub.Disp().Dispatch(&HubContext{H: s.hub, R: room, M: nil, Raw: raw}, f); derr != nil {
		logger.Warnf("[hub] post dispatch doc=%s type=%s err=%v", docID, f.Type, derr)
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}
