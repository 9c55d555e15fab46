package syncx

import (
	"sync"
	"time"

	"BProject/logger"
	"BProject/model"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
)

// ErrOffline marks the terminal channel state after the retry cap.
var ErrOffline = errors.New("sync channel offline: reconnect attempts exhausted")

// WsChannel is the duplex implementation of Channel over gorilla/websocket.
//
// Lifecycle: disconnected -> connecting -> connected -> disconnected (retry)
// -> ... -> offline (terminal). On open it sends a join frame; on close or
// error it reconnects with backoff (delay = BaseRetryDelay x attempt) up to
// MaxRetries attempts, then goes offline and surfaces a connection error.
type WsChannel struct {
	conf ChannelConf

	mu        sync.Mutex
	conn      *websocket.Conn
	connected bool
	offline   bool
	connErr   string
	attempts  int
	retry     *time.Timer

	gate       *throttleGate
	sendCh     chan []byte
	writerDone chan struct{}

	stopOnce sync.Once
	stopCh   chan struct{}
}

// DialWs opens the duplex channel. The initial dial failing is the caller's
// cue to fall back to polling; once established, later drops are handled by
// the internal reconnect loop.
func DialWs(conf ChannelConf) (*WsChannel, error) {
	conf.norm()
	c := &WsChannel{
		conf:       conf,
		sendCh:     make(chan []byte, conf.SendQueueSize),
		writerDone: make(chan struct{}),
		stopCh:     make(chan struct{}),
	}
	c.gate = newThrottleGate(conf.ThrottleWindow, conf.Clock, c.sendFrame)

	if err := c.dial(); err != nil {
		return nil, errors.Wrap(err, "dial sync endpoint")
	}
	go c.writeLoop()
	go c.heartbeatLoop()
	return c, nil
}

// dial opens a socket, marks the channel connected and announces the join.
func (c *WsChannel) dial() error {
	ws, _, err := websocket.DefaultDialer.Dial(c.conf.URL, nil)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.conn = ws
	c.connected = true
	c.offline = false
	c.connErr = ""
	c.attempts = 0
	c.mu.Unlock()

	go c.readLoop(ws)
	c.sendFrame(BuildJoinFrame(c.conf.Actor, c.conf.DocID, c.conf.Clock()))
	c.notifyConn(true, "")
	return nil
}

// readLoop drains one socket until it errors, then hands off to reconnect.
func (c *WsChannel) readLoop(ws *websocket.Conn) {
	for {
		mt, data, err := ws.ReadMessage()
		if err != nil {
			select {
			case <-c.stopCh:
				return
			default:
			}
			logger.Debugf("[syncx] read loop ended doc=%s err=%v", c.conf.DocID, err)
			c.markDisconnected(ws)
			c.scheduleReconnect()
			return
		}
		if mt != websocket.TextMessage && mt != websocket.BinaryMessage {
			continue
		}
		f, perr := ParseFrameJSON(data)
		if perr != nil {
			// Malformed frames are dropped, never fatal.
			logger.Warnf("[syncx] malformed frame doc=%s err=%v", c.conf.DocID, perr)
			continue
		}
		c.dispatch(f)
	}
}

// dispatch routes one inbound frame by tag. Frames originated by the local
// actor are discarded (echo suppression) regardless of content.
func (c *WsChannel) dispatch(f *Frame) {
	switch f.Type {
	case FrameState:
		p, err := PayloadOf[StatePayload](f)
		if err != nil {
			logger.Warnf("[syncx] bad state payload: %v", err)
			return
		}
		if p.ActorID == c.conf.Actor.ID {
			return
		}
		if cb := c.conf.OnRemoteState; cb != nil {
			cb(p)
		}
	case FramePresence:
		p, err := PayloadOf[PresencePayload](f)
		if err != nil {
			logger.Warnf("[syncx] bad presence payload: %v", err)
			return
		}
		if p.ActorID == c.conf.Actor.ID {
			return
		}
		if cb := c.conf.OnRemotePresence; cb != nil {
			cb(p)
		}
	case FrameJoin:
		p, err := PayloadOf[JoinPayload](f)
		if err != nil {
			logger.Warnf("[syncx] bad join payload: %v", err)
			return
		}
		if p.ActorID == c.conf.Actor.ID {
			return
		}
		if cb := c.conf.OnRemoteJoin; cb != nil {
			cb(p)
		}
	case FrameLeave:
		p, err := PayloadOf[LeavePayload](f)
		if err != nil {
			logger.Warnf("[syncx] bad leave payload: %v", err)
			return
		}
		if cb := c.conf.OnRemoteLeave; cb != nil {
			cb(p.ActorID)
		}
	case FrameHeartbeat:
		c.sendFrame(BuildHeartbeatAckFrame())
	case FrameHeartbeatAck:
		// Keepalive acknowledged; a missed ack is not a disconnect signal.
	default:
		logger.Debugf("[syncx] unknown frame type %q dropped", f.Type)
	}
}

// writeLoop is the single writer for the lifetime of the channel; it picks
// up the current socket per message so reconnects swap transparently. On stop
// it drains whatever is already queued (the close-time leave among it) before
// exiting, so nothing else ever has to write to the socket.
func (c *WsChannel) writeLoop() {
	defer close(c.writerDone)
	for {
		select {
		case <-c.stopCh:
			c.drainQueued()
			return
		case data := <-c.sendCh:
			c.writeOne(data)
		}
	}
}

// drainQueued flushes frames enqueued before the stop signal.
func (c *WsChannel) drainQueued() {
	for {
		select {
		case data := <-c.sendCh:
			c.writeOne(data)
		default:
			return
		}
	}
}

func (c *WsChannel) writeOne(data []byte) {
	c.mu.Lock()
	ws := c.conn
	ok := c.connected
	c.mu.Unlock()
	if !ok || ws == nil {
		// Best effort: nothing to write to, drop.
		return
	}
	_ = ws.SetWriteDeadline(time.Now().Add(5 * time.Second))
	if err := ws.WriteMessage(websocket.TextMessage, data); err != nil {
		logger.Warnf("[syncx] broadcast dropped doc=%s err=%v", c.conf.DocID, err)
	}
}

func (c *WsChannel) heartbeatLoop() {
	t := time.NewTicker(c.conf.HeartbeatEvery)
	defer t.Stop()
	for {
		select {
		case <-c.stopCh:
			return
		case <-t.C:
			if c.IsConnected() {
				c.sendFrame(BuildHeartbeatFrame())
			}
		}
	}
}

func (c *WsChannel) markDisconnected(ws *websocket.Conn) {
	c.mu.Lock()
	if c.conn == ws {
		c.conn = nil
		c.connected = false
	}
	c.mu.Unlock()
	_ = ws.Close()
}

// scheduleReconnect arms the backoff timer for the next attempt, or goes
// terminal once the cap is hit.
func (c *WsChannel) scheduleReconnect() {
	select {
	case <-c.stopCh:
		return
	default:
	}

	c.mu.Lock()
	if c.offline {
		c.mu.Unlock()
		return
	}
	c.attempts++
	if c.attempts > c.conf.MaxRetries {
		c.offline = true
		c.connErr = ErrOffline.Error()
		c.mu.Unlock()
		logger.Errorf("[syncx] giving up after %d reconnect attempts doc=%s", c.conf.MaxRetries, c.conf.DocID)
		c.notifyConn(false, ErrOffline.Error())
		return
	}
	delay := c.conf.BaseRetryDelay * time.Duration(c.attempts)
	attempt := c.attempts
	logger.Infof("[syncx] reconnect attempt %d in %v doc=%s", attempt, delay, c.conf.DocID)
	c.retry = time.AfterFunc(delay, func() {
		select {
		case <-c.stopCh:
			return
		default:
		}
		if err := c.dial(); err != nil {
			logger.Warnf("[syncx] reconnect attempt %d failed doc=%s err=%v", attempt, c.conf.DocID, err)
			c.scheduleReconnect()
		}
	})
	c.mu.Unlock()
}

func (c *WsChannel) notifyConn(connected bool, errMsg string) {
	if cb := c.conf.OnConnChange; cb != nil {
		cb(connected, errMsg)
	}
}

// sendFrame encodes and enqueues without ever blocking the caller; a full
// queue drops the frame.
func (c *WsChannel) sendFrame(f *Frame) {
	data, err := EncodeFrame(f)
	if err != nil {
		logger.Errorf("[syncx] encode %s frame: %v", f.Type, err)
		return
	}
	select {
	case c.sendCh <- data:
	default:
		logger.Warnf("[syncx] send queue full, dropping %s frame", f.Type)
	}
}

// BroadcastState publishes the document, throttled to one frame per window
// with the latest call winning. Fire and forget.
func (c *WsChannel) BroadcastState(state *model.DocumentState) {
	c.gate.Offer(BuildStateFrame(state, c.conf.Actor.ID, c.conf.Clock()))
}

// BroadcastPresence publishes cursor/selection/tool state. Not throttled.
func (c *WsChannel) BroadcastPresence(cursor *model.Point, selection []string, tool string) {
	c.sendFrame(BuildPresenceFrame(c.conf.Actor, cursor, selection, tool, c.conf.Clock()))
}

// IsConnected reports the live connection state.
func (c *WsChannel) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// ConnectionError returns the surfaced error string, non-empty only in the
// terminal offline state.
func (c *WsChannel) ConnectionError() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connErr
}

// Close tears down every timer and goroutine the channel owns and announces
// the leave. The leave frame travels through the writer queue like any other
// outbound frame; the socket only ever has the one writer. Idempotent.
func (c *WsChannel) Close() {
	c.stopOnce.Do(func() {
		c.gate.Close()
		c.mu.Lock()
		if c.retry != nil {
			c.retry.Stop()
			c.retry = nil
		}
		connected := c.connected
		c.mu.Unlock()
		if connected {
			c.sendFrame(BuildLeaveFrame(c.conf.Actor.ID))
		}
		close(c.stopCh)
		select {
		case <-c.writerDone:
		case <-time.After(time.Second):
			// A wedged socket write must not hang teardown.
		}
		c.mu.Lock()
		ws := c.conn
		c.conn = nil
		c.connected = false
		c.mu.Unlock()
		if ws != nil {
			_ = ws.Close()
		}
	})
}
