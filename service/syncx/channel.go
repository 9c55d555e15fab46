package syncx

import (
	"time"

	"BProject/logger"
	"BProject/model"
)

// Default channel timings.
const (
	DefaultThrottleWindow = 100 * time.Millisecond
	DefaultHeartbeatEvery = 30 * time.Second
	DefaultBaseRetryDelay = 1 * time.Second
	DefaultMaxRetries     = 5
	DefaultPollEvery      = 2 * time.Second
	DefaultSendQueueSize  = 64
)

// Channel is the transport strategy contract. Two implementations exist: the
// duplex WebSocket channel and the polling fallback. The rest of the engine
// is agnostic to which is active; the fallback reports itself connected.
//
// Broadcasts are best effort and fire-and-forget: network errors are logged
// and swallowed, callers are never blocked.
type Channel interface {
	BroadcastState(state *model.DocumentState)
	BroadcastPresence(cursor *model.Point, selection []string, tool string)
	IsConnected() bool
	ConnectionError() string
	Close()
}

// ChannelConf configures either channel implementation.
type ChannelConf struct {
	URL     string // WebSocket endpoint, e.g. ws://host/ws?docId=...
	PollURL string // pull endpoint, e.g. http://host/api/board/<id>/state

	DocID string
	Actor model.Actor

	ThrottleWindow time.Duration // state broadcast window (default 100ms)
	HeartbeatEvery time.Duration // keepalive interval (default 30s)
	BaseRetryDelay time.Duration // reconnect delay unit (default 1s)
	MaxRetries     int           // reconnect attempts before offline (default 5)
	PollEvery      time.Duration // fallback poll interval (default 2s)
	SendQueueSize  int           // outbound queue depth (default 64)

	Clock func() time.Time // injectable clock; nil => time.Now

	// Inbound dispatch callbacks. Self-originated frames are suppressed
	// before these fire.
	OnRemoteState    func(*StatePayload)
	OnRemotePresence func(*PresencePayload)
	OnRemoteJoin     func(*JoinPayload)
	OnRemoteLeave    func(actorID string)
	// OnConnChange reports connection transitions; errMsg is non-empty only
	// for the terminal offline state.
	OnConnChange func(connected bool, errMsg string)
}

func (c *ChannelConf) norm() {
	if c.ThrottleWindow <= 0 {
		c.ThrottleWindow = DefaultThrottleWindow
	}
	if c.HeartbeatEvery <= 0 {
		c.HeartbeatEvery = DefaultHeartbeatEvery
	}
	if c.BaseRetryDelay <= 0 {
		c.BaseRetryDelay = DefaultBaseRetryDelay
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = DefaultMaxRetries
	}
	if c.PollEvery <= 0 {
		c.PollEvery = DefaultPollEvery
	}
	if c.SendQueueSize <= 0 {
		c.SendQueueSize = DefaultSendQueueSize
	}
	if c.Clock == nil {
		c.Clock = time.Now
	}
}

// Connect establishes the best available channel for the conf: the duplex
// WebSocket when it can be dialed, otherwise the polling fallback.
func Connect(conf ChannelConf) Channel {
	ws, err := DialWs(conf)
	if err == nil {
		return ws
	}
	logger.Warnf("[syncx] duplex channel unavailable (%v), falling back to polling", err)
	return StartPoll(conf)
}
