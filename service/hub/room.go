package hub

import (
	"sync"
	"time"

	"BProject/logger"
	"BProject/model"
	"BProject/service/syncx"

	"github.com/gorilla/websocket"
	natsgo "github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
)

// Member is one connected participant of a room: a socket, its single-writer
// send queue and liveness bookkeeping. ActorID is set by the join frame.
type Member struct {
	ConnID  string
	ActorID string
	Conn    *websocket.Conn
	Send    chan []byte

	mu       sync.Mutex
	lastSeen time.Time
	closed   bool
}

// NewMember wraps an accepted connection. Conn may be nil for the pull path
// (POSTed frames); such members are never registered in a room.
func NewMember(connID string, conn *websocket.Conn, queueSize int, now time.Time) *Member {
	return &Member{
		ConnID:   connID,
		Conn:     conn,
		Send:     make(chan []byte, queueSize),
		lastSeen: now,
	}
}

// Touch refreshes liveness; every inbound frame and pong counts.
func (m *Member) Touch(now time.Time) {
	m.mu.Lock()
	m.lastSeen = now
	m.mu.Unlock()
}

// Enqueue offers data to the member's writer without blocking; a full queue
// drops the message (slow consumer).
func (m *Member) Enqueue(data []byte) {
	select {
	case m.Send <- data:
	default:
		logger.Warnf("[hub] send queue full, dropping frame conn=%s", m.ConnID)
	}
}

func (m *Member) close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	m.closed = true
	close(m.Send)
	if m.Conn != nil {
		_ = m.Conn.Close()
	}
}

// Room is one document's membership plus the cache serving the pull
// endpoints: the latest state update and the presence roster.
type Room struct {
	DocID string

	mu       sync.RWMutex
	members  map[string]*Member // by ConnID
	last     *syncx.StatePayload
	presence map[string]*syncx.PresencePayload
	updated  int64

	conf HubConf

	pubsub  *redis.PubSub
	natsSub *natsgo.Subscription
}

func newRoom(docID string, conf HubConf) *Room {
	return &Room{
		DocID:    docID,
		members:  make(map[string]*Member),
		presence: make(map[string]*syncx.PresencePayload),
		conf:     conf,
	}
}

func (r *Room) add(m *Member) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.members[m.ConnID] = m
}

func (r *Room) remove(connID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.members[connID]; !ok {
		return false
	}
	delete(r.members, connID)
	return true
}

// broadcastLocal delivers raw bytes to every local member except the one
// identified by exceptConnID.
func (r *Room) broadcastLocal(raw []byte, exceptConnID string) {
	r.mu.RLock()
	targets := make([]*Member, 0, len(r.members))
	for id, m := range r.members {
		if id == exceptConnID {
			continue
		}
		targets = append(targets, m)
	}
	r.mu.RUnlock()
	for _, m := range targets {
		m.Enqueue(raw)
	}
}

// cacheFrame keeps the pull-path cache current with whatever flows through
// the room, applying LWW by payload timestamp for state updates.
func (r *Room) cacheFrame(f *syncx.Frame) {
	switch f.Type {
	case syncx.FrameState:
		p, err := syncx.PayloadOf[syncx.StatePayload](f)
		if err != nil {
			return
		}
		r.mu.Lock()
		if r.last == nil || p.Ts >= r.last.Ts {
			r.last = p
			r.updated = p.Ts
		}
		r.mu.Unlock()
	case syncx.FramePresence:
		p, err := syncx.PayloadOf[syncx.PresencePayload](f)
		if err != nil || p.ActorID == "" {
			return
		}
		r.mu.Lock()
		r.presence[p.ActorID] = p
		r.mu.Unlock()
	case syncx.FrameLeave:
		p, err := syncx.PayloadOf[syncx.LeavePayload](f)
		if err != nil {
			return
		}
		r.mu.Lock()
		delete(r.presence, p.ActorID)
		r.mu.Unlock()
	}
}

// Pull assembles the pull endpoint response: latest state, a roster pruned
// to presence seen within the prune window, and the last update timestamp.
func (r *Room) Pull(now time.Time) syncx.PullStateResponse {
	cutoff := now.Add(-5 * time.Second).UnixMilli()
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := syncx.PullStateResponse{State: r.last, LastUpdated: r.updated}
	for _, p := range r.presence {
		if p.Ts >= cutoff {
			out.Presence = append(out.Presence, *p)
		}
	}
	return out
}

// LatestState returns the cached state update, if any.
func (r *Room) LatestState() *syncx.StatePayload {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.last
}

// MemberCount returns the local membership size.
func (r *Room) MemberCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.members)
}

func (r *Room) expiredMembers(now time.Time, ttl time.Duration) []*Member {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*Member
	for _, m := range r.members {
		m.mu.Lock()
		stale := now.Sub(m.lastSeen) > ttl
		m.mu.Unlock()
		if stale {
			out = append(out, m)
		}
	}
	return out
}

func (r *Room) close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.members {
		m.close()
	}
	r.members = map[string]*Member{}
	if r.pubsub != nil {
		_ = r.pubsub.Close()
	}
	if r.natsSub != nil {
		_ = r.natsSub.Unsubscribe()
	}
}

// stateFromPayload rebuilds a document from a state payload for persistence.
func stateFromPayload(p *syncx.StatePayload) *model.DocumentState {
	st := model.NewDocumentState()
	if p.Elements != nil {
		st.Elements = p.Elements
	}
	if p.Annotations != nil {
		st.Annotations = p.Annotations
	}
	if p.Strokes != nil {
		st.Strokes = p.Strokes
	}
	return st
}
