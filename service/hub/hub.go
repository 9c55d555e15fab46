package hub

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"BProject/logger"
	"BProject/service/relay"
	"BProject/service/storage"
	"BProject/service/syncx"
	"BProject/tools/ids"

	"github.com/redis/go-redis/v9"
)

// HubConf configures a hub node.
type HubConf struct {
	NodeID        string
	MemberTTL     time.Duration // stale-member eviction threshold (default 60s)
	SweepEvery    time.Duration // sweep interval (default 10s)
	SendQueueSize int           // per-connection outbound queue (default 64)
	Clock         func() time.Time
}

func (c *HubConf) norm() {
	if c.NodeID == "" {
		c.NodeID = "hub-1"
	}
	if c.MemberTTL <= 0 {
		c.MemberTTL = 60 * time.Second
	}
	if c.SweepEvery <= 0 {
		c.SweepEvery = 10 * time.Second
	}
	if c.SendQueueSize <= 0 {
		c.SendQueueSize = 64
	}
	if c.Clock == nil {
		c.Clock = time.Now
	}
}

// Hub is the server side of the sync channel contract: per-document rooms of
// connected members, frame relay between them, cross-node fanout over Redis
// pub/sub (or NATS), the pull endpoints' state cache and optional durable
// snapshot persistence.
type Hub struct {
	mu    sync.RWMutex
	rooms map[string]*Room

	conf  HubConf
	disp  *Dispatcher
	idgen *ids.Generator

	rdb   *redis.Client // optional cross-node fanout + cache
	relay *relay.Relay  // optional alternative fanout
	store storage.Store // optional durable snapshots

	stopOnce sync.Once
	stopCh   chan struct{}
}

// Option wires optional hub collaborators.
type Option func(*Hub)

func WithRedis(rdb *redis.Client) Option { return func(h *Hub) { h.rdb = rdb } }
func WithRelay(r *relay.Relay) Option    { return func(h *Hub) { h.relay = r } }
func WithStore(s storage.Store) Option   { return func(h *Hub) { h.store = s } }

// NewHub creates a hub node and starts its stale-member sweeper.
func NewHub(conf HubConf, nodeID int64, opts ...Option) *Hub {
	conf.norm()
	h := &Hub{
		rooms:  make(map[string]*Room),
		conf:   conf,
		idgen:  ids.NewGenerator(nodeID),
		stopCh: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.disp = NewDispatcher()
	h.disp.Register(&joinHandler{})
	h.disp.Register(&leaveHandler{})
	h.disp.Register(&stateHandler{})
	h.disp.Register(&presenceHandler{})
	h.disp.Register(&heartbeatHandler{})
	go h.sweeper()
	return h
}

// Disp returns the frame dispatcher.
func (h *Hub) Disp() *Dispatcher { return h.disp }

// NextConnID issues a fresh connection ID.
func (h *Hub) NextConnID() string { return h.idgen.NextString() }

// Room returns the room for a document, creating it (and its fanout
// subscriptions) on first use.
func (h *Hub) Room(docID string) *Room {
	h.mu.RLock()
	r, ok := h.rooms[docID]
	h.mu.RUnlock()
	if ok {
		return r
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if r, ok = h.rooms[docID]; ok {
		return r
	}
	r = newRoom(docID, h.conf)
	h.rooms[docID] = r
	h.subscribeFanout(r)
	return r
}

// fanoutEnvelope wraps a relayed frame with its origin node so a node skips
// its own publications.
type fanoutEnvelope struct {
	Node string          `json:"node"`
	Data json.RawMessage `json:"data"`
}

func fanoutChannel(docID string) string { return "board:fanout:" + docID }

// Fanout relays raw frame bytes to the other nodes' members of this room.
// Best effort on every path.
func (h *Hub) Fanout(r *Room, raw []byte) {
	env, err := json.Marshal(fanoutEnvelope{Node: h.conf.NodeID, Data: raw})
	if err != nil {
		logger.Errorf("[hub] encode fanout envelope: %v", err)
		return
	}
	if h.rdb != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		if err := h.rdb.Publish(ctx, fanoutChannel(r.DocID), env).Err(); err != nil {
			logger.Warnf("[hub] redis fanout doc=%s: %v", r.DocID, err)
		}
		cancel()
	}
	if h.relay != nil {
		if err := h.relay.Publish(r.DocID, env); err != nil {
			logger.Warnf("[hub] nats fanout doc=%s: %v", r.DocID, err)
		}
	}
}

// subscribeFanout starts the inbound fanout consumers for a room. Called
// with h.mu held, once per room.
func (h *Hub) subscribeFanout(r *Room) {
	apply := func(data []byte) {
		var env fanoutEnvelope
		if err := json.Unmarshal(data, &env); err != nil {
			logger.Warnf("[hub] bad fanout envelope doc=%s: %v", r.DocID, err)
			return
		}
		if env.Node == h.conf.NodeID {
			return
		}
		// Refresh the pull cache from remote nodes' frames too.
		if f, err := syncx.ParseFrameJSON(env.Data); err == nil {
			r.cacheFrame(f)
		}
		r.broadcastLocal(env.Data, "")
	}

	if h.rdb != nil {
		pubsub := h.rdb.Subscribe(context.Background(), fanoutChannel(r.DocID))
		r.pubsub = pubsub
		go func() {
			ch := pubsub.Channel()
			for {
				select {
				case <-h.stopCh:
					return
				case msg, ok := <-ch:
					if !ok {
						return
					}
					apply([]byte(msg.Payload))
				}
			}
		}()
	}
	if h.relay != nil {
		sub, err := h.relay.Subscribe(r.DocID, apply)
		if err != nil {
			logger.Warnf("[hub] relay subscribe doc=%s: %v", r.DocID, err)
		} else {
			r.natsSub = sub
		}
	}
}

// PersistState stores a durable snapshot if a store is wired. Best effort.
func (h *Hub) PersistState(docID string, p *syncx.StatePayload) {
	if h.store == nil || p == nil {
		return
	}
	state := stateFromPayload(p)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := h.store.SaveBoard(ctx, docID, state); err != nil {
		logger.Warnf("[hub] persist doc=%s: %v", docID, err)
	}
}

func (h *Hub) sweeper() {
	t := time.NewTicker(h.conf.SweepEvery)
	defer t.Stop()
	for {
		select {
		case <-h.stopCh:
			return
		case now := <-t.C:
			h.sweepOnce(now)
		}
	}
}

// sweepOnce evicts members that have sent nothing (frames, pings) within the
// TTL, closing their sockets and announcing the leave.
func (h *Hub) sweepOnce(now time.Time) {
	h.mu.RLock()
	rooms := make([]*Room, 0, len(h.rooms))
	for _, r := range h.rooms {
		rooms = append(rooms, r)
	}
	h.mu.RUnlock()

	for _, r := range rooms {
		for _, m := range r.expiredMembers(now, h.conf.MemberTTL) {
			logger.Infof("[hub] evicting stale conn=%s actor=%s doc=%s", m.ConnID, m.ActorID, r.DocID)
			h.Drop(r, m)
		}
	}
}

// Drop removes a member, closes its socket and broadcasts its leave.
func (h *Hub) Drop(r *Room, m *Member) {
	if !r.remove(m.ConnID) {
		return
	}
	m.close()
	if m.ActorID != "" {
		if raw, err := syncx.EncodeFrame(syncx.BuildLeaveFrame(m.ActorID)); err == nil {
			r.broadcastLocal(raw, m.ConnID)
			h.Fanout(r, raw)
		}
	}
}

// Close shuts the hub down: sweeper, fanout subscriptions and every member
// connection.
func (h *Hub) Close() {
	h.stopOnce.Do(func() {
		close(h.stopCh)
		h.mu.Lock()
		defer h.mu.Unlock()
		for _, r := range h.rooms {
			r.close()
		}
		h.rooms = map[string]*Room{}
	})
}
