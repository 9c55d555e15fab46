package board

import (
	"context"
	"sync"
	"time"

	"BProject/logger"
	"BProject/model"
	"BProject/service/storage"
	"BProject/service/syncx"
)

// SessionConf configures one board session. Store and the channel are
// optional: without a store nothing persists, without channel endpoints the
// session runs standalone (offline editing stays fully functional either
// way).
type SessionConf struct {
	DocID string
	Actor model.Actor

	Store storage.Store

	// Channel endpoints; when both are empty no channel is opened. Tests may
	// instead inject a ready-made Channel.
	ChannelURL string
	PollURL    string
	Channel    syncx.Channel

	MaxHistory    int
	MaxActivities int

	Clock func() time.Time

	// Tunables forwarded to the channel.
	ThrottleWindow time.Duration
	HeartbeatEvery time.Duration
	BaseRetryDelay time.Duration
	MaxRetries     int
	PollEvery      time.Duration

	// OnActivity observes ledger appends (fire and forget).
	OnActivity func(*model.ActivityEntry)
}

func (c *SessionConf) norm() {
	if c.Clock == nil {
		c.Clock = time.Now
	}
}

// Session is the session-scoped context object owning every engine component
// for one document: history, ledger, presence and the sync channel. Created
// at session start, torn down by Close. There is no module-level state; two
// sessions in one process are fully independent.
type Session struct {
	conf SessionConf

	history  *History
	ledger   *Ledger
	presence *PresenceRegistry
	channel  syncx.Channel

	mu          sync.Mutex
	lastApplied int64 // ts of the last applied remote state update (LWW cursor)
	connected   bool
	connErr     string

	closeOnce sync.Once
}

// NewSession loads any persisted state and brings the engine up.
func NewSession(conf SessionConf) *Session {
	conf.norm()
	s := &Session{conf: conf}

	initial := model.NewDocumentState()
	var seed []*model.ActivityEntry
	if conf.Store != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if st, ok, err := conf.Store.LoadBoard(ctx, conf.DocID); err != nil {
			logger.Warnf("[board] load doc=%s failed: %v", conf.DocID, err)
		} else if ok {
			initial = st
		}
		if entries, err := conf.Store.LoadActivities(ctx, conf.DocID); err != nil {
			logger.Warnf("[board] load activities doc=%s failed: %v", conf.DocID, err)
		} else {
			seed = entries
		}
	}

	s.history = NewHistory(initial, conf.MaxHistory)
	s.ledger = NewLedger(LedgerConf{
		MaxEntries: conf.MaxActivities,
		Clock:      conf.Clock,
		OnAppend:   conf.OnActivity,
		Persist:    s.persistActivities,
	})
	if len(seed) > 0 {
		s.ledger.Seed(seed)
	}
	s.presence = NewPresenceRegistry(PresenceConf{Clock: conf.Clock})

	s.channel = conf.Channel
	if s.channel == nil && (conf.ChannelURL != "" || conf.PollURL != "") {
		s.channel = syncx.Connect(syncx.ChannelConf{
			URL:            conf.ChannelURL,
			PollURL:        conf.PollURL,
			DocID:          conf.DocID,
			Actor:          conf.Actor,
			Clock:          conf.Clock,
			ThrottleWindow: conf.ThrottleWindow,
			HeartbeatEvery: conf.HeartbeatEvery,
			BaseRetryDelay: conf.BaseRetryDelay,
			MaxRetries:     conf.MaxRetries,
			PollEvery:      conf.PollEvery,

			OnRemoteState:    s.ApplyRemoteState,
			OnRemotePresence: s.ApplyRemotePresence,
			OnRemoteJoin:     s.applyRemoteJoin,
			OnRemoteLeave:    s.applyRemoteLeave,
			OnConnChange:     s.onConnChange,
		})
	}
	if s.channel != nil {
		s.mu.Lock()
		s.connected = s.channel.IsConnected()
		s.mu.Unlock()
	}
	return s
}

// ---- local editing ----

// RecordHistory snapshots the present document onto the undo stack. The UI
// calls it immediately before a local edit, then applies the edit via
// ApplyLocal (the record-then-mutate contract).
func (s *Session) RecordHistory() {
	s.history.Record()
}

// ApplyLocal commits a local mutation: the new state replaces present, an
// activity entry with a full snapshot is appended, the board is persisted
// and the update is broadcast (throttled).
func (s *Session) ApplyLocal(newState *model.DocumentState, t model.ActivityType, meta *model.ActivityMeta) {
	s.history.UpdatePresent(newState)
	present := s.history.Present()
	s.ledger.Record(t, s.conf.Actor, present, meta)
	s.persistBoard(present)
	s.broadcastPresent()
}

// Undo steps the document back one entry; the restored state propagates like
// any local mutation (persisted and broadcast) but records no activity.
func (s *Session) Undo() bool {
	if !s.history.Undo() {
		return false
	}
	s.persistBoard(s.history.Present())
	s.broadcastPresent()
	return true
}

// Redo is the inverse of Undo.
func (s *Session) Redo() bool {
	if !s.history.Redo() {
		return false
	}
	s.persistBoard(s.history.Present())
	s.broadcastPresent()
	return true
}

func (s *Session) CanUndo() bool { return s.history.CanUndo() }
func (s *Session) CanRedo() bool { return s.history.CanRedo() }

// Present returns the live document.
func (s *Session) Present() *model.DocumentState { return s.history.Present() }

// ---- activity & time travel ----

// Activities returns the ledger in append order.
func (s *Session) Activities() []*model.ActivityEntry { return s.ledger.Entries() }

func (s *Session) IsTimeTraveling() bool                 { return s.ledger.IsTimeTraveling() }
func (s *Session) TimeTravelTarget() (int64, bool)       { return s.ledger.TimeTravelTarget() }
func (s *Session) EnterTimeTravel(ts int64)              { s.ledger.EnterTimeTravel(ts) }
func (s *Session) ExitTimeTravel()                       { s.ledger.ExitTimeTravel() }
func (s *Session) StateAt(ts int64) *model.DocumentState { return s.ledger.StateAt(ts) }

// RevertToTime restores the board to the snapshot at ts. The revert is a
// normal mutation: the pre-revert state goes onto the undo stack, a
// document-reset entry becomes the new top of the ledger, and the restored
// state is persisted and broadcast. Returns nil (and mutates nothing) when
// ts resolves to no snapshot.
func (s *Session) RevertToTime(ts int64) *model.DocumentState {
	snap := s.ledger.StateAt(ts)
	if snap == nil {
		return nil
	}
	s.history.Record()
	s.history.UpdatePresent(snap)
	s.ledger.RevertTo(ts, s.conf.Actor)
	present := s.history.Present()
	s.persistBoard(present)
	s.broadcastPresent()
	return present
}

// ClearActivities empties the ledger and its persisted form.
func (s *Session) ClearActivities() { s.ledger.Clear() }

// ---- remote inbound ----

// ApplyRemoteState applies a peer's state update to the live document with
// last-write-wins semantics keyed by the message timestamp: included fields
// replace their local counterparts wholesale, updates older than the last
// applied one are discarded, and the undo stacks are left untouched. A
// remote-sourced ledger entry is appended.
func (s *Session) ApplyRemoteState(p *syncx.StatePayload) {
	if p == nil {
		return
	}
	s.mu.Lock()
	if p.Ts < s.lastApplied {
		s.mu.Unlock()
		return
	}
	s.lastApplied = p.Ts
	s.mu.Unlock()

	next := s.history.Present().Clone()
	if p.Elements != nil {
		next.Elements = p.Elements
	}
	if p.Annotations != nil {
		next.Annotations = p.Annotations
	}
	if p.Strokes != nil {
		next.Strokes = p.Strokes
	}
	s.history.UpdatePresent(next)

	present := s.history.Present()
	s.ledger.Record(model.ActivityElementEdited,
		model.Actor{ID: p.ActorID, Name: remoteActorName(s.presence, p.ActorID)},
		present, nil)
	s.persistBoard(present)
}

func remoteActorName(reg *PresenceRegistry, actorID string) string {
	if rec, ok := reg.Snapshot()[actorID]; ok && rec.Name != "" {
		return rec.Name
	}
	return actorID
}

// ApplyRemotePresence replaces the presence record for the sending actor.
func (s *Session) ApplyRemotePresence(p *syncx.PresencePayload) {
	if p == nil {
		return
	}
	s.presence.Upsert(model.PresenceRecord{
		ActorID:   p.ActorID,
		Cursor:    p.Cursor,
		Selection: p.Selection,
		Tool:      p.Tool,
		LastSeen:  s.conf.Clock().UnixMilli(),
		Name:      p.Name,
		Role:      p.Role,
		Color:     p.Color,
	})
}

func (s *Session) applyRemoteJoin(p *syncx.JoinPayload) {
	s.presence.Upsert(model.PresenceRecord{
		ActorID:  p.ActorID,
		LastSeen: s.conf.Clock().UnixMilli(),
		Name:     p.Name,
		Role:     p.Role,
		Color:    p.Color,
	})
}

func (s *Session) applyRemoteLeave(actorID string) {
	s.presence.Remove(actorID)
}

func (s *Session) onConnChange(connected bool, errMsg string) {
	s.mu.Lock()
	s.connected = connected
	s.connErr = errMsg
	s.mu.Unlock()
}

// ---- outbound ----

// BroadcastStateUpdate publishes the current document (throttled, best
// effort). No-op without a channel.
func (s *Session) BroadcastStateUpdate() { s.broadcastPresent() }

func (s *Session) broadcastPresent() {
	if s.channel == nil {
		return
	}
	s.channel.BroadcastState(s.history.Present())
}

// BroadcastPresence publishes the local cursor/selection/tool.
func (s *Session) BroadcastPresence(cursor *model.Point, selection []string, tool string) {
	if s.channel == nil {
		return
	}
	s.channel.BroadcastPresence(cursor, selection, tool)
}

// ---- consumer surface ----

// IsConnected reports the channel state; a session without a channel is
// simply not connected.
func (s *Session) IsConnected() bool {
	if s.channel == nil {
		return false
	}
	return s.channel.IsConnected()
}

// ConnectionError surfaces the terminal channel error, empty otherwise.
func (s *Session) ConnectionError() string {
	if s.channel == nil {
		return ""
	}
	return s.channel.ConnectionError()
}

// RemoteUsers returns the live presence roster.
func (s *Session) RemoteUsers() map[string]model.PresenceRecord {
	return s.presence.Snapshot()
}

// ---- persistence ----

func (s *Session) persistBoard(state *model.DocumentState) {
	if s.conf.Store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.conf.Store.SaveBoard(ctx, s.conf.DocID, state.Clone()); err != nil {
		// Persistence trouble never interrupts local editing.
		logger.Warnf("[board] save doc=%s failed: %v", s.conf.DocID, err)
	}
}

func (s *Session) persistActivities(entries []*model.ActivityEntry) {
	if s.conf.Store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.conf.Store.SaveActivities(ctx, s.conf.DocID, entries); err != nil {
		logger.Warnf("[board] save activities doc=%s failed: %v", s.conf.DocID, err)
	}
}

// Close tears the session down: the channel (and every timer it owns) and
// the presence sweeper. Idempotent.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		if s.channel != nil {
			s.channel.Close()
		}
		s.presence.Close()
	})
}
