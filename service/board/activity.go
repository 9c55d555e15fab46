package board

import (
	"fmt"
	"sync"
	"time"

	"BProject/model"
	"BProject/tools/safe"

	"github.com/google/uuid"
)

// DefaultMaxActivities bounds the ledger.
const DefaultMaxActivities = 1000

// LedgerConf configures an activity ledger.
type LedgerConf struct {
	MaxEntries int              // ledger bound; <=0 => DefaultMaxActivities
	Clock      func() time.Time // injectable clock for tests; nil => time.Now
	// OnAppend is invoked (fire and forget, on its own goroutine) after every
	// append. It never blocks the recording caller.
	OnAppend func(*model.ActivityEntry)
	// Persist is invoked synchronously with the bounded entry list after every
	// append and clear. Errors are the persister's problem; the ledger only
	// hands over an immutable copy.
	Persist func([]*model.ActivityEntry)
}

func (c *LedgerConf) norm() {
	if c.MaxEntries <= 0 {
		c.MaxEntries = DefaultMaxActivities
	}
	if c.Clock == nil {
		c.Clock = time.Now
	}
}

// Ledger is the append-only activity log. Entries carry non-decreasing
// timestamps and are immutable after append; only the most recent MaxEntries
// are retained, oldest dropped first.
//
// The time-travel flags are purely presentational: entering time travel never
// mutates the live document, it only marks a target timestamp for a consuming
// view to render historical state.
type Ledger struct {
	mu      sync.Mutex
	entries []*model.ActivityEntry
	lastTS  int64

	timeTraveling    bool
	timeTravelTarget int64

	conf LedgerConf
}

// NewLedger creates an empty ledger.
func NewLedger(conf LedgerConf) *Ledger {
	conf.norm()
	return &Ledger{conf: conf}
}

// Seed loads previously persisted entries, e.g. at session start. Entries are
// assumed already ordered; the monotonic cursor picks up from the last one.
func (l *Ledger) Seed(entries []*model.ActivityEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append([]*model.ActivityEntry{}, entries...)
	l.trimLocked()
	if n := len(l.entries); n > 0 {
		l.lastTS = l.entries[n-1].Timestamp
	}
}

// Record appends a new entry for the given activity and returns it. The
// snapshot, when non-nil, is deep-copied so the stored entry never aliases
// live state. The wall clock is clamped so timestamps never decrease.
func (l *Ledger) Record(t model.ActivityType, actor model.Actor, snapshot *model.DocumentState, meta *model.ActivityMeta) *model.ActivityEntry {
	l.mu.Lock()

	ts := l.conf.Clock().UnixMilli()
	if ts < l.lastTS {
		ts = l.lastTS
	}
	l.lastTS = ts

	entry := &model.ActivityEntry{
		ID:          uuid.NewString(),
		Timestamp:   ts,
		Type:        t,
		ActorID:     actor.ID,
		ActorName:   actor.Name,
		ActorRole:   actor.Role,
		Description: describeActivity(t, actor.Name, meta),
		Meta:        meta,
		Snapshot:    snapshot.Clone(),
	}
	l.entries = append(l.entries, entry)
	l.trimLocked()

	persist := l.conf.Persist
	var copied []*model.ActivityEntry
	if persist != nil {
		copied = l.entriesCopyLocked()
	}
	onAppend := l.conf.OnAppend
	l.mu.Unlock()

	if persist != nil {
		persist(copied)
	}
	if onAppend != nil {
		safe.Go(func() { onAppend(entry) })
	}
	return entry
}

func (l *Ledger) trimLocked() {
	if len(l.entries) > l.conf.MaxEntries {
		excess := len(l.entries) - l.conf.MaxEntries
		l.entries = l.entries[excess:]
	}
}

func (l *Ledger) entriesCopyLocked() []*model.ActivityEntry {
	out := make([]*model.ActivityEntry, len(l.entries))
	copy(out, l.entries)
	return out
}

// Entries returns a copy of the ledger in append order.
func (l *Ledger) Entries() []*model.ActivityEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.entriesCopyLocked()
}

// ActivityAt returns the entry with the greatest timestamp <= ts, or nil if
// ts precedes every entry. When several entries share a timestamp, the one
// appended last wins.
func (l *Ledger) ActivityAt(ts int64) *model.ActivityEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i := len(l.entries) - 1; i >= 0; i-- {
		if l.entries[i].Timestamp <= ts {
			return l.entries[i]
		}
	}
	return nil
}

// StateAt returns a copy of the snapshot carried by the entry ActivityAt(ts)
// resolves to, or nil when there is no such entry or it carries no snapshot.
// An entry without a snapshot is a non-target, not an error.
func (l *Ledger) StateAt(ts int64) *model.DocumentState {
	e := l.ActivityAt(ts)
	if e == nil || e.Snapshot == nil {
		return nil
	}
	return e.Snapshot.Clone()
}

// EnterTimeTravel marks a target timestamp for historical rendering.
func (l *Ledger) EnterTimeTravel(ts int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.timeTraveling = true
	l.timeTravelTarget = ts
}

// ExitTimeTravel clears the time-travel flags.
func (l *Ledger) ExitTimeTravel() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.timeTraveling = false
	l.timeTravelTarget = 0
}

// IsTimeTraveling reports whether a historical view is active.
func (l *Ledger) IsTimeTraveling() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.timeTraveling
}

// TimeTravelTarget returns the target timestamp and whether one is set.
func (l *Ledger) TimeTravelTarget() (int64, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.timeTravelTarget, l.timeTraveling
}

// RevertTo fetches the snapshot at ts and, when present, appends a fresh
// document-reset entry carrying it (the old entry is never touched), exits
// time travel, and returns the snapshot. When there is no snapshot at ts it
// returns nil and mutates nothing.
func (l *Ledger) RevertTo(ts int64, actor model.Actor) *model.DocumentState {
	snap := l.StateAt(ts)
	if snap == nil {
		return nil
	}
	l.ExitTimeTravel()
	l.Record(model.ActivityDocumentReset, actor, snap, &model.ActivityMeta{Count: len(snap.Elements)})
	return snap
}

// Clear empties the ledger and its persisted form.
func (l *Ledger) Clear() {
	l.mu.Lock()
	l.entries = nil
	persist := l.conf.Persist
	l.mu.Unlock()
	if persist != nil {
		persist(nil)
	}
}

// describeActivity derives the human readable description shown in the
// activity feed, deterministically from type, actor name and metadata.
func describeActivity(t model.ActivityType, actorName string, meta *model.ActivityMeta) string {
	who := actorName
	if who == "" {
		who = "Someone"
	}
	subject := "an element"
	if meta != nil && meta.ElementType != "" {
		subject = "a " + meta.ElementType
	}
	switch t {
	case model.ActivityElementCreated:
		return fmt.Sprintf("%s added %s", who, subject)
	case model.ActivityElementMoved:
		return fmt.Sprintf("%s moved %s", who, subject)
	case model.ActivityElementEdited:
		return fmt.Sprintf("%s edited %s", who, subject)
	case model.ActivityElementDeleted:
		if meta != nil && meta.Count > 1 {
			return fmt.Sprintf("%s deleted %d elements", who, meta.Count)
		}
		return fmt.Sprintf("%s deleted %s", who, subject)
	case model.ActivityAnnotationAdded:
		return fmt.Sprintf("%s commented on %s", who, subject)
	case model.ActivityStrokeAdded:
		return fmt.Sprintf("%s drew on the board", who)
	case model.ActivityStrokeErased:
		return fmt.Sprintf("%s erased a drawing", who)
	case model.ActivityDocumentLocked:
		return fmt.Sprintf("%s locked the board", who)
	case model.ActivityDocumentUnlocked:
		return fmt.Sprintf("%s unlocked the board", who)
	case model.ActivityDocumentReset:
		return fmt.Sprintf("%s restored the board to an earlier state", who)
	default:
		return fmt.Sprintf("%s made changes", who)
	}
}
