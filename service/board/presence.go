package board

import (
	"sync"
	"time"

	"BProject/model"
)

// PresenceConf configures the presence registry.
type PresenceConf struct {
	PruneAfter time.Duration    // records older than this are dead (default 5s)
	SweepEvery time.Duration    // sweep interval (default 2s)
	Clock      func() time.Time // injectable clock; nil => time.Now
}

func (c *PresenceConf) norm() {
	if c.PruneAfter <= 0 {
		c.PruneAfter = 5 * time.Second
	}
	if c.SweepEvery <= 0 {
		c.SweepEvery = 2 * time.Second
	}
	if c.Clock == nil {
		c.Clock = time.Now
	}
}

// PresenceRegistry tracks remote participants' cursors, selections and tools.
// At most one record exists per actor; updates replace the record wholesale.
// A background sweeper drops records whose LastSeen is older than PruneAfter,
// so an actor that silently vanishes disappears from the roster even if no
// further message ever arrives.
type PresenceRegistry struct {
	mu      sync.RWMutex
	records map[string]*model.PresenceRecord

	conf     PresenceConf
	stopOnce sync.Once
	stopCh   chan struct{}
}

// NewPresenceRegistry creates a registry and starts its sweeper.
func NewPresenceRegistry(conf PresenceConf) *PresenceRegistry {
	conf.norm()
	r := &PresenceRegistry{
		records: make(map[string]*model.PresenceRecord),
		conf:    conf,
		stopCh:  make(chan struct{}),
	}
	go r.sweeper()
	return r
}

// Upsert replaces the record for rec.ActorID. A zero LastSeen is stamped with
// the current clock.
func (r *PresenceRegistry) Upsert(rec model.PresenceRecord) {
	if rec.ActorID == "" {
		return
	}
	if rec.LastSeen == 0 {
		rec.LastSeen = r.conf.Clock().UnixMilli()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records[rec.ActorID] = &rec
}

// Remove drops the record for an actor (explicit leave).
func (r *PresenceRegistry) Remove(actorID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.records, actorID)
}

// Snapshot returns the live roster: records whose LastSeen is within the
// prune threshold. The returned map is the caller's to keep.
func (r *PresenceRegistry) Snapshot() map[string]model.PresenceRecord {
	cutoff := r.conf.Clock().Add(-r.conf.PruneAfter).UnixMilli()
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]model.PresenceRecord, len(r.records))
	for id, rec := range r.records {
		if rec.LastSeen >= cutoff {
			out[id] = *rec
		}
	}
	return out
}

// Count returns the live roster size.
func (r *PresenceRegistry) Count() int {
	return len(r.Snapshot())
}

func (r *PresenceRegistry) sweeper() {
	t := time.NewTicker(r.conf.SweepEvery)
	defer t.Stop()
	for {
		select {
		case <-r.stopCh:
			return
		case <-t.C:
			r.SweepOnce(r.conf.Clock())
		}
	}
}

// SweepOnce removes records older than the prune threshold as of now.
func (r *PresenceRegistry) SweepOnce(now time.Time) {
	cutoff := now.Add(-r.conf.PruneAfter).UnixMilli()
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, rec := range r.records {
		if rec.LastSeen < cutoff {
			delete(r.records, id)
		}
	}
}

// Close stops the sweeper. Idempotent.
func (r *PresenceRegistry) Close() {
	r.stopOnce.Do(func() { close(r.stopCh) })
}
