package board

import (
	"testing"
	"time"

	"BProject/model"
)

func newTestRegistry(now func() time.Time) *PresenceRegistry {
	// Long intervals so the background sweeper stays out of the way; the
	// tests drive SweepOnce directly.
	return NewPresenceRegistry(PresenceConf{
		PruneAfter: 5 * time.Second,
		SweepEvery: time.Hour,
		Clock:      now,
	})
}

func TestUpsertReplacesWholesale(t *testing.T) {
	now := at(10_000)
	r := newTestRegistry(func() time.Time { return now })
	defer r.Close()

	r.Upsert(model.PresenceRecord{
		ActorID:   "a1",
		Cursor:    &model.Point{X: 5, Y: 5},
		Selection: []string{"el-1"},
		Tool:      "pen",
	})
	// Second update omits cursor and selection; they must not survive.
	r.Upsert(model.PresenceRecord{ActorID: "a1", Tool: "select"})

	rec, ok := r.Snapshot()["a1"]
	if !ok {
		t.Fatal("record missing")
	}
	if rec.Cursor != nil || rec.Selection != nil {
		t.Errorf("stale fields survived replace: %+v", rec)
	}
	if rec.Tool != "select" {
		t.Errorf("tool = %q, want select", rec.Tool)
	}
}

func TestUpsertStampsLastSeen(t *testing.T) {
	now := at(10_000)
	r := newTestRegistry(func() time.Time { return now })
	defer r.Close()

	r.Upsert(model.PresenceRecord{ActorID: "a1"})
	if got := r.Snapshot()["a1"].LastSeen; got != 10_000 {
		t.Errorf("LastSeen = %d, want 10000", got)
	}

	r.Upsert(model.PresenceRecord{ActorID: "a2", LastSeen: 9_000})
	if got := r.Snapshot()["a2"].LastSeen; got != 9_000 {
		t.Errorf("explicit LastSeen overwritten: %d", got)
	}
}

func TestUpsertIgnoresEmptyActor(t *testing.T) {
	r := newTestRegistry(func() time.Time { return at(1) })
	defer r.Close()

	r.Upsert(model.PresenceRecord{Tool: "pen"})
	if n := r.Count(); n != 0 {
		t.Errorf("anonymous record admitted, count=%d", n)
	}
}

func TestSweepPrunesStaleRecords(t *testing.T) {
	now := at(10_000)
	r := newTestRegistry(func() time.Time { return now })
	defer r.Close()

	r.Upsert(model.PresenceRecord{ActorID: "fresh", LastSeen: 9_000})
	r.Upsert(model.PresenceRecord{ActorID: "stale", LastSeen: 4_000})

	r.SweepOnce(now)
	roster := r.Snapshot()
	if _, ok := roster["fresh"]; !ok {
		t.Error("record within threshold was pruned")
	}
	if _, ok := roster["stale"]; ok {
		t.Error("record past threshold survived the sweep")
	}
}

func TestSnapshotFiltersWithoutMutating(t *testing.T) {
	now := at(10_000)
	r := newTestRegistry(func() time.Time { return now })
	defer r.Close()

	r.Upsert(model.PresenceRecord{ActorID: "stale", LastSeen: 1_000})
	if n := len(r.Snapshot()); n != 0 {
		t.Errorf("stale record visible in snapshot, n=%d", n)
	}

	// Snapshot hides it but does not delete it: a later update revives it.
	r.Upsert(model.PresenceRecord{ActorID: "stale", LastSeen: 9_999})
	if n := r.Count(); n != 1 {
		t.Errorf("record not revived, count=%d", n)
	}
}

func TestRemoveDropsActor(t *testing.T) {
	r := newTestRegistry(func() time.Time { return at(1) })
	defer r.Close()

	r.Upsert(model.PresenceRecord{ActorID: "a1", LastSeen: 1})
	r.Remove("a1")
	if n := r.Count(); n != 0 {
		t.Errorf("count after remove = %d", n)
	}
	r.Remove("a1") // idempotent
}
