package board

import (
	"testing"
	"time"

	"BProject/model"
	"BProject/service/storage"
	"BProject/service/syncx"
)

// fakeChannel records broadcasts instead of touching the network.
type fakeChannel struct {
	states   []*model.DocumentState
	presence int
	closed   bool
}

func (f *fakeChannel) BroadcastState(st *model.DocumentState) { f.states = append(f.states, st) }
func (f *fakeChannel) BroadcastPresence(*model.Point, []string, string) {
	f.presence++
}
func (f *fakeChannel) IsConnected() bool       { return true }
func (f *fakeChannel) ConnectionError() string { return "" }
func (f *fakeChannel) Close()                  { f.closed = true }

func newTestSession(t *testing.T, ch syncx.Channel) *Session {
	t.Helper()
	clock := &stubClock{times: []time.Time{at(1_000)}}
	s := NewSession(SessionConf{
		DocID:   "doc-1",
		Actor:   testActor,
		Channel: ch,
		Clock:   clock.now,
	})
	t.Cleanup(s.Close)
	return s
}

func TestApplyLocalRecordsAndBroadcasts(t *testing.T) {
	ch := &fakeChannel{}
	s := newTestSession(t, ch)

	s.RecordHistory()
	s.ApplyLocal(docWithNote("hello"), model.ActivityElementCreated, nil)

	if got := s.Present().Elements[0].Text; got != "hello" {
		t.Errorf("present = %q", got)
	}
	if n := len(s.Activities()); n != 1 {
		t.Fatalf("activities = %d, want 1", n)
	}
	if len(ch.states) != 1 {
		t.Errorf("broadcasts = %d, want 1", len(ch.states))
	}
	if !s.CanUndo() {
		t.Error("local edit should be undoable")
	}
}

func TestUndoRedoBroadcastButRecordNoActivity(t *testing.T) {
	ch := &fakeChannel{}
	s := newTestSession(t, ch)

	s.RecordHistory()
	s.ApplyLocal(docWithNote("v1"), model.ActivityElementCreated, nil)
	before := len(s.Activities())
	sent := len(ch.states)

	if !s.Undo() {
		t.Fatal("undo failed")
	}
	if !s.Redo() {
		t.Fatal("redo failed")
	}
	if got := len(s.Activities()); got != before {
		t.Errorf("undo/redo appended activities: %d -> %d", before, got)
	}
	if got := len(ch.states); got != sent+2 {
		t.Errorf("undo/redo broadcasts = %d, want %d", got-sent, 2)
	}
}

func TestApplyRemoteStateLastWriteWins(t *testing.T) {
	s := newTestSession(t, &fakeChannel{})

	s.ApplyRemoteState(&syncx.StatePayload{
		Elements: []model.Element{{ID: "el-1", Text: "newer"}},
		Ts:       200,
		ActorID:  "peer-1",
	})
	// An older update must be discarded.
	s.ApplyRemoteState(&syncx.StatePayload{
		Elements: []model.Element{{ID: "el-1", Text: "older"}},
		Ts:       100,
		ActorID:  "peer-2",
	})

	if got := s.Present().Elements[0].Text; got != "newer" {
		t.Errorf("present = %q, want newer (stale update applied)", got)
	}
}

func TestApplyRemoteStateDoesNotTouchUndoStacks(t *testing.T) {
	ch := &fakeChannel{}
	s := newTestSession(t, ch)
	sent := len(ch.states)

	s.ApplyRemoteState(&syncx.StatePayload{
		Elements: []model.Element{{ID: "el-9", Text: "remote"}},
		Ts:       100,
		ActorID:  "peer-1",
	})

	if s.CanUndo() || s.CanRedo() {
		t.Error("remote update must leave the undo stacks untouched")
	}
	if len(ch.states) != sent {
		t.Error("remote update must not be rebroadcast")
	}
	acts := s.Activities()
	if len(acts) != 1 || acts[0].ActorID != "peer-1" {
		t.Errorf("remote update should append one remote-attributed entry, got %+v", acts)
	}
}

func TestApplyRemoteStateMergesIncludedFieldsOnly(t *testing.T) {
	s := newTestSession(t, &fakeChannel{})
	s.RecordHistory()
	s.ApplyLocal(docWithNote("mine"), model.ActivityElementCreated, nil)

	// Strokes-only update: elements and annotations survive locally.
	s.ApplyRemoteState(&syncx.StatePayload{
		Strokes: []model.Stroke{{ID: "st-9", Width: 4}},
		Ts:      500,
		ActorID: "peer-1",
	})

	p := s.Present()
	if p.Elements[0].Text != "mine" {
		t.Error("omitted field was overwritten")
	}
	if len(p.Strokes) != 1 || p.Strokes[0].ID != "st-9" {
		t.Errorf("included field not replaced wholesale: %+v", p.Strokes)
	}
}

func TestRevertToTimePipeline(t *testing.T) {
	clock := &stubClock{times: []time.Time{at(100), at(200), at(300)}}
	ch := &fakeChannel{}
	s := NewSession(SessionConf{DocID: "doc-1", Actor: testActor, Channel: ch, Clock: clock.now})
	defer s.Close()

	s.RecordHistory()
	s.ApplyLocal(docWithNote("old"), model.ActivityElementCreated, nil)
	s.RecordHistory()
	s.ApplyLocal(docWithNote("new"), model.ActivityElementEdited, nil)

	restored := s.RevertToTime(150)
	if restored == nil || restored.Elements[0].Text != "old" {
		t.Fatalf("revert restored %+v, want old", restored)
	}

	acts := s.Activities()
	if top := acts[len(acts)-1]; top.Type != model.ActivityDocumentReset {
		t.Errorf("top activity = %v, want document-reset", top.Type)
	}
	// The revert itself is undoable.
	if !s.Undo() {
		t.Fatal("revert should be undoable")
	}
	if got := s.Present().Elements[0].Text; got != "new" {
		t.Errorf("undo after revert = %q, want new", got)
	}
}

func TestRevertToTimeMissesAreNoOps(t *testing.T) {
	s := newTestSession(t, &fakeChannel{})
	s.RecordHistory()
	s.ApplyLocal(docWithNote("a"), model.ActivityElementCreated, nil)
	before := len(s.Activities())

	if got := s.RevertToTime(1); got != nil {
		t.Error("revert before all entries should return nil")
	}
	if len(s.Activities()) != before {
		t.Error("failed revert must not append")
	}
}

func TestRemoteJoinLeaveRoster(t *testing.T) {
	s := newTestSession(t, &fakeChannel{})

	s.ApplyRemotePresence(&syncx.PresencePayload{
		ActorID: "peer-1",
		Cursor:  &model.Point{X: 3, Y: 4},
		Name:    "Bob",
	})
	if _, ok := s.RemoteUsers()["peer-1"]; !ok {
		t.Fatal("presence update should add to roster")
	}
	s.applyRemoteLeave("peer-1")
	if _, ok := s.RemoteUsers()["peer-1"]; ok {
		t.Error("leave should drop from roster")
	}
}

func TestSessionPersistsThroughStore(t *testing.T) {
	store := storage.NewMemStore()
	clock := &stubClock{times: []time.Time{at(100)}}
	s := NewSession(SessionConf{DocID: "doc-1", Actor: testActor, Store: store, Clock: clock.now})
	s.RecordHistory()
	s.ApplyLocal(docWithNote("saved"), model.ActivityElementCreated, nil)
	s.Close()

	// A fresh session over the same store resumes where the first left off.
	s2 := NewSession(SessionConf{DocID: "doc-1", Actor: testActor, Store: store, Clock: clock.now})
	defer s2.Close()
	if got := s2.Present().Elements[0].Text; got != "saved" {
		t.Errorf("reloaded present = %q, want saved", got)
	}
	if n := len(s2.Activities()); n != 1 {
		t.Errorf("reloaded activities = %d, want 1", n)
	}
	if s2.CanUndo() {
		t.Error("history must not survive a session")
	}
}

func TestSessionWithoutChannelIsOffline(t *testing.T) {
	s := newTestSession(t, nil)
	if s.IsConnected() {
		t.Error("channel-less session reports connected")
	}
	// Broadcasts are silent no-ops.
	s.BroadcastStateUpdate()
	s.BroadcastPresence(nil, nil, "pen")
}

func TestCloseIsIdempotent(t *testing.T) {
	ch := &fakeChannel{}
	s := newTestSession(t, ch)
	s.Close()
	s.Close()
	if !ch.closed {
		t.Error("close should close the channel")
	}
}
