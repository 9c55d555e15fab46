package syncx

import (
	"testing"
	"time"

	"BProject/model"
)

func sampleState() *model.DocumentState {
	return &model.DocumentState{
		Elements: []model.Element{
			{ID: "el-1", Type: "sticky", X: 10, Y: 20, Width: 100, Height: 80, Text: "note"},
		},
		Annotations: map[string][]string{"el-1": {"looks good"}},
		Strokes: []model.Stroke{
			{ID: "st-1", Points: []model.Point{{X: 1, Y: 2}, {X: 3, Y: 4}}, Color: "#000", Width: 2},
		},
	}
}

func TestStateFrameRoundTrip(t *testing.T) {
	now := time.UnixMilli(12345)
	out := BuildStateFrame(sampleState(), "actor-1", now)

	raw, err := EncodeFrame(out)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	in, err := ParseFrameJSON(raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if in.Type != FrameState {
		t.Fatalf("type = %q", in.Type)
	}

	p, err := PayloadOf[StatePayload](in)
	if err != nil {
		t.Fatalf("payload: %v", err)
	}
	if p.ActorID != "actor-1" || p.Ts != 12345 {
		t.Errorf("actor/ts = %q/%d", p.ActorID, p.Ts)
	}
	if len(p.Elements) != 1 || p.Elements[0].Text != "note" {
		t.Errorf("elements = %+v", p.Elements)
	}
	if got := p.Annotations["el-1"]; len(got) != 1 || got[0] != "looks good" {
		t.Errorf("annotations = %+v", p.Annotations)
	}
	if len(p.Strokes) != 1 || len(p.Strokes[0].Points) != 2 || p.Strokes[0].Points[1].Y != 4 {
		t.Errorf("strokes = %+v", p.Strokes)
	}
}

func TestPresenceFrameRoundTrip(t *testing.T) {
	actor := model.Actor{ID: "actor-1", Name: "Alice", Role: "editor", Color: "#f00"}
	out := BuildPresenceFrame(actor, &model.Point{X: 7, Y: 9}, []string{"el-1", "el-2"}, "pen", time.UnixMilli(99))

	raw, err := EncodeFrame(out)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	in, err := ParseFrameJSON(raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	p, err := PayloadOf[PresencePayload](in)
	if err != nil {
		t.Fatalf("payload: %v", err)
	}
	if p.ActorID != "actor-1" || p.Tool != "pen" || p.Name != "Alice" {
		t.Errorf("payload = %+v", p)
	}
	if p.Cursor == nil || p.Cursor.X != 7 {
		t.Errorf("cursor = %+v", p.Cursor)
	}
	if len(p.Selection) != 2 || p.Selection[1] != "el-2" {
		t.Errorf("selection = %+v", p.Selection)
	}
}

func TestParseFrameRejectsGarbage(t *testing.T) {
	cases := []string{
		`not json`,
		`{"payload": {}}`,
		`{"type": ""}`,
		``,
	}
	for _, raw := range cases {
		if _, err := ParseFrameJSON([]byte(raw)); err == nil {
			t.Errorf("ParseFrameJSON(%q) accepted", raw)
		}
	}
}

func TestPayloadOfTypedPassthrough(t *testing.T) {
	want := &StatePayload{ActorID: "a1", Ts: 5}
	got, err := PayloadOf[StatePayload](&Frame{Type: FrameState, Payload: want})
	if err != nil {
		t.Fatalf("payload: %v", err)
	}
	if got != want {
		t.Error("typed payload should pass through unchanged")
	}

	if _, err := PayloadOf[StatePayload](&Frame{Type: FrameState}); err == nil {
		t.Error("nil payload should error")
	}
}

func TestBuildStateFrameClonesState(t *testing.T) {
	st := sampleState()
	f := BuildStateFrame(st, "actor-1", time.UnixMilli(1))

	st.Elements[0].Text = "mutated"
	st.Strokes[0].Points[0].X = 999

	p := f.Payload.(*StatePayload)
	if p.Elements[0].Text != "note" || p.Strokes[0].Points[0].X != 1 {
		t.Error("frame payload aliases the live document")
	}
}

func TestHeartbeatFramesCarryNoPayload(t *testing.T) {
	raw, err := EncodeFrame(BuildHeartbeatFrame())
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	f, err := ParseFrameJSON(raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if f.Type != FrameHeartbeat {
		t.Errorf("type = %q", f.Type)
	}
}
