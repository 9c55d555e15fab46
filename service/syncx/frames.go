package syncx

import (
	"encoding/json"
	"time"

	"BProject/model"
	"BProject/tools/decode"

	"github.com/pkg/errors"
)

// FrameType discriminates the sync wire union.
type FrameType string

const (
	FrameJoin         FrameType = "join"
	FrameLeave        FrameType = "leave"
	FrameState        FrameType = "state-update"
	FramePresence     FrameType = "presence-update"
	FrameHeartbeat    FrameType = "heartbeat"
	FrameHeartbeatAck FrameType = "heartbeat-ack"
)

// Frame is one discrete sync message: {"type": ..., "payload": {...}}.
// Every frame except heartbeats carries an originating actor ID inside its
// payload. Outbound frames hold a typed payload struct; inbound frames hold
// the raw payload map, decoded per type via PayloadOf.
type Frame struct {
	Type    FrameType `json:"type"`
	Payload any       `json:"payload,omitempty"`
}

// JoinPayload announces a participant entering a document.
type JoinPayload struct {
	ActorID string `json:"actorId"`
	DocID   string `json:"documentId"`
	Name    string `json:"name,omitempty"`
	Role    string `json:"role,omitempty"`
	Color   string `json:"color,omitempty"`
	Ts      int64  `json:"timestamp"`
}

// LeavePayload announces a participant leaving.
type LeavePayload struct {
	ActorID string `json:"actorId"`
}

// StatePayload carries a document update. Nil slices/maps mean "field not
// included"; included fields fully replace their local counterparts
// (last-write-wins, no merge).
type StatePayload struct {
	Elements    []model.Element     `json:"elements,omitempty"`
	Annotations map[string][]string `json:"annotations,omitempty"`
	Strokes     []model.Stroke      `json:"strokes,omitempty"`
	Ts          int64               `json:"timestamp"`
	ActorID     string              `json:"actorId"`
}

// PresencePayload carries one actor's cursor/selection/tool state.
type PresencePayload struct {
	ActorID   string       `json:"actorId"`
	Cursor    *model.Point `json:"cursor,omitempty"`
	Selection []string     `json:"selection,omitempty"`
	Tool      string       `json:"tool,omitempty"`
	Ts        int64        `json:"timestamp"`
	Name      string       `json:"name,omitempty"`
	Role      string       `json:"role,omitempty"`
	Color     string       `json:"color,omitempty"`
}

// ParseFrameJSON decodes a raw wire message. The payload stays a generic map
// until dispatched by type.
func ParseFrameJSON(raw []byte) (*Frame, error) {
	var wire struct {
		Type    FrameType      `json:"type"`
		Payload map[string]any `json:"payload"`
	}
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, errors.Wrap(err, "unmarshal frame")
	}
	if wire.Type == "" {
		return nil, errors.New("frame missing type")
	}
	return &Frame{Type: wire.Type, Payload: wire.Payload}, nil
}

// EncodeFrame serializes a frame for the wire.
func EncodeFrame(f *Frame) ([]byte, error) {
	b, err := json.Marshal(f)
	if err != nil {
		return nil, errors.Wrap(err, "marshal frame")
	}
	return b, nil
}

// PayloadOf decodes an inbound frame's payload map into a typed payload
// struct (StatePayload, PresencePayload, ...).
func PayloadOf[T any](f *Frame) (*T, error) {
	if f == nil {
		return nil, errors.New("nil frame")
	}
	switch p := f.Payload.(type) {
	case map[string]any:
		out, err := decode.DecodeMap[T](p)
		if err != nil {
			return nil, errors.Wrapf(err, "decode %s payload", f.Type)
		}
		return out, nil
	case *T:
		return p, nil
	default:
		return nil, errors.Errorf("frame %s has no decodable payload (%T)", f.Type, f.Payload)
	}
}

// ---- outbound frame builders ----

func BuildJoinFrame(actor model.Actor, docID string, now time.Time) *Frame {
	return &Frame{Type: FrameJoin, Payload: &JoinPayload{
		ActorID: actor.ID,
		DocID:   docID,
		Name:    actor.Name,
		Role:    actor.Role,
		Color:   actor.Color,
		Ts:      now.UnixMilli(),
	}}
}

func BuildLeaveFrame(actorID string) *Frame {
	return &Frame{Type: FrameLeave, Payload: &LeavePayload{ActorID: actorID}}
}

func BuildStateFrame(state *model.DocumentState, actorID string, now time.Time) *Frame {
	p := &StatePayload{Ts: now.UnixMilli(), ActorID: actorID}
	if state != nil {
		cp := state.Clone()
		p.Elements = cp.Elements
		p.Annotations = cp.Annotations
		p.Strokes = cp.Strokes
	}
	return &Frame{Type: FrameState, Payload: p}
}

func BuildPresenceFrame(actor model.Actor, cursor *model.Point, selection []string, tool string, now time.Time) *Frame {
	return &Frame{Type: FramePresence, Payload: &PresencePayload{
		ActorID:   actor.ID,
		Cursor:    cursor,
		Selection: selection,
		Tool:      tool,
		Ts:        now.UnixMilli(),
		Name:      actor.Name,
		Role:      actor.Role,
		Color:     actor.Color,
	}}
}

func BuildHeartbeatFrame() *Frame    { return &Frame{Type: FrameHeartbeat} }
func BuildHeartbeatAckFrame() *Frame { return &Frame{Type: FrameHeartbeatAck} }
