package hub

import (
	"BProject/service/syncx"

	"github.com/pkg/errors"
)

// HubContext carries everything a handler needs for one frame.
type HubContext struct {
	H *Hub
	R *Room
	M *Member
	// Raw is the original wire bytes, relayed verbatim so re-encoding can
	// never corrupt a frame in flight.
	Raw []byte
}

// Handler processes one frame type.
type Handler interface {
	Type() syncx.FrameType
	Handle(ctx *HubContext, f *syncx.Frame) error
}

// Dispatcher routes inbound frames to their handler by type tag.
type Dispatcher struct {
	handlers map[syncx.FrameType]Handler
}

func NewDispatcher() *Dispatcher {
	return &Dispatcher{handlers: make(map[syncx.FrameType]Handler)}
}

func (d *Dispatcher) Register(h Handler) { d.handlers[h.Type()] = h }

// Dispatch routes one frame; unknown types are an error the caller logs and
// swallows.
func (d *Dispatcher) Dispatch(ctx *HubContext, f *syncx.Frame) error {
	h, ok := d.handlers[f.Type]
	if !ok {
		return errors.Errorf("no handler for frame type=%q", f.Type)
	}
	return h.Handle(ctx, f)
}
