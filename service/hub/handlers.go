package hub

import (
	"BProject/service/syncx"

	"github.com/pkg/errors"
)

// joinHandler registers the member under its actor identity, seeds it with
// the latest known state and announces the join to everyone else.
type joinHandler struct{}

func (joinHandler) Type() syncx.FrameType { return syncx.FrameJoin }

func (joinHandler) Handle(ctx *HubContext, f *syncx.Frame) error {
	p, err := syncx.PayloadOf[syncx.JoinPayload](f)
	if err != nil {
		return errors.Wrap(err, "join payload")
	}
	if p.ActorID == "" {
		return errors.New("join without actorId")
	}
	if ctx.M != nil {
		ctx.M.ActorID = p.ActorID
		// Late joiner catch-up: hand over the latest state directly.
		if last := ctx.R.LatestState(); last != nil {
			if raw, err := syncx.EncodeFrame(&syncx.Frame{Type: syncx.FrameState, Payload: last}); err == nil {
				ctx.M.Enqueue(raw)
			}
		}
	}
	ctx.R.cacheFrame(f)
	ctx.R.broadcastLocal(ctx.Raw, memberConnID(ctx.M))
	ctx.H.Fanout(ctx.R, ctx.Raw)
	return nil
}

// leaveHandler drops the actor from the roster and relays the leave.
type leaveHandler struct{}

func (leaveHandler) Type() syncx.FrameType { return syncx.FrameLeave }

func (leaveHandler) Handle(ctx *HubContext, f *syncx.Frame) error {
	if _, err := syncx.PayloadOf[syncx.LeavePayload](f); err != nil {
		return errors.Wrap(err, "leave payload")
	}
	ctx.R.cacheFrame(f)
	ctx.R.broadcastLocal(ctx.Raw, memberConnID(ctx.M))
	ctx.H.Fanout(ctx.R, ctx.Raw)
	return nil
}

// stateHandler caches the update for the pull path, persists it when a store
// is wired, and relays it to every other member and node.
type stateHandler struct{}

func (stateHandler) Type() syncx.FrameType { return syncx.FrameState }

func (stateHandler) Handle(ctx *HubContext, f *syncx.Frame) error {
	p, err := syncx.PayloadOf[syncx.StatePayload](f)
	if err != nil {
		return errors.Wrap(err, "state payload")
	}
	ctx.R.cacheFrame(f)
	ctx.H.PersistState(ctx.R.DocID, p)
	ctx.R.broadcastLocal(ctx.Raw, memberConnID(ctx.M))
	ctx.H.Fanout(ctx.R, ctx.Raw)
	return nil
}

// presenceHandler refreshes the roster and relays.
type presenceHandler struct{}

func (presenceHandler) Type() syncx.FrameType { return syncx.FramePresence }

func (presenceHandler) Handle(ctx *HubContext, f *syncx.Frame) error {
	if _, err := syncx.PayloadOf[syncx.PresencePayload](f); err != nil {
		return errors.Wrap(err, "presence payload")
	}
	ctx.R.cacheFrame(f)
	ctx.R.broadcastLocal(ctx.Raw, memberConnID(ctx.M))
	ctx.H.Fanout(ctx.R, ctx.Raw)
	return nil
}

// heartbeatHandler refreshes liveness and acks directly to the sender only.
type heartbeatHandler struct{}

func (heartbeatHandler) Type() syncx.FrameType { return syncx.FrameHeartbeat }

func (heartbeatHandler) Handle(ctx *HubContext, _ *syncx.Frame) error {
	if ctx.M == nil {
		return nil
	}
	ctx.M.Touch(ctx.H.conf.Clock())
	if raw, err := syncx.EncodeFrame(syncx.BuildHeartbeatAckFrame()); err == nil {
		ctx.M.Enqueue(raw)
	}
	return nil
}

func memberConnID(m *Member) string {
	if m == nil {
		return ""
	}
	return m.ConnID
}
