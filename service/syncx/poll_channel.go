package syncx

import (
	"bytes"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"BProject/logger"
	"BProject/model"
	"BProject/tools/safe"
)

// PullStateResponse is the pull endpoint's reply: the latest known state
// update plus the presence roster.
type PullStateResponse struct {
	State       *StatePayload     `json:"state,omitempty"`
	Presence    []PresencePayload `json:"presence,omitempty"`
	LastUpdated int64             `json:"lastUpdated"`
}

// PollChannel is the degraded transport: a fixed-interval pull against the
// state endpoint plus POSTed outbound frames. It satisfies the same Channel
// contract as the duplex path and reports itself connected for consumer
// purposes.
type PollChannel struct {
	conf   ChannelConf
	client *http.Client
	gate   *throttleGate

	mu        sync.Mutex
	connected bool
	lastState int64 // ts of the last state update handed to the consumer

	stopOnce sync.Once
	stopCh   chan struct{}
}

// StartPoll begins polling immediately.
func StartPoll(conf ChannelConf) *PollChannel {
	conf.norm()
	c := &PollChannel{
		conf:      conf,
		client:    &http.Client{Timeout: 10 * time.Second},
		connected: true,
		stopCh:    make(chan struct{}),
	}
	c.gate = newThrottleGate(conf.ThrottleWindow, conf.Clock, func(f *Frame) {
		safe.Go(func() { c.postFrame(f) })
	})
	c.postFrame(BuildJoinFrame(conf.Actor, conf.DocID, conf.Clock()))
	go c.loop()
	c.mu.Lock()
	connected := c.connected
	c.mu.Unlock()
	if connected {
		if cb := c.conf.OnConnChange; cb != nil {
			cb(true, "")
		}
	}
	return c
}

func (c *PollChannel) loop() {
	t := time.NewTicker(c.conf.PollEvery)
	defer t.Stop()
	c.pollOnce()
	for {
		select {
		case <-c.stopCh:
			return
		case <-t.C:
			c.pollOnce()
		}
	}
}

// pollOnce pulls the latest state and roster. Failures are logged and
// swallowed; the next tick tries again.
func (c *PollChannel) pollOnce() {
	resp, err := c.client.Get(c.conf.PollURL)
	if err != nil {
		logger.Warnf("[syncx] poll failed doc=%s err=%v", c.conf.DocID, err)
		return
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		logger.Warnf("[syncx] poll status %d doc=%s", resp.StatusCode, c.conf.DocID)
		return
	}
	var pull PullStateResponse
	if err := json.NewDecoder(resp.Body).Decode(&pull); err != nil {
		logger.Warnf("[syncx] poll decode doc=%s err=%v", c.conf.DocID, err)
		return
	}

	if st := pull.State; st != nil && st.ActorID != c.conf.Actor.ID {
		c.mu.Lock()
		fresh := st.Ts > c.lastState
		if fresh {
			c.lastState = st.Ts
		}
		c.mu.Unlock()
		if fresh {
			if cb := c.conf.OnRemoteState; cb != nil {
				cb(st)
			}
		}
	}
	for i := range pull.Presence {
		p := pull.Presence[i]
		if p.ActorID == c.conf.Actor.ID {
			continue
		}
		if cb := c.conf.OnRemotePresence; cb != nil {
			cb(&p)
		}
	}
}

// postFrame pushes one frame to the pull endpoint. Best effort. Broadcast
// paths run it off the caller's goroutine; only the join/leave bookends at
// start and close post synchronously.
func (c *PollChannel) postFrame(f *Frame) {
	data, err := EncodeFrame(f)
	if err != nil {
		logger.Errorf("[syncx] encode %s frame: %v", f.Type, err)
		return
	}
	resp, err := c.client.Post(c.conf.PollURL, "application/json", bytes.NewReader(data))
	if err != nil {
		logger.Warnf("[syncx] post %s dropped doc=%s err=%v", f.Type, c.conf.DocID, err)
		return
	}
	_ = resp.Body.Close()
}

// BroadcastState publishes the document through the throttle gate.
func (c *PollChannel) BroadcastState(state *model.DocumentState) {
	c.gate.Offer(BuildStateFrame(state, c.conf.Actor.ID, c.conf.Clock()))
}

// BroadcastPresence publishes presence, unthrottled. Fire and forget: the
// POST happens on its own goroutine, the caller never waits on the network.
func (c *PollChannel) BroadcastPresence(cursor *model.Point, selection []string, tool string) {
	f := BuildPresenceFrame(c.conf.Actor, cursor, selection, tool, c.conf.Clock())
	safe.Go(func() { c.postFrame(f) })
}

// IsConnected is true while polling runs; the fallback counts as connected.
func (c *PollChannel) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// ConnectionError is always empty for the polling path.
func (c *PollChannel) ConnectionError() string { return "" }

// Close cancels the poll ticker and throttle timer. Idempotent.
func (c *PollChannel) Close() {
	c.stopOnce.Do(func() {
		close(c.stopCh)
		c.gate.Close()
		c.postFrame(BuildLeaveFrame(c.conf.Actor.ID))
		c.mu.Lock()
		c.connected = false
		c.mu.Unlock()
	})
}
