package syncx

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"BProject/model"

	"github.com/gorilla/websocket"
)

var localActor = model.Actor{ID: "actor-1", Name: "Alice"}

func newWsTestServer(t *testing.T, handler func(*websocket.Conn)) *httptest.Server {
	t.Helper()
	up := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := up.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		handler(ws)
	}))
}

func wsURL(s *httptest.Server) string {
	return "ws" + strings.TrimPrefix(s.URL, "http")
}

// readFrames pumps every parseable inbound frame into ch until the peer
// hangs up.
func readFrames(ws *websocket.Conn, ch chan<- *Frame) {
	defer func() { _ = ws.Close() }()
	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			return
		}
		if f, perr := ParseFrameJSON(data); perr == nil {
			ch <- f
		}
	}
}

func TestDialFailureReturnsError(t *testing.T) {
	_, err := DialWs(ChannelConf{URL: "ws://127.0.0.1:1/ws", DocID: "doc-1", Actor: localActor})
	if err == nil {
		t.Fatal("dialing a dead endpoint should fail so the caller can fall back")
	}
}

func TestConnectAnnouncesJoin(t *testing.T) {
	frames := make(chan *Frame, 16)
	srv := newWsTestServer(t, func(ws *websocket.Conn) { readFrames(ws, frames) })
	defer srv.Close()

	c, err := DialWs(ChannelConf{URL: wsURL(srv), DocID: "doc-1", Actor: localActor})
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer c.Close()

	select {
	case f := <-frames:
		if f.Type != FrameJoin {
			t.Fatalf("first frame = %q, want join", f.Type)
		}
		p, perr := PayloadOf[JoinPayload](f)
		if perr != nil {
			t.Fatalf("join payload: %v", perr)
		}
		if p.ActorID != "actor-1" || p.DocID != "doc-1" {
			t.Errorf("join payload = %+v", p)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("join frame never arrived")
	}
	if !c.IsConnected() {
		t.Error("channel should report connected")
	}
}

func TestRemoteStateDelivered(t *testing.T) {
	states := make(chan *StatePayload, 4)
	sink := make(chan *Frame, 16)
	srv := newWsTestServer(t, func(ws *websocket.Conn) {
		data, _ := EncodeFrame(&Frame{Type: FrameState, Payload: &StatePayload{
			Elements: []model.Element{{ID: "el-1", Text: "from peer"}},
			Ts:       42,
			ActorID:  "peer-1",
		}})
		_ = ws.WriteMessage(websocket.TextMessage, data)
		readFrames(ws, sink)
	})
	defer srv.Close()

	c, err := DialWs(ChannelConf{
		URL:           wsURL(srv),
		DocID:         "doc-1",
		Actor:         localActor,
		OnRemoteState: func(p *StatePayload) { states <- p },
	})
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer c.Close()

	select {
	case p := <-states:
		if p.ActorID != "peer-1" || p.Ts != 42 {
			t.Errorf("payload = %+v", p)
		}
		if len(p.Elements) != 1 || p.Elements[0].Text != "from peer" {
			t.Errorf("elements = %+v", p.Elements)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("remote state never delivered")
	}
}

func TestDispatchSuppressesOwnEcho(t *testing.T) {
	var stateCalls, presenceCalls, joinCalls int
	c := &WsChannel{
		conf: ChannelConf{
			Actor:            localActor,
			OnRemoteState:    func(*StatePayload) { stateCalls++ },
			OnRemotePresence: func(*PresencePayload) { presenceCalls++ },
			OnRemoteJoin:     func(*JoinPayload) { joinCalls++ },
		},
		sendCh: make(chan []byte, 4),
		stopCh: make(chan struct{}),
	}

	c.dispatch(&Frame{Type: FrameState, Payload: &StatePayload{ActorID: localActor.ID}})
	c.dispatch(&Frame{Type: FramePresence, Payload: &PresencePayload{ActorID: localActor.ID}})
	c.dispatch(&Frame{Type: FrameJoin, Payload: &JoinPayload{ActorID: localActor.ID}})
	if stateCalls+presenceCalls+joinCalls != 0 {
		t.Fatalf("self-originated frames dispatched: %d/%d/%d", stateCalls, presenceCalls, joinCalls)
	}

	c.dispatch(&Frame{Type: FrameState, Payload: &StatePayload{ActorID: "peer-1"}})
	c.dispatch(&Frame{Type: FramePresence, Payload: &PresencePayload{ActorID: "peer-1"}})
	c.dispatch(&Frame{Type: FrameJoin, Payload: &JoinPayload{ActorID: "peer-1"}})
	if stateCalls != 1 || presenceCalls != 1 || joinCalls != 1 {
		t.Errorf("peer frames dropped: %d/%d/%d", stateCalls, presenceCalls, joinCalls)
	}
}

func TestDispatchAcksHeartbeat(t *testing.T) {
	c := &WsChannel{
		conf:   ChannelConf{Actor: localActor},
		sendCh: make(chan []byte, 4),
		stopCh: make(chan struct{}),
	}
	c.dispatch(&Frame{Type: FrameHeartbeat})

	select {
	case data := <-c.sendCh:
		f, err := ParseFrameJSON(data)
		if err != nil || f.Type != FrameHeartbeatAck {
			t.Errorf("queued frame = %v, %v", f, err)
		}
	default:
		t.Fatal("heartbeat not acknowledged")
	}
}

func TestHeartbeatLoopSendsKeepalives(t *testing.T) {
	frames := make(chan *Frame, 64)
	srv := newWsTestServer(t, func(ws *websocket.Conn) { readFrames(ws, frames) })
	defer srv.Close()

	c, err := DialWs(ChannelConf{
		URL:            wsURL(srv),
		DocID:          "doc-1",
		Actor:          localActor,
		HeartbeatEvery: 10 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer c.Close()

	deadline := time.After(2 * time.Second)
	for {
		select {
		case f := <-frames:
			if f.Type == FrameHeartbeat {
				return
			}
		case <-deadline:
			t.Fatal("no heartbeat observed")
		}
	}
}

func TestReconnectGivesUpAndGoesOffline(t *testing.T) {
	var once sync.Once
	accepted := make(chan struct{})
	srv := newWsTestServer(t, func(ws *websocket.Conn) {
		once.Do(func() { close(accepted) })
		_ = ws.Close()
	})

	terminal := make(chan string, 4)
	c, err := DialWs(ChannelConf{
		URL:            wsURL(srv),
		DocID:          "doc-1",
		Actor:          localActor,
		BaseRetryDelay: time.Millisecond,
		MaxRetries:     2,
		OnConnChange: func(connected bool, msg string) {
			if !connected && msg != "" {
				terminal <- msg
			}
		},
	})
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer c.Close()

	<-accepted
	// Kill the endpoint so every reconnect attempt fails.
	srv.Close()

	select {
	case msg := <-terminal:
		if !strings.Contains(msg, "offline") {
			t.Errorf("terminal error = %q", msg)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("channel never went terminal")
	}
	if c.IsConnected() {
		t.Error("offline channel reports connected")
	}
	if c.ConnectionError() == "" {
		t.Error("offline channel must surface a connection error")
	}
}

func TestCloseDeliversLeaveThroughWriterQueue(t *testing.T) {
	frames := make(chan *Frame, 64)
	srv := newWsTestServer(t, func(ws *websocket.Conn) { readFrames(ws, frames) })
	defer srv.Close()

	c, err := DialWs(ChannelConf{URL: wsURL(srv), DocID: "doc-1", Actor: localActor})
	if err != nil {
		t.Fatalf("dial: %v", err)
	}

	// Keep the writer busy right up to the close; the leave still has to be
	// the writer goroutine's to deliver, after everything queued before it.
	for i := 0; i < 20; i++ {
		c.BroadcastPresence(&model.Point{X: float64(i)}, nil, "pen")
	}
	c.Close()

	deadline := time.After(2 * time.Second)
	for {
		select {
		case f := <-frames:
			if f.Type != FrameLeave {
				continue
			}
			p, perr := PayloadOf[LeavePayload](f)
			if perr != nil || p.ActorID != localActor.ID {
				t.Errorf("leave payload = %+v, %v", p, perr)
			}
			return
		case <-deadline:
			t.Fatal("leave frame never delivered")
		}
	}
}

func TestCloseIsIdempotentAndSilencesBroadcasts(t *testing.T) {
	sink := make(chan *Frame, 16)
	srv := newWsTestServer(t, func(ws *websocket.Conn) { readFrames(ws, sink) })
	defer srv.Close()

	c, err := DialWs(ChannelConf{URL: wsURL(srv), DocID: "doc-1", Actor: localActor})
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	c.Close()
	c.Close()

	if c.IsConnected() {
		t.Error("closed channel reports connected")
	}
	// Post-close broadcasts are silent no-ops.
	c.BroadcastState(&model.DocumentState{})
	c.BroadcastPresence(nil, nil, "pen")
}
