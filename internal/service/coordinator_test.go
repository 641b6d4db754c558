package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/Y-Juice/livestream-prototype/internal/config"
	"github.com/Y-Juice/livestream-prototype/internal/domain"
	"github.com/Y-Juice/livestream-prototype/internal/hub"
	"github.com/Y-Juice/livestream-prototype/internal/registry"
	"github.com/Y-Juice/livestream-prototype/internal/relay"
)

// The fixtures run the hub for real but never start read/write pumps, so
// outbound messages stay queued on each client's Send channel where the
// test can inspect them.

type fixture struct {
	hub     *hub.Hub
	reg     *registry.Registry
	svc     Coordinator
	clients map[string]*hub.Client
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	h := hub.New(config.WebSocketConfig{
		PingInterval:   30 * time.Second,
		PongWait:       60 * time.Second,
		WriteWait:      10 * time.Second,
		MaxMessageSize: 65536,
	})
	go h.Run()

	reg := registry.New(registry.DefaultLimits(), nil)
	svc := New(h, reg, relay.New(h), nil, nil, nil)

	return &fixture{
		hub:     h,
		reg:     reg,
		svc:     svc,
		clients: make(map[string]*hub.Client),
	}
}

func (f *fixture) connect(t *testing.T, handle string) *hub.Client {
	t.Helper()
	c := hub.NewClient(handle, f.hub, nil)
	f.hub.Register(c)
	for i := 0; i < 100 && !f.hub.IsConnected(handle); i++ {
		time.Sleep(time.Millisecond)
	}
	if !f.hub.IsConnected(handle) {
		t.Fatalf("client %s never registered with the hub", handle)
	}
	f.reg.AddConnection(handle)
	f.clients[handle] = c
	return c
}

// drain empties the client's queue, returning each message as a map.
func drain(t *testing.T, c *hub.Client) []map[string]interface{} {
	t.Helper()
	var out []map[string]interface{}
	for {
		select {
		case data := <-c.Send:
			var m map[string]interface{}
			if err := json.Unmarshal(data, &m); err != nil {
				t.Fatalf("unmarshal %q: %v", data, err)
			}
			out = append(out, m)
		default:
			return out
		}
	}
}

func ofType(msgs []map[string]interface{}, msgType string) []map[string]interface{} {
	var out []map[string]interface{}
	for _, m := range msgs {
		if m["type"] == msgType {
			out = append(out, m)
		}
	}
	return out
}

func TestRegisterRepliesWithActiveStreams(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.connect(t, "c1")

	f.svc.HandleRegister(ctx, c, "alice", "")

	msgs := drain(t, c)
	got := ofType(msgs, domain.MsgTypeActiveStreams)
	if len(got) != 1 {
		t.Fatalf("messages = %v, want one active-streams", msgs)
	}
}

func TestRegisterRequiresIdentity(t *testing.T) {
	f := newFixture(t)
	c := f.connect(t, "c1")

	f.svc.HandleRegister(context.Background(), c, "", "")

	msgs := drain(t, c)
	errs := ofType(msgs, domain.MsgTypeError)
	if len(errs) != 1 || errs[0]["kind"] != domain.ErrCodeBadRequest {
		t.Fatalf("messages = %v, want one BAD_REQUEST error", msgs)
	}
}

func TestStartStreamAnnouncesToOthersOnly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b := f.connect(t, "b")
	w := f.connect(t, "w")
	f.svc.HandleRegister(ctx, b, "alice", "")
	f.svc.HandleRegister(ctx, w, "walter", "")
	drain(t, b)
	drain(t, w)

	f.svc.HandleStartStream(ctx, b, "s1", domain.StreamMetadata{Title: "demo"})

	bMsgs := drain(t, b)
	if len(ofType(bMsgs, domain.MsgTypeStreamStarted)) != 1 {
		t.Errorf("broadcaster messages = %v, want stream-started", bMsgs)
	}
	if len(ofType(bMsgs, domain.MsgTypeNewStream)) != 0 {
		t.Errorf("broadcaster must not see its own new-stream announcement: %v", bMsgs)
	}

	wMsgs := drain(t, w)
	announced := ofType(wMsgs, domain.MsgTypeNewStream)
	if len(announced) != 1 {
		t.Fatalf("watcher messages = %v, want one new-stream", wMsgs)
	}
	if announced[0]["streamId"] != "s1" || announced[0]["broadcaster"] != "alice" {
		t.Errorf("announcement = %v", announced[0])
	}
}

func TestJoinAsksForOfferAndNotifiesBroadcaster(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b := f.connect(t, "b")
	v := f.connect(t, "v")
	f.svc.HandleRegister(ctx, b, "alice", "")
	f.svc.HandleRegister(ctx, v, "bob", "")
	f.svc.HandleStartStream(ctx, b, "s1", domain.StreamMetadata{})
	drain(t, b)
	drain(t, v)

	f.svc.HandleJoinStream(ctx, v, "s1", "")

	bMsgs := drain(t, b)
	offers := ofType(bMsgs, domain.MsgTypeRequestOffer)
	if len(offers) != 1 {
		t.Fatalf("broadcaster messages = %v, want one request-offer", bMsgs)
	}
	if offers[0]["target"] != "v" {
		t.Errorf("request-offer target = %v, want v", offers[0]["target"])
	}
	if len(ofType(bMsgs, domain.MsgTypeViewerJoined)) != 1 {
		t.Errorf("broadcaster messages = %v, want viewer-joined", bMsgs)
	}
	counts := ofType(bMsgs, domain.MsgTypeViewerCount)
	if len(counts) != 1 || counts[0]["count"].(float64) != 1 {
		t.Errorf("broadcaster messages = %v, want viewer-count 1", bMsgs)
	}

	// Both participants see the system chat entry for the join.
	vMsgs := drain(t, v)
	if len(ofType(vMsgs, domain.MsgTypeChatMessage)) != 1 {
		t.Errorf("viewer messages = %v, want the join system message", vMsgs)
	}
}

func TestSignalRelayEndToEnd(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b := f.connect(t, "b")
	v := f.connect(t, "v")
	f.svc.HandleRegister(ctx, b, "alice", "")
	f.svc.HandleRegister(ctx, v, "bob", "")
	f.svc.HandleStartStream(ctx, b, "s1", domain.StreamMetadata{})
	f.svc.HandleJoinStream(ctx, v, "s1", "")
	drain(t, b)
	drain(t, v)

	payload := json.RawMessage(`{"sdp":"offer"}`)
	f.svc.HandleSignal(ctx, b, relay.KindViewer, relay.SignalOffer, "v", payload)

	vMsgs := drain(t, v)
	offers := ofType(vMsgs, domain.MsgTypeOffer)
	if len(offers) != 1 {
		t.Fatalf("viewer messages = %v, want one forwarded offer", vMsgs)
	}
	if offers[0]["from"] != "b" {
		t.Errorf("offer from = %v, want b", offers[0]["from"])
	}

	f.svc.HandleSignal(ctx, v, relay.KindViewer, relay.SignalAnswer, "b", json.RawMessage(`{"sdp":"answer"}`))
	bMsgs := drain(t, b)
	if len(ofType(bMsgs, domain.MsgTypeAnswer)) != 1 {
		t.Fatalf("broadcaster messages = %v, want one forwarded answer", bMsgs)
	}

	// A stale answer after the viewer left is dropped, not errored.
	f.svc.HandleLeaveStream(ctx, v)
	drain(t, b)
	f.svc.HandleSignal(ctx, v, relay.KindViewer, relay.SignalAnswer, "b", json.RawMessage(`{}`))
	if msgs := drain(t, b); len(msgs) != 0 {
		t.Errorf("broadcaster messages after leave = %v, want none", msgs)
	}
	if msgs := ofType(drain(t, v), domain.MsgTypeError); len(msgs) != 0 {
		t.Errorf("stale signaling must not produce errors: %v", msgs)
	}
}

func TestTeardownNotifiesEveryoneExactlyOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b := f.connect(t, "b")
	v1 := f.connect(t, "v1")
	v2 := f.connect(t, "v2")
	w := f.connect(t, "w")
	f.svc.HandleRegister(ctx, b, "alice", "")
	f.svc.HandleRegister(ctx, v1, "bob", "")
	f.svc.HandleRegister(ctx, v2, "carol", "")
	f.svc.HandleRegister(ctx, w, "walter", "")
	f.svc.HandleStartStream(ctx, b, "s1", domain.StreamMetadata{})
	f.svc.HandleJoinStream(ctx, v1, "s1", "")
	f.svc.HandleJoinStream(ctx, v2, "s1", "")
	for _, c := range []*hub.Client{b, v1, v2, w} {
		drain(t, c)
	}

	f.svc.HandleLeaveStream(ctx, b)

	for _, c := range []*hub.Client{v1, v2} {
		ended := ofType(drain(t, c), domain.MsgTypeStreamEnded)
		if len(ended) != 1 {
			t.Fatalf("%s got %d stream-ended messages, want exactly 1", c.ID, len(ended))
		}
		if _, hasID := ended[0]["streamId"]; hasID {
			t.Errorf("%s should get the participant form without streamId: %v", c.ID, ended[0])
		}
	}

	// The disinterested watcher gets the catalog-refresh form.
	wEnded := ofType(drain(t, w), domain.MsgTypeStreamEnded)
	if len(wEnded) != 1 {
		t.Fatalf("watcher got %d stream-ended messages, want 1", len(wEnded))
	}
	if wEnded[0]["streamId"] != "s1" {
		t.Errorf("watcher form = %v, want streamId s1", wEnded[0])
	}

	// The broadcaster who left gets neither.
	if msgs := ofType(drain(t, b), domain.MsgTypeStreamEnded); len(msgs) != 0 {
		t.Errorf("broadcaster messages = %v, want no stream-ended", msgs)
	}
}

func TestStartingNewStreamEndsPreviousForViewers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b := f.connect(t, "b")
	v := f.connect(t, "v")
	f.svc.HandleRegister(ctx, b, "alice", "")
	f.svc.HandleRegister(ctx, v, "bob", "")
	f.svc.HandleStartStream(ctx, b, "s1", domain.StreamMetadata{})
	f.svc.HandleJoinStream(ctx, v, "s1", "")
	drain(t, b)
	drain(t, v)

	// Replacing s1 with a fresh stream ends it implicitly; its viewers
	// must hear about that like any other teardown.
	f.svc.HandleStartStream(ctx, b, "s2", domain.StreamMetadata{})

	vMsgs := drain(t, v)
	ended := ofType(vMsgs, domain.MsgTypeStreamEnded)
	if len(ended) != 1 {
		t.Fatalf("viewer got %d stream-ended messages for s1, want exactly 1 (all: %v)", len(ended), vMsgs)
	}
	if _, hasID := ended[0]["streamId"]; hasID {
		t.Errorf("viewer should get the participant form without streamId: %v", ended[0])
	}
	if len(ofType(vMsgs, domain.MsgTypeNewStream)) != 1 {
		t.Errorf("viewer messages = %v, want the s2 announcement too", vMsgs)
	}
	if f.reg.StreamCount() != 1 {
		t.Errorf("stream count = %d, want only s2 left", f.reg.StreamCount())
	}
}

func TestViewerSwitchingStreamsNotifiesOldBroadcaster(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b1 := f.connect(t, "b1")
	b2 := f.connect(t, "b2")
	v := f.connect(t, "v")
	f.svc.HandleRegister(ctx, b1, "alice", "")
	f.svc.HandleRegister(ctx, b2, "carol", "")
	f.svc.HandleRegister(ctx, v, "bob", "")
	f.svc.HandleStartStream(ctx, b1, "s1", domain.StreamMetadata{})
	f.svc.HandleStartStream(ctx, b2, "s2", domain.StreamMetadata{})
	f.svc.HandleJoinStream(ctx, v, "s1", "")
	for _, c := range []*hub.Client{b1, b2, v} {
		drain(t, c)
	}

	f.svc.HandleJoinStream(ctx, v, "s2", "")

	b1Msgs := drain(t, b1)
	left := ofType(b1Msgs, domain.MsgTypeViewerLeft)
	if len(left) != 1 || left[0]["identity"] != "bob" {
		t.Fatalf("old broadcaster messages = %v, want one viewer-left for bob", b1Msgs)
	}
	counts := ofType(b1Msgs, domain.MsgTypeViewerCount)
	if len(counts) != 1 || counts[0]["count"].(float64) != 0 {
		t.Errorf("old broadcaster messages = %v, want viewer-count 0", b1Msgs)
	}

	// The new broadcaster still gets the fresh negotiation and join.
	b2Msgs := drain(t, b2)
	if len(ofType(b2Msgs, domain.MsgTypeRequestOffer)) != 1 {
		t.Errorf("new broadcaster messages = %v, want one request-offer", b2Msgs)
	}
	if len(ofType(b2Msgs, domain.MsgTypeViewerJoined)) != 1 {
		t.Errorf("new broadcaster messages = %v, want viewer-joined", b2Msgs)
	}
}

func TestChatFlaggedIsSilentThenTimeoutErrors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b := f.connect(t, "b")
	v := f.connect(t, "v")
	f.svc.HandleRegister(ctx, b, "alice", "")
	f.svc.HandleRegister(ctx, v, "bob", "")
	f.svc.HandleStartStream(ctx, b, "s1", domain.StreamMetadata{})
	f.svc.HandleJoinStream(ctx, v, "s1", "")
	drain(t, b)
	drain(t, v)

	for i := 0; i < 3; i++ {
		f.svc.HandleChatMessage(ctx, v, "s1", "fuck")
	}

	// Flagged messages produce no fan-out and no error events.
	if msgs := drain(t, b); len(ofType(msgs, domain.MsgTypeChatMessage)) != 0 {
		t.Errorf("broadcaster messages = %v, want no chat fan-out", msgs)
	}
	if msgs := drain(t, v); len(msgs) != 0 {
		t.Errorf("sender messages = %v, want silence while being flagged", msgs)
	}

	// Inside the timeout window even a clean message errors.
	f.svc.HandleChatMessage(ctx, v, "s1", "sorry")
	errs := ofType(drain(t, v), domain.MsgTypeError)
	if len(errs) != 1 || errs[0]["kind"] != domain.ErrCodeTimeout {
		t.Fatalf("sender messages = %v, want one TIMEOUT error", errs)
	}
}

func TestCoStreamWorkflowMessages(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b := f.connect(t, "b")
	v := f.connect(t, "v")
	f.svc.HandleRegister(ctx, b, "alice", "")
	f.svc.HandleRegister(ctx, v, "bob", "")
	f.svc.HandleStartStream(ctx, b, "s1", domain.StreamMetadata{})
	f.svc.HandleJoinStream(ctx, v, "s1", "")
	drain(t, b)
	drain(t, v)

	f.svc.HandleRequestJoin(ctx, v, "s1")
	reqs := ofType(drain(t, b), domain.MsgTypeJoinRequest)
	if len(reqs) != 1 || reqs[0]["identity"] != "bob" {
		t.Fatalf("broadcaster requests = %v, want bob's join-request", reqs)
	}

	f.svc.HandleRespondJoinRequest(ctx, b, "s1", "bob", true)
	vMsgs := drain(t, v)
	results := ofType(vMsgs, domain.MsgTypeJoinRequestResult)
	if len(results) != 1 || results[0]["accepted"] != true {
		t.Fatalf("viewer messages = %v, want an accepted join-request-result", vMsgs)
	}
	// The promoted viewer originates the co-stream offer.
	offers := ofType(vMsgs, domain.MsgTypeCoRequestOffer)
	if len(offers) != 1 || offers[0]["target"] != "b" {
		t.Fatalf("viewer messages = %v, want co-streamer-request-offer toward b", vMsgs)
	}

	f.svc.HandleKickCoStreamer(ctx, b, "s1", "bob")
	kicked := ofType(drain(t, v), domain.MsgTypeCoStreamerKicked)
	if len(kicked) != 1 {
		t.Fatalf("viewer messages after kick = %v, want co-streamer-kicked", kicked)
	}
}

func TestSweepLivenessEndsOrphanedStream(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b := f.connect(t, "b")
	v := f.connect(t, "v")
	f.svc.HandleRegister(ctx, b, "alice", "")
	f.svc.HandleRegister(ctx, v, "bob", "")
	f.svc.HandleStartStream(ctx, b, "s1", domain.StreamMetadata{})
	f.svc.HandleJoinStream(ctx, v, "s1", "")
	drain(t, b)
	drain(t, v)

	// The broadcaster's transport died without a close event.
	f.hub.Unregister(b)
	for i := 0; i < 100 && f.hub.IsConnected("b"); i++ {
		time.Sleep(time.Millisecond)
	}

	f.svc.SweepLiveness(ctx)

	ended := ofType(drain(t, v), domain.MsgTypeStreamEnded)
	if len(ended) != 1 {
		t.Fatalf("viewer got %d stream-ended messages, want 1", len(ended))
	}
	if f.reg.StreamCount() != 0 {
		t.Errorf("stream count = %d, want 0 after the sweep", f.reg.StreamCount())
	}
}
