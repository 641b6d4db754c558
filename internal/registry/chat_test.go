package registry

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/Y-Juice/livestream-prototype/internal/domain"
)

func chatFixture(t *testing.T, limits Limits) (*Registry, *testClock) {
	t.Helper()
	r, clock := newTestRegistry(limits)
	register(t, r, "b", "alice")
	register(t, r, "v1", "bob")
	register(t, r, "v2", "carol")
	mustStart(t, r, "b", "s1")
	mustJoin(t, r, "v1", "s1", "")
	mustJoin(t, r, "v2", "s1", "")
	return r, clock
}

func TestChatFanOutToCurrentParticipants(t *testing.T) {
	r, _ := chatFixture(t, DefaultLimits())

	res, err := r.AppendChat("v1", "s1", "hello")
	if err != nil {
		t.Fatalf("AppendChat: %v", err)
	}
	if res.Flagged {
		t.Fatal("clean message flagged")
	}
	if res.Message.Author != "bob" {
		t.Errorf("author = %q, want bob", res.Message.Author)
	}
	if len(res.Recipients) != 3 {
		t.Fatalf("recipients = %v, want broadcaster and both viewers", res.Recipients)
	}
	if res.Recipients[0] != "b" {
		t.Errorf("recipients[0] = %q, want the broadcaster first", res.Recipients[0])
	}

	// Recipients are resolved per call: after a leave the set shrinks.
	r.LeaveStream("v2")
	res, err = r.AppendChat("v1", "s1", "still here")
	if err != nil {
		t.Fatalf("AppendChat: %v", err)
	}
	if len(res.Recipients) != 2 {
		t.Errorf("recipients = %v, want 2 after the leave", res.Recipients)
	}
}

func TestChatRejections(t *testing.T) {
	r, _ := chatFixture(t, DefaultLimits())

	if _, err := r.AppendChat("v1", "nope", "hi"); !errors.Is(err, domain.ErrStreamNotFound) {
		t.Errorf("unknown stream err = %v, want ErrStreamNotFound", err)
	}

	r.AddConnection("ghost")
	if _, err := r.AppendChat("ghost", "s1", "hi"); !errors.Is(err, domain.ErrNotRegistered) {
		t.Errorf("unregistered err = %v, want ErrNotRegistered", err)
	}
}

func TestProfanityEscalatesToTimeout(t *testing.T) {
	r, clock := chatFixture(t, DefaultLimits())

	for i := 0; i < 3; i++ {
		res, err := r.AppendChat("v1", "s1", "fuck")
		if err != nil {
			t.Fatalf("strike %d: %v", i+1, err)
		}
		if !res.Flagged {
			t.Fatalf("strike %d not flagged", i+1)
		}
		if want := i == 2; res.TimeoutActivated != want {
			t.Fatalf("strike %d activation = %v, want %v", i+1, res.TimeoutActivated, want)
		}
		if len(res.Recipients) != 0 {
			t.Fatalf("flagged message must reach nobody, got %v", res.Recipients)
		}
	}

	// Even a clean message is rejected while the timeout holds.
	if _, err := r.AppendChat("v1", "s1", "sorry everyone"); !errors.Is(err, domain.ErrChatTimeout) {
		t.Fatalf("err = %v, want ErrChatTimeout", err)
	}

	// Nothing flagged or rejected ever reached the log.
	msgs, err := r.ChatHistory("s1")
	if err != nil {
		t.Fatalf("ChatHistory: %v", err)
	}
	if len(msgs) != 0 {
		t.Errorf("log = %v, want empty", msgs)
	}

	// Past the window the sender is clean again with a fresh counter.
	clock.Advance(61 * time.Second)
	res, err := r.AppendChat("v1", "s1", "back now")
	if err != nil {
		t.Fatalf("after expiry: %v", err)
	}
	if res.Flagged {
		t.Error("clean message flagged after expiry")
	}

	res, err = r.AppendChat("v1", "s1", "shit")
	if err != nil {
		t.Fatalf("first strike of new cycle: %v", err)
	}
	if res.TimeoutActivated {
		t.Error("one strike after reset must not re-activate")
	}
}

func TestTimeoutIsPerIdentityPerStream(t *testing.T) {
	r, _ := chatFixture(t, DefaultLimits())

	for i := 0; i < 3; i++ {
		if _, err := r.AppendChat("v1", "s1", "fuck"); err != nil {
			t.Fatalf("strike %d: %v", i+1, err)
		}
	}

	// A different participant on the same stream is unaffected.
	if _, err := r.AppendChat("v2", "s1", "hello"); err != nil {
		t.Errorf("v2 should not share v1's timeout: %v", err)
	}
}

func TestChatLogBounded(t *testing.T) {
	limits := DefaultLimits()
	limits.MaxChatMessages = 5
	r, _ := chatFixture(t, limits)

	for i := 0; i < 6; i++ {
		if _, err := r.AppendChat("v1", "s1", fmt.Sprintf("msg-%d", i)); err != nil {
			t.Fatalf("AppendChat %d: %v", i, err)
		}
	}

	msgs, err := r.ChatHistory("s1")
	if err != nil {
		t.Fatalf("ChatHistory: %v", err)
	}
	if len(msgs) != 5 {
		t.Fatalf("len = %d, want 5", len(msgs))
	}
	if msgs[0].Body != "msg-1" {
		t.Errorf("oldest = %q, want msg-1", msgs[0].Body)
	}
	if msgs[4].Body != "msg-5" {
		t.Errorf("newest = %q, want msg-5", msgs[4].Body)
	}
}

func TestSystemMessageBypassesModeration(t *testing.T) {
	r, _ := chatFixture(t, DefaultLimits())

	res, err := r.AppendSystemMessage("s1", "bob joined the stream")
	if err != nil {
		t.Fatalf("AppendSystemMessage: %v", err)
	}
	if !res.Message.IsSystem || res.Message.Author != domain.SystemAuthor {
		t.Errorf("message = %+v, want a system entry", res.Message)
	}
	if len(res.Recipients) != 3 {
		t.Errorf("recipients = %v, want all participants", res.Recipients)
	}

	msgs, _ := r.ChatHistory("s1")
	if len(msgs) != 1 {
		t.Fatalf("log len = %d, want 1", len(msgs))
	}
}
