// Package relay routes offer/answer/ICE-candidate messages between exactly
// two connection handles. It never inspects payloads; it only tracks which
// negotiation each (offerer, answerer) pair is in so that raced or stale
// messages become documented no-ops instead of errors.
package relay

import (
	"encoding/json"
	"sync"

	"github.com/Y-Juice/livestream-prototype/internal/domain"
	"github.com/Y-Juice/livestream-prototype/pkg/log"
)

// Kind separates the viewer-facing and co-streamer message namespaces so
// the two negotiations for the same stream can never be confused.
type Kind int

const (
	KindViewer Kind = iota
	KindCoStream
)

// State of one negotiation instance.
type State int

const (
	StateIdle State = iota
	StateOfferRequested
	StateOfferSent
	StateAnswerReceived
	StateICEExchanging
	StateConnected // reached by the peers' transports, never by the relay
	StateClosed
	StateFailed
)

// SignalType is the message-type union the transition table is keyed on.
type SignalType int

const (
	SignalOffer SignalType = iota
	SignalAnswer
	SignalICECandidate
)

// Sender delivers a message to a connection handle. It reports false when
// the handle is unknown, in which case the relay drops silently.
type Sender interface {
	SendTo(handle string, msg interface{}) bool
}

type pairKey struct {
	offerer  string
	answerer string
	kind     Kind
}

// Relay is a pure router keyed by (sender, target) plus per-pair state.
type Relay struct {
	mu     sync.Mutex
	pairs  map[pairKey]State
	sender Sender
}

// New creates a relay that emits through sender.
func New(sender Sender) *Relay {
	return &Relay{
		pairs:  make(map[pairKey]State),
		sender: sender,
	}
}

// Begin opens a negotiation and instructs the offerer to originate an
// offer toward the answerer. For viewer negotiations the offerer is the
// broadcaster; for co-streamer negotiations it is the promoted viewer.
func (r *Relay) Begin(offerer, answerer string, kind Kind) {
	r.mu.Lock()
	r.pairs[pairKey{offerer, answerer, kind}] = StateOfferRequested
	r.mu.Unlock()

	msgType := domain.MsgTypeRequestOffer
	if kind == KindCoStream {
		msgType = domain.MsgTypeCoRequestOffer
	}
	r.sender.SendTo(offerer, &domain.RequestOfferMessage{
		Type:   msgType,
		Target: answerer,
	})
}

// Forward relays one signaling message from sender to target, advancing
// the pair's state when the message matches the transition table. Unknown
// pairs, terminal states, and out-of-state messages are dropped without
// notification: closure racing in-flight messages is the expected case.
// Within one directed edge, delivery order is the call order.
func (r *Relay) Forward(kind Kind, sig SignalType, from, target string, payload json.RawMessage) bool {
	r.mu.Lock()
	key, state, ok := r.lookupLocked(kind, from, target)
	if !ok {
		r.mu.Unlock()
		r.dropped(kind, from, target, "no negotiation")
		return false
	}

	next, ok := transition(state, sig, from == key.offerer)
	if !ok {
		r.mu.Unlock()
		r.dropped(kind, from, target, "out of state")
		return false
	}
	r.pairs[key] = next
	r.mu.Unlock()

	msgType := wireType(kind, sig)
	delivered := r.sender.SendTo(target, &domain.SignalForwardMessage{
		Type:    msgType,
		From:    from,
		Payload: payload,
	})
	if !delivered {
		r.dropped(kind, from, target, "target gone")
	}
	return delivered
}

// Close ends one specific negotiation. Used when a co-streamer is kicked
// so the underlying viewer negotiation survives.
func (r *Relay) Close(offerer, answerer string, kind Kind) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.pairs, pairKey{offerer, answerer, kind})
}

// ClosePeer fails every negotiation the handle is part of. Called on
// leave and disconnect; later messages referencing the handle are then
// dropped by Forward.
func (r *Relay) ClosePeer(handle string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for key := range r.pairs {
		if key.offerer == handle || key.answerer == handle {
			delete(r.pairs, key)
		}
	}
}

// StateOf exposes the pair state for tests.
func (r *Relay) StateOf(offerer, answerer string, kind Kind) (State, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.pairs[pairKey{offerer, answerer, kind}]
	return s, ok
}

// lookupLocked finds the pair regardless of message direction.
func (r *Relay) lookupLocked(kind Kind, a, b string) (pairKey, State, bool) {
	if s, ok := r.pairs[pairKey{a, b, kind}]; ok {
		return pairKey{a, b, kind}, s, true
	}
	if s, ok := r.pairs[pairKey{b, a, kind}]; ok {
		return pairKey{b, a, kind}, s, true
	}
	return pairKey{}, StateIdle, false
}

// transition is the exhaustive table. A false result means the message is
// a no-op for the pair's current state.
func transition(state State, sig SignalType, fromOfferer bool) (State, bool) {
	switch sig {
	case SignalOffer:
		if !fromOfferer {
			return state, false
		}
		switch state {
		case StateOfferRequested, StateOfferSent:
			return StateOfferSent, true
		}
	case SignalAnswer:
		if fromOfferer {
			return state, false
		}
		switch state {
		case StateOfferSent, StateAnswerReceived:
			return StateAnswerReceived, true
		}
	case SignalICECandidate:
		switch state {
		case StateOfferSent, StateAnswerReceived, StateICEExchanging:
			return StateICEExchanging, true
		}
	}
	return state, false
}

func wireType(kind Kind, sig SignalType) string {
	if kind == KindCoStream {
		switch sig {
		case SignalOffer:
			return domain.MsgTypeCoOffer
		case SignalAnswer:
			return domain.MsgTypeCoAnswer
		default:
			return domain.MsgTypeCoICECandidate
		}
	}
	switch sig {
	case SignalOffer:
		return domain.MsgTypeOffer
	case SignalAnswer:
		return domain.MsgTypeAnswer
	default:
		return domain.MsgTypeICECandidate
	}
}

func (r *Relay) dropped(kind Kind, from, target, reason string) {
	l := log.L()
	l.Debug().
		Str(log.FieldConnID, from).
		Str(log.FieldTarget, target).
		Int("kind", int(kind)).
		Str(log.FieldReason, reason).
		Msg("dropped stale signaling message")
}
