package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Y-Juice/livestream-prototype/internal/audit"
	"github.com/Y-Juice/livestream-prototype/internal/auth"
	"github.com/Y-Juice/livestream-prototype/internal/domain"
	"github.com/Y-Juice/livestream-prototype/internal/events"
	"github.com/Y-Juice/livestream-prototype/internal/hub"
	"github.com/Y-Juice/livestream-prototype/internal/presence"
	"github.com/Y-Juice/livestream-prototype/internal/registry"
	"github.com/Y-Juice/livestream-prototype/internal/relay"
	"github.com/Y-Juice/livestream-prototype/pkg/log"
)

type coordinator struct {
	hub      *hub.Hub
	registry *registry.Registry
	relay    *relay.Relay
	verifier *auth.Verifier     // nil: identities accepted as-is
	producer events.Producer    // nil: lifecycle events disabled
	presence presence.Publisher // nil: presence mirror disabled
}

// New wires the coordinator service. verifier, producer and publisher may
// be nil.
func New(
	h *hub.Hub,
	reg *registry.Registry,
	rel *relay.Relay,
	verifier *auth.Verifier,
	producer events.Producer,
	publisher presence.Publisher,
) Coordinator {
	return &coordinator{
		hub:      h,
		registry: reg,
		relay:    rel,
		verifier: verifier,
		producer: producer,
		presence: publisher,
	}
}

func (co *coordinator) HandleRegister(ctx context.Context, c *hub.Client, identity, token string) {
	if co.verifier != nil && token != "" {
		claims, err := co.verifier.Verify(token)
		if err != nil {
			c.SendMessage(domain.NewErrorMessage(domain.ErrCodeBadRequest, "invalid token"))
			return
		}
		if claims.Username != "" {
			identity = claims.Username
		}
	}
	if identity == "" {
		c.SendMessage(domain.NewErrorMessage(domain.ErrCodeBadRequest, "identity is required"))
		return
	}

	co.registry.Register(c.ID, identity)
	audit.Log(ctx, audit.ActionRegister, identity, "", "participant registered")

	c.SendMessage(&domain.ActiveStreamsMessage{
		Type:    domain.MsgTypeActiveStreams,
		Streams: co.registry.ActiveStreams(),
	})
}

func (co *coordinator) HandleStartStream(ctx context.Context, c *hub.Client, streamID string, meta domain.StreamMetadata) {
	res, err := co.registry.StartStream(c.ID, streamID, meta)
	if err != nil {
		c.SendMessage(domain.WireError(err))
		return
	}

	c.SendMessage(&domain.StreamStartedMessage{
		Type:        domain.MsgTypeStreamStarted,
		StreamID:    res.StreamID,
		ViewerCount: res.ViewerCount,
		Reconnected: res.Reconnected,
	})

	// Starting a stream implicitly leaves whatever the caller was part
	// of before, and that leave has the same consequences as any other.
	if res.Departed != nil {
		co.afterLeave(ctx, res.Departed)
	}

	l := log.Ctx(ctx)
	if res.Reconnected {
		c.SendMessage(&domain.ViewerCountMessage{Type: domain.MsgTypeViewerCount, Count: res.ViewerCount})
		l.Info().
			Str(log.FieldStreamID, res.StreamID).
			Str(log.FieldIdentity, res.Broadcaster).
			Msg("broadcaster reconnected to stream")
		return
	}

	co.hub.Broadcast(&domain.NewStreamMessage{
		Type:        domain.MsgTypeNewStream,
		StreamID:    res.StreamID,
		Broadcaster: res.Broadcaster,
		ViewerCount: 0,
		Metadata:    res.Metadata,
	}, c.ID)

	audit.Log(ctx, audit.ActionStreamStart, res.Broadcaster, res.StreamID, "stream started")

	if co.producer != nil {
		if err := co.producer.ProduceStreamStarted(ctx, res.StreamID, res.Broadcaster); err != nil {
			l.Error().Err(err).Msg("produce stream_started")
		}
	}
	if co.presence != nil {
		if err := co.presence.SetStreamLive(ctx, res.StreamID, res.Broadcaster); err != nil {
			l.Error().Err(err).Msg("presence mirror set live")
		}
	}

	for i := range res.Evicted {
		co.finishTeardown(ctx, &res.Evicted[i])
	}
}

func (co *coordinator) HandleJoinStream(ctx context.Context, c *hub.Client, streamID, identity string) {
	res, orphan, err := co.registry.JoinStream(c.ID, streamID, identity)
	if orphan != nil {
		co.finishTeardown(ctx, orphan)
	}
	if err != nil {
		c.SendMessage(domain.WireError(err))
		return
	}

	// The implicit leave from the previous stream must cascade before the
	// new negotiation begins, or it would tear the fresh pair down again.
	if res.Departed != nil {
		co.afterLeave(ctx, res.Departed)
	}

	// Ask the broadcaster to originate an offer toward the new viewer.
	co.relay.Begin(res.BroadcasterHandle, c.ID, relay.KindViewer)

	co.hub.SendTo(res.BroadcasterHandle, &domain.ViewerEventMessage{
		Type:     domain.MsgTypeViewerJoined,
		Identity: res.Identity,
	})
	co.hub.SendTo(res.BroadcasterHandle, &domain.ViewerCountMessage{
		Type:  domain.MsgTypeViewerCount,
		Count: res.ViewerCount,
	})

	co.systemChat(ctx, streamID, fmt.Sprintf("%s joined the stream", res.Identity))

	if co.presence != nil {
		if err := co.presence.PublishViewerCount(ctx, streamID, res.ViewerCount); err != nil {
			l := log.Ctx(ctx)
			l.Error().Err(err).Msg("presence mirror viewer count")
		}
	}
}

func (co *coordinator) HandleLeaveStream(ctx context.Context, c *hub.Client) {
	co.afterLeave(ctx, co.registry.LeaveStream(c.ID))
}

func (co *coordinator) HandleDisconnect(ctx context.Context, c *hub.Client) {
	co.afterLeave(ctx, co.registry.Disconnect(c.ID))
}

func (co *coordinator) HandleSignal(ctx context.Context, c *hub.Client, kind relay.Kind, sig relay.SignalType, target string, payload json.RawMessage) {
	// Stale or raced messages are dropped inside the relay, never errored.
	co.relay.Forward(kind, sig, c.ID, target, payload)
}

func (co *coordinator) HandleRequestJoin(ctx context.Context, c *hub.Client, streamID string) {
	outcome, err := co.registry.RequestJoin(c.ID, streamID)
	if err != nil {
		c.SendMessage(domain.WireError(err))
		return
	}
	if outcome.Duplicate {
		return
	}

	co.hub.SendTo(outcome.BroadcasterHandle, &domain.JoinRequestMessage{
		Type:      domain.MsgTypeJoinRequest,
		StreamID:  streamID,
		Identity:  outcome.Request.Identity,
		Timestamp: outcome.Request.Timestamp.Unix(),
	})
}

func (co *coordinator) HandleRespondJoinRequest(ctx context.Context, c *hub.Client, streamID, identity string, accept bool) {
	outcome, err := co.registry.RespondJoinRequest(c.ID, streamID, identity, accept)
	if err != nil {
		c.SendMessage(domain.WireError(err))
		return
	}

	co.hub.SendTo(outcome.RequesterHandle, &domain.JoinRequestResultMessage{
		Type:     domain.MsgTypeJoinRequestResult,
		StreamID: streamID,
		Accepted: outcome.Accepted,
	})

	if !outcome.Accepted {
		return
	}

	// The promoted viewer originates the co-stream offer toward the
	// broadcaster: same handshake, reverse direction, own namespace.
	co.relay.Begin(outcome.RequesterHandle, outcome.BroadcasterHandle, relay.KindCoStream)

	audit.Log(ctx, audit.ActionCoStreamAccept, identity, streamID, "co-streamer accepted")
	co.systemChat(ctx, streamID, fmt.Sprintf("%s is now co-streaming", identity))
}

func (co *coordinator) HandleKickCoStreamer(ctx context.Context, c *hub.Client, streamID, identity string) {
	outcome, err := co.registry.KickCoStreamer(c.ID, streamID, identity)
	if err != nil {
		c.SendMessage(domain.WireError(err))
		return
	}

	// Only the co-stream negotiation ends; the viewing session stays.
	co.relay.Close(outcome.TargetHandle, outcome.BroadcasterHandle, relay.KindCoStream)

	co.hub.SendTo(outcome.TargetHandle, &domain.CoStreamerKickedMessage{
		Type:     domain.MsgTypeCoStreamerKicked,
		StreamID: streamID,
	})

	audit.Log(ctx, audit.ActionCoStreamKick, identity, streamID, "co-streamer kicked")
	co.systemChat(ctx, streamID, fmt.Sprintf("%s stopped co-streaming", identity))
}

func (co *coordinator) HandleChatMessage(ctx context.Context, c *hub.Client, streamID, body string) {
	res, err := co.registry.AppendChat(c.ID, streamID, body)
	if err != nil {
		c.SendMessage(domain.WireError(err))
		return
	}

	if res.Flagged {
		if res.TimeoutActivated {
			identity, _ := co.registry.Identity(c.ID)
			audit.Log(ctx, audit.ActionChatTimeout, identity, streamID, "chat timeout activated")
		}
		return
	}

	co.fanOutChat(res)
}

func (co *coordinator) HandleGetActiveStreams(ctx context.Context, c *hub.Client) {
	c.SendMessage(&domain.ActiveStreamsMessage{
		Type:    domain.MsgTypeActiveStreams,
		Streams: co.registry.ActiveStreams(),
	})
}

func (co *coordinator) HandleGetChatMessages(ctx context.Context, c *hub.Client, streamID string) {
	msgs, err := co.registry.ChatHistory(streamID)
	if err != nil {
		c.SendMessage(domain.WireError(err))
		return
	}
	c.SendMessage(&domain.ChatMessagesOut{
		Type:     domain.MsgTypeChatMessages,
		StreamID: streamID,
		Messages: msgs,
	})
}

// SweepLiveness removes participant records whose connection the gateway
// no longer knows, cascading the usual leave consequences.
func (co *coordinator) SweepLiveness(ctx context.Context) {
	swept := co.registry.SweepDead(co.hub.IsConnected)
	for _, res := range swept {
		co.afterLeave(ctx, res)
	}
	if len(swept) > 0 {
		l := log.Ctx(ctx)
		l.Info().
			Int("swept", len(swept)).
			Int("clients", co.hub.ClientCount()).
			Int("tracked", co.registry.ConnectionCount()).
			Msg("liveness sweep removed dead participants")
	}
}

// EnforceCapacity evicts oldest streams and connections past the
// configured ceilings. Evicted clients see an ordinary disconnect.
func (co *coordinator) EnforceCapacity(ctx context.Context) {
	teardowns, evicted := co.registry.EnforceCapacity()
	for i := range teardowns {
		audit.Log(ctx, audit.ActionStreamEvict, teardowns[i].Broadcaster, teardowns[i].StreamID, "stream evicted")
		co.finishTeardown(ctx, &teardowns[i])
	}
	for _, ev := range evicted {
		co.afterLeave(ctx, ev.Result)
		co.hub.CloseClient(ev.Handle)
	}
}

// afterLeave applies the fan-out consequences of a leave/disconnect.
func (co *coordinator) afterLeave(ctx context.Context, res *registry.LeaveResult) {
	if res.Handle != "" {
		co.relay.ClosePeer(res.Handle)
	}
	if res.Ended != nil {
		co.finishTeardown(ctx, res.Ended)
		return
	}
	if !res.Left {
		return
	}

	co.hub.SendTo(res.BroadcasterHandle, &domain.ViewerEventMessage{
		Type:     domain.MsgTypeViewerLeft,
		Identity: res.Identity,
	})
	co.hub.SendTo(res.BroadcasterHandle, &domain.ViewerCountMessage{
		Type:  domain.MsgTypeViewerCount,
		Count: res.ViewerCount,
	})

	co.systemChat(ctx, res.StreamID, fmt.Sprintf("%s left the stream", res.Identity))

	if co.presence != nil {
		if err := co.presence.PublishViewerCount(ctx, res.StreamID, res.ViewerCount); err != nil {
			l := log.Ctx(ctx)
			l.Error().Err(err).Msg("presence mirror viewer count")
		}
	}
}

// finishTeardown notifies everyone about an ended stream: participants
// get exactly one bare stream-ended, everyone else a catalog-refresh
// signal carrying the stream id.
func (co *coordinator) finishTeardown(ctx context.Context, td *registry.Teardown) {
	co.relay.ClosePeer(td.BroadcasterHandle)

	for _, p := range td.Participants {
		co.hub.SendTo(p, &domain.StreamEndedMessage{Type: domain.MsgTypeStreamEnded})
	}

	except := append([]string{td.BroadcasterHandle}, td.Participants...)
	co.hub.Broadcast(&domain.StreamEndedMessage{
		Type:     domain.MsgTypeStreamEnded,
		StreamID: td.StreamID,
	}, except...)

	audit.Log(ctx, audit.ActionStreamEnd, td.Broadcaster, td.StreamID, "stream ended: "+td.Reason)

	l := log.Ctx(ctx)
	if co.producer != nil {
		if err := co.producer.ProduceStreamEnded(ctx, td.StreamID, td.Broadcaster, td.Reason); err != nil {
			l.Error().Err(err).Msg("produce stream_ended")
		}
	}
	if co.presence != nil {
		if err := co.presence.SetStreamOffline(ctx, td.StreamID); err != nil {
			l.Error().Err(err).Msg("presence mirror set offline")
		}
	}
}

// systemChat appends a system entry and fans it out to the stream's
// current subscribers. Missing streams are fine: teardown races joins.
func (co *coordinator) systemChat(ctx context.Context, streamID, body string) {
	res, err := co.registry.AppendSystemMessage(streamID, body)
	if err != nil {
		return
	}
	co.fanOutChat(res)
}

func (co *coordinator) fanOutChat(res *registry.ChatResult) {
	out := &domain.ChatMessageOut{
		Type:    domain.MsgTypeChatMessage,
		Message: res.Message,
	}
	for _, h := range res.Recipients {
		co.hub.SendTo(h, out)
	}
}
