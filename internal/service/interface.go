package service

import (
	"context"
	"encoding/json"

	"github.com/Y-Juice/livestream-prototype/internal/domain"
	"github.com/Y-Juice/livestream-prototype/internal/hub"
	"github.com/Y-Juice/livestream-prototype/internal/relay"
)

// Coordinator is the service layer behind the WebSocket handler. Each
// method fully processes one inbound event: registry mutation first, then
// fan-out resolved from the registry's current state.
type Coordinator interface {
	HandleRegister(ctx context.Context, c *hub.Client, identity, token string)
	HandleStartStream(ctx context.Context, c *hub.Client, streamID string, meta domain.StreamMetadata)
	HandleJoinStream(ctx context.Context, c *hub.Client, streamID, identity string)
	HandleLeaveStream(ctx context.Context, c *hub.Client)
	HandleDisconnect(ctx context.Context, c *hub.Client)
	HandleSignal(ctx context.Context, c *hub.Client, kind relay.Kind, sig relay.SignalType, target string, payload json.RawMessage)
	HandleRequestJoin(ctx context.Context, c *hub.Client, streamID string)
	HandleRespondJoinRequest(ctx context.Context, c *hub.Client, streamID, identity string, accept bool)
	HandleKickCoStreamer(ctx context.Context, c *hub.Client, streamID, identity string)
	HandleChatMessage(ctx context.Context, c *hub.Client, streamID, body string)
	HandleGetActiveStreams(ctx context.Context, c *hub.Client)
	HandleGetChatMessages(ctx context.Context, c *hub.Client, streamID string)

	// Reaper entry points.
	SweepLiveness(ctx context.Context)
	EnforceCapacity(ctx context.Context)
}
