package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/Y-Juice/livestream-prototype/internal/domain"
	"github.com/Y-Juice/livestream-prototype/internal/hub"
	"github.com/Y-Juice/livestream-prototype/internal/registry"
	"github.com/Y-Juice/livestream-prototype/internal/relay"
	"github.com/Y-Juice/livestream-prototype/internal/service"
	pkglog "github.com/Y-Juice/livestream-prototype/pkg/log"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for development
	},
}

// WSHandler handles WebSocket connections.
type WSHandler struct {
	hub      *hub.Hub
	registry *registry.Registry
	service  service.Coordinator
}

// NewWSHandler creates a new WebSocket handler.
func NewWSHandler(h *hub.Hub, reg *registry.Registry, svc service.Coordinator) *WSHandler {
	return &WSHandler{
		hub:      h,
		registry: reg,
		service:  svc,
	}
}

// HandleWebSocket handles WebSocket upgrade and message routing.
func (h *WSHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	l := pkglog.L()

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		l.Error().Err(err).Msg("websocket upgrade failed")
		return
	}

	client := hub.NewClient(uuid.New().String(), h.hub, conn)

	// The disconnect handler runs exactly once per connection, whether
	// the peer closed cleanly, the socket errored, or the hub evicted it.
	client.SetDisconnectHandler(func(c *hub.Client) {
		h.service.HandleDisconnect(context.Background(), c)
	})

	h.registry.AddConnection(client.ID)
	h.hub.Register(client)

	go client.WritePump()
	go client.ReadPump(h.handleMessage)
}

func (h *WSHandler) handleMessage(client *hub.Client, message []byte) {
	var base domain.BaseMessage
	if err := json.Unmarshal(message, &base); err != nil {
		client.SendMessage(domain.NewErrorMessage(domain.ErrCodeBadRequest, "Invalid message format"))
		return
	}

	ctx := context.Background()

	switch base.Type {
	case domain.MsgTypeRegister:
		var msg domain.RegisterMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			client.SendMessage(domain.NewErrorMessage(domain.ErrCodeBadRequest, "Invalid register message"))
			return
		}
		h.service.HandleRegister(ctx, client, msg.Identity, msg.Token)

	case domain.MsgTypeStartStream:
		var msg domain.StartStreamMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			client.SendMessage(domain.NewErrorMessage(domain.ErrCodeBadRequest, "Invalid start-stream message"))
			return
		}
		h.service.HandleStartStream(ctx, client, msg.StreamID, msg.Metadata)

	case domain.MsgTypeJoinStream:
		var msg domain.JoinStreamMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			client.SendMessage(domain.NewErrorMessage(domain.ErrCodeBadRequest, "Invalid join-stream message"))
			return
		}
		h.service.HandleJoinStream(ctx, client, msg.StreamID, msg.Identity)

	case domain.MsgTypeLeaveStream:
		h.service.HandleLeaveStream(ctx, client)

	case domain.MsgTypeOffer:
		h.handleSignal(ctx, client, message, relay.KindViewer, relay.SignalOffer)
	case domain.MsgTypeAnswer:
		h.handleSignal(ctx, client, message, relay.KindViewer, relay.SignalAnswer)
	case domain.MsgTypeICECandidate:
		h.handleSignal(ctx, client, message, relay.KindViewer, relay.SignalICECandidate)

	case domain.MsgTypeCoOffer:
		h.handleSignal(ctx, client, message, relay.KindCoStream, relay.SignalOffer)
	case domain.MsgTypeCoAnswer:
		h.handleSignal(ctx, client, message, relay.KindCoStream, relay.SignalAnswer)
	case domain.MsgTypeCoICECandidate:
		h.handleSignal(ctx, client, message, relay.KindCoStream, relay.SignalICECandidate)

	case domain.MsgTypeRequestJoin:
		var msg domain.RequestJoinMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			client.SendMessage(domain.NewErrorMessage(domain.ErrCodeBadRequest, "Invalid request-join message"))
			return
		}
		h.service.HandleRequestJoin(ctx, client, msg.StreamID)

	case domain.MsgTypeRespondJoinRequest:
		var msg domain.RespondJoinRequestMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			client.SendMessage(domain.NewErrorMessage(domain.ErrCodeBadRequest, "Invalid respond-join-request message"))
			return
		}
		h.service.HandleRespondJoinRequest(ctx, client, msg.StreamID, msg.Identity, msg.Accept)

	case domain.MsgTypeKickCoStreamer:
		var msg domain.KickCoStreamerMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			client.SendMessage(domain.NewErrorMessage(domain.ErrCodeBadRequest, "Invalid kick-co-streamer message"))
			return
		}
		h.service.HandleKickCoStreamer(ctx, client, msg.StreamID, msg.Identity)

	case domain.MsgTypeSendChatMessage:
		var msg domain.SendChatMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			client.SendMessage(domain.NewErrorMessage(domain.ErrCodeBadRequest, "Invalid send-chat-message message"))
			return
		}
		h.service.HandleChatMessage(ctx, client, msg.StreamID, msg.Message)

	case domain.MsgTypeGetActiveStreams:
		h.service.HandleGetActiveStreams(ctx, client)

	case domain.MsgTypeGetChatMessages:
		var msg domain.GetChatMessagesMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			client.SendMessage(domain.NewErrorMessage(domain.ErrCodeBadRequest, "Invalid get-chat-messages message"))
			return
		}
		h.service.HandleGetChatMessages(ctx, client, msg.StreamID)

	default:
		client.SendMessage(domain.NewErrorMessage(domain.ErrCodeBadRequest, "Unknown message type"))
	}
}

func (h *WSHandler) handleSignal(ctx context.Context, client *hub.Client, message []byte, kind relay.Kind, sig relay.SignalType) {
	var msg domain.SignalMessage
	if err := json.Unmarshal(message, &msg); err != nil {
		client.SendMessage(domain.NewErrorMessage(domain.ErrCodeBadRequest, "Invalid signaling message"))
		return
	}
	h.service.HandleSignal(ctx, client, kind, sig, msg.Target, msg.Payload)
}

// RegisterRoutes registers the WebSocket route.
func (h *WSHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/ws", h.HandleWebSocket)
}
