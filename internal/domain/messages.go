package domain

import "encoding/json"

// WebSocket message types from client.
const (
	MsgTypeRegister           = "register"
	MsgTypeStartStream        = "start-stream"
	MsgTypeJoinStream         = "join-stream"
	MsgTypeLeaveStream        = "leave-stream"
	MsgTypeOffer              = "offer"
	MsgTypeAnswer             = "answer"
	MsgTypeICECandidate       = "ice-candidate"
	MsgTypeCoOffer            = "co-streamer-offer"
	MsgTypeCoAnswer           = "co-streamer-answer"
	MsgTypeCoICECandidate     = "co-streamer-ice-candidate"
	MsgTypeRequestJoin        = "request-join"
	MsgTypeRespondJoinRequest = "respond-join-request"
	MsgTypeKickCoStreamer     = "kick-co-streamer"
	MsgTypeSendChatMessage    = "send-chat-message"
	MsgTypeGetActiveStreams   = "get-active-streams"
	MsgTypeGetChatMessages    = "get-chat-messages"
)

// WebSocket message types to client.
const (
	MsgTypeActiveStreams     = "active-streams"
	MsgTypeNewStream         = "new-stream"
	MsgTypeStreamEnded       = "stream-ended"
	MsgTypeStreamStarted     = "stream-started"
	MsgTypeViewerCount       = "viewer-count"
	MsgTypeViewerJoined      = "viewer-joined"
	MsgTypeViewerLeft        = "viewer-left"
	MsgTypeRequestOffer      = "request-offer"
	MsgTypeCoRequestOffer    = "co-streamer-request-offer"
	MsgTypeJoinRequest       = "join-request"
	MsgTypeJoinRequestResult = "join-request-result"
	MsgTypeCoStreamerKicked  = "co-streamer-kicked"
	MsgTypeChatMessage       = "chat-message"
	MsgTypeChatMessages      = "chat-messages"
	MsgTypeError             = "error"
)

// BaseMessage is the envelope every inbound message must carry.
type BaseMessage struct {
	Type string `json:"type"`
}

// Client -> Server messages

type RegisterMessage struct {
	Type     string `json:"type"`
	Identity string `json:"identity"`
	Token    string `json:"token,omitempty"`
}

type StartStreamMessage struct {
	Type     string         `json:"type"`
	StreamID string         `json:"streamId,omitempty"`
	Metadata StreamMetadata `json:"metadata,omitempty"`
}

type JoinStreamMessage struct {
	Type     string `json:"type"`
	StreamID string `json:"streamId"`
	Identity string `json:"identity"`
}

type LeaveStreamMessage struct {
	Type string `json:"type"`
}

// SignalMessage carries offer/answer/ice-candidate payloads in both the
// viewer and co-streamer namespaces. The payload is opaque to the relay.
type SignalMessage struct {
	Type    string          `json:"type"`
	Target  string          `json:"target"`
	Payload json.RawMessage `json:"payload"`
}

type RequestJoinMessage struct {
	Type     string `json:"type"`
	StreamID string `json:"streamId"`
	Identity string `json:"identity"`
}

type RespondJoinRequestMessage struct {
	Type     string `json:"type"`
	StreamID string `json:"streamId"`
	Identity string `json:"identity"`
	Accept   bool   `json:"accept"`
}

type KickCoStreamerMessage struct {
	Type     string `json:"type"`
	StreamID string `json:"streamId"`
	Identity string `json:"identity"`
}

type SendChatMessage struct {
	Type     string `json:"type"`
	StreamID string `json:"streamId"`
	Message  string `json:"message"`
}

type GetChatMessagesMessage struct {
	Type     string `json:"type"`
	StreamID string `json:"streamId"`
}

// Server -> Client messages

type StreamSummary struct {
	StreamID    string         `json:"streamId"`
	Broadcaster string         `json:"broadcaster"`
	ViewerCount int            `json:"viewerCount"`
	Metadata    StreamMetadata `json:"metadata,omitempty"`
}

type ActiveStreamsMessage struct {
	Type    string          `json:"type"`
	Streams []StreamSummary `json:"streams"`
}

type NewStreamMessage struct {
	Type        string         `json:"type"`
	StreamID    string         `json:"streamId"`
	Broadcaster string         `json:"broadcaster"`
	ViewerCount int            `json:"viewerCount"`
	Metadata    StreamMetadata `json:"metadata,omitempty"`
}

// StreamEndedMessage is sent with an empty StreamID to participants of the
// ended stream, and with the StreamID set to everyone else as a signal to
// re-pull the active list.
type StreamEndedMessage struct {
	Type     string `json:"type"`
	StreamID string `json:"streamId,omitempty"`
}

type StreamStartedMessage struct {
	Type        string `json:"type"`
	StreamID    string `json:"streamId"`
	ViewerCount int    `json:"viewerCount"`
	Reconnected bool   `json:"reconnected,omitempty"`
}

type ViewerCountMessage struct {
	Type  string `json:"type"`
	Count int    `json:"count"`
}

type ViewerEventMessage struct {
	Type     string `json:"type"`
	Identity string `json:"identity"`
}

// RequestOfferMessage instructs the receiving side to originate an offer
// toward Target. Sent to the broadcaster for viewer negotiations and to
// the promoted viewer for co-streamer negotiations.
type RequestOfferMessage struct {
	Type   string `json:"type"`
	Target string `json:"target"`
}

// SignalForwardMessage is a relayed offer/answer/ice-candidate tagged with
// the sender's connection handle.
type SignalForwardMessage struct {
	Type    string          `json:"type"`
	From    string          `json:"from"`
	Payload json.RawMessage `json:"payload"`
}

type JoinRequestMessage struct {
	Type      string `json:"type"`
	StreamID  string `json:"streamId"`
	Identity  string `json:"identity"`
	Timestamp int64  `json:"timestamp"`
}

type JoinRequestResultMessage struct {
	Type     string `json:"type"`
	StreamID string `json:"streamId"`
	Accepted bool   `json:"accepted"`
}

type CoStreamerKickedMessage struct {
	Type     string `json:"type"`
	StreamID string `json:"streamId"`
}

type ChatMessageOut struct {
	Type    string      `json:"type"`
	Message ChatMessage `json:"message"`
}

type ChatMessagesOut struct {
	Type     string        `json:"type"`
	StreamID string        `json:"streamId"`
	Messages []ChatMessage `json:"messages"`
}

type ErrorMessage struct {
	Type    string `json:"type"`
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// NewErrorMessage creates a typed error event.
func NewErrorMessage(kind, message string) *ErrorMessage {
	return &ErrorMessage{
		Type:    MsgTypeError,
		Kind:    kind,
		Message: message,
	}
}

// WireError converts a coordinator error into its error event.
func WireError(err error) *ErrorMessage {
	return NewErrorMessage(ErrorCode(err), err.Error())
}
