package events

import "context"

// StreamEvent is the record other services consume when a broadcast
// starts or ends.
type StreamEvent struct {
	Type        string `json:"type"` // "stream_started" | "stream_ended"
	StreamID    string `json:"stream_id"`
	Broadcaster string `json:"broadcaster"`
	Reason      string `json:"reason,omitempty"` // "explicit" | "disconnect" | "evicted" | "orphaned"
	Timestamp   int64  `json:"timestamp"`
}

// Event types.
const (
	EventStreamStarted = "stream_started"
	EventStreamEnded   = "stream_ended"
)

// Producer publishes stream lifecycle events. The coordinator works
// without one; a nil producer simply disables publishing.
type Producer interface {
	ProduceStreamStarted(ctx context.Context, streamID, broadcaster string) error
	ProduceStreamEnded(ctx context.Context, streamID, broadcaster, reason string) error
	Close() error
}
