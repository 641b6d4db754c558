package audit

import (
	"context"

	"github.com/Y-Juice/livestream-prototype/pkg/log"
)

// Audit actions for the coordinator.
const (
	ActionRegister       = "coordinator.register"
	ActionStreamStart    = "coordinator.stream_start"
	ActionStreamEnd      = "coordinator.stream_end"
	ActionStreamEvict    = "coordinator.stream_evict"
	ActionChatTimeout    = "coordinator.chat_timeout"
	ActionCoStreamAccept = "coordinator.costream_accept"
	ActionCoStreamKick   = "coordinator.costream_kick"
)

const fieldAction = "action"

// Log emits a structured audit entry via the context logger.
func Log(ctx context.Context, action, identity, streamID, msg string) {
	l := log.Ctx(ctx)
	l.Info().
		Str(log.FieldLogType, log.LogTypeAudit).
		Str(fieldAction, action).
		Str(log.FieldIdentity, identity).
		Str(log.FieldStreamID, streamID).
		Msg(msg)
}
