package registry

import (
	"github.com/Y-Juice/livestream-prototype/internal/domain"
)

// ChatResult is the outcome of a chat append. When Flagged is set the
// message was withheld from the log and Recipients is empty.
type ChatResult struct {
	Message          domain.ChatMessage
	Recipients       []string
	Flagged          bool
	TimeoutActivated bool
}

// AppendChat runs a message through moderation and, if clean, appends it
// to the stream's log. Recipients are resolved from current membership on
// every call, never cached.
func (r *Registry) AppendChat(handle, streamID, body string) (*ChatResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.conns[handle]
	if !ok || !c.Registered {
		return nil, domain.ErrNotRegistered
	}
	s, ok := r.streams[streamID]
	if !ok {
		return nil, domain.ErrStreamNotFound
	}

	now := r.now()
	mod := s.ModerationFor(c.Identity)
	if mod.TimedOut(now) {
		return nil, domain.ErrChatTimeout
	}

	if r.classifier.Flag(body) {
		activated := mod.Warn(now, r.limits.WarningThreshold, r.limits.TimeoutWindow)
		return &ChatResult{Flagged: true, TimeoutActivated: activated}, nil
	}

	msg := domain.ChatMessage{
		Author:    c.Identity,
		Body:      body,
		Timestamp: now,
	}
	s.Chat.Append(msg)

	return &ChatResult{
		Message:    msg,
		Recipients: s.Participants(),
	}, nil
}

// AppendSystemMessage appends a coordinator-authored entry, bypassing
// moderation, and returns the current subscriber set for fan-out.
func (r *Registry) AppendSystemMessage(streamID, body string) (*ChatResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.streams[streamID]
	if !ok {
		return nil, domain.ErrStreamNotFound
	}

	msg := domain.ChatMessage{
		Author:    domain.SystemAuthor,
		Body:      body,
		Timestamp: r.now(),
		IsSystem:  true,
	}
	s.Chat.Append(msg)

	return &ChatResult{
		Message:    msg,
		Recipients: s.Participants(),
	}, nil
}

// ChatHistory returns a snapshot of the stream's bounded log.
func (r *Registry) ChatHistory(streamID string) ([]domain.ChatMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.streams[streamID]
	if !ok {
		return nil, domain.ErrStreamNotFound
	}
	return s.Chat.Messages(), nil
}
