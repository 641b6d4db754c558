package domain

import "time"

// SystemAuthor is the sentinel author for coordinator-generated messages.
const SystemAuthor = "system"

// ChatMessage is immutable once appended to a log.
type ChatMessage struct {
	Author    string    `json:"author"`
	Body      string    `json:"body"`
	Timestamp time.Time `json:"timestamp"`
	IsSystem  bool      `json:"isSystem,omitempty"`
}

// ChatLog is a bounded FIFO of chat messages. Appending past capacity
// drops the oldest entry.
type ChatLog struct {
	messages []ChatMessage
	capacity int
}

// NewChatLog creates a log holding at most capacity messages.
func NewChatLog(capacity int) *ChatLog {
	if capacity < 1 {
		capacity = 1
	}
	return &ChatLog{capacity: capacity}
}

// Append adds a message, evicting the oldest entry when full.
func (l *ChatLog) Append(msg ChatMessage) {
	if len(l.messages) >= l.capacity {
		l.messages = l.messages[1:]
	}
	l.messages = append(l.messages, msg)
}

// Len returns the number of stored messages.
func (l *ChatLog) Len() int {
	return len(l.messages)
}

// Messages returns a copy of the log in append order.
func (l *ChatLog) Messages() []ChatMessage {
	out := make([]ChatMessage, len(l.messages))
	copy(out, l.messages)
	return out
}

// ModerationState tracks profanity warnings for one identity on one
// stream. Transitions only move forward in time.
type ModerationState struct {
	WarningCount int
	TimeoutUntil time.Time
}

// TimedOut reports whether the identity is inside an active timeout
// window. An expired window resets the state.
func (m *ModerationState) TimedOut(now time.Time) bool {
	if m.TimeoutUntil.IsZero() {
		return false
	}
	if now.Before(m.TimeoutUntil) {
		return true
	}
	m.TimeoutUntil = time.Time{}
	m.WarningCount = 0
	return false
}

// Warn records a profanity strike. Reaching threshold activates a timeout
// until now+window and resets the counter. It reports whether the timeout
// was activated by this strike.
func (m *ModerationState) Warn(now time.Time, threshold int, window time.Duration) bool {
	m.WarningCount++
	if m.WarningCount >= threshold {
		m.WarningCount = 0
		m.TimeoutUntil = now.Add(window)
		return true
	}
	return false
}
