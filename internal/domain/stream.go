package domain

import "time"

// StreamMetadata is opaque to the coordinator; it is stored and echoed
// back in catalog responses without interpretation.
type StreamMetadata struct {
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
	Category    string `json:"category,omitempty"`
}

// JoinRequest is a pending co-streaming request.
type JoinRequest struct {
	Identity  string
	Timestamp time.Time
}

// Stream is one live broadcast. All mutation happens under the registry
// lock; nothing outside the registry holds a reference to the sets.
type Stream struct {
	ID                string
	Broadcaster       string
	BroadcasterHandle string
	Viewers           map[string]struct{}
	CoStreamers       map[string]struct{}
	JoinRequests      []JoinRequest
	Metadata          StreamMetadata
	CreatedAt         time.Time
	Chat              *ChatLog
	Moderation        map[string]*ModerationState
}

// NewStream creates a stream with empty membership.
func NewStream(id, broadcaster, handle string, meta StreamMetadata, chatCapacity int, now time.Time) *Stream {
	return &Stream{
		ID:                id,
		Broadcaster:       broadcaster,
		BroadcasterHandle: handle,
		Viewers:           make(map[string]struct{}),
		CoStreamers:       make(map[string]struct{}),
		Metadata:          meta,
		CreatedAt:         now,
		Chat:              NewChatLog(chatCapacity),
		Moderation:        make(map[string]*ModerationState),
	}
}

// ViewerCount is the number of watching participants, co-streamers
// included. The broadcaster is never counted.
func (s *Stream) ViewerCount() int {
	return len(s.Viewers) + len(s.CoStreamers)
}

// Participants returns every connection handle subscribed to the stream,
// broadcaster first.
func (s *Stream) Participants() []string {
	out := make([]string, 0, 1+s.ViewerCount())
	out = append(out, s.BroadcasterHandle)
	for h := range s.Viewers {
		out = append(out, h)
	}
	for h := range s.CoStreamers {
		out = append(out, h)
	}
	return out
}

// HasParticipant reports whether the handle is in either membership set.
func (s *Stream) HasParticipant(handle string) bool {
	if _, ok := s.Viewers[handle]; ok {
		return true
	}
	_, ok := s.CoStreamers[handle]
	return ok
}

// PendingRequest reports whether identity has an outstanding join request.
func (s *Stream) PendingRequest(identity string) bool {
	for _, r := range s.JoinRequests {
		if r.Identity == identity {
			return true
		}
	}
	return false
}

// RemoveRequest drops identity's pending join request, if any.
func (s *Stream) RemoveRequest(identity string) {
	for i, r := range s.JoinRequests {
		if r.Identity == identity {
			s.JoinRequests = append(s.JoinRequests[:i], s.JoinRequests[i+1:]...)
			return
		}
	}
}

// ModerationFor returns the moderation state for identity, creating it on
// first use.
func (s *Stream) ModerationFor(identity string) *ModerationState {
	m, ok := s.Moderation[identity]
	if !ok {
		m = &ModerationState{}
		s.Moderation[identity] = m
	}
	return m
}
