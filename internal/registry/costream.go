package registry

import (
	"github.com/Y-Juice/livestream-prototype/internal/domain"
)

// JoinRequestOutcome tells the service who to notify about a new request.
type JoinRequestOutcome struct {
	BroadcasterHandle string
	Request           domain.JoinRequest
	Duplicate         bool
}

// RequestJoin files a co-streaming request from a viewer. A viewer has at
// most one outstanding request per stream; a duplicate is a no-op.
func (r *Registry) RequestJoin(handle, streamID string) (*JoinRequestOutcome, error) {
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
	if !s.HasParticipant(handle) {
		return nil, domain.ErrStreamNotFound
	}

	if s.PendingRequest(c.Identity) {
		return &JoinRequestOutcome{Duplicate: true}, nil
	}

	req := domain.JoinRequest{Identity: c.Identity, Timestamp: r.now()}
	s.JoinRequests = append(s.JoinRequests, req)

	return &JoinRequestOutcome{
		BroadcasterHandle: s.BroadcasterHandle,
		Request:           req,
	}, nil
}

// RespondOutcome is the result of the broadcaster answering a request.
type RespondOutcome struct {
	RequesterHandle   string
	BroadcasterHandle string
	Accepted          bool
	ViewerCount       int
}

// RespondJoinRequest resolves a pending request. Only the stream's
// broadcaster may respond. Accepting promotes the requester to
// co-streamer, bounded by the co-streamer ceiling; rejecting resets the
// request state so the viewer may ask again.
func (r *Registry) RespondJoinRequest(handle, streamID, identity string, accept bool) (*RespondOutcome, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.streams[streamID]
	if !ok {
		return nil, domain.ErrStreamNotFound
	}
	if s.BroadcasterHandle != handle {
		return nil, domain.ErrNotBroadcaster
	}
	if !s.PendingRequest(identity) {
		return nil, domain.ErrStreamNotFound
	}

	requester := r.findParticipantLocked(s, identity)
	if requester == nil {
		// Requester left between asking and the answer.
		s.RemoveRequest(identity)
		return nil, domain.ErrStreamNotFound
	}

	if !accept {
		s.RemoveRequest(identity)
		return &RespondOutcome{
			RequesterHandle:   requester.Handle,
			BroadcasterHandle: s.BroadcasterHandle,
		}, nil
	}

	if len(s.CoStreamers) >= r.limits.MaxCoStreamers {
		return nil, domain.ErrCapacityExceeded
	}

	s.RemoveRequest(identity)
	delete(s.Viewers, requester.Handle)
	s.CoStreamers[requester.Handle] = struct{}{}
	requester.Role = domain.RoleCoStreamer

	return &RespondOutcome{
		RequesterHandle:   requester.Handle,
		BroadcasterHandle: s.BroadcasterHandle,
		Accepted:          true,
		ViewerCount:       s.ViewerCount(),
	}, nil
}

// KickOutcome names the demoted co-streamer.
type KickOutcome struct {
	TargetHandle      string
	BroadcasterHandle string
}

// KickCoStreamer demotes a co-streamer back to viewer. The underlying
// viewing session survives; only the co-stream negotiation ends.
func (r *Registry) KickCoStreamer(handle, streamID, identity string) (*KickOutcome, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.streams[streamID]
	if !ok {
		return nil, domain.ErrStreamNotFound
	}
	if s.BroadcasterHandle != handle {
		return nil, domain.ErrNotBroadcaster
	}

	var target *domain.Connection
	for h := range s.CoStreamers {
		if c, ok := r.conns[h]; ok && c.Identity == identity {
			target = c
			break
		}
	}
	if target == nil {
		return nil, domain.ErrStreamNotFound
	}

	delete(s.CoStreamers, target.Handle)
	s.Viewers[target.Handle] = struct{}{}
	target.Role = domain.RoleViewer

	return &KickOutcome{
		TargetHandle:      target.Handle,
		BroadcasterHandle: s.BroadcasterHandle,
	}, nil
}

// findParticipantLocked resolves an identity to its connection within the
// stream's membership. Caller holds the lock.
func (r *Registry) findParticipantLocked(s *domain.Stream, identity string) *domain.Connection {
	for h := range s.Viewers {
		if c, ok := r.conns[h]; ok && c.Identity == identity {
			return c
		}
	}
	for h := range s.CoStreamers {
		if c, ok := r.conns[h]; ok && c.Identity == identity {
			return c
		}
	}
	return nil
}
