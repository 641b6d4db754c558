package registry

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Y-Juice/livestream-prototype/internal/domain"
	"github.com/Y-Juice/livestream-prototype/internal/moderation"
	"github.com/Y-Juice/livestream-prototype/pkg/log"
)

// Limits are the documented operational ceilings. Eviction past these is a
// last-resort safety valve, not a control path.
type Limits struct {
	MaxStreams       int
	MaxUsers         int
	MaxChatMessages  int
	MaxCoStreamers   int
	WarningThreshold int
	TimeoutWindow    time.Duration
}

// DefaultLimits mirror the documented defaults.
func DefaultLimits() Limits {
	return Limits{
		MaxStreams:       100,
		MaxUsers:         1000,
		MaxChatMessages:  200,
		MaxCoStreamers:   2,
		WarningThreshold: 3,
		TimeoutWindow:    60 * time.Second,
	}
}

// Registry owns the authoritative connection and stream maps. Every
// operation is a complete read-modify-write under one mutex, so state
// transitions are observable only at operation boundaries.
type Registry struct {
	mu         sync.Mutex
	limits     Limits
	classifier *moderation.Classifier
	conns      map[string]*domain.Connection
	streams    map[string]*domain.Stream

	now func() time.Time
}

// New creates an empty registry.
func New(limits Limits, classifier *moderation.Classifier) *Registry {
	if classifier == nil {
		classifier = moderation.NewClassifier(nil)
	}
	return &Registry{
		limits:     limits,
		classifier: classifier,
		conns:      make(map[string]*domain.Connection),
		streams:    make(map[string]*domain.Stream),
		now:        time.Now,
	}
}

// Teardown describes one ended stream and who must be told about it.
type Teardown struct {
	StreamID          string
	Broadcaster       string
	BroadcasterHandle string
	Participants      []string // viewer and co-streamer handles
	Reason            string
}

// Teardown reasons.
const (
	ReasonExplicit   = "explicit"
	ReasonDisconnect = "disconnect"
	ReasonEvicted    = "evicted"
	ReasonOrphaned   = "orphaned"
)

// StartResult is the outcome of a successful StartStream.
type StartResult struct {
	StreamID    string
	Broadcaster string
	ViewerCount int
	Reconnected bool
	Metadata    domain.StreamMetadata
	// Departed is the caller's implicit leave from whatever it was part
	// of before, nil when it had no membership. The caller must cascade
	// it like any other leave.
	Departed *LeaveResult
	Evicted  []Teardown // oldest streams evicted to hold MAX_STREAMS
}

// JoinResult is the outcome of a successful JoinStream.
type JoinResult struct {
	StreamID          string
	Identity          string
	BroadcasterHandle string
	ViewerCount       int
	// Departed is the caller's implicit leave from its previous stream,
	// nil when it had no membership.
	Departed *LeaveResult
}

// LeaveResult describes what a leave or disconnect changed.
type LeaveResult struct {
	Handle   string
	Left     bool
	StreamID string
	Identity string
	Role     domain.Role
	// Ended is set when the leaver was the broadcaster.
	Ended *Teardown
	// BroadcasterHandle and ViewerCount are set when a watcher left a
	// still-live stream.
	BroadcasterHandle string
	ViewerCount       int
}

// AddConnection records a new transport connection. Called by the gateway
// on connect, before any message is processed.
func (r *Registry) AddConnection(handle string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conns[handle] = &domain.Connection{
		Handle:    handle,
		CreatedAt: r.now(),
	}
}

// Register binds a display identity to a connection. Idempotent: a
// re-register simply updates the identity.
func (r *Registry) Register(handle, identity string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.conns[handle]
	if !ok {
		c = &domain.Connection{Handle: handle, CreatedAt: r.now()}
		r.conns[handle] = c
	}
	c.Identity = identity
	c.Registered = true
}

// StartStream creates a stream, or rebinds an existing one when the same
// broadcaster identity reconnects with the same stream id. A different
// identity on a live id is a conflict.
func (r *Registry) StartStream(handle, streamID string, meta domain.StreamMetadata) (*StartResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.conns[handle]
	if !ok || !c.Registered {
		return nil, domain.ErrNotRegistered
	}

	if streamID == "" {
		streamID = uuid.New().String()
	}

	if s, exists := r.streams[streamID]; exists {
		if s.Broadcaster != c.Identity {
			return nil, domain.ErrStreamIDInUse
		}
		// Reconnect: rebind the stream to the new handle. The stale
		// handle, if still around, loses its membership.
		if old, ok := r.conns[s.BroadcasterHandle]; ok && old.Handle != handle {
			old.ClearMembership()
		}
		departed := r.leaveLocked(c)
		s.BroadcasterHandle = handle
		c.Role = domain.RoleBroadcaster
		c.StreamID = streamID
		res := &StartResult{
			StreamID:    streamID,
			Broadcaster: s.Broadcaster,
			ViewerCount: s.ViewerCount(),
			Reconnected: true,
			Metadata:    s.Metadata,
		}
		if departed.Left {
			res.Departed = departed
		}
		return res, nil
	}

	departed := r.leaveLocked(c)

	s := domain.NewStream(streamID, c.Identity, handle, meta, r.limits.MaxChatMessages, r.now())
	r.streams[streamID] = s
	c.Role = domain.RoleBroadcaster
	c.StreamID = streamID

	res := &StartResult{
		StreamID:    streamID,
		Broadcaster: c.Identity,
		ViewerCount: 0,
		Metadata:    meta,
	}
	if departed.Left {
		res.Departed = departed
	}
	res.Evicted = r.evictStreamsLocked(s.ID)
	return res, nil
}

// JoinStream adds the connection to the viewer set. An unregistered
// connection is registered on the fly with the supplied identity. If the
// stream's broadcaster connection is gone the orphan stream is removed
// right here and the join fails with StreamNotFound; the returned
// Teardown names whoever must still be notified.
func (r *Registry) JoinStream(handle, streamID, identity string) (*JoinResult, *Teardown, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.streams[streamID]
	if !ok {
		return nil, nil, domain.ErrStreamNotFound
	}

	c, ok := r.conns[handle]
	if !ok {
		c = &domain.Connection{Handle: handle, CreatedAt: r.now()}
		r.conns[handle] = c
	}
	if !c.Registered && identity != "" {
		c.Identity = identity
		c.Registered = true
	}

	if _, ok := r.conns[s.BroadcasterHandle]; !ok {
		td := r.teardownLocked(s, ReasonOrphaned)
		l := log.L()
		l.Warn().Str(log.FieldStreamID, streamID).Msg("removed orphan stream on join")
		return nil, &td, domain.ErrStreamNotFound
	}

	if c.Identity == s.Broadcaster {
		return nil, nil, domain.ErrSelfViewNotAllowed
	}

	departed := r.leaveLocked(c)
	s.Viewers[handle] = struct{}{}
	c.Role = domain.RoleViewer
	c.StreamID = streamID

	res := &JoinResult{
		StreamID:          streamID,
		Identity:          c.Identity,
		BroadcasterHandle: s.BroadcasterHandle,
		ViewerCount:       s.ViewerCount(),
	}
	if departed.Left {
		res.Departed = departed
	}
	return res, nil, nil
}

// LeaveStream removes the connection from whatever it is part of. A
// connection with no active stream is a no-op.
func (r *Registry) LeaveStream(handle string) *LeaveResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.conns[handle]
	if !ok {
		return &LeaveResult{}
	}
	res := r.leaveLocked(c)
	if res.Ended != nil {
		res.Ended.Reason = ReasonExplicit
	}
	return res
}

// Disconnect is LeaveStream plus removal of the connection record. Safe
// to call at any point, including mid-negotiation.
func (r *Registry) Disconnect(handle string) *LeaveResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.conns[handle]
	if !ok {
		return &LeaveResult{}
	}
	res := r.leaveLocked(c)
	if res.Ended != nil {
		res.Ended.Reason = ReasonDisconnect
	}
	delete(r.conns, handle)
	return res
}

// leaveLocked removes c's membership and tears the stream down when c is
// its broadcaster. Caller holds the lock.
func (r *Registry) leaveLocked(c *domain.Connection) *LeaveResult {
	if c.StreamID == "" {
		return &LeaveResult{Handle: c.Handle}
	}
	res := &LeaveResult{
		Handle:   c.Handle,
		Left:     true,
		StreamID: c.StreamID,
		Identity: c.Identity,
		Role:     c.Role,
	}

	s, ok := r.streams[c.StreamID]
	if !ok {
		c.ClearMembership()
		return res
	}

	if c.Role == domain.RoleBroadcaster && s.BroadcasterHandle == c.Handle {
		td := r.teardownLocked(s, ReasonExplicit)
		res.Ended = &td
	} else {
		delete(s.Viewers, c.Handle)
		delete(s.CoStreamers, c.Handle)
		s.RemoveRequest(c.Identity)
		res.BroadcasterHandle = s.BroadcasterHandle
		res.ViewerCount = s.ViewerCount()
	}

	c.ClearMembership()
	return res
}

// teardownLocked deletes the stream and clears every participant's
// membership. Caller holds the lock.
func (r *Registry) teardownLocked(s *domain.Stream, reason string) Teardown {
	td := Teardown{
		StreamID:          s.ID,
		Broadcaster:       s.Broadcaster,
		BroadcasterHandle: s.BroadcasterHandle,
		Reason:            reason,
	}
	for h := range s.Viewers {
		td.Participants = append(td.Participants, h)
		if c, ok := r.conns[h]; ok {
			c.ClearMembership()
		}
	}
	for h := range s.CoStreamers {
		td.Participants = append(td.Participants, h)
		if c, ok := r.conns[h]; ok {
			c.ClearMembership()
		}
	}
	if c, ok := r.conns[s.BroadcasterHandle]; ok && c.StreamID == s.ID {
		c.ClearMembership()
	}
	delete(r.streams, s.ID)
	return td
}

// ActiveStreams returns a catalog snapshot ordered by creation time.
func (r *Registry) ActiveStreams() []domain.StreamSummary {
	r.mu.Lock()
	defer r.mu.Unlock()

	streams := make([]*domain.Stream, 0, len(r.streams))
	for _, s := range r.streams {
		streams = append(streams, s)
	}
	sort.Slice(streams, func(i, j int) bool {
		if !streams[i].CreatedAt.Equal(streams[j].CreatedAt) {
			return streams[i].CreatedAt.Before(streams[j].CreatedAt)
		}
		return streams[i].ID < streams[j].ID
	})

	out := make([]domain.StreamSummary, 0, len(streams))
	for _, s := range streams {
		out = append(out, domain.StreamSummary{
			StreamID:    s.ID,
			Broadcaster: s.Broadcaster,
			ViewerCount: s.ViewerCount(),
			Metadata:    s.Metadata,
		})
	}
	return out
}

// Identity returns the registered identity for a handle.
func (r *Registry) Identity(handle string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.conns[handle]
	if !ok || !c.Registered {
		return "", false
	}
	return c.Identity, true
}

// StreamCount and ConnectionCount expose sizes for tests and metrics logs.
func (r *Registry) StreamCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.streams)
}

func (r *Registry) ConnectionCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.conns)
}
