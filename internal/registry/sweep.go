package registry

import (
	"sort"

	"github.com/Y-Juice/livestream-prototype/pkg/log"
)

// SweepDead disconnects every connection whose handle the gateway no
// longer knows. Some transports drop connections without a close event;
// this pass cleans up whatever membership they left behind.
func (r *Registry) SweepDead(alive func(handle string) bool) []*LeaveResult {
	r.mu.Lock()
	defer r.mu.Unlock()

	var dead []string
	for h := range r.conns {
		if !alive(h) {
			dead = append(dead, h)
		}
	}

	l := log.L()
	var results []*LeaveResult
	for _, h := range dead {
		c := r.conns[h]
		res := r.leaveLocked(c)
		if res.Ended != nil {
			res.Ended.Reason = ReasonDisconnect
		}
		delete(r.conns, h)
		results = append(results, res)
		l.Info().Str(log.FieldConnID, h).Str(log.FieldIdentity, c.Identity).Msg("swept dead connection")
	}
	return results
}

// EvictedConnection pairs an evicted handle with the leave it caused.
type EvictedConnection struct {
	Handle string
	Result *LeaveResult
}

// EnforceCapacity evicts oldest-first until both ceilings hold. Evicted
// clients experience an ordinary disconnect, not an error.
func (r *Registry) EnforceCapacity() ([]Teardown, []EvictedConnection) {
	r.mu.Lock()
	defer r.mu.Unlock()

	teardowns := r.evictStreamsLocked("")

	l := log.L()
	var evicted []EvictedConnection
	if len(r.conns) > r.limits.MaxUsers {
		handles := make([]string, 0, len(r.conns))
		for h := range r.conns {
			handles = append(handles, h)
		}
		sort.Slice(handles, func(i, j int) bool {
			return r.conns[handles[i]].CreatedAt.Before(r.conns[handles[j]].CreatedAt)
		})
		for _, h := range handles {
			if len(r.conns) <= r.limits.MaxUsers {
				break
			}
			c := r.conns[h]
			res := r.leaveLocked(c)
			if res.Ended != nil {
				res.Ended.Reason = ReasonEvicted
			}
			delete(r.conns, h)
			evicted = append(evicted, EvictedConnection{Handle: h, Result: res})
			l.Warn().Str(log.FieldConnID, h).Msg("evicted connection over capacity")
		}
	}
	return teardowns, evicted
}

// evictStreamsLocked removes oldest streams until the ceiling holds,
// never touching exclude (the stream whose creation triggered the check).
// Caller holds the lock.
func (r *Registry) evictStreamsLocked(exclude string) []Teardown {
	if len(r.streams) <= r.limits.MaxStreams {
		return nil
	}

	ids := make([]string, 0, len(r.streams))
	for id := range r.streams {
		if id != exclude {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool {
		return r.streams[ids[i]].CreatedAt.Before(r.streams[ids[j]].CreatedAt)
	})

	l := log.L()
	var out []Teardown
	for _, id := range ids {
		if len(r.streams) <= r.limits.MaxStreams {
			break
		}
		s := r.streams[id]
		td := r.teardownLocked(s, ReasonEvicted)
		out = append(out, td)
		l.Warn().Str(log.FieldStreamID, id).Msg("evicted stream over capacity")
	}
	return out
}
