package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Y-Juice/livestream-prototype/internal/domain"
)

func TestRequestJoinWorkflow(t *testing.T) {
	r, _ := chatFixture(t, DefaultLimits())

	outcome, err := r.RequestJoin("v1", "s1")
	require.NoError(t, err)
	assert.False(t, outcome.Duplicate)
	assert.Equal(t, "b", outcome.BroadcasterHandle)
	assert.Equal(t, "bob", outcome.Request.Identity)

	// A second ask while the first is pending is a no-op.
	outcome, err = r.RequestJoin("v1", "s1")
	require.NoError(t, err)
	assert.True(t, outcome.Duplicate)
}

func TestRequestJoinRequiresMembership(t *testing.T) {
	r, _ := chatFixture(t, DefaultLimits())
	register(t, r, "outsider", "dave")

	_, err := r.RequestJoin("outsider", "s1")
	assert.ErrorIs(t, err, domain.ErrStreamNotFound)
}

func TestRespondAcceptPromotesToCoStreamer(t *testing.T) {
	r, _ := chatFixture(t, DefaultLimits())
	_, err := r.RequestJoin("v1", "s1")
	require.NoError(t, err)

	outcome, err := r.RespondJoinRequest("b", "s1", "bob", true)
	require.NoError(t, err)
	assert.True(t, outcome.Accepted)
	assert.Equal(t, "v1", outcome.RequesterHandle)
	// Promotion moves the handle between sets, the count stays.
	assert.Equal(t, 2, outcome.ViewerCount)

	// The request is consumed: answering again fails.
	_, err = r.RespondJoinRequest("b", "s1", "bob", true)
	assert.ErrorIs(t, err, domain.ErrStreamNotFound)
}

func TestRespondRejectAllowsReask(t *testing.T) {
	r, _ := chatFixture(t, DefaultLimits())
	_, err := r.RequestJoin("v1", "s1")
	require.NoError(t, err)

	outcome, err := r.RespondJoinRequest("b", "s1", "bob", false)
	require.NoError(t, err)
	assert.False(t, outcome.Accepted)
	assert.Equal(t, "v1", outcome.RequesterHandle)

	// Rejection resets the request state.
	again, err := r.RequestJoin("v1", "s1")
	require.NoError(t, err)
	assert.False(t, again.Duplicate)
}

func TestRespondOnlyBroadcaster(t *testing.T) {
	r, _ := chatFixture(t, DefaultLimits())
	_, err := r.RequestJoin("v1", "s1")
	require.NoError(t, err)

	_, err = r.RespondJoinRequest("v2", "s1", "bob", true)
	assert.ErrorIs(t, err, domain.ErrNotBroadcaster)
}

func TestRespondRequesterAlreadyGone(t *testing.T) {
	r, _ := chatFixture(t, DefaultLimits())
	_, err := r.RequestJoin("v1", "s1")
	require.NoError(t, err)

	r.LeaveStream("v1")

	_, err = r.RespondJoinRequest("b", "s1", "bob", true)
	assert.ErrorIs(t, err, domain.ErrStreamNotFound)
}

func TestCoStreamerCeiling(t *testing.T) {
	limits := DefaultLimits()
	limits.MaxCoStreamers = 1
	r, _ := chatFixture(t, limits)

	_, err := r.RequestJoin("v1", "s1")
	require.NoError(t, err)
	_, err = r.RespondJoinRequest("b", "s1", "bob", true)
	require.NoError(t, err)

	_, err = r.RequestJoin("v2", "s1")
	require.NoError(t, err)
	_, err = r.RespondJoinRequest("b", "s1", "carol", true)
	assert.ErrorIs(t, err, domain.ErrCapacityExceeded)
}

func TestKickDemotesToViewer(t *testing.T) {
	r, _ := chatFixture(t, DefaultLimits())
	_, err := r.RequestJoin("v1", "s1")
	require.NoError(t, err)
	_, err = r.RespondJoinRequest("b", "s1", "bob", true)
	require.NoError(t, err)

	outcome, err := r.KickCoStreamer("b", "s1", "bob")
	require.NoError(t, err)
	assert.Equal(t, "v1", outcome.TargetHandle)

	// Kicked, not ejected: still watching as a plain viewer.
	streams := r.ActiveStreams()
	require.Len(t, streams, 1)
	assert.Equal(t, 2, streams[0].ViewerCount)

	// And eligible to ask again.
	again, err := r.RequestJoin("v1", "s1")
	require.NoError(t, err)
	assert.False(t, again.Duplicate)
}

func TestKickOnlyBroadcaster(t *testing.T) {
	r, _ := chatFixture(t, DefaultLimits())

	_, err := r.KickCoStreamer("v2", "s1", "bob")
	assert.ErrorIs(t, err, domain.ErrNotBroadcaster)
}

func TestKickUnknownCoStreamer(t *testing.T) {
	r, _ := chatFixture(t, DefaultLimits())

	// bob is a viewer, not a co-streamer.
	_, err := r.KickCoStreamer("b", "s1", "bob")
	assert.ErrorIs(t, err, domain.ErrStreamNotFound)
}

func TestMembershipSetsStayDisjoint(t *testing.T) {
	r, _ := chatFixture(t, DefaultLimits())
	_, err := r.RequestJoin("v1", "s1")
	require.NoError(t, err)
	_, err = r.RespondJoinRequest("b", "s1", "bob", true)
	require.NoError(t, err)

	check := func() {
		t.Helper()
		r.mu.Lock()
		defer r.mu.Unlock()
		s := r.streams["s1"]
		for h := range s.Viewers {
			_, both := s.CoStreamers[h]
			assert.False(t, both, "handle %s in both sets", h)
		}
		_, inViewers := s.Viewers[s.BroadcasterHandle]
		_, inCo := s.CoStreamers[s.BroadcasterHandle]
		assert.False(t, inViewers || inCo, "broadcaster handle in a membership set")
	}

	check()
	_, err = r.KickCoStreamer("b", "s1", "bob")
	require.NoError(t, err)
	check()
}

func TestCoStreamerLeaveClearsRequestState(t *testing.T) {
	r, _ := chatFixture(t, DefaultLimits())
	_, err := r.RequestJoin("v1", "s1")
	require.NoError(t, err)

	r.LeaveStream("v1")

	// Re-joining starts clean: the pending request died with the leave.
	mustJoin(t, r, "v1", "s1", "")
	again, err := r.RequestJoin("v1", "s1")
	require.NoError(t, err)
	assert.False(t, again.Duplicate)
}
