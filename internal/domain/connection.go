package domain

import "time"

// Role describes what a connection is doing in its current stream.
type Role string

const (
	RoleNone        Role = ""
	RoleBroadcaster Role = "broadcaster"
	RoleViewer      Role = "viewer"
	RoleCoStreamer  Role = "co-streamer"
)

// Connection is the registry's record for one client session. It is owned
// exclusively by the registry; the transport layer only ever sees the
// opaque handle.
type Connection struct {
	Handle     string
	Identity   string
	Role       Role
	StreamID   string
	Registered bool
	CreatedAt  time.Time
}

// ClearMembership resets the connection's stream membership.
func (c *Connection) ClearMembership() {
	c.Role = RoleNone
	c.StreamID = ""
}
