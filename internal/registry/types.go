package registry

import (
	"errors"
	"fmt"
)

// ErrUnknownRole is returned when a role outside the three groups is registered.
var ErrUnknownRole = errors.New("unknown role")

// Role identifies which group a connection belongs to.
type Role string

const (
	RoleUnknown   Role = "unknown"
	RoleSensor    Role = "sensor"
	RoleProcessor Role = "processor"
	RoleDashboard Role = "dashboard"
)

// Roles lists the routable roles in a stable order.
var Roles = []Role{RoleSensor, RoleProcessor, RoleDashboard}

// ParseRole converts a wire value to a Role.
func ParseRole(s string) (Role, error) {
	switch r := Role(s); r {
	case RoleSensor, RoleProcessor, RoleDashboard:
		return r, nil
	default:
		return RoleUnknown, fmt.Errorf("%w: %q", ErrUnknownRole, s)
	}
}

// Valid reports whether r is one of the routable roles.
func (r Role) Valid() bool {
	_, err := ParseRole(string(r))
	return err == nil
}

func (r Role) String() string {
	return string(r)
}

// Handle is a live connection as seen by the registry and router.
type Handle interface {
	// ID returns the connection identity.
	ID() string

	// IsOpen reports whether the connection can still accept sends.
	IsOpen() bool

	// Send delivers one frame. It must not block on the remote peer and
	// returns an error rather than panicking when the connection is gone.
	Send(data []byte) error
}

// Entry is one member of a group snapshot.
type Entry struct {
	ID     string
	Handle Handle
}
