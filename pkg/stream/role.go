package stream

import (
	"github.com/pkg/errors"
)

// Role scopes what a subscriber receives on a conversation channel. Viewers
// see only their own speaker's stream; control sees everything.
type Role string

const (
	RoleViewer1 Role = "viewer1"
	RoleViewer2 Role = "viewer2"
	RoleControl Role = "control"
)

// ParseRole validates a role string from the wire.
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleViewer1, RoleViewer2, RoleControl:
		return Role(s), nil
	default:
		return "", errors.Errorf("unknown role %q", s)
	}
}

// Sees reports whether this role receives chunk traffic for the given
// speaker slot.
func (r Role) Sees(speaker int) bool {
	switch r {
	case RoleControl:
		return true
	case RoleViewer1:
		return speaker == 1
	case RoleViewer2:
		return speaker == 2
	default:
		return false
	}
}
