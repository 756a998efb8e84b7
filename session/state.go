package session

import "github.com/Dynpro/NextBI/users"

// State is the lifecycle position of the session controller.
type State int

const (
	StateUninitialized State = iota
	StateResolving
	StateAuthenticated
	StateUnauthenticated
	StateError
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateResolving:
		return "resolving"
	case StateAuthenticated:
		return "authenticated"
	case StateUnauthenticated:
		return "unauthenticated"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// Snapshot is the derived session state consumers read. It is recomputed by
// the controller from the token store; consumers never mutate it. Loading
// true means the values are not yet meaningful.
type Snapshot struct {
	State           State
	IsAuthenticated bool
	User            *users.User
	Loading         bool
	Err             string
}
