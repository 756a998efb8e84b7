package tokenstore

import (
	"errors"
	"time"

	"github.com/Dynpro/NextBI/users"
)

// Method records which identity path produced the current session. It is only
// consulted to decide provider-specific logout behaviour.
type Method string

const (
	MethodProvider Method = "provider"
	MethodDev      Method = "dev"
)

// ErrNoSession is returned by Get when nothing is stored.
var ErrNoSession = errors.New("no stored session")

// Session pairs the backend session token with the canonical user record. The
// two are written and cleared together; a reader never observes one without
// the other.
type Session struct {
	Token     string      `json:"token"`
	User      *users.User `json:"user"`
	Method    Method      `json:"method"`
	CreatedAt time.Time   `json:"created_at"`
}

// Repo defines the interface for durable session storage. The token is an
// opaque credential: implementations never decode or validate it, expiry is
// enforced server-side.
type Repo interface {
	// Get retrieves the persisted session, or ErrNoSession when none exists
	Get() (*Session, error)

	// Set persists the token, user record and auth method together
	Set(token string, user *users.User, method Method) error

	// Clear removes the persisted session
	Clear() error
}
