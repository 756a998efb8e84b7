package repofakes

import (
	"sync"
	"time"

	"github.com/Dynpro/NextBI/tokenstore"
	"github.com/Dynpro/NextBI/users"
)

var _ tokenstore.Repo = (*FakeTokenRepo)(nil)

// FakeTokenRepo is an in-memory token store for tests.
type FakeTokenRepo struct {
	lock    sync.RWMutex
	session *tokenstore.Session

	SetCalls   int
	ClearCalls int
}

func NewFakeTokenRepo() *FakeTokenRepo {
	return &FakeTokenRepo{}
}

func (tr *FakeTokenRepo) Get() (*tokenstore.Session, error) {
	tr.lock.RLock()
	defer tr.lock.RUnlock()

	if tr.session == nil {
		return nil, tokenstore.ErrNoSession
	}
	session := *tr.session
	return &session, nil
}

func (tr *FakeTokenRepo) Set(token string, user *users.User, method tokenstore.Method) error {
	tr.lock.Lock()
	defer tr.lock.Unlock()

	tr.SetCalls++
	tr.session = &tokenstore.Session{
		Token:     token,
		User:      user,
		Method:    method,
		CreatedAt: time.Now(),
	}
	return nil
}

func (tr *FakeTokenRepo) Clear() error {
	tr.lock.Lock()
	defer tr.lock.Unlock()

	tr.ClearCalls++
	tr.session = nil
	return nil
}
