package identityfakes

import (
	"context"
	"sync"

	"github.com/Dynpro/NextBI/identity"
)

var _ identity.Provider = (*FakeProvider)(nil)

// FakeProvider is a scriptable identity.Provider for tests. Set the exported
// fields before use; call counters record what the controller drove.
type FakeProvider struct {
	lock sync.Mutex

	InitializeErr       error
	PendingAccount      *identity.Account
	CachedAccount       *identity.Account
	SilentToken         string
	SilentErr           error
	InteractiveAccount  *identity.Account
	InteractiveErr      error
	InteractiveToken    string
	InteractiveTokenErr error
	LogoutErr           error

	InitializeCalls       int
	RestoreCalls          int
	SilentCalls           int
	InteractiveCalls      int
	InteractiveTokenCalls int
	LogoutCalls           int

	ready       chan struct{}
	readyClosed bool
}

func NewFakeProvider() *FakeProvider {
	return &FakeProvider{ready: make(chan struct{})}
}

// MarkReady closes the readiness channel without going through Initialize.
func (p *FakeProvider) MarkReady() {
	p.lock.Lock()
	defer p.lock.Unlock()
	p.closeReady()
}

func (p *FakeProvider) closeReady() {
	if !p.readyClosed {
		close(p.ready)
		p.readyClosed = true
	}
}

func (p *FakeProvider) Initialize(ctx context.Context) (*identity.Account, error) {
	p.lock.Lock()
	defer p.lock.Unlock()

	p.InitializeCalls++
	if p.InitializeErr != nil {
		return nil, p.InitializeErr
	}
	p.closeReady()

	pending := p.PendingAccount
	p.PendingAccount = nil
	return pending, nil
}

func (p *FakeProvider) Ready() <-chan struct{} {
	return p.ready
}

func (p *FakeProvider) RestoreCachedAccount() *identity.Account {
	p.lock.Lock()
	defer p.lock.Unlock()

	p.RestoreCalls++
	return p.CachedAccount
}

func (p *FakeProvider) AcquireTokenSilently(ctx context.Context, account *identity.Account) (string, error) {
	p.lock.Lock()
	defer p.lock.Unlock()

	p.SilentCalls++
	if p.SilentErr != nil {
		return "", p.SilentErr
	}
	return p.SilentToken, nil
}

func (p *FakeProvider) LoginInteractive(ctx context.Context) (*identity.Account, error) {
	p.lock.Lock()
	defer p.lock.Unlock()

	p.InteractiveCalls++
	if p.InteractiveErr != nil {
		return nil, p.InteractiveErr
	}
	if p.InteractiveAccount == nil {
		return nil, identity.ErrNoAccount
	}
	return p.InteractiveAccount, nil
}

func (p *FakeProvider) AcquireTokenInteractive(ctx context.Context, account *identity.Account) (string, error) {
	p.lock.Lock()
	defer p.lock.Unlock()

	p.InteractiveTokenCalls++
	if p.InteractiveTokenErr != nil {
		return "", p.InteractiveTokenErr
	}
	return p.InteractiveToken, nil
}

func (p *FakeProvider) Logout(ctx context.Context, account *identity.Account) error {
	p.lock.Lock()
	defer p.lock.Unlock()

	p.LogoutCalls++
	return p.LogoutErr
}
