package fakeprovider

import (
	"context"
	"sync"

	"github.com/pkg/errors"

	"github.com/jrsteele09/go-pm-server/federated"
	apperrors "github.com/jrsteele09/go-pm-server/internal/errors"
)

var (
	_ federated.IdentityProvider = (*FakeProvider)(nil)
	_ federated.CodeExchanger    = (*FakeProvider)(nil)
)

// FakeProvider accepts only the tokens and codes it has been given.
type FakeProvider struct {
	name   string
	tokens map[string]federated.Identity
	codes  map[string]string // code to token
	lock   sync.RWMutex
}

func NewFakeProvider(name string) *FakeProvider {
	return &FakeProvider{
		name:   name,
		tokens: make(map[string]federated.Identity),
		codes:  make(map[string]string),
	}
}

func (p *FakeProvider) Name() string {
	return p.name
}

// AddToken makes raw verify to id.
func (p *FakeProvider) AddToken(raw string, id federated.Identity) {
	p.lock.Lock()
	defer p.lock.Unlock()
	id.Provider = p.name
	p.tokens[raw] = id
}

// AddCode makes code exchange to the identity registered for raw.
func (p *FakeProvider) AddCode(code, raw string) {
	p.lock.Lock()
	defer p.lock.Unlock()
	p.codes[code] = raw
}

func (p *FakeProvider) Verify(_ context.Context, raw string) (*federated.Identity, error) {
	p.lock.RLock()
	defer p.lock.RUnlock()
	id, ok := p.tokens[raw]
	if !ok {
		return nil, errors.Wrap(apperrors.ErrFederatedTokenInvalid, "[FakeProvider.Verify]")
	}
	return &id, nil
}

func (p *FakeProvider) ExchangeCode(ctx context.Context, code, _ string) (*federated.Identity, error) {
	p.lock.RLock()
	raw, ok := p.codes[code]
	p.lock.RUnlock()
	if !ok {
		return nil, errors.Wrap(apperrors.ErrFederatedTokenInvalid, "[FakeProvider.ExchangeCode]")
	}
	return p.Verify(ctx, raw)
}
