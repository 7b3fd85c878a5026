package federated

import (
	"context"
	"strings"

	"github.com/pkg/errors"

	apperrors "github.com/jrsteele09/go-pm-server/internal/errors"
)

// Identity is what a provider asserts about the person behind a verified ID token.
type Identity struct {
	Provider      string
	Subject       string
	Email         string
	EmailVerified bool
	Name          string
	Picture       string
}

// IdentityProvider verifies ID tokens issued by one third-party provider.
// Any verification failure is reported as errors.ErrFederatedTokenInvalid.
type IdentityProvider interface {
	Name() string
	Verify(ctx context.Context, rawIDToken string) (*Identity, error)
}

// CodeExchanger is implemented by providers that can redeem an authorization
// code for an ID token on the server side.
type CodeExchanger interface {
	ExchangeCode(ctx context.Context, code, redirectURI string) (*Identity, error)
}

// Registry looks providers up by name. The first registered provider is the default.
type Registry struct {
	providers   map[string]IdentityProvider
	defaultName string
}

func NewRegistry(providers ...IdentityProvider) *Registry {
	r := &Registry{providers: make(map[string]IdentityProvider)}
	for _, p := range providers {
		r.Register(p)
	}
	return r
}

func (r *Registry) Register(p IdentityProvider) {
	name := strings.ToLower(p.Name())
	if r.defaultName == "" {
		r.defaultName = name
	}
	r.providers[name] = p
}

// Get returns the named provider, or the default when name is empty.
func (r *Registry) Get(name string) (IdentityProvider, error) {
	if name == "" {
		name = r.defaultName
	}
	p, ok := r.providers[strings.ToLower(name)]
	if !ok {
		return nil, errors.Wrapf(apperrors.ErrFederatedTokenInvalid, "[Registry.Get] unknown provider %q", name)
	}
	return p, nil
}

func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.providers))
	for n := range r.providers {
		names = append(names, n)
	}
	return names
}

func (r *Registry) Len() int {
	return len(r.providers)
}
