package sso

import (
	"context"
	"fmt"
)

// Provider is a code-exchange login provider (OAuth2 or OIDC). SAML follows
// its own response flow, see SAMLProvider.
type Provider interface {
	// Kind returns the protocol the provider speaks.
	Kind() ProviderKind

	// Name returns the provider name used in routes and open-id prefixes.
	Name() string

	// AuthURL builds the authorization redirect for an encoded state.
	AuthURL(state string) string

	// Exchange trades the callback code for the external identity.
	Exchange(ctx context.Context, code string) (*ExternalUser, error)
}

// Registry holds the configured providers by name.
type Registry struct {
	providers map[string]Provider
}

// NewRegistry creates an empty provider registry.
func NewRegistry() *Registry {
	return &Registry{providers: make(map[string]Provider)}
}

// Register adds a provider. Duplicate names are a configuration error.
func (r *Registry) Register(p Provider) error {
	if _, dup := r.providers[p.Name()]; dup {
		return fmt.Errorf("duplicate sso provider %q", p.Name())
	}
	r.providers[p.Name()] = p
	return nil
}

// Get returns the provider by name.
func (r *Registry) Get(name string) (Provider, bool) {
	p, ok := r.providers[name]
	return p, ok
}

// Names lists the registered provider names.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	return names
}
