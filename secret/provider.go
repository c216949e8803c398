package secret

import (
	"context"
	"fmt"
	"strings"
)

// Provider resolves secrets by reference string.
//
// Implementations must be safe for concurrent use and must not log secret values.
type Provider interface {
	Name() string
	Resolve(ctx context.Context, ref string) (Secret, error)
}

// KeyringProvider resolves "<service>/<user>" references against a Keyring.
type KeyringProvider struct {
	Keyring Keyring
}

// Name implements Provider.
func (KeyringProvider) Name() string { return "keyring" }

// Resolve implements Provider. A missing secret is ErrNotFound.
func (p KeyringProvider) Resolve(ctx context.Context, ref string) (Secret, error) {
	service, user, ok := strings.Cut(ref, "/")
	if !ok || service == "" || user == "" {
		return "", fmt.Errorf("%w: keyring ref %q must be <service>/<user>", ErrInvalidRef, ref)
	}
	s, found, err := p.Keyring.GetSecret(ctx, service, user)
	if err != nil {
		return "", err
	}
	if !found {
		return "", fmt.Errorf("%w: %s/%s", ErrNotFound, service, user)
	}
	return s, nil
}

// Resolver resolves configuration values of the form
// secretref:<provider>:<ref>. Other values pass through unchanged.
type Resolver struct {
	providers map[string]Provider
}

// NewResolver creates a resolver over providers.
func NewResolver(providers ...Provider) *Resolver {
	r := &Resolver{providers: make(map[string]Provider, len(providers))}
	for _, p := range providers {
		if p != nil {
			r.providers[p.Name()] = p
		}
	}
	return r
}

// ResolveValue returns the secret value references, or value itself when it
// is not a reference.
func (r *Resolver) ResolveValue(ctx context.Context, value string) (Secret, error) {
	if !strings.HasPrefix(value, refPrefix) {
		return Secret(value), nil
	}
	name, ref, ok := ParseSecretRef(value)
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrInvalidRef, value)
	}
	p, ok := r.providers[name]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownProvider, name)
	}
	return p.Resolve(ctx, ref)
}

const refPrefix = "secretref:"

// ParseSecretRef parses a full secret reference of the form:
//
//	secretref:<provider>:<ref>
func ParseSecretRef(value string) (provider string, ref string, ok bool) {
	rest, found := strings.CutPrefix(value, refPrefix)
	if !found {
		return "", "", false
	}
	provider, ref, ok = strings.Cut(rest, ":")
	if !ok || provider == "" || ref == "" {
		return "", "", false
	}
	return provider, ref, true
}

var _ Provider = KeyringProvider{}
