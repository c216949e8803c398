package secret

import (
	"context"
	"errors"
)

// Sentinel errors for secret operations.
var (
	ErrPasswordMismatch = errors.New("secret: passwords did not match")
	ErrEmptyPassword    = errors.New("secret: password is empty")
	ErrInvalidRef       = errors.New("secret: invalid secret reference")
	ErrUnknownProvider  = errors.New("secret: provider is not registered")
	ErrNotFound         = errors.New("secret: not found")
)

// Secret is a credential value. It prints as [REDACTED].
type Secret string

// String implements fmt.Stringer.
func (Secret) String() string { return "[REDACTED]" }

// GoString implements fmt.GoStringer.
func (Secret) GoString() string { return "secret.Secret([REDACTED])" }

// Reveal returns the raw value.
func (s Secret) Reveal() string { return string(s) }

// Keyring is a credential store addressed by service and user.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: GetSecret returns ("", false, nil) when nothing is stored.
type Keyring interface {
	GetSecret(ctx context.Context, service, user string) (Secret, bool, error)
	SetSecret(ctx context.Context, service, user string, value Secret) error
}
