package secret

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/zalando/go-keyring"
)

// SystemKeyring stores secrets in the operating system keyring: the Secret
// Service on Linux, Keychain on macOS and the Credential Manager on Windows.
type SystemKeyring struct{}

// NewSystemKeyring returns the OS keyring.
func NewSystemKeyring() *SystemKeyring {
	return &SystemKeyring{}
}

// GetSecret implements Keyring.
func (*SystemKeyring) GetSecret(ctx context.Context, service, user string) (Secret, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	v, err := keyring.Get(service, user)
	if errors.Is(err, keyring.ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("secret: keyring get %s/%s: %w", service, user, err)
	}
	return Secret(v), true, nil
}

// SetSecret implements Keyring.
func (*SystemKeyring) SetSecret(ctx context.Context, service, user string, value Secret) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := keyring.Set(service, user, value.Reveal()); err != nil {
		return fmt.Errorf("secret: keyring set %s/%s: %w", service, user, err)
	}
	return nil
}

// MemoryKeyring is a process-local Keyring.
type MemoryKeyring struct {
	mu      sync.RWMutex
	secrets map[string]Secret
}

// NewMemoryKeyring returns an empty keyring.
func NewMemoryKeyring() *MemoryKeyring {
	return &MemoryKeyring{secrets: make(map[string]Secret)}
}

func (k *MemoryKeyring) GetSecret(_ context.Context, service, user string) (Secret, bool, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	v, ok := k.secrets[service+"\x00"+user]
	return v, ok, nil
}

func (k *MemoryKeyring) SetSecret(_ context.Context, service, user string, value Secret) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.secrets[service+"\x00"+user] = value
	return nil
}

var (
	_ Keyring = (*SystemKeyring)(nil)
	_ Keyring = (*MemoryKeyring)(nil)
)
