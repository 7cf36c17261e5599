package auth

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"

	"github.com/AleksTheDev/snacker/internal/session"
)

const (
	service = "snacker-cli"
)

// getKeyringKey returns a unique key for storing the session per project
func getKeyringKey(projectRef string) string {
	return fmt.Sprintf("session-%s", projectRef)
}

// KeyringStore persists sessions in the OS keychain/credential manager
type KeyringStore struct{}

// Default is the store used by the CLI
var Default = &KeyringStore{}

// SaveSession persists the session as JSON in the OS keychain
func (k *KeyringStore) SaveSession(projectRef string, s *session.Session) error {
	if s == nil {
		return k.DeleteSession(projectRef)
	}

	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	if err := keyring.Set(service, getKeyringKey(projectRef), string(data)); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

// LoadSession retrieves the session from the OS keychain. A missing entry
// is not an error.
func (k *KeyringStore) LoadSession(projectRef string) (*session.Session, error) {
	data, err := keyring.Get(service, getKeyringKey(projectRef))
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	var s session.Session
	if err := json.Unmarshal([]byte(data), &s); err != nil {
		return nil, fmt.Errorf("failed to parse stored session: %w", err)
	}
	return &s, nil
}

// DeleteSession removes the session from the OS keychain
func (k *KeyringStore) DeleteSession(projectRef string) error {
	if err := keyring.Delete(service, getKeyringKey(projectRef)); err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return nil // Already deleted
		}
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}
