// ABOUTME: Session token lookup from environment, OS keyring and token file
// ABOUTME: login/logout write the keyring; the env var and file are read-only sources

package credential

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/99designs/keyring"
)

const (
	// ServiceName is the keyring service the token is stored under.
	ServiceName = "house-notify"
	// TokenKey is the keyring item key for the session token.
	TokenKey = "token"
	// EnvToken overrides every other source.
	EnvToken = "HOUSE_NOTIFY_TOKEN"
)

// ErrNoToken is returned when no source holds a token.
var ErrNoToken = errors.New("no token configured")

// Source names where a token was found.
type Source string

const (
	SourceEnv     Source = "env"
	SourceKeyring Source = "keyring"
	SourceFile    Source = "file"
)

// DefaultDir returns $XDG_CONFIG_HOME/house-notify, or ~/.config/house-notify.
func DefaultDir() string {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return filepath.Join(".config", ServiceName)
		}
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, ServiceName)
}

// OpenKeyring opens the OS keyring, falling back to an encrypted file
// keyring under dir.
func OpenKeyring(dir string) (keyring.Keyring, error) {
	ring, err := keyring.Open(keyring.Config{
		ServiceName: ServiceName,
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.SecretServiceBackend,
			keyring.WinCredBackend,
			keyring.PassBackend,
			keyring.FileBackend,
		},
		FileDir:                  filepath.Join(dir, "credentials"),
		FilePasswordFunc:         keyring.FixedStringPrompt(ServiceName + "-file-key"),
		KeychainTrustApplication: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening keyring: %w", err)
	}
	return ring, nil
}

// Store resolves and persists the session token. A nil keyring disables
// the keyring source.
type Store struct {
	ring      keyring.Keyring
	tokenFile string
	getenv    func(string) string
}

// NewStore creates a Store. tokenFile may be empty to skip the file source.
func NewStore(ring keyring.Keyring, tokenFile string) *Store {
	return &Store{ring: ring, tokenFile: tokenFile, getenv: os.Getenv}
}

// Resolve returns the first token found, in order: environment, keyring,
// token file.
func (s *Store) Resolve() (string, Source, error) {
	if tok := strings.TrimSpace(s.getenv(EnvToken)); tok != "" {
		return tok, SourceEnv, nil
	}

	if s.ring != nil {
		item, err := s.ring.Get(TokenKey)
		switch {
		case err == nil:
			if tok := strings.TrimSpace(string(item.Data)); tok != "" {
				return tok, SourceKeyring, nil
			}
		case !errors.Is(err, keyring.ErrKeyNotFound):
			return "", "", fmt.Errorf("getting credential %q: %w", TokenKey, err)
		}
	}

	if s.tokenFile != "" {
		data, err := os.ReadFile(s.tokenFile)
		switch {
		case err == nil:
			if tok := strings.TrimSpace(string(data)); tok != "" {
				return tok, SourceFile, nil
			}
		case !errors.Is(err, os.ErrNotExist):
			return "", "", fmt.Errorf("reading token file: %w", err)
		}
	}

	return "", "", ErrNoToken
}

// Set stores token in the keyring.
func (s *Store) Set(token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return errors.New("token is empty")
	}
	if s.ring == nil {
		return errors.New("no keyring available")
	}
	err := s.ring.Set(keyring.Item{
		Key:   TokenKey,
		Data:  []byte(token),
		Label: ServiceName + " session token",
	})
	if err != nil {
		return fmt.Errorf("setting credential %q: %w", TokenKey, err)
	}
	return nil
}

// Delete removes the token from the keyring. Deleting a missing token is
// not an error.
func (s *Store) Delete() error {
	if s.ring == nil {
		return nil
	}
	if err := s.ring.Remove(TokenKey); err != nil && !errors.Is(err, keyring.ErrKeyNotFound) {
		return fmt.Errorf("deleting credential %q: %w", TokenKey, err)
	}
	return nil
}
