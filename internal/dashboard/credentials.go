package dashboard

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

const credentialsFile = "credentials.yaml"

type credentials struct {
	Token   string    `yaml:"token"`
	Login   string    `yaml:"login,omitempty"`
	SavedAt time.Time `yaml:"saved_at"`
}

// CredentialStore keeps a single GitHub token on disk, readable only by the owner.
type CredentialStore struct {
	path string
}

func NewCredentialStore(path string) *CredentialStore {
	return &CredentialStore{path: path}
}

// DefaultCredentialStore uses $XDG_CONFIG_HOME/repo-insights/credentials.yaml.
func DefaultCredentialStore() (*CredentialStore, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve config directory: %w", err)
	}
	return NewCredentialStore(filepath.Join(dir, "repo-insights", credentialsFile)), nil
}

func (s *CredentialStore) Path() string {
	return s.path
}

// Load returns the stored token and login, or ErrNoCredential when nothing is stored.
func (s *CredentialStore) Load() (token, login string, err error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", "", ErrNoCredential
	}
	if err != nil {
		return "", "", fmt.Errorf("failed to read %s: %w", s.path, err)
	}

	var creds credentials
	if err := yaml.Unmarshal(data, &creds); err != nil {
		return "", "", fmt.Errorf("failed to parse %s: %w", s.path, err)
	}
	if creds.Token == "" {
		return "", "", ErrNoCredential
	}
	return creds.Token, creds.Login, nil
}

func (s *CredentialStore) Save(token, login string) error {
	if token == "" {
		return ErrNoCredential
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("failed to create %s: %w", filepath.Dir(s.path), err)
	}

	data, err := yaml.Marshal(credentials{Token: token, Login: login, SavedAt: time.Now().UTC()})
	if err != nil {
		return fmt.Errorf("failed to encode credentials: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write %s: %w", s.path, err)
	}
	// WriteFile keeps the mode of an existing file.
	return os.Chmod(s.path, 0o600)
}

// Clear removes the stored token. Clearing an empty store is not an error.
func (s *CredentialStore) Clear() error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to remove %s: %w", s.path, err)
	}
	return nil
}
