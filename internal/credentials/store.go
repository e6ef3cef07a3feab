// Package credentials stores the OAuth client id and secret, preferring the
// system keychain. Environment variables override stored values at read time.
package credentials

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/gofrs/flock"
	"github.com/zalando/go-keyring"
)

const (
	serviceName     = "ivsctl"
	clientIDKey     = "client_id"
	clientSecretKey = "client_secret"

	// Env vars take priority over any stored value.
	envClientID     = "IVS_CLIENT_ID"
	envClientSecret = "IVS_CLIENT_SECRET"
)

// Store handles credential storage.
type Store struct {
	useKeyring  bool
	fallbackDir string

	mu        sync.Mutex
	listeners []func()
}

// NewStore creates a credential store rooted at fallbackDir for systems
// without a usable keychain.
func NewStore(fallbackDir string) *Store {
	// Skip keyring for tests or when explicitly disabled
	if os.Getenv("IVSCTL_NO_KEYRING") != "" {
		return &Store{useKeyring: false, fallbackDir: fallbackDir}
	}

	// Test if keyring is available
	testKey := "ivsctl::test"
	err := keyring.Set(serviceName, testKey, "test")
	if err == nil {
		_ = keyring.Delete(serviceName, testKey) // Best-effort cleanup
		return &Store{useKeyring: true, fallbackDir: fallbackDir}
	}
	fmt.Fprintf(os.Stderr, "warning: system keyring unavailable, credentials stored in plaintext at %s\n",
		filepath.Join(fallbackDir, "credentials.json"))
	return &Store{useKeyring: false, fallbackDir: fallbackDir}
}

// OnChange registers a listener invoked after every successful mutation.
// The token manager registers one to drop its cached tokens.
func (s *Store) OnChange(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

func (s *Store) notify() {
	s.mu.Lock()
	listeners := make([]func(), len(s.listeners))
	copy(listeners, s.listeners)
	s.mu.Unlock()
	for _, fn := range listeners {
		fn()
	}
}

// Set persists the client id and secret, trimming surrounding whitespace.
// Returns false on storage failure so callers can degrade gracefully.
func (s *Store) Set(clientID, clientSecret string) bool {
	clientID = strings.TrimSpace(clientID)
	clientSecret = strings.TrimSpace(clientSecret)

	var err error
	if s.useKeyring {
		if err = keyring.Set(serviceName, clientIDKey, clientID); err == nil {
			err = keyring.Set(serviceName, clientSecretKey, clientSecret)
		}
	} else {
		err = s.saveToFile(clientID, clientSecret)
	}
	if err != nil {
		slog.Error("failed to save credentials", "err", err)
		return false
	}

	s.notify()
	return true
}

// Get returns the client id and secret. Environment variables win over the
// stored values; missing values are returned as empty strings, never errors.
func (s *Store) Get() (clientID, clientSecret string) {
	clientID = os.Getenv(envClientID)
	clientSecret = os.Getenv(envClientSecret)
	if clientID != "" && clientSecret != "" {
		return clientID, clientSecret
	}

	storedID, storedSecret := s.stored()
	if clientID == "" {
		clientID = storedID
	}
	if clientSecret == "" {
		clientSecret = storedSecret
	}
	return clientID, clientSecret
}

// HasCredentials reports whether both the client id and secret are available.
func (s *Store) HasCredentials() bool {
	id, secret := s.Get()
	return id != "" && secret != ""
}

// Clear removes stored credentials. Idempotent: a missing entry is not an
// error. Does not touch environment variables.
func (s *Store) Clear() {
	if s.useKeyring {
		if err := keyring.Delete(serviceName, clientIDKey); err != nil {
			slog.Debug("could not clear client id from keyring", "err", err)
		}
		if err := keyring.Delete(serviceName, clientSecretKey); err != nil {
			slog.Debug("could not clear client secret from keyring", "err", err)
		}
	} else {
		if err := os.Remove(s.credentialsPath()); err != nil && !os.IsNotExist(err) {
			slog.Debug("could not remove credentials file", "err", err)
		}
	}

	s.notify()
}

// UsingKeyring returns true if the store is using the system keyring.
func (s *Store) UsingKeyring() bool {
	return s.useKeyring
}

func (s *Store) stored() (string, string) {
	if s.useKeyring {
		id, err := keyring.Get(serviceName, clientIDKey)
		if err != nil {
			slog.Debug("could not load client id from keyring", "err", err)
		}
		secret, err := keyring.Get(serviceName, clientSecretKey)
		if err != nil {
			slog.Debug("could not load client secret from keyring", "err", err)
		}
		return id, secret
	}
	return s.loadFromFile()
}

// File fallback

type fileCredentials struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
}

func (s *Store) credentialsPath() string {
	return filepath.Join(s.fallbackDir, "credentials.json")
}

func (s *Store) lockPath() string {
	return filepath.Join(s.fallbackDir, "credentials.lock")
}

func (s *Store) loadFromFile() (string, string) {
	data, err := os.ReadFile(s.credentialsPath())
	if err != nil {
		return "", ""
	}
	var creds fileCredentials
	if err := json.Unmarshal(data, &creds); err != nil {
		slog.Debug("invalid credentials file", "err", err)
		return "", ""
	}
	return creds.ClientID, creds.ClientSecret
}

func (s *Store) saveToFile(clientID, clientSecret string) error {
	if err := os.MkdirAll(s.fallbackDir, 0700); err != nil {
		return err
	}

	// Serialize concurrent CLI invocations writing the same file.
	lock := flock.New(s.lockPath())
	if err := lock.Lock(); err != nil {
		return err
	}
	defer func() { _ = lock.Unlock() }()

	data, err := json.MarshalIndent(fileCredentials{
		ClientID:     clientID,
		ClientSecret: clientSecret,
	}, "", "  ")
	if err != nil {
		return err
	}

	// Atomic write with randomized temp file name
	tmpFile, err := os.CreateTemp(s.fallbackDir, "credentials-*.json.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmpFile.Name()

	if _, err := tmpFile.Write(data); err != nil {
		tmpFile.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmpFile.Chmod(0600); err != nil {
		tmpFile.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmpFile.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}
	// Unix: rename atomically replaces the destination.
	// Windows: rename fails when destination exists; remove and retry there.
	destPath := s.credentialsPath()
	if err := os.Rename(tmpPath, destPath); err != nil {
		if runtime.GOOS == "windows" {
			_ = os.Remove(destPath)
			return os.Rename(tmpPath, destPath)
		}
		os.Remove(tmpPath) // Clean up stale temp on failure
		return err
	}
	return nil
}
