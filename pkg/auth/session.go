// Package auth stores Instagram web session credentials across a chain of
// backends: the system keychain, an encrypted file, and environment
// variables as a read-only fallback.
package auth

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"
)

// DefaultLabel names the session used when none is specified
const DefaultLabel = "default"

// Session holds the cookies of an authenticated Instagram web session
type Session struct {
	Label        string    `json:"label"`
	SessionID    string    `json:"session_id"`
	CSRFToken    string    `json:"csrf_token"`
	UserAgent    string    `json:"user_agent,omitempty"`
	LastModified time.Time `json:"last_modified"`
}

// Store is a single credential backend
type Store interface {
	// Store saves a session under its label
	Store(session *Session) error

	// Retrieve gets the session with the given label
	Retrieve(label string) (*Session, error)

	// List returns all stored sessions
	List() ([]*Session, error)

	// Delete removes the session with the given label
	Delete(label string) error

	// Exists checks whether a session with the given label is stored
	Exists(label string) bool
}

var (
	ErrSessionNotFound  = errors.New("session not found")
	ErrInvalidSession   = errors.New("invalid session")
	ErrStoreUnavailable = errors.New("credential store unavailable")
)

// Manager chains credential backends with fallback
type Manager struct {
	stores []Store
}

// NewManager builds the default backend chain: keychain when available,
// encrypted file, then environment variables.
func NewManager() (*Manager, error) {
	var stores []Store

	if keyringStore, err := NewKeyringStore(); err == nil {
		stores = append(stores, keyringStore)
	}

	configDir, err := getConfigDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get config directory: %w", err)
	}

	encryptedStore, err := NewEncryptedFileStore(filepath.Join(configDir, "sessions.enc"))
	if err != nil {
		return nil, fmt.Errorf("failed to create encrypted store: %w", err)
	}
	stores = append(stores, encryptedStore)

	stores = append(stores, NewEnvironmentStore())

	return &Manager{stores: stores}, nil
}

// NewManagerWithStores builds a manager over an explicit backend chain
func NewManagerWithStores(stores ...Store) *Manager {
	return &Manager{stores: stores}
}

// Store saves the session in the first backend that accepts it
func (m *Manager) Store(session *Session) error {
	if session == nil || session.SessionID == "" {
		return ErrInvalidSession
	}
	if session.Label == "" {
		session.Label = DefaultLabel
	}
	session.LastModified = time.Now()

	var lastErr error
	for _, store := range m.stores {
		if err := store.Store(session); err == nil {
			return nil
		} else {
			lastErr = err
		}
	}

	if lastErr != nil {
		return fmt.Errorf("failed to store session: %w", lastErr)
	}
	return errors.New("no available credential stores")
}

// Retrieve gets the session from the first backend that has it
func (m *Manager) Retrieve(label string) (*Session, error) {
	for _, store := range m.stores {
		if session, err := store.Retrieve(label); err == nil && session != nil {
			return session, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, label)
}

// RetrieveDefault gets the default session, or the first one available
func (m *Manager) RetrieveDefault() (*Session, error) {
	if session, err := m.Retrieve(DefaultLabel); err == nil {
		return session, nil
	}

	sessions, err := m.List()
	if err == nil && len(sessions) > 0 {
		return sessions[0], nil
	}

	return nil, ErrSessionNotFound
}

// List merges sessions from all backends, keeping the most recently
// modified version of each label
func (m *Manager) List() ([]*Session, error) {
	byLabel := make(map[string]*Session)

	for _, store := range m.stores {
		sessions, err := store.List()
		if err != nil {
			continue
		}
		for _, session := range sessions {
			if existing, ok := byLabel[session.Label]; !ok || session.LastModified.After(existing.LastModified) {
				byLabel[session.Label] = session
			}
		}
	}

	var result []*Session
	for _, session := range byLabel {
		result = append(result, session)
	}
	return result, nil
}

// Delete removes the session from every backend that has it
func (m *Manager) Delete(label string) error {
	var deleted bool
	var lastErr error

	for _, store := range m.stores {
		if err := store.Delete(label); err == nil {
			deleted = true
		} else {
			lastErr = err
		}
	}

	if !deleted && lastErr != nil {
		return fmt.Errorf("failed to delete session: %w", lastErr)
	}
	if !deleted {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, label)
	}
	return nil
}

// Sanitize returns a copy of the session with cookie values masked
func Sanitize(session *Session) *Session {
	if session == nil {
		return nil
	}
	return &Session{
		Label:        session.Label,
		SessionID:    maskString(session.SessionID),
		CSRFToken:    maskString(session.CSRFToken),
		UserAgent:    session.UserAgent,
		LastModified: session.LastModified,
	}
}

func maskString(s string) string {
	if len(s) <= 8 {
		return "********"
	}
	return s[:4] + "..." + s[len(s)-4:]
}

func getConfigDir() (string, error) {
	var configDir string

	switch runtime.GOOS {
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		configDir = filepath.Join(home, "Library", "Application Support", "igtracker")
	case "windows":
		configDir = filepath.Join(os.Getenv("APPDATA"), "igtracker")
	default:
		if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
			configDir = filepath.Join(xdgConfig, "igtracker")
		} else {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			configDir = filepath.Join(home, ".config", "igtracker")
		}
	}

	if err := os.MkdirAll(configDir, 0700); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}
	return configDir, nil
}
