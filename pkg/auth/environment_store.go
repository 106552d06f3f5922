package auth

import (
	"os"
	"time"
)

// EnvironmentStore reads session cookies from environment variables. It is
// read-only and always reports the default label.
type EnvironmentStore struct{}

func NewEnvironmentStore() *EnvironmentStore {
	return &EnvironmentStore{}
}

// Store is not supported for environment variables
func (e *EnvironmentStore) Store(session *Session) error {
	return ErrStoreUnavailable
}

func (e *EnvironmentStore) Retrieve(label string) (*Session, error) {
	sessionID := os.Getenv("IGTRACKER_SESSION_ID")
	csrfToken := os.Getenv("IGTRACKER_CSRF_TOKEN")
	userAgent := os.Getenv("IGTRACKER_USER_AGENT")

	if sessionID == "" {
		return nil, ErrSessionNotFound
	}
	if label == "" {
		label = DefaultLabel
	}

	return &Session{
		Label:        label,
		SessionID:    sessionID,
		CSRFToken:    csrfToken,
		UserAgent:    userAgent,
		LastModified: time.Now(),
	}, nil
}

func (e *EnvironmentStore) List() ([]*Session, error) {
	session, err := e.Retrieve("")
	if err != nil {
		return []*Session{}, nil
	}
	return []*Session{session}, nil
}

// Delete is not supported for environment variables
func (e *EnvironmentStore) Delete(label string) error {
	return ErrStoreUnavailable
}

func (e *EnvironmentStore) Exists(label string) bool {
	return os.Getenv("IGTRACKER_SESSION_ID") != ""
}
