package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSession(label string) *Session {
	return &Session{
		Label:     label,
		SessionID: "69123456789%3Aabcdefghij%3A12",
		CSRFToken: "mBvQoqSYYUgTG7AJ9DSl",
		UserAgent: "Mozilla/5.0 (TestAgent)",
	}
}

func TestManagerStoreAndRetrieve(t *testing.T) {
	store := NewMemoryStore()
	manager := NewManagerWithStores(store)

	require.NoError(t, manager.Store(testSession("default")))

	retrieved, err := manager.Retrieve("default")
	require.NoError(t, err)
	assert.Equal(t, "69123456789%3Aabcdefghij%3A12", retrieved.SessionID)
	assert.Equal(t, "mBvQoqSYYUgTG7AJ9DSl", retrieved.CSRFToken)
	assert.False(t, retrieved.LastModified.IsZero())
}

func TestManagerRejectsEmptySession(t *testing.T) {
	manager := NewManagerWithStores(NewMemoryStore())

	err := manager.Store(&Session{Label: "default"})

	assert.ErrorIs(t, err, ErrInvalidSession)
}

func TestManagerDefaultsLabel(t *testing.T) {
	store := NewMemoryStore()
	manager := NewManagerWithStores(store)

	session := testSession("")
	require.NoError(t, manager.Store(session))

	assert.True(t, store.Exists(DefaultLabel))
}

func TestManagerFallsBackToNextStore(t *testing.T) {
	broken := NewMemoryStore()
	broken.StoreError = errors.New("keychain locked")
	broken.RetrieveError = errors.New("keychain locked")
	working := NewMemoryStore()
	manager := NewManagerWithStores(broken, working)

	require.NoError(t, manager.Store(testSession("default")))
	assert.True(t, working.Exists("default"))

	retrieved, err := manager.Retrieve("default")
	require.NoError(t, err)
	assert.Equal(t, "default", retrieved.Label)
}

func TestManagerRetrieveDefaultPicksFirstAvailable(t *testing.T) {
	store := NewMemoryStore()
	manager := NewManagerWithStores(store)

	require.NoError(t, manager.Store(testSession("work")))

	retrieved, err := manager.RetrieveDefault()
	require.NoError(t, err)
	assert.Equal(t, "work", retrieved.Label)
}

func TestManagerListPrefersNewest(t *testing.T) {
	older := NewMemoryStore()
	newer := NewMemoryStore()

	old := testSession("default")
	old.SessionID = "old_session_value_123"
	old.LastModified = time.Now().Add(-time.Hour)
	require.NoError(t, older.Store(old))

	fresh := testSession("default")
	fresh.SessionID = "new_session_value_456"
	fresh.LastModified = time.Now()
	require.NoError(t, newer.Store(fresh))

	manager := NewManagerWithStores(older, newer)
	sessions, err := manager.List()
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, "new_session_value_456", sessions[0].SessionID)
}

func TestManagerDelete(t *testing.T) {
	store := NewMemoryStore()
	manager := NewManagerWithStores(store)

	require.NoError(t, manager.Store(testSession("default")))
	require.NoError(t, manager.Delete("default"))

	_, err := manager.Retrieve("default")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestManagerDeleteUnknown(t *testing.T) {
	manager := NewManagerWithStores(NewMemoryStore())

	err := manager.Delete("nope")

	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestSanitizeMasksCookies(t *testing.T) {
	session := testSession("default")

	masked := Sanitize(session)

	assert.Equal(t, "6912...3A12", masked.SessionID)
	assert.Equal(t, "mBvQ...9DSl", masked.CSRFToken)
	assert.NotEqual(t, session.SessionID, masked.SessionID)
}

func TestSanitizeShortValue(t *testing.T) {
	masked := Sanitize(&Session{Label: "default", SessionID: "short", CSRFToken: "x"})

	assert.Equal(t, "********", masked.SessionID)
	assert.Equal(t, "********", masked.CSRFToken)
}
