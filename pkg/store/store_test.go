package store

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "data.json"))
	require.NoError(t, err)
	return s
}

func TestLoadUnknownSubscriberReturnsDefault(t *testing.T) {
	s := newTestStore(t)

	state, err := s.Load("12345")
	require.NoError(t, err)
	assert.Equal(t, 0, state.Profiles.Len())
	assert.False(t, state.Checking)

	// the miss must not create the file
	_, err = os.Stat(s.path)
	assert.True(t, os.IsNotExist(err))
}

func TestSaveLoadRoundTrip(t *testing.T) {
	s := newTestStore(t)

	state := NewState()
	state.Profiles.Set("natgeo", time.Unix(1700000000, 0))
	state.Profiles.Set("nasa", time.Unix(1700000100, 0))
	state.Checking = true
	require.NoError(t, s.Save("12345", state))

	loaded, err := s.Load("12345")
	require.NoError(t, err)
	assert.True(t, loaded.Checking)
	assert.Equal(t, []string{"natgeo", "nasa"}, loaded.Profiles.FeedIDs())

	mark, ok := loaded.Profiles.Watermark("natgeo")
	require.True(t, ok)
	assert.Equal(t, int64(1700000000), mark.Unix())
}

func TestSavePreservesOtherSubscribers(t *testing.T) {
	s := newTestStore(t)

	first := NewState()
	first.Profiles.Set("natgeo", time.Unix(1700000000, 0))
	require.NoError(t, s.Save("111", first))

	second := NewState()
	second.Profiles.Set("nasa", time.Unix(1700000100, 0))
	require.NoError(t, s.Save("222", second))

	loaded, err := s.Load("111")
	require.NoError(t, err)
	assert.True(t, loaded.Profiles.Has("natgeo"))
}

func TestSaveIsAtomic(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Save("111", NewState()))

	// the temporary file must not linger after a successful save
	_, err := os.Stat(s.path + ".tmp")
	assert.True(t, os.IsNotExist(err))

	// and the table on disk is valid JSON
	data, err := os.ReadFile(s.path)
	require.NoError(t, err)
	var table map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &table))
}

func TestConcurrentSavesDoNotCorruptTable(t *testing.T) {
	s := newTestStore(t)

	var wg sync.WaitGroup
	ids := []string{"111", "222", "333", "444"}
	for _, id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			state := NewState()
			state.Profiles.Set("profile_"+id, time.Unix(1700000000, 0))
			for i := 0; i < 10; i++ {
				assert.NoError(t, s.Save(id, state))
			}
		}(id)
	}
	wg.Wait()

	for _, id := range ids {
		loaded, err := s.Load(id)
		require.NoError(t, err)
		assert.True(t, loaded.Profiles.Has("profile_"+id), "subscriber %s lost its entry", id)
	}
}

func TestReconcileClearsStaleBusyFlags(t *testing.T) {
	s := newTestStore(t)

	stuck := NewState()
	stuck.Checking = true
	require.NoError(t, s.Save("111", stuck))

	clean := NewState()
	require.NoError(t, s.Save("222", clean))

	reset, err := s.Reconcile()
	require.NoError(t, err)
	assert.Equal(t, 1, reset)

	loaded, err := s.Load("111")
	require.NoError(t, err)
	assert.False(t, loaded.Checking)
}

func TestReconcileNoopWhenClean(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Save("111", NewState()))

	reset, err := s.Reconcile()
	require.NoError(t, err)
	assert.Zero(t, reset)
}

func TestLoadCorruptFileFails(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, os.WriteFile(s.path, []byte("{not json"), 0644))

	_, err := s.Load("111")
	assert.Error(t, err)
}

func TestTryBeginCheckRaisesFlag(t *testing.T) {
	s := newTestStore(t)

	state := NewState()
	state.Profiles.Set("natgeo", time.Unix(1700000000, 0))
	require.NoError(t, s.Save("111", state))

	got, acquired, err := s.TryBeginCheck("111")
	require.NoError(t, err)
	assert.True(t, acquired)
	assert.True(t, got.Checking)
	assert.Equal(t, 1, got.Profiles.Len())

	// the raised flag is persisted
	loaded, err := s.Load("111")
	require.NoError(t, err)
	assert.True(t, loaded.Checking)
}

func TestTryBeginCheckRejectsWhenRaised(t *testing.T) {
	s := newTestStore(t)

	_, acquired, err := s.TryBeginCheck("111")
	require.NoError(t, err)
	require.True(t, acquired)

	state, acquired, err := s.TryBeginCheck("111")
	require.NoError(t, err)
	assert.False(t, acquired)
	assert.True(t, state.Checking)
}

func TestTryBeginCheckReacquirableAfterClear(t *testing.T) {
	s := newTestStore(t)

	state, acquired, err := s.TryBeginCheck("111")
	require.NoError(t, err)
	require.True(t, acquired)

	state.Checking = false
	require.NoError(t, s.Save("111", state))

	_, acquired, err = s.TryBeginCheck("111")
	require.NoError(t, err)
	assert.True(t, acquired)
}

func TestTryBeginCheckConcurrentSingleWinner(t *testing.T) {
	s := newTestStore(t)

	const contenders = 8
	var wg sync.WaitGroup
	acquisitions := make(chan bool, contenders)

	wg.Add(contenders)
	for i := 0; i < contenders; i++ {
		go func() {
			defer wg.Done()
			_, acquired, err := s.TryBeginCheck("111")
			assert.NoError(t, err)
			acquisitions <- acquired
		}()
	}
	wg.Wait()
	close(acquisitions)

	winners := 0
	for acquired := range acquisitions {
		if acquired {
			winners++
		}
	}
	assert.Equal(t, 1, winners, "exactly one contender may raise the flag")
}
