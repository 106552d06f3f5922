// Package store persists per-subscriber tracking state: the set of followed
// feeds with their watermarks and the per-subscriber busy flag guarding
// against overlapping sync cycles.
//
// The whole subscriber table lives in one JSON file. Every save rewrites the
// file through a temporary path and an atomic rename, so a crash mid-write
// never leaves a corrupt table behind. A store-level mutex serializes
// writers, which keeps concurrent cycles for different subscribers from
// clobbering each other's read-modify-write.
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"igtracker/pkg/logger"
)

// State is one subscriber's persisted entry
type State struct {
	Profiles *Subscriptions `json:"profiles"`
	Checking bool           `json:"checking"`
}

// NewState returns a fresh default state: no subscriptions, not checking
func NewState() *State {
	return &State{Profiles: NewSubscriptions()}
}

// Store is the subscriber table backed by a single JSON file
type Store struct {
	path   string
	mu     sync.Mutex
	logger logger.Logger
}

// New creates a store over the table file at path, creating the parent
// directory if needed. A missing file is an empty table, not an error.
func New(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create state directory: %w", err)
		}
	}
	return &Store{path: path, logger: logger.GetLogger()}, nil
}

// Load returns the state for subscriberID. Unknown subscribers get a fresh
// default state; storage is not mutated.
func (s *Store) Load(subscriberID string) (*State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	table, err := s.readTable()
	if err != nil {
		return nil, err
	}
	state, ok := table[subscriberID]
	if !ok {
		return NewState(), nil
	}
	if state.Profiles == nil {
		state.Profiles = NewSubscriptions()
	}
	return state, nil
}

// Save replaces subscriberID's entry in the table and rewrites the whole
// file atomically
func (s *Store) Save(subscriberID string, state *State) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	table, err := s.readTable()
	if err != nil {
		return err
	}
	table[subscriberID] = state
	if err := s.writeTable(table); err != nil {
		return err
	}

	s.logger.DebugWithFields("subscriber state saved", map[string]interface{}{
		"subscriber":    subscriberID,
		"subscriptions": state.Profiles.Len(),
		"checking":      state.Checking,
	})
	return nil
}

// TryBeginCheck raises subscriberID's busy flag as a single test-and-set
// under the store lock. It returns the subscriber's state and whether the
// flag was acquired; when the flag is already raised the table is left
// untouched.
func (s *Store) TryBeginCheck(subscriberID string) (*State, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	table, err := s.readTable()
	if err != nil {
		return nil, false, err
	}
	state, ok := table[subscriberID]
	if !ok {
		state = NewState()
	}
	if state.Profiles == nil {
		state.Profiles = NewSubscriptions()
	}
	if state.Checking {
		return state, false, nil
	}

	state.Checking = true
	table[subscriberID] = state
	if err := s.writeTable(table); err != nil {
		return nil, false, err
	}

	s.logger.DebugWithFields("busy flag raised", map[string]interface{}{
		"subscriber": subscriberID,
	})
	return state, true, nil
}

// Reconcile clears busy flags left set by a crashed process. No cycle
// survives a restart, so a flag still raised at startup is always stale.
// Returns the number of subscribers reset.
func (s *Store) Reconcile() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	table, err := s.readTable()
	if err != nil {
		return 0, err
	}

	reset := 0
	for id, state := range table {
		if state.Checking {
			state.Checking = false
			reset++
			s.logger.WarnWithFields("cleared stale busy flag", map[string]interface{}{
				"subscriber": id,
			})
		}
	}
	if reset == 0 {
		return 0, nil
	}
	if err := s.writeTable(table); err != nil {
		return 0, err
	}
	return reset, nil
}

func (s *Store) readTable() (map[string]*State, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return make(map[string]*State), nil
		}
		return nil, fmt.Errorf("failed to read state file: %w", err)
	}

	table := make(map[string]*State)
	if len(data) == 0 {
		return table, nil
	}
	if err := json.Unmarshal(data, &table); err != nil {
		return nil, fmt.Errorf("failed to decode state file: %w", err)
	}
	return table, nil
}

func (s *Store) writeTable(table map[string]*State) error {
	tempPath := s.path + ".tmp"
	file, err := os.Create(tempPath)
	if err != nil {
		return fmt.Errorf("failed to create temporary state file: %w", err)
	}

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(table); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to encode state file: %w", err)
	}

	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to sync state file: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to close state file: %w", err)
	}
	if err := os.Rename(tempPath, s.path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to replace state file: %w", err)
	}
	return nil
}
