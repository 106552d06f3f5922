package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// Subscriptions maps feed identifiers to watermarks (UTC epoch seconds) while
// preserving insertion order. Sync cycles iterate subscriptions in the order
// they were tracked, and the on-disk JSON object keeps the same key order, so
// the mapping round-trips without reshuffling.
type Subscriptions struct {
	order []string
	marks map[string]int64
}

// NewSubscriptions returns an empty subscription set
func NewSubscriptions() *Subscriptions {
	return &Subscriptions{marks: make(map[string]int64)}
}

// Len returns the number of tracked feeds
func (s *Subscriptions) Len() int {
	return len(s.order)
}

// Has reports whether feedID is tracked. Matching is case-sensitive and exact.
func (s *Subscriptions) Has(feedID string) bool {
	_, ok := s.marks[feedID]
	return ok
}

// Watermark returns the stored watermark for feedID
func (s *Subscriptions) Watermark(feedID string) (time.Time, bool) {
	ts, ok := s.marks[feedID]
	if !ok {
		return time.Time{}, false
	}
	return time.Unix(ts, 0).UTC(), true
}

// Set stores a watermark for feedID, appending it to the iteration order if
// it is not yet tracked
func (s *Subscriptions) Set(feedID string, watermark time.Time) {
	if _, ok := s.marks[feedID]; !ok {
		s.order = append(s.order, feedID)
	}
	s.marks[feedID] = watermark.UTC().Unix()
}

// Delete removes feedID from the set
func (s *Subscriptions) Delete(feedID string) bool {
	if _, ok := s.marks[feedID]; !ok {
		return false
	}
	delete(s.marks, feedID)
	for i, id := range s.order {
		if id == feedID {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return true
}

// FeedIDs returns the tracked feed identifiers in insertion order
func (s *Subscriptions) FeedIDs() []string {
	ids := make([]string, len(s.order))
	copy(ids, s.order)
	return ids
}

// MarshalJSON encodes the set as a JSON object with keys in insertion order
func (s *Subscriptions) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, id := range s.order {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(id)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		fmt.Fprintf(&buf, "%d", s.marks[id])
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a JSON object, recording keys in document order
func (s *Subscriptions) UnmarshalJSON(data []byte) error {
	s.order = nil
	s.marks = make(map[string]int64)

	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("subscriptions: expected JSON object, got %v", tok)
	}

	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("subscriptions: expected string key, got %v", keyTok)
		}
		var mark int64
		if err := dec.Decode(&mark); err != nil {
			return fmt.Errorf("subscriptions: invalid watermark for %q: %w", key, err)
		}
		if _, exists := s.marks[key]; !exists {
			s.order = append(s.order, key)
		}
		s.marks[key] = mark
	}

	// consume the closing brace
	if _, err := dec.Token(); err != nil {
		return err
	}
	return nil
}
