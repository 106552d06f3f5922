package feed

import "context"

// Source produces lazy, reverse-chronological feeds by identifier.
//
// Fetch must fail fast with a *Error of kind KindNotFound when the identifier
// does not resolve and KindUnavailable when access is denied. An existing but
// empty feed is a valid Source result: Fetch succeeds and the iterator is
// exhausted immediately.
type Source interface {
	Fetch(ctx context.Context, feedID string) (Iterator, error)
}

// Iterator yields feed items newest-first, one at a time. Next returns
// (nil, nil) once the feed is exhausted. Iterators are not resumable:
// restarting a scan means calling Source.Fetch again.
type Iterator interface {
	Next(ctx context.Context) (*Item, error)
}

// SliceIterator adapts an in-memory item slice to the Iterator interface
type SliceIterator struct {
	items []Item
	pos   int
}

// NewSliceIterator returns an iterator over items in the given order
func NewSliceIterator(items []Item) *SliceIterator {
	return &SliceIterator{items: items}
}

func (s *SliceIterator) Next(ctx context.Context) (*Item, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.pos >= len(s.items) {
		return nil, nil
	}
	item := s.items[s.pos]
	s.pos++
	return &item, nil
}
