package feed

import (
	"context"
	"sort"
	"time"
)

const (
	// DefaultWindow is the lookahead window size used to tolerate
	// near-simultaneous posts arriving slightly out of order at the
	// head of a feed
	DefaultWindow = 4

	// DefaultPullDelay is the pause between consecutive item pulls,
	// a cooperative pacing contract with the feed source
	DefaultPullDelay = 300 * time.Millisecond
)

// Selector implements watermark-based new-item selection over a lazy feed.
//
// The feed source is assumed reverse-chronological but not strictly ordered:
// posts published within moments of each other may arrive swapped. The
// selector therefore buffers a lookahead window, sorts it by publish time,
// and only then evaluates the watermark boundary. Past the window the dense
// near-simultaneous region is behind us and a single-item lookback suffices.
type Selector struct {
	window int
	delay  time.Duration
}

// NewSelector creates a selector with the given lookahead window and
// inter-pull delay. Non-positive arguments fall back to the defaults.
func NewSelector(window int, delay time.Duration) *Selector {
	if window <= 0 {
		window = DefaultWindow
	}
	if delay <= 0 {
		delay = DefaultPullDelay
	}
	return &Selector{window: window, delay: delay}
}

// SelectNew returns the items published strictly after since, newest-first,
// without materializing the rest of the feed.
//
// When since is nil (first-ever check of a subscription) only the single
// newest item is returned, so a fresh subscription is not flooded with
// history. An exhausted feed with nothing buffered is an *Error of kind
// KindEmpty when since is nil, and a plain empty result otherwise.
func (s *Selector) SelectNew(ctx context.Context, feedID string, it Iterator, since *time.Time) ([]Item, error) {
	var buf []Item
	for {
		item, err := it.Next(ctx)
		if err != nil {
			return nil, err
		}
		if item == nil {
			break
		}
		buf = append(buf, *item)

		if len(buf) == s.window {
			sort.SliceStable(buf, func(i, j int) bool {
				return buf[i].Posted.After(buf[j].Posted)
			})

			if since == nil {
				return buf[:1], nil
			}

			// The window is now time-ordered, so the first item older
			// than the watermark is a confirmed boundary.
			for i := range buf {
				if buf[i].Posted.Before(*since) {
					return buf[:i], nil
				}
			}
		}

		if len(buf) > s.window && since != nil && item.Posted.Before(*since) {
			return buf[:len(buf)-1], nil
		}

		if err := sleep(ctx, s.delay); err != nil {
			return nil, err
		}
	}

	if len(buf) == 0 {
		if since == nil {
			return nil, EmptyError(feedID)
		}
		return nil, nil
	}
	return buf, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
