// Package checker drives sync cycles: one full pass over a subscriber's
// subscriptions, fetching new items for each and delivering them in order.
package checker

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"igtracker/pkg/feed"
	"igtracker/pkg/logger"
	"igtracker/pkg/store"
)

const (
	// DefaultPacingBase is the base pause between two subscription checks
	// within one cycle
	DefaultPacingBase = 60 * time.Second
	// DefaultPacingJitter randomizes the pause to base ± jitter
	DefaultPacingJitter = 20 * time.Second
)

// Storage is the slice of the subscription store the checker needs.
// TryBeginCheck must be an atomic test-and-set of the busy flag.
type Storage interface {
	Load(subscriberID string) (*store.State, error)
	Save(subscriberID string, state *store.State) error
	TryBeginCheck(subscriberID string) (*store.State, bool, error)
}

// Dispatcher delivers rendered output to a subscriber. Both methods are
// synchronous: the checker waits for each delivery before moving on, so a
// failed delivery is detected and the watermark stays put. Text may contain
// Telegram HTML markup.
type Dispatcher interface {
	SendText(ctx context.Context, subscriberID string, text string) error
	SendItem(ctx context.Context, subscriberID string, item feed.Item) error
}

// Options tunes a Checker. Zero values fall back to the defaults.
type Options struct {
	// Window is the selector lookahead window size
	Window int
	// PullDelay is the pause between consecutive item pulls from a feed
	PullDelay time.Duration
	// PacingBase and PacingJitter shape the randomized pause between
	// subscription checks: base ± jitter
	PacingBase   time.Duration
	PacingJitter time.Duration
}

// Checker runs sync cycles for subscribers. A cycle is serialized per
// subscriber by the persisted busy flag; cycles for different subscribers
// may run concurrently against the shared store.
type Checker struct {
	store      Storage
	source     feed.Source
	dispatcher Dispatcher
	selector   *feed.Selector
	logger     logger.Logger

	pacingBase   time.Duration
	pacingJitter time.Duration

	// overridable in tests
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
	randn func(n int64) int64
}

// New creates a checker over the given store, feed source and dispatcher
func New(storage Storage, source feed.Source, dispatcher Dispatcher, opts Options) *Checker {
	if opts.PacingBase <= 0 {
		opts.PacingBase = DefaultPacingBase
	}
	if opts.PacingJitter < 0 || opts.PacingJitter > opts.PacingBase {
		opts.PacingJitter = DefaultPacingJitter
	}
	return &Checker{
		store:        storage,
		source:       source,
		dispatcher:   dispatcher,
		selector:     feed.NewSelector(opts.Window, opts.PullDelay),
		logger:       logger.GetLogger(),
		pacingBase:   opts.PacingBase,
		pacingJitter: opts.PacingJitter,
		now:          time.Now,
		sleep:        defaultSleep,
		randn:        rand.Int63n,
	}
}

// RunCheck executes one sync cycle for subscriberID.
//
// The cycle raises the busy flag first, walks the subscriptions in insertion
// order, persists each updated watermark immediately, and clears the flag at
// the end no matter how many individual subscriptions failed. Only storage
// errors at the cycle boundaries are fatal; per-subscription failures are
// reported to the subscriber and absorbed.
func (c *Checker) RunCheck(ctx context.Context, subscriberID string) error {
	log := c.logger.WithField("subscriber", subscriberID)

	state, err := c.store.Load(subscriberID)
	if err != nil {
		log.WithError(err).Error("failed to load subscriber state")
		return fmt.Errorf("failed to load subscriber state: %w", err)
	}

	if state.Profiles.Len() == 0 {
		c.notify(ctx, subscriberID, "You don't have any subscriptions yet")
		return nil
	}

	// raising the flag is a single test-and-set inside the store: concurrent
	// cycles for the same subscriber race here and exactly one acquires
	state, acquired, err := c.store.TryBeginCheck(subscriberID)
	if err != nil {
		log.WithError(err).Error("failed to persist busy flag")
		return fmt.Errorf("failed to persist busy flag: %w", err)
	}
	if !acquired {
		log.Warn("check already in progress")
		c.notify(ctx, subscriberID, "You can't run two checks simultaneously")
		return nil
	}

	c.notify(ctx, subscriberID, "Fetching posts (be patient, it might take a while) ...")

	feedIDs := state.Profiles.FeedIDs()
	for i, feedID := range feedIDs {
		if ctx.Err() != nil {
			break
		}
		c.checkSubscription(ctx, subscriberID, state, feedID)

		if i < len(feedIDs)-1 {
			if err := c.sleep(ctx, c.pacingInterval()); err != nil {
				break
			}
		}
	}

	state.Checking = false
	if err := c.store.Save(subscriberID, state); err != nil {
		// the flag stays raised on disk until startup reconciliation
		log.WithError(err).Error("failed to clear busy flag")
		return fmt.Errorf("failed to clear busy flag: %w", err)
	}

	c.notify(ctx, subscriberID, "Finished fetching recent posts 😮‍💨")
	log.Info("sync cycle completed")
	return nil
}

// checkSubscription syncs a single subscription. Failures are reported to
// the subscriber and never propagate: one broken feed must not abort the
// whole cycle.
func (c *Checker) checkSubscription(ctx context.Context, subscriberID string, state *store.State, feedID string) {
	log := c.logger.WithFields(map[string]interface{}{
		"subscriber": subscriberID,
		"feed":       feedID,
	})

	// captured before the fetch so items published mid-fetch are not
	// re-delivered on the next cycle
	now := c.now().UTC()

	items, err := c.fetchNew(ctx, state, feedID)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return
		}
		if feed.IsKnown(err) {
			var fe *feed.Error
			errors.As(err, &fe)
			log.WithField("kind", string(fe.Kind)).Warn("known feed error")
			c.notify(ctx, subscriberID, fmt.Sprintf("An error occurred with profile %s: %s", feedID, fe.Message))
			return
		}
		log.WithError(err).Error("failed to fetch feed")
		c.notify(ctx, subscriberID, fmt.Sprintf("Failed to fetch recent posts of profile %s", feedID))
		return
	}

	if len(items) > 0 {
		c.notify(ctx, subscriberID, fmt.Sprintf("<b>%s</b> published some new posts ⬇️", feedID))

		// oldest first, awaiting each, so the subscriber reads the feed
		// in chronological order
		for i := len(items) - 1; i >= 0; i-- {
			if err := c.dispatcher.SendItem(ctx, subscriberID, items[i]); err != nil {
				log.WithError(err).WithField("shortcode", items[i].Shortcode).Error("failed to deliver item")
				c.notify(ctx, subscriberID, fmt.Sprintf("Failed to fetch recent posts of profile %s", feedID))
				return
			}
		}
	}

	state.Profiles.Set(feedID, now)
	if err := c.store.Save(subscriberID, state); err != nil {
		log.WithError(err).Error("failed to persist watermark")
		c.notify(ctx, subscriberID, fmt.Sprintf("Failed to fetch recent posts of profile %s", feedID))
		return
	}

	log.WithField("new_items", len(items)).Info("subscription checked")
}

// Preview fetches a feed with no watermark, yielding at most the newest
// existing item. Used when a subscription is first created.
func (c *Checker) Preview(ctx context.Context, feedID string) ([]feed.Item, error) {
	return c.fetchNewSince(ctx, feedID, nil)
}

func (c *Checker) fetchNew(ctx context.Context, state *store.State, feedID string) ([]feed.Item, error) {
	var since *time.Time
	if mark, ok := state.Profiles.Watermark(feedID); ok {
		since = &mark
	}
	return c.fetchNewSince(ctx, feedID, since)
}

func (c *Checker) fetchNewSince(ctx context.Context, feedID string, since *time.Time) ([]feed.Item, error) {
	it, err := c.source.Fetch(ctx, feedID)
	if err != nil {
		return nil, err
	}
	return c.selector.SelectNew(ctx, feedID, it, since)
}

// pacingInterval returns a random duration in [base-jitter, base+jitter]
func (c *Checker) pacingInterval() time.Duration {
	if c.pacingJitter == 0 {
		return c.pacingBase
	}
	return c.pacingBase - c.pacingJitter + time.Duration(c.randn(int64(2*c.pacingJitter)+1))
}

// notify sends a status text, logging failures instead of letting a broken
// transport wedge the cycle
func (c *Checker) notify(ctx context.Context, subscriberID, text string) {
	if err := c.dispatcher.SendText(ctx, subscriberID, text); err != nil {
		c.logger.WithError(err).WithField("subscriber", subscriberID).Warn("failed to send notice")
	}
}

func defaultSleep(ctx context.Context, d time.Duration) error {
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
