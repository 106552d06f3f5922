package instagram

import (
	"context"
	"errors"
	"time"

	errs "igtracker/pkg/errors"
	"igtracker/pkg/feed"
	"igtracker/pkg/logger"
	"igtracker/pkg/ratelimit"
)

// Source adapts the Instagram client to the feed.Source interface: a feed
// identifier is a profile username, and the feed is the profile's timeline,
// newest post first, paginated through the GraphQL media query.
type Source struct {
	client  *Client
	limiter ratelimit.Limiter
	logger  logger.Logger
}

// NewSource creates a feed source backed by the given client. The limiter
// paces every API request and may be nil.
func NewSource(client *Client, limiter ratelimit.Limiter) *Source {
	return &Source{
		client:  client,
		limiter: limiter,
		logger:  logger.GetLogger(),
	}
}

// Fetch resolves the profile and returns a lazy iterator over its timeline
func (s *Source) Fetch(ctx context.Context, feedID string) (feed.Iterator, error) {
	if err := s.wait(ctx); err != nil {
		return nil, err
	}

	resp, err := s.client.FetchProfile(ctx, feedID)
	if err != nil {
		return nil, mapError(feedID, err)
	}

	user := resp.Data.User
	if user.ID == "" {
		return nil, feed.NotFoundError(feedID)
	}
	if user.IsPrivate {
		return nil, feed.UnavailableError(feedID)
	}

	s.logger.DebugWithFields("profile resolved", map[string]interface{}{
		"feed":    feedID,
		"user_id": user.ID,
		"posts":   user.EdgeOwnerToTimelineMedia.Count,
	})

	return &timeline{
		source:   s,
		feedID:   feedID,
		userID:   user.ID,
		edges:    user.EdgeOwnerToTimelineMedia.Edges,
		pageInfo: user.EdgeOwnerToTimelineMedia.PageInfo,
	}, nil
}

func (s *Source) wait(ctx context.Context) error {
	if s.limiter != nil {
		return s.limiter.Wait(ctx)
	}
	return nil
}

// timeline iterates a profile's posts across media pages
type timeline struct {
	source   *Source
	feedID   string
	userID   string
	edges    []Edge
	pageInfo PageInfo
	pos      int
}

func (t *timeline) Next(ctx context.Context) (*feed.Item, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if t.pos < len(t.edges) {
			item := itemFromNode(&t.edges[t.pos].Node)
			t.pos++
			return &item, nil
		}
		if !t.pageInfo.HasNextPage {
			return nil, nil
		}

		if err := t.source.wait(ctx); err != nil {
			return nil, err
		}
		resp, err := t.source.client.FetchMediaPage(ctx, t.userID, t.pageInfo.EndCursor)
		if err != nil {
			return nil, mapError(t.feedID, err)
		}

		media := resp.Data.User.EdgeOwnerToTimelineMedia
		t.edges = media.Edges
		t.pageInfo = media.PageInfo
		t.pos = 0
		if len(t.edges) == 0 && !t.pageInfo.HasNextPage {
			return nil, nil
		}
	}
}

// itemFromNode converts a GraphQL post node into a feed item
func itemFromNode(node *Node) feed.Item {
	item := feed.Item{
		Shortcode: node.Shortcode,
		Posted:    time.Unix(node.TakenAtTimestamp, 0).UTC(),
		Caption:   node.CaptionText(),
		Likes:     node.LikeCount(),
		Comments:  node.Comments.Count,
	}

	switch {
	case node.Typename == TypenameSidecar && len(node.SidecarChildren.Edges) > 0:
		gallery := feed.Gallery{Items: make([]feed.GalleryItem, 0, len(node.SidecarChildren.Edges))}
		for _, child := range node.SidecarChildren.Edges {
			entry := feed.GalleryItem{URL: child.Node.DisplayURL, IsVideo: child.Node.IsVideo}
			if child.Node.IsVideo {
				entry.URL = child.Node.VideoURL
			}
			gallery.Items = append(gallery.Items, entry)
		}
		item.Media = gallery
	case node.Typename == TypenameVideo || node.IsVideo:
		item.Media = feed.Video{URL: node.VideoURL, Views: node.VideoViewCount}
	default:
		item.Media = feed.Image{URL: node.DisplayURL}
	}

	return item
}

// mapError translates transport errors into the feed error taxonomy where a
// subscriber-facing meaning exists; anything else passes through unchanged
func mapError(feedID string, err error) error {
	var apiErr *errs.Error
	if !errors.As(err, &apiErr) {
		return err
	}
	switch apiErr.Type {
	case errs.ErrorTypeNotFound:
		return feed.NotFoundError(feedID)
	case errs.ErrorTypeAuth:
		return feed.UnavailableError(feedID)
	}
	return err
}
