package feed

import "time"

// Item is a single feed entry. Items are transient: the core never persists
// them, only the watermark timestamp that separates delivered from new.
type Item struct {
	// Shortcode identifies the post within the feed source
	Shortcode string
	// Posted is the publish time in UTC, the ordering key of the feed
	Posted time.Time
	// Caption is the post text, possibly empty
	Caption string
	// Engagement counters at fetch time
	Likes    int
	Comments int
	// Media is the post payload variant
	Media Media
}

// Media is the tagged payload variant of an item: a single image, a single
// video, or an ordered gallery. Rendering dispatches over the concrete type.
type Media interface {
	mediaKind() string
}

// Image is a single-photo post payload
type Image struct {
	URL string
}

// Video is a single-video post payload
type Video struct {
	URL   string
	Views int
}

// Gallery is a multi-item post payload; element order is the post's own order
type Gallery struct {
	Items []GalleryItem
}

// GalleryItem is one element of a gallery, either an image or a video
type GalleryItem struct {
	URL     string
	IsVideo bool
}

func (Image) mediaKind() string   { return "image" }
func (Video) mediaKind() string   { return "video" }
func (Gallery) mediaKind() string { return "gallery" }
