package telegram

import (
	"fmt"
	"html"
	"strings"
	"time"

	"igtracker/pkg/feed"
	"igtracker/pkg/instagram"
)

// buildCaption renders the Telegram HTML caption for a feed item: the post
// text, an engagement line, and an italic footer with the publish time and
// its age relative to now. withLink appends an inline "Check it out" anchor
// for message kinds that cannot carry a URL button.
func buildCaption(item *feed.Item, now time.Time, withLink bool) string {
	var b strings.Builder

	if item.Caption != "" {
		b.WriteString(html.EscapeString(item.Caption))
		b.WriteString("\n\n")
	}

	b.WriteString(fmt.Sprintf("<b>%d ❤️    %d 💬</b>", item.Likes, item.Comments))
	if video, ok := item.Media.(feed.Video); ok && video.Views > 0 {
		b.WriteString(fmt.Sprintf("<b>    %d 👁</b>", video.Views))
	}
	b.WriteString("\n\n")

	b.WriteString(fmt.Sprintf("<i>%s (%s)</i>",
		item.Posted.Format("02.01 15:04"),
		timeDiffString(now.Sub(item.Posted))))

	if withLink {
		b.WriteString(fmt.Sprintf("\n\n<a href=\"%s\"><u>Check it out</u></a>",
			instagram.GetPostURL(item.Shortcode)))
	}

	return b.String()
}

// timeDiffString formats an age as "N days N hours N minutes ago", dropping
// leading zero components but always keeping minutes
func timeDiffString(d time.Duration) string {
	if d < 0 {
		d = 0
	}

	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	minutes := int(d.Minutes()) % 60

	var b strings.Builder
	if days > 0 {
		fmt.Fprintf(&b, "%d days ", days)
	}
	if hours > 0 {
		fmt.Fprintf(&b, "%d hours ", hours)
	}
	fmt.Fprintf(&b, "%d minutes ago", minutes)

	return b.String()
}
