package instagram

// Response is the top-level payload returned by both the web profile
// endpoint and the paginated GraphQL media query
type Response struct {
	RequiresToLogin bool   `json:"requires_to_login"`
	Data            Data   `json:"data"`
	Status          string `json:"status"`
}

// Data wraps the user object in the response
type Data struct {
	User User `json:"user"`
}

// User is an Instagram profile
type User struct {
	ID                       string        `json:"id"`
	Username                 string        `json:"username"`
	IsPrivate                bool          `json:"is_private"`
	EdgeOwnerToTimelineMedia TimelineMedia `json:"edge_owner_to_timeline_media"`
}

// TimelineMedia is one page of a profile's posts, newest first
type TimelineMedia struct {
	Count    int      `json:"count"`
	PageInfo PageInfo `json:"page_info"`
	Edges    []Edge   `json:"edges"`
}

// PageInfo carries the GraphQL pagination cursor
type PageInfo struct {
	HasNextPage bool   `json:"has_next_page"`
	EndCursor   string `json:"end_cursor"`
}

// Edge wraps a single post node
type Edge struct {
	Node Node `json:"node"`
}

// Post type names used by the GraphQL API
const (
	TypenameImage   = "GraphImage"
	TypenameVideo   = "GraphVideo"
	TypenameSidecar = "GraphSidecar"
)

// Node is a single post as returned by the GraphQL API
type Node struct {
	ID               string       `json:"id"`
	Typename         string       `json:"__typename"`
	Shortcode        string       `json:"shortcode"`
	TakenAtTimestamp int64        `json:"taken_at_timestamp"`
	DisplayURL       string       `json:"display_url"`
	IsVideo          bool         `json:"is_video"`
	VideoURL         string       `json:"video_url"`
	VideoViewCount   int          `json:"video_view_count"`
	Caption          CaptionEdges `json:"edge_media_to_caption"`
	Likes            CountEdge    `json:"edge_liked_by"`
	PreviewLikes     CountEdge    `json:"edge_media_preview_like"`
	Comments         CountEdge    `json:"edge_media_to_comment"`
	SidecarChildren  SidecarEdges `json:"edge_sidecar_to_children"`
}

// CaptionEdges wraps the caption text edges
type CaptionEdges struct {
	Edges []CaptionEdge `json:"edges"`
}

type CaptionEdge struct {
	Node CaptionNode `json:"node"`
}

type CaptionNode struct {
	Text string `json:"text"`
}

// CountEdge is a bare engagement counter
type CountEdge struct {
	Count int `json:"count"`
}

// SidecarEdges wraps the child nodes of a multi-item post
type SidecarEdges struct {
	Edges []SidecarEdge `json:"edges"`
}

type SidecarEdge struct {
	Node SidecarNode `json:"node"`
}

// SidecarNode is one element of a gallery post
type SidecarNode struct {
	ID         string `json:"id"`
	IsVideo    bool   `json:"is_video"`
	DisplayURL string `json:"display_url"`
	VideoURL   string `json:"video_url"`
}

// CaptionText returns the first caption edge's text, or ""
func (n *Node) CaptionText() string {
	if len(n.Caption.Edges) == 0 {
		return ""
	}
	return n.Caption.Edges[0].Node.Text
}

// LikeCount prefers the public like edge and falls back to the preview edge
func (n *Node) LikeCount() int {
	if n.Likes.Count > 0 {
		return n.Likes.Count
	}
	return n.PreviewLikes.Count
}
