package feed

import (
	"time"
)

// Feed item types

type Author struct {
	ID          string    `json:"id"`
	Handle      string    `json:"handle"`
	DisplayName string    `json:"display_name"`
	AvatarURL   string    `json:"avatar_url"`
	Verified    bool      `json:"verified"`
	Followers   int       `json:"followers"`
	Following   int       `json:"following"`
	JoinedAt    time.Time `json:"joined_at"`
	Country     string    `json:"country"`
}

type Counts struct {
	Likes    int `json:"likes"`
	Retweets int `json:"retweets"`
	Replies  int `json:"replies"`
	Views    int `json:"views"`
}

type ViewerState struct {
	IsLiked      bool `json:"is_liked"`
	IsRetweeted  bool `json:"is_retweeted"`
	IsBookmarked bool `json:"is_bookmarked"`
}

type Classification struct {
	Hashtags []string `json:"hashtags"`
	Mentions []string `json:"mentions"`
	Tags     []string `json:"tags"`
}

// Item is the canonical content unit the engine manages. A reshare is
// presented as the original item decorated with RetweetedBy/RetweetedAt,
// keyed by the original content id.
type Item struct {
	ID             string         `json:"id"`
	Content        string         `json:"content"`
	Author         Author         `json:"author"`
	CreatedAt      time.Time      `json:"created_at"`
	Counts         Counts         `json:"counts"`
	Media          []string       `json:"media"`
	Classification Classification `json:"classification"`
	ViewerState    ViewerState    `json:"viewer_state"`

	RetweetedBy *Author    `json:"retweeted_by,omitempty"`
	RetweetedAt *time.Time `json:"retweeted_at,omitempty"`
}

// DisplayTime is the ordering timestamp: the reshare time when the item
// entered the feed via a retweet, the creation time otherwise.
func (i Item) DisplayTime() time.Time {
	if i.RetweetedAt != nil {
		return *i.RetweetedAt
	}
	return i.CreatedAt
}

// IDs returns the item ids in list order.
func IDs(items []Item) []string {
	ids := make([]string, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ID)
	}
	return ids
}

// Variant configuration types

type Variant string

const (
	VariantForYou    Variant = "for-you"
	VariantFollowing Variant = "following"
)

// CacheKey is the session cache key segment for this variant.
func (v Variant) CacheKey() string {
	return string(v) + "-feed"
}

const (
	FilterNone      = "none"
	FilterFollowing = "following"
)

type VariantConfig struct {
	Name          Variant     `yaml:"-"`
	Filter        string      `yaml:"filter"`
	Ranked        bool        `yaml:"ranked"`
	FirstPageSize int         `yaml:"first_page_size"`
	PageSize      int         `yaml:"page_size"`
	PollLimit     int         `yaml:"poll_limit"`
	RankWeights   RankWeights `yaml:"rank_weights"`
}

type RankWeights struct {
	Likes    float64 `yaml:"likes"`
	Retweets float64 `yaml:"retweets"`
	Replies  float64 `yaml:"replies"`
}
