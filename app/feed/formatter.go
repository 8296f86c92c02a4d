package feed

import (
	"github.com/lysyi3m/feed-sync/app/database"
)

// Formatter normalizes raw post rows into canonical feed Items. A reshare
// row collapses into the original post's content decorated with the
// resharer's identity and the reshare timestamp, keyed by the original id,
// so the same content occupies a single feed slot no matter how it arrived.
type Formatter struct{}

func NewFormatter() *Formatter {
	return &Formatter{}
}

// Run normalizes rows in order. Reshare rows whose original could not be
// loaded are dropped: there is no content to present for them.
func (f *Formatter) Run(rows []database.PostRow) []Item {
	items := make([]Item, 0, len(rows))
	for _, row := range rows {
		if row.RetweetOfID != nil && row.RetweetOf == nil {
			continue
		}
		items = append(items, f.normalize(row))
	}
	return items
}

func (f *Formatter) normalize(row database.PostRow) Item {
	base := row
	var retweetedBy *Author
	var retweetedAt *database.PostRow

	if row.RetweetOf != nil {
		base = *row.RetweetOf
		by := formatAuthor(row.Author)
		retweetedBy = &by
		retweetedAt = &row
	}

	item := Item{
		ID:        base.ID,
		Content:   base.Content,
		Author:    formatAuthor(base.Author),
		CreatedAt: base.CreatedAt,
		Counts: Counts{
			Likes:    base.Likes,
			Retweets: base.Retweets,
			Replies:  base.Replies,
			Views:    base.Views,
		},
		Media: base.Media,
		Classification: Classification{
			Hashtags: base.Hashtags,
			Mentions: base.Mentions,
			Tags:     base.Tags,
		},
	}

	if retweetedBy != nil {
		item.RetweetedBy = retweetedBy
		at := retweetedAt.CreatedAt
		item.RetweetedAt = &at
	}

	return item
}

func formatAuthor(p database.Profile) Author {
	return Author{
		ID:          p.ID,
		Handle:      p.Handle,
		DisplayName: p.DisplayName,
		AvatarURL:   p.AvatarURL,
		Verified:    p.Verified,
		Followers:   p.Followers,
		Following:   p.Following,
		JoinedAt:    p.JoinedAt,
		Country:     p.Country,
	}
}
