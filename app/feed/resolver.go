package feed

import (
	"context"
	"fmt"

	"github.com/lysyi3m/feed-sync/app/database"
)

// Resolver batch-resolves the viewer's like/retweet/bookmark relationship
// to a set of item ids. It must run for every batch of freshly fetched rows
// before they reach the merge: viewer state may never silently default to
// false for an authenticated viewer, so a failed membership query surfaces
// as an error instead of empty sets.
type Resolver struct {
	interactions database.InteractionRepository
}

func NewResolver(interactions database.InteractionRepository) *Resolver {
	return &Resolver{interactions: interactions}
}

// ViewerStates holds the resolved membership sets for one batch of ids.
type ViewerStates struct {
	Liked      map[string]bool
	Retweeted  map[string]bool
	Bookmarked map[string]bool
}

// For returns the viewer state of a single item id.
func (vs *ViewerStates) For(id string) ViewerState {
	return ViewerState{
		IsLiked:      vs.Liked[id],
		IsRetweeted:  vs.Retweeted[id],
		IsBookmarked: vs.Bookmarked[id],
	}
}

// Apply stamps the resolved state onto each item by id. A reshare slot is
// keyed by the original post's id, so its viewer state is evaluated against
// the original, never the reshare row.
func (vs *ViewerStates) Apply(items []Item) {
	for i := range items {
		items[i].ViewerState = vs.For(items[i].ID)
	}
}

// Resolve issues the three membership queries for ids on behalf of viewerID.
// An unauthenticated viewer (empty id) resolves to empty sets without
// touching the store.
func (r *Resolver) Resolve(ctx context.Context, viewerID string, ids []string) (*ViewerStates, error) {
	states := &ViewerStates{
		Liked:      make(map[string]bool),
		Retweeted:  make(map[string]bool),
		Bookmarked: make(map[string]bool),
	}

	if viewerID == "" || len(ids) == 0 {
		return states, nil
	}

	liked, err := r.interactions.LikedSet(ctx, viewerID, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve liked set: %w", err)
	}

	retweeted, err := r.interactions.RetweetedSet(ctx, viewerID, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve retweeted set: %w", err)
	}

	bookmarked, err := r.interactions.BookmarkedSet(ctx, viewerID, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve bookmarked set: %w", err)
	}

	states.Liked = liked
	states.Retweeted = retweeted
	states.Bookmarked = bookmarked

	return states, nil
}
