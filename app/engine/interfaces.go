package engine

import (
	"context"

	"github.com/lysyi3m/feed-sync/app/database"
	"github.com/lysyi3m/feed-sync/app/feed"
	"github.com/lysyi3m/feed-sync/app/realtime"
	"github.com/lysyi3m/feed-sync/app/session"
)

// PostSource is the slice of the remote store the engine reads content from.
type PostSource interface {
	ListPage(ctx context.Context, filter database.PageFilter) ([]database.PostRow, error)
	ListNewerThan(ctx context.Context, filter database.SinceFilter) ([]database.PostRow, error)
	GetByID(ctx context.Context, id string) (*database.PostRow, error)
}

type FollowSource interface {
	ListFollowing(ctx context.Context, followerID string) ([]string, error)
}

type StateResolver interface {
	Resolve(ctx context.Context, viewerID string, ids []string) (*feed.ViewerStates, error)
}

type SessionStore interface {
	Load(ctx context.Context, viewerID, variantKey string) (*session.Record, bool)
	Save(ctx context.Context, viewerID, variantKey string, record session.Record) error
	Delete(ctx context.Context, viewerID, variantKey string) error
}

// Notifier is the change-notification channel. A nil Notifier degrades the
// engine to polling-only reconciliation.
type Notifier interface {
	Subscribe(fn func(realtime.Event)) *realtime.Subscription
}

var _ PostSource = (*database.PostRepo)(nil)
var _ FollowSource = (*database.FollowRepo)(nil)
var _ StateResolver = (*feed.Resolver)(nil)
var _ SessionStore = (*session.Cache)(nil)
var _ Notifier = (*realtime.Hub)(nil)

// Deps bundles the collaborators a feed view needs.
type Deps struct {
	Posts    PostSource
	Follows  FollowSource
	Resolver StateResolver
	Sessions SessionStore
	Notifier Notifier
}
