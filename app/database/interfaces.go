package database

import (
	"context"
	"time"
)

// PageFilter selects one page of top-level posts, newest first.
// AuthorIDs narrows the page to the given authors; nil means any author.
type PageFilter struct {
	AuthorIDs []string
	Limit     int
	Offset    int
}

// SinceFilter selects top-level posts created strictly after Since,
// newest first, capped at Limit.
type SinceFilter struct {
	AuthorIDs []string
	Since     time.Time
	Limit     int
}

type PostRepository interface {
	ListPage(ctx context.Context, filter PageFilter) ([]PostRow, error)
	ListNewerThan(ctx context.Context, filter SinceFilter) ([]PostRow, error)
	GetByID(ctx context.Context, id string) (*PostRow, error)
	GetPostCount(ctx context.Context) (int, error)
}

type FollowRepository interface {
	ListFollowing(ctx context.Context, followerID string) ([]string, error)
}

type InteractionRepository interface {
	LikedSet(ctx context.Context, userID string, postIDs []string) (map[string]bool, error)
	RetweetedSet(ctx context.Context, userID string, postIDs []string) (map[string]bool, error)
	BookmarkedSet(ctx context.Context, userID string, postIDs []string) (map[string]bool, error)
}
