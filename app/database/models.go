package database

import (
	"time"
)

// Profile is a row from the profiles table.
type Profile struct {
	ID          string
	Handle      string
	DisplayName string
	AvatarURL   string
	Verified    bool
	Followers   int
	Following   int
	JoinedAt    time.Time
	Country     string
}

// PostRow is a row from the posts table joined with its author profile.
// For a reshare row RetweetOfID is set and RetweetOf carries the original
// post; CreatedAt is then the time of the reshare, not of the original.
type PostRow struct {
	ID          string
	Author      Profile
	Content     string
	IsReply     bool
	RetweetOfID *string
	RetweetOf   *PostRow
	Media       []string
	Hashtags    []string
	Mentions    []string
	Tags        []string
	Likes       int
	Retweets    int
	Replies     int
	Views       int
	CreatedAt   time.Time
}
