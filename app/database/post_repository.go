package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"
)

// PostRepository handles database operations for posts and their author profiles
type PostRepo struct {
	db *DB
}

var _ PostRepository = (*PostRepo)(nil)

func NewPostRepository(db *DB) *PostRepo {
	return &PostRepo{db: db}
}

const postColumns = `
	p.id, p.content, p.is_reply, p.retweet_of_id,
	COALESCE(p.media, '{}'), COALESCE(p.hashtags, '{}'),
	COALESCE(p.mentions, '{}'), COALESCE(p.tags, '{}'),
	p.likes_count, p.retweets_count, p.replies_count, p.views_count,
	p.created_at,
	a.id, a.handle, COALESCE(a.display_name, ''), COALESCE(a.avatar_url, ''),
	a.verified, a.followers_count, a.following_count, a.joined_at,
	COALESCE(a.country, '')`

// ListPage returns one page of top-level posts ordered by creation time
// descending. Reshare rows come back with RetweetOf populated.
func (r *PostRepo) ListPage(ctx context.Context, filter PageFilter) ([]PostRow, error) {
	query := `
		SELECT ` + postColumns + `
		FROM posts p
		JOIN profiles a ON a.id = p.author_id
		WHERE p.is_reply = false
		  AND ($1::uuid[] IS NULL OR p.author_id = ANY($1))
		ORDER BY p.created_at DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.db.QueryContext(ctx, query, authorArray(filter.AuthorIDs), filter.Limit, filter.Offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list post page: %w", err)
	}
	defer rows.Close()

	posts, err := scanPostRows(rows)
	if err != nil {
		return nil, err
	}

	if err := r.attachOriginals(ctx, posts); err != nil {
		return nil, err
	}

	return posts, nil
}

// ListNewerThan returns top-level posts created strictly after filter.Since,
// newest first, capped at filter.Limit.
func (r *PostRepo) ListNewerThan(ctx context.Context, filter SinceFilter) ([]PostRow, error) {
	query := `
		SELECT ` + postColumns + `
		FROM posts p
		JOIN profiles a ON a.id = p.author_id
		WHERE p.is_reply = false
		  AND p.created_at > $1
		  AND ($2::uuid[] IS NULL OR p.author_id = ANY($2))
		ORDER BY p.created_at DESC
		LIMIT $3
	`

	rows, err := r.db.QueryContext(ctx, query, filter.Since, authorArray(filter.AuthorIDs), filter.Limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list posts newer than %s: %w", filter.Since, err)
	}
	defer rows.Close()

	posts, err := scanPostRows(rows)
	if err != nil {
		return nil, err
	}

	if err := r.attachOriginals(ctx, posts); err != nil {
		return nil, err
	}

	return posts, nil
}

// GetByID returns a single post row with its original attached when the row
// is a reshare. Returns nil without error when the id does not exist.
func (r *PostRepo) GetByID(ctx context.Context, id string) (*PostRow, error) {
	query := `
		SELECT ` + postColumns + `
		FROM posts p
		JOIN profiles a ON a.id = p.author_id
		WHERE p.id = $1
	`

	row := r.db.QueryRowContext(ctx, query, id)
	post, err := scanPostRow(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get post by id: %w", err)
	}

	posts := []PostRow{*post}
	if err := r.attachOriginals(ctx, posts); err != nil {
		return nil, err
	}

	return &posts[0], nil
}

// GetPostCount returns the total number of posts
func (r *PostRepo) GetPostCount(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM posts").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to get post count: %w", err)
	}
	return count, nil
}

// attachOriginals loads the original posts referenced by reshare rows in a
// single batch and attaches them. Originals are fetched one level deep.
func (r *PostRepo) attachOriginals(ctx context.Context, posts []PostRow) error {
	idSet := make(map[string]bool)
	for _, p := range posts {
		if p.RetweetOfID != nil {
			idSet[*p.RetweetOfID] = true
		}
	}
	if len(idSet) == 0 {
		return nil
	}

	ids := make([]string, 0, len(idSet))
	for id := range idSet {
		ids = append(ids, id)
	}

	query := `
		SELECT ` + postColumns + `
		FROM posts p
		JOIN profiles a ON a.id = p.author_id
		WHERE p.id = ANY($1)
	`

	rows, err := r.db.QueryContext(ctx, query, pq.Array(ids))
	if err != nil {
		return fmt.Errorf("failed to load reshared originals: %w", err)
	}
	defer rows.Close()

	originals, err := scanPostRows(rows)
	if err != nil {
		return err
	}

	byID := make(map[string]*PostRow, len(originals))
	for i := range originals {
		byID[originals[i].ID] = &originals[i]
	}

	for i := range posts {
		if posts[i].RetweetOfID != nil {
			posts[i].RetweetOf = byID[*posts[i].RetweetOfID]
		}
	}

	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanPostRow(row rowScanner) (*PostRow, error) {
	var p PostRow
	err := row.Scan(
		&p.ID, &p.Content, &p.IsReply, &p.RetweetOfID,
		pq.Array(&p.Media), pq.Array(&p.Hashtags),
		pq.Array(&p.Mentions), pq.Array(&p.Tags),
		&p.Likes, &p.Retweets, &p.Replies, &p.Views,
		&p.CreatedAt,
		&p.Author.ID, &p.Author.Handle, &p.Author.DisplayName, &p.Author.AvatarURL,
		&p.Author.Verified, &p.Author.Followers, &p.Author.Following, &p.Author.JoinedAt,
		&p.Author.Country,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func scanPostRows(rows *sql.Rows) ([]PostRow, error) {
	var posts []PostRow
	for rows.Next() {
		post, err := scanPostRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan post row: %w", err)
		}
		posts = append(posts, *post)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating post rows: %w", err)
	}

	return posts, nil
}

// authorArray converts an author id set to a query parameter, mapping an
// empty set to SQL NULL so the filter clause is skipped.
func authorArray(ids []string) interface{} {
	if len(ids) == 0 {
		return nil
	}
	return pq.Array(ids)
}
