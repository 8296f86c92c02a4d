package database

import (
	"context"
	"fmt"

	"github.com/lib/pq"
)

// InteractionRepo handles membership queries against the viewer's
// interaction records (likes, retweets, bookmarks)
type InteractionRepo struct {
	db *DB
}

var _ InteractionRepository = (*InteractionRepo)(nil)

func NewInteractionRepository(db *DB) *InteractionRepo {
	return &InteractionRepo{db: db}
}

func (r *InteractionRepo) LikedSet(ctx context.Context, userID string, postIDs []string) (map[string]bool, error) {
	return r.membershipSet(ctx, "likes", userID, postIDs)
}

func (r *InteractionRepo) RetweetedSet(ctx context.Context, userID string, postIDs []string) (map[string]bool, error) {
	return r.membershipSet(ctx, "retweets", userID, postIDs)
}

func (r *InteractionRepo) BookmarkedSet(ctx context.Context, userID string, postIDs []string) (map[string]bool, error) {
	return r.membershipSet(ctx, "bookmarks", userID, postIDs)
}

// membershipSet returns which of postIDs the user has a row for in the given
// interaction table. The table name is fixed by the exported callers.
func (r *InteractionRepo) membershipSet(ctx context.Context, table, userID string, postIDs []string) (map[string]bool, error) {
	set := make(map[string]bool, len(postIDs))
	if len(postIDs) == 0 {
		return set, nil
	}

	query := fmt.Sprintf(`
		SELECT post_id
		FROM %s
		WHERE user_id = $1
		  AND post_id = ANY($2)
	`, table)

	rows, err := r.db.QueryContext(ctx, query, userID, pq.Array(postIDs))
	if err != nil {
		return nil, fmt.Errorf("failed to query %s membership: %w", table, err)
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan %s row: %w", table, err)
		}
		set[id] = true
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating %s rows: %w", table, err)
	}

	return set, nil
}
