package database

import (
	"context"
	"fmt"
)

// FollowRepo handles database operations for the follow graph
type FollowRepo struct {
	db *DB
}

var _ FollowRepository = (*FollowRepo)(nil)

func NewFollowRepository(db *DB) *FollowRepo {
	return &FollowRepo{db: db}
}

// ListFollowing returns the ids of every profile the given viewer follows.
func (r *FollowRepo) ListFollowing(ctx context.Context, followerID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT following_id
		FROM follows
		WHERE follower_id = $1
	`, followerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list following: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan follow row: %w", err)
		}
		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating follow rows: %w", err)
	}

	return ids, nil
}
