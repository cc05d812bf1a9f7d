package store

import (
	"context"
	"fmt"
	"time"
)

// FindOrCreateLinkPost records the first sighting of a link in a room. The
// returned bool is true when this call created the record; false means the
// link was already on file and the returned record holds the original
// poster and timestamp.
//
// posted_at is stored as Unix milliseconds so range comparisons stay
// strictly ordered.
func (s *Store) FindOrCreateLinkPost(ctx context.Context, post LinkPost) (LinkPost, bool, error) {
	res, err := s.db.ExecContext(ctx,
		"INSERT INTO link_posts (room_id, link, poster, posted_at) VALUES (?, ?, ?, ?) ON CONFLICT (room_id, link) DO NOTHING",
		post.RoomID,
		post.Link,
		post.Poster,
		post.PostedAt.UnixMilli(),
	)
	if err != nil {
		return LinkPost{}, false, fmt.Errorf("failed inserting link post: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return LinkPost{}, false, fmt.Errorf("failed reading affected rows: %w", err)
	}

	if affected > 0 {
		return post, true, nil
	}

	row := s.db.QueryRowContext(ctx,
		"SELECT room_id, link, poster, posted_at FROM link_posts WHERE room_id = ? AND link = ?",
		post.RoomID, post.Link,
	)

	var (
		existing LinkPost
		postedAt int64
	)
	if err := row.Scan(&existing.RoomID, &existing.Link, &existing.Poster, &postedAt); err != nil {
		return LinkPost{}, false, fmt.Errorf("failed scanning link post: %w", err)
	}

	existing.PostedAt = time.UnixMilli(postedAt).UTC()

	return existing, false, nil
}

// DeleteLinkPostsOlderThan drops every link post recorded before cutoff and
// returns how many rows went away.
func (s *Store) DeleteLinkPostsOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM link_posts WHERE posted_at < ?",
		cutoff.UnixMilli(),
	)
	if err != nil {
		return 0, fmt.Errorf("failed deleting expired link posts: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed reading affected rows: %w", err)
	}

	return affected, nil
}
