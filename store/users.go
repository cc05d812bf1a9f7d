package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

func (s *Store) UserByID(ctx context.Context, id int64) (User, error) {
	row := s.db.QueryRowContext(ctx, "SELECT id, name, rank FROM users WHERE id = ?", id)

	var u User
	err := row.Scan(&u.ID, &u.Name, &u.Rank)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, fmt.Errorf("failed scanning user: %w", err)
	}

	return u, nil
}

// FindOrCreateUser returns the user record for id, inserting one with the
// default rank when none exists. The stored name follows the latest login.
func (s *Store) FindOrCreateUser(ctx context.Context, id int64, name string) (User, error) {
	name = strings.ToLower(name)

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO users (id, name) VALUES (?, ?) ON CONFLICT (id) DO UPDATE SET name = excluded.name",
		id, name,
	)
	if err != nil {
		return User{}, fmt.Errorf("failed inserting user: %w", err)
	}

	return s.UserByID(ctx, id)
}

// SetUserRank overwrites the rank of an existing user record.
func (s *Store) SetUserRank(ctx context.Context, id int64, rank int) error {
	res, err := s.db.ExecContext(ctx, "UPDATE users SET rank = ? WHERE id = ?", rank, id)
	if err != nil {
		return fmt.Errorf("failed updating rank for user %d: %w", id, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed reading affected rows: %w", err)
	}

	if affected == 0 {
		return ErrNotFound
	}

	return nil
}
