package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

const channelColumns = "id, name, connected, offline_only, emote_only, subscriber_only, followers_only_minutes, slow_seconds, unique_only"

func scanChannel(row *sql.Row) (Channel, error) {
	var c Channel
	err := row.Scan(
		&c.ID,
		&c.Name,
		&c.Connected,
		&c.OfflineOnly,
		&c.Modes.EmoteOnly,
		&c.Modes.SubscriberOnly,
		&c.Modes.FollowersOnlyMinutes,
		&c.Modes.SlowSeconds,
		&c.Modes.UniqueOnly,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return Channel{}, ErrNotFound
	}
	if err != nil {
		return Channel{}, fmt.Errorf("failed scanning channel: %w", err)
	}

	return c, nil
}

func (s *Store) ChannelByID(ctx context.Context, id int64) (Channel, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+channelColumns+" FROM channels WHERE id = ?", id)
	return scanChannel(row)
}

func (s *Store) ChannelByName(ctx context.Context, name string) (Channel, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+channelColumns+" FROM channels WHERE name = ?", strings.ToLower(name))
	return scanChannel(row)
}

// ConnectedChannels returns every channel flagged as connected, ordered by
// name so the rejoin sequence after a reconnect is stable.
func (s *Store) ConnectedChannels(ctx context.Context) ([]Channel, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT "+channelColumns+" FROM channels WHERE connected = 1 ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("failed querying connected channels: %w", err)
	}
	defer rows.Close()

	var channels []Channel
	for rows.Next() {
		var c Channel
		err := rows.Scan(
			&c.ID,
			&c.Name,
			&c.Connected,
			&c.OfflineOnly,
			&c.Modes.EmoteOnly,
			&c.Modes.SubscriberOnly,
			&c.Modes.FollowersOnlyMinutes,
			&c.Modes.SlowSeconds,
			&c.Modes.UniqueOnly,
		)
		if err != nil {
			return nil, fmt.Errorf("failed scanning channel row: %w", err)
		}

		channels = append(channels, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed iterating channel rows: %w", err)
	}

	return channels, nil
}

// FindOrCreateChannel returns the channel record for id, inserting a fresh
// record with default flags when none exists yet.
func (s *Store) FindOrCreateChannel(ctx context.Context, id int64, name string) (Channel, error) {
	name = strings.ToLower(name)

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO channels (id, name) VALUES (?, ?) ON CONFLICT (id) DO NOTHING",
		id, name,
	)
	if err != nil {
		return Channel{}, fmt.Errorf("failed inserting channel: %w", err)
	}

	return s.ChannelByID(ctx, id)
}

// SaveChannel upserts the full channel record.
func (s *Store) SaveChannel(ctx context.Context, c Channel) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO channels (`+channelColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			name = excluded.name,
			connected = excluded.connected,
			offline_only = excluded.offline_only,
			emote_only = excluded.emote_only,
			subscriber_only = excluded.subscriber_only,
			followers_only_minutes = excluded.followers_only_minutes,
			slow_seconds = excluded.slow_seconds,
			unique_only = excluded.unique_only`,
		c.ID,
		strings.ToLower(c.Name),
		c.Connected,
		c.OfflineOnly,
		c.Modes.EmoteOnly,
		c.Modes.SubscriberOnly,
		c.Modes.FollowersOnlyMinutes,
		c.Modes.SlowSeconds,
		c.Modes.UniqueOnly,
	)
	if err != nil {
		return fmt.Errorf("failed saving channel %d: %w", c.ID, err)
	}

	return nil
}

// SetChannelConnected flips the connected flag without touching the rest of
// the record.
func (s *Store) SetChannelConnected(ctx context.Context, id int64, connected bool) error {
	_, err := s.db.ExecContext(ctx, "UPDATE channels SET connected = ? WHERE id = ?", connected, id)
	if err != nil {
		return fmt.Errorf("failed updating connected flag for channel %d: %w", id, err)
	}

	return nil
}

// UpdateRoomModes caches the latest roomstate snapshot for a channel. A
// roomstate for a channel the bot never stored is dropped silently.
func (s *Store) UpdateRoomModes(ctx context.Context, id int64, modes RoomModes) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE channels SET
			emote_only = ?,
			subscriber_only = ?,
			followers_only_minutes = ?,
			slow_seconds = ?,
			unique_only = ?
		WHERE id = ?`,
		modes.EmoteOnly,
		modes.SubscriberOnly,
		modes.FollowersOnlyMinutes,
		modes.SlowSeconds,
		modes.UniqueOnly,
		id,
	)
	if err != nil {
		return fmt.Errorf("failed updating room modes for channel %d: %w", id, err)
	}

	return nil
}
