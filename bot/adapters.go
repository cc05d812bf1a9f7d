package bot

import (
	"context"
	"errors"
	"strconv"

	"github.com/znxtech/mechbot/command"
	"github.com/znxtech/mechbot/store"
)

// ChannelStore is the subset of the persistent store the adapters read.
type ChannelStore interface {
	ChannelByID(ctx context.Context, id int64) (store.Channel, error)
	ChannelByName(ctx context.Context, name string) (store.Channel, error)
	ConnectedChannels(ctx context.Context) ([]store.Channel, error)
}

type UserStore interface {
	UserByID(ctx context.Context, id int64) (store.User, error)
	FindOrCreateUser(ctx context.Context, id int64, name string) (store.User, error)
}

// StoreRankSource resolves command ranks from persisted user records.
// Unknown users fall back to the default rank; storage failures surface as
// errors so the dispatcher can fail closed.
type StoreRankSource struct {
	Users UserStore
}

func (s StoreRankSource) UserRank(ctx context.Context, userID int64) (command.Rank, error) {
	user, err := s.Users.UserByID(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return command.RankDefault, nil
	}
	if err != nil {
		return command.RankDefault, err
	}

	return command.Rank(user.Rank), nil
}

// StoreChannelFlags reads the offline-only flag from persisted channel
// records. Channels without a record count as offline-only.
type StoreChannelFlags struct {
	Channels ChannelStore
}

func (s StoreChannelFlags) IsOfflineOnly(ctx context.Context, roomID int64) (bool, error) {
	channel, err := s.Channels.ChannelByID(ctx, roomID)
	if errors.Is(err, store.ErrNotFound) {
		return true, nil
	}
	if err != nil {
		return false, err
	}

	return channel.OfflineOnly, nil
}

// LiveChecker answers whether a broadcaster currently streams. Implemented
// by the Helix API client.
type LiveChecker interface {
	IsChannelLive(ctx context.Context, broadcastID string) (bool, error)
}

// HelixLiveSource bridges the dispatcher's numeric room IDs to the Helix
// string IDs.
type HelixLiveSource struct {
	API LiveChecker
}

func (h HelixLiveSource) IsChannelLive(ctx context.Context, roomID int64) (bool, error) {
	return h.API.IsChannelLive(ctx, strconv.FormatInt(roomID, 10))
}

// StoreChannelSource feeds the IRC connection the channels to rejoin after
// a (re)connect.
type StoreChannelSource struct {
	Channels ChannelStore
}

func (s StoreChannelSource) ConnectedChannelNames(ctx context.Context) ([]string, error) {
	channels, err := s.Channels.ConnectedChannels(ctx)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(channels))
	for _, c := range channels {
		names = append(names, c.Name)
	}

	return names, nil
}
