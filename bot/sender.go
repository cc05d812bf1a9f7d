package bot

import (
	"context"
	"errors"
	"strconv"
	"sync"

	"github.com/rs/zerolog"

	"github.com/znxtech/mechbot/store"
	"github.com/znxtech/mechbot/twitchirc"
)

// Twitch drops a message that is identical to the previous one from the
// same account. Appending this invisible tag every other time defeats the
// filter.
const dedupSuffix = " \U000E0000"

// ChatConn is the outbound side of the IRC connection.
type ChatConn interface {
	Send(msg twitchirc.IRCer) error
}

// Sender posts chat messages, honoring the offline-only flag of the target
// channel. The connection is attached after construction because the
// connection itself needs the message handler first.
type Sender struct {
	logger   zerolog.Logger
	channels ChannelStore
	live     LiveChecker

	mu       sync.Mutex
	conn     ChatConn
	lastSent map[string]string
}

func NewSender(logger zerolog.Logger, channels ChannelStore, live LiveChecker) *Sender {
	return &Sender{
		logger:   logger.With().Str("component", "sender").Logger(),
		channels: channels,
		live:     live,
		lastSent: map[string]string{},
	}
}

func (s *Sender) SetConn(conn ChatConn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conn = conn
}

// Say sends a message to a channel. For offline-only channels the message
// is dropped while the channel is live; a failed live lookup also drops
// the message rather than risking chat noise during a stream.
func (s *Sender) Say(ctx context.Context, channel, message string) error {
	channelRecord, err := s.channels.ChannelByName(ctx, channel)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return err
	}

	if err == nil && channelRecord.OfflineOnly {
		live, err := s.live.IsChannelLive(ctx, strconv.FormatInt(channelRecord.ID, 10))
		if err != nil {
			return err
		}

		if live {
			s.logger.Debug().Str("channel", channel).Msg("suppressed message, channel is live")
			return nil
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn == nil {
		return errors.New("sender has no connection attached")
	}

	if s.lastSent[channel] == message {
		message += dedupSuffix
	}
	s.lastSent[channel] = message

	return s.conn.Send(twitchirc.PrivateMessage{Channel: channel, Message: message})
}
