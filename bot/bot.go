// Package bot wires the IRC connection, command dispatcher, repost cache
// and persistent store into a running chat bot.
package bot

import (
	"context"
	"slices"
	"sync"

	"github.com/rs/zerolog"

	"github.com/znxtech/mechbot/store"
	"github.com/znxtech/mechbot/twitchirc"
)

// Dispatcher evaluates a chat message against the registered commands.
type Dispatcher interface {
	Dispatch(ctx context.Context, ev twitchirc.MessageEvent)
}

// RepostChecker inspects a chat message for reposted links.
type RepostChecker interface {
	Process(ctx context.Context, ev twitchirc.MessageEvent)
}

// RoomStore persists per-channel state derived from chat events.
type RoomStore interface {
	UserStore
	UpdateRoomModes(ctx context.Context, id int64, modes store.RoomModes) error
}

// Bot is the event handler behind the IRC connection. Connection hooks run
// on the read loop, so anything that can block goes to a goroutine; the
// read loop must stay free to answer server pings.
type Bot struct {
	twitchirc.NopHandler

	logger     zerolog.Logger
	store      RoomStore
	dispatcher Dispatcher
	reposts    RepostChecker
	knownBots  []string

	ctx context.Context
	wg  sync.WaitGroup
}

// New creates a bot handler. ctx bounds all work spawned from event hooks;
// cancel it and Wait to drain in-flight handlers on shutdown. knownBots
// are chat accounts whose messages are ignored entirely, the bot's own
// login included.
func New(ctx context.Context, logger zerolog.Logger, roomStore RoomStore, dispatcher Dispatcher, reposts RepostChecker, knownBots []string) *Bot {
	return &Bot{
		logger:     logger.With().Str("component", "bot").Logger(),
		store:      roomStore,
		dispatcher: dispatcher,
		reposts:    reposts,
		knownBots:  knownBots,
		ctx:        ctx,
	}
}

// Wait blocks until all in-flight event work has finished.
func (b *Bot) Wait() {
	b.wg.Wait()
}

func (b *Bot) OnMessage(ev twitchirc.MessageEvent) {
	if slices.Contains(b.knownBots, ev.UserName) {
		return
	}

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()

		if _, err := b.store.FindOrCreateUser(b.ctx, ev.UserID, ev.UserName); err != nil {
			b.logger.Err(err).Int64("user_id", ev.UserID).Msg("could not persist user record")
		}

		b.dispatcher.Dispatch(b.ctx, ev)
		b.reposts.Process(b.ctx, ev)
	}()
}

func (b *Bot) OnRoomstate(ev twitchirc.RoomstateEvent) {
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()

		modes := store.RoomModes{
			EmoteOnly:            ev.EmoteOnly,
			SubscriberOnly:       ev.SubscriberOnly,
			FollowersOnlyMinutes: ev.FollowersOnlyMinutes,
			SlowSeconds:          ev.SlowSeconds,
			UniqueOnly:           ev.UniqueOnly,
		}

		if err := b.store.UpdateRoomModes(b.ctx, ev.RoomID, modes); err != nil {
			b.logger.Err(err).Int64("room_id", ev.RoomID).Msg("could not persist room modes")
		}
	}()
}

func (b *Bot) OnUsernotice(ev twitchirc.UsernoticeEvent) {
	b.logger.Info().
		Str("channel", ev.Channel).
		Str("type", ev.NoticeType).
		Str("notice", ev.NoticeMessage).
		Msg("user notice")
}

func (b *Bot) OnJoin(ev twitchirc.JoinEvent) {
	b.logger.Debug().Str("channel", ev.Channel).Str("user", ev.UserName).Msg("join")
}

func (b *Bot) OnPart(ev twitchirc.PartEvent) {
	b.logger.Debug().Str("channel", ev.Channel).Str("user", ev.UserName).Msg("part")
}

func (b *Bot) OnUnknown(ev twitchirc.UnknownEvent) {
	b.logger.Debug().Str("verb", ev.Verb).Str("raw", ev.Raw).Msg("unhandled event")
}
