package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/znxtech/mechbot/command"
	"github.com/znxtech/mechbot/store"
	"github.com/znxtech/mechbot/twitch"
	"github.com/znxtech/mechbot/twitchirc"
)

// AdminStore is the subset of the persistent store the builtin commands
// write to.
type AdminStore interface {
	FindOrCreateChannel(ctx context.Context, id int64, name string) (store.Channel, error)
	SetChannelConnected(ctx context.Context, id int64, connected bool) error
	ChannelByName(ctx context.Context, name string) (store.Channel, error)
	FindOrCreateUser(ctx context.Context, id int64, name string) (store.User, error)
	SetUserRank(ctx context.Context, id int64, rank int) error
}

// UserResolver turns a login name into a Twitch account.
type UserResolver interface {
	ResolveUserByLogin(ctx context.Context, login string) (twitch.UserData, error)
}

// ChannelJoiner sends join and part frames on the IRC connection.
type ChannelJoiner interface {
	JoinChannel(channel string) error
	PartChannel(channel string) error
}

// Builtins carries the dependencies of the built-in management commands.
type Builtins struct {
	Logger   zerolog.Logger
	Store    AdminStore
	Resolver UserResolver
	Conn     ChannelJoiner
	Sender   *Sender
}

// RegisterBuiltins adds the management commands to the registry: join,
// part, cooldown and rank. They are registered first, so user-defined
// commands can never shadow them.
func RegisterBuiltins(registry *command.Registry, deps Builtins) {
	logger := deps.Logger.With().Str("component", "builtins").Logger()

	registry.Register(command.Spec{
		Triggers: []string{"join"},
		MinRank:  command.RankAdmin,
	}, func(ctx context.Context, ev twitchirc.MessageEvent, args command.Args) {
		main, _ := args[command.MainArg].Text()
		login := strings.ToLower(main)
		if login == "" {
			deps.say(ctx, logger, ev.Channel, fmt.Sprintf("@%s usage: join <channel>", ev.UserDisplayName))
			return
		}

		user, err := deps.Resolver.ResolveUserByLogin(ctx, login)
		if err != nil {
			logger.Err(err).Str("login", login).Msg("could not resolve channel to join")
			deps.say(ctx, logger, ev.Channel, fmt.Sprintf("@%s could not find channel %s", ev.UserDisplayName, login))
			return
		}

		id, err := strconv.ParseInt(user.ID, 10, 64)
		if err != nil {
			logger.Err(err).Str("id", user.ID).Msg("unparsable user id from api")
			return
		}

		if _, err := deps.Store.FindOrCreateChannel(ctx, id, user.Login); err != nil {
			logger.Err(err).Int64("id", id).Msg("could not persist channel")
			return
		}

		if err := deps.Store.SetChannelConnected(ctx, id, true); err != nil {
			logger.Err(err).Int64("id", id).Msg("could not mark channel connected")
			return
		}

		if err := deps.Conn.JoinChannel(user.Login); err != nil {
			logger.Err(err).Str("channel", user.Login).Msg("could not send join")
			return
		}

		deps.say(ctx, logger, ev.Channel, fmt.Sprintf("@%s joined #%s", ev.UserDisplayName, user.Login))
	})

	registry.Register(command.Spec{
		Triggers: []string{"part", "leave"},
		MinRank:  command.RankAdmin,
	}, func(ctx context.Context, ev twitchirc.MessageEvent, args command.Args) {
		main, _ := args[command.MainArg].Text()
		login := strings.ToLower(main)
		if login == "" {
			login = ev.Channel
		}

		channel, err := deps.Store.ChannelByName(ctx, login)
		if err != nil {
			logger.Err(err).Str("channel", login).Msg("could not look up channel to part")
			deps.say(ctx, logger, ev.Channel, fmt.Sprintf("@%s unknown channel %s", ev.UserDisplayName, login))
			return
		}

		if err := deps.Store.SetChannelConnected(ctx, channel.ID, false); err != nil {
			logger.Err(err).Int64("id", channel.ID).Msg("could not mark channel disconnected")
			return
		}

		if err := deps.Conn.PartChannel(channel.Name); err != nil {
			logger.Err(err).Str("channel", channel.Name).Msg("could not send part")
			return
		}

		deps.say(ctx, logger, ev.Channel, fmt.Sprintf("@%s left #%s", ev.UserDisplayName, channel.Name))
	})

	registry.Register(command.Spec{
		Triggers: []string{"cooldown"},
		MinRank:  command.RankAdmin,
	}, func(ctx context.Context, ev twitchirc.MessageEvent, args command.Args) {
		main, _ := args[command.MainArg].Text()
		fields := strings.Fields(main)
		if len(fields) != 2 {
			deps.say(ctx, logger, ev.Channel, fmt.Sprintf("@%s usage: cooldown <command> <duration>", ev.UserDisplayName))
			return
		}

		duration, err := parseCooldown(fields[1])
		if err != nil {
			deps.say(ctx, logger, ev.Channel, fmt.Sprintf("@%s could not parse duration %s", ev.UserDisplayName, fields[1]))
			return
		}

		if err := registry.SetCooldown(fields[0], duration); err != nil {
			deps.say(ctx, logger, ev.Channel, fmt.Sprintf("@%s no command named %s", ev.UserDisplayName, fields[0]))
			return
		}

		deps.say(ctx, logger, ev.Channel, fmt.Sprintf("@%s cooldown of %s set to %s", ev.UserDisplayName, fields[0], duration))
	})

	registry.Register(command.Spec{
		Triggers: []string{"rank"},
		MinRank:  command.RankOwner,
	}, func(ctx context.Context, ev twitchirc.MessageEvent, args command.Args) {
		main, _ := args[command.MainArg].Text()
		fields := strings.Fields(main)
		if len(fields) != 2 {
			deps.say(ctx, logger, ev.Channel, fmt.Sprintf("@%s usage: rank <user> <banned|default|trusted|admin|owner>", ev.UserDisplayName))
			return
		}

		rank, err := parseRank(fields[1])
		if err != nil {
			deps.say(ctx, logger, ev.Channel, fmt.Sprintf("@%s unknown rank %s", ev.UserDisplayName, fields[1]))
			return
		}

		user, err := deps.Resolver.ResolveUserByLogin(ctx, strings.ToLower(fields[0]))
		if err != nil {
			logger.Err(err).Str("login", fields[0]).Msg("could not resolve user to rank")
			deps.say(ctx, logger, ev.Channel, fmt.Sprintf("@%s could not find user %s", ev.UserDisplayName, fields[0]))
			return
		}

		id, err := strconv.ParseInt(user.ID, 10, 64)
		if err != nil {
			logger.Err(err).Str("id", user.ID).Msg("unparsable user id from api")
			return
		}

		if _, err := deps.Store.FindOrCreateUser(ctx, id, user.Login); err != nil {
			logger.Err(err).Int64("id", id).Msg("could not persist user")
			return
		}

		if err := deps.Store.SetUserRank(ctx, id, int(rank)); err != nil {
			logger.Err(err).Int64("id", id).Msg("could not update rank")
			return
		}

		deps.say(ctx, logger, ev.Channel, fmt.Sprintf("@%s %s is now %s", ev.UserDisplayName, user.Login, rank))
	})
}

func (b Builtins) say(ctx context.Context, logger zerolog.Logger, channel, message string) {
	if err := b.Sender.Say(ctx, channel, message); err != nil {
		logger.Err(err).Str("channel", channel).Msg("could not send reply")
	}
}

// parseCooldown accepts a Go duration string or a bare number of seconds.
func parseCooldown(s string) (time.Duration, error) {
	if d, err := time.ParseDuration(s); err == nil {
		return d, nil
	}

	secs, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("not a duration: %q", s)
	}

	return time.Duration(secs) * time.Second, nil
}

func parseRank(s string) (command.Rank, error) {
	switch strings.ToLower(s) {
	case "banned":
		return command.RankBanned, nil
	case "default":
		return command.RankDefault, nil
	case "trusted":
		return command.RankTrusted, nil
	case "admin":
		return command.RankAdmin, nil
	case "owner":
		return command.RankOwner, nil
	}

	return command.RankDefault, fmt.Errorf("unknown rank: %q", s)
}
