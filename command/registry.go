package command

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/znxtech/mechbot/telemetry"
	"github.com/znxtech/mechbot/twitchirc"
)

// DefaultPrefix marks command triggers inside chat messages.
const DefaultPrefix = "$"

var ErrUnknownCommand = errors.New("command: no command with that trigger")

// RankSource resolves a user's rank. Users without a stored record resolve
// to RankDefault.
type RankSource interface {
	UserRank(ctx context.Context, userID int64) (Rank, error)
}

// ChannelFlags reports whether a channel is configured offline-only.
// Channels without a stored record default to offline-only.
type ChannelFlags interface {
	IsOfflineOnly(ctx context.Context, roomID int64) (bool, error)
}

// LiveSource checks whether a channel is currently streaming.
type LiveSource interface {
	IsChannelLive(ctx context.Context, roomID int64) (bool, error)
}

// Registry holds the ordered command list and dispatches message events
// against it. Registration order is evaluation priority; the first matching
// command wins and at most one callback fires per event.
type Registry struct {
	logger   zerolog.Logger
	prefix   string
	ranks    RankSource
	channels ChannelFlags
	live     LiveSource

	commands []*Command

	// Serializes gate evaluation and cooldown arming per (room, user), so
	// two rapid messages from the same user cannot both slip past the
	// cooldown gate. The upstream behavior did not guarantee this.
	userLocks sync.Map // cooldownKey -> *sync.Mutex
}

type RegistryOptionFunc func(r *Registry)

// WithPrefix overrides the command prefix.
func WithPrefix(prefix string) RegistryOptionFunc {
	return func(r *Registry) {
		r.prefix = prefix
	}
}

func NewRegistry(logger zerolog.Logger, ranks RankSource, channels ChannelFlags, live LiveSource, opts ...RegistryOptionFunc) *Registry {
	r := &Registry{
		logger:   logger.With().Str("component", "command-registry").Logger(),
		prefix:   DefaultPrefix,
		ranks:    ranks,
		channels: channels,
		live:     live,
	}

	for _, f := range opts {
		f(r)
	}

	return r
}

// Register appends a command. Not safe to call concurrently with Dispatch;
// all registration happens at startup. Trigger collisions are the
// configuration layer's problem and are not validated here.
func (r *Registry) Register(spec Spec, cb Callback) *Command {
	cmd := newCommand(spec, cb)
	r.commands = append(r.commands, cmd)

	return cmd
}

// SetCooldown reconfigures the cooldown of the command owning the trigger.
func (r *Registry) SetCooldown(trigger string, d time.Duration) error {
	lowered := strings.ToLower(trigger)
	for _, cmd := range r.commands {
		if slices.Contains(cmd.triggers, lowered) {
			cmd.SetCooldownDuration(d)
			return nil
		}
	}

	return fmt.Errorf("%w: %s", ErrUnknownCommand, trigger)
}

// Close stops the per-command cooldown tables.
func (r *Registry) Close() {
	for _, cmd := range r.commands {
		cmd.cooldowns.Stop()
	}
}

// Dispatch evaluates a message event against the registered commands. A
// command with no matching trigger is skipped without side effects, its
// cooldown state untouched. On a trigger match the gates run in a fixed
// order (rank, cooldown, whitelist, blacklist, live-visibility) and
// short-circuit on the first failure; failures dispatch nothing. Errors
// from external lookups count as gate failures, never as reasons to stop
// processing future events.
func (r *Registry) Dispatch(ctx context.Context, ev twitchirc.MessageEvent) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error().Any("panic", rec).Str("message_id", ev.ID).Msg("recovered panic during dispatch")
		}
	}()

	// Fields, not Split: doubled spaces must not produce empty tokens that
	// would survive into the argument extraction.
	words := strings.Fields(ev.Message)
	if len(words) == 0 {
		return
	}

	for _, cmd := range r.commands {
		if !cmd.matches(words[0], r.prefix) {
			continue
		}

		if !r.passGates(ctx, cmd, ev) {
			return
		}

		args := ExtractArgs(words, cmd.args)

		telemetry.CommandsDispatched.Inc()
		cmd.callback(ctx, ev, args)

		// Single-dispatch, not an event bus.
		return
	}
}

// passGates runs the gate chain inside the per (room, user) critical
// section and arms the cooldown before reporting success.
func (r *Registry) passGates(ctx context.Context, cmd *Command, ev twitchirc.MessageEvent) bool {
	lock := r.lockFor(ev.RoomID, ev.UserID)
	lock.Lock()
	defer lock.Unlock()

	rank, err := r.ranks.UserRank(ctx, ev.UserID)
	if err != nil {
		r.gateFailed(cmd, ev, GateRank, err)
		return false
	}

	if rank < cmd.minRank {
		r.gateFailed(cmd, ev, GateRank, nil)
		cmd.deny(ctx, ev, GateRank)
		return false
	}

	if cmd.cooldowns.IsOnCooldown(ev.RoomID, ev.UserID) {
		r.gateFailed(cmd, ev, GateCooldown, nil)
		cmd.deny(ctx, ev, GateCooldown)
		return false
	}

	if len(cmd.whitelist) != 0 && !slices.Contains(cmd.whitelist, ev.Channel) {
		r.gateFailed(cmd, ev, GateWhitelist, nil)
		cmd.deny(ctx, ev, GateWhitelist)
		return false
	}

	if slices.Contains(cmd.blacklist, ev.Channel) {
		r.gateFailed(cmd, ev, GateBlacklist, nil)
		cmd.deny(ctx, ev, GateBlacklist)
		return false
	}

	offlineOnly, err := r.channels.IsOfflineOnly(ctx, ev.RoomID)
	if err != nil {
		r.gateFailed(cmd, ev, GateLive, err)
		return false
	}

	if offlineOnly {
		live, err := r.live.IsChannelLive(ctx, ev.RoomID)
		if err != nil {
			r.gateFailed(cmd, ev, GateLive, err)
			return false
		}

		if live {
			// Silent non-match while the channel is streaming.
			r.gateFailed(cmd, ev, GateLive, nil)
			return false
		}
	}

	if d := cmd.CooldownDuration(); d > 0 {
		cmd.cooldowns.SetCooldown(ev.RoomID, ev.UserID, d)
	}

	return true
}

func (r *Registry) gateFailed(cmd *Command, ev twitchirc.MessageEvent, gate Gate, err error) {
	telemetry.GateFailures.WithLabelValues(string(gate)).Inc()

	logEvent := r.logger.Debug()
	if err != nil {
		// Fail closed on broken lookups but keep the dispatch loop alive.
		logEvent = r.logger.Warn().Err(err)
	}

	logEvent.
		Str("command", cmd.Name()).
		Str("gate", string(gate)).
		Int64("room_id", ev.RoomID).
		Int64("user_id", ev.UserID).
		Msg("command gate failed")
}

func (r *Registry) lockFor(roomID, userID int64) *sync.Mutex {
	key := cooldownKey{roomID: roomID, userID: userID}
	lock, _ := r.userLocks.LoadOrStore(key, &sync.Mutex{})

	return lock.(*sync.Mutex)
}
