package command

import (
	"context"
	"strings"
	"sync/atomic"
	"time"

	"github.com/znxtech/mechbot/twitchirc"
)

// Gate names one of the preconditions evaluated before a command fires.
type Gate string

const (
	GateRank      Gate = "rank"
	GateCooldown  Gate = "cooldown"
	GateWhitelist Gate = "whitelist"
	GateBlacklist Gate = "blacklist"
	GateLive      Gate = "live"
)

// Callback is invoked with the triggering message and the extracted
// arguments when every gate passes.
type Callback func(ctx context.Context, ev twitchirc.MessageEvent, args Args)

// DeniedCallback optionally tells the user why a command did not fire.
// Gate failures are silent without it.
type DeniedCallback func(ctx context.Context, ev twitchirc.MessageEvent, gate Gate)

// Spec configures a command at registration time.
type Spec struct {
	// Triggers are the case-insensitive aliases that fire the command when
	// prefixed with the command prefix.
	Triggers []string

	// MinRank is the minimum rank required to use the command.
	MinRank Rank

	// Cooldown is the per (room, user) re-trigger lockout. Zero disables
	// it.
	Cooldown time.Duration

	// Whitelist restricts the command to the listed channels when
	// non-empty.
	Whitelist []string

	// Blacklist always excludes the listed channels.
	Blacklist []string

	// Args is the flag schema extracted from the message, see ExtractArgs.
	Args []ArgDef

	// OnDenied is called instead of the callback when a gate fails.
	OnDenied DeniedCallback
}

// Command is a registered behavior. Everything but the cooldown duration is
// immutable after registration.
type Command struct {
	triggers   []string // lower case
	minRank    Rank
	cooldownMS atomic.Int64
	whitelist  []string
	blacklist  []string
	args       []ArgDef
	callback   Callback
	onDenied   DeniedCallback

	cooldowns *cooldownTable
}

func newCommand(spec Spec, cb Callback) *Command {
	triggers := make([]string, 0, len(spec.Triggers))
	for _, trigger := range spec.Triggers {
		triggers = append(triggers, strings.ToLower(trigger))
	}

	cmd := &Command{
		triggers:  triggers,
		minRank:   spec.MinRank,
		whitelist: spec.Whitelist,
		blacklist: spec.Blacklist,
		args:      spec.Args,
		callback:  cb,
		onDenied:  spec.OnDenied,
		cooldowns: newCooldownTable(),
	}
	cmd.cooldownMS.Store(spec.Cooldown.Milliseconds())

	return cmd
}

// Name is the command's primary trigger.
func (c *Command) Name() string {
	if len(c.triggers) == 0 {
		return ""
	}

	return c.triggers[0]
}

// CooldownDuration returns the current cooldown duration.
func (c *Command) CooldownDuration() time.Duration {
	return time.Duration(c.cooldownMS.Load()) * time.Millisecond
}

// SetCooldownDuration reconfigures the cooldown at runtime. Already armed
// cooldowns keep their original expiry.
func (c *Command) SetCooldownDuration(d time.Duration) {
	c.cooldownMS.Store(d.Milliseconds())
}

func (c *Command) matches(firstWord, prefix string) bool {
	lowered := strings.ToLower(firstWord)
	for _, trigger := range c.triggers {
		if lowered == prefix+trigger {
			return true
		}
	}

	return false
}

func (c *Command) deny(ctx context.Context, ev twitchirc.MessageEvent, gate Gate) {
	if c.onDenied != nil {
		c.onDenied(ctx, ev, gate)
	}
}
