package twitchirc

import (
	"strconv"
	"strings"
	"time"
)

// EventKind is the IRC verb that identifies an event variant.
type EventKind string

const (
	KindMessage    EventKind = "PRIVMSG"
	KindUserstate  EventKind = "USERSTATE"
	KindUsernotice EventKind = "USERNOTICE"
	KindRoomstate  EventKind = "ROOMSTATE"
	KindReconnect  EventKind = "RECONNECT"
	KindJoin       EventKind = "JOIN"
	KindPart       EventKind = "PART"
	KindPing       EventKind = "PING"
	KindUnknown    EventKind = "UNKNOWN"
)

// Event is the closed set of parsed IRC line variants. Every variant embeds
// Base and is immutable once constructed by Parse.
type Event interface {
	Kind() EventKind
}

// Base carries the fields shared by all event variants.
type Base struct {
	// Raw is the unmodified IRC line the event was parsed from.
	Raw string

	// Source is the ":source" token of the line, prefix included, or empty.
	Source string
}

// MessageEvent is a PRIVMSG sent to a joined channel.
type MessageEvent struct {
	Base

	ID     string
	SentAt time.Time
	RoomID int64
	UserID int64

	UserName        string // login, always lower case
	UserDisplayName string
	Color           string
	Badges          map[string]int

	IsMod        bool
	IsSubscriber bool
	IsTurbo      bool

	Channel string // channel name without the leading #
	Message string
}

func (MessageEvent) Kind() EventKind { return KindMessage }

// UserstateEvent describes the bot's own state in a channel.
type UserstateEvent struct {
	Base

	UserName        string
	UserDisplayName string
	Color           string
	Badges          map[string]int

	IsMod        bool
	IsSubscriber bool
	IsTurbo      bool

	Channel string
}

func (UserstateEvent) Kind() EventKind { return KindUserstate }

// UsernoticeEvent is a USERNOTICE (sub, raid, announcement, ...).
type UsernoticeEvent struct {
	Base

	ID     string
	SentAt time.Time
	RoomID int64
	UserID int64

	UserName        string
	UserDisplayName string
	Color           string
	Badges          map[string]int

	IsMod        bool
	IsSubscriber bool
	IsTurbo      bool

	NoticeType    string // msg-id tag
	NoticeMessage string // system-msg tag

	Channel string
	Message string
}

func (UsernoticeEvent) Kind() EventKind { return KindUsernotice }

// RoomstateEvent carries a channel's chat mode settings.
type RoomstateEvent struct {
	Base

	RoomID int64

	EmoteOnly      bool
	SubscriberOnly bool
	// FollowersOnlyMinutes is the minimum follow age in minutes, -1 when
	// followers-only mode is disabled.
	FollowersOnlyMinutes int
	SlowSeconds          int
	UniqueOnly           bool

	Channel string
}

func (RoomstateEvent) Kind() EventKind { return KindRoomstate }

// ReconnectEvent is the server's notice that it is about to terminate the
// connection and the client should reconnect.
type ReconnectEvent struct {
	Base
}

func (ReconnectEvent) Kind() EventKind { return KindReconnect }

type JoinEvent struct {
	Base

	// UserName is the joining user's login, taken from the source prefix.
	UserName string
	Channel  string
}

func (JoinEvent) Kind() EventKind { return KindJoin }

type PartEvent struct {
	Base

	UserName string
	Channel  string
}

func (PartEvent) Kind() EventKind { return KindPart }

// PingEvent is a server keepalive probe. The ping source arrives as the
// first argument of the line, not as the prefix, so it is extracted from
// there.
type PingEvent struct {
	Base

	PingSource string
}

func (PingEvent) Kind() EventKind { return KindPing }

// UnknownEvent retains the raw tag map and argument list of any verb the
// parser does not handle, so adding support for new verbs stays additive.
type UnknownEvent struct {
	Base

	Verb string
	Tags map[string]string
	Args []string
}

func (UnknownEvent) Kind() EventKind { return KindUnknown }

func newMessageEvent(base Base, tags tags, args []string) MessageEvent {
	return MessageEvent{
		Base:            base,
		ID:              tags["id"],
		SentAt:          parseTimestamp(tags["tmi-sent-ts"]),
		RoomID:          tagInt(tags, "room-id"),
		UserID:          tagInt(tags, "user-id"),
		UserName:        strings.ToLower(tags["display-name"]),
		UserDisplayName: tags["display-name"],
		Color:           tags["color"],
		Badges:          parseBadgeLevels(tags["badges"]),
		IsMod:           tagFlag(tags, "mod"),
		IsSubscriber:    tagFlag(tags, "subscriber"),
		IsTurbo:         tagFlag(tags, "turbo"),
		Channel:         channelArg(args),
		Message:         messageArg(args),
	}
}

func newUserstateEvent(base Base, tags tags, args []string) UserstateEvent {
	return UserstateEvent{
		Base:            base,
		UserName:        strings.ToLower(tags["display-name"]),
		UserDisplayName: tags["display-name"],
		Color:           tags["color"],
		Badges:          parseBadgeLevels(tags["badges"]),
		IsMod:           tagFlag(tags, "mod"),
		IsSubscriber:    tagFlag(tags, "subscriber"),
		IsTurbo:         tagFlag(tags, "turbo"),
		Channel:         channelArg(args),
	}
}

func newUsernoticeEvent(base Base, tags tags, args []string) UsernoticeEvent {
	return UsernoticeEvent{
		Base:            base,
		ID:              tags["id"],
		SentAt:          parseTimestamp(tags["tmi-sent-ts"]),
		RoomID:          tagInt(tags, "room-id"),
		UserID:          tagInt(tags, "user-id"),
		UserName:        strings.ToLower(tags["display-name"]),
		UserDisplayName: tags["display-name"],
		Color:           tags["color"],
		Badges:          parseBadgeLevels(tags["badges"]),
		IsMod:           tagFlag(tags, "mod"),
		IsSubscriber:    tagFlag(tags, "subscriber"),
		IsTurbo:         tagFlag(tags, "turbo"),
		NoticeType:      tags["msg-id"],
		NoticeMessage:   tags["system-msg"],
		Channel:         channelArg(args),
		Message:         messageArg(args),
	}
}

func newRoomstateEvent(base Base, tags tags, args []string) RoomstateEvent {
	return RoomstateEvent{
		Base:                 base,
		RoomID:               tagInt(tags, "room-id"),
		EmoteOnly:            tagFlag(tags, "emote-only"),
		SubscriberOnly:       tagFlag(tags, "subs-only"),
		FollowersOnlyMinutes: int(tagInt(tags, "followers-only")),
		SlowSeconds:          int(tagInt(tags, "slow")),
		UniqueOnly:           tagFlag(tags, "r9k"),
		Channel:              channelArg(args),
	}
}

// sourceLogin extracts the user login from a ":user!user@user.tmi.twitch.tv"
// source prefix. Server-originated prefixes without a "!" yield "".
func sourceLogin(source string) string {
	source = strings.TrimPrefix(source, ":")

	login, _, found := strings.Cut(source, "!")
	if !found {
		return ""
	}

	return strings.ToLower(login)
}

// channelArg strips a single leading # from the first argument.
func channelArg(args []string) string {
	if len(args) == 0 {
		return ""
	}

	return strings.TrimPrefix(args[0], "#")
}

// messageArg rebuilds the message text from everything after the channel
// argument. Exactly one leading colon is removed; any further colons are
// part of the message itself.
func messageArg(args []string) string {
	if len(args) < 2 {
		return ""
	}

	return strings.TrimPrefix(strings.Join(args[1:], " "), ":")
}

// tagInt decodes a numeric tag, zero when missing or malformed. Tags are
// well formed in practice, this is a best-effort decode, not a validating
// one.
func tagInt(t tags, key string) int64 {
	i, err := strconv.ParseInt(t[key], 10, 64)
	if err != nil {
		return 0
	}

	return i
}

// tagFlag decodes a 0/1 boolean tag.
func tagFlag(t tags, key string) bool {
	return t[key] == "1"
}

// parseBadgeLevels decodes the badges tag, a comma separated list of
// name/level pairs.
func parseBadgeLevels(badgeStr string) map[string]int {
	badges := map[string]int{}
	if badgeStr == "" {
		return badges
	}

	for _, badge := range strings.Split(badgeStr, ",") {
		parts := strings.SplitN(badge, "/", 2)
		if len(parts) != 2 {
			badges[parts[0]] = 0
			continue
		}

		level, err := strconv.Atoi(parts[1])
		if err != nil {
			badges[parts[0]] = 0
			continue
		}

		badges[parts[0]] = level
	}

	return badges
}

func parseTimestamp(timeStr string) time.Time {
	i, err := strconv.ParseInt(timeStr, 10, 64)
	if err != nil {
		return time.Time{}
	}

	return time.Unix(0, i*1e6)
}
