// Package repost flags links that were already posted in a channel within
// the last 24 hours.
package repost

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/dustin/go-humanize"
	"github.com/jellydator/ttlcache/v3"
	"github.com/rs/zerolog"

	"github.com/znxtech/mechbot/store"
	"github.com/znxtech/mechbot/telemetry"
	"github.com/znxtech/mechbot/twitchirc"
)

// Window is how long a link stays on file before it may be posted again
// without a notice.
const Window = 24 * time.Hour

const linkScheme = "https://"

// Notifier posts the repost notice back into chat.
type Notifier interface {
	Say(ctx context.Context, channel, message string) error
}

// LinkStore is the persistent link record backing the cache.
type LinkStore interface {
	FindOrCreateLinkPost(ctx context.Context, post store.LinkPost) (store.LinkPost, bool, error)
	DeleteLinkPostsOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

type seenKey struct {
	roomID int64
	link   string
}

type seenPost struct {
	poster   string
	postedAt time.Time
}

type OptionFunc func(c *Cache)

// WithExcludedDomains skips links whose host matches one of the domains.
func WithExcludedDomains(domains []string) OptionFunc {
	return func(c *Cache) {
		for _, d := range domains {
			c.exclude = append(c.exclude, strings.ToLower(d))
		}
	}
}

// WithNowFunc overrides the clock, used in tests.
func WithNowFunc(now func() time.Time) OptionFunc {
	return func(c *Cache) {
		c.now = now
	}
}

// Cache tracks the first poster of every link per room. The SQLite records
// are the source of truth; an in-memory layer in front skips the database
// for links seen since startup.
type Cache struct {
	logger   zerolog.Logger
	store    LinkStore
	notifier Notifier
	exclude  []string
	seen     *ttlcache.Cache[seenKey, seenPost]
	now      func() time.Time
}

func NewCache(logger zerolog.Logger, linkStore LinkStore, notifier Notifier, opts ...OptionFunc) *Cache {
	c := &Cache{
		logger:   logger.With().Str("component", "repost-cache").Logger(),
		store:    linkStore,
		notifier: notifier,
		seen: ttlcache.New(
			ttlcache.WithDisableTouchOnHit[seenKey, seenPost](),
		),
		now: time.Now,
	}

	for _, f := range opts {
		f(c)
	}

	go c.seen.Start()

	return c
}

func (c *Cache) Stop() {
	c.seen.Stop()
}

// Process inspects a chat message for a link and flags it when somebody
// else already posted the same link inside the window. Only the first link
// of a message counts. Errors are logged and swallowed; a broken link
// lookup must never take down message handling.
func (c *Cache) Process(ctx context.Context, ev twitchirc.MessageEvent) {
	link, ok := extractLink(ev.Message)
	if !ok {
		return
	}

	if c.isExcluded(link) {
		return
	}

	now := c.now()

	// Expired records go away before the lookup so a link older than the
	// window counts as fresh again.
	if deleted, err := c.store.DeleteLinkPostsOlderThan(ctx, now.Add(-Window)); err != nil {
		c.logger.Err(err).Msg("could not sweep expired link posts")
	} else if deleted > 0 {
		c.logger.Debug().Int64("deleted", deleted).Msg("swept expired link posts")
	}

	key := seenKey{roomID: ev.RoomID, link: link}

	if entry := c.seen.Get(key); entry != nil {
		first := entry.Value()
		if now.Sub(first.postedAt) < Window {
			c.flagIfRepost(ctx, ev, link, first)
			return
		}

		// The eviction loop has not caught up yet, the record is stale.
		c.seen.Delete(key)
	}

	record, created, err := c.store.FindOrCreateLinkPost(ctx, store.LinkPost{
		RoomID:   ev.RoomID,
		Link:     link,
		Poster:   ev.UserName,
		PostedAt: now,
	})
	if err != nil {
		c.logger.Err(err).Str("link", link).Int64("room_id", ev.RoomID).Msg("could not look up link post")
		return
	}

	first := seenPost{poster: record.Poster, postedAt: record.PostedAt}
	if ttl := record.PostedAt.Add(Window).Sub(now); ttl > 0 {
		c.seen.Set(key, first, ttl)
	}

	if created {
		return
	}

	c.flagIfRepost(ctx, ev, link, first)
}

func (c *Cache) flagIfRepost(ctx context.Context, ev twitchirc.MessageEvent, link string, first seenPost) {
	// Reposting your own link is not called out.
	if strings.EqualFold(first.poster, ev.UserName) {
		return
	}

	telemetry.RepostsFlagged.Inc()

	notice := fmt.Sprintf("@%s that link was already posted by @%s %s", ev.UserDisplayName, first.poster, humanize.Time(first.postedAt))
	if err := c.notifier.Say(ctx, ev.Channel, notice); err != nil {
		c.logger.Err(err).Str("channel", ev.Channel).Msg("could not send repost notice")
	}

	c.logger.Debug().
		Str("link", link).
		Str("poster", first.poster).
		Str("reposter", ev.UserName).
		Int64("room_id", ev.RoomID).
		Msg("flagged repost")
}

func (c *Cache) isExcluded(link string) bool {
	host := strings.ToLower(strings.TrimPrefix(link, linkScheme))
	if i := strings.IndexAny(host, "/?#"); i != -1 {
		host = host[:i]
	}

	for _, domain := range c.exclude {
		if host == domain || strings.HasSuffix(host, "."+domain) {
			return true
		}
	}

	return false
}

// extractLink returns the first https link of a message. The link runs from
// the scheme to the next whitespace rune or the end of the message.
func extractLink(message string) (string, bool) {
	start := strings.Index(message, linkScheme)
	if start == -1 {
		return "", false
	}

	rest := message[start:]
	if end := strings.IndexFunc(rest, unicode.IsSpace); end != -1 {
		rest = rest[:end]
	}

	// A bare scheme with nothing behind it is not a link.
	if rest == linkScheme {
		return "", false
	}

	return rest, true
}
