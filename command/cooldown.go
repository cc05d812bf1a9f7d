package command

import (
	"time"

	"github.com/jellydator/ttlcache/v3"
)

type cooldownKey struct {
	roomID int64
	userID int64
}

// cooldownTable tracks per (room, user) cooldown expiries for one command.
// Entries are created lazily on first trip; an absent entry means not on
// cooldown. Expiry is handled by a single scheduled-eviction cache per
// table instead of one timer per entry, and re-arming a key before its
// expiry replaces the old deadline, so a stale timer can never clear a
// fresher one.
type cooldownTable struct {
	cache *ttlcache.Cache[cooldownKey, struct{}]
}

func newCooldownTable() *cooldownTable {
	cache := ttlcache.New(
		ttlcache.WithDisableTouchOnHit[cooldownKey, struct{}](),
	)
	go cache.Start()

	return &cooldownTable{cache: cache}
}

// IsOnCooldown reports whether the pair currently sits on cooldown.
func (t *cooldownTable) IsOnCooldown(roomID, userID int64) bool {
	return t.cache.Get(cooldownKey{roomID: roomID, userID: userID}) != nil
}

// SetCooldown marks the pair on cooldown for the duration. A zero or
// negative duration means the cooldown is disabled and nothing is stored.
func (t *cooldownTable) SetCooldown(roomID, userID int64, d time.Duration) {
	if d <= 0 {
		return
	}

	t.cache.Set(cooldownKey{roomID: roomID, userID: userID}, struct{}{}, d)
}

func (t *cooldownTable) Stop() {
	t.cache.Stop()
}
