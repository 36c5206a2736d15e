package bot

import (
	"time"

	"github.com/ReneKroon/ttlcache/v2"
	"github.com/diamondburned/arikawa/v3/discord"
	"github.com/starshine-sys/archiver/common"
)

// limiter allows one run per guild at a time, with a cooldown after every run.
type limiter struct {
	cooldown time.Duration

	running   *common.Set[discord.GuildID]
	cooldowns *ttlcache.Cache

	now func() time.Time
}

func newLimiter(cooldown time.Duration) *limiter {
	c := ttlcache.NewCache()
	c.SkipTTLExtensionOnHit(true)

	return &limiter{
		cooldown:  cooldown,
		running:   common.NewSet[discord.GuildID](),
		cooldowns: c,
		now:       time.Now,
	}
}

// acquire marks a run in the guild as started.
// If a run is already going, or the guild is on cooldown, it returns false and the time left to wait.
// A running archive has no known end, so the full cooldown is returned in that case.
func (l *limiter) acquire(guildID discord.GuildID) (wait time.Duration, ok bool) {
	if v, err := l.cooldowns.Get(guildID.String()); err == nil {
		if left := v.(time.Time).Sub(l.now()); left > 0 {
			return left, false
		}
	}

	if !l.running.Add(guildID) {
		return l.cooldown, false
	}
	return 0, true
}

// release marks the guild's run as finished and starts its cooldown.
func (l *limiter) release(guildID discord.GuildID) {
	if l.cooldown > 0 {
		err := l.cooldowns.SetWithTTL(guildID.String(), l.now().Add(l.cooldown), l.cooldown)
		if err != nil {
			common.Log.Errorf("Error setting cooldown for %v: %v", guildID, err)
		}
	}
	l.running.Remove(guildID)
}

func (l *limiter) close() {
	_ = l.cooldowns.Close()
}
