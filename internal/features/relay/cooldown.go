package relay

import (
	"sync"
	"time"
)

// cooldowns enforces a minimum gap between a user's admitted posts.
type cooldowns struct {
	mu   sync.Mutex
	last map[int64]time.Time
}

func newCooldowns() *cooldowns {
	return &cooldowns{last: make(map[int64]time.Time)}
}

// acquire claims the next post slot for userID when gap has passed since the
// previous one and returns how long to wait otherwise. The check and the
// claim happen under one lock. undo gives the slot back unless a later post
// already replaced it.
func (c *cooldowns) acquire(userID int64, now time.Time, gap time.Duration) (wait time.Duration, undo func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	prev, had := c.last[userID]
	if had {
		if wait := prev.Add(gap).Sub(now); wait > 0 {
			return wait, nil
		}
	}
	c.last[userID] = now

	return 0, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if cur, ok := c.last[userID]; !ok || !cur.Equal(now) {
			return
		}
		if had {
			c.last[userID] = prev
		} else {
			delete(c.last, userID)
		}
	}
}

func (c *cooldowns) prune(now time.Time, maxGap time.Duration) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for id, last := range c.last {
		if !now.Before(last.Add(maxGap)) {
			delete(c.last, id)
			removed++
		}
	}
	return removed
}
