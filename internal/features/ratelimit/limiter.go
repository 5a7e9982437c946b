package ratelimit

import (
	"sync"
	"time"
)

// Window caps admissions within a trailing duration.
type Window struct {
	Duration time.Duration
	Cap      int
}

// Decision is the outcome of an admission check.
type Decision struct {
	Admitted   bool
	RetryAfter time.Duration
}

var (
	DefaultLong  = Window{Duration: 60 * time.Second, Cap: 30}
	DefaultBurst = Window{Duration: 5 * time.Second, Cap: 5}
)

// Limiter is a per-user sliding-window limiter. An admission must satisfy
// every window; rejected attempts are not recorded.
type Limiter struct {
	mu      sync.Mutex
	windows []Window
	longest time.Duration
	users   map[int64][]time.Time
}

func New(windows ...Window) *Limiter {
	if len(windows) == 0 {
		windows = []Window{DefaultLong, DefaultBurst}
	}
	l := &Limiter{
		windows: windows,
		users:   make(map[int64][]time.Time),
	}
	for _, w := range windows {
		if w.Duration > l.longest {
			l.longest = w.Duration
		}
	}
	return l
}

func (l *Limiter) Admit(userID int64, now time.Time) Decision {
	return l.AdmitN(userID, now, 1)
}

// AdmitN charges cost slots in every window at once.
func (l *Limiter) AdmitN(userID int64, now time.Time, cost int) Decision {
	if cost < 1 {
		cost = 1
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	stamps := trim(l.users[userID], now.Add(-l.longest))

	var retry time.Duration
	for _, w := range l.windows {
		if cost > w.Cap {
			retry = max(retry, w.Duration)
			continue
		}
		inWindow := stamps[firstAfter(stamps, now.Add(-w.Duration)):]
		excess := len(inWindow) + cost - w.Cap
		if excess <= 0 {
			continue
		}
		// the excess-th oldest stamp has to age out first
		wait := inWindow[excess-1].Add(w.Duration).Sub(now)
		retry = max(retry, wait)
	}

	if retry > 0 {
		l.store(userID, stamps)
		return Decision{Admitted: false, RetryAfter: retry}
	}

	for i := 0; i < cost; i++ {
		stamps = append(stamps, now)
	}
	l.users[userID] = stamps
	return Decision{Admitted: true}
}

// Prune drops users with no admissions inside the longest window.
func (l *Limiter) Prune(now time.Time) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := now.Add(-l.longest)
	removed := 0
	for id, stamps := range l.users {
		stamps = trim(stamps, cutoff)
		if len(stamps) == 0 {
			delete(l.users, id)
			removed++
			continue
		}
		l.users[id] = stamps
	}
	return removed
}

func (l *Limiter) store(userID int64, stamps []time.Time) {
	if len(stamps) == 0 {
		delete(l.users, userID)
		return
	}
	l.users[userID] = stamps
}

// trim drops stamps at or before cutoff. stamps is ascending.
func trim(stamps []time.Time, cutoff time.Time) []time.Time {
	i := firstAfter(stamps, cutoff)
	if i == 0 {
		return stamps
	}
	return append(stamps[:0:0], stamps[i:]...)
}

func firstAfter(stamps []time.Time, cutoff time.Time) int {
	for i, ts := range stamps {
		if ts.After(cutoff) {
			return i
		}
	}
	return len(stamps)
}
