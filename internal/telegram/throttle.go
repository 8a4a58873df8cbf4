package telegram

import (
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/manicko/mko-birth-reminder-bot/internal/config"
)

// Event kinds with their own rate budget.
const (
	kindText     = "text"
	kindCallback = "callback"
)

type bucketKey struct {
	user int64
	kind string
}

// Throttler rate-limits each user separately per event kind.
type Throttler struct {
	mu      sync.Mutex
	limits  map[string]config.Throttle
	buckets map[bucketKey]*rate.Limiter
	now     func() time.Time
}

func NewThrottler(limits map[string]config.Throttle) *Throttler {
	return &Throttler{limits: limits, buckets: make(map[bucketKey]*rate.Limiter), now: time.Now}
}

// Allow reports whether the event may be handled. Kinds without a configured
// limit are never throttled.
func (t *Throttler) Allow(user int64, kind string) bool {
	l, ok := t.limits[kind]
	if !ok || l.Requests <= 0 || l.Period <= 0 {
		return true
	}
	k := bucketKey{user, kind}

	t.mu.Lock()
	lim, ok := t.buckets[k]
	if !ok {
		lim = rate.NewLimiter(rate.Every(l.Period/time.Duration(l.Requests)), l.Requests)
		t.buckets[k] = lim
	}
	t.mu.Unlock()

	return lim.AllowN(t.now(), 1)
}

// Forget drops the user's buckets.
func (t *Throttler) Forget(user int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for k := range t.buckets {
		if k.user == user {
			delete(t.buckets, k)
		}
	}
}

// Prune drops limiters that have refilled to their full burst.
func (t *Throttler) Prune() int {
	now := t.now()
	t.mu.Lock()
	defer t.mu.Unlock()
	n := 0
	for k, lim := range t.buckets {
		if lim.TokensAt(now) >= float64(lim.Burst()) {
			delete(t.buckets, k)
			n++
		}
	}
	return n
}
