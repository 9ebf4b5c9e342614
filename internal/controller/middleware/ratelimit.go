package middleware

import (
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

const defaultSweepThreshold = 1024

// RateLimiter applies a token bucket per client IP. Expired buckets are
// swept once the number of tracked clients reaches a threshold.
type RateLimiter struct {
	limit    rate.Limit
	burst    int
	ttl      time.Duration
	limiters sync.Map // client IP -> *cachedLimiter
	now      func() time.Time

	sweepBase int64
	size      atomic.Int64
	sweepAt   atomic.Int64
	sweepMu   sync.Mutex
}

// Option configures a RateLimiter.
type Option func(*RateLimiter)

// WithTTL sets how long an idle client's bucket is kept.
func WithTTL(ttl time.Duration) Option {
	return func(rl *RateLimiter) {
		rl.ttl = ttl
	}
}

// WithLimit sets the sustained requests per second and the burst size.
// A zero rps disables limiting.
func WithLimit(rps float64, burst int) Option {
	return func(rl *RateLimiter) {
		rl.limit = rate.Limit(rps)
		rl.burst = burst
	}
}

// WithSweepThreshold sets how many tracked clients trigger a sweep of
// expired buckets.
func WithSweepThreshold(n int) Option {
	return func(rl *RateLimiter) {
		rl.sweepBase = int64(n)
	}
}

// NewRateLimiter returns a limiter allowing 20 rps with a burst of 40 unless
// configured otherwise.
func NewRateLimiter(opts ...Option) *RateLimiter {
	rl := &RateLimiter{
		limit:     20,
		burst:     40,
		ttl:       5 * time.Minute,
		now:       time.Now,
		sweepBase: defaultSweepThreshold,
	}
	for _, opt := range opts {
		opt(rl)
	}
	rl.sweepAt.Store(rl.sweepBase)
	if rl.burst < 1 {
		rl.burst = 1
	}
	return rl
}

// Middleware rejects requests over the client's limit with 429.
func (rl *RateLimiter) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// limit=0 means unlimited
			if rl.limit > 0 {
				if !rl.get(clientIP(r)).Allow() {
					w.Header().Set("Retry-After", "1")
					http.Error(w, "Too Many Requests", http.StatusTooManyRequests)
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

type cachedLimiter struct {
	limiter   *rate.Limiter
	expiresAt time.Time
}

func (rl *RateLimiter) get(key string) *rate.Limiter {
	now := rl.now()
	for {
		v, ok := rl.limiters.Load(key)
		if ok && now.Before(v.(*cachedLimiter).expiresAt) {
			return v.(*cachedLimiter).limiter
		}

		fresh := &cachedLimiter{
			limiter:   rate.NewLimiter(rl.limit, rl.burst),
			expiresAt: now.Add(rl.ttl),
		}
		if ok {
			// Replace the expired bucket unless another request already did.
			if rl.limiters.CompareAndSwap(key, v, fresh) {
				return fresh.limiter
			}
			continue
		}
		if _, loaded := rl.limiters.LoadOrStore(key, fresh); !loaded {
			rl.added(now)
			return fresh.limiter
		}
	}
}

// added counts a new client and sweeps expired buckets past the threshold.
func (rl *RateLimiter) added(now time.Time) {
	if rl.size.Add(1) < rl.sweepAt.Load() {
		return
	}
	if !rl.sweepMu.TryLock() {
		return
	}
	defer rl.sweepMu.Unlock()

	rl.limiters.Range(func(k, v any) bool {
		if !now.Before(v.(*cachedLimiter).expiresAt) && rl.limiters.CompareAndDelete(k, v) {
			rl.size.Add(-1)
		}
		return true
	})
	// Live clients above the threshold would otherwise trigger a sweep per request.
	rl.sweepAt.Store(max(rl.sweepBase, 2*rl.size.Load()))
}

// tracked reports how many client buckets are held.
func (rl *RateLimiter) tracked() int {
	return int(rl.size.Load())
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
