package auth

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"devdeck/internal/observability"
)

// RateLimitMessage is the fixed advisory returned when an IP exhausts
// its login quota.
const RateLimitMessage = "Too many login attempts from this IP, please try again after 15 minutes."

const (
	defaultRateLimitMax    = 5
	defaultRateLimitWindow = 15 * time.Minute
)

// HitStore holds the sliding-window attempt timestamps per client IP.
// The default is in-process memory: state is lost on restart and is not
// shared between server instances. Multi-node deployments need a shared
// implementation behind this interface.
type HitStore interface {
	// Hits returns the attempts recorded for ip after since, discarding
	// anything older.
	Hits(ip string, since time.Time) []time.Time
	// Record adds an attempt for ip. Implementations may use since to
	// evict stale state for other keys.
	Record(ip string, at, since time.Time)
}

// LoginRateLimiter caps login attempts per client IP over a sliding
// window, independent of username. Successful requests do not consume
// quota: a hit is recorded only after the wrapped handler responds with
// an error status.
type LoginRateLimiter struct {
	maxHits int
	window  time.Duration
	store   HitStore
	now     func() time.Time
}

func NewLoginRateLimiter(store HitStore, maxHits int, window time.Duration) *LoginRateLimiter {
	if maxHits <= 0 {
		maxHits = defaultRateLimitMax
	}
	if window <= 0 {
		window = defaultRateLimitWindow
	}
	if store == nil {
		store = NewMemoryHitStore()
	}

	return &LoginRateLimiter{
		maxHits: maxHits,
		window:  window,
		store:   store,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (l *LoginRateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := observability.ClientIP(r)
		now := l.now()
		windowStart := now.Add(-l.window)
		hits := l.store.Hits(ip, windowStart)

		l.setRateHeaders(w, hits, now)

		if len(hits) >= l.maxHits {
			retryAfter := hits[0].Add(l.window).Sub(now)
			if retryAfter < time.Second {
				retryAfter = time.Second
			}
			w.Header().Set("Retry-After", strconv.Itoa(int(retryAfter.Seconds())))
			writeError(w, http.StatusTooManyRequests, RateLimitMessage)
			return
		}

		recorder := &limitStatusRecorder{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(recorder, r)

		// Only failed attempts consume quota.
		if recorder.statusCode >= http.StatusBadRequest {
			l.store.Record(ip, now, windowStart)
		}
	})
}

// setRateHeaders writes the draft standard RateLimit-* headers. Legacy
// X-RateLimit-* headers are intentionally not set.
func (l *LoginRateLimiter) setRateHeaders(w http.ResponseWriter, hits []time.Time, now time.Time) {
	remaining := l.maxHits - len(hits)
	if remaining < 0 {
		remaining = 0
	}

	reset := l.window
	if len(hits) > 0 {
		reset = hits[0].Add(l.window).Sub(now)
		if reset < 0 {
			reset = 0
		}
	}

	w.Header().Set("RateLimit-Limit", strconv.Itoa(l.maxHits))
	w.Header().Set("RateLimit-Remaining", strconv.Itoa(remaining))
	w.Header().Set("RateLimit-Reset", strconv.Itoa(int(reset.Seconds())))
}

type limitStatusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (r *limitStatusRecorder) WriteHeader(status int) {
	r.statusCode = status
	r.ResponseWriter.WriteHeader(status)
}

// MemoryHitStore is the single-node default HitStore.
type MemoryHitStore struct {
	mu        sync.Mutex
	hitByIP   map[string][]time.Time
	maxMemory int
}

func NewMemoryHitStore() *MemoryHitStore {
	return &MemoryHitStore{
		hitByIP:   make(map[string][]time.Time),
		maxMemory: 5000,
	}
}

func (s *MemoryHitStore) Hits(ip string, since time.Time) []time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	hits := s.hitByIP[ip]
	filtered := make([]time.Time, 0, len(hits))
	for _, hit := range hits {
		if hit.After(since) {
			filtered = append(filtered, hit)
		}
	}

	if len(filtered) == 0 {
		delete(s.hitByIP, ip)
		return nil
	}

	s.hitByIP[ip] = filtered
	return filtered
}

func (s *MemoryHitStore) Record(ip string, at, since time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.hitByIP[ip] = append(s.hitByIP[ip], at)

	if len(s.hitByIP) > s.maxMemory {
		for key, value := range s.hitByIP {
			if len(value) == 0 || value[len(value)-1].Before(since) {
				delete(s.hitByIP, key)
			}
		}
	}
}
