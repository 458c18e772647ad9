package ratelimit

import (
	"context"
	"math/rand"
	"net/url"
	"sync"
	"time"
)

// Limiter spaces outbound fetches per host. Courtesy delays are jittered
// between min and max so request timing stays irregular; hosts never seen
// before pass through immediately.
type Limiter struct {
	minDelay time.Duration
	maxDelay time.Duration

	mu    sync.Mutex
	hosts map[string]time.Time
}

func New(minDelay, maxDelay time.Duration) *Limiter {
	if maxDelay < minDelay {
		maxDelay = minDelay
	}
	return &Limiter{
		minDelay: minDelay,
		maxDelay: maxDelay,
		hosts:    make(map[string]time.Time),
	}
}

// Wait blocks until the courtesy delay for rawURL's host has elapsed or the
// context is cancelled. URLs that do not parse are not delayed.
func (l *Limiter) Wait(ctx context.Context, rawURL string) error {
	if l == nil || l.minDelay <= 0 {
		return nil
	}

	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Hostname() == "" {
		return nil
	}
	host := parsed.Hostname()

	l.mu.Lock()
	last, seen := l.hosts[host]
	delay := l.delay()
	var wait time.Duration
	if seen {
		if elapsed := time.Since(last); elapsed < delay {
			wait = delay - elapsed
		}
	}
	l.hosts[host] = time.Now().Add(wait)
	l.mu.Unlock()

	if wait <= 0 {
		return nil
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(wait):
		return nil
	}
}

func (l *Limiter) delay() time.Duration {
	if l.maxDelay == l.minDelay {
		return l.minDelay
	}
	jitter := time.Duration(rand.Int63n(int64(l.maxDelay - l.minDelay)))
	return l.minDelay + jitter
}
