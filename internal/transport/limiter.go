package transport

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

type hostLimiters struct {
	perSecond int

	mu     sync.RWMutex
	byHost map[string]*rate.Limiter
}

func newHostLimiters(perSecond int) *hostLimiters {
	return &hostLimiters{perSecond: perSecond, byHost: make(map[string]*rate.Limiter)}
}

// get returns the limiter for host, or nil when limiting is off.
func (l *hostLimiters) get(host string) *rate.Limiter {
	if l.perSecond <= 0 {
		return nil
	}

	l.mu.RLock()
	limiter, ok := l.byHost[host]
	l.mu.RUnlock()
	if ok {
		return limiter
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if limiter, ok := l.byHost[host]; ok {
		return limiter
	}
	limiter = rate.NewLimiter(rate.Limit(l.perSecond), 1)
	l.byHost[host] = limiter
	return limiter
}

func (l *hostLimiters) wait(ctx context.Context, host string) error {
	limiter := l.get(host)
	if limiter == nil {
		return nil
	}
	return limiter.Wait(ctx)
}

func (l *hostLimiters) len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.byHost)
}
