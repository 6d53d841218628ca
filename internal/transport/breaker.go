package transport

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// ErrCircuitOpen is returned while a host is cut off after repeated failures.
var ErrCircuitOpen = errors.New("circuit open")

type hostHealth struct {
	failures    int
	lastFailure time.Time
}

// breaker cuts a host off after threshold consecutive failures. The host is
// let through again once cooldown has passed since its last failure.
type breaker struct {
	threshold int
	cooldown  time.Duration
	logger    zerolog.Logger
	now       func() time.Time

	mu    sync.Mutex
	hosts map[string]*hostHealth
}

func newBreaker(threshold int, cooldown time.Duration, logger zerolog.Logger) *breaker {
	return &breaker{
		threshold: threshold,
		cooldown:  cooldown,
		logger:    logger,
		now:       time.Now,
		hosts:     make(map[string]*hostHealth),
	}
}

func (b *breaker) allow(host string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	h, ok := b.hosts[host]
	if !ok {
		return nil
	}
	if b.now().Sub(h.lastFailure) > b.cooldown {
		delete(b.hosts, host)
		return nil
	}
	if h.failures >= b.threshold {
		return fmt.Errorf("%w for host %s", ErrCircuitOpen, host)
	}
	return nil
}

func (b *breaker) failure(host string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	h, ok := b.hosts[host]
	if !ok {
		h = &hostHealth{}
		b.hosts[host] = h
	}
	h.failures++
	h.lastFailure = b.now()

	if h.failures == b.threshold {
		b.logger.Warn().Str("host", host).Int("failures", h.failures).Msg("circuit opened")
	}
}

func (b *breaker) success(host string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.hosts, host)
}

func (b *breaker) failures(host string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	if h, ok := b.hosts[host]; ok {
		return h.failures
	}
	return 0
}
