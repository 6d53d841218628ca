package scanner

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/capsaicin/scanrules/internal/alert"
	"github.com/capsaicin/scanrules/internal/httpmsg"
)

const (
	// A worker that sees this many rule failures in a row pauses for
	// errorCooldown before taking the next task.
	errorStreakLimit = 5
	errorCooldown    = 2 * time.Second
)

var userAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:121.0) Gecko/20100101 Firefox/121.0",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
}

func (e *Engine) userAgent() string {
	e.rngMu.Lock()
	defer e.rngMu.Unlock()
	return userAgents[e.rng.Intn(len(userAgents))]
}

// runActive drains tasks on e.config.Threads workers. Tasks still queued
// when ctx ends are dropped without being counted.
func (e *Engine) runActive(ctx context.Context, tasks []Task, sink alert.Sink, stats *Stats) {
	queue := make(chan Task)

	var wg sync.WaitGroup
	for i := 0; i < e.threads(); i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			e.work(ctx, queue, sink, stats)
		}()
	}

feed:
	for _, task := range tasks {
		select {
		case queue <- task:
		case <-ctx.Done():
			break feed
		}
	}
	close(queue)
	wg.Wait()
}

func (e *Engine) work(ctx context.Context, queue <-chan Task, sink alert.Sink, stats *Stats) {
	streak := 0
	for task := range queue {
		if ctx.Err() != nil {
			continue
		}

		err := runRule(ctx, task, e.client, sink)
		stats.IncrementProcessed()
		if err == nil {
			streak = 0
			continue
		}

		stats.IncrementErrors()
		e.logger.Warn().Err(err).
			Int("plugin", task.Rule.ID()).
			Str("url", task.Base.Request.URI).
			Msg("active rule failed")

		if streak++; streak >= errorStreakLimit {
			streak = 0
			select {
			case <-ctx.Done():
			case <-time.After(errorCooldown):
			}
		}
	}
}

func runRule(ctx context.Context, task Task, client Sender, sink alert.Sink) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("rule %d panicked: %v", task.Rule.ID(), rec)
		}
	}()
	return task.Rule.Scan(ctx, task.Base, client, sink)
}

// fetchBaseline issues the plain GET every rule starts from.
func (e *Engine) fetchBaseline(ctx context.Context, target string) (*httpmsg.Message, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}

	req.Header.Set("User-Agent", e.userAgent())
	for key, value := range e.config.CustomHeaders {
		req.Header.Set(key, value)
	}

	return e.client.Send(ctx, req)
}
