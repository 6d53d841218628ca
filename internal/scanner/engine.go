package scanner

import (
	"bufio"
	"context"
	"io"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/capsaicin/scanrules/internal/alert"
	"github.com/capsaicin/scanrules/internal/config"
	"github.com/capsaicin/scanrules/internal/detection"
	"github.com/capsaicin/scanrules/internal/httpmsg"
	"github.com/capsaicin/scanrules/internal/transport"
)

type Engine struct {
	config  config.Config
	client  Sender
	passive *detection.Runner
	active  []ActiveRule
	logger  zerolog.Logger
	onAlert func(alert.Alert)
	rng     *rand.Rand
	rngMu   sync.Mutex
}

// DefaultActiveRules builds the active rules enabled in opts.
func DefaultActiveRules(opts config.RuleOptions, logger zerolog.Logger) []ActiveRule {
	all := []ActiveRule{
		NewCRLFRule(logger),
		NewCSRFRule(opts, logger),
	}

	var rules []ActiveRule
	for _, rule := range all {
		if opts.RuleEnabled(rule.ID()) {
			rules = append(rules, rule)
		}
	}
	return rules
}

func NewEngine(cfg config.Config, logger zerolog.Logger) *Engine {
	client := transport.NewClient(transport.Options{
		Timeout:      time.Duration(cfg.Timeout) * time.Second,
		RateLimit:    cfg.RateLimit,
		Retries:      cfg.RetryAttempts,
		MaxBodyBytes: int64(cfg.MaxResponseMB) << 20,
		Logger:       &logger,
	})

	return &Engine{
		config:  cfg,
		client:  client,
		passive: detection.NewRunner(logger, detection.DefaultRules(cfg.Rules, logger)...),
		active:  DefaultActiveRules(cfg.Rules, logger),
		logger:  logger,
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// OnAlert registers fn to be called for every alert as it is raised.
func (e *Engine) OnAlert(fn func(alert.Alert)) {
	e.onAlert = fn
}

func (e *Engine) Run(targets []string) ([]alert.Alert, *Stats, error) {
	return e.RunContext(context.Background(), targets)
}

func (e *Engine) RunContext(ctx context.Context, targets []string) ([]alert.Alert, *Stats, error) {
	stats := NewStats(0)
	alerts, err := e.RunWithStats(ctx, targets, stats)
	return alerts, stats, err
}

// RunWithStats fetches a baseline for every target, runs the passive rules
// over it and then fans the active rules out over a worker pool, counting
// into stats as it goes. Targets whose baseline cannot be fetched are counted
// as errors and skipped.
func (e *Engine) RunWithStats(ctx context.Context, targets []string, stats *Stats) ([]alert.Alert, error) {
	stats.IncrementTotal(int64(len(targets)))

	collector := alert.NewCollector()
	collector.OnRaise(func(a alert.Alert) {
		stats.IncrementAlerts()
		if e.onAlert != nil {
			e.onAlert(a)
		}
	})

	baselines := e.fetchBaselines(ctx, targets, collector, stats)
	if err := ctx.Err(); err != nil {
		return collector.Alerts(), err
	}

	var tasks []Task
	for _, base := range baselines {
		for _, rule := range e.active {
			tasks = append(tasks, Task{Rule: rule, Base: base})
		}
	}
	stats.IncrementTotal(int64(len(tasks)))

	e.runActive(ctx, tasks, collector, stats)
	return collector.Alerts(), ctx.Err()
}

func (e *Engine) threads() int {
	if e.config.Threads < 1 {
		return 1
	}
	return e.config.Threads
}

// fetchBaselines requests every target once and runs the passive rules over
// each exchange. Failed targets are counted and left out of the result.
func (e *Engine) fetchBaselines(ctx context.Context, targets []string, sink alert.Sink, stats *Stats) []*httpmsg.Message {
	baselines := make([]*httpmsg.Message, len(targets))
	indexes := make(chan int)

	var wg sync.WaitGroup
	for i := 0; i < e.threads(); i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range indexes {
				msg, err := e.fetchBaseline(ctx, targets[idx])
				stats.IncrementProcessed()
				if err != nil {
					stats.IncrementErrors()
					e.logger.Warn().Err(err).Str("url", targets[idx]).Msg("baseline request failed")
					continue
				}
				stats.IncrementTargets()
				e.passive.Run(msg, sink)
				baselines[idx] = msg
			}
		}()
	}

feed:
	for i := range targets {
		select {
		case indexes <- i:
		case <-ctx.Done():
			break feed
		}
	}
	close(indexes)
	wg.Wait()

	out := baselines[:0]
	for _, msg := range baselines {
		if msg != nil {
			out = append(out, msg)
		}
	}
	return out
}

// LoadTargets reads one URL per line, skipping blanks and # comments.
func LoadTargets(r io.Reader) ([]string, error) {
	var targets []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" && !strings.HasPrefix(line, "#") {
			targets = append(targets, line)
		}
	}

	return targets, scanner.Err()
}
