package detection

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/capsaicin/scanrules/internal/alert"
	"github.com/capsaicin/scanrules/internal/cache"
	"github.com/capsaicin/scanrules/internal/config"
	"github.com/capsaicin/scanrules/internal/httpmsg"
)

// PassiveRule inspects a completed exchange without sending anything.
type PassiveRule interface {
	ID() int
	Name() string
	Scan(msg *httpmsg.Message, sink alert.Sink)
}

type Runner struct {
	rules  []PassiveRule
	logger zerolog.Logger
}

func NewRunner(logger zerolog.Logger, rules ...PassiveRule) *Runner {
	return &Runner{rules: rules, logger: logger}
}

// Run applies every rule to msg. A rule that panics is logged and skipped;
// the remaining rules still run.
func (r *Runner) Run(msg *httpmsg.Message, sink alert.Sink) {
	for _, rule := range r.rules {
		r.runOne(rule, msg, sink)
	}
}

func (r *Runner) runOne(rule PassiveRule, msg *httpmsg.Message, sink alert.Sink) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error().
				Int("plugin", rule.ID()).
				Str("panic", fmt.Sprint(rec)).
				Msg("passive rule failed")
		}
	}()
	rule.Scan(msg, sink)
}

// DefaultRules builds every passive rule from opts, leaving out disabled ones.
func DefaultRules(opts config.RuleOptions, logger zerolog.Logger) []PassiveRule {
	all := []PassiveRule{
		cache.NewRule(logger),
		NewApplicationErrorRule(opts.AlertThreshold(), opts.ErrorPayloads, opts.ErrorPatternsFile, logger),
		NewUsernameIdorRule(opts.Users, opts.UsernamePayloads, logger),
		NewCORSRule(),
	}

	var rules []PassiveRule
	for _, rule := range all {
		if opts.RuleEnabled(rule.ID()) {
			rules = append(rules, rule)
		}
	}
	return rules
}
