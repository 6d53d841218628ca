package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/capsaicin/scanrules/internal/alert"
)

// RuleOptions are the per-rule settings read once at startup. Rules receive
// a copy and never write back.
type RuleOptions struct {
	Threshold         string            `yaml:"threshold"`
	CSRF              CSRFOptions       `yaml:"csrf"`
	SessionTokens     []string          `yaml:"session_tokens"`
	Users             []string          `yaml:"users"`
	UsernamePayloads  []string          `yaml:"username_payloads"`
	ErrorPayloads     []string          `yaml:"error_payloads"`
	ErrorPatternsFile string            `yaml:"error_patterns_file"`
	FieldValues       map[string]string `yaml:"field_values"`
	DisabledRules     []int             `yaml:"disabled_rules"`
}

type CSRFOptions struct {
	IgnoreList     []string `yaml:"ignore_list"`
	AttributeName  string   `yaml:"attribute_name"`
	AttributeValue string   `yaml:"attribute_value"`
}

var defaultSessionTokens = []string{
	"asp.net_sessionid",
	"aspsessionid",
	"siteserver",
	"cfid",
	"cftoken",
	"jsessionid",
	"phpsessid",
	"sessid",
	"sid",
	"viewstate",
	"zenid",
}

func DefaultRuleOptions() RuleOptions {
	return RuleOptions{
		Threshold:     "MEDIUM",
		SessionTokens: append([]string(nil), defaultSessionTokens...),
	}
}

func LoadRuleOptions(path string) (RuleOptions, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return RuleOptions{}, fmt.Errorf("read rule options: %w", err)
	}
	return ParseRuleOptions(data)
}

// ParseRuleOptions decodes YAML on top of the defaults. Unknown keys are
// rejected so that typos do not silently disable a setting.
func ParseRuleOptions(data []byte) (RuleOptions, error) {
	opts := DefaultRuleOptions()

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&opts); err != nil && !errors.Is(err, io.EOF) {
		return RuleOptions{}, fmt.Errorf("parse rule options: %w", err)
	}

	opts.CSRF.IgnoreList = trimAll(opts.CSRF.IgnoreList)
	opts.SessionTokens = trimAll(opts.SessionTokens)

	if err := opts.Validate(); err != nil {
		return RuleOptions{}, err
	}
	return opts, nil
}

func (o RuleOptions) AlertThreshold() alert.Threshold {
	t, err := alert.ParseThreshold(o.Threshold)
	if err != nil {
		return alert.ThresholdMedium
	}
	return t
}

func (o RuleOptions) RuleEnabled(id int) bool {
	for _, disabled := range o.DisabledRules {
		if disabled == id {
			return false
		}
	}
	return true
}

func trimAll(values []string) []string {
	var out []string
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
