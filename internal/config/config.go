package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/pflag"

	"github.com/capsaicin/scanrules/internal/alert"
)

type Config struct {
	Threads       int
	Timeout       int
	RateLimit     int
	RetryAttempts int
	MaxResponseMB int
	OutputFile    string
	HTMLReport    string
	Verbose       bool
	LogLevel      string
	ConfigFile    string
	CustomHeaders map[string]string
	Rules         RuleOptions
}

type headerFlags []string

func (h *headerFlags) String() string {
	return strings.Join(*h, ", ")
}

func (h *headerFlags) Set(value string) error {
	*h = append(*h, value)
	return nil
}

func (h *headerFlags) Type() string {
	return "header"
}

func envOrDefault(envKey string, defaultVal int) int {
	if val := os.Getenv(envKey); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			return n
		}
	}
	return defaultVal
}

func envOrDefaultStr(envKey string, defaultVal string) string {
	if val := os.Getenv(envKey); val != "" {
		return val
	}
	return defaultVal
}

func Default() Config {
	return Config{
		Threads:       envOrDefault("SCANRULES_THREADS", 10),
		Timeout:       envOrDefault("SCANRULES_TIMEOUT", 10),
		RateLimit:     envOrDefault("SCANRULES_RATE_LIMIT", 0),
		RetryAttempts: 2,
		MaxResponseMB: 10,
		LogLevel:      envOrDefaultStr("SCANRULES_LOG_LEVEL", "info"),
		ConfigFile:    envOrDefaultStr("SCANRULES_CONFIG", ""),
		CustomHeaders: make(map[string]string),
		Rules:         DefaultRuleOptions(),
	}
}

// Bind registers the shared flags on fs. The returned function finishes the
// configuration once flags are parsed: it applies custom headers and loads
// rule options from the config file, if one was given.
func Bind(fs *pflag.FlagSet, cfg *Config) func() error {
	var headers headerFlags

	fs.IntVarP(&cfg.Threads, "threads", "t", cfg.Threads, "Number of concurrent workers (env: SCANRULES_THREADS)")
	fs.IntVar(&cfg.Timeout, "timeout", cfg.Timeout, "Request timeout in seconds (env: SCANRULES_TIMEOUT)")
	fs.IntVar(&cfg.RateLimit, "rate-limit", cfg.RateLimit, "Max requests per second per host, 0=unlimited (env: SCANRULES_RATE_LIMIT)")
	fs.IntVar(&cfg.RetryAttempts, "retries", cfg.RetryAttempts, "Number of retry attempts for failed requests")
	fs.IntVar(&cfg.MaxResponseMB, "max-response-mb", cfg.MaxResponseMB, "Max response body size in MB")
	fs.StringVarP(&cfg.OutputFile, "output", "o", cfg.OutputFile, "JSON report file")
	fs.StringVar(&cfg.HTMLReport, "html", cfg.HTMLReport, "HTML report file")
	fs.BoolVarP(&cfg.Verbose, "verbose", "v", cfg.Verbose, "Verbose mode")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level: debug|info|warn|error (env: SCANRULES_LOG_LEVEL)")
	fs.StringVarP(&cfg.ConfigFile, "config", "c", cfg.ConfigFile, "YAML rule options file (env: SCANRULES_CONFIG)")
	fs.VarP(&headers, "header", "H", "Custom header, repeatable")

	return func() error {
		for _, h := range headers {
			parts := strings.SplitN(h, ":", 2)
			if len(parts) == 2 {
				key := strings.TrimSpace(parts[0])
				value := strings.TrimSpace(parts[1])
				cfg.CustomHeaders[key] = value
			}
		}

		if cfg.ConfigFile != "" {
			opts, err := LoadRuleOptions(cfg.ConfigFile)
			if err != nil {
				return err
			}
			cfg.Rules = opts
		}
		return nil
	}
}

func Validate(config *Config, targets []string) error {
	if len(targets) == 0 {
		return fmt.Errorf("no targets specified. Use -u flag or pipe targets via STDIN")
	}

	for i := range targets {
		if !strings.HasPrefix(targets[i], "http://") && !strings.HasPrefix(targets[i], "https://") {
			targets[i] = "http://" + targets[i]
		}
	}

	if config.Threads <= 0 {
		return fmt.Errorf("threads must be positive, got %d. Use -t to set (default: 10)", config.Threads)
	}

	if config.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %d. Use --timeout to set (default: 10)", config.Timeout)
	}

	if config.MaxResponseMB <= 0 {
		return fmt.Errorf("max response size must be positive, got %d", config.MaxResponseMB)
	}

	if err := ValidateLogLevel(config.LogLevel); err != nil {
		return err
	}

	return config.Rules.Validate()
}

func ValidateLogLevel(level string) error {
	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[level] {
		return fmt.Errorf("invalid log level %q. Valid values: debug, info, warn, error", level)
	}
	return nil
}

func (o RuleOptions) Validate() error {
	if _, err := alert.ParseThreshold(o.Threshold); err != nil {
		return err
	}
	for _, id := range o.DisabledRules {
		if id <= 0 {
			return fmt.Errorf("invalid disabled rule id %d", id)
		}
	}
	return nil
}
