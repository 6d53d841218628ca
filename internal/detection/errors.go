package detection

import (
	_ "embed"
	"fmt"
	"os"
	"regexp"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/capsaicin/scanrules/internal/alert"
	"github.com/capsaicin/scanrules/internal/httpmsg"
)

const ApplicationErrorID = 90022

//go:embed application_errors.yaml
var embeddedErrorPatterns []byte

var applicationErrorTags = []string{"OWASP_2021_A05", "OWASP_2017_A06", "WSTG-v42-ERRH-01", "WSTG-v42-ERRH-02"}

type errorPatternFile struct {
	Strings []string `yaml:"strings"`
	Regexes []string `yaml:"regexes"`
}

// ErrorMatcher finds the first known application error signature in content.
type ErrorMatcher struct {
	strings []string
	regexes []*regexp.Regexp
}

func ParseErrorMatcher(data []byte) (*ErrorMatcher, error) {
	var file errorPatternFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse error patterns: %w", err)
	}
	if len(file.Strings) == 0 && len(file.Regexes) == 0 {
		return nil, fmt.Errorf("parse error patterns: no patterns defined")
	}

	m := &ErrorMatcher{strings: file.Strings}
	for _, expr := range file.Regexes {
		re, err := regexp.Compile(expr)
		if err != nil {
			return nil, fmt.Errorf("compile error pattern %q: %w", expr, err)
		}
		m.regexes = append(m.regexes, re)
	}
	return m, nil
}

// Find returns the matched text, or "" when nothing matches.
func (m *ErrorMatcher) Find(content string) string {
	for _, s := range m.strings {
		if strings.Contains(content, s) {
			return s
		}
	}
	for _, re := range m.regexes {
		if match := re.FindString(content); match != "" {
			return match
		}
	}
	return ""
}

type ApplicationErrorRule struct {
	threshold    alert.Threshold
	payloads     []string
	patternsFile string
	logger       zerolog.Logger

	once    sync.Once
	matcher *ErrorMatcher
}

// NewApplicationErrorRule reports error messages leaked in responses. Custom
// payloads are plain strings checked before the pattern set. patternsFile
// replaces the embedded pattern set when it can be loaded.
func NewApplicationErrorRule(threshold alert.Threshold, payloads []string, patternsFile string, logger zerolog.Logger) *ApplicationErrorRule {
	return &ApplicationErrorRule{
		threshold:    threshold,
		payloads:     payloads,
		patternsFile: patternsFile,
		logger:       logger.With().Int("plugin", ApplicationErrorID).Logger(),
	}
}

func (r *ApplicationErrorRule) ID() int { return ApplicationErrorID }

func (r *ApplicationErrorRule) Name() string { return "Application Error Disclosure" }

func (r *ApplicationErrorRule) errorMatcher() *ErrorMatcher {
	r.once.Do(func() {
		if r.patternsFile != "" {
			data, err := os.ReadFile(r.patternsFile)
			if err == nil {
				r.matcher, err = ParseErrorMatcher(data)
			}
			if err == nil {
				return
			}
			r.logger.Warn().Err(err).Str("file", r.patternsFile).Msg("unable to load error patterns, using built-in set")
		}

		m, err := ParseErrorMatcher(embeddedErrorPatterns)
		if err != nil {
			panic(fmt.Sprintf("built-in error patterns: %v", err))
		}
		r.matcher = m
	})
	return r.matcher
}

func (r *ApplicationErrorRule) Scan(msg *httpmsg.Message, sink alert.Sink) {
	resp := msg.Response
	if containsControlChars(resp.Body) {
		return
	}

	if resp.StatusCode == 500 {
		if r.threshold == alert.ThresholdHigh {
			return
		}
		a := r.newAlert(msg, resp.StatusLine())
		a.Risk = alert.RiskLow
		sink.Raise(a)
		return
	}

	if resp.StatusCode == 404 || strings.Contains(resp.ContentType(), "application/wasm") {
		return
	}
	if r.threshold != alert.ThresholdLow && (resp.IsJavaScript() || resp.IsCSS()) {
		return
	}

	body := string(resp.Body)
	for _, payload := range r.payloads {
		if payload != "" && strings.Contains(body, payload) {
			sink.Raise(r.newAlert(msg, payload))
			return
		}
	}

	if evidence := r.errorMatcher().Find(body); evidence != "" {
		r.logger.Debug().Str("uri", msg.Request.URI).Str("evidence", evidence).Msg("application error found")
		sink.Raise(r.newAlert(msg, evidence))
	}
}

func (r *ApplicationErrorRule) newAlert(msg *httpmsg.Message, evidence string) alert.Alert {
	return alert.Alert{
		PluginID:   ApplicationErrorID,
		Name:       r.Name(),
		Risk:       alert.RiskMedium,
		Confidence: alert.ConfidenceMedium,
		URI:        msg.Request.URI,
		Evidence:   evidence,
		OtherInfo: "The page contains an error or warning message that may disclose sensitive information " +
			"like the location of the file that produced the unhandled exception.",
		Solution: "Review the source code of this page. Implement custom error pages. Consider implementing " +
			"a mechanism to provide a unique error reference to the client while logging the details on the server side.",
		CWEID:  550,
		WASCID: 13,
		Tags:   applicationErrorTags,
	}
}

func containsControlChars(body []byte) bool {
	for _, b := range body {
		if b < 0x20 && b != '\t' && b != '\n' && b != '\r' && b != '\f' {
			return true
		}
	}
	return false
}
