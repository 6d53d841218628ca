package detection

import (
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/capsaicin/scanrules/internal/alert"
	"github.com/capsaicin/scanrules/internal/config"
	"github.com/capsaicin/scanrules/internal/httpmsg"
)

func BenchmarkApplicationErrorRule_NoMatch(b *testing.B) {
	rule := NewApplicationErrorRule(alert.ThresholdMedium, nil, "", zerolog.Nop())
	msg := htmlMessage(200, strings.Repeat("Lorem ipsum dolor sit amet, consectetur adipiscing elit. ", 100))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		rule.Scan(msg, discard)
	}
}

func BenchmarkApplicationErrorRule_Match(b *testing.B) {
	rule := NewApplicationErrorRule(alert.ThresholdMedium, nil, "", zerolog.Nop())
	body := strings.Repeat("<p>filler</p>", 50) + "Microsoft OLE DB Provider for ODBC Drivers error"
	msg := htmlMessage(200, body)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		rule.Scan(msg, discard)
	}
}

func BenchmarkUsernameIdorRule(b *testing.B) {
	rule := NewUsernameIdorRule([]string{"guest", "admin", "foobar"}, nil, zerolog.Nop())
	msg := htmlMessage(200, strings.Repeat("x", 2048)+guestMD5, httpmsg.Field{Name: "X-Trace", Value: adminMD5})
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		rule.Scan(msg, discard)
	}
}

func BenchmarkCORSRule(b *testing.B) {
	rule := NewCORSRule()
	msg := htmlMessage(200, "", httpmsg.Field{Name: "Access-Control-Allow-Origin", Value: "*"})
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		rule.Scan(msg, discard)
	}
}

func BenchmarkRunner_DefaultRules(b *testing.B) {
	runner := NewRunner(zerolog.Nop(), DefaultRules(config.DefaultRuleOptions(), zerolog.Nop())...)
	msg := htmlMessage(200, strings.Repeat("<div>content</div>", 200),
		httpmsg.Field{Name: "Cache-Control", Value: "max-age=60"})
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		runner.Run(msg, discard)
	}
}

var discard = alert.SinkFunc(func(alert.Alert) {})
