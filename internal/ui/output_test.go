package ui

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/capsaicin/scanrules/internal/alert"
	"github.com/capsaicin/scanrules/internal/config"
	"github.com/capsaicin/scanrules/internal/scanner"
)

func TestPrintAlert(t *testing.T) {
	var buf bytes.Buffer
	p := NewPlainPrinter(&buf)

	p.PrintAlert(alert.Alert{
		PluginID: 40003,
		Name:     "CRLF Injection",
		Risk:     alert.RiskMedium,
		URI:      "http://example.com/?q=1",
		Param:    "q",
		Evidence: "Set-cookie: Tamper=1\n",
	})

	out := buf.String()
	assert.Contains(t, out, "MEDIUM")
	assert.Contains(t, out, "CRLF Injection [40003]")
	assert.Contains(t, out, "http://example.com/?q=1")
	assert.Contains(t, out, "param: q")
	assert.Contains(t, out, "evidence: Set-cookie: Tamper=1\n")
	assert.NotContains(t, out, "\x1b[", "plain printer must not emit escape codes")
}

func TestPrintAlert_LongEvidence(t *testing.T) {
	var buf bytes.Buffer
	p := NewPlainPrinter(&buf)

	p.PrintAlert(alert.Alert{Name: "x", Evidence: strings.Repeat("a", 200)})

	assert.Contains(t, buf.String(), strings.Repeat("a", 120)+"...")
	assert.NotContains(t, buf.String(), strings.Repeat("a", 121))
}

func TestPrintConfig(t *testing.T) {
	var buf bytes.Buffer
	p := NewPlainPrinter(&buf)

	cfg := config.Config{Threads: 4, Timeout: 7, RateLimit: 3, Rules: config.DefaultRuleOptions()}
	cfg.Rules.DisabledRules = []int{10049, 90022}
	p.PrintConfig(cfg, 2)

	out := buf.String()
	assert.Contains(t, out, "Targets     2")
	assert.Contains(t, out, "Threads     4")
	assert.Contains(t, out, "7s")
	assert.Contains(t, out, "3 req/s")
	assert.Contains(t, out, "MEDIUM")
	assert.Contains(t, out, "10049, 90022")
}

func TestPrintSummary(t *testing.T) {
	var buf bytes.Buffer
	p := NewPlainPrinter(&buf)

	stats := scanner.NewStats(3)
	stats.IncrementTargets()
	stats.IncrementProcessed()
	stats.IncrementAlerts()
	stats.IncrementErrors()

	p.PrintSummary(stats, map[string]int{"Medium": 1, "High": 0})

	out := buf.String()
	assert.Contains(t, out, "Scan Complete")
	assert.Contains(t, out, "Alerts      1")
	assert.Contains(t, out, "Medium")
	assert.NotContains(t, out, "High")
	assert.Contains(t, out, "Errors      1")
}

func TestStartProgressReporter_StopsOnCancel(t *testing.T) {
	var buf bytes.Buffer
	p := NewPlainPrinter(&buf)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.StartProgressReporter(ctx, scanner.NewStats(1))
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("progress reporter did not stop")
	}
}
