package ui

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"

	"github.com/capsaicin/scanrules/internal/alert"
	"github.com/capsaicin/scanrules/internal/config"
	"github.com/capsaicin/scanrules/internal/scanner"
)

var (
	styleTitle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))
	styleHeader = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("6"))
	styleDim    = lipgloss.NewStyle().Faint(true)
	styleValue  = lipgloss.NewStyle().Foreground(lipgloss.Color("15"))
	styleURL    = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))
	styleOK     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))
	styleError  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))

	styleHigh   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15")).Background(lipgloss.Color("9"))
	styleMedium = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("0")).Background(lipgloss.Color("11"))
	styleLow    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("11"))
	styleInfo   = lipgloss.NewStyle().Faint(true)
)

const rule = "───────────────────────────────"

// Printer writes scan output. Styles are applied only when the destination
// is a terminal.
type Printer struct {
	w     io.Writer
	color bool
}

func NewPrinter(f *os.File) *Printer {
	return &Printer{
		w:     f,
		color: isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd()),
	}
}

func NewPlainPrinter(w io.Writer) *Printer {
	return &Printer{w: w}
}

func (p *Printer) paint(s lipgloss.Style, text string) string {
	if !p.color {
		return text
	}
	return s.Render(text)
}

func riskStyle(r alert.Risk) lipgloss.Style {
	switch r {
	case alert.RiskHigh:
		return styleHigh
	case alert.RiskMedium:
		return styleMedium
	case alert.RiskLow:
		return styleLow
	default:
		return styleInfo
	}
}

func (p *Printer) PrintBanner() {
	fmt.Fprintln(p.w)
	fmt.Fprintln(p.w, "   "+p.paint(styleTitle, "SCANRULES")+"  "+p.paint(styleDim, "passive and active web scan rules"))
	fmt.Fprintln(p.w)
}

func (p *Printer) row(label, value string) {
	fmt.Fprintf(p.w, "  %s %s\n", p.paint(styleDim, fmt.Sprintf("%-11s", label)), p.paint(styleValue, value))
}

func (p *Printer) PrintConfig(cfg config.Config, targetCount int) {
	fmt.Fprintf(p.w, "\n%s\n", p.paint(styleHeader, "Scan Configuration"))
	fmt.Fprintln(p.w, p.paint(styleDim, rule))
	p.row("Targets", fmt.Sprint(targetCount))
	p.row("Threads", fmt.Sprint(cfg.Threads))
	p.row("Timeout", fmt.Sprintf("%ds", cfg.Timeout))
	p.row("Threshold", cfg.Rules.AlertThreshold().String())
	if cfg.RateLimit > 0 {
		p.row("Rate Limit", fmt.Sprintf("%d req/s", cfg.RateLimit))
	}
	if cfg.ConfigFile != "" {
		p.row("Rules", cfg.ConfigFile)
	}
	if len(cfg.Rules.DisabledRules) > 0 {
		ids := make([]string, len(cfg.Rules.DisabledRules))
		for i, id := range cfg.Rules.DisabledRules {
			ids[i] = fmt.Sprint(id)
		}
		p.row("Disabled", strings.Join(ids, ", "))
	}
	fmt.Fprintln(p.w)
}

func (p *Printer) PrintAlert(a alert.Alert) {
	badge := p.paint(riskStyle(a.Risk), fmt.Sprintf(" %-13s ", strings.ToUpper(a.Risk.String())))
	fmt.Fprintf(p.w, "%s  %s %s  %s\n",
		badge,
		a.Name,
		p.paint(styleDim, fmt.Sprintf("[%d]", a.PluginID)),
		p.paint(styleURL, a.URI))

	if a.Param != "" {
		fmt.Fprintf(p.w, "  %s %s\n", p.paint(styleDim, "param:"), a.Param)
	}
	if evidence := strings.TrimSpace(a.Evidence); evidence != "" {
		evidence = strings.ReplaceAll(evidence, "\n", " ")
		if len(evidence) > 120 {
			evidence = evidence[:120] + "..."
		}
		fmt.Fprintf(p.w, "  %s %s\n", p.paint(styleDim, "evidence:"), evidence)
	}
}

func (p *Printer) StartProgressReporter(ctx context.Context, stats *scanner.Stats) {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	spinner := []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}
	frame := 0

	for {
		select {
		case <-ctx.Done():
			fmt.Fprint(p.w, "\r\033[K")
			return
		case <-ticker.C:
			total := stats.GetTotal()
			processed := stats.GetProcessed()
			var progress float64
			if total > 0 {
				progress = float64(processed) / float64(total) * 100
			}

			barWidth := 20
			filled := int(progress / 100 * float64(barWidth))
			if filled > barWidth {
				filled = barWidth
			}
			bar := strings.Repeat("█", filled) + strings.Repeat("░", barWidth-filled)

			s := spinner[frame%len(spinner)]
			frame++

			errStr := ""
			if errors := stats.GetErrors(); errors > 0 {
				errStr = "  " + p.paint(styleError, fmt.Sprintf("✗ %d", errors))
			}

			fmt.Fprintf(p.w, "\r  %s %s %.0f%%  Alerts: %s%s",
				s,
				p.paint(styleDim, bar),
				progress,
				p.paint(styleOK, fmt.Sprint(stats.GetAlerts())),
				errStr)
		}
	}
}

func (p *Printer) PrintSummary(stats *scanner.Stats, counts map[string]int) {
	elapsed := stats.Elapsed()

	fmt.Fprintf(p.w, "\n%s\n", p.paint(styleOK, "Scan Complete"))
	fmt.Fprintln(p.w, p.paint(styleDim, rule))

	p.row("Targets", fmt.Sprint(stats.GetTargets()))
	p.row("Requests", fmt.Sprint(stats.GetProcessed()))
	p.row("Alerts", fmt.Sprint(stats.GetAlerts()))

	for _, r := range []alert.Risk{alert.RiskHigh, alert.RiskMedium, alert.RiskLow, alert.RiskInfo} {
		if n := counts[r.String()]; n > 0 {
			fmt.Fprintf(p.w, "    %s %d\n", p.paint(riskStyle(r), fmt.Sprintf("%-13s", r.String())), n)
		}
	}

	if stats.GetErrors() > 0 {
		fmt.Fprintf(p.w, "  %s %s\n", p.paint(styleDim, fmt.Sprintf("%-11s", "Errors")), p.paint(styleError, fmt.Sprint(stats.GetErrors())))
	}

	p.row("Duration", elapsed.Round(time.Millisecond).String())
	fmt.Fprintln(p.w)
}
