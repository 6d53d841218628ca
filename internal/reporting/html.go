package reporting

import (
	_ "embed"
	"fmt"
	"html/template"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/capsaicin/scanrules/internal/alert"
)

//go:embed report.html.tmpl
var reportTemplate string

var reportFuncs = template.FuncMap{
	"riskClass": func(r alert.Risk) string {
		return "risk-" + strings.ToLower(r.String())
	},
	"lines": func(s string) []string {
		return strings.Split(strings.TrimSpace(s), "\n")
	},
}

var htmlReport = template.Must(template.New("report").Funcs(reportFuncs).Parse(reportTemplate))

// alertGroup is every instance one rule raised.
type alertGroup struct {
	alert.Alert
	Instances []alert.Alert
}

type htmlData struct {
	Generated string
	Total     int
	Risks     []riskCount
	Groups    []alertGroup
}

type riskCount struct {
	Risk  alert.Risk
	Count int
}

// groupByRule collects alerts per plugin, highest risk first. The shared
// description fields come from the first instance in report order.
func groupByRule(sorted []alert.Alert) []alertGroup {
	index := make(map[int]int)
	var groups []alertGroup
	for _, a := range sorted {
		i, ok := index[a.PluginID]
		if !ok {
			i = len(groups)
			index[a.PluginID] = i
			groups = append(groups, alertGroup{Alert: a})
		}
		groups[i].Instances = append(groups[i].Instances, a)
	}

	sort.SliceStable(groups, func(i, j int) bool {
		if groups[i].Risk != groups[j].Risk {
			return groups[i].Risk > groups[j].Risk
		}
		return groups[i].PluginID < groups[j].PluginID
	})
	return groups
}

func GenerateHTML(alerts []alert.Alert, filename string) error {
	sorted := sortedCopy(alerts)
	counts := CountByRisk(sorted)

	data := htmlData{
		Generated: time.Now().Format("2006-01-02 15:04:05"),
		Total:     len(sorted),
		Groups:    groupByRule(sorted),
	}
	for _, r := range []alert.Risk{alert.RiskHigh, alert.RiskMedium, alert.RiskLow, alert.RiskInfo} {
		data.Risks = append(data.Risks, riskCount{Risk: r, Count: counts[r.String()]})
	}

	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	if err := htmlReport.Execute(file, data); err != nil {
		return fmt.Errorf("render html report: %w", err)
	}
	return file.Close()
}
