package reporting

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/capsaicin/scanrules/internal/alert"
)

type ScanReport struct {
	SchemaVersion string         `json:"schema_version"`
	RunID         string         `json:"run_id"`
	Metadata      ScanMetadata   `json:"metadata"`
	Summary       map[string]int `json:"summary"`
	Alerts        []alert.Alert  `json:"alerts"`
}

type ScanMetadata struct {
	StartTime   string `json:"start_time"`
	EndTime     string `json:"end_time"`
	TargetCount int    `json:"target_count"`
	TargetsHash string `json:"targets_hash"`
	TotalAlerts int    `json:"total_alerts"`
	Version     string `json:"version"`
}

func sortedCopy(alerts []alert.Alert) []alert.Alert {
	sorted := make([]alert.Alert, len(alerts))
	copy(sorted, alerts)
	SortAlerts(sorted)
	return sorted
}

func writeJSON(filename string, v any) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	encoder.SetEscapeHTML(false)
	if err := encoder.Encode(v); err != nil {
		return fmt.Errorf("encode %s: %w", filename, err)
	}
	return file.Close()
}

// SaveJSON writes the bare alert list.
func SaveJSON(alerts []alert.Alert, filename string) error {
	return writeJSON(filename, sortedCopy(alerts))
}

func SaveJSONReport(alerts []alert.Alert, filename string, targets []string, runID string, start time.Time) error {
	sorted := sortedCopy(alerts)

	report := ScanReport{
		SchemaVersion: "1.0",
		RunID:         runID,
		Metadata: ScanMetadata{
			StartTime:   start.Format(time.RFC3339),
			EndTime:     time.Now().Format(time.RFC3339),
			TargetCount: len(targets),
			TargetsHash: hashStrings(targets),
			TotalAlerts: len(sorted),
			Version:     "1.0.0",
		},
		Summary: CountByRisk(sorted),
		Alerts:  sorted,
	}

	return writeJSON(filename, report)
}

// hashStrings fingerprints the target list; newline-separated so that
// ["ab"] and ["a", "b"] differ.
func hashStrings(ss []string) string {
	h := sha256.New()
	for _, s := range ss {
		h.Write([]byte(s))
		h.Write([]byte{'\n'})
	}
	return fmt.Sprintf("%x", h.Sum(nil))[:16]
}

func GenerateRunID() string {
	return uuid.NewString()
}

// SortAlerts orders alerts by URI, then plugin, then evidence and parameter,
// so the same findings always serialize identically.
func SortAlerts(alerts []alert.Alert) {
	sort.SliceStable(alerts, func(i, j int) bool {
		a, b := alerts[i], alerts[j]
		if a.URI != b.URI {
			return a.URI < b.URI
		}
		if a.PluginID != b.PluginID {
			return a.PluginID < b.PluginID
		}
		if a.Evidence != b.Evidence {
			return a.Evidence < b.Evidence
		}
		return a.Param < b.Param
	})
}

func FormatAlertsJSON(alerts []alert.Alert) (string, error) {
	data, err := json.MarshalIndent(sortedCopy(alerts), "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func CountByRisk(alerts []alert.Alert) map[string]int {
	counts := map[string]int{
		alert.RiskHigh.String():   0,
		alert.RiskMedium.String(): 0,
		alert.RiskLow.String():    0,
		alert.RiskInfo.String():   0,
	}

	for _, a := range alerts {
		counts[a.Risk.String()]++
	}

	return counts
}
