package reporting

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/capsaicin/scanrules/internal/alert"
)

type loadedAlert struct {
	PluginID   int    `json:"plugin_id"`
	URI        string `json:"uri"`
	Risk       string `json:"risk"`
	Confidence string `json:"confidence"`
	Evidence   string `json:"evidence"`
}

func testAlerts() []alert.Alert {
	return []alert.Alert{
		{
			PluginID:   10098,
			Name:       "Cross-Domain Misconfiguration",
			Risk:       alert.RiskMedium,
			Confidence: alert.ConfidenceMedium,
			URI:        "http://example.com/api",
			Evidence:   "Access-Control-Allow-Origin: *",
			CWEID:      264,
		},
		{
			PluginID:   10049,
			Name:       "Non-Storable Content",
			Risk:       alert.RiskInfo,
			Confidence: alert.ConfidenceMedium,
			URI:        "http://example.com/api",
			Evidence:   "no-store",
			CWEID:      524,
		},
		{
			PluginID:   20012,
			Name:       "Absence of Anti-CSRF Tokens",
			Risk:       alert.RiskMedium,
			Confidence: alert.ConfidenceMedium,
			URI:        "http://example.com/admin",
			Evidence:   `<form id="login" action="/login">`,
			CWEID:      352,
		},
		{
			PluginID:   40003,
			Name:       "CRLF Injection",
			Risk:       alert.RiskMedium,
			Confidence: alert.ConfidenceMedium,
			URI:        "http://example.com/admin?q=1",
			Param:      "q",
			Evidence:   "Set-cookie: Tamper=1",
			CWEID:      113,
		},
	}
}

func tempPath(t *testing.T, name string) string {
	t.Helper()
	return filepath.Join(t.TempDir(), name)
}

func TestSaveJSON_RoundTrip(t *testing.T) {
	path := tempPath(t, "alerts.json")
	alerts := testAlerts()

	if err := SaveJSON(alerts, path); err != nil {
		t.Fatalf("SaveJSON failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read file: %v", err)
	}

	var loaded []loadedAlert
	if err := json.Unmarshal(data, &loaded); err != nil {
		t.Fatalf("failed to unmarshal: %v", err)
	}

	if len(loaded) != len(alerts) {
		t.Fatalf("expected %d alerts, got %d", len(alerts), len(loaded))
	}

	for i := 1; i < len(loaded); i++ {
		if loaded[i].URI < loaded[i-1].URI {
			t.Errorf("alerts not sorted: %s before %s", loaded[i-1].URI, loaded[i].URI)
		}
	}

	// same URI: ordered by plugin id
	if loaded[2].PluginID != 10049 || loaded[3].PluginID != 10098 {
		t.Errorf("expected plugin order 10049, 10098, got %d, %d", loaded[2].PluginID, loaded[3].PluginID)
	}
	if loaded[2].Risk != "Informational" || loaded[2].Confidence != "Medium" {
		t.Errorf("expected textual risk and confidence, got %q and %q", loaded[2].Risk, loaded[2].Confidence)
	}
}

func TestSaveJSON_DeterministicOrdering(t *testing.T) {
	path1 := tempPath(t, "a.json")
	path2 := tempPath(t, "b.json")

	alerts := testAlerts()
	reversed := make([]alert.Alert, len(alerts))
	for i, a := range alerts {
		reversed[len(alerts)-1-i] = a
	}

	SaveJSON(alerts, path1)
	SaveJSON(reversed, path2)

	data1, _ := os.ReadFile(path1)
	data2, _ := os.ReadFile(path2)

	if string(data1) != string(data2) {
		t.Error("expected identical output regardless of input order")
	}
}

func TestSaveJSON_DoesNotReorderInput(t *testing.T) {
	alerts := testAlerts()
	if err := SaveJSON(alerts, tempPath(t, "alerts.json")); err != nil {
		t.Fatalf("SaveJSON failed: %v", err)
	}
	if alerts[0].PluginID != 10098 {
		t.Errorf("expected caller slice untouched, first plugin is %d", alerts[0].PluginID)
	}
}

func TestSaveJSON_EmptyAlerts(t *testing.T) {
	path := tempPath(t, "empty.json")

	if err := SaveJSON([]alert.Alert{}, path); err != nil {
		t.Fatalf("SaveJSON failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read file: %v", err)
	}

	var loaded []loadedAlert
	if err := json.Unmarshal(data, &loaded); err != nil {
		t.Fatalf("failed to unmarshal: %v", err)
	}

	if len(loaded) != 0 {
		t.Errorf("expected 0 alerts, got %d", len(loaded))
	}
}

func TestSaveJSON_InvalidPath(t *testing.T) {
	err := SaveJSON(testAlerts(), "/nonexistent/dir/alerts.json")
	if err == nil {
		t.Error("expected error for invalid path")
	}
}

func TestSaveJSONReport(t *testing.T) {
	path := tempPath(t, "report.json")
	targets := []string{"http://example.com/api", "http://example.com/admin"}
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	if err := SaveJSONReport(testAlerts(), path, targets, "run-1", start); err != nil {
		t.Fatalf("SaveJSONReport failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read file: %v", err)
	}

	var report struct {
		SchemaVersion string         `json:"schema_version"`
		RunID         string         `json:"run_id"`
		Metadata      ScanMetadata   `json:"metadata"`
		Summary       map[string]int `json:"summary"`
		Alerts        []loadedAlert  `json:"alerts"`
	}
	if err := json.Unmarshal(data, &report); err != nil {
		t.Fatalf("failed to unmarshal: %v", err)
	}

	if report.SchemaVersion != "1.0" {
		t.Errorf("expected schema 1.0, got %q", report.SchemaVersion)
	}
	if report.RunID != "run-1" {
		t.Errorf("expected run-1, got %q", report.RunID)
	}
	if report.Metadata.StartTime != "2025-01-01T00:00:00Z" {
		t.Errorf("unexpected start time %q", report.Metadata.StartTime)
	}
	if report.Metadata.TargetCount != 2 || len(report.Metadata.TargetsHash) != 16 {
		t.Errorf("unexpected metadata: %+v", report.Metadata)
	}
	if report.Metadata.TotalAlerts != 4 || len(report.Alerts) != 4 {
		t.Errorf("expected 4 alerts, got %d/%d", report.Metadata.TotalAlerts, len(report.Alerts))
	}
	if report.Summary["Medium"] != 3 || report.Summary["Informational"] != 1 {
		t.Errorf("unexpected summary: %v", report.Summary)
	}
}

func TestGenerateRunID(t *testing.T) {
	id1 := GenerateRunID()
	id2 := GenerateRunID()

	if _, err := uuid.Parse(id1); err != nil {
		t.Errorf("expected a UUID run ID, got %q", id1)
	}
	if id1 == id2 {
		t.Error("expected distinct run IDs")
	}
}

func TestCountByRisk(t *testing.T) {
	counts := CountByRisk(testAlerts())

	expected := map[string]int{"High": 0, "Medium": 3, "Low": 0, "Informational": 1}
	for k, v := range expected {
		if counts[k] != v {
			t.Errorf("expected %s=%d, got %d", k, v, counts[k])
		}
	}
}

func TestFormatAlertsJSON(t *testing.T) {
	out, err := FormatAlertsJSON(testAlerts())
	if err != nil {
		t.Fatalf("FormatAlertsJSON failed: %v", err)
	}
	if strings.Index(out, "http://example.com/admin") > strings.Index(out, "http://example.com/api") {
		t.Error("expected admin alerts before api alerts")
	}
}

func TestGenerateHTML_Basic(t *testing.T) {
	path := tempPath(t, "report.html")

	if err := GenerateHTML(testAlerts(), path); err != nil {
		t.Fatalf("GenerateHTML failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read file: %v", err)
	}

	page := string(data)

	if !strings.Contains(page, "Scan Rules Report") {
		t.Error("expected title in HTML")
	}
	if !strings.Contains(page, "http://example.com/admin") {
		t.Error("expected admin URL in HTML")
	}
	if !strings.Contains(page, "CWE-352") {
		t.Error("expected CWE badge in HTML")
	}
	if !strings.Contains(page, "param: q") {
		t.Error("expected parameter badge in HTML")
	}
	if strings.Contains(page, `<form id="login"`) {
		t.Error("expected evidence markup to be escaped")
	}
	if !strings.Contains(page, "&lt;form id=&#34;login&#34;") {
		t.Error("expected escaped form evidence in HTML")
	}
}

func TestGenerateHTML_EmptyAlerts(t *testing.T) {
	path := tempPath(t, "empty.html")

	if err := GenerateHTML([]alert.Alert{}, path); err != nil {
		t.Fatalf("GenerateHTML failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read file: %v", err)
	}

	if !strings.Contains(string(data), "Scan Rules Report") {
		t.Error("expected title even with no alerts")
	}
}

func TestGenerateHTML_InvalidPath(t *testing.T) {
	err := GenerateHTML(testAlerts(), "/nonexistent/dir/report.html")
	if err == nil {
		t.Error("expected error for invalid path")
	}
}

func TestGroupByRule(t *testing.T) {
	extra := alert.Alert{
		PluginID: 10098,
		Name:     "Cross-Domain Misconfiguration",
		Risk:     alert.RiskMedium,
		URI:      "http://example.com/other",
	}
	groups := groupByRule(sortedCopy(append(testAlerts(), extra)))

	if len(groups) != 4 {
		t.Fatalf("expected 4 groups, got %d", len(groups))
	}

	order := []int{10098, 20012, 40003, 10049}
	for i, id := range order {
		if groups[i].PluginID != id {
			t.Errorf("group %d: expected plugin %d, got %d", i, id, groups[i].PluginID)
		}
	}
	if len(groups[0].Instances) != 2 {
		t.Errorf("expected 2 CORS instances, got %d", len(groups[0].Instances))
	}
}

func TestHashStrings(t *testing.T) {
	if hashStrings([]string{"ab"}) == hashStrings([]string{"a", "b"}) {
		t.Error("expected list boundaries to change the hash")
	}
	if hashStrings([]string{"a", "b"}) != hashStrings([]string{"a", "b"}) {
		t.Error("expected a stable hash")
	}
}
