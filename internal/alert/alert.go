package alert

import (
	"fmt"
	"strings"
	"sync"
)

type Risk int

const (
	RiskInfo Risk = iota
	RiskLow
	RiskMedium
	RiskHigh
)

var riskNames = []string{"Informational", "Low", "Medium", "High"}

func (r Risk) String() string {
	if r < RiskInfo || r > RiskHigh {
		return fmt.Sprintf("Risk(%d)", int(r))
	}
	return riskNames[r]
}

func (r Risk) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

type Confidence int

const (
	ConfidenceLow Confidence = iota + 1
	ConfidenceMedium
	ConfidenceHigh
)

func (c Confidence) String() string {
	switch c {
	case ConfidenceLow:
		return "Low"
	case ConfidenceMedium:
		return "Medium"
	case ConfidenceHigh:
		return "High"
	}
	return fmt.Sprintf("Confidence(%d)", int(c))
}

func (c Confidence) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// Threshold is the sensitivity knob some rules consult before raising.
type Threshold int

const (
	ThresholdLow Threshold = iota + 1
	ThresholdMedium
	ThresholdHigh
)

func ParseThreshold(s string) (Threshold, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "", "MEDIUM", "DEFAULT":
		return ThresholdMedium, nil
	case "LOW":
		return ThresholdLow, nil
	case "HIGH":
		return ThresholdHigh, nil
	}
	return 0, fmt.Errorf("unknown alert threshold %q", s)
}

func (t Threshold) String() string {
	switch t {
	case ThresholdLow:
		return "LOW"
	case ThresholdHigh:
		return "HIGH"
	}
	return "MEDIUM"
}

type Alert struct {
	PluginID   int        `json:"plugin_id"`
	Name       string     `json:"name"`
	Risk       Risk       `json:"risk"`
	Confidence Confidence `json:"confidence"`
	URI        string     `json:"uri"`
	Param      string     `json:"param,omitempty"`
	Attack     string     `json:"attack,omitempty"`
	Evidence   string     `json:"evidence"`
	OtherInfo  string     `json:"other_info,omitempty"`
	Solution   string     `json:"solution,omitempty"`
	Reference  string     `json:"reference,omitempty"`
	CWEID      int        `json:"cwe_id"`
	WASCID     int        `json:"wasc_id"`
	Tags       []string   `json:"tags,omitempty"`
}

type Sink interface {
	Raise(a Alert)
}

// Collector is a Sink that keeps every raised alert. Safe for concurrent use.
type Collector struct {
	mu     sync.Mutex
	alerts []Alert
	notify func(Alert)
}

func NewCollector() *Collector {
	return &Collector{}
}

// OnRaise registers a callback invoked for each alert after it is stored.
func (c *Collector) OnRaise(fn func(Alert)) {
	c.mu.Lock()
	c.notify = fn
	c.mu.Unlock()
}

func (c *Collector) Raise(a Alert) {
	c.mu.Lock()
	c.alerts = append(c.alerts, a)
	fn := c.notify
	c.mu.Unlock()

	if fn != nil {
		fn(a)
	}
}

func (c *Collector) Alerts() []Alert {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Alert, len(c.alerts))
	copy(out, c.alerts)
	return out
}

func (c *Collector) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.alerts)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(Alert)

func (f SinkFunc) Raise(a Alert) { f(a) }
