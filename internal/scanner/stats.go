package scanner

import (
	"sync/atomic"
	"time"
)

type Stats struct {
	Total     int64
	Processed int64
	Targets   int64
	Alerts    int64
	Errors    int64
	StartTime time.Time
}

func NewStats(initialTotal int64) *Stats {
	return &Stats{
		Total:     initialTotal,
		StartTime: time.Now(),
	}
}

func (s *Stats) IncrementProcessed() {
	atomic.AddInt64(&s.Processed, 1)
}

func (s *Stats) IncrementTargets() {
	atomic.AddInt64(&s.Targets, 1)
}

func (s *Stats) IncrementAlerts() {
	atomic.AddInt64(&s.Alerts, 1)
}

func (s *Stats) IncrementErrors() {
	atomic.AddInt64(&s.Errors, 1)
}

func (s *Stats) IncrementTotal(delta int64) {
	atomic.AddInt64(&s.Total, delta)
}

func (s *Stats) GetProcessed() int64 {
	return atomic.LoadInt64(&s.Processed)
}

func (s *Stats) GetTargets() int64 {
	return atomic.LoadInt64(&s.Targets)
}

func (s *Stats) GetAlerts() int64 {
	return atomic.LoadInt64(&s.Alerts)
}

func (s *Stats) GetErrors() int64 {
	return atomic.LoadInt64(&s.Errors)
}

func (s *Stats) GetTotal() int64 {
	return atomic.LoadInt64(&s.Total)
}

func (s *Stats) Elapsed() time.Duration {
	return time.Since(s.StartTime)
}
