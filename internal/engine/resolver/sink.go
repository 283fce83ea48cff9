package resolver

import "sync/atomic"

// MetricsSink receives resolver events. Implementations must be safe for
// concurrent use; they never influence routing.
type MetricsSink interface {
	ResolutionAttempt(route string)
	PatternMatch(slot string)
	HistoryResolution(slot string)
	ClarificationIssued()
	LatencyBudgetExceeded()
}

type nopSink struct{}

func (nopSink) ResolutionAttempt(string) {}
func (nopSink) PatternMatch(string)      {}
func (nopSink) HistoryResolution(string) {}
func (nopSink) ClarificationIssued()     {}
func (nopSink) LatencyBudgetExceeded()   {}

// CountingSink keeps per-instance totals, mostly for tests.
type CountingSink struct {
	Attempts           atomic.Int64
	PatternMatches     atomic.Int64
	HistoryResolutions atomic.Int64
	Clarifications     atomic.Int64
	BudgetExceeded     atomic.Int64
}

func (c *CountingSink) ResolutionAttempt(string) { c.Attempts.Add(1) }
func (c *CountingSink) PatternMatch(string)      { c.PatternMatches.Add(1) }
func (c *CountingSink) HistoryResolution(string) { c.HistoryResolutions.Add(1) }
func (c *CountingSink) ClarificationIssued()     { c.Clarifications.Add(1) }
func (c *CountingSink) LatencyBudgetExceeded()   { c.BudgetExceeded.Add(1) }

// Tee fans events out to several sinks.
type Tee []MetricsSink

func (t Tee) ResolutionAttempt(route string) {
	for _, s := range t {
		s.ResolutionAttempt(route)
	}
}

func (t Tee) PatternMatch(slot string) {
	for _, s := range t {
		s.PatternMatch(slot)
	}
}

func (t Tee) HistoryResolution(slot string) {
	for _, s := range t {
		s.HistoryResolution(slot)
	}
}

func (t Tee) ClarificationIssued() {
	for _, s := range t {
		s.ClarificationIssued()
	}
}

func (t Tee) LatencyBudgetExceeded() {
	for _, s := range t {
		s.LatencyBudgetExceeded()
	}
}
