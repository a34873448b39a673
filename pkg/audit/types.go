// Package audit implements the decisions ledger (spec.md §4.4): an
// append-only, durable record of every permission decision, with
// time-based retention and aggregate statistics. The ledger is consulted
// but never mutated by the permission decider, and stays independent of
// the classifier — a classifier outage never blocks a write.
package audit

import "time"

// Decision is one row of the decisions table, matching spec.md §3's
// Decision entity exactly (field-for-field, including optionality).
type Decision struct {
	ID             string
	Command        string
	Classification string
	Timestamp      time.Time
	UserDecision   string
	Reasoning      string
	Confidence     *float64
	ResponseTimeMs *int64
}

// Stats is the aggregate view returned by stats(): counts per
// classification and per decision, plus a grand total.
type Stats struct {
	Total            int64
	ByClassification map[string]int64
	ByUserDecision   map[string]int64
}
