// Package pattern derives behavioral patterns from the experiences log.
// The engine is the only writer of the patterns and command_associations
// tables, and it replaces them wholesale on every recompute pass so the
// derived state can never drift from the log. Patterns are cache, never
// source of truth.
package pattern

import (
	"fmt"
	"time"
)

// Pattern kinds stored in the patterns table.
const (
	KindTemporal   = "temporal"
	KindSequential = "sequential"
	KindFrequency  = "frequency"
)

// Temporal captures "this command tends to happen at this hour on this
// weekday". Confidence is the share of the command's occurrences that
// fall in the bucket. Weekday is -1 for hour-level rows that aggregate
// across days.
type Temporal struct {
	Signature  string
	HourBucket int
	Weekday    time.Weekday
	Support    int64
	Confidence float64
	LastSeen   int64 // unix millis
}

// Sequential captures "after A, the user does B within GapMax".
// Direction matters: only A-then-B is counted.
type Sequential struct {
	Antecedent string
	Consequent string
	GapMax     time.Duration
	Support    int64
	Confidence float64
	LastSeen   int64
}

// Frequency is a plain ranking aid: total count plus a recency-weighted
// count over the trailing window, and the command's success rate.
type Frequency struct {
	Signature   string
	Total       int64
	RecentCount int64
	SuccessRate float64
	LastSeen    int64
}

// Association is a directed co-occurrence pair with a running mean gap,
// used to build sequential patterns and to suggest companion commands.
type Association struct {
	Antecedent string
	Consequent string
	Count      int64
	MeanGapMs  float64
	LastSeen   int64
}

// IntegrityWarning reports unreadable rows encountered during a
// recompute pass. It is a warning, not a failure: the pass proceeded
// with best-effort results.
type IntegrityWarning struct {
	Scanned int64
	Skipped int64
}

// Error implements the error interface.
func (w *IntegrityWarning) Error() string {
	return fmt.Sprintf("recompute skipped %d of %d rows", w.Skipped, w.Scanned)
}

// Ratio returns the fraction of rows skipped.
func (w *IntegrityWarning) Ratio() float64 {
	if w.Scanned == 0 {
		return 0
	}
	return float64(w.Skipped) / float64(w.Scanned)
}

// Result summarizes a recompute pass.
type Result struct {
	Scanned      int64
	Skipped      int64
	Temporal     int
	Sequential   int
	Frequency    int
	Associations int
	Duration     time.Duration

	// Warning is non-nil when the skip ratio exceeded the configured
	// threshold. The pass still completed with best-effort results.
	Warning *IntegrityWarning
}
