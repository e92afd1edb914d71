package pattern

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Rahiman13/Personal-assistant/internal/memory"
)

// Reads over the derived tables. All ordering applies the tie-break
// rule for competing patterns: higher confidence wins, then higher
// support, then most recently observed.

// TemporalFor returns temporal patterns matching the given hour and
// weekday, strongest first. Hour-level rows (weekday -1) match any
// weekday.
func (e *Engine) TemporalFor(ctx context.Context, hour int, weekday time.Weekday, limit int) ([]Temporal, error) {
	rows, err := e.db.QueryContext(ctx, `
		SELECT signature, hour_bucket, weekday, support, confidence, last_seen
		FROM patterns
		WHERE kind = ? AND hour_bucket = ? AND (weekday = ? OR weekday = -1)
		ORDER BY confidence DESC, support DESC, last_seen DESC
		LIMIT ?
	`, KindTemporal, hour, int(weekday), limit)
	if err != nil {
		return nil, fmt.Errorf("temporal patterns: %w: %w", memory.ErrStorage, err)
	}
	defer rows.Close()
	return scanTemporal(rows)
}

// TopTemporal returns the strongest hour-level temporal patterns, for
// the habits report.
func (e *Engine) TopTemporal(ctx context.Context, limit int) ([]Temporal, error) {
	rows, err := e.db.QueryContext(ctx, `
		SELECT signature, hour_bucket, weekday, support, confidence, last_seen
		FROM patterns
		WHERE kind = ? AND weekday = -1
		ORDER BY confidence DESC, support DESC, last_seen DESC
		LIMIT ?
	`, KindTemporal, limit)
	if err != nil {
		return nil, fmt.Errorf("temporal patterns: %w: %w", memory.ErrStorage, err)
	}
	defer rows.Close()
	return scanTemporal(rows)
}

func scanTemporal(rows *sql.Rows) ([]Temporal, error) {
	var out []Temporal
	for rows.Next() {
		var t Temporal
		var weekday int
		if err := rows.Scan(&t.Signature, &t.HourBucket, &weekday, &t.Support, &t.Confidence, &t.LastSeen); err != nil {
			return nil, fmt.Errorf("scan temporal: %w: %w", memory.ErrStorage, err)
		}
		t.Weekday = time.Weekday(weekday)
		out = append(out, t)
	}
	return out, rows.Err()
}

// SequentialAfter returns sequential patterns whose antecedent matches
// the given signature, strongest first.
func (e *Engine) SequentialAfter(ctx context.Context, antecedent string, limit int) ([]Sequential, error) {
	rows, err := e.db.QueryContext(ctx, `
		SELECT signature, consequent, support, confidence, last_seen
		FROM patterns
		WHERE kind = ? AND signature = ?
		ORDER BY confidence DESC, support DESC, last_seen DESC
		LIMIT ?
	`, KindSequential, antecedent, limit)
	if err != nil {
		return nil, fmt.Errorf("sequential patterns: %w: %w", memory.ErrStorage, err)
	}
	defer rows.Close()

	var out []Sequential
	for rows.Next() {
		var s Sequential
		if err := rows.Scan(&s.Antecedent, &s.Consequent, &s.Support, &s.Confidence, &s.LastSeen); err != nil {
			return nil, fmt.Errorf("scan sequential: %w: %w", memory.ErrStorage, err)
		}
		s.GapMax = e.opts.MaxGap
		out = append(out, s)
	}
	return out, rows.Err()
}

// TopFrequency returns frequency patterns ranked by the recency-weighted
// count, so recent habits outrank historical ones.
func (e *Engine) TopFrequency(ctx context.Context, limit int) ([]Frequency, error) {
	rows, err := e.db.QueryContext(ctx, `
		SELECT signature, support, recent_count, success_rate, last_seen
		FROM patterns
		WHERE kind = ?
		ORDER BY recent_count DESC, support DESC, last_seen DESC
		LIMIT ?
	`, KindFrequency, limit)
	if err != nil {
		return nil, fmt.Errorf("frequency patterns: %w: %w", memory.ErrStorage, err)
	}
	defer rows.Close()

	var out []Frequency
	for rows.Next() {
		var f Frequency
		if err := rows.Scan(&f.Signature, &f.Total, &f.RecentCount, &f.SuccessRate, &f.LastSeen); err != nil {
			return nil, fmt.Errorf("scan frequency: %w: %w", memory.ErrStorage, err)
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// Associations returns the directed associations for an antecedent,
// most frequent first.
func (e *Engine) Associations(ctx context.Context, antecedent string, limit int) ([]Association, error) {
	rows, err := e.db.QueryContext(ctx, `
		SELECT antecedent, consequent, count, mean_gap_ms, last_seen
		FROM command_associations
		WHERE antecedent = ?
		ORDER BY count DESC, last_seen DESC
		LIMIT ?
	`, antecedent, limit)
	if err != nil {
		return nil, fmt.Errorf("associations: %w: %w", memory.ErrStorage, err)
	}
	defer rows.Close()

	var out []Association
	for rows.Next() {
		var a Association
		if err := rows.Scan(&a.Antecedent, &a.Consequent, &a.Count, &a.MeanGapMs, &a.LastSeen); err != nil {
			return nil, fmt.Errorf("scan association: %w: %w", memory.ErrStorage, err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// PredictNext returns the most likely follow-up command for the given
// signature, or "" when no association exists.
func (e *Engine) PredictNext(ctx context.Context, signature string) (string, error) {
	var next string
	err := e.db.QueryRowContext(ctx, `
		SELECT consequent FROM command_associations
		WHERE antecedent = ?
		ORDER BY count DESC, last_seen DESC
		LIMIT 1
	`, signature).Scan(&next)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("predict next: %w: %w", memory.ErrStorage, err)
	}
	return next, nil
}
