package memory

import (
	"context"
	"database/sql"
	"errors"
	"strings"
)

// Experience is one recorded interaction. Rows are immutable once
// written; only PurgeAll removes them.
type Experience struct {
	ID          int64
	RawText     string
	Signature   string
	Timestamp   int64 // unix millis
	Success     bool
	LatencyMs   int64
	SessionSeq  int64
	SessionKey  string
	ContextJSON string
}

// ExperienceQuery filters and bounds a Query call. The zero value
// returns the newest rows with the default limit.
type ExperienceQuery struct {
	// SinceMs/UntilMs bound the time range (inclusive/exclusive).
	// Zero means unbounded.
	SinceMs int64
	UntilMs int64

	// Success filters by outcome when non-nil.
	Success *bool

	// SignaturePrefix filters to signatures with this prefix.
	SignaturePrefix string

	// SessionSeq filters to a single session when > 0.
	SessionSeq int64

	// Limit caps the result count. <= 0 means DefaultQueryLimit.
	Limit int

	// OldestFirst reverses the default newest-first ordering.
	OldestFirst bool
}

// DefaultQueryLimit bounds unbounded queries.
const DefaultQueryLimit = 100

// Append durably appends one experience and returns its assigned id.
// The caller supplies a validated, normalized interaction; empty raw
// text or signature is rejected with ErrValidation. Append never
// mutates existing rows.
func (d *DB) Append(ctx context.Context, e *Experience) (int64, error) {
	if strings.TrimSpace(e.RawText) == "" {
		return 0, ErrValidation
	}
	if e.Signature == "" {
		return 0, ErrValidation
	}

	res, err := d.db.ExecContext(ctx, `
		INSERT INTO experiences (raw_text, signature, ts, success, latency_ms, session_seq, session_key, context_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, e.RawText, e.Signature, e.Timestamp, boolToInt(e.Success), e.LatencyMs, e.SessionSeq, e.SessionKey, e.ContextJSON)
	if err != nil {
		return 0, storageErr("append experience", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, storageErr("append experience", err)
	}
	e.ID = id
	return id, nil
}

// Query returns experiences matching q, newest-first by default. Each
// call runs an independent query; there is no shared cursor state.
func (d *DB) Query(ctx context.Context, q ExperienceQuery) ([]Experience, error) {
	var (
		where []string
		args  []any
	)
	if q.SinceMs > 0 {
		where = append(where, "ts >= ?")
		args = append(args, q.SinceMs)
	}
	if q.UntilMs > 0 {
		where = append(where, "ts < ?")
		args = append(args, q.UntilMs)
	}
	if q.Success != nil {
		where = append(where, "success = ?")
		args = append(args, boolToInt(*q.Success))
	}
	if q.SignaturePrefix != "" {
		where = append(where, "signature LIKE ? ESCAPE '\\'")
		args = append(args, escapeLike(q.SignaturePrefix)+"%")
	}
	if q.SessionSeq > 0 {
		where = append(where, "session_seq = ?")
		args = append(args, q.SessionSeq)
	}

	query := "SELECT id, raw_text, signature, ts, success, latency_ms, session_seq, session_key, COALESCE(context_json, '') FROM experiences"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	if q.OldestFirst {
		query += " ORDER BY ts ASC, id ASC"
	} else {
		query += " ORDER BY ts DESC, id DESC"
	}

	limit := q.Limit
	if limit <= 0 {
		limit = DefaultQueryLimit
	}
	query += " LIMIT ?"
	args = append(args, limit)

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storageErr("query experiences", err)
	}
	defer rows.Close()

	var results []Experience
	for rows.Next() {
		var e Experience
		var success int
		if err := rows.Scan(&e.ID, &e.RawText, &e.Signature, &e.Timestamp, &success,
			&e.LatencyMs, &e.SessionSeq, &e.SessionKey, &e.ContextJSON); err != nil {
			return nil, storageErr("scan experience", err)
		}
		e.Success = success != 0
		results = append(results, e)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("query experiences", err)
	}

	return results, nil
}

// Count returns the total number of experience rows.
func (d *DB) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := d.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM experiences`).Scan(&n); err != nil {
		return 0, storageErr("count experiences", err)
	}
	return n, nil
}

// LastSession returns the most recent session counter, its key, and the
// timestamp of the newest experience. Used to rebuild context state on
// process start. Returns zeros if the log is empty.
func (d *DB) LastSession(ctx context.Context) (seq int64, key string, lastTs int64, err error) {
	err = d.db.QueryRowContext(ctx, `
		SELECT session_seq, session_key, ts FROM experiences
		ORDER BY ts DESC, id DESC
		LIMIT 1
	`).Scan(&seq, &key, &lastTs)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, "", 0, nil
	}
	if err != nil {
		return 0, "", 0, storageErr("last session", err)
	}
	return seq, key, lastTs, nil
}

// SuccessRate returns the fraction of successful runs for a signature,
// or 0.5 when the signature has never been observed.
func (d *DB) SuccessRate(ctx context.Context, signature string) (float64, error) {
	var total, successful int64
	err := d.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(success), 0) FROM experiences
		WHERE signature = ?
	`, signature).Scan(&total, &successful)
	if err != nil {
		return 0, storageErr("success rate", err)
	}
	if total == 0 {
		return 0.5, nil
	}
	return float64(successful) / float64(total), nil
}

// PurgeAll irreversibly clears all learned state: experiences,
// preferences, candidates, patterns, and associations. Used only by an
// explicit reset request.
func (d *DB) PurgeAll(ctx context.Context) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return storageErr("purge", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort rollback on error

	for _, table := range []string{
		"experiences", "preferences", "preference_candidates",
		"patterns", "command_associations",
	} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return storageErr("purge "+table, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return storageErr("purge", err)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// escapeLike escapes LIKE metacharacters in a user-supplied prefix.
func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	s = strings.ReplaceAll(s, `_`, `\_`)
	return s
}
