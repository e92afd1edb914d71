package pattern

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Rahiman13/Personal-assistant/internal/memory"
)

func newTestEngine(t *testing.T, opts Options) (*Engine, *memory.DB) {
	t.Helper()

	db, err := memory.Open(context.Background(), memory.Options{
		Path: filepath.Join(t.TempDir(), "memory.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return NewEngine(db.DB(), opts), db
}

// record appends one experience at the given time.
func record(t *testing.T, db *memory.DB, raw string, at time.Time, success bool) {
	t.Helper()
	_, err := db.Append(context.Background(), &memory.Experience{
		RawText:    raw,
		Signature:  raw,
		Timestamp:  at.UnixMilli(),
		Success:    success,
		SessionSeq: 1,
		SessionKey: "s1",
	})
	require.NoError(t, err)
}

func TestRecomputeTemporalScenario(t *testing.T) {
	t.Parallel()

	e, db := newTestEngine(t, Options{})
	ctx := context.Background()

	// "open youtube" at 18:00 on three consecutive days.
	base := time.Date(2025, 3, 10, 18, 0, 0, 0, time.UTC)
	for day := 0; day < 3; day++ {
		record(t, db, "open youtube", base.AddDate(0, 0, day), true)
	}

	res, err := e.Recompute(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 3, res.Scanned)
	assert.Zero(t, res.Skipped)
	assert.Nil(t, res.Warning)

	got, err := e.TopTemporal(ctx, 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "open youtube", got[0].Signature)
	assert.Equal(t, 18, got[0].HourBucket)
	assert.EqualValues(t, 3, got[0].Support)
	assert.InDelta(t, 1.0, got[0].Confidence, 1e-9)
}

func TestRecomputeTemporalMinSupport(t *testing.T) {
	t.Parallel()

	e, db := newTestEngine(t, Options{MinSupport: 3})
	ctx := context.Background()

	// Two occurrences stay below the support floor.
	base := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	record(t, db, "open mail", base, true)
	record(t, db, "open mail", base.AddDate(0, 0, 1), true)

	_, err := e.Recompute(ctx)
	require.NoError(t, err)

	got, err := e.TopTemporal(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestRecomputeSequentialScenario(t *testing.T) {
	t.Parallel()

	e, db := newTestEngine(t, Options{})
	ctx := context.Background()

	// "open vscode" then "open terminal" within 10s, repeated 4 times.
	base := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 4; i++ {
		at := base.Add(time.Duration(i) * time.Hour)
		record(t, db, "open vscode", at, true)
		record(t, db, "open terminal", at.Add(10*time.Second), true)
	}

	_, err := e.Recompute(ctx)
	require.NoError(t, err)

	got, err := e.SequentialAfter(ctx, "open vscode", 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "open terminal", got[0].Consequent)
	assert.EqualValues(t, 4, got[0].Support)
	assert.InDelta(t, 1.0, got[0].Confidence, 1e-9)

	next, err := e.PredictNext(ctx, "open vscode")
	require.NoError(t, err)
	assert.Equal(t, "open terminal", next)
}

func TestSequentialIsDirectional(t *testing.T) {
	t.Parallel()

	e, db := newTestEngine(t, Options{})
	ctx := context.Background()

	base := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	record(t, db, "open vscode", base, true)
	record(t, db, "open terminal", base.Add(5*time.Second), true)

	_, err := e.Recompute(ctx)
	require.NoError(t, err)

	// B-after-A is recorded; A-after-B is not.
	forward, err := e.SequentialAfter(ctx, "open vscode", 10)
	require.NoError(t, err)
	assert.Len(t, forward, 1)

	backward, err := e.SequentialAfter(ctx, "open terminal", 10)
	require.NoError(t, err)
	assert.Empty(t, backward)
}

func TestSequentialRespectsGapWindow(t *testing.T) {
	t.Parallel()

	e, db := newTestEngine(t, Options{MaxGap: 300 * time.Second})
	ctx := context.Background()

	base := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	record(t, db, "open vscode", base, true)
	// Beyond the 300s window: no pair.
	record(t, db, "open terminal", base.Add(10*time.Minute), true)

	_, err := e.Recompute(ctx)
	require.NoError(t, err)

	got, err := e.SequentialAfter(ctx, "open vscode", 10)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestRecomputeFrequencyAndSuccessRate(t *testing.T) {
	t.Parallel()

	e, db := newTestEngine(t, Options{RecencyWindow: 30 * 24 * time.Hour})
	ctx := context.Background()

	now := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

	// Old habit: heavy use far outside the recency window.
	for i := 0; i < 5; i++ {
		record(t, db, "weather today", now.AddDate(0, -6, i), true)
	}
	// Recent habit, with one failure.
	record(t, db, "open youtube", now, true)
	record(t, db, "open youtube", now.Add(time.Hour), false)

	_, err := e.Recompute(ctx)
	require.NoError(t, err)

	got, err := e.TopFrequency(ctx, 10)
	require.NoError(t, err)
	require.Len(t, got, 2)

	// Recency-weighted ranking puts the recent habit first despite the
	// older one's higher total.
	assert.Equal(t, "open youtube", got[0].Signature)
	assert.EqualValues(t, 2, got[0].Total)
	assert.EqualValues(t, 2, got[0].RecentCount)
	assert.InDelta(t, 0.5, got[0].SuccessRate, 1e-9)

	assert.Equal(t, "weather today", got[1].Signature)
	assert.EqualValues(t, 5, got[1].Total)
	assert.Zero(t, got[1].RecentCount)
}

func TestRecomputeIsIdempotent(t *testing.T) {
	t.Parallel()

	e, db := newTestEngine(t, Options{})
	ctx := context.Background()

	base := time.Date(2025, 3, 10, 18, 0, 0, 0, time.UTC)
	for day := 0; day < 4; day++ {
		at := base.AddDate(0, 0, day)
		record(t, db, "open vscode", at, true)
		record(t, db, "open terminal", at.Add(10*time.Second), true)
	}

	_, err := e.Recompute(ctx)
	require.NoError(t, err)
	first := dumpDerived(t, db)

	_, err = e.Recompute(ctx)
	require.NoError(t, err)
	second := dumpDerived(t, db)

	assert.Equal(t, first, second)
}

// dumpDerived reads every derived row in a stable order.
func dumpDerived(t *testing.T, db *memory.DB) [][]any {
	t.Helper()
	ctx := context.Background()

	var out [][]any
	rows, err := db.DB().QueryContext(ctx, `
		SELECT kind, signature, consequent, hour_bucket, weekday, support, recent_count, success_rate, confidence, last_seen
		FROM patterns ORDER BY kind, signature, consequent, hour_bucket, weekday
	`)
	require.NoError(t, err)
	defer rows.Close()
	for rows.Next() {
		var kind, sig, cons string
		var hour, weekday int
		var support, recent, lastSeen int64
		var successRate, conf float64
		require.NoError(t, rows.Scan(&kind, &sig, &cons, &hour, &weekday, &support, &recent, &successRate, &conf, &lastSeen))
		out = append(out, []any{kind, sig, cons, hour, weekday, support, recent, successRate, conf, lastSeen})
	}
	require.NoError(t, rows.Err())

	arows, err := db.DB().QueryContext(ctx, `
		SELECT antecedent, consequent, count, mean_gap_ms, last_seen
		FROM command_associations ORDER BY antecedent, consequent
	`)
	require.NoError(t, err)
	defer arows.Close()
	for arows.Next() {
		var a, c string
		var count, lastSeen int64
		var meanGap float64
		require.NoError(t, arows.Scan(&a, &c, &count, &meanGap, &lastSeen))
		out = append(out, []any{a, c, count, meanGap, lastSeen})
	}
	require.NoError(t, arows.Err())
	return out
}

func TestRecomputeReplacesStaleRows(t *testing.T) {
	t.Parallel()

	e, db := newTestEngine(t, Options{})
	ctx := context.Background()

	// A stale derived row left behind by an earlier pass must vanish.
	_, err := db.DB().ExecContext(ctx, `
		INSERT INTO patterns (kind, signature, support, last_seen, confidence)
		VALUES ('frequency', 'ghost command', 99, 1, 0)`)
	require.NoError(t, err)

	record(t, db, "open youtube", time.Date(2025, 3, 10, 18, 0, 0, 0, time.UTC), true)

	_, err = e.Recompute(ctx)
	require.NoError(t, err)

	got, err := e.TopFrequency(ctx, 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "open youtube", got[0].Signature)
}

func TestRecomputeSkipsCorruptRows(t *testing.T) {
	t.Parallel()

	e, db := newTestEngine(t, Options{SkipRatioWarn: 0.10})
	ctx := context.Background()

	base := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		record(t, db, "open youtube", base.Add(time.Duration(i)*time.Hour), true)
	}
	// Corrupt rows written around the store's validation.
	for i := 0; i < 2; i++ {
		_, err := db.DB().ExecContext(ctx, `
			INSERT INTO experiences (raw_text, signature, ts, success, session_seq, session_key)
			VALUES ('', '', 0, 1, 1, 's1')`)
		require.NoError(t, err)
	}

	res, err := e.Recompute(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 5, res.Scanned)
	assert.EqualValues(t, 2, res.Skipped)

	// 40% skipped exceeds the 10% threshold: warning attached, results
	// still produced.
	require.NotNil(t, res.Warning)
	assert.InDelta(t, 0.4, res.Warning.Ratio(), 1e-9)

	got, err := e.TopFrequency(ctx, 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.EqualValues(t, 3, got[0].Total)
}

func TestRecomputeHonorsCancellation(t *testing.T) {
	t.Parallel()

	e, db := newTestEngine(t, Options{})
	record(t, db, "open youtube", time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC), true)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.Recompute(ctx)
	require.ErrorIs(t, err, context.Canceled)
}

func TestRecomputeEmptyStore(t *testing.T) {
	t.Parallel()

	e, _ := newTestEngine(t, Options{})

	res, err := e.Recompute(context.Background())
	require.NoError(t, err)
	assert.Zero(t, res.Scanned)
	assert.Zero(t, res.Temporal)
	assert.Zero(t, res.Frequency)
}

func TestAssociationsMeanGap(t *testing.T) {
	t.Parallel()

	e, db := newTestEngine(t, Options{})
	ctx := context.Background()

	base := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	record(t, db, "open vscode", base, true)
	record(t, db, "open terminal", base.Add(10*time.Second), true)
	record(t, db, "open vscode", base.Add(time.Hour), true)
	record(t, db, "open terminal", base.Add(time.Hour).Add(20*time.Second), true)

	_, err := e.Recompute(ctx)
	require.NoError(t, err)

	got, err := e.Associations(ctx, "open vscode", 5)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.EqualValues(t, 2, got[0].Count)
	assert.InDelta(t, 15000, got[0].MeanGapMs, 1e-9)
}
