package pattern

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/Rahiman13/Personal-assistant/internal/memory"
)

// Default tuning values.
const (
	// DefaultMinSupport is the minimum bucket size for a temporal
	// pattern. Single-occurrence buckets are noise.
	DefaultMinSupport = 3

	// DefaultMaxGap is the adjacency window for sequential patterns.
	DefaultMaxGap = 300 * time.Second

	// DefaultRecencyWindow is the trailing window for the frequency
	// recent count.
	DefaultRecencyWindow = 30 * 24 * time.Hour

	// DefaultSkipRatioWarn is the corrupt-row ratio above which a
	// recompute pass attaches an IntegrityWarning.
	DefaultSkipRatioWarn = 0.10

	// DefaultScanBatch is the number of rows fetched per scan batch.
	// Cancellation is checked between batches.
	DefaultScanBatch = 1000
)

// Options configures the engine.
type Options struct {
	MinSupport    int
	MaxGap        time.Duration
	RecencyWindow time.Duration
	SkipRatioWarn float64
	ScanBatch     int
	Logger        *slog.Logger
}

// Engine recomputes derived pattern state from the experiences log.
// It reads experiences but never writes them.
type Engine struct {
	db   *sql.DB
	opts Options
}

// NewEngine creates a pattern engine over the shared store connection.
func NewEngine(db *sql.DB, opts Options) *Engine {
	if opts.MinSupport < 1 {
		opts.MinSupport = DefaultMinSupport
	}
	if opts.MaxGap <= 0 {
		opts.MaxGap = DefaultMaxGap
	}
	if opts.RecencyWindow <= 0 {
		opts.RecencyWindow = DefaultRecencyWindow
	}
	if opts.SkipRatioWarn <= 0 || opts.SkipRatioWarn > 1 {
		opts.SkipRatioWarn = DefaultSkipRatioWarn
	}
	if opts.ScanBatch <= 0 {
		opts.ScanBatch = DefaultScanBatch
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Engine{db: db, opts: opts}
}

// MaxGap returns the configured sequential adjacency window.
func (e *Engine) MaxGap() time.Duration {
	return e.opts.MaxGap
}

// temporalKey buckets occurrences by (signature, hour, weekday).
type temporalKey struct {
	sig     string
	hour    int
	weekday int
}

// pairKey is a directed antecedent->consequent pair.
type pairKey struct {
	antecedent string
	consequent string
}

type bucketStat struct {
	count    int64
	lastSeen int64
	gapSumMs float64
}

type sigStat struct {
	total     int64
	successes int64
	recent    int64
	lastSeen  int64
}

// Recompute scans the full experiences log and replaces all derived
// pattern and association rows. It is idempotent: two consecutive runs
// on an unchanged log produce identical tables (the recency cutoff is
// anchored to the newest row, not the wall clock).
//
// Corrupt rows are skipped and counted; if the skip ratio exceeds the
// configured threshold the Result carries an IntegrityWarning and the
// pass still commits best-effort results. Cancellation is honored
// between scan batches.
func (e *Engine) Recompute(ctx context.Context) (*Result, error) {
	return e.RecomputeSince(ctx, 0)
}

// RecomputeSince bounds the scan to experiences at or after sinceMs
// (0 means all-time).
func (e *Engine) RecomputeSince(ctx context.Context, sinceMs int64) (*Result, error) {
	start := time.Now()

	sigs := make(map[string]*sigStat)
	temporal := make(map[temporalKey]*bucketStat)
	pairs := make(map[pairKey]*bucketStat)

	res := &Result{}
	var (
		prevSig string
		prevTs  int64
		havePrev bool
		lastID  int64
		maxTs   int64
	)
	maxGapMs := e.opts.MaxGap.Milliseconds()

	// First pass over batches just finds the newest timestamp so the
	// recency cutoff is deterministic for a given log.
	if err := e.db.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(ts), 0) FROM experiences WHERE ts >= ?
	`, sinceMs).Scan(&maxTs); err != nil {
		return nil, fmt.Errorf("recompute: %w: %w", memory.ErrStorage, err)
	}
	recentCutoff := maxTs - e.opts.RecencyWindow.Milliseconds()

	for {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("recompute cancelled: %w", err)
		}

		batch, err := e.scanBatch(ctx, sinceMs, lastID)
		if err != nil {
			return nil, err
		}
		if len(batch) == 0 {
			break
		}

		for _, row := range batch {
			lastID = row.id
			res.Scanned++

			if row.sig == "" || row.raw == "" || row.ts <= 0 {
				res.Skipped++
				continue
			}

			s := sigs[row.sig]
			if s == nil {
				s = &sigStat{}
				sigs[row.sig] = s
			}
			s.total++
			if row.success {
				s.successes++
			}
			if row.ts >= recentCutoff {
				s.recent++
			}
			if row.ts > s.lastSeen {
				s.lastSeen = row.ts
			}

			tk := temporalKey{
				sig:     row.sig,
				hour:    time.UnixMilli(row.ts).Hour(),
				weekday: int(time.UnixMilli(row.ts).Weekday()),
			}
			tb := temporal[tk]
			if tb == nil {
				tb = &bucketStat{}
				temporal[tk] = tb
			}
			tb.count++
			if row.ts > tb.lastSeen {
				tb.lastSeen = row.ts
			}

			// Directed adjacency: B after A within the gap window.
			if havePrev && row.ts-prevTs <= maxGapMs && row.ts >= prevTs {
				pk := pairKey{antecedent: prevSig, consequent: row.sig}
				pb := pairs[pk]
				if pb == nil {
					pb = &bucketStat{}
					pairs[pk] = pb
				}
				pb.count++
				pb.gapSumMs += float64(row.ts - prevTs)
				if row.ts > pb.lastSeen {
					pb.lastSeen = row.ts
				}
			}
			prevSig, prevTs, havePrev = row.sig, row.ts, true
		}
	}

	if res.Scanned > 0 {
		ratio := float64(res.Skipped) / float64(res.Scanned)
		if ratio > e.opts.SkipRatioWarn {
			res.Warning = &IntegrityWarning{Scanned: res.Scanned, Skipped: res.Skipped}
			e.opts.Logger.Warn("recompute integrity warning",
				"scanned", res.Scanned, "skipped", res.Skipped, "ratio", ratio)
		}
	}

	if err := e.swap(ctx, sigs, temporal, pairs, res); err != nil {
		return nil, err
	}

	res.Duration = time.Since(start)
	e.opts.Logger.Info("recompute done",
		"scanned", res.Scanned,
		"skipped", res.Skipped,
		"temporal", res.Temporal,
		"sequential", res.Sequential,
		"frequency", res.Frequency,
		"duration", res.Duration,
	)
	return res, nil
}

type scanRow struct {
	id      int64
	raw     string
	sig     string
	ts      int64
	success bool
}

// scanBatch fetches the next batch of rows ordered by (ts, id).
func (e *Engine) scanBatch(ctx context.Context, sinceMs, afterID int64) ([]scanRow, error) {
	rows, err := e.db.QueryContext(ctx, `
		SELECT id, raw_text, signature, ts, success FROM experiences
		WHERE ts >= ? AND id > ?
		ORDER BY id ASC
		LIMIT ?
	`, sinceMs, afterID, e.opts.ScanBatch)
	if err != nil {
		return nil, fmt.Errorf("scan experiences: %w: %w", memory.ErrStorage, err)
	}
	defer rows.Close()

	batch := make([]scanRow, 0, e.opts.ScanBatch)
	for rows.Next() {
		var r scanRow
		var success int
		if err := rows.Scan(&r.id, &r.raw, &r.sig, &r.ts, &success); err != nil {
			return nil, fmt.Errorf("scan experience row: %w: %w", memory.ErrStorage, err)
		}
		r.success = success != 0
		batch = append(batch, r)
	}
	return batch, rows.Err()
}

// swap atomically replaces the derived tables with the freshly computed
// rows. Insert order is sorted so repeated runs write identical tables.
func (e *Engine) swap(
	ctx context.Context,
	sigs map[string]*sigStat,
	temporal map[temporalKey]*bucketStat,
	pairs map[pairKey]*bucketStat,
	res *Result,
) error {
	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("swap: %w: %w", memory.ErrStorage, err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort rollback on error

	for _, table := range []string{"patterns", "command_associations"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("clear %s: %w: %w", table, memory.ErrStorage, err)
		}
	}

	insertPattern, err := tx.PrepareContext(ctx, `
		INSERT INTO patterns (kind, signature, consequent, hour_bucket, weekday, support, recent_count, success_rate, confidence, last_seen)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("swap: %w: %w", memory.ErrStorage, err)
	}
	defer insertPattern.Close()

	// Temporal patterns, MIN_SUPPORT gated. Two granularities are
	// emitted: hour-level rows (weekday = -1) aggregate across days so
	// an every-evening habit is visible, and hour+weekday rows capture
	// day-specific habits once they have enough support of their own.
	for k, b := range temporal {
		if k.weekday == -1 {
			continue
		}
		hk := temporalKey{sig: k.sig, hour: k.hour, weekday: -1}
		hb := temporal[hk]
		if hb == nil {
			hb = &bucketStat{}
			temporal[hk] = hb
		}
		hb.count += b.count
		if b.lastSeen > hb.lastSeen {
			hb.lastSeen = b.lastSeen
		}
	}

	tkeys := make([]temporalKey, 0, len(temporal))
	for k := range temporal {
		tkeys = append(tkeys, k)
	}
	sort.Slice(tkeys, func(i, j int) bool {
		if tkeys[i].sig != tkeys[j].sig {
			return tkeys[i].sig < tkeys[j].sig
		}
		if tkeys[i].weekday != tkeys[j].weekday {
			return tkeys[i].weekday < tkeys[j].weekday
		}
		return tkeys[i].hour < tkeys[j].hour
	})
	for _, k := range tkeys {
		b := temporal[k]
		if b.count < int64(e.opts.MinSupport) {
			continue
		}
		conf := float64(b.count) / float64(sigs[k.sig].total)
		if _, err := insertPattern.ExecContext(ctx,
			KindTemporal, k.sig, "", k.hour, k.weekday, b.count, 0, 0.0, conf, b.lastSeen); err != nil {
			return fmt.Errorf("insert temporal: %w: %w", memory.ErrStorage, err)
		}
		res.Temporal++
	}

	// Sequential patterns and associations share the pair counts.
	insertAssoc, err := tx.PrepareContext(ctx, `
		INSERT INTO command_associations (antecedent, consequent, count, mean_gap_ms, last_seen)
		VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("swap: %w: %w", memory.ErrStorage, err)
	}
	defer insertAssoc.Close()

	pkeys := make([]pairKey, 0, len(pairs))
	for k := range pairs {
		pkeys = append(pkeys, k)
	}
	sort.Slice(pkeys, func(i, j int) bool {
		if pkeys[i].antecedent != pkeys[j].antecedent {
			return pkeys[i].antecedent < pkeys[j].antecedent
		}
		return pkeys[i].consequent < pkeys[j].consequent
	})
	for _, k := range pkeys {
		b := pairs[k]
		conf := float64(b.count) / float64(sigs[k.antecedent].total)
		if _, err := insertPattern.ExecContext(ctx,
			KindSequential, k.antecedent, k.consequent, -1, -1, b.count, 0, 0.0, conf, b.lastSeen); err != nil {
			return fmt.Errorf("insert sequential: %w: %w", memory.ErrStorage, err)
		}
		res.Sequential++

		meanGap := b.gapSumMs / float64(b.count)
		if _, err := insertAssoc.ExecContext(ctx,
			k.antecedent, k.consequent, b.count, meanGap, b.lastSeen); err != nil {
			return fmt.Errorf("insert association: %w: %w", memory.ErrStorage, err)
		}
		res.Associations++
	}

	// Frequency patterns: one row per signature.
	skeys := make([]string, 0, len(sigs))
	for k := range sigs {
		skeys = append(skeys, k)
	}
	sort.Strings(skeys)
	for _, k := range skeys {
		s := sigs[k]
		successRate := float64(s.successes) / float64(s.total)
		if _, err := insertPattern.ExecContext(ctx,
			KindFrequency, k, "", -1, -1, s.total, s.recent, successRate, 0.0, s.lastSeen); err != nil {
			return fmt.Errorf("insert frequency: %w: %w", memory.ErrStorage, err)
		}
		res.Frequency++
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("swap commit: %w: %w", memory.ErrStorage, err)
	}
	return nil
}
