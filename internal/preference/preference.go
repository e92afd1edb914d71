// Package preference maintains confidence-weighted preference facts.
// Each key holds at most one active fact; competing values accumulate
// evidence as shadow candidates until they overtake the incumbent.
// Confidence decays exponentially with time since last reinforcement
// and is computed lazily at read time, never eagerly rewritten.
package preference

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/Rahiman13/Personal-assistant/internal/memory"
)

// Source identifies how a fact was learned.
type Source string

const (
	// SourceExplicit marks facts from "remember ..." commands.
	SourceExplicit Source = "explicit"

	// SourceInferred marks facts derived from observed patterns.
	SourceInferred Source = "inferred"
)

// Default tuning values.
const (
	// DefaultHalfLife is the confidence decay half-life.
	DefaultHalfLife = 30 * 24 * time.Hour

	// DefaultVisibilityThreshold hides facts below this decayed
	// confidence from suggestion output. The rows remain for audit.
	DefaultVisibilityThreshold = 0.2
)

// Fact is one preference fact. Confidence is the decayed effective
// value at read time.
type Fact struct {
	Key            string
	Value          string
	Confidence     float64
	Source         Source
	LastReinforced int64 // unix millis
	Observations   int64
}

// Options configures the manager.
type Options struct {
	// HalfLife is the decay half-life. Defaults to DefaultHalfLife.
	HalfLife time.Duration

	// VisibilityThreshold hides facts below this confidence.
	// Defaults to DefaultVisibilityThreshold.
	VisibilityThreshold float64

	// Logger for diagnostics. Defaults to slog.Default().
	Logger *slog.Logger
}

// Manager owns all mutation of the preferences and
// preference_candidates tables.
type Manager struct {
	db        *sql.DB
	logger    *slog.Logger
	halfLife  time.Duration
	threshold float64
}

// NewManager creates a preference manager over the shared store
// connection.
func NewManager(db *sql.DB, opts Options) *Manager {
	if opts.HalfLife <= 0 {
		opts.HalfLife = DefaultHalfLife
	}
	if opts.VisibilityThreshold <= 0 {
		opts.VisibilityThreshold = DefaultVisibilityThreshold
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Manager{
		db:        db,
		logger:    opts.Logger,
		halfLife:  opts.HalfLife,
		threshold: opts.VisibilityThreshold,
	}
}

// VisibilityThreshold returns the configured visibility threshold.
func (m *Manager) VisibilityThreshold() float64 {
	return m.threshold
}

// Reinforce records evidence for (key, value) at the current time.
func (m *Manager) Reinforce(ctx context.Context, key, value string, source Source, strength float64) error {
	return m.ReinforceAt(ctx, key, value, source, strength, time.Now().UnixMilli())
}

// ReinforceAt is Reinforce with an explicit clock, used by tests and
// replay.
//
// Semantics:
//   - no fact for key: a new fact is created with confidence=strength.
//   - same value: confidence saturates toward 1.0
//     (new = old + (1-old)*strength, on the decayed old value).
//   - different value: the evidence accrues to a shadow candidate; the
//     candidate becomes active only once its accumulated confidence
//     reaches the incumbent's current decayed confidence. The displaced
//     incumbent is kept as a candidate for audit.
func (m *Manager) ReinforceAt(ctx context.Context, key, value string, source Source, strength float64, nowMs int64) error {
	key = strings.TrimSpace(key)
	value = strings.TrimSpace(value)
	if key == "" || value == "" {
		return fmt.Errorf("%w: preference key and value must be non-empty", memory.ErrValidation)
	}
	if strength <= 0 || strength > 1 {
		return fmt.Errorf("%w: strength must be in (0, 1]", memory.ErrValidation)
	}

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("reinforce: %w: %w", memory.ErrStorage, err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort rollback on error

	incumbent, err := getFactTx(ctx, tx, key)
	if err != nil {
		return err
	}

	switch {
	case incumbent == nil:
		_, err = tx.ExecContext(ctx, `
			INSERT INTO preferences (key, value, confidence, source, last_reinforced, observations, created_at)
			VALUES (?, ?, ?, ?, ?, 1, ?)
		`, key, value, clamp01(strength), string(source), nowMs, nowMs)
		if err != nil {
			return fmt.Errorf("reinforce: %w: %w", memory.ErrStorage, err)
		}

	case incumbent.Value == value:
		decayed := m.decayedConfidence(incumbent.Confidence, incumbent.LastReinforced, nowMs)
		next := clamp01(decayed + (1-decayed)*strength)
		src := incumbent.Source
		if source == SourceExplicit {
			src = SourceExplicit
		}
		_, err = tx.ExecContext(ctx, `
			UPDATE preferences
			SET confidence = ?, source = ?, last_reinforced = ?, observations = observations + 1
			WHERE key = ?
		`, next, string(src), nowMs, key)
		if err != nil {
			return fmt.Errorf("reinforce: %w: %w", memory.ErrStorage, err)
		}

	default:
		if err := m.reinforceCandidate(ctx, tx, incumbent, value, source, strength, nowMs); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// reinforceCandidate accrues evidence for a value competing with the
// incumbent fact, promoting it when it overtakes.
func (m *Manager) reinforceCandidate(ctx context.Context, tx *sql.Tx, incumbent *Fact, value string, source Source, strength float64, nowMs int64) error {
	var (
		conf float64
		last int64
		obs  int64
	)
	err := tx.QueryRowContext(ctx, `
		SELECT confidence, last_reinforced, observations FROM preference_candidates
		WHERE key = ? AND value = ?
	`, incumbent.Key, value).Scan(&conf, &last, &obs)

	var candConf float64
	switch {
	case errors.Is(err, sql.ErrNoRows):
		candConf = clamp01(strength)
		obs = 1
		_, err = tx.ExecContext(ctx, `
			INSERT INTO preference_candidates (key, value, confidence, source, last_reinforced, observations)
			VALUES (?, ?, ?, ?, ?, 1)
		`, incumbent.Key, value, candConf, string(source), nowMs)
		if err != nil {
			return fmt.Errorf("candidate insert: %w: %w", memory.ErrStorage, err)
		}
	case err != nil:
		return fmt.Errorf("candidate lookup: %w: %w", memory.ErrStorage, err)
	default:
		decayed := m.decayedConfidence(conf, last, nowMs)
		candConf = clamp01(decayed + (1-decayed)*strength)
		obs++
		_, err = tx.ExecContext(ctx, `
			UPDATE preference_candidates
			SET confidence = ?, source = ?, last_reinforced = ?, observations = ?
			WHERE key = ? AND value = ?
		`, candConf, string(source), nowMs, obs, incumbent.Key, value)
		if err != nil {
			return fmt.Errorf("candidate update: %w: %w", memory.ErrStorage, err)
		}
	}

	incumbentConf := m.decayedConfidence(incumbent.Confidence, incumbent.LastReinforced, nowMs)
	if candConf <= incumbentConf {
		return nil
	}

	// Promotion: challenger becomes the active fact, the displaced
	// incumbent is retained as a candidate for audit.
	m.logger.Info("preference promoted",
		"key", incumbent.Key,
		"new_value", value,
		"old_value", incumbent.Value,
		"new_confidence", candConf,
		"old_confidence", incumbentConf,
	)

	_, err = tx.ExecContext(ctx, `
		UPDATE preferences
		SET value = ?, confidence = ?, source = ?, last_reinforced = ?, observations = ?
		WHERE key = ?
	`, value, candConf, string(source), nowMs, obs, incumbent.Key)
	if err != nil {
		return fmt.Errorf("promote candidate: %w: %w", memory.ErrStorage, err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO preference_candidates (key, value, confidence, source, last_reinforced, observations)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(key, value) DO UPDATE SET
			confidence = excluded.confidence,
			source = excluded.source,
			last_reinforced = excluded.last_reinforced,
			observations = excluded.observations
	`, incumbent.Key, incumbent.Value, incumbentConf, string(incumbent.Source), incumbent.LastReinforced, incumbent.Observations)
	if err != nil {
		return fmt.Errorf("demote incumbent: %w: %w", memory.ErrStorage, err)
	}

	_, err = tx.ExecContext(ctx, `
		DELETE FROM preference_candidates WHERE key = ? AND value = ?
	`, incumbent.Key, value)
	if err != nil {
		return fmt.Errorf("clear promoted candidate: %w: %w", memory.ErrStorage, err)
	}

	return nil
}

// Forget applies explicit negative reinforcement. amount <= 0 drops the
// fact just below the visibility threshold (the default for "forget X"
// commands); a positive amount subtracts from the decayed confidence.
// The row is never deleted, only suppressed.
func (m *Manager) Forget(ctx context.Context, key string, amount float64) error {
	return m.ForgetAt(ctx, key, amount, time.Now().UnixMilli())
}

// ForgetAt is Forget with an explicit clock.
func (m *Manager) ForgetAt(ctx context.Context, key string, amount float64, nowMs int64) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return fmt.Errorf("%w: preference key must be non-empty", memory.ErrValidation)
	}

	fact, err := m.getFact(ctx, key)
	if err != nil {
		return err
	}
	if fact == nil {
		return nil
	}

	decayed := m.decayedConfidence(fact.Confidence, fact.LastReinforced, nowMs)
	var next float64
	if amount <= 0 {
		next = m.threshold / 2
	} else {
		next = clamp01(decayed - amount)
	}
	if next > decayed {
		next = decayed
	}

	_, err = m.db.ExecContext(ctx, `
		UPDATE preferences SET confidence = ?, last_reinforced = ? WHERE key = ?
	`, next, nowMs, key)
	if err != nil {
		return fmt.Errorf("forget: %w: %w", memory.ErrStorage, err)
	}
	return nil
}

// Get returns the active fact for key with decayed confidence applied,
// or nil if the key is absent or below the visibility threshold.
func (m *Manager) Get(ctx context.Context, key string) (*Fact, error) {
	return m.GetAt(ctx, key, time.Now().UnixMilli())
}

// GetAt is Get with an explicit clock.
func (m *Manager) GetAt(ctx context.Context, key string, nowMs int64) (*Fact, error) {
	fact, err := m.getFact(ctx, key)
	if err != nil || fact == nil {
		return nil, err
	}

	fact.Confidence = m.decayedConfidence(fact.Confidence, fact.LastReinforced, nowMs)
	if fact.Confidence < m.threshold {
		return nil, nil
	}
	return fact, nil
}

// ListActive returns all facts at or above minConfidence (the
// visibility threshold when minConfidence <= 0), ordered by decayed
// confidence descending, then recency.
func (m *Manager) ListActive(ctx context.Context, minConfidence float64) ([]Fact, error) {
	return m.ListActiveAt(ctx, minConfidence, time.Now().UnixMilli())
}

// ListActiveAt is ListActive with an explicit clock.
func (m *Manager) ListActiveAt(ctx context.Context, minConfidence float64, nowMs int64) ([]Fact, error) {
	if minConfidence <= 0 {
		minConfidence = m.threshold
	}

	rows, err := m.db.QueryContext(ctx, `
		SELECT key, value, confidence, source, last_reinforced, observations FROM preferences
	`)
	if err != nil {
		return nil, fmt.Errorf("list preferences: %w: %w", memory.ErrStorage, err)
	}
	defer rows.Close()

	var facts []Fact
	for rows.Next() {
		var f Fact
		var src string
		if err := rows.Scan(&f.Key, &f.Value, &f.Confidence, &src, &f.LastReinforced, &f.Observations); err != nil {
			return nil, fmt.Errorf("scan preference: %w: %w", memory.ErrStorage, err)
		}
		f.Source = Source(src)
		f.Confidence = m.decayedConfidence(f.Confidence, f.LastReinforced, nowMs)
		if f.Confidence >= minConfidence {
			facts = append(facts, f)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list preferences: %w: %w", memory.ErrStorage, err)
	}

	sort.Slice(facts, func(i, j int) bool {
		if facts[i].Confidence != facts[j].Confidence {
			return facts[i].Confidence > facts[j].Confidence
		}
		return facts[i].LastReinforced > facts[j].LastReinforced
	})

	return facts, nil
}

// Candidates returns the shadow candidates for a key, strongest first.
// Exposed for the habits report and audit tooling.
func (m *Manager) Candidates(ctx context.Context, key string) ([]Fact, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT key, value, confidence, source, last_reinforced, observations
		FROM preference_candidates
		WHERE key = ?
		ORDER BY confidence DESC, last_reinforced DESC
	`, key)
	if err != nil {
		return nil, fmt.Errorf("list candidates: %w: %w", memory.ErrStorage, err)
	}
	defer rows.Close()

	var facts []Fact
	for rows.Next() {
		var f Fact
		var src string
		if err := rows.Scan(&f.Key, &f.Value, &f.Confidence, &src, &f.LastReinforced, &f.Observations); err != nil {
			return nil, fmt.Errorf("scan candidate: %w: %w", memory.ErrStorage, err)
		}
		f.Source = Source(src)
		facts = append(facts, f)
	}
	return facts, rows.Err()
}

// decayedConfidence applies exponential half-life decay to a stored
// confidence: conf * 2^(-elapsed/halfLife). Monotone in elapsed time.
func (m *Manager) decayedConfidence(conf float64, lastReinforcedMs, nowMs int64) float64 {
	elapsed := nowMs - lastReinforcedMs
	if elapsed <= 0 {
		return conf
	}
	halfLives := float64(elapsed) / float64(m.halfLife.Milliseconds())
	return conf * math.Exp2(-halfLives)
}

func (m *Manager) getFact(ctx context.Context, key string) (*Fact, error) {
	return getFactQuerier(ctx, m.db, key)
}

func getFactTx(ctx context.Context, tx *sql.Tx, key string) (*Fact, error) {
	return getFactQuerier(ctx, tx, key)
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func getFactQuerier(ctx context.Context, q querier, key string) (*Fact, error) {
	var f Fact
	var src string
	err := q.QueryRowContext(ctx, `
		SELECT key, value, confidence, source, last_reinforced, observations
		FROM preferences WHERE key = ?
	`, key).Scan(&f.Key, &f.Value, &f.Confidence, &src, &f.LastReinforced, &f.Observations)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get preference: %w: %w", memory.ErrStorage, err)
	}
	f.Source = Source(src)
	return &f, nil
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(v, 1))
}
