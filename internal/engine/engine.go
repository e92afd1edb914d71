// Package engine wires the store, pattern engine, preference manager,
// context tracker, and suggestion generator into the subsystem's public
// surface: record, remember, forget, suggestions, and the habits
// report.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/Rahiman13/Personal-assistant/internal/config"
	"github.com/Rahiman13/Personal-assistant/internal/memory"
	"github.com/Rahiman13/Personal-assistant/internal/normalize"
	"github.com/Rahiman13/Personal-assistant/internal/pattern"
	"github.com/Rahiman13/Personal-assistant/internal/preference"
	"github.com/Rahiman13/Personal-assistant/internal/redact"
	"github.com/Rahiman13/Personal-assistant/internal/session"
	"github.com/Rahiman13/Personal-assistant/internal/suggest"
)

// Engine is the subsystem facade. One Engine owns one store; all
// methods are safe for concurrent use.
type Engine struct {
	db       *memory.DB
	norm     *normalize.Normalizer
	redactor *redact.Redactor
	patterns *pattern.Engine
	prefs    *preference.Manager
	tracker  *session.Tracker
	gen      *suggest.Generator
	cfg      *config.Config
	logger   *slog.Logger

	mu         sync.Mutex
	lastTs     int64           // monotonic record clock, unix millis
	lastResult *pattern.Result // most recent recompute outcome
}

// New opens the store at cfg.Store.Path and assembles the subsystem.
// Session context is resumed from the store when the newest experience
// is within the idle gap.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Engine, error) {
	if logger == nil {
		logger = slog.Default()
	}

	path := cfg.Store.Path
	if path == "" {
		var err error
		path, err = config.DefaultDBPath()
		if err != nil {
			return nil, err
		}
	}

	db, err := memory.Open(ctx, memory.Options{Path: path, Logger: logger})
	if err != nil {
		return nil, err
	}

	patterns := pattern.NewEngine(db.DB(), pattern.Options{
		MinSupport:    cfg.Patterns.MinSupport,
		MaxGap:        time.Duration(cfg.Patterns.MaxGapSeconds) * time.Second,
		RecencyWindow: time.Duration(cfg.Patterns.RecencyWindowDays) * 24 * time.Hour,
		SkipRatioWarn: cfg.Patterns.SkipRatioWarn,
		Logger:        logger,
	})
	prefs := preference.NewManager(db.DB(), preference.Options{
		HalfLife:            time.Duration(cfg.Preferences.HalfLifeDays) * 24 * time.Hour,
		VisibilityThreshold: cfg.Preferences.VisibilityThreshold,
		Logger:              logger,
	})
	tracker := session.NewTracker(session.Options{
		WindowSize: cfg.Context.WindowSize,
		IdleGap:    time.Duration(cfg.Context.IdleThresholdMin) * time.Minute,
		Logger:     logger,
	})
	gen := suggest.NewGenerator(patterns, prefs, suggest.Options{
		MaxResults: cfg.Suggestions.MaxResults,
		Weights: suggest.Weights{
			Sequential: cfg.Suggestions.Weights.Sequential,
			Temporal:   cfg.Suggestions.Weights.Temporal,
			Frequency:  cfg.Suggestions.Weights.Frequency,
			Preference: cfg.Suggestions.Weights.Preference,
		},
		Logger: logger,
	})

	e := &Engine{
		db:       db,
		norm:     normalize.New(),
		redactor: redact.New(),
		patterns: patterns,
		prefs:    prefs,
		tracker:  tracker,
		gen:      gen,
		cfg:      cfg,
		logger:   logger,
	}
	if err := tracker.Bootstrap(ctx, db, time.Now()); err != nil {
		// A failed resume costs session continuity, not correctness.
		logger.Warn("session resume failed", "error", err)
	}
	return e, nil
}

// Close releases the store.
func (e *Engine) Close() error {
	return e.db.Close()
}

// DB exposes the underlying store for maintenance tooling.
func (e *Engine) DB() *memory.DB {
	return e.db
}

// Preferences exposes the preference manager.
func (e *Engine) Preferences() *preference.Manager {
	return e.prefs
}

// Patterns exposes the pattern engine.
func (e *Engine) Patterns() *pattern.Engine {
	return e.patterns
}

// RecordRequest is one observed interaction. SessionHint optionally
// carries the caller's notion of conversation identity: when it matches
// the current session key the session continues even across an idle
// gap.
type RecordRequest struct {
	Text        string
	Success     bool
	LatencyMs   int64
	SessionHint string
}

// RecordAck reports what was stored. Degraded means the context window
// was updated but persistence failed; the interaction keeps flowing and
// the failure is logged.
type RecordAck struct {
	ID         int64
	Signature  string
	SessionSeq int64
	SessionKey string
	Degraded   bool
}

// Record observes an interaction at the current time.
func (e *Engine) Record(ctx context.Context, req RecordRequest) (*RecordAck, error) {
	return e.RecordAt(ctx, req, time.Now())
}

// RecordAt is Record with an explicit clock, used by tests and replay.
func (e *Engine) RecordAt(ctx context.Context, req RecordRequest, at time.Time) (*RecordAck, error) {
	raw := strings.TrimSpace(req.Text)
	if raw == "" {
		return nil, fmt.Errorf("%w: text must be non-empty", memory.ErrValidation)
	}
	// Secrets are stripped before anything derived from the text exists.
	raw = e.redactor.Apply(raw)
	sig := e.norm.Signature(raw)
	if sig == "" {
		return nil, fmt.Errorf("%w: text contains no content tokens", memory.ErrValidation)
	}

	// Timestamps never move backwards within a process, so the log
	// order matches the observation order even across clock slews.
	e.mu.Lock()
	ts := at.UnixMilli()
	if ts <= e.lastTs {
		ts = e.lastTs + 1
	}
	e.lastTs = ts
	e.mu.Unlock()

	seq, key := e.tracker.ObserveInSession(sig, time.UnixMilli(ts), req.SessionHint)
	ack := &RecordAck{Signature: sig, SessionSeq: seq, SessionKey: key}

	id, err := e.db.Append(ctx, &memory.Experience{
		RawText:    raw,
		Signature:  sig,
		Timestamp:  ts,
		Success:    req.Success,
		LatencyMs:  req.LatencyMs,
		SessionSeq: seq,
		SessionKey: key,
	})
	if err != nil {
		// Losing one observation is preferable to failing the
		// interaction that produced it.
		e.logger.Error("record persist failed", "signature", sig, "error", err)
		ack.Degraded = true
		return ack, nil
	}
	ack.ID = id
	return ack, nil
}

// ExplicitRemember stores a stated preference with explicit strength,
// e.g. "prefer Chrome browser" becomes app_preference:browser = Chrome.
func (e *Engine) ExplicitRemember(ctx context.Context, phrase string) (key, value string, err error) {
	return e.explicitRememberAt(ctx, phrase, time.Now().UnixMilli())
}

func (e *Engine) explicitRememberAt(ctx context.Context, phrase string, nowMs int64) (string, string, error) {
	key, value, err := ParsePreferencePhrase(phrase)
	if err != nil {
		return "", "", err
	}
	if err := e.prefs.ReinforceAt(ctx, key, value, preference.SourceExplicit,
		e.cfg.Preferences.ExplicitStrength, nowMs); err != nil {
		return "", "", err
	}
	e.logger.Info("preference remembered", "key", key, "value", value)
	return key, value, nil
}

// ExplicitForget drops the preference named by a forget phrase, e.g.
// "browser" or "forget my browser" forgets app_preference:browser. The
// fact is hidden from suggestions but its row survives for audit.
func (e *Engine) ExplicitForget(ctx context.Context, phrase string) (string, error) {
	key, err := ParseForgetPhrase(phrase)
	if err != nil {
		return "", err
	}
	if err := e.prefs.Forget(ctx, key, 0); err != nil {
		return "", err
	}
	e.logger.Info("preference forgotten", "key", key)
	return key, nil
}

// Suggestions ranks proactive suggestions for the current context.
// A non-positive limit uses the configured maximum.
func (e *Engine) Suggestions(ctx context.Context, limit int) ([]suggest.Suggestion, error) {
	return e.SuggestionsAt(ctx, limit, time.Now())
}

// SuggestionsAt is Suggestions with an explicit clock.
func (e *Engine) SuggestionsAt(ctx context.Context, limit int, now time.Time) ([]suggest.Suggestion, error) {
	out, err := e.gen.Generate(ctx, e.tracker.Snapshot(now), now)
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// PredictNext returns the most likely follow-up to the last observed
// command, or "" when there is no evidence.
func (e *Engine) PredictNext(ctx context.Context) (string, error) {
	last := e.tracker.Snapshot(time.Now()).LastSignature()
	if last == "" {
		return "", nil
	}
	return e.patterns.PredictNext(ctx, last)
}

// Recompute runs a pattern recompute pass, derives inferred preference
// facts from the fresh patterns, and retains the outcome for the
// habits report.
func (e *Engine) Recompute(ctx context.Context) (*pattern.Result, error) {
	res, err := e.patterns.Recompute(ctx)
	if err != nil {
		return nil, err
	}
	e.inferPreferences(ctx)
	e.mu.Lock()
	e.lastResult = res
	e.mu.Unlock()
	return res, nil
}

// PurgeAll erases everything: the log, preferences, derived state, and
// the in-memory context. Irreversible.
func (e *Engine) PurgeAll(ctx context.Context) error {
	if err := e.db.PurgeAll(ctx); err != nil {
		return err
	}
	e.tracker.Reset()
	e.mu.Lock()
	e.lastResult = nil
	e.lastTs = 0
	e.mu.Unlock()
	e.logger.Info("memory purged")
	return nil
}
