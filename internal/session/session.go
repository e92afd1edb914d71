// Package session tracks the short-term interaction context: a bounded
// window of recent commands and the current session identity. Session
// boundaries are inferred from idle gaps rather than explicit login or
// logout events.
package session

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Rahiman13/Personal-assistant/internal/memory"
	"github.com/Rahiman13/Personal-assistant/internal/normalize"
)

// Default tuning values.
const (
	// DefaultWindowSize bounds the rolling context window.
	DefaultWindowSize = 20

	// DefaultIdleGap is the inactivity span after which the next
	// command starts a new session.
	DefaultIdleGap = 30 * time.Minute
)

// Entry is one command in the context window.
type Entry struct {
	Signature string
	Timestamp int64 // unix millis
}

// Snapshot is an immutable view of the tracker state. The window slice
// is a copy; callers may retain it freely.
type Snapshot struct {
	SessionSeq   int64
	SessionKey   string
	StartedAt    int64 // unix millis, first command of the session
	LastActivity int64 // unix millis
	Window       []Entry
	Hour         int
	Weekday      time.Weekday
	TimeOfDay    string
}

// LastSignature returns the newest signature in the window, or "" when
// the window is empty.
func (s *Snapshot) LastSignature() string {
	if len(s.Window) == 0 {
		return ""
	}
	return s.Window[len(s.Window)-1].Signature
}

// Options configures a Tracker.
type Options struct {
	WindowSize int
	IdleGap    time.Duration
	Logger     *slog.Logger
}

// Tracker maintains the context window and session identity. Safe for
// concurrent use: Observe takes the write lock, Snapshot the read lock.
type Tracker struct {
	mu sync.RWMutex

	window     []Entry
	seq        int64
	key        string
	startedAt  int64
	lastActive int64

	opts Options
}

// NewTracker creates an empty tracker. Use Bootstrap to resume state
// from the store after a restart.
func NewTracker(opts Options) *Tracker {
	if opts.WindowSize <= 0 {
		opts.WindowSize = DefaultWindowSize
	}
	if opts.IdleGap <= 0 {
		opts.IdleGap = DefaultIdleGap
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Tracker{opts: opts}
}

// Bootstrap resumes session state from the experiences log. If the
// newest stored experience is within the idle gap of now, its session
// continues and the window is refilled from that session's tail;
// otherwise the tracker starts empty and the next Observe opens a
// fresh session after the last stored one.
func (t *Tracker) Bootstrap(ctx context.Context, db *memory.DB, now time.Time) error {
	seq, key, lastTs, err := db.LastSession(ctx)
	if err != nil {
		return err
	}
	if seq == 0 {
		return nil
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.seq = seq
	nowMs := now.UnixMilli()
	if nowMs-lastTs > t.opts.IdleGap.Milliseconds() {
		// Stale session: keep the counter so the next one increments
		// past it, but start with an empty window.
		t.key = ""
		t.lastActive = 0
		return nil
	}

	rows, err := db.Query(ctx, memory.ExperienceQuery{
		SessionSeq:  seq,
		Limit:       t.opts.WindowSize,
		OldestFirst: false,
	})
	if err != nil {
		return err
	}

	t.key = key
	t.lastActive = lastTs
	t.window = t.window[:0]
	// Query returned newest-first; the window is oldest-first.
	for i := len(rows) - 1; i >= 0; i-- {
		t.window = append(t.window, Entry{Signature: rows[i].Signature, Timestamp: rows[i].Timestamp})
	}
	if len(t.window) > 0 {
		t.startedAt = t.window[0].Timestamp
	}
	t.opts.Logger.Debug("session resumed",
		"session_seq", seq, "window", len(t.window))
	return nil
}

// Observe pushes a command into the window and returns the session it
// belongs to. Crossing the idle gap rolls the session over: new
// counter, new key, empty window.
func (t *Tracker) Observe(signature string, at time.Time) (seq int64, key string) {
	return t.ObserveInSession(signature, at, "")
}

// ObserveInSession is Observe with a session hint: when the hint
// matches the current session key the session continues even across an
// idle gap, because the caller has asserted it is the same
// conversation.
func (t *Tracker) ObserveInSession(signature string, at time.Time, hint string) (seq int64, key string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	ts := at.UnixMilli()
	idle := ts-t.lastActive > t.opts.IdleGap.Milliseconds()
	if hint != "" && hint == t.key {
		idle = false
	}
	if t.key == "" || idle {
		t.seq++
		t.key = uuid.NewString()
		t.startedAt = ts
		t.window = t.window[:0]
		t.opts.Logger.Debug("session started", "session_seq", t.seq)
	}

	t.window = append(t.window, Entry{Signature: signature, Timestamp: ts})
	if len(t.window) > t.opts.WindowSize {
		t.window = t.window[len(t.window)-t.opts.WindowSize:]
	}
	t.lastActive = ts
	return t.seq, t.key
}

// Snapshot returns a copy of the current state evaluated at the given
// time. The clock parameter keeps hour and time-of-day derivation
// testable.
func (t *Tracker) Snapshot(now time.Time) *Snapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()

	s := &Snapshot{
		SessionSeq:   t.seq,
		SessionKey:   t.key,
		StartedAt:    t.startedAt,
		LastActivity: t.lastActive,
		Window:       append([]Entry(nil), t.window...),
		Hour:         now.Hour(),
		Weekday:      now.Weekday(),
		TimeOfDay:    normalize.TimeOfDay(now.Hour()),
	}
	return s
}

// Reset clears all tracker state. Used alongside a store purge.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.window = nil
	t.seq = 0
	t.key = ""
	t.startedAt = 0
	t.lastActive = 0
}

// Theme is a recurring head token in the current window, a rough
// subject label for the session ("open", "search", "play").
type Theme struct {
	Token string
	Count int
}

// Themes returns head tokens appearing at least twice in the window,
// most frequent first.
func (t *Tracker) Themes() []Theme {
	t.mu.RLock()
	defer t.mu.RUnlock()

	counts := make(map[string]int)
	for _, e := range t.window {
		if head := normalize.Head(e.Signature); head != "" {
			counts[head]++
		}
	}

	themes := make([]Theme, 0, len(counts))
	for tok, n := range counts {
		if n >= 2 {
			themes = append(themes, Theme{Token: tok, Count: n})
		}
	}
	sort.Slice(themes, func(i, j int) bool {
		if themes[i].Count != themes[j].Count {
			return themes[i].Count > themes[j].Count
		}
		return themes[i].Token < themes[j].Token
	})
	return themes
}
