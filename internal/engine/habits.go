package engine

import (
	"context"
	"time"

	"github.com/Rahiman13/Personal-assistant/internal/normalize"
	"github.com/Rahiman13/Personal-assistant/internal/pattern"
	"github.com/Rahiman13/Personal-assistant/internal/preference"
	"github.com/Rahiman13/Personal-assistant/internal/session"
)

// Habit is one frequent command with its reliability.
type Habit struct {
	Signature   string
	Total       int64
	RecentCount int64
	SuccessRate float64
}

// TimeHabit is one time-anchored habit, labelled for humans
// ("evening" rather than hour 18).
type TimeHabit struct {
	Signature  string
	Hour       int
	TimeOfDay  string
	Support    int64
	Confidence float64
}

// HabitsSummary is the subsystem's self-report: what it has learned so
// far and how healthy the derived state is.
type HabitsSummary struct {
	Experiences int64
	SessionSeq  int64
	Themes      []session.Theme

	TopCommands []Habit
	TimeHabits  []TimeHabit
	Preferences []preference.Fact

	// Stale means experiences exist but no recompute has digested
	// them yet, so the pattern sections understate reality.
	Stale   bool
	Warning *pattern.IntegrityWarning
}

// defaultHabitsLimit bounds each section of the report.
const defaultHabitsLimit = 10

// HabitsSummary assembles the learning report at the current time.
func (e *Engine) HabitsSummary(ctx context.Context) (*HabitsSummary, error) {
	return e.HabitsSummaryAt(ctx, time.Now())
}

// HabitsSummaryAt is HabitsSummary with an explicit clock.
func (e *Engine) HabitsSummaryAt(ctx context.Context, now time.Time) (*HabitsSummary, error) {
	s := &HabitsSummary{}

	count, err := e.db.Count(ctx)
	if err != nil {
		return nil, err
	}
	s.Experiences = count

	snap := e.tracker.Snapshot(now)
	s.SessionSeq = snap.SessionSeq
	s.Themes = e.tracker.Themes()

	freqs, err := e.patterns.TopFrequency(ctx, defaultHabitsLimit)
	if err != nil {
		return nil, err
	}
	for _, f := range freqs {
		s.TopCommands = append(s.TopCommands, Habit{
			Signature:   f.Signature,
			Total:       f.Total,
			RecentCount: f.RecentCount,
			SuccessRate: f.SuccessRate,
		})
	}

	temps, err := e.patterns.TopTemporal(ctx, defaultHabitsLimit)
	if err != nil {
		return nil, err
	}
	for _, t := range temps {
		s.TimeHabits = append(s.TimeHabits, TimeHabit{
			Signature:  t.Signature,
			Hour:       t.HourBucket,
			TimeOfDay:  normalize.TimeOfDay(t.HourBucket),
			Support:    t.Support,
			Confidence: t.Confidence,
		})
	}

	s.Preferences, err = e.prefs.ListActiveAt(ctx, 0, now.UnixMilli())
	if err != nil {
		return nil, err
	}

	s.Stale = count > 0 && len(freqs) == 0
	e.mu.Lock()
	if e.lastResult != nil {
		s.Warning = e.lastResult.Warning
	}
	e.mu.Unlock()
	return s, nil
}
