// Package suggest ranks proactive suggestions by blending the derived
// pattern tables with the current session context and active
// preferences. It reads derived state only; it never touches the
// experiences log.
package suggest

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/Rahiman13/Personal-assistant/internal/pattern"
	"github.com/Rahiman13/Personal-assistant/internal/preference"
	"github.com/Rahiman13/Personal-assistant/internal/session"
)

// Default scoring weights. Sequential evidence is the strongest signal
// for "what comes next", temporal for "what happens around now",
// frequency for general habits. Preference matches add on top of
// whichever source proposed the candidate.
const (
	DefaultWeightSequential = 0.40
	DefaultWeightTemporal   = 0.35
	DefaultWeightFrequency  = 0.25
	DefaultWeightPreference = 0.25
)

// Weights holds the per-source scoring weights.
type Weights struct {
	Sequential float64
	Temporal   float64
	Frequency  float64
	Preference float64
}

// DefaultWeights returns the default scoring weights.
func DefaultWeights() Weights {
	return Weights{
		Sequential: DefaultWeightSequential,
		Temporal:   DefaultWeightTemporal,
		Frequency:  DefaultWeightFrequency,
		Preference: DefaultWeightPreference,
	}
}

// DefaultMaxResults caps a ranked suggestion list.
const DefaultMaxResults = 5

// minScore filters candidates whose combined evidence is noise.
const minScore = 0.05

// Suggestion is one ranked candidate.
type Suggestion struct {
	Signature string
	Score     float64
	Reasons   []Reason
}

// Reason is one weighted contribution to a suggestion's score.
type Reason struct {
	Type         string // "sequential", "temporal", "frequency", "preference"
	Contribution float64
}

// Options configures a Generator.
type Options struct {
	MaxResults int
	Weights    Weights
	Logger     *slog.Logger
}

// Generator produces ranked suggestions for a context snapshot.
type Generator struct {
	patterns *pattern.Engine
	prefs    *preference.Manager
	opts     Options
}

// NewGenerator creates a generator over the pattern engine and
// preference manager.
func NewGenerator(patterns *pattern.Engine, prefs *preference.Manager, opts Options) *Generator {
	if opts.MaxResults <= 0 {
		opts.MaxResults = DefaultMaxResults
	}
	w := &opts.Weights
	if w.Sequential+w.Temporal+w.Frequency+w.Preference == 0 {
		opts.Weights = DefaultWeights()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Generator{patterns: patterns, prefs: prefs, opts: opts}
}

// candidate aggregates contributions per signature before ranking.
type candidate struct {
	signature string
	reasons   map[string]float64
}

func (c *candidate) add(kind string, contribution float64) {
	// A signature can appear in a source more than once (e.g. two
	// temporal buckets); keep the strongest contribution per source.
	if contribution > c.reasons[kind] {
		c.reasons[kind] = contribution
	}
}

// Generate ranks suggestions for the given snapshot at the given time.
// Degraded inputs degrade output quality, never availability: an empty
// window just means no sequential evidence.
func (g *Generator) Generate(ctx context.Context, snap *session.Snapshot, now time.Time) ([]Suggestion, error) {
	candidates := make(map[string]*candidate)
	get := func(sig string) *candidate {
		c := candidates[sig]
		if c == nil {
			c = &candidate{signature: sig, reasons: make(map[string]float64)}
			candidates[sig] = c
		}
		return c
	}

	fetch := g.opts.MaxResults * 3

	last := ""
	if snap != nil {
		last = snap.LastSignature()
	}
	if last != "" {
		seqs, err := g.patterns.SequentialAfter(ctx, last, fetch)
		if err != nil {
			return nil, err
		}
		for _, s := range seqs {
			get(s.Consequent).add("sequential", s.Confidence*g.opts.Weights.Sequential)
		}
	}

	weekday := now.Weekday()
	temps, err := g.patterns.TemporalFor(ctx, now.Hour(), weekday, fetch)
	if err != nil {
		return nil, err
	}
	for _, t := range temps {
		get(t.Signature).add("temporal", t.Confidence*g.opts.Weights.Temporal)
	}

	freqs, err := g.patterns.TopFrequency(ctx, fetch)
	if err != nil {
		return nil, err
	}
	var maxRecent int64
	for _, f := range freqs {
		if f.RecentCount > maxRecent {
			maxRecent = f.RecentCount
		}
	}
	for _, f := range freqs {
		if maxRecent == 0 || f.RecentCount == 0 {
			continue
		}
		norm := float64(f.RecentCount) / float64(maxRecent)
		// A habit that keeps failing is a poor suggestion however
		// frequent it is.
		norm *= 0.5 + 0.5*f.SuccessRate
		get(f.Signature).add("frequency", norm*g.opts.Weights.Frequency)
	}

	prefs, err := g.prefs.ListActiveAt(ctx, 0, now.UnixMilli())
	if err != nil {
		return nil, err
	}
	for _, c := range candidates {
		for _, p := range prefs {
			if matchesPreference(c.signature, p.Value) {
				c.add("preference", p.Confidence*g.opts.Weights.Preference)
				break
			}
		}
	}

	// Never suggest the command just issued; repeating it helps nobody.
	delete(candidates, last)

	out := make([]Suggestion, 0, len(candidates))
	for _, c := range candidates {
		s := Suggestion{Signature: c.signature}
		for _, kind := range []string{"sequential", "temporal", "frequency", "preference"} {
			if contrib, ok := c.reasons[kind]; ok {
				s.Score += contrib
				s.Reasons = append(s.Reasons, Reason{Type: kind, Contribution: contrib})
			}
		}
		if s.Score < minScore {
			continue
		}
		out = append(out, s)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Signature < out[j].Signature
	})
	if len(out) > g.opts.MaxResults {
		out = out[:g.opts.MaxResults]
	}

	g.opts.Logger.Debug("suggestions generated",
		"candidates", len(candidates), "returned", len(out))
	return out, nil
}

// matchesPreference reports whether a preferred value appears in the
// signature as a run of whole tokens, so a "browser: chrome" fact
// boosts "open chrome" but not "open chromecast settings", and a
// "theme: dark mode" fact boosts "switch dark mode".
func matchesPreference(signature, value string) bool {
	want := strings.Fields(strings.ToLower(value))
	if len(want) == 0 {
		return false
	}
	toks := strings.Fields(signature)
	for i := 0; i+len(want) <= len(toks); i++ {
		match := true
		for j, w := range want {
			if toks[i+j] != w {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}
