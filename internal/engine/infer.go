package engine

import (
	"context"
	"strings"

	"github.com/Rahiman13/Personal-assistant/internal/normalize"
	"github.com/Rahiman13/Personal-assistant/internal/pattern"
	"github.com/Rahiman13/Personal-assistant/internal/preference"
)

// inferLimit bounds how many frequency rows a single inference pass
// considers. Dominant usage sits at the top of the ranking anyway.
const inferLimit = 50

// inferPreferences derives preference facts from dominant usage. The
// recent frequency patterns are grouped by action head; when one
// variant holds a strict majority of a group's recent use and meets
// the support floor, its remainder is reinforced as an inferred fact
// for that action. Repeated "open chrome" thus yields
// app_preference:open = chrome without the user ever saying so.
//
// Reinforcement is anchored to the pattern's last_seen so a pass over
// unchanged history is a no-op rather than a confidence ratchet.
func (e *Engine) inferPreferences(ctx context.Context) {
	freqs, err := e.patterns.TopFrequency(ctx, inferLimit)
	if err != nil {
		e.logger.Warn("preference inference skipped", "error", err)
		return
	}

	best := make(map[string]pattern.Frequency)
	total := make(map[string]int64)
	for _, f := range freqs {
		head := normalize.Head(f.Signature)
		if head == "" || head == f.Signature {
			continue // single-token signatures carry no value part
		}
		total[head] += f.RecentCount
		if cur, ok := best[head]; !ok || f.RecentCount > cur.RecentCount {
			best[head] = f
		}
	}

	minSupport := int64(e.cfg.Patterns.MinSupport)
	strength := e.cfg.Preferences.InferredStrength
	for head, f := range best {
		if f.RecentCount < minSupport || 2*f.RecentCount <= total[head] {
			continue
		}
		value := strings.TrimSpace(strings.TrimPrefix(f.Signature, head))
		key := preferenceNamespace + ":" + head

		fact, err := e.prefs.GetAt(ctx, key, f.LastSeen)
		if err != nil {
			e.logger.Warn("preference inference lookup failed", "key", key, "error", err)
			continue
		}
		if fact != nil && fact.Value == value && fact.LastReinforced >= f.LastSeen {
			continue // already reflects this evidence
		}

		if err := e.prefs.ReinforceAt(ctx, key, value, preference.SourceInferred, strength, f.LastSeen); err != nil {
			e.logger.Warn("preference inference failed", "key", key, "error", err)
			continue
		}
		e.logger.Info("preference inferred",
			"key", key, "value", value, "recent_count", f.RecentCount)
	}
}
