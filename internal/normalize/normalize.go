// Package normalize collapses raw user commands into stable signatures.
// The signature is the join key across experiences, patterns, and
// command associations: two phrasings of the same intent must produce
// the same signature for their counts to aggregate.
package normalize

import (
	"strings"

	"github.com/google/shlex"
)

// fillerTokens are dropped during signature collapse. They carry no
// intent ("please open youtube" and "open youtube" are the same habit).
var fillerTokens = map[string]struct{}{
	"a": {}, "an": {}, "the": {}, "my": {}, "me": {},
	"to": {}, "for": {}, "of": {}, "up": {},
	"please": {}, "kindly": {}, "can": {}, "could": {},
	"you": {}, "would": {}, "will": {}, "just": {},
}

// Normalizer converts raw command text into signatures.
// The zero value is not usable; call New.
type Normalizer struct {
	filler map[string]struct{}
}

// New returns a Normalizer with the default filler-token set.
func New() *Normalizer {
	return &Normalizer{filler: fillerTokens}
}

// Signature returns the canonical signature for raw command text.
// The transform is deterministic: lower-case, trim, shell-style
// tokenization, filler-token removal, single-space join. Token order
// is preserved since "open youtube" and "youtube open" are different
// intents. Returns "" for text that is empty after collapsing.
func (n *Normalizer) Signature(raw string) string {
	tokens := tokenize(raw)
	kept := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		tok = strings.ToLower(strings.Trim(tok, ".,!?;:"))
		if tok == "" {
			continue
		}
		if _, skip := n.filler[tok]; skip {
			continue
		}
		kept = append(kept, tok)
	}
	return strings.Join(kept, " ")
}

// Head returns the first token of a signature, or "" if empty.
// The head token approximates the action of a command and is used
// for theme detection and preference domain matching.
func Head(signature string) string {
	if i := strings.IndexByte(signature, ' '); i >= 0 {
		return signature[:i]
	}
	return signature
}

// tokenize splits raw text with shell-style quoting rules, falling
// back to whitespace splitting when quoting is unbalanced.
func tokenize(raw string) []string {
	tokens, err := shlex.Split(raw)
	if err == nil && len(tokens) > 0 {
		return tokens
	}
	return strings.Fields(raw)
}

// TimeOfDay buckets an hour of day into a coarse label used by
// temporal patterns and the habits report.
func TimeOfDay(hour int) string {
	switch {
	case hour >= 5 && hour < 12:
		return "morning"
	case hour >= 12 && hour < 17:
		return "afternoon"
	case hour >= 17 && hour < 21:
		return "evening"
	default:
		return "night"
	}
}
