package engine

import (
	"fmt"
	"strings"

	"github.com/Rahiman13/Personal-assistant/internal/memory"
)

// Preference keys are namespaced by domain: app_preference:browser,
// app_preference:editor. The domain is the last token of a remember
// phrase; everything before it (minus the lead-in verb) is the value.
const preferenceNamespace = "app_preference"

// leadIns are verbs and filler that open a remember phrase and carry no
// content: "I prefer", "please use", "remember that I like".
var leadIns = map[string]struct{}{
	"i": {}, "we": {}, "please": {}, "that": {}, "my": {}, "the": {},
	"prefer": {}, "use": {}, "like": {}, "want": {}, "love": {},
	"remember": {}, "always": {},
}

// ParsePreferencePhrase splits a remember phrase into a namespaced key
// and a value. "prefer Chrome browser" yields
// (app_preference:browser, Chrome); an explicit "browser=Chrome" form
// is accepted too. The value keeps its original casing.
func ParsePreferencePhrase(phrase string) (key, value string, err error) {
	phrase = strings.TrimSpace(phrase)
	if phrase == "" {
		return "", "", fmt.Errorf("%w: empty preference phrase", memory.ErrValidation)
	}

	if k, v, ok := strings.Cut(phrase, "="); ok {
		key, err = PreferenceKey(k)
		if err != nil {
			return "", "", err
		}
		v = strings.TrimSpace(v)
		if v == "" {
			return "", "", fmt.Errorf("%w: preference value must be non-empty", memory.ErrValidation)
		}
		return key, v, nil
	}

	fields := strings.Fields(phrase)
	start := 0
	for start < len(fields) {
		if _, ok := leadIns[strings.ToLower(strings.Trim(fields[start], ".,!?"))]; !ok {
			break
		}
		start++
	}
	fields = fields[start:]
	if len(fields) < 2 {
		return "", "", fmt.Errorf(
			"%w: cannot parse preference phrase %q: want at least a value and a domain", memory.ErrValidation, phrase)
	}

	domain := strings.ToLower(strings.Trim(fields[len(fields)-1], ".,!?"))
	value = strings.Join(fields[:len(fields)-1], " ")
	key, err = PreferenceKey(domain)
	if err != nil {
		return "", "", err
	}
	return key, value, nil
}

// ParseForgetPhrase extracts the preference key from a forget phrase.
// "forget my browser" and plain "browser" both yield
// app_preference:browser; full namespaced keys pass through.
func ParseForgetPhrase(phrase string) (string, error) {
	var content []string
	for _, f := range strings.Fields(phrase) {
		tok := strings.ToLower(strings.Trim(f, ".,!?"))
		if tok == "" || tok == "forget" {
			continue
		}
		if _, ok := leadIns[tok]; ok {
			continue
		}
		content = append(content, tok)
	}
	if len(content) == 0 {
		return "", fmt.Errorf("%w: cannot parse forget phrase %q: no domain named", memory.ErrValidation, phrase)
	}
	return PreferenceKey(content[len(content)-1])
}

// PreferenceKey builds the namespaced key for a domain like "browser".
// A full key that already carries a namespace passes through.
func PreferenceKey(domain string) (string, error) {
	domain = strings.ToLower(strings.TrimSpace(domain))
	if domain == "" {
		return "", fmt.Errorf("%w: preference domain must be non-empty", memory.ErrValidation)
	}
	if strings.Contains(domain, ":") {
		return domain, nil
	}
	return preferenceNamespace + ":" + domain, nil
}
