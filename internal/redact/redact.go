// Package redact strips credentials from interaction text before it is
// persisted. The experiences log is long-lived and mined repeatedly, so
// a pasted token must never reach it.
package redact

import "regexp"

// Pattern is one compiled secret detector.
type Pattern struct {
	Name        string
	Regex       *regexp.Regexp
	Replacement string
}

var secretPatterns = []Pattern{
	{
		Name:        "AWS Access Key",
		Regex:       regexp.MustCompile(`AKIA[0-9A-Z]{16}`),
		Replacement: "[AWS_ACCESS_KEY_REDACTED]",
	},
	{
		Name:        "JWT Token",
		Regex:       regexp.MustCompile(`eyJ[A-Za-z0-9_-]+\.eyJ[A-Za-z0-9_-]+\.[A-Za-z0-9_-]+`),
		Replacement: "[JWT_REDACTED]",
	},
	{
		Name:        "GitHub Token",
		Regex:       regexp.MustCompile(`gh[po]_[A-Za-z0-9]{36}`),
		Replacement: "[GITHUB_TOKEN_REDACTED]",
	},
	{
		Name:        "Bearer Token",
		Regex:       regexp.MustCompile(`(?i)bearer\s+[A-Za-z0-9._-]{20,}`),
		Replacement: "Bearer [TOKEN_REDACTED]",
	},
	{
		Name:        "Generic Secret",
		Regex:       regexp.MustCompile(`(?i)(password|passwd|token|secret|api[_-]?key)\s*[=:]\s*\S+`),
		Replacement: "$1=[REDACTED]",
	},
}

// Redactor applies the secret patterns to text.
type Redactor struct {
	patterns []Pattern
}

// New creates a Redactor with the default patterns.
func New() *Redactor {
	return &Redactor{patterns: Patterns()}
}

// Apply replaces every detected secret with its placeholder.
func (r *Redactor) Apply(input string) string {
	if input == "" {
		return input
	}
	result := input
	for _, p := range r.patterns {
		result = p.Regex.ReplaceAllString(result, p.Replacement)
	}
	return result
}

// Patterns returns a copy of the default pattern list.
func Patterns() []Pattern {
	out := make([]Pattern, len(secretPatterns))
	copy(out, secretPatterns)
	return out
}
