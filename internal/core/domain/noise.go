package domain

import (
	"regexp"
	"strings"
)

// Schema-introspection statements issued by ORMs while loading models.
var introspectionPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bSHOW\s+FULL\s+FIELDS\b`),
	regexp.MustCompile(`(?i)\bSHOW\s+CREATE\s+TABLE\b`),
}

var explainPattern = regexp.MustCompile(`(?i)^\s*EXPLAIN\b`)

// NoiseSet is an immutable list of patterns for statements that should not be
// explained or echoed.
type NoiseSet struct {
	patterns []*regexp.Regexp
}

// IntrospectionNoise matches schema-introspection statements only.
func IntrospectionNoise() *NoiseSet {
	return &NoiseSet{patterns: introspectionPatterns}
}

// ExplainNoise matches introspection statements and statements that already
// are an EXPLAIN, so a diagnostic query never triggers another one.
func ExplainNoise() *NoiseSet {
	return IntrospectionNoise().With(explainPattern)
}

// With returns a copy of n extended with extra patterns.
func (n *NoiseSet) With(extra ...*regexp.Regexp) *NoiseSet {
	patterns := make([]*regexp.Regexp, 0, len(n.patterns)+len(extra))
	patterns = append(patterns, n.patterns...)
	patterns = append(patterns, extra...)
	return &NoiseSet{patterns: patterns}
}

// Match reports whether sql matches any pattern. A nil set matches nothing.
func (n *NoiseSet) Match(sql string) bool {
	if n == nil {
		return false
	}
	for _, p := range n.patterns {
		if p.MatchString(sql) {
			return true
		}
	}
	return false
}

// Len returns the number of patterns.
func (n *NoiseSet) Len() int {
	if n == nil {
		return 0
	}
	return len(n.patterns)
}

// IsExplain reports whether sql is already an EXPLAIN statement.
func IsExplain(sql string) bool {
	return explainPattern.MatchString(sql)
}

// ExplainStatement prefixes sql with EXPLAIN ANALYZE, or plain EXPLAIN when
// analyze is false.
func ExplainStatement(sql string, analyze bool) string {
	if analyze {
		return "EXPLAIN ANALYZE " + sql
	}
	return "EXPLAIN " + sql
}

// FormatExplainRows joins each row's columns with " | " and rows with newlines.
func FormatExplainRows(rows [][]string) string {
	lines := make([]string, len(rows))
	for i, row := range rows {
		lines[i] = strings.Join(row, " | ")
	}
	return strings.Join(lines, "\n")
}
