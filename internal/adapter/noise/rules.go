// Package noise loads operator-supplied noise patterns from YAML.
package noise

import (
	"fmt"
	"os"
	"regexp"

	"github.com/guillermoBallester/sqlpeek/internal/core/domain"
	"gopkg.in/yaml.v3"
)

// Rules extends the built-in noise sets.
//
//	ignore:                       # skipped by the explain tap and the pretty printer
//	  - "pg_catalog\\."           # plain string: a case-insensitive pattern
//	  - pattern: "^SET "
//	    case_sensitive: true
//	    description: "session settings"
//	explain_ignore:               # skipped by the explain tap only
//	  - "^\\s*(BEGIN|COMMIT|ROLLBACK)\\b"
type Rules struct {
	Ignore        []Pattern `yaml:"ignore"`
	ExplainIgnore []Pattern `yaml:"explain_ignore"`
}

// Pattern is one regular expression with optional metadata.
type Pattern struct {
	Pattern       string `yaml:"pattern"`
	CaseSensitive bool   `yaml:"case_sensitive,omitempty"`
	Description   string `yaml:"description,omitempty"`

	re *regexp.Regexp
}

// UnmarshalYAML accepts both a plain string and a mapping.
func (p *Pattern) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		p.Pattern = value.Value
		return nil
	}
	type alias Pattern
	var a alias
	if err := value.Decode(&a); err != nil {
		return fmt.Errorf("decoding pattern: %w", err)
	}
	*p = Pattern(a)
	return nil
}

func (p *Pattern) compile() error {
	expr := p.Pattern
	if !p.CaseSensitive {
		expr = "(?i)" + expr
	}
	re, err := regexp.Compile(expr)
	if err != nil {
		return err
	}
	p.re = re
	return nil
}

// LoadFromFile reads and compiles a rules file.
func LoadFromFile(path string) (*Rules, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading noise file: %w", err)
	}
	return Parse(data)
}

// Parse decodes and compiles rules from YAML.
func Parse(data []byte) (*Rules, error) {
	var rules Rules
	if err := yaml.Unmarshal(data, &rules); err != nil {
		return nil, fmt.Errorf("parsing noise YAML: %w", err)
	}
	if err := compileAll("ignore", rules.Ignore); err != nil {
		return nil, err
	}
	if err := compileAll("explain_ignore", rules.ExplainIgnore); err != nil {
		return nil, err
	}
	return &rules, nil
}

func compileAll(section string, patterns []Pattern) error {
	for i := range patterns {
		if patterns[i].Pattern == "" {
			return fmt.Errorf("%s[%d]: empty pattern", section, i)
		}
		if err := patterns[i].compile(); err != nil {
			return fmt.Errorf("%s[%d]: invalid pattern %q: %w", section, i, patterns[i].Pattern, err)
		}
	}
	return nil
}

// ExplainNoise is domain.ExplainNoise plus ignore and explain_ignore.
// A nil Rules yields the built-in set.
func (r *Rules) ExplainNoise() *domain.NoiseSet {
	if r == nil {
		return domain.ExplainNoise()
	}
	return domain.ExplainNoise().With(append(regexps(r.Ignore), regexps(r.ExplainIgnore)...)...)
}

// PrettyNoise is domain.IntrospectionNoise plus ignore.
func (r *Rules) PrettyNoise() *domain.NoiseSet {
	if r == nil {
		return domain.IntrospectionNoise()
	}
	return domain.IntrospectionNoise().With(regexps(r.Ignore)...)
}

func regexps(patterns []Pattern) []*regexp.Regexp {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		if p.re != nil {
			out = append(out, p.re)
		}
	}
	return out
}
