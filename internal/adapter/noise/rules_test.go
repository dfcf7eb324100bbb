package noise

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "noise.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadFromFile_MixedFormats(t *testing.T) {
	path := writeTempFile(t, `
ignore:
  - "pg_catalog\\."
  - pattern: "^SET "
    case_sensitive: true
    description: "session settings"
explain_ignore:
  - "^\\s*(BEGIN|COMMIT|ROLLBACK)\\b"
`)

	rules, err := LoadFromFile(path)
	require.NoError(t, err)
	require.Len(t, rules.Ignore, 2)
	assert.Equal(t, "pg_catalog\\.", rules.Ignore[0].Pattern)
	assert.False(t, rules.Ignore[0].CaseSensitive)
	assert.Equal(t, "^SET ", rules.Ignore[1].Pattern)
	assert.True(t, rules.Ignore[1].CaseSensitive)
	assert.Equal(t, "session settings", rules.Ignore[1].Description)
	require.Len(t, rules.ExplainIgnore, 1)
}

func TestRules_NoiseSets(t *testing.T) {
	rules, err := Parse([]byte(`
ignore:
  - "pg_catalog\\."
  - pattern: "^SET "
    case_sensitive: true
explain_ignore:
  - "^\\s*commit\\b"
`))
	require.NoError(t, err)

	explain := rules.ExplainNoise()
	pretty := rules.PrettyNoise()

	tests := []struct {
		sql         string
		wantExplain bool
		wantPretty  bool
	}{
		{"SELECT * FROM PG_CATALOG.pg_class", true, true},
		{"SET search_path = public", true, true},
		{"set search_path = public", false, false},
		{"COMMIT", true, false},
		{"EXPLAIN SELECT 1", true, false},
		{"SHOW FULL FIELDS FROM users", true, true},
		{"SELECT * FROM users", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.sql, func(t *testing.T) {
			assert.Equal(t, tt.wantExplain, explain.Match(tt.sql), "explain")
			assert.Equal(t, tt.wantPretty, pretty.Match(tt.sql), "pretty")
		})
	}
}

func TestRules_NilUsesBuiltins(t *testing.T) {
	var rules *Rules
	assert.True(t, rules.ExplainNoise().Match("EXPLAIN SELECT 1"))
	assert.False(t, rules.PrettyNoise().Match("EXPLAIN SELECT 1"))
	assert.True(t, rules.PrettyNoise().Match("SHOW CREATE TABLE users"))
}

func TestParse_InvalidPattern(t *testing.T) {
	_, err := Parse([]byte(`ignore: ["(unclosed"]`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ignore[0]")
}

func TestParse_EmptyPattern(t *testing.T) {
	_, err := Parse([]byte(`
explain_ignore:
  - description: "missing pattern"
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "explain_ignore[0]: empty pattern")
}

func TestParse_InvalidYAML(t *testing.T) {
	_, err := Parse([]byte("ignore: [unterminated"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parsing noise YAML")
}

func TestLoadFromFile_Missing(t *testing.T) {
	_, err := LoadFromFile(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reading noise file")
}
