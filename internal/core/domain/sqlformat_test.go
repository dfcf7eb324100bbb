package domain

import (
	"io"
	"strings"
	"testing"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

// ansiStyle forces a colour profile so emphasis is visible even when the
// test binary is not attached to a terminal.
func ansiStyle() lipgloss.Style {
	r := lipgloss.NewRenderer(io.Discard)
	r.SetColorProfile(termenv.ANSI256)
	return r.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
}

func TestFormat_ScenarioUsersByID(t *testing.T) {
	t.Parallel()
	style := ansiStyle()
	f := NewFormatter(style)

	got := f.Format("SELECT * FROM users WHERE id = 1")

	want := "\n" + style.Render("SELECT") + " *" +
		"\n" + style.Render("FROM") + " users" +
		"\n" + style.Render("WHERE") + " id = 1"
	assert.Equal(t, want, got)
	assert.Equal(t, 3, strings.Count(got, "\n"))
}

func TestFormat_EmphasisIsVisible(t *testing.T) {
	t.Parallel()
	style := ansiStyle()
	require.NotEqual(t, "SELECT", style.Render("SELECT"), "style must add escape codes")

	got := NewFormatter(style).Format("select a from b where c=1")
	for _, kw := range []string{"SELECT", "FROM", "WHERE"} {
		assert.Contains(t, got, "\n"+style.Render(kw))
	}
}

func TestFormat_Plain(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		sql  string
		want string
	}{
		{
			name: "lowercase select",
			sql:  "select a from b where c=1",
			want: "\nSELECT a\nFROM b\nWHERE c = 1",
		},
		{
			name: "identifiers containing keywords",
			sql:  "SELECT selected_at, fromage FROM t",
			want: "\nSELECT selected_at, fromage\nFROM t",
		},
		{
			name: "grouping and ordering",
			sql:  "select a, count(*) from t group by a order by a limit 5",
			want: "\nSELECT a, count(*)\nFROM t\nGROUP BY a\nORDER BY a\nLIMIT 5",
		},
		{
			name: "insert",
			sql:  "insert into t (a) values (1)",
			want: "\nINSERT INTO t (a)\nVALUES (1)",
		},
		{
			name: "unparseable statement falls back to whitespace collapse",
			sql:  "SHOW   FULL FIELDS\n  from users",
			want: "SHOW FULL FIELDS\nFROM users",
		},
		{
			name: "quoted identifiers with dollar and non-ascii letters",
			sql:  `SELECT "a$select", ñfrom FROM t`,
			want: "\nSELECT \"a$select\", \"ñfrom\"\nFROM t",
		},
		{
			name: "string literal containing keywords",
			sql:  "select 'from here where' from t",
			want: "\nSELECT 'from here where'\nFROM t",
		},
		{
			name: "non-ascii identifier in unparseable statement",
			sql:  "SHOW ñfrom a$where from t",
			want: "SHOW ñfrom a$where\nFROM t",
		},
		{
			name: "empty",
			sql:  "   ",
			want: "",
		},
	}

	f := NewPlainFormatter()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, f.Format(tt.sql))
		})
	}
}

func TestFormat_Deterministic(t *testing.T) {
	t.Parallel()
	f := NewFormatter(ansiStyle())
	sql := "select id, name from users where active order by name limit 10"
	assert.Equal(t, f.Format(sql), f.Format(sql))
}

func TestProperty_FormatLeavesKeywordIdentifiersAlone(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		col := rapid.StringMatching(`(select|from|where|limit|values)_[a-z]{1,6}`).Draw(rt, "col")
		table := rapid.StringMatching(`[a-z]{1,6}_(select|from|where|order|group)`).Draw(rt, "table")

		got := NewPlainFormatter().Format("select " + col + " from " + table)

		if want := "\nSELECT " + col + "\nFROM " + table; got != want {
			rt.Fatalf("Format() = %q, want %q", got, want)
		}
	})
}

func TestProperty_FormatLeavesQuotedIdentifiersAlone(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		ident := rapid.StringMatching(`[a-zñé$]{0,3}(select|from|where|limit|values)[a-zñ$_0-9]{0,3}`).Draw(rt, "ident")

		got := NewPlainFormatter().Format(`select "` + ident + `" from t`)

		if !strings.Contains(got, ident) {
			rt.Fatalf("Format() = %q lost identifier %q", got, ident)
		}
		if n := strings.Count(got, "\n"); n != 2 {
			rt.Fatalf("Format() = %q has %d line breaks, want 2", got, n)
		}
	})
}

func TestSplitQuoted(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		sql  string
		want []segment
	}{
		{
			name: "identifier and literal",
			sql:  `SELECT "a b" FROM t WHERE x = 'y'`,
			want: []segment{
				{text: "SELECT "},
				{text: `"a b"`, quoted: true},
				{text: " FROM t WHERE x = "},
				{text: "'y'", quoted: true},
			},
		},
		{
			name: "doubled quotes",
			sql:  `'it''s' "a""b"`,
			want: []segment{
				{text: "'it''s'", quoted: true},
				{text: " "},
				{text: `"a""b"`, quoted: true},
			},
		},
		{
			name: "escape string",
			sql:  `E'a\'from' x`,
			want: []segment{
				{text: "E"},
				{text: `'a\'from'`, quoted: true},
				{text: " x"},
			},
		},
		{
			name: "unterminated quote",
			sql:  `x "from`,
			want: []segment{
				{text: "x "},
				{text: `"from`, quoted: true},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, splitQuoted(tt.sql))
		})
	}
}

func TestKeywordAlternation(t *testing.T) {
	t.Parallel()
	assert.Equal(t, `SELECT|ORDER\s+BY`, keywordAlternation([]string{"SELECT", "ORDER BY"}))
}
