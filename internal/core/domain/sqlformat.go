package domain

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/charmbracelet/lipgloss"
	pg_query "github.com/pganalyze/pg_query_go/v6"
)

// FormatKeywords are the clause keywords that start a new line and get emphasis,
// in match priority order.
var FormatKeywords = []string{
	"SELECT",
	"FROM",
	"WHERE",
	"ORDER BY",
	"GROUP BY",
	"LIMIT",
	"INSERT INTO",
	"VALUES",
}

// keywordPattern matches any keyword case-insensitively, together with the
// whitespace in front of it. Word boundaries are checked by isWordRune since
// regexp's \b is ASCII-only.
var keywordPattern = regexp.MustCompile(`(?i)\s*(?:` + keywordAlternation(FormatKeywords) + `)`)

var whitespace = regexp.MustCompile(`\s+`)

func keywordAlternation(keywords []string) string {
	alts := make([]string, len(keywords))
	for i, kw := range keywords {
		words := strings.Fields(kw)
		for j, w := range words {
			words[j] = regexp.QuoteMeta(w)
		}
		alts[i] = strings.Join(words, `\s+`)
	}
	return strings.Join(alts, "|")
}

// DefaultKeywordStyle is bold light blue.
func DefaultKeywordStyle() lipgloss.Style {
	return lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
}

// Formatter renders SQL for terminal display.
type Formatter struct {
	emphasize func(string) string
}

// NewFormatter returns a Formatter that renders keywords through style.
func NewFormatter(style lipgloss.Style) *Formatter {
	return &Formatter{emphasize: func(s string) string { return style.Render(s) }}
}

// NewPlainFormatter returns a Formatter that breaks lines but adds no escape codes.
func NewPlainFormatter() *Formatter {
	return &Formatter{emphasize: func(s string) string { return s }}
}

// Format normalizes sql, starts a new line before every clause keyword and
// emphasizes the keywords. Keywords are written in upper case.
// Quoted identifiers and string literals are copied unchanged.
func (f *Formatter) Format(sql string) string {
	normalized := normalizeSQL(sql)

	var b strings.Builder
	for _, seg := range splitQuoted(normalized) {
		if seg.quoted {
			b.WriteString(seg.text)
			continue
		}
		f.breakKeywords(&b, seg.text)
	}
	return b.String()
}

// breakKeywords writes s to b with every whole-word keyword replaced by a
// line break and its emphasized canonical form.
func (f *Formatter) breakKeywords(b *strings.Builder, s string) {
	written, from := 0, 0
	for from < len(s) {
		loc := keywordPattern.FindStringIndex(s[from:])
		if loc == nil {
			break
		}
		start, end := from+loc[0], from+loc[1]
		match := s[start:end]
		kwStart := end - len(strings.TrimLeftFunc(match, unicode.IsSpace))

		if !wordBoundary(s, kwStart, end) {
			_, size := utf8.DecodeRuneInString(s[kwStart:])
			from = kwStart + size
			continue
		}

		b.WriteString(s[written:start])
		kw := strings.ToUpper(whitespace.ReplaceAllString(s[kwStart:end], " "))
		b.WriteString("\n" + f.emphasize(kw))
		written, from = end, end
	}
	b.WriteString(s[written:])
}

// wordBoundary reports whether s[start:end] is not glued to identifier
// characters on either side. Segment edges count as boundaries because they
// touch a quote.
func wordBoundary(s string, start, end int) bool {
	if start > 0 {
		if r, _ := utf8.DecodeLastRuneInString(s[:start]); isWordRune(r) {
			return false
		}
	}
	if end < len(s) {
		if r, _ := utf8.DecodeRuneInString(s[end:]); isWordRune(r) {
			return false
		}
	}
	return true
}

// isWordRune reports whether r may appear in an unquoted PostgreSQL identifier.
func isWordRune(r rune) bool {
	return r == '_' || r == '$' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

type segment struct {
	text   string
	quoted bool
}

// splitQuoted cuts sql into runs outside and inside quotes. Double quotes
// delimit identifiers, single quotes delimit literals, and a doubled quote
// character escapes itself. E'' literals also honour backslash escapes. An
// unterminated quote runs to the end of sql.
func splitQuoted(sql string) []segment {
	var segs []segment
	plain := 0
	for i := 0; i < len(sql); i++ {
		q := sql[i]
		if q != '"' && q != '\'' {
			continue
		}
		escapes := q == '\'' && i > 0 && (sql[i-1] == 'E' || sql[i-1] == 'e') &&
			(i == 1 || !isWordRune(rune(sql[i-2])))

		end := len(sql)
		for j := i + 1; j < len(sql); j++ {
			if escapes && sql[j] == '\\' {
				j++
				continue
			}
			if sql[j] != q {
				continue
			}
			if j+1 < len(sql) && sql[j+1] == q {
				j++
				continue
			}
			end = j + 1
			break
		}

		if i > plain {
			segs = append(segs, segment{text: sql[plain:i]})
		}
		segs = append(segs, segment{text: sql[i:end], quoted: true})
		plain = end
		i = end - 1
	}
	if plain < len(sql) {
		segs = append(segs, segment{text: sql[plain:]})
	}
	return segs
}

// normalizeSQL deparses statements PostgreSQL can parse and otherwise
// collapses whitespace runs.
func normalizeSQL(sql string) string {
	trimmed := strings.TrimSpace(sql)
	if trimmed == "" {
		return ""
	}

	tree, err := pg_query.Parse(trimmed)
	if err == nil && len(tree.Stmts) > 0 {
		if out, err := pg_query.Deparse(tree); err == nil && out != "" {
			return out
		}
	}
	return whitespace.ReplaceAllString(trimmed, " ")
}
