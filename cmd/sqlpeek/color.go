package main

import (
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/guillermoBallester/sqlpeek/internal/config"
	"github.com/guillermoBallester/sqlpeek/internal/core/domain"
	"github.com/muesli/termenv"
	"golang.org/x/term"
)

// newFormatter picks keyword emphasis for out. "auto" emphasizes only when
// out is a terminal.
func newFormatter(mode string, out io.Writer) *domain.Formatter {
	switch mode {
	case config.ColorNever:
		return domain.NewPlainFormatter()
	case config.ColorAlways:
		r := lipgloss.NewRenderer(out)
		r.SetColorProfile(termenv.ANSI256)
		return domain.NewFormatter(keywordStyle(r))
	default:
		f, ok := out.(*os.File)
		if !ok || !term.IsTerminal(int(f.Fd())) {
			return domain.NewPlainFormatter()
		}
		return domain.NewFormatter(keywordStyle(lipgloss.NewRenderer(f)))
	}
}

func keywordStyle(r *lipgloss.Renderer) lipgloss.Style {
	return domain.DefaultKeywordStyle().Renderer(r)
}
