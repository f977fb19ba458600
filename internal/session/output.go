package session

import (
	"errors"
	"io"

	"github.com/charmbracelet/lipgloss"

	"github.com/itsmostafa/goprobe/internal/evaluator"
)

// Printer formats results for the output writer.
type Printer interface {
	Format(r EvalResult) string
}

// styles renders session chrome. Only short markers are styled so that
// multi-line values pass through untouched.
type styles struct {
	color bool

	// prompt for the input prompt
	prompt lipgloss.Style

	// result for the "=>" marker
	result lipgloss.Style

	// errorText for error lines
	errorText lipgloss.Style

	// dim for muted text such as history numbers
	dim lipgloss.Style

	// name for command names in help
	name lipgloss.Style
}

func newStyles(w io.Writer, color bool) styles {
	r := lipgloss.NewRenderer(w)
	return styles{
		color: color,
		prompt: r.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("81")),
		result: r.NewStyle().
			Foreground(lipgloss.Color("42")),
		errorText: r.NewStyle().
			Foreground(lipgloss.Color("196")),
		dim: r.NewStyle().
			Foreground(lipgloss.Color("240")),
		name: r.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("220")),
	}
}

func (st styles) render(s lipgloss.Style, text string) string {
	if !st.color {
		return text
	}
	return s.Render(text)
}

// StylePrinter prints values as "=> value" and errors as "Error: message",
// using lipgloss colors when enabled.
type StylePrinter struct {
	inspect func(any) string
	styles  styles
}

// NewStylePrinter creates a printer for w. inspect renders host values.
func NewStylePrinter(w io.Writer, inspect func(any) string, color bool) *StylePrinter {
	return &StylePrinter{inspect: inspect, styles: newStyles(w, color)}
}

// Format renders r.
func (p *StylePrinter) Format(r EvalResult) string {
	if r.Errored() {
		return p.styles.render(p.styles.errorText, formatError(r.Err()))
	}
	return p.styles.render(p.styles.result, "=>") + " " + p.inspect(r.Value())
}

// formatError shows host errors as "Class: message" and anything else with
// an "Error:" prefix.
func formatError(err error) string {
	var ue *evaluator.Error
	if errors.As(err, &ue) && ue.Name != "" {
		return ue.Error()
	}
	return "Error: " + err.Error()
}
