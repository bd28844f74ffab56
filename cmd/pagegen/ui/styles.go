// Package ui styles pagegen's terminal output.
// Colors follow a light/dark palette chosen from the terminal environment.
package ui

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"pagegen/internal/audit"
)

var (
	LightForeground = lipgloss.Color("#101F38")
	LightPrimary    = lipgloss.Color("#101F38")
	LightAccent     = lipgloss.Color("#8BC34A")
	LightMuted      = lipgloss.Color("#6b7280")
	LightBorder     = lipgloss.Color("#dce0e5")

	DarkForeground = lipgloss.Color("#f2f2f2")
	DarkPrimary    = lipgloss.Color("#8BC34A")
	DarkAccent     = lipgloss.Color("#2196F3")
	DarkMuted      = lipgloss.Color("#9aa5b8")
	DarkBorder     = lipgloss.Color("#2a3850")

	Destructive = lipgloss.Color("#e53935")
	Success     = lipgloss.Color("#8BC34A")
	Warning     = lipgloss.Color("#FFC107")
	Info        = lipgloss.Color("#2196F3")
)

// Theme holds the current color scheme.
type Theme struct {
	Foreground lipgloss.Color
	Primary    lipgloss.Color
	Accent     lipgloss.Color
	Muted      lipgloss.Color
	Border     lipgloss.Color
	IsDark     bool
}

// LightTheme returns the light mode theme.
func LightTheme() Theme {
	return Theme{
		Foreground: LightForeground,
		Primary:    LightPrimary,
		Accent:     LightAccent,
		Muted:      LightMuted,
		Border:     LightBorder,
	}
}

// DarkTheme returns the dark mode theme.
func DarkTheme() Theme {
	return Theme{
		Foreground: DarkForeground,
		Primary:    DarkPrimary,
		Accent:     DarkAccent,
		Muted:      DarkMuted,
		Border:     DarkBorder,
		IsDark:     true,
	}
}

// DetectTheme picks dark mode from COLORFGBG or PAGEGEN_DARK_MODE=1.
func DetectTheme() Theme {
	if fgbg := os.Getenv("COLORFGBG"); fgbg != "" {
		// "foreground;background"; indices 0-6 and 8 are dark backgrounds.
		parts := strings.Split(fgbg, ";")
		if len(parts) == 2 {
			if bg, err := strconv.Atoi(parts[1]); err == nil && ((bg >= 0 && bg <= 6) || bg == 8) {
				return DarkTheme()
			}
		}
	}
	if os.Getenv("PAGEGEN_DARK_MODE") == "1" {
		return DarkTheme()
	}
	return LightTheme()
}

// Styles holds the styled building blocks of CLI output.
type Styles struct {
	Theme Theme

	Title   lipgloss.Style
	Label   lipgloss.Style
	Value   lipgloss.Style
	Muted   lipgloss.Style
	Success lipgloss.Style
	Warning lipgloss.Style
	Error   lipgloss.Style
	Box     lipgloss.Style
}

// NewStyles builds styles for theme.
func NewStyles(theme Theme) Styles {
	return Styles{
		Theme:   theme,
		Title:   lipgloss.NewStyle().Bold(true).Foreground(theme.Primary),
		Label:   lipgloss.NewStyle().Bold(true).Foreground(theme.Foreground),
		Value:   lipgloss.NewStyle().Foreground(theme.Foreground),
		Muted:   lipgloss.NewStyle().Foreground(theme.Muted),
		Success: lipgloss.NewStyle().Bold(true).Foreground(Success),
		Warning: lipgloss.NewStyle().Bold(true).Foreground(Warning),
		Error:   lipgloss.NewStyle().Bold(true).Foreground(Destructive),
		Box: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(theme.Border).
			Padding(0, 1),
	}
}

// DefaultStyles returns styles for the detected theme.
func DefaultStyles() Styles {
	return NewStyles(DetectTheme())
}

// Severity styles a finding severity.
func (s Styles) Severity(sev audit.Severity) string {
	switch sev {
	case audit.SeverityCritical:
		return s.Error.Render(string(sev))
	case audit.SeverityWarning:
		return s.Warning.Render(string(sev))
	default:
		return s.Muted.Render(string(sev))
	}
}

// Score styles a health score: green at 90+, yellow at 60+, red below.
func (s Styles) Score(score int) string {
	text := fmt.Sprintf("%d/100", score)
	switch {
	case score >= 90:
		return s.Success.Render(text)
	case score >= 60:
		return s.Warning.Render(text)
	default:
		return s.Error.Render(text)
	}
}

// KeyValue renders an aligned "label: value" line.
func (s Styles) KeyValue(label, value string) string {
	return s.Label.Render(fmt.Sprintf("%-16s", label+":")) + " " + s.Value.Render(value)
}

// AuditResult renders the outcome of an audit run.
func (s Styles) AuditResult(res audit.Result) string {
	var sb strings.Builder
	sb.WriteString(s.Title.Render("Audit") + "\n")
	sb.WriteString(s.KeyValue("Outcome", string(res.Reason)) + "\n")
	sb.WriteString(s.KeyValue("Best score", s.Score(res.BestScore)) + "\n")
	sb.WriteString(s.KeyValue("Verifier calls", strconv.Itoa(res.VerifierCalls)) + "\n")
	sb.WriteString(s.KeyValue("Refiner calls", strconv.Itoa(res.RefinerCalls)) + "\n")

	if len(res.Steps) > 0 {
		var steps []string
		for _, st := range res.Steps {
			line := fmt.Sprintf("#%d score=%d findings=%d", st.Iteration, st.Score, st.Findings)
			if !st.Parsed {
				line += " (unparsed)"
			}
			if st.Error != "" {
				line += " error=" + st.Error
			}
			steps = append(steps, s.Muted.Render(line))
		}
		sb.WriteString(s.Box.Render(strings.Join(steps, "\n")) + "\n")
	}

	if rep := res.LastReport; rep != nil && len(rep.Findings) > 0 {
		sb.WriteString(s.Title.Render("Remaining findings") + "\n")
		for i, f := range rep.Findings {
			sb.WriteString(fmt.Sprintf("%2d. [%s] %s\n", i+1, s.Severity(f.Severity), f.Issue))
			if f.Remediation != "" {
				sb.WriteString("    " + s.Muted.Render(f.Remediation) + "\n")
			}
		}
	}
	return sb.String()
}

// Warnings renders generation warnings, or "" when there are none.
func (s Styles) Warnings(warnings []string) string {
	if len(warnings) == 0 {
		return ""
	}
	var sb strings.Builder
	for _, w := range warnings {
		sb.WriteString(s.Warning.Render("warning: ") + w + "\n")
	}
	return sb.String()
}

// RenderMarkdown renders markdown for the terminal, falling back to the
// raw text if no renderer can be built.
func RenderMarkdown(md string, width int) string {
	if width <= 0 {
		width = 80
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return md
	}
	out, err := r.Render(md)
	if err != nil {
		return md
	}
	return out
}
