// Package ui renders CLI output: colored status marks, labels and
// human-friendly numbers and times.
package ui

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/dustin/go-humanize/english"
	"github.com/muesli/termenv"
)

var (
	cPrimary = lipgloss.Color("63")  // blue
	cAccent  = lipgloss.Color("205") // magenta
	cGood    = lipgloss.Color("42")  // green
	cWarn    = lipgloss.Color("214") // orange
	cBad     = lipgloss.Color("196") // red
	cMuted   = lipgloss.Color("244") // gray
)

var (
	accentStyle = lipgloss.NewStyle().Bold(true).Foreground(cAccent)
	passStyle   = lipgloss.NewStyle().Bold(true).Foreground(cGood)
	warnStyle   = lipgloss.NewStyle().Bold(true).Foreground(cWarn)
	failStyle   = lipgloss.NewStyle().Bold(true).Foreground(cBad)
	mutedStyle  = lipgloss.NewStyle().Foreground(cMuted)
	keyStyle    = lipgloss.NewStyle().Bold(true).Foreground(cPrimary)
	panelStyle  = lipgloss.NewStyle().BorderStyle(lipgloss.RoundedBorder()).BorderForeground(cMuted).Padding(0, 1)
)

// Setup picks the color profile for w. Colors are dropped when NO_COLOR is
// set or w is not a terminal.
func Setup(w io.Writer) {
	if os.Getenv("NO_COLOR") != "" {
		lipgloss.SetColorProfile(termenv.Ascii)
		return
	}
	lipgloss.SetColorProfile(termenv.NewOutput(w).EnvColorProfile())
}

func RenderAccent(s string) string { return accentStyle.Render(s) }
func RenderPass(s string) string   { return passStyle.Render(s) }
func RenderWarn(s string) string   { return warnStyle.Render(s) }
func RenderFail(s string) string   { return failStyle.Render(s) }
func RenderMuted(s string) string  { return mutedStyle.Render(s) }

// Panel draws a rounded box around s.
func Panel(s string) string {
	return panelStyle.Render(s)
}

// LabelValue renders "label: value" with a bold label.
func LabelValue(label string, value any) string {
	return fmt.Sprintf("%s %v", keyStyle.Render(label+":"), value)
}

// StatusMark renders a habit status as a single colored mark.
func StatusMark(status string) string {
	switch strings.ToLower(status) {
	case "done":
		return RenderPass("✓")
	case "missed":
		return RenderFail("✗")
	case "later":
		return RenderWarn("…")
	default:
		return RenderMuted("·")
	}
}

// Ago renders t relative to now, or "never" for the zero time.
func Ago(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	return humanize.Time(t)
}

// Bytes renders a size like "1.2 MB".
func Bytes(n int64) string {
	if n < 0 {
		n = 0
	}
	return humanize.Bytes(uint64(n))
}

// Count renders an integer with thousands separators.
func Count(n int) string {
	return humanize.Comma(int64(n))
}

// Plural returns "1 day" or "3 days".
func Plural(n int, word string) string {
	return humanize.Comma(int64(n)) + " " + english.PluralWord(n, word, "")
}
