// Package ui renders run reports, cache status and the confirmation prompt
// for the terminal.
package ui

import (
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"golang.org/x/term"
)

var (
	colorPass   = lipgloss.AdaptiveColor{Light: "#2E7D32", Dark: "#86D993"}
	colorWarn   = lipgloss.AdaptiveColor{Light: "#B26A00", Dark: "#F2C94C"}
	colorFail   = lipgloss.AdaptiveColor{Light: "#C62828", Dark: "#FF6B6B"}
	colorAccent = lipgloss.AdaptiveColor{Light: "#1E5BB8", Dark: "#5B8DEF"}
	colorMuted  = lipgloss.AdaptiveColor{Light: "#666666", Dark: "#888888"}
)

// Styles renders text for one output.
type Styles struct {
	renderer *lipgloss.Renderer
	pass     lipgloss.Style
	warn     lipgloss.Style
	fail     lipgloss.Style
	accent   lipgloss.Style
	muted    lipgloss.Style
	bold     lipgloss.Style
}

// NewStyles creates styles for w. With color false every style renders
// plain text.
func NewStyles(w io.Writer, color bool) *Styles {
	r := lipgloss.NewRenderer(w)
	if !color {
		r.SetColorProfile(termenv.Ascii)
	}
	return &Styles{
		renderer: r,
		pass:     r.NewStyle().Foreground(colorPass),
		warn:     r.NewStyle().Foreground(colorWarn),
		fail:     r.NewStyle().Foreground(colorFail).Bold(true),
		accent:   r.NewStyle().Foreground(colorAccent),
		muted:    r.NewStyle().Foreground(colorMuted),
		bold:     r.NewStyle().Bold(true),
	}
}

// ColorEnabled reports whether f should receive colored output: it must be
// a terminal and NO_COLOR must be unset.
func ColorEnabled(f *os.File) bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	return term.IsTerminal(int(f.Fd()))
}

// IsInteractive reports whether f is a terminal.
func IsInteractive(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

var stdout = NewStyles(os.Stdout, ColorEnabled(os.Stdout))

// RenderPass renders s in the success color on stdout.
func RenderPass(s string) string { return stdout.pass.Render(s) }

// RenderWarn renders s in the warning color on stdout.
func RenderWarn(s string) string { return stdout.warn.Render(s) }

// RenderFail renders s in the failure color on stdout.
func RenderFail(s string) string { return stdout.fail.Render(s) }

// RenderAccent renders s in the accent color on stdout.
func RenderAccent(s string) string { return stdout.accent.Render(s) }

// RenderMuted renders s dimmed on stdout.
func RenderMuted(s string) string { return stdout.muted.Render(s) }
