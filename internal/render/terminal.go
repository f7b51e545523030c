package render

import (
	"os"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

// DefaultWidth is the wrap width used when the terminal size is unknown.
const DefaultWidth = 100

// Terminal renders markdown for a terminal at the given width. Status tags
// become bold text with a colored marker. When styled output is not possible
// the markdown is returned as-is.
func Terminal(markdown string, width int) string {
	if width <= 0 {
		width = DefaultWidth
	}
	src := markdownStatusTags(markdown)

	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return src
	}
	out, err := r.Render(src)
	if err != nil {
		return src
	}
	return out
}

// TerminalWidth returns the width of stdout, or DefaultWidth when it is not a terminal.
func TerminalWidth() int {
	fd := int(os.Stdout.Fd()) //nolint:gosec // fd fits in int
	if !term.IsTerminal(fd) {
		return DefaultWidth
	}
	w, _, err := term.GetSize(fd)
	if err != nil || w <= 0 {
		return DefaultWidth
	}
	return min(w, 120)
}

var (
	okStyle   = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#008000", Dark: "#55FF55"})
	failStyle = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#D00000", Dark: "#FF5555"}).Bold(true)
	dimStyle  = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#666666", Dark: "#888888"})
)

// StatusBadge styles a short status word for list output.
func StatusBadge(status string) string {
	switch strings.ToLower(status) {
	case "succeeded", "ok", "ready":
		return okStyle.Render(status)
	case "failed", "error":
		return failStyle.Render(status)
	default:
		return dimStyle.Render(status)
	}
}
