// Package styles holds the terminal palette and text styles used by the installer output.
package styles

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

var (
	Gray   = lipgloss.Color("#888888")
	Muted  = lipgloss.Color("#555555")
	Blue   = lipgloss.Color("#5FAFFF")
	Green  = lipgloss.Color("#5FD787")
	Yellow = lipgloss.Color("#FFD787")
	Red    = lipgloss.Color("#FF8787")
)

var (
	// Title is used for section headers (step banners, summaries).
	Title = lipgloss.NewStyle().Bold(true)

	MutedText = lipgloss.NewStyle().Foreground(Muted)

	AccentText = lipgloss.NewStyle().Foreground(Blue)

	SuccessText = lipgloss.NewStyle().Foreground(Green).Bold(true)

	WarningText = lipgloss.NewStyle().Foreground(Yellow).Bold(true)

	ErrorText = lipgloss.NewStyle().Foreground(Red).Bold(true)
)

// Symbols for terminal lines.
const (
	SymbolSuccess = "✓"
	SymbolFailure = "✗"
	SymbolSkipped = "↷"
	SymbolWarning = "!"
)

// DisableColor makes every style render plain text.
func DisableColor() {
	lipgloss.SetColorProfile(termenv.Ascii)
}

// ProgressGradient returns the gradient colors for progress bars.
func ProgressGradient() (string, string) {
	return string(Blue), string(Green)
}
