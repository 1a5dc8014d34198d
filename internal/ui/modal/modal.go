// Package modal provides the dialogs the dashboard opens over its main view:
// a confirmation prompt and the start form.
package modal

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/zjrosen/pipewatch/internal/ui/overlay"
	"github.com/zjrosen/pipewatch/internal/ui/styles"
)

// CancelMsg is sent when the user dismisses a dialog.
type CancelMsg struct{}

// ButtonVariant controls the styling of the confirm button.
type ButtonVariant int

const (
	ButtonPrimary ButtonVariant = iota
	ButtonDanger
)

const minWidth = 44

// frame wraps body in the shared dialog chrome: title, divider, padded body,
// rounded border.
func frame(title, body string) string {
	width := max(minWidth, lipgloss.Width(title)+2)

	var b strings.Builder
	b.WriteString(styles.TitleStyle.PaddingLeft(1).Render(title))
	b.WriteString("\n")
	b.WriteString(lipgloss.NewStyle().Foreground(styles.BorderDefaultColor).Render(strings.Repeat("─", width)))
	b.WriteString("\n")
	b.WriteString(lipgloss.NewStyle().Padding(1, 1).Width(width).Render(body))

	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(styles.BorderFocusColor).
		Render(b.String())
}

func buttons(okLabel string, variant ButtonVariant, okFocused, cancelFocused bool) string {
	ok := styles.PrimaryButtonStyle
	if variant == ButtonDanger {
		ok = styles.DangerButtonStyle
	}
	if okFocused {
		ok = styles.PrimaryButtonFocusedStyle
		if variant == ButtonDanger {
			ok = styles.DangerButtonFocusedStyle
		}
	}
	cancel := styles.CancelButtonStyle
	if cancelFocused {
		cancel = styles.CancelButtonFocusedStyle
	}
	return ok.Render(okLabel) + "  " + cancel.Render("Cancel")
}

func center(fg, bg string, width, height int) string {
	return overlay.Place(overlay.Config{Width: width, Height: height, Position: overlay.Center}, fg, bg)
}
