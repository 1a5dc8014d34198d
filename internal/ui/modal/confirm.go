package modal

import (
	tea "github.com/charmbracelet/bubbletea"
)

// ConfirmMsg is sent when the user accepts a Confirm dialog.
type ConfirmMsg struct{}

// Confirm is a yes/cancel question. Focus starts on Cancel so a stray Enter
// never triggers a destructive action.
type Confirm struct {
	title    string
	message  string
	okLabel  string
	variant  ButtonVariant
	onCancel bool
}

// NewConfirm builds a dialog asking message.
func NewConfirm(title, message, okLabel string, variant ButtonVariant) Confirm {
	return Confirm{title: title, message: message, okLabel: okLabel, variant: variant, onCancel: true}
}

// Update handles key input.
func (c Confirm) Update(msg tea.Msg) (Confirm, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return c, nil
	}
	switch key.String() {
	case "left", "right", "h", "l", "tab", "shift+tab":
		c.onCancel = !c.onCancel
	case "y":
		return c, emit(ConfirmMsg{})
	case "n", "esc":
		return c, emit(CancelMsg{})
	case "enter":
		if c.onCancel {
			return c, emit(CancelMsg{})
		}
		return c, emit(ConfirmMsg{})
	}
	return c, nil
}

// View renders the dialog.
func (c Confirm) View() string {
	return frame(c.title, c.message+"\n\n"+buttons(c.okLabel, c.variant, !c.onCancel, c.onCancel))
}

// Overlay renders the dialog centered over bg.
func (c Confirm) Overlay(bg string, width, height int) string {
	return center(c.View(), bg, width, height)
}

func emit(msg tea.Msg) tea.Cmd {
	return func() tea.Msg { return msg }
}
