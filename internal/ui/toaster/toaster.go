// Package toaster shows pipeline notices as a transient box at the bottom of the screen.
package toaster

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"

	"github.com/zjrosen/pipewatch/internal/pipeline"
	"github.com/zjrosen/pipewatch/internal/ui/overlay"
	"github.com/zjrosen/pipewatch/internal/ui/styles"
)

// DefaultDuration is how long a toast stays up. Errors stay twice as long.
const DefaultDuration = 4 * time.Second

const maxTextWidth = 60

// DismissMsg hides the toast it was scheduled for. A newer toast ignores it.
type DismissMsg struct {
	Seq int
}

// Model holds the toaster state.
type Model struct {
	notice   pipeline.Notice
	visible  bool
	seq      int
	duration time.Duration
}

// New creates a hidden toaster.
func New() Model {
	return Model{duration: DefaultDuration}
}

// WithDuration overrides DefaultDuration.
func (m Model) WithDuration(d time.Duration) Model {
	m.duration = d
	return m
}

// Show replaces any visible toast with n and schedules its dismissal.
func (m Model) Show(n pipeline.Notice) (Model, tea.Cmd) {
	m.seq++
	m.notice = n
	m.visible = n.Text != ""
	if !m.visible {
		return m, nil
	}
	d := m.duration
	if n.Kind == pipeline.NoticeError {
		d *= 2
	}
	seq := m.seq
	return m, tea.Tick(d, func(time.Time) tea.Msg { return DismissMsg{Seq: seq} })
}

// Update handles DismissMsg.
func (m Model) Update(msg tea.Msg) Model {
	if d, ok := msg.(DismissMsg); ok && d.Seq == m.seq {
		return m.Hide()
	}
	return m
}

// Hide dismisses the toast.
func (m Model) Hide() Model {
	m.visible = false
	m.notice = pipeline.Notice{}
	return m
}

// Visible returns whether a toast is showing.
func (m Model) Visible() bool {
	return m.visible
}

// Notice returns the notice being shown.
func (m Model) Notice() pipeline.Notice {
	return m.notice
}

// View renders the toast box, or "" when hidden.
func (m Model) View() string {
	if !m.visible {
		return ""
	}

	style := lipgloss.NewStyle().Padding(0, 1).Border(lipgloss.RoundedBorder())
	var icon string
	switch m.notice.Kind {
	case pipeline.NoticeError:
		style = style.BorderForeground(styles.ToastBorderErrorColor)
		icon = "✗ "
	case pipeline.NoticeSuccess:
		style = style.BorderForeground(styles.ToastBorderSuccessColor)
		icon = "✓ "
	default:
		style = style.BorderForeground(styles.ToastBorderInfoColor)
		icon = "i "
	}
	return style.Render(wordwrap.String(icon+m.notice.Text, maxTextWidth))
}

// Overlay draws the toast near the bottom edge of bg.
func (m Model) Overlay(bg string, width, height int) string {
	if !m.visible {
		return bg
	}
	return overlay.Place(overlay.Config{
		Width:    width,
		Height:   height,
		Position: overlay.Bottom,
		PadY:     1,
	}, m.View(), bg)
}
