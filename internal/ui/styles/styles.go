// Package styles contains Lip Gloss style definitions.
package styles

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/zjrosen/pipewatch/internal/pipeline"
)

var (
	// Text hierarchy
	TextPrimaryColor   = lipgloss.AdaptiveColor{Light: "#2D3436", Dark: "#CCCCCC"}
	TextSecondaryColor = lipgloss.AdaptiveColor{Light: "#555555", Dark: "#BBBBBB"}
	TextMutedColor     = lipgloss.AdaptiveColor{Light: "#999999", Dark: "#696969"}

	BorderDefaultColor = lipgloss.AdaptiveColor{Light: "#D9DCCF", Dark: "#696969"}
	BorderFocusColor   = lipgloss.AdaptiveColor{Light: "#3498DB", Dark: "#54A0FF"}

	// Stage status
	StagePendingColor  = lipgloss.AdaptiveColor{Light: "#999999", Dark: "#696969"}
	StageRunningColor  = lipgloss.AdaptiveColor{Light: "#1E66F5", Dark: "#89B4FA"}
	StageCompleteColor = lipgloss.AdaptiveColor{Light: "#43BF6D", Dark: "#73F59F"}
	StageFailedColor   = lipgloss.AdaptiveColor{Light: "#FF6B6B", Dark: "#FF8787"}

	// Connection indicator
	ConnectedColor    = lipgloss.AdaptiveColor{Light: "#43BF6D", Dark: "#73F59F"}
	DisconnectedColor = lipgloss.AdaptiveColor{Light: "#FECA57", Dark: "#FECA57"}

	// Toasts
	ToastBorderSuccessColor = lipgloss.AdaptiveColor{Light: "#43BF6D", Dark: "#73F59F"}
	ToastBorderErrorColor   = lipgloss.AdaptiveColor{Light: "#FF6B6B", Dark: "#FF8787"}
	ToastBorderInfoColor    = lipgloss.AdaptiveColor{Light: "#54A0FF", Dark: "#54A0FF"}

	// Buttons
	ButtonTextColor           = lipgloss.AdaptiveColor{Light: "#FFFFFF", Dark: "#FFFFFF"}
	ButtonPrimaryBgColor      = lipgloss.AdaptiveColor{Light: "#1A5276", Dark: "#1A5276"}
	ButtonPrimaryFocusBgColor = lipgloss.AdaptiveColor{Light: "#3498DB", Dark: "#3498DB"}
	ButtonCancelBgColor       = lipgloss.AdaptiveColor{Light: "#2D3436", Dark: "#2D3436"}
	ButtonCancelFocusBgColor  = lipgloss.AdaptiveColor{Light: "#636E72", Dark: "#636E72"}
	ButtonDangerBgColor       = lipgloss.AdaptiveColor{Light: "#922B21", Dark: "#922B21"}
	ButtonDangerFocusBgColor  = lipgloss.AdaptiveColor{Light: "#E74C3C", Dark: "#E74C3C"}

	TitleStyle = lipgloss.NewStyle().Bold(true).Foreground(TextPrimaryColor)
	MutedStyle = lipgloss.NewStyle().Foreground(TextMutedColor)

	PanelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(BorderDefaultColor).
			Padding(0, 1)

	baseButtonStyle = lipgloss.NewStyle().Padding(0, 2).Bold(true).Foreground(ButtonTextColor)

	PrimaryButtonStyle        = baseButtonStyle.Background(ButtonPrimaryBgColor)
	PrimaryButtonFocusedStyle = baseButtonStyle.Background(ButtonPrimaryFocusBgColor).Underline(true).UnderlineSpaces(true)
	CancelButtonStyle         = baseButtonStyle.Background(ButtonCancelBgColor)
	CancelButtonFocusedStyle  = baseButtonStyle.Background(ButtonCancelFocusBgColor).Underline(true).UnderlineSpaces(true)
	DangerButtonStyle         = baseButtonStyle.Background(ButtonDangerBgColor)
	DangerButtonFocusedStyle  = baseButtonStyle.Background(ButtonDangerFocusBgColor).Underline(true).UnderlineSpaces(true)
)

// StageColor maps a stage status to its color.
func StageColor(s pipeline.StageStatus) lipgloss.AdaptiveColor {
	switch s {
	case pipeline.StatusRunning:
		return StageRunningColor
	case pipeline.StatusComplete:
		return StageCompleteColor
	case pipeline.StatusFailed:
		return StageFailedColor
	default:
		return StagePendingColor
	}
}

// StageIcon is the glyph shown next to a stage name.
func StageIcon(s pipeline.StageStatus) string {
	switch s {
	case pipeline.StatusRunning:
		return "◐"
	case pipeline.StatusComplete:
		return "●"
	case pipeline.StatusFailed:
		return "✗"
	default:
		return "○"
	}
}
