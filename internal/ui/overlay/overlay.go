// Package overlay draws one rendered block on top of another without
// clearing the screen underneath.
package overlay

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
)

// Position is where the foreground lands.
type Position int

const (
	Center Position = iota
	Bottom
)

// Config controls overlay placement.
type Config struct {
	Width    int
	Height   int
	Position Position
	// PadY is the gap from the bottom edge for Bottom.
	PadY int
}

// Place splices fg into bg line by line. Styling on both sides survives
// because cutting is ANSI-aware.
func Place(cfg Config, fg, bg string) string {
	rows := strings.Split(bg, "\n")
	for len(rows) < cfg.Height {
		rows = append(rows, "")
	}
	block := strings.Split(fg, "\n")
	x, y := origin(cfg, lipgloss.Width(fg), len(block))

	for i, line := range block {
		row := y + i
		if row >= len(rows) {
			break
		}
		rows[row] = splice(rows[row], line, x)
	}
	return strings.Join(rows, "\n")
}

func splice(under, over string, x int) string {
	left := ansi.Truncate(under, x, "")
	if w := ansi.StringWidth(left); w < x {
		left += strings.Repeat(" ", x-w)
	}
	end := x + ansi.StringWidth(over)
	right := ""
	if end < ansi.StringWidth(under) {
		right = ansi.TruncateLeft(under, end, "")
	}
	return left + over + right
}

func origin(cfg Config, w, h int) (x, y int) {
	x = max((cfg.Width-w)/2, 0)
	switch cfg.Position {
	case Bottom:
		y = cfg.Height - h - cfg.PadY
	default:
		y = (cfg.Height - h) / 2
	}
	return x, max(y, 0)
}
