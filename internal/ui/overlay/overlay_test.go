package overlay

import (
	"strings"
	"testing"

	"github.com/charmbracelet/x/ansi"
	"github.com/stretchr/testify/require"
)

func grid(w, h int, ch string) string {
	rows := make([]string, h)
	for i := range rows {
		rows[i] = strings.Repeat(ch, w)
	}
	return strings.Join(rows, "\n")
}

func TestPlace_Center(t *testing.T) {
	out := Place(Config{Width: 10, Height: 5}, "XX\nXX", grid(10, 5, "."))

	require.Equal(t, strings.Join([]string{
		"..........",
		"....XX....",
		"....XX....",
		"..........",
		"..........",
	}, "\n"), out)
}

func TestPlace_BottomWithPadding(t *testing.T) {
	out := Place(Config{Width: 6, Height: 4, Position: Bottom, PadY: 1}, "ok", grid(6, 4, "."))

	require.Equal(t, "......\n......\n..ok..\n......", out)
}

func TestPlace_ShortBackgroundIsPadded(t *testing.T) {
	out := Place(Config{Width: 6, Height: 3}, "hi", "ab")

	lines := strings.Split(out, "\n")
	require.Len(t, lines, 3)
	require.Equal(t, "  hi", lines[1])
}

func TestPlace_PreservesStyledBackground(t *testing.T) {
	bg := "\x1b[31m" + strings.Repeat("r", 8) + "\x1b[0m"

	out := Place(Config{Width: 8, Height: 1}, "XX", bg)

	require.Equal(t, "rrrXXrrr", ansi.Strip(out))
}

func TestPlace_ForegroundWiderThanViewport(t *testing.T) {
	out := Place(Config{Width: 3, Height: 1}, "wide!", "...")

	require.Equal(t, "wide!", out)
}
