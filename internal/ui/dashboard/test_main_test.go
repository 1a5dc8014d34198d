package dashboard

import (
	"os"
	"testing"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

func TestMain(m *testing.M) {
	// Plain output keeps teatest frames free of color codes.
	lipgloss.SetColorProfile(termenv.Ascii)
	os.Exit(m.Run())
}
