package modal

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/zjrosen/pipewatch/internal/command"
	"github.com/zjrosen/pipewatch/internal/ui/styles"
)

// StartMsg carries the options the user submitted.
type StartMsg struct {
	Options command.StartOptions
}

type startField int

const (
	fieldCount startField = iota
	fieldDryRun
	fieldAIMode
	fieldStart
	fieldCancel
	fieldLast = fieldCancel
)

// StartForm collects the count, dry-run, and AI-mode options for a run.
type StartForm struct {
	count  textinput.Model
	dryRun bool
	aiMode bool
	focus  startField
}

// NewStartForm pre-fills the form from defaults.
func NewStartForm(defaults command.StartOptions) StartForm {
	ti := textinput.New()
	ti.Prompt = ""
	ti.Placeholder = strconv.Itoa(command.DefaultCount)
	ti.CharLimit = 4
	ti.Width = 8
	ti.SetValue(strconv.Itoa(command.ClampCount(defaults.Count)))
	ti.Focus()
	return StartForm{count: ti, dryRun: defaults.DryRun, aiMode: defaults.AIMode}
}

// Init starts the cursor blink.
func (f StartForm) Init() tea.Cmd {
	return textinput.Blink
}

// Options returns what would be submitted now, with the count clamped.
func (f StartForm) Options() command.StartOptions {
	return command.StartOptions{DryRun: f.dryRun, AIMode: f.aiMode, Count: command.ParseCount(f.count.Value())}
}

// Update handles key input.
func (f StartForm) Update(msg tea.Msg) (StartForm, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.String() {
		case "esc":
			return f, emit(CancelMsg{})
		case "tab", "down":
			return f.move(1), nil
		case "shift+tab", "up":
			return f.move(-1), nil
		case " ", "x":
			if f.toggle() {
				return f, nil
			}
		case "enter":
			switch f.focus {
			case fieldCancel:
				return f, emit(CancelMsg{})
			case fieldDryRun, fieldAIMode:
				f.toggle()
				return f, nil
			default:
				return f, emit(StartMsg{Options: f.Options()})
			}
		}
	}

	if f.focus == fieldCount {
		var cmd tea.Cmd
		f.count, cmd = f.count.Update(msg)
		return f, cmd
	}
	return f, nil
}

func (f *StartForm) toggle() bool {
	switch f.focus {
	case fieldDryRun:
		f.dryRun = !f.dryRun
	case fieldAIMode:
		f.aiMode = !f.aiMode
	default:
		return false
	}
	return true
}

func (f StartForm) move(delta int) StartForm {
	f.focus = (f.focus + startField(delta) + fieldLast + 1) % (fieldLast + 1)
	if f.focus == fieldCount {
		f.count.Focus()
	} else {
		f.count.Blur()
	}
	return f
}

// View renders the form.
func (f StartForm) View() string {
	var b strings.Builder
	b.WriteString(f.label(fieldCount, "Leads") + " " + f.count.View())
	b.WriteString(styles.MutedStyle.Render(fmt.Sprintf("  (%d-%d)", command.MinCount, command.MaxCount)))
	b.WriteString("\n")
	b.WriteString(f.label(fieldDryRun, "Dry run") + " " + checkbox(f.dryRun) + "\n")
	b.WriteString(f.label(fieldAIMode, "AI mode") + " " + checkbox(f.aiMode) + "\n\n")
	b.WriteString(buttons("Start", ButtonPrimary, f.focus == fieldStart, f.focus == fieldCancel))
	return frame("Start pipeline", b.String())
}

// Overlay renders the form centered over bg.
func (f StartForm) Overlay(bg string, width, height int) string {
	return center(f.View(), bg, width, height)
}

func (f StartForm) label(field startField, text string) string {
	text = fmt.Sprintf("%-8s", text)
	if f.focus == field {
		return styles.TitleStyle.Render("> " + text)
	}
	return "  " + text
}

func checkbox(on bool) string {
	if on {
		return "[x]"
	}
	return "[ ]"
}
