package dashboard

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"

	"github.com/zjrosen/pipewatch/internal/log"
	"github.com/zjrosen/pipewatch/internal/pipeline"
	"github.com/zjrosen/pipewatch/internal/ui/styles"
)

// noMarginStyle removes glamour's document margins so text lines up with the panel.
const noMarginStyle = `{
	"document": {
		"margin": 0,
		"block_prefix": "",
		"block_suffix": ""
	}
}`

func (m Model) renderMessagesPanel() string {
	title := styles.TitleStyle.Render(fmt.Sprintf("Messages · %s (%s)", m.viewing.Name, m.viewing.Company))
	footer := styles.MutedStyle.Render("esc close · j/k scroll")
	body := lipgloss.JoinVertical(lipgloss.Left, title, "", m.viewport.View(), "", footer)
	return styles.PanelStyle.BorderForeground(styles.BorderFocusColor).Render(body)
}

// messagesMarkdown lays out every variant set as a markdown document.
func messagesMarkdown(msgs []pipeline.LeadMessage) string {
	var b strings.Builder
	for i, msg := range msgs {
		if len(msgs) > 1 {
			fmt.Fprintf(&b, "# Variant set %d\n\n", i+1)
		}
		for _, f := range []struct{ label, text string }{
			{"Email A", msg.EmailA},
			{"Email B", msg.EmailB},
			{"DM A", msg.DMA},
			{"DM B", msg.DMB},
			{"CTA", msg.CTA},
		} {
			if strings.TrimSpace(f.text) == "" {
				continue
			}
			fmt.Fprintf(&b, "## %s\n\n%s\n\n", f.label, f.text)
		}
	}
	return b.String()
}

// renderMessages formats msgs for the viewport. Uses the dark style explicitly;
// auto style would query the terminal while the program owns the input.
func renderMessages(msgs []pipeline.LeadMessage, width int) string {
	if len(msgs) == 0 {
		return styles.MutedStyle.Render("No messages generated yet.")
	}
	width = max(width, 20)
	md := messagesMarkdown(msgs)

	r, err := glamour.NewTermRenderer(
		glamour.WithStylePath("dark"),
		glamour.WithStylesFromJSONBytes([]byte(noMarginStyle)),
		glamour.WithWordWrap(width),
	)
	if err == nil {
		var out string
		if out, err = r.Render(md); err == nil {
			return strings.Trim(out, "\n")
		}
	}
	log.Warn(log.CatUI, "markdown render failed, showing plain text", "error", err)
	return wordwrap.String(md, width)
}
