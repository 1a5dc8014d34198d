package dashboard

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/zjrosen/pipewatch/internal/pipeline"
	"github.com/zjrosen/pipewatch/internal/ui/overlay"
	"github.com/zjrosen/pipewatch/internal/ui/styles"
)

const logLines = 5

var stageNames = map[pipeline.StageID]string{
	pipeline.StageGenerate: "Generate",
	pipeline.StageEnrich:   "Enrich",
	pipeline.StageMessage:  "Message",
	pipeline.StageSend:     "Send",
}

// fixedRows is the height taken by everything except the leads table body.
func fixedRows(fullHelp bool) int {
	helpRows := 1
	if fullHelp {
		helpRows = 4
	}
	// header, stage panel, metrics, table header, logs panel
	return 1 + 3 + 1 + 2 + (logLines + 2) + helpRows
}

func newLeadsTable() table.Model {
	t := table.New(table.WithFocused(true))
	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(styles.BorderDefaultColor).
		BorderBottom(true).
		Bold(true)
	s.Selected = s.Selected.Foreground(styles.TextPrimaryColor).Background(styles.ButtonPrimaryBgColor)
	t.SetStyles(s)
	return t
}

// leadColumns divides width between the text columns once the fixed ones are placed.
func leadColumns(width int) []table.Column {
	const fixed = 6 + 10 + 6
	flex := max((width-fixed-14)/4, 8)
	return []table.Column{
		{Title: "ID", Width: 6},
		{Title: "Name", Width: flex},
		{Title: "Company", Width: flex},
		{Title: "Title", Width: flex},
		{Title: "Industry", Width: flex},
		{Title: "Status", Width: 10},
		{Title: "Conf", Width: 6},
	}
}

func leadRows(leads []pipeline.Lead) []table.Row {
	leads = pipeline.DedupeLeads(leads)
	rows := make([]table.Row, 0, len(leads))
	for _, l := range leads {
		conf := "-"
		if l.Confidence != nil {
			conf = strconv.FormatFloat(*l.Confidence, 'f', 2, 64)
		}
		rows = append(rows, table.Row{
			strconv.Itoa(l.ID), l.Name, l.Company, l.Title, l.Industry, l.Status, conf,
		})
	}
	return rows
}

// View renders the dashboard.
func (m Model) View() string {
	sections := []string{
		m.renderHeader(),
		m.renderStages(),
		m.renderMetrics(),
		m.leads.View(),
		m.renderLogs(),
		m.help.View(m.keys),
	}
	view := lipgloss.JoinVertical(lipgloss.Left, sections...)

	switch m.overlay {
	case overlayStart:
		view = m.startForm.Overlay(view, m.width, m.height)
	case overlayReset:
		view = m.confirm.Overlay(view, m.width, m.height)
	case overlayMessages:
		view = overlay.Place(overlay.Config{Width: m.width, Height: m.height}, m.renderMessagesPanel(), view)
	}
	return m.toast.Overlay(view, m.width, m.height)
}

func (m Model) renderHeader() string {
	title := styles.TitleStyle.Render("pipewatch")
	if m.cfg.ServerURL != "" {
		title += styles.MutedStyle.Render("  " + m.cfg.ServerURL)
	}

	var conn string
	if m.snap.Connected {
		conn = lipgloss.NewStyle().Foreground(styles.ConnectedColor).Render("● live")
	} else {
		conn = lipgloss.NewStyle().Foreground(styles.DisconnectedColor).Render(m.spinner.View() + " polling")
	}

	state := "idle"
	switch {
	case m.busy != "":
		state = m.busy + "…"
	case m.snap.Pipeline.Running:
		state = "running"
	}
	if m.snap.DroppedEvents > 0 {
		state += fmt.Sprintf("  dropped %d", m.snap.DroppedEvents)
	}

	right := styles.MutedStyle.Render(state) + "  " + conn
	gap := max(m.width-lipgloss.Width(title)-lipgloss.Width(right), 1)
	return title + strings.Repeat(" ", gap) + right
}

func (m Model) renderStages() string {
	active, _ := m.snap.Pipeline.ActiveStage()
	cells := make([]string, 0, len(pipeline.Stages))
	for _, id := range pipeline.Stages {
		p := m.snap.Pipeline.Stage(id)
		icon := styles.StageIcon(p.Status)
		if id == active {
			icon = m.spinner.View()
		}
		text := fmt.Sprintf("%s %s %d", icon, stageNames[id], p.Count)
		if p.Sent != nil || p.Failed != nil {
			text += fmt.Sprintf(" (%d sent, %d failed)", deref(p.Sent), deref(p.Failed))
		}
		cells = append(cells, lipgloss.NewStyle().Foreground(styles.StageColor(p.Status)).Render(text))
	}
	return styles.PanelStyle.Width(max(m.width-2, 0)).Render(strings.Join(cells, "  →  "))
}

func (m Model) renderMetrics() string {
	parts := []string{fmt.Sprintf("Total %d", m.snap.Metrics.Total)}
	for _, s := range pipeline.LeadStatuses {
		parts = append(parts, fmt.Sprintf("%s %d", s, m.snap.Metrics.Count(s)))
	}
	return styles.MutedStyle.Render(" " + strings.Join(parts, " · "))
}

func (m Model) renderLogs() string {
	inner := max(m.width-6, 10)
	lines := make([]string, 0, logLines)
	for i, e := range m.snap.Logs {
		if i == logLines {
			break
		}
		line := fmt.Sprintf("%s [%s] %s %s", e.TS, e.Stage, strings.ToUpper(e.Level), e.Message)
		lines = append(lines, runewidth.Truncate(line, inner, "…"))
	}
	if len(lines) == 0 {
		lines = append(lines, styles.MutedStyle.Render("No activity yet."))
	}
	for len(lines) < logLines {
		lines = append(lines, "")
	}
	return styles.PanelStyle.Width(max(m.width-2, 0)).Render(strings.Join(lines, "\n"))
}

func deref(p *int) int {
	if p == nil {
		return 0
	}
	return *p
}
