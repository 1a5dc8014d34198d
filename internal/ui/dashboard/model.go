// Package dashboard is the interactive view of one pipeline: stage progress,
// lead metrics, recent leads and logs, and the start/stop/reset controls.
// It renders store snapshots and never mutates state itself.
package dashboard

import (
	"context"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/zjrosen/pipewatch/internal/command"
	"github.com/zjrosen/pipewatch/internal/log"
	"github.com/zjrosen/pipewatch/internal/pipeline"
	"github.com/zjrosen/pipewatch/internal/pubsub"
	"github.com/zjrosen/pipewatch/internal/store"
	"github.com/zjrosen/pipewatch/internal/ui/modal"
	"github.com/zjrosen/pipewatch/internal/ui/toaster"
)

// Source is the read side of the store.
type Source interface {
	Snapshot() store.Snapshot
	StateBroker() pubsub.Subscriber[store.Snapshot]
	NoticeBroker() pubsub.Subscriber[pipeline.Notice]
}

// Commands are the user actions. Failures are reported by the implementation
// as notices, so the dashboard only logs returned errors.
type Commands interface {
	Start(ctx context.Context, opts command.StartOptions) error
	Stop(ctx context.Context) error
	Reset(ctx context.Context, c command.Confirmer) error
}

// MessageSource reads generated messages for one lead.
type MessageSource interface {
	LeadMessages(ctx context.Context, leadID int) ([]pipeline.LeadMessage, error)
}

// Config holds what the dashboard needs.
type Config struct {
	Source        Source
	Commands      Commands
	Messages      MessageSource
	StartDefaults command.StartOptions
	ServerURL     string
}

type overlayKind int

const (
	overlayNone overlayKind = iota
	overlayStart
	overlayReset
	overlayMessages
)

// commandDoneMsg reports a finished start/stop/reset.
type commandDoneMsg struct {
	name string
	err  error
}

// leadMessagesMsg carries the result of a messages lookup.
type leadMessagesMsg struct {
	lead pipeline.Lead
	msgs []pipeline.LeadMessage
	err  error
}

// Model holds the dashboard state.
type Model struct {
	cfg  Config
	keys KeyMap
	ctx  context.Context
	stop context.CancelFunc

	snap    store.Snapshot
	states  *pubsub.ContinuousListener[store.Snapshot]
	notices *pubsub.ContinuousListener[pipeline.Notice]

	leads    table.Model
	spinner  spinner.Model
	help     help.Model
	toast    toaster.Model
	viewport viewport.Model

	overlay   overlayKind
	startForm modal.StartForm
	confirm   modal.Confirm
	viewing   pipeline.Lead

	startDefaults command.StartOptions
	busy          string

	width  int
	height int
}

// New creates a dashboard subscribed to cfg.Source.
func New(cfg Config) Model {
	ctx, cancel := context.WithCancel(context.Background())
	m := Model{
		cfg:           cfg,
		keys:          DefaultKeyMap(),
		ctx:           ctx,
		stop:          cancel,
		snap:          cfg.Source.Snapshot(),
		states:        pubsub.NewContinuousListener(ctx, cfg.Source.StateBroker()),
		notices:       pubsub.NewContinuousListener(ctx, cfg.Source.NoticeBroker()),
		leads:         newLeadsTable(),
		spinner:       spinner.New(spinner.WithSpinner(spinner.MiniDot)),
		help:          help.New(),
		toast:         toaster.New(),
		viewport:      viewport.New(0, 0),
		startDefaults: cfg.StartDefaults,
		width:         100,
		height:        30,
	}
	m.leads.SetRows(leadRows(m.snap.Leads))
	m = m.resize(m.width, m.height)
	return m
}

// Init starts the subscriptions and the spinner.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.states.Listen(), m.notices.Listen(), m.spinner.Tick)
}

// Snapshot returns the snapshot currently rendered.
func (m Model) Snapshot() store.Snapshot {
	return m.snap
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		return m.resize(msg.Width, msg.Height), nil

	case pubsub.Event[store.Snapshot]:
		m.snap = msg.Payload
		m.leads.SetRows(leadRows(m.snap.Leads))
		return m, m.states.Listen()

	case pubsub.Event[pipeline.Notice]:
		var cmd tea.Cmd
		m.toast, cmd = m.toast.Show(msg.Payload)
		return m, tea.Batch(cmd, m.notices.Listen())

	case toaster.DismissMsg:
		m.toast = m.toast.Update(msg)
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case commandDoneMsg:
		m.busy = ""
		if msg.err != nil {
			log.Debug(log.CatUI, "command finished with error", "command", msg.name, "error", msg.err)
		}
		return m, nil

	case leadMessagesMsg:
		return m.showMessages(msg)

	case modal.StartMsg:
		m.overlay = overlayNone
		m.startDefaults = msg.Options
		return m.run("start", func(ctx context.Context) error {
			return m.cfg.Commands.Start(ctx, msg.Options)
		})

	case modal.ConfirmMsg:
		m.overlay = overlayNone
		return m.run("reset", func(ctx context.Context) error {
			return m.cfg.Commands.Reset(ctx, command.AlwaysConfirm)
		})

	case modal.CancelMsg:
		m.overlay = overlayNone
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch m.overlay {
	case overlayStart:
		m.startForm, cmd = m.startForm.Update(msg)
		return m, cmd
	case overlayReset:
		m.confirm, cmd = m.confirm.Update(msg)
		return m, cmd
	case overlayMessages:
		if key.Matches(msg, m.keys.Close) || key.Matches(msg, m.keys.Quit) {
			m.overlay = overlayNone
			return m, nil
		}
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		m.stop()
		return m, tea.Quit
	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
		return m.resize(m.width, m.height), nil
	case key.Matches(msg, m.keys.Start):
		if m.snap.Pipeline.Running || m.busy != "" {
			return m, nil
		}
		m.startForm = modal.NewStartForm(m.startDefaults)
		m.overlay = overlayStart
		return m, m.startForm.Init()
	case key.Matches(msg, m.keys.Stop):
		if !m.snap.Pipeline.Running {
			return m, nil
		}
		return m.run("stop", m.cfg.Commands.Stop)
	case key.Matches(msg, m.keys.Reset):
		if m.busy != "" {
			return m, nil
		}
		m.confirm = modal.NewConfirm("Reset pipeline", command.ResetPrompt, "Reset", modal.ButtonDanger)
		m.overlay = overlayReset
		return m, nil
	case key.Matches(msg, m.keys.Messages):
		return m.lookupMessages()
	}

	m.leads, cmd = m.leads.Update(msg)
	return m, cmd
}

// run executes fn off the UI goroutine and reports back with commandDoneMsg.
func (m Model) run(name string, fn func(ctx context.Context) error) (tea.Model, tea.Cmd) {
	m.busy = name
	ctx := m.ctx
	return m, func() tea.Msg {
		return commandDoneMsg{name: name, err: fn(ctx)}
	}
}

func (m Model) lookupMessages() (tea.Model, tea.Cmd) {
	leads := pipeline.DedupeLeads(m.snap.Leads)
	idx := m.leads.Cursor()
	if m.cfg.Messages == nil || idx < 0 || idx >= len(leads) {
		return m, nil
	}
	lead := leads[idx]
	ctx := m.ctx
	src := m.cfg.Messages
	return m, func() tea.Msg {
		msgs, err := src.LeadMessages(ctx, lead.ID)
		return leadMessagesMsg{lead: lead, msgs: msgs, err: err}
	}
}

func (m Model) showMessages(msg leadMessagesMsg) (tea.Model, tea.Cmd) {
	if msg.err != nil {
		var cmd tea.Cmd
		m.toast, cmd = m.toast.Show(pipeline.ErrorNotice(msg.err.Error()))
		return m, cmd
	}
	m.viewing = msg.lead
	m.viewport.SetContent(renderMessages(msg.msgs, m.viewport.Width))
	m.viewport.GotoTop()
	m.overlay = overlayMessages
	return m, nil
}

func (m Model) resize(width, height int) Model {
	m.width, m.height = width, height
	m.help.Width = width
	m.leads.SetWidth(width - 2)
	m.leads.SetColumns(leadColumns(width - 2))
	m.leads.SetHeight(max(height-fixedRows(m.help.ShowAll), 3))
	m.viewport.Width = min(width-8, 90)
	m.viewport.Height = max(height-10, 5)
	return m
}
