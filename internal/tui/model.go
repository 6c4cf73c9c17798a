// Package tui is the terminal presentation layer over the session
// controller. It renders the name modal, the chat room, and the
// interstitial overlay, and acts as the media player for the overlay by
// feeding simulated playback signals to the controller.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/emilabos/scrappy-chat/internal/domain"
	"github.com/emilabos/scrappy-chat/internal/session"
)

// simulatedAdSeconds stands in for the media's reported duration; a
// terminal cannot play the asset, so the overlay runs a countdown of
// the same shape the player signals would produce.
const simulatedAdSeconds = 15

type snapshotMsg struct{}

type adTickMsg time.Time

type styles struct {
	header    lipgloss.Style
	status    lipgloss.Style
	errStatus lipgloss.Style
	ownMsg    lipgloss.Style
	otherMsg  lipgloss.Style
	histMsg   lipgloss.Style
	stamp     lipgloss.Style
	modal     lipgloss.Style
	overlay   lipgloss.Style
	dimmed    lipgloss.Style
}

func newStyles() styles {
	return styles{
		header:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("229")),
		status:    lipgloss.NewStyle().Foreground(lipgloss.Color("39")),
		errStatus: lipgloss.NewStyle().Foreground(lipgloss.Color("203")).Bold(true),
		ownMsg:    lipgloss.NewStyle().Foreground(lipgloss.Color("45")),
		otherMsg:  lipgloss.NewStyle().Foreground(lipgloss.Color("252")),
		histMsg:   lipgloss.NewStyle().Foreground(lipgloss.Color("241")),
		stamp:     lipgloss.NewStyle().Foreground(lipgloss.Color("240")),
		modal: lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).
			Padding(1, 3).BorderForeground(lipgloss.Color("63")),
		overlay: lipgloss.NewStyle().Border(lipgloss.DoubleBorder()).
			Padding(1, 3).BorderForeground(lipgloss.Color("203")),
		dimmed: lipgloss.NewStyle().Foreground(lipgloss.Color("241")),
	}
}

type Model struct {
	ctrl   *session.Controller
	styles styles

	width  int
	height int

	nameInput textinput.Model
	msgInput  textinput.Model
	timeline  viewport.Model

	snap      session.Snapshot
	statusMsg string
	statusErr bool
}

func New(ctrl *session.Controller) Model {
	nameInput := textinput.New()
	nameInput.Prompt = "> "
	nameInput.Placeholder = "Your username"
	nameInput.CharLimit = 64
	nameInput.Focus()

	msgInput := textinput.New()
	msgInput.Prompt = "> "
	msgInput.Placeholder = "Type a message..."
	msgInput.CharLimit = 4000

	return Model{
		ctrl:      ctrl,
		styles:    newStyles(),
		nameInput: nameInput,
		msgInput:  msgInput,
		timeline:  viewport.New(0, 0),
		snap:      ctrl.Snapshot(),
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.listenCmd(), adTick())
}

// listenCmd blocks on the controller's coalesced change signal and
// turns it into a tea.Msg. It is re-issued after every receipt.
func (m Model) listenCmd() tea.Cmd {
	notify := m.ctrl.Notify()
	return func() tea.Msg {
		<-notify
		return snapshotMsg{}
	}
}

func adTick() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return adTickMsg(t)
	})
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.timeline.Width = msg.Width - 2
		m.timeline.Height = msg.Height - 6
		m.renderTimeline()

	case snapshotMsg:
		atBottom := m.timeline.AtBottom()
		m.snap = m.ctrl.Snapshot()
		m.renderTimeline()
		if atBottom {
			m.timeline.GotoBottom()
		}
		cmds = append(cmds, m.listenCmd())

	case adTickMsg:
		m.advancePlayback()
		cmds = append(cmds, adTick())

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		cmds = append(cmds, m.handleKey(msg)...)
	}

	if !m.snap.Ad.Visible && m.snap.Identity != "" {
		var cmd tea.Cmd
		m.timeline, cmd = m.timeline.Update(msg)
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

// advancePlayback is the simulated player: one progress signal per
// second toward the simulated duration, exactly as a real player would
// report.
func (m *Model) advancePlayback() {
	if !m.snap.Ad.Visible {
		return
	}
	if m.snap.Ad.Duration == 0 {
		m.ctrl.ReportDuration(simulatedAdSeconds)
	}
	m.ctrl.ReportProgress(m.snap.Ad.Elapsed + 1)
	m.snap = m.ctrl.Snapshot()
}

func (m *Model) handleKey(msg tea.KeyMsg) []tea.Cmd {
	var cmds []tea.Cmd
	ctx := context.Background()

	switch {
	case m.snap.Ad.Visible:
		if msg.String() == "enter" || msg.String() == "d" {
			if err := m.ctrl.DismissAd(ctx); err != nil {
				m.setStatus("please watch the entire ad before closing", true)
			} else {
				m.setStatus("", false)
				m.snap = m.ctrl.Snapshot()
			}
		}
		// Everything else is swallowed while the overlay is up.

	case m.snap.Identity == "":
		switch msg.String() {
		case "enter":
			if err := m.ctrl.SubmitIdentity(ctx, m.nameInput.Value()); err != nil {
				m.setStatus(m.friendlyError(err), true)
			} else {
				m.nameInput.Reset()
				m.setStatus("", false)
				m.msgInput.Focus()
				m.snap = m.ctrl.Snapshot()
			}
		default:
			var cmd tea.Cmd
			m.nameInput, cmd = m.nameInput.Update(msg)
			cmds = append(cmds, cmd)
		}

	default:
		switch msg.String() {
		case "enter":
			if err := m.ctrl.SubmitMessage(m.msgInput.Value()); err != nil {
				m.setStatus(m.friendlyError(err), true)
			} else {
				m.msgInput.Reset()
				m.setStatus("", false)
				m.snap = m.ctrl.Snapshot()
				m.renderTimeline()
				m.timeline.GotoBottom()
			}
		case "ctrl+l":
			m.ctrl.Logout(ctx)
			m.snap = m.ctrl.Snapshot()
			m.msgInput.Reset()
			m.nameInput.Focus()
			m.setStatus("logged out", false)
		default:
			var cmd tea.Cmd
			m.msgInput, cmd = m.msgInput.Update(msg)
			cmds = append(cmds, cmd)
		}
	}
	return cmds
}

func (m *Model) friendlyError(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, domain.ErrEmptyName):
		return "please choose a username"
	case errors.Is(err, domain.ErrEmptyMessage):
		return "message is empty"
	case errors.Is(err, domain.ErrMessageTooShort):
		return fmt.Sprintf("messages need at least %d characters", domain.MinMessageRunes)
	case errors.Is(err, domain.ErrNotConnected):
		return "not connected to the relay"
	default:
		return err.Error()
	}
}

func (m *Model) setStatus(s string, isErr bool) {
	m.statusMsg = s
	m.statusErr = isErr
}

func (m *Model) renderTimeline() {
	var b strings.Builder
	for _, msg := range m.snap.Messages {
		style := m.styles.otherMsg
		if msg.Origin == domain.OriginHistorical {
			style = m.styles.histMsg
		} else if msg.Sender == m.snap.Identity {
			style = m.styles.ownMsg
		}
		b.WriteString(m.styles.stamp.Render("["+msg.Timestamp+"] ") +
			style.Render(msg.Sender+": "+msg.Body) + "\n")
	}
	m.timeline.SetContent(b.String())
}

func (m Model) View() string {
	switch {
	case m.snap.Ad.Visible:
		return m.viewAd()
	case m.snap.Identity == "":
		return m.viewNameModal()
	default:
		return m.viewChat()
	}
}

func (m Model) viewNameModal() string {
	body := m.styles.header.Render("Welcome to Scrappy Chat") + "\n\n" +
		"Please choose a username to continue\n\n" +
		m.nameInput.View()
	if m.statusMsg != "" {
		body += "\n\n" + m.statusStyle().Render(m.statusMsg)
	}
	return m.center(m.styles.modal.Render(body))
}

func (m Model) viewChat() string {
	header := m.styles.header.Render("Scrappy Chat") +
		m.styles.dimmed.Render("  "+m.snap.Identity+"  ("+string(m.snap.ConnState)+")")

	status := ""
	if m.snap.ConnState != domain.StateOpen {
		status = m.styles.errStatus.Render("disconnected - messages cannot be sent")
	} else if m.statusMsg != "" {
		status = m.statusStyle().Render(m.statusMsg)
	}

	footer := m.msgInput.View() + "\n" +
		m.styles.dimmed.Render("enter: send   ctrl+l: log out   ctrl+c: quit")

	return header + "\n\n" + m.timeline.View() + "\n" + status + "\n" + footer
}

func (m Model) viewAd() string {
	duration := m.snap.Ad.Duration
	remaining := int(duration - m.snap.Ad.Elapsed)
	if remaining < 0 {
		remaining = 0
	}

	var action string
	if m.snap.Ad.Completed {
		action = "Thank you for watching! Press enter to close this ad."
	} else {
		action = fmt.Sprintf("Please watch the ad (%ds left)", remaining)
	}

	body := m.styles.header.Render("Watch this ad to continue") + "\n\n" +
		m.styles.dimmed.Render("now playing: "+m.snap.Ad.URI) + "\n\n" +
		progressBar(m.snap.Ad.Elapsed, duration) + "\n\n" + action
	if m.statusMsg != "" {
		body += "\n" + m.styles.errStatus.Render(m.statusMsg)
	}
	return m.center(m.styles.overlay.Render(body))
}

func (m Model) statusStyle() lipgloss.Style {
	if m.statusErr {
		return m.styles.errStatus
	}
	return m.styles.status
}

func (m Model) center(s string) string {
	if m.width == 0 || m.height == 0 {
		return s
	}
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, s)
}

func progressBar(elapsed, total float64) string {
	const width = 30
	if total <= 0 {
		return strings.Repeat("░", width)
	}
	filled := int(elapsed / total * width)
	if filled > width {
		filled = width
	}
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}
