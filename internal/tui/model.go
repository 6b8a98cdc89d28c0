// Package tui is the terminal chat client: a Bubble Tea program that drives
// a chat.Session against a running Query Service.
package tui

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/54b3r/infohub-go/internal/chat"
	"github.com/54b3r/infohub-go/internal/client"
)

// probeInterval is how often the server status indicator is refreshed.
const probeInterval = 15 * time.Second

// Status indicator texts.
const (
	statusRunning     = "✅ Server is running"
	statusError       = "❌ Server error"
	statusUnreachable = "❌ Server not reachable"
	statusChecking    = "… Checking server"
)

// Prober reports Query Service liveness. *client.Client satisfies it.
type Prober interface {
	Probe(ctx context.Context) client.Liveness
}

// replyMsg carries the transcript text for the outstanding question.
type replyMsg struct{ text string }

// livenessMsg carries one probe result.
type livenessMsg client.Liveness

// probeTickMsg schedules the next probe.
type probeTickMsg struct{}

// Model is the Bubble Tea model for the chat client.
type Model struct {
	ctx      context.Context
	session  *chat.Session
	prober   Prober
	input    textinput.Model
	viewport viewport.Model
	spinner  spinner.Model
	status   string
	backend  string
	ready    bool
}

// New creates a chat model. backend is shown in the header.
func New(ctx context.Context, session *chat.Session, prober Prober, backend string) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask me anything about LangChain..."
	ti.CharLimit = 0
	ti.Focus()

	sp := spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(thinkingStyle))

	return Model{
		ctx:      ctx,
		session:  session,
		prober:   prober,
		input:    ti,
		viewport: viewport.New(80, 20),
		spinner:  sp,
		status:   statusChecking,
		backend:  backend,
	}
}

// Init starts the cursor blink and the first liveness probe.
func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.probe())
}

// Update handles key, window, reply, and probe events.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, ih := inputBoxStyle.GetFrameSize()
		// header, thinking line, status line, input line
		reserved := 4 + ih
		m.viewport.Width = max(20, msg.Width)
		m.viewport.Height = max(3, msg.Height-reserved)
		m.input.Width = max(10, msg.Width-6)
		m.refresh()
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case replyMsg:
		// Complete only fails when no turn is outstanding.
		_ = m.session.Complete(msg.text)
		m.refresh()
		return m, nil

	case livenessMsg:
		m.status = StatusText(client.Liveness(msg))
		return m, tea.Tick(probeInterval, func(time.Time) tea.Msg { return probeTickMsg{} })

	case probeTickMsg:
		return m, m.probe()

	case spinner.TickMsg:
		if m.session.State() != chat.AwaitingReply {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// handleKey applies one key press. Only ctrl+c and scrolling work while a
// reply is pending.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyCtrlC, tea.KeyCtrlD:
		return m, tea.Quit
	case tea.KeyPgUp, tea.KeyPgDown:
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}

	if m.session.State() == chat.AwaitingReply {
		return m, nil
	}

	switch msg.Type {
	case tea.KeyCtrlL:
		_ = m.session.Clear()
		m.refresh()
		return m, nil
	case tea.KeyEnter:
		q := strings.TrimSpace(m.input.Value())
		if err := m.session.Begin(q); err != nil {
			return m, nil
		}
		m.input.Reset()
		m.refresh()
		return m, tea.Batch(m.spinner.Tick, m.ask(q))
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// ask runs the network call off the UI loop.
func (m Model) ask(q string) tea.Cmd {
	return func() tea.Msg {
		return replyMsg{text: m.session.Reply(m.ctx, q)}
	}
}

// probe checks server liveness off the UI loop.
func (m Model) probe() tea.Cmd {
	return func() tea.Msg {
		return livenessMsg(m.prober.Probe(m.ctx))
	}
}

// refresh re-renders the transcript into the viewport and scrolls to the end.
func (m *Model) refresh() {
	m.viewport.SetContent(m.renderTranscript())
	m.viewport.GotoBottom()
}

// View renders the layout.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := headerStyle.Render("🤖 InfoHub LangChain Chatbot") + " " + dimStyle.Render(m.backend)

	thinking := ""
	if m.session.State() == chat.AwaitingReply {
		thinking = m.spinner.View() + thinkingStyle.Render(" Thinking...")
	}

	footer := statusStyle(m.status).Render(m.status) + dimStyle.Render("  enter send • ctrl+l clear • ctrl+c quit")

	return header + "\n" +
		m.viewport.View() + "\n" +
		thinking + "\n" +
		inputBoxStyle.Render(m.input.View()) + "\n" +
		footer
}

func (m Model) renderTranscript() string {
	width := max(10, m.viewport.Width-2)
	body := lipgloss.NewStyle().Width(width)

	var sb strings.Builder
	for i, msg := range m.session.Messages() {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		if msg.Role == chat.RoleUser {
			sb.WriteString(userStyle.Render("You"))
		} else {
			sb.WriteString(assistantStyle.Render("Assistant"))
		}
		sb.WriteString("\n")
		sb.WriteString(body.Render(msg.Content))
	}
	return sb.String()
}

// StatusText maps a liveness result to the status indicator text.
func StatusText(l client.Liveness) string {
	var se *client.StatusError
	switch {
	case l.Alive:
		return statusRunning
	case errors.As(l.Err, &se):
		return statusError
	default:
		return statusUnreachable
	}
}

func statusStyle(status string) lipgloss.Style {
	switch status {
	case statusRunning:
		return okStyle
	case statusChecking:
		return dimStyle
	default:
		return errStyle
	}
}

var (
	headerStyle    = lipgloss.NewStyle().Bold(true)
	dimStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	userStyle      = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	assistantStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("13"))
	thinkingStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	okStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	errStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	inputBoxStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)
