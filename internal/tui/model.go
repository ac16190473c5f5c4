// Package tui is the interactive chat interface built on Bubble Tea.
package tui

import (
	"context"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/rybalko/askfirm/internal/pipeline"
	"github.com/rybalko/askfirm/internal/session"
)

// ChatPort is the TUI-facing subset of the answer pipeline.
type ChatPort interface {
	Answer(ctx context.Context, sess *session.Session, query string) pipeline.Reply
}

type entry struct {
	user    string
	reply   string
	sources []string
}

// replyMsg carries a completed turn back into the update loop.
type replyMsg struct {
	query string
	reply pipeline.Reply
}

// Model is the Bubble Tea model for the chat application.
type Model struct {
	service  ChatPort
	sess     *session.Session
	input    textinput.Model
	viewport viewport.Model
	entries  []entry
	status   string
	busy     bool
	ready    bool
}

// New creates a chat model bound to a fresh session.
func New(service ChatPort) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask about a company's services and press Enter"
	ti.Focus()
	ti.CharLimit = 0
	vp := viewport.New(0, 0)
	return Model{
		service:  service,
		sess:     session.New(),
		input:    ti,
		viewport: vp,
		status:   "Ready. Type a question.",
	}
}

// Init initializes the model (text input cursor blink).
func (m Model) Init() tea.Cmd { return textinput.Blink }

// Update handles key and window events and updates the view state.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, th := transcriptBoxStyle.GetFrameSize()
		_, qh := inputBoxStyle.GetFrameSize()
		reserved := 1 + 1 + qh + 1 // header, status, input frame, spacer
		vh := msg.Height - reserved
		if vh < 3 {
			vh = 3
		}
		m.viewport.Width = max(20, msg.Width)
		m.viewport.Height = max(3, vh-th)
		m.viewport.SetContent(m.renderTranscript())
		return m, nil

	case replyMsg:
		m.busy = false
		m.entries = append(m.entries, entry{
			user:    msg.query,
			reply:   msg.reply.Text,
			sources: msg.reply.Sources,
		})
		m.status = "Ready."
		m.viewport.SetContent(m.renderTranscript())
		m.viewport.GotoBottom()
		return m, nil

	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD || msg.Type == tea.KeyEsc {
			return m, tea.Quit
		}
		if msg.String() == "enter" && !m.busy {
			q := strings.TrimSpace(m.input.Value())
			if q == "" {
				return m, nil
			}
			m.input.Reset()
			m.busy = true
			m.status = "Thinking..."
			return m, m.ask(q)
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// ask runs one pipeline turn off the update loop.
func (m Model) ask(query string) tea.Cmd {
	service, sess := m.service, m.sess
	return func() tea.Msg {
		return replyMsg{query: query, reply: service.Answer(context.Background(), sess, query)}
	}
}

// View renders the chat layout.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := headerStyle.Render("askfirm")
	transcript := transcriptBoxStyle.Render(m.viewport.View())
	input := inputBoxStyle.Render(m.input.View())
	status := statusStyle.Render(m.status)
	return header + "\n" + transcript + "\n" + input + "\n" + status
}

func (m Model) renderTranscript() string {
	if len(m.entries) == 0 {
		return "No messages yet."
	}
	var sb strings.Builder
	for i, e := range m.entries {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString(userStyle.Render("You: "))
		sb.WriteString(e.user)
		sb.WriteString("\n")
		sb.WriteString(botStyle.Render("askfirm: "))
		sb.WriteString(e.reply)
		if len(e.sources) > 0 {
			sb.WriteString("\n")
			sb.WriteString(sourceStyle.Render("Sources: " + strings.Join(e.sources, ", ")))
		}
	}
	return sb.String()
}

var (
	headerStyle        = lipgloss.NewStyle().Bold(true)
	transcriptBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	inputBoxStyle      = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	statusStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	userStyle          = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	botStyle           = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	sourceStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
