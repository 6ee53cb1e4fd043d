package client

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"linechat/pkg/chat"
)

type sender interface {
	Send(line string) error
}

type stage int

const (
	stageUsername stage = iota
	stagePassword
	stageChat
)

var (
	serverStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Bold(true)
	ownStyle    = lipgloss.NewStyle().Faint(true)
	statusStyle = lipgloss.NewStyle().Faint(true)
)

type Model struct {
	stage     stage
	username  string
	password  string
	messages  []string
	input     textinput.Model
	viewport  viewport.Model
	conn      sender
	msgChan   <-chan tea.Msg
	connected bool
}

// NewModel prompts for whatever credentials were not supplied. With both
// username and password set, Init logs in straight away.
func NewModel(conn sender, msgChan <-chan tea.Msg, username, password string) Model {
	ti := textinput.New()
	ti.Focus()
	ti.CharLimit = 1024
	ti.Width = 50

	m := Model{
		username:  username,
		password:  password,
		input:     ti,
		viewport:  viewport.New(80, 20),
		conn:      conn,
		msgChan:   msgChan,
		connected: true,
	}
	switch {
	case username == "":
		m.stage = stageUsername
	case password == "":
		m.stage = stagePassword
	default:
		m.stage = stageChat
	}
	m.setPrompt()
	return m
}

func (m *Model) setPrompt() {
	switch m.stage {
	case stageUsername:
		m.input.Placeholder = "Username"
		m.input.EchoMode = textinput.EchoNormal
	case stagePassword:
		m.input.Placeholder = "Password"
		m.input.EchoMode = textinput.EchoPassword
	default:
		m.input.Placeholder = "Type a message or /help"
		m.input.EchoMode = textinput.EchoNormal
	}
}

func (m Model) waitForMsg() tea.Cmd {
	return func() tea.Msg {
		return <-m.msgChan
	}
}

func (m Model) sendCmd(line string) tea.Cmd {
	return func() tea.Msg {
		if err := m.conn.Send(line); err != nil {
			return disconnectedMsg{err: err}
		}
		return nil
	}
}

func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{textinput.Blink, m.waitForMsg()}
	if m.stage == stageChat {
		cmds = append(cmds, m.sendCmd(chat.LoginLine(m.username, m.password)))
	}
	return tea.Batch(cmds...)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.viewport.Width = msg.Width
		m.viewport.Height = max(msg.Height-3, 1)
		m.input.Width = max(msg.Width-4, 10)
		m.refresh()
		return m, nil

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyPgUp, tea.KeyPgDown:
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		case tea.KeyEnter:
			return m.submit()
		default:
			m.input, cmd = m.input.Update(msg)
			return m, cmd
		}

	case lineMsg:
		m.appendLine(styleLine(string(msg)))
		return m, m.waitForMsg()

	case disconnectedMsg:
		m.connected = false
		status := "disconnected"
		if msg.err != nil {
			status = fmt.Sprintf("disconnected: %v", msg.err)
		}
		m.appendLine(statusStyle.Render("-- " + status + ", ctrl+c to exit"))
		return m, nil
	}

	return m, nil
}

func (m Model) submit() (tea.Model, tea.Cmd) {
	text := strings.TrimSpace(m.input.Value())
	if text == "" || !m.connected {
		return m, nil
	}
	m.input.Reset()

	switch m.stage {
	case stageUsername:
		m.username = text
		m.stage = stagePassword
		m.setPrompt()
		return m, nil
	case stagePassword:
		m.stage = stageChat
		m.setPrompt()
		return m, m.sendCmd(chat.LoginLine(m.username, text))
	}

	if !strings.HasPrefix(text, "/") {
		m.appendLine(ownStyle.Render("> " + text))
	}
	return m, m.sendCmd(text)
}

func (m *Model) appendLine(line string) {
	m.messages = append(m.messages, line)
	m.refresh()
}

func (m *Model) refresh() {
	m.viewport.SetContent(strings.Join(m.messages, "\n"))
	m.viewport.GotoBottom()
}

func styleLine(line string) string {
	switch {
	case strings.HasPrefix(line, "[ERROR]"):
		return errorStyle.Render(line)
	case strings.HasPrefix(line, "[SERVER]"):
		return serverStyle.Render(line)
	default:
		return line
	}
}

func (m Model) View() string {
	var b strings.Builder
	b.WriteString(m.viewport.View())
	b.WriteString("\n" + m.input.View())
	switch m.stage {
	case stageUsername:
		b.WriteString("\n" + statusStyle.Render("Enter your username"))
	case stagePassword:
		b.WriteString("\n" + statusStyle.Render("Enter your password"))
	default:
		b.WriteString("\n" + statusStyle.Render("[Enter] to send, [PgUp/PgDn] to scroll, [Ctrl+C] to quit"))
	}
	return b.String()
}
