package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const (
	defaultLogRatio = 0.3
	badgeHeight     = 3
)

var (
	separatorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	helpStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

// App is the root bubbletea model. While the panel is open it shows the
// conversation; otherwise it collapses to a badge in the configured corner.
type App struct {
	logPanel   Panel
	chatPanel  Panel
	inputPanel *InputPanel
	statusBar  *StatusBar

	keys   KeyMap
	status StatusMsg

	width, height int
	logRatio      float64

	// InputCh receives user text and shortcut actions.
	InputCh chan Input
}

// NewApp creates the root TUI model with default panels.
func NewApp(prompt string) *App {
	return &App{
		logPanel:   NewLogPanel(),
		chatPanel:  NewChatPanel(),
		inputPanel: NewInputPanel(prompt),
		statusBar:  NewStatusBar(),
		keys:       DefaultKeyMap(),
		status:     StatusMsg{Checking: true},
		logRatio:   defaultLogRatio,
		InputCh:    make(chan Input, 16),
	}
}

func (m *App) Init() tea.Cmd {
	return nil
}

func (m *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.recalcLayout()
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Toggle):
			m.emit(Input{Action: "toggle"})
			return m, nil
		case key.Matches(msg, m.keys.Close):
			m.emit(Input{Action: "close"})
			return m, nil
		case key.Matches(msg, m.keys.Dismiss):
			m.emit(Input{Action: "dismiss"})
			return m, nil
		}
		if !m.status.Open {
			if key.Matches(msg, m.keys.Submit) {
				m.emit(Input{Action: "open"})
			}
			return m, nil
		}
		if key.Matches(msg, m.keys.Minimize) {
			m.emit(Input{Action: "minimize"})
			return m, nil
		}
		p, cmd := m.inputPanel.Update(msg)
		m.inputPanel = p.(*InputPanel)
		cmds = append(cmds, cmd)

	case InputSubmitMsg:
		// The session echoes accepted text back as a ChatMsg.
		m.emit(Input{Text: msg.Text})

	case LogLineMsg:
		p, cmd := m.logPanel.Update(msg)
		m.logPanel = p
		cmds = append(cmds, cmd)

	case ChatMsg, NoticeMsg:
		p, cmd := m.chatPanel.Update(msg)
		m.chatPanel = p
		cmds = append(cmds, cmd)

	case StatusMsg:
		m.status = msg
		m.inputPanel.SetEnabled(msg.CanSend)
		m.inputPanel.SetLimit(msg.MaxLength)
		_, cmd := m.statusBar.Update(msg)
		cmds = append(cmds, cmd)
		m.recalcLayout()

	case spinner.TickMsg:
		_, cmd := m.statusBar.Update(msg)
		cmds = append(cmds, cmd)

	default:
		// Broadcast unknown messages to input panel (e.g. blink cursor).
		p, cmd := m.inputPanel.Update(msg)
		m.inputPanel = p.(*InputPanel)
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

// Status returns the last state applied to the app.
func (m *App) Status() StatusMsg {
	return m.status
}

func (m *App) emit(in Input) {
	select {
	case m.InputCh <- in:
	default:
	}
}

func (m *App) View() string {
	if m.width == 0 || m.height == 0 {
		return "initializing..."
	}

	sep := separatorStyle.Render(strings.Repeat("─", m.width))

	if !m.status.Open {
		align := lipgloss.Right
		if m.status.Left {
			align = lipgloss.Left
		}
		hint := "enter: open  C-o: toggle  C-c: quit"
		return lipgloss.JoinVertical(lipgloss.Left,
			m.logPanel.View(),
			sep,
			lipgloss.PlaceHorizontal(m.width, align, renderBadge(m.status)),
			lipgloss.PlaceHorizontal(m.width, align, helpStyle.Render(hint)),
		)
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		m.logPanel.View(),
		sep,
		m.statusBar.View(),
		m.chatPanel.View(),
		sep,
		m.inputPanel.View(),
		helpStyle.Render(m.helpLine()),
	)
}

func (m *App) helpLine() string {
	var parts []string
	for _, b := range m.keys.ShortHelp() {
		h := b.Help()
		parts = append(parts, h.Key+": "+h.Desc)
	}
	return strings.Join(parts, "  ")
}

func (m *App) recalcLayout() {
	if m.width == 0 || m.height == 0 {
		return
	}

	if !m.status.Open {
		// separator, badge and hint
		logH := max(m.height-badgeHeight-2, 1)
		m.logPanel.SetSize(m.width, logH)
		return
	}

	const inputH = 1
	const helpH = 1
	const sepLines = 2
	statusH := m.statusBar.Height()

	usable := max(m.height-inputH-helpH-sepLines-statusH, 2)
	logH := max(int(float64(usable)*m.logRatio), 1)
	chatH := max(usable-logH, 1)

	m.logPanel.SetSize(m.width, logH)
	m.statusBar.SetSize(m.width, statusH)
	m.chatPanel.SetSize(m.width, chatH)
	m.inputPanel.SetSize(m.width, inputH)
}
