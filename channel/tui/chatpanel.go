package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	userMsgStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("6")) // cyan
	failedMsgStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("1")) // red
	noticeMsgStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("3")) // yellow
	timeStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

// ChatPanel displays conversation history in a scrollable viewport.
type ChatPanel struct {
	viewport viewport.Model
	lines    []string
	width    int
}

// NewChatPanel creates a chat panel.
func NewChatPanel() *ChatPanel {
	vp := viewport.New(0, 0)
	vp.SetContent("")
	return &ChatPanel{viewport: vp}
}

func (p *ChatPanel) Update(msg tea.Msg) (Panel, tea.Cmd) {
	switch msg := msg.(type) {
	case ChatMsg:
		p.append(renderChat(msg))
		return p, nil
	case NoticeMsg:
		p.append(noticeMsgStyle.Render(msg.Text))
		return p, nil
	}
	var cmd tea.Cmd
	p.viewport, cmd = p.viewport.Update(msg)
	return p, cmd
}

func (p *ChatPanel) append(line string) {
	p.lines = append(p.lines, line)
	p.refresh()
}

func (p *ChatPanel) refresh() {
	content := strings.Join(p.lines, "\n")
	if p.width > 0 {
		content = lipgloss.NewStyle().Width(p.width).Render(content)
	}
	p.viewport.SetContent(content)
	p.viewport.GotoBottom()
}

func renderChat(msg ChatMsg) string {
	var stamp string
	if !msg.Time.IsZero() {
		stamp = timeStyle.Render(msg.Time.Format("15:04")) + " "
	}
	switch {
	case msg.IsUser:
		return stamp + userMsgStyle.Render("> "+msg.Text)
	case msg.Failed:
		return stamp + failedMsgStyle.Render("⚠ "+msg.Text)
	default:
		return stamp + msg.Text
	}
}

func (p *ChatPanel) View() string {
	return p.viewport.View()
}

func (p *ChatPanel) SetSize(width, height int) {
	p.width = width
	p.viewport.Width = width
	p.viewport.Height = height
	p.refresh()
}
