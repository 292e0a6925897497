package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	onlineStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	offlineStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	checkingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	bannerStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("0")).Background(lipgloss.Color("3")).Padding(0, 1)
	badgeStyle    = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("6")).Padding(0, 1)
	unreadStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("15")).Background(lipgloss.Color("1")).Bold(true)
)

// StatusBar renders the header line of the open panel: connectivity, typing
// indicator and the current notice.
type StatusBar struct {
	status  StatusMsg
	spinner spinner.Model
	width   int
}

// NewStatusBar creates a status bar in the "checking" state.
func NewStatusBar() *StatusBar {
	sp := spinner.New()
	sp.Spinner = spinner.MiniDot
	return &StatusBar{spinner: sp, status: StatusMsg{Checking: true}}
}

// Tick starts the typing indicator animation.
func (p *StatusBar) Tick() tea.Cmd {
	return p.spinner.Tick
}

func (p *StatusBar) Update(msg tea.Msg) (Panel, tea.Cmd) {
	switch msg := msg.(type) {
	case StatusMsg:
		wasPending := p.status.Pending
		p.status = msg
		if msg.Pending && !wasPending {
			return p, p.spinner.Tick
		}
		return p, nil
	case spinner.TickMsg:
		if !p.status.Pending {
			return p, nil
		}
		var cmd tea.Cmd
		p.spinner, cmd = p.spinner.Update(msg)
		return p, cmd
	}
	return p, nil
}

func (p *StatusBar) View() string {
	parts := []string{"AI Assistant", connectivityLabel(p.status)}
	if p.status.Pending {
		parts = append(parts, p.spinner.View()+" typing")
	}
	line := strings.Join(parts, "  ")
	if p.status.Notice != "" {
		line = lipgloss.JoinVertical(lipgloss.Left, line, bannerStyle.Render(p.status.Notice+"  (C-d to dismiss)"))
	}
	return lipgloss.NewStyle().Width(p.width).Render(line)
}

// Height reports the number of lines View will use.
func (p *StatusBar) Height() int {
	if p.status.Notice != "" {
		return 2
	}
	return 1
}

func (p *StatusBar) SetSize(width, _ int) {
	p.width = width
}

func connectivityLabel(s StatusMsg) string {
	switch {
	case s.Checking:
		return checkingStyle.Render("○ checking")
	case s.Online:
		return onlineStyle.Render("● online")
	default:
		return offlineStyle.Render("● offline")
	}
}

// renderBadge draws the collapsed launcher with its unread count. A closed
// panel shrinks to the icon.
func renderBadge(s StatusMsg) string {
	label := "💬 AI Assistant"
	if s.Closed {
		label = "💬"
	}
	if s.UnreadCount > 0 {
		label += " " + unreadStyle.Render(fmt.Sprintf(" %d ", s.UnreadCount))
	}
	if s.Closed {
		return badgeStyle.Render(label)
	}
	return badgeStyle.Render(label + "  " + connectivityLabel(s))
}
