package tui

import (
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSizedApp(t *testing.T, status StatusMsg) *App {
	t.Helper()
	app := NewApp("you> ")
	app.Update(tea.WindowSizeMsg{Width: 80, Height: 24})
	app.Update(status)
	return app
}

func drain(app *App) []Input {
	var got []Input
	for {
		select {
		case in := <-app.InputCh:
			got = append(got, in)
		default:
			return got
		}
	}
}

func typeText(app *App, text string) {
	app.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(text)})
}

func pressEnter(app *App) {
	_, cmd := app.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if cmd == nil {
		return
	}
	if msg := cmd(); msg != nil {
		if batch, ok := msg.(tea.BatchMsg); ok {
			for _, c := range batch {
				if c != nil {
					app.Update(c())
				}
			}
			return
		}
		app.Update(msg)
	}
}

func TestAppShortcutsEmitActions(t *testing.T) {
	app := newSizedApp(t, StatusMsg{Open: true, Online: true, CanSend: true})

	app.Update(tea.KeyMsg{Type: tea.KeyCtrlO})
	app.Update(tea.KeyMsg{Type: tea.KeyEsc})
	app.Update(tea.KeyMsg{Type: tea.KeyCtrlW})
	app.Update(tea.KeyMsg{Type: tea.KeyCtrlD})

	assert.Equal(t, []Input{
		{Action: "toggle"},
		{Action: "minimize"},
		{Action: "close"},
		{Action: "dismiss"},
	}, drain(app))
}

func TestAppSubmitRespectsCanSend(t *testing.T) {
	app := newSizedApp(t, StatusMsg{Open: true, Online: true, CanSend: true})

	typeText(app, "Hello")
	pressEnter(app)
	assert.Equal(t, []Input{{Text: "Hello"}}, drain(app))

	app.Update(StatusMsg{Open: true, Online: true, Pending: true})
	typeText(app, "again")
	pressEnter(app)
	assert.Empty(t, drain(app))
}

func TestAppCollapsedEnterOpens(t *testing.T) {
	app := newSizedApp(t, StatusMsg{Online: true, UnreadCount: 2})

	typeText(app, "ignored")
	pressEnter(app)
	assert.Equal(t, []Input{{Action: "open"}}, drain(app))

	view := app.View()
	assert.Contains(t, view, "AI Assistant")
	assert.Contains(t, view, " 2 ")
}

func TestAppRendersConversation(t *testing.T) {
	app := newSizedApp(t, StatusMsg{Open: true, Online: true, CanSend: true, Notice: "Failed to send message. Please try again."})

	app.Update(ChatMsg{Text: "Hello", IsUser: true, Time: time.Date(2026, 1, 2, 9, 30, 0, 0, time.UTC)})
	app.Update(ChatMsg{Text: "Sorry, I encountered an error. Please try again.", Failed: true})
	app.Update(NoticeMsg{Text: "Commands: /help"})

	view := app.View()
	assert.Contains(t, view, "> Hello")
	assert.Contains(t, view, "09:30")
	assert.Contains(t, view, "Sorry, I encountered an error.")
	assert.Contains(t, view, "Commands: /help")
	assert.Contains(t, view, "Failed to send message.")
	assert.Contains(t, view, "online")
}

func TestAppQuit(t *testing.T) {
	app := newSizedApp(t, StatusMsg{Open: true})
	_, cmd := app.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}

func TestLogPanelKeepsNewestLines(t *testing.T) {
	p := NewLogPanel()
	p.maxLines = 3
	for _, l := range []string{"a", "b", "c", "d"} {
		p.Update(LogLineMsg{Line: l})
	}
	require.Len(t, p.lines, 3)
	assert.Contains(t, p.lines[0], "b")
}

func TestAppClosedBadgeIsCompact(t *testing.T) {
	app := newSizedApp(t, StatusMsg{Closed: true, Online: true, UnreadCount: 1})
	view := app.View()
	assert.Contains(t, view, "💬")
	assert.Contains(t, view, " 1 ")
	assert.NotContains(t, view, "AI Assistant ")
}
