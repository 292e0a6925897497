package channel

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/linanwx/nagowidget/channel/tui"
	"github.com/linanwx/nagowidget/logger"
	"github.com/linanwx/nagowidget/monitor"
	"github.com/linanwx/nagowidget/transcript"
	"github.com/linanwx/nagowidget/visibility"
	"github.com/linanwx/nagowidget/widget"
)

const tuiMessageBufferSize = 64

// TUIChannel implements the Channel interface using a bubbletea TUI.
type TUIChannel struct {
	prompt   string
	app      *tui.App
	program  *tea.Program
	messages chan *Message
	done     chan struct{}
	wg       sync.WaitGroup
	msgID    atomic.Int64
	stopOnce sync.Once
}

func newTUIChannel(cfg CLIConfig) *TUIChannel {
	return &TUIChannel{
		prompt:   cfg.Prompt,
		messages: make(chan *Message, tuiMessageBufferSize),
		done:     make(chan struct{}),
	}
}

func (c *TUIChannel) Name() string { return "cli" }

func (c *TUIChannel) Start(ctx context.Context) error {
	c.app = tui.NewApp(c.prompt)
	c.program = tea.NewProgram(c.app, tea.WithAltScreen())

	// Redirect logger output to the TUI log panel.
	logger.Intercept(&logWriter{program: c.program})

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		if _, err := c.program.Run(); err != nil {
			fmt.Fprintf(os.Stderr, "tui error: %v\n", err)
		}
		select {
		case <-c.done:
		default:
			close(c.done)
		}
		// Quitting the TUI ends the process the same way Ctrl+C on a plain
		// terminal would.
		p, _ := os.FindProcess(os.Getpid())
		if p != nil {
			_ = p.Signal(syscall.SIGINT)
		}
	}()

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case <-c.done:
				return
			case in, ok := <-c.app.InputCh:
				if !ok {
					return
				}
				if IsExit(in.Text) {
					c.program.Quit()
					return
				}
				msg := c.newMessage(in)
				select {
				case c.messages <- msg:
				case <-c.done:
					return
				}
			}
		}
	}()

	logger.Info("cli channel started (TUI mode)")
	return nil
}

func (c *TUIChannel) newMessage(in tui.Input) *Message {
	msg := &Message{
		ID:        fmt.Sprintf("cli-%d", c.msgID.Add(1)),
		ChannelID: cliChannelID,
		UserID:    "local",
		Username:  os.Getenv("USER"),
		Text:      in.Text,
		Action:    Action(in.Action),
		Metadata:  make(map[string]string),
	}
	if in.Action != "" {
		msg.Metadata["shortcut"] = "true"
	}
	if action, ok := ParseCommand(in.Text); ok {
		msg.Action = action
		msg.Text = ""
	}
	return msg
}

func (c *TUIChannel) Stop() error {
	c.stopOnce.Do(func() {
		close(c.done)
		if c.program != nil {
			c.program.Quit()
		}
		c.wg.Wait()
		logger.Restore()
		close(c.messages)
		logger.Info("cli channel stopped")
	})
	return nil
}

func (c *TUIChannel) Send(_ context.Context, resp *Response) error {
	if c.program == nil {
		return nil
	}
	switch resp.Kind {
	case KindMessage:
		c.program.Send(tui.ChatMsg{
			Text:   resp.Text,
			IsUser: resp.Sender == transcript.SenderUser,
			Failed: resp.Failed,
			Time:   resp.Time,
		})
	case KindNotice:
		c.program.Send(tui.NoticeMsg{Text: resp.Text})
	case KindState:
		if resp.State != nil {
			c.program.Send(statusFromView(resp.State))
		}
	}
	return nil
}

func (c *TUIChannel) Messages() <-chan *Message {
	return c.messages
}

func statusFromView(v *widget.View) tui.StatusMsg {
	return tui.StatusMsg{
		Online:      v.Connectivity == monitor.StateConnected,
		Checking:    v.Connectivity == monitor.StateUnknown,
		Pending:     v.Pending,
		Open:        v.Panel == visibility.PanelOpen,
		Closed:      v.Panel == visibility.PanelClosed,
		Left:        v.Position == visibility.BottomLeft,
		UnreadCount: v.UnreadCount,
		Notice:      v.Notice.Text,
		CanSend:     v.CanSend,
		MaxLength:   v.MaxLength,
	}
}

// logWriter implements io.Writer and sends each write as a LogLineMsg to the TUI.
type logWriter struct {
	program *tea.Program
}

func (w *logWriter) Write(p []byte) (int, error) {
	for _, line := range bytes.Split(p, []byte("\n")) {
		if len(line) == 0 {
			continue
		}
		w.program.Send(tui.LogLineMsg{Line: string(line)})
	}
	return len(p), nil
}
