package channel

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"golang.org/x/term"

	"github.com/linanwx/nagowidget/logger"
	"github.com/linanwx/nagowidget/monitor"
	"github.com/linanwx/nagowidget/notice"
	"github.com/linanwx/nagowidget/transcript"
)

const (
	cliMessageBufferSize = 10
	cliStopWaitTimeout   = 500 * time.Millisecond
	cliChannelID         = "cli:local"
	defaultCLIPrompt     = "you> "
)

// CLIConfig configures the terminal channel. In and Out default to the
// process stdio; setting In forces plain mode.
type CLIConfig struct {
	Prompt string
	In     io.Reader
	Out    io.Writer
	Plain  bool
}

// NewCLIChannel creates a CLI channel.
// If stdin is a terminal, it returns a TUI-based channel; otherwise a plain scanner.
func NewCLIChannel(cfg CLIConfig) Channel {
	if cfg.Prompt == "" {
		cfg.Prompt = defaultCLIPrompt
	}
	if !cfg.Plain && cfg.In == nil && term.IsTerminal(int(os.Stdin.Fd())) {
		return newTUIChannel(cfg)
	}
	return newPlainCLIChannel(cfg)
}

// plainCLIChannel implements the Channel interface using bufio.Scanner (for non-TTY).
type plainCLIChannel struct {
	prompt       string
	in           io.Reader
	out          io.Writer
	messages     chan *Message
	done         chan struct{}
	responseDone chan struct{}
	wg           sync.WaitGroup
	msgID        int64
	mu           sync.Mutex
	waitingResp  bool
	stopOnce     sync.Once

	lastConn   monitor.State
	lastNotice notice.Notice
}

func newPlainCLIChannel(cfg CLIConfig) *plainCLIChannel {
	in, out := cfg.In, cfg.Out
	if in == nil {
		in = os.Stdin
	}
	if out == nil {
		out = os.Stdout
	}
	return &plainCLIChannel{
		prompt:       cfg.Prompt,
		in:           in,
		out:          out,
		messages:     make(chan *Message, cliMessageBufferSize),
		done:         make(chan struct{}),
		responseDone: make(chan struct{}, 1),
		lastConn:     monitor.StateUnknown,
	}
}

func (c *plainCLIChannel) Name() string {
	return "cli"
}

func (c *plainCLIChannel) Start(ctx context.Context) error {
	logger.Info("cli channel started (plain mode)")

	c.wg.Add(1)
	go c.readInput(ctx)

	return nil
}

func (c *plainCLIChannel) Stop() error {
	c.stopOnce.Do(func() {
		close(c.done)

		waitDone := make(chan struct{})
		go func() {
			c.wg.Wait()
			close(waitDone)
		}()

		select {
		case <-waitDone:
			close(c.messages)
		case <-time.After(cliStopWaitTimeout):
			logger.Warn("cli channel stop timed out waiting for input loop")
		}

		logger.Info("cli channel stopped")
	})
	return nil
}

// Send prints assistant messages, notices and connectivity changes. User
// messages are not echoed; the terminal already shows them.
func (c *plainCLIChannel) Send(_ context.Context, resp *Response) error {
	completes := false

	c.mu.Lock()
	switch resp.Kind {
	case KindMessage:
		if resp.Sender == transcript.SenderUser {
			c.mu.Unlock()
			return nil
		}
		text := resp.Text
		if resp.Failed {
			text = "⚠ " + text
		}
		fmt.Fprintf(c.out, "\nassistant> %s\n\n", text)
		completes = true
	case KindNotice:
		fmt.Fprintf(c.out, "\n%s\n\n", resp.Text)
		completes = true
	case KindState:
		if !c.printStateLocked(resp) {
			c.mu.Unlock()
			return nil
		}
	}
	c.mu.Unlock()

	if completes && c.completeWaitingResponse() {
		select {
		case c.responseDone <- struct{}{}:
		default:
		}
	} else if !c.isWaiting() {
		fmt.Fprint(c.out, c.prompt)
	}

	return nil
}

// Must be called with mu held. Reports whether anything was printed.
func (c *plainCLIChannel) printStateLocked(resp *Response) bool {
	if resp.State == nil {
		return false
	}
	printed := false
	if conn := resp.State.Connectivity; conn != c.lastConn {
		c.lastConn = conn
		fmt.Fprintf(c.out, "\n[%s]\n", conn)
		printed = true
	}
	if n := resp.State.Notice; n != c.lastNotice {
		c.lastNotice = n
		if !n.Empty() {
			fmt.Fprintf(c.out, "\n! %s\n", n.Text)
			printed = true
		}
	}
	return printed
}

func (c *plainCLIChannel) Messages() <-chan *Message {
	return c.messages
}

func (c *plainCLIChannel) readInput(ctx context.Context) {
	defer c.wg.Done()

	scanner := bufio.NewScanner(c.in)

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.done:
			return
		default:
			fmt.Fprint(c.out, c.prompt)

			if !scanner.Scan() {
				return
			}

			text := strings.TrimSpace(scanner.Text())
			if text == "" {
				continue
			}

			if IsExit(text) {
				fmt.Fprintln(c.out, "Goodbye!")
				return
			}

			c.msgID++
			msg := &Message{
				ID:        fmt.Sprintf("cli-%d", c.msgID),
				ChannelID: cliChannelID,
				UserID:    "local",
				Username:  os.Getenv("USER"),
				Text:      text,
				Metadata:  make(map[string]string),
			}
			if action, ok := ParseCommand(text); ok {
				msg.Action = action
				msg.Text = ""
			}

			select {
			case <-c.responseDone:
			default:
			}
			c.setWaitingResponse(true)

			select {
			case c.messages <- msg:
			case <-c.done:
				c.setWaitingResponse(false)
				return
			case <-ctx.Done():
				c.setWaitingResponse(false)
				return
			}

			select {
			case <-c.responseDone:
			case <-c.done:
				c.setWaitingResponse(false)
				return
			case <-ctx.Done():
				c.setWaitingResponse(false)
				return
			}
		}
	}
}

func (c *plainCLIChannel) setWaitingResponse(v bool) {
	c.mu.Lock()
	c.waitingResp = v
	c.mu.Unlock()
}

func (c *plainCLIChannel) isWaiting() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.waitingResp
}

func (c *plainCLIChannel) completeWaitingResponse() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.waitingResp {
		return false
	}
	c.waitingResp = false
	return true
}
