// Package display renders the chat in a terminal: rounded panels for the
// assistant and system notices, markdown for assistant replies when stdout is
// a TTY, and a line reader that can be interrupted.
package display

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

const defaultWidth = 80

type Options struct {
	// Width of dividers; 0 means 80.
	Width int
	// Markdown renders assistant text with glamour.
	Markdown bool
	// Interactive enables screen clearing.
	Interactive bool
}

type line struct {
	text string
	err  error
}

// Console implements session.Display over a reader and a writer.
type Console struct {
	in   io.Reader
	out  io.Writer
	opts Options

	render *glamour.TermRenderer

	assistant lipgloss.Style
	system    lipgloss.Style
	welcome   lipgloss.Style
	title     func(string, lipgloss.Color) string
	prompt    lipgloss.Style
	tool      lipgloss.Style
	divider   lipgloss.Style

	startOnce sync.Once
	lines     chan line
}

func New(in io.Reader, out io.Writer, opts Options) *Console {
	if opts.Width <= 0 {
		opts.Width = defaultWidth
	}
	r := lipgloss.NewRenderer(out)
	panel := r.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)

	c := &Console{
		in:        in,
		out:       out,
		opts:      opts,
		assistant: panel.BorderForeground(lipgloss.Color("2")),
		system:    panel.BorderForeground(lipgloss.Color("3")).Foreground(lipgloss.Color("3")),
		welcome:   panel.BorderForeground(lipgloss.Color("5")),
		prompt:    r.NewStyle().Bold(true).Foreground(lipgloss.Color("6")),
		tool:      r.NewStyle().Bold(true).Foreground(lipgloss.Color("4")),
		divider:   r.NewStyle().Faint(true),
		lines:     make(chan line),
	}
	c.title = func(s string, color lipgloss.Color) string {
		return r.NewStyle().Bold(true).Foreground(color).Render(s)
	}
	if opts.Markdown {
		if tr, err := glamour.NewTermRenderer(
			glamour.WithAutoStyle(),
			glamour.WithWordWrap(opts.Width-4),
		); err == nil {
			c.render = tr
		}
	}
	return c
}

// NewTerminal returns a Console on stdin/stdout, enabling markdown and screen
// control only when stdout is a terminal.
func NewTerminal() *Console {
	fd := int(os.Stdout.Fd())
	tty := term.IsTerminal(fd)
	width := defaultWidth
	if tty {
		if w, _, err := term.GetSize(fd); err == nil && w > 0 {
			width = w
		}
	}
	return New(os.Stdin, os.Stdout, Options{Width: width, Markdown: tty, Interactive: tty})
}

func (c *Console) Welcome() {
	body := strings.Join([]string{
		c.title("Welcome to the AI Agent Chat!", lipgloss.Color("5")),
		"",
		c.title("Available Commands:", lipgloss.Color("6")),
		"• reset - Start a new conversation",
		"• quit  - Exit the program",
	}, "\n")
	fmt.Fprintln(c.out, c.welcome.Render(body))
	fmt.Fprintln(c.out)
}

func (c *Console) Clear() {
	if c.opts.Interactive {
		fmt.Fprint(c.out, "\033[H\033[2J")
	}
}

func (c *Console) Divider() {
	fmt.Fprintln(c.out, c.divider.Render(strings.Repeat("─", c.opts.Width)))
}

func (c *Console) AssistantText(text string) {
	body := strings.TrimSpace(text)
	if c.render != nil {
		if rendered, err := c.render.Render(body); err == nil {
			body = strings.Trim(rendered, "\n")
		}
	}
	c.panel(c.assistant, c.title("AI Agent", lipgloss.Color("2")), body)
}

func (c *Console) SystemNotice(text string) {
	c.panel(c.system, c.title("System", lipgloss.Color("3")), text)
}

func (c *Console) ToolUsage(name string) {
	fmt.Fprintf(c.out, "\n🔧 %s %s\n", c.tool.Render("Tool Used:"), name)
}

func (c *Console) panel(style lipgloss.Style, title, body string) {
	fmt.Fprintln(c.out)
	fmt.Fprintln(c.out, style.Render(title+"\n"+body))
	fmt.Fprintln(c.out)
}

// ReadLine prints the prompt and waits for the next line. Lines are read by
// a single background goroutine, so an abandoned read is picked up by the
// next call.
func (c *Console) ReadLine(ctx context.Context) (string, error) {
	c.startOnce.Do(func() { go c.readLoop() })
	fmt.Fprintf(c.out, "\n%s ", c.prompt.Render("You:"))
	select {
	case <-ctx.Done():
		fmt.Fprintln(c.out)
		return "", ctx.Err()
	case l, ok := <-c.lines:
		if !ok {
			return "", io.EOF
		}
		if l.err != nil {
			return "", l.err
		}
		fmt.Fprintln(c.out)
		return l.text, nil
	}
}

func (c *Console) readLoop() {
	defer close(c.lines)
	scanner := bufio.NewScanner(c.in)
	for scanner.Scan() {
		c.lines <- line{text: scanner.Text()}
	}
	if err := scanner.Err(); err != nil {
		c.lines <- line{err: err}
	}
}
