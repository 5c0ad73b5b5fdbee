package ui

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/charmbracelet/glamour"
	"golang.org/x/term"

	"sherpa/internal/history"
	"sherpa/internal/reply"
)

// Display renders the conversation in a terminal
type Display struct {
	mu       sync.Mutex
	out      io.Writer
	width    int
	color    bool
	renderer *glamour.TermRenderer
}

// Options configures a Display.
type Options struct {
	Out   io.Writer
	Width int  // 0 means detect, falling back to 80
	Color bool // ANSI colors and glamour auto style
}

// NewDisplay creates a new display
func NewDisplay(opts Options) *Display {
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	width := opts.Width
	if width <= 0 {
		width = terminalWidth()
	}

	style := glamour.WithStandardStyle("notty")
	if opts.Color {
		style = glamour.WithAutoStyle()
	}
	renderer, _ := glamour.NewTermRenderer(
		style,
		glamour.WithWordWrap(max(width-10, 20)),
	)

	return &Display{
		out:      opts.Out,
		width:    width,
		color:    opts.Color,
		renderer: renderer,
	}
}

// Color codes
const (
	colorReset  = "\033[0m"
	colorBold   = "\033[1m"
	colorDim    = "\033[2m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
	colorGray   = "\033[90m"
)

func (d *Display) c(code string) string {
	if !d.color {
		return ""
	}
	return code
}

func (d *Display) printf(format string, args ...any) {
	d.mu.Lock()
	defer d.mu.Unlock()
	fmt.Fprintf(d.out, format, args...)
}

// ClearScreen clears the terminal
func (d *Display) ClearScreen() {
	if d.color {
		d.printf("\033[2J\033[H")
	}
}

// PrintWelcome displays the banner and the command summary
func (d *Display) PrintWelcome(lang string, voice string) {
	d.printf("%s%ssherpa%s %s· caregiver companion%s\n", d.c(colorBold), d.c(colorCyan), d.c(colorReset), d.c(colorGray), d.c(colorReset))
	d.printf("%sLanguage:%s %s  %sVoice:%s %s\n", d.c(colorGray), d.c(colorReset), lang, d.c(colorGray), d.c(colorReset), voice)
	d.printf("%sCommands:%s /prompts /prompt N /lang it|en|es /voice on|off /pause /resume /stop /listen /history /reset /clear /exit\n\n", d.c(colorGray), d.c(colorReset))
}

// PrintSeparator prints a visual separator
func (d *Display) PrintSeparator() {
	line := strings.Repeat("─", min(d.width, 80))
	d.printf("%s%s%s\n", d.c(colorDim), line, d.c(colorReset))
}

// PrintPrompt displays user input prompt
func (d *Display) PrintPrompt(placeholder string) {
	if placeholder != "" {
		d.printf("%s%s%s\n", d.c(colorDim), placeholder, d.c(colorReset))
	}
	d.printf("%s%s❯%s ", d.c(colorBold), d.c(colorGreen), d.c(colorReset))
}

// PrintMessage renders one history message
func (d *Display) PrintMessage(msg history.Message) {
	stamp := msg.CreatedAt.Format("15:04:05")
	if msg.Sender == history.User {
		d.printf("%s┌─ You · %s%s\n", d.c(colorGray), stamp, d.c(colorReset))
		d.printf("%s│%s %s\n", d.c(colorGray), d.c(colorReset), msg.Text)
		d.printf("%s└%s\n", d.c(colorGray), d.c(colorReset))
		return
	}

	bar := colorGray
	if msg.Kind == history.KindError {
		bar = colorRed
	}
	d.printf("%s┌─ Sherpa · %s%s\n", d.c(bar), stamp, d.c(colorReset))
	for _, line := range d.render(msg) {
		d.printf("%s│%s %s\n", d.c(bar), d.c(colorReset), line)
	}
	d.printf("%s└%s\n", d.c(bar), d.c(colorReset))
}

// render turns a bot message into display lines, preferring glamour.
func (d *Display) render(msg history.Message) []string {
	blocks := msg.Blocks
	if len(blocks) == 0 {
		blocks = reply.Format(msg.Text)
	}
	md := reply.Markdown(blocks)

	if d.renderer != nil {
		if rendered, err := d.renderer.Render(md); err == nil {
			rendered = strings.Trim(rendered, "\n")
			if strings.TrimSpace(rendered) != "" {
				return trimLines(strings.Split(rendered, "\n"))
			}
		}
	}
	return strings.Split(reply.PlainText(blocks), "\n")
}

// trimLines drops glamour's leading margin and blank edge lines.
func trimLines(lines []string) []string {
	out := make([]string, 0, len(lines))
	for _, l := range lines {
		out = append(out, strings.TrimRight(strings.TrimPrefix(l, "  "), " "))
	}
	for len(out) > 0 && out[0] == "" {
		out = out[1:]
	}
	for len(out) > 0 && out[len(out)-1] == "" {
		out = out[:len(out)-1]
	}
	return out
}

// PrintHistory prints every message with a header
func (d *Display) PrintHistory(msgs []history.Message) {
	if len(msgs) == 0 {
		d.PrintInfo("No messages yet")
		return
	}
	d.PrintSeparator()
	for _, m := range msgs {
		d.PrintMessage(m)
	}
	d.PrintSeparator()
}

// PrintPrompts lists the quick prompts, numbered from 1
func (d *Display) PrintPrompts(prompts []string) {
	for i, p := range prompts {
		d.printf("  %s%d.%s %s\n", d.c(colorCyan), i+1, d.c(colorReset), p)
	}
}

// PrintInfo displays info message
func (d *Display) PrintInfo(msg string) {
	d.printf("%sℹ %s%s\n", d.c(colorCyan), msg, d.c(colorReset))
}

// PrintWarning displays warning message
func (d *Display) PrintWarning(msg string) {
	d.printf("%s⚠ %s%s\n", d.c(colorYellow), msg, d.c(colorReset))
}

// PrintError displays error message
func (d *Display) PrintError(err error) {
	d.printf("%s✗ Error: %v%s\n", d.c(colorRed), err, d.c(colorReset))
}

// PrintSuccess displays success message
func (d *Display) PrintSuccess(msg string) {
	d.printf("%s✓ %s%s\n", d.c(colorGreen), msg, d.c(colorReset))
}

// PrintGoodbye displays goodbye message
func (d *Display) PrintGoodbye() {
	d.printf("\n%s%sTake care of yourself too.%s\n", d.c(colorBold), d.c(colorCyan), d.c(colorReset))
}

func terminalWidth() int {
	if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 0 {
		return w
	}
	return 80
}
