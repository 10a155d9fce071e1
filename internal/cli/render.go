package cli

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"

	"quill/internal/agent"
)

// StreamingWriter provides utilities for writing terminal output
type StreamingWriter struct {
	writer    io.Writer
	colorMode bool
}

func NewStreamingWriter(w io.Writer) *StreamingWriter {
	if w == nil {
		w = os.Stdout
	}
	return &StreamingWriter{
		writer:    w,
		colorMode: true,
	}
}

func (sw *StreamingWriter) SetColorMode(enabled bool) {
	sw.colorMode = enabled
}

// Write writes content to the output
func (sw *StreamingWriter) Write(content string) {
	fmt.Fprint(sw.writer, content)
}

// WriteLine writes a line to the output
func (sw *StreamingWriter) WriteLine(content string) {
	fmt.Fprintln(sw.writer, content)
}

// WriteColored writes colored content if color mode is enabled
func (sw *StreamingWriter) WriteColored(content, color string) {
	if sw.colorMode {
		fmt.Fprintf(sw.writer, "%s%s%s", color, content, ColorReset)
	} else {
		fmt.Fprint(sw.writer, content)
	}
}

// Flush ensures all content is written (useful for buffered writers)
func (sw *StreamingWriter) Flush() {
	if flusher, ok := sw.writer.(interface{ Flush() error }); ok {
		flusher.Flush()
	}
}

// ANSI Color codes
const (
	ColorReset   = "\033[0m"
	ColorRed     = "\033[31m"
	ColorGreen   = "\033[32m"
	ColorYellow  = "\033[33m"
	ColorBlue    = "\033[34m"
	ColorMagenta = "\033[35m"
	ColorCyan    = "\033[36m"
	ColorGray    = "\033[90m"
	ColorBold    = "\033[1m"
)

// Renderer turns agent events into terminal output for the chat loop.
//
// Assistant text is held back one event: when tool calls follow it, the
// text was preamble and prints as plain lines; when the turn ends, the
// final message renders as markdown instead, so it never prints twice.
type Renderer struct {
	writer   *StreamingWriter
	markdown *glamour.TermRenderer

	showReasoning bool
	verbose       bool

	pending string
}

func NewRenderer(w io.Writer) *Renderer {
	md, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(100),
	)
	if err != nil {
		md = nil
	}
	return &Renderer{
		writer:   NewStreamingWriter(w),
		markdown: md,
	}
}

// SetColorMode toggles ANSI colors.
func (r *Renderer) SetColorMode(enabled bool) {
	r.writer.SetColorMode(enabled)
}

// SetShowReasoning toggles display of model reasoning output.
func (r *Renderer) SetShowReasoning(show bool) {
	r.showReasoning = show
}

// SetVerbose toggles full tool output instead of previews.
func (r *Renderer) SetVerbose(verbose bool) {
	r.verbose = verbose
}

// Markdown renders text as terminal markdown, falling back to the raw
// text when no renderer is available.
func (r *Renderer) Markdown(text string) string {
	if r.markdown == nil {
		return text
	}
	out, err := r.markdown.Render(text)
	if err != nil {
		return text
	}
	return out
}

// RenderEvent prints one agent event.
func (r *Renderer) RenderEvent(ev agent.Event) {
	switch ev.Type {
	case agent.EventAssistant:
		r.flushPending()
		if r.showReasoning && ev.Assistant.Reason != "" {
			r.writer.WriteColored(ev.Assistant.Reason+"\n", ColorGray)
		}
		r.pending = ev.Assistant.Content

	case agent.EventToolCall:
		r.flushPending()
		line := fmt.Sprintf("→ %s %s\n", ev.ToolCall.Name, preview(ev.ToolCall.Arguments, 120))
		r.writer.WriteColored(line, ColorCyan)

	case agent.EventToolResult:
		r.renderToolResult(ev.ToolResult)

	case agent.EventModeChanged:
		r.writer.WriteColored(fmt.Sprintf("\n◆ mode: %s\n", ev.Mode), ColorMagenta)

	case agent.EventError:
		r.flushPending()
		r.writer.WriteColored(fmt.Sprintf("\n✗ %s\n", ev.Error), ColorRed)

	case agent.EventDone:
		r.pending = ""
		if ev.Final != "" {
			r.writer.Write(r.Markdown(ev.Final))
		}
	}
}

func (r *Renderer) renderToolResult(info *agent.ToolResultInfo) {
	switch {
	case info.Skipped:
		r.writer.WriteColored(fmt.Sprintf("  ⊘ %s: %s\n", info.Name, preview(info.SkipReason, 160)), ColorYellow)
	case info.Error != "":
		r.writer.WriteColored(fmt.Sprintf("  ✗ %s: %s\n", info.Name, preview(info.Error, 160)), ColorRed)
	case r.verbose:
		r.writer.WriteColored(fmt.Sprintf("  ✓ %s (%dms)\n", info.Name, info.DurationMs), ColorGreen)
		if info.Output != "" {
			r.writer.WriteColored(indent(info.Output), ColorGray)
		}
	default:
		line := fmt.Sprintf("  ✓ %s (%dms) %s\n", info.Name, info.DurationMs, preview(info.Output, 120))
		r.writer.WriteColored(line, ColorGreen)
	}
}

// Drain renders a whole turn from its event channel, spinning while the
// agent is quiet. The spinner stays off after a tool call is announced:
// an approval prompt may own the terminal until the result arrives.
func (r *Renderer) Drain(events <-chan agent.Event) {
	spinner := NewProgressIndicator(r.writer)
	spinner.Start()
	ticker := time.NewTicker(120 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case ev, ok := <-events:
			spinner.Stop()
			if !ok {
				return
			}
			r.RenderEvent(ev)
			if ev.Type != agent.EventToolCall {
				spinner.Start()
			}
		case <-ticker.C:
			spinner.Show("thinking...")
		}
	}
}

func (r *Renderer) flushPending() {
	if r.pending == "" {
		return
	}
	r.writer.WriteLine(r.pending)
	r.pending = ""
}

// preview collapses text to a single trimmed line, noting how much was
// cut.
func preview(text string, max int) string {
	text = strings.TrimSpace(text)
	lines := strings.Split(text, "\n")
	out := strings.TrimSpace(lines[0])
	if r := []rune(out); len(r) > max {
		out = string(r[:max]) + "..."
	}
	if len(lines) > 1 {
		out = fmt.Sprintf("%s (+%d lines)", out, len(lines)-1)
	}
	return out
}

func indent(text string) string {
	var b strings.Builder
	for _, line := range strings.Split(strings.TrimRight(text, "\n"), "\n") {
		b.WriteString("    ")
		b.WriteString(line)
		b.WriteString("\n")
	}
	return b.String()
}

// ProgressIndicator shows a simple progress indicator while the agent
// is waiting on the model
type ProgressIndicator struct {
	writer  *StreamingWriter
	frames  []string
	current int
	active  bool
	shown   bool
}

func NewProgressIndicator(writer *StreamingWriter) *ProgressIndicator {
	return &ProgressIndicator{
		writer:  writer,
		frames:  []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"},
		current: 0,
		active:  false,
	}
}

// Show displays the progress indicator
func (pi *ProgressIndicator) Show(message string) {
	if !pi.active {
		return
	}
	frame := pi.frames[pi.current%len(pi.frames)]
	pi.writer.WriteColored(fmt.Sprintf("\r%s %s", frame, message), ColorCyan)
	pi.current++
	pi.shown = true
}

// Start starts the progress indicator
func (pi *ProgressIndicator) Start() {
	pi.active = true
	pi.current = 0
}

// Stop stops the progress indicator, clearing its line if one was drawn.
func (pi *ProgressIndicator) Stop() {
	pi.active = false
	if pi.shown {
		pi.writer.Write("\r\033[K")
		pi.shown = false
	}
}
