// Package terminal renders streaming replies to a plain terminal.
package terminal

import (
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/briandowns/spinner"
	"github.com/charmbracelet/lipgloss"
	"github.com/fatih/color"
	"github.com/fwojciec/relay"
)

// Interface compliance check.
var _ relay.Observer = (*Observer)(nil)

// Spinner is the loading indicator shown until content arrives.
type Spinner interface {
	Start()
	Stop()
}

// Observer prints reply deltas as they stream in. Reasoning is printed faint
// before the visible text; citations and a status line follow on termination.
type Observer struct {
	out     io.Writer
	spinner Spinner

	prompt    lipgloss.Style
	thinking  lipgloss.Style
	reference lipgloss.Style
	muted     lipgloss.Style
	errColor  *color.Color
	warnColor *color.Color
	okColor   *color.Color

	mu      sync.Mutex
	current string // message being printed
	printed struct {
		thinking int
		text     int
	}
	spinning bool
}

// Option configures an [Observer].
type Option func(*Observer)

// WithSpinner replaces the loading indicator. Nil disables it.
func WithSpinner(s Spinner) Option {
	return func(o *Observer) { o.spinner = s }
}

// WithTheme sets the colors. Defaults to relay.DefaultTheme().
func WithTheme(t relay.Theme) Option {
	return func(o *Observer) { o.applyTheme(t) }
}

// NewSpinner returns a spinner writing to w.
func NewSpinner(w io.Writer) Spinner {
	s := spinner.New(spinner.CharSets[14], 80*time.Millisecond, spinner.WithWriter(w))
	s.Suffix = "  waiting for reply..."
	return s
}

// New creates an Observer printing to out.
func New(out io.Writer, opts ...Option) *Observer {
	o := &Observer{out: out}
	o.applyTheme(relay.DefaultTheme())
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func (o *Observer) applyTheme(t relay.Theme) {
	r := lipgloss.NewRenderer(o.out)
	o.prompt = r.NewStyle().Foreground(ansiColor(t.Prompt)).Bold(true)
	o.thinking = r.NewStyle().Foreground(ansiColor(t.Thinking)).Faint(true)
	o.reference = r.NewStyle().Foreground(ansiColor(t.Reference))
	o.muted = r.NewStyle().Foreground(ansiColor(t.Muted)).Faint(true)
	o.errColor = color.New(fgColor(t.Error))
	o.warnColor = color.New(fgColor(t.Warning))
	o.okColor = color.New(fgColor(t.Success))
}

// Observe implements relay.Observer.
func (o *Observer) Observe(u relay.Update) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if u.MessageID != o.current {
		o.current = u.MessageID
		o.printed.thinking = 0
		o.printed.text = 0
	}

	switch {
	case u.Status == relay.StatusLoading:
		if o.spinner != nil && !o.spinning {
			o.spinner.Start()
			o.spinning = true
		}
	case u.Status == relay.StatusStreaming:
		o.stopSpinner()
		o.printDeltas(u.Snapshot)
	case u.Status.Terminal():
		o.stopSpinner()
		o.printDeltas(u.Snapshot)
		o.finish(u)
	}
}

func (o *Observer) stopSpinner() {
	if o.spinning {
		o.spinner.Stop()
		o.spinning = false
	}
}

// printDeltas writes whatever part of the append-only buffers is new.
func (o *Observer) printDeltas(snap relay.Snapshot) {
	if len(snap.Thinking) > o.printed.thinking {
		fmt.Fprint(o.out, renderLines(o.thinking, snap.Thinking[o.printed.thinking:]))
		o.printed.thinking = len(snap.Thinking)
	}
	if len(snap.Text) > o.printed.text {
		if o.printed.text == 0 && o.printed.thinking > 0 {
			fmt.Fprint(o.out, "\n\n")
		}
		fmt.Fprint(o.out, snap.Text[o.printed.text:])
		o.printed.text = len(snap.Text)
	}
}

func (o *Observer) finish(u relay.Update) {
	if o.printed.text > 0 || o.printed.thinking > 0 {
		fmt.Fprintln(o.out)
	}
	if refs := u.Snapshot.References; len(refs) > 0 {
		sorted := slices.Clone(refs)
		slices.SortStableFunc(sorted, func(a, b relay.Reference) int { return a.Index - b.Index })
		fmt.Fprintln(o.out)
		for _, r := range sorted {
			title := r.Title
			if title == "" {
				title = r.URL
			}
			fmt.Fprintln(o.out, o.reference.Render(fmt.Sprintf("[%d] %s", r.Index, title))+" "+o.muted.Render(r.URL))
		}
	}
	switch u.Status {
	case relay.StatusCancelled:
		o.warnColor.Fprintln(o.out, "[cancelled]")
	case relay.StatusError:
		msg := "request failed"
		if u.Err != nil {
			msg = u.Err.Error()
		}
		o.errColor.Fprintf(o.out, "error: %s\n", msg)
	}
	o.current = ""
}

// PrintMessage renders a stored message, as listed by a conversation history.
func (o *Observer) PrintMessage(m relay.Message) {
	o.mu.Lock()
	defer o.mu.Unlock()

	header := o.prompt.Render(string(m.Role))
	if m.Model != "" {
		header += " " + o.muted.Render(m.Model)
	}
	fmt.Fprintln(o.out, header)
	if m.Thinking != "" {
		fmt.Fprintln(o.out, renderLines(o.thinking, m.Thinking))
	}
	if m.Content != "" {
		fmt.Fprintln(o.out, m.Content)
	}
	switch m.Status {
	case relay.StatusCompleted:
		o.okColor.Fprintln(o.out, "[completed]")
	case relay.StatusCancelled:
		o.warnColor.Fprintln(o.out, "[cancelled]")
	case relay.StatusError:
		o.errColor.Fprintf(o.out, "error: %s\n", m.Error)
	case relay.StatusLoading, relay.StatusStreaming:
		o.warnColor.Fprintln(o.out, "[interrupted]")
	}
	fmt.Fprintln(o.out)
}

// renderLines styles each line separately so lines are not padded to a
// common width.
func renderLines(style lipgloss.Style, s string) string {
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		if l != "" {
			lines[i] = style.Render(l)
		}
	}
	return strings.Join(lines, "\n")
}

func ansiColor(index int) lipgloss.TerminalColor {
	if index < 0 {
		return lipgloss.NoColor{}
	}
	return lipgloss.Color(strconv.Itoa(index))
}

// fgColor maps an ANSI index (0-15) to a foreground attribute.
func fgColor(index int) color.Attribute {
	switch {
	case index < 0:
		return color.Reset
	case index < 8:
		return color.FgBlack + color.Attribute(index)
	default:
		return color.FgHiBlack + color.Attribute(index-8)
	}
}
