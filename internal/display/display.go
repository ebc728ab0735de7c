// Package display provides unified output formatting for the gass CLI.
// It visually separates gass orchestration messages from agent output.
package display

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"golang.org/x/term"

	"github.com/daydemir/gass/internal/types"
)

// Display handles all CLI output with visual hierarchy
type Display struct {
	mu        sync.Mutex
	out       io.Writer
	theme     *Theme
	termWidth int
	noColor   bool
	now       func() time.Time
}

// New creates a new Display instance
func New() *Display {
	return NewWithOptions(false)
}

// NewWithOptions creates a Display with configuration. Colors are also
// disabled when stdout is not a terminal.
func NewWithOptions(noColor bool) *Display {
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		noColor = true
	}
	return NewWriter(os.Stdout, noColor, getTerminalWidth())
}

// NewWriter creates a Display writing to out with a fixed width.
func NewWriter(out io.Writer, noColor bool, width int) *Display {
	d := &Display{
		out:       out,
		termWidth: width,
		noColor:   noColor,
		now:       time.Now,
	}
	if noColor {
		d.theme = NoColorTheme()
	} else {
		d.theme = DefaultTheme()
	}
	return d
}

// getTerminalWidth returns the terminal width, defaulting to 80
func getTerminalWidth() int {
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || width < 40 {
		return 80
	}
	if width > 120 {
		return 120 // Cap at 120 for readability
	}
	return width
}

// Writer returns the underlying writer.
func (d *Display) Writer() io.Writer {
	return d.out
}

func (d *Display) printf(format string, a ...any) {
	d.mu.Lock()
	defer d.mu.Unlock()
	fmt.Fprintf(d.out, format, a...)
}

func (d *Display) println(a ...any) {
	d.mu.Lock()
	defer d.mu.Unlock()
	fmt.Fprintln(d.out, a...)
}

func (d *Display) timestamp() string {
	return d.now().Format("[15:04:05]")
}

// Box prints a boxed message with a title
func (d *Display) Box(title string, lines ...string) {
	if len(lines) == 0 {
		return
	}

	width := d.termWidth - 2
	titleLen := len(title) + 3 // "─ TITLE "
	remainingWidth := width - titleLen
	if remainingWidth < 0 {
		remainingWidth = 0
	}

	// Top border: ┌─ GASS ──────────────────────────┐
	topLine := BoxTopLeft + BoxHorizontal + " " + title + " " + strings.Repeat(BoxHorizontal, remainingWidth) + BoxTopRight
	d.println(d.theme.Border(topLine))

	// Content lines: │ text                            │
	for _, line := range lines {
		paddedLine := d.padRight(line, width-2)
		d.println(d.theme.Border(BoxVertical) + " " + d.theme.Text(paddedLine) + " " + d.theme.Border(BoxVertical))
	}

	// Bottom border: └─────────────────────────────────┘
	bottomLine := BoxBottomLeft + strings.Repeat(BoxHorizontal, width) + BoxBottomRight
	d.println(d.theme.Border(bottomLine))
}

// Status prints a single-line status message (no box)
func (d *Display) Status(symbol, message string) {
	d.printf("%s %s %s\n",
		d.theme.Border(d.timestamp()),
		symbol,
		d.theme.Text(message))
}

// Success prints a success message with green checkmark
func (d *Display) Success(message string) {
	d.Status(d.theme.Success(SymbolSuccess), message)
}

// Error prints an error message with red X
func (d *Display) Error(message string) {
	d.Status(d.theme.Error(SymbolError), message)
}

// Warning prints a warning message with yellow triangle
func (d *Display) Warning(message string) {
	d.Status(d.theme.Warning(SymbolWarning), message)
}

// Info prints an info message with cyan indicator
func (d *Display) Info(label, message string) {
	d.Status(d.theme.Info(label+":"), message)
}

// Resume prints a resume message with cyan arrow
func (d *Display) Resume(message string) {
	d.Status(d.theme.Info(SymbolResume), message)
}

// wrapText wraps text to specified width, returns up to maxLines
func (d *Display) wrapText(text string, maxWidth int) []string {
	if maxWidth <= 0 {
		maxWidth = 80
	}

	text = strings.TrimSpace(text)
	if len(text) <= maxWidth {
		return []string{text}
	}

	var lines []string
	words := strings.Fields(text)
	var currentLine strings.Builder

	for _, word := range words {
		if currentLine.Len()+len(word)+1 > maxWidth {
			if currentLine.Len() > 0 {
				lines = append(lines, currentLine.String())
				currentLine.Reset()
			}
		}
		if currentLine.Len() > 0 {
			currentLine.WriteString(" ")
		}
		currentLine.WriteString(word)
	}
	if currentLine.Len() > 0 {
		lines = append(lines, currentLine.String())
	}

	// Limit to 5 lines
	if len(lines) > 5 {
		lines = lines[:5]
		if len(lines[4]) > maxWidth-3 {
			lines[4] = lines[4][:maxWidth-3]
		}
		lines[4] = lines[4] + "..."
	}

	return lines
}

// Agent prints agent output with left gutter indicator, tagged with the
// task it belongs to.
func (d *Display) Agent(id, text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	gutter := d.theme.AgentGutter(GutterAgent)
	tag := d.theme.Dim(fmt.Sprintf("[%s]", id))

	lines := d.wrapText(text, d.termWidth-20)
	for i, line := range lines {
		if i == 0 {
			d.printf("%s%s %s %s %s\n", IndentAgent, gutter, d.theme.Dim(d.timestamp()), tag, d.theme.AgentText(line))
		} else {
			d.printf("%s%s %s%s\n", IndentAgent, d.theme.AgentGutter(GutterDot), strings.Repeat(" ", 11), d.theme.AgentText(line))
		}
	}
}

// SectionBreak prints a horizontal separator for batch or pass boundaries
func (d *Display) SectionBreak() {
	d.println(d.theme.Separator(strings.Repeat(SectionBreak, d.termWidth)))
}

// Iteration prints the pass/batch banner
func (d *Display) Iteration(label string, current, max int) {
	d.SectionBreak()
	if max > 0 {
		d.printf("%s %d/%d\n", d.theme.Bold(label), current, max)
	} else {
		d.printf("%s %d\n", d.theme.Bold(label), current)
	}
	d.SectionBreak()
}

// Row is one label/value line of a summary.
type Row struct {
	Label string
	Value string
}

// Summary prints aligned label/value rows under a bold title
func (d *Display) Summary(title string, rows ...Row) {
	d.printf("\n%s\n", d.theme.Bold(title))
	width := 0
	for _, r := range rows {
		if len(r.Label) > width {
			width = len(r.Label)
		}
	}
	for _, r := range rows {
		d.printf("   %s  %s\n", d.theme.Dim(d.padRight(r.Label+":", width+1)), r.Value)
	}
}

// Phase prints one phase line: status symbol, id, title and optional detail,
// indented by depth.
func (d *Display) Phase(depth int, id types.PhaseID, title string, status types.Status, detail string) {
	indent := strings.Repeat("  ", depth)
	line := fmt.Sprintf("%s%s %s %s", indent, d.StatusSymbol(status), d.theme.Bold(string(id)), title)
	if detail != "" {
		line += " " + d.theme.Dim(detail)
	}
	d.println(line)
}

// StatusSymbol returns the colored symbol for a status
func (d *Display) StatusSymbol(status types.Status) string {
	switch status {
	case types.StatusCompleted:
		return d.theme.Success(SymbolSuccess)
	case types.StatusInProgress:
		return d.theme.Warning(SymbolPartial)
	default:
		return d.theme.Dim(SymbolPending)
	}
}

// ProgressBar renders done/total as a bar of width cells with a percentage
func (d *Display) ProgressBar(done, total, width int) string {
	if width <= 0 {
		width = 20
	}
	pct := 0
	if total > 0 {
		pct = done * 100 / total
	}
	full := pct * width / 100
	bar := d.theme.Success(strings.Repeat(BarFull, full)) + d.theme.Dim(strings.Repeat(BarEmpty, width-full))
	return fmt.Sprintf("%s %3d%% (%d/%d)", bar, pct, done, total)
}

// Duration prints execution duration
func (d *Display) Duration(dur time.Duration) {
	d.printf("   Duration: %s\n", dur.Round(time.Second))
}

// Theme returns the current theme for external use
func (d *Display) Theme() *Theme {
	return d.theme
}

// padRight pads a string to the specified width
func (d *Display) padRight(s string, width int) string {
	if width <= 0 {
		return ""
	}
	if len(s) >= width {
		return s[:width]
	}
	return s + strings.Repeat(" ", width-len(s))
}

// Truncate truncates text to max length with ellipsis
func Truncate(s string, max int) string {
	s = CleanText(s)
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}

// CleanText removes newlines and collapses spaces
func CleanText(s string) string {
	s = strings.ReplaceAll(s, "\n", " ")
	for strings.Contains(s, "  ") {
		s = strings.ReplaceAll(s, "  ", " ")
	}
	return strings.TrimSpace(s)
}
