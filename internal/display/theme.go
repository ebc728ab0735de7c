package display

import (
	"fmt"

	"github.com/fatih/color"
)

// Box drawing characters
const (
	BoxTopLeft     = "┌"
	BoxTopRight    = "┐"
	BoxBottomLeft  = "└"
	BoxBottomRight = "┘"
	BoxHorizontal  = "─"
	BoxVertical    = "│"
	SectionBreak   = "━"
)

// Status symbols
const (
	SymbolSuccess = "✓"
	SymbolError   = "✗"
	SymbolWarning = "⚠"
	SymbolResume  = "↻"
	SymbolPending = "○"
	SymbolPartial = "◐"
)

// Gutters for agent output
const (
	GutterAgent = "▌"
	GutterDot   = "·"
)

// Progress bar cells
const (
	BarFull  = "█"
	BarEmpty = "░"
)

// IndentAgent is the indentation for agent output
const IndentAgent = "  "

// Theme holds all color functions for consistent styling
type Theme struct {
	// gass orchestration (prominent)
	Border func(a ...interface{}) string
	Label  func(a ...interface{}) string
	Text   func(a ...interface{}) string

	// Agent output (subdued)
	AgentGutter func(a ...interface{}) string
	AgentText   func(a ...interface{}) string

	// Status indicators
	Success func(a ...interface{}) string
	Error   func(a ...interface{}) string
	Warning func(a ...interface{}) string
	Info    func(a ...interface{}) string

	// Structural elements
	Bold      func(a ...interface{}) string
	Dim       func(a ...interface{}) string
	Separator func(a ...interface{}) string
}

// DefaultTheme creates the default color theme
func DefaultTheme() *Theme {
	return &Theme{
		// Orchestration - bright cyan for visibility
		Border: color.New(color.FgCyan).SprintFunc(),
		Label:  color.New(color.FgCyan, color.Bold).SprintFunc(),
		Text:   color.New(color.FgWhite).SprintFunc(),

		// Agent output - dimmer to distinguish it from orchestration
		AgentGutter: color.New(color.FgHiBlack).SprintFunc(),
		AgentText:   color.New(color.FgWhite).SprintFunc(),

		// Status indicators
		Success: color.New(color.FgGreen).SprintFunc(),
		Error:   color.New(color.FgRed).SprintFunc(),
		Warning: color.New(color.FgYellow).SprintFunc(),
		Info:    color.New(color.FgCyan).SprintFunc(),

		// Structural
		Bold:      color.New(color.Bold).SprintFunc(),
		Dim:       color.New(color.FgHiBlack).SprintFunc(),
		Separator: color.New(color.FgCyan).SprintFunc(),
	}
}

// NoColorTheme creates a theme without colors (for --no-color flag or non-TTY)
func NoColorTheme() *Theme {
	identity := func(a ...interface{}) string {
		if len(a) == 0 {
			return ""
		}
		if s, ok := a[0].(string); ok {
			return s
		}
		return fmt.Sprint(a...)
	}
	return &Theme{
		Border:      identity,
		Label:       identity,
		Text:        identity,
		AgentGutter: identity,
		AgentText:   identity,
		Success:     identity,
		Error:       identity,
		Warning:     identity,
		Info:        identity,
		Bold:        identity,
		Dim:         identity,
		Separator:   identity,
	}
}
