// Package ui styles terminal output for the airpuck CLI.
package ui

import "fmt"

// ANSI256 color codes.
const (
	colorAccent = 74  // blue
	colorCmd    = 250 // light gray
	colorMuted  = 245 // medium gray
	colorWarn   = 179 // amber
)

var noColor bool

func render(code int, s string) string {
	if noColor || s == "" {
		return s
	}
	return fmt.Sprintf("\x1b[38;5;%dm%s\x1b[0m", code, s)
}

// RenderAccent returns s in the accent (blue) color.
func RenderAccent(s string) string { return render(colorAccent, s) }

// RenderMuted returns s in the muted (gray) color.
func RenderMuted(s string) string { return render(colorMuted, s) }

// RenderCommand returns s styled as a command name (light gray).
func RenderCommand(s string) string { return render(colorCmd, s) }

// RenderWarn returns s in the warning (amber) color.
func RenderWarn(s string) string { return render(colorWarn, s) }

// RenderHeader styles a table header row. Headers are bold accent text.
func RenderHeader(s string) string {
	if noColor || s == "" {
		return s
	}
	return fmt.Sprintf("\x1b[1;38;5;%dm%s\x1b[0m", colorAccent, s)
}

// ForceNoColor disables color output globally.
func ForceNoColor() {
	noColor = true
}

// Init disables color unless ShouldUseColor reports a capable stdout.
func Init() {
	if !ShouldUseColor() {
		ForceNoColor()
	}
}
