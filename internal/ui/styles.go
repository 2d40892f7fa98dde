// Package ui renders CLI output with optional ANSI 256-color styling.
package ui

import (
	"fmt"

	"github.com/alfredjeanlab/evreg/internal/model"
)

// ANSI 256 color codes.
const (
	colorAccent = 74  // blue
	colorMuted  = 245 // gray
	colorOK     = 114 // green
	colorWarn   = 179 // amber
	colorError  = 203 // red
)

var noColor bool

func paint(color int, s string) string {
	if noColor {
		return s
	}
	return fmt.Sprintf("\x1b[38;5;%dm%s\x1b[0m", color, s)
}

// RenderAccent returns s in the accent color.
func RenderAccent(s string) string { return paint(colorAccent, s) }

// RenderMuted returns s in the muted color.
func RenderMuted(s string) string { return paint(colorMuted, s) }

// RenderStatus colors an event status: available green, full red.
func RenderStatus(s model.Status) string {
	if s == model.StatusFull {
		return paint(colorError, s.String())
	}
	return paint(colorOK, s.String())
}

// RenderCode colors a rejection code. Capacity and duplicate refusals are
// warnings; everything else is an error.
func RenderCode(c model.Code) string {
	switch c {
	case model.CodeEventFull, model.CodeInsufficientCapacity, model.CodeDuplicateRegistration:
		return paint(colorWarn, c.String())
	}
	return paint(colorError, c.String())
}

// SetColor enables or disables color output globally.
func SetColor(enabled bool) {
	noColor = !enabled
}
