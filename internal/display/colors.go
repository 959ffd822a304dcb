// Package display provides user-friendly formatting for CLI output.
package display

import (
	"fmt"
	"os"
	"sync"

	"github.com/fatih/color"

	"github.com/valksor/go-adw/internal/state"
)

var (
	successColor = color.New(color.FgGreen)
	errorColor   = color.New(color.FgRed)
	warningColor = color.New(color.FgYellow)
	infoColor    = color.New(color.FgBlue)
	mutedColor   = color.New(color.FgHiBlack)
	boldColor    = color.New(color.Bold)
	dimColor     = color.New(color.Faint)
	cyanColor    = color.New(color.FgCyan)
)

var colorMu sync.Mutex

// InitColors applies the --no-color flag and NO_COLOR. Otherwise color
// follows terminal detection.
func InitColors(noColor bool) {
	colorMu.Lock()
	defer colorMu.Unlock()

	if noColor {
		color.NoColor = true

		return
	}
	if _, exists := os.LookupEnv("NO_COLOR"); exists {
		color.NoColor = true
	}
}

// ColorsEnabled returns whether colors are currently enabled.
func ColorsEnabled() bool {
	colorMu.Lock()
	defer colorMu.Unlock()

	return !color.NoColor
}

// SetColorsEnabled allows manual control of color output (useful for testing).
func SetColorsEnabled(enabled bool) {
	colorMu.Lock()
	defer colorMu.Unlock()
	color.NoColor = !enabled
}

// Semantic color functions

// Success formats text as successful (green).
func Success(text string) string {
	return successColor.Sprint(text)
}

// Error formats text as an error (red).
func Error(text string) string {
	return errorColor.Sprint(text)
}

// Warning formats text as a warning (yellow).
func Warning(text string) string {
	return warningColor.Sprint(text)
}

// Info formats text as informational (blue).
func Info(text string) string {
	return infoColor.Sprint(text)
}

// Muted formats text as muted/secondary (gray).
func Muted(text string) string {
	return mutedColor.Sprint(text)
}

// Bold formats text as bold.
func Bold(text string) string {
	return boldColor.Sprint(text)
}

// Dim formats text as dim/faded.
func Dim(text string) string {
	return dimColor.Sprint(text)
}

// Cyan formats text in cyan (used for commands/code).
func Cyan(text string) string {
	return cyanColor.Sprint(text)
}

// Prefixed message helpers

// SuccessPrefix returns a success checkmark prefix.
func SuccessPrefix() string {
	return Success("✓")
}

// ErrorPrefix returns an error X prefix.
func ErrorPrefix() string {
	return Error("✗")
}

// WarningPrefix returns a warning icon prefix.
func WarningPrefix() string {
	return Warning("⚠")
}

// InfoPrefix returns an info arrow prefix.
func InfoPrefix() string {
	return Info("→")
}

// SuccessMsg formats a success message with prefix.
func SuccessMsg(format string, args ...any) string {
	return fmt.Sprintf("%s %s", SuccessPrefix(), fmt.Sprintf(format, args...))
}

// ErrorMsg formats an error message with prefix.
func ErrorMsg(format string, args ...any) string {
	return fmt.Sprintf("%s %s", ErrorPrefix(), Error(fmt.Sprintf(format, args...)))
}

// WarningMsg formats a warning message with prefix.
func WarningMsg(format string, args ...any) string {
	return fmt.Sprintf("%s %s", WarningPrefix(), Warning(fmt.Sprintf(format, args...)))
}

// InfoMsg formats an info message with prefix.
func InfoMsg(format string, args ...any) string {
	return fmt.Sprintf("%s %s", InfoPrefix(), fmt.Sprintf(format, args...))
}

// ColorPhase colors displayName by how far the run has come.
func ColorPhase(p state.Phase, displayName string) string {
	switch p {
	case state.PhaseNone:
		return Muted(displayName)
	case state.PhasePlanned, state.PhaseBuilt, state.PhaseTested:
		return Info(displayName)
	case state.PhaseReviewed:
		return Warning(displayName)
	case state.PhaseDocumented:
		return Success(displayName)
	default:
		return displayName
	}
}
