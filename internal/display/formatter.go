package display

import (
	"fmt"
	"strings"
	"time"
)

// Formatting constants for consistent output across the CLI.
const (
	IndentOne = "  "

	// keyWidth aligns KeyValue output.
	keyWidth = 12
)

// SeparatorLine underlines section titles.
var SeparatorLine = strings.Repeat("─", 60)

// TimestampFormat is the standard timestamp format for CLI output.
const TimestampFormat = "2006-01-02 15:04:05"

// Formatter provides consistent output formatting.
type Formatter struct {
	indentLevel int
}

// NewFormatter creates a new formatter with default settings.
func NewFormatter() *Formatter {
	return &Formatter{}
}

// SetIndent sets the current indentation level.
func (f *Formatter) SetIndent(level int) *Formatter {
	f.indentLevel = level

	return f
}

// Indent returns the current indentation string.
func (f *Formatter) Indent() string {
	return strings.Repeat(IndentOne, f.indentLevel)
}

// Section formats a section header.
func (f *Formatter) Section(title string) string {
	if title == "" {
		return fmt.Sprintf("\n%s\n", SeparatorLine)
	}

	return fmt.Sprintf("\n%s\n%s\n", Bold(title), SeparatorLine)
}

// KeyValue formats a key-value pair with consistent alignment.
func (f *Formatter) KeyValue(key, value string) string {
	return fmt.Sprintf("%s%-*s %s\n", f.Indent(), keyWidth, key+":", value)
}

// List formats a numbered list.
func (f *Formatter) List(items []string) string {
	var sb strings.Builder
	for i, item := range items {
		fmt.Fprintf(&sb, "%s%s %s\n", f.Indent(), Muted(fmt.Sprintf("%d.", i+1)), item)
	}

	return sb.String()
}

// Timestamp formats a time.Time using the standard format.
func (f *Formatter) Timestamp(t time.Time) string {
	return t.Local().Format(TimestampFormat)
}

// Truncate truncates a string to a maximum length, adding "..." if truncated.
func (f *Formatter) Truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return "..."
	}

	return s[:maxLen-3] + "..."
}

// Table formats a simple table with headers.
func (f *Formatter) Table(headers []string, rows [][]string) string {
	var sb strings.Builder

	colWidths := make([]int, len(headers))
	for i, h := range headers {
		colWidths[i] = len(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if i < len(colWidths) && len(cell) > colWidths[i] {
				colWidths[i] = len(cell)
			}
		}
	}

	pad := func(cells []string) string {
		out := make([]string, len(cells))
		for i, cell := range cells {
			if i < len(colWidths) && i < len(cells)-1 {
				cell = fmt.Sprintf("%-*s", colWidths[i], cell)
			}
			out[i] = cell
		}

		return f.Indent() + strings.Join(out, "  ")
	}

	sb.WriteString(Bold(pad(headers)))
	sb.WriteString("\n")

	separators := make([]string, len(colWidths))
	for i, w := range colWidths {
		separators[i] = strings.Repeat("─", w)
	}
	sb.WriteString(Muted(f.Indent() + strings.Join(separators, "  ")))
	sb.WriteString("\n")

	for _, row := range rows {
		sb.WriteString(pad(row))
		sb.WriteString("\n")
	}

	return sb.String()
}

// Section formats a section header.
func Section(title string) string {
	return NewFormatter().Section(title)
}

// KeyValue formats a key-value pair.
func KeyValue(key, value string) string {
	return NewFormatter().KeyValue(key, value)
}
