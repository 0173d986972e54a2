package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Box rendering constants.
const (
	boxWidth      = 48
	labelColumn   = 16
	bytesPerKiB   = 1024
	byteUnitsSpan = "KMGTPE"
)

// printer formats counts with thousands separators.
var printer = message.NewPrinter(language.English) //nolint:gochecknoglobals // Stateless formatter.

func boxBorderColor() lipgloss.Color { return lipgloss.Color("240") }
func boxTitleColor() lipgloss.Color  { return lipgloss.Color("39") }
func cachedColor() lipgloss.Color    { return lipgloss.Color("42") }
func analyzedColor() lipgloss.Color  { return lipgloss.Color("214") }
func failedColor() lipgloss.Color    { return lipgloss.Color("196") }

// isWriterTerminal reports whether w is a terminal. Non-file writers, such
// as test buffers, never are.
func isWriterTerminal(w io.Writer) bool {
	if f, ok := w.(*os.File); ok {
		return isTerminal(f)
	}
	return false
}

// field is one label/value row of a summary box.
type field struct {
	label string
	value string
}

// renderFields writes fields under title, boxed on a terminal and as aligned
// plain text otherwise.
func renderFields(w io.Writer, title string, fields []field) error {
	if !isWriterTerminal(w) {
		for _, f := range fields {
			if _, err := fmt.Fprintf(w, "%-*s %s\n", labelColumn, f.label+":", f.value); err != nil {
				return err
			}
		}
		return nil
	}

	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(boxTitleColor())
	labelStyle := lipgloss.NewStyle().Bold(true).Width(labelColumn)
	borderStyle := lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(boxBorderColor()).
		Padding(0, 1).
		Width(boxWidth)

	var content strings.Builder
	content.WriteString(titleStyle.Render(title))
	for _, f := range fields {
		content.WriteString("\n")
		content.WriteString(labelStyle.Render(f.label))
		content.WriteString(f.value)
	}

	_, err := fmt.Fprintln(w, borderStyle.Render(content.String()))
	return err
}

// writeJSON writes v as indented JSON followed by a newline.
func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// formatCount renders n with thousands separators.
func formatCount[T ~int | ~int64 | ~uint64](n T) string {
	return printer.Sprintf("%d", n)
}

// formatBytes renders n using binary units, e.g. "1.5 KiB".
func formatBytes(n int64) string {
	if n < bytesPerKiB {
		return printer.Sprintf("%d B", n)
	}
	div, exp := int64(bytesPerKiB), 0
	for m := n / bytesPerKiB; m >= bytesPerKiB; m /= bytesPerKiB {
		div *= bytesPerKiB
		exp++
	}
	return printer.Sprintf("%.1f %siB", float64(n)/float64(div), byteUnitsSpan[exp:exp+1])
}
