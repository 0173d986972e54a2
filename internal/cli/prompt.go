package cli

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// PromptResult contains the result of a user prompt interaction.
type PromptResult struct {
	// Accepted is true if the user typed "y" or "yes".
	Accepted bool
	// Cancelled is true if reading input failed.
	Cancelled bool
}

// ConfirmClear asks whether every cached result under dir may be deleted.
// It returns immediately with Accepted=false when interactive is false.
//
// The prompt defaults to "No" when the user presses Enter without input.
// Valid inputs: "y", "Y", "yes", "Yes", "YES" for acceptance; anything else declines.
func ConfirmClear(writer io.Writer, reader io.Reader, interactive bool, dir string, entries int) PromptResult {
	if !interactive {
		return PromptResult{Accepted: false}
	}

	fmt.Fprintf(writer, "? Delete %s cached results in %s? [y/N] ", formatCount(entries), dir)

	scanner := bufio.NewScanner(reader)
	if !scanner.Scan() {
		if scanner.Err() != nil {
			return PromptResult{Cancelled: true}
		}
		// EOF without error (Ctrl+D) declines.
		return PromptResult{Accepted: false}
	}

	switch strings.ToLower(strings.TrimSpace(scanner.Text())) {
	case "y", "yes":
		return PromptResult{Accepted: true}
	default:
		return PromptResult{Accepted: false}
	}
}
