package outwriter

import (
	"os"

	"golang.org/x/term"
)

// messageWidth returns how many characters of free text fit in the last table column.
// fixed is the width already taken by the other columns.
func messageWidth(opts Options, fixed int) int {
	termWidth := opts.Width
	if termWidth == 0 {
		detected, _, err := term.GetSize(int(os.Stdout.Fd()))
		if err != nil || detected <= 0 {
			termWidth = 80 // CI and pipes
		} else {
			termWidth = detected
		}
	}

	// Borders and padding
	available := termWidth - fixed - 20
	if available < 20 {
		return 20
	}
	if available > 80 {
		return 80
	}
	return available
}
