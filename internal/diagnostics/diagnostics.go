// Package diagnostics prints the driver's single-line fatal diagnostic and
// non-fatal warnings, colorized the way the teacher's debugger/exec output
// colorizes terminal text: one color.Color per semantic purpose.
package diagnostics

import (
	"fmt"
	"os"

	"github.com/fatih/color"
)

var (
	colorFatal   = color.New(color.FgRed, color.Bold)
	colorWarning = color.New(color.FgYellow)
)

// Fatal prints one colorized diagnostic line to stderr. The driver calls
// this exactly once, for the single error that aborted the link, then exits
// non-zero (spec.md §7: "surfaces... logs one diagnostic line and exits").
func Fatal(err error) {
	colorFatal.Fprintf(os.Stderr, "staticld: %s\n", err)
}

// Warn prints one colorized, non-fatal warning line to stderr (unresolved
// -l, unrecognized section kind, ...).
func Warn(format string, args ...any) {
	colorWarning.Fprintf(os.Stderr, "staticld: warning: %s\n", fmt.Sprintf(format, args...))
}
