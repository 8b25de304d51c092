package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// uiModeDecision captures how run renders its progress.
type uiModeDecision struct {
	useLive bool
	noColor bool
	warning string
}

// isTerminal reports whether a writer is a TTY.
var isTerminal = defaultIsTerminal

// getenv reads the environment; tests replace it.
var getenv = os.Getenv

// resolveUIMode decides between the live view and plain result lines.
// Verbose runs stay plain so log lines are not drawn over.
func resolveUIMode(mode string, verbose bool, stdout io.Writer) (uiModeDecision, error) {
	normalized := strings.ToLower(strings.TrimSpace(mode))
	if normalized == "" {
		normalized = "auto"
	}
	decision := uiModeDecision{noColor: colorDisabled()}
	switch normalized {
	case "auto":
		decision.useLive = !verbose && isTerminal(stdout)
	case "live":
		switch {
		case verbose:
			decision.warning = "Live UI is disabled with --verbose; using plain output."
		case !isTerminal(stdout):
			decision.warning = "Live UI requested but stdout is not a TTY; falling back to plain output."
		default:
			decision.useLive = true
		}
	case "plain":
	default:
		return uiModeDecision{}, fmt.Errorf("invalid ui mode %q (expected auto|live|plain)", mode)
	}
	return decision, nil
}

// colorDisabled honors NO_COLOR and dumb terminals.
func colorDisabled() bool {
	if getenv("NO_COLOR") != "" {
		return true
	}
	return getenv("TERM") == "dumb"
}

// defaultIsTerminal inspects stdout for TTY support.
func defaultIsTerminal(stdout io.Writer) bool {
	if stdout == nil {
		return false
	}
	if file, ok := stdout.(*os.File); ok {
		return term.IsTerminal(int(file.Fd()))
	}
	if fder, ok := stdout.(interface{ Fd() uintptr }); ok {
		return term.IsTerminal(int(fder.Fd()))
	}
	return false
}
