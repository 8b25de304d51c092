package live

import (
	"time"

	"github.com/charmbracelet/lipgloss"
)

// renderHeader renders the batch header line.
func renderHeader(state State, now time.Time, noColor bool) string {
	line := "Batch " + state.BatchID
	if !state.StartedAt.IsZero() {
		line += " | Elapsed: " + now.Sub(state.StartedAt).Round(100*time.Millisecond).String()
	}
	if state.Finished {
		line += " | finished"
	}
	return stylize(line, noColor, lipgloss.Color("33"))
}

// renderGateway renders the gateway snapshot line.
func renderGateway(state State, noColor bool) string {
	if !state.HasGateway {
		return ""
	}
	return stylize(formatGateway(state.Gateway), noColor, gatewayColor(state.Gateway))
}

// renderLeases renders the per-core lease bars.
func renderLeases(state State, noColor bool) string {
	if !state.HasGateway {
		return ""
	}
	return stylize(formatLeases(state.Gateway.Cores), noColor, lipgloss.Color("66"))
}

// renderSummary renders the status counts line.
func renderSummary(state State, noColor bool) string {
	counts := state.Counts
	line := "Queued: " + fmtInt(counts.Queued) +
		" Running: " + fmtInt(counts.Running) +
		" Done: " + fmtInt(counts.Done) + "/" + fmtInt(len(state.Rows)) +
		" OK: " + fmtInt(counts.OK) +
		" Timeout: " + fmtInt(counts.Timeout) +
		" Error: " + fmtInt(counts.Error) +
		" Unavailable: " + fmtInt(counts.Unavailable)
	return stylize(line, noColor, lipgloss.Color("242"))
}

// renderFooter renders the last event line and the quit hint.
func renderFooter(state State, noColor bool) string {
	line := "q: stop waiting"
	if state.LastEvent != "" {
		line = "Last event: " + state.LastEvent + " | " + line
	}
	return stylize(line, noColor, lipgloss.Color("244"))
}

// stylize applies optional color styling.
func stylize(text string, noColor bool, color lipgloss.Color) string {
	if noColor {
		return text
	}
	return lipgloss.NewStyle().Foreground(color).Render(text)
}
