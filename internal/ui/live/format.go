package live

import (
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"quotagate/pkg/gateway"
)

const leaseBarWidth = 5

// fmtInt converts an int to string.
func fmtInt(value int) string {
	return strconv.Itoa(value)
}

// formatServant renders the servant column.
func formatServant(servant int) string {
	if servant < 0 {
		return ""
	}
	return "#" + fmtInt(servant)
}

// formatDetail renders the status code or the truncated error of a row.
func formatDetail(row CallRow) string {
	if row.Error != "" {
		normalized := strings.Join(strings.Fields(row.Error), " ")
		const limit = 60
		if len(normalized) > limit {
			return normalized[:limit-3] + "..."
		}
		return normalized
	}
	return row.Code
}

// formatRowDuration returns elapsed or total time for a row.
func formatRowDuration(row CallRow, now time.Time) string {
	if !row.FinishedAt.IsZero() && !row.StartedAt.IsZero() {
		return formatDuration(row.FinishedAt.Sub(row.StartedAt))
	}
	if !row.StartedAt.IsZero() {
		return formatDuration(now.Sub(row.StartedAt))
	}
	return ""
}

// formatGateway renders the gateway snapshot line.
func formatGateway(snap gateway.Snapshot) string {
	state := snap.State.String()
	if snap.State == gateway.StateOk && snap.SubState == gateway.SubSynchronizing {
		state += "/" + snap.SubState.String()
	}
	if snap.SwitchPending {
		state += " (switching)"
	}
	capacity := 0
	for _, core := range snap.Cores {
		capacity += core.Capacity
	}
	line := "Gateway " + state + " | Left: " + fmtInt(snap.Left()) + "/" + fmtInt(capacity)
	if snap.SyncMiss > 0 {
		line += " | Miss: " + fmtInt(snap.SyncMiss)
	}
	if policy := formatPolicy(snap.Policy); policy != "" {
		line += " | Runs: " + policy
	}
	return line
}

// formatLeases renders one small bar per core, filled by tokens left.
func formatLeases(cores []gateway.CoreSnapshot) string {
	if len(cores) == 0 {
		return ""
	}
	parts := make([]string, 0, len(cores))
	for _, core := range cores {
		parts = append(parts, strconv.Itoa(core.Index)+"["+leaseBar(core.Left, core.Capacity, leaseBarWidth)+"]")
	}
	return "Leases: " + strings.Join(parts, " ")
}

// leaseBar draws left/capacity in width cells.
func leaseBar(left, capacity, width int) string {
	if capacity <= 0 || width <= 0 {
		return strings.Repeat(" ", max(width, 0))
	}
	filled := min(max(left, 0)*width/capacity, width)
	if left > 0 && filled == 0 {
		filled = 1
	}
	return strings.Repeat("#", filled) + strings.Repeat(".", width-filled)
}

// formatPolicy renders non-zero policy run counters in a stable order.
func formatPolicy(counters map[string][]int) string {
	families := make([]string, 0, len(counters))
	for family := range counters {
		families = append(families, family)
	}
	slices.Sort(families)
	var parts []string
	for _, family := range families {
		for i, count := range counters[family] {
			if count > 0 {
				parts = append(parts, family+"["+fmtInt(i)+"]="+fmtInt(count))
			}
		}
	}
	return strings.Join(parts, " ")
}

// stylizeStatus applies status coloring when enabled.
func stylizeStatus(text string, status CallEventType, noColor bool) string {
	if noColor {
		return text
	}
	return statusStyle(status).Render(text)
}

// statusStyle selects a style for a given status.
func statusStyle(status CallEventType) lipgloss.Style {
	color := lipgloss.Color("244")
	switch status {
	case CallOK:
		color = lipgloss.Color("42")
	case CallTimeout:
		color = lipgloss.Color("220")
	case CallError, CallUnavailable:
		color = lipgloss.Color("196")
	case CallRunning:
		color = lipgloss.Color("33")
	case CallQueued:
		color = lipgloss.Color("246")
	}
	return lipgloss.NewStyle().Foreground(color)
}

// gatewayColor picks the header color for a gateway state.
func gatewayColor(snap gateway.Snapshot) lipgloss.Color {
	switch {
	case snap.State == gateway.StateUnavailable:
		return lipgloss.Color("196")
	case snap.SubState == gateway.SubSynchronizing:
		return lipgloss.Color("39")
	default:
		return lipgloss.Color("42")
	}
}
