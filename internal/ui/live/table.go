package live

import (
	"time"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/lipgloss"
)

// defaultColumns returns the table layout for narrow terminals.
func defaultColumns() []table.Column {
	return columnsForWidth(80)
}

// columnsForWidth gives the detail column whatever width remains.
func columnsForWidth(width int) []table.Column {
	fixed := []table.Column{
		{Title: "Call", Width: 16},
		{Title: "Servant", Width: 8},
		{Title: "Status", Width: 12},
		{Title: "Elapsed", Width: 9},
	}
	used := 0
	for _, col := range fixed {
		used += col.Width + 2
	}
	return append(fixed, table.Column{Title: "Detail", Width: max(width-used, 10)})
}

// tableStyles returns table styles for the UI.
func tableStyles(noColor bool) table.Styles {
	if noColor {
		return table.DefaultStyles()
	}
	styles := table.DefaultStyles()
	styles.Header = styles.Header.Foreground(lipgloss.Color("252"))
	return styles
}

// rowsForState converts UI state into table rows.
func rowsForState(state State, now time.Time, noColor bool) []table.Row {
	rows := make([]table.Row, 0, len(state.Rows))
	for _, row := range state.Rows {
		rows = append(rows, table.Row{
			row.Name,
			formatServant(row.Servant),
			stylizeStatus(string(row.Status), row.Status, noColor),
			formatRowDuration(row, now),
			formatDetail(row),
		})
	}
	return rows
}
