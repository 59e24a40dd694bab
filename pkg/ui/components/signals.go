// Package components provides reusable TUI components.
package components

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/shopspring/decimal"
)

// SignalRow represents one admitted signal in the list.
type SignalRow struct {
	Timestamp string
	Symbol    string
	Direction string
	SpreadBps decimal.Decimal
	NetUSD    decimal.Decimal
	Score     float64
}

// SignalsComponent renders the recent-signals table, newest first.
type SignalsComponent struct {
	rows    []SignalRow
	maxRows int
}

// NewSignalsComponent creates a new signals component.
func NewSignalsComponent(maxRows int) *SignalsComponent {
	return &SignalsComponent{
		rows:    make([]SignalRow, 0),
		maxRows: maxRows,
	}
}

// Add prepends a signal to the list.
func (s *SignalsComponent) Add(row SignalRow) {
	s.rows = append([]SignalRow{row}, s.rows...)
	if len(s.rows) > s.maxRows {
		s.rows = s.rows[:s.maxRows]
	}
}

// Clear empties the list.
func (s *SignalsComponent) Clear() {
	s.rows = make([]SignalRow, 0)
}

// View renders the signals component.
func (s *SignalsComponent) View() string {
	headerStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7C3AED"))

	if len(s.rows) == 0 {
		return headerStyle.Render("SIGNALS") + "\n\nNo signals yet..."
	}

	result := headerStyle.Render("SIGNALS") + "\n"
	result += "┌──────────┬──────────┬──────────────────┬─────────┬─────────┬───────┐\n"
	result += "│   Time   │   Pair   │    Direction     │ Spread  │   Net   │ Score │\n"
	result += "├──────────┼──────────┼──────────────────┼─────────┼─────────┼───────┤\n"

	for _, row := range s.rows {
		result += fmt.Sprintf("│ %-8s │ %-8s │ %-16s │%8s │%8s │%6.1f │\n",
			row.Timestamp,
			row.Symbol,
			row.Direction,
			fmt.Sprintf("%+.1fbp", row.SpreadBps.InexactFloat64()),
			fmt.Sprintf("$%.2f", row.NetUSD.InexactFloat64()),
			row.Score,
		)
	}

	result += "└──────────┴──────────┴──────────────────┴─────────┴─────────┴───────┘"
	return result
}
