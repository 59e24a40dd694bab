package components

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/shopspring/decimal"
)

// ExecutionRow represents one terminal execution in the list.
type ExecutionRow struct {
	Timestamp string
	Symbol    string
	State     string
	PnLUSD    decimal.Decimal
	Err       string
	Done      bool
}

// ExecutionsComponent renders the execution results table, newest first.
type ExecutionsComponent struct {
	rows    []ExecutionRow
	maxRows int
}

// NewExecutionsComponent creates a new executions component.
func NewExecutionsComponent(maxRows int) *ExecutionsComponent {
	return &ExecutionsComponent{
		rows:    make([]ExecutionRow, 0),
		maxRows: maxRows,
	}
}

// Add prepends an execution to the list.
func (e *ExecutionsComponent) Add(row ExecutionRow) {
	e.rows = append([]ExecutionRow{row}, e.rows...)
	if len(e.rows) > e.maxRows {
		e.rows = e.rows[:e.maxRows]
	}
}

// Clear empties the list.
func (e *ExecutionsComponent) Clear() {
	e.rows = make([]ExecutionRow, 0)
}

// View renders the executions component.
func (e *ExecutionsComponent) View() string {
	headerStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7C3AED"))
	doneStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#10B981"))
	failedStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444"))

	if len(e.rows) == 0 {
		return headerStyle.Render("EXECUTIONS") + "\n\nNo executions yet..."
	}

	result := headerStyle.Render("EXECUTIONS") + "\n"

	for _, row := range e.rows {
		if row.Done {
			result += fmt.Sprintf("  %s %s  %s  %s\n",
				row.Timestamp, row.Symbol,
				doneStyle.Render("✓ DONE"),
				pnlString(row.PnLUSD))
			continue
		}
		detail := row.State
		if row.Err != "" {
			detail += ": " + row.Err
		}
		result += fmt.Sprintf("  %s %s  %s  %s\n",
			row.Timestamp, row.Symbol,
			failedStyle.Render("✗ FAILED"),
			truncate(detail, 44))
	}

	return result
}

func pnlString(pnl decimal.Decimal) string {
	s := fmt.Sprintf("$%.4f", pnl.InexactFloat64())
	if pnl.IsNegative() {
		return lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444")).Render(s)
	}
	return lipgloss.NewStyle().Foreground(lipgloss.Color("#10B981")).Render(s)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-1] + "…"
}
