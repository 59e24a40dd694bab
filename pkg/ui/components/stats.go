package components

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/shopspring/decimal"
)

// Stats holds loop statistics for display.
type Stats struct {
	Ticks          uint64
	Signals        int64
	Executions     int64
	Wins           int64
	BreakerState   string
	CapitalUSD     decimal.Decimal
	DailyPnL       decimal.Decimal
	CumulativePnL  decimal.Decimal
	TradesLastHour int
}

// StatsComponent renders loop statistics.
type StatsComponent struct {
	stats Stats
}

// NewStatsComponent creates a new stats component.
func NewStatsComponent() *StatsComponent {
	return &StatsComponent{}
}

// Update replaces the statistics.
func (s *StatsComponent) Update(stats Stats) {
	s.stats = stats
}

// View renders the stats component.
func (s *StatsComponent) View() string {
	style := lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))
	valueStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#FFFFFF")).Bold(true)
	dangerStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444")).Bold(true)

	winRate := float64(0)
	if s.stats.Executions > 0 {
		winRate = float64(s.stats.Wins) / float64(s.stats.Executions) * 100
	}

	breaker := valueStyle.Render(s.stats.BreakerState)
	if s.stats.BreakerState == "open" {
		breaker = dangerStyle.Render(s.stats.BreakerState)
	}

	return style.Render("STATS") + "\n" +
		fmt.Sprintf("Ticks: %s  │  Signals: %s  │  Executions: %s  │  Wins: %s (%.1f%%)\n",
			valueStyle.Render(fmt.Sprintf("%d", s.stats.Ticks)),
			valueStyle.Render(fmt.Sprintf("%d", s.stats.Signals)),
			valueStyle.Render(fmt.Sprintf("%d", s.stats.Executions)),
			valueStyle.Render(fmt.Sprintf("%d", s.stats.Wins)),
			winRate,
		) +
		fmt.Sprintf("Capital: %s  │  Daily: %s  │  Total PnL: %s  │  Breaker: %s  │  Trades/h: %s",
			valueStyle.Render("$"+s.stats.CapitalUSD.StringFixed(2)),
			valueStyle.Render("$"+s.stats.DailyPnL.StringFixed(2)),
			valueStyle.Render("$"+s.stats.CumulativePnL.StringFixed(4)),
			breaker,
			valueStyle.Render(fmt.Sprintf("%d", s.stats.TradesLastHour)),
		)
}
