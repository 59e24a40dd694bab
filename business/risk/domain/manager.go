package domain

import (
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fd1az/arb-engine/internal/apperror"
)

// Limits are the operator-configured risk caps.
type Limits struct {
	MaxTradeUSD        decimal.Decimal
	MaxTradePctCapital decimal.Decimal
	MaxDailyLossUSD    decimal.Decimal
	MaxDrawdownPct     decimal.Decimal
	MaxConsecLosses    int
	MaxTradesPerHour   int
	StartingCapitalUSD decimal.Decimal
}

// Manager enforces the configured limits against running PnL state. The
// daily loss counter resets at UTC midnight.
type Manager struct {
	mu     sync.Mutex
	limits Limits

	capital      decimal.Decimal
	peak         decimal.Decimal
	dailyPnL     decimal.Decimal
	day          time.Time
	consecLosses int
	trades       []time.Time
}

// NewManager seeds capital and peak from the configured starting capital.
func NewManager(limits Limits) *Manager {
	return &Manager{
		limits:  limits,
		capital: limits.StartingCapitalUSD,
		peak:    limits.StartingCapitalUSD,
		day:     utcDay(time.Now()),
	}
}

// Approve checks every cap against a proposed trade. It does not consume
// the hourly budget; callers register the trade with RegisterTrade once
// every later gate has also passed.
func (m *Manager) Approve(tradeValueUSD decimal.Decimal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rollover(time.Now())

	if tradeValueUSD.GreaterThan(m.limits.MaxTradeUSD) {
		return riskVeto(fmt.Sprintf("trade %s exceeds per-trade cap %s",
			tradeValueUSD.StringFixed(2), m.limits.MaxTradeUSD.StringFixed(2)))
	}

	pctCap := m.capital.Mul(m.limits.MaxTradePctCapital).Div(hundred)
	if tradeValueUSD.GreaterThan(pctCap) {
		return riskVeto(fmt.Sprintf("trade %s exceeds %s%% of capital %s",
			tradeValueUSD.StringFixed(2), m.limits.MaxTradePctCapital, m.capital.StringFixed(2)))
	}

	if m.dailyPnL.LessThanOrEqual(m.limits.MaxDailyLossUSD.Neg()) {
		return riskVeto(fmt.Sprintf("daily loss %s hit the cap %s",
			m.dailyPnL.StringFixed(2), m.limits.MaxDailyLossUSD.StringFixed(2)))
	}

	if m.peak.IsPositive() {
		drawdown := m.peak.Sub(m.capital).Div(m.peak).Mul(hundred)
		if drawdown.GreaterThanOrEqual(m.limits.MaxDrawdownPct) {
			return riskVeto(fmt.Sprintf("drawdown %s%% from peak %s hit the cap %s%%",
				drawdown.StringFixed(1), m.peak.StringFixed(2), m.limits.MaxDrawdownPct))
		}
	}

	if m.consecLosses >= m.limits.MaxConsecLosses {
		return riskVeto(fmt.Sprintf("%d consecutive losses", m.consecLosses))
	}

	if m.tradesLastHourLocked(time.Now()) >= m.limits.MaxTradesPerHour {
		return riskVeto(fmt.Sprintf("trades per hour cap %d reached", m.limits.MaxTradesPerHour))
	}

	return nil
}

// RegisterTrade counts an admitted trade against the hourly window.
func (m *Manager) RegisterTrade() {
	m.mu.Lock()
	m.trades = append(m.trades, time.Now())
	m.mu.Unlock()
}

// RecordResult applies a realized PnL to capital, peak, daily, and streak
// tracking.
func (m *Manager) RecordResult(netPnlUSD decimal.Decimal) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rollover(time.Now())

	m.capital = m.capital.Add(netPnlUSD)
	if m.capital.GreaterThan(m.peak) {
		m.peak = m.capital
	}
	m.dailyPnL = m.dailyPnL.Add(netPnlUSD)

	if netPnlUSD.IsNegative() {
		m.consecLosses++
	} else {
		m.consecLosses = 0
	}
}

// CapitalUSD returns current capital.
func (m *Manager) CapitalUSD() decimal.Decimal {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.capital
}

// DailyPnL returns today's realized PnL.
func (m *Manager) DailyPnL() decimal.Decimal {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rollover(time.Now())
	return m.dailyPnL
}

// TradesLastHour counts trades registered in the past hour.
func (m *Manager) TradesLastHour() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tradesLastHourLocked(time.Now())
}

func (m *Manager) tradesLastHourLocked(now time.Time) int {
	cutoff := now.Add(-time.Hour)
	// Prune while counting; timestamps are appended in order.
	i := 0
	for i < len(m.trades) && m.trades[i].Before(cutoff) {
		i++
	}
	m.trades = m.trades[i:]
	return len(m.trades)
}

func (m *Manager) rollover(now time.Time) {
	if day := utcDay(now); day.After(m.day) {
		m.day = day
		m.dailyPnL = decimal.Zero
	}
}

func utcDay(t time.Time) time.Time {
	y, mo, d := t.UTC().Date()
	return time.Date(y, mo, d, 0, 0, 0, 0, time.UTC)
}

func riskVeto(reason string) error {
	return apperror.New(apperror.CodeRiskVeto, apperror.WithContext(reason))
}
