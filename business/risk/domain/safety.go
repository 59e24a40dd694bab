package domain

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/fd1az/arb-engine/internal/apperror"
)

// Hard floors the operator cannot raise through configuration. These bound
// the configurable limits from above.
var (
	safetyMaxTradeUSD     = decimal.NewFromInt(25)
	safetyMaxDailyLossUSD = decimal.NewFromInt(20)
	safetyMinCapitalUSD   = decimal.NewFromInt(50)
)

const safetyMaxTradesPerHour = 30

// SafetyCheck is the last gate before execution. A failure here means the
// account state is outside the envelope the system was built for, and the
// caller must stop trading.
type SafetyCheck struct{}

// NewSafetyCheck creates the check.
func NewSafetyCheck() *SafetyCheck {
	return &SafetyCheck{}
}

// Check returns a SAFETY_VETO error when any hard floor is breached.
func (s *SafetyCheck) Check(tradeValueUSD, dailyPnL, capitalUSD decimal.Decimal, tradesLastHour int) error {
	switch {
	case tradeValueUSD.GreaterThan(safetyMaxTradeUSD):
		return safetyVeto(fmt.Sprintf("trade %s breaches the %s hard cap",
			tradeValueUSD.StringFixed(2), safetyMaxTradeUSD))
	case dailyPnL.LessThan(safetyMaxDailyLossUSD.Neg()):
		return safetyVeto(fmt.Sprintf("daily loss %s breaches the -%s hard floor",
			dailyPnL.StringFixed(2), safetyMaxDailyLossUSD))
	case capitalUSD.LessThan(safetyMinCapitalUSD):
		return safetyVeto(fmt.Sprintf("capital %s below the %s hard floor",
			capitalUSD.StringFixed(2), safetyMinCapitalUSD))
	case tradesLastHour > safetyMaxTradesPerHour:
		return safetyVeto(fmt.Sprintf("%d trades in the last hour breaches the hard cap %d",
			tradesLastHour, safetyMaxTradesPerHour))
	}
	return nil
}

func safetyVeto(reason string) error {
	return apperror.New(apperror.CodeSafetyVeto, apperror.WithContext(reason))
}
