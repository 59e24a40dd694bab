package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	signalDomain "github.com/fd1az/arb-engine/business/signal/domain"
	"github.com/fd1az/arb-engine/internal/apperror"
)

// Spreads past this are treated as bad market data, not opportunity.
var maxSaneSpreadBps = decimal.NewFromInt(500)

const maxSignalAge = 5 * time.Second

// PretradeValidator rejects malformed or stale signals before any risk
// accounting happens.
type PretradeValidator struct{}

// NewPretradeValidator creates a validator.
func NewPretradeValidator() *PretradeValidator {
	return &PretradeValidator{}
}

// Validate returns a PRETRADE_VETO error describing the first failed check.
func (v *PretradeValidator) Validate(sig *signalDomain.Signal) error {
	switch {
	case !sig.CexPrice.IsPositive() || !sig.DexPrice.IsPositive():
		return veto("non-positive price")
	case sig.SpreadBps.GreaterThan(maxSaneSpreadBps):
		return veto(fmt.Sprintf("spread %s bps exceeds sanity bound, likely bad data", sig.SpreadBps.StringFixed(1)))
	case sig.Age() > maxSignalAge:
		return veto(fmt.Sprintf("signal age %s exceeds %s", sig.Age().Round(time.Millisecond), maxSignalAge))
	case !sig.Size.IsPositive():
		return veto("non-positive size")
	}
	return nil
}

func veto(reason string) error {
	return apperror.New(apperror.CodePretradeVeto, apperror.WithContext(reason))
}
