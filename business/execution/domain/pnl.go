package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ArbRecord is one completed round trip for PnL accounting. Stored fields
// are the raw facts; the PnL numbers are derived.
type ArbRecord struct {
	ID        string
	Timestamp time.Time
	BuyVenue  string
	SellVenue string
	Symbol    string
	BuyPrice  decimal.Decimal
	SellPrice decimal.Decimal
	Amount    decimal.Decimal
	FeeBuy    decimal.Decimal
	FeeSell   decimal.Decimal
	GasCost   decimal.Decimal
}

// GrossPnL is sell notional minus buy notional.
func (r *ArbRecord) GrossPnL() decimal.Decimal {
	return r.SellPrice.Sub(r.BuyPrice).Mul(r.Amount)
}

// TotalFees sums both legs' fees and gas.
func (r *ArbRecord) TotalFees() decimal.Decimal {
	return r.FeeBuy.Add(r.FeeSell).Add(r.GasCost)
}

// NetPnL is gross minus all fees.
func (r *ArbRecord) NetPnL() decimal.Decimal {
	return r.GrossPnL().Sub(r.TotalFees())
}

// NetPnLBps expresses net PnL against the buy notional, in basis points.
// Zero when the notional is zero.
func (r *ArbRecord) NetPnLBps() decimal.Decimal {
	notional := r.BuyPrice.Mul(r.Amount)
	if notional.IsZero() {
		return decimal.Zero
	}
	return r.NetPnL().Div(notional).Mul(decimal.NewFromInt(10_000))
}

// NewArbRecord builds a record from an execution context.
func NewArbRecord(c *ExecutionContext) *ArbRecord {
	var buy, sell LegFill
	if c.Signal.BuyVenueIsCex() {
		buy, sell = c.legAt(VenueCex), c.legAt(VenueDex)
	} else {
		buy, sell = c.legAt(VenueDex), c.legAt(VenueCex)
	}

	size := c.Signal.Size
	half := feeApproxRate.Div(decimal.NewFromInt(2))
	return &ArbRecord{
		ID:        c.Signal.ID,
		Timestamp: c.FinishedAt,
		BuyVenue:  buy.Venue,
		SellVenue: sell.Venue,
		Symbol:    c.Signal.Pair.Symbol,
		BuyPrice:  buy.Price,
		SellPrice: sell.Price,
		Amount:    size,
		FeeBuy:    size.Mul(c.Leg1.Price).Mul(half),
		FeeSell:   size.Mul(c.Leg1.Price).Mul(half),
		GasCost:   decimal.Zero,
	}
}

func (c *ExecutionContext) legAt(venue string) LegFill {
	if c.Leg1.Venue == venue {
		return c.Leg1
	}
	return c.Leg2
}
