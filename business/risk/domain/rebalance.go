package domain

import (
	"sort"

	"github.com/shopspring/decimal"
)

// Transfer is one planned venue-to-venue move. NetAmount is what arrives
// after the withdrawal fee.
type Transfer struct {
	From          string
	To            string
	Symbol        string
	Amount        decimal.Decimal
	WithdrawalFee decimal.Decimal
	NetAmount     decimal.Decimal
}

// RebalancePlan is the set of transfers that restores an even split.
type RebalancePlan struct {
	Symbol    string
	Transfers []Transfer
}

// Empty reports whether the plan has nothing to move.
func (p RebalancePlan) Empty() bool {
	return len(p.Transfers) == 0
}

// PlanRebalance computes transfers that bring every venue to an even share of
// the asset. Surplus venues fund deficit venues, largest imbalance first; the
// withdrawal fee is charged to the receiving side. A skew below the
// inventory's threshold yields an empty plan.
func (inv *Inventory) PlanRebalance(symbol string, withdrawalFee decimal.Decimal) RebalancePlan {
	plan := RebalancePlan{Symbol: symbol}
	if !inv.NeedsRebalance(symbol) {
		return plan
	}

	inv.mu.RLock()
	totals := make(map[string]decimal.Decimal, len(inv.venues))
	grand := decimal.Zero
	for venue, book := range inv.venues {
		t := book[symbol].Total()
		totals[venue] = t
		grand = grand.Add(t)
	}
	inv.mu.RUnlock()

	if len(totals) < 2 || grand.IsZero() {
		return plan
	}
	target := grand.Div(decimal.NewFromInt(int64(len(totals))))

	type imbalance struct {
		venue string
		diff  decimal.Decimal // positive = surplus
	}
	surpluses := make([]imbalance, 0, len(totals))
	deficits := make([]imbalance, 0, len(totals))
	for venue, t := range totals {
		diff := t.Sub(target)
		switch {
		case diff.IsPositive():
			surpluses = append(surpluses, imbalance{venue, diff})
		case diff.IsNegative():
			deficits = append(deficits, imbalance{venue, diff.Neg()})
		}
	}
	sort.Slice(surpluses, func(i, j int) bool { return surpluses[i].diff.GreaterThan(surpluses[j].diff) })
	sort.Slice(deficits, func(i, j int) bool { return deficits[i].diff.GreaterThan(deficits[j].diff) })

	si, di := 0, 0
	for si < len(surpluses) && di < len(deficits) {
		amount := decimal.Min(surpluses[si].diff, deficits[di].diff)
		plan.Transfers = append(plan.Transfers, Transfer{
			From:          surpluses[si].venue,
			To:            deficits[di].venue,
			Symbol:        symbol,
			Amount:        amount,
			WithdrawalFee: withdrawalFee,
			NetAmount:     amount.Sub(withdrawalFee),
		})
		surpluses[si].diff = surpluses[si].diff.Sub(amount)
		deficits[di].diff = deficits[di].diff.Sub(amount)
		if surpluses[si].diff.IsZero() {
			si++
		}
		if deficits[di].diff.IsZero() {
			di++
		}
	}
	return plan
}
