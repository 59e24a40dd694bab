// Package domain contains risk-context domain logic: the inventory tracker
// and the layered admission gates.
package domain

import (
	"sync"

	"github.com/shopspring/decimal"
)

// Reason codes for inventory verdicts.
const (
	ReasonInsufficientBuyBalance  = "insufficientBuyBalance"
	ReasonInsufficientSellBalance = "insufficientSellBalance"
)

var hundred = decimal.NewFromInt(100)

// Balance is one asset's position at a venue.
type Balance struct {
	Free   decimal.Decimal
	Locked decimal.Decimal
}

// Total returns free plus locked.
func (b Balance) Total() decimal.Decimal {
	return b.Free.Add(b.Locked)
}

// Verdict is the outcome of a funding check.
type Verdict struct {
	OK     bool
	Reason string
}

// Skew describes how an asset is split across venues.
type Skew struct {
	Venues          map[string]decimal.Decimal // venue -> share of total, percent
	MaxDeviationPct decimal.Decimal            // largest distance from an even split
	NeedsRebalance  bool
}

// Inventory tracks per-venue balances and answers funding questions. Venue
// snapshots are replaced wholesale by the feeds; trades adjust in place.
type Inventory struct {
	mu                    sync.RWMutex
	venues                map[string]map[string]Balance
	rebalanceThresholdPct decimal.Decimal
}

// NewInventory creates an empty tracker. thresholdPct is the per-venue
// deviation at which Skew flags a rebalance.
func NewInventory(thresholdPct decimal.Decimal) *Inventory {
	return &Inventory{
		venues:                make(map[string]map[string]Balance),
		rebalanceThresholdPct: thresholdPct,
	}
}

// UpdateFromCex replaces the venue's snapshot with exchange balances.
func (inv *Inventory) UpdateFromCex(venue string, balances map[string]Balance) {
	snapshot := make(map[string]Balance, len(balances))
	for symbol, b := range balances {
		snapshot[symbol] = b
	}
	inv.mu.Lock()
	inv.venues[venue] = snapshot
	inv.mu.Unlock()
}

// UpdateFromWallet replaces the venue's snapshot with on-chain amounts.
// Wallet funds are always free.
func (inv *Inventory) UpdateFromWallet(venue string, amounts map[string]decimal.Decimal) {
	snapshot := make(map[string]Balance, len(amounts))
	for symbol, amount := range amounts {
		snapshot[symbol] = Balance{Free: amount}
	}
	inv.mu.Lock()
	inv.venues[venue] = snapshot
	inv.mu.Unlock()
}

// GetAvailable returns the free amount of an asset at a venue, zero if the
// venue or asset is unknown.
func (inv *Inventory) GetAvailable(venue, symbol string) decimal.Decimal {
	inv.mu.RLock()
	defer inv.mu.RUnlock()
	return inv.venues[venue][symbol].Free
}

// CanExecute verifies both legs of a trade are funded.
func (inv *Inventory) CanExecute(buyVenue, buyAsset string, buyAmount decimal.Decimal, sellVenue, sellAsset string, sellAmount decimal.Decimal) Verdict {
	if inv.GetAvailable(buyVenue, buyAsset).LessThan(buyAmount) {
		return Verdict{Reason: ReasonInsufficientBuyBalance}
	}
	if inv.GetAvailable(sellVenue, sellAsset).LessThan(sellAmount) {
		return Verdict{Reason: ReasonInsufficientSellBalance}
	}
	return Verdict{OK: true}
}

// RecordTrade applies a fill's deltas in place. side is "buy" or "sell" of
// the base asset; the fee is deducted from feeAsset.
func (inv *Inventory) RecordTrade(venue, side, base, quote string, baseAmount, quoteAmount, fee decimal.Decimal, feeAsset string) {
	inv.mu.Lock()
	defer inv.mu.Unlock()

	book := inv.venues[venue]
	if book == nil {
		book = make(map[string]Balance)
		inv.venues[venue] = book
	}

	adjust := func(symbol string, delta decimal.Decimal) {
		b := book[symbol]
		b.Free = b.Free.Add(delta)
		book[symbol] = b
	}

	if side == "buy" {
		adjust(base, baseAmount)
		adjust(quote, quoteAmount.Neg())
	} else {
		adjust(base, baseAmount.Neg())
		adjust(quote, quoteAmount)
	}
	if fee.IsPositive() && feeAsset != "" {
		adjust(feeAsset, fee.Neg())
	}
}

// ComputeSkew reports the asset's split across every venue the tracker knows,
// including venues that hold none of it.
func (inv *Inventory) ComputeSkew(symbol string) Skew {
	inv.mu.RLock()
	defer inv.mu.RUnlock()

	totals := make(map[string]decimal.Decimal, len(inv.venues))
	grand := decimal.Zero
	for venue, book := range inv.venues {
		t := book[symbol].Total()
		totals[venue] = t
		grand = grand.Add(t)
	}

	skew := Skew{Venues: make(map[string]decimal.Decimal, len(totals))}
	if len(totals) == 0 || grand.IsZero() {
		return skew
	}

	even := hundred.Div(decimal.NewFromInt(int64(len(totals))))
	for venue, t := range totals {
		pct := t.Div(grand).Mul(hundred)
		skew.Venues[venue] = pct
		deviation := pct.Sub(even).Abs()
		if deviation.GreaterThan(skew.MaxDeviationPct) {
			skew.MaxDeviationPct = deviation
		}
	}
	skew.NeedsRebalance = skew.MaxDeviationPct.GreaterThanOrEqual(inv.rebalanceThresholdPct)
	return skew
}

// NeedsRebalance reports whether the asset's split drifted past the
// threshold.
func (inv *Inventory) NeedsRebalance(symbol string) bool {
	return inv.ComputeSkew(symbol).NeedsRebalance
}

// Snapshot returns a deep copy of all venue balances.
func (inv *Inventory) Snapshot() map[string]map[string]Balance {
	inv.mu.RLock()
	defer inv.mu.RUnlock()

	out := make(map[string]map[string]Balance, len(inv.venues))
	for venue, book := range inv.venues {
		copied := make(map[string]Balance, len(book))
		for symbol, b := range book {
			copied[symbol] = b
		}
		out[venue] = copied
	}
	return out
}
