package domain

import (
	"github.com/shopspring/decimal"

	"github.com/fd1az/arb-engine/internal/apperror"
)

var bps10k = decimal.NewFromInt(10000)

// Fill is one consumed level of a walk.
type Fill struct {
	Price decimal.Decimal
	Size  decimal.Decimal
}

// WalkResult is the outcome of filling a quantity against one side.
type WalkResult struct {
	AvgPrice       decimal.Decimal
	TotalCost      decimal.Decimal
	SlippageBps    decimal.Decimal
	LevelsConsumed int
	FullyFilled    bool
	Fills          []Fill
}

// Analyzer computes depth, imbalance, and fill metrics over one book
// snapshot.
type Analyzer struct {
	book *OrderBook
}

// NewAnalyzer wraps a validated order book.
func NewAnalyzer(book *OrderBook) (*Analyzer, error) {
	if book == nil || len(book.Bids) == 0 || len(book.Asks) == 0 {
		return nil, apperror.New(apperror.CodeInvalidOrderbook,
			apperror.WithContext("analyzer requires a book with both sides populated"))
	}
	return &Analyzer{book: book}, nil
}

// Book returns the underlying snapshot.
func (a *Analyzer) Book() *OrderBook { return a.book }

// WalkTheBook fills qty against the side a taker order of `side` would hit,
// consuming levels in price order and accumulating cost.
func (a *Analyzer) WalkTheBook(side Side, qty decimal.Decimal) (*WalkResult, error) {
	if qty.LessThanOrEqual(decimal.Zero) {
		return nil, apperror.New(apperror.CodeInvalidInput, apperror.WithContext("qty must be positive"))
	}

	levels := a.book.levels(side)
	best := levels[0].Price

	remaining := qty
	totalCost := decimal.Zero
	filled := decimal.Zero
	var fills []Fill

	for _, lvl := range levels {
		if remaining.IsZero() {
			break
		}
		take := decimal.Min(remaining, lvl.Size)
		fills = append(fills, Fill{Price: lvl.Price, Size: take})
		totalCost = totalCost.Add(lvl.Price.Mul(take))
		filled = filled.Add(take)
		remaining = remaining.Sub(take)
	}

	avg := decimal.Zero
	slippage := decimal.Zero
	if filled.IsPositive() {
		avg = totalCost.Div(filled)
		slippage = avg.Sub(best).Abs().Div(best).Mul(bps10k)
	}

	return &WalkResult{
		AvgPrice:       avg,
		TotalCost:      totalCost,
		SlippageBps:    slippage,
		LevelsConsumed: len(fills),
		FullyFilled:    remaining.IsZero(),
		Fills:          fills,
	}, nil
}

// DepthAtBps sums the size available within a multiplicative band of bps
// around the best price on that side.
func (a *Analyzer) DepthAtBps(side Side, bps decimal.Decimal) decimal.Decimal {
	levels := a.book.levels(side)
	best := levels[0].Price
	band := best.Mul(bps.Div(bps10k))

	depth := decimal.Zero
	for _, lvl := range levels {
		if lvl.Price.Sub(best).Abs().GreaterThan(band) {
			break
		}
		depth = depth.Add(lvl.Size)
	}
	return depth
}

// Imbalance returns (bidQty - askQty) / (bidQty + askQty) over the top n
// levels; 0 when the book is empty at that depth.
func (a *Analyzer) Imbalance(n int) decimal.Decimal {
	bidQty := sumTop(a.book.Bids, n)
	askQty := sumTop(a.book.Asks, n)

	total := bidQty.Add(askQty)
	if total.IsZero() {
		return decimal.Zero
	}
	return bidQty.Sub(askQty).Div(total)
}

// EffectiveSpread is the gap between round-trip average execution prices for
// qty, in bps of the mid.
func (a *Analyzer) EffectiveSpread(qty decimal.Decimal) (decimal.Decimal, error) {
	buy, err := a.WalkTheBook(SideBuy, qty)
	if err != nil {
		return decimal.Zero, err
	}
	sell, err := a.WalkTheBook(SideSell, qty)
	if err != nil {
		return decimal.Zero, err
	}

	mid := a.book.Mid()
	if mid.IsZero() {
		return decimal.Zero, nil
	}
	return buy.AvgPrice.Sub(sell.AvgPrice).Div(mid).Mul(bps10k), nil
}

func sumTop(levels []Level, n int) decimal.Decimal {
	if n > len(levels) {
		n = len(levels)
	}
	total := decimal.Zero
	for _, lvl := range levels[:n] {
		total = total.Add(lvl.Size)
	}
	return total
}
