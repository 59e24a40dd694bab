// Package domain contains signal-context domain types.
package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/fd1az/arb-engine/internal/asset"
)

// Direction says which venue buys and which sells the base token.
type Direction string

const (
	DirectionBuyCexSellDex Direction = "BUY_CEX_SELL_DEX"
	DirectionBuyDexSellCex Direction = "BUY_DEX_SELL_CEX"
)

// TradingPair binds a CEX symbol to the on-chain tokens it trades.
type TradingPair struct {
	Symbol string // exchange notation, e.g. "ETHUSDC"
	Base   *asset.Asset
	Quote  *asset.Asset
}

func (p TradingPair) String() string {
	return fmt.Sprintf("%s/%s", p.Base.Symbol(), p.Quote.Symbol())
}

// Expected is the projected economics of one arbitrage round trip.
type Expected struct {
	Gross decimal.Decimal
	Fees  decimal.Decimal
	Net   decimal.Decimal
}

// Signal is a directional arbitrage opportunity snapshot. All fields except
// Score, InventoryOK, and WithinLimits are fixed at creation.
type Signal struct {
	ID        string
	Pair      TradingPair
	Direction Direction
	CexPrice  decimal.Decimal
	DexPrice  decimal.Decimal
	SpreadBps decimal.Decimal
	Size      decimal.Decimal // base token, human units
	Expected  Expected
	Score     float64
	Timestamp time.Time
	Expiry    time.Time

	InventoryOK  bool
	WithinLimits bool
}

// NewSignal stamps identity and lifetime on an opportunity.
func NewSignal(pair TradingPair, dir Direction, cexPrice, dexPrice, spreadBps, size decimal.Decimal, expected Expected, ttl time.Duration) *Signal {
	now := time.Now().UTC()
	return &Signal{
		ID:        uuid.NewString(),
		Pair:      pair,
		Direction: dir,
		CexPrice:  cexPrice,
		DexPrice:  dexPrice,
		SpreadBps: spreadBps,
		Size:      size,
		Expected:  expected,
		Timestamp: now,
		Expiry:    now.Add(ttl),
	}
}

// Age returns time elapsed since the signal was created.
func (s *Signal) Age() time.Duration {
	return time.Since(s.Timestamp)
}

// IsExpired reports whether the signal's TTL has elapsed.
func (s *Signal) IsExpired() bool {
	return time.Now().After(s.Expiry)
}

// IsValid reports whether the signal may still be executed: unexpired, both
// admission flags set, positive projected net, and a positive score.
func (s *Signal) IsValid() bool {
	return !s.IsExpired() &&
		s.InventoryOK &&
		s.WithinLimits &&
		s.Expected.Net.IsPositive() &&
		s.Score > 0
}

// BuyVenueIsCex reports whether leg pricing buys the base on the exchange.
func (s *Signal) BuyVenueIsCex() bool {
	return s.Direction == DirectionBuyCexSellDex
}
