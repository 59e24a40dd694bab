package app

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/arb-engine/business/signal/domain"
	"github.com/fd1az/arb-engine/internal/apperror"
	"github.com/fd1az/arb-engine/internal/logger"
)

const tracerName = "signal.generator"

var (
	bps10k          = decimal.NewFromInt(10_000)
	inventoryBuffer = decimal.RequireFromString("1.01")
)

// Venue names used for inventory lookups.
const (
	VenueCex    = "binance"
	VenueWallet = "wallet"
)

// GeneratorConfig holds opportunity detection tuning. Sizes and prices are
// human units; the trade size is denominated in the base token.
type GeneratorConfig struct {
	TradeSize     decimal.Decimal
	MinSpreadBps  decimal.Decimal
	MinProfitUSD  decimal.Decimal
	CexTakerBps   decimal.Decimal
	DexSwapBps    decimal.Decimal
	GasUSD        decimal.Decimal
	SignalTTL     time.Duration
	Cooldown      time.Duration
	SnapshotDepth int
}

// Generator joins a CEX order book with DEX quotes into directional signals.
type Generator struct {
	books     BookSource
	quoter    Quoter
	inventory InventoryView
	gas       GasSource
	config    GeneratorConfig
	logger    logger.LoggerInterface
	tracer    trace.Tracer

	mu         sync.Mutex
	lastSignal map[string]time.Time

	emitted metric.Int64Counter
	skipped metric.Int64Counter
}

// NewGenerator creates a signal generator.
func NewGenerator(books BookSource, quoter Quoter, inventory InventoryView, gas GasSource, cfg GeneratorConfig, log logger.LoggerInterface) (*Generator, error) {
	if cfg.SnapshotDepth <= 0 {
		cfg.SnapshotDepth = 20
	}

	meter := otel.Meter(tracerName)
	emitted, err := meter.Int64Counter("signals_emitted_total",
		metric.WithDescription("Signals emitted, by direction"))
	if err != nil {
		return nil, err
	}
	skipped, err := meter.Int64Counter("signals_skipped_total",
		metric.WithDescription("Generator passes that produced no signal, by reason"))
	if err != nil {
		return nil, err
	}

	return &Generator{
		books:      books,
		quoter:     quoter,
		inventory:  inventory,
		gas:        gas,
		config:     cfg,
		logger:     log,
		tracer:     otel.Tracer(tracerName),
		lastSignal: make(map[string]time.Time),
		emitted:    emitted,
		skipped:    skipped,
	}, nil
}

// Generate inspects one pair and returns a signal, or nil when no opportunity
// clears the spread and profit thresholds. Errors are reserved for upstream
// fetch failures.
func (g *Generator) Generate(ctx context.Context, pair domain.TradingPair) (*domain.Signal, error) {
	ctx, span := g.tracer.Start(ctx, "signal.generate",
		trace.WithAttributes(attribute.String("pair", pair.String())))
	defer span.End()

	if g.inCooldown(pair.Symbol) {
		g.skip(ctx, "cooldown")
		return nil, nil
	}

	book, err := g.books.FetchOrderBook(ctx, pair.Symbol, g.config.SnapshotDepth)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.CodeOrderbookFetchFailed, pair.Symbol)
	}
	cexBid := book.BestBid()
	cexAsk := book.BestAsk()

	dexSell, err := g.dexSellPrice(ctx, pair)
	if err != nil {
		return nil, err
	}
	dexBuy, err := g.dexBuyPrice(ctx, pair, cexAsk)
	if err != nil {
		return nil, err
	}

	// Spread A buys the base on the CEX and sells it on the DEX;
	// spread B is the mirror.
	spreadA := dexSell.Sub(cexAsk).Div(cexAsk).Mul(bps10k)
	spreadB := cexBid.Sub(dexBuy).Div(dexBuy).Mul(bps10k)

	var (
		dir      domain.Direction
		spread   decimal.Decimal
		cexPrice decimal.Decimal
		dexPrice decimal.Decimal
	)
	switch {
	case spreadA.GreaterThanOrEqual(spreadB) && spreadA.GreaterThanOrEqual(g.config.MinSpreadBps):
		dir, spread, cexPrice, dexPrice = domain.DirectionBuyCexSellDex, spreadA, cexAsk, dexSell
	case spreadB.GreaterThan(spreadA) && spreadB.GreaterThanOrEqual(g.config.MinSpreadBps):
		dir, spread, cexPrice, dexPrice = domain.DirectionBuyDexSellCex, spreadB, cexBid, dexBuy
	default:
		g.skip(ctx, "below_min_spread")
		return nil, nil
	}

	expected := g.projectEconomics(spread, cexPrice)
	if expected.Net.LessThan(g.config.MinProfitUSD) {
		g.skip(ctx, "below_min_profit")
		return nil, nil
	}

	sig := domain.NewSignal(pair, dir, cexPrice, dexPrice, spread, g.config.TradeSize, expected, g.config.SignalTTL)
	sig.InventoryOK = g.checkInventory(pair, dir, cexAsk, dexBuy)

	g.stampCooldown(pair.Symbol)
	g.emitted.Add(ctx, 1, metric.WithAttributes(attribute.String("direction", string(dir))))
	g.logger.Info(ctx, "signal emitted",
		"id", sig.ID,
		"pair", pair.String(),
		"direction", string(dir),
		"spread_bps", spread.StringFixed(2),
		"expected_net", expected.Net.StringFixed(4),
		"inventory_ok", sig.InventoryOK,
	)
	return sig, nil
}

// dexSellPrice sells the configured size of base for quote and returns the
// realized unit price.
func (g *Generator) dexSellPrice(ctx context.Context, pair domain.TradingPair) (decimal.Decimal, error) {
	amountIn := g.config.TradeSize.Shift(int32(pair.Base.Decimals())).BigInt()
	q, err := g.quoter.GetQuote(ctx, pair.Base, pair.Quote, amountIn, g.gas.GasPriceGwei(ctx))
	if err != nil {
		return decimal.Zero, err
	}
	if !q.Valid() || q.SimulatedOutput.Sign() <= 0 {
		return decimal.Zero, apperror.New(apperror.CodeInvalidQuote,
			apperror.WithContext("dex sell quote failed reconciliation"))
	}
	out := decimal.NewFromBigInt(q.SimulatedOutput, -int32(pair.Quote.Decimals()))
	return out.Div(g.config.TradeSize), nil
}

// dexBuyPrice spends size*cexAsk of quote to buy base and returns the
// realized unit price.
func (g *Generator) dexBuyPrice(ctx context.Context, pair domain.TradingPair, cexAsk decimal.Decimal) (decimal.Decimal, error) {
	spend := g.config.TradeSize.Mul(cexAsk)
	amountIn := spend.Shift(int32(pair.Quote.Decimals())).BigInt()
	q, err := g.quoter.GetQuote(ctx, pair.Quote, pair.Base, amountIn, g.gas.GasPriceGwei(ctx))
	if err != nil {
		return decimal.Zero, err
	}
	if !q.Valid() || q.SimulatedOutput.Sign() <= 0 {
		return decimal.Zero, apperror.New(apperror.CodeInvalidQuote,
			apperror.WithContext("dex buy quote failed reconciliation"))
	}
	baseOut := decimal.NewFromBigInt(q.SimulatedOutput, -int32(pair.Base.Decimals()))
	if baseOut.IsZero() {
		return decimal.Zero, apperror.New(apperror.CodeInvalidQuote,
			apperror.WithContext("dex buy quote returned zero base"))
	}
	return spend.Div(baseOut), nil
}

// projectEconomics turns a spread into projected gross/fees/net for the
// configured trade size. Gas is a flat USD estimate on top of both venues'
// proportional fees.
func (g *Generator) projectEconomics(spreadBps, cexPrice decimal.Decimal) domain.Expected {
	tradeValue := g.config.TradeSize.Mul(cexPrice)
	gross := spreadBps.Div(bps10k).Mul(tradeValue)
	fees := g.config.CexTakerBps.Add(g.config.DexSwapBps).Div(bps10k).Mul(tradeValue).Add(g.config.GasUSD)
	return domain.Expected{
		Gross: gross,
		Fees:  fees,
		Net:   gross.Sub(fees),
	}
}

// checkInventory verifies both legs are funded, with a 1% buffer on the
// spending side.
func (g *Generator) checkInventory(pair domain.TradingPair, dir domain.Direction, cexAsk, dexBuy decimal.Decimal) bool {
	size := g.config.TradeSize
	switch dir {
	case domain.DirectionBuyCexSellDex:
		needQuote := size.Mul(cexAsk).Mul(inventoryBuffer)
		return g.inventory.GetAvailable(VenueCex, pair.Quote.Symbol()).GreaterThanOrEqual(needQuote) &&
			g.inventory.GetAvailable(VenueWallet, pair.Base.Symbol()).GreaterThanOrEqual(size)
	case domain.DirectionBuyDexSellCex:
		needQuote := size.Mul(dexBuy).Mul(inventoryBuffer)
		return g.inventory.GetAvailable(VenueWallet, pair.Quote.Symbol()).GreaterThanOrEqual(needQuote) &&
			g.inventory.GetAvailable(VenueCex, pair.Base.Symbol()).GreaterThanOrEqual(size)
	}
	return false
}

func (g *Generator) inCooldown(symbol string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	last, ok := g.lastSignal[symbol]
	return ok && time.Since(last) < g.config.Cooldown
}

func (g *Generator) stampCooldown(symbol string) {
	g.mu.Lock()
	g.lastSignal[symbol] = time.Now()
	g.mu.Unlock()
}

func (g *Generator) skip(ctx context.Context, reason string) {
	g.skipped.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}
