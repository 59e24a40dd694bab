package app

import (
	"context"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	ammDomain "github.com/fd1az/arb-engine/business/amm/domain"
	"github.com/fd1az/arb-engine/business/pricing/domain"
	"github.com/fd1az/arb-engine/internal/apperror"
	"github.com/fd1az/arb-engine/internal/asset"
	"github.com/fd1az/arb-engine/internal/logger"
)

const tracerName = "pricing.engine"

// EngineConfig holds pricing engine tuning.
type EngineConfig struct {
	WETH    common.Address
	Sender  common.Address
	MaxHops int
}

// Engine owns the tracked pool set and produces validated quotes. The pool
// map is guarded by a mutex; queries read an atomically replaced RouteFinder
// snapshot, so they never observe a half-refreshed graph.
type Engine struct {
	fetcher PoolFetcher
	sim     Simulator
	config  EngineConfig
	logger  logger.LoggerInterface
	tracer  trace.Tracer

	mu     sync.RWMutex
	pools  map[common.Address]*ammDomain.Pair
	finder *ammDomain.RouteFinder

	refreshQueue chan common.Address

	quoteCounter   metric.Int64Counter
	refreshCounter metric.Int64Counter
	quoteLatency   metric.Float64Histogram
}

// NewEngine creates a pricing engine with an empty pool set.
func NewEngine(fetcher PoolFetcher, sim Simulator, cfg EngineConfig, log logger.LoggerInterface) (*Engine, error) {
	meter := otel.Meter(tracerName)

	quoteCounter, err := meter.Int64Counter("pricing_quotes_total",
		metric.WithDescription("Quotes produced, by outcome"))
	if err != nil {
		return nil, err
	}
	refreshCounter, err := meter.Int64Counter("pricing_pool_refreshes_total",
		metric.WithDescription("Pool refresh attempts, by outcome"))
	if err != nil {
		return nil, err
	}
	quoteLatency, err := meter.Float64Histogram("pricing_quote_duration_seconds",
		metric.WithDescription("End-to-end quote latency including simulation"))
	if err != nil {
		return nil, err
	}

	return &Engine{
		fetcher:        fetcher,
		sim:            sim,
		config:         cfg,
		logger:         log,
		tracer:         otel.Tracer(tracerName),
		pools:          make(map[common.Address]*ammDomain.Pair),
		refreshQueue:   make(chan common.Address, 64),
		quoteCounter:   quoteCounter,
		refreshCounter: refreshCounter,
		quoteLatency:   quoteLatency,
	}, nil
}

// LoadPools fetches every pool concurrently and atomically replaces the
// owned set, rebuilding the route finder.
func (e *Engine) LoadPools(ctx context.Context, addresses []common.Address) error {
	ctx, span := e.tracer.Start(ctx, "pricing.load_pools",
		trace.WithAttributes(attribute.Int("count", len(addresses))))
	defer span.End()

	type result struct {
		pair *ammDomain.Pair
		err  error
	}

	results := make([]result, len(addresses))
	var wg sync.WaitGroup
	for i, addr := range addresses {
		wg.Add(1)
		go func(i int, addr common.Address) {
			defer wg.Done()
			pair, err := e.fetcher.FetchPool(ctx, addr)
			results[i] = result{pair: pair, err: err}
		}(i, addr)
	}
	wg.Wait()

	pools := make(map[common.Address]*ammDomain.Pair, len(addresses))
	for i, r := range results {
		if r.err != nil {
			return apperror.Wrap(r.err, apperror.CodePoolNotFound, addresses[i].Hex())
		}
		pools[r.pair.Address()] = r.pair
	}

	e.replacePools(pools)
	e.logger.Info(ctx, "pools loaded", "count", len(pools))
	return nil
}

// RefreshPool refetches one pool and rebuilds the finder. Errors are logged
// and swallowed so a flaky RPC cannot stall the pipeline.
func (e *Engine) RefreshPool(ctx context.Context, address common.Address) {
	pair, err := e.fetcher.FetchPool(ctx, address)
	if err != nil {
		e.refreshCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", "error")))
		e.logger.Warn(ctx, "pool refresh failed", "pool", address.Hex(), "error", err)
		return
	}

	e.mu.Lock()
	if _, tracked := e.pools[address]; !tracked {
		e.mu.Unlock()
		return
	}
	pools := make(map[common.Address]*ammDomain.Pair, len(e.pools))
	for k, v := range e.pools {
		pools[k] = v
	}
	pools[address] = pair
	e.pools = pools
	e.finder = e.buildFinder(pools)
	e.mu.Unlock()

	e.refreshCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", "ok")))
}

func (e *Engine) replacePools(pools map[common.Address]*ammDomain.Pair) {
	e.mu.Lock()
	e.pools = pools
	e.finder = e.buildFinder(pools)
	e.mu.Unlock()
}

func (e *Engine) buildFinder(pools map[common.Address]*ammDomain.Pair) *ammDomain.RouteFinder {
	snapshot := make([]*ammDomain.Pair, 0, len(pools))
	for _, p := range pools {
		snapshot = append(snapshot, p)
	}
	return ammDomain.NewRouteFinder(snapshot, e.config.WETH, e.config.MaxHops)
}

// Finder returns the current route finder snapshot; nil before LoadPools.
func (e *Engine) Finder() *ammDomain.RouteFinder {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.finder
}

// Pools returns the tracked pool set snapshot.
func (e *Engine) Pools() []*ammDomain.Pair {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]*ammDomain.Pair, 0, len(e.pools))
	for _, p := range e.pools {
		out = append(out, p)
	}
	return out
}

// GetQuote routes amountIn from tokenIn to tokenOut, reconciles the routed
// output against a fork simulation, and returns the packaged quote.
func (e *Engine) GetQuote(ctx context.Context, tokenIn, tokenOut *asset.Asset, amountIn *big.Int, gasPriceGwei uint64) (*domain.Quote, error) {
	start := time.Now()
	ctx, span := e.tracer.Start(ctx, "pricing.get_quote",
		trace.WithAttributes(
			attribute.String("token_in", tokenIn.Symbol()),
			attribute.String("token_out", tokenOut.Symbol()),
		))
	defer span.End()
	defer func() {
		e.quoteLatency.Record(ctx, time.Since(start).Seconds())
	}()

	finder := e.Finder()
	if finder == nil {
		return nil, apperror.New(apperror.CodeInvalidState, apperror.WithContext("no pools loaded"))
	}

	best := finder.FindBestRoute(tokenIn, tokenOut, amountIn, gasPriceGwei, e.config.MaxHops)
	if best == nil {
		e.quoteCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", "no_route")))
		return nil, apperror.New(apperror.CodeNoRouteFound,
			apperror.WithContext(tokenIn.Symbol()+" -> "+tokenOut.Symbol()))
	}

	if err := e.sim.EnsureSenderReady(ctx, best.Route, amountIn, e.config.Sender); err != nil {
		e.quoteCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", "sim_error")))
		return nil, apperror.Wrap(err, apperror.CodeContractCallFailed, "ensure sender ready")
	}

	sim, err := e.sim.SimulateRoute(ctx, best.Route, amountIn, e.config.Sender)
	if err != nil {
		e.quoteCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", "sim_error")))
		return nil, apperror.Wrap(err, apperror.CodeContractCallFailed, "simulate route")
	}
	if !sim.Success {
		e.quoteCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", "sim_revert")))
		return nil, apperror.New(apperror.CodeContractCallFailed, apperror.WithContext(sim.Error))
	}

	e.quoteCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", "ok")))
	// The fork reports the gross swap output, so reconciliation compares
	// gross against gross; the gas-adjusted figure only picked the route.
	return &domain.Quote{
		Route:           best.Route,
		AmountIn:        amountIn,
		ExpectedOutput:  best.GrossOutput,
		NetOutput:       best.NetOutput,
		SimulatedOutput: sim.AmountOut,
		GasUsed:         sim.GasUsed,
		Timestamp:       time.Now().UTC(),
	}, nil
}

// OnPendingSwap queues a refresh for any tracked pool whose tokens both
// appear in the observed swap. Drops the hint when the queue is full.
func (e *Engine) OnPendingSwap(swap domain.ParsedSwap) {
	tokenIn := common.HexToAddress(swap.TokenIn)
	tokenOut := common.HexToAddress(swap.TokenOut)

	e.mu.RLock()
	var hits []common.Address
	for addr, pool := range e.pools {
		if pool.Has(tokenIn) && pool.Has(tokenOut) {
			hits = append(hits, addr)
		}
	}
	e.mu.RUnlock()

	for _, addr := range hits {
		select {
		case e.refreshQueue <- addr:
		default:
		}
	}
}

// Start runs the refresh worker until ctx is cancelled.
func (e *Engine) Start(ctx context.Context) {
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case addr := <-e.refreshQueue:
				e.RefreshPool(ctx, addr)
			}
		}
	}()
}
