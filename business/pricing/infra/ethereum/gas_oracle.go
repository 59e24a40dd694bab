package ethereum

import (
	"context"
	"math/big"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/fd1az/arb-engine/internal/cache"
	"github.com/fd1az/arb-engine/internal/circuitbreaker"
	"github.com/fd1az/arb-engine/internal/logger"
)

const gasMeterName = "pricing.gas_oracle"

var weiPerGwei = big.NewInt(1_000_000_000)

// GasBackend is the node API slice the oracle needs. *ethclient.Client
// satisfies it.
type GasBackend interface {
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
}

// GasOracleConfig holds gas oracle tuning.
type GasOracleConfig struct {
	CacheTTL        time.Duration // how long one suggested price is reused
	MaxGasPriceGwei uint64        // suggestions above this are clamped
	FallbackGwei    uint64        // used when the node cannot be asked
}

// DefaultGasOracleConfig returns mainnet-suited defaults: one block of
// caching, a 500 gwei clamp, and a 30 gwei fallback.
func DefaultGasOracleConfig() GasOracleConfig {
	return GasOracleConfig{
		CacheTTL:        12 * time.Second,
		MaxGasPriceGwei: 500,
		FallbackGwei:    30,
	}
}

// GasOracle serves the current gas price in gwei, cached per block and
// guarded by a circuit breaker. It never fails: when the node is
// unreachable the configured fallback keeps the quoting path alive.
type GasOracle struct {
	backend GasBackend
	config  GasOracleConfig
	logger  logger.LoggerInterface

	prices *cache.Cache[string, uint64]
	cb     *circuitbreaker.CircuitBreaker[*big.Int]

	fetches metric.Int64Counter
	gauge   metric.Float64Gauge
}

// NewGasOracle creates an oracle over backend. Zero config fields take the
// defaults.
func NewGasOracle(backend GasBackend, cfg GasOracleConfig, log logger.LoggerInterface) (*GasOracle, error) {
	defaults := DefaultGasOracleConfig()
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = defaults.CacheTTL
	}
	if cfg.MaxGasPriceGwei == 0 {
		cfg.MaxGasPriceGwei = defaults.MaxGasPriceGwei
	}
	if cfg.FallbackGwei == 0 {
		cfg.FallbackGwei = defaults.FallbackGwei
	}

	meter := otel.Meter(gasMeterName)
	fetches, err := meter.Int64Counter("gas_price_fetches_total",
		metric.WithDescription("Gas price fetch attempts, by outcome"))
	if err != nil {
		return nil, err
	}
	gauge, err := meter.Float64Gauge("gas_price_gwei",
		metric.WithDescription("Last observed gas price in gwei"))
	if err != nil {
		return nil, err
	}

	return &GasOracle{
		backend: backend,
		config:  cfg,
		logger:  log,
		prices:  cache.New[string, uint64](cfg.CacheTTL),
		cb:      circuitbreaker.New[*big.Int](circuitbreaker.DefaultConfig("gas-oracle")),
		fetches: fetches,
		gauge:   gauge,
	}, nil
}

// GasPriceGwei returns the suggested gas price in gwei, clamped at the
// configured maximum. RPC failures return the fallback price so a flaky
// node degrades quote accuracy, not availability.
func (g *GasOracle) GasPriceGwei(ctx context.Context) uint64 {
	if gwei, ok := g.prices.Get("suggested"); ok {
		return gwei
	}

	wei, err := g.cb.Execute(func() (*big.Int, error) {
		return g.backend.SuggestGasPrice(ctx)
	})
	if err != nil {
		g.fetches.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", "error")))
		g.logger.Warn(ctx, "gas price fetch failed, using fallback",
			"fallback_gwei", g.config.FallbackGwei, "error", err)
		return g.config.FallbackGwei
	}

	gwei := new(big.Int).Div(wei, weiPerGwei).Uint64()
	if gwei == 0 {
		gwei = 1
	}
	if gwei > g.config.MaxGasPriceGwei {
		g.logger.Warn(ctx, "suggested gas price clamped",
			"suggested_gwei", gwei, "max_gwei", g.config.MaxGasPriceGwei)
		gwei = g.config.MaxGasPriceGwei
	}

	g.prices.Set("suggested", gwei)
	g.fetches.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", "ok")))
	g.gauge.Record(ctx, float64(gwei))
	return gwei
}
