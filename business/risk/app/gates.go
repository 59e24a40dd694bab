// Package app composes the risk-context gates into one admission pipeline.
package app

import (
	"context"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/fd1az/arb-engine/business/risk/domain"
	signalDomain "github.com/fd1az/arb-engine/business/signal/domain"
	"github.com/fd1az/arb-engine/internal/apperror"
	"github.com/fd1az/arb-engine/internal/logger"
)

const meterName = "risk.gates"

// Gates runs the layered admission checks: pre-trade sanity, configured risk
// limits, then hard safety floors. Order matters; a safety failure is fatal
// to the caller's loop.
type Gates struct {
	pretrade *domain.PretradeValidator
	manager  *domain.Manager
	safety   *domain.SafetyCheck
	logger   logger.LoggerInterface

	vetoCounter metric.Int64Counter
}

// NewGates wires the three gates.
func NewGates(manager *domain.Manager, log logger.LoggerInterface) (*Gates, error) {
	meter := otel.Meter(meterName)
	vetoCounter, err := meter.Int64Counter("risk_vetoes_total",
		metric.WithDescription("Signals rejected by admission gates, by gate"))
	if err != nil {
		return nil, err
	}

	return &Gates{
		pretrade:    domain.NewPretradeValidator(),
		manager:     manager,
		safety:      domain.NewSafetyCheck(),
		logger:      log,
		vetoCounter: vetoCounter,
	}, nil
}

// Admit runs all gates against a signal and marks it within limits on
// success. The returned error's code identifies the failing gate; callers
// must treat SAFETY_VETO as fatal.
func (g *Gates) Admit(ctx context.Context, sig *signalDomain.Signal) error {
	if err := g.pretrade.Validate(sig); err != nil {
		g.veto(ctx, "pretrade", sig, err)
		return err
	}

	tradeValue := sig.Size.Mul(sig.CexPrice)
	if err := g.manager.Approve(tradeValue); err != nil {
		g.veto(ctx, "risk", sig, err)
		return err
	}

	err := g.safety.Check(tradeValue, g.manager.DailyPnL(), g.manager.CapitalUSD(), g.manager.TradesLastHour())
	if err != nil {
		g.veto(ctx, "safety", sig, err)
		return err
	}

	// Only a fully admitted trade consumes the hourly budget; a veto from
	// any gate leaves the window untouched.
	g.manager.RegisterTrade()
	sig.WithinLimits = true
	return nil
}

// RecordResult feeds a realized PnL back into the risk accounting.
func (g *Gates) RecordResult(netPnlUSD decimal.Decimal) {
	g.manager.RecordResult(netPnlUSD)
}

// Manager exposes the underlying risk state for reporting.
func (g *Gates) Manager() *domain.Manager {
	return g.manager
}

func (g *Gates) veto(ctx context.Context, gate string, sig *signalDomain.Signal, err error) {
	g.vetoCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("gate", gate)))
	g.logger.Warn(ctx, "signal vetoed",
		"gate", gate,
		"signal", sig.ID,
		"pair", sig.Pair.String(),
		"code", string(apperror.GetCode(err)),
		"reason", err.Error(),
	)
}
