// Package exchange implements the CEX bounded context: a normalized client
// over the venue's REST API with rate limiting and fee caching.
package exchange

import (
	"context"

	"github.com/fd1az/arb-engine/business/exchange/app"
	exchangeDI "github.com/fd1az/arb-engine/business/exchange/di"
	"github.com/fd1az/arb-engine/business/exchange/infra/binance"
	"github.com/fd1az/arb-engine/internal/config"
	"github.com/fd1az/arb-engine/internal/di"
	"github.com/fd1az/arb-engine/internal/logger"
	"github.com/fd1az/arb-engine/internal/monolith"
)

// Module implements the exchange bounded context.
type Module struct{}

// RegisterServices registers the exchange client with the DI container.
func (m *Module) RegisterServices(c di.Container) error {
	di.RegisterToken(c, exchangeDI.ExchangeClient, func(sr di.ServiceRegistry) app.Client {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)

		client, err := binance.NewClient(binance.ClientConfig{
			BaseURL:      cfg.Exchange.BaseURL,
			APIKey:       cfg.Exchange.APIKey,
			APISecret:    cfg.Exchange.APISecret,
			RecvWindow:   cfg.Exchange.RecvWindow,
			WeightPerSec: cfg.Exchange.WeightPerSec,
		}, log)
		if err != nil {
			panic("failed to create exchange client: " + err.Error())
		}
		return client
	})
	return nil
}

// Startup verifies venue connectivity and credentials.
func (m *Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	log := mono.Logger()

	client := exchangeDI.GetExchangeClient(mono.Services())
	if err := client.Init(ctx); err != nil {
		return err
	}

	log.Info(ctx, "exchange module started", "venue", mono.Config().Exchange.Name)
	return nil
}
