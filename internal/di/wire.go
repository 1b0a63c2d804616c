//go:build wireinject
// +build wireinject

package di

import (
	"PriceCast/pkg/config"
	"PriceCast/pkg/server"

	"github.com/google/wire"
)

// infraSet provides clients shared by the service and the trainer.
var infraSet = wire.NewSet(
	ProvideLogger,
	ProvideMetrics,
	ProvideKafkaProducer,
	ProvideEventPublisher,
	ProvideClickHouseClient,
	ProvidePriceStore,
	ProvideHistoryCache,
	ProvideYahooClient,
	ProvideMarketData,
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config, program Program) (*server.App, error) {
	wire.Build(
		infraSet,

		// Model and use cases
		ProvideServiceContext,
		ProvideProfileSource,
		ProvideForecastUseCase,
		ProvideStockInfoUseCase,

		// HTTP
		ProvideRateLimiter,
		ProvideForecastHandler,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}

// InitializeTrainer wires the offline training pipeline.
func InitializeTrainer(cfg *config.Config, program Program) (*Trainer, error) {
	wire.Build(
		infraSet,
		ProvideRunLedger,
		ProvideTrainingConfig,
		ProvideTrainingUseCase,
		ProvideTrainer,
	)
	return &Trainer{}, nil
}
