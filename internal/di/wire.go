//go:build wireinject
// +build wireinject

package di

import (
	"StockFrame/pkg/config"
	"StockFrame/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		// Ambient
		ProvideLogger,
		ProvideMetrics,

		// Infrastructure clients
		ProvideCache,
		ProvideLimiter,
		ProvideAlpacaClient,
		ProvideClickHouseClient,
		ProvideKafkaProducer,

		// Repositories
		ProvideSnapshot,
		ProvideSinks,

		// Use cases
		ProvideTableAssembler,
		ProvideFeatureStage,
		ProvideFeaturePipeline,

		// Application server
		ProvideHTTPServer,
		ProvideApp,
	)
	return &server.App{}, nil
}
