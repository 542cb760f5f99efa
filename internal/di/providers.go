package di

import (
	"context"
	"fmt"
	"io"
	"time"

	"StockFrame/internal/domain/repository"
	"StockFrame/internal/handler/api"
	internalrepo "StockFrame/internal/repository"
	"StockFrame/internal/service/alpaca"
	"StockFrame/internal/service/cache"
	"StockFrame/internal/service/ratelimit"
	"StockFrame/internal/usecase"
	pkgch "StockFrame/pkg/clickhouse"
	"StockFrame/pkg/config"
	xhttp "StockFrame/pkg/http"
	pkgkafka "StockFrame/pkg/kafka"
	applogger "StockFrame/pkg/logger"
	"StockFrame/pkg/metrics"
	"StockFrame/pkg/server"
)

// Sinks is the ordered list of exporters a run writes to.
type Sinks []repository.FeatureSink

// ProvideLogger creates the application logger.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	l, err := applogger.New(&applogger.Config{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		Output:     cfg.Logging.Output,
		TimeFormat: cfg.Logging.TimeFormat,
	})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	return l.With(applogger.String("env", cfg.Environment)), nil
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

// ProvideCache creates the bars cache; nil when disabled.
func ProvideCache(cfg *config.Config) (cache.BytesCache, error) {
	bc, err := cache.New(cache.Config{
		Backend:    cfg.Cache.Backend,
		MaxEntries: cfg.Cache.MaxEntries,
		LocalTTL:   cfg.Cache.LocalTTL,
		Redis: cache.RedisConfig{
			Addr:     cfg.Cache.Redis.Addr,
			Password: cfg.Cache.Redis.Password,
			DB:       cfg.Cache.Redis.DB,
			Prefix:   cfg.Cache.Redis.Prefix,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("cache: %w", err)
	}
	shared := bc
	if lc, ok := bc.(*cache.LayeredCache); ok {
		shared = lc.Shared()
	}
	if rc, ok := shared.(*cache.RedisCache); ok {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := rc.Ping(ctx); err != nil {
			_ = rc.Close()
			return nil, fmt.Errorf("redis ping: %w", err)
		}
	}
	return bc, nil
}

// ProvideLimiter creates the rate-limit gate shared by all fetches.
func ProvideLimiter() *ratelimit.Limiter {
	return ratelimit.New()
}

// ProvideAlpacaClient creates the market data client.
func ProvideAlpacaClient(
	cfg *config.Config,
	limiter *ratelimit.Limiter,
	bc cache.BytesCache,
	m repository.Metrics,
	l *applogger.Logger,
) (*alpaca.Client, error) {
	return alpaca.New(alpaca.Config{
		BaseURL:      cfg.Alpaca.BaseURL,
		KeyID:        cfg.Alpaca.KeyID,
		SecretKey:    cfg.Alpaca.SecretKey,
		Timeframe:    cfg.Alpaca.Timeframe,
		PageLimit:    cfg.Alpaca.PageLimit,
		RateLimit:    cfg.Alpaca.RateLimit,
		Burst:        cfg.Alpaca.Burst,
		MaxRetries:   cfg.Alpaca.MaxRetries,
		RetryBackoff: cfg.Alpaca.RetryBackoff,
		CacheTTL:     cfg.Cache.TTL,
	},
		alpaca.WithHTTPClient(xhttp.NewClient(xhttp.WithTimeout(cfg.Alpaca.Timeout), xhttp.WithUserAgent("stockframe"))),
		alpaca.WithLimiter(limiter),
		alpaca.WithCache(bc),
		alpaca.WithMetrics(m),
		alpaca.WithLogger(l),
	)
}

// ProvideClickHouseClient creates a ClickHouse client; nil when the sink is off.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	ch := cfg.Sinks.ClickHouse
	if !ch.Enabled {
		return nil, nil
	}
	client, err := pkgch.NewClient(
		pkgch.WithHost(ch.Host),
		pkgch.WithPort(ch.Port),
		pkgch.WithDatabase(ch.Database),
		pkgch.WithCredentials(ch.User, ch.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(ch.UseHTTP),
		pkgch.WithAsyncInsert(ch.AsyncInsert, ch.WaitForAsync),
		pkgch.WithTimeouts(ch.DialTimeout, ch.ReadTimeout),
		pkgch.WithMaxExecutionTime(ch.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}
	return client, nil
}

// ProvideKafkaProducer creates a Kafka producer; nil when Kafka is off.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	k := cfg.Sinks.Kafka
	if !k.Enabled {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(k.Brokers),
		pkgkafka.WithCompression(k.Compression),
		pkgkafka.WithRequiredAcks(k.RequiredAcks),
		pkgkafka.WithBatchSize(k.Producer.BatchSize),
		pkgkafka.WithBatchBytes(k.Producer.BatchBytes),
		pkgkafka.WithBatchTimeout(k.Producer.Linger),
		pkgkafka.WithTimeouts(k.Producer.WriteTimeout, k.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(k.Producer.MaxAttempts),
		pkgkafka.WithAsync(k.Producer.Async),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvideSnapshot creates the in-memory store behind the HTTP API.
func ProvideSnapshot() *internalrepo.Snapshot {
	return internalrepo.NewSnapshot()
}

// ProvideSinks builds every enabled exporter. The snapshot is always last so
// the API only sees tables the other sinks were offered.
func ProvideSinks(
	cfg *config.Config,
	snap *internalrepo.Snapshot,
	ch *pkgch.Client,
	producer *pkgkafka.Producer,
	l *applogger.Logger,
) (Sinks, error) {
	var sinks Sinks
	if cfg.Sinks.File.Enabled {
		fs, err := internalrepo.NewFileSink(cfg.Sinks.File.Format, cfg.Sinks.File.Path)
		if err != nil {
			return nil, fmt.Errorf("file sink: %w", err)
		}
		sinks = append(sinks, fs)
	}
	if ch != nil {
		store := internalrepo.NewCHFeatureStore(ch, cfg.Sinks.ClickHouse.Database+"."+cfg.Sinks.ClickHouse.Table, cfg.Sinks.ClickHouse.BatchSize)
		store.SetLogger(l)
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := store.InitSchema(ctx); err != nil {
			return nil, fmt.Errorf("clickhouse schema: %w", err)
		}
		sinks = append(sinks, store)
	}
	if producer != nil {
		sinks = append(sinks, internalrepo.NewKafkaFeaturePublisher(producer, cfg.Sinks.Kafka.Topic, cfg.Sinks.Kafka.Producer.BatchSize))
	}
	return append(sinks, snap), nil
}

// ProvideTableAssembler creates the fetch stage.
func ProvideTableAssembler(cfg *config.Config, client *alpaca.Client, m repository.Metrics, l *applogger.Logger) *usecase.TableAssembler {
	return usecase.NewTableAssembler(client, m, l,
		usecase.WithFetchWorkers(cfg.Pipeline.FetchWorkers),
		usecase.WithTickerTimeout(cfg.Pipeline.TickerTimeout),
	)
}

// ProvideFeatureStage creates the indicator stage.
func ProvideFeatureStage(cfg *config.Config, m repository.Metrics, l *applogger.Logger) *usecase.FeatureStage {
	return usecase.NewFeatureStage(
		usecase.WithFeatureWorkers(cfg.Pipeline.FeatureWorkers),
		usecase.WithShortHistoryPolicy(usecase.ShortHistoryPolicy(cfg.Pipeline.ShortHistory)),
		usecase.WithFeatureMetrics(m),
		usecase.WithFeatureLogger(l),
	)
}

// ProvideFeaturePipeline assembles the stage chain.
func ProvideFeaturePipeline(
	cfg *config.Config,
	assembler *usecase.TableAssembler,
	stage *usecase.FeatureStage,
	sinks Sinks,
	snap *internalrepo.Snapshot,
	m repository.Metrics,
	l *applogger.Logger,
) *usecase.FeaturePipeline {
	return usecase.NewFeaturePipeline(assembler, stage,
		usecase.WithSession(usecase.SessionWindow{StartHour: cfg.Pipeline.SessionStart, EndHour: cfg.Pipeline.SessionEnd}),
		usecase.WithMaxGridRows(cfg.Pipeline.MaxGridRows),
		usecase.WithSinks(sinks...),
		usecase.WithReportSinks(snap),
		usecase.WithPipelineMetrics(m),
		usecase.WithPipelineLogger(l),
	)
}

// ProvideHTTPServer creates the API server; nil when disabled.
func ProvideHTTPServer(cfg *config.Config, snap *internalrepo.Snapshot, l *applogger.Logger) *xhttp.Server {
	if !cfg.Server.Enabled {
		return nil
	}
	return xhttp.NewServer(api.NewFeaturesEchoHandler(l, snap), l,
		xhttp.WithHost(cfg.Server.Host),
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		xhttp.WithSlowThreshold(cfg.Server.SlowThreshold),
		xhttp.WithCORS(true, cfg.Server.CORSOrigins...),
	)
}

// ProvideApp creates the application and registers resources to release at
// shutdown. The log collector is flushed before the producer it publishes to
// is closed.
func ProvideApp(
	cfg *config.Config,
	l *applogger.Logger,
	pipeline *usecase.FeaturePipeline,
	httpServer *xhttp.Server,
	sinks Sinks,
	bc cache.BytesCache,
	ch *pkgch.Client,
	producer *pkgkafka.Producer,
) *server.App {
	var closers []server.Closer
	if producer != nil {
		closers = append(closers, server.Closer{Name: "kafka", Close: producer.Close})
	}
	if ch != nil {
		closers = append(closers, server.Closer{Name: "clickhouse", Close: ch.Close})
	}
	if c, ok := bc.(io.Closer); ok {
		closers = append(closers, server.Closer{Name: "cache", Close: c.Close})
	}
	for _, s := range sinks {
		closers = append(closers, server.Closer{Name: s.Name(), Close: s.Close})
	}
	if cfg.Logging.Collector.Enabled && producer != nil {
		l.AddCollector(&applogger.CollectionConfig{
			TimeInterval:   cfg.Logging.Collector.Interval,
			CountThreshold: cfg.Logging.Collector.Threshold,
			MinLevel:       cfg.Logging.Collector.MinLevel,
			Topic:          cfg.Logging.Collector.Topic,
			Publisher:      producer,
		})
		closers = append(closers, server.Closer{Name: "log collector", Close: func() error {
			l.RemoveCollector()
			return nil
		}})
	}
	return server.New(cfg, l, pipeline, httpServer, closers...)
}
