package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/shubham-shewale/stock-rtd/cmd/feeder/internal/feeder"
	"github.com/shubham-shewale/stock-rtd/pkg/config"
)

const quotePartitions = 4

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	logger, err := config.NewLogger(cfg.Logger)
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	clock := feeder.RealClock{}
	sinks, closers, err := buildSinks(ctx, cfg, logger, clock)
	if err != nil {
		logger.Fatal("Failed to build sinks", zap.Error(err))
	}

	f := feeder.NewFeeder(logger, buildProvider(cfg, logger, clock), sinks, cfg.Feeder.Interval, clock)

	// Run returns once the signal context is cancelled
	if err := f.Run(ctx); err != nil {
		logger.Error("Feeder exited with error", zap.Error(err))
	}
	logger.Info("Shutdown signal received")

	// Flush buffered kafka messages
	for _, c := range closers {
		if err := c(); err != nil {
			logger.Error("Error closing sink", zap.Error(err))
		}
	}
	logger.Info("Shutdown Complete")
}

func buildProvider(cfg *config.Config, logger *zap.Logger, clock feeder.Clock) feeder.QuoteProvider {
	if cfg.Feeder.Provider == config.ProviderAlpaca {
		logger.Info("Fetching live quotes from Alpaca", zap.String("symbol", cfg.Feeder.Symbol), zap.String("feed", "iex"))
		client := feeder.NewAlpacaClient(cfg.Alpaca.APIKey, cfg.Alpaca.SecretKey, cfg.Alpaca.BaseURL)
		return feeder.NewAlpacaProvider(client, cfg.Feeder.Symbol, clock)
	}

	logger.Info("Simulating quotes", zap.String("symbol", cfg.Feeder.Symbol), zap.Float64("base_price", cfg.Feeder.BasePrice))
	return feeder.NewQuoteGenerator(cfg.Feeder.Symbol, cfg.Feeder.BasePrice, cfg.Feeder.Spread, feeder.NewRealRand(), clock)
}

func buildSinks(ctx context.Context, cfg *config.Config, logger *zap.Logger, clock feeder.Clock) ([]feeder.Sink, []func() error, error) {
	var sinks []feeder.Sink
	var closers []func() error

	for _, name := range cfg.Feeder.Sinks {
		switch name {
		case config.SourceFile:
			logger.Info("Writing data file", zap.String("path", cfg.RTD.DataFile))
			sinks = append(sinks, feeder.NewFileSink(afero.NewOsFs(), cfg.RTD.DataFile))

		case config.SourceKafka:
			dialer := &feeder.RealKafkaDialer{Dialer: &kafka.Dialer{Timeout: 10 * time.Second}}
			if err := feeder.NewTopicCreator(logger, dialer, clock).Ensure(ctx, cfg.Kafka.Brokers, cfg.Kafka.Topic, quotePartitions); err != nil {
				// The writer retries on its own once the cluster comes up
				logger.Warn("Topic not ensured", zap.Error(err))
			}

			writer := &kafka.Writer{
				Addr:         kafka.TCP(cfg.Kafka.Brokers...),
				Topic:        cfg.Kafka.Topic,
				Balancer:     &kafka.Hash{},
				BatchTimeout: 10 * time.Millisecond,
			}
			ks := feeder.NewKafkaSink(writer)
			sinks = append(sinks, ks)
			closers = append(closers, ks.Close)

		default:
			return nil, nil, fmt.Errorf("unknown feeder sink %q", name)
		}
	}

	if len(sinks) == 0 {
		return nil, nil, fmt.Errorf("no feeder sinks configured")
	}
	return sinks, closers, nil
}
