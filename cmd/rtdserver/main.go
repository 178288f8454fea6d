package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gobwas/ws"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/shubham-shewale/stock-rtd/cmd/rtdserver/internal/gateway"
	"github.com/shubham-shewale/stock-rtd/cmd/rtdserver/internal/hub"
	"github.com/shubham-shewale/stock-rtd/cmd/rtdserver/internal/rtd"
	"github.com/shubham-shewale/stock-rtd/cmd/rtdserver/internal/source"
	"github.com/shubham-shewale/stock-rtd/pkg/config"
)

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

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	src, closeSource, err := buildSource(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to build data source", zap.Error(err))
	}
	defer closeSource()

	metrics := rtd.NewMetrics(prometheus.DefaultRegisterer)

	// Each websocket session gets its own server; they share the source and metrics
	wsHub := hub.NewHub(func() *rtd.Server {
		return rtd.NewServer(src, logger, rtd.WithInterval(cfg.RTD.PollInterval), rtd.WithMetrics(metrics))
	}, logger)

	limits := gateway.Limits{
		CommandsPerSecond: cfg.Gateway.CommandsPerSecond,
		Burst:             cfg.Gateway.CommandBurst,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		conn, _, _, err := ws.UpgradeHTTP(r, w)
		if err != nil {
			logger.Warn("Websocket upgrade failed", zap.Error(err))
			return
		}

		client := gateway.NewClient(conn, wsHub, logger, limits)
		client.Start()
	})
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	srv := &http.Server{Addr: cfg.App.Port, Handler: mux}

	go func() {
		logger.Info("Server Started",
			zap.String("port", cfg.App.Port),
			zap.String("source", cfg.RTD.Source),
			zap.Duration("poll_interval", cfg.RTD.PollInterval))
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			logger.Fatal("HTTP Error", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	logger.Info("Shutdown signal received")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP shutdown error", zap.Error(err))
	}
	wsHub.Shutdown()
	logger.Info("Shutdown Complete")
}

func buildSource(ctx context.Context, cfg *config.Config, logger *zap.Logger) (rtd.Source, func(), error) {
	switch cfg.RTD.Source {
	case config.SourceFile:
		logger.Info("Polling data file", zap.String("path", cfg.RTD.DataFile))
		return source.NewFileSource(afero.NewOsFs(), cfg.RTD.DataFile), func() {}, nil

	case config.SourceRedis:
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			// The poll loop tolerates an unavailable source; keep serving defaults
			logger.Warn("Redis not reachable yet", zap.Error(err))
		}
		return source.NewRedisSource(rdb, cfg.RTD.Symbol), func() { rdb.Close() }, nil

	case config.SourceKafka:
		reader := kafka.NewReader(kafka.ReaderConfig{
			Brokers:  cfg.Kafka.Brokers,
			Topic:    cfg.Kafka.Topic,
			MinBytes: 1,
			MaxBytes: 10e6,
			MaxWait:  200 * time.Millisecond,
		})
		// No group: every rtd server process sees the whole stream
		if err := reader.SetOffset(kafka.LastOffset); err != nil {
			return nil, nil, fmt.Errorf("seek kafka reader: %w", err)
		}
		ks := source.NewKafkaSource(reader, cfg.RTD.Symbol, logger)
		go ks.Run(ctx)
		return ks, func() {
			if err := ks.Close(); err != nil {
				logger.Error("Error closing reader", zap.Error(err))
			}
		}, nil
	}
	return nil, nil, fmt.Errorf("unknown source %q", cfg.RTD.Source)
}
