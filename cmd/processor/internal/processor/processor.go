package processor

import (
	"context"
	"errors"
	"hash/fnv"
	"io"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/shubham-shewale/stock-rtd/pkg/config"
	"github.com/shubham-shewale/stock-rtd/pkg/models"
)

const (
	workerQueueSize = 100
	readRetryDelay  = 500 * time.Millisecond
)

// Processor materializes the quote feed into redis. Messages are sharded by key so one
// symbol is always handled by the same worker, in order.
type Processor struct {
	logger     Logger
	rdb        RedisClient
	reader     KafkaReader
	metrics    *Metrics
	numWorkers int
	keyTTL     time.Duration
}

func NewProcessor(cfg *config.Config, logger Logger, rdb RedisClient, reader KafkaReader, metrics *Metrics) *Processor {
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	return &Processor{
		logger:     logger,
		rdb:        rdb,
		reader:     reader,
		metrics:    metrics,
		numWorkers: max(cfg.Processor.NumWorkers, 1),
		keyTTL:     cfg.Redis.KeyTTL,
	}
}

type job struct {
	key     string
	payload []byte
}

// Run consumes until ctx is done or the reader is closed, then drains the workers.
func (p *Processor) Run(ctx context.Context) error {
	workerChans := make([]chan job, p.numWorkers)
	var wg sync.WaitGroup

	for i := 0; i < p.numWorkers; i++ {
		workerChans[i] = make(chan job, workerQueueSize)
		wg.Add(1)
		go p.worker(i, workerChans[i], &wg)
	}

	p.logger.Info("Processor Started", zap.Int("workers", p.numWorkers))
	p.consume(ctx, workerChans)

	p.logger.Info("Waiting for workers to drain...")
	for _, ch := range workerChans {
		close(ch)
	}
	wg.Wait()

	return nil
}

func (p *Processor) consume(ctx context.Context, workerChans []chan job) {
	for {
		m, err := p.reader.ReadMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, io.EOF) {
				return
			}
			p.logger.Error("Kafka Read Error", zap.Error(err))
			select {
			case <-ctx.Done():
				return
			case <-time.After(readRetryDelay):
			}
			continue
		}

		// Deterministic sharding: same symbol always goes to same worker
		workerID := getWorkerID(m.Key, p.numWorkers)

		select {
		case workerChans[workerID] <- job{key: string(m.Key), payload: m.Value}:
		case <-ctx.Done():
			return
		default:
			// Only the latest quote matters; a full queue sheds rather than blocks
			p.metrics.Messages(ResultDropped).Inc()
			p.logger.Warn("Dropping slow packet", zap.String("key", string(m.Key)), zap.Int("worker_id", workerID))
		}
	}
}

func (p *Processor) worker(id int, jobs <-chan job, wg *sync.WaitGroup) {
	defer wg.Done()
	// Background context: a shutdown must not cut a redis write in half
	ctx := context.Background()

	// Deduplication state is local; sharding guarantees one owner per symbol
	lastSeq := make(map[string]int64)

	for j := range jobs {
		q, err := models.DecodeQuote(j.payload)
		if err != nil {
			p.metrics.Messages(ResultMalformed).Inc()
			p.logger.Error("Malformed quote", zap.String("key", j.key), zap.Error(err))
			continue
		}
		if q.Symbol == "" {
			q.Symbol = j.key
		}
		if q.Symbol == "" {
			p.metrics.Messages(ResultMalformed).Inc()
			p.logger.Error("Quote without symbol", zap.Int64("seq_id", q.SeqID))
			continue
		}

		// Unsequenced quotes are always applied
		if q.SeqID > 0 && q.SeqID <= lastSeq[q.Symbol] {
			p.metrics.Messages(ResultDuplicate).Inc()
			p.logger.Debug("Skipping duplicate update", zap.String("symbol", q.Symbol), zap.Int64("seq_id", q.SeqID))
			continue
		}

		if err := p.store(ctx, q.Symbol, j.payload); err != nil {
			p.metrics.Messages(ResultFailed).Inc()
			p.logger.Error("Redis Pipeline Error", zap.Error(err), zap.String("symbol", q.Symbol))
			continue
		}

		p.metrics.Messages(ResultStored).Inc()
		p.logger.Debug("Processed", zap.String("symbol", q.Symbol), zap.Int("worker_id", id), zap.Int64("seq_id", q.SeqID))
		if q.SeqID > 0 {
			lastSeq[q.Symbol] = q.SeqID
		}
	}
}

// store replaces the latest quote and announces it in one round trip.
func (p *Processor) store(ctx context.Context, symbol string, payload []byte) error {
	pipe := p.rdb.Pipeline()
	pipe.Set(ctx, models.QuoteKey(symbol), payload, p.keyTTL)
	pipe.Publish(ctx, models.QuoteChannel(symbol), payload)
	_, err := pipe.Exec(ctx)
	return err
}

func getWorkerID(key []byte, numWorkers int) int {
	h := fnv.New32a()
	h.Write(key)
	return int(h.Sum32() % uint32(numWorkers))
}
