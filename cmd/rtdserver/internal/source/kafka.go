package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/shubham-shewale/stock-rtd/cmd/rtdserver/internal/rtd"
	"github.com/shubham-shewale/stock-rtd/pkg/models"
)

var _ rtd.Source = (*KafkaSource)(nil)

const readRetryDelay = 500 * time.Millisecond

// KafkaSource consumes the feeder's quote topic in the background and serves
// the newest quote for one symbol. Messages with a SeqID at or below the last
// accepted one are dropped.
type KafkaSource struct {
	reader KafkaReader
	symbol string
	logger Logger
	latest atomic.Pointer[models.Quote]
}

func NewKafkaSource(reader KafkaReader, symbol string, logger Logger) *KafkaSource {
	return &KafkaSource{reader: reader, symbol: symbol, logger: logger}
}

// Run reads until ctx is cancelled or the reader is closed.
func (k *KafkaSource) Run(ctx context.Context) {
	k.logger.Info("Kafka source started", zap.String("symbol", k.symbol))
	for {
		m, err := k.reader.ReadMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
				return
			}
			if errors.Is(err, io.EOF) {
				return
			}
			k.logger.Error("Kafka Read Error", zap.Error(err))
			select {
			case <-ctx.Done():
				return
			case <-time.After(readRetryDelay):
			}
			continue
		}

		if string(m.Key) != k.symbol {
			continue
		}

		q, err := models.DecodeQuote(m.Value)
		if err != nil {
			k.logger.Warn("Skipping malformed quote", zap.Error(err), zap.Int64("offset", m.Offset))
			continue
		}

		if prev := k.latest.Load(); prev != nil && q.SeqID <= prev.SeqID {
			k.logger.Debug("Skipping duplicate quote", zap.Int64("seq_id", q.SeqID), zap.Int64("last_seq", prev.SeqID))
			continue
		}
		k.latest.Store(q)
	}
}

func (k *KafkaSource) Fetch(ctx context.Context) (*models.Quote, error) {
	q := k.latest.Load()
	if q == nil {
		return nil, fmt.Errorf("%w: nothing consumed for %s yet", rtd.ErrNoData, k.symbol)
	}
	return q, nil
}

func (k *KafkaSource) Close() error {
	return k.reader.Close()
}
