package feeder

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"
)

type Feeder struct {
	logger   *zap.Logger
	provider QuoteProvider
	sinks    []Sink
	interval time.Duration
	clock    Clock
}

func NewFeeder(logger *zap.Logger, provider QuoteProvider, sinks []Sink, interval time.Duration, clock Clock) *Feeder {
	return &Feeder{
		logger:   logger,
		provider: provider,
		sinks:    sinks,
		interval: interval,
		clock:    clock,
	}
}

// Run publishes one quote per interval until ctx is done.
// A failing sink is logged and skipped; the other sinks still receive the quote.
func (f *Feeder) Run(ctx context.Context) error {
	f.logger.Info("Feeder Started", zap.Duration("interval", f.interval), zap.Int("sinks", len(f.sinks)))

	for ctx.Err() == nil {
		f.Publish(ctx)

		select {
		case <-ctx.Done():
		case <-f.clock.After(f.interval):
		}
	}
	f.logger.Info("Feeder Stopped")
	return nil
}

// Publish fetches the next quote and hands it to every sink. It returns the number of sinks that accepted it.
// A failed fetch skips the tick; the sinks keep the previous quote.
func (f *Feeder) Publish(ctx context.Context) int {
	q, err := f.provider.Quote(ctx)
	if err != nil {
		f.logger.Warn("Failed to fetch quote, skipping tick", zap.Error(err))
		return 0
	}

	payload, err := json.Marshal(q)
	if err != nil {
		f.logger.Error("JSON Marshal Error", zap.Error(err))
		return 0
	}

	written := 0
	for _, s := range f.sinks {
		if err := s.Write(ctx, q, payload); err != nil {
			f.logger.Error("Sink Write Error", zap.String("sink", s.Name()), zap.Error(err))
			continue
		}
		written++
	}

	f.logger.Debug("Quote published",
		zap.String("symbol", q.Symbol),
		zap.Int64("seq", q.SeqID),
		zap.Float64("bid", q.BidPrice),
		zap.Float64("ask", q.AskPrice),
		zap.Float64("last", q.LastPrice),
		zap.Int("sinks", written))
	return written
}
