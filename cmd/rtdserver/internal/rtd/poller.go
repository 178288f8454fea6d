package rtd

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/shubham-shewale/stock-rtd/pkg/models"
)

// DefaultInterval is the poll period used when none is configured.
const DefaultInterval = time.Second

type pollerState int

const (
	pollerIdle pollerState = iota
	pollerRunning
	pollerStopped
)

// Poller fetches from a Source on a fixed period and, when the quote changed,
// publishes it to current and then signals the notifier once.
// A Poller runs at most once; Stop is terminal.
type Poller struct {
	source   Source
	interval time.Duration
	current  *atomic.Pointer[models.Quote]
	notifier Notifier
	logger   Logger
	metrics  *Metrics

	mu      sync.Mutex
	state   pollerState
	cancel  context.CancelFunc
	stopped atomic.Bool
	done    chan struct{}
}

func NewPoller(source Source, interval time.Duration, current *atomic.Pointer[models.Quote], notifier Notifier, logger Logger, metrics *Metrics) *Poller {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	return &Poller{
		source:   source,
		interval: interval,
		current:  current,
		notifier: notifier,
		logger:   logger,
		metrics:  metrics,
		done:     make(chan struct{}),
	}
}

// Start launches the loop. The first tick runs immediately.
func (p *Poller) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state != pollerIdle {
		return
	}
	p.state = pollerRunning

	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	go p.run(ctx)
}

// Stop suppresses future ticks and discards the result of an in-flight one.
// It does not wait for the loop to exit, so it may be called from the notifier.
func (p *Poller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch p.state {
	case pollerStopped:
		return
	case pollerIdle:
		close(p.done)
	case pollerRunning:
		p.cancel()
	}
	p.stopped.Store(true)
	p.state = pollerStopped
}

// Done is closed once the loop has exited.
func (p *Poller) Done() <-chan struct{} { return p.done }

func (p *Poller) run(ctx context.Context) {
	defer close(p.done)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.tick(ctx)
		}
	}
}

type fetchResult struct {
	quote *models.Quote
	err   error
}

func (p *Poller) tick(ctx context.Context) {
	fetchCtx, cancel := context.WithTimeout(ctx, p.interval)
	defer cancel()

	// A source that ignores its context is abandoned at the deadline rather than awaited.
	results := make(chan fetchResult, 1)
	go func() {
		q, err := p.source.Fetch(fetchCtx)
		results <- fetchResult{quote: q, err: err}
	}()

	var res fetchResult
	select {
	case res = <-results:
	case <-fetchCtx.Done():
		res.err = fetchCtx.Err()
	}

	if ctx.Err() != nil {
		p.metrics.observePoll(pollDiscarded)
		return
	}
	if res.err == nil && res.quote == nil {
		res.err = ErrNoData
	}
	if res.err != nil {
		p.metrics.observePoll(pollError)
		p.logger.Warn("Fetch failed, keeping previous quote", zap.Error(res.err))
		return
	}

	if !HasChanged(p.current.Load(), res.quote) {
		p.metrics.observePoll(pollUnchanged)
		return
	}

	// Swapping under mu orders the store before any Stop, and so before a restart resets current.
	p.mu.Lock()
	if p.state == pollerStopped {
		p.mu.Unlock()
		p.metrics.observePoll(pollDiscarded)
		return
	}
	p.current.Store(res.quote)
	p.mu.Unlock()
	p.metrics.observePoll(pollChanged)
	p.logger.Debug("Quote changed",
		zap.Float64("bid", res.quote.BidPrice),
		zap.Float64("ask", res.quote.AskPrice),
		zap.Float64("last", res.quote.LastPrice),
		zap.String("timestamp", res.quote.Timestamp))

	if p.stopped.Load() {
		return
	}
	p.metrics.notifications.Inc()
	p.notifier.UpdateNotify()
}
