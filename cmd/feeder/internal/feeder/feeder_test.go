package feeder_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/shubham-shewale/stock-rtd/cmd/feeder/internal/feeder"
	"github.com/shubham-shewale/stock-rtd/cmd/feeder/internal/testutils"
	"github.com/shubham-shewale/stock-rtd/pkg/models"
)

func newFeeder(clock *testutils.MockClock, sinks ...feeder.Sink) *feeder.Feeder {
	gen := feeder.NewQuoteGenerator("NVDA", 100, 0.02, &testutils.MockRand{}, clock)
	return feeder.NewFeeder(zap.NewNop(), gen, sinks, 5*time.Second, clock)
}

func TestFeeder_PublishWritesEverySink(t *testing.T) {
	a := &testutils.MockSink{NameVal: "a"}
	b := &testutils.MockSink{NameVal: "b"}
	f := newFeeder(&testutils.MockClock{CurrentTime: epoch}, a, b)

	assert.Equal(t, 2, f.Publish(context.Background()))
	require.Equal(t, 1, a.Count())
	require.Equal(t, 1, b.Count())

	decoded, err := models.DecodeQuote(a.Payloads[0])
	require.NoError(t, err)
	assert.Equal(t, *a.Quotes[0], *decoded)
	assert.Same(t, a.Quotes[0], b.Quotes[0])
}

func TestFeeder_FailingSinkDoesNotStopOthers(t *testing.T) {
	broken := &testutils.MockSink{NameVal: "broken", ShouldFail: true}
	ok := &testutils.MockSink{NameVal: "ok"}
	f := newFeeder(&testutils.MockClock{CurrentTime: epoch}, broken, ok)

	assert.Equal(t, 1, f.Publish(context.Background()))
	assert.Equal(t, 1, ok.Count())
}

func TestFeeder_RunUntilCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sink := &testutils.MockSink{NameVal: "spy"}
	sink.OnWrite = func(n int) {
		if n == 3 {
			cancel()
		}
	}
	clock := &testutils.MockClock{CurrentTime: epoch}
	f := newFeeder(clock, sink)

	done := make(chan error, 1)
	go func() { done <- f.Run(ctx) }()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}

	assert.Equal(t, 3, sink.Count())
	for i, q := range sink.Quotes {
		assert.Equal(t, int64(i+1), q.SeqID)
	}
	// Waits happen between publishes at the configured interval
	for _, d := range clock.Slept {
		assert.Equal(t, 5*time.Second, d)
	}
}

func TestFeeder_RunWithCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sink := &testutils.MockSink{NameVal: "spy"}
	require.NoError(t, newFeeder(&testutils.MockClock{CurrentTime: epoch}, sink).Run(ctx))
	assert.Equal(t, 0, sink.Count())
}

func TestFeeder_PayloadKeys(t *testing.T) {
	sink := &testutils.MockSink{NameVal: "spy"}
	newFeeder(&testutils.MockClock{CurrentTime: epoch}, sink).Publish(context.Background())

	var raw map[string]any
	require.NoError(t, json.Unmarshal(sink.Payloads[0], &raw))
	for _, k := range []string{"BidPrice", "AskPrice", "LastPrice", "Timestamp", "UpdateTime", "Symbol", "SeqID"} {
		assert.Contains(t, raw, k)
	}
}

func TestFeeder_RunKeepsGoingAfterFetchFailure(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	provider := &testutils.MockProvider{Err: errors.New("feed down")}
	sink := &testutils.MockSink{NameVal: "spy", OnWrite: func(int) { cancel() }}
	clock := &testutils.MockClock{CurrentTime: epoch}
	clock.OnSleep = func(n int) {
		// Recover after two failed ticks
		if n == 2 {
			provider.Err = nil
		}
	}
	provider.Result = &models.Quote{Symbol: "NVDA", BidPrice: 1, AskPrice: 2, LastPrice: 1.5, Timestamp: "t"}

	require.NoError(t, feeder.NewFeeder(zap.NewNop(), provider, []feeder.Sink{sink}, time.Second, clock).Run(ctx))

	assert.Equal(t, 3, provider.Calls)
	assert.Equal(t, 1, sink.Count())
}
