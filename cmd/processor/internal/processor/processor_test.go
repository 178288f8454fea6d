package processor_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/shubham-shewale/stock-rtd/cmd/processor/internal/processor"
	"github.com/shubham-shewale/stock-rtd/cmd/processor/internal/testutils"
	"github.com/shubham-shewale/stock-rtd/pkg/config"
	"github.com/shubham-shewale/stock-rtd/pkg/models"
)

func quoteMsg(t *testing.T, q models.Quote) kafka.Message {
	t.Helper()
	val, err := json.Marshal(q)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return kafka.Message{Key: []byte(q.Symbol), Value: val}
}

func newConfig(workers int) *config.Config {
	cfg := &config.Config{}
	cfg.Processor.NumWorkers = workers
	cfg.Redis.KeyTTL = time.Hour
	return cfg
}

func run(t *testing.T, proc *processor.Processor) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := proc.Run(ctx); err != nil {
		t.Fatalf("Processor stopped with error: %v", err)
	}
}

func TestProcessor_WorkerLogic(t *testing.T) {
	msgs := []kafka.Message{
		quoteMsg(t, models.Quote{Symbol: "NVDA", BidPrice: 100, AskPrice: 100.1, LastPrice: 100, Timestamp: "t1", SeqID: 1}),
		quoteMsg(t, models.Quote{Symbol: "NVDA", BidPrice: 100, AskPrice: 100.1, LastPrice: 100, Timestamp: "t1", SeqID: 1}),
		quoteMsg(t, models.Quote{Symbol: "NVDA", BidPrice: 101, AskPrice: 101.1, LastPrice: 101, Timestamp: "t2", SeqID: 2}),
		quoteMsg(t, models.Quote{Symbol: "AAPL", BidPrice: 200, AskPrice: 200.1, LastPrice: 200, Timestamp: "t1", SeqID: 1}),
	}

	mockReader := &testutils.MockKafkaReader{Messages: msgs}
	mockRedis := testutils.NewMockRedisClient()
	metrics := processor.NewMetrics(nil)

	run(t, processor.NewProcessor(newConfig(2), zap.NewNop(), mockRedis, mockReader, metrics))

	pipeline := mockRedis.PipelineSpy
	pipeline.Mu.Lock()
	defer pipeline.Mu.Unlock()

	if pipeline.ExecCount != 3 {
		t.Errorf("Expected 3 pipeline executions, got %d", pipeline.ExecCount)
	}

	stored, ok := pipeline.Store["quote:NVDA"]
	if !ok {
		t.Fatal("Missing redis key for NVDA")
	}
	q, err := models.DecodeQuote([]byte(stored))
	if err != nil || q.SeqID != 2 || q.LastPrice != 101 {
		t.Errorf("Expected newest NVDA quote, got %s (%v)", stored, err)
	}
	if pipeline.TTLs["quote:NVDA"] != time.Hour {
		t.Errorf("Expected 1h TTL, got %s", pipeline.TTLs["quote:NVDA"])
	}
	if _, ok := pipeline.Store["quote:AAPL"]; !ok {
		t.Error("Missing redis key for AAPL")
	}
	if n := len(pipeline.Published["quotes.NVDA"]); n != 2 {
		t.Errorf("Expected 2 NVDA publishes, got %d", n)
	}

	if got := testutil.ToFloat64(metrics.Messages(processor.ResultStored)); got != 3 {
		t.Errorf("Expected 3 stored, got %v", got)
	}
	if got := testutil.ToFloat64(metrics.Messages(processor.ResultDuplicate)); got != 1 {
		t.Errorf("Expected 1 duplicate, got %v", got)
	}
}

func TestProcessor_InvalidJSON(t *testing.T) {
	msgs := []kafka.Message{
		{Key: []byte("NVDA"), Value: []byte("{broken-json")},
		// Missing the price fields
		{Key: []byte("NVDA"), Value: []byte(`{"Symbol":"NVDA","Timestamp":"t"}`)},
	}

	mockRedis := testutils.NewMockRedisClient()
	metrics := processor.NewMetrics(nil)
	run(t, processor.NewProcessor(newConfig(1), zap.NewNop(), mockRedis, &testutils.MockKafkaReader{Messages: msgs}, metrics))

	if mockRedis.PipelineSpy.ExecCount > 0 {
		t.Error("Should not execute Redis commands for invalid JSON")
	}
	if got := testutil.ToFloat64(metrics.Messages(processor.ResultMalformed)); got != 2 {
		t.Errorf("Expected 2 malformed, got %v", got)
	}
}

func TestProcessor_SymbolFromKey(t *testing.T) {
	payload := `{"BidPrice":1,"AskPrice":2,"LastPrice":1.5,"Timestamp":"t"}`
	msgs := []kafka.Message{{Key: []byte("NVDA"), Value: []byte(payload)}}

	mockRedis := testutils.NewMockRedisClient()
	run(t, processor.NewProcessor(newConfig(1), zap.NewNop(), mockRedis, &testutils.MockKafkaReader{Messages: msgs}, nil))

	if mockRedis.PipelineSpy.Store["quote:NVDA"] != payload {
		t.Errorf("Expected payload stored under message key, got %v", mockRedis.PipelineSpy.Store)
	}
}

func TestProcessor_FailedWriteIsNotRemembered(t *testing.T) {
	msg := quoteMsg(t, models.Quote{Symbol: "NVDA", BidPrice: 1, AskPrice: 2, LastPrice: 1.5, Timestamp: "t", SeqID: 7})

	mockRedis := testutils.NewMockRedisClient()
	mockRedis.PipelineSpy.FailExec = true
	metrics := processor.NewMetrics(nil)
	reader := &testutils.MockKafkaReader{Messages: []kafka.Message{msg, msg}}
	run(t, processor.NewProcessor(newConfig(1), zap.NewNop(), mockRedis, reader, metrics))

	// The redelivery is attempted again instead of being skipped as a duplicate
	if got := testutil.ToFloat64(metrics.Messages(processor.ResultFailed)); got != 2 {
		t.Errorf("Expected 2 failed writes, got %v", got)
	}
	if got := testutil.ToFloat64(metrics.Messages(processor.ResultDuplicate)); got != 0 {
		t.Errorf("Expected no duplicates, got %v", got)
	}
}

func TestProcessor_StopsOnClosedReader(t *testing.T) {
	reader := &testutils.MockKafkaReader{Closed: true}
	done := make(chan struct{})
	go func() {
		processor.NewProcessor(newConfig(1), zap.NewNop(), testutils.NewMockRedisClient(), reader, nil).Run(context.Background())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Processor did not stop after the reader closed")
	}
}

func TestProcessor_BacksOffOnReadError(t *testing.T) {
	reader := &testutils.MockKafkaReader{Err: errors.New("broker unavailable")}
	proc := processor.NewProcessor(newConfig(1), zap.NewNop(), testutils.NewMockRedisClient(), reader, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	start := time.Now()
	if err := proc.Run(ctx); err != nil {
		t.Fatalf("Processor stopped with error: %v", err)
	}

	// A failing reader is retried after a pause instead of in a tight loop
	if n := reader.CallCount(); n > 2 {
		t.Errorf("Expected at most 2 reads in 300ms, got %d", n)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("Run should return promptly on cancel, took %s", elapsed)
	}
}
