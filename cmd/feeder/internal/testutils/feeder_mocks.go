package testutils

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"
	"github.com/segmentio/kafka-go"

	"github.com/shubham-shewale/stock-rtd/cmd/feeder/internal/feeder"
	"github.com/shubham-shewale/stock-rtd/pkg/models"
)

type MockKafkaWriter struct {
	Messages   []kafka.Message
	Mu         sync.Mutex
	ShouldFail bool
	Closed     bool
}

func (m *MockKafkaWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	if m.ShouldFail {
		return errors.New("kafka error")
	}
	m.Messages = append(m.Messages, msgs...)
	return nil
}

func (m *MockKafkaWriter) Close() error {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	m.Closed = true
	return nil
}

// MockClock advances only when Sleep or After is called
type MockClock struct {
	CurrentTime time.Time
	Slept       []time.Duration
	// OnSleep runs after each Sleep with the number of sleeps so far
	OnSleep func(n int)
	mu      sync.Mutex
}

func (m *MockClock) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.CurrentTime
}

func (m *MockClock) Sleep(d time.Duration) {
	m.mu.Lock()
	m.CurrentTime = m.CurrentTime.Add(d)
	m.Slept = append(m.Slept, d)
	n := len(m.Slept)
	m.mu.Unlock()

	if m.OnSleep != nil {
		m.OnSleep(n)
	}
}

// After fires immediately after advancing the clock by d.
func (m *MockClock) After(d time.Duration) <-chan time.Time {
	m.Sleep(d)
	ch := make(chan time.Time, 1)
	ch <- m.Now()
	return ch
}

func (m *MockClock) SleepCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Slept)
}

// MockRand replays Values in order and then repeats the last one
type MockRand struct {
	Values []float64
	next   int
}

func (m *MockRand) Float64() float64 {
	if len(m.Values) == 0 {
		return 0.5
	}
	v := m.Values[min(m.next, len(m.Values)-1)]
	m.next++
	return v
}

type MockKafkaConn struct {
	CreatedTopics []kafka.TopicConfig
	CreateErr     error
	Partitions    []kafka.Partition
	Closed        bool
}

func (m *MockKafkaConn) Controller() (kafka.Broker, error) {
	return kafka.Broker{Host: "localhost", Port: 9092}, nil
}
func (m *MockKafkaConn) Close() error {
	m.Closed = true
	return nil
}
func (m *MockKafkaConn) CreateTopics(topics ...kafka.TopicConfig) error {
	m.CreatedTopics = append(m.CreatedTopics, topics...)
	return m.CreateErr
}
func (m *MockKafkaConn) ReadPartitions(topics ...string) ([]kafka.Partition, error) {
	if m.Partitions == nil {
		return []kafka.Partition{{ID: 0}}, nil
	}
	return m.Partitions, nil
}

// MockKafkaDialer refuses the addresses listed in Unreachable
type MockKafkaDialer struct {
	ConnSpy     *MockKafkaConn
	Unreachable map[string]bool
	Dialed      []string
}

func (m *MockKafkaDialer) DialContext(ctx context.Context, network, address string) (feeder.KafkaConn, error) {
	m.Dialed = append(m.Dialed, address)
	if m.Unreachable[address] {
		return nil, errors.New("connection refused")
	}
	if m.ConnSpy == nil {
		m.ConnSpy = &MockKafkaConn{}
	}
	return m.ConnSpy, nil
}

// MockSink records every quote it is handed
type MockSink struct {
	NameVal    string
	Quotes     []*models.Quote
	Payloads   [][]byte
	ShouldFail bool
	// OnWrite runs after each recorded write
	OnWrite func(n int)
	mu      sync.Mutex
}

func (m *MockSink) Name() string { return m.NameVal }

func (m *MockSink) Write(ctx context.Context, q *models.Quote, payload []byte) error {
	m.mu.Lock()
	if m.ShouldFail {
		m.mu.Unlock()
		return errors.New("sink error")
	}
	m.Quotes = append(m.Quotes, q)
	m.Payloads = append(m.Payloads, payload)
	n := len(m.Quotes)
	m.mu.Unlock()

	if m.OnWrite != nil {
		m.OnWrite(n)
	}
	return nil
}

func (m *MockSink) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Quotes)
}

// MockAlpacaClient returns canned market data and records the requests it saw
type MockAlpacaClient struct {
	Trade    *marketdata.Trade
	Quote    *marketdata.Quote
	TradeErr error
	QuoteErr error

	TradeReqs []marketdata.GetLatestTradeRequest
	QuoteReqs []marketdata.GetLatestQuoteRequest
	Symbols   []string
}

func (m *MockAlpacaClient) GetLatestTrade(symbol string, req marketdata.GetLatestTradeRequest) (*marketdata.Trade, error) {
	m.Symbols = append(m.Symbols, symbol)
	m.TradeReqs = append(m.TradeReqs, req)
	if m.TradeErr != nil {
		return nil, m.TradeErr
	}
	return m.Trade, nil
}

func (m *MockAlpacaClient) GetLatestQuote(symbol string, req marketdata.GetLatestQuoteRequest) (*marketdata.Quote, error) {
	m.Symbols = append(m.Symbols, symbol)
	m.QuoteReqs = append(m.QuoteReqs, req)
	if m.QuoteErr != nil {
		return nil, m.QuoteErr
	}
	return m.Quote, nil
}

// MockProvider fails while Err is set and otherwise returns a copy of Result
type MockProvider struct {
	Result *models.Quote
	Err    error
	Calls  int
}

func (m *MockProvider) Quote(ctx context.Context) (*models.Quote, error) {
	m.Calls++
	if m.Err != nil {
		return nil, m.Err
	}
	cp := *m.Result
	return &cp, nil
}
