package testutils

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/shubham-shewale/stock-rtd/cmd/rtdserver/internal/protocol"
	"github.com/shubham-shewale/stock-rtd/pkg/models"
)

// MockClient simulates a connected websocket client
type MockClient struct {
	IDVal         string
	Messages      []protocol.WSResponse
	Notifications int
	Closed        bool
	Mu            sync.Mutex
}

func NewMockClient(id string) *MockClient {
	return &MockClient{IDVal: id, Messages: make([]protocol.WSResponse, 0)}
}

func (m *MockClient) ID() string { return m.IDVal }

func (m *MockClient) Close() {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	m.Closed = true
}

func (m *MockClient) SendJSON(v interface{}) {
	m.Mu.Lock()
	defer m.Mu.Unlock()

	if resp, ok := v.(protocol.WSResponse); ok {
		m.Messages = append(m.Messages, resp)
	}
}

func (m *MockClient) Notify() {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	m.Notifications++
}

func (m *MockClient) NotifyCount() int {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	return m.Notifications
}

func (m *MockClient) LastMsg() protocol.WSResponse {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	if len(m.Messages) == 0 {
		return protocol.WSResponse{}
	}
	return m.Messages[len(m.Messages)-1]
}

// FetchResult is one scripted answer of a MockSource.
type FetchResult struct {
	Quote *models.Quote
	Err   error
}

// MockSource replays scripted results; once exhausted it keeps repeating the last one.
type MockSource struct {
	Results []FetchResult
	Delay   time.Duration
	Calls   int
	Mu      sync.Mutex
}

func NewMockSource(results ...FetchResult) *MockSource {
	return &MockSource{Results: results}
}

func (m *MockSource) Fetch(ctx context.Context) (*models.Quote, error) {
	m.Mu.Lock()
	idx := m.Calls
	m.Calls++
	delay := m.Delay
	var res FetchResult
	if len(m.Results) > 0 {
		if idx >= len(m.Results) {
			idx = len(m.Results) - 1
		}
		res = m.Results[idx]
	}
	m.Mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if res.Err != nil {
		return nil, res.Err
	}
	if res.Quote == nil {
		return models.DefaultQuote(), nil
	}
	cp := *res.Quote
	return &cp, nil
}

func (m *MockSource) CallCount() int {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	return m.Calls
}

// Push appends a result to the script.
func (m *MockSource) Push(r FetchResult) {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	m.Results = append(m.Results, r)
}

// CountingNotifier counts UpdateNotify calls and signals each one on C.
type CountingNotifier struct {
	C     chan struct{}
	count int
	mu    sync.Mutex
}

func NewCountingNotifier() *CountingNotifier {
	return &CountingNotifier{C: make(chan struct{}, 64)}
}

func (n *CountingNotifier) UpdateNotify() {
	n.mu.Lock()
	n.count++
	n.mu.Unlock()
	select {
	case n.C <- struct{}{}:
	default:
	}
}

func (n *CountingNotifier) Count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.count
}

// Quote builds a quote with the given prices and timestamp.
func Quote(bid, ask, last float64, ts string) *models.Quote {
	return &models.Quote{BidPrice: bid, AskPrice: ask, LastPrice: last, Timestamp: ts}
}

// MockKafkaReader replays Messages, then reports context.DeadlineExceeded to end the read loop.
type MockKafkaReader struct {
	Messages []kafka.Message
	Index    int
	Mu       sync.Mutex
	Closed   bool
	// Err, when set, fails every read
	Err   error
	Calls int
}

func (m *MockKafkaReader) ReadMessage(ctx context.Context) (kafka.Message, error) {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	m.Calls++

	if m.Closed {
		return kafka.Message{}, io.EOF
	}
	if m.Err != nil {
		return kafka.Message{}, m.Err
	}
	if m.Index >= len(m.Messages) {
		return kafka.Message{}, context.DeadlineExceeded
	}

	msg := m.Messages[m.Index]
	m.Index++
	return msg, nil
}

func (m *MockKafkaReader) CallCount() int {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	return m.Calls
}

func (m *MockKafkaReader) Close() error {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	m.Closed = true
	return nil
}
