package testutils

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
)

type MockKafkaReader struct {
	Messages []kafka.Message
	Index    int
	Mu       sync.Mutex
	// Closed simulates a closed connection or end of stream
	Closed bool
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
		// Returning DeadlineExceeded is a clean way to stop the processor loop in tests
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

// MockPipeline records queued commands; Exec applies them to Store
type MockPipeline struct {
	redis.Pipeliner // Embed interface to satisfy the methods the processor never calls

	ExecCount    int
	RecordedCmds []string
	Store        map[string]string
	TTLs         map[string]time.Duration
	Published    map[string][]string
	FailExec     bool
	Mu           sync.Mutex

	pending []func()
}

func (m *MockPipeline) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	m.RecordedCmds = append(m.RecordedCmds, "SET "+key)
	m.pending = append(m.pending, func() {
		m.Store[key] = toString(value)
		m.TTLs[key] = expiration
	})
	return redis.NewStatusCmd(ctx)
}

func (m *MockPipeline) Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	m.RecordedCmds = append(m.RecordedCmds, "PUBLISH "+channel)
	m.pending = append(m.pending, func() {
		m.Published[channel] = append(m.Published[channel], toString(message))
	})
	return redis.NewIntCmd(ctx)
}

func (m *MockPipeline) Exec(ctx context.Context) ([]redis.Cmder, error) {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	pending := m.pending
	m.pending = nil
	if m.FailExec {
		return nil, errors.New("redis down")
	}
	m.ExecCount++
	for _, apply := range pending {
		apply()
	}
	return nil, nil
}

func toString(v interface{}) string {
	switch t := v.(type) {
	case []byte:
		return string(t)
	case string:
		return t
	}
	return ""
}

type MockRedisClient struct {
	PipelineSpy *MockPipeline
}

func NewMockRedisClient() *MockRedisClient {
	return &MockRedisClient{PipelineSpy: &MockPipeline{
		Store:     make(map[string]string),
		TTLs:      make(map[string]time.Duration),
		Published: make(map[string][]string),
	}}
}

// Pipeline shares one spy between workers
func (m *MockRedisClient) Pipeline() redis.Pipeliner {
	return m.PipelineSpy
}

func (m *MockRedisClient) Ping(ctx context.Context) *redis.StatusCmd {
	return redis.NewStatusCmd(ctx)
}

func (m *MockRedisClient) Close() error { return nil }
