package rtd

import (
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/shubham-shewale/stock-rtd/pkg/models"
)

type serverState int

const (
	serverIdle serverState = iota
	serverRunning
	serverStopped
)

// Server is one real-time data server instance serving a single listener.
//
// The host subscribes topics, receives a zero payload notification whenever the
// feed changes, and pulls the values of all its topics with Snapshot.
type Server struct {
	source   Source
	logger   Logger
	interval time.Duration
	metrics  *Metrics

	registry *Registry
	current  atomic.Pointer[models.Quote]

	mu       sync.Mutex
	state    serverState
	poller   *Poller
	notifier Notifier
}

type Option func(*Server)

// WithInterval sets the poll period.
func WithInterval(d time.Duration) Option {
	return func(s *Server) { s.interval = d }
}

// WithMetrics shares a metrics set between servers.
func WithMetrics(m *Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

func NewServer(source Source, logger Logger, opts ...Option) *Server {
	s := &Server{
		source:   source,
		logger:   logger,
		interval: DefaultInterval,
		registry: NewRegistry(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.metrics == nil {
		s.metrics = NewMetrics(nil)
	}
	s.current.Store(models.DefaultQuote())
	return s
}

// Start records the listener, resets the quote to defaults and begins polling.
// It returns 1 on success and 0 when n is missing. Starting a running server is a no-op.
func (s *Server) Start(n Notifier) int {
	if n == nil {
		return 0
	}
	if f, ok := n.(NotifierFunc); ok && f == nil {
		return 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == serverRunning {
		return 1
	}
	if s.state == serverStopped {
		s.registry.Clear()
	}

	s.notifier = n
	s.current.Store(models.DefaultQuote())
	s.poller = NewPoller(s.source, s.interval, &s.current, n, s.logger, s.metrics)
	s.state = serverRunning
	s.poller.Start()
	s.metrics.running.Inc()

	s.logger.Info("RTD server started", zap.Duration("interval", s.interval))
	return 1
}

// Stop halts polling, releases the listener and drops every topic.
// Safe to call repeatedly and from inside the listener's UpdateNotify.
func (s *Server) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != serverRunning {
		return
	}
	s.poller.Stop()
	s.notifier = nil
	s.registry.Clear()
	s.state = serverStopped
	s.metrics.running.Dec()

	s.logger.Info("RTD server stopped")
}

// Heartbeat returns 1 while the server is running.
func (s *Server) Heartbeat() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == serverRunning {
		return 1
	}
	return 0
}

// Done is closed once the current poll loop has exited. It is nil before the first Start.
func (s *Server) Done() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.poller == nil {
		return nil
	}
	return s.poller.Done()
}

// Subscribe registers topic id against the first of fields and returns the
// value currently held for it. Unknown fields are recorded and answered with
// models.InvalidTopic; an empty fields list records nothing and yields models.NoTopic.
func (s *Server) Subscribe(id int, fields []string) models.Value {
	if len(fields) == 0 {
		return models.NoTopic
	}

	// Holding mu across the check and the Add keeps a concurrent Stop from clearing
	// the registry in between.
	s.mu.Lock()
	if s.state == serverStopped {
		s.mu.Unlock()
		return models.NoTopic
	}
	field := s.registry.Add(id, fields[0])
	s.mu.Unlock()

	if !field.Known() {
		s.logger.Warn("Subscribed to unknown field", zap.Int("topic_id", id), zap.String("field", string(field)))
	}
	return s.current.Load().Value(field)
}

// Unsubscribe drops topic id. Unknown ids are ignored.
func (s *Server) Unsubscribe(id int) {
	s.registry.Remove(id)
}

// Value resolves a single active topic.
func (s *Server) Value(id int) (models.Value, bool) {
	field, ok := s.registry.Lookup(id)
	if !ok {
		return models.Value{}, false
	}
	return s.current.Load().Value(field), true
}

// Snapshot returns the value of every active topic.
func (s *Server) Snapshot() Snapshot {
	return Assemble(s.registry.Active(), s.current.Load())
}

// Current returns the quote the server is serving from.
func (s *Server) Current() *models.Quote {
	return s.current.Load()
}

// Topics returns the number of active topics.
func (s *Server) Topics() int {
	return s.registry.Len()
}
