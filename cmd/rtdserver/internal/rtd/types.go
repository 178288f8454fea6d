package rtd

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/shubham-shewale/stock-rtd/pkg/models"
)

// ErrNoData is returned by a Source that has nothing to offer yet.
var ErrNoData = errors.New("no data available")

// Logger abstracts the logging library
type Logger interface {
	Info(msg string, fields ...zap.Field)
	Error(msg string, fields ...zap.Field)
	Debug(msg string, fields ...zap.Field)
	Warn(msg string, fields ...zap.Field)
}

// Source yields the latest quote from the external feed.
type Source interface {
	Fetch(ctx context.Context) (*models.Quote, error)
}

// SourceFunc adapts a plain function to Source.
type SourceFunc func(ctx context.Context) (*models.Quote, error)

func (f SourceFunc) Fetch(ctx context.Context) (*models.Quote, error) { return f(ctx) }

// Notifier receives the "values changed, pull a snapshot" signal.
type Notifier interface {
	UpdateNotify()
}

// NotifierFunc adapts a plain function to Notifier.
type NotifierFunc func()

func (f NotifierFunc) UpdateNotify() { f() }
