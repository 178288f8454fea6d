package source

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/shubham-shewale/stock-rtd/cmd/rtdserver/internal/rtd"
	"github.com/shubham-shewale/stock-rtd/pkg/models"
)

// Compile-time check to ensure RedisSource implements rtd.Source
var _ rtd.Source = (*RedisSource)(nil)

// RedisSource reads the quote the processor materialized under quote:<SYMBOL>.
type RedisSource struct {
	client RedisGetter
	key    string
}

func NewRedisSource(client RedisGetter, symbol string) *RedisSource {
	return &RedisSource{client: client, key: models.QuoteKey(symbol)}
}

func (r *RedisSource) Fetch(ctx context.Context) (*models.Quote, error) {
	payload, err := r.client.Get(ctx, r.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: key %s not set", rtd.ErrNoData, r.key)
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", r.key, err)
	}
	return models.DecodeQuote(payload)
}
