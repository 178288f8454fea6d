package feeder

import (
	"context"
	"math"
	"time"

	"github.com/shubham-shewale/stock-rtd/pkg/models"
)

// updateTimeLayout matches the local wall clock stamp written next to the feed timestamp.
const updateTimeLayout = "2006-01-02T15:04:05"

// QuoteGenerator walks a last price around its base and derives bid and ask from the spread.
type QuoteGenerator struct {
	symbol string
	spread float64
	step   float64
	floor  float64
	rand   Rand
	clock  Clock
	last   float64
	seq    int64
}

// NewQuoteGenerator starts the walk at basePrice. Each step moves at most 0.5% of the base.
func NewQuoteGenerator(symbol string, basePrice, spread float64, rnd Rand, clock Clock) *QuoteGenerator {
	return &QuoteGenerator{
		symbol: symbol,
		spread: math.Abs(spread),
		step:   basePrice * 0.005,
		floor:  0.01,
		rand:   rnd,
		clock:  clock,
		last:   basePrice,
	}
}

// Next produces the following quote in the walk.
func (g *QuoteGenerator) Next() *models.Quote {
	move := (g.rand.Float64()*2 - 1) * g.step
	g.last = math.Max(roundCents(g.last+move), g.floor)
	g.seq++

	half := g.spread / 2
	now := g.clock.Now()

	return &models.Quote{
		Symbol:     g.symbol,
		BidPrice:   roundCents(math.Max(g.last-half, g.floor)),
		AskPrice:   roundCents(g.last + half),
		LastPrice:  g.last,
		Timestamp:  now.UTC().Format(time.RFC3339Nano),
		UpdateTime: now.Format(updateTimeLayout),
		SeqID:      g.seq,
	}
}

// Quote implements QuoteProvider. The walk never fails.
func (g *QuoteGenerator) Quote(ctx context.Context) (*models.Quote, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return g.Next(), nil
}

func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}
