package feeder

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"

	"github.com/shubham-shewale/stock-rtd/pkg/models"
)

var ErrIncompleteMarketData = errors.New("incomplete market data")

// AlpacaProvider reads the latest trade and quote for one symbol from the IEX feed.
// Bid and ask come from the quote, last from the trade, and the timestamp is the quote's.
type AlpacaProvider struct {
	client AlpacaClient
	symbol string
	clock  Clock
	seq    int64
}

func NewAlpacaProvider(client AlpacaClient, symbol string, clock Clock) *AlpacaProvider {
	return &AlpacaProvider{client: client, symbol: symbol, clock: clock}
}

// NewAlpacaClient builds the market data client. An empty baseURL selects the public endpoint.
func NewAlpacaClient(apiKey, secretKey, baseURL string) *marketdata.Client {
	return marketdata.NewClient(marketdata.ClientOpts{
		APIKey:    apiKey,
		APISecret: secretKey,
		BaseURL:   baseURL,
	})
}

func (p *AlpacaProvider) Quote(ctx context.Context) (*models.Quote, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	trade, err := p.client.GetLatestTrade(p.symbol, marketdata.GetLatestTradeRequest{Feed: marketdata.IEX})
	if err != nil {
		return nil, fmt.Errorf("latest trade %s: %w", p.symbol, err)
	}
	quote, err := p.client.GetLatestQuote(p.symbol, marketdata.GetLatestQuoteRequest{Feed: marketdata.IEX})
	if err != nil {
		return nil, fmt.Errorf("latest quote %s: %w", p.symbol, err)
	}
	if trade == nil || quote == nil {
		return nil, fmt.Errorf("%w: %s", ErrIncompleteMarketData, p.symbol)
	}

	p.seq++
	return &models.Quote{
		Symbol:     p.symbol,
		BidPrice:   quote.BidPrice,
		AskPrice:   quote.AskPrice,
		LastPrice:  trade.Price,
		Timestamp:  quote.Timestamp.UTC().Format(time.RFC3339Nano),
		UpdateTime: p.clock.Now().Format(updateTimeLayout),
		SeqID:      p.seq,
	}, nil
}
