package rtd

import "github.com/shubham-shewale/stock-rtd/pkg/models"

// HasChanged reports whether any recognized field differs between prev and next.
// Prices compare by exact equality. A nil record stands for the default quote.
func HasChanged(prev, next *models.Quote) bool {
	if prev == nil {
		prev = models.DefaultQuote()
	}
	if next == nil {
		next = models.DefaultQuote()
	}
	return prev.BidPrice != next.BidPrice ||
		prev.AskPrice != next.AskPrice ||
		prev.LastPrice != next.LastPrice ||
		prev.Timestamp != next.Timestamp
}
