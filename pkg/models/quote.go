package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrMalformedQuote is returned when a payload does not carry the full field set.
var ErrMalformedQuote = errors.New("malformed quote")

// TimestampUnknown is reported for TIMESTAMP before any data has been received.
const TimestampUnknown = "N/A"

// Field names a value within a Quote that a topic can subscribe to.
type Field string

const (
	FieldBid       Field = "BID"
	FieldAsk       Field = "ASK"
	FieldLast      Field = "LAST"
	FieldTimestamp Field = "TIMESTAMP"
)

// Fields lists every recognized field.
var Fields = []Field{FieldBid, FieldAsk, FieldLast, FieldTimestamp}

// NormalizeField upper-cases and trims a caller supplied field name.
func NormalizeField(name string) Field {
	return Field(strings.ToUpper(strings.TrimSpace(name)))
}

// Known reports whether f is one of the recognized fields.
func (f Field) Known() bool {
	switch f {
	case FieldBid, FieldAsk, FieldLast, FieldTimestamp:
		return true
	}
	return false
}

// Quote is the latest known value of every field as of one feed read.
// Treat it as immutable once published.
type Quote struct {
	Symbol     string  `json:"Symbol,omitempty"`
	BidPrice   float64 `json:"BidPrice"`
	AskPrice   float64 `json:"AskPrice"`
	LastPrice  float64 `json:"LastPrice"`
	Timestamp  string  `json:"Timestamp"`
	UpdateTime string  `json:"UpdateTime,omitempty"`
	SeqID      int64   `json:"SeqID,omitempty"`
}

// QuoteKey is the redis key holding the latest quote for a symbol.
func QuoteKey(symbol string) string { return "quote:" + symbol }

// QuoteChannel is the redis channel quote updates are published on.
func QuoteChannel(symbol string) string { return "quotes." + symbol }

// DefaultQuote is the record held before the feed has produced anything.
func DefaultQuote() *Quote {
	return &Quote{Timestamp: TimestampUnknown}
}

// Value resolves a field against the quote. Unknown fields yield InvalidTopic.
func (q *Quote) Value(f Field) Value {
	switch f {
	case FieldBid:
		return Number(q.BidPrice)
	case FieldAsk:
		return Number(q.AskPrice)
	case FieldLast:
		return Number(q.LastPrice)
	case FieldTimestamp:
		if q.Timestamp == "" {
			return String(TimestampUnknown)
		}
		return String(q.Timestamp)
	default:
		return InvalidTopic
	}
}

// wireQuote uses pointers so missing keys can be told apart from zero values.
type wireQuote struct {
	Symbol     string   `json:"Symbol"`
	BidPrice   *float64 `json:"BidPrice"`
	AskPrice   *float64 `json:"AskPrice"`
	LastPrice  *float64 `json:"LastPrice"`
	Timestamp  *string  `json:"Timestamp"`
	UpdateTime string   `json:"UpdateTime"`
	SeqID      int64    `json:"SeqID"`
}

// DecodeQuote parses a feed payload. Any schema violation wraps ErrMalformedQuote.
func DecodeQuote(payload []byte) (*Quote, error) {
	var w wireQuote
	if err := json.Unmarshal(payload, &w); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedQuote, err)
	}

	var missing []string
	if w.BidPrice == nil {
		missing = append(missing, "BidPrice")
	}
	if w.AskPrice == nil {
		missing = append(missing, "AskPrice")
	}
	if w.LastPrice == nil {
		missing = append(missing, "LastPrice")
	}
	if w.Timestamp == nil {
		missing = append(missing, "Timestamp")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: missing %s", ErrMalformedQuote, strings.Join(missing, ", "))
	}

	return &Quote{
		Symbol:     w.Symbol,
		BidPrice:   *w.BidPrice,
		AskPrice:   *w.AskPrice,
		LastPrice:  *w.LastPrice,
		Timestamp:  *w.Timestamp,
		UpdateTime: w.UpdateTime,
		SeqID:      w.SeqID,
	}, nil
}
