package models

import (
	"encoding/json"
	"strconv"
)

// Marker strings rendered for topics that cannot be resolved.
const (
	InvalidTopicText = "Invalid Topic"
	NoTopicText      = "No Topic"
)

type ValueKind int

const (
	KindInvalid ValueKind = iota
	KindNumber
	KindString
	KindNoTopic
)

// Value is what a topic resolves to: a number, a string, or a marker.
type Value struct {
	Kind ValueKind
	Num  float64
	Str  string
}

var (
	InvalidTopic = Value{Kind: KindInvalid}
	NoTopic      = Value{Kind: KindNoTopic}
)

func Number(f float64) Value { return Value{Kind: KindNumber, Num: f} }
func String(s string) Value  { return Value{Kind: KindString, Str: s} }

// Interface returns the value the way a host renders it: float64 or string.
func (v Value) Interface() any {
	switch v.Kind {
	case KindNumber:
		return v.Num
	case KindString:
		return v.Str
	case KindNoTopic:
		return NoTopicText
	default:
		return InvalidTopicText
	}
}

func (v Value) String() string {
	if v.Kind == KindNumber {
		return strconv.FormatFloat(v.Num, 'f', -1, 64)
	}
	return v.Interface().(string)
}

func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Interface())
}
