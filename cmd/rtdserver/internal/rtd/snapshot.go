package rtd

import (
	"iter"

	"github.com/shubham-shewale/stock-rtd/pkg/models"
)

// TopicValue pairs a topic id with its resolved value.
type TopicValue struct {
	TopicID int          `json:"topic_id"`
	Value   models.Value `json:"value"`
}

// Snapshot is the value of every active topic at one point in time.
type Snapshot struct {
	Topics []TopicValue
}

// Assemble resolves every topic against a single quote. Callers must load the
// quote once so that all topics see the same record.
func Assemble(topics iter.Seq2[int, models.Field], q *models.Quote) Snapshot {
	if q == nil {
		q = models.DefaultQuote()
	}

	var snap Snapshot
	for id, field := range topics {
		snap.Topics = append(snap.Topics, TopicValue{TopicID: id, Value: q.Value(field)})
	}
	return snap
}

func (s Snapshot) Len() int    { return len(s.Topics) }
func (s Snapshot) Empty() bool { return len(s.Topics) == 0 }

// Get returns the value reported for one topic.
func (s Snapshot) Get(id int) (models.Value, bool) {
	for _, tv := range s.Topics {
		if tv.TopicID == id {
			return tv.Value, true
		}
	}
	return models.Value{}, false
}

// Table lays the snapshot out as two rows: topic ids, then rendered values.
// An empty snapshot yields nil.
func (s Snapshot) Table() [][]any {
	if s.Empty() {
		return nil
	}

	ids := make([]any, len(s.Topics))
	values := make([]any, len(s.Topics))
	for i, tv := range s.Topics {
		ids[i] = tv.TopicID
		values[i] = tv.Value.Interface()
	}
	return [][]any{ids, values}
}
