package rtd_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/shubham-shewale/stock-rtd/cmd/rtdserver/internal/rtd"
	"github.com/shubham-shewale/stock-rtd/pkg/models"
)

func collect(r *rtd.Registry) ([]int, []models.Field) {
	var ids []int
	var fields []models.Field
	for id, f := range r.Active() {
		ids = append(ids, id)
		fields = append(fields, f)
	}
	return ids, fields
}

func TestRegistry_InsertionOrder(t *testing.T) {
	r := rtd.NewRegistry()
	r.Add(3, "bid")
	r.Add(1, "Ask")
	r.Add(2, "last")

	ids, fields := collect(r)
	assert.Equal(t, []int{3, 1, 2}, ids)
	assert.Equal(t, []models.Field{models.FieldBid, models.FieldAsk, models.FieldLast}, fields)
}

func TestRegistry_OverwriteKeepsSlot(t *testing.T) {
	r := rtd.NewRegistry()
	r.Add(1, "BID")
	r.Add(2, "ASK")
	r.Add(1, "timestamp")

	ids, fields := collect(r)
	assert.Equal(t, []int{1, 2}, ids)
	assert.Equal(t, models.FieldTimestamp, fields[0])
	assert.Equal(t, 2, r.Len())
}

func TestRegistry_Remove(t *testing.T) {
	r := rtd.NewRegistry()
	r.Add(1, "BID")
	r.Add(2, "ASK")
	r.Add(3, "LAST")

	r.Remove(2)
	r.Remove(42) // absent ids are ignored

	ids, _ := collect(r)
	assert.Equal(t, []int{1, 3}, ids)

	_, ok := r.Lookup(2)
	assert.False(t, ok)

	f, ok := r.Lookup(3)
	assert.True(t, ok)
	assert.Equal(t, models.FieldLast, f)

	// Re-adding goes to the back
	r.Add(2, "ASK")
	ids, _ = collect(r)
	assert.Equal(t, []int{1, 3, 2}, ids)
}

func TestRegistry_ActiveIsRestartableSnapshot(t *testing.T) {
	r := rtd.NewRegistry()
	r.Add(1, "BID")
	r.Add(2, "ASK")

	seq := r.Active()
	r.Remove(1)

	var first, second []int
	for id := range seq {
		first = append(first, id)
	}
	for id := range seq {
		second = append(second, id)
	}

	assert.Equal(t, []int{1, 2}, first, "iterator reflects the registry at the time Active was called")
	assert.Equal(t, first, second)
}

func TestRegistry_Clear(t *testing.T) {
	r := rtd.NewRegistry()
	r.Add(1, "BID")
	r.Clear()

	assert.Equal(t, 0, r.Len())
	ids, _ := collect(r)
	assert.Empty(t, ids)
}

func TestRegistry_UnknownFieldIsStored(t *testing.T) {
	r := rtd.NewRegistry()
	f := r.Add(9, " volume ")

	assert.Equal(t, models.Field("VOLUME"), f)
	assert.False(t, f.Known())
	got, ok := r.Lookup(9)
	assert.True(t, ok)
	assert.Equal(t, f, got)
}
