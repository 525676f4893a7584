package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDropTally(t *testing.T) {
	a := DropTally{}
	a.Add(DropUnknownOrder, 2)
	a.Add(DropUnknownProduct, 1)

	b := DropTally{}
	b.Add(DropUnknownOrder, 3)
	a.Merge(b)

	assert.Equal(t, int64(5), a[DropUnknownOrder])
	assert.Equal(t, int64(6), a.Total())
	assert.Equal(t, []DropReason{DropUnknownOrder, DropUnknownProduct}, a.Reasons())
}

func TestExpand(t *testing.T) {
	line := LineAllocation{OrderID: "A", Units: 3}
	units := line.Expand()
	require.Len(t, units, 3)
	for _, u := range units {
		assert.Equal(t, int64(1), u.Units)
		assert.Equal(t, "A", u.OrderID)
	}
	assert.Empty(t, LineAllocation{Units: 0}.Expand())
}
