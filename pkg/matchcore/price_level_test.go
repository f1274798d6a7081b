package matchcore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPriceLevel_FIFOOrder(t *testing.T) {
	level := newPriceLevel(d("100"))

	first, err := NewLimitOrder("ORD-1", "TRD-1", d("100"), d("5"), Sell)
	require.NoError(t, err)
	second, err := NewLimitOrder("ORD-2", "TRD-1", d("100"), d("5"), Sell)
	require.NoError(t, err)

	level.Add(first)
	level.Add(second)

	front, ok := level.Front()
	require.True(t, ok)
	assert.Equal(t, first.ID(), front.ID())

	assert.True(t, level.Remove(first.ID()))
	front, ok = level.Front()
	require.True(t, ok)
	assert.Equal(t, second.ID(), front.ID())
}

func TestPriceLevel_RemoveUnknownReturnsFalse(t *testing.T) {
	level := newPriceLevel(d("100"))
	assert.False(t, level.Remove("no-such-id"))
}

func TestPriceLevel_TotalQuantity(t *testing.T) {
	level := newPriceLevel(d("100"))
	o1, _ := NewLimitOrder("ORD-1", "TRD-1", d("100"), d("5"), Sell)
	o2, _ := NewLimitOrder("ORD-2", "TRD-1", d("100"), d("7"), Sell)
	level.Add(o1)
	level.Add(o2)

	assert.True(t, level.TotalQuantity().Equal(d("12")))
	assert.False(t, level.IsEmpty())

	level.popFront()
	level.popFront()
	assert.True(t, level.IsEmpty())
}
