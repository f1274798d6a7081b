package matchcore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLimitOrder_RejectsNonPositive(t *testing.T) {
	_, err := NewLimitOrder("ORD-1", "TRD-1", d("0"), d("1"), Buy)
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = NewLimitOrder("ORD-1", "TRD-1", d("1"), d("0"), Buy)
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = NewLimitOrder("ORD-1", "TRD-1", d("-5"), d("1"), Buy)
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestNewMarketOrder_RejectsNonPositiveQuantity(t *testing.T) {
	_, err := NewMarketOrder("ORD-1", "TRD-1", d("0"), Buy)
	assert.ErrorIs(t, err, ErrInvalidArgument)

	order, err := NewMarketOrder("ORD-1", "TRD-1", d("5"), Buy)
	require.NoError(t, err)
	assert.True(t, order.Price().IsZero())
}

func TestSetPrice_FailsOnMarketOrder(t *testing.T) {
	order, err := NewMarketOrder("ORD-1", "TRD-1", d("5"), Buy)
	require.NoError(t, err)

	err = order.SetPrice(d("10"))
	assert.ErrorIs(t, err, ErrWrongKind)
}

func TestSetQuantity_RejectsNonPositive(t *testing.T) {
	order, err := NewLimitOrder("ORD-1", "TRD-1", d("10"), d("5"), Buy)
	require.NoError(t, err)

	assert.ErrorIs(t, order.SetQuantity(d("0")), ErrInvalidArgument)
	assert.NoError(t, order.SetQuantity(d("3")))
	assert.True(t, order.Quantity().Equal(d("3")))
}

func TestIDGenerator_ProducesUniqueSequentialIDs(t *testing.T) {
	gen := newIDGenerator("ORD-")
	first := gen.next()
	second := gen.next()
	assert.Equal(t, "ORD-1", first)
	assert.Equal(t, "ORD-2", second)
}
