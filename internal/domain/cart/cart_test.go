package cart_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/rcarvalho-pb/pos_terminal-go/internal/domain/cart"
)

var (
	cola  = cart.Product{ID: 1, Name: "Coca Cola 500ml", Price: decimal.RequireFromString("60.00"), Barcode: "1234567890123", Stock: 50}
	bread = cart.Product{ID: 2, Name: "White Bread", Price: decimal.RequireFromString("45.00"), Barcode: "2345678901234", Stock: 2}
)

func TestCart_AddSameProductTwice_IncrementsQuantity(t *testing.T) {
	c := cart.New()

	_, err := c.Add(cola)
	require.NoError(t, err)
	line, err := c.Add(cola)
	require.NoError(t, err)

	require.Len(t, c.Lines(), 1)
	require.Equal(t, 2, line.Quantity)
	require.True(t, decimal.RequireFromString("120").Equal(line.LineTotal))
}

func TestCart_DecrementLastUnit_RemovesLine(t *testing.T) {
	c := cart.New()
	_, err := c.Add(cola)
	require.NoError(t, err)
	_, err = c.Add(bread)
	require.NoError(t, err)

	removed, err := c.Decrement(cola.ID)

	require.NoError(t, err)
	require.True(t, removed)
	_, ok := c.Line(cola.ID)
	require.False(t, ok)
	require.Len(t, c.Lines(), 1)
}

func TestCart_Decrement_KeepsLineWhileUnitsRemain(t *testing.T) {
	c := cart.New()
	_, _ = c.Add(cola)
	_, _ = c.Add(cola)

	removed, err := c.Decrement(cola.ID)

	require.NoError(t, err)
	require.False(t, removed)
	line, ok := c.Line(cola.ID)
	require.True(t, ok)
	require.Equal(t, 1, line.Quantity)
	require.True(t, cola.Price.Equal(line.LineTotal))
}

func TestCart_Add_RespectsStock(t *testing.T) {
	c := cart.New()

	_, err := c.Add(cart.Product{ID: 9, Name: "Empty shelf", Price: decimal.NewFromInt(1)})
	require.ErrorIs(t, err, cart.ErrOutOfStock)

	_, err = c.Add(bread)
	require.NoError(t, err)
	_, err = c.Add(bread)
	require.NoError(t, err)
	_, err = c.Add(bread)
	require.ErrorIs(t, err, cart.ErrStockExceeded)

	line, _ := c.Line(bread.ID)
	require.Equal(t, 2, line.Quantity)
}

func TestCart_Increment(t *testing.T) {
	c := cart.New()
	_, _ = c.Add(bread)

	line, err := c.Increment(bread.ID, bread.Stock)
	require.NoError(t, err)
	require.Equal(t, 2, line.Quantity)

	_, err = c.Increment(bread.ID, bread.Stock)
	require.ErrorIs(t, err, cart.ErrStockExceeded)

	_, err = c.Increment(42, 10)
	require.ErrorIs(t, err, cart.ErrLineNotFound)
}

func TestCart_Remove(t *testing.T) {
	c := cart.New()
	_, _ = c.Add(cola)
	_, _ = c.Add(cola)

	require.NoError(t, c.Remove(cola.ID))
	require.True(t, c.IsEmpty())
	require.ErrorIs(t, c.Remove(cola.ID), cart.ErrLineNotFound)
}

func TestCart_Totals_AppliesTax(t *testing.T) {
	c := cart.New()
	_, _ = c.Add(cola)
	_, _ = c.Add(cola)
	_, _ = c.Add(bread)

	totals := c.Totals(cart.DefaultTaxRate)

	require.Equal(t, "165.00", totals.Subtotal.StringFixed(2))
	require.Equal(t, "26.40", totals.Tax.StringFixed(2))
	require.Equal(t, "191.40", totals.Total.StringFixed(2))
}

func TestNew_DropsDuplicateAndEmptyLines(t *testing.T) {
	c := cart.New(
		cart.Line{ProductID: 1, Name: "Coca Cola 500ml", Price: cola.Price, Quantity: 3},
		cart.Line{ProductID: 1, Name: "Coca Cola 500ml", Price: cola.Price, Quantity: 1},
		cart.Line{ProductID: 2, Name: "White Bread", Price: bread.Price, Quantity: 0},
	)

	lines := c.Lines()
	require.Len(t, lines, 1)
	require.Equal(t, "180.00", lines[0].LineTotal.StringFixed(2))
}
