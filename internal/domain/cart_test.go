package domain

import (
	"math"
	"math/rand"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePrice(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"89€", "89"},
		{"199 €", "199"},
		{"12,50€", "12.5"},
		{"1.299,90 €", "1299.9"},
		{"$15.25", "15.25"},
		{"0€", "0"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParsePrice(tt.in)
			require.NoError(t, err)
			assert.True(t, got.Equal(decimal.RequireFromString(tt.want)), "got %s", got)
		})
	}
}

func TestParsePrice_Invalid(t *testing.T) {
	for _, in := range []string{"", "€", "abc€", "-5€", "1,2,3"} {
		_, err := ParsePrice(in)
		assert.ErrorIs(t, err, ErrInvalidPrice, in)
	}
}

func TestFormatPrice(t *testing.T) {
	assert.Equal(t, "89€", FormatPrice(decimal.NewFromInt(89), "€"))
	assert.Equal(t, "75,40€", FormatPrice(decimal.RequireFromString("75.4"), "€"))
}

func TestCart_AddTwiceMergesLine(t *testing.T) {
	var c Cart
	item := Item{ID: 5, Name: "Analyse environnementale", Price: "249€"}

	require.NoError(t, c.Add(item, 1))
	require.NoError(t, c.Add(item, 1))

	require.Len(t, c.Items, 1)
	assert.Equal(t, 2, c.Items[0].Quantity)
}

func TestCart_AddAccumulates(t *testing.T) {
	var c Cart
	item := Item{ID: 1, Name: "Analyse de sang complète", Price: "89€"}

	require.NoError(t, c.Add(item, 3))
	require.NoError(t, c.Add(item, 4))

	line, ok := c.Find(1)
	require.True(t, ok)
	assert.Equal(t, 7, line.Quantity)
}

func TestCart_AddRejectsBadInput(t *testing.T) {
	var c Cart
	assert.ErrorIs(t, c.Add(Item{ID: 1, Name: "x", Price: "1€"}, 0), ErrInvalidQuantity)
	assert.ErrorIs(t, c.Add(Item{ID: 0, Name: "x", Price: "1€"}, 1), ErrInvalidItem)
	assert.ErrorIs(t, c.Add(Item{ID: 2, Name: "", Price: "1€"}, 1), ErrInvalidItem)
	assert.ErrorIs(t, c.Add(Item{ID: 3, Name: "x", Price: "free"}, 1), ErrInvalidPrice)
	assert.Empty(t, c.Items)
}

func TestCart_SetQuantityZeroIsRemove(t *testing.T) {
	item := Item{ID: 2, Name: "Test ADN paternité", Price: "199€"}

	var a, b Cart
	require.NoError(t, a.Add(item, 2))
	require.NoError(t, b.Add(item, 2))

	assert.True(t, a.SetQuantity(2, 0))
	assert.True(t, b.Remove(2))
	assert.True(t, a.Equal(b))
	assert.Empty(t, a.Items)
}

func TestCart_RemoveAbsentIsNoop(t *testing.T) {
	var c Cart
	require.NoError(t, c.Add(Item{ID: 1, Name: "a", Price: "1€"}, 1))
	assert.False(t, c.Remove(42))
	assert.Len(t, c.Items, 1)
}

func TestCart_Totals(t *testing.T) {
	var c Cart
	require.NoError(t, c.Add(Item{ID: 1, Name: "Analyse de sang complète", Price: "89€"}, 2))
	require.NoError(t, c.Add(Item{ID: 2, Name: "Test ADN paternité", Price: "199€"}, 1))

	assert.Equal(t, 3, c.TotalItems())
	assert.True(t, c.TotalPrice().Equal(decimal.NewFromInt(377)))
}

func TestCart_InvariantsUnderRandomOps(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	items := []Item{
		{ID: 1, Name: "a", Price: "89€"},
		{ID: 2, Name: "b", Price: "199€"},
		{ID: 3, Name: "c", Price: "12,50€"},
	}

	var c Cart
	for i := 0; i < 2000; i++ {
		item := items[rng.Intn(len(items))]
		switch rng.Intn(3) {
		case 0:
			_ = c.Add(item, rng.Intn(4)+1)
		case 1:
			c.Remove(item.ID)
		case 2:
			c.SetQuantity(item.ID, rng.Intn(5)-1)
		}

		seen := map[int64]bool{}
		sum := 0
		for _, line := range c.Items {
			require.False(t, seen[line.ID], "duplicate id %d", line.ID)
			require.GreaterOrEqual(t, line.Quantity, 1)
			seen[line.ID] = true
			sum += line.Quantity
		}
		require.Equal(t, sum, c.TotalItems())
	}
}

func TestCart_CloneIsIndependent(t *testing.T) {
	var c Cart
	require.NoError(t, c.Add(Item{ID: 1, Name: "a", Price: "1€"}, 1))

	clone := c.Clone()
	clone.Items[0].Quantity = 9

	assert.Equal(t, 1, c.Items[0].Quantity)
}

func TestInvoice_Scenario(t *testing.T) {
	var c Cart
	require.NoError(t, c.Add(Item{ID: 1, Name: "Analyse de sang complète", Price: "89€"}, 2))
	require.NoError(t, c.Add(Item{ID: 2, Name: "Test ADN paternité", Price: "199€"}, 1))

	inv := NewInvoice(c, DefaultTaxRate)

	assert.True(t, inv.Subtotal.Equal(decimal.NewFromInt(377)), "subtotal %s", inv.Subtotal)
	assert.True(t, inv.Tax.Equal(decimal.RequireFromString("75.4")), "tax %s", inv.Tax)
	assert.True(t, inv.Total.Equal(decimal.RequireFromString("452.4")), "total %s", inv.Total)
	require.Len(t, inv.Lines, 2)
	assert.True(t, inv.Lines[0].Amount.Equal(decimal.NewFromInt(178)))
}

func TestInvoice_Empty(t *testing.T) {
	inv := NewInvoice(Cart{}, DefaultTaxRate)
	assert.True(t, inv.Total.IsZero())
	assert.Empty(t, inv.Lines)
}

func TestCart_AddRejectsOverflow(t *testing.T) {
	var c Cart
	item := Item{ID: 1, Name: "Analyse de sang complète", Price: "89€"}

	require.NoError(t, c.Add(item, math.MaxInt))
	assert.ErrorIs(t, c.Add(item, 1), ErrInvalidQuantity)

	// a second line cannot push TotalItems past MaxInt either
	other := Item{ID: 2, Name: "Test ADN paternité", Price: "199€"}
	assert.ErrorIs(t, c.Add(other, 1), ErrInvalidQuantity)

	require.Len(t, c.Items, 1)
	assert.Equal(t, math.MaxInt, c.Items[0].Quantity)
	assert.Equal(t, math.MaxInt, c.TotalItems())
	assert.True(t, c.TotalPrice().IsPositive())
}

func TestCart_CheckQuantity(t *testing.T) {
	var c Cart
	require.NoError(t, c.Add(Item{ID: 1, Name: "a", Price: "1€"}, 10))
	require.NoError(t, c.Add(Item{ID: 2, Name: "b", Price: "1€"}, 5))

	assert.NoError(t, c.CheckQuantity(1, math.MaxInt-5))
	assert.ErrorIs(t, c.CheckQuantity(1, math.MaxInt-4), ErrInvalidQuantity)
	assert.ErrorIs(t, c.CheckQuantity(3, math.MaxInt-14), ErrInvalidQuantity)
	assert.NoError(t, c.CheckQuantity(1, 0))
	assert.NoError(t, c.CheckQuantity(1, -1))
}
