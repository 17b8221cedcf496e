package pricing_test

import (
	"testing"

	"shopflow-backend/internal/entities"
	"shopflow-backend/internal/pricing"

	"github.com/stretchr/testify/assert"
)

func items(pairs ...[2]float64) []entities.LineItem {
	out := make([]entities.LineItem, 0, len(pairs))
	for _, p := range pairs {
		out = append(out, entities.LineItem{Price: p[0], Quantity: int(p[1])})
	}
	return out
}

func TestCompute(t *testing.T) {
	testCases := []struct {
		name     string
		items    []entities.LineItem
		discount float64
		want     entities.Pricing
	}{
		{
			name:  "free shipping over threshold",
			items: items([2]float64{60, 2}),
			want:  entities.Pricing{Subtotal: 120, Tax: 9.6, Shipping: 0, Total: 129.6},
		},
		{
			name:  "flat shipping under threshold",
			items: items([2]float64{20, 1}),
			want:  entities.Pricing{Subtotal: 20, Tax: 1.6, Shipping: 15, Total: 36.6},
		},
		{
			name:  "subtotal exactly at threshold still pays shipping",
			items: items([2]float64{50, 2}),
			want:  entities.Pricing{Subtotal: 100, Tax: 8, Shipping: 15, Total: 123},
		},
		{
			name:  "just above threshold ships free",
			items: items([2]float64{100.01, 1}),
			want:  entities.Pricing{Subtotal: 100.01, Tax: 8, Shipping: 0, Total: 108.01},
		},
		{
			name:     "discount reduces total",
			items:    items([2]float64{60, 2}),
			discount: 20,
			want:     entities.Pricing{Subtotal: 120, Tax: 9.6, Shipping: 0, Discount: 20, Total: 109.6},
		},
		{
			name:     "oversized discount clamps total at zero",
			items:    items([2]float64{10, 1}),
			discount: 500,
			want:     entities.Pricing{Subtotal: 10, Tax: 0.8, Shipping: 15, Discount: 500, Total: 0},
		},
		{
			name:  "multiple items sum",
			items: items([2]float64{19.99, 3}, [2]float64{5.5, 2}),
			want:  entities.Pricing{Subtotal: 70.97, Tax: 5.68, Shipping: 15, Total: 91.65},
		},
		{
			name:  "fractional cents rounded",
			items: items([2]float64{0.10, 3}),
			want:  entities.Pricing{Subtotal: 0.3, Tax: 0.02, Shipping: 15, Total: 15.32},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := pricing.Compute(tc.items, tc.discount)
			assert.InDelta(t, tc.want.Subtotal, got.Subtotal, 1e-9, "subtotal")
			assert.InDelta(t, tc.want.Tax, got.Tax, 1e-9, "tax")
			assert.InDelta(t, tc.want.Shipping, got.Shipping, 1e-9, "shipping")
			assert.InDelta(t, tc.want.Discount, got.Discount, 1e-9, "discount")
			assert.InDelta(t, tc.want.Total, got.Total, 1e-9, "total")
		})
	}
}

func TestCompute_TotalIdentity(t *testing.T) {
	// total == subtotal + tax + shipping - discount for any non-clamped input
	cases := []struct {
		items    []entities.LineItem
		discount float64
	}{
		{items([2]float64{12.34, 2}, [2]float64{0.99, 5}), 0},
		{items([2]float64{75, 1}), 10},
		{items([2]float64{199.99, 1}), 25.5},
	}
	for _, c := range cases {
		got := pricing.Compute(c.items, c.discount)
		assert.InDelta(t, got.Subtotal+got.Tax+got.Shipping-got.Discount, got.Total, 0.011)
	}
}

func TestCompute_Pure(t *testing.T) {
	in := items([2]float64{42, 2})
	first := pricing.Compute(in, 5)
	second := pricing.Compute(in, 5)
	assert.Equal(t, first, second)
}
