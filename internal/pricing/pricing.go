// Package pricing derives order totals from line items. All functions are
// pure so order detail views can recompute safely.
package pricing

import (
	"math"

	"shopflow-backend/internal/entities"
)

const (
	taxRate               = 0.08
	flatShipping          = 15
	freeShippingThreshold = 100
)

// Compute derives subtotal, tax, shipping and total for the given items and
// an absolute discount. Shipping is free strictly above the threshold; a
// subtotal of exactly 100 still pays flat shipping. The total is clamped at
// zero when the discount exceeds the rest of the order.
func Compute(items []entities.LineItem, discount float64) entities.Pricing {
	var subtotal float64
	for _, it := range items {
		subtotal += it.Price * float64(it.Quantity)
	}
	subtotal = round(subtotal)

	tax := round(subtotal * taxRate)

	var shipping float64 = flatShipping
	if subtotal > freeShippingThreshold {
		shipping = 0
	}

	total := round(subtotal + tax + shipping - discount)
	if total < 0 {
		total = 0
	}

	return entities.Pricing{
		Subtotal: subtotal,
		Tax:      tax,
		Shipping: shipping,
		Discount: discount,
		Total:    total,
	}
}

// round half-up to cents
func round(v float64) float64 {
	return math.Round(v*100) / 100
}
