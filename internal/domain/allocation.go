package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// InsufficientStockError reports that a request could not be fully satisfied.
// Available carries the total stock across all tiers at the time of the call.
type InsufficientStockError struct {
	Requested int64
	Available int64
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("not enough stock: requested %d, available %d", e.Requested, e.Available)
}

// Allocate greedily consumes stock in ascending-price order (cheapest tiers
// first) and returns the breakdown together with the updated tier list.
//
// The walk runs twice. The first pass is a dry run that only computes the
// breakdown; if it cannot satisfy the full quantity, an
// InsufficientStockError is returned and the input tiers are untouched. Only
// a fully satisfiable request reaches the second, mutating pass. A single
// mutating pass could leave stock decremented when a later tier turns out
// short, so the two-pass shape is mandatory.
//
// The input slice is never modified; the mutating pass works on a copy.
func Allocate(tiers []PriceTier, quantity int64) ([]BreakdownLine, []PriceTier, error) {
	// Dry run: compute the breakdown without touching stock.
	remaining := quantity
	var breakdown []BreakdownLine

	for _, t := range tiers {
		if remaining <= 0 {
			break
		}

		take := min(t.Stock, remaining)
		if take > 0 {
			breakdown = append(breakdown, BreakdownLine{Price: t.Price, Count: take})
			remaining -= take
		}
	}

	if remaining > 0 {
		return nil, nil, &InsufficientStockError{
			Requested: quantity,
			Available: TotalStock(tiers),
		}
	}

	// Commit: the same ascending walk, decrementing a copy.
	updated := CloneTiers(tiers)
	remaining = quantity

	for i := range updated {
		if remaining <= 0 {
			break
		}

		take := min(updated[i].Stock, remaining)
		if take > 0 {
			updated[i].Stock -= take
			remaining -= take
		}
	}

	return breakdown, updated, nil
}

// BreakdownTotal computes the purchase total as Σ price×count.
func BreakdownTotal(breakdown []BreakdownLine) decimal.Decimal {
	total := decimal.Zero
	for _, line := range breakdown {
		total = total.Add(line.Price.Mul(decimal.NewFromInt(line.Count)))
	}

	return total
}
