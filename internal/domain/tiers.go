package domain

import (
	"sort"

	"github.com/shopspring/decimal"
)

// SortTiers orders tiers ascending by price in place.
func SortTiers(tiers []PriceTier) {
	sort.SliceStable(tiers, func(i, j int) bool {
		return tiers[i].Price.LessThan(tiers[j].Price)
	})
}

// AddStock merges amount into the tier with matching price, or inserts a new
// tier when none exists, and returns the tier list re-sorted ascending.
func AddStock(tiers []PriceTier, price decimal.Decimal, amount int64) []PriceTier {
	for i := range tiers {
		if tiers[i].Price.Equal(price) {
			tiers[i].Stock += amount
			SortTiers(tiers)
			return tiers
		}
	}

	tiers = append(tiers, PriceTier{Price: price, Stock: amount})
	SortTiers(tiers)

	return tiers
}

// NormalizeTiers clamps negative stock to zero, merges duplicate prices and
// sorts ascending. Used by the administrative full tier replacement.
func NormalizeTiers(tiers []PriceTier) []PriceTier {
	out := make([]PriceTier, 0, len(tiers))

	for _, t := range tiers {
		stock := t.Stock
		if stock < 0 {
			stock = 0
		}

		merged := false
		for i := range out {
			if out[i].Price.Equal(t.Price) {
				out[i].Stock += stock
				merged = true
				break
			}
		}

		if !merged {
			out = append(out, PriceTier{Price: t.Price, Stock: stock})
		}
	}

	SortTiers(out)

	return out
}

// TotalStock sums the stock across all tiers.
func TotalStock(tiers []PriceTier) int64 {
	var total int64
	for _, t := range tiers {
		total += t.Stock
	}

	return total
}

// CloneTiers returns an independent copy of the tier list.
func CloneTiers(tiers []PriceTier) []PriceTier {
	out := make([]PriceTier, len(tiers))
	copy(out, tiers)
	return out
}

// RestoreBreakdown returns stock consumed by a purchase to the tier list.
// A line whose tier no longer exists is restored by recreating the tier at
// that price: conservation takes priority over tier-list stability.
func RestoreBreakdown(tiers []PriceTier, breakdown []BreakdownLine) []PriceTier {
	out := CloneTiers(tiers)

	for _, line := range breakdown {
		found := false
		for i := range out {
			if out[i].Price.Equal(line.Price) {
				out[i].Stock += line.Count
				found = true
				break
			}
		}

		if !found {
			out = append(out, PriceTier{Price: line.Price, Stock: line.Count})
		}
	}

	SortTiers(out)

	return out
}
