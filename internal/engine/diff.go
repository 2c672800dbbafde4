package engine

import (
	"slices"

	"gw2-flipper/internal/gw2"
)

// SideOrder is the sort direction of an order book side.
type SideOrder int

const (
	// Descending is the buy side: best (highest) price first.
	Descending SideOrder = iota
	// Ascending is the sell side: best (lowest) price first.
	Ascending
)

// DiffSide infers the quantity consumed between two truncated
// snapshots of one book side.
//
// This is a heuristic, not a trade count: a cancelled or relisted
// order is indistinguishable from a fill in aggregated level data,
// and the trade-off is accepted to avoid order-level tracking.
//
// The walk is a two-pointer merge over the price-sorted levels:
//   - equal price: quantity shrink counts as filled, growth counts
//     as nothing, both pointers advance
//   - a previous price that no longer appears was consumed entirely,
//     only the previous pointer advances
//   - a current price that did not exist before is a fresh listing,
//     only the current pointer advances
//
// Levels past the end of the shorter list are ignored: below the
// truncation depth a vanished level is far more likely displaced
// than filled.
func DiffSide(prev, cur []gw2.BookLevel, order SideOrder) int {
	filled := 0
	i, j := 0, 0
	for i < len(prev) && j < len(cur) {
		// identical remainders contain no fills, stop comparing
		if i == j && slices.Equal(prev[i:], cur[j:]) {
			break
		}

		p, c := prev[i], cur[j]
		switch {
		case p.UnitPrice == c.UnitPrice:
			if d := p.Quantity - c.Quantity; d > 0 {
				filled += d
			}
			i++
			j++
		case levelGone(p.UnitPrice, c.UnitPrice, order):
			filled += p.Quantity
			i++
		default:
			j++
		}
	}
	return filled
}

// levelGone reports whether a previous level at prevPrice has been
// walked past by the current pointer, meaning it no longer exists.
// On the buy side (descending) that is a previous price above the
// current one; on the sell side (ascending) a previous price below.
func levelGone(prevPrice, curPrice int, order SideOrder) bool {
	if order == Descending {
		return prevPrice > curPrice
	}
	return prevPrice < curPrice
}

// AvgOrderSize returns the mean units per individual listing across
// a truncated side, or 0 for an empty side.
func AvgOrderSize(levels []gw2.BookLevel) float64 {
	quantity, listings := 0, 0
	for _, lv := range levels {
		quantity += lv.Quantity
		listings += lv.Listings
	}
	if listings == 0 {
		return 0
	}
	return float64(quantity) / float64(listings)
}
