package engine

import (
	"errors"
	"fmt"
	"time"

	"gw2-flipper/internal/gw2"
)

// ErrIDMismatch is returned when a snapshot is applied to an item it
// does not belong to. Unlike a missing snapshot (which is a no-op),
// this is a caller bug and never recovered from silently.
var ErrIDMismatch = errors.New("snapshot id does not match item id")

// Engine updates per-item trend state from market snapshots. It is
// not safe for concurrent use on the same ItemState; the refresh
// cycle drives all updates from a single goroutine.
type Engine struct {
	refreshInterval time.Duration
	now             func() time.Time
}

// NewEngine creates an engine with the configured nominal refresh
// interval. Observed deltas are rescaled to rates per this interval
// so tracker units stay constant even when the real update cadence
// drifts.
func NewEngine(refreshInterval time.Duration) *Engine {
	return &Engine{
		refreshInterval: refreshInterval,
		now:             time.Now,
	}
}

// NewItemState starts tracking an item from its first pair of
// snapshots. One tracker is created per horizon; all of them share
// the returned state record.
func (e *Engine) NewItemState(info gw2.ItemInfo, prices *gw2.PriceSnapshot, book *gw2.OrderBookSnapshot, horizons []time.Duration) *ItemState {
	now := e.now()
	st := &ItemState{
		ItemID:      info.ID,
		Name:        info.Name,
		VendorValue: info.VendorValue,
		PricesAt:    now,
		ListingsAt:  now,
	}
	for _, h := range horizons {
		st.Trackers = append(st.Trackers, &HorizonTracker{Horizon: h})
	}
	if prices != nil {
		st.BuyPrice = prices.Buys.UnitPrice
		st.SellPrice = prices.Sells.UnitPrice
		st.Demand = prices.Buys.Quantity
		st.Supply = prices.Sells.Quantity
		st.LastPrices = prices
	}
	if book != nil {
		st.AvgBidSize = AvgOrderSize(book.Buys)
		st.AvgOfferSize = AvgOrderSize(book.Sells)
		st.LastBook = book
	}
	return st
}

// ApplyPriceUpdate folds a fresh prices snapshot into every horizon
// tracker, then moves the shared state to the new observation. A nil
// snapshot (unresolved fetch) is a no-op.
func (e *Engine) ApplyPriceUpdate(st *ItemState, snap *gw2.PriceSnapshot) error {
	if snap == nil {
		return nil
	}
	if snap.ID != st.ItemID {
		return fmt.Errorf("%w: item %d, snapshot %d", ErrIDMismatch, st.ItemID, snap.ID)
	}

	now := e.now()
	elapsed := now.Sub(st.PricesAt)
	if elapsed <= 0 {
		// same-instant duplicate, would divide by zero and
		// double-count
		return nil
	}

	norm := e.refreshInterval.Seconds() / elapsed.Seconds()
	for _, tr := range st.Trackers {
		w := weight(elapsed, tr.Horizon)
		tr.BuyPriceDelta = blend(tr.BuyPriceDelta, w, norm*float64(snap.Buys.UnitPrice-st.BuyPrice))
		tr.SellPriceDelta = blend(tr.SellPriceDelta, w, norm*float64(snap.Sells.UnitPrice-st.SellPrice))
		tr.DemandDelta = blend(tr.DemandDelta, w, norm*float64(snap.Buys.Quantity-st.Demand))
		tr.SupplyDelta = blend(tr.SupplyDelta, w, norm*float64(snap.Sells.Quantity-st.Supply))
	}

	st.BuyPrice = snap.Buys.UnitPrice
	st.SellPrice = snap.Sells.UnitPrice
	st.Demand = snap.Buys.Quantity
	st.Supply = snap.Sells.Quantity
	st.LastPrices = snap
	st.PricesAt = now
	return nil
}

// ApplyListingsUpdate diffs a fresh order book snapshot against the
// previous one, folds the inferred fills into every horizon tracker,
// then moves the shared state to the new observation. A nil snapshot
// (unresolved fetch) is a no-op.
func (e *Engine) ApplyListingsUpdate(st *ItemState, snap *gw2.OrderBookSnapshot) error {
	if snap == nil {
		return nil
	}
	if snap.ID != st.ItemID {
		return fmt.Errorf("%w: item %d, snapshot %d", ErrIDMismatch, st.ItemID, snap.ID)
	}

	now := e.now()
	elapsed := now.Sub(st.ListingsAt)
	if elapsed <= 0 {
		return nil
	}

	var filledBuys, filledSells int
	if st.LastBook != nil {
		filledBuys = DiffSide(st.LastBook.Buys, snap.Buys, Descending)
		filledSells = DiffSide(st.LastBook.Sells, snap.Sells, Ascending)
	}

	norm := e.refreshInterval.Seconds() / elapsed.Seconds()
	for _, tr := range st.Trackers {
		w := weight(elapsed, tr.Horizon)
		tr.FillRateBuys = blend(tr.FillRateBuys, w, norm*float64(filledBuys))
		tr.FillRateSells = blend(tr.FillRateSells, w, norm*float64(filledSells))
	}

	st.AvgBidSize = AvgOrderSize(snap.Buys)
	st.AvgOfferSize = AvgOrderSize(snap.Sells)
	st.LastBook = snap
	st.ListingsAt = now
	return nil
}

// weight is the fraction of the new observation blended in, in
// [0, 1]. It saturates at 1 once the elapsed time covers the whole
// horizon: the new observation then fully replaces the old value.
func weight(elapsed, horizon time.Duration) float64 {
	w := elapsed.Seconds() / horizon.Seconds()
	if w > 1 {
		return 1
	}
	return w
}

func blend(old, w, observed float64) float64 {
	return (1-w)*old + w*observed
}
