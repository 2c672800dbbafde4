package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"gw2-flipper/internal/gw2"
	"gw2-flipper/internal/logger"
)

// Refresher owns the tracked item set and runs one snapshot cycle at
// a time: fetch prices and listings, update every item's trackers,
// score and rank flips. Cycles must not overlap; the caller's
// scheduler guarantees single-flight.
type Refresher struct {
	client *gw2.Client
	items  *gw2.ItemCache
	engine *Engine

	horizons []time.Duration
	params   FlipParams

	ids    []int
	states map[int]*ItemState
}

// NewRefresher creates a refresher tracking the given item ids.
// Untradeable and unknown ids are dropped up front.
func NewRefresher(client *gw2.Client, items *gw2.ItemCache, eng *Engine, ids []int, horizons []time.Duration, params FlipParams) *Refresher {
	return &Refresher{
		client:   client,
		items:    items,
		engine:   eng,
		horizons: horizons,
		params:   params,
		ids:      ids,
		states:   make(map[int]*ItemState),
	}
}

// Prime resolves item metadata and filters the tracked set down to
// tradeable items. Call once before the first cycle.
func (r *Refresher) Prime(ctx context.Context) {
	before := len(r.ids)
	r.ids = r.items.Prime(ctx, r.ids)
	if dropped := before - len(r.ids); dropped > 0 {
		logger.Info("REFRESH", fmt.Sprintf("dropped %d untradeable/unknown items, tracking %d", dropped, len(r.ids)))
	}
}

// TrackedItems returns the ids currently tracked.
func (r *Refresher) TrackedItems() []int {
	return r.ids
}

// State returns the tracked state for an item id, if any.
func (r *Refresher) State(id int) (*ItemState, bool) {
	st, ok := r.states[id]
	return st, ok
}

// RunCycle performs one refresh: both snapshot endpoints are fetched
// in parallel, then items are updated and scored on this goroutine.
// One unresolvable item never aborts the cycle; an id mismatch does,
// because it means snapshots got paired with the wrong items.
func (r *Refresher) RunCycle(ctx context.Context) ([]Flip, error) {
	if len(r.ids) == 0 {
		return nil, nil
	}

	var (
		prices     []*gw2.PriceSnapshot
		books      []*gw2.OrderBookSnapshot
		priceWarns []gw2.PageWarning
		bookWarns  []gw2.PageWarning
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		prices, priceWarns = r.client.FetchPrices(gctx, r.ids)
		return nil
	})
	g.Go(func() error {
		books, bookWarns = r.client.FetchListings(gctx, r.ids)
		return nil
	})
	_ = g.Wait()

	for _, w := range append(priceWarns, bookWarns...) {
		logger.Warn("REFRESH", fmt.Sprintf("page %d: server rejected ids %v", w.Page, w.RejectedIDs))
	}

	var flips []Flip
	for i, id := range r.ids {
		st, ok := r.states[id]
		if !ok {
			if prices[i] == nil || books[i] == nil {
				// can't seed tracking without a full first observation
				continue
			}
			info, err := r.items.Get(ctx, id)
			if err != nil {
				logger.Warn("REFRESH", fmt.Sprintf("item %d: %v", id, err))
				continue
			}
			r.states[id] = r.engine.NewItemState(info, prices[i], books[i], r.horizons)
			continue
		}

		if err := r.engine.ApplyPriceUpdate(st, prices[i]); err != nil {
			return nil, err
		}
		if err := r.engine.ApplyListingsUpdate(st, books[i]); err != nil {
			return nil, err
		}

		for _, tr := range st.Trackers {
			flips = append(flips, ScoreFlip(st, tr, r.params))
		}
	}

	RankFlips(flips)
	return flips, nil
}

// IsIDMismatch reports whether err is the precondition violation for
// wrongly paired snapshots.
func IsIDMismatch(err error) bool {
	return errors.Is(err, ErrIDMismatch)
}
