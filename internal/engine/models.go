package engine

import (
	"time"

	"gw2-flipper/internal/gw2"
)

// ItemState is the single shared "current observation" record for a
// tracked item. All of the item's horizon trackers blend against the
// values held here; the state itself always reflects only the most
// recent snapshot, independent of horizon.
type ItemState struct {
	ItemID      int
	Name        string
	VendorValue int

	BuyPrice     int     // highest buy order, copper
	SellPrice    int     // lowest sell listing, copper
	Demand       int     // quantity wanted at the best buy price
	Supply       int     // quantity offered at the best sell price
	AvgBidSize   float64 // average units per buy order across the book
	AvgOfferSize float64 // average units per sell listing across the book

	LastPrices *gw2.PriceSnapshot
	LastBook   *gw2.OrderBookSnapshot
	PricesAt   time.Time
	ListingsAt time.Time

	Trackers []*HorizonTracker
}

// Tracker returns the tracker for the given horizon, or nil.
func (s *ItemState) Tracker(horizon time.Duration) *HorizonTracker {
	for _, tr := range s.Trackers {
		if tr.Horizon == horizon {
			return tr
		}
	}
	return nil
}

// HorizonTracker holds exponentially-weighted trend rates over one
// trailing window. All fields are rates per nominal refresh cycle,
// not raw sums. The blend weight saturates at 1 once the time since
// the previous observation exceeds the horizon, so a tracker never
// carries indefinitely stale momentum.
type HorizonTracker struct {
	Horizon time.Duration

	BuyPriceDelta  float64 // copper per cycle
	SellPriceDelta float64 // copper per cycle
	DemandDelta    float64 // units per cycle
	SupplyDelta    float64 // units per cycle

	// FillRateBuys measures depletion of buy orders; FillRateSells
	// measures depletion of sell listings. Units per cycle.
	FillRateBuys  float64
	FillRateSells float64
}

// Flip is a proposed buy-then-resell action. Produced fresh per
// scoring call and never mutated afterwards. Times are in refresh
// cycles, prices in copper.
type Flip struct {
	ItemID                int
	Name                  string
	Horizon               time.Duration
	TargetDuration        float64
	Quantity              int
	BuyPrice              int
	ExpectedSellPrice     int
	ExpectedProfit        int
	ExpectedProfitPerHour float64
	BuyTime               float64
	SellTime              float64
}
