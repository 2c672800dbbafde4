package engine

import (
	"math"
	"sort"
	"time"
)

const (
	// taxMult is what remains of a sale after the 15% trading post
	// cut (10% exchange tax + 5% listing fee).
	taxMult = 0.85
	// listingFeeRate is the non-refundable 5% fee paid when a sell
	// listing is created; reserved out of the budget per unit.
	listingFeeRate = 0.05
	// maxFlipUnits caps exposure per item: 8 listing slots of 250
	// units each.
	maxFlipUnits = 2000
)

// FlipParams is the scoring policy.
type FlipParams struct {
	OutbidFraction  float64 // copper/cycle of adverse price movement tolerated
	Budget          int     // copper available for the buy order
	RefreshInterval time.Duration
}

// ScoreFlip estimates profit and duration for flipping one item based
// on a single horizon's trend. Pure: no I/O and no mutation of the
// inputs; total over valid numeric input.
func ScoreFlip(st *ItemState, tr *HorizonTracker, p FlipParams) Flip {
	refresh := p.RefreshInterval.Seconds()

	// Below this price even vendoring the item beats flipping it.
	minViablePrice := int(math.Ceil(float64(st.VendorValue) / taxMult))

	// Trust window: extrapolate the horizon's trend over at most a
	// third of the horizon, expressed in refresh cycles.
	targetDuration := tr.Horizon.Seconds() / (3 * refresh)

	// Cycles until rising buy prices eat our outbid margin.
	timeToOutbid := targetDuration
	if tr.BuyPriceDelta > 0 {
		timeToOutbid = p.OutbidFraction / tr.BuyPriceDelta
	}
	// Cycles until falling sell prices undercut our listing.
	timeToUndercut := targetDuration
	if tr.SellPriceDelta < 0 {
		timeToUndercut = p.OutbidFraction / -tr.SellPriceDelta
	}

	// Split the trust window between buying and selling according
	// to the relative fill pressure of the two sides.
	buyTime := 0.0
	if tr.FillRateSells != 0 {
		buyTime = targetDuration * tr.FillRateSells / (tr.FillRateBuys + tr.FillRateSells)
	}
	buyTime = math.Min(timeToOutbid, buyTime)
	sellTime := math.Min(timeToUndercut, targetDuration-buyTime)

	expectedSellPrice := st.SellPrice + int(math.Round(tr.SellPriceDelta*buyTime)) - 1
	if expectedSellPrice < minViablePrice {
		expectedSellPrice = minViablePrice
	}
	// Outbid the current top buy order by one copper.
	buyPrice := st.BuyPrice + 1
	if buyPrice < minViablePrice {
		buyPrice = minViablePrice
	}

	quantity := min(
		int(math.Floor(tr.FillRateBuys*buyTime)),
		int(math.Floor(tr.FillRateSells*sellTime)),
	)
	quantity = min(quantity, maxFlipUnits)
	unitCost := float64(buyPrice) + listingFeeRate*float64(expectedSellPrice)
	quantity = min(quantity, int(math.Floor(float64(p.Budget)/unitCost)))
	if quantity < 0 {
		quantity = 0
	}

	expectedProfit := quantity * int(math.Floor(float64(expectedSellPrice)*taxMult-float64(buyPrice)))

	profitPerHour := 0.0
	if total := buyTime + sellTime; total != 0 {
		profitPerHour = float64(expectedProfit) * 3600 / (total * refresh)
	}

	return Flip{
		ItemID:                st.ItemID,
		Name:                  st.Name,
		Horizon:               tr.Horizon,
		TargetDuration:        targetDuration,
		Quantity:              quantity,
		BuyPrice:              buyPrice,
		ExpectedSellPrice:     expectedSellPrice,
		ExpectedProfit:        expectedProfit,
		ExpectedProfitPerHour: profitPerHour,
		BuyTime:               buyTime,
		SellTime:              sellTime,
	}
}

// RankFlips sorts flips descending by expected profit, breaking ties
// by expected profit per hour.
func RankFlips(flips []Flip) {
	sort.SliceStable(flips, func(i, j int) bool {
		if flips[i].ExpectedProfit != flips[j].ExpectedProfit {
			return flips[i].ExpectedProfit > flips[j].ExpectedProfit
		}
		return flips[i].ExpectedProfitPerHour > flips[j].ExpectedProfitPerHour
	})
}
