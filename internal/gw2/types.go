package gw2

// PriceOffer is one side of the best-price summary: total quantity
// demanded or offered at the best unit price.
type PriceOffer struct {
	Quantity  int `json:"quantity"`
	UnitPrice int `json:"unit_price"`
}

// PriceSnapshot mirrors a /commerce/prices record: the highest buy
// order and the lowest sell listing for one item.
type PriceSnapshot struct {
	ID          int        `json:"id"`
	Whitelisted bool       `json:"whitelisted"`
	Buys        PriceOffer `json:"buys"`
	Sells       PriceOffer `json:"sells"`
}

// ItemID returns the item id the snapshot belongs to.
func (s *PriceSnapshot) ItemID() int { return s.ID }

// BookLevel is one aggregated price level of an order book side.
type BookLevel struct {
	Listings  int `json:"listings"`
	UnitPrice int `json:"unit_price"`
	Quantity  int `json:"quantity"`
}

// OrderBookSnapshot mirrors a /commerce/listings record. Buys are
// sorted descending by unit price, sells ascending.
type OrderBookSnapshot struct {
	ID    int         `json:"id"`
	Buys  []BookLevel `json:"buys"`
	Sells []BookLevel `json:"sells"`
}

// ItemID returns the item id the snapshot belongs to.
func (s *OrderBookSnapshot) ItemID() int { return s.ID }

// BookDepth is the number of levels kept per side. Levels beyond this
// rank are mostly relist churn, not signal, so they are discarded
// before any book ever reaches the engine.
const BookDepth = 10

// Truncate drops levels beyond BookDepth on both sides.
func (s *OrderBookSnapshot) Truncate() {
	if len(s.Buys) > BookDepth {
		s.Buys = s.Buys[:BookDepth]
	}
	if len(s.Sells) > BookDepth {
		s.Sells = s.Sells[:BookDepth]
	}
}

// ItemInfo mirrors the subset of an /items record the flipper needs.
type ItemInfo struct {
	ID          int      `json:"id"`
	Name        string   `json:"name"`
	VendorValue int      `json:"vendor_value"`
	Flags       []string `json:"flags"`
}

// ItemID returns the item id.
func (i *ItemInfo) ItemID() int { return i.ID }

// Tradeable reports whether the item can be listed on the trading
// post at all. Bound items never show up in commerce data.
func (i *ItemInfo) Tradeable() bool {
	for _, f := range i.Flags {
		if f == "AccountBound" || f == "SoulbindOnAcquire" {
			return false
		}
	}
	return true
}
