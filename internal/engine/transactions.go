package engine

import (
	"errors"
	"math"
	"time"
)

// Ledger errors. All of them indicate caller bugs, not market
// conditions.
var (
	ErrRelistDirection = errors.New("relist must move the price toward filling")
	ErrOverFill        = errors.New("fill amount exceeds remaining quantity")
)

// BuyOrder is an open buy order we placed. Quantity counts units
// still unfilled.
type BuyOrder struct {
	Quantity     int
	ListingPrice int
	ListedAt     time.Time
}

// NewBuyOrder places a buy order for quantity units at price copper.
func NewBuyOrder(quantity, price int) *BuyOrder {
	return &BuyOrder{Quantity: quantity, ListingPrice: price, ListedAt: time.Now()}
}

// Relist moves the order to a higher price. Buy orders only ever get
// relisted upward, to stay on top of the book.
func (o *BuyOrder) Relist(price int) error {
	if price <= o.ListingPrice {
		return ErrRelistDirection
	}
	o.ListingPrice = price
	o.ListedAt = time.Now()
	return nil
}

// Fill records amount units received.
func (o *BuyOrder) Fill(amount int) error {
	if amount > o.Quantity {
		return ErrOverFill
	}
	o.Quantity -= amount
	return nil
}

// SellOrder is an open sell listing. Relisting pays the 5% listing
// fee again and the old one is lost, so the fees accrue in TaxPaid
// and come out of the fill profit.
type SellOrder struct {
	Quantity     int
	BuyPrice     int // what we paid per unit
	ListingPrice int
	TaxPaid      int
	ListedAt     time.Time
}

// NewSellOrder lists quantity units bought at buyPrice for price
// copper each. The first listing fee is sunk at listing time and not
// tracked; TaxPaid accrues only what relists add on top.
func NewSellOrder(quantity, buyPrice, price int) *SellOrder {
	return &SellOrder{
		Quantity:     quantity,
		BuyPrice:     buyPrice,
		ListingPrice: price,
		ListedAt:     time.Now(),
	}
}

// Relist moves the listing to a lower price and pays the listing fee
// again. Sell orders only ever get relisted downward, to stay the
// cheapest.
func (o *SellOrder) Relist(price int) error {
	if price >= o.ListingPrice {
		return ErrRelistDirection
	}
	o.ListingPrice = price
	o.TaxPaid += int(math.Ceil(0.05 * float64(price)))
	o.ListedAt = time.Now()
	return nil
}

// Fill records amount units sold and returns the realized profit
// after the 10% exchange tax and the accrued listing fees.
func (o *SellOrder) Fill(amount int) (int, error) {
	if amount > o.Quantity {
		return 0, ErrOverFill
	}
	o.Quantity -= amount
	profit := int(math.Floor(float64(amount) * (0.9*float64(o.ListingPrice) - float64(o.TaxPaid) - float64(o.BuyPrice))))
	return profit, nil
}

// TransactionStatus is the lifecycle phase of a flip in progress.
type TransactionStatus string

const (
	StatusBuying    TransactionStatus = "buying"
	StatusMixed     TransactionStatus = "mixed" // buy partially filled, sell already listed
	StatusSelling   TransactionStatus = "selling"
	StatusCompleted TransactionStatus = "completed"
)

// Transaction tracks one flip from buy order to completed sale.
type Transaction struct {
	ItemID    int
	StartedAt time.Time
	Status    TransactionStatus
	Buy       *BuyOrder
	Sell      *SellOrder
	Profit    int // realized, accumulates as the sell side fills
}

// NewTransaction opens a flip with its initial buy order.
func NewTransaction(itemID int, buy *BuyOrder) *Transaction {
	return &Transaction{
		ItemID:    itemID,
		StartedAt: time.Now(),
		Status:    StatusBuying,
		Buy:       buy,
	}
}

// ListSell attaches the sell listing. While the buy order still has
// unfilled quantity the flip is in the mixed phase.
func (t *Transaction) ListSell(sell *SellOrder) {
	t.Sell = sell
	if t.Buy != nil && t.Buy.Quantity > 0 {
		t.Status = StatusMixed
	} else {
		t.Status = StatusSelling
	}
}

// FillBuy records received units and advances the phase when the buy
// side completes.
func (t *Transaction) FillBuy(amount int) error {
	if err := t.Buy.Fill(amount); err != nil {
		return err
	}
	if t.Buy.Quantity == 0 && t.Status == StatusMixed {
		t.Status = StatusSelling
	}
	return nil
}

// FillSell records sold units, accumulates realized profit, and
// completes the flip once everything is sold.
func (t *Transaction) FillSell(amount int) error {
	profit, err := t.Sell.Fill(amount)
	if err != nil {
		return err
	}
	t.Profit += profit
	if t.Sell.Quantity == 0 && (t.Buy == nil || t.Buy.Quantity == 0) {
		t.Status = StatusCompleted
	}
	return nil
}
