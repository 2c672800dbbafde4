package engine

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"gw2-flipper/internal/config"
	"gw2-flipper/internal/gw2"
)

// marketSim serves /items, /commerce/prices and /commerce/listings
// for a small evolving market.
type marketSim struct {
	mu     sync.Mutex
	step   int
	items  map[int]gw2.ItemInfo
	prices func(step, id int) *gw2.PriceSnapshot
	books  func(step, id int) *gw2.OrderBookSnapshot
}

func (m *marketSim) advance() {
	m.mu.Lock()
	m.step++
	m.mu.Unlock()
}

func (m *marketSim) handler(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	step := m.step
	m.mu.Unlock()

	var ids []int
	for _, part := range strings.Split(r.URL.Query().Get("ids"), ",") {
		if id, err := strconv.Atoi(strings.TrimSpace(part)); err == nil {
			ids = append(ids, id)
		}
	}

	var out []any
	for _, id := range ids {
		switch {
		case strings.HasSuffix(r.URL.Path, "/items"):
			if info, ok := m.items[id]; ok {
				out = append(out, info)
			}
		case strings.HasSuffix(r.URL.Path, "/commerce/prices"):
			if p := m.prices(step, id); p != nil {
				out = append(out, p)
			}
		case strings.HasSuffix(r.URL.Path, "/commerce/listings"):
			if b := m.books(step, id); b != nil {
				out = append(out, b)
			}
		}
	}
	json.NewEncoder(w).Encode(out)
}

func TestRefresher_FullCycle(t *testing.T) {
	sim := &marketSim{
		items: map[int]gw2.ItemInfo{
			101: {ID: 101, Name: "Copper Ore", VendorValue: 0},
			202: {ID: 202, Name: "Iron Ore", VendorValue: 0},
			303: {ID: 303, Name: "Heirloom", VendorValue: 0, Flags: []string{"AccountBound"}},
			999: {ID: 999, Name: "Unlisted Relic", VendorValue: 0},
		},
		prices: func(step, id int) *gw2.PriceSnapshot {
			if id == 999 {
				return nil // never resolves
			}
			return &gw2.PriceSnapshot{
				ID:    id,
				Buys:  gw2.PriceOffer{Quantity: 1000, UnitPrice: 100 + step},
				Sells: gw2.PriceOffer{Quantity: 2000, UnitPrice: 200 + step},
			}
		},
		books: func(step, id int) *gw2.OrderBookSnapshot {
			if id == 999 {
				return nil
			}
			// price levels hold still so quantity shrink reads as fills
			return &gw2.OrderBookSnapshot{
				ID:    id,
				Buys:  []gw2.BookLevel{{UnitPrice: 100, Quantity: 1000 - 100*step, Listings: 10}},
				Sells: []gw2.BookLevel{{UnitPrice: 200, Quantity: 2000 - 50*step, Listings: 20}},
			}
		},
	}
	srv := httptest.NewServer(http.HandlerFunc(sim.handler))
	defer srv.Close()

	client := gw2.NewClient(config.APIConfig{
		BaseURL:        srv.URL,
		PageSize:       200,
		MaxRetries:     2,
		TransientWait:  time.Millisecond,
		RateLimitWait:  time.Millisecond,
		RequestsPerSec: 10000,
		MaxConcurrent:  10,
	})
	cache := gw2.NewItemCache(client, nil)

	clock := &fixedClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	eng := NewEngine(testRefresh)
	eng.now = clock.now

	params := FlipParams{OutbidFraction: 0.5, Budget: 2_000_000, RefreshInterval: testRefresh}
	r := NewRefresher(client, cache, eng, []int{101, 202, 303, 999}, []time.Duration{time.Hour}, params)

	ctx := context.Background()
	r.Prime(ctx)
	if got := r.TrackedItems(); len(got) != 3 {
		// only account-bound 303 is dropped; 999 exists, just unlisted
		t.Fatalf("tracked after prime = %v", got)
	}

	// first cycle only seeds states
	flips, err := r.RunCycle(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(flips) != 0 {
		t.Fatalf("first cycle flips = %d, want 0", len(flips))
	}
	if _, ok := r.State(101); !ok {
		t.Fatal("state for 101 not created")
	}
	if _, ok := r.State(999); ok {
		t.Fatal("state for unresolvable 999 must not exist")
	}

	// second cycle observes movement and scores
	sim.advance()
	clock.advance(testRefresh)
	flips, err = r.RunCycle(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(flips) != 2 {
		t.Fatalf("second cycle flips = %d, want 2 (one per tracked item with state)", len(flips))
	}
	for i := 1; i < len(flips); i++ {
		if flips[i].ExpectedProfit > flips[i-1].ExpectedProfit {
			t.Errorf("flips not ranked: %d before %d", flips[i-1].ExpectedProfit, flips[i].ExpectedProfit)
		}
	}

	st, _ := r.State(101)
	if st.BuyPrice != 101 || st.SellPrice != 201 {
		t.Errorf("shared state prices = %d/%d, want 101/201", st.BuyPrice, st.SellPrice)
	}
	if st.Trackers[0].FillRateBuys <= 0 {
		t.Errorf("FillRateBuys = %v, want > 0 (100 units left the buy side)", st.Trackers[0].FillRateBuys)
	}
}
