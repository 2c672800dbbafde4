package gw2

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

	"github.com/stretchr/testify/require"

	"gw2-flipper/internal/config"
)

// fakeAPI serves /commerce/prices pages from a canned handler and
// records every request.
type fakeAPI struct {
	mu       sync.Mutex
	attempts int
	handler  func(attempt int, ids []int, w http.ResponseWriter)
	srv      *httptest.Server
}

func newFakeAPI(t *testing.T, handler func(attempt int, ids []int, w http.ResponseWriter)) *fakeAPI {
	t.Helper()
	f := &fakeAPI{handler: handler}
	f.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.attempts++
		n := f.attempts
		f.mu.Unlock()
		f.handler(n, parseIDsParam(r.URL.Query().Get("ids")), w)
	}))
	t.Cleanup(f.srv.Close)
	return f
}

func parseIDsParam(s string) []int {
	var ids []int
	for _, part := range strings.Split(s, ",") {
		if id, err := strconv.Atoi(strings.TrimSpace(part)); err == nil {
			ids = append(ids, id)
		}
	}
	return ids
}

func writePrices(w http.ResponseWriter, ids []int) {
	var snaps []PriceSnapshot
	for _, id := range ids {
		snaps = append(snaps, PriceSnapshot{
			ID:   id,
			Buys: PriceOffer{Quantity: id * 2, UnitPrice: id + 100},
		})
	}
	json.NewEncoder(w).Encode(snaps)
}

// sleepRecorder replaces the client's backoff sleep in tests.
type sleepRecorder struct {
	mu    sync.Mutex
	waits []time.Duration
}

func (s *sleepRecorder) sleep(d time.Duration) {
	s.mu.Lock()
	s.waits = append(s.waits, d)
	s.mu.Unlock()
}

func testClient(baseURL string, pageSize, maxRetries int) (*Client, *sleepRecorder) {
	c := NewClient(config.APIConfig{
		BaseURL:        baseURL,
		PageSize:       pageSize,
		MaxRetries:     maxRetries,
		RateLimitWait:  30 * time.Millisecond,
		TransientWait:  5 * time.Millisecond,
		RequestsPerSec: 10000,
		MaxConcurrent:  50,
	})
	rec := &sleepRecorder{}
	c.sleep = rec.sleep
	return c, rec
}

func TestFetchPrices_PreservesInputOrder(t *testing.T) {
	api := newFakeAPI(t, func(attempt int, ids []int, w http.ResponseWriter) {
		// stagger pages so completion order differs from dispatch order
		if len(ids) > 0 && ids[0]%2 == 0 {
			time.Sleep(20 * time.Millisecond)
		}
		writePrices(w, ids)
	})

	c, _ := testClient(api.srv.URL, 10, 3)

	ids := make([]int, 95)
	for i := range ids {
		ids[i] = 1000 + i
	}

	snaps, warns := c.FetchPrices(context.Background(), ids)
	require.Len(t, snaps, len(ids))
	require.Empty(t, warns)
	for i, snap := range snaps {
		require.NotNil(t, snap, "index %d", i)
		require.Equal(t, ids[i], snap.ID, "index %d", i)
	}
}

func TestFetchPrices_RateLimitBackoffThenSuccess(t *testing.T) {
	api := newFakeAPI(t, func(attempt int, ids []int, w http.ResponseWriter) {
		if attempt <= 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		writePrices(w, ids)
	})

	c, rec := testClient(api.srv.URL, 200, 10)

	snaps, _ := c.FetchPrices(context.Background(), []int{1, 2, 3})
	require.Len(t, snaps, 3)
	for i, snap := range snaps {
		require.NotNil(t, snap, "index %d", i)
	}

	// exactly one rate-limit cooldown before each of the three retries
	require.Equal(t, []time.Duration{
		30 * time.Millisecond,
		30 * time.Millisecond,
		30 * time.Millisecond,
	}, rec.waits)
}

func TestFetchPrices_ExhaustedRetriesYieldPlaceholders(t *testing.T) {
	api := newFakeAPI(t, func(attempt int, ids []int, w http.ResponseWriter) {
		w.WriteHeader(http.StatusBadGateway)
	})

	c, rec := testClient(api.srv.URL, 200, 4)

	ids := []int{10, 20, 30, 40, 50}
	snaps, _ := c.FetchPrices(context.Background(), ids)
	require.Len(t, snaps, len(ids), "page length must be preserved")
	for i, snap := range snaps {
		require.Nil(t, snap, "index %d", i)
	}
	require.Equal(t, 4, api.attempts)
	// no sleep after the final attempt
	require.Len(t, rec.waits, 3)
}

func TestFetchPrices_PartialFailureKeepsOtherPages(t *testing.T) {
	api := newFakeAPI(t, func(attempt int, ids []int, w http.ResponseWriter) {
		if len(ids) > 0 && ids[0] == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		writePrices(w, ids)
	})

	c, _ := testClient(api.srv.URL, 2, 2)

	snaps, _ := c.FetchPrices(context.Background(), []int{1, 2, 3, 4})
	require.Len(t, snaps, 4)
	require.Nil(t, snaps[0])
	require.Nil(t, snaps[1])
	require.NotNil(t, snaps[2])
	require.NotNil(t, snaps[3])
	require.Equal(t, 3, snaps[2].ID)
}

func TestFetchPrices_PartialContentSurfacesRejectedIDs(t *testing.T) {
	api := newFakeAPI(t, func(attempt int, ids []int, w http.ResponseWriter) {
		var valid []int
		for _, id := range ids {
			if id != 99999 {
				valid = append(valid, id)
			}
		}
		w.Header().Set("Warning", `299 gw2-api "ids 99999 are invalid"`)
		w.WriteHeader(http.StatusPartialContent)
		writePrices(w, valid)
	})

	c, _ := testClient(api.srv.URL, 200, 3)

	snaps, warns := c.FetchPrices(context.Background(), []int{7, 99999, 9})
	require.Len(t, snaps, 3)
	require.NotNil(t, snaps[0])
	require.Nil(t, snaps[1], "rejected id resolves to a placeholder")
	require.NotNil(t, snaps[2])

	require.Len(t, warns, 1)
	require.Equal(t, []int{99999}, warns[0].RejectedIDs)
}

func TestFetchPrices_EmptyInput(t *testing.T) {
	c, _ := testClient("http://127.0.0.1:0", 200, 3)
	snaps, warns := c.FetchPrices(context.Background(), nil)
	require.Empty(t, snaps)
	require.Empty(t, warns)
}

func TestFetchListings_TruncatesToBookDepth(t *testing.T) {
	api := newFakeAPI(t, func(attempt int, ids []int, w http.ResponseWriter) {
		book := OrderBookSnapshot{ID: ids[0]}
		for i := 0; i < 15; i++ {
			book.Buys = append(book.Buys, BookLevel{UnitPrice: 1000 - i, Quantity: 5, Listings: 1})
			book.Sells = append(book.Sells, BookLevel{UnitPrice: 2000 + i, Quantity: 5, Listings: 1})
		}
		json.NewEncoder(w).Encode([]OrderBookSnapshot{book})
	})

	c, _ := testClient(api.srv.URL, 200, 3)

	books, _ := c.FetchListings(context.Background(), []int{42})
	require.Len(t, books, 1)
	require.NotNil(t, books[0])
	require.Len(t, books[0].Buys, BookDepth)
	require.Len(t, books[0].Sells, BookDepth)
}

func TestFetchItems_ResolvesMetadata(t *testing.T) {
	api := newFakeAPI(t, func(attempt int, ids []int, w http.ResponseWriter) {
		var infos []ItemInfo
		for _, id := range ids {
			infos = append(infos, ItemInfo{ID: id, Name: "Copper Ore", VendorValue: id % 100})
		}
		json.NewEncoder(w).Encode(infos)
	})

	c, _ := testClient(api.srv.URL, 200, 3)

	infos, warns := c.FetchItems(context.Background(), []int{19697, 19698})
	require.Empty(t, warns)
	require.Len(t, infos, 2)
	require.Equal(t, 19697, infos[0].ID)
	require.Equal(t, "Copper Ore", infos[0].Name)
	require.Equal(t, 19698, infos[1].ID)
}

func TestParseRejectedIDs(t *testing.T) {
	cases := []struct {
		warning string
		want    []int
	}{
		{`299 gw2-api "ids 123, 456 are invalid"`, []int{123, 456}},
		{`299 gw2-api "id 7 is invalid"`, []int{7}},
		{`no quotes 88 here`, []int{88}},
		{"", nil},
		{`299 gw2-api "all fine"`, nil},
	}
	for _, tc := range cases {
		got := parseRejectedIDs(tc.warning)
		require.Equal(t, tc.want, got, "warning %q", tc.warning)
	}
}

func TestJoinIDs(t *testing.T) {
	if got := joinIDs([]int{1, 22, 333}); got != "1,22,333" {
		t.Errorf("joinIDs = %q, want %q", got, "1,22,333")
	}
}
