package gw2

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"gw2-flipper/internal/logger"
)

// PageWarning reports ids the server rejected inside an otherwise
// accepted page (HTTP 206). Non-fatal: the rest of the page is valid.
type PageWarning struct {
	Page        int
	RejectedIDs []int
}

// FetchPrices fetches /commerce/prices for the given ids. The result
// has one entry per input id, in input order; nil marks an id that
// could not be resolved.
func (c *Client) FetchPrices(ctx context.Context, ids []int) ([]*PriceSnapshot, []PageWarning) {
	return fetchBulk[PriceSnapshot](ctx, c, "commerce/prices", ids, nil)
}

// FetchListings fetches /commerce/listings for the given ids, with
// both book sides truncated to BookDepth levels. Same ordering and
// nil-placeholder contract as FetchPrices.
func (c *Client) FetchListings(ctx context.Context, ids []int) ([]*OrderBookSnapshot, []PageWarning) {
	return fetchBulk[OrderBookSnapshot](ctx, c, "commerce/listings", ids, func(s *OrderBookSnapshot) {
		s.Truncate()
	})
}

// FetchItems fetches /items metadata for the given ids.
func (c *Client) FetchItems(ctx context.Context, ids []int) ([]*ItemInfo, []PageWarning) {
	return fetchBulk[ItemInfo](ctx, c, "items", ids, nil)
}

// idRecord is any bulk API record carrying its item id.
type idRecord interface {
	ItemID() int
}

// fetchBulk splits ids into pages of at most the configured page
// size, fetches every page concurrently with per-page retries, and
// reassembles the responses in input order. Each page task writes
// only into its own pre-allocated slice range, so no locking is
// needed for the output. A page that exhausts its retry budget
// leaves nil in every one of its slots instead of failing the whole
// call.
func fetchBulk[T any, PT interface {
	idRecord
	*T
}](ctx context.Context, c *Client, endpoint string, ids []int, post func(PT)) ([]PT, []PageWarning) {
	out := make([]PT, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	pageSize := c.pageSize
	if pageSize <= 0 || pageSize > 200 {
		pageSize = 200
	}
	pageCount := (len(ids) + pageSize - 1) / pageSize
	warnCh := make(chan PageWarning, pageCount)

	var wg sync.WaitGroup
	for page := 0; page < pageCount; page++ {
		start := page * pageSize
		end := min(start+pageSize, len(ids))

		wg.Add(1)
		go func(page int, pageIDs []int, slots []PT) {
			defer wg.Done()

			body, rejected, ok := c.fetchPage(ctx, endpoint, pageIDs)
			if !ok {
				// slots stay nil, page length preserved
				return
			}
			if len(rejected) > 0 {
				warnCh <- PageWarning{Page: page, RejectedIDs: rejected}
			}

			var records []PT
			if err := json.Unmarshal(body, &records); err != nil {
				logger.Warn("API", fmt.Sprintf("%s page %d: bad payload: %v", endpoint, page, err))
				return
			}
			byID := make(map[int]PT, len(records))
			for _, rec := range records {
				if post != nil {
					post(rec)
				}
				byID[rec.ItemID()] = rec
			}
			for i, id := range pageIDs {
				slots[i] = byID[id]
			}
		}(page, ids[start:end], out[start:end])
	}
	wg.Wait()
	close(warnCh)

	var warnings []PageWarning
	for w := range warnCh {
		warnings = append(warnings, w)
	}
	return out, warnings
}

// fetchPage retrieves one page with retries. Returns the raw body,
// any server-rejected ids (on 206), and whether the page resolved at
// all within the retry budget.
func (c *Client) fetchPage(ctx context.Context, endpoint string, ids []int) ([]byte, []int, bool) {
	url := c.endpointURL(endpoint, ids)

	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		status, body, warning, err := c.get(ctx, url)

		wait := c.transientWait
		switch {
		case err != nil:
			logger.Warn("API", fmt.Sprintf("%s: request failed (attempt %d/%d): %v",
				endpoint, attempt, c.maxRetries, err))
		case status == http.StatusOK:
			return body, nil, true
		case status == http.StatusPartialContent:
			rejected := parseRejectedIDs(warning)
			logger.Warn("API", fmt.Sprintf("%s: partial content, rejected ids %v", endpoint, rejected))
			return body, rejected, true
		case status == http.StatusTooManyRequests:
			wait = c.rateLimitWait
			logger.Warn("API", fmt.Sprintf("%s: rate limited (attempt %d/%d), cooling down %s",
				endpoint, attempt, c.maxRetries, wait))
		default:
			logger.Warn("API", fmt.Sprintf("%s: status %d (attempt %d/%d)",
				endpoint, status, attempt, c.maxRetries))
		}

		if attempt < c.maxRetries {
			c.sleep(wait)
		}
	}

	logger.Error("API", fmt.Sprintf("%s: giving up on page of %d ids after %d attempts",
		endpoint, len(ids), c.maxRetries))
	return nil, nil, false
}

// parseRejectedIDs pulls item ids out of a Warning header like
//
//	299 gw2-api "ids 19701, 19702 are invalid"
//
// Only the quoted annotation is scanned so the warn-code is not
// mistaken for an id.
func parseRejectedIDs(warning string) []int {
	if warning == "" {
		return nil
	}
	text := warning
	if i := strings.IndexByte(warning, '"'); i >= 0 {
		text = warning[i+1:]
		if j := strings.IndexByte(text, '"'); j >= 0 {
			text = text[:j]
		}
	}

	var ids []int
	for _, tok := range strings.FieldsFunc(text, func(r rune) bool {
		return r < '0' || r > '9'
	}) {
		if id, err := strconv.Atoi(tok); err == nil {
			ids = append(ids, id)
		}
	}
	return ids
}
