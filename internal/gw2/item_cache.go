package gw2

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"golang.org/x/sync/singleflight"
)

// ItemStore is a persistent L2 cache for item metadata.
type ItemStore interface {
	GetItem(id int) (ItemInfo, bool)
	SetItem(info ItemInfo)
}

// ItemCache resolves item metadata through three layers: an
// in-memory sync.Map, a persistent store (SQLite), and the /items
// endpoint. A singleflight.Group coalesces concurrent fetches of the
// same id.
type ItemCache struct {
	client *Client
	store  ItemStore
	l1     sync.Map // int -> ItemInfo
	group  singleflight.Group
}

// NewItemCache creates an item cache backed by the given client and
// optional persistent store.
func NewItemCache(client *Client, store ItemStore) *ItemCache {
	return &ItemCache{client: client, store: store}
}

// Get resolves metadata for one item id.
func (ic *ItemCache) Get(ctx context.Context, id int) (ItemInfo, error) {
	if v, ok := ic.l1.Load(id); ok {
		return v.(ItemInfo), nil
	}
	if ic.store != nil {
		if info, ok := ic.store.GetItem(id); ok {
			ic.l1.Store(id, info)
			return info, nil
		}
	}

	v, err, _ := ic.group.Do(strconv.Itoa(id), func() (interface{}, error) {
		infos, _ := ic.client.FetchItems(ctx, []int{id})
		if len(infos) == 0 || infos[0] == nil {
			return ItemInfo{}, fmt.Errorf("item %d: no metadata", id)
		}
		info := *infos[0]
		ic.put(info)
		return info, nil
	})
	if err != nil {
		return ItemInfo{}, err
	}
	return v.(ItemInfo), nil
}

// Prime bulk-fetches metadata for any ids not yet cached and returns
// the ids that are tradeable. Ids whose metadata cannot be resolved
// are dropped with the untradeable ones.
func (ic *ItemCache) Prime(ctx context.Context, ids []int) []int {
	var missing []int
	for _, id := range ids {
		if _, ok := ic.l1.Load(id); ok {
			continue
		}
		if ic.store != nil {
			if info, ok := ic.store.GetItem(id); ok {
				ic.l1.Store(id, info)
				continue
			}
		}
		missing = append(missing, id)
	}

	if len(missing) > 0 {
		infos, _ := ic.client.FetchItems(ctx, missing)
		for _, info := range infos {
			if info != nil {
				ic.put(*info)
			}
		}
	}

	tradeable := make([]int, 0, len(ids))
	for _, id := range ids {
		v, ok := ic.l1.Load(id)
		if !ok {
			continue
		}
		if info := v.(ItemInfo); info.Tradeable() {
			tradeable = append(tradeable, id)
		}
	}
	return tradeable
}

func (ic *ItemCache) put(info ItemInfo) {
	ic.l1.Store(info.ID, info)
	if ic.store != nil {
		ic.store.SetItem(info)
	}
}
