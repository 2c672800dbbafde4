package db

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"gw2-flipper/internal/engine"
	"gw2-flipper/internal/gw2"
)

// GetItem implements gw2.ItemStore.
func (d *DB) GetItem(id int) (gw2.ItemInfo, bool) {
	var info gw2.ItemInfo
	var flags string
	err := d.sql.QueryRow(
		"SELECT id, name, vendor_value, flags FROM items WHERE id = ?", id,
	).Scan(&info.ID, &info.Name, &info.VendorValue, &flags)
	if err != nil {
		return gw2.ItemInfo{}, false
	}
	if flags != "" {
		info.Flags = strings.Split(flags, ",")
	}
	return info, true
}

// SetItem implements gw2.ItemStore.
func (d *DB) SetItem(info gw2.ItemInfo) {
	d.sql.Exec(`
		INSERT INTO items (id, name, vendor_value, flags, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			vendor_value = excluded.vendor_value,
			flags = excluded.flags,
			updated_at = excluded.updated_at`,
		info.ID, info.Name, info.VendorValue, strings.Join(info.Flags, ","),
		time.Now().UTC().Format(time.RFC3339))
}

// CycleSummary is one persisted refresh cycle.
type CycleSummary struct {
	ID         string
	StartedAt  time.Time
	FinishedAt time.Time
	ItemCount  int
	FlipCount  int
	TopProfit  int
}

// SaveCycle persists one refresh cycle and its ranked flips, and
// returns the generated cycle id.
func (d *DB) SaveCycle(startedAt time.Time, itemCount int, flips []engine.Flip) (string, error) {
	id := uuid.NewString()
	topProfit := 0
	if len(flips) > 0 {
		topProfit = flips[0].ExpectedProfit
	}

	tx, err := d.sql.Begin()
	if err != nil {
		return "", err
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		"INSERT INTO cycles (id, started_at, finished_at, item_count, flip_count, top_profit) VALUES (?, ?, ?, ?, ?, ?)",
		id, startedAt.UTC().Format(time.RFC3339), time.Now().UTC().Format(time.RFC3339),
		itemCount, len(flips), topProfit)
	if err != nil {
		return "", err
	}

	for rank, f := range flips {
		_, err = tx.Exec(`
			INSERT INTO flips (cycle_id, rank, item_id, name, horizon_seconds, quantity,
				buy_price, expected_sell_price, expected_profit, profit_per_hour, buy_time, sell_time)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			id, rank, f.ItemID, f.Name, int(f.Horizon.Seconds()), f.Quantity,
			f.BuyPrice, f.ExpectedSellPrice, f.ExpectedProfit, f.ExpectedProfitPerHour,
			f.BuyTime, f.SellTime)
		if err != nil {
			return "", err
		}
	}

	return id, tx.Commit()
}

// RecentCycles returns the most recent cycle summaries, newest first.
func (d *DB) RecentCycles(limit int) ([]CycleSummary, error) {
	rows, err := d.sql.Query(
		"SELECT id, started_at, finished_at, item_count, flip_count, top_profit FROM cycles ORDER BY started_at DESC LIMIT ?",
		limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []CycleSummary
	for rows.Next() {
		var c CycleSummary
		var started, finished string
		if err := rows.Scan(&c.ID, &started, &finished, &c.ItemCount, &c.FlipCount, &c.TopProfit); err != nil {
			return nil, err
		}
		c.StartedAt, _ = time.Parse(time.RFC3339, started)
		c.FinishedAt, _ = time.Parse(time.RFC3339, finished)
		out = append(out, c)
	}
	return out, rows.Err()
}

// CycleFlips returns the persisted flips of one cycle in rank order.
func (d *DB) CycleFlips(cycleID string) ([]engine.Flip, error) {
	rows, err := d.sql.Query(`
		SELECT item_id, name, horizon_seconds, quantity, buy_price, expected_sell_price,
			expected_profit, profit_per_hour, buy_time, sell_time
		FROM flips WHERE cycle_id = ? ORDER BY rank`, cycleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []engine.Flip
	for rows.Next() {
		var f engine.Flip
		var horizonSec int
		if err := rows.Scan(&f.ItemID, &f.Name, &horizonSec, &f.Quantity, &f.BuyPrice,
			&f.ExpectedSellPrice, &f.ExpectedProfit, &f.ExpectedProfitPerHour,
			&f.BuyTime, &f.SellTime); err != nil {
			return nil, err
		}
		f.Horizon = time.Duration(horizonSec) * time.Second
		out = append(out, f)
	}
	return out, rows.Err()
}
