package report

import (
	"fmt"
	"io"
	"time"

	"github.com/olekukonko/tablewriter"

	"gw2-flipper/internal/engine"
)

// PrintFlips renders the top ranked flips as a console table. Flips
// that cannot move any units are noise and are skipped.
func PrintFlips(w io.Writer, flips []engine.Flip, limit int) {
	now := time.Now().Format("15:04:05")

	shown := make([]engine.Flip, 0, limit)
	for _, f := range flips {
		if f.Quantity == 0 || f.ExpectedProfit <= 0 {
			continue
		}
		shown = append(shown, f)
		if len(shown) == limit {
			break
		}
	}

	if len(shown) == 0 {
		fmt.Fprintf(w, "[%s] no profitable flips this cycle\n", now)
		return
	}

	fmt.Fprintf(w, "\n[%s] top %d of %d scored flips\n", now, len(shown), len(flips))

	table := tablewriter.NewWriter(w)
	table.Header("#", "Item", "Horizon", "Qty", "Buy", "Sell", "Profit", "Profit/h", "Cycles")

	for i, f := range shown {
		table.Append(
			fmt.Sprintf("%d", i+1),
			f.Name,
			f.Horizon.String(),
			fmt.Sprintf("%d", f.Quantity),
			Coins(f.BuyPrice),
			Coins(f.ExpectedSellPrice),
			Coins(f.ExpectedProfit),
			Coins(int(f.ExpectedProfitPerHour)),
			fmt.Sprintf("%.1f+%.1f", f.BuyTime, f.SellTime),
		)
	}

	table.Render()
}

// Coins formats a copper amount as gold/silver/copper.
func Coins(copper int) string {
	sign := ""
	if copper < 0 {
		sign = "-"
		copper = -copper
	}
	gold := copper / 10000
	silver := (copper % 10000) / 100
	c := copper % 100
	switch {
	case gold > 0:
		return fmt.Sprintf("%s%dg %02ds %02dc", sign, gold, silver, c)
	case silver > 0:
		return fmt.Sprintf("%s%ds %02dc", sign, silver, c)
	default:
		return fmt.Sprintf("%s%dc", sign, c)
	}
}
