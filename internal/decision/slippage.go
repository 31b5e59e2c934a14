package decision

import (
	"github.com/crossfin/crossfin/internal/market"
)

// DefaultSlippagePct is returned when the book has zero fillable depth.
// The value is inherited behavior; tests pin it.
const DefaultSlippagePct = 2.0

// SlippageFromAsks walks the ask side of a book accumulating quantity
// until tradeNotional is filled, then returns the VWAP's distance from
// the best ask as a percentage. A trade that fully fills at the best
// level costs 0%.
func SlippageFromAsks(asks []market.OrderbookLevel, tradeNotional float64) float64 {
	if len(asks) == 0 {
		return DefaultSlippagePct
	}
	bestAsk := asks[0].Price
	if bestAsk <= 0 {
		return DefaultSlippagePct
	}
	if tradeNotional <= 0 {
		return 0
	}

	remaining := tradeNotional
	totalCost := 0.0
	totalQty := 0.0
	for _, lvl := range asks {
		if lvl.Price <= 0 || lvl.Quantity <= 0 {
			continue
		}
		levelNotional := lvl.Price * lvl.Quantity
		if levelNotional >= remaining {
			qty := remaining / lvl.Price
			totalCost += remaining
			totalQty += qty
			remaining = 0
			break
		}
		totalCost += levelNotional
		totalQty += lvl.Quantity
		remaining -= levelNotional
	}

	if totalQty <= 0 {
		return DefaultSlippagePct
	}
	vwap := totalCost / totalQty
	slip := (vwap - bestAsk) / bestAsk * 100
	if slip < 0 {
		return 0
	}
	return slip
}
