package decision

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/crossfin/crossfin/internal/market"
)

func TestSlippageFillsAtBestLevel(t *testing.T) {
	asks := []market.OrderbookLevel{
		{Price: 100, Quantity: 50},
		{Price: 101, Quantity: 50},
	}
	assert.Equal(t, 0.0, SlippageFromAsks(asks, 1000))
}

func TestSlippageWalksLevels(t *testing.T) {
	asks := []market.OrderbookLevel{
		{Price: 100, Quantity: 10}, // 1000 notional
		{Price: 102, Quantity: 10}, // 1020 notional
	}
	// 1510 notional: full best level plus half the second.
	got := SlippageFromAsks(asks, 1510)
	// qty = 10 + 510/102 = 15; vwap = 1510/15 = 100.67
	assert.InDelta(t, 0.67, got, 0.01)
}

func TestSlippageEmptyBookUsesDefault(t *testing.T) {
	// Inherited default; pinned deliberately.
	assert.Equal(t, 2.0, DefaultSlippagePct)
	assert.Equal(t, DefaultSlippagePct, SlippageFromAsks(nil, 1000))
	assert.Equal(t, DefaultSlippagePct, SlippageFromAsks([]market.OrderbookLevel{}, 1000))
}

func TestSlippageBadBestAskUsesDefault(t *testing.T) {
	asks := []market.OrderbookLevel{{Price: 0, Quantity: 10}}
	assert.Equal(t, DefaultSlippagePct, SlippageFromAsks(asks, 1000))
}

func TestSlippageZeroNotional(t *testing.T) {
	asks := []market.OrderbookLevel{{Price: 100, Quantity: 10}}
	assert.Equal(t, 0.0, SlippageFromAsks(asks, 0))
}

func TestSlippageHugeOrderPartialFill(t *testing.T) {
	asks := []market.OrderbookLevel{
		{Price: 100, Quantity: 1},
		{Price: 110, Quantity: 1},
	}
	// Demand far beyond the book: VWAP of whatever filled.
	got := SlippageFromAsks(asks, 1_000_000)
	assert.InDelta(t, 5.0, got, 0.01)
}
