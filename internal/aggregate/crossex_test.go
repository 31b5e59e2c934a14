package aggregate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompareCoinArbitrageSignal(t *testing.T) {
	venues := map[string]VenueQuote{
		"bithumb": {PriceKRW: 98_500_000},
		"upbit":   {PriceKRW: 98_200_000},
		"coinone": {PriceKRW: 99_100_000},
	}

	cmp := CompareCoin("BTC", venues, 66_500, 1450)

	assert.Equal(t, "upbit", cmp.BestBuyExchange)
	assert.Equal(t, "coinone", cmp.BestSellExchange)
	assert.InDelta(t, 0.92, cmp.SpreadPct, 0.01)
	assert.Equal(t, "ARBITRAGE", cmp.Action)

	// Per-venue premium against the global price.
	require.Len(t, cmp.Venues, 3)
	assert.InDelta(t, 2.15, cmp.Venues["bithumb"].PremiumPct, 0.01)
	assert.InDelta(t, 1.84, cmp.Venues["upbit"].PremiumPct, 0.01)
	assert.Greater(t, cmp.AvgPremiumPct, 0.0)
}

func TestCompareCoinMonitorAndHold(t *testing.T) {
	monitor := CompareCoin("ETH", map[string]VenueQuote{
		"bithumb": {PriceKRW: 5_000_000},
		"upbit":   {PriceKRW: 5_015_000}, // 0.3 % spread
	}, 3_450, 1450)
	assert.Equal(t, "MONITOR", monitor.Action)

	hold := CompareCoin("ETH", map[string]VenueQuote{
		"bithumb": {PriceKRW: 5_000_000},
		"upbit":   {PriceKRW: 5_005_000}, // 0.1 % spread
	}, 3_450, 1450)
	assert.Equal(t, "HOLD", hold.Action)
}

func TestCompareCoinDropsDeadVenues(t *testing.T) {
	cmp := CompareCoin("XRP", map[string]VenueQuote{
		"bithumb": {PriceKRW: 3_000},
		"upbit":   {PriceKRW: 0},
	}, 2.05, 1450)

	assert.Len(t, cmp.Venues, 1)
	assert.Equal(t, "bithumb", cmp.BestBuyExchange)
	assert.Equal(t, "bithumb", cmp.BestSellExchange)
	assert.Equal(t, 0.0, cmp.SpreadPct)
	assert.Equal(t, "HOLD", cmp.Action)
}

func TestCompareCoinNoGlobalPrice(t *testing.T) {
	cmp := CompareCoin("BTC", map[string]VenueQuote{
		"bithumb": {PriceKRW: 98_500_000},
	}, 0, 1450)

	assert.Equal(t, 0.0, cmp.AvgPremiumPct)
	assert.Equal(t, 0.0, cmp.Venues["bithumb"].PremiumPct)
}

func TestSummarizeCountsArbitrageCandidates(t *testing.T) {
	comparisons := []CoinComparison{
		{Action: "ARBITRAGE"},
		{Action: "HOLD"},
		{Action: "ARBITRAGE"},
	}
	s := Summarize(comparisons, 1450.4567)
	assert.Equal(t, 3, s.CoinCount)
	assert.Equal(t, 2, s.ArbitrageCandidateCount)
	assert.Equal(t, 1450.46, s.KrwUsdRate)
}
