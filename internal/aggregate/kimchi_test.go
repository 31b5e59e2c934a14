package aggregate

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crossfin/crossfin/internal/market"
)

func TestKimchiRowsPremium(t *testing.T) {
	bithumb := map[string]market.BithumbTicker{
		"BTC": {PriceKRW: 98_500_000, Volume24hKRW: 500_000_000_000, Change24hPct: 1.234},
	}
	global := map[string]float64{"BTC": 66_500}

	rows := KimchiRows(bithumb, global, 1450)
	require.Len(t, rows, 1)

	row := rows[0]
	assert.Equal(t, "BTC", row.Coin)
	// 98.5M / 1450 = 67931.03 USD vs 66500 -> +2.15 %
	assert.InDelta(t, 67931.03, row.BithumbUSD, 0.01)
	assert.InDelta(t, 2.15, row.PremiumPct, 0.01)
	assert.Equal(t, 1.23, row.Change24hPct)
}

func TestKimchiRowsOmitsMissingSources(t *testing.T) {
	bithumb := map[string]market.BithumbTicker{
		"BTC": {PriceKRW: 98_500_000},
		"ETH": {PriceKRW: 4_800_000},
	}
	global := map[string]float64{"BTC": 66_500} // no ETH

	rows := KimchiRows(bithumb, global, 1450)
	require.Len(t, rows, 1)
	assert.Equal(t, "BTC", rows[0].Coin)
}

func TestKimchiRowsSortedByAbsolutePremium(t *testing.T) {
	bithumb := map[string]market.BithumbTicker{
		"BTC": {PriceKRW: 96_425_000}, // exactly par at FX 1450, 66500 USD
		"XRP": {PriceKRW: 3_100},      // large premium
		"ETH": {PriceKRW: 6_800_000},  // discount
	}
	global := map[string]float64{"BTC": 66_500, "XRP": 2.05, "ETH": 4_800}

	rows := KimchiRows(bithumb, global, 1450)
	require.Len(t, rows, 3)
	for i := 1; i < len(rows); i++ {
		assert.GreaterOrEqual(t, math.Abs(rows[i-1].PremiumPct), math.Abs(rows[i].PremiumPct))
	}
}

func TestKimchiRowsRejectsBadInputs(t *testing.T) {
	bithumb := map[string]market.BithumbTicker{"BTC": {PriceKRW: 98_500_000}}
	global := map[string]float64{"BTC": 66_500}

	assert.Nil(t, KimchiRows(nil, global, 1450))
	assert.Nil(t, KimchiRows(bithumb, nil, 1450))
	assert.Nil(t, KimchiRows(bithumb, global, 0))
}

func TestAvgPremium(t *testing.T) {
	rows := []KimchiRow{{PremiumPct: 2.0}, {PremiumPct: 1.0}, {PremiumPct: -0.5}}
	assert.InDelta(t, 0.83, AvgPremium(rows), 0.01)
	assert.Equal(t, 0.0, AvgPremium(nil))
}
