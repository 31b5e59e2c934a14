package aggregate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crossfin/crossfin/internal/decision"
	"github.com/crossfin/crossfin/internal/market"
	"github.com/crossfin/crossfin/internal/store"
)

// fakeMarket satisfies MarketSource with canned data; nil maps read as
// upstream failures.
type fakeMarket struct {
	fx      float64
	bithumb map[string]market.BithumbTicker
	global  map[string]float64
	book    *market.Orderbook
}

var errFeedDown = errors.New("feed down")

func (f *fakeMarket) FXRate(ctx context.Context) float64 { return f.fx }

func (f *fakeMarket) BithumbAll(ctx context.Context) (map[string]market.BithumbTicker, error) {
	if f.bithumb == nil {
		return nil, errFeedDown
	}
	return f.bithumb, nil
}

func (f *fakeMarket) GlobalPrices(ctx context.Context) (map[string]float64, error) {
	if f.global == nil {
		return nil, errFeedDown
	}
	return f.global, nil
}

func (f *fakeMarket) BithumbOrderbook(ctx context.Context, coin string) (*market.Orderbook, error) {
	if f.book == nil {
		return nil, errFeedDown
	}
	return f.book, nil
}

func (f *fakeMarket) UpbitTickers(ctx context.Context, coins []string) (map[string]market.VenueTicker, error) {
	return nil, errFeedDown
}

func (f *fakeMarket) CoinoneTickers(ctx context.Context, coins []string) (map[string]market.VenueTicker, error) {
	return nil, errFeedDown
}

func (f *fakeMarket) KoreanIndices(ctx context.Context) ([]market.IndexQuote, error) {
	return nil, errFeedDown
}

func (f *fakeMarket) StockDetail(ctx context.Context, code string) (*market.StockQuote, error) {
	return nil, errFeedDown
}

func (f *fakeMarket) NewsHeadlines(ctx context.Context, limit int) ([]market.Headline, error) {
	return nil, errFeedDown
}

func (f *fakeMarket) USDCReceives(ctx context.Context) ([]market.USDCTransfer, error) {
	return nil, errFeedDown
}

type fakeSnapshots struct {
	byCoin map[string]*store.Snapshot
}

func (f *fakeSnapshots) Latest(ctx context.Context, coin string, within time.Duration) (*store.Snapshot, error) {
	if f.byCoin == nil {
		return nil, nil
	}
	return f.byCoin[coin], nil
}

type fixedTrend struct{ trend decision.Trend }

func (f fixedTrend) Trend(ctx context.Context, coin string, window time.Duration) decision.Trend {
	return f.trend
}

func liveMarket() *fakeMarket {
	return &fakeMarket{
		fx: 1450,
		bithumb: map[string]market.BithumbTicker{
			"BTC": {PriceKRW: 97_871_375, Volume24hKRW: 500_000_000_000}, // +1.5 % premium
		},
		global: map[string]float64{"BTC": 66_500},
		book: &market.Orderbook{Asks: []market.OrderbookLevel{
			{Price: 97_900_000, Quantity: 5},
		}},
	}
}

func TestOpportunitiesScoresRows(t *testing.T) {
	svc := NewService(liveMarket(), fixedTrend{decision.Trend{Direction: "stable", VolatilityPct: 0.1}}, nil)

	set := svc.Opportunities(context.Background())
	require.Len(t, set.Opportunities, 1)

	opp := set.Opportunities[0]
	assert.Equal(t, "BTC", opp.Coin)
	assert.InDelta(t, 1.15, opp.NetProfitPct, 0.01)
	assert.Equal(t, 0.0, opp.SlippagePct, "order fills at the best ask")
	assert.Equal(t, decision.ActionExecute, opp.Decision.Action)
	assert.Equal(t, "favorable", set.MarketCondition)
}

func TestOpportunitiesDefaultSlippageWithoutBook(t *testing.T) {
	m := liveMarket()
	m.book = nil
	svc := NewService(m, fixedTrend{}, nil)

	set := svc.Opportunities(context.Background())
	require.Len(t, set.Opportunities, 1)
	assert.Equal(t, decision.DefaultSlippagePct, set.Opportunities[0].SlippagePct)
	assert.Equal(t, decision.ActionSkip, set.Opportunities[0].Decision.Action)
}

func TestDemoLive(t *testing.T) {
	svc := NewService(liveMarket(), fixedTrend{}, nil)

	out := svc.Demo(context.Background())
	assert.Equal(t, DataSourceLive, out.DataSource)
	require.Len(t, out.Preview, 1)
	assert.Equal(t, "BTC", out.Preview[0].Coin)
}

func TestDemoFallsBackToSnapshots(t *testing.T) {
	dead := &fakeMarket{fx: 1450}
	snaps := &fakeSnapshots{byCoin: map[string]*store.Snapshot{
		"BTC": {Coin: "BTC", BithumbKRW: 98_500_000, BinanceUSD: 66_500, PremiumPct: 2.15, KrwUsdRate: 1450},
	}}
	svc := NewService(dead, fixedTrend{}, snaps)

	out := svc.Demo(context.Background())
	assert.Equal(t, DataSourceSnapshot, out.DataSource)
	require.Len(t, out.Preview, 1)
	assert.Equal(t, "BTC", out.Preview[0].Coin)
	assert.InDelta(t, 2.15, out.Preview[0].PremiumPct, 0.001)
}

func TestDemoLastResortFallback(t *testing.T) {
	dead := &fakeMarket{fx: 1450}
	svc := NewService(dead, fixedTrend{}, &fakeSnapshots{})

	out := svc.Demo(context.Background())
	assert.Equal(t, DataSourceFallback, out.DataSource)
	assert.Equal(t, "unfavorable", out.MarketCondition)
	require.Len(t, out.Preview, 3)

	coins := []string{"BTC", "ETH", "XRP"}
	for i, opp := range out.Preview {
		assert.Equal(t, coins[i], opp.Coin)
		assert.Equal(t, 0.0, opp.PremiumPct)
		assert.Equal(t, decision.ActionSkip, opp.Decision.Action)
		assert.GreaterOrEqual(t, opp.Decision.Confidence, 0.10)
		assert.LessOrEqual(t, opp.Decision.Confidence, 0.50)
	}
}
