package aggregate

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/crossfin/crossfin/internal/decision"
	"github.com/crossfin/crossfin/internal/market"
	"github.com/crossfin/crossfin/internal/num"
	"github.com/crossfin/crossfin/internal/store"
)

const (
	// Round trip costs one Korean taker fee plus one global taker fee.
	roundtripFeePct = 0.35

	// Reference notional for walking the Bithumb book.
	defaultTradeNotionalKRW = 15_000_000

	trendWindow = 6 * time.Hour

	snapshotMaxAge = 7 * 24 * time.Hour
)

// TrendReader supplies premium trends for decision scoring.
type TrendReader interface {
	Trend(ctx context.Context, coin string, window time.Duration) decision.Trend
}

// SnapshotReader supplies the most recent persisted snapshot per coin.
type SnapshotReader interface {
	Latest(ctx context.Context, coin string, within time.Duration) (*store.Snapshot, error)
}

// Opportunity is one premium row scored by the decision layer.
type Opportunity struct {
	KimchiRow
	NetProfitPct float64           `json:"netProfitPct"`
	SlippagePct  float64           `json:"slippagePct"`
	Trend        decision.Trend    `json:"trend"`
	Decision     decision.Decision `json:"decision"`
}

// OpportunitySet is the scored premium table.
type OpportunitySet struct {
	At              time.Time     `json:"at"`
	KrwUsdRate      float64       `json:"krwUsdRate"`
	MarketCondition string        `json:"marketCondition"`
	Opportunities   []Opportunity `json:"opportunities"`
}

// Opportunities scores every current kimchi row. Net profit is the
// premium minus the round-trip trading fees; slippage comes from the
// live Bithumb book at the reference notional.
func (s *Service) Opportunities(ctx context.Context) *OpportunitySet {
	rows, fx := s.Rows(ctx)

	set := &OpportunitySet{
		At:            time.Now().UTC(),
		KrwUsdRate:    num.Round2(fx),
		Opportunities: make([]Opportunity, 0, len(rows)),
	}
	for _, row := range rows {
		set.Opportunities = append(set.Opportunities, s.scoreRow(ctx, row))
	}
	set.MarketCondition = marketCondition(set.Opportunities)
	return set
}

func (s *Service) scoreRow(ctx context.Context, row KimchiRow) Opportunity {
	var asks []market.OrderbookLevel
	if book, err := s.data.BithumbOrderbook(ctx, row.Coin); err == nil {
		asks = book.Asks
		if len(asks) > 10 {
			asks = asks[:10]
		}
	} else {
		log.Debug().Err(err).Str("coin", row.Coin).Msg("orderbook unavailable, using default slippage")
	}
	slip := decision.SlippageFromAsks(asks, defaultTradeNotionalKRW)

	trend := decision.Trend{Direction: "stable"}
	if s.trend != nil {
		trend = s.trend.Trend(ctx, row.Coin, trendWindow)
	}

	net := row.PremiumPct - roundtripFeePct
	dec := decision.ComputeAction(net, slip, float64(market.TransferMinutes(row.Coin)), trend.VolatilityPct)

	return Opportunity{
		KimchiRow:    row,
		NetProfitPct: num.Round2(net),
		SlippagePct:  num.Round2(slip),
		Trend:        trend,
		Decision:     dec,
	}
}

func marketCondition(opps []Opportunity) string {
	executes, waits := 0, 0
	for _, o := range opps {
		switch o.Decision.Action {
		case decision.ActionExecute:
			executes++
		case decision.ActionWait:
			waits++
		}
	}
	switch {
	case executes > 0:
		return "favorable"
	case waits > 0:
		return "neutral"
	default:
		return "unfavorable"
	}
}

// Demo data sources, in fallback order.
const (
	DataSourceLive     = "live"
	DataSourceSnapshot = "snapshot"
	DataSourceFallback = "fallback"
)

var demoCoins = []string{"BTC", "ETH", "XRP"}

// DemoPreview is the free preview body.
type DemoPreview struct {
	At              time.Time     `json:"at"`
	DataSource      string        `json:"dataSource"`
	KrwUsdRate      float64       `json:"krwUsdRate"`
	MarketCondition string        `json:"marketCondition"`
	Preview         []Opportunity `json:"preview"`
}

// Demo returns the top three scored rows. When live feeds are down it
// degrades to persisted snapshots, and when those are stale too it
// returns a zeroed last-resort shape. Always 200, never an error.
func (s *Service) Demo(ctx context.Context) *DemoPreview {
	out := &DemoPreview{At: time.Now().UTC()}

	rows, fx := s.Rows(ctx)
	out.KrwUsdRate = num.Round2(fx)
	if len(rows) > 0 {
		if len(rows) > 3 {
			rows = rows[:3]
		}
		out.DataSource = DataSourceLive
		for _, row := range rows {
			out.Preview = append(out.Preview, s.scoreRow(ctx, row))
		}
		out.MarketCondition = marketCondition(out.Preview)
		return out
	}

	if s.snapshots != nil {
		for _, coin := range demoCoins {
			snap, err := s.snapshots.Latest(ctx, coin, snapshotMaxAge)
			if err != nil || snap == nil {
				continue
			}
			row := KimchiRow{
				Coin:         snap.Coin,
				BithumbKRW:   snap.BithumbKRW,
				BithumbUSD:   num.Round2(snap.BithumbKRW / snap.KrwUsdRate),
				BinanceUSD:   snap.BinanceUSD,
				PremiumPct:   num.Round2(snap.PremiumPct),
				Volume24hUSD: num.Round2(snap.Volume24hUSD),
			}
			out.Preview = append(out.Preview, s.scoreRow(ctx, row))
		}
		if len(out.Preview) > 0 {
			out.DataSource = DataSourceSnapshot
			out.MarketCondition = marketCondition(out.Preview)
			return out
		}
	}

	out.DataSource = DataSourceFallback
	out.MarketCondition = "unfavorable"
	for _, coin := range demoCoins {
		dec := decision.ComputeAction(-roundtripFeePct, 0, market.DefaultTransferMinutes, 0)
		out.Preview = append(out.Preview, Opportunity{
			KimchiRow:    KimchiRow{Coin: coin},
			NetProfitPct: num.Round2(-roundtripFeePct),
			Trend:        decision.Trend{Direction: "stable"},
			Decision:     dec,
		})
	}
	return out
}
