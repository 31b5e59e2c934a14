package aggregate

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/crossfin/crossfin/internal/market"
	"github.com/crossfin/crossfin/internal/num"
)

// Service composes the aggregators over the live caches. Every bundle
// endpoint fans out its dependencies concurrently and tolerates any
// subset failing: a dead upstream yields an empty slot, never an error.
type Service struct {
	data      MarketSource
	trend     TrendReader
	snapshots SnapshotReader
}

// MarketSource is the aggregation layer's view of the upstream caches.
// The market data layer satisfies it.
type MarketSource interface {
	FXRate(ctx context.Context) float64
	BithumbAll(ctx context.Context) (map[string]market.BithumbTicker, error)
	GlobalPrices(ctx context.Context) (map[string]float64, error)
	BithumbOrderbook(ctx context.Context, coin string) (*market.Orderbook, error)
	UpbitTickers(ctx context.Context, coins []string) (map[string]market.VenueTicker, error)
	CoinoneTickers(ctx context.Context, coins []string) (map[string]market.VenueTicker, error)
	KoreanIndices(ctx context.Context) ([]market.IndexQuote, error)
	StockDetail(ctx context.Context, code string) (*market.StockQuote, error)
	NewsHeadlines(ctx context.Context, limit int) ([]market.Headline, error)
	USDCReceives(ctx context.Context) ([]market.USDCTransfer, error)
}

var _ MarketSource = (*market.Data)(nil)

// NewService wires the aggregation layer to the market data caches. The
// trend and snapshot readers may be nil; scoring then runs without
// volatility input and the demo endpoint skips its snapshot stage.
func NewService(data MarketSource, trend TrendReader, snapshots SnapshotReader) *Service {
	return &Service{data: data, trend: trend, snapshots: snapshots}
}

// Data exposes the underlying caches for handlers that need direct reads.
func (s *Service) Data() MarketSource { return s.data }

// Rows computes the current kimchi rows from cache. An unavailable
// dependency produces an empty slice.
func (s *Service) Rows(ctx context.Context) ([]KimchiRow, float64) {
	fx := s.data.FXRate(ctx)

	var (
		wg      sync.WaitGroup
		bithumb map[string]market.BithumbTicker
		global  map[string]float64
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		var err error
		if bithumb, err = s.data.BithumbAll(ctx); err != nil {
			log.Debug().Err(err).Msg("bithumb unavailable for kimchi rows")
		}
	}()
	go func() {
		defer wg.Done()
		var err error
		if global, err = s.data.GlobalPrices(ctx); err != nil {
			log.Debug().Err(err).Msg("global prices unavailable for kimchi rows")
		}
	}()
	wg.Wait()

	return KimchiRows(bithumb, global, fx), fx
}

// Sentiment is a coarse Korean-market mood derived from premium and flow.
type Sentiment struct {
	Mood              string  `json:"mood"` // greedy, warm, neutral, cautious
	AvgPremiumPct     float64 `json:"avgPremiumPct"`
	WeightedChangePct float64 `json:"weightedChangePct"`
	Comment           string  `json:"comment"`
}

func deriveSentiment(avgPremium, weightedChange float64) Sentiment {
	mood := "neutral"
	comment := "premium and flows are unremarkable"
	switch {
	case avgPremium > 3:
		mood = "greedy"
		comment = "kimchi premium is stretched; domestic demand is running hot"
	case avgPremium > 1:
		mood = "warm"
		comment = "mild premium; domestic buyers lead"
	case avgPremium < -1:
		mood = "cautious"
		comment = "discount to global prices; domestic sellers lead"
	}
	return Sentiment{
		Mood:              mood,
		AvgPremiumPct:     num.Round2(avgPremium),
		WeightedChangePct: num.Round2(weightedChange),
		Comment:           comment,
	}
}

// MorningBrief bundles the dashboard's opening view.
type MorningBrief struct {
	At         time.Time           `json:"at"`
	KrwUsdRate float64             `json:"krwUsdRate"`
	Kimchi     []KimchiRow         `json:"kimchi"`
	Indices    []market.IndexQuote `json:"indices"`
	Headlines  []market.Headline   `json:"headlines"`
	Sentiment  Sentiment           `json:"sentiment"`
}

// MorningBrief gathers kimchi rows, Korean indices, and headlines in
// parallel. Individual failures produce empty slots.
func (s *Service) MorningBrief(ctx context.Context) *MorningBrief {
	brief := &MorningBrief{At: time.Now().UTC()}

	var wg sync.WaitGroup
	var volume VolumeAnalysis
	wg.Add(3)
	go func() {
		defer wg.Done()
		rows, fx := s.Rows(ctx)
		brief.Kimchi = rows
		brief.KrwUsdRate = num.Round2(fx)
		if bithumb, err := s.data.BithumbAll(ctx); err == nil {
			volume = AnalyzeVolume(bithumb, fx, 10)
		}
	}()
	go func() {
		defer wg.Done()
		if idx, err := s.data.KoreanIndices(ctx); err == nil {
			brief.Indices = idx
		}
	}()
	go func() {
		defer wg.Done()
		if news, err := s.data.NewsHeadlines(ctx, 5); err == nil {
			brief.Headlines = news
		}
	}()
	wg.Wait()

	brief.Sentiment = deriveSentiment(AvgPremium(brief.Kimchi), volume.WeightedChangePct)
	return brief
}

// CryptoSnapshot is the fast crypto-only bundle.
type CryptoSnapshot struct {
	At         time.Time      `json:"at"`
	KrwUsdRate float64        `json:"krwUsdRate"`
	Kimchi     []KimchiRow    `json:"kimchi"`
	Volume     VolumeAnalysis `json:"volume"`
}

// CryptoSnapshot bundles kimchi rows with the volume analysis.
func (s *Service) CryptoSnapshot(ctx context.Context) *CryptoSnapshot {
	snap := &CryptoSnapshot{At: time.Now().UTC()}

	rows, fx := s.Rows(ctx)
	snap.Kimchi = rows
	snap.KrwUsdRate = num.Round2(fx)
	if bithumb, err := s.data.BithumbAll(ctx); err == nil {
		snap.Volume = AnalyzeVolume(bithumb, fx, 10)
	}
	return snap
}

// KimchiStats is the statistics bundle over current premium rows.
type KimchiStats struct {
	At            time.Time  `json:"at"`
	KrwUsdRate    float64    `json:"krwUsdRate"`
	PairsTracked  int        `json:"pairsTracked"`
	AvgPremiumPct float64    `json:"avgPremiumPct"`
	TopPremium    *KimchiRow `json:"topPremium"`
	Sentiment     Sentiment  `json:"sentiment"`
}

// KimchiStats summarizes the current premium table.
func (s *Service) KimchiStats(ctx context.Context) *KimchiStats {
	rows, fx := s.Rows(ctx)
	stats := &KimchiStats{
		At:            time.Now().UTC(),
		KrwUsdRate:    num.Round2(fx),
		PairsTracked:  len(rows),
		AvgPremiumPct: AvgPremium(rows),
	}
	if len(rows) > 0 {
		top := rows[0]
		stats.TopPremium = &top
	}
	stats.Sentiment = deriveSentiment(stats.AvgPremiumPct, 0)
	return stats
}

// StockBrief bundles a stock detail with indices and headlines.
type StockBrief struct {
	At        time.Time           `json:"at"`
	Stock     *market.StockQuote  `json:"stock"`
	Indices   []market.IndexQuote `json:"indices"`
	Headlines []market.Headline   `json:"headlines"`
}

// StockBrief fetches one equity plus market context in parallel.
func (s *Service) StockBrief(ctx context.Context, code string) *StockBrief {
	brief := &StockBrief{At: time.Now().UTC()}

	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		if q, err := s.data.StockDetail(ctx, code); err == nil {
			brief.Stock = q
		}
	}()
	go func() {
		defer wg.Done()
		if idx, err := s.data.KoreanIndices(ctx); err == nil {
			brief.Indices = idx
		}
	}()
	go func() {
		defer wg.Done()
		if news, err := s.data.NewsHeadlines(ctx, 5); err == nil {
			brief.Headlines = news
		}
	}()
	wg.Wait()

	return brief
}

// CrossExchange gathers per-venue quotes for the requested coins and
// builds the comparison. Venue fetch failures drop that venue's column.
func (s *Service) CrossExchange(ctx context.Context, coins []string) ([]CoinComparison, CrossExchangeSummary) {
	fx := s.data.FXRate(ctx)

	var (
		wg      sync.WaitGroup
		bithumb map[string]market.BithumbTicker
		upbit   map[string]market.VenueTicker
		coinone map[string]market.VenueTicker
		global  map[string]float64
	)
	wg.Add(4)
	go func() {
		defer wg.Done()
		bithumb, _ = s.data.BithumbAll(ctx)
	}()
	go func() {
		defer wg.Done()
		upbit, _ = s.data.UpbitTickers(ctx, coins)
	}()
	go func() {
		defer wg.Done()
		coinone, _ = s.data.CoinoneTickers(ctx, coins)
	}()
	go func() {
		defer wg.Done()
		global, _ = s.data.GlobalPrices(ctx)
	}()
	wg.Wait()

	comparisons := make([]CoinComparison, 0, len(coins))
	for _, coin := range coins {
		venues := make(map[string]VenueQuote)
		if t, ok := bithumb[coin]; ok {
			venues["bithumb"] = VenueQuote{PriceKRW: t.PriceKRW, Volume24hKRW: t.Volume24hKRW, Change24hPct: num.Round2(t.Change24hPct)}
		}
		if t, ok := upbit[coin]; ok {
			venues["upbit"] = VenueQuote{PriceKRW: t.PriceKRW, Volume24hKRW: t.Volume24hKRW, Change24hPct: num.Round2(t.Change24hPct)}
		}
		if t, ok := coinone[coin]; ok {
			venues["coinone"] = VenueQuote{PriceKRW: t.PriceKRW, Volume24hKRW: t.Volume24hKRW, Change24hPct: num.Round2(t.Change24hPct)}
		}
		comparisons = append(comparisons, CompareCoin(coin, venues, global[coin], fx))
	}
	return comparisons, Summarize(comparisons, fx)
}
