package routing

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/crossfin/crossfin/internal/apperr"
	"github.com/crossfin/crossfin/internal/decision"
	"github.com/crossfin/crossfin/internal/market"
	"github.com/crossfin/crossfin/internal/num"
)

// Strategies for ranking candidate routes.
const (
	StrategyCheapest = "cheapest"
	StrategyFastest  = "fastest"
	StrategyBalanced = "balanced"
)

// Direction buckets for a routing request.
const (
	DirectionKoreaToGlobal = "korea_to_global"
	DirectionGlobalToKorea = "global_to_korea"
	DirectionDomestic      = "domestic"
)

// Recommendation buckets by total cost.
const (
	BucketGoodDeal      = "GOOD_DEAL"
	BucketProceed       = "PROCEED"
	BucketExpensive     = "EXPENSIVE"
	BucketVeryExpensive = "VERY_EXPENSIVE"
)

const (
	defaultKoreanSlippagePct = 0.15
	globalSlippagePct        = 0.10
	executionMinutes         = 1 // two trade executions
	highCostSkipPct          = 2.0
	trendWindow              = 6 * time.Hour
	maxAlternatives          = 4
)

// MarketData is the engine's view of the price caches.
type MarketData interface {
	FXRate(ctx context.Context) float64
	GlobalPrices(ctx context.Context) (map[string]float64, error)
	KoreanPrice(ctx context.Context, venue, coin string) (float64, error)
	Asks(ctx context.Context, venue, coin string, depth int) ([]market.OrderbookLevel, error)
}

// TrendSource supplies premium volatility for the decision layer.
type TrendSource interface {
	Volatility(ctx context.Context, coin string, window time.Duration) float64
}

// Request describes one routing question.
type Request struct {
	From         string  `json:"from"`
	FromCurrency string  `json:"fromCurrency"`
	To           string  `json:"to"`
	ToCurrency   string  `json:"toCurrency"`
	Amount       float64 `json:"amount"`
	Strategy     string  `json:"strategy"`
}

// Step is one leg of a route: buy, transfer, or sell.
type Step struct {
	Kind         string  `json:"kind"`
	FromExchange string  `json:"fromExchange"`
	FromCurrency string  `json:"fromCurrency"`
	ToExchange   string  `json:"toExchange"`
	ToCurrency   string  `json:"toCurrency"`
	FeePct       float64 `json:"feePct"`
	FeeAbs       float64 `json:"feeAbs"`
	SlippagePct  float64 `json:"slippagePct"`
	TimeMinutes  int     `json:"timeMinutes"`
	PriceUsed    float64 `json:"priceUsed"`
	AmountIn     float64 `json:"amountIn"`
	AmountOut    float64 `json:"amountOut"`
}

// Route is one evaluated bridge-coin path.
type Route struct {
	BridgeCoin       string            `json:"bridgeCoin"`
	Steps            []Step            `json:"steps"`
	TotalCostPct     float64           `json:"totalCostPct"`
	TotalTimeMinutes int               `json:"totalTimeMinutes"`
	EstimatedInput   float64           `json:"estimatedInput"`
	EstimatedOutput  float64           `json:"estimatedOutput"`
	OutputCurrency   string            `json:"outputCurrency"`
	Decision         decision.Decision `json:"decision"`
	Recommendation   string            `json:"recommendation"`
	Summary          string            `json:"summary"`
}

// Meta reports what the enumeration saw.
type Meta struct {
	Direction       string             `json:"direction"`
	Strategy        string             `json:"strategy"`
	KrwUsdRate      float64            `json:"krwUsdRate"`
	EvaluatedCoins  []string           `json:"evaluatedCoins"`
	SkippedCoins    []string           `json:"skippedCoins"`
	PricesConsulted map[string]float64 `json:"pricesConsulted"`
}

// Plan is the full routing answer.
type Plan struct {
	Optimal      *Route  `json:"optimal"`
	Alternatives []Route `json:"alternatives"`
	Meta         Meta    `json:"meta"`
}

// Engine enumerates bridge-coin routes over the fixed topology.
type Engine struct {
	data  MarketData
	trend TrendSource
}

// NewEngine creates a routing engine.
func NewEngine(data MarketData, trend TrendSource) *Engine {
	return &Engine{data: data, trend: trend}
}

// FindOptimalRoute validates the request, evaluates every bridge coin,
// ranks by strategy, and returns the best route plus alternatives.
func (e *Engine) FindOptimalRoute(ctx context.Context, req Request) (*Plan, error) {
	req.From = strings.ToLower(req.From)
	req.To = strings.ToLower(req.To)
	req.FromCurrency = strings.ToUpper(req.FromCurrency)
	req.ToCurrency = strings.ToUpper(req.ToCurrency)

	fromEx, ok := Lookup(req.From)
	if !ok {
		return nil, apperr.Newf(apperr.BadInput, "unknown source exchange %q", req.From)
	}
	toEx, ok := Lookup(req.To)
	if !ok {
		return nil, apperr.Newf(apperr.BadInput, "unknown destination exchange %q", req.To)
	}

	if req.Strategy == "" {
		req.Strategy = StrategyCheapest
	}
	req.Strategy = strings.ToLower(req.Strategy)
	switch req.Strategy {
	case StrategyCheapest, StrategyFastest, StrategyBalanced:
	default:
		return nil, apperr.Newf(apperr.BadInput, "unknown strategy %q", req.Strategy)
	}

	if req.Amount <= 0 || math.IsNaN(req.Amount) || math.IsInf(req.Amount, 0) {
		return nil, apperr.New(apperr.BadInput, "amount must be a positive finite number")
	}

	direction, err := classifyDirection(fromEx, toEx)
	if err != nil {
		return nil, err
	}

	fx := e.data.FXRate(ctx)
	global, err := e.data.GlobalPrices(ctx)
	if err != nil {
		global = map[string]float64{}
		log.Warn().Err(err).Msg("global prices unavailable, routes needing them will be skipped")
	}

	meta := Meta{
		Direction:       direction,
		Strategy:        req.Strategy,
		KrwUsdRate:      num.Round2(fx),
		PricesConsulted: make(map[string]float64),
	}

	var routes []Route
	for _, sym := range market.Tracked {
		route, skipReason := e.evaluateBridge(ctx, req, fromEx, toEx, direction, sym, fx, global, &meta)
		if route == nil {
			log.Debug().Str("coin", sym.Coin).Str("reason", skipReason).Msg("bridge coin skipped")
			meta.SkippedCoins = append(meta.SkippedCoins, sym.Coin)
			continue
		}
		meta.EvaluatedCoins = append(meta.EvaluatedCoins, sym.Coin)
		routes = append(routes, *route)
	}

	rankRoutes(routes, req.Strategy)

	plan := &Plan{Meta: meta}
	if len(routes) > 0 {
		plan.Optimal = &routes[0]
		rest := routes[1:]
		if len(rest) > maxAlternatives {
			rest = rest[:maxAlternatives]
		}
		plan.Alternatives = rest
	} else {
		plan.Alternatives = []Route{}
	}
	return plan, nil
}

func classifyDirection(from, to Exchange) (string, error) {
	switch {
	case !from.Global && to.Global:
		return DirectionKoreaToGlobal, nil
	case from.Global && !to.Global:
		return DirectionGlobalToKorea, nil
	case !from.Global && !to.Global:
		return DirectionDomestic, nil
	default:
		return "", apperr.New(apperr.BadInput, "unsupported route direction")
	}
}

// evaluateBridge builds one candidate route, or returns nil with the skip
// reason.
func (e *Engine) evaluateBridge(ctx context.Context, req Request, fromEx, toEx Exchange, direction string, sym market.TrackedSymbol, fx float64, global map[string]float64, meta *Meta) (*Route, string) {
	coin := sym.Coin

	withdrawFee, ok := fromEx.WithdrawalFees[coin]
	if !ok {
		return nil, "no withdrawal fee entry on source"
	}

	// Destination must be able to price the coin.
	var destPrice float64
	if toEx.Global {
		destPrice = global[coin]
		if destPrice <= 0 {
			return nil, "no global price on destination"
		}
	} else {
		p, err := e.data.KoreanPrice(ctx, toEx.ID, coin)
		if err != nil || p <= 0 {
			return nil, "no destination price"
		}
		destPrice = p
		meta.PricesConsulted[toEx.ID+":"+coin] = p
	}

	// Buy leg.
	var (
		buyPrice float64
		slip     float64
	)
	if fromEx.Global {
		buyPrice = global[coin]
		if buyPrice <= 0 {
			return nil, "no global price on source"
		}
		slip = globalSlippagePct
	} else {
		p, err := e.data.KoreanPrice(ctx, fromEx.ID, coin)
		if err != nil || p <= 0 {
			return nil, "no source price"
		}
		buyPrice = p
		meta.PricesConsulted[fromEx.ID+":"+coin] = p

		slip = defaultKoreanSlippagePct
		if asks, err := e.data.Asks(ctx, fromEx.ID, coin, 10); err == nil && len(asks) > 0 {
			slip = decision.SlippageFromAsks(asks, req.Amount)
		}
	}

	buyFeeAbs := req.Amount * fromEx.TradingFeePct / 100
	afterFee := req.Amount - buyFeeAbs
	coins := afterFee / (buyPrice * (1 + slip/100))
	if coins <= 0 {
		return nil, "buy leg produced no coins"
	}

	buy := Step{
		Kind:         "buy",
		FromExchange: fromEx.ID,
		FromCurrency: req.FromCurrency,
		ToExchange:   fromEx.ID,
		ToCurrency:   coin,
		FeePct:       fromEx.TradingFeePct,
		FeeAbs:       num.Round2(buyFeeAbs),
		SlippagePct:  num.Round2(slip),
		TimeMinutes:  0,
		PriceUsed:    buyPrice,
		AmountIn:     req.Amount,
		AmountOut:    coins,
	}

	// Transfer leg.
	afterWithdraw := coins - withdrawFee
	if afterWithdraw <= 0 {
		return nil, "withdrawal fee exceeds amount"
	}
	transferMin := sym.TransferMinutes
	if transferMin <= 0 {
		transferMin = market.DefaultTransferMinutes
	}
	transfer := Step{
		Kind:         "transfer",
		FromExchange: fromEx.ID,
		FromCurrency: coin,
		ToExchange:   toEx.ID,
		ToCurrency:   coin,
		FeeAbs:       withdrawFee,
		TimeMinutes:  transferMin,
		AmountIn:     coins,
		AmountOut:    afterWithdraw,
	}

	// Sell leg.
	sellFeePct := toEx.TradingFeePct
	var output float64
	outputCurrency := req.ToCurrency
	if toEx.Global {
		output = afterWithdraw * destPrice * (1 - sellFeePct/100)
		if outputCurrency == "" {
			outputCurrency = "USD"
		}
	} else {
		output = afterWithdraw * destPrice * (1 - sellFeePct/100)
		if IsUSDLike(req.ToCurrency) {
			output = output / fx
		} else if outputCurrency == "" {
			outputCurrency = "KRW"
		}
	}
	if output <= 0 {
		return nil, "sell leg produced no output"
	}
	sell := Step{
		Kind:         "sell",
		FromExchange: toEx.ID,
		FromCurrency: coin,
		ToExchange:   toEx.ID,
		ToCurrency:   outputCurrency,
		FeePct:       sellFeePct,
		FeeAbs:       num.Round2(afterWithdraw * destPrice * sellFeePct / 100),
		PriceUsed:    destPrice,
		AmountIn:     afterWithdraw,
		AmountOut:    num.Round2(output),
	}

	// Cost in USD terms regardless of leg currencies.
	inputUSD := req.Amount
	if !IsUSDLike(req.FromCurrency) {
		inputUSD = req.Amount / fx
	}
	outputUSD := output
	if !toUSDLike(toEx, req.ToCurrency) {
		outputUSD = output / fx
	}
	costPct := (inputUSD - outputUSD) / inputUSD * 100

	totalTime := transferMin + executionMinutes

	vol := 0.0
	if e.trend != nil {
		vol = e.trend.Volatility(ctx, coin, trendWindow)
	}
	dec := decision.ComputeAction(-costPct, slip, float64(transferMin), vol)
	if costPct >= highCostSkipPct {
		dec.Action = decision.ActionSkip
		dec.Reason = fmt.Sprintf("total cost %.2f%% is too high to route", num.Round2(costPct))
	}

	route := &Route{
		BridgeCoin:       coin,
		Steps:            []Step{buy, transfer, sell},
		TotalCostPct:     num.Round2(costPct),
		TotalTimeMinutes: totalTime,
		EstimatedInput:   req.Amount,
		EstimatedOutput:  sell.AmountOut,
		OutputCurrency:   outputCurrency,
		Decision:         dec,
		Recommendation:   recommendationBucket(costPct),
	}
	route.Summary = summarize(route, fromEx, toEx)
	return route, ""
}

// toUSDLike reports whether the realized output is dollar-denominated.
func toUSDLike(toEx Exchange, toCurrency string) bool {
	if toEx.Global {
		return true
	}
	return IsUSDLike(toCurrency)
}

func recommendationBucket(costPct float64) string {
	switch {
	case costPct < 1:
		return BucketGoodDeal
	case costPct < 3:
		return BucketProceed
	case costPct < 5:
		return BucketExpensive
	default:
		return BucketVeryExpensive
	}
}

func summarize(r *Route, fromEx, toEx Exchange) string {
	transfer := r.Steps[1]
	return fmt.Sprintf(
		"Buy %s on %s, transfer to %s (~%d min), sell for %s. Fees and slippage total %.2f%%; done in about %d minutes. %s.",
		r.BridgeCoin, fromEx.Name, toEx.Name, transfer.TimeMinutes, r.OutputCurrency,
		num.Round2(r.TotalCostPct), r.TotalTimeMinutes, r.Recommendation,
	)
}

func rankRoutes(routes []Route, strategy string) {
	sort.SliceStable(routes, func(i, j int) bool {
		a, b := routes[i], routes[j]
		switch strategy {
		case StrategyFastest:
			if a.TotalTimeMinutes != b.TotalTimeMinutes {
				return a.TotalTimeMinutes < b.TotalTimeMinutes
			}
			return a.TotalCostPct < b.TotalCostPct
		case StrategyBalanced:
			return balancedScore(a) < balancedScore(b)
		default: // cheapest
			if a.TotalCostPct != b.TotalCostPct {
				return a.TotalCostPct < b.TotalCostPct
			}
			return a.TotalTimeMinutes < b.TotalTimeMinutes
		}
	})
}

// balancedScore mixes cost and time; the 30-minute normalizer keeps the
// two terms on comparable scales.
func balancedScore(r Route) float64 {
	return 0.7*r.TotalCostPct + 0.3*(float64(r.TotalTimeMinutes)/30.0)
}
