package market

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/crossfin/crossfin/internal/apperr"
	"github.com/crossfin/crossfin/internal/netx"
)

// VenueTicker is a live ticker from a Korean venue other than Bithumb.
type VenueTicker struct {
	PriceKRW     float64
	Volume24hKRW float64
	Change24hPct float64
}

// UpbitTickers fetches live tickers for coins from Upbit in one batch.
func (d *Data) UpbitTickers(ctx context.Context, coins []string) (map[string]VenueTicker, error) {
	if len(coins) == 0 {
		return map[string]VenueTicker{}, nil
	}
	markets := make([]string, len(coins))
	for i, c := range coins {
		markets[i] = "KRW-" + strings.ToUpper(c)
	}
	url := "https://api.upbit.com/v1/ticker?markets=" + strings.Join(markets, ",")
	res, err := d.client.Fetch(ctx, "GET", url, nil, nil, netx.Limits{Timeout: netx.DefaultTimeout, MaxBody: 512 * 1024})
	if err != nil {
		return nil, err
	}

	var parsed []struct {
		Market           string  `json:"market"`
		TradePrice       float64 `json:"trade_price"`
		AccTradePrice24H float64 `json:"acc_trade_price_24h"`
		SignedChangeRate float64 `json:"signed_change_rate"`
	}
	if err := json.Unmarshal(res.Body, &parsed); err != nil {
		return nil, apperr.Wrap(apperr.UpstreamUnavailable, "upbit decode failed", err)
	}

	out := make(map[string]VenueTicker, len(parsed))
	for _, t := range parsed {
		coin := strings.TrimPrefix(t.Market, "KRW-")
		if t.TradePrice <= 0 {
			continue
		}
		out[coin] = VenueTicker{
			PriceKRW:     t.TradePrice,
			Volume24hKRW: t.AccTradePrice24H,
			Change24hPct: t.SignedChangeRate * 100,
		}
	}
	return out, nil
}

// CoinoneTickers fetches live tickers for coins from Coinone.
func (d *Data) CoinoneTickers(ctx context.Context, coins []string) (map[string]VenueTicker, error) {
	url := "https://api.coinone.co.kr/public/v2/ticker_new/KRW?additional_data=false"
	res, err := d.client.Fetch(ctx, "GET", url, nil, nil, netx.Limits{Timeout: netx.DefaultTimeout, MaxBody: 2 << 20})
	if err != nil {
		return nil, err
	}

	var parsed struct {
		Result  string `json:"result"`
		Tickers []struct {
			TargetCurrency string `json:"target_currency"`
			Last           string `json:"last"`
			QuoteVolume    string `json:"quote_volume"`
			YesterdayLast  string `json:"yesterday_last"`
		} `json:"tickers"`
	}
	if err := json.Unmarshal(res.Body, &parsed); err != nil {
		return nil, apperr.Wrap(apperr.UpstreamUnavailable, "coinone decode failed", err)
	}
	if parsed.Result != "success" {
		return nil, apperr.Newf(apperr.UpstreamUnavailable, "coinone result %s", parsed.Result)
	}

	want := make(map[string]bool, len(coins))
	for _, c := range coins {
		want[strings.ToUpper(c)] = true
	}

	out := make(map[string]VenueTicker)
	for _, t := range parsed.Tickers {
		coin := strings.ToUpper(t.TargetCurrency)
		if len(want) > 0 && !want[coin] {
			continue
		}
		last := parseKRW(t.Last)
		if last <= 0 {
			continue
		}
		change := 0.0
		if prev := parseKRW(t.YesterdayLast); prev > 0 {
			change = (last - prev) / prev * 100
		}
		out[coin] = VenueTicker{
			PriceKRW:     last,
			Volume24hKRW: parseKRW(t.QuoteVolume),
			Change24hPct: change,
		}
	}
	return out, nil
}

// KoreanPrice returns the live KRW price of coin on one of the Korean
// routing venues. Bithumb reads the shared cache; the others are live.
func (d *Data) KoreanPrice(ctx context.Context, venue, coin string) (float64, error) {
	coin = strings.ToUpper(coin)
	switch strings.ToLower(venue) {
	case "bithumb":
		all, err := d.BithumbAll(ctx)
		if err != nil {
			return 0, err
		}
		t, ok := all[coin]
		if !ok {
			return 0, apperr.Newf(apperr.NotFound, "no bithumb price for %s", coin)
		}
		return t.PriceKRW, nil
	case "upbit":
		ts, err := d.UpbitTickers(ctx, []string{coin})
		if err != nil {
			return 0, err
		}
		t, ok := ts[coin]
		if !ok {
			return 0, apperr.Newf(apperr.NotFound, "no upbit price for %s", coin)
		}
		return t.PriceKRW, nil
	case "coinone", "korbit":
		// Korbit's public book is thin for most bridge coins; Coinone quotes
		// are used for both venues' pricing legs.
		ts, err := d.CoinoneTickers(ctx, []string{coin})
		if err != nil {
			return 0, err
		}
		t, ok := ts[coin]
		if !ok {
			return 0, apperr.Newf(apperr.NotFound, "no coinone price for %s", coin)
		}
		return t.PriceKRW, nil
	default:
		return 0, apperr.Newf(apperr.BadInput, "unknown venue %s", venue)
	}
}

// Asks returns the top asks for coin on venue, used by the slippage
// estimator. Only Bithumb exposes depth through this gateway.
func (d *Data) Asks(ctx context.Context, venue, coin string, depth int) ([]OrderbookLevel, error) {
	if strings.ToLower(venue) != "bithumb" {
		return nil, apperr.Newf(apperr.NotFound, "no orderbook feed for %s", venue)
	}
	ob, err := d.BithumbOrderbook(ctx, coin)
	if err != nil {
		return nil, err
	}
	if depth > 0 && len(ob.Asks) > depth {
		return ob.Asks[:depth], nil
	}
	return ob.Asks, nil
}
