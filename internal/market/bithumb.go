package market

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/crossfin/crossfin/internal/apperr"
	"github.com/crossfin/crossfin/internal/netx"
)

const bithumbBaseURL = "https://api.bithumb.com"

// BithumbTicker is one coin's row from the all-tickers snapshot.
type BithumbTicker struct {
	PriceKRW     float64
	Volume24hKRW float64
	Change24hPct float64
}

// OrderbookLevel is one price level of a venue orderbook. Quantities and
// prices are non-negative.
type OrderbookLevel struct {
	Price    float64 `json:"price"`
	Quantity float64 `json:"quantity"`
}

// Bithumb numeric fields arrive as JSON strings.
type bithumbAllResponse struct {
	Status string                     `json:"status"`
	Data   map[string]json.RawMessage `json:"data"`
}

type bithumbTickerRaw struct {
	ClosingPrice     string `json:"closing_price"`
	AccTradeValue24H string `json:"acc_trade_value_24H"`
	Fluctate24H      string `json:"fluctate_rate_24H"`
}

func (d *Data) fetchBithumbAll(ctx context.Context) (map[string]BithumbTicker, error) {
	url := bithumbBaseURL + "/public/ticker/ALL_KRW"
	res, err := d.client.Fetch(ctx, "GET", url, nil, nil, netx.Limits{Timeout: netx.DefaultTimeout, MaxBody: 2 << 20})
	if err != nil {
		return nil, err
	}

	var parsed bithumbAllResponse
	if err := json.Unmarshal(res.Body, &parsed); err != nil {
		return nil, apperr.Wrap(apperr.UpstreamUnavailable, "bithumb decode failed", err)
	}
	if parsed.Status != "0000" {
		return nil, apperr.Newf(apperr.UpstreamUnavailable, "bithumb status %s", parsed.Status)
	}

	out := make(map[string]BithumbTicker, len(parsed.Data))
	for coin, raw := range parsed.Data {
		if coin == "date" {
			continue
		}
		var t bithumbTickerRaw
		if err := json.Unmarshal(raw, &t); err != nil {
			continue
		}
		price := parseKRW(t.ClosingPrice)
		if price <= 0 {
			continue
		}
		out[strings.ToUpper(coin)] = BithumbTicker{
			PriceKRW:     price,
			Volume24hKRW: parseKRW(t.AccTradeValue24H),
			Change24hPct: parseKRW(t.Fluctate24H),
		}
	}
	if len(out) == 0 {
		return nil, apperr.New(apperr.UpstreamUnavailable, "bithumb returned no tickers")
	}
	return out, nil
}

type bithumbOrderbookResponse struct {
	Status string `json:"status"`
	Data   struct {
		Bids []bithumbOrderbookLevel `json:"bids"`
		Asks []bithumbOrderbookLevel `json:"asks"`
	} `json:"data"`
}

type bithumbOrderbookLevel struct {
	Price    string `json:"price"`
	Quantity string `json:"quantity"`
}

// Orderbook is the per-coin depth snapshot served by the orderbook
// endpoint and consumed by the slippage estimator.
type Orderbook struct {
	Coin string           `json:"coin"`
	Bids []OrderbookLevel `json:"bids"`
	Asks []OrderbookLevel `json:"asks"`
}

// BithumbOrderbook fetches the top-30 depth for one coin.
func (d *Data) BithumbOrderbook(ctx context.Context, coin string) (*Orderbook, error) {
	coin = strings.ToUpper(coin)
	url := fmt.Sprintf("%s/public/orderbook/%s_KRW?count=30", bithumbBaseURL, coin)
	res, err := d.client.Fetch(ctx, "GET", url, nil, nil, netx.Limits{Timeout: netx.DefaultTimeout, MaxBody: 512 * 1024})
	if err != nil {
		return nil, err
	}

	var parsed bithumbOrderbookResponse
	if err := json.Unmarshal(res.Body, &parsed); err != nil {
		return nil, apperr.Wrap(apperr.UpstreamUnavailable, "bithumb orderbook decode failed", err)
	}
	if parsed.Status != "0000" {
		return nil, apperr.Newf(apperr.UpstreamUnavailable, "bithumb status %s", parsed.Status)
	}

	ob := &Orderbook{Coin: coin}
	for _, l := range parsed.Data.Bids {
		if lvl, ok := toLevel(l); ok {
			ob.Bids = append(ob.Bids, lvl)
		}
	}
	for _, l := range parsed.Data.Asks {
		if lvl, ok := toLevel(l); ok {
			ob.Asks = append(ob.Asks, lvl)
		}
	}
	if len(ob.Bids) > 30 {
		ob.Bids = ob.Bids[:30]
	}
	if len(ob.Asks) > 30 {
		ob.Asks = ob.Asks[:30]
	}
	return ob, nil
}

func toLevel(l bithumbOrderbookLevel) (OrderbookLevel, bool) {
	price := parseKRW(l.Price)
	qty := parseKRW(l.Quantity)
	if price < 0 || qty < 0 {
		return OrderbookLevel{}, false
	}
	return OrderbookLevel{Price: price, Quantity: qty}, true
}

// parseKRW parses Bithumb's string numerics, tolerating thousands commas.
func parseKRW(s string) float64 {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if s == "" {
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}
