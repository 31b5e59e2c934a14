package market

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/crossfin/crossfin/internal/apperr"
	"github.com/crossfin/crossfin/internal/netx"
)

// Binance base URLs in attempt order. The data mirror goes first: it is
// not geo-blocked in regions where the main API is.
var binanceBaseURLs = []string{
	"https://data-api.binance.vision",
	"https://api.binance.com",
	"https://api1.binance.com",
}

// coinGecko IDs for the tracked set, used by the tertiary provider.
var coinGeckoIDs = map[string]string{
	"BTC": "bitcoin", "ETH": "ethereum", "XRP": "ripple", "SOL": "solana",
	"ADA": "cardano", "DOGE": "dogecoin", "TRX": "tron", "LINK": "chainlink",
	"DOT": "polkadot", "AVAX": "avalanche-2", "MATIC": "matic-network",
}

// fetchGlobalPrices walks the provider chain until validation passes:
// Binance batch, CryptoCompare multi-price, CoinGecko simple-price, then
// the persisted snapshot store.
func (d *Data) fetchGlobalPrices(ctx context.Context) (map[string]float64, error) {
	if prices, err := d.fetchBinanceBatch(ctx); err == nil && validGlobalPrices(prices) {
		return prices, nil
	} else if err != nil {
		log.Warn().Err(err).Msg("binance batch failed, trying secondary provider")
	}

	if prices, err := d.fetchCryptoCompare(ctx); err == nil && validGlobalPrices(prices) {
		return prices, nil
	} else if err != nil {
		log.Warn().Err(err).Msg("cryptocompare failed, trying tertiary provider")
	}

	if prices, err := d.fetchCoinGecko(ctx); err == nil && validGlobalPrices(prices) {
		return prices, nil
	} else if err != nil {
		log.Warn().Err(err).Msg("coingecko failed, trying snapshot store")
	}

	if prices := d.fetchFromSnapshots(ctx); validGlobalPrices(prices) {
		log.Warn().Int("symbols", len(prices)).Msg("all live price feeds down, using snapshot store")
		return prices, nil
	}

	return nil, apperr.New(apperr.UpstreamUnavailable, "no global price source available")
}

// validGlobalPrices requires a sane BTC price plus at least one other
// tracked symbol.
func validGlobalPrices(prices map[string]float64) bool {
	btc, ok := prices["BTC"]
	if !ok || btc <= 1000 {
		return false
	}
	return len(prices) >= 2
}

func (d *Data) fetchBinanceBatch(ctx context.Context) (map[string]float64, error) {
	symbols := make([]string, len(Tracked))
	for i, s := range Tracked {
		symbols[i] = `"` + s.GlobalSymbol + `"`
	}
	query := "symbols=[" + strings.Join(symbols, ",") + "]"

	var lastErr error
	for _, base := range binanceBaseURLs {
		url := base + "/api/v3/ticker/price?" + query
		res, err := d.client.Fetch(ctx, "GET", url, nil, nil, netx.Limits{Timeout: netx.DefaultTimeout, MaxBody: 256 * 1024})
		if err != nil {
			lastErr = err
			continue
		}
		prices, err := parseBinancePrices(res.Body)
		if err != nil {
			lastErr = err
			continue
		}
		return prices, nil
	}
	if lastErr == nil {
		lastErr = apperr.New(apperr.UpstreamUnavailable, "upstream-unavailable")
	}
	return nil, lastErr
}

func parseBinancePrices(body []byte) (map[string]float64, error) {
	var parsed []struct {
		Symbol string `json:"symbol"`
		Price  string `json:"price"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, apperr.Wrap(apperr.UpstreamUnavailable, "binance decode failed", err)
	}

	bySymbol := make(map[string]string, len(Tracked))
	for _, s := range Tracked {
		bySymbol[s.GlobalSymbol] = s.Coin
	}

	out := make(map[string]float64, len(parsed))
	for _, p := range parsed {
		coin, ok := bySymbol[p.Symbol]
		if !ok {
			continue
		}
		v, err := strconv.ParseFloat(p.Price, 64)
		if err != nil || v <= 0 {
			continue
		}
		out[coin] = v
	}
	return out, nil
}

// scheduleGapFill issues parallel per-symbol requests for any tracked coin
// the stored price map missed. The cache invokes it through its onStore
// hook, so the merge always lands on top of the stored value; the merged
// map is a superset.
func (d *Data) scheduleGapFill(got map[string]float64) {
	var missing []TrackedSymbol
	for _, s := range Tracked {
		if _, ok := got[s.Coin]; !ok {
			missing = append(missing, s)
		}
	}
	if len(missing) == 0 {
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), netx.DefaultTimeout)
		defer cancel()

		var mu sync.Mutex
		filled := make(map[string]float64)
		var wg sync.WaitGroup
		for _, sym := range missing {
			wg.Add(1)
			go func(sym TrackedSymbol) {
				defer wg.Done()
				price, err := d.fetchBinanceSingle(ctx, sym.GlobalSymbol)
				if err != nil {
					log.Debug().Err(err).Str("symbol", sym.GlobalSymbol).Msg("gap-fill fetch failed")
					return
				}
				mu.Lock()
				filled[sym.Coin] = price
				mu.Unlock()
			}(sym)
		}
		wg.Wait()

		if len(filled) == 0 {
			return
		}
		d.global.Update(func(cur map[string]float64, has bool) map[string]float64 {
			merged := make(map[string]float64, len(cur)+len(filled))
			for k, v := range cur {
				merged[k] = v
			}
			for k, v := range filled {
				if _, exists := merged[k]; !exists {
					merged[k] = v
				}
			}
			return merged
		})
		log.Debug().Int("filled", len(filled)).Msg("global price gap-fill merged")
	}()
}

func (d *Data) fetchBinanceSingle(ctx context.Context, globalSymbol string) (float64, error) {
	var lastErr error
	for _, base := range binanceBaseURLs {
		url := fmt.Sprintf("%s/api/v3/ticker/price?symbol=%s", base, globalSymbol)
		res, err := d.client.Fetch(ctx, "GET", url, nil, nil, netx.Limits{Timeout: netx.DefaultTimeout, MaxBody: 64 * 1024})
		if err != nil {
			lastErr = err
			continue
		}
		var parsed struct {
			Price string `json:"price"`
		}
		if err := json.Unmarshal(res.Body, &parsed); err != nil {
			lastErr = err
			continue
		}
		v, err := strconv.ParseFloat(parsed.Price, 64)
		if err != nil || v <= 0 {
			lastErr = apperr.Newf(apperr.UpstreamUnavailable, "bad price for %s", globalSymbol)
			continue
		}
		return v, nil
	}
	return 0, lastErr
}

func (d *Data) fetchCryptoCompare(ctx context.Context) (map[string]float64, error) {
	coins := Coins()
	url := "https://min-api.cryptocompare.com/data/pricemulti?fsyms=" + strings.Join(coins, ",") + "&tsyms=USD"
	res, err := d.client.Fetch(ctx, "GET", url, nil, nil, netx.Limits{Timeout: netx.DefaultTimeout, MaxBody: 256 * 1024})
	if err != nil {
		return nil, err
	}

	var parsed map[string]map[string]float64
	if err := json.Unmarshal(res.Body, &parsed); err != nil {
		return nil, apperr.Wrap(apperr.UpstreamUnavailable, "cryptocompare decode failed", err)
	}

	out := make(map[string]float64, len(parsed))
	for coin, quote := range parsed {
		if usd, ok := quote["USD"]; ok && usd > 0 {
			out[strings.ToUpper(coin)] = usd
		}
	}
	return out, nil
}

func (d *Data) fetchCoinGecko(ctx context.Context) (map[string]float64, error) {
	ids := make([]string, 0, len(coinGeckoIDs))
	for _, id := range coinGeckoIDs {
		ids = append(ids, id)
	}
	url := "https://api.coingecko.com/api/v3/simple/price?ids=" + strings.Join(ids, ",") + "&vs_currencies=usd"
	res, err := d.client.Fetch(ctx, "GET", url, nil, nil, netx.Limits{Timeout: netx.DefaultTimeout, MaxBody: 256 * 1024})
	if err != nil {
		return nil, err
	}

	var parsed map[string]map[string]float64
	if err := json.Unmarshal(res.Body, &parsed); err != nil {
		return nil, apperr.Wrap(apperr.UpstreamUnavailable, "coingecko decode failed", err)
	}

	byID := make(map[string]string, len(coinGeckoIDs))
	for coin, id := range coinGeckoIDs {
		byID[id] = coin
	}

	out := make(map[string]float64, len(parsed))
	for id, quote := range parsed {
		coin, ok := byID[id]
		if !ok {
			continue
		}
		if usd, ok := quote["usd"]; ok && usd > 0 {
			out[coin] = usd
		}
	}
	return out, nil
}

// fetchFromSnapshots recovers per-coin USD prices from rows persisted in
// the last 7 days. Partial recovery is fine; validation decides.
func (d *Data) fetchFromSnapshots(ctx context.Context) map[string]float64 {
	if d.snapshots == nil {
		return nil
	}
	out := make(map[string]float64)
	for _, s := range Tracked {
		price, err := d.snapshots.LatestBinanceUSD(ctx, s.Coin, 7*24*time.Hour)
		if err != nil || price <= 0 {
			continue
		}
		out[s.Coin] = price
	}
	return out
}
