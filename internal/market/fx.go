package market

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/crossfin/crossfin/internal/apperr"
	"github.com/crossfin/crossfin/internal/netx"
)

// Sanity band for USD/KRW. Rates outside it are treated as upstream
// garbage and force the fallback path.
const (
	fxRateMin = 500.0
	fxRateMax = 5000.0
)

var fxEndpoints = []string{
	"https://open.er-api.com/v6/latest/USD",
	"https://api.frankfurter.app/latest?from=USD&to=KRW",
}

func (d *Data) fetchFXRate(ctx context.Context) (float64, error) {
	var lastErr error
	for _, url := range fxEndpoints {
		rate, err := d.fxFetch(ctx, url)
		if err != nil {
			lastErr = err
			continue
		}
		if rate < fxRateMin || rate > fxRateMax {
			lastErr = apperr.Newf(apperr.UpstreamUnavailable, "fx rate %.2f out of band", rate)
			log.Warn().Float64("rate", rate).Str("url", url).Msg("fx rate outside sanity band")
			continue
		}
		d.persistFloat("fx", rate, 24*time.Hour)
		return rate, nil
	}

	if rate, ok := d.persistedFloat("fx"); ok && rate >= fxRateMin && rate <= fxRateMax {
		log.Warn().Err(lastErr).Float64("rate", rate).Msg("fx upstreams down, using persisted rate")
		return rate, nil
	}
	if lastErr == nil {
		lastErr = apperr.New(apperr.UpstreamUnavailable, "upstream-unavailable")
	}
	return 0, fmt.Errorf("fx rate: %w", lastErr)
}

func (d *Data) fetchFXFrom(ctx context.Context, url string) (float64, error) {
	res, err := d.client.Fetch(ctx, "GET", url, nil, nil, netx.Limits{Timeout: netx.DefaultTimeout, MaxBody: 256 * 1024})
	if err != nil {
		return 0, err
	}
	// Both providers expose a rates object keyed by currency code.
	var parsed struct {
		Rates map[string]float64 `json:"rates"`
	}
	if err := json.Unmarshal(res.Body, &parsed); err != nil {
		return 0, apperr.Wrap(apperr.UpstreamUnavailable, "fx decode failed", err)
	}
	krw, ok := parsed.Rates["KRW"]
	if !ok || krw <= 0 {
		return 0, apperr.New(apperr.UpstreamUnavailable, "fx response missing KRW")
	}
	return krw, nil
}

func (d *Data) persistFloat(key string, v float64, ttl time.Duration) {
	d.persisted.Set(key, []byte(strconv.FormatFloat(v, 'f', -1, 64)), ttl)
}

func (d *Data) persistedFloat(key string) (float64, bool) {
	b, ok := d.persisted.Get(key)
	if !ok {
		return 0, false
	}
	v, err := strconv.ParseFloat(string(b), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
