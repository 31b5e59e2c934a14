package market

import (
	"context"
	"time"

	"github.com/crossfin/crossfin/internal/bytecache"
	"github.com/crossfin/crossfin/internal/netx"
)

// Cache TTLs per upstream. Failure TTLs are strictly shorter so a broken
// origin is retried quickly without being hammered.
const (
	fxSuccessTTL      = 5 * time.Minute
	fxFailureTTL      = 1 * time.Minute
	bithumbSuccessTTL = 10 * time.Second
	bithumbFailureTTL = 2 * time.Second
	globalSuccessTTL  = 30 * time.Second
	globalFailureTTL  = 5 * time.Second
	onchainTTL        = 20 * time.Second
)

// FallbackFXRate is the compiled-in USD/KRW baseline used when no live or
// persisted rate has ever been seen.
const FallbackFXRate = 1450.0

// SnapshotSource is the persisted kimchi-snapshot store viewed from the
// price caches; it closes the fallback chain for global prices.
type SnapshotSource interface {
	// LatestBinanceUSD returns the most recent stored global USD price for
	// coin within the retention window.
	LatestBinanceUSD(ctx context.Context, coin string, within time.Duration) (float64, error)
}

// Data owns the process-wide upstream caches. All methods are safe for
// concurrent use; each cache coalesces concurrent refreshes onto a single
// upstream fetch.
type Data struct {
	client    *netx.Client
	snapshots SnapshotSource
	persisted bytecache.Cache

	// fxFetch fetches one FX endpoint; tests stub it.
	fxFetch func(ctx context.Context, url string) (float64, error)

	fx       *cell[float64]
	bithumb  *cell[map[string]BithumbTicker]
	global   *cell[map[string]float64]
	receives *cell[[]USDCTransfer]

	// On-chain configuration.
	rpcEndpoints []string
	usdcContract string
	receiver     string
}

// Options configures the market data layer.
type Options struct {
	Client       *netx.Client
	Snapshots    SnapshotSource // may be nil
	Persisted    bytecache.Cache
	RPCEndpoints []string
	USDCContract string
	Receiver     string
}

// NewData wires the five caches to their fetchers.
func NewData(opts Options) *Data {
	d := &Data{
		client:       opts.Client,
		snapshots:    opts.Snapshots,
		persisted:    opts.Persisted,
		rpcEndpoints: opts.RPCEndpoints,
		usdcContract: opts.USDCContract,
		receiver:     opts.Receiver,
	}
	if d.persisted == nil {
		d.persisted = bytecache.NewMemory()
	}
	d.fxFetch = d.fetchFXFrom
	d.fx = newCell("fx", fxSuccessTTL, fxFailureTTL, d.fetchFXRate)
	d.bithumb = newCell("bithumb_all", bithumbSuccessTTL, bithumbFailureTTL, d.fetchBithumbAll)
	d.global = newCell("global_prices", globalSuccessTTL, globalFailureTTL, d.fetchGlobalPrices)
	d.global.onStore = d.scheduleGapFill
	d.receives = newCell("usdc_receives", onchainTTL, onchainTTL, d.fetchUSDCReceives)
	return d
}

// FXRate returns the cached USD/KRW rate. It never fails: with no live
// rate, no persisted rate, and no prior value it returns the compiled-in
// baseline.
func (d *Data) FXRate(ctx context.Context) float64 {
	v, err := d.fx.Get(ctx)
	if err != nil || v <= 0 {
		return FallbackFXRate
	}
	return v
}

// BithumbAll returns the cached all-tickers snapshot.
func (d *Data) BithumbAll(ctx context.Context) (map[string]BithumbTicker, error) {
	return d.bithumb.Get(ctx)
}

// GlobalPrices returns cached USD prices for the tracked symbols.
func (d *Data) GlobalPrices(ctx context.Context) (map[string]float64, error) {
	return d.global.Get(ctx)
}

// USDCReceives returns recent USDC transfers into the configured wallet.
func (d *Data) USDCReceives(ctx context.Context) ([]USDCTransfer, error) {
	return d.receives.Get(ctx)
}

// Client exposes the guarded outbound client for collaborators that issue
// one-off fetches (orderbooks, stock quotes, news).
func (d *Data) Client() *netx.Client { return d.client }
