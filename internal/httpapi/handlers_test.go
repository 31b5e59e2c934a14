package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crossfin/crossfin/internal/aggregate"
	"github.com/crossfin/crossfin/internal/config"
	"github.com/crossfin/crossfin/internal/market"
	"github.com/crossfin/crossfin/internal/netx"
	"github.com/crossfin/crossfin/internal/registry"
	"github.com/crossfin/crossfin/internal/routing"
)

var errDown = errors.New("upstream down")

// deadMarket satisfies both the aggregation and routing market views with
// every feed failing.
type deadMarket struct {
	transfers []market.USDCTransfer
}

func (d *deadMarket) FXRate(ctx context.Context) float64 { return 1450 }

func (d *deadMarket) BithumbAll(ctx context.Context) (map[string]market.BithumbTicker, error) {
	return nil, errDown
}

func (d *deadMarket) GlobalPrices(ctx context.Context) (map[string]float64, error) {
	return nil, errDown
}

func (d *deadMarket) BithumbOrderbook(ctx context.Context, coin string) (*market.Orderbook, error) {
	return nil, errDown
}

func (d *deadMarket) UpbitTickers(ctx context.Context, coins []string) (map[string]market.VenueTicker, error) {
	return nil, errDown
}

func (d *deadMarket) CoinoneTickers(ctx context.Context, coins []string) (map[string]market.VenueTicker, error) {
	return nil, errDown
}

func (d *deadMarket) KoreanIndices(ctx context.Context) ([]market.IndexQuote, error) {
	return nil, errDown
}

func (d *deadMarket) StockDetail(ctx context.Context, code string) (*market.StockQuote, error) {
	return nil, errDown
}

func (d *deadMarket) NewsHeadlines(ctx context.Context, limit int) ([]market.Headline, error) {
	return nil, errDown
}

func (d *deadMarket) USDCReceives(ctx context.Context) ([]market.USDCTransfer, error) {
	if d.transfers == nil {
		return nil, errDown
	}
	return d.transfers, nil
}

func (d *deadMarket) KoreanPrice(ctx context.Context, venue, coin string) (float64, error) {
	return 0, errDown
}

func (d *deadMarket) Asks(ctx context.Context, venue, coin string, depth int) ([]market.OrderbookLevel, error) {
	return nil, errDown
}

func newTestServer(t *testing.T, cfg config.Config, m *deadMarket) *Server {
	t.Helper()
	agg := aggregate.NewService(m, nil, nil)
	engine := routing.NewEngine(m, nil)
	reg := registry.New(nil, netx.NewClient())
	handlers := NewHandlers(agg, engine, nil, reg, nil, nil)
	return NewServer(cfg, handlers)
}

func TestDemoFallbackCascade(t *testing.T) {
	srv := newTestServer(t, config.Config{}, &deadMarket{})

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest("GET", "/api/arbitrage/demo", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		DataSource      string `json:"dataSource"`
		MarketCondition string `json:"marketCondition"`
		Preview         []struct {
			Coin       string  `json:"coin"`
			PremiumPct float64 `json:"premiumPct"`
			Decision   struct {
				Action     string  `json:"action"`
				Confidence float64 `json:"confidence"`
			} `json:"decision"`
		} `json:"preview"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))

	assert.Equal(t, "fallback", body.DataSource)
	assert.Equal(t, "unfavorable", body.MarketCondition)
	require.Len(t, body.Preview, 3)
	for i, coin := range []string{"BTC", "ETH", "XRP"} {
		assert.Equal(t, coin, body.Preview[i].Coin)
		assert.Equal(t, 0.0, body.Preview[i].PremiumPct)
		assert.Equal(t, "SKIP", body.Preview[i].Decision.Action)
		assert.GreaterOrEqual(t, body.Preview[i].Decision.Confidence, 0.10)
		assert.LessOrEqual(t, body.Preview[i].Decision.Confidence, 0.50)
	}
}

func TestRegistryRejectsPrivateEndpoint(t *testing.T) {
	srv := newTestServer(t, config.Config{}, &deadMarket{})

	payload := `{"name":"evil","endpoint":"https://10.0.0.5/evil"}`
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest("POST", "/api/registry", strings.NewReader(payload)))

	require.Equal(t, http.StatusBadRequest, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "endpoint must not be a private IP address", body["error"])
}

func TestRegistryValidation(t *testing.T) {
	srv := newTestServer(t, config.Config{}, &deadMarket{})

	cases := []string{
		`{"endpoint":"https://example.com"}`,       // missing name
		`{"name":"x"}`,                             // missing endpoint
		`{"name":"x","endpoint":"not a url"}`,      // relative
		`{"name":"x","endpoint":"https://e.com","priceUsdc":-1}`,
		`not json`,
	}
	for _, payload := range cases {
		rec := httptest.NewRecorder()
		srv.Router().ServeHTTP(rec, httptest.NewRequest("POST", "/api/registry", strings.NewReader(payload)))
		assert.Equal(t, http.StatusBadRequest, rec.Code, payload)
	}
}

func TestUSDCTransfersLimitClamp(t *testing.T) {
	transfers := make([]market.USDCTransfer, 25)
	for i := range transfers {
		transfers[i] = market.USDCTransfer{TxHash: fmt.Sprintf("0x%02x", i), AmountUSDC: 1}
	}
	srv := newTestServer(t, config.Config{}, &deadMarket{transfers: transfers})

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest("GET", "/api/onchain/usdc-transfers?limit=50", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Count int `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 20, body.Count, "limit clamps to 20")

	rec = httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest("GET", "/api/onchain/usdc-transfers?limit=abc", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRouteMetadataEndpoints(t *testing.T) {
	srv := newTestServer(t, config.Config{}, &deadMarket{})

	for _, path := range []string{
		"/api/route/exchanges",
		"/api/route/fees",
		"/api/route/pairs",
		"/api/route/status",
	} {
		rec := httptest.NewRecorder()
		srv.Router().ServeHTTP(rec, httptest.NewRequest("GET", path, nil))
		assert.Equal(t, http.StatusOK, rec.Code, path)
		assert.Equal(t, "application/json", rec.Header().Get("Content-Type"), path)
	}
}

func TestPaymentGateRequiresHeader(t *testing.T) {
	cfg := config.Config{
		X402Network:     "eip155:8453",
		FacilitatorURL:  "https://facilitator.example",
		PaymentReceiver: "0x1111111111111111111111111111111111111111",
	}
	srv := newTestServer(t, cfg, &deadMarket{})

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest("GET", "/api/premium/arbitrage/kimchi", nil))
	require.Equal(t, http.StatusPaymentRequired, rec.Code)

	var body struct {
		Accepts []struct {
			Network string `json:"network"`
			PayTo   string `json:"payTo"`
		} `json:"accepts"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Accepts, 1)
	assert.Equal(t, "eip155:8453", body.Accepts[0].Network)
	assert.Equal(t, cfg.PaymentReceiver, body.Accepts[0].PayTo)

	// With the header the gate passes through to the handler.
	rec = httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/api/premium/arbitrage/kimchi", nil)
	req.Header.Set("X-PAYMENT", "opaque-payment-blob")
	srv.Router().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestPaymentGateTransparentWhenUnconfigured(t *testing.T) {
	srv := newTestServer(t, config.Config{}, &deadMarket{})

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest("GET", "/api/premium/arbitrage/kimchi", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAdminAuth(t *testing.T) {
	srv := newTestServer(t, config.Config{AdminToken: "sekrit"}, &deadMarket{})

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest("POST", "/api/admin/snapshot", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/api/admin/snapshot", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	srv.Router().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// No token configured disables admin entirely.
	disabled := newTestServer(t, config.Config{}, &deadMarket{})
	rec = httptest.NewRecorder()
	req = httptest.NewRequest("POST", "/api/admin/snapshot", nil)
	req.Header.Set("Authorization", "Bearer anything")
	disabled.Router().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRateLimitEnforcedThroughRouter(t *testing.T) {
	srv := newTestServer(t, config.Config{}, &deadMarket{})

	var lastCode int
	for i := 0; i < rateLimitMax+1; i++ {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest("GET", "/api/route/status", nil)
		req.Header.Set("CF-Connecting-IP", "203.0.113.7")
		srv.Router().ServeHTTP(rec, req)
		lastCode = rec.Code
	}
	assert.Equal(t, http.StatusTooManyRequests, lastCode)
}

func TestHealthAndNotFound(t *testing.T) {
	srv := newTestServer(t, config.Config{}, &deadMarket{})

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest("GET", "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest("GET", "/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestKimchiHistoryValidation(t *testing.T) {
	srv := newTestServer(t, config.Config{}, &deadMarket{})

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest("GET", "/api/premium/arbitrage/kimchi/history", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest("GET", "/api/premium/arbitrage/kimchi/history?coin=NOPE", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRouteFindValidationThroughRouter(t *testing.T) {
	srv := newTestServer(t, config.Config{}, &deadMarket{})

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest("GET", "/api/premium/route/find?from=bithumb:KRW&to=binance:USDC&amount=oops", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest("GET", "/api/premium/route/find?to=binance:USDC&amount=100", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
