package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/crossfin/crossfin/internal/aggregate"
	"github.com/crossfin/crossfin/internal/apperr"
	"github.com/crossfin/crossfin/internal/market"
	"github.com/crossfin/crossfin/internal/registry"
	"github.com/crossfin/crossfin/internal/routing"
	"github.com/crossfin/crossfin/internal/store"
)

const (
	historyMinHours = 1
	historyMaxHours = 168

	transfersMinLimit = 1
	transfersMaxLimit = 20
)

// Handlers carries every endpoint's dependencies.
type Handlers struct {
	agg       *aggregate.Service
	engine    *routing.Engine
	snapshots *store.SnapshotRepo
	registry  *registry.Registry
	calls     CallCounter

	// snapshotNow triggers one snapshot write from the admin surface.
	snapshotNow func(ctx context.Context) error
}

// NewHandlers builds the handler set.
func NewHandlers(agg *aggregate.Service, engine *routing.Engine, snapshots *store.SnapshotRepo, reg *registry.Registry, calls CallCounter, snapshotNow func(ctx context.Context) error) *Handlers {
	return &Handlers{
		agg:         agg,
		engine:      engine,
		snapshots:   snapshots,
		registry:    reg,
		calls:       calls,
		snapshotNow: snapshotNow,
	}
}

// Health reports liveness.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "ok",
		"at":     time.Now().UTC(),
	})
}

// Kimchi serves the current premium table.
func (h *Handlers) Kimchi(w http.ResponseWriter, r *http.Request) {
	stats := h.agg.KimchiStats(r.Context())
	rows, _ := h.agg.Rows(r.Context())
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"paid":          true,
		"service":       "kimchi-premium",
		"krwUsdRate":    stats.KrwUsdRate,
		"pairsTracked":  stats.PairsTracked,
		"avgPremiumPct": stats.AvgPremiumPct,
		"topPremium":    stats.TopPremium,
		"premiums":      rows,
		"at":            stats.At,
	})
}

// KimchiHistory serves persisted hourly snapshots for one coin.
func (h *Handlers) KimchiHistory(w http.ResponseWriter, r *http.Request) {
	coin := strings.ToUpper(strings.TrimSpace(r.URL.Query().Get("coin")))
	if coin == "" {
		writeError(w, apperr.New(apperr.BadInput, "coin parameter is required"))
		return
	}
	if _, ok := market.LookupCoin(coin); !ok {
		writeError(w, apperr.Newf(apperr.NotFound, "coin %q is not tracked", coin))
		return
	}

	hours := 24
	if raw := r.URL.Query().Get("hours"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, apperr.New(apperr.BadInput, "hours must be an integer"))
			return
		}
		hours = n
	}
	if hours < historyMinHours {
		hours = historyMinHours
	}
	if hours > historyMaxHours {
		hours = historyMaxHours
	}

	rows, err := h.snapshots.History(r.Context(), coin, hours)
	if err != nil {
		writeError(w, apperr.Wrap(apperr.Internal, "snapshot history", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"coin":    coin,
		"hours":   hours,
		"count":   len(rows),
		"history": rows,
	})
}

// Opportunities serves decision-scored premium rows.
func (h *Handlers) Opportunities(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.agg.Opportunities(r.Context()))
}

// Orderbook serves the Bithumb top-30 depth for one pair.
func (h *Handlers) Orderbook(w http.ResponseWriter, r *http.Request) {
	pair := strings.ToUpper(strings.TrimSpace(r.URL.Query().Get("pair")))
	if pair == "" {
		writeError(w, apperr.New(apperr.BadInput, "pair parameter is required"))
		return
	}
	coin := strings.TrimSuffix(pair, "_KRW")

	book, err := h.agg.Data().BithumbOrderbook(r.Context(), coin)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, book)
}

// VolumeAnalysis serves the Bithumb turnover ranking.
func (h *Handlers) VolumeAnalysis(w http.ResponseWriter, r *http.Request) {
	snap := h.agg.CryptoSnapshot(r.Context())
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"at":         snap.At,
		"krwUsdRate": snap.KrwUsdRate,
		"volume":     snap.Volume,
	})
}

// CrossExchange serves the per-coin venue comparison.
func (h *Handlers) CrossExchange(w http.ResponseWriter, r *http.Request) {
	coins := market.Coins()
	if raw := strings.TrimSpace(r.URL.Query().Get("coins")); raw != "" {
		coins = coins[:0]
		for _, c := range strings.Split(raw, ",") {
			c = strings.ToUpper(strings.TrimSpace(c))
			if c == "" {
				continue
			}
			if _, ok := market.LookupCoin(c); !ok {
				writeError(w, apperr.Newf(apperr.BadInput, "coin %q is not tracked", c))
				return
			}
			coins = append(coins, c)
		}
	}
	if len(coins) == 0 {
		writeError(w, apperr.New(apperr.BadInput, "coins parameter is empty"))
		return
	}

	comparisons, summary := h.agg.CrossExchange(r.Context(), coins)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"at":          time.Now().UTC(),
		"comparisons": comparisons,
		"summary":     summary,
	})
}

// RouteFind runs the routing engine from query parameters. Venue and
// currency may be combined as "bithumb:KRW".
func (h *Handlers) RouteFind(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	from, fromCurrency := splitVenue(q.Get("from"), q.Get("fromCurrency"))
	to, toCurrency := splitVenue(q.Get("to"), q.Get("toCurrency"))
	if from == "" || to == "" {
		writeError(w, apperr.New(apperr.BadInput, "from and to parameters are required"))
		return
	}

	amount, err := strconv.ParseFloat(q.Get("amount"), 64)
	if err != nil {
		writeError(w, apperr.New(apperr.BadInput, "amount must be a number"))
		return
	}

	plan, err := h.engine.FindOptimalRoute(r.Context(), routing.Request{
		From:         from,
		FromCurrency: fromCurrency,
		To:           to,
		ToCurrency:   toCurrency,
		Amount:       amount,
		Strategy:     q.Get("strategy"),
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, plan)
}

func splitVenue(venue, currency string) (string, string) {
	venue = strings.TrimSpace(venue)
	if i := strings.IndexByte(venue, ':'); i >= 0 {
		return venue[:i], strings.ToUpper(venue[i+1:])
	}
	return venue, strings.ToUpper(strings.TrimSpace(currency))
}

// RouteExchanges lists the routing topology.
func (h *Handlers) RouteExchanges(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"exchanges": routing.Exchanges})
}

// RouteFees lists per-venue fees.
func (h *Handlers) RouteFees(w http.ResponseWriter, r *http.Request) {
	fees := make(map[string]interface{}, len(routing.Exchanges))
	for id, ex := range routing.Exchanges {
		fees[id] = map[string]interface{}{
			"tradingFeePct":  ex.TradingFeePct,
			"withdrawalFees": ex.WithdrawalFees,
		}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"fees": fees})
}

// RoutePairs lists the bridge coins with transfer times.
func (h *Handlers) RoutePairs(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"bridgeCoins": market.Tracked})
}

// RouteStatus reports the engine's static capabilities.
func (h *Handlers) RouteStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":      "ok",
		"exchanges":   len(routing.Exchanges),
		"bridgeCoins": len(market.Tracked),
		"strategies":  []string{routing.StrategyCheapest, routing.StrategyFastest, routing.StrategyBalanced},
	})
}

// Demo serves the free preview with its fallback cascade. Always 200.
func (h *Handlers) Demo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.agg.Demo(r.Context()))
}

// USDCTransfers serves recent on-chain receives.
func (h *Handlers) USDCTransfers(w http.ResponseWriter, r *http.Request) {
	limit := transfersMaxLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, apperr.New(apperr.BadInput, "limit must be an integer"))
			return
		}
		limit = n
	}
	if limit < transfersMinLimit {
		limit = transfersMinLimit
	}
	if limit > transfersMaxLimit {
		limit = transfersMaxLimit
	}

	transfers, err := h.agg.Data().USDCReceives(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if len(transfers) > limit {
		transfers = transfers[:limit]
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"count":     len(transfers),
		"transfers": transfers,
	})
}

// MorningBrief serves the composite opening view.
func (h *Handlers) MorningBrief(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.agg.MorningBrief(r.Context()))
}

// CryptoSnapshot serves the fast crypto bundle.
func (h *Handlers) CryptoSnapshot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.agg.CryptoSnapshot(r.Context()))
}

// KimchiStats serves the premium statistics bundle.
func (h *Handlers) KimchiStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.agg.KimchiStats(r.Context()))
}

// StockBrief serves one KRX equity with market context.
func (h *Handlers) StockBrief(w http.ResponseWriter, r *http.Request) {
	code := strings.TrimSpace(r.URL.Query().Get("code"))
	if code == "" {
		writeError(w, apperr.New(apperr.BadInput, "code parameter is required"))
		return
	}
	writeJSON(w, http.StatusOK, h.agg.StockBrief(r.Context(), code))
}

// RegisterService validates and stores a new registry entry.
func (h *Handlers) RegisterService(w http.ResponseWriter, r *http.Request) {
	var in registry.RegisterInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, apperr.New(apperr.BadInput, "invalid JSON body"))
		return
	}
	svc, err := h.registry.Register(r.Context(), in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, svc)
}

// SearchServices queries the catalog.
func (h *Handlers) SearchServices(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, _ = strconv.Atoi(raw)
	}

	services, err := h.registry.Search(r.Context(), q, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"count":    len(services),
		"services": services,
	})
}

// GetService returns one catalog entry.
func (h *Handlers) GetService(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.URL.Query().Get("id"))
	if id == "" {
		writeError(w, apperr.New(apperr.BadInput, "id parameter is required"))
		return
	}
	svc, err := h.registry.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, svc)
}

// AdminReseed reloads the built-in catalog.
func (h *Handlers) AdminReseed(w http.ResponseWriter, r *http.Request) {
	if err := h.registry.Seed(r.Context()); err != nil {
		writeError(w, apperr.Wrap(apperr.Internal, "reseed", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "reseeded"})
}

// AdminSnapshot triggers one snapshot write outside the hourly schedule.
func (h *Handlers) AdminSnapshot(w http.ResponseWriter, r *http.Request) {
	if h.snapshotNow == nil {
		writeError(w, apperr.New(apperr.Internal, "snapshot writer not configured"))
		return
	}
	if err := h.snapshotNow(r.Context()); err != nil {
		writeError(w, apperr.Wrap(apperr.Internal, "snapshot", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "written"})
}

// NotFound is the JSON 404.
func (h *Handlers) NotFound(w http.ResponseWriter, r *http.Request) {
	writeError(w, apperr.Newf(apperr.NotFound, "no route for %s %s", r.Method, r.URL.Path))
}
