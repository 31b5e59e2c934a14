package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/crossfin/crossfin/internal/config"
)

// Server is the public HTTP surface.
type Server struct {
	router   *mux.Router
	server   *http.Server
	handlers *Handlers
	limiter  *rateLimiter
	gate     *paymentGate
	cfg      config.Config
}

// NewServer assembles the router, middleware chain, and endpoint set.
func NewServer(cfg config.Config, handlers *Handlers) *Server {
	s := &Server{
		router:   mux.NewRouter(),
		handlers: handlers,
		limiter:  newRateLimiter(),
		gate: &paymentGate{
			network:        cfg.X402Network,
			facilitatorURL: cfg.FacilitatorURL,
			receiver:       cfg.PaymentReceiver,
			asset:          cfg.USDCContract,
		},
		cfg: cfg,
	}
	s.setupRoutes()

	addr := fmt.Sprintf("%s:%d", cfg.HTTPHost, cfg.HTTPPort)
	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(requestIDMiddleware)
	s.router.Use(loggingMiddleware)
	s.router.Use(timeoutMiddleware)
	s.router.Use(corsMiddleware)

	s.router.HandleFunc("/healthz", s.handlers.Health).Methods("GET")
	s.router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	api := s.router.PathPrefix("/api").Subrouter()
	api.Use(s.limiter.middleware)
	recorder, _ := s.handlers.calls.(CallRecorder)
	api.Use(agentMeterMiddleware(s.handlers.calls, recorder))

	h := s.handlers
	g := s.gate

	// Paid premium surface.
	api.HandleFunc("/premium/arbitrage/kimchi", g.wrap(0.005, h.Kimchi)).Methods("GET")
	api.HandleFunc("/premium/arbitrage/kimchi/history", g.wrap(0.005, h.KimchiHistory)).Methods("GET")
	api.HandleFunc("/premium/arbitrage/opportunities", g.wrap(0.01, h.Opportunities)).Methods("GET")
	api.HandleFunc("/premium/bithumb/orderbook", g.wrap(0.005, h.Orderbook)).Methods("GET")
	api.HandleFunc("/premium/bithumb/volume-analysis", g.wrap(0.005, h.VolumeAnalysis)).Methods("GET")
	api.HandleFunc("/premium/market/cross-exchange", g.wrap(0.01, h.CrossExchange)).Methods("GET")
	api.HandleFunc("/premium/route/find", g.wrap(0.02, h.RouteFind)).Methods("GET")

	// Paid brief bundles.
	api.HandleFunc("/brief/morning", g.wrap(0.01, h.MorningBrief)).Methods("GET")
	api.HandleFunc("/brief/crypto", g.wrap(0.005, h.CryptoSnapshot)).Methods("GET")
	api.HandleFunc("/brief/stock", g.wrap(0.005, h.StockBrief)).Methods("GET")
	api.HandleFunc("/stats/kimchi", g.wrap(0.005, h.KimchiStats)).Methods("GET")

	// Free surface.
	api.HandleFunc("/route/exchanges", h.RouteExchanges).Methods("GET")
	api.HandleFunc("/route/fees", h.RouteFees).Methods("GET")
	api.HandleFunc("/route/pairs", h.RoutePairs).Methods("GET")
	api.HandleFunc("/route/status", h.RouteStatus).Methods("GET")
	api.HandleFunc("/arbitrage/demo", h.Demo).Methods("GET")
	api.HandleFunc("/onchain/usdc-transfers", h.USDCTransfers).Methods("GET")

	// Registry.
	api.HandleFunc("/registry", h.RegisterService).Methods("POST")
	api.HandleFunc("/registry/search", h.SearchServices).Methods("GET")
	api.HandleFunc("/registry/service", h.GetService).Methods("GET")

	// Admin.
	api.HandleFunc("/admin/reseed", adminAuth(s.cfg.AdminToken, h.AdminReseed)).Methods("POST")
	api.HandleFunc("/admin/snapshot", adminAuth(s.cfg.AdminToken, h.AdminSnapshot)).Methods("POST")

	s.router.NotFoundHandler = http.HandlerFunc(h.NotFound)
}

// Router exposes the handler tree for tests.
func (s *Server) Router() http.Handler { return s.router }

// Start serves until the listener closes.
func (s *Server) Start() error {
	log.Info().Str("addr", s.server.Addr).Msg("http server starting")
	return s.server.ListenAndServe()
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	log.Info().Msg("http server shutting down")
	return s.server.Shutdown(ctx)
}
