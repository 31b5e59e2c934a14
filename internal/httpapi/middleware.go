package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/crossfin/crossfin/internal/apperr"
)

type ctxKey string

const requestIDKey ctxKey = "request_id"

const requestTimeout = 25 * time.Second

// requestIDMiddleware tags every request with a short id.
func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := uuid.New().String()[:8]
		ctx := context.WithValue(r.Context(), requestIDKey, requestID)
		w.Header().Set("X-Request-ID", requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// loggingMiddleware emits one structured line per request.
func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapper := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(wrapper, r)

		requestID, _ := r.Context().Value(requestIDKey).(string)
		log.Info().
			Str("request_id", requestID).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", wrapper.status).
			Dur("duration", time.Since(start)).
			Str("client", clientKey(r)).
			Msg("request")
	})
}

// timeoutMiddleware bounds the whole request, cancelling downstream
// fetches when the deadline fires.
func timeoutMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
		defer cancel()
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// corsMiddleware allows cross-origin reads; the API is read-mostly and
// carries no cookies.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-PAYMENT, X-Agent-ID, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// statusWriter captures the response code for logging.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// CallCounter reads service-call aggregates for the proxy limits.
type CallCounter interface {
	CountByAgentService(ctx context.Context, agentID, serviceID string, since time.Time) (int, error)
	CountByAgent(ctx context.Context, agentID string, since time.Time) (int, error)
}

const (
	proxyAgentServiceLimit = 60
	proxyAgentLimit        = 240
	proxyWindow            = 60 * time.Second
)

// checkProxyLimits enforces the per-agent call budget from the persisted
// call log. Counting errors fail open: a broken store must not take the
// proxy down.
func checkProxyLimits(ctx context.Context, calls CallCounter, agentID, serviceID string) error {
	if calls == nil || agentID == "" {
		return nil
	}
	since := time.Now().Add(-proxyWindow)

	if n, err := calls.CountByAgentService(ctx, agentID, serviceID, since); err == nil && n >= proxyAgentServiceLimit {
		return apperr.Newf(apperr.RateLimited, "agent %s exceeded the per-service call limit", agentID)
	}
	if n, err := calls.CountByAgent(ctx, agentID, since); err == nil && n >= proxyAgentLimit {
		return apperr.Newf(apperr.RateLimited, "agent %s exceeded the global call limit", agentID)
	}
	return nil
}

// CallRecorder persists one proxied call for auditing and future limit
// windows.
type CallRecorder interface {
	Record(ctx context.Context, serviceID, agentID, status string, responseTimeMs int) error
}

// agentMeterMiddleware applies the per-agent call budget to requests
// carrying an X-Agent-ID header and records each such call. Anonymous
// traffic passes through untouched; it is governed by the public
// fixed-window limiter instead.
func agentMeterMiddleware(calls CallCounter, recorder CallRecorder) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			agentID := strings.TrimSpace(r.Header.Get("X-Agent-ID"))
			if agentID == "" {
				next.ServeHTTP(w, r)
				return
			}

			serviceID := routeKey(r)
			if err := checkProxyLimits(r.Context(), calls, agentID, serviceID); err != nil {
				writeError(w, err)
				return
			}

			start := time.Now()
			wrapper := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(wrapper, r)

			if recorder != nil {
				status := "ok"
				if wrapper.status >= 400 {
					status = "error"
				}
				if err := recorder.Record(r.Context(), serviceID, agentID, status, int(time.Since(start).Milliseconds())); err != nil {
					log.Debug().Err(err).Str("agent", agentID).Msg("call record failed")
				}
			}
		})
	}
}

// paymentGate fronts paid endpoints with the x402 protocol boundary.
// When no facilitator is configured the gate is transparent. Settlement
// is the facilitator's concern; the gate only demands that a payment
// header accompany the request.
type paymentGate struct {
	network        string
	facilitatorURL string
	receiver       string
	asset          string
	priceUSDC      float64
}

func (g *paymentGate) enabled() bool {
	return g != nil && g.facilitatorURL != "" && g.receiver != ""
}

// wrap gates one handler at the given USDC price.
func (g *paymentGate) wrap(priceUSDC float64, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !g.enabled() {
			next(w, r)
			return
		}
		if r.Header.Get("X-PAYMENT") == "" {
			writeJSON(w, http.StatusPaymentRequired, map[string]interface{}{
				"x402Version": 1,
				"error":       "X-PAYMENT header is required",
				"accepts": []map[string]interface{}{{
					"scheme":            "exact",
					"network":           g.network,
					"maxAmountRequired": fmt.Sprintf("%.0f", priceUSDC*1e6),
					"resource":          r.URL.Path,
					"payTo":             g.receiver,
					"asset":             g.asset,
					"maxTimeoutSeconds": 60,
				}},
			})
			return
		}
		next(w, r)
	}
}

// adminAuth requires the configured bearer token.
func adminAuth(token string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if token == "" {
			writeError(w, apperr.New(apperr.Forbidden, "admin operations are disabled"))
			return
		}
		got := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		if got != token {
			writeError(w, apperr.New(apperr.Unauthorized, "invalid admin token"))
			return
		}
		next(w, r)
	}
}
