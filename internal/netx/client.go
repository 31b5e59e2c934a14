package netx

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/crossfin/crossfin/internal/apperr"
	"github.com/crossfin/crossfin/internal/telemetry"
)

const (
	// DefaultTimeout applies to proxy-style fetches; DNS and chain RPC
	// callers pass a tighter limit.
	DefaultTimeout = 10 * time.Second
	RPCTimeout     = 4 * time.Second

	maxRequestBody = 512 * 1024

	// Per-host egress throttle. Upstream venue limits are far above this;
	// the point is to never be the reason an origin blocks us.
	hostRPS   = 8
	hostBurst = 16
)

// Limits bounds a single fetch.
type Limits struct {
	Timeout time.Duration
	// MaxBody caps the response body in bytes; zero means no cap.
	MaxBody int64
}

// Result is the uniform successful outcome of a fetch.
type Result struct {
	Status int
	Header http.Header
	Body   []byte
}

// Client is the single egress point. Every outbound request passes the
// SSRF guard, a per-host token bucket, and a per-host circuit breaker.
type Client struct {
	httpClient *http.Client
	resolver   *Resolver

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	breakers map[string]*gobreaker.CircuitBreaker

	// Test hook: httptest servers are plain HTTP on loopback.
	allowPlainHTTP bool
	skipDNSCheck   bool
}

// NewClient creates the shared outbound client.
func NewClient() *Client {
	return &Client{
		httpClient: &http.Client{
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		resolver: NewResolver(),
		limiters: make(map[string]*rate.Limiter),
		breakers: make(map[string]*gobreaker.CircuitBreaker),
	}
}

// Resolver exposes the DoH resolver for callers that need host verdicts
// without issuing a fetch (registry endpoint validation).
func (c *Client) Resolver() *Resolver { return c.resolver }

// CheckEndpoint runs the full SSRF policy against a URL without fetching
// it: scheme, credentials, host rules, and resolved addresses.
func (c *Client) CheckEndpoint(ctx context.Context, rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return apperr.New(apperr.BadInput, "invalid URL")
	}
	return c.vet(ctx, u)
}

func (c *Client) vet(ctx context.Context, u *url.URL) error {
	if u.Scheme != "https" {
		if !(c.allowPlainHTTP && u.Scheme == "http") {
			return apperr.New(apperr.BadInput, "tls-required")
		}
	}
	if u.User != nil {
		return apperr.New(apperr.BadInput, "credentials-forbidden")
	}
	host := u.Hostname()
	ip := parseLiteralIP(host)
	if c.allowPlainHTTP && ip != nil && ip.IsLoopback() {
		// httptest listener
		return nil
	}
	if err := CheckHost(host); err != nil {
		return err
	}
	// Literal IPs already passed the predicate above; names need DNS.
	if ip == nil && !c.skipDNSCheck {
		if err := c.resolver.CheckResolved(ctx, host); err != nil {
			return err
		}
	}
	return nil
}

// Fetch performs one guarded outbound request and returns the uniform
// (status, headers, bytes) result or a typed error.
func (c *Client) Fetch(ctx context.Context, method, rawURL string, header http.Header, body []byte, limits Limits) (*Result, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, apperr.New(apperr.BadInput, "invalid URL")
	}
	if len(body) > maxRequestBody {
		return nil, apperr.New(apperr.PayloadTooLarge, "body-too-large")
	}
	if err := c.vet(ctx, u); err != nil {
		return nil, err
	}

	timeout := limits.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	host := u.Hostname()
	if err := c.limiter(host).Wait(ctx); err != nil {
		return nil, apperr.Wrap(apperr.Timeout, "timeout", err)
	}

	start := time.Now()
	out, err := c.breaker(host).Execute(func() (any, error) {
		return c.do(ctx, method, rawURL, header, body, limits.MaxBody)
	})
	telemetry.UpstreamLatency.WithLabelValues(host).Observe(time.Since(start).Seconds())

	if err != nil {
		telemetry.UpstreamRequests.WithLabelValues(host, "error").Inc()
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, apperr.Wrap(apperr.UpstreamUnavailable, "upstream-unavailable", err)
		}
		return nil, err
	}
	telemetry.UpstreamRequests.WithLabelValues(host, "ok").Inc()
	return out.(*Result), nil
}

func (c *Client) do(ctx context.Context, method, rawURL string, header http.Header, body []byte, maxBody int64) (*Result, error) {
	var reader io.Reader
	if len(body) > 0 {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, rawURL, reader)
	if err != nil {
		return nil, apperr.Wrap(apperr.BadInput, "invalid request", err)
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", "CrossFin/1.0")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, apperr.Wrap(apperr.Timeout, "timeout", err)
		}
		return nil, apperr.Wrap(apperr.UpstreamUnavailable, "transport-error", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 && resp.StatusCode < 400 {
		return nil, apperr.New(apperr.RedirectNotAllowed, "redirect-not-allowed")
	}

	var bodyReader io.Reader = resp.Body
	if maxBody > 0 {
		bodyReader = io.LimitReader(resp.Body, maxBody+1)
	}
	data, err := io.ReadAll(bodyReader)
	if err != nil {
		if ctx.Err() != nil {
			return nil, apperr.Wrap(apperr.Timeout, "timeout", err)
		}
		return nil, apperr.Wrap(apperr.UpstreamUnavailable, "transport-error", err)
	}
	if maxBody > 0 && int64(len(data)) > maxBody {
		return nil, apperr.New(apperr.PayloadTooLarge, "body-too-large")
	}

	if resp.StatusCode >= 400 {
		log.Debug().Int("status", resp.StatusCode).Str("url", rawURL).Msg("upstream error status")
		return nil, apperr.Newf(apperr.UpstreamUnavailable, "upstream-status %d", resp.StatusCode)
	}

	return &Result{Status: resp.StatusCode, Header: resp.Header, Body: data}, nil
}

func (c *Client) limiter(host string) *rate.Limiter {
	c.mu.Lock()
	defer c.mu.Unlock()
	l, ok := c.limiters[host]
	if !ok {
		l = rate.NewLimiter(rate.Limit(hostRPS), hostBurst)
		c.limiters[host] = l
	}
	return l
}

func (c *Client) breaker(host string) *gobreaker.CircuitBreaker {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.breakers[host]
	if !ok {
		st := gobreaker.Settings{Name: host}
		st.Interval = 60 * time.Second
		st.Timeout = 30 * time.Second
		st.ReadyToTrip = func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		}
		b = gobreaker.NewCircuitBreaker(st)
		c.breakers[host] = b
	}
	return b
}

func parseLiteralIP(host string) net.IP {
	return net.ParseIP(strings.Trim(host, "[]"))
}
