package netx

import (
	"container/list"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/crossfin/crossfin/internal/apperr"
)

const (
	dohEndpoint    = "https://cloudflare-dns.com/dns-query"
	dnsCacheTTL    = 5 * time.Minute
	dnsCacheMax    = 20000
	dnsQueryExpiry = 4 * time.Second
)

// Resolver performs DNS-over-HTTPS lookups and caches the SSRF verdict per
// hostname. The cache is LRU-bounded so a hostile caller cannot grow it
// without bound.
type Resolver struct {
	client *http.Client

	mu    sync.Mutex
	cache map[string]*list.Element
	order *list.List // front = most recently used
}

type dnsVerdict struct {
	host    string
	addrs   []net.IP
	safe    bool
	expires time.Time
}

// NewResolver creates a resolver with its own short-timeout HTTP client.
// DoH queries do not recurse through the outbound client: the DoH endpoint
// is a fixed public host.
func NewResolver() *Resolver {
	return &Resolver{
		client: &http.Client{
			Timeout: dnsQueryExpiry,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		cache: make(map[string]*list.Element),
		order: list.New(),
	}
}

type dohAnswer struct {
	Answer []struct {
		Type int    `json:"type"`
		Data string `json:"data"`
	} `json:"Answer"`
}

// Resolve returns all A and AAAA records for hostname.
func (r *Resolver) Resolve(ctx context.Context, hostname string) ([]net.IP, error) {
	var addrs []net.IP
	for _, qtype := range []string{"A", "AAAA"} {
		ips, err := r.query(ctx, hostname, qtype)
		if err != nil {
			// One failing record family is fine as long as the other yields
			// addresses; a host with only AAAA records must still resolve.
			log.Debug().Err(err).Str("host", hostname).Str("type", qtype).Msg("doh query failed")
			continue
		}
		addrs = append(addrs, ips...)
	}
	if len(addrs) == 0 {
		return nil, apperr.New(apperr.UpstreamUnavailable, "dns-failed")
	}
	return addrs, nil
}

// CheckResolved resolves hostname and verifies every returned address
// against the private-IP predicate. Verdicts are cached for five minutes.
func (r *Resolver) CheckResolved(ctx context.Context, hostname string) error {
	host := strings.ToLower(hostname)

	r.mu.Lock()
	if el, ok := r.cache[host]; ok {
		v := el.Value.(*dnsVerdict)
		if time.Now().Before(v.expires) {
			r.order.MoveToFront(el)
			safe := v.safe
			r.mu.Unlock()
			if !safe {
				return apperr.New(apperr.Forbidden, "private-host")
			}
			return nil
		}
		r.order.Remove(el)
		delete(r.cache, host)
	}
	r.mu.Unlock()

	addrs, err := r.Resolve(ctx, host)
	if err != nil {
		return err
	}

	safe := true
	for _, ip := range addrs {
		if IsPrivateIP(ip) {
			safe = false
			break
		}
	}
	r.store(host, addrs, safe)

	if !safe {
		return apperr.New(apperr.Forbidden, "private-host")
	}
	return nil
}

func (r *Resolver) store(host string, addrs []net.IP, safe bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if el, ok := r.cache[host]; ok {
		r.order.Remove(el)
		delete(r.cache, host)
	}
	el := r.order.PushFront(&dnsVerdict{
		host:    host,
		addrs:   addrs,
		safe:    safe,
		expires: time.Now().Add(dnsCacheTTL),
	})
	r.cache[host] = el

	for len(r.cache) > dnsCacheMax {
		oldest := r.order.Back()
		if oldest == nil {
			break
		}
		v := oldest.Value.(*dnsVerdict)
		r.order.Remove(oldest)
		delete(r.cache, v.host)
	}
}

func (r *Resolver) query(ctx context.Context, hostname, qtype string) ([]net.IP, error) {
	url := fmt.Sprintf("%s?name=%s&type=%s", dohEndpoint, hostname, qtype)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/dns-json")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("doh request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("doh status %d", resp.StatusCode)
	}

	var parsed dohAnswer
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("doh decode: %w", err)
	}

	var ips []net.IP
	for _, ans := range parsed.Answer {
		// 1 = A, 28 = AAAA. CNAME chains show up as other types; skip them.
		if ans.Type != 1 && ans.Type != 28 {
			continue
		}
		if ip := net.ParseIP(ans.Data); ip != nil {
			ips = append(ips, ip)
		}
	}
	return ips, nil
}
