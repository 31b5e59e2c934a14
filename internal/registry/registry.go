package registry

import (
	"context"
	"net/url"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/crossfin/crossfin/internal/apperr"
	"github.com/crossfin/crossfin/internal/netx"
	"github.com/crossfin/crossfin/internal/store"
)

// EndpointChecker validates that a registered endpoint is safe to call.
// The outbound HTTP client satisfies it.
type EndpointChecker interface {
	CheckEndpoint(ctx context.Context, rawURL string) error
}

// Registry manages the discoverable service catalog.
type Registry struct {
	repo    *store.ServiceRepo
	checker EndpointChecker
}

// New creates the registry over its repository.
func New(repo *store.ServiceRepo, checker EndpointChecker) *Registry {
	return &Registry{repo: repo, checker: checker}
}

// RegisterInput is the payload for a new registry entry.
type RegisterInput struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Endpoint    string  `json:"endpoint"`
	Category    string  `json:"category"`
	PriceUSDC   float64 `json:"priceUsdc"`
	Paid        bool    `json:"paid"`
}

// Register validates the input and upserts a new service entry. The
// endpoint must be a public https URL; private addresses are rejected
// the same way the outbound client rejects them.
func (r *Registry) Register(ctx context.Context, in RegisterInput) (*store.Service, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Endpoint = strings.TrimSpace(in.Endpoint)
	in.Category = strings.TrimSpace(in.Category)

	if in.Name == "" {
		return nil, apperr.New(apperr.BadInput, "name is required")
	}
	if in.Endpoint == "" {
		return nil, apperr.New(apperr.BadInput, "endpoint is required")
	}
	if in.PriceUSDC < 0 {
		return nil, apperr.New(apperr.BadInput, "priceUsdc must not be negative")
	}

	u, err := url.Parse(in.Endpoint)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, apperr.New(apperr.BadInput, "endpoint must be an absolute URL")
	}

	if r.checker != nil {
		if err := r.checker.CheckEndpoint(ctx, in.Endpoint); err != nil {
			if apperr.KindOf(err) == apperr.Forbidden {
				return nil, apperr.New(apperr.BadInput, "endpoint must not be a private IP address")
			}
			return nil, err
		}
	}

	svc := store.Service{
		Name:        in.Name,
		Description: in.Description,
		Endpoint:    in.Endpoint,
		Category:    in.Category,
		PriceUSDC:   in.PriceUSDC,
		Paid:        in.Paid,
		Status:      "active",
	}
	if err := r.repo.Upsert(ctx, svc); err != nil {
		return nil, apperr.Wrap(apperr.Internal, "register service", err)
	}
	log.Info().Str("name", svc.Name).Str("endpoint", svc.Endpoint).Msg("service registered")
	return &svc, nil
}

// Search proxies catalog search to the repository.
func (r *Registry) Search(ctx context.Context, q string, limit int) ([]store.Service, error) {
	return r.repo.Search(ctx, q, limit)
}

// Get returns one catalog entry or a not-found error.
func (r *Registry) Get(ctx context.Context, id string) (*store.Service, error) {
	svc, err := r.repo.Get(ctx, id)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "get service", err)
	}
	if svc == nil {
		return nil, apperr.Newf(apperr.NotFound, "service %q not found", id)
	}
	return svc, nil
}

// Seed upserts the built-in catalog. It is idempotent and safe to run on
// every boot.
func (r *Registry) Seed(ctx context.Context) error {
	for _, svc := range seedServices {
		if err := r.repo.Upsert(ctx, svc); err != nil {
			return err
		}
	}
	log.Info().Int("count", len(seedServices)).Msg("registry seeded")
	return nil
}

var _ EndpointChecker = (*netx.Client)(nil)
