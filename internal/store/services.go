package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// Service is one registry entry for a discoverable market-data service.
type Service struct {
	ID          string    `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	Description string    `db:"description" json:"description"`
	Endpoint    string    `db:"endpoint" json:"endpoint"`
	Category    string    `db:"category" json:"category"`
	PriceUSDC   float64   `db:"price_usdc" json:"priceUsdc"`
	Paid        bool      `db:"paid" json:"paid"`
	Status      string    `db:"status" json:"status"`
	CreatedAt   time.Time `db:"created_at" json:"createdAt"`
}

// ServiceRepo reads and writes the services registry.
type ServiceRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

// NewServiceRepo creates the repository.
func NewServiceRepo(db *sqlx.DB) *ServiceRepo {
	return &ServiceRepo{db: db, timeout: defaultTimeout}
}

// Upsert inserts or refreshes one registry entry keyed by id.
func (r *ServiceRepo) Upsert(ctx context.Context, s Service) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	if s.ID == "" {
		s.ID = uuid.New().String()
	}
	if s.Status == "" {
		s.Status = "active"
	}
	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO services (id, name, description, endpoint, category, price_usdc, paid, status)
		VALUES (:id, :name, :description, :endpoint, :category, :price_usdc, :paid, :status)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			endpoint = EXCLUDED.endpoint,
			category = EXCLUDED.category,
			price_usdc = EXCLUDED.price_usdc,
			paid = EXCLUDED.paid,
			status = EXCLUDED.status`, s)
	if err != nil {
		return fmt.Errorf("upsert service: %w", err)
	}
	return nil
}

// Get returns one service by id.
func (r *ServiceRepo) Get(ctx context.Context, id string) (*Service, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var s Service
	err := r.db.GetContext(ctx, &s, `
		SELECT id, name, description, endpoint, category, price_usdc, paid, status, created_at
		FROM services WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get service: %w", err)
	}
	return &s, nil
}

// Search returns services whose name, description, or category match q.
func (r *ServiceRepo) Search(ctx context.Context, q string, limit int) ([]Service, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	if limit <= 0 || limit > 100 {
		limit = 50
	}
	pattern := "%" + q + "%"
	var out []Service
	err := r.db.SelectContext(ctx, &out, `
		SELECT id, name, description, endpoint, category, price_usdc, paid, status, created_at
		FROM services
		WHERE name ILIKE $1 OR description ILIKE $1 OR category ILIKE $1
		ORDER BY name ASC
		LIMIT $2`, pattern, limit)
	if err != nil {
		return nil, fmt.Errorf("search services: %w", err)
	}
	return out, nil
}

// List returns all registry entries.
func (r *ServiceRepo) List(ctx context.Context) ([]Service, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var out []Service
	err := r.db.SelectContext(ctx, &out, `
		SELECT id, name, description, endpoint, category, price_usdc, paid, status, created_at
		FROM services ORDER BY name ASC`)
	if err != nil {
		return nil, fmt.Errorf("list services: %w", err)
	}
	return out, nil
}
