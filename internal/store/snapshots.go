package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/crossfin/crossfin/internal/decision"
)

// Snapshot is one persisted kimchi-premium observation. Rows are written
// hourly and retained at least seven days; the trend estimator and the
// global-price fallback both read them.
type Snapshot struct {
	ID           string    `db:"id" json:"id"`
	Coin         string    `db:"coin" json:"coin"`
	BithumbKRW   float64   `db:"bithumb_krw" json:"bithumbKrw"`
	BinanceUSD   float64   `db:"binance_usd" json:"binanceUsd"`
	PremiumPct   float64   `db:"premium_pct" json:"premiumPct"`
	KrwUsdRate   float64   `db:"krw_usd_rate" json:"krwUsdRate"`
	Volume24hUSD float64   `db:"volume_24h_usd" json:"volume24hUsd"`
	CreatedAt    time.Time `db:"created_at" json:"createdAt"`
}

// SnapshotRepo reads and writes kimchi_snapshots.
type SnapshotRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

// NewSnapshotRepo creates the repository.
func NewSnapshotRepo(db *sqlx.DB) *SnapshotRepo {
	return &SnapshotRepo{db: db, timeout: defaultTimeout}
}

// Insert writes one snapshot row, minting an id when absent.
func (r *SnapshotRepo) Insert(ctx context.Context, s Snapshot) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	if s.ID == "" {
		s.ID = uuid.New().String()
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now().UTC()
	}

	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO kimchi_snapshots (id, coin, bithumb_krw, binance_usd, premium_pct, krw_usd_rate, volume_24h_usd, created_at)
		VALUES (:id, :coin, :bithumb_krw, :binance_usd, :premium_pct, :krw_usd_rate, :volume_24h_usd, :created_at)`, s)
	if err != nil {
		return fmt.Errorf("insert snapshot: %w", err)
	}
	return nil
}

// History returns snapshots for coin within the last `hours`, oldest first.
func (r *SnapshotRepo) History(ctx context.Context, coin string, hours int) ([]Snapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	since := time.Now().Add(-time.Duration(hours) * time.Hour)
	var rows []Snapshot
	err := r.db.SelectContext(ctx, &rows, `
		SELECT id, coin, bithumb_krw, binance_usd, premium_pct, krw_usd_rate, volume_24h_usd, created_at
		FROM kimchi_snapshots
		WHERE coin = $1 AND created_at >= $2
		ORDER BY created_at ASC`, coin, since)
	if err != nil {
		return nil, fmt.Errorf("snapshot history: %w", err)
	}
	return rows, nil
}

// Window returns snapshots for coin created after `since`, oldest first.
func (r *SnapshotRepo) Window(ctx context.Context, coin string, since time.Time) ([]Snapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var rows []Snapshot
	err := r.db.SelectContext(ctx, &rows, `
		SELECT id, coin, bithumb_krw, binance_usd, premium_pct, krw_usd_rate, volume_24h_usd, created_at
		FROM kimchi_snapshots
		WHERE coin = $1 AND created_at >= $2
		ORDER BY created_at ASC`, coin, since)
	if err != nil {
		return nil, fmt.Errorf("snapshot window: %w", err)
	}
	return rows, nil
}

// Latest returns the most recent snapshot per requested coin, newest rows
// only within the retention window.
func (r *SnapshotRepo) Latest(ctx context.Context, coin string, within time.Duration) (*Snapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var s Snapshot
	err := r.db.GetContext(ctx, &s, `
		SELECT id, coin, bithumb_krw, binance_usd, premium_pct, krw_usd_rate, volume_24h_usd, created_at
		FROM kimchi_snapshots
		WHERE coin = $1 AND created_at >= $2
		ORDER BY created_at DESC
		LIMIT 1`, coin, time.Now().Add(-within))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest snapshot: %w", err)
	}
	return &s, nil
}

// PremiumWindow adapts Window to the trend estimator's contract.
func (r *SnapshotRepo) PremiumWindow(ctx context.Context, coin string, since time.Time) ([]decision.PremiumPoint, error) {
	rows, err := r.Window(ctx, coin, since)
	if err != nil {
		return nil, err
	}
	points := make([]decision.PremiumPoint, 0, len(rows))
	for _, s := range rows {
		points = append(points, decision.PremiumPoint{PremiumPct: s.PremiumPct, At: s.CreatedAt})
	}
	return points, nil
}

// LatestBinanceUSD satisfies the price-cache fallback contract.
func (r *SnapshotRepo) LatestBinanceUSD(ctx context.Context, coin string, within time.Duration) (float64, error) {
	s, err := r.Latest(ctx, coin, within)
	if err != nil {
		return 0, err
	}
	if s == nil {
		return 0, sql.ErrNoRows
	}
	return s.BinanceUSD, nil
}
