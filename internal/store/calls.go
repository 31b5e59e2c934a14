package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// CallRepo reads service_calls count aggregates for the proxy rate
// limiter and records calls made through the proxy.
type CallRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

// NewCallRepo creates the repository.
func NewCallRepo(db *sqlx.DB) *CallRepo {
	return &CallRepo{db: db, timeout: defaultTimeout}
}

// Record inserts one proxied service call.
func (r *CallRepo) Record(ctx context.Context, serviceID, agentID, status string, responseTimeMs int) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO service_calls (id, service_id, agent_id, status, response_time_ms)
		VALUES ($1, $2, $3, $4, $5)`,
		uuid.New().String(), serviceID, agentID, status, responseTimeMs)
	if err != nil {
		return fmt.Errorf("record call: %w", err)
	}
	return nil
}

// CountByAgentService counts calls by one agent to one service since `since`.
func (r *CallRepo) CountByAgentService(ctx context.Context, agentID, serviceID string, since time.Time) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var n int
	err := r.db.GetContext(ctx, &n, `
		SELECT COUNT(*) FROM service_calls
		WHERE agent_id = $1 AND service_id = $2 AND created_at >= $3`,
		agentID, serviceID, since)
	if err != nil {
		return 0, fmt.Errorf("count agent service calls: %w", err)
	}
	return n, nil
}

// CountByAgent counts all calls by one agent since `since`.
func (r *CallRepo) CountByAgent(ctx context.Context, agentID string, since time.Time) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var n int
	err := r.db.GetContext(ctx, &n, `
		SELECT COUNT(*) FROM service_calls
		WHERE agent_id = $1 AND created_at >= $2`, agentID, since)
	if err != nil {
		return 0, fmt.Errorf("count agent calls: %w", err)
	}
	return n, nil
}
