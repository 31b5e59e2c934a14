package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/crossfin/crossfin/internal/aggregate"
	"github.com/crossfin/crossfin/internal/store"
	"github.com/crossfin/crossfin/internal/telemetry"
)

// SnapshotWriter persists the premium table on a fixed interval so the
// trend estimator and the demo fallback always have history.
type SnapshotWriter struct {
	agg      *aggregate.Service
	repo     *store.SnapshotRepo
	interval time.Duration
}

// NewSnapshotWriter creates the writer; interval defaults to one hour.
func NewSnapshotWriter(agg *aggregate.Service, repo *store.SnapshotRepo, interval time.Duration) *SnapshotWriter {
	if interval <= 0 {
		interval = time.Hour
	}
	return &SnapshotWriter{agg: agg, repo: repo, interval: interval}
}

// Run writes snapshots until ctx is cancelled. The first write happens
// one interval after start so boot does not race cache warmup.
func (w *SnapshotWriter) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	log.Info().Dur("interval", w.interval).Msg("snapshot writer started")
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("snapshot writer stopped")
			return
		case <-ticker.C:
			if err := w.WriteOnce(ctx); err != nil {
				log.Warn().Err(err).Msg("snapshot write failed")
			}
		}
	}
}

// WriteOnce persists one row per coin currently present in the premium
// table. A partially failed batch keeps going; the first error is
// returned after the batch completes.
func (w *SnapshotWriter) WriteOnce(ctx context.Context) error {
	rows, fx := w.agg.Rows(ctx)
	if len(rows) == 0 {
		log.Debug().Msg("no premium rows to snapshot")
		return nil
	}

	var firstErr error
	written := 0
	for _, row := range rows {
		snap := store.Snapshot{
			Coin:         row.Coin,
			BithumbKRW:   row.BithumbKRW,
			BinanceUSD:   row.BinanceUSD,
			PremiumPct:   row.PremiumPct,
			KrwUsdRate:   fx,
			Volume24hUSD: row.Volume24hUSD,
		}
		if err := w.repo.Insert(ctx, snap); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		written++
	}

	telemetry.SnapshotWrites.Add(float64(written))
	log.Info().Int("written", written).Int("rows", len(rows)).Msg("snapshots written")
	return firstErr
}
