package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/crossfin/crossfin/internal/aggregate"
	"github.com/crossfin/crossfin/internal/decision"
)

const guardianInterval = 5 * time.Minute

// Guardian periodically re-scores the opportunity table and logs any
// coin whose decision flips to EXECUTE. It writes nothing; the log line
// is the alert channel.
type Guardian struct {
	agg *aggregate.Service

	lastActions map[string]string
}

// NewGuardian creates the background scorer.
func NewGuardian(agg *aggregate.Service) *Guardian {
	return &Guardian{agg: agg, lastActions: make(map[string]string)}
}

// Run scores on a fixed cadence until ctx is cancelled.
func (g *Guardian) Run(ctx context.Context) {
	ticker := time.NewTicker(guardianInterval)
	defer ticker.Stop()

	log.Info().Dur("interval", guardianInterval).Msg("guardian started")
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("guardian stopped")
			return
		case <-ticker.C:
			g.scan(ctx)
		}
	}
}

func (g *Guardian) scan(ctx context.Context) {
	set := g.agg.Opportunities(ctx)
	for _, opp := range set.Opportunities {
		prev := g.lastActions[opp.Coin]
		g.lastActions[opp.Coin] = opp.Decision.Action

		if opp.Decision.Action == decision.ActionExecute && prev != decision.ActionExecute {
			log.Info().
				Str("coin", opp.Coin).
				Float64("premiumPct", opp.PremiumPct).
				Float64("score", opp.Decision.Score).
				Float64("confidence", opp.Decision.Confidence).
				Msg("guardian: opportunity flipped to EXECUTE")
		}
	}
}
