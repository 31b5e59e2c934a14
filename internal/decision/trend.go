package decision

import (
	"context"
	"math"
	"time"

	"github.com/rs/zerolog/log"
)

// PremiumPoint is one historical premium observation.
type PremiumPoint struct {
	PremiumPct float64
	At         time.Time
}

// PremiumHistory supplies ordered premium observations for a coin. The
// snapshot repository satisfies it through a small adapter.
type PremiumHistory interface {
	PremiumWindow(ctx context.Context, coin string, since time.Time) ([]PremiumPoint, error)
}

// Trend summarizes recent premium movement.
type Trend struct {
	Direction     string  `json:"direction"` // rising, falling, stable
	VolatilityPct float64 `json:"volatilityPct"`
}

var stableTrend = Trend{Direction: "stable", VolatilityPct: 0}

// PremiumTrend reads snapshots for coin within the window and derives
// direction and volatility. Any error or insufficient history yields the
// stable zero trend: trend data is advisory, never a failure.
func PremiumTrend(ctx context.Context, hist PremiumHistory, coin string, window time.Duration) Trend {
	points, err := hist.PremiumWindow(ctx, coin, time.Now().Add(-window))
	if err != nil {
		log.Debug().Err(err).Str("coin", coin).Msg("premium trend unavailable")
		return stableTrend
	}
	if len(points) < 2 {
		return stableTrend
	}

	first := points[0].PremiumPct
	last := points[len(points)-1].PremiumPct

	direction := "stable"
	switch {
	case last-first > 0.3:
		direction = "rising"
	case last-first < -0.3:
		direction = "falling"
	}

	mean := 0.0
	for _, p := range points {
		mean += p.PremiumPct
	}
	mean /= float64(len(points))

	variance := 0.0
	for _, p := range points {
		d := p.PremiumPct - mean
		variance += d * d
	}
	variance /= float64(len(points))

	return Trend{Direction: direction, VolatilityPct: math.Sqrt(variance)}
}

// TrendService binds PremiumTrend to a history source.
type TrendService struct {
	hist PremiumHistory
}

// NewTrendService wraps a premium history source.
func NewTrendService(hist PremiumHistory) *TrendService {
	return &TrendService{hist: hist}
}

// Trend computes the premium trend for coin over the window.
func (s *TrendService) Trend(ctx context.Context, coin string, window time.Duration) Trend {
	if s == nil || s.hist == nil {
		return stableTrend
	}
	return PremiumTrend(ctx, s.hist, coin, window)
}

// Volatility is the trend's volatility component alone.
func (s *TrendService) Volatility(ctx context.Context, coin string, window time.Duration) float64 {
	return s.Trend(ctx, coin, window).VolatilityPct
}
