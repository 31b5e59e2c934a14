package decision

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeHistory struct {
	points []PremiumPoint
	err    error
}

func (f *fakeHistory) PremiumWindow(ctx context.Context, coin string, since time.Time) ([]PremiumPoint, error) {
	return f.points, f.err
}

func points(vals ...float64) []PremiumPoint {
	out := make([]PremiumPoint, len(vals))
	base := time.Now().Add(-time.Hour)
	for i, v := range vals {
		out[i] = PremiumPoint{PremiumPct: v, At: base.Add(time.Duration(i) * time.Minute)}
	}
	return out
}

func TestPremiumTrendRising(t *testing.T) {
	tr := PremiumTrend(context.Background(), &fakeHistory{points: points(1.0, 1.2, 1.5)}, "BTC", 6*time.Hour)
	assert.Equal(t, "rising", tr.Direction)
	assert.Greater(t, tr.VolatilityPct, 0.0)
}

func TestPremiumTrendFalling(t *testing.T) {
	tr := PremiumTrend(context.Background(), &fakeHistory{points: points(2.0, 1.5, 1.0)}, "BTC", 6*time.Hour)
	assert.Equal(t, "falling", tr.Direction)
}

func TestPremiumTrendStableWithinThreshold(t *testing.T) {
	tr := PremiumTrend(context.Background(), &fakeHistory{points: points(1.0, 1.1, 1.2)}, "BTC", 6*time.Hour)
	assert.Equal(t, "stable", tr.Direction)
}

func TestPremiumTrendConstantSeries(t *testing.T) {
	tr := PremiumTrend(context.Background(), &fakeHistory{points: points(1.5, 1.5, 1.5, 1.5)}, "BTC", 6*time.Hour)
	assert.Equal(t, "stable", tr.Direction)
	assert.Equal(t, 0.0, tr.VolatilityPct)
}

func TestPremiumTrendPopulationVariance(t *testing.T) {
	// Points 1 and 3: mean 2, population variance 1, volatility 1.
	tr := PremiumTrend(context.Background(), &fakeHistory{points: points(1.0, 3.0)}, "BTC", 6*time.Hour)
	assert.InDelta(t, 1.0, tr.VolatilityPct, 1e-9)
}

func TestPremiumTrendDegradesToStable(t *testing.T) {
	onErr := PremiumTrend(context.Background(), &fakeHistory{err: errors.New("db down")}, "BTC", 6*time.Hour)
	assert.Equal(t, Trend{Direction: "stable", VolatilityPct: 0}, onErr)

	onePoint := PremiumTrend(context.Background(), &fakeHistory{points: points(1.0)}, "BTC", 6*time.Hour)
	assert.Equal(t, Trend{Direction: "stable", VolatilityPct: 0}, onePoint)
}

func TestTrendServiceNilHistory(t *testing.T) {
	var s *TrendService
	assert.Equal(t, 0.0, s.Volatility(context.Background(), "BTC", time.Hour))
}
