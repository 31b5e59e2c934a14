package decision

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestComputeActionExecute(t *testing.T) {
	// Premium 1.5 % minus a 0.35 % round trip, 0.05 % slippage, stable
	// history with 0.1 % volatility over a 40-minute transfer.
	d := ComputeAction(1.15, 0.05, 40, 0.1)

	assert.Equal(t, ActionExecute, d.Action)
	assert.InDelta(t, 1.10, d.AdjustedProfitPct, 0.001)
	assert.InDelta(t, 0.08, d.PremiumRiskPct, 0.001)
	assert.InDelta(t, 1.02, d.Score, 0.01)
	assert.GreaterOrEqual(t, d.Confidence, 0.80)
	assert.LessOrEqual(t, d.Confidence, 0.95)
	assert.Contains(t, d.Reason, "clears premium risk")
}

func TestComputeActionWait(t *testing.T) {
	d := ComputeAction(0.8, 0.2, 10, 0.2)
	assert.Equal(t, ActionWait, d.Action)
	assert.Greater(t, d.Score, 0.0)
	assert.LessOrEqual(t, d.Score, 1.0)
}

func TestComputeActionSkip(t *testing.T) {
	d := ComputeAction(-0.5, 2.0, 40, 1.0)
	assert.Equal(t, ActionSkip, d.Action)
	assert.GreaterOrEqual(t, d.Confidence, 0.10)
	assert.Contains(t, d.Reason, "does not cover")
}

func TestComputeActionConfidenceBounds(t *testing.T) {
	high := ComputeAction(50, 0, 0, 0)
	assert.Equal(t, ActionExecute, high.Action)
	assert.Equal(t, 0.95, high.Confidence)

	low := ComputeAction(-50, 0, 0, 0)
	assert.Equal(t, ActionSkip, low.Action)
	assert.Equal(t, 0.10, low.Confidence)
}

func TestComputeActionDeterministic(t *testing.T) {
	a := ComputeAction(1.2, 0.3, 15, 0.4)
	b := ComputeAction(1.2, 0.3, 15, 0.4)
	assert.Equal(t, a, b)
}

func TestComputeActionZeroTransferTime(t *testing.T) {
	// No transfer means no premium risk regardless of volatility.
	d := ComputeAction(0.5, 0.1, 0, 5.0)
	assert.Equal(t, 0.0, d.PremiumRiskPct)
	assert.Equal(t, ActionWait, d.Action)
}
