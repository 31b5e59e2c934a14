package decision

import (
	"fmt"
	"math"

	"github.com/crossfin/crossfin/internal/num"
)

// Actions emitted by the decision layer.
const (
	ActionExecute = "EXECUTE"
	ActionWait    = "WAIT"
	ActionSkip    = "SKIP"
)

// Decision is the outcome of scoring one opportunity.
type Decision struct {
	Action     string  `json:"action"`
	Confidence float64 `json:"confidence"`
	Reason     string  `json:"reason"`

	// Score components, exposed for observability.
	AdjustedProfitPct float64 `json:"adjustedProfitPct"`
	PremiumRiskPct    float64 `json:"premiumRiskPct"`
	Score             float64 `json:"score"`
}

// ComputeAction scores net profit against slippage and the premium risk
// accumulated while a transfer is in flight. Deterministic: identical
// inputs produce identical outputs.
func ComputeAction(netProfitPct, slippagePct, transferTimeMin, volatilityPct float64) Decision {
	adjusted := netProfitPct - slippagePct
	risk := volatilityPct * math.Sqrt(transferTimeMin/60.0)
	score := adjusted - risk

	var action string
	var confidence float64
	switch {
	case score > 1.0:
		action = ActionExecute
		confidence = math.Min(0.95, 0.80+(score-1.0)*0.05)
	case score > 0:
		action = ActionWait
		confidence = 0.5 + score*0.3
	default:
		action = ActionSkip
		confidence = math.Max(0.10, 0.5+score*0.2)
	}
	confidence = num.Clip(confidence, 0.10, 0.95)

	adj2 := num.Round2(adjusted)
	risk2 := num.Round2(risk)
	var reason string
	switch action {
	case ActionExecute:
		reason = fmt.Sprintf("adjusted profit %.2f%% clears premium risk %.2f%%", adj2, risk2)
	case ActionWait:
		reason = fmt.Sprintf("adjusted profit %.2f%% is thin against premium risk %.2f%%", adj2, risk2)
	default:
		reason = fmt.Sprintf("adjusted profit %.2f%% does not cover premium risk %.2f%%", adj2, risk2)
	}

	return Decision{
		Action:            action,
		Confidence:        num.Round2(confidence),
		Reason:            reason,
		AdjustedProfitPct: adj2,
		PremiumRiskPct:    risk2,
		Score:             score,
	}
}
