package risk

import (
	"math"

	"github.com/halcyon-ai/sentry/internal/detect"
)

// Risk reasons, in priority order. The chain is first-match-wins and must
// stay in this order for reproducible classification.
const (
	ReasonOK            = "ok"
	ReasonLowCoherence  = "low_coherence"
	ReasonHallucination = "hallucination_detected"
	ReasonSecurity      = "security_threat"
)

// AI Act risk levels for regulatory-style reporting.
const (
	AIActLow    = "low"
	AIActMedium = "medium"
	AIActHigh   = "high"
)

const coherenceFloor = 0.65

// Decision is the composite risk outcome for a single evaluation.
type Decision struct {
	Flag       bool
	Reason     string
	AIActLevel string
	TrustIndex float64
}

// Scorer derives the composite risk decision from response coherence, the
// hallucination flag and the prompt security assessment. Pure.
type Scorer struct{}

func NewScorer() *Scorer {
	return &Scorer{}
}

// Score applies the fixed-priority rule chain:
// low coherence, then hallucination, then security threat, then no flag.
func (s *Scorer) Score(coherence float64, hallucination bool, sec detect.SecurityAssessment) Decision {
	flag := false
	reason := ReasonOK

	switch {
	case coherence < coherenceFloor:
		flag = true
		reason = ReasonLowCoherence
	case hallucination:
		flag = true
		reason = ReasonHallucination
	case !sec.IsSafe:
		flag = true
		reason = ReasonSecurity
	}

	level := AIActLow
	if flag {
		if reason == ReasonLowCoherence || reason == ReasonHallucination {
			level = AIActMedium
		} else {
			level = AIActHigh
		}
	}

	return Decision{
		Flag:       flag,
		Reason:     reason,
		AIActLevel: level,
		TrustIndex: trustIndex(flag, level, sec.Score),
	}
}

// trustIndex composes a base trust from the flag and level, scaled by the
// security score, clamped to [0,1].
func trustIndex(flag bool, aiActLevel string, securityScore float64) float64 {
	var base float64
	switch {
	case !flag && aiActLevel == AIActLow:
		base = 1.0
	case aiActLevel == AIActMedium:
		base = 0.6
	case aiActLevel == AIActHigh:
		base = 0.3
	default:
		base = 0.5
	}

	adjusted := base * (0.5 + 0.5*securityScore)
	if adjusted < 0 {
		adjusted = 0
	}
	if adjusted > 1 {
		adjusted = 1
	}
	return math.Round(adjusted*1000) / 1000
}
