package detect

import (
	"math"
	"math/rand"
	"regexp"
	"strings"
)

// DefaultDriftAlertThreshold triggers an alert when exceeded.
const DefaultDriftAlertThreshold = 0.7

const longPromptChars = 500

// Baseline operating domain vocabulary.
var baselineTopics = map[string]bool{
	"technology": true, "software": true, "computer": true, "data": true, "system": true,
	"application": true, "service": true, "api": true, "database": true, "cloud": true,
	"security": true, "network": true, "performance": true, "monitoring": true, "analytics": true,
}

// Out-of-domain indicator vocabularies, scored per category as
// matched/len(indicators). Order matters: ties resolve to the first category.
var oodDomains = []struct {
	name       string
	indicators []string
}{
	{"medical", []string{"symptom", "disease", "diagnosis", "medication", "patient", "doctor", "hospital"}},
	{"legal", []string{"lawsuit", "attorney", "court", "contract", "liability", "verdict"}},
	{"financial", []string{"investment", "stock", "trading", "portfolio", "dividend", "hedge"}},
	{"personal", []string{"relationship", "emotion", "feeling", "love", "hate", "family"}},
}

var (
	wordRe          = regexp.MustCompile(`\b\w+\b`)
	nestedInstrRe   = regexp.MustCompile(`(?:if|when|unless).*(?:then|else|otherwise)`)
	multiRequestsRe = regexp.MustCompile(`(?:and|also|additionally|furthermore).*(?:please|can you|could you)`)
)

// DriftAssessment is the output of a semantic drift analysis.
type DriftAssessment struct {
	DriftFactor     float64
	BaselineOverlap float64
	OODDomain       string // empty unless the max OOD score exceeds 0.2
	OODScore        float64
	ComplexityScore float64
	Dimensions      map[string]float64 // topic, domain, complexity
	Alert           bool
}

// SemanticDriftDetector measures how far a prompt strays from the expected
// operating domain. Pure and deterministic; the scenario-conditioned stress
// override lives in StressInjector.
type SemanticDriftDetector struct {
	alertThreshold float64
}

// NewSemanticDriftDetector creates a detector with the given alert
// threshold. Pass 0 to use the default.
func NewSemanticDriftDetector(alertThreshold float64) *SemanticDriftDetector {
	if alertThreshold <= 0 {
		alertThreshold = DefaultDriftAlertThreshold
	}
	return &SemanticDriftDetector{alertThreshold: alertThreshold}
}

// Analyze scores topic, domain and complexity drift for a prompt.
// Baseline-like scenario tags dampen the factor to 30% of its raw value.
func (d *SemanticDriftDetector) Analyze(prompt, scenarioTag string) DriftAssessment {
	lower := strings.ToLower(prompt)

	words := make(map[string]bool)
	for _, w := range wordRe.FindAllString(lower, -1) {
		words[w] = true
	}

	overlapCount := 0
	for w := range words {
		if baselineTopics[w] {
			overlapCount++
		}
	}
	baselineOverlap := float64(overlapCount) / float64(len(baselineTopics))

	maxOODScore := -1.0
	maxOODDomain := ""
	for _, domain := range oodDomains {
		matched := 0
		for _, ind := range domain.indicators {
			if strings.Contains(lower, ind) {
				matched++
			}
		}
		score := float64(matched) / float64(len(domain.indicators))
		if score > maxOODScore {
			maxOODScore = score
			maxOODDomain = domain.name
		}
	}

	complexity := 0.0
	if len(prompt) > longPromptChars {
		complexity += 0.3
	}
	if nestedInstrRe.MatchString(lower) {
		complexity += 0.2
	}
	if multiRequestsRe.MatchString(lower) {
		complexity += 0.2
	}

	drift := math.Max(1.0-baselineOverlap, math.Max(maxOODScore, complexity))

	if scenarioTag == "baseline" || scenarioTag == "after-mitigation" {
		drift *= 0.3
	}

	oodDomain := ""
	if maxOODScore > 0.2 {
		oodDomain = maxOODDomain
	}

	drift = clamp01(drift)

	return DriftAssessment{
		DriftFactor:     round3(drift),
		BaselineOverlap: round3(baselineOverlap),
		OODDomain:       oodDomain,
		OODScore:        round3(maxOODScore),
		ComplexityScore: round3(complexity),
		Dimensions: map[string]float64{
			"topic":      round3(1.0 - baselineOverlap),
			"domain":     round3(maxOODScore),
			"complexity": round3(complexity),
		},
		Alert: drift > d.alertThreshold,
	}
}

// StressInjector floors the drift factor at a randomized high value for the
// demo drift scenario. It exists only so load scenarios can force drift
// alerts; the detector itself stays reproducible.
type StressInjector struct {
	rng            *rand.Rand
	alertThreshold float64
}

// NewStressInjector creates an injector from a seeded source, so demo runs
// are replayable.
func NewStressInjector(src rand.Source, alertThreshold float64) *StressInjector {
	if alertThreshold <= 0 {
		alertThreshold = DefaultDriftAlertThreshold
	}
	return &StressInjector{rng: rand.New(src), alertThreshold: alertThreshold}
}

// Apply raises the drift factor for the "drift" scenario tag and recomputes
// the alert flag. Other tags pass through untouched.
func (s *StressInjector) Apply(scenarioTag string, a DriftAssessment) DriftAssessment {
	if scenarioTag != "drift" {
		return a
	}
	floor := 0.5 + s.rng.Float64()*0.4
	if a.DriftFactor < floor {
		a.DriftFactor = round3(clamp01(floor))
	}
	a.Alert = a.DriftFactor > s.alertThreshold
	return a
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
