package simulate

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"
)

// Modes group scenarios by their load profile.
const (
	ModeNominal = "nominal"
	ModeDrift   = "drift"
	ModeStress  = "stress"
	ModeRisky   = "risky"
)

// NormalizeScenario maps a raw scenario string to a canonical (tag, mode)
// pair. Unknown scenarios pass through as nominal.
func NormalizeScenario(raw string) (tag, mode string) {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" {
		return "baseline", ModeNominal
	}

	switch s {
	case "a", "baseline", "nominal":
		return "baseline", ModeNominal
	case "after-mitigation", "mitigated":
		return "after-mitigation", ModeNominal
	case "b", "drift":
		return "drift", ModeDrift
	case "c", "latency-spike", "stress":
		return "latency-spike", ModeStress
	case "prompt-injection", "injection":
		return "prompt-injection", ModeRisky
	case "high-risk", "risk":
		return "high-risk", ModeRisky
	case "toxic":
		return "toxic", ModeRisky
	}
	return s, ModeNominal
}

// Response is the simulated model output consumed by the pipeline.
type Response struct {
	Answer        string
	Quality       float64
	Hallucination bool
	CostEUR       float64
	Latency       time.Duration
}

type scoreRange struct{ lo, hi float64 }

var latencyRanges = map[string]scoreRange{
	ModeNominal: {0.05, 0.15},
	ModeDrift:   {0.1, 0.25},
	ModeStress:  {0.2, 0.6},
	ModeRisky:   {0.15, 0.5},
}

var qualityRanges = map[string]scoreRange{
	"baseline":         {0.8, 0.95},
	"after-mitigation": {0.8, 0.95},
	"drift":            {0.4, 0.85},
	"latency-spike":    {0.6, 0.9},
}

var hallucinationRates = map[string]float64{
	"baseline":         0.0,
	"after-mitigation": 0.0,
	"drift":            0.3,
	"latency-spike":    0.2,
}

// Simulator produces scenario-conditioned fake model responses. It stands in
// for a real inference backend; the pipeline only sees the Response.
type Simulator struct {
	mu    sync.Mutex
	rng   *rand.Rand
	sleep func(ctx context.Context, d time.Duration)
}

// New creates a simulator from a seeded source.
func New(src rand.Source) *Simulator {
	return &Simulator{
		rng:   rand.New(src),
		sleep: sleepCtx,
	}
}

// Respond fabricates an answer with scenario-appropriate latency, quality
// and hallucination odds.
func (s *Simulator) Respond(ctx context.Context, prompt, scenarioTag, mode string) (Response, error) {
	s.mu.Lock()
	latRange, ok := latencyRanges[mode]
	if !ok {
		latRange = scoreRange{0.1, 0.3}
	}
	latency := time.Duration(s.uniform(latRange) * float64(time.Second))

	qualRange, ok := qualityRanges[scenarioTag]
	if !ok {
		qualRange = scoreRange{0.3, 0.8}
	}
	quality := s.uniform(qualRange)

	hallRate, ok := hallucinationRates[scenarioTag]
	if !ok {
		hallRate = 0.4
	}
	hallucination := s.rng.Float64() < hallRate
	s.mu.Unlock()

	s.sleep(ctx, latency)
	if err := ctx.Err(); err != nil {
		return Response{}, err
	}

	cost := 0.0005 * float64(len(prompt))
	switch scenarioTag {
	case "latency-spike", "high-risk", "toxic":
		cost *= 1.5
	}

	return Response{
		Answer:        fmt.Sprintf("Simulated answer for %q with quality score %.2f.", scenarioTag, quality),
		Quality:       quality,
		Hallucination: hallucination,
		CostEUR:       cost,
		Latency:       latency,
	}, nil
}

// EstimateTokens approximates input/output token counts from word counts.
func (s *Simulator) EstimateTokens(prompt, answer string) (input, output int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	input = int(float64(len(strings.Fields(prompt))) * s.uniform(scoreRange{1.2, 1.8}))
	output = int(float64(len(strings.Fields(answer))) * s.uniform(scoreRange{1.0, 1.4}))
	if input < 1 {
		input = 1
	}
	if output < 1 {
		output = 1
	}
	return input, output
}

func (s *Simulator) uniform(r scoreRange) float64 {
	return r.lo + s.rng.Float64()*(r.hi-r.lo)
}

func sleepCtx(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}
