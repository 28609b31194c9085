package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/halcyon-ai/sentry/internal/audit"
	"github.com/halcyon-ai/sentry/internal/conversation"
	"github.com/halcyon-ai/sentry/internal/detect"
	"github.com/halcyon-ai/sentry/internal/guardrails"
	"github.com/halcyon-ai/sentry/internal/metrics"
	"github.com/halcyon-ai/sentry/internal/ratelimit"
	"github.com/halcyon-ai/sentry/internal/risk"
	"github.com/halcyon-ai/sentry/internal/simulate"
	"github.com/halcyon-ai/sentry/internal/storage"
	"go.uber.org/zap"
)

// ValidationError rejects malformed input before the pipeline runs.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// BlockedError is a deliberate policy rejection, not a fault. It carries the
// request id and the triggered guardrail names.
type BlockedError struct {
	RequestID string
	Triggered []string
}

func (e *BlockedError) Error() string {
	return fmt.Sprintf("request %s blocked by guardrails: %v", e.RequestID, e.Triggered)
}

// Responder produces the downstream model answer for an accepted request.
// The simulator implements it; a real backend could too.
type Responder interface {
	Respond(ctx context.Context, prompt, scenarioTag, mode string) (simulate.Response, error)
	EstimateTokens(prompt, answer string) (input, output int)
}

// Input is one evaluation request.
type Input struct {
	Prompt         string
	Scenario       string
	ConversationID string
	UserID         string
	ClientID       string
}

// Decision is the full bundle returned for an accepted request.
type Decision struct {
	RequestID string
	Allowed   bool

	Triggered []string
	Warnings  []string

	PII            detect.PIIFindings
	RedactedPrompt string // set only when PII was found
	Security       detect.SecurityAssessment
	Drift          detect.DriftAssessment
	Risk           risk.Decision

	ConversationID   string
	ConversationTurn int

	Scenario      string
	Mode          string
	Answer        string
	Quality       float64
	Coherence     float64
	Hallucination bool
	CostEUR       float64
	LatencyMs     float64
	TokensInput   int
	TokensOutput  int
}

// Pipeline runs the full detection-and-policy flow for one prompt:
// leaf detectors, rate limit, guardrails, conversation state, risk scoring
// and the audit trail. Synchronous and idempotent per call; no retries.
type Pipeline struct {
	pii      *detect.PIIDetector
	security *detect.PromptSecurityAnalyzer
	drift    *detect.SemanticDriftDetector
	injector *detect.StressInjector // optional demo stress hook

	limiter   *ratelimit.Limiter
	guard     *guardrails.Engine
	tracker   *conversation.Tracker
	scorer    *risk.Scorer
	trail     *audit.Trail
	responder Responder

	recorder metrics.Recorder
	logger   *zap.Logger
	model    string
}

// Deps carries everything a pipeline needs. Injector is optional.
type Deps struct {
	PII       *detect.PIIDetector
	Security  *detect.PromptSecurityAnalyzer
	Drift     *detect.SemanticDriftDetector
	Injector  *detect.StressInjector
	Limiter   *ratelimit.Limiter
	Guard     *guardrails.Engine
	Tracker   *conversation.Tracker
	Scorer    *risk.Scorer
	Trail     *audit.Trail
	Responder Responder
	Recorder  metrics.Recorder
	Logger    *zap.Logger
	Model     string
}

// New assembles a pipeline from its dependencies.
func New(d Deps) *Pipeline {
	model := d.Model
	if model == "" {
		model = "demo-medium"
	}
	return &Pipeline{
		pii:       d.PII,
		security:  d.Security,
		drift:     d.Drift,
		injector:  d.Injector,
		limiter:   d.Limiter,
		guard:     d.Guard,
		tracker:   d.Tracker,
		scorer:    d.Scorer,
		trail:     d.Trail,
		responder: d.Responder,
		recorder:  d.Recorder,
		logger:    d.Logger,
		model:     model,
	}
}

// Evaluate runs the pipeline for one request. It returns a *BlockedError
// when guardrails reject, a *ValidationError for bad input, and a Decision
// otherwise. Each evaluation runs to completion; cancellation only affects
// the responder.
func (p *Pipeline) Evaluate(ctx context.Context, in Input) (*Decision, error) {
	if in.ClientID == "" {
		return nil, &ValidationError{Field: "client_id", Reason: "must not be empty"}
	}

	requestID := audit.NewRequestID()
	scenarioTag, mode := simulate.NormalizeScenario(in.Scenario)
	start := time.Now()

	p.recorder.RequestStarted(scenarioTag)

	// Leaf detectors. A fault in any of them is replaced with a neutral
	// result and logged as an error-severity audit event; it never crashes
	// the pipeline.
	findings := p.detectPII(requestID, in.Prompt)
	secAssessment := p.analyzeSecurity(requestID, in.Prompt)
	driftAssessment := p.analyzeDrift(requestID, in.Prompt, scenarioTag)
	if p.injector != nil {
		driftAssessment = p.injector.Apply(scenarioTag, driftAssessment)
	}

	for _, category := range findings.Categories() {
		p.recorder.PIIDetected(string(category), len(findings[category]))
	}
	if findings.Count() > 0 {
		p.trail.LogEvent("pii_detected", requestID, map[string]any{
			"pii_types": findings.Categories(),
			"count":     findings.Count(),
		}, audit.SeverityWarning)
	}

	p.recorder.SecurityScore(secAssessment.Score)
	for _, threat := range secAssessment.Threats {
		p.recorder.InjectionAttempt(threat.Technique, !secAssessment.IsSafe)
	}
	if !secAssessment.IsSafe {
		p.trail.LogEvent("security_threat", requestID, map[string]any{
			"threats": secAssessment.Threats,
			"score":   secAssessment.Score,
		}, audit.SeverityHigh)
	}

	for dimension, score := range driftAssessment.Dimensions {
		p.recorder.DriftDimension(scenarioTag, dimension, score)
	}
	if driftAssessment.Alert {
		p.recorder.DriftAlert("warning")
		p.trail.LogEvent("drift_alert", requestID, map[string]any{
			"drift_factor": driftAssessment.DriftFactor,
			"ood_domain":   driftAssessment.OODDomain,
		}, audit.SeverityWarning)
	}

	rateLimited := !p.limiter.IsAllowed(in.ClientID)

	verdict := p.guard.Evaluate(&guardrails.Context{
		Prompt:      in.Prompt,
		PII:         findings,
		Security:    secAssessment,
		RateLimited: rateLimited,
		Toxicity:    scenarioTag == "toxic",
	})

	if !verdict.Passed {
		p.recorder.RequestError(scenarioTag, "guardrail_blocked")
		p.trail.LogEvent("request_blocked", requestID, map[string]any{
			"triggered": verdict.Triggered,
		}, audit.SeverityWarning)
		return nil, &BlockedError{RequestID: requestID, Triggered: verdict.Triggered}
	}

	conv := p.tracker.GetOrCreate(in.ConversationID, in.UserID)

	resp, err := p.responder.Respond(ctx, in.Prompt, scenarioTag, mode)
	if err != nil {
		p.recorder.RequestError(scenarioTag, "internal")
		p.logger.Error("responder failed",
			zap.String("request_id", requestID),
			zap.Error(err),
		)
		resp = simulate.Response{}
	}

	inToks, outToks := p.responder.EstimateTokens(in.Prompt, resp.Answer)

	coherence := resp.Quality
	riskDecision := p.scorer.Score(coherence, resp.Hallucination, secAssessment)

	elapsed := time.Since(start)
	p.recorder.RequestLatency(scenarioTag, elapsed)
	p.recorder.QualityScore(scenarioTag, resp.Quality)
	p.recorder.Tokens(p.model, inToks, outToks)
	p.recorder.CostEUR(resp.CostEUR)
	p.recorder.TrustIndex(scenarioTag, riskDecision.TrustIndex)

	if resp.Hallucination {
		severity := "medium"
		if resp.Quality < 0.5 {
			severity = "high"
		}
		p.recorder.Hallucination(severity)
	}
	if riskDecision.Flag {
		p.recorder.RiskyResponse(scenarioTag, riskDecision.AIActLevel)
	}

	p.tracker.RecordTurn(conv.ID, resp.Quality, inToks+outToks, "")
	turn := conv.Turns + 1

	redacted := ""
	if findings.Count() > 0 {
		redacted = p.pii.Redact(in.Prompt, findings)
	}

	severity := audit.SeverityInfo
	if riskDecision.Flag {
		severity = audit.SeverityWarning
	}
	p.trail.LogEvent("ai_predict", requestID, map[string]any{
		"prompt":            storage.TruncatePrompt(in.Prompt, storage.PromptPreviewLength),
		"scenario":          scenarioTag,
		"quality_score":     resp.Quality,
		"security_score":    secAssessment.Score,
		"pii_count":         findings.Count(),
		"drift_factor":      driftAssessment.DriftFactor,
		"risk_flag":         riskDecision.Flag,
		"risk_reason":       riskDecision.Reason,
		"ai_act_risk_level": riskDecision.AIActLevel,
		"trust_index":       riskDecision.TrustIndex,
		"latency_ms":        float64(elapsed) / float64(time.Millisecond),
		"conversation_id":   conv.ID,
		"conversation_turn": turn,
		"warnings":          verdict.Warnings,
	}, severity)

	return &Decision{
		RequestID:        requestID,
		Allowed:          true,
		Triggered:        verdict.Triggered,
		Warnings:         verdict.Warnings,
		PII:              findings,
		RedactedPrompt:   redacted,
		Security:         secAssessment,
		Drift:            driftAssessment,
		Risk:             riskDecision,
		ConversationID:   conv.ID,
		ConversationTurn: turn,
		Scenario:         scenarioTag,
		Mode:             mode,
		Answer:           resp.Answer,
		Quality:          resp.Quality,
		Coherence:        coherence,
		Hallucination:    resp.Hallucination,
		CostEUR:          resp.CostEUR,
		LatencyMs:        float64(elapsed) / float64(time.Millisecond),
		TokensInput:      inToks,
		TokensOutput:     outToks,
	}, nil
}

// detectPII guards the PII detector against faults: a panic is swallowed,
// audited at error severity, and replaced with an empty finding set.
func (p *Pipeline) detectPII(requestID, prompt string) (findings detect.PIIFindings) {
	defer p.recoverDetector(requestID, "pii", func() {
		findings = detect.PIIFindings{}
	})
	return p.pii.Detect(prompt)
}

func (p *Pipeline) analyzeSecurity(requestID, prompt string) (a detect.SecurityAssessment) {
	defer p.recoverDetector(requestID, "security", func() {
		a = detect.SafeAssessment()
	})
	return p.security.Analyze(prompt)
}

func (p *Pipeline) analyzeDrift(requestID, prompt, scenarioTag string) (a detect.DriftAssessment) {
	defer p.recoverDetector(requestID, "drift", func() {
		a = detect.DriftAssessment{Dimensions: map[string]float64{}}
	})
	return p.drift.Analyze(prompt, scenarioTag)
}

func (p *Pipeline) recoverDetector(requestID, detector string, neutral func()) {
	if r := recover(); r != nil {
		p.logger.Error("detector fault, using neutral result",
			zap.String("detector", detector),
			zap.String("request_id", requestID),
			zap.Any("panic", r),
		)
		p.trail.LogEvent("detector_fault", requestID, map[string]any{
			"detector": detector,
			"panic":    fmt.Sprint(r),
		}, audit.SeverityError)
		neutral()
	}
}
