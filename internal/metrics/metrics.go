package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Recorder is the observability sink the core pipeline reports into.
// The core owns no metric state itself; callers inject either the
// Prometheus implementation or Nop (tests).
type Recorder interface {
	RequestStarted(scenario string)
	RequestError(scenario, errorType string)
	RequestLatency(scenario string, d time.Duration)

	PIIDetected(piiType string, count int)
	PIIBlocked()

	SecurityScore(score float64)
	InjectionAttempt(technique string, blocked bool)

	DriftDimension(scenario, dimension string, score float64)
	DriftAlert(severity string)

	RateLimited(reason string)

	GuardrailTriggered(name, action string)
	GuardrailBlocked(reason string)

	ConversationStarted()
	ConversationTurn(lengthBucket string)
	ConversationEnded(duration time.Duration)

	QualityScore(scenario string, score float64)
	Tokens(model string, input, output int)
	CostEUR(amount float64)
	TrustIndex(scenario string, value float64)
	RiskyResponse(scenario, riskLevel string)
	Hallucination(severity string)

	AuditEvent(eventType, severity string)

	FeedbackReceived(rating int, category string)
	Satisfaction(average float64)
}

// Nop discards every observation. Used in tests and as a default.
type Nop struct{}

func (Nop) RequestStarted(string)                   {}
func (Nop) RequestError(string, string)             {}
func (Nop) RequestLatency(string, time.Duration)    {}
func (Nop) PIIDetected(string, int)                 {}
func (Nop) PIIBlocked()                             {}
func (Nop) SecurityScore(float64)                   {}
func (Nop) InjectionAttempt(string, bool)           {}
func (Nop) DriftDimension(string, string, float64)  {}
func (Nop) DriftAlert(string)                       {}
func (Nop) RateLimited(string)                      {}
func (Nop) GuardrailTriggered(string, string)       {}
func (Nop) GuardrailBlocked(string)                 {}
func (Nop) ConversationStarted()                    {}
func (Nop) ConversationTurn(string)                 {}
func (Nop) ConversationEnded(time.Duration)         {}
func (Nop) QualityScore(string, float64)            {}
func (Nop) Tokens(string, int, int)                 {}
func (Nop) CostEUR(float64)                         {}
func (Nop) TrustIndex(string, float64)              {}
func (Nop) RiskyResponse(string, string)            {}
func (Nop) Hallucination(string)                    {}
func (Nop) AuditEvent(string, string)               {}
func (Nop) FeedbackReceived(int, string)            {}
func (Nop) Satisfaction(float64)                    {}

// Prometheus implements Recorder on top of prometheus collectors.
type Prometheus struct {
	requestsTotal      *prometheus.CounterVec
	requestErrorsTotal *prometheus.CounterVec
	latencySeconds     *prometheus.HistogramVec

	piiDetectedTotal   *prometheus.CounterVec
	piiBlockedTotal    prometheus.Counter
	securityScore      prometheus.Histogram
	injectionAttempts  *prometheus.CounterVec
	driftScore         *prometheus.GaugeVec
	driftAlertsTotal   *prometheus.CounterVec
	rateLimitTotal     *prometheus.CounterVec
	guardrailTriggers  *prometheus.CounterVec
	guardrailBlocked   *prometheus.CounterVec
	activeConvs        prometheus.Gauge
	convTurnsTotal     *prometheus.CounterVec
	convDuration       prometheus.Histogram
	qualityScore       *prometheus.HistogramVec
	tokensInputTotal   *prometheus.CounterVec
	tokensOutputTotal  *prometheus.CounterVec
	costEURTotal       prometheus.Counter
	trustIndex         *prometheus.GaugeVec
	riskyTotal         *prometheus.CounterVec
	hallucinationTotal *prometheus.CounterVec
	auditEventsTotal   *prometheus.CounterVec
	feedbackTotal      *prometheus.CounterVec
	satisfaction       prometheus.Gauge
}

// NewPrometheus creates the full metric set and registers it on reg.
func NewPrometheus(reg prometheus.Registerer) *Prometheus {
	p := &Prometheus{
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ai_requests_total", Help: "Total AI requests",
		}, []string{"scenario"}),
		requestErrorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ai_requests_error_total", Help: "Failed AI requests",
		}, []string{"scenario", "error_type"}),
		latencySeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ai_latency_seconds",
			Help:    "Response latency",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
		}, []string{"scenario"}),
		piiDetectedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ai_pii_detected_total", Help: "PII detected in prompts",
		}, []string{"pii_type"}),
		piiBlockedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ai_pii_blocked_requests_total", Help: "Requests blocked due to PII",
		}),
		securityScore: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "ai_prompt_security_score",
			Help:    "Prompt security score distribution",
			Buckets: []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1.0},
		}),
		injectionAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ai_prompt_injection_attempts_total", Help: "Injection attempts",
		}, []string{"technique", "blocked"}),
		driftScore: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "ai_input_drift_score", Help: "Semantic drift score",
		}, []string{"scenario", "dimension"}),
		driftAlertsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ai_drift_alerts_total", Help: "Drift alerts triggered",
		}, []string{"severity"}),
		rateLimitTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ai_rate_limit_events_total", Help: "Rate limit events",
		}, []string{"reason"}),
		guardrailTriggers: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ai_guardrail_triggers_total", Help: "Guardrail activations",
		}, []string{"guardrail", "action"}),
		guardrailBlocked: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ai_guardrail_blocked_total", Help: "Requests blocked by guardrails",
		}, []string{"reason"}),
		activeConvs: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ai_active_conversations", Help: "Active conversations",
		}),
		convTurnsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ai_conversation_turns_total", Help: "Conversation turns",
		}, []string{"conversation_length"}),
		convDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "ai_conversation_duration_seconds",
			Help:    "Conversation duration",
			Buckets: []float64{10, 30, 60, 120, 300, 600, 1800, 3600},
		}),
		qualityScore: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ai_response_quality_score",
			Help:    "Quality score distribution",
			Buckets: []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1.0},
		}, []string{"scenario"}),
		tokensInputTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ai_tokens_input_total", Help: "Input tokens",
		}, []string{"model"}),
		tokensOutputTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ai_tokens_output_total", Help: "Output tokens",
		}, []string{"model"}),
		costEURTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ai_cost_estimated_eur_total", Help: "Total estimated cost EUR",
		}),
		trustIndex: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "ai_trust_index", Help: "Trust/compliance index",
		}, []string{"scenario"}),
		riskyTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ai_risky_responses_total", Help: "Risky responses",
		}, []string{"scenario", "risk_level"}),
		hallucinationTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ai_hallucination_events_total", Help: "Hallucination events",
		}, []string{"severity"}),
		auditEventsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ai_audit_events_total", Help: "Audit events",
		}, []string{"event_type", "severity"}),
		feedbackTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ai_user_feedback_total", Help: "User feedback received",
		}, []string{"rating", "category"}),
		satisfaction: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ai_user_satisfaction_score", Help: "Average user satisfaction (1-5)",
		}),
	}

	reg.MustRegister(
		p.requestsTotal, p.requestErrorsTotal, p.latencySeconds,
		p.piiDetectedTotal, p.piiBlockedTotal,
		p.securityScore, p.injectionAttempts,
		p.driftScore, p.driftAlertsTotal,
		p.rateLimitTotal,
		p.guardrailTriggers, p.guardrailBlocked,
		p.activeConvs, p.convTurnsTotal, p.convDuration,
		p.qualityScore, p.tokensInputTotal, p.tokensOutputTotal, p.costEURTotal,
		p.trustIndex, p.riskyTotal, p.hallucinationTotal,
		p.auditEventsTotal,
		p.feedbackTotal, p.satisfaction,
	)
	return p
}

func (p *Prometheus) RequestStarted(scenario string) {
	p.requestsTotal.WithLabelValues(scenario).Inc()
}

func (p *Prometheus) RequestError(scenario, errorType string) {
	p.requestErrorsTotal.WithLabelValues(scenario, errorType).Inc()
}

func (p *Prometheus) RequestLatency(scenario string, d time.Duration) {
	p.latencySeconds.WithLabelValues(scenario).Observe(d.Seconds())
}

func (p *Prometheus) PIIDetected(piiType string, count int) {
	p.piiDetectedTotal.WithLabelValues(piiType).Add(float64(count))
}

func (p *Prometheus) PIIBlocked() {
	p.piiBlockedTotal.Inc()
}

func (p *Prometheus) SecurityScore(score float64) {
	p.securityScore.Observe(score)
}

func (p *Prometheus) InjectionAttempt(technique string, blocked bool) {
	label := "false"
	if blocked {
		label = "true"
	}
	p.injectionAttempts.WithLabelValues(technique, label).Inc()
}

func (p *Prometheus) DriftDimension(scenario, dimension string, score float64) {
	p.driftScore.WithLabelValues(scenario, dimension).Set(score)
}

func (p *Prometheus) DriftAlert(severity string) {
	p.driftAlertsTotal.WithLabelValues(severity).Inc()
}

func (p *Prometheus) RateLimited(reason string) {
	p.rateLimitTotal.WithLabelValues(reason).Inc()
}

func (p *Prometheus) GuardrailTriggered(name, action string) {
	p.guardrailTriggers.WithLabelValues(name, action).Inc()
}

func (p *Prometheus) GuardrailBlocked(reason string) {
	p.guardrailBlocked.WithLabelValues(reason).Inc()
}

func (p *Prometheus) ConversationStarted() {
	p.activeConvs.Inc()
}

func (p *Prometheus) ConversationTurn(lengthBucket string) {
	p.convTurnsTotal.WithLabelValues(lengthBucket).Inc()
}

func (p *Prometheus) ConversationEnded(duration time.Duration) {
	p.convDuration.Observe(duration.Seconds())
	p.activeConvs.Dec()
}

func (p *Prometheus) QualityScore(scenario string, score float64) {
	p.qualityScore.WithLabelValues(scenario).Observe(score)
}

func (p *Prometheus) Tokens(model string, input, output int) {
	p.tokensInputTotal.WithLabelValues(model).Add(float64(input))
	p.tokensOutputTotal.WithLabelValues(model).Add(float64(output))
}

func (p *Prometheus) CostEUR(amount float64) {
	p.costEURTotal.Add(amount)
}

func (p *Prometheus) TrustIndex(scenario string, value float64) {
	p.trustIndex.WithLabelValues(scenario).Set(value)
}

func (p *Prometheus) RiskyResponse(scenario, riskLevel string) {
	p.riskyTotal.WithLabelValues(scenario, riskLevel).Inc()
}

func (p *Prometheus) Hallucination(severity string) {
	p.hallucinationTotal.WithLabelValues(severity).Inc()
}

func (p *Prometheus) AuditEvent(eventType, severity string) {
	p.auditEventsTotal.WithLabelValues(eventType, severity).Inc()
}

func (p *Prometheus) FeedbackReceived(rating int, category string) {
	p.feedbackTotal.WithLabelValues(ratingLabel(rating), category).Inc()
}

func (p *Prometheus) Satisfaction(average float64) {
	p.satisfaction.Set(average)
}

func ratingLabel(rating int) string {
	switch rating {
	case 1:
		return "1"
	case 2:
		return "2"
	case 3:
		return "3"
	case 4:
		return "4"
	case 5:
		return "5"
	default:
		return "other"
	}
}

var (
	_ Recorder = Nop{}
	_ Recorder = (*Prometheus)(nil)
)
