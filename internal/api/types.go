package api

// --- POST /predict ---

// PredictRequest is the JSON body for POST /predict.
type PredictRequest struct {
	Prompt         string `json:"prompt"`
	Scenario       string `json:"scenario"`
	ConversationID string `json:"conversation_id,omitempty"`
	UserID         string `json:"user_id,omitempty"`
	ClientID       string `json:"client_id,omitempty"` // falls back to caller address
}

// PIIResp summarizes PII findings for the decision bundle.
type PIIResp struct {
	Count          int      `json:"count"`
	Types          []string `json:"types"`
	RedactedPrompt string   `json:"redacted_prompt,omitempty"`
}

// SecurityResp summarizes the prompt security assessment.
type SecurityResp struct {
	Score      float64  `json:"score"`
	IsSafe     bool     `json:"is_safe"`
	RiskLevel  string   `json:"risk_level"`
	Techniques []string `json:"techniques"`
}

// DriftResp summarizes the semantic drift assessment.
type DriftResp struct {
	Factor    float64 `json:"factor"`
	Alert     bool    `json:"alert"`
	OODDomain string  `json:"ood_domain,omitempty"`
}

// ConversationResp identifies the conversation and turn.
type ConversationResp struct {
	ID   string `json:"id"`
	Turn int    `json:"turn"`
}

// RiskResp is the composite risk decision.
type RiskResp struct {
	Flag       bool    `json:"flag"`
	Reason     string  `json:"reason"`
	AIActLevel string  `json:"ai_act_level"`
	TrustIndex float64 `json:"trust_index"`
}

// PredictResponse is the full decision bundle for an accepted request.
type PredictResponse struct {
	RequestID           string           `json:"request_id"`
	Allowed             bool             `json:"allowed"`
	TriggeredGuardrails []string         `json:"triggered_guardrails"`
	Warnings            []string         `json:"warnings"`
	PII                 PIIResp          `json:"pii"`
	Security            SecurityResp     `json:"security"`
	Drift               DriftResp        `json:"drift"`
	Conversation        ConversationResp `json:"conversation"`
	Risk                RiskResp         `json:"risk"`

	Scenario      string  `json:"scenario"`
	Mode          string  `json:"mode"`
	Answer        string  `json:"answer"`
	QualityScore  float64 `json:"quality_score"`
	Coherence     float64 `json:"coherence"`
	Hallucination bool    `json:"hallucination"`
	EstimatedCost float64 `json:"estimated_cost_eur"`
	LatencyMs     float64 `json:"latency_ms"`
	TokensInput   int     `json:"tokens_input"`
	TokensOutput  int     `json:"tokens_output"`
}

// BlockedResponse is returned with HTTP 403 when guardrails reject.
type BlockedResponse struct {
	Detail    string   `json:"detail"`
	RequestID string   `json:"request_id"`
	Triggered []string `json:"triggered"`
}

// --- POST /feedback ---

// FeedbackRequest is the JSON body for POST /feedback.
type FeedbackRequest struct {
	RequestID      string `json:"request_id"`
	Rating         int    `json:"rating"`
	Category       string `json:"category,omitempty"`
	Comment        string `json:"comment,omitempty"`
	ConversationID string `json:"conversation_id,omitempty"`
}

// FeedbackResponse acknowledges a stored feedback entry.
type FeedbackResponse struct {
	Success    bool   `json:"success"`
	Message    string `json:"message"`
	FeedbackID string `json:"feedback_id"`
}

// --- Conversations ---

// ConversationStateResp is the admin view of a conversation.
type ConversationStateResp struct {
	ConversationID  string  `json:"conversation_id"`
	UserID          string  `json:"user_id,omitempty"`
	Turns           int     `json:"turns"`
	DurationSeconds float64 `json:"duration_seconds"`
	TotalTokens     int     `json:"total_tokens"`
	AvgQuality      float64 `json:"avg_quality"`
}

// --- Guardrails admin ---

// GuardrailConfigRequest is the JSON body for PUT /guardrails/config.
type GuardrailConfigRequest struct {
	GuardrailName string `json:"guardrail_name"`
	Enabled       bool   `json:"enabled"`
}

// --- Misc ---

// HealthResponse reports service liveness.
type HealthResponse struct {
	Status              string `json:"status"`
	Version             string `json:"version"`
	Timestamp           string `json:"timestamp"`
	ActiveConversations int    `json:"active_conversations"`
}

// StatsResponse is the GET /stats snapshot.
type StatsResponse struct {
	Version             string          `json:"version"`
	ActiveConversations int             `json:"active_conversations"`
	FeedbackCount       int             `json:"feedback_count"`
	GuardrailsEnabled   int             `json:"guardrails_enabled"`
	RateLimit           RateLimitConfig `json:"rate_limit_config"`
}

// RateLimitConfig echoes the limiter configuration.
type RateLimitConfig struct {
	Requests      int `json:"requests"`
	WindowSeconds int `json:"window_seconds"`
}

// ErrorResp is a standard error response body.
type ErrorResp struct {
	Detail string `json:"detail"`
}
