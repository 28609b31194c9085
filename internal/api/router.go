package api

import (
	"net/http"
	"time"

	"github.com/halcyon-ai/sentry/internal/audit"
	"github.com/halcyon-ai/sentry/internal/auth"
	"github.com/halcyon-ai/sentry/internal/conversation"
	"github.com/halcyon-ai/sentry/internal/feedback"
	"github.com/halcyon-ai/sentry/internal/guardrails"
	"github.com/halcyon-ai/sentry/internal/metrics"
	"github.com/halcyon-ai/sentry/internal/pipeline"
	"go.uber.org/zap"
)

// Dependencies holds shared state injected into all HTTP handlers.
type Dependencies struct {
	Pipeline *pipeline.Pipeline
	Guard    *guardrails.Engine
	Tracker  *conversation.Tracker
	Feedback feedback.Store
	Trail    *audit.Trail
	Verifier *auth.KeyVerifier
	Recorder metrics.Recorder
	Logger   *zap.Logger

	Version         string
	RateLimitMax    int
	RateLimitWindow time.Duration
	MetricsHandler  http.Handler // promhttp; nil disables /metrics
}

// NewRouter builds the HTTP mux with all routes wired up.
func NewRouter(deps *Dependencies) http.Handler {
	mux := http.NewServeMux()

	// Hot path (auth required when a key verifier is configured)
	mux.HandleFunc("POST /predict", deps.authMiddleware(deps.handlePredict))
	mux.HandleFunc("POST /feedback", deps.authMiddleware(deps.handleFeedback))

	// Administrative operations (outside the hot path)
	mux.HandleFunc("GET /conversations/{conversation_id}", deps.handleGetConversation)
	mux.HandleFunc("DELETE /conversations/{conversation_id}", deps.handleEndConversation)
	mux.HandleFunc("GET /guardrails", deps.handleListGuardrails)
	mux.HandleFunc("PUT /guardrails/config", deps.handleConfigureGuardrail)
	mux.HandleFunc("GET /stats", deps.handleStats)

	// Health & metrics
	mux.HandleFunc("GET /health", deps.handleHealth)
	if deps.MetricsHandler != nil {
		mux.Handle("GET /metrics", deps.MetricsHandler)
	}

	return corsMiddleware(requestLogging(mux, deps.Logger))
}
