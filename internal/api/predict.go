package api

import (
	"errors"
	"net"
	"net/http"

	"github.com/halcyon-ai/sentry/internal/pipeline"
)

// handlePredict implements POST /predict: it runs the full detection and
// policy pipeline and returns the decision bundle, or 403 when guardrails
// block.
func (d *Dependencies) handlePredict(w http.ResponseWriter, r *http.Request) {
	var req PredictRequest
	if err := readJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResp{Detail: "Invalid JSON body"})
		return
	}

	clientID := req.ClientID
	if clientID == "" {
		clientID = clientAddr(r)
	}

	decision, err := d.Pipeline.Evaluate(r.Context(), pipeline.Input{
		Prompt:         req.Prompt,
		Scenario:       req.Scenario,
		ConversationID: req.ConversationID,
		UserID:         req.UserID,
		ClientID:       clientID,
	})
	if err != nil {
		var blocked *pipeline.BlockedError
		if errors.As(err, &blocked) {
			writeJSON(w, http.StatusForbidden, BlockedResponse{
				Detail:    "Request blocked by guardrails",
				RequestID: blocked.RequestID,
				Triggered: blocked.Triggered,
			})
			return
		}
		var invalid *pipeline.ValidationError
		if errors.As(err, &invalid) {
			writeJSON(w, http.StatusBadRequest, ErrorResp{Detail: invalid.Error()})
			return
		}
		writeJSON(w, http.StatusInternalServerError, ErrorResp{Detail: "internal error"})
		return
	}

	types := make([]string, 0, len(decision.PII))
	for _, c := range decision.PII.Categories() {
		types = append(types, string(c))
	}

	warnings := decision.Warnings
	if warnings == nil {
		warnings = []string{}
	}
	triggered := decision.Triggered
	if triggered == nil {
		triggered = []string{}
	}
	techniques := decision.Security.Techniques
	if techniques == nil {
		techniques = []string{}
	}

	writeJSON(w, http.StatusOK, PredictResponse{
		RequestID:           decision.RequestID,
		Allowed:             true,
		TriggeredGuardrails: triggered,
		Warnings:            warnings,
		PII: PIIResp{
			Count:          decision.PII.Count(),
			Types:          types,
			RedactedPrompt: decision.RedactedPrompt,
		},
		Security: SecurityResp{
			Score:      decision.Security.Score,
			IsSafe:     decision.Security.IsSafe,
			RiskLevel:  string(decision.Security.RiskLevel),
			Techniques: techniques,
		},
		Drift: DriftResp{
			Factor:    decision.Drift.DriftFactor,
			Alert:     decision.Drift.Alert,
			OODDomain: decision.Drift.OODDomain,
		},
		Conversation: ConversationResp{
			ID:   decision.ConversationID,
			Turn: decision.ConversationTurn,
		},
		Risk: RiskResp{
			Flag:       decision.Risk.Flag,
			Reason:     decision.Risk.Reason,
			AIActLevel: decision.Risk.AIActLevel,
			TrustIndex: decision.Risk.TrustIndex,
		},
		Scenario:      decision.Scenario,
		Mode:          decision.Mode,
		Answer:        decision.Answer,
		QualityScore:  decision.Quality,
		Coherence:     decision.Coherence,
		Hallucination: decision.Hallucination,
		EstimatedCost: decision.CostEUR,
		LatencyMs:     decision.LatencyMs,
		TokensInput:   decision.TokensInput,
		TokensOutput:  decision.TokensOutput,
	})
}

// clientAddr strips the port from the remote address for rate limit keying.
func clientAddr(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
