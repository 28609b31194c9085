package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/halcyon-ai/sentry/internal/conversation"
	"github.com/halcyon-ai/sentry/internal/feedback"
	"go.uber.org/zap"
)

// handleGetConversation implements GET /conversations/{conversation_id}.
func (d *Dependencies) handleGetConversation(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("conversation_id")

	state, err := d.Tracker.Get(id)
	if errors.Is(err, conversation.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, ErrorResp{Detail: "Conversation not found"})
		return
	}

	writeJSON(w, http.StatusOK, ConversationStateResp{
		ConversationID:  state.ID,
		UserID:          state.UserID,
		Turns:           state.Turns,
		DurationSeconds: time.Since(state.StartTime).Seconds(),
		TotalTokens:     state.TotalTokens,
		AvgQuality:      state.AvgQuality(),
	})
}

// handleEndConversation implements DELETE /conversations/{conversation_id}.
func (d *Dependencies) handleEndConversation(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("conversation_id")

	if _, err := d.Tracker.Get(id); errors.Is(err, conversation.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, ErrorResp{Detail: "Conversation not found"})
		return
	}

	d.Tracker.End(id)
	writeJSON(w, http.StatusOK, map[string]string{
		"status":          "ended",
		"conversation_id": id,
	})
}

// handleListGuardrails implements GET /guardrails.
func (d *Dependencies) handleListGuardrails(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"guardrails": d.Guard.List(),
	})
}

// handleConfigureGuardrail implements PUT /guardrails/config.
func (d *Dependencies) handleConfigureGuardrail(w http.ResponseWriter, r *http.Request) {
	var req GuardrailConfigRequest
	if err := readJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResp{Detail: "Invalid JSON body"})
		return
	}
	if req.GuardrailName == "" {
		writeJSON(w, http.StatusBadRequest, ErrorResp{Detail: "guardrail_name is required"})
		return
	}

	if err := d.Guard.SetEnabled(req.GuardrailName, req.Enabled); err != nil {
		writeJSON(w, http.StatusNotFound, ErrorResp{Detail: "Guardrail '" + req.GuardrailName + "' not found"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "updated",
		"guardrail": req.GuardrailName,
		"enabled":   req.Enabled,
	})
}

// handleFeedback implements POST /feedback.
func (d *Dependencies) handleFeedback(w http.ResponseWriter, r *http.Request) {
	var req FeedbackRequest
	if err := readJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResp{Detail: "Invalid JSON body"})
		return
	}
	if req.RequestID == "" {
		writeJSON(w, http.StatusBadRequest, ErrorResp{Detail: "request_id is required"})
		return
	}
	if req.Rating < 1 || req.Rating > 5 {
		writeJSON(w, http.StatusBadRequest, ErrorResp{Detail: "rating must be between 1 and 5"})
		return
	}

	category := req.Category
	if category == "" {
		category = "general"
	}

	entry := feedback.NewEntry(req.RequestID, req.Rating, category, req.Comment, req.ConversationID)
	if err := d.Feedback.Add(r.Context(), entry); err != nil {
		d.Logger.Error("feedback store failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, ErrorResp{Detail: "failed to store feedback"})
		return
	}

	d.Recorder.FeedbackReceived(req.Rating, category)
	if avg, err := d.Feedback.AverageRating(r.Context()); err == nil {
		d.Recorder.Satisfaction(avg)
	}

	d.Trail.LogEvent("user_feedback", req.RequestID, map[string]any{
		"feedback_id": entry.ID,
		"rating":      req.Rating,
		"category":    category,
	}, "info")

	writeJSON(w, http.StatusOK, FeedbackResponse{
		Success:    true,
		Message:    "Feedback recorded successfully",
		FeedbackID: entry.ID,
	})
}

// handleStats implements GET /stats.
func (d *Dependencies) handleStats(w http.ResponseWriter, r *http.Request) {
	count, err := d.Feedback.Count(r.Context())
	if err != nil {
		d.Logger.Warn("feedback count failed", zap.Error(err))
	}

	writeJSON(w, http.StatusOK, StatsResponse{
		Version:             d.Version,
		ActiveConversations: d.Tracker.Active(),
		FeedbackCount:       count,
		GuardrailsEnabled:   d.Guard.EnabledCount(),
		RateLimit: RateLimitConfig{
			Requests:      d.RateLimitMax,
			WindowSeconds: int(d.RateLimitWindow.Seconds()),
		},
	})
}

// handleHealth implements GET /health.
func (d *Dependencies) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:              "ok",
		Version:             d.Version,
		Timestamp:           time.Now().UTC().Format(time.RFC3339),
		ActiveConversations: d.Tracker.Active(),
	})
}
