package storage

import "time"

// AuditWriter is the interface for persisting audit records.
// Write() must NEVER block the caller.
type AuditWriter interface {
	Write(event *AuditEvent)
	Close()
}

// AuditEvent is a single structured decision record.
type AuditEvent struct {
	Timestamp time.Time
	EventType string
	RequestID string
	TraceID   string
	Severity  string
	Payload   map[string]any
}

// PromptPreviewLength is the max chars of prompt kept in audit payloads.
const PromptPreviewLength = 200

// TruncatePrompt returns the first N characters (runes) of a prompt for
// audit storage, with an ellipsis marker when cut. It never splits a
// multi-byte UTF-8 character.
func TruncatePrompt(prompt string, maxLen int) string {
	runes := []rune(prompt)
	if len(runes) <= maxLen {
		return prompt
	}
	return string(runes[:maxLen]) + "..."
}
