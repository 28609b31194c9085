package audit

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/google/uuid"
	"github.com/halcyon-ai/sentry/internal/metrics"
	"github.com/halcyon-ai/sentry/internal/storage"
)

// Severity levels for audit records.
const (
	SeverityInfo    = "info"
	SeverityWarning = "warning"
	SeverityHigh    = "high"
	SeverityError   = "error"
)

// Trail emits structured decision records to an append-only sink and keeps
// the audit counter in step, as one logical operation per event.
type Trail struct {
	writer   storage.AuditWriter
	recorder metrics.Recorder
	now      func() time.Time
}

// NewTrail creates a trail over the given sink.
func NewTrail(writer storage.AuditWriter, recorder metrics.Recorder) *Trail {
	return &Trail{
		writer:   writer,
		recorder: recorder,
		now:      time.Now,
	}
}

// NewRequestID yields a fresh unique identifier per evaluation.
func NewRequestID() string {
	return uuid.New().String()
}

// TraceID derives a deterministic, non-reversible fixed-length digest from
// a request id.
func TraceID(requestID string) string {
	sum := sha256.Sum256([]byte(requestID))
	return hex.EncodeToString(sum[:])[:32]
}

// LogEvent appends one structured record to the sink and increments the
// audit counter.
func (t *Trail) LogEvent(eventType, requestID string, payload map[string]any, severity string) {
	t.writer.Write(&storage.AuditEvent{
		Timestamp: t.now().UTC(),
		EventType: eventType,
		RequestID: requestID,
		TraceID:   TraceID(requestID),
		Severity:  severity,
		Payload:   payload,
	})
	t.recorder.AuditEvent(eventType, severity)
}
