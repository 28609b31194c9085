package conversation

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/halcyon-ai/sentry/internal/metrics"
)

// ErrNotFound is returned by administrative reads for unknown conversation
// ids. The hot-path operations never return it; they no-op instead.
var ErrNotFound = errors.New("conversation not found")

// DefaultIdleTimeout is how long a conversation may sit idle before
// CleanupStale reaps it.
const DefaultIdleTimeout = 30 * time.Minute

// State holds the mutable per-conversation turn state.
type State struct {
	ID            string
	UserID        string
	Turns         int
	StartTime     time.Time
	LastActivity  time.Time
	TotalTokens   int
	QualityScores []float64
	Topics        []string
}

// AvgQuality is the mean of the recorded quality samples, 0 if none.
func (s *State) AvgQuality() float64 {
	if len(s.QualityScores) == 0 {
		return 0
	}
	sum := 0.0
	for _, q := range s.QualityScores {
		sum += q
	}
	return sum / float64(len(s.QualityScores))
}

// Tracker maintains multi-turn conversation state in memory. All operations
// are safe for concurrent use; updates for the same id are applied in
// arrival order under the tracker lock.
type Tracker struct {
	mu            sync.Mutex
	conversations map[string]*State
	idleTimeout   time.Duration
	now           func() time.Time
	recorder      metrics.Recorder
}

// NewTracker creates a tracker. A zero idleTimeout falls back to the default.
func NewTracker(idleTimeout time.Duration, recorder metrics.Recorder) *Tracker {
	if idleTimeout <= 0 {
		idleTimeout = DefaultIdleTimeout
	}
	return &Tracker{
		conversations: make(map[string]*State),
		idleTimeout:   idleTimeout,
		now:           time.Now,
		recorder:      recorder,
	}
}

// GetOrCreate returns the existing conversation (refreshing its activity
// timestamp) or lazily creates one. An empty id gets a fresh uuid. The
// returned snapshot is a copy; mutation happens only through RecordTurn.
func (t *Tracker) GetOrCreate(id, userID string) State {
	if id == "" {
		id = uuid.New().String()
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if conv, ok := t.conversations[id]; ok {
		conv.LastActivity = t.now()
		return *conv
	}

	now := t.now()
	conv := &State{
		ID:           id,
		UserID:       userID,
		StartTime:    now,
		LastActivity: now,
	}
	t.conversations[id] = conv
	t.recorder.ConversationStarted()
	return *conv
}

// RecordTurn increments the turn count and accumulates tokens, quality and
// topic. Silently no-ops on an unknown id.
func (t *Tracker) RecordTurn(id string, quality float64, tokens int, topic string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	conv, ok := t.conversations[id]
	if !ok {
		return
	}

	conv.Turns++
	conv.TotalTokens += tokens
	conv.QualityScores = append(conv.QualityScores, quality)
	if topic != "" {
		conv.Topics = append(conv.Topics, topic)
	}

	t.recorder.ConversationTurn(turnBucket(conv.Turns))
}

// Get returns a snapshot of a conversation for administrative reads.
func (t *Tracker) Get(id string) (State, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	conv, ok := t.conversations[id]
	if !ok {
		return State{}, ErrNotFound
	}
	return *conv, nil
}

// End removes a conversation and reports its duration. No-op on unknown id.
func (t *Tracker) End(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.endLocked(id)
}

func (t *Tracker) endLocked(id string) {
	conv, ok := t.conversations[id]
	if !ok {
		return
	}
	t.recorder.ConversationEnded(t.now().Sub(conv.StartTime))
	delete(t.conversations, id)
}

// CleanupStale ends every conversation idle longer than the timeout. The
// tracker never schedules this itself; an external ticker must call it.
func (t *Tracker) CleanupStale() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	var stale []string
	for id, conv := range t.conversations {
		if now.Sub(conv.LastActivity) > t.idleTimeout {
			stale = append(stale, id)
		}
	}
	for _, id := range stale {
		t.endLocked(id)
	}
	return len(stale)
}

// Active returns the number of live conversations.
func (t *Tracker) Active() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.conversations)
}

func turnBucket(turns int) string {
	switch {
	case turns == 1:
		return "1"
	case turns <= 5:
		return "2-5"
	case turns <= 10:
		return "6-10"
	default:
		return "10+"
	}
}
