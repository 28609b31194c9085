package feedback

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Entry is one piece of user feedback tied to an earlier request.
type Entry struct {
	ID             string
	RequestID      string
	Rating         int // 1-5
	Category       string
	Comment        string
	ConversationID string
	CreatedAt      time.Time
}

// Store persists feedback entries.
type Store interface {
	Add(ctx context.Context, e Entry) error
	Count(ctx context.Context) (int, error)
	AverageRating(ctx context.Context) (float64, error)
}

// NewEntry fills in the id and timestamp for a feedback submission.
func NewEntry(requestID string, rating int, category, comment, conversationID string) Entry {
	return Entry{
		ID:             uuid.New().String(),
		RequestID:      requestID,
		Rating:         rating,
		Category:       category,
		Comment:        comment,
		ConversationID: conversationID,
		CreatedAt:      time.Now().UTC(),
	}
}

// MemoryStore keeps feedback for the process lifetime. Used when no
// Postgres DSN is configured.
type MemoryStore struct {
	mu      sync.Mutex
	entries []Entry
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Add(_ context.Context, e Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, e)
	return nil
}

func (s *MemoryStore) Count(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries), nil
}

func (s *MemoryStore) AverageRating(_ context.Context) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.entries) == 0 {
		return 0, nil
	}
	sum := 0
	for _, e := range s.entries {
		sum += e.Rating
	}
	return float64(sum) / float64(len(s.entries)), nil
}

// PostgresStore persists feedback to the sentry_feedback table.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Add(ctx context.Context, e Entry) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sentry_feedback
			(id, request_id, rating, category, comment, conversation_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, e.ID, e.RequestID, e.Rating, e.Category, e.Comment, e.ConversationID, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert feedback: %w", err)
	}
	return nil
}

func (s *PostgresStore) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sentry_feedback`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count feedback: %w", err)
	}
	return n, nil
}

func (s *PostgresStore) AverageRating(ctx context.Context) (float64, error) {
	var avg sql.NullFloat64
	err := s.db.QueryRowContext(ctx, `SELECT AVG(rating) FROM sentry_feedback`).Scan(&avg)
	if err != nil {
		return 0, fmt.Errorf("average rating: %w", err)
	}
	if !avg.Valid {
		return 0, nil
	}
	return avg.Float64, nil
}

var (
	_ Store = (*MemoryStore)(nil)
	_ Store = (*PostgresStore)(nil)
)
