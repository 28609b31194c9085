package feedback

import (
	"context"
	"math"
	"sync"
	"testing"
)

func TestNewEntry(t *testing.T) {
	e := NewEntry("req-1", 4, "accuracy", "pretty good", "conv-1")
	if e.ID == "" {
		t.Error("expected generated id")
	}
	if e.CreatedAt.IsZero() {
		t.Error("expected timestamp")
	}
	if e.RequestID != "req-1" || e.Rating != 4 || e.Category != "accuracy" {
		t.Errorf("fields lost: %+v", e)
	}

	other := NewEntry("req-1", 4, "accuracy", "pretty good", "conv-1")
	if other.ID == e.ID {
		t.Error("expected unique ids per entry")
	}
}

func TestMemoryStore_Empty(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	n, err := s.Count(ctx)
	if err != nil || n != 0 {
		t.Errorf("Count = %d, %v; want 0, nil", n, err)
	}
	avg, err := s.AverageRating(ctx)
	if err != nil || avg != 0 {
		t.Errorf("AverageRating = %v, %v; want 0, nil", avg, err)
	}
}

func TestMemoryStore_AddAndAggregate(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	for _, rating := range []int{5, 3, 4} {
		if err := s.Add(ctx, NewEntry("req", rating, "", "", "")); err != nil {
			t.Fatalf("Add: %v", err)
		}
	}

	n, err := s.Count(ctx)
	if err != nil || n != 3 {
		t.Errorf("Count = %d, %v; want 3, nil", n, err)
	}
	avg, err := s.AverageRating(ctx)
	if err != nil || math.Abs(avg-4.0) > 1e-9 {
		t.Errorf("AverageRating = %v, %v; want 4.0, nil", avg, err)
	}
}

func TestMemoryStore_Concurrent(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 25; i++ {
				_ = s.Add(ctx, NewEntry("req", 3, "", "", ""))
			}
		}()
	}
	wg.Wait()

	n, err := s.Count(ctx)
	if err != nil || n != 200 {
		t.Errorf("Count = %d, %v; want 200, nil", n, err)
	}
}
