package ratelimit

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/halcyon-ai/sentry/internal/metrics"
)

func TestLimiter_AllowsUpToMax(t *testing.T) {
	l := New(5, time.Minute, metrics.Nop{})

	for i := 0; i < 5; i++ {
		if !l.IsAllowed("client-a") {
			t.Fatalf("request %d unexpectedly denied", i+1)
		}
	}
	if l.IsAllowed("client-a") {
		t.Error("request above the limit was allowed")
	}
}

func TestLimiter_DeniedRequestsDoNotConsumeQuota(t *testing.T) {
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	l := New(2, time.Minute, metrics.Nop{})
	l.now = func() time.Time { return base }

	l.IsAllowed("c")
	l.IsAllowed("c")
	for i := 0; i < 10; i++ {
		if l.IsAllowed("c") {
			t.Fatalf("denied request %d was allowed", i)
		}
	}

	// Once the two recorded timestamps age out, the full quota is back.
	base = base.Add(61 * time.Second)
	if !l.IsAllowed("c") || !l.IsAllowed("c") {
		t.Error("expected full quota after window expiry")
	}
}

func TestLimiter_SlidingWindow(t *testing.T) {
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	l := New(2, time.Minute, metrics.Nop{})
	l.now = func() time.Time { return base }

	l.IsAllowed("c") // t=0
	base = base.Add(30 * time.Second)
	l.IsAllowed("c") // t=30

	base = base.Add(15 * time.Second) // t=45, both still in window
	if l.IsAllowed("c") {
		t.Error("expected denial with 2 requests in the last 60s")
	}

	base = base.Add(20 * time.Second) // t=65, first request aged out
	if !l.IsAllowed("c") {
		t.Error("expected allowance after oldest request left the window")
	}
}

func TestLimiter_ClientsAreIndependent(t *testing.T) {
	l := New(1, time.Minute, metrics.Nop{})

	if !l.IsAllowed("a") {
		t.Fatal("first request for a denied")
	}
	if l.IsAllowed("a") {
		t.Error("second request for a allowed")
	}
	if !l.IsAllowed("b") {
		t.Error("first request for b denied; quotas must be per client")
	}
}

func TestLimiter_Defaults(t *testing.T) {
	l := New(0, 0, metrics.Nop{})
	if l.maxRequests != DefaultMaxRequests {
		t.Errorf("expected default max %d, got %d", DefaultMaxRequests, l.maxRequests)
	}
	if l.window != DefaultWindow {
		t.Errorf("expected default window %s, got %s", DefaultWindow, l.window)
	}
}

func TestLimiter_Concurrent(t *testing.T) {
	l := New(1000, time.Minute, metrics.Nop{})

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			id := fmt.Sprintf("client-%d", g%4)
			for i := 0; i < 100; i++ {
				l.IsAllowed(id)
			}
		}(g)
	}
	wg.Wait()
}

func BenchmarkLimiter(b *testing.B) {
	l := New(DefaultMaxRequests, DefaultWindow, metrics.Nop{})

	b.RunParallel(func(pb *testing.PB) {
		i := 0
		for pb.Next() {
			l.IsAllowed(fmt.Sprintf("client-%d", i%16))
			i++
		}
	})
}
