package domain

import (
	"testing"
	"time"
)

func TestInsightCache_Live(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	live := &InsightCache{Status: CacheCompleted, ExpiresAt: now.Add(time.Hour)}
	if !live.Live(now) {
		t.Fatalf("completed + unexpired should be live")
	}

	expired := &InsightCache{Status: CacheCompleted, ExpiresAt: now}
	if expired.Live(now) {
		t.Fatalf("entry expiring exactly now should not be live")
	}

	pending := &InsightCache{Status: CachePending, ExpiresAt: now.Add(time.Hour)}
	if pending.Live(now) {
		t.Fatalf("non-completed entry should never be live")
	}
}

func TestQueueTask_Claimable_And_Terminal(t *testing.T) {
	cases := []struct {
		name      string
		task      QueueTask
		claimable bool
		terminal  bool
	}{
		{"queued", QueueTask{Status: TaskQueued, MaxAttempts: 3}, true, false},
		{"processing", QueueTask{Status: TaskProcessing, Attempts: 1, MaxAttempts: 3}, false, false},
		{"completed", QueueTask{Status: TaskCompleted, Attempts: 1, MaxAttempts: 3}, false, true},
		{"failed with retries left", QueueTask{Status: TaskFailed, Attempts: 1, MaxAttempts: 3}, true, false},
		{"failed exhausted", QueueTask{Status: TaskFailed, Attempts: 3, MaxAttempts: 3}, false, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.task.Claimable(); got != tc.claimable {
				t.Fatalf("Claimable() = %v; want %v", got, tc.claimable)
			}
			if got := tc.task.Terminal(); got != tc.terminal {
				t.Fatalf("Terminal() = %v; want %v", got, tc.terminal)
			}
		})
	}
}

func TestQueueTask_ProcessingSeconds(t *testing.T) {
	start := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	end := start.Add(2500 * time.Millisecond)

	var task QueueTask
	if task.ProcessingSeconds() != nil {
		t.Fatalf("expected nil before the task starts")
	}
	task.StartedAt = &start
	if task.ProcessingSeconds() != nil {
		t.Fatalf("expected nil while still running")
	}
	task.CompletedAt = &end
	got := task.ProcessingSeconds()
	if got == nil || *got != 2.5 {
		t.Fatalf("ProcessingSeconds() = %v; want 2.5", got)
	}
}

func TestCacheKeyForDebts(t *testing.T) {
	d1 := Debt{ID: "d1", CurrentBalance: 500, InterestRate: 19.9, MinimumPayment: 25, DebtType: DebtCreditCard}
	d2 := Debt{ID: "d2", CurrentBalance: 12000, InterestRate: 8.5, MinimumPayment: 350, DebtType: DebtVehicleLoan}

	key := CacheKeyForDebts("u1", []Debt{d1, d2})
	if len(key) != 64 {
		t.Fatalf("expected hex sha256 key, got %q", key)
	}

	// Deterministic and insensitive to slice order.
	if again := CacheKeyForDebts("u1", []Debt{d2, d1}); again != key {
		t.Fatalf("key should not depend on debt order: %q vs %q", key, again)
	}

	// Sensitive to the owner and to analysis-relevant fields.
	if other := CacheKeyForDebts("u2", []Debt{d1, d2}); other == key {
		t.Fatalf("key should differ per user")
	}
	d1.CurrentBalance = 400
	if changed := CacheKeyForDebts("u1", []Debt{d1, d2}); changed == key {
		t.Fatalf("key should change when a balance changes")
	}

	// Fields outside the signature must not affect the key.
	d1.CurrentBalance = 500
	d1.Name = "renamed"
	d1.Lender = "someone else"
	if same := CacheKeyForDebts("u1", []Debt{d1, d2}); same != key {
		t.Fatalf("key should ignore cosmetic fields: %q vs %q", key, same)
	}

	if empty := CacheKeyForDebts("u1", nil); empty == key || len(empty) != 64 {
		t.Fatalf("empty portfolio should still produce a distinct key, got %q", empty)
	}
}
