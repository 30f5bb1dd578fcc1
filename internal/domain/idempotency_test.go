package domain

import (
	"testing"
	"time"
)

func TestIdempotencyStatus(t *testing.T) {
	tests := []struct {
		status      IdempotencyStatus
		wantValid   bool
		wantSettled bool
	}{
		{IdempotencyStatusProcessing, true, false},
		{IdempotencyStatusDone, true, true},
		{IdempotencyStatusFailed, true, true},
		{IdempotencyStatus("stock_pending"), false, false},
	}

	for _, tc := range tests {
		t.Run(string(tc.status), func(t *testing.T) {
			if got := tc.status.Valid(); got != tc.wantValid {
				t.Fatalf("Valid()=%v, want %v", got, tc.wantValid)
			}
			if got := tc.status.Settled(); got != tc.wantSettled {
				t.Fatalf("Settled()=%v, want %v", got, tc.wantSettled)
			}
		})
	}
}

func TestIdempotencyRecord_ExpiredAtAndReleasable(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	rec := IdempotencyRecord{Key: "order-key", Status: IdempotencyStatusProcessing, TTLAt: now}

	if !rec.ExpiredAt(now) {
		t.Fatal("record must expire exactly at its TTL")
	}
	if rec.ExpiredAt(now.Add(-time.Second)) {
		t.Fatal("record must not expire before its TTL")
	}
	if !rec.Releasable() {
		t.Fatal("processing record must be releasable")
	}

	rec.Status = IdempotencyStatusFailed
	if rec.Releasable() {
		t.Fatal("cached rejection must not be releasable")
	}
}
