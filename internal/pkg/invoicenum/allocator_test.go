package invoicenum

import (
	"context"
	"errors"
	"testing"
	"time"

	"gorm.io/gorm"
)

type scriptedStore struct {
	failures int
	calls    int
	number   string
}

func (s *scriptedStore) TryAllocate(ctx context.Context, invoiceID uint, day string, force bool) (string, error) {
	s.calls++
	if s.calls <= s.failures {
		return "", gorm.ErrDuplicatedKey
	}
	return s.number, nil
}

func TestFormatNumber(t *testing.T) {
	tests := []struct {
		day     string
		counter int
		want    string
	}{
		{"20260830", 1, "INV-20260830-0001"},
		{"20260830", 42, "INV-20260830-0042"},
		{"20261231", 9999, "INV-20261231-9999"},
		{"20270101", 10000, "INV-20270101-10000"},
	}

	for _, tt := range tests {
		if got := FormatNumber(tt.day, tt.counter); got != tt.want {
			t.Fatalf("FormatNumber(%q, %d) = %q, want %q", tt.day, tt.counter, got, tt.want)
		}
	}
}

func TestDayKeyUsesUTC(t *testing.T) {
	loc := time.FixedZone("UTC+9", 9*3600)
	// 02:30 on Aug 31 in UTC+9 is still Aug 30 in UTC.
	issuedAt := time.Date(2026, 8, 31, 2, 30, 0, 0, loc)
	if got := DayKey(issuedAt); got != "20260830" {
		t.Fatalf("DayKey = %q, want 20260830", got)
	}
}

func TestAllocateRetriesOnCollision(t *testing.T) {
	store := &scriptedStore{failures: 3, number: "INV-20260830-0004"}
	alloc := NewAllocator(store)

	got, err := alloc.Allocate(context.Background(), 7, time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC), false)
	if err != nil {
		t.Fatalf("Allocate returned error: %v", err)
	}
	if got != "INV-20260830-0004" {
		t.Fatalf("Allocate = %q, want INV-20260830-0004", got)
	}
	if store.calls != 4 {
		t.Fatalf("expected 4 attempts, got %d", store.calls)
	}
}

func TestAllocateExhaustsAfterMaxAttempts(t *testing.T) {
	store := &scriptedStore{failures: 100}
	alloc := NewAllocator(store)

	_, err := alloc.Allocate(context.Background(), 7, time.Now(), false)
	if !errors.Is(err, ErrAllocationExhausted) {
		t.Fatalf("expected ErrAllocationExhausted, got %v", err)
	}
	if store.calls != maxAttempts {
		t.Fatalf("expected %d attempts, got %d", maxAttempts, store.calls)
	}
}

func TestAllocateStopsOnUnrelatedError(t *testing.T) {
	alloc := NewAllocator(failingStore{})

	_, err := alloc.Allocate(context.Background(), 404, time.Now(), false)
	if !errors.Is(err, ErrInvoiceNotFound) {
		t.Fatalf("expected ErrInvoiceNotFound, got %v", err)
	}
}

type failingStore struct{}

func (failingStore) TryAllocate(ctx context.Context, invoiceID uint, day string, force bool) (string, error) {
	return "", ErrInvoiceNotFound
}
