package models

import "testing"

func TestPaymentIsRefundable(t *testing.T) {
	tests := []struct {
		name     string
		status   string
		amount   int64
		refunded int64
		want     bool
	}{
		{"paid with full headroom", PaymentStatusPaid, 2900, 0, true},
		{"partial with headroom", PaymentStatusRefundedPartial, 2900, 1000, true},
		{"partial fully consumed", PaymentStatusRefundedPartial, 2900, 2900, false},
		{"fully refunded", PaymentStatusRefunded, 2900, 2900, false},
		{"pending", PaymentStatusPending, 2900, 0, false},
		{"failed", PaymentStatusFailed, 2900, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &Payment{Status: tt.status, Amount: tt.amount, RefundedAmount: tt.refunded}
			if got := p.IsRefundable(); got != tt.want {
				t.Fatalf("IsRefundable() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPaymentRemainingRefundable(t *testing.T) {
	p := &Payment{Amount: 1_000_000, RefundedAmount: 400_000}
	if got := p.RemainingRefundable(); got != 600_000 {
		t.Fatalf("RemainingRefundable() = %d, want 600000", got)
	}
}
