package money

import (
	"errors"
	"math"
	"testing"

	"github.com/quipay/quipay/internal/types"
)

func TestCheckedAdd(t *testing.T) {
	tests := []struct {
		name     string
		a, b     int64
		want     int64
		overflow bool
	}{
		{"simple", 100, 200, 300, false},
		{"zero", 0, 0, 0, false},
		{"negative", 500, -200, 300, false},
		{"max plus zero", math.MaxInt64, 0, math.MaxInt64, false},
		{"overflow high", math.MaxInt64, 1, 0, true},
		{"overflow low", math.MinInt64, -1, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CheckedAdd(tt.a, tt.b)
			if tt.overflow {
				if !errors.Is(err, types.ErrOverflow) {
					t.Fatalf("expected overflow, got %v (value %d)", err, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Fatalf("got %d, want %d", got, tt.want)
			}
		})
	}
}

func TestCheckedMul(t *testing.T) {
	tests := []struct {
		name     string
		a, b     int64
		want     int64
		overflow bool
	}{
		{"simple", 1000, 1000, 1_000_000, false},
		{"by zero", math.MaxInt64, 0, 0, false},
		{"by one", math.MaxInt64, 1, math.MaxInt64, false},
		{"rate times duration", 1000, 1000, 1_000_000, false},
		{"overflow", math.MaxInt64, 2, 0, true},
		{"overflow large rate", math.MaxInt64 / 2, 3, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CheckedMul(tt.a, tt.b)
			if tt.overflow {
				if !errors.Is(err, types.ErrOverflow) {
					t.Fatalf("expected overflow, got %v (value %d)", err, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Fatalf("got %d, want %d", got, tt.want)
			}
		})
	}
}

func TestProrata(t *testing.T) {
	tests := []struct {
		name                     string
		total, elapsed, duration int64
		want                     int64
	}{
		{"quarter", 1_000_000, 250, 1000, 250_000},
		{"half", 1_000_000, 500, 1000, 500_000},
		{"full", 1_000_000, 1000, 1000, 1_000_000},
		{"past end", 1_000_000, 5000, 1000, 1_000_000},
		{"before start", 1_000_000, 0, 1000, 0},
		{"negative elapsed", 1_000_000, -5, 1000, 0},
		{"floor division", 100, 1, 3, 33},
		{"floor near full", 100, 2, 3, 66},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Prorata(tt.total, tt.elapsed, tt.duration); got != tt.want {
				t.Fatalf("got %d, want %d", got, tt.want)
			}
		})
	}
}

// The intermediate product here exceeds int64 range by a wide margin; the
// result must still come back exact.
func TestProrataWideIntermediate(t *testing.T) {
	total := int64(math.MaxInt64)
	duration := int64(1 << 40)
	elapsed := duration / 2

	got := Prorata(total, elapsed, duration)
	want := total / 2
	if got != want {
		t.Fatalf("got %d, want %d", got, want)
	}

	if got := Prorata(total, duration-1, duration); got > total {
		t.Fatalf("prorata exceeded total: %d > %d", got, total)
	}
}
