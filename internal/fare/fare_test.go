package fare

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestCompute(t *testing.T) {
	tests := []struct {
		name        string
		farePerSeat string
		seatCount   int
		expected    string
	}{
		{"single seat", "150.00", 1, "150.00"},
		{"multiple seats", "150.00", 4, "600.00"},
		{"fractional fare", "12.75", 3, "38.25"},
		{"rounds half to even down", "0.125", 1, "0.12"},
		{"rounds half to even up", "0.135", 1, "0.14"},
		{"large count", "99.99", 50, "4999.50"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fare := decimal.RequireFromString(tt.farePerSeat)
			got := Compute(fare, tt.seatCount)
			assert.True(t, got.Equal(decimal.RequireFromString(tt.expected)),
				"Compute(%s, %d) = %s, want %s", tt.farePerSeat, tt.seatCount, got, tt.expected)
		})
	}
}

func TestComputeDeterministic(t *testing.T) {
	fare := decimal.RequireFromString("42.50")
	first := Compute(fare, 7)
	for i := 0; i < 100; i++ {
		assert.True(t, first.Equal(Compute(fare, 7)))
	}
}
