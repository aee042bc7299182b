package access

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestEscalate(t *testing.T) {
	base := 30 * time.Second
	max := 2 * time.Minute

	tests := []struct {
		strikes int
		want    time.Duration
	}{
		{-1, 0},
		{0, 0},
		{1, 30 * time.Second},
		{2, 60 * time.Second},
		{3, 120 * time.Second},
		{4, 120 * time.Second},
		{64, 120 * time.Second},
		{math.MaxInt32, 120 * time.Second},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, Escalate(tt.strikes, base, max), "strikes=%d", tt.strikes)
	}
}

func TestEscalate_MonotonicAndBounded(t *testing.T) {
	base := 7 * time.Second
	max := 10 * time.Minute

	previous := time.Duration(0)
	for strikes := 1; strikes <= 200; strikes++ {
		d := Escalate(strikes, base, max)
		assert.GreaterOrEqual(t, d, previous)
		assert.LessOrEqual(t, d, max)
		previous = d
	}
	assert.Equal(t, max, previous)
}

func TestEscalate_CeilingBelowBase(t *testing.T) {
	assert.Equal(t, time.Minute, Escalate(3, time.Minute, time.Second))
}
