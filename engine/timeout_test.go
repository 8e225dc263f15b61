package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAdaptiveTimeout(t *testing.T) {
	tests := []struct {
		budget time.Duration
		want   time.Duration
	}{
		{0, 6500 * time.Millisecond},
		{150 * time.Millisecond, 6500 * time.Millisecond},
		{time.Second, 6500 * time.Millisecond},
		{4 * time.Second, 11 * time.Second},
		{20 * time.Second, 35 * time.Second},
		{30 * time.Second, 45 * time.Second},
		{100 * time.Second, 115 * time.Second},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, AdaptiveTimeout(tt.budget), "budget %v", tt.budget)
	}
}

func TestAdaptiveTimeout_Monotonic(t *testing.T) {
	prev := AdaptiveTimeout(0)
	for b := 100 * time.Millisecond; b <= 60*time.Second; b += 100 * time.Millisecond {
		cur := AdaptiveTimeout(b)
		assert.GreaterOrEqual(t, cur, prev)
		assert.GreaterOrEqual(t, cur, b+5*time.Second)
		prev = cur
	}
}

func TestLimit(t *testing.T) {
	l := Limit{}.normalized()
	assert.Equal(t, DefaultMoveTime, l.Time)
	assert.Equal(t, "movetime 1000ms", l.String())

	d := Limit{Time: 2 * time.Second, Depth: 12}.normalized()
	assert.Equal(t, "depth 12", d.String())
	assert.Equal(t, 8*time.Second, d.Timeout())
}
