package billing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCompute(t *testing.T) {
	t0 := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	cases := []struct {
		name  string
		price int64
		d     time.Duration
		want  int64
	}{
		{"ten minutes hits the one hour floor", 10, 10 * time.Minute, 10},
		{"sixty one minutes rounds up to two hours", 10, 61 * time.Minute, 20},
		{"exactly one hour", 10, time.Hour, 10},
		{"zero length still bills an hour", 10, 0, 10},
		{"two hours ten minutes at fifteen", 15, 2*time.Hour + 10*time.Minute, 45},
		{"forty five minutes at twenty", 20, 45 * time.Minute, 20},
		{"one nanosecond past the hour", 100, time.Hour + time.Nanosecond, 200},
		{"free lot", 0, 5 * time.Hour, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Compute(tc.price, t0, t0.Add(tc.d)))
		})
	}
}

func TestBilledHoursNegativeDuration(t *testing.T) {
	t0 := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	assert.Equal(t, int64(1), BilledHours(t0, t0.Add(-time.Hour)))
}

func TestHours(t *testing.T) {
	t0 := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	assert.InDelta(t, 1.5, Hours(t0, t0.Add(90*time.Minute)), 1e-9)
	assert.Equal(t, 0.0, Hours(t0, t0.Add(-time.Minute)))
}
