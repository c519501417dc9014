package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNextMidnightUTC(t *testing.T) {
	tests := []struct {
		name string
		now  time.Time
		want time.Time
	}{
		{
			"mid-day",
			time.Date(2026, 3, 1, 15, 30, 0, 0, time.UTC),
			time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC),
		},
		{
			"exactly midnight rolls to next day",
			time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
			time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC),
		},
		{
			"just before midnight",
			time.Date(2026, 3, 1, 23, 59, 59, 0, time.UTC),
			time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC),
		},
		{
			"month boundary",
			time.Date(2026, 2, 28, 12, 0, 0, 0, time.UTC),
			time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		},
		{
			"non-UTC input normalized",
			time.Date(2026, 3, 1, 22, 0, 0, 0, time.FixedZone("UTC+3", 3*3600)),
			time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NextMidnightUTC(tt.now)
			assert.Equal(t, tt.want, got)
			assert.True(t, got.After(tt.now.UTC()))
		})
	}
}
