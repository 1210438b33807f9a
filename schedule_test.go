package digestbus

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestScheduleNext(t *testing.T) {
	s := Schedule{Hour: 20, Minute: 0, BiweeklyDays: 14}
	now := time.Date(2024, time.March, 4, 9, 30, 45, 0, time.UTC)

	tests := []struct {
		name      string
		frequency string
		want      time.Time
	}{
		{"daily", FrequencyDaily, time.Date(2024, time.March, 5, 20, 0, 0, 0, time.UTC)},
		{"weekly", FrequencyWeekly, time.Date(2024, time.March, 11, 20, 0, 0, 0, time.UTC)},
		{"biweekly", FrequencyBiweekly, time.Date(2024, time.March, 18, 20, 0, 0, 0, time.UTC)},
		{"unknown falls back to weekly", "hourly", time.Date(2024, time.March, 11, 20, 0, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, s.Next(now, tt.frequency))
		})
	}
}

func TestScheduleNextPinsDeliveryHour(t *testing.T) {
	s := Schedule{Hour: 17, Minute: 8, BiweeklyDays: 3}

	// Whatever time of day the triggering run executed, delivery lands on
	// the configured hour and minute.
	for _, hour := range []int{0, 6, 17, 23} {
		now := time.Date(2024, time.March, 4, hour, 59, 59, 0, time.UTC)
		next := s.Next(now, FrequencyBiweekly)
		assert.Equal(t, time.Date(2024, time.March, 7, 17, 8, 0, 0, time.UTC), next)
	}
}
