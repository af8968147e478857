package recurrence

import (
	"fmt"
	"testing"
	"time"

	"github.com/Freeeeeet/lesson_scheduler/internal/apperrors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	t.Parallel()

	start := utc(2025, time.January, 6, 9, 0)
	end := start.Add(time.Hour)

	tests := []struct {
		name     string
		text     string
		freq     Frequency
		interval int
		until    *time.Time
	}{
		{name: "empty is single", text: "", freq: FrequencyNone},
		{name: "weekly", text: "FREQ=WEEKLY", freq: FrequencyWeekly, interval: 1},
		{name: "lower case", text: "freq=daily;interval=2", freq: FrequencyDaily, interval: 2},
		{name: "rrule prefix", text: "RRULE:FREQ=MONTHLY;INTERVAL=3", freq: FrequencyMonthly, interval: 3},
		{
			name:     "with dtstart line",
			text:     "DTSTART:20250106T090000Z\nRRULE:FREQ=WEEKLY;INTERVAL=1;UNTIL=20250127T000000Z",
			freq:     FrequencyWeekly,
			interval: 1,
			until:    ptr(utc(2025, time.January, 27, 0, 0)),
		},
		{name: "yearly", text: "FREQ=YEARLY;UNTIL=20300106T090000Z", freq: FrequencyYearly, interval: 1, until: ptr(utc(2030, time.January, 6, 9, 0))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec, err := Parse(tt.text, start, end)
			require.NoError(t, err)

			assert.Equal(t, tt.freq, spec.Frequency)
			assert.Equal(t, tt.interval, spec.Interval)
			assert.True(t, spec.AnchorStart.Equal(start))
			assert.True(t, spec.AnchorEnd.Equal(end))
			if tt.until == nil {
				assert.Nil(t, spec.Until)
			} else {
				require.NotNil(t, spec.Until)
				assert.True(t, tt.until.Equal(*spec.Until), "until %s", spec.Until)
			}
		})
	}
}

func TestParse_Rejects(t *testing.T) {
	t.Parallel()

	start := utc(2025, time.January, 6, 9, 0)

	tests := []struct {
		name string
		text string
	}{
		{name: "no freq", text: "INTERVAL=2"},
		{name: "garbage", text: "every monday"},
		{name: "hourly", text: "FREQ=HOURLY"},
		{name: "count", text: "FREQ=DAILY;COUNT=5"},
		{name: "byday", text: "FREQ=WEEKLY;BYDAY=MO,WE"},
		{name: "bymonthday", text: "FREQ=MONTHLY;BYMONTHDAY=-1"},
		{name: "two rules", text: "RRULE:FREQ=DAILY\nRRULE:FREQ=WEEKLY"},
		{name: "until before start", text: "FREQ=DAILY;UNTIL=20241231T000000Z"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.text, start, start.Add(time.Hour))
			require.Error(t, err)
			assert.True(t, apperrors.IsInvalidRecurrence(err), "got %v", err)
		})
	}
}

func TestSpecRRuleRoundTrip(t *testing.T) {
	t.Parallel()

	start := utc(2025, time.January, 6, 9, 0)
	end := start.Add(90 * time.Minute)

	specs := []Spec{
		{AnchorStart: start, AnchorEnd: end, Frequency: FrequencyDaily, Interval: 1},
		{AnchorStart: start, AnchorEnd: end, Frequency: FrequencyDaily},
		{AnchorStart: start, AnchorEnd: end, Frequency: FrequencyWeekly, Interval: 2, Until: ptr(utc(2025, time.June, 30, 0, 0))},
		{AnchorStart: start, AnchorEnd: end, Frequency: FrequencyMonthly, Interval: 1, Until: ptr(utc(2026, time.January, 6, 9, 0))},
		{AnchorStart: start, AnchorEnd: end, Frequency: FrequencyYearly, Interval: 4},
	}

	for _, spec := range specs {
		t.Run(fmt.Sprintf("%s/%d", spec.Frequency, spec.Interval), func(t *testing.T) {
			text, err := spec.RRule()
			require.NoError(t, err)
			assert.Contains(t, text, "FREQ="+spec.Frequency.String())

			parsed, err := Parse(text, start, end)
			require.NoError(t, err)
			assert.Equal(t, spec.Frequency, parsed.Frequency)
			// Parse нормализует интервал: 0 и 1 дают одно и то же правило
			assert.Equal(t, spec.Step(), parsed.Interval)
			if spec.Until == nil {
				assert.Nil(t, parsed.Until)
			} else {
				require.NotNil(t, parsed.Until)
				assert.True(t, spec.Until.Equal(*parsed.Until))
			}
		})
	}
}

func TestSpecRRule_Single(t *testing.T) {
	t.Parallel()

	start := utc(2025, time.January, 6, 9, 0)
	text, err := Spec{AnchorStart: start, AnchorEnd: start.Add(time.Hour)}.RRule()

	require.NoError(t, err)
	assert.Empty(t, text)
}

func TestParseFrequency(t *testing.T) {
	t.Parallel()

	for _, f := range []Frequency{FrequencyNone, FrequencyDaily, FrequencyWeekly, FrequencyMonthly, FrequencyYearly} {
		got, err := ParseFrequency(f.String())
		require.NoError(t, err)
		assert.Equal(t, f, got)
	}

	got, err := ParseFrequency(" weekly ")
	require.NoError(t, err)
	assert.Equal(t, FrequencyWeekly, got)

	_, err = ParseFrequency("FORTNIGHTLY")
	assert.True(t, apperrors.IsInvalidRecurrence(err))
}
