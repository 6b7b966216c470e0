package recurrence

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func utc(year int, month time.Month, day, hour int) time.Time {
	return time.Date(year, month, day, hour, 0, 0, 0, time.UTC)
}

func ptr(t time.Time) *time.Time { return &t }

func TestExpandWeeklyByCount(t *testing.T) {
	t.Parallel()

	got, err := Expand(Rule{
		Pattern:        PatternWeekly,
		Interval:       7,
		First:          utc(2024, time.January, 1, 10),
		MaxOccurrences: 4,
	})
	require.NoError(t, err)
	assert.Equal(t, []time.Time{
		utc(2024, time.January, 1, 10),
		utc(2024, time.January, 8, 10),
		utc(2024, time.January, 15, 10),
		utc(2024, time.January, 22, 10),
	}, got)
}

func TestExpandMonthlyClampsToMonthEnd(t *testing.T) {
	t.Parallel()

	got, err := Expand(Rule{
		Pattern: PatternMonthly,
		First:   utc(2024, time.January, 31, 10),
		Until:   ptr(utc(2024, time.April, 30, 10)),
	})
	require.NoError(t, err)
	assert.Equal(t, []time.Time{
		utc(2024, time.January, 31, 10),
		utc(2024, time.February, 29, 10),
		utc(2024, time.March, 31, 10),
		utc(2024, time.April, 30, 10),
	}, got)
}

func TestExpandStopsAtWhicheverBoundComesFirst(t *testing.T) {
	t.Parallel()

	first := utc(2024, time.March, 1, 9)

	byDate, err := Expand(Rule{
		Pattern:        PatternDaily,
		First:          first,
		Until:          ptr(utc(2024, time.March, 3, 9)),
		MaxOccurrences: 10,
	})
	require.NoError(t, err)
	assert.Len(t, byDate, 3)

	byCount, err := Expand(Rule{
		Pattern:        PatternBiweekly,
		First:          first,
		Until:          ptr(utc(2025, time.March, 1, 9)),
		MaxOccurrences: 2,
	})
	require.NoError(t, err)
	assert.Equal(t, []time.Time{first, utc(2024, time.March, 15, 9)}, byCount)
}

func TestExpandUntilExcludesLaterInstantSameDay(t *testing.T) {
	t.Parallel()

	got, err := Expand(Rule{
		Pattern: PatternDaily,
		First:   utc(2024, time.March, 1, 9),
		Until:   ptr(utc(2024, time.March, 2, 8)),
	})
	require.NoError(t, err)
	assert.Equal(t, []time.Time{utc(2024, time.March, 1, 9)}, got)
}

func TestExpandNeverTruncatesDateBoundedRules(t *testing.T) {
	t.Parallel()

	first := utc(2024, time.January, 1, 10)

	_, err := Expand(Rule{Pattern: PatternDaily, First: first, Until: ptr(utc(2025, time.December, 31, 10))})
	require.ErrorIs(t, err, ErrTooManyOccurrences)

	// 2024 is a leap year: exactly HardCap daily occurrences.
	got, err := Expand(Rule{Pattern: PatternDaily, First: first, Until: ptr(utc(2024, time.December, 31, 10))})
	require.NoError(t, err)
	require.Len(t, got, HardCap)
	assert.Equal(t, utc(2024, time.December, 31, 10), got[len(got)-1])

	// An occurrence limit still wins over a distant end date.
	got, err = Expand(Rule{Pattern: PatternDaily, First: first, Until: ptr(utc(2025, time.December, 31, 10)), MaxOccurrences: 5})
	require.NoError(t, err)
	assert.Len(t, got, 5)

	// Two years of weekly meetings fit under the cap.
	got, err = Expand(Rule{Pattern: PatternWeekly, First: first, Until: ptr(utc(2025, time.December, 31, 10))})
	require.NoError(t, err)
	assert.Len(t, got, 105)
}

func TestValidate(t *testing.T) {
	t.Parallel()

	first := utc(2024, time.March, 1, 9)

	cases := []struct {
		name string
		rule Rule
		want error
	}{
		{name: "unbounded", rule: Rule{Pattern: PatternDaily, First: first}, want: ErrUnbounded},
		{name: "bad pattern", rule: Rule{Pattern: "yearly", First: first, MaxOccurrences: 2}, want: ErrInvalidPattern},
		{name: "interval mismatch", rule: Rule{Pattern: PatternWeekly, Interval: 3, First: first, MaxOccurrences: 2}, want: ErrInvalidInterval},
		{name: "limit too high", rule: Rule{Pattern: PatternDaily, First: first, MaxOccurrences: HardCap + 1}, want: ErrInvalidLimit},
		{name: "negative limit", rule: Rule{Pattern: PatternDaily, First: first, MaxOccurrences: -1}, want: ErrInvalidLimit},
		{name: "until before first", rule: Rule{Pattern: PatternDaily, First: first, Until: ptr(first.Add(-time.Hour))}, want: ErrInvalidWindow},
		{name: "until beyond cap", rule: Rule{Pattern: PatternDaily, First: first, Until: ptr(first.AddDate(1, 0, 1))}, want: ErrTooManyOccurrences},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.ErrorIs(t, tc.rule.Validate(), tc.want)
		})
	}

	require.NoError(t, Rule{Pattern: PatternBiweekly, Interval: 14, First: first, MaxOccurrences: 3}.Validate())
	require.NoError(t, Rule{Pattern: PatternMonthly, Interval: 1, First: first, MaxOccurrences: 3}.Validate())
}

func TestAllIsLazyRestartableAndCapped(t *testing.T) {
	t.Parallel()

	rule := Rule{Pattern: PatternDaily, First: utc(2024, time.January, 1, 0)}

	count := 0
	for range rule.All() {
		count++
	}
	assert.Equal(t, HardCap, count)

	var firstPass, secondPass []time.Time
	for instant := range rule.All() {
		firstPass = append(firstPass, instant)
		if len(firstPass) == 3 {
			break
		}
	}
	for instant := range rule.All() {
		secondPass = append(secondPass, instant)
		if len(secondPass) == 3 {
			break
		}
	}
	assert.Equal(t, firstPass, secondPass)
}

func TestAllKeepsWallClockInLocation(t *testing.T) {
	t.Parallel()

	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	// 10:00 New York before and after the March DST change.
	got, err := Expand(Rule{
		Pattern:        PatternWeekly,
		First:          time.Date(2024, time.March, 4, 10, 0, 0, 0, ny),
		MaxOccurrences: 2,
		Location:       ny,
	})
	require.NoError(t, err)
	assert.Equal(t, utc(2024, time.March, 4, 15), got[0])
	assert.Equal(t, utc(2024, time.March, 11, 14), got[1])
}

func TestParsePattern(t *testing.T) {
	t.Parallel()

	p, err := ParsePattern(" Weekly ")
	require.NoError(t, err)
	assert.Equal(t, PatternWeekly, p)
	assert.Equal(t, 7, p.Interval())
	assert.Equal(t, 1, PatternMonthly.Interval())

	_, err = ParsePattern("hourly")
	require.ErrorIs(t, err, ErrInvalidPattern)
}
