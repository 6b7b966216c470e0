package datetime

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gusfragger/webot/internal/timezone"
)

func newConverter(t *testing.T) *Converter {
	t.Helper()
	return NewConverter(timezone.MustNewResolver(16))
}

func TestConverterToUTC(t *testing.T) {
	t.Parallel()

	c := newConverter(t)

	got, err := c.ToUTC(WallClock{Year: 2024, Month: time.June, Day: 4, Hour: 14, Minute: 0}, "Europe/Helsinki")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, time.June, 4, 11, 0, 0, 0, time.UTC), got)

	got, err = c.ToUTC(WallClock{Year: 2024, Month: time.January, Day: 10, Hour: 9}, "EST")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, time.January, 10, 14, 0, 0, 0, time.UTC), got)
}

func TestConverterToUTCRejectsImpossibleDates(t *testing.T) {
	t.Parallel()

	c := newConverter(t)

	_, err := c.ToUTC(WallClock{Year: 2023, Month: time.February, Day: 29, Hour: 10}, "UTC")
	require.ErrorIs(t, err, ErrInvalidDateTime)

	_, err = c.ToUTC(WallClock{Year: 2024, Month: time.March, Day: 1, Hour: 24}, "UTC")
	require.ErrorIs(t, err, ErrInvalidDateTime)

	_, err = c.ToUTC(WallClock{Year: 2024, Month: time.March, Day: 1, Hour: 10}, "Nowhere/Land")
	require.ErrorIs(t, err, timezone.ErrInvalidTimezone)
}

func TestConverterToUTCString(t *testing.T) {
	t.Parallel()

	c := newConverter(t)

	for _, value := range []string{"2024-03-01T10:30", "2024-03-01 10:30", "2024-03-01T10:30:00"} {
		got, err := c.ToUTCString(value, "Asia/Tokyo")
		require.NoError(t, err, value)
		assert.Equal(t, time.Date(2024, time.March, 1, 1, 30, 0, 0, time.UTC), got, value)
	}

	_, err := c.ToUTCString("yesterday at noon", "UTC")
	require.ErrorIs(t, err, ErrInvalidDateTime)
	_, err = c.ToUTCString("2024-02-30T10:00", "UTC")
	require.ErrorIs(t, err, ErrInvalidDateTime)
}

func TestConverterRoundTrip(t *testing.T) {
	t.Parallel()

	c := newConverter(t)
	instants := []time.Time{
		time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, time.July, 15, 23, 59, 59, 123456789, time.UTC),
		time.Date(2024, time.March, 10, 12, 0, 0, 0, time.UTC),
		time.Date(2024, time.February, 29, 6, 45, 0, 0, time.UTC),
	}
	zones := []string{"UTC", "America/New_York", "Asia/Kolkata", "Australia/Lord_Howe", "Pacific/Chatham", "Europe/London"}

	for _, zone := range zones {
		for _, instant := range instants {
			local, err := c.ToZone(instant, zone)
			require.NoError(t, err)
			back, err := c.ToUTC(local, zone)
			require.NoError(t, err)
			assert.True(t, instant.Equal(back), "zone %s instant %s got %s", zone, instant, back)
		}
	}
}

func TestConverterFormatDisplayMatchesToZone(t *testing.T) {
	t.Parallel()

	c := newConverter(t)
	instant := time.Date(2024, time.June, 4, 11, 0, 0, 0, time.UTC)

	text, err := c.FormatDisplay(instant, "Europe/Helsinki", "")
	require.NoError(t, err)
	assert.Equal(t, "Tue, 04 Jun 2024 14:00 EEST", text)

	local, err := c.ToZone(instant, "Europe/Helsinki")
	require.NoError(t, err)
	text, err = c.FormatDisplay(instant, "Europe/Helsinki", "2006-01-02T15:04:05")
	require.NoError(t, err)
	assert.Equal(t, local.String(), text)
}

func TestConverterSpringForwardGap(t *testing.T) {
	t.Parallel()

	c := newConverter(t)

	// 02:30 does not exist in New York on 2024-03-10; it resolves to 03:30 EDT.
	got, err := c.ToUTC(WallClock{Year: 2024, Month: time.March, Day: 10, Hour: 2, Minute: 30}, "America/New_York")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, time.March, 10, 7, 30, 0, 0, time.UTC), got)

	local, err := c.ToZone(got, "America/New_York")
	require.NoError(t, err)
	assert.Equal(t, WallClock{Year: 2024, Month: time.March, Day: 10, Hour: 3, Minute: 30}, local)

	// London skips 01:00-02:00 on 2024-03-31.
	got, err = c.ToUTC(WallClock{Year: 2024, Month: time.March, Day: 31, Hour: 1, Minute: 15}, "Europe/London")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, time.March, 31, 1, 15, 0, 0, time.UTC), got)
}

func TestConverterFallBackTakesLaterOffset(t *testing.T) {
	t.Parallel()

	c := newConverter(t)

	// 01:30 happens twice in New York on 2024-11-03; the EST reading wins.
	got, err := c.ToUTC(WallClock{Year: 2024, Month: time.November, Day: 3, Hour: 1, Minute: 30}, "America/New_York")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, time.November, 3, 6, 30, 0, 0, time.UTC), got)

	// Either side of the repeated hour is unambiguous.
	got, err = c.ToUTC(WallClock{Year: 2024, Month: time.November, Day: 3, Hour: 0, Minute: 30}, "America/New_York")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, time.November, 3, 4, 30, 0, 0, time.UTC), got)

	got, err = c.ToUTC(WallClock{Year: 2024, Month: time.November, Day: 3, Hour: 2, Minute: 30}, "America/New_York")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, time.November, 3, 7, 30, 0, 0, time.UTC), got)

	// Lord Howe repeats half an hour on 2024-04-07.
	got, err = c.ToUTC(WallClock{Year: 2024, Month: time.April, Day: 7, Hour: 1, Minute: 45}, "Australia/Lord_Howe")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, time.April, 6, 15, 15, 0, 0, time.UTC), got)
}

func TestParseUserDateTime(t *testing.T) {
	t.Parallel()

	c := newConverter(t)

	parsed, err := c.ParseUserDateTime("2024-06-04", "9:05", "helsinki")
	require.NoError(t, err)
	assert.Equal(t, "Europe/Helsinki", parsed.Zone)
	assert.Equal(t, WallClock{Year: 2024, Month: time.June, Day: 4, Hour: 9, Minute: 5}, parsed.Local)
	assert.Equal(t, time.Date(2024, time.June, 4, 6, 5, 0, 0, time.UTC), parsed.UTC)

	failures := []struct {
		name        string
		date, clock string
		zone        string
	}{
		{name: "short date", date: "2024-6-4", clock: "09:00", zone: "UTC"},
		{name: "slashes", date: "2024/06/04", clock: "09:00", zone: "UTC"},
		{name: "hour out of range", date: "2024-06-04", clock: "24:00", zone: "UTC"},
		{name: "minute out of range", date: "2024-06-04", clock: "10:60", zone: "UTC"},
		{name: "seconds not allowed", date: "2024-06-04", clock: "10:00:00", zone: "UTC"},
		{name: "calendar invalid", date: "2024-02-30", clock: "10:00", zone: "UTC"},
		{name: "unknown zone", date: "2024-06-04", clock: "10:00", zone: "Gondor"},
	}
	for _, tc := range failures {
		t.Run(tc.name, func(t *testing.T) {
			_, err := c.ParseUserDateTime(tc.date, tc.clock, tc.zone)
			require.ErrorIs(t, err, ErrDateParsingFailed)
		})
	}
}

func TestWallClockString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "2024-06-04T09:05:00", WallClock{Year: 2024, Month: time.June, Day: 4, Hour: 9, Minute: 5}.String())
	assert.Equal(t, "2024-06-04T09:05:00.5", WallClock{Year: 2024, Month: time.June, Day: 4, Hour: 9, Minute: 5, Nanosecond: 500000000}.String())
}
