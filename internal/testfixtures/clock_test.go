package testfixtures

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestClockDefaultsToReferenceTime(t *testing.T) {
	t.Parallel()

	clock := NewClock(time.Time{})
	assert.Equal(t, ReferenceTime(), clock.Now())
	assert.Equal(t, time.Monday, clock.Now().Weekday())
}

func TestClockAdvanceAndSet(t *testing.T) {
	t.Parallel()

	tokyo := time.FixedZone("JST", 9*3600)
	start := time.Date(2024, time.March, 14, 18, 0, 0, 0, tokyo)
	clock := NewClock(start)
	assert.Equal(t, time.UTC, clock.Now().Location())

	assert.True(t, clock.Advance(90*time.Minute).Equal(start.Add(90*time.Minute)))

	clock.Set(start.Add(2 * time.Hour))
	now := clock.NowFunc()
	assert.True(t, now().Equal(start.Add(2*time.Hour)))

	clock.Advance(time.Minute)
	assert.True(t, now().Equal(start.Add(2*time.Hour+time.Minute)))
}
