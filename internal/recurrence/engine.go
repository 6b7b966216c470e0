// Package recurrence expands a recurring meeting rule into concrete start
// instants.
package recurrence

import (
	"errors"
	"fmt"
	"iter"
	"strings"
	"time"
)

// HardCap bounds every expansion. Rules whose end date would produce more
// occurrences are rejected by Validate.
const HardCap = 366

// Pattern names a supported repetition.
type Pattern string

const (
	PatternDaily    Pattern = "daily"
	PatternWeekly   Pattern = "weekly"
	PatternBiweekly Pattern = "biweekly"
	PatternMonthly  Pattern = "monthly"
)

var (
	// ErrInvalidPattern indicates the pattern is not one of the supported values.
	ErrInvalidPattern = errors.New("recurrence: invalid pattern")
	// ErrInvalidInterval indicates an interval that disagrees with the pattern.
	ErrInvalidInterval = errors.New("recurrence: interval does not match pattern")
	// ErrUnbounded indicates neither an end date nor an occurrence limit was given.
	ErrUnbounded = errors.New("recurrence: rule requires an end date or occurrence limit")
	// ErrInvalidWindow indicates the end date precedes the first occurrence.
	ErrInvalidWindow = errors.New("recurrence: end date precedes first occurrence")
	// ErrInvalidLimit indicates an occurrence limit outside 1..HardCap.
	ErrInvalidLimit = errors.New("recurrence: occurrence limit out of range")
	// ErrTooManyOccurrences indicates an end date that lies beyond HardCap
	// occurrences when no smaller occurrence limit applies.
	ErrTooManyOccurrences = errors.New("recurrence: end date yields too many occurrences")
)

// ParsePattern accepts a pattern name in any case.
func ParsePattern(value string) (Pattern, error) {
	p := Pattern(strings.ToLower(strings.TrimSpace(value)))
	if _, _, ok := p.step(); !ok {
		return "", fmt.Errorf("%w: %q", ErrInvalidPattern, value)
	}
	return p, nil
}

// Interval returns the fixed step of the pattern: days for day based patterns
// and months for PatternMonthly.
func (p Pattern) Interval() int {
	days, months, _ := p.step()
	if months > 0 {
		return months
	}
	return days
}

func (p Pattern) step() (days, months int, ok bool) {
	switch p {
	case PatternDaily:
		return 1, 0, true
	case PatternWeekly:
		return 7, 0, true
	case PatternBiweekly:
		return 14, 0, true
	case PatternMonthly:
		return 0, 1, true
	default:
		return 0, 0, false
	}
}

// Rule describes a recurring series. Until is inclusive. Location controls the
// calendar used for day and month arithmetic and defaults to UTC.
type Rule struct {
	Pattern        Pattern
	Interval       int
	First          time.Time
	Until          *time.Time
	MaxOccurrences int
	Location       *time.Location
}

// Validate checks the rule without expanding it.
func (r Rule) Validate() error {
	if _, _, ok := r.Pattern.step(); !ok {
		return fmt.Errorf("%w: %q", ErrInvalidPattern, r.Pattern)
	}
	if r.Interval != 0 && r.Interval != r.Pattern.Interval() {
		return fmt.Errorf("%w: %s repeats every %d, got %d", ErrInvalidInterval, r.Pattern, r.Pattern.Interval(), r.Interval)
	}
	if r.MaxOccurrences < 0 || r.MaxOccurrences > HardCap {
		return fmt.Errorf("%w: %d", ErrInvalidLimit, r.MaxOccurrences)
	}
	if r.Until == nil && r.MaxOccurrences == 0 {
		return ErrUnbounded
	}
	if r.Until != nil && r.Until.Before(r.First) {
		return ErrInvalidWindow
	}
	if r.Until != nil && r.MaxOccurrences == 0 {
		if capped := r.occurrence(HardCap); !capped.After(*r.Until) {
			return fmt.Errorf("%w: more than %d before %s", ErrTooManyOccurrences, HardCap, r.Until.UTC().Format(time.RFC3339))
		}
	}
	return nil
}

// occurrence returns the k-th instant of the series counting from zero, in
// the rule's location.
func (r Rule) occurrence(k int) time.Time {
	days, months, _ := r.Pattern.step()
	loc := r.Location
	if loc == nil {
		loc = time.UTC
	}
	base := r.First.In(loc)
	if months > 0 {
		return addMonthsClamped(base, k*months)
	}
	return base.AddDate(0, 0, k*days)
}

// All yields occurrence instants in UTC, in chronological order. The sequence
// is finite and can be ranged over more than once. Rules with an unknown
// pattern yield nothing.
func (r Rule) All() iter.Seq[time.Time] {
	return func(yield func(time.Time) bool) {
		if _, _, ok := r.Pattern.step(); !ok {
			return
		}

		limit := HardCap
		if r.MaxOccurrences > 0 && r.MaxOccurrences < limit {
			limit = r.MaxOccurrences
		}

		for k := 0; k < limit; k++ {
			next := r.occurrence(k)
			if r.Until != nil && next.After(*r.Until) {
				return
			}
			if !yield(next.UTC()) {
				return
			}
		}
	}
}

// Expand validates r and collects every occurrence.
func Expand(r Rule) ([]time.Time, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	var out []time.Time
	for instant := range r.All() {
		out = append(out, instant)
	}
	return out, nil
}

// addMonthsClamped moves base forward by n calendar months keeping its day of
// month and time of day, clamping to the last day of shorter months.
func addMonthsClamped(base time.Time, n int) time.Time {
	year, month, day := base.Date()
	hour, minute, second := base.Clock()
	loc := base.Location()

	firstOfTarget := time.Date(year, month+time.Month(n), 1, 0, 0, 0, 0, loc)
	lastDay := firstOfTarget.AddDate(0, 1, -1).Day()
	if day > lastDay {
		day = lastDay
	}
	return time.Date(firstOfTarget.Year(), firstOfTarget.Month(), day, hour, minute, second, base.Nanosecond(), loc)
}
