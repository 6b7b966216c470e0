// Package datetime converts between zone-local wall clocks and UTC instants.
package datetime

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// DefaultDisplayLayout renders instants for chat messages.
const DefaultDisplayLayout = "Mon, 02 Jan 2006 15:04 MST"

var (
	// ErrInvalidDateTime is returned when a wall clock value is malformed or
	// names a calendar date that does not exist.
	ErrInvalidDateTime = errors.New("datetime: invalid date time")
	// ErrDateParsingFailed is returned by ParseUserDateTime for any failure.
	ErrDateParsingFailed = errors.New("datetime: date parsing failed")
)

var (
	userDatePattern  = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	userClockPattern = regexp.MustCompile(`^([01]?\d|2[0-3]):[0-5]\d$`)

	wallClockLayouts = []string{
		"2006-01-02T15:04:05.999999999",
		"2006-01-02T15:04",
		"2006-01-02 15:04:05.999999999",
		"2006-01-02 15:04",
	}
)

// ZoneLoader resolves zone names. *timezone.Resolver satisfies it.
type ZoneLoader interface {
	Normalize(input string) (string, error)
	Location(zone string) (*time.Location, error)
}

// WallClock is a calendar date and time of day with no zone attached.
type WallClock struct {
	Year       int
	Month      time.Month
	Day        int
	Hour       int
	Minute     int
	Second     int
	Nanosecond int
}

// WallClockOf reads the wall clock fields of t in its own location.
func WallClockOf(t time.Time) WallClock {
	return WallClock{
		Year:       t.Year(),
		Month:      t.Month(),
		Day:        t.Day(),
		Hour:       t.Hour(),
		Minute:     t.Minute(),
		Second:     t.Second(),
		Nanosecond: t.Nanosecond(),
	}
}

// ParseWallClock accepts "YYYY-MM-DDTHH:MM[:SS]" with either a "T" or a space
// between date and time.
func ParseWallClock(value string) (WallClock, error) {
	trimmed := strings.TrimSpace(value)
	for _, layout := range wallClockLayouts {
		if parsed, err := time.Parse(layout, trimmed); err == nil {
			return WallClockOf(parsed), nil
		}
	}
	return WallClock{}, fmt.Errorf("%w: %q", ErrInvalidDateTime, value)
}

// Validate rejects fields that time.Date would silently normalize.
func (w WallClock) Validate() error {
	probe := time.Date(w.Year, w.Month, w.Day, w.Hour, w.Minute, w.Second, w.Nanosecond, time.UTC)
	if WallClockOf(probe) != w {
		return fmt.Errorf("%w: %s does not exist", ErrInvalidDateTime, w)
	}
	return nil
}

// In interprets the wall clock in loc.
func (w WallClock) In(loc *time.Location) time.Time {
	return time.Date(w.Year, w.Month, w.Day, w.Hour, w.Minute, w.Second, w.Nanosecond, loc)
}

func (w WallClock) String() string {
	s := fmt.Sprintf("%04d-%02d-%02dT%02d:%02d:%02d", w.Year, int(w.Month), w.Day, w.Hour, w.Minute, w.Second)
	if w.Nanosecond != 0 {
		s += "." + strings.TrimRight(fmt.Sprintf("%09d", w.Nanosecond), "0")
	}
	return s
}

// Parsed is the result of ParseUserDateTime.
type Parsed struct {
	Local WallClock
	UTC   time.Time
	Zone  string
}

// Converter translates wall clocks and instants through a ZoneLoader.
type Converter struct {
	zones ZoneLoader
}

// NewConverter returns a Converter backed by zones.
func NewConverter(zones ZoneLoader) *Converter {
	return &Converter{zones: zones}
}

func (c *Converter) location(zone string) (*time.Location, error) {
	canonical, err := c.zones.Normalize(zone)
	if err != nil {
		return nil, err
	}
	return c.zones.Location(canonical)
}

// ToUTC interprets local in zone. A wall clock repeated by a fall-back
// transition takes the later offset. One skipped by a spring-forward gap is
// read with the offset in force before the gap, landing just after it
// (02:30 in a 02:00-03:00 gap becomes 03:30).
func (c *Converter) ToUTC(local WallClock, zone string) (time.Time, error) {
	if err := local.Validate(); err != nil {
		return time.Time{}, err
	}
	loc, err := c.location(zone)
	if err != nil {
		return time.Time{}, err
	}
	return resolveWallClock(local, loc).UTC(), nil
}

// transitionReach covers the distance between a wall clock and any zone
// transition that could make it skipped or repeated.
const transitionReach = 6 * time.Hour

// resolveWallClock tries every offset in force near local and keeps the
// latest instant that reads back as local. When none does, local sits in a
// gap and the latest candidate is the one shifted past it.
func resolveWallClock(local WallClock, loc *time.Location) time.Time {
	guess := local.In(loc)
	wall := local.In(time.UTC)

	var best, fallback time.Time
	seen := make(map[int]bool, 3)
	for _, probe := range []time.Time{guess.Add(-transitionReach), guess, guess.Add(transitionReach)} {
		_, offset := probe.In(loc).Zone()
		if seen[offset] {
			continue
		}
		seen[offset] = true

		candidate := wall.Add(-time.Duration(offset) * time.Second).In(loc)
		if candidate.After(fallback) {
			fallback = candidate
		}
		if WallClockOf(candidate) == local && candidate.After(best) {
			best = candidate
		}
	}
	if best.IsZero() {
		return fallback
	}
	return best
}

// ToUTCString parses value with ParseWallClock and converts it.
func (c *Converter) ToUTCString(value, zone string) (time.Time, error) {
	local, err := ParseWallClock(value)
	if err != nil {
		return time.Time{}, err
	}
	return c.ToUTC(local, zone)
}

// ToZone renders instant as a wall clock in zone.
func (c *Converter) ToZone(instant time.Time, zone string) (WallClock, error) {
	loc, err := c.location(zone)
	if err != nil {
		return WallClock{}, err
	}
	return WallClockOf(instant.In(loc)), nil
}

// FormatDisplay formats instant in zone using layout, or DefaultDisplayLayout
// when layout is empty.
func (c *Converter) FormatDisplay(instant time.Time, zone, layout string) (string, error) {
	loc, err := c.location(zone)
	if err != nil {
		return "", err
	}
	if layout == "" {
		layout = DefaultDisplayLayout
	}
	return instant.In(loc).Format(layout), nil
}

// ParseUserDateTime combines a YYYY-MM-DD date and an H:MM or HH:MM clock
// typed by a user in zone. Every failure wraps ErrDateParsingFailed.
func (c *Converter) ParseUserDateTime(date, clock, zone string) (Parsed, error) {
	date = strings.TrimSpace(date)
	clock = strings.TrimSpace(clock)

	if !userDatePattern.MatchString(date) {
		return Parsed{}, fmt.Errorf("%w: date %q must look like YYYY-MM-DD", ErrDateParsingFailed, date)
	}
	if !userClockPattern.MatchString(clock) {
		return Parsed{}, fmt.Errorf("%w: time %q must look like HH:MM", ErrDateParsingFailed, clock)
	}

	day, err := time.Parse("2006-01-02", date)
	if err != nil {
		return Parsed{}, fmt.Errorf("%w: date %q: %w", ErrDateParsingFailed, date, ErrInvalidDateTime)
	}
	hourText, minuteText, _ := strings.Cut(clock, ":")
	hour, _ := strconv.Atoi(hourText)
	minute, _ := strconv.Atoi(minuteText)

	local := WallClock{Year: day.Year(), Month: day.Month(), Day: day.Day(), Hour: hour, Minute: minute}

	canonical, err := c.zones.Normalize(zone)
	if err != nil {
		return Parsed{}, fmt.Errorf("%w: %w", ErrDateParsingFailed, err)
	}
	utc, err := c.ToUTC(local, canonical)
	if err != nil {
		return Parsed{}, fmt.Errorf("%w: %w", ErrDateParsingFailed, err)
	}
	return Parsed{Local: local, UTC: utc, Zone: canonical}, nil
}
