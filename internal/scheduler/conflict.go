// Package scheduler holds the pure interval and slot-ranking algorithms used by
// the application services. Nothing here performs I/O.
package scheduler

import (
	"slices"
	"time"
)

// Busy is a half-open [Start, End) interval during which Owner cannot meet.
type Busy struct {
	ID      string
	OwnerID string
	Start   time.Time
	End     time.Time
}

// Overlaps reports whether [aStart, aEnd) and [bStart, bEnd) intersect.
// Intervals that merely touch do not overlap.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && bStart.Before(aEnd)
}

// Conflicts returns the entries of existing that overlap [start, end), skipping
// excludeID, ordered by start time.
func Conflicts(existing []Busy, start, end time.Time, excludeID string) []Busy {
	var out []Busy
	for _, b := range existing {
		if excludeID != "" && b.ID == excludeID {
			continue
		}
		if Overlaps(b.Start, b.End, start, end) {
			out = append(out, b)
		}
	}
	slices.SortStableFunc(out, func(a, b Busy) int {
		return a.Start.Compare(b.Start)
	})
	return out
}

// WorkingHours is a daily [StartHour, EndHour) window in Location.
type WorkingHours struct {
	Location  *time.Location
	StartHour int
	EndHour   int
}

// Contains reports whether the local hour of instant falls inside the window.
func (w WorkingHours) Contains(instant time.Time) bool {
	if w.Location == nil {
		return false
	}
	hour := instant.In(w.Location).Hour()
	return hour >= w.StartHour && hour < w.EndHour
}
