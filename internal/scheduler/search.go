package scheduler

import (
	"slices"
	"time"
)

// Candidate start hours of the daily search grid, both inclusive.
const (
	FirstCandidateHour = 9
	LastCandidateHour  = 17
)

// Participant carries what the search needs to know about one user. A nil
// Hours means the user's working hours could not be determined.
type Participant struct {
	ID    string
	Hours *WorkingHours
	Busy  []Busy
}

// SearchInput configures RankSlots.
type SearchInput struct {
	Participants     []Participant
	Duration         time.Duration
	WindowStart      time.Time
	WindowEnd        time.Time
	WorkingHoursOnly bool
	// Location is the calendar in which days and grid hours are laid out.
	// Defaults to UTC.
	Location *time.Location
	Limit    int
	// Skip, when set, drops candidate starts it returns true for.
	Skip func(start time.Time) bool
}

// Slot is a ranked candidate meeting time.
type Slot struct {
	Start            time.Time
	End              time.Time
	AvailableCount   int
	TotalUsers       int
	Score            float64
	AvailableUserIDs []string
	BusyUserIDs      []string
}

// RankSlots evaluates every grid candidate in the window and returns the best
// Limit of them. Candidates nobody can attend are discarded.
func RankSlots(in SearchInput) []Slot {
	participants := uniqueParticipants(in.Participants)
	if len(participants) == 0 || !in.WindowStart.Before(in.WindowEnd) || in.Duration <= 0 || in.Limit <= 0 {
		return nil
	}

	loc := in.Location
	if loc == nil {
		loc = time.UTC
	}

	var slots []Slot
	startLocal := in.WindowStart.In(loc)
	day := time.Date(startLocal.Year(), startLocal.Month(), startLocal.Day(), 0, 0, 0, 0, loc)
	for ; day.Before(in.WindowEnd); day = day.AddDate(0, 0, 1) {
		if in.WorkingHoursOnly && isWeekend(day.Weekday()) {
			continue
		}
		for hour := FirstCandidateHour; hour <= LastCandidateHour; hour++ {
			start := time.Date(day.Year(), day.Month(), day.Day(), hour, 0, 0, 0, loc)
			if start.Before(in.WindowStart) || !start.Before(in.WindowEnd) {
				continue
			}
			if in.Skip != nil && in.Skip(start) {
				continue
			}
			if slot, ok := evaluate(participants, start.UTC(), in.Duration, in.WorkingHoursOnly); ok {
				slots = append(slots, slot)
			}
		}
	}

	slices.SortStableFunc(slots, compareSlots)
	if len(slots) > in.Limit {
		slots = slots[:in.Limit]
	}
	return slots
}

func evaluate(participants []Participant, start time.Time, duration time.Duration, workingHoursOnly bool) (Slot, bool) {
	end := start.Add(duration)
	slot := Slot{Start: start, End: end, TotalUsers: len(participants)}

	for _, p := range participants {
		if isAvailable(p, start, end, workingHoursOnly) {
			slot.AvailableUserIDs = append(slot.AvailableUserIDs, p.ID)
		} else {
			slot.BusyUserIDs = append(slot.BusyUserIDs, p.ID)
		}
	}

	slot.AvailableCount = len(slot.AvailableUserIDs)
	if slot.AvailableCount == 0 {
		return Slot{}, false
	}
	slot.Score = float64(slot.AvailableCount) / float64(slot.TotalUsers)
	return slot, true
}

func isAvailable(p Participant, start, end time.Time, workingHoursOnly bool) bool {
	if workingHoursOnly && (p.Hours == nil || !p.Hours.Contains(start)) {
		return false
	}
	for _, b := range p.Busy {
		if Overlaps(b.Start, b.End, start, end) {
			return false
		}
	}
	return true
}

func compareSlots(a, b Slot) int {
	switch {
	case a.Score > b.Score:
		return -1
	case a.Score < b.Score:
		return 1
	case a.AvailableCount > b.AvailableCount:
		return -1
	case a.AvailableCount < b.AvailableCount:
		return 1
	default:
		return a.Start.Compare(b.Start)
	}
}

func isWeekend(day time.Weekday) bool {
	return day == time.Saturday || day == time.Sunday
}

func uniqueParticipants(in []Participant) []Participant {
	seen := make(map[string]struct{}, len(in))
	out := make([]Participant, 0, len(in))
	for _, p := range in {
		if p.ID == "" {
			continue
		}
		if _, ok := seen[p.ID]; ok {
			continue
		}
		seen[p.ID] = struct{}{}
		out = append(out, p)
	}
	return out
}
