package domain

import "strings"

// MatchKind tells how an entry occupies a cell.
type MatchKind int

const (
	MatchNone MatchKind = iota
	MatchExact
	MatchOverlap
)

func (k MatchKind) String() string {
	switch k {
	case MatchExact:
		return "exact"
	case MatchOverlap:
		return "overlap"
	}
	return "none"
}

// Match decides whether e occupies (day, target). Equal canonical times match
// for any subject type; only practical entries match by overlap, so a long
// lab fills every axis column it covers.
func Match(e ScheduleEntry, day string, target TimeSlot) MatchKind {
	if !strings.EqualFold(strings.TrimSpace(e.Day), strings.TrimSpace(day)) {
		return MatchNone
	}
	if e.Slot.Start.IsZero() || e.Slot.End.IsZero() || target.Start.IsZero() || target.End.IsZero() {
		return MatchNone
	}
	if e.Slot.Equal(target) {
		return MatchExact
	}
	if e.IsPractical() && e.Slot.Overlaps(target) {
		return MatchOverlap
	}
	return MatchNone
}

// ResolveCell returns the entries occupying (day, target) in the order they
// appear in entries.
func ResolveCell(day string, target TimeSlot, entries []ScheduleEntry) []ScheduleEntry {
	var out []ScheduleEntry
	for _, e := range entries {
		if Match(e, day, target) != MatchNone {
			out = append(out, e)
		}
	}
	return out
}
