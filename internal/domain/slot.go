package domain

import (
	"errors"
	"sort"
)

// ErrEmptySlot is returned for a slot whose end is not after its start.
var ErrEmptySlot = errors.New("slot end must be after start")

// TimeSlot is a same-day interval [Start, End).
type TimeSlot struct {
	Start TimeOfDay `json:"start_time"`
	End   TimeOfDay `json:"end_time"`
}

// NewTimeSlot parses both ends and rejects overnight or zero-length slots.
func NewTimeSlot(start, end string) (TimeSlot, error) {
	s, err := ParseTimeOfDay(start)
	if err != nil {
		return TimeSlot{}, err
	}
	e, err := ParseTimeOfDay(end)
	if err != nil {
		return TimeSlot{}, err
	}
	if e.Minutes() <= s.Minutes() {
		return TimeSlot{}, ErrEmptySlot
	}
	return TimeSlot{Start: s, End: e}, nil
}

// MustTimeSlot is NewTimeSlot for literals; it panics on error.
func MustTimeSlot(start, end string) TimeSlot {
	ts, err := NewTimeSlot(start, end)
	if err != nil {
		panic(err)
	}
	return ts
}

// Key identifies the slot on the axis: "{start}-{end}" in canonical form.
func (s TimeSlot) Key() string {
	return s.Start.String() + "-" + s.End.String()
}

func (s TimeSlot) String() string {
	return s.Start.String() + " - " + s.End.String()
}

// Equal compares canonical times.
func (s TimeSlot) Equal(o TimeSlot) bool {
	return s.Key() == o.Key()
}

// Overlaps reports whether o intersects s under the practical-session rule:
// o's start falls inside s, o's end falls inside s, or s lies within o.
func (s TimeSlot) Overlaps(o TimeSlot) bool {
	es, ee := s.Start.Minutes(), s.End.Minutes()
	ts, te := o.Start.Minutes(), o.End.Minutes()
	return (es <= ts && ts < ee) ||
		(es < te && te <= ee) ||
		(ts <= es && ee <= te)
}

// Duration in minutes.
func (s TimeSlot) Duration() int {
	return s.End.Minutes() - s.Start.Minutes()
}

func sortSlots(slots []TimeSlot) {
	sort.SliceStable(slots, func(i, j int) bool {
		return slots[i].Start.Minutes() < slots[j].Start.Minutes()
	})
}
