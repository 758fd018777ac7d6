package domain

import (
	"sort"
	"strings"
)

// SubjectType is the kind of session. The API sends "Theory" and
// "Practical"; anything else is carried through as-is.
type SubjectType string

const (
	Theory    SubjectType = "Theory"
	Practical SubjectType = "Practical"
)

// DefaultWeekDays are the grid rows shown when no day list is given.
var DefaultWeekDays = []string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday"}

var weekDays = []string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday"}

// CanonicalDay title-cases known weekday names ("MONDAY" -> "Monday").
// Unknown names are returned trimmed.
func CanonicalDay(day string) string {
	d := strings.TrimSpace(day)
	for _, w := range weekDays {
		if strings.EqualFold(d, w) {
			return w
		}
	}
	return d
}

// dayIndex orders weekdays Monday first; unknown days sort after Sunday.
func dayIndex(day string) int {
	for i, w := range weekDays {
		if strings.EqualFold(day, w) {
			return i
		}
	}
	return len(weekDays)
}

func sortDays(days []string) {
	sort.SliceStable(days, func(i, j int) bool {
		a, b := dayIndex(days[i]), dayIndex(days[j])
		if a != b {
			return a < b
		}
		return days[i] < days[j]
	})
}

// ScheduleEntry is one occupied (day, slot) in a timetable.
type ScheduleEntry struct {
	TimetableID string      `json:"timetable_id,omitempty"`
	Day         string      `json:"day"`
	Slot        TimeSlot    `json:"slot"`
	SlotID      string      `json:"slot_id,omitempty"`
	SubjectID   string      `json:"subject_id,omitempty"`
	SubjectName string      `json:"subject_name"`
	SubjectType SubjectType `json:"subject_type"`
	TeacherID   string      `json:"teacher_id,omitempty"`
	TeacherName string      `json:"teacher_name"`
	ClassID     string      `json:"class_id,omitempty"`
	ClassName   string      `json:"class_name"`
	BatchName   string      `json:"batch_name,omitempty"`
}

// IsPractical reports whether the entry may span several axis slots.
func (e ScheduleEntry) IsPractical() bool {
	return e.SubjectType == Practical
}

// Skipped describes a raw record left out of the index.
type Skipped struct {
	Day    string `json:"day"`
	Index  int    `json:"index"`
	SlotID string `json:"slot_id,omitempty"`
	Reason string `json:"reason"`
}

// Ingest converts raw records into entries in week order. Records without a
// day or with unusable times are reported in skipped and left out.
func Ingest(week Week) (entries []ScheduleEntry, skipped []Skipped) {
	for _, d := range week {
		for i, rec := range d.Records {
			slot, reason := rec.timeSlot()
			if reason == "" && d.Day == "" {
				reason = "missing day"
			}
			if reason != "" {
				skipped = append(skipped, Skipped{Day: d.Day, Index: i, SlotID: rec.slotID(), Reason: reason})
				continue
			}
			entries = append(entries, rec.entry(d.Day, slot))
		}
	}
	return entries, skipped
}

// ClassRef names a class appearing in a timetable.
type ClassRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Classes returns the distinct classes of entries sorted by name.
func Classes(entries []ScheduleEntry) []ClassRef {
	seen := make(map[string]bool)
	var out []ClassRef
	for _, e := range entries {
		key := e.ClassID
		if key == "" {
			key = e.ClassName
		}
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, ClassRef{ID: e.ClassID, Name: e.ClassName})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Batches returns the distinct non-empty batch names of entries, sorted.
func Batches(entries []ScheduleEntry) []string {
	seen := make(map[string]bool)
	var out []string
	for _, e := range entries {
		if e.BatchName == "" || seen[e.BatchName] {
			continue
		}
		seen[e.BatchName] = true
		out = append(out, e.BatchName)
	}
	sort.Strings(out)
	return out
}
