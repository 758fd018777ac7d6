package domain

import "testing"

func entry(day, start, end string, st SubjectType) ScheduleEntry {
	return ScheduleEntry{Day: day, Slot: MustTimeSlot(start, end), SubjectName: string(st), SubjectType: st}
}

func TestResolveCell_PracticalContainsTarget(t *testing.T) {
	entries := []ScheduleEntry{entry("Monday", "9:00 AM", "11:00 AM", Practical)}
	target := MustTimeSlot("9:00 AM", "10:00 AM")

	got := ResolveCell("Monday", target, entries)
	if len(got) != 1 {
		t.Fatalf("Monday: want 1 entry, got %d", len(got))
	}
	if Match(entries[0], "Monday", target) != MatchOverlap {
		t.Errorf("want overlap match")
	}
	if got := ResolveCell("Tuesday", target, entries); len(got) != 0 {
		t.Errorf("Tuesday: want empty, got %v", got)
	}
}

func TestResolveCell_TheoryNeverOverlaps(t *testing.T) {
	entries := []ScheduleEntry{entry("Monday", "9:00 AM", "10:00 AM", Theory)}
	if got := ResolveCell("Monday", MustTimeSlot("9:30 AM", "10:30 AM"), entries); len(got) != 0 {
		t.Errorf("want empty, got %v", got)
	}
	if got := ResolveCell("monday", MustTimeSlot("9:00am", "10:00am"), entries); len(got) != 1 {
		t.Errorf("exact (case-insensitive day): want 1, got %d", len(got))
	}
}

func TestMatch_OverlapClauses(t *testing.T) {
	lab := entry("Friday", "10:00 AM", "12:00 PM", Practical)
	tests := []struct {
		name   string
		target TimeSlot
		want   MatchKind
	}{
		{"exact", MustTimeSlot("10:00 AM", "12:00 PM"), MatchExact},
		{"target start inside", MustTimeSlot("11:00 AM", "1:00 PM"), MatchOverlap},
		{"target end inside", MustTimeSlot("9:00 AM", "11:00 AM"), MatchOverlap},
		{"entry inside target", MustTimeSlot("9:00 AM", "1:00 PM"), MatchOverlap},
		{"adjacent before", MustTimeSlot("9:00 AM", "10:00 AM"), MatchNone},
		{"adjacent after", MustTimeSlot("12:00 PM", "1:00 PM"), MatchNone},
		{"disjoint", MustTimeSlot("2:00 PM", "3:00 PM"), MatchNone},
	}
	for _, tt := range tests {
		if got := Match(lab, "Friday", tt.target); got != tt.want {
			t.Errorf("%s: Match = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestResolveCell_KeepsEncounterOrderAndSpans(t *testing.T) {
	entries := []ScheduleEntry{
		entry("Wednesday", "2:00 PM", "4:00 PM", Practical),
		entry("Wednesday", "2:00 PM", "3:00 PM", Theory),
		entry("Wednesday", "3:00 PM", "4:00 PM", Theory),
	}
	first := ResolveCell("Wednesday", MustTimeSlot("2:00 PM", "3:00 PM"), entries)
	if len(first) != 2 || first[0].SubjectType != Practical || first[1].SubjectType != Theory {
		t.Errorf("2-3 PM: got %v", first)
	}
	second := ResolveCell("Wednesday", MustTimeSlot("3:00 PM", "4:00 PM"), entries)
	if len(second) != 2 || second[0].SubjectType != Practical {
		t.Errorf("3-4 PM: got %v", second)
	}
}

func TestMatch_ZeroSlotExcluded(t *testing.T) {
	e := ScheduleEntry{Day: "Monday", SubjectType: Practical}
	if Match(e, "Monday", MustTimeSlot("9:00 AM", "10:00 AM")) != MatchNone {
		t.Errorf("entry without times must not match")
	}
}

func TestClassifyCell(t *testing.T) {
	th := entry("Monday", "9:00 AM", "10:00 AM", Theory)
	pr := entry("Monday", "9:00 AM", "10:00 AM", Practical)
	other := entry("Monday", "9:00 AM", "10:00 AM", "Tutorial")
	tests := []struct {
		name    string
		entries []ScheduleEntry
		want    CellStyle
	}{
		{"empty", nil, StyleEmpty},
		{"theory", []ScheduleEntry{th, th}, StyleTheory},
		{"practical", []ScheduleEntry{pr}, StylePractical},
		{"mixed", []ScheduleEntry{th, pr}, StyleMixed},
		{"other type", []ScheduleEntry{other}, StyleMixed},
	}
	for _, tt := range tests {
		if got := ClassifyCell(tt.entries); got != tt.want {
			t.Errorf("%s: ClassifyCell = %s, want %s", tt.name, got, tt.want)
		}
	}
}
