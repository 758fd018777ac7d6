package domain

import "testing"

func rec(day, start, end, subjectType string) RawRecord {
	return RawRecord{
		Day:     day,
		Slot:    &RawSlot{StartTime: start, EndTime: end},
		Subject: &RawSubject{Name: subjectType + " subject", Type: subjectType},
	}
}

func TestBuildSlotAxis_DedupAndSort(t *testing.T) {
	week := WeekOf(map[string][]RawRecord{
		"Monday": {
			rec("Monday", "11:00 AM", "12:00 PM", "Theory"),
			rec("Monday", "9:00AM", "10:00AM", "Theory"),
		},
		"tuesday": {
			rec("tuesday", "09:00 am", "10:00 am", "Practical"),
			rec("tuesday", "1:30 PM", "3:30 PM", "Practical"),
			rec("tuesday", "10:00 AM", "11:00 AM", "Theory"),
		},
	})
	axis, skipped := BuildSlotAxis(week)
	if len(skipped) != 0 {
		t.Fatalf("unexpected skipped: %v", skipped)
	}
	want := []string{"9:00 AM-10:00 AM", "10:00 AM-11:00 AM", "11:00 AM-12:00 PM", "1:30 PM-3:30 PM"}
	if len(axis) != len(want) {
		t.Fatalf("want %d slots, got %d: %v", len(want), len(axis), axis)
	}
	for i, s := range axis {
		if s.Key() != want[i] {
			t.Errorf("axis[%d] = %s, want %s", i, s.Key(), want[i])
		}
	}
	seen := map[string]bool{}
	for i, s := range axis {
		if seen[s.Key()] {
			t.Errorf("duplicate slot %s", s.Key())
		}
		seen[s.Key()] = true
		if i > 0 && axis[i-1].Start.Minutes() > s.Start.Minutes() {
			t.Errorf("axis not sorted at %d", i)
		}
	}
}

func TestBuildSlotAxis_UnwrapsRecordTimes(t *testing.T) {
	week := Week{{Day: "Monday", Records: []RawRecord{
		{StartTime: "2:00 PM", EndTime: "3:00 PM"},
		{Slot: &RawSlot{StartTime: "9:00 AM", EndTime: "10:00 AM"}, StartTime: "4:00 PM", EndTime: "5:00 PM"},
	}}}
	axis, _ := BuildSlotAxis(week)
	if len(axis) != 2 || axis[0].Key() != "9:00 AM-10:00 AM" || axis[1].Key() != "2:00 PM-3:00 PM" {
		t.Errorf("unexpected axis %v", axis)
	}
}

func TestBuildSlotAxis_SkipsMalformed(t *testing.T) {
	week := Week{{Day: "Monday", Records: []RawRecord{
		{Slot: &RawSlot{StartTime: "", EndTime: "10:00 AM"}},
		{Slot: &RawSlot{StartTime: "late", EndTime: "10:00 AM"}},
		{Slot: &RawSlot{StartTime: "11:00 AM", EndTime: "10:00 AM"}},
		rec("Monday", "10:00 AM", "11:00 AM", "Theory"),
	}}}
	axis, skipped := BuildSlotAxis(week)
	if len(axis) != 1 {
		t.Errorf("want 1 slot, got %v", axis)
	}
	if len(skipped) != 3 {
		t.Fatalf("want 3 skipped, got %v", skipped)
	}
	for i, s := range skipped {
		if s.Index != i || s.Day != "Monday" || s.Reason == "" {
			t.Errorf("skipped[%d] = %+v", i, s)
		}
	}
}

func TestBuildSlotAxis_Empty(t *testing.T) {
	axis, skipped := BuildSlotAxis(nil)
	if len(axis) != 0 || len(skipped) != 0 {
		t.Errorf("want empty axis, got %v %v", axis, skipped)
	}
}

func TestBuildSlotAxis_DoesNotMutateInput(t *testing.T) {
	week := Week{{Day: "Monday", Records: []RawRecord{rec("Monday", "9:00am", "10:00am", "Theory")}}}
	BuildSlotAxis(week)
	if week[0].Records[0].Slot.StartTime != "9:00am" {
		t.Errorf("input modified: %q", week[0].Records[0].Slot.StartTime)
	}
}
