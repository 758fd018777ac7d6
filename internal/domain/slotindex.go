package domain

// BuildSlotAxis collects the distinct time slots of week and sorts them by
// start time. The first record seen for a key wins; records with missing or
// unparseable times are reported in skipped. week is not modified.
func BuildSlotAxis(week Week) (axis []TimeSlot, skipped []Skipped) {
	seen := make(map[string]bool)
	for _, d := range week {
		for i, rec := range d.Records {
			slot, reason := rec.timeSlot()
			if reason != "" {
				skipped = append(skipped, Skipped{Day: d.Day, Index: i, SlotID: rec.slotID(), Reason: reason})
				continue
			}
			key := slot.Key()
			if seen[key] {
				continue
			}
			seen[key] = true
			axis = append(axis, slot)
		}
	}
	sortSlots(axis)
	return axis, skipped
}

// AxisOf does the same over already ingested entries.
func AxisOf(entries []ScheduleEntry) []TimeSlot {
	seen := make(map[string]bool)
	var axis []TimeSlot
	for _, e := range entries {
		key := e.Slot.Key()
		if seen[key] {
			continue
		}
		seen[key] = true
		axis = append(axis, e.Slot)
	}
	sortSlots(axis)
	return axis
}
