package domain

import "strings"

// WeeklyIndex is the read-only view of one loaded timetable: the slot axis
// and every entry of the week. It is rebuilt wholesale on each load.
type WeeklyIndex struct {
	ClassInfo *ClassRef       `json:"class_info,omitempty"`
	Slots     []TimeSlot      `json:"slots"`
	Entries   []ScheduleEntry `json:"entries"`
	Days      []string        `json:"days"`
}

// NewWeeklyIndex builds the index of p. Records left out for any reason,
// including those rejected while decoding, are returned in skipped; an
// empty index is valid.
func NewWeeklyIndex(p *Payload) (*WeeklyIndex, []Skipped) {
	week := p.Week()
	axis, _ := BuildSlotAxis(week)
	entries, skipped := Ingest(week)
	if p != nil && len(p.Rejected) > 0 {
		skipped = append(append([]Skipped(nil), p.Rejected...), skipped...)
	}

	idx := &WeeklyIndex{Slots: axis, Entries: entries}
	if p != nil && p.ClassInfo != nil {
		idx.ClassInfo = &ClassRef{ID: string(p.ClassInfo.ID), Name: p.ClassInfo.Name}
	}
	seen := make(map[string]bool)
	for _, e := range entries {
		if !seen[e.Day] {
			seen[e.Day] = true
			idx.Days = append(idx.Days, e.Day)
		}
	}
	sortDays(idx.Days)
	return idx, skipped
}

// Cell returns the entries occupying (day, slot).
func (w *WeeklyIndex) Cell(day string, slot TimeSlot) []ScheduleEntry {
	return ResolveCell(day, slot, w.Entries)
}

// CellFiltered is Cell restricted to entries passing f.
func (w *WeeklyIndex) CellFiltered(day string, slot TimeSlot, f Filter) []ScheduleEntry {
	return ResolveCell(day, slot, f.Apply(w.Entries))
}

// Classes lists the classes present in the index.
func (w *WeeklyIndex) Classes() []ClassRef { return Classes(w.Entries) }

// Batches lists the batch names present in the index.
func (w *WeeklyIndex) Batches() []string { return Batches(w.Entries) }

// Filter narrows entries to one class and/or one batch. Empty fields and
// "all" match everything.
type Filter struct {
	ClassID string `json:"class_id,omitempty" query:"class"`
	Batch   string `json:"batch,omitempty" query:"batch"`
}

func matchesAll(v string) bool {
	v = strings.TrimSpace(v)
	return v == "" || strings.EqualFold(v, "all")
}

// Keep reports whether e passes the filter.
func (f Filter) Keep(e ScheduleEntry) bool {
	if !matchesAll(f.ClassID) && e.ClassID != strings.TrimSpace(f.ClassID) {
		return false
	}
	if !matchesAll(f.Batch) && !strings.EqualFold(e.BatchName, strings.TrimSpace(f.Batch)) {
		return false
	}
	return true
}

// Apply returns the entries passing f, keeping their order.
func (f Filter) Apply(entries []ScheduleEntry) []ScheduleEntry {
	if matchesAll(f.ClassID) && matchesAll(f.Batch) {
		return entries
	}
	out := make([]ScheduleEntry, 0, len(entries))
	for _, e := range entries {
		if f.Keep(e) {
			out = append(out, e)
		}
	}
	return out
}

// Cell is one (day, slot) of the grid.
type Cell struct {
	Slot    TimeSlot        `json:"slot"`
	Entries []ScheduleEntry `json:"entries"`
	Style   CellStyle       `json:"style"`
}

// Row is one day of the grid, with a cell per axis slot.
type Row struct {
	Day   string `json:"day"`
	Cells []Cell `json:"cells"`
}

// Grid is the rendered week.
type Grid struct {
	ClassInfo *ClassRef  `json:"class_info,omitempty"`
	Slots     []TimeSlot `json:"slots"`
	Rows      []Row      `json:"rows"`
	Classes   []ClassRef `json:"classes,omitempty"`
	Batches   []string   `json:"batches,omitempty"`
}

// Grid resolves every cell of the given days. With no days it uses
// DefaultWeekDays plus any other day the index has entries on.
func (w *WeeklyIndex) Grid(days []string, f Filter) Grid {
	if len(days) == 0 {
		days = w.gridDays()
	}
	entries := f.Apply(w.Entries)
	g := Grid{
		ClassInfo: w.ClassInfo,
		Slots:     w.Slots,
		Rows:      make([]Row, 0, len(days)),
		Classes:   w.Classes(),
		Batches:   w.Batches(),
	}
	for _, d := range days {
		row := Row{Day: CanonicalDay(d), Cells: make([]Cell, 0, len(w.Slots))}
		for _, s := range w.Slots {
			occ := ResolveCell(d, s, entries)
			row.Cells = append(row.Cells, Cell{Slot: s, Entries: occ, Style: ClassifyCell(occ)})
		}
		g.Rows = append(g.Rows, row)
	}
	return g
}

func (w *WeeklyIndex) gridDays() []string {
	days := append([]string(nil), DefaultWeekDays...)
	for _, d := range w.Days {
		found := false
		for _, x := range days {
			if x == d {
				found = true
				break
			}
		}
		if !found && d != "" {
			days = append(days, d)
		}
	}
	sortDays(days)
	return days
}
