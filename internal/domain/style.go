package domain

// CellStyle is the display category of a grid cell.
type CellStyle string

const (
	StyleEmpty     CellStyle = "empty"
	StyleTheory    CellStyle = "theory"
	StylePractical CellStyle = "practical"
	StyleMixed     CellStyle = "mixed"
)

// ClassifyCell returns theory or practical when every entry has that type,
// empty for no entries and mixed otherwise.
func ClassifyCell(entries []ScheduleEntry) CellStyle {
	if len(entries) == 0 {
		return StyleEmpty
	}
	allTheory, allPractical := true, true
	for _, e := range entries {
		if e.SubjectType != Theory {
			allTheory = false
		}
		if e.SubjectType != Practical {
			allPractical = false
		}
	}
	switch {
	case allPractical:
		return StylePractical
	case allTheory:
		return StyleTheory
	}
	return StyleMixed
}
