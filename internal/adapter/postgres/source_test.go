package postgres

import (
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eduverse/timetable/internal/domain"
	"github.com/eduverse/timetable/internal/port"
)

func str(s string) sql.NullString { return sql.NullString{String: s, Valid: true} }

func TestPayloadOf(t *testing.T) {
	rows := []entryRow{
		{
			TimetableID: "1",
			Day:         str("monday"),
			SlotID:      str("4"),
			StartTime:   str("14:00"),
			EndTime:     str("16:00"),
			SubjectID:   str("9"),
			SubjectName: str("Networks Lab"),
			SubjectType: str("Practical"),
			TeacherName: str("R. Iyer"),
			ClassID:     str("12"),
			ClassName:   str("TE-B"),
			BatchName:   str("B1"),
		},
		{TimetableID: "2", Day: str("Monday"), SlotID: str("5"), StartTime: str("09:00"), EndTime: str("10:00")},
		{TimetableID: "3", Day: str("Tuesday"), SlotID: str("6")},
	}

	p := payloadOf(rows)
	require.NotNil(t, p)
	assert.Equal(t, domain.ShapeFlat, p.Shape)
	require.Len(t, p.Entries, 3)
	assert.Nil(t, p.Entries[1].Subject)
	assert.Nil(t, p.Entries[1].Teacher)
	require.NotNil(t, p.Entries[0].Teacher)
	assert.Equal(t, domain.ID(""), p.Entries[0].Teacher.ID)

	idx, skipped := domain.NewWeeklyIndex(p)
	require.Len(t, skipped, 1)
	assert.Equal(t, "6", skipped[0].SlotID)

	require.Len(t, idx.Slots, 2)
	assert.Equal(t, "9:00 AM-10:00 AM", idx.Slots[0].Key())
	assert.Equal(t, "2:00 PM-4:00 PM", idx.Slots[1].Key())

	e := idx.Entries[0]
	assert.Equal(t, "Monday", e.Day)
	assert.True(t, e.IsPractical())
	assert.Equal(t, "TE-B", e.ClassName)
	assert.Equal(t, "B1", e.BatchName)
}

func TestPayloadOf_NoRows(t *testing.T) {
	assert.Nil(t, payloadOf(nil))
}

func TestScopeFilter(t *testing.T) {
	for _, s := range []port.Scope{port.ScopeTeacher, port.ScopeClass, port.ScopeDepartment} {
		assert.Contains(t, scopeFilter, s)
	}
	assert.NotContains(t, scopeFilter, port.Scope("school"))
}
