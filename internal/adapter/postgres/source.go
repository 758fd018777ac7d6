// Package postgres reads timetables straight from the eduVerse database.
package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/eduverse/timetable/internal/domain"
	"github.com/eduverse/timetable/internal/port"
)

// selectEntries returns one row per occupied slot. Slot times come out as
// 24-hour "HH:MM" and are normalized by the domain.
const selectEntries = `
SELECT t.id::text      AS timetable_id,
       t.day           AS day,
       s.id            AS slot_id,
       to_char(s.start_time, 'HH24:MI') AS start_time,
       to_char(s.end_time, 'HH24:MI')   AS end_time,
       sub.id          AS subject_id,
       sub.name        AS subject_name,
       sub.type        AS subject_type,
       te.id           AS teacher_id,
       te.name         AS teacher_name,
       c.id            AS class_id,
       c.name          AS class_name,
       t.batch_name    AS batch_name
  FROM timetable t
  JOIN slot s           ON s.id = t.slot_id
  LEFT JOIN subject sub ON sub.id = t.subject_id
  LEFT JOIN teacher te  ON te.id = t.teacher_id
  LEFT JOIN class c     ON c.id = t.class_id
 WHERE `

var scopeFilter = map[port.Scope]string{
	port.ScopeTeacher:    "t.teacher_id::text = $1",
	port.ScopeClass:      "t.class_id::text = $1",
	port.ScopeDepartment: "c.department_id::text = $1",
}

const orderEntries = ` ORDER BY t.id`

// entryRow is one row of selectEntries.
type entryRow struct {
	TimetableID string         `db:"timetable_id"`
	Day         sql.NullString `db:"day"`
	SlotID      sql.NullString `db:"slot_id"`
	StartTime   sql.NullString `db:"start_time"`
	EndTime     sql.NullString `db:"end_time"`
	SubjectID   sql.NullString `db:"subject_id"`
	SubjectName sql.NullString `db:"subject_name"`
	SubjectType sql.NullString `db:"subject_type"`
	TeacherID   sql.NullString `db:"teacher_id"`
	TeacherName sql.NullString `db:"teacher_name"`
	ClassID     sql.NullString `db:"class_id"`
	ClassName   sql.NullString `db:"class_name"`
	BatchName   sql.NullString `db:"batch_name"`
}

func (r entryRow) record() domain.RawRecord {
	rec := domain.RawRecord{
		TimetableID: domain.ID(r.TimetableID),
		Day:         r.Day.String,
		Slot: &domain.RawSlot{
			ID:        domain.ID(r.SlotID.String),
			StartTime: r.StartTime.String,
			EndTime:   r.EndTime.String,
		},
		BatchName: r.BatchName.String,
	}
	if r.SubjectID.Valid || r.SubjectName.Valid {
		rec.Subject = &domain.RawSubject{
			ID:   domain.ID(r.SubjectID.String),
			Name: r.SubjectName.String,
			Type: r.SubjectType.String,
		}
	}
	if r.TeacherID.Valid || r.TeacherName.Valid {
		rec.Teacher = &domain.RawTeacher{ID: domain.ID(r.TeacherID.String), Name: r.TeacherName.String}
	}
	if r.ClassID.Valid || r.ClassName.Valid {
		rec.Class = &domain.RawClass{ID: domain.ID(r.ClassID.String), Name: r.ClassName.String}
	}
	return rec
}

func payloadOf(rows []entryRow) *domain.Payload {
	if len(rows) == 0 {
		return nil
	}
	records := make([]domain.RawRecord, 0, len(rows))
	for _, r := range rows {
		records = append(records, r.record())
	}
	return domain.NewFlatPayload(records)
}

// Source is a port.TimetableSource over PostgreSQL.
type Source struct {
	db  *sqlx.DB
	log *zap.Logger
}

var _ port.TimetableSource = (*Source)(nil)

// Open connects to databaseURL and checks the connection.
func Open(ctx context.Context, databaseURL string, logger *zap.Logger) (*Source, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", databaseURL)
	if err != nil {
		return nil, errors.Wrap(err, "connect postgres")
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)
	return New(db, logger), nil
}

func New(db *sqlx.DB, logger *zap.Logger) *Source {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Source{db: db, log: logger.Named("pg_source")}
}

// Fetch returns nil when the view has no rows for q.
func (s *Source) Fetch(ctx context.Context, q port.Query) (*domain.Payload, error) {
	where, ok := scopeFilter[q.Scope]
	if !ok {
		return nil, errors.Errorf("unknown scope %q", q.Scope)
	}
	var rows []entryRow
	if err := s.db.SelectContext(ctx, &rows, selectEntries+where+orderEntries, q.ID); err != nil {
		return nil, errors.Wrapf(err, "select timetable %s", q.Key())
	}
	s.log.Debug("timetable selected", zap.String("key", q.Key()), zap.Int("rows", len(rows)))
	return payloadOf(rows), nil
}

func (s *Source) Close() error {
	return s.db.Close()
}
