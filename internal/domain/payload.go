package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
)

// ErrInvalidPayload is returned when a timetable payload has neither the
// flat list shape nor the nested class shape.
var ErrInvalidPayload = errors.New("invalid timetable payload")

// ID is an identifier the API sends either as a number or as a string.
type ID string

func (id *ID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		*id = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*id = ID(n.String())
	return nil
}

type RawSlot struct {
	ID        ID     `json:"id,omitempty"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

type RawSubject struct {
	ID   ID     `json:"id,omitempty"`
	Name string `json:"name"`
	Type string `json:"type"`
}

type RawTeacher struct {
	ID   ID     `json:"id,omitempty"`
	Name string `json:"name"`
}

type RawClass struct {
	ID   ID     `json:"id,omitempty"`
	Name string `json:"name"`
}

// RawRecord is a slot-bearing record as the API sends it. Times live either
// in the nested Slot or on the record itself.
type RawRecord struct {
	TimetableID ID          `json:"timetable_id,omitempty"`
	Day         string      `json:"day,omitempty"`
	Slot        *RawSlot    `json:"slot,omitempty"`
	StartTime   string      `json:"start_time,omitempty"`
	EndTime     string      `json:"end_time,omitempty"`
	Subject     *RawSubject `json:"subject,omitempty"`
	Teacher     *RawTeacher `json:"teacher,omitempty"`
	Class       *RawClass   `json:"class,omitempty"`
	BatchName   string      `json:"batch_name,omitempty"`
	Batch       string      `json:"batch,omitempty"`

	// SlotKey is the key the record had in the nested form.
	SlotKey string `json:"slot_key,omitempty"`
}

// Times returns the raw start and end. A present nested slot always wins,
// even when it is empty.
func (r RawRecord) Times() (start, end string) {
	if r.Slot != nil {
		return r.Slot.StartTime, r.Slot.EndTime
	}
	return r.StartTime, r.EndTime
}

func (r RawRecord) slotID() string {
	if r.Slot != nil && r.Slot.ID != "" {
		return string(r.Slot.ID)
	}
	return r.SlotKey
}

// timeSlot parses the record's times. A non-empty reason means the record
// cannot be placed on the axis.
func (r RawRecord) timeSlot() (TimeSlot, string) {
	start, end := r.Times()
	if start == "" || end == "" {
		return TimeSlot{}, "missing start or end time"
	}
	slot, err := NewTimeSlot(start, end)
	if err != nil {
		return TimeSlot{}, err.Error()
	}
	return slot, ""
}

func (r RawRecord) entry(day string, slot TimeSlot) ScheduleEntry {
	e := ScheduleEntry{
		TimetableID: string(r.TimetableID),
		Day:         day,
		Slot:        slot,
		SlotID:      r.slotID(),
		BatchName:   r.BatchName,
	}
	if e.BatchName == "" {
		e.BatchName = r.Batch
	}
	if r.Subject != nil {
		e.SubjectID = string(r.Subject.ID)
		e.SubjectName = r.Subject.Name
		e.SubjectType = SubjectType(r.Subject.Type)
	}
	if r.Teacher != nil {
		e.TeacherID = string(r.Teacher.ID)
		e.TeacherName = r.Teacher.Name
	}
	if r.Class != nil {
		e.ClassID = string(r.Class.ID)
		e.ClassName = r.Class.Name
	}
	return e
}

// DayRecords holds the raw records of one day.
type DayRecords struct {
	Day     string      `json:"day"`
	Records []RawRecord `json:"records"`
}

// Week is the raw input of one timetable grouped by day, Monday first.
type Week []DayRecords

// WeekOf groups a day-keyed map into a Week. Day names are canonicalized and
// records of days differing only in case are merged.
func WeekOf(byDay map[string][]RawRecord) Week {
	names := make([]string, 0, len(byDay))
	for d := range byDay {
		names = append(names, d)
	}
	sort.Strings(names)
	merged := make(map[string][]RawRecord)
	var days []string
	for _, d := range names {
		c := CanonicalDay(d)
		if _, ok := merged[c]; !ok {
			days = append(days, c)
		}
		merged[c] = append(merged[c], byDay[d]...)
	}
	sortDays(days)
	week := make(Week, 0, len(days))
	for _, d := range days {
		week = append(week, DayRecords{Day: d, Records: merged[d]})
	}
	return week
}

// Records returns every record of the week in order.
func (w Week) Records() []RawRecord {
	var out []RawRecord
	for _, d := range w {
		out = append(out, d.Records...)
	}
	return out
}

// Shape tells which form a payload arrived in.
type Shape int

const (
	ShapeFlat Shape = iota
	ShapeNested
)

func (s Shape) String() string {
	if s == ShapeNested {
		return "nested"
	}
	return "flat"
}

// Payload is a decoded timetable response. Exactly one of Entries (flat) or
// Timetable (nested) is used, according to Shape. Rejected lists records
// that could not be decoded at all.
type Payload struct {
	Shape     Shape                  `json:"shape"`
	Message   string                 `json:"message,omitempty"`
	ClassInfo *RawClass              `json:"class_info,omitempty"`
	Entries   []RawRecord            `json:"entries,omitempty"`
	Timetable map[string][]RawRecord `json:"timetable,omitempty"`
	Rejected  []Skipped              `json:"rejected,omitempty"`
}

// NewFlatPayload wraps a flat list of records.
func NewFlatPayload(records []RawRecord) *Payload {
	return &Payload{Shape: ShapeFlat, Entries: records}
}

// Week groups the payload by day. Flat records keep their encounter order
// within a day.
func (p *Payload) Week() Week {
	if p == nil {
		return nil
	}
	if p.Shape == ShapeNested {
		return WeekOf(p.Timetable)
	}
	byDay := make(map[string][]RawRecord)
	for _, r := range p.Entries {
		byDay[r.Day] = append(byDay[r.Day], r)
	}
	return WeekOf(byDay)
}

// DecodePayload accepts the API envelope {"message", "data"} or a bare data
// value, where data is a flat list or {"class_info", "timetable"}. Only a
// payload of neither shape is an error; single records that fail to decode
// are reported in Payload.Rejected.
func DecodePayload(data []byte) (*Payload, error) {
	return decodePayload(bytes.TrimSpace(data), "", true)
}

func decodePayload(data []byte, message string, allowEnvelope bool) (*Payload, error) {
	if len(data) == 0 {
		return nil, ErrInvalidPayload
	}
	switch data[0] {
	case '[':
		var raws []json.RawMessage
		if err := json.Unmarshal(data, &raws); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
		}
		p := NewFlatPayload(make([]RawRecord, 0, len(raws)))
		p.Message = message
		for i, raw := range raws {
			rec, err := decodeRecord(raw)
			if err != nil {
				p.Rejected = append(p.Rejected, Skipped{Day: peekDay(raw), Index: i, Reason: err.Error()})
				continue
			}
			p.Entries = append(p.Entries, rec)
		}
		return p, nil
	case '{':
	default:
		return nil, ErrInvalidPayload
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if tt, ok := obj["timetable"]; ok {
		return decodeNested(obj["class_info"], tt, message)
	}
	if inner, ok := obj["data"]; ok && allowEnvelope {
		var msg string
		if raw, ok := obj["message"]; ok {
			_ = json.Unmarshal(raw, &msg)
		}
		return decodePayload(bytes.TrimSpace(inner), msg, false)
	}
	return nil, ErrInvalidPayload
}

func decodeRecord(raw json.RawMessage) (RawRecord, error) {
	var rec RawRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return RawRecord{}, fmt.Errorf("undecodable record: %v", err)
	}
	return rec, nil
}

// peekDay reads the day of a record that failed to decode, if it has one.
func peekDay(raw json.RawMessage) string {
	var d struct {
		Day string `json:"day"`
	}
	if json.Unmarshal(raw, &d) != nil {
		return ""
	}
	return CanonicalDay(d.Day)
}

func decodeNested(classInfo, timetable json.RawMessage, message string) (*Payload, error) {
	p := &Payload{Shape: ShapeNested, Message: message, Timetable: make(map[string][]RawRecord)}
	var days map[string]json.RawMessage
	if err := json.Unmarshal(timetable, &days); err != nil {
		return nil, fmt.Errorf("%w: timetable: %v", ErrInvalidPayload, err)
	}
	if len(classInfo) > 0 && string(classInfo) != "null" {
		var ci RawClass
		if err := json.Unmarshal(classInfo, &ci); err == nil {
			p.ClassInfo = &ci
		}
	}

	dayNames := make([]string, 0, len(days))
	for d := range days {
		dayNames = append(dayNames, d)
	}
	sort.Strings(dayNames)

	for _, day := range dayNames {
		raw := bytes.TrimSpace(days[day])
		if len(raw) == 0 || string(raw) == "null" {
			continue
		}
		var keys []string
		var raws []json.RawMessage
		switch raw[0] {
		case '[':
			if err := json.Unmarshal(raw, &raws); err != nil {
				p.reject(day, 0, "", err)
				continue
			}
		case '{':
			var bySlot map[string]json.RawMessage
			if err := json.Unmarshal(raw, &bySlot); err != nil {
				p.reject(day, 0, "", err)
				continue
			}
			for k := range bySlot {
				keys = append(keys, k)
			}
			sortSlotKeys(keys)
			for _, k := range keys {
				raws = append(raws, bySlot[k])
			}
		default:
			p.reject(day, 0, "", errors.New("day is neither a list nor a slot map"))
			continue
		}

		records := make([]RawRecord, 0, len(raws))
		for i, r := range raws {
			var key string
			if keys != nil {
				key = keys[i]
			}
			rec, err := decodeRecord(r)
			if err != nil {
				p.reject(day, i, key, err)
				continue
			}
			rec.SlotKey = key
			rec.Day = day
			if rec.Class == nil && p.ClassInfo != nil {
				ci := *p.ClassInfo
				rec.Class = &ci
			}
			records = append(records, rec)
		}
		p.Timetable[day] = records
	}
	return p, nil
}

func (p *Payload) reject(day string, index int, slotID string, err error) {
	p.Rejected = append(p.Rejected, Skipped{Day: CanonicalDay(day), Index: index, SlotID: slotID, Reason: err.Error()})
}

// sortSlotKeys orders numeric keys numerically, before any others.
func sortSlotKeys(keys []string) {
	sort.Slice(keys, func(i, j int) bool {
		a, aerr := strconv.Atoi(keys[i])
		b, berr := strconv.Atoi(keys[j])
		switch {
		case aerr == nil && berr == nil:
			return a < b
		case aerr == nil:
			return true
		case berr == nil:
			return false
		}
		return keys[i] < keys[j]
	})
}
