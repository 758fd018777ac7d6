package domain

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Meridiem is AM or PM.
type Meridiem string

const (
	AM Meridiem = "AM"
	PM Meridiem = "PM"
)

// ErrInvalidTime is the cause of every FormatError.
var ErrInvalidTime = errors.New("invalid time")

// FormatError reports a time string that cannot be normalized.
type FormatError struct {
	Raw    string
	Reason string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("invalid time format %q: %s", e.Raw, e.Reason)
}

func (e *FormatError) Unwrap() error { return ErrInvalidTime }

var timePattern = regexp.MustCompile(`^(\d{1,2})(?::(\d{2}))?\s*([AaPp][Mm])?$`)

// TimeOfDay is a 12-hour wall-clock time. The zero value is not valid;
// construct it with ParseTimeOfDay.
type TimeOfDay struct {
	hour     int // 1-12
	minute   int // 0-59
	meridiem Meridiem
}

// ParseTimeOfDay accepts "9:00 AM", "09:00am", "9 PM", "9:30" and similar.
// Without a meridiem, hours below 12 are AM and the rest PM; 13-23 are read
// as 24-hour values and 0 as midnight.
func ParseTimeOfDay(raw string) (TimeOfDay, error) {
	s := strings.TrimSpace(raw)
	m := timePattern.FindStringSubmatch(s)
	if m == nil {
		return TimeOfDay{}, &FormatError{Raw: raw, Reason: "expected H[:MM] [AM|PM]"}
	}
	hour, _ := strconv.Atoi(m[1])
	minute := 0
	if m[2] != "" {
		minute, _ = strconv.Atoi(m[2])
	}
	if minute > 59 {
		return TimeOfDay{}, &FormatError{Raw: raw, Reason: "minute out of range"}
	}

	mer := Meridiem(strings.ToUpper(m[3]))
	if mer == "" {
		switch {
		case hour > 23:
			return TimeOfDay{}, &FormatError{Raw: raw, Reason: "hour out of range"}
		case hour == 0:
			hour, mer = 12, AM
		case hour < 12:
			mer = AM
		case hour == 12:
			mer = PM
		default:
			hour, mer = hour-12, PM
		}
	} else if hour < 1 || hour > 12 {
		return TimeOfDay{}, &FormatError{Raw: raw, Reason: "hour out of range"}
	}
	return TimeOfDay{hour: hour, minute: minute, meridiem: mer}, nil
}

// MustParseTimeOfDay is ParseTimeOfDay for literals; it panics on error.
func MustParseTimeOfDay(raw string) TimeOfDay {
	t, err := ParseTimeOfDay(raw)
	if err != nil {
		panic(err)
	}
	return t
}

// NormalizeTime returns the canonical "H:MM AM" form of raw.
func NormalizeTime(raw string) (string, error) {
	t, err := ParseTimeOfDay(raw)
	if err != nil {
		return "", err
	}
	return t.String(), nil
}

func (t TimeOfDay) Hour() int          { return t.hour }
func (t TimeOfDay) Minute() int        { return t.minute }
func (t TimeOfDay) Meridiem() Meridiem { return t.meridiem }

// IsZero reports whether t was never parsed.
func (t TimeOfDay) IsZero() bool { return t.hour == 0 }

// String renders the canonical form: hour without padding, two-digit minutes,
// one space, upper-case meridiem.
func (t TimeOfDay) String() string {
	return fmt.Sprintf("%d:%02d %s", t.hour, t.minute, t.meridiem)
}

// Minutes returns minutes since midnight. 12 AM is 0, 12 PM is 720.
func (t TimeOfDay) Minutes() int {
	h := t.hour % 12
	if t.meridiem == PM {
		h += 12
	}
	return h*60 + t.minute
}

// Compare orders a and b by Minutes and returns -1, 0 or 1.
func Compare(a, b TimeOfDay) int {
	am, bm := a.Minutes(), b.Minutes()
	switch {
	case am < bm:
		return -1
	case am > bm:
		return 1
	}
	return 0
}

func (t TimeOfDay) MarshalText() ([]byte, error) {
	if t.IsZero() {
		return []byte{}, nil
	}
	return []byte(t.String()), nil
}

func (t *TimeOfDay) UnmarshalText(b []byte) error {
	if len(b) == 0 {
		*t = TimeOfDay{}
		return nil
	}
	parsed, err := ParseTimeOfDay(string(b))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}
