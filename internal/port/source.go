package port

import (
	"context"
	"fmt"

	"github.com/eduverse/timetable/internal/domain"
)

// Scope selects whose timetable is loaded.
type Scope string

const (
	ScopeTeacher    Scope = "teacher"
	ScopeClass      Scope = "class"
	ScopeDepartment Scope = "department"
)

func (s Scope) Valid() bool {
	switch s {
	case ScopeTeacher, ScopeClass, ScopeDepartment:
		return true
	}
	return false
}

// Query identifies one timetable view.
type Query struct {
	Scope Scope  `json:"scope" validate:"required,oneof=teacher class department"`
	ID    string `json:"id" validate:"required"`
}

// Key is the storage key of the view, e.g. "class/12".
func (q Query) Key() string {
	return fmt.Sprintf("%s/%s", q.Scope, q.ID)
}

// TimetableSource fetches a timetable payload from upstream
type TimetableSource interface {
	// Fetch returns the payload for q. A nil payload with nil error means
	// upstream has nothing for q.
	Fetch(ctx context.Context, q Query) (*domain.Payload, error)
}
