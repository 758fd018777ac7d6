package port

import (
	"context"
	"time"

	"github.com/eduverse/timetable/internal/domain"
)

// Snapshot is the published state of one timetable view
type Snapshot struct {
	Query     Query               `json:"query"`
	Version   string              `json:"version"`
	FetchedAt time.Time           `json:"fetched_at"`
	Payload   *domain.Payload     `json:"payload"`
	Index     *domain.WeeklyIndex `json:"-"` // rebuilt from Payload on save and load
	Skipped   []domain.Skipped    `json:"-"`
}

// SnapshotRepository persists and retrieves published snapshots
type SnapshotRepository interface {
	// Get returns the snapshot for q, nil if not found
	Get(ctx context.Context, q Query) (*Snapshot, error)

	// List returns all snapshots
	List(ctx context.Context) ([]*Snapshot, error)

	// Save replaces the snapshot for s.Query, assigns a new version and
	// rebuilds the index
	Save(ctx context.Context, s *Snapshot) error

	// Delete removes the snapshot for q
	Delete(ctx context.Context, q Query) error

	// Subscribe returns a channel that receives when the snapshot for q changes.
	// The subscription ends with ctx.
	Subscribe(ctx context.Context, q Query) <-chan struct{}
}
