package jsonfile

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/eduverse/timetable/internal/domain"
	"github.com/eduverse/timetable/internal/port"
)

type persistedSnapshot struct {
	Scope     port.Scope      `json:"scope"`
	ID        string          `json:"id"`
	Version   string          `json:"version"`
	FetchedAt time.Time       `json:"fetched_at"`
	Payload   *domain.Payload `json:"payload"`
}

type persistedData struct {
	Snapshots map[string]persistedSnapshot `json:"snapshots"`
}

// Repository keeps snapshots in memory and mirrors them to one JSON file.
type Repository struct {
	mu          sync.RWMutex
	filePath    string
	snapshots   map[string]*port.Snapshot
	subscribers map[string][]chan struct{}
	subMu       sync.Mutex
}

var _ port.SnapshotRepository = (*Repository)(nil)

// New opens the repository at filePath. A missing file is an empty store.
func New(filePath string) (*Repository, error) {
	r := &Repository{
		filePath:    filePath,
		snapshots:   make(map[string]*port.Snapshot),
		subscribers: make(map[string][]chan struct{}),
	}
	if err := r.load(); err != nil && !os.IsNotExist(errors.Cause(err)) {
		return nil, err
	}
	return r, nil
}

func (r *Repository) load() error {
	data, err := os.ReadFile(r.filePath)
	if err != nil {
		return err
	}
	var pd persistedData
	if err := json.Unmarshal(data, &pd); err != nil {
		return errors.Wrapf(err, "parse %s", r.filePath)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for key, ps := range pd.Snapshots {
		version := ps.Version
		if version == "" {
			version = uuid.New().String()
		}
		snap := &port.Snapshot{
			Query:     port.Query{Scope: ps.Scope, ID: ps.ID},
			Version:   version,
			FetchedAt: ps.FetchedAt,
			Payload:   ps.Payload,
		}
		index(snap)
		r.snapshots[key] = snap
	}
	return nil
}

func (r *Repository) saveLocked() error {
	pd := persistedData{Snapshots: make(map[string]persistedSnapshot, len(r.snapshots))}
	for key, s := range r.snapshots {
		pd.Snapshots[key] = persistedSnapshot{
			Scope:     s.Query.Scope,
			ID:        s.Query.ID,
			Version:   s.Version,
			FetchedAt: s.FetchedAt,
			Payload:   s.Payload,
		}
	}
	data, err := json.MarshalIndent(pd, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encode snapshots")
	}
	if dir := filepath.Dir(r.filePath); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return errors.Wrapf(err, "create %s", dir)
		}
	}
	tmp := r.filePath + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return errors.Wrapf(err, "write %s", tmp)
	}
	return errors.Wrapf(os.Rename(tmp, r.filePath), "replace %s", r.filePath)
}

func index(s *port.Snapshot) {
	s.Index, s.Skipped = domain.NewWeeklyIndex(s.Payload)
}

func copySnapshot(s *port.Snapshot) *port.Snapshot {
	c := *s
	c.Skipped = append([]domain.Skipped(nil), s.Skipped...)
	return &c
}

func (r *Repository) notify(key string) {
	r.subMu.Lock()
	chans := append([]chan struct{}(nil), r.subscribers[key]...)
	r.subMu.Unlock()
	for _, ch := range chans {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

func (r *Repository) Get(ctx context.Context, q port.Query) (*port.Snapshot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.snapshots[q.Key()]
	if !ok {
		return nil, nil
	}
	return copySnapshot(s), nil
}

func (r *Repository) List(ctx context.Context) ([]*port.Snapshot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]*port.Snapshot, 0, len(r.snapshots))
	for _, s := range r.snapshots {
		result = append(result, copySnapshot(s))
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Query.Key() < result[j].Query.Key() })
	return result, nil
}

func (r *Repository) Save(ctx context.Context, s *port.Snapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s.Version = uuid.New().String()
	if s.FetchedAt.IsZero() {
		s.FetchedAt = time.Now()
	}
	index(s)

	key := s.Query.Key()
	prev, hadPrev := r.snapshots[key]
	r.snapshots[key] = copySnapshot(s)
	if err := r.saveLocked(); err != nil {
		if hadPrev {
			r.snapshots[key] = prev
		} else {
			delete(r.snapshots, key)
		}
		return err
	}
	r.notify(key)
	return nil
}

func (r *Repository) Delete(ctx context.Context, q port.Query) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := q.Key()
	if _, ok := r.snapshots[key]; !ok {
		return nil
	}
	delete(r.snapshots, key)
	r.notify(key)
	return r.saveLocked()
}

func (r *Repository) Subscribe(ctx context.Context, q port.Query) <-chan struct{} {
	key := q.Key()
	ch := make(chan struct{}, 1)
	r.subMu.Lock()
	r.subscribers[key] = append(r.subscribers[key], ch)
	r.subMu.Unlock()

	go func() {
		<-ctx.Done()
		r.subMu.Lock()
		defer r.subMu.Unlock()
		var rest []chan struct{}
		for _, c := range r.subscribers[key] {
			if c != ch {
				rest = append(rest, c)
			}
		}
		if len(rest) == 0 {
			delete(r.subscribers, key)
		} else {
			r.subscribers[key] = rest
		}
	}()
	return ch
}
