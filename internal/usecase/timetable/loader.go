package timetable

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/eduverse/timetable/internal/domain"
	"github.com/eduverse/timetable/internal/port"
)

var (
	// ErrSuperseded is returned by Reload when a newer reload of the same
	// view started before this one finished. Its result is discarded.
	ErrSuperseded = errors.New("reload superseded by a newer request")

	// ErrNotLoaded is returned when a view has never been loaded.
	ErrNotLoaded = errors.New("timetable not loaded")
)

// Loader fetches timetables and publishes them to the repository. For each
// view only the most recently started reload may publish.
type Loader struct {
	source port.TimetableSource
	repo   port.SnapshotRepository
	log    *zap.Logger
	now    func() time.Time

	mu       sync.Mutex
	gens     map[string]uint64
	inflight map[string]*pendingLoad // latest started reload per view
	running  map[string]int
	publish  map[string]*sync.Mutex
}

// pendingLoad is one Reload call that Ensure callers can wait on.
type pendingLoad struct {
	done chan struct{}
	snap *port.Snapshot
	err  error
}

func NewLoader(source port.TimetableSource, repo port.SnapshotRepository, logger *zap.Logger) *Loader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{
		source:   source,
		repo:     repo,
		log:      logger.Named("loader"),
		now:      time.Now,
		gens:     make(map[string]uint64),
		inflight: make(map[string]*pendingLoad),
		running:  make(map[string]int),
		publish:  make(map[string]*sync.Mutex),
	}
}

func (l *Loader) begin(q port.Query) (uint64, *pendingLoad) {
	l.mu.Lock()
	defer l.mu.Unlock()
	key := q.Key()
	l.gens[key]++
	l.running[key]++
	r := &pendingLoad{done: make(chan struct{})}
	l.inflight[key] = r
	if l.publish[key] == nil {
		l.publish[key] = &sync.Mutex{}
	}
	return l.gens[key], r
}

func (l *Loader) finish(q port.Query, r *pendingLoad, snap *port.Snapshot, err error) {
	l.mu.Lock()
	key := q.Key()
	if l.inflight[key] == r {
		delete(l.inflight, key)
	}
	if l.running[key]--; l.running[key] == 0 {
		delete(l.running, key)
	}
	l.mu.Unlock()
	r.snap, r.err = snap, err
	close(r.done)
}

func (l *Loader) latest(q port.Query) (uint64, *pendingLoad, *sync.Mutex) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.gens[q.Key()], l.inflight[q.Key()], l.publish[q.Key()]
}

// Reload fetches q and replaces its published snapshot. On fetch failure the
// previous snapshot stays in place.
func (l *Loader) Reload(ctx context.Context, q port.Query) (*port.Snapshot, error) {
	gen, r := l.begin(q)
	snap, err := l.reload(ctx, q, gen)
	l.finish(q, r, snap, err)
	return snap, err
}

func (l *Loader) reload(ctx context.Context, q port.Query, gen uint64) (*port.Snapshot, error) {
	log := l.log.With(zap.String("view", q.Key()), zap.Uint64("generation", gen))

	started := l.now()
	payload, err := l.source.Fetch(ctx, q)
	if err != nil {
		log.Warn("fetch failed", zap.Error(err))
		return nil, errors.Wrapf(err, "fetch %s", q.Key())
	}
	if payload == nil {
		// nothing upstream renders as an empty grid
		payload = domain.NewFlatPayload(nil)
	}

	snap := &port.Snapshot{Query: q, FetchedAt: l.now(), Payload: payload}

	// publishes of one view are serialized; the generation is rechecked under that lock
	_, _, pub := l.latest(q)
	pub.Lock()
	if current, _, _ := l.latest(q); current != gen {
		pub.Unlock()
		log.Info("discarding superseded reload")
		return nil, ErrSuperseded
	}
	err = l.repo.Save(ctx, snap)
	pub.Unlock()
	if err != nil {
		return nil, errors.Wrapf(err, "save %s", q.Key())
	}

	for _, s := range snap.Skipped {
		log.Warn("skipped timetable record",
			zap.String("day", s.Day),
			zap.Int("index", s.Index),
			zap.String("slot_id", s.SlotID),
			zap.String("reason", s.Reason),
		)
	}
	fields := []zap.Field{
		zap.String("version", snap.Version),
		zap.String("shape", payload.Shape.String()),
		zap.Duration("took", l.now().Sub(started)),
	}
	if snap.Index != nil {
		fields = append(fields, zap.Int("slots", len(snap.Index.Slots)), zap.Int("entries", len(snap.Index.Entries)))
	}
	log.Info("timetable published", fields...)
	return snap, nil
}

// Current returns the published snapshot of q.
func (l *Loader) Current(ctx context.Context, q port.Query) (*port.Snapshot, error) {
	snap, err := l.repo.Get(ctx, q)
	if err != nil {
		return nil, errors.Wrapf(err, "get %s", q.Key())
	}
	if snap == nil {
		return nil, ErrNotLoaded
	}
	return snap, nil
}

// Ensure returns the published snapshot of q, loading it first if needed.
// A caller that finds a load already running waits for it instead of
// starting another, and a superseded load waits for the one that replaced it.
func (l *Loader) Ensure(ctx context.Context, q port.Query) (*port.Snapshot, error) {
	for {
		snap, err := l.Current(ctx, q)
		if errors.Cause(err) != ErrNotLoaded {
			return snap, err
		}
		if _, r, _ := l.latest(q); r != nil {
			select {
			case <-r.done:
				snap, err = r.snap, r.err
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		} else {
			snap, err = l.Reload(ctx, q)
		}
		if err != ErrSuperseded {
			return snap, err
		}
	}
}

// Forget drops the published snapshot of q. The view's bookkeeping is kept
// while any reload of it is still running.
func (l *Loader) Forget(ctx context.Context, q port.Query) error {
	if err := l.repo.Delete(ctx, q); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.running[q.Key()] == 0 {
		delete(l.gens, q.Key())
		delete(l.publish, q.Key())
	}
	return nil
}

// List returns every published snapshot.
func (l *Loader) List(ctx context.Context) ([]*port.Snapshot, error) {
	return l.repo.List(ctx)
}

// Subscribe forwards to the repository.
func (l *Loader) Subscribe(ctx context.Context, q port.Query) <-chan struct{} {
	return l.repo.Subscribe(ctx, q)
}

// SnapshotChanged reports whether a client holding lastVersion should get s.
func SnapshotChanged(lastVersion string, s *port.Snapshot) bool {
	if s == nil {
		return false
	}
	if lastVersion == "" {
		return true // first request, always send
	}
	return lastVersion != s.Version
}
