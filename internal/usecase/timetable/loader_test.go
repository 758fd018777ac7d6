package timetable

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/eduverse/timetable/internal/adapter/jsonfile"
	"github.com/eduverse/timetable/internal/domain"
	"github.com/eduverse/timetable/internal/port"
)

type fetchResult struct {
	payload *domain.Payload
	err     error
}

// blockingSource hands out one result per call, but only after the test
// releases it.
type blockingSource struct {
	calls chan chan fetchResult
}

func newBlockingSource() *blockingSource {
	return &blockingSource{calls: make(chan chan fetchResult, 4)}
}

func (s *blockingSource) Fetch(ctx context.Context, q port.Query) (*domain.Payload, error) {
	reply := make(chan fetchResult, 1)
	s.calls <- reply
	r := <-reply
	return r.payload, r.err
}

type staticSource struct {
	mu      sync.Mutex
	payload *domain.Payload
	err     error
	calls   int
}

func (s *staticSource) Fetch(ctx context.Context, q port.Query) (*domain.Payload, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return s.payload, s.err
}

func payloadWith(subject string) *domain.Payload {
	return domain.NewFlatPayload([]domain.RawRecord{{
		Day:     "Monday",
		Slot:    &domain.RawSlot{StartTime: "9:00 AM", EndTime: "10:00 AM"},
		Subject: &domain.RawSubject{Name: subject, Type: "Theory"},
	}})
}

func newRepo(t *testing.T) *jsonfile.Repository {
	repo, err := jsonfile.New(filepath.Join(t.TempDir(), "snapshots.json"))
	require.NoError(t, err)
	return repo
}

var classQuery = port.Query{Scope: port.ScopeClass, ID: "12"}

func TestLoader_ReloadPublishes(t *testing.T) {
	repo := newRepo(t)
	src := &staticSource{payload: payloadWith("Maths")}
	l := NewLoader(src, repo, zap.NewNop())

	snap, err := l.Reload(context.Background(), classQuery)
	require.NoError(t, err)
	assert.NotEmpty(t, snap.Version)
	require.NotNil(t, snap.Index)
	assert.Equal(t, "Maths", snap.Index.Entries[0].SubjectName)

	cur, err := l.Current(context.Background(), classQuery)
	require.NoError(t, err)
	assert.Equal(t, snap.Version, cur.Version)
}

func TestLoader_LastFetchWins(t *testing.T) {
	repo := newRepo(t)
	src := newBlockingSource()
	l := NewLoader(src, repo, zap.NewNop())

	type outcome struct {
		snap *port.Snapshot
		err  error
	}
	firstDone := make(chan outcome, 1)
	go func() {
		s, err := l.Reload(context.Background(), classQuery)
		firstDone <- outcome{s, err}
	}()
	firstReply := <-src.calls

	secondDone := make(chan outcome, 1)
	go func() {
		s, err := l.Reload(context.Background(), classQuery)
		secondDone <- outcome{s, err}
	}()
	secondReply := <-src.calls

	secondReply <- fetchResult{payload: payloadWith("Newer")}
	second := <-secondDone
	require.NoError(t, second.err)

	firstReply <- fetchResult{payload: payloadWith("Older")}
	first := <-firstDone
	assert.Equal(t, ErrSuperseded, first.err)

	cur, err := l.Current(context.Background(), classQuery)
	require.NoError(t, err)
	assert.Equal(t, "Newer", cur.Index.Entries[0].SubjectName)
	assert.Equal(t, second.snap.Version, cur.Version)
}

func TestLoader_FetchErrorKeepsPrevious(t *testing.T) {
	repo := newRepo(t)
	src := &staticSource{payload: payloadWith("Maths")}
	l := NewLoader(src, repo, zap.NewNop())

	prev, err := l.Reload(context.Background(), classQuery)
	require.NoError(t, err)

	boom := errors.New("upstream down")
	src.payload, src.err = nil, boom
	_, err = l.Reload(context.Background(), classQuery)
	require.Error(t, err)
	assert.Equal(t, boom, errors.Cause(err))

	cur, err := l.Current(context.Background(), classQuery)
	require.NoError(t, err)
	assert.Equal(t, prev.Version, cur.Version)
}

func TestLoader_NilPayloadIsEmptyGrid(t *testing.T) {
	l := NewLoader(&staticSource{}, newRepo(t), nil)
	snap, err := l.Reload(context.Background(), classQuery)
	require.NoError(t, err)
	require.NotNil(t, snap.Index)
	assert.Empty(t, snap.Index.Slots)
	assert.Empty(t, snap.Index.Entries)
}

func TestLoader_EnsureLoadsOnce(t *testing.T) {
	src := &staticSource{payload: payloadWith("Maths")}
	l := NewLoader(src, newRepo(t), zap.NewNop())

	_, err := l.Current(context.Background(), classQuery)
	assert.Equal(t, ErrNotLoaded, err)

	_, err = l.Ensure(context.Background(), classQuery)
	require.NoError(t, err)
	_, err = l.Ensure(context.Background(), classQuery)
	require.NoError(t, err)
	assert.Equal(t, 1, src.calls)

	require.NoError(t, l.Forget(context.Background(), classQuery))
	_, err = l.Current(context.Background(), classQuery)
	assert.Equal(t, ErrNotLoaded, err)
}

func TestLoader_ConcurrentEnsureSharesFirstLoad(t *testing.T) {
	src := newBlockingSource()
	l := NewLoader(src, newRepo(t), zap.NewNop())

	type outcome struct {
		snap *port.Snapshot
		err  error
	}
	results := make(chan outcome, 2)
	ensure := func() {
		s, err := l.Ensure(context.Background(), classQuery)
		results <- outcome{s, err}
	}

	go ensure()
	reply := <-src.calls
	go ensure()

	reply <- fetchResult{payload: payloadWith("Maths")}
	first, second := <-results, <-results
	require.NoError(t, first.err)
	require.NoError(t, second.err)
	assert.Equal(t, first.snap.Version, second.snap.Version)
	assert.Len(t, src.calls, 0)
}

func TestLoader_EnsureSurvivesSupersededFirstLoad(t *testing.T) {
	for _, olderFirst := range []bool{true, false} {
		src := newBlockingSource()
		l := NewLoader(src, newRepo(t), zap.NewNop())

		ensureErr := make(chan error, 1)
		ensureSnap := make(chan *port.Snapshot, 1)
		go func() {
			s, err := l.Ensure(context.Background(), classQuery)
			ensureErr <- err
			ensureSnap <- s
		}()
		olderReply := <-src.calls

		reloadDone := make(chan error, 1)
		go func() {
			_, err := l.Reload(context.Background(), classQuery)
			reloadDone <- err
		}()
		newerReply := <-src.calls

		if olderFirst {
			olderReply <- fetchResult{payload: payloadWith("Older")}
			newerReply <- fetchResult{payload: payloadWith("Newer")}
		} else {
			newerReply <- fetchResult{payload: payloadWith("Newer")}
			olderReply <- fetchResult{payload: payloadWith("Older")}
		}
		require.NoError(t, <-reloadDone)
		require.NoError(t, <-ensureErr, "olderFirst=%v", olderFirst)
		snap := <-ensureSnap
		assert.Equal(t, "Newer", snap.Index.Entries[0].SubjectName, "olderFirst=%v", olderFirst)
	}
}

func TestLoader_ForgetResetsIdleBookkeeping(t *testing.T) {
	l := NewLoader(&staticSource{payload: payloadWith("Maths")}, newRepo(t), zap.NewNop())
	_, err := l.Reload(context.Background(), classQuery)
	require.NoError(t, err)
	require.NoError(t, l.Forget(context.Background(), classQuery))

	l.mu.Lock()
	_, hasGen := l.gens[classQuery.Key()]
	_, hasLock := l.publish[classQuery.Key()]
	l.mu.Unlock()
	assert.False(t, hasGen)
	assert.False(t, hasLock)

	snap, err := l.Reload(context.Background(), classQuery)
	require.NoError(t, err)
	assert.NotEmpty(t, snap.Version)
}

func TestLoader_SlowSaveDoesNotBlockOtherViews(t *testing.T) {
	repo := &gatedRepo{
		SnapshotRepository: newRepo(t),
		gate:               make(chan struct{}),
		entered:            make(chan struct{}),
		blockKey:           classQuery.Key(),
	}
	l := NewLoader(&staticSource{payload: payloadWith("Maths")}, repo, zap.NewNop())

	slow := make(chan error, 1)
	go func() {
		_, err := l.Reload(context.Background(), classQuery)
		slow <- err
	}()
	<-repo.entered

	other := port.Query{Scope: port.ScopeTeacher, ID: "7"}
	done := make(chan error, 1)
	go func() {
		_, err := l.Reload(context.Background(), other)
		done <- err
	}()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("reload of another view waited for a slow save")
	}
	close(repo.gate)
	require.NoError(t, <-slow)
}

// gatedRepo holds Save for blockKey until gate is closed.
type gatedRepo struct {
	port.SnapshotRepository
	gate     chan struct{}
	blockKey string
	entered  chan struct{}
	once     sync.Once
}

func (g *gatedRepo) Save(ctx context.Context, s *port.Snapshot) error {
	if s.Query.Key() == g.blockKey {
		g.once.Do(func() { close(g.entered) })
		<-g.gate
	}
	return g.SnapshotRepository.Save(ctx, s)
}

func TestSnapshotChanged(t *testing.T) {
	s := &port.Snapshot{Version: "v2"}
	assert.True(t, SnapshotChanged("", s))
	assert.True(t, SnapshotChanged("v1", s))
	assert.False(t, SnapshotChanged("v2", s))
	assert.False(t, SnapshotChanged("v1", nil))
}
