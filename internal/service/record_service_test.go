package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tuncerburak97/gozcu/internal/metrics"
	"github.com/tuncerburak97/gozcu/internal/model"
)

type fakeStore struct {
	mu      sync.Mutex
	records []*model.Record
	err     error
	gate    chan struct{}
}

func (f *fakeStore) Create(ctx context.Context, rec *model.Record) (string, error) {
	if f.gate != nil {
		<-f.gate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	f.records = append(f.records, rec)
	return rec.ID, nil
}

func (f *fakeStore) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.records)
}

func newMetrics() *metrics.MetricsCollector {
	return metrics.NewMetricsCollector("gozcu", "test", prometheus.NewRegistry())
}

func record(id string) *model.Record {
	return &model.Record{ID: id, URL: "https://license.example.com"}
}

func TestPersist_Sync(t *testing.T) {
	store := &fakeStore{}
	m := newMetrics()
	s := NewRecordService(store, Options{Metrics: m})
	defer s.Shutdown()

	require.NoError(t, s.Persist(context.Background(), record("a")))
	assert.Equal(t, 1, store.count())
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RecordsPersisted))
}

func TestPersist_SyncWrapsStoreErrors(t *testing.T) {
	store := &fakeStore{err: errors.New("disk full")}
	m := newMetrics()
	s := NewRecordService(store, Options{Metrics: m})

	err := s.Persist(context.Background(), record("a"))
	assert.ErrorIs(t, err, model.ErrPersistence)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PersistErrors))
}

func TestPersist_AsyncFlush(t *testing.T) {
	store := &fakeStore{}
	s := NewRecordService(store, Options{Async: true, Workers: 3, BufferSize: 100, Metrics: newMetrics()})
	defer s.Shutdown()

	for i := 0; i < 50; i++ {
		require.NoError(t, s.Persist(context.Background(), record("r")))
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, s.Flush(ctx))

	assert.Equal(t, 50, store.count())
	assert.Zero(t, s.Pending())
}

func TestPersist_AsyncQueueFullDrops(t *testing.T) {
	store := &fakeStore{gate: make(chan struct{})}
	m := newMetrics()
	s := NewRecordService(store, Options{Async: true, Workers: 1, BufferSize: 1, Metrics: m})

	// One record is held by the blocked worker, one fills the buffer.
	require.NoError(t, s.Persist(context.Background(), record("a")))
	require.Eventually(t, func() bool { return len(s.queue) == 0 }, time.Second, time.Millisecond)
	require.NoError(t, s.Persist(context.Background(), record("b")))

	err := s.Persist(context.Background(), record("c"))
	assert.ErrorIs(t, err, ErrQueueFull)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RecordsDropped))

	close(store.gate)
	s.Shutdown()
	assert.Equal(t, 2, store.count())
}

func TestFlush_HonoursContext(t *testing.T) {
	store := &fakeStore{gate: make(chan struct{})}
	s := NewRecordService(store, Options{Async: true, Workers: 1, BufferSize: 4, Metrics: newMetrics()})

	require.NoError(t, s.Persist(context.Background(), record("a")))
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, s.Flush(ctx), context.DeadlineExceeded)

	close(store.gate)
	require.NoError(t, s.Flush(context.Background()))
	s.Shutdown()
}

func TestShutdown_DrainsAndRejects(t *testing.T) {
	store := &fakeStore{}
	m := newMetrics()
	s := NewRecordService(store, Options{Async: true, Workers: 2, BufferSize: 10, Metrics: m})

	for i := 0; i < 10; i++ {
		require.NoError(t, s.Persist(context.Background(), record("r")))
	}
	s.Shutdown()
	s.Shutdown()

	assert.Equal(t, 10, store.count())
	assert.ErrorIs(t, s.Persist(context.Background(), record("late")), ErrClosed)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RecordsDropped))
}

func TestFlush_IdleReturnsImmediately(t *testing.T) {
	s := NewRecordService(&fakeStore{}, Options{Async: true, Metrics: newMetrics()})
	defer s.Shutdown()
	assert.NoError(t, s.Flush(context.Background()))
}
