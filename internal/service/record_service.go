package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tuncerburak97/gozcu/internal/metrics"
	"github.com/tuncerburak97/gozcu/internal/model"
)

var (
	ErrQueueFull = errors.New("record queue is full")
	ErrClosed    = errors.New("record service is shut down")
)

// Store is the write side of the log store.
type Store interface {
	Create(ctx context.Context, rec *model.Record) (string, error)
}

type Options struct {
	Async          bool
	Workers        int
	BufferSize     int
	PersistTimeout time.Duration
	Metrics        *metrics.MetricsCollector
}

// RecordService hands records to the store, either inline or through a
// bounded queue drained by a worker pool.
type RecordService struct {
	store   Store
	opts    Options
	metrics *metrics.MetricsCollector

	queue chan *model.Record
	wg    sync.WaitGroup
	done  chan struct{}

	mu     sync.RWMutex
	closed bool

	pendingMu sync.Mutex
	pending   int
	idle      chan struct{}
}

func NewRecordService(store Store, opts Options) *RecordService {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.BufferSize <= 0 {
		opts.BufferSize = 1
	}
	if opts.PersistTimeout <= 0 {
		opts.PersistTimeout = 5 * time.Second
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.GetMetricsCollector("gozcu", "gozcu")
	}

	s := &RecordService{
		store:   store,
		opts:    opts,
		metrics: opts.Metrics,
		done:    make(chan struct{}),
		idle:    make(chan struct{}),
	}
	close(s.idle)

	if opts.Async {
		s.queue = make(chan *model.Record, opts.BufferSize)
		s.startWorkers()
	}
	return s
}

func (s *RecordService) startWorkers() {
	for i := 0; i < s.opts.Workers; i++ {
		s.wg.Add(1)
		go s.processRecords(i)
	}

	go s.monitorQueue()
}

func (s *RecordService) processRecords(workerID int) {
	defer s.wg.Done()

	for rec := range s.queue {
		s.write(context.Background(), rec)
		s.track(-1)
	}
	log.Debug().Int("worker", workerID).Msg("Record worker stopped")
}

func (s *RecordService) write(ctx context.Context, rec *model.Record) error {
	ctx, cancel := context.WithTimeout(ctx, s.opts.PersistTimeout)
	defer cancel()

	if _, err := s.store.Create(ctx, rec); err != nil {
		s.metrics.LogPersistError("create")
		log.Warn().
			Err(err).
			Str("id", rec.ID).
			Str("url", rec.URL).
			Msg("Failed to persist record")
		if !errors.Is(err, model.ErrPersistence) {
			err = fmt.Errorf("%w: %v", model.ErrPersistence, err)
		}
		return err
	}
	s.metrics.IncPersisted()
	return nil
}

// Persist stores rec. In async mode it never blocks: a full queue drops the
// record and returns ErrQueueFull.
func (s *RecordService) Persist(ctx context.Context, rec *model.Record) error {
	if rec == nil {
		return nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		s.metrics.IncDropped("closed")
		return ErrClosed
	}
	if !s.opts.Async {
		return s.write(ctx, rec)
	}

	s.track(1)
	select {
	case s.queue <- rec:
		return nil
	default:
		s.track(-1)
		s.metrics.IncDropped("queue_full")
		log.Warn().
			Str("id", rec.ID).
			Int("buffer_size", s.opts.BufferSize).
			Msg("Record queue full, dropping record")
		return ErrQueueFull
	}
}

func (s *RecordService) track(delta int) {
	s.pendingMu.Lock()
	defer s.pendingMu.Unlock()

	if s.pending == 0 && delta > 0 {
		s.idle = make(chan struct{})
	}
	s.pending += delta
	if s.pending == 0 {
		close(s.idle)
	}
}

// Flush waits until every record queued so far has been written or ctx ends.
func (s *RecordService) Flush(ctx context.Context) error {
	s.pendingMu.Lock()
	idle := s.idle
	s.pendingMu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Pending returns the number of queued or in-flight records.
func (s *RecordService) Pending() int {
	s.pendingMu.Lock()
	defer s.pendingMu.Unlock()
	return s.pending
}

// Shutdown stops accepting records, drains the queue and stops the workers.
func (s *RecordService) Shutdown() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	if s.queue != nil {
		close(s.queue)
	}
	s.mu.Unlock()

	s.wg.Wait()
	close(s.done)
}

func (s *RecordService) monitorQueue() {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			s.metrics.ObserveQueueSize("records", 0)
			return
		case <-ticker.C:
			s.metrics.ObserveQueueSize("records", float64(len(s.queue)))
		}
	}
}
