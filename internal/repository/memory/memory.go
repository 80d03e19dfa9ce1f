package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/tuncerburak97/gozcu/internal/model"
)

// MemoryRepository keeps records in process memory. Records are cloned on the
// way in and out so stored values can never be mutated by callers.
type MemoryRepository struct {
	mu      sync.RWMutex
	records map[string]*model.Record
	order   []string
	seq     map[string]uint64
	next    uint64
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		records: make(map[string]*model.Record),
		seq:     make(map[string]uint64),
	}
}

func (r *MemoryRepository) Create(ctx context.Context, rec *model.Record) (string, error) {
	if rec == nil || rec.ID == "" {
		return "", fmt.Errorf("%w: record id is required", model.ErrPersistence)
	}
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("%w: %v", model.ErrPersistence, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.records[rec.ID]; exists {
		return "", fmt.Errorf("%w: duplicate record id %s", model.ErrPersistence, rec.ID)
	}
	r.records[rec.ID] = rec.Clone()
	r.order = append(r.order, rec.ID)
	r.next++
	r.seq[rec.ID] = r.next
	return rec.ID, nil
}

func (r *MemoryRepository) Get(ctx context.Context, id string) (*model.Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.records[id]
	if !ok {
		return nil, model.ErrNotFound
	}
	return rec.Clone(), nil
}

func (r *MemoryRepository) GetFields(ctx context.Context, id string) (map[string]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.records[id]
	if !ok {
		return map[string]string{}, nil
	}
	return rec.CopyFields(), nil
}

func (r *MemoryRepository) List(ctx context.Context, filter model.Filter) ([]model.Summary, error) {
	r.mu.RLock()
	matched := make([]*model.Record, 0, len(r.order))
	for _, id := range r.order {
		rec := r.records[id]
		if filter.Status != nil && rec.Status != *filter.Status {
			continue
		}
		matched = append(matched, rec)
	}
	seq := r.seq
	sort.SliceStable(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return seq[a.ID] > seq[b.ID]
	})
	r.mu.RUnlock()

	offset := filter.PageOffset()
	if offset >= len(matched) {
		return []model.Summary{}, nil
	}
	end := offset + filter.PageLimit()
	if end > len(matched) {
		end = len(matched)
	}

	out := make([]model.Summary, 0, end-offset)
	for _, rec := range matched[offset:end] {
		out = append(out, rec.Summary())
	}
	return out, nil
}

func (r *MemoryRepository) Count(ctx context.Context) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return int64(len(r.records)), nil
}

func (r *MemoryRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.records[id]; !ok {
		return model.ErrNotFound
	}
	delete(r.records, id)
	delete(r.seq, id)
	for i, existing := range r.order {
		if existing == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return nil
}

func (r *MemoryRepository) PurgeAll(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.records = make(map[string]*model.Record)
	r.seq = make(map[string]uint64)
	r.order = nil
	return nil
}

func (r *MemoryRepository) Migrate(ctx context.Context) error {
	return nil
}

func (r *MemoryRepository) Close() error {
	return nil
}
