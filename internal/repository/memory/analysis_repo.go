package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"clinsight/internal/domain"
	"clinsight/internal/port"
)

// AnalysisRepo is an in-process AnalysisRepository.
type AnalysisRepo struct {
	mu      sync.RWMutex
	records map[uuid.UUID]domain.AnalysisRecord
}

// NewAnalysisRepo creates an empty in-memory analysis repository.
func NewAnalysisRepo() *AnalysisRepo {
	return &AnalysisRepo{records: make(map[uuid.UUID]domain.AnalysisRecord)}
}

var _ port.AnalysisRepository = (*AnalysisRepo)(nil)

func (r *AnalysisRepo) Create(_ context.Context, record *domain.AnalysisRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.records[record.ID]; exists {
		return nil
	}
	r.records[record.ID] = *record
	return nil
}

func (r *AnalysisRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.AnalysisRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.records[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &rec, nil
}

func (r *AnalysisRepo) ListByUser(_ context.Context, userID string, limit int) ([]domain.AnalysisRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := []domain.AnalysisRecord{}
	for _, rec := range r.records {
		if rec.UserID == userID {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *AnalysisRepo) Delete(_ context.Context, id uuid.UUID, requestingUserID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[id]
	if !ok {
		return domain.ErrNotFound
	}
	if rec.UserID != requestingUserID {
		return domain.ErrForbidden
	}
	delete(r.records, id)
	return nil
}

// Count returns the number of stored records.
func (r *AnalysisRepo) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.records)
}
