package repository

import (
	"context"
	"sync"

	"campusrooms/internal/domain"
)

// MemoryAuditRepository keeps the most recent audit records in memory. Used
// standalone in tests and as the fallback behind the redis repository.
type MemoryAuditRepository struct {
	mu      sync.Mutex
	records []domain.AuditRecord
	cap     int
}

func NewMemoryAuditRepository(capacity int) *MemoryAuditRepository {
	if capacity <= 0 {
		capacity = 1000
	}
	return &MemoryAuditRepository{cap: capacity}
}

func (r *MemoryAuditRepository) Record(ctx context.Context, rec domain.AuditRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, rec)
	if len(r.records) > r.cap {
		r.records = r.records[len(r.records)-r.cap:]
	}
	return nil
}

func (r *MemoryAuditRepository) Recent(ctx context.Context, limit int) ([]domain.AuditRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if limit <= 0 || limit > len(r.records) {
		limit = len(r.records)
	}
	out := make([]domain.AuditRecord, 0, limit)
	// Newest first.
	for i := len(r.records) - 1; i >= len(r.records)-limit; i-- {
		out = append(out, r.records[i])
	}
	return out, nil
}
