package repository

import (
	"context"
	"sync/atomic"
	"time"

	"campusrooms/internal/domain"

	"github.com/rs/zerolog"
)

// FailoverAuditRepository prefers the primary (redis) repository and falls
// back to the in-memory one when it fails, probing the primary again after a
// minute. Audit writes are fire-and-forget for the caller either way.
type FailoverAuditRepository struct {
	primary   domain.AuditRepository
	fallback  domain.AuditRepository
	logger    *zerolog.Logger
	isDown    atomic.Bool
	lastCheck atomic.Int64
}

func NewFailoverAuditRepository(primary, fallback domain.AuditRepository, logger *zerolog.Logger) *FailoverAuditRepository {
	return &FailoverAuditRepository{
		primary:  primary,
		fallback: fallback,
		logger:   logger,
	}
}

func (r *FailoverAuditRepository) Record(ctx context.Context, rec domain.AuditRecord) error {
	if r.tryPrimary() {
		err := r.primary.Record(ctx, rec)
		if err == nil {
			return nil
		}
		r.markDown(err)
	}
	return r.fallback.Record(ctx, rec)
}

func (r *FailoverAuditRepository) Recent(ctx context.Context, limit int) ([]domain.AuditRecord, error) {
	if r.tryPrimary() {
		records, err := r.primary.Recent(ctx, limit)
		if err == nil {
			return records, nil
		}
		r.markDown(err)
	}
	return r.fallback.Recent(ctx, limit)
}

// tryPrimary reports whether the primary should be attempted, probing it
// again one minute after the last failure.
func (r *FailoverAuditRepository) tryPrimary() bool {
	if !r.isDown.Load() {
		return true
	}
	last := time.Unix(0, r.lastCheck.Load())
	if time.Since(last) > time.Minute {
		r.isDown.Store(false)
		return true
	}
	return false
}

func (r *FailoverAuditRepository) markDown(err error) {
	r.logger.Error().Err(err).Msg("Primary audit repository failed, falling back to memory")
	r.isDown.Store(true)
	r.lastCheck.Store(time.Now().UnixNano())
}
