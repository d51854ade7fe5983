package service

import (
	"context"

	"campusrooms/internal/bulk"
	"campusrooms/internal/metrics"
	"campusrooms/internal/models"
)

// BulkTasks builds one task per request ID, each applying the given lifecycle
// transition. Retrying an item that already committed comes back as
// InvalidState from the state machine instead of double-applying, so a
// rejected-subset retry is always safe.
func (s *ReservationService) BulkTasks(actorID int64, action string, requestIDs []string, feedback string) []bulk.Task {
	tasks := make([]bulk.Task, 0, len(requestIDs))
	for _, id := range requestIDs {
		id := id
		var run func(ctx context.Context) (any, error)
		switch action {
		case models.ActionApprove:
			run = func(ctx context.Context) (any, error) {
				return s.Approve(ctx, actorID, id)
			}
		case models.ActionReject:
			run = func(ctx context.Context) (any, error) {
				return nil, s.Reject(ctx, actorID, id, feedback)
			}
		case models.ActionCancel:
			run = func(ctx context.Context) (any, error) {
				return nil, s.Cancel(ctx, actorID, id, feedback)
			}
		default:
			run = func(ctx context.Context) (any, error) {
				return nil, validationErr("reservation.bulk", "unknown bulk action "+action)
			}
		}
		tasks = append(tasks, bulk.Task{ID: id, Run: run})
	}
	return tasks
}

// BulkApprove applies Approve to every request ID with bounded concurrency.
// Results are index-aligned with requestIDs; one item's failure never aborts
// its siblings.
func (s *ReservationService) BulkApprove(ctx context.Context, actorID int64, requestIDs []string, concurrency int, onProgress bulk.ProgressFunc) []bulk.Result {
	return s.runBulk(ctx, actorID, models.ActionApprove, requestIDs, "", concurrency, onProgress)
}

// BulkReject applies Reject with shared feedback to every request ID.
func (s *ReservationService) BulkReject(ctx context.Context, actorID int64, requestIDs []string, feedback string, concurrency int, onProgress bulk.ProgressFunc) []bulk.Result {
	return s.runBulk(ctx, actorID, models.ActionReject, requestIDs, feedback, concurrency, onProgress)
}

// BulkCancel applies Cancel with a shared reason to every request ID.
func (s *ReservationService) BulkCancel(ctx context.Context, actorID int64, requestIDs []string, reason string, concurrency int, onProgress bulk.ProgressFunc) []bulk.Result {
	return s.runBulk(ctx, actorID, models.ActionCancel, requestIDs, reason, concurrency, onProgress)
}

func (s *ReservationService) runBulk(ctx context.Context, actorID int64, action string, requestIDs []string, feedback string, concurrency int, onProgress bulk.ProgressFunc) []bulk.Result {
	if concurrency <= 0 {
		concurrency = models.DefaultBulkConcurrency
	}
	tasks := s.BulkTasks(actorID, action, requestIDs, feedback)
	runner := bulk.NewRunner(concurrency, onProgress, s.logger)
	results := runner.Start(ctx, tasks)
	for _, res := range results {
		metrics.IncBulkTask(string(res.Status))
	}
	return results
}
