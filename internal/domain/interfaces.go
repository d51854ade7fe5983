package domain

import (
	"context"
	"time"

	"campusrooms/internal/models"
)

// Store is the persistence boundary for requests and schedule entries. Each
// call is atomic on its own; the read-then-write pair around an approval is
// not, which is why the service treats a stale write as a conflict rather
// than a bug.
type Store interface {
	CreateRequest(ctx context.Context, req *models.ReservationRequest) error
	GetRequest(ctx context.Context, id string) (*models.ReservationRequest, error)
	ListRequestsByStatus(ctx context.Context, status string) ([]models.ReservationRequest, error)
	ReadSchedules(ctx context.Context, roomID string, date time.Time) ([]models.ScheduleEntry, error)
	ReadPendingRequests(ctx context.Context, roomID string, date time.Time) ([]models.ReservationRequest, error)
	GetScheduleByRequest(ctx context.Context, requestID string) (*models.ScheduleEntry, error)
	CommitApproval(ctx context.Context, requestID string, entry *models.ScheduleEntry) error
	CommitRejection(ctx context.Context, requestID, feedback string) error
	CommitCancellation(ctx context.Context, requestID, scheduleID, reason string) error
}

// Authorizer is the yes/no permission oracle. Policy data lives outside the
// core.
type Authorizer interface {
	Authorize(ctx context.Context, actorID int64, action string, resourceOwnerID int64) bool
}

// AuditRecord is one observability entry; it is fire-and-forget.
type AuditRecord struct {
	Action     string    `json:"action"`
	ActorID    int64     `json:"actor_id"`
	ResourceID string    `json:"resource_id"`
	Outcome    string    `json:"outcome"`
	At         time.Time `json:"at"`
}

// AuditRepository stores audit records. Failures must never abort a
// user-facing transition.
type AuditRepository interface {
	Record(ctx context.Context, rec AuditRecord) error
	Recent(ctx context.Context, limit int) ([]AuditRecord, error)
}

// EventPublisher fans committed transitions out to in-process subscribers.
type EventPublisher interface {
	PublishJSON(eventType string, payload interface{}) error
}
