package models

import (
	"time"

	"campusrooms/internal/timeslot"
)

// ReservationRequest is a faculty request for a room time slot. Approved
// requests carry the ID of the schedule entry they produced, so the binding
// is an explicit foreign key rather than a field match.
type ReservationRequest struct {
	ID          string            `json:"id"`
	RoomID      string            `json:"room_id"`
	Date        time.Time         `json:"date"`
	Interval    timeslot.Interval `json:"interval"`
	Status      string            `json:"status"` // pending, approved, rejected, cancelled
	RequesterID int64             `json:"requester_id"`
	Purpose     string            `json:"purpose"`
	Feedback    string            `json:"feedback,omitempty"`
	ScheduleID  string            `json:"schedule_id,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
	ResolvedAt  *time.Time        `json:"resolved_at,omitempty"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

// Terminal reports whether the request status admits no further transitions.
func (r *ReservationRequest) Terminal() bool {
	return r.Status == RequestRejected || r.Status == RequestCancelled
}
