package models

import (
	"time"

	"campusrooms/internal/timeslot"
)

// ScheduleEntry is a confirmed room reservation created from an approved
// request. The facility owns it, but it stays tied to the requester.
type ScheduleEntry struct {
	ID        string            `json:"id"`
	RequestID string            `json:"request_id"`
	RoomID    string            `json:"room_id"`
	Date      time.Time         `json:"date"`
	Interval  timeslot.Interval `json:"interval"`
	Status    string            `json:"status"` // confirmed, cancelled
	OwnerID   int64             `json:"owner_id"`
	Purpose   string            `json:"purpose"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}
