package models

const (
	RequestPending   = "pending"
	RequestApproved  = "approved"
	RequestRejected  = "rejected"
	RequestCancelled = "cancelled"
)

const (
	EntryConfirmed = "confirmed"
	EntryCancelled = "cancelled"
)

const (
	ActionSubmit  = "reservation.submit"
	ActionApprove = "reservation.approve"
	ActionReject  = "reservation.reject"
	ActionCancel  = "reservation.cancel"
)

const (
	// DateLayout is the canonical date representation in storage and the API.
	DateLayout = "2006-01-02"

	// DefaultBulkConcurrency bounds bulk approve/reject/cancel runs.
	DefaultBulkConcurrency = 3

	// AuditLogMaxEntries caps the redis-backed audit trail.
	AuditLogMaxEntries = 10000
)

