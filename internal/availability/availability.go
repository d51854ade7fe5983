package availability

import (
	"time"

	"campusrooms/internal/models"
	"campusrooms/internal/timeslot"
)

// Verdict classifies a candidate interval against the room's existing load.
type Verdict int

const (
	Free Verdict = iota
	ConflictsConfirmed
	ConflictsPending
	ConflictsBoth
)

func (v Verdict) String() string {
	switch v {
	case Free:
		return "free"
	case ConflictsConfirmed:
		return "conflicts_confirmed"
	case ConflictsPending:
		return "conflicts_pending"
	case ConflictsBoth:
		return "conflicts_both"
	default:
		return "unknown"
	}
}

// Blocking reports whether the verdict prevents an approval. Pending-only
// conflicts do not block: whichever request is approved first wins.
func (v Verdict) Blocking() bool {
	return v == ConflictsConfirmed || v == ConflictsBoth
}

// Check scans the room's confirmed entries and pending requests for overlaps
// with the candidate interval. Pure query; result is independent of input
// order. Cancelled entries never conflict. The request identified by
// excludeRequestID is skipped so a request is not compared against itself
// during its own approval re-check.
func Check(roomID string, date time.Time, candidate timeslot.Interval, confirmed []models.ScheduleEntry, pending []models.ReservationRequest, excludeRequestID string) Verdict {
	var hitConfirmed, hitPending bool

	for _, entry := range confirmed {
		if entry.RoomID != roomID || entry.Status != models.EntryConfirmed {
			continue
		}
		if !models.SameDate(entry.Date, date) {
			continue
		}
		if timeslot.Overlaps(candidate, entry.Interval) {
			hitConfirmed = true
			break
		}
	}

	for _, req := range pending {
		if req.RoomID != roomID || req.Status != models.RequestPending {
			continue
		}
		if req.ID == excludeRequestID {
			continue
		}
		if !models.SameDate(req.Date, date) {
			continue
		}
		if timeslot.Overlaps(candidate, req.Interval) {
			hitPending = true
			break
		}
	}

	switch {
	case hitConfirmed && hitPending:
		return ConflictsBoth
	case hitConfirmed:
		return ConflictsConfirmed
	case hitPending:
		return ConflictsPending
	default:
		return Free
	}
}
