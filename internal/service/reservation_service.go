package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"campusrooms/internal/availability"
	"campusrooms/internal/database"
	"campusrooms/internal/domain"
	"campusrooms/internal/events"
	"campusrooms/internal/metrics"
	"campusrooms/internal/models"
	"campusrooms/internal/timeslot"
)

// ReservationService drives the request lifecycle: pending -> approved ->
// cancelled, pending -> rejected. There is no in-process locking; every
// transition re-checks availability before committing, and a write that loses
// the race surfaces as a conflict the caller can retry with fresh data.
type ReservationService struct {
	store  domain.Store
	authz  domain.Authorizer
	audit  domain.AuditRepository
	bus    domain.EventPublisher
	logger *zerolog.Logger
	now    func() time.Time
}

func NewReservationService(store domain.Store, authz domain.Authorizer, audit domain.AuditRepository, bus domain.EventPublisher, logger *zerolog.Logger) *ReservationService {
	return &ReservationService{
		store:  store,
		authz:  authz,
		audit:  audit,
		bus:    bus,
		logger: logger,
		now:    time.Now,
	}
}

// SubmitInput carries a validated reservation request candidate.
type SubmitInput struct {
	RoomID      string
	Date        time.Time
	Interval    timeslot.Interval
	RequesterID int64
	Purpose     string
}

// Submit validates the candidate slot and creates a pending request. The
// slot must be fully free at submit time, pending requests included.
func (s *ReservationService) Submit(ctx context.Context, in SubmitInput) (*models.ReservationRequest, error) {
	const op = "reservation.submit"

	if strings.TrimSpace(in.RoomID) == "" {
		return nil, s.fail(ctx, op, in.RequesterID, "", validationErr(op, "room_id is required"))
	}
	if _, err := timeslot.NewInterval(in.Interval.Start, in.Interval.End); err != nil {
		return nil, s.fail(ctx, op, in.RequesterID, "", validationErr(op, err.Error()))
	}
	if in.Date.IsZero() {
		return nil, s.fail(ctx, op, in.RequesterID, "", validationErr(op, "date is required"))
	}

	if !s.authz.Authorize(ctx, in.RequesterID, models.ActionSubmit, in.RequesterID) {
		return nil, s.fail(ctx, op, in.RequesterID, "", forbiddenErr(op, "requester is not allowed to submit reservations"))
	}

	verdict, err := s.checkAvailability(ctx, op, in.RoomID, in.Date, in.Interval, "")
	if err != nil {
		return nil, s.fail(ctx, op, in.RequesterID, "", err)
	}
	if verdict != availability.Free {
		return nil, s.fail(ctx, op, in.RequesterID, "",
			conflictErr(op, "slot is not free: "+verdict.String(), nil))
	}

	req := &models.ReservationRequest{
		ID:          uuid.NewString(),
		RoomID:      in.RoomID,
		Date:        models.DateOnly(in.Date),
		Interval:    in.Interval,
		Status:      models.RequestPending,
		RequesterID: in.RequesterID,
		Purpose:     in.Purpose,
	}
	if err := s.store.CreateRequest(ctx, req); err != nil {
		return nil, s.fail(ctx, op, in.RequesterID, req.ID, upstreamErr(op, "create request", err))
	}

	s.committed(ctx, op, in.RequesterID, req, events.EventRequestSubmitted, 0)
	return req, nil
}

// Approve re-validates availability and turns a pending request into a
// confirmed schedule entry. The first approval to pass the re-check wins;
// later approvals of now-conflicting requests get a conflict error, never a
// silent drop.
func (s *ReservationService) Approve(ctx context.Context, actorID int64, requestID string) (*models.ScheduleEntry, error) {
	const op = "reservation.approve"

	req, err := s.loadRequest(ctx, op, requestID)
	if err != nil {
		return nil, s.fail(ctx, op, actorID, requestID, err)
	}

	if req.Status == models.RequestApproved {
		// Idempotent-safe retry: the bound entry already exists, so no second
		// one is ever created.
		return nil, s.fail(ctx, op, actorID, requestID, invalidStateErr(op, "request is already approved"))
	}
	if req.Terminal() {
		return nil, s.fail(ctx, op, actorID, requestID, invalidStateErr(op, "request is already "+req.Status))
	}

	if !s.authz.Authorize(ctx, actorID, models.ActionApprove, req.RequesterID) {
		return nil, s.fail(ctx, op, actorID, requestID, forbiddenErr(op, "approve permission required"))
	}

	// Time has passed since submission; other requests may have been
	// approved meanwhile. This re-check is what closes the race.
	verdict, err := s.checkAvailability(ctx, op, req.RoomID, req.Date, req.Interval, req.ID)
	if err != nil {
		return nil, s.fail(ctx, op, actorID, requestID, err)
	}
	if verdict.Blocking() {
		return nil, s.fail(ctx, op, actorID, requestID,
			conflictErr(op, "slot no longer free: "+verdict.String(), nil))
	}

	entry := &models.ScheduleEntry{
		ID:       uuid.NewString(),
		RoomID:   req.RoomID,
		Date:     req.Date,
		Interval: req.Interval,
		OwnerID:  req.RequesterID,
		Purpose:  req.Purpose,
	}
	if err := s.store.CommitApproval(ctx, req.ID, entry); err != nil {
		switch {
		case errors.Is(err, database.ErrScheduleConflict):
			return nil, s.fail(ctx, op, actorID, requestID,
				conflictErr(op, "a conflicting approval committed first", err))
		case errors.Is(err, database.ErrStaleStatus):
			return nil, s.fail(ctx, op, actorID, requestID,
				conflictErr(op, "request status changed concurrently", err))
		default:
			return nil, s.fail(ctx, op, actorID, requestID, upstreamErr(op, "commit approval", err))
		}
	}

	req.Status = models.RequestApproved
	req.ScheduleID = entry.ID
	s.committed(ctx, op, actorID, req, events.EventRequestApproved, actorID)
	return entry, nil
}

// Reject moves a pending request to the terminal rejected state. Feedback is
// mandatory so the requester knows what to fix.
func (s *ReservationService) Reject(ctx context.Context, actorID int64, requestID, feedback string) error {
	const op = "reservation.reject"

	if strings.TrimSpace(feedback) == "" {
		return s.fail(ctx, op, actorID, requestID, validationErr(op, "feedback is required"))
	}

	req, err := s.loadRequest(ctx, op, requestID)
	if err != nil {
		return s.fail(ctx, op, actorID, requestID, err)
	}
	if req.Status != models.RequestPending {
		return s.fail(ctx, op, actorID, requestID, invalidStateErr(op, "request is already "+req.Status))
	}

	if !s.authz.Authorize(ctx, actorID, models.ActionReject, req.RequesterID) {
		return s.fail(ctx, op, actorID, requestID, forbiddenErr(op, "approve permission required"))
	}

	if err := s.store.CommitRejection(ctx, req.ID, feedback); err != nil {
		if errors.Is(err, database.ErrStaleStatus) {
			return s.fail(ctx, op, actorID, requestID, invalidStateErr(op, "request status changed concurrently"))
		}
		return s.fail(ctx, op, actorID, requestID, upstreamErr(op, "commit rejection", err))
	}

	req.Status = models.RequestRejected
	req.Feedback = feedback
	s.committed(ctx, op, actorID, req, events.EventRequestRejected, actorID)
	return nil
}

// Cancel withdraws an approved request and marks its bound schedule entry
// cancelled. Allowed for the owner and for holders of approve permission.
func (s *ReservationService) Cancel(ctx context.Context, actorID int64, requestID, reason string) error {
	const op = "reservation.cancel"

	if strings.TrimSpace(reason) == "" {
		return s.fail(ctx, op, actorID, requestID, validationErr(op, "cancellation reason is required"))
	}

	req, err := s.loadRequest(ctx, op, requestID)
	if err != nil {
		return s.fail(ctx, op, actorID, requestID, err)
	}
	if req.Status != models.RequestApproved {
		return s.fail(ctx, op, actorID, requestID, invalidStateErr(op, "only approved requests can be cancelled, request is "+req.Status))
	}

	if !s.authz.Authorize(ctx, actorID, models.ActionCancel, req.RequesterID) {
		return s.fail(ctx, op, actorID, requestID, forbiddenErr(op, "owner or approve permission required"))
	}

	scheduleID := req.ScheduleID
	if scheduleID == "" {
		entry, err := s.boundEntry(ctx, req)
		if err != nil || entry == nil {
			return s.fail(ctx, op, actorID, requestID, upstreamErr(op, "approved request has no bound schedule entry", err))
		}
		scheduleID = entry.ID
	}

	if err := s.store.CommitCancellation(ctx, req.ID, scheduleID, reason); err != nil {
		if errors.Is(err, database.ErrStaleStatus) {
			return s.fail(ctx, op, actorID, requestID, invalidStateErr(op, "request status changed concurrently"))
		}
		return s.fail(ctx, op, actorID, requestID, upstreamErr(op, "commit cancellation", err))
	}

	req.Status = models.RequestCancelled
	req.Feedback = reason
	s.committed(ctx, op, actorID, req, events.EventRequestCancelled, actorID)
	return nil
}

// CheckSlot reports the availability verdict for a candidate interval
// without mutating anything.
func (s *ReservationService) CheckSlot(ctx context.Context, roomID string, date time.Time, iv timeslot.Interval) (availability.Verdict, error) {
	const op = "reservation.check"
	if _, err := timeslot.NewInterval(iv.Start, iv.End); err != nil {
		return availability.Free, validationErr(op, err.Error())
	}
	return s.checkAvailability(ctx, op, roomID, date, iv, "")
}

// ListByStatus exposes stored requests for the portal views.
func (s *ReservationService) ListByStatus(ctx context.Context, status string) ([]models.ReservationRequest, error) {
	const op = "reservation.list"
	switch status {
	case models.RequestPending, models.RequestApproved, models.RequestRejected, models.RequestCancelled:
	default:
		return nil, validationErr(op, "unknown status "+status)
	}
	list, err := s.store.ListRequestsByStatus(ctx, status)
	if err != nil {
		return nil, upstreamErr(op, "list requests", err)
	}
	return list, nil
}

func (s *ReservationService) checkAvailability(ctx context.Context, op, roomID string, date time.Time, iv timeslot.Interval, excludeRequestID string) (availability.Verdict, error) {
	confirmed, err := s.store.ReadSchedules(ctx, roomID, date)
	if err != nil {
		return availability.Free, upstreamErr(op, "read schedules", err)
	}
	pending, err := s.store.ReadPendingRequests(ctx, roomID, date)
	if err != nil {
		return availability.Free, upstreamErr(op, "read pending requests", err)
	}
	return availability.Check(roomID, date, iv, confirmed, pending, excludeRequestID), nil
}

func (s *ReservationService) loadRequest(ctx context.Context, op, requestID string) (*models.ReservationRequest, error) {
	req, err := s.store.GetRequest(ctx, requestID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, validationErr(op, "unknown request "+requestID)
		}
		return nil, upstreamErr(op, "load request", err)
	}
	return req, nil
}

func (s *ReservationService) boundEntry(ctx context.Context, req *models.ReservationRequest) (*models.ScheduleEntry, error) {
	entry, err := s.store.GetScheduleByRequest(ctx, req.ID)
	if errors.Is(err, database.ErrNotFound) {
		return nil, nil
	}
	return entry, err
}

// fail records the audit trail and metrics for a failed transition and
// returns the error unchanged.
func (s *ReservationService) fail(ctx context.Context, op string, actorID int64, resourceID string, err error) error {
	outcome := ErrKind(err).String()
	metrics.IncTransition(op, outcome)
	s.record(ctx, op, actorID, resourceID, outcome)
	return err
}

// committed records audit, metrics and the domain event for a successful
// transition.
func (s *ReservationService) committed(ctx context.Context, op string, actorID int64, req *models.ReservationRequest, eventType string, changedBy int64) {
	metrics.IncTransition(op, "ok")
	s.record(ctx, op, actorID, req.ID, "ok")

	if s.bus == nil {
		return
	}
	payload := events.RequestEventPayload{
		RequestID:   req.ID,
		RoomID:      req.RoomID,
		Date:        req.Date.Format(models.DateLayout),
		Interval:    req.Interval,
		Status:      req.Status,
		RequesterID: req.RequesterID,
		ScheduleID:  req.ScheduleID,
		Feedback:    req.Feedback,
		ActorID:     changedBy,
	}
	if err := s.bus.PublishJSON(eventType, payload); err != nil {
		s.logger.Warn().Err(err).Str("event", eventType).Msg("publish event")
	}
}

// record writes the audit entry; audit failures are logged and swallowed so
// they never abort a user-facing transition.
func (s *ReservationService) record(ctx context.Context, action string, actorID int64, resourceID, outcome string) {
	if s.audit == nil {
		return
	}
	rec := domain.AuditRecord{
		Action:     action,
		ActorID:    actorID,
		ResourceID: resourceID,
		Outcome:    outcome,
		At:         s.now(),
	}
	if err := s.audit.Record(ctx, rec); err != nil {
		s.logger.Warn().Err(err).Str("action", action).Msg("audit record failed")
	}
}
