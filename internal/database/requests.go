package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"campusrooms/internal/models"
	"campusrooms/internal/timeslot"
)

const requestColumns = `id, room_id, date, start_minute, end_minute, status,
	requester_id, purpose, feedback, schedule_id, created_at, resolved_at, updated_at`

func (db *DB) CreateRequest(ctx context.Context, req *models.ReservationRequest) error {
	query := `INSERT INTO reservation_requests (
				id, room_id, date, start_minute, end_minute, status,
				requester_id, purpose, created_at, updated_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	now := time.Now()
	_, err := db.db.ExecContext(ctx, query,
		req.ID,
		req.RoomID,
		req.Date.Format(models.DateLayout),
		int(req.Interval.Start),
		int(req.Interval.End),
		req.Status,
		req.RequesterID,
		req.Purpose,
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.CreatedAt = now
	req.UpdatedAt = now
	return nil
}

func (db *DB) GetRequest(ctx context.Context, id string) (*models.ReservationRequest, error) {
	query := `SELECT ` + requestColumns + ` FROM reservation_requests WHERE id = ?`
	row := db.db.QueryRowContext(ctx, query, id)
	req, err := scanRequest(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get request %s: %w", id, err)
	}
	return req, nil
}

func (db *DB) ListRequestsByStatus(ctx context.Context, status string) ([]models.ReservationRequest, error) {
	query := `SELECT ` + requestColumns + ` FROM reservation_requests
			  WHERE status = ? ORDER BY created_at, id`
	rows, err := db.db.QueryContext(ctx, query, status)
	if err != nil {
		return nil, fmt.Errorf("failed to list requests by status: %w", err)
	}
	defer rows.Close()
	return collectRequests(rows)
}

func (db *DB) ReadPendingRequests(ctx context.Context, roomID string, date time.Time) ([]models.ReservationRequest, error) {
	query := `SELECT ` + requestColumns + ` FROM reservation_requests
			  WHERE room_id = ? AND date = ? AND status = ?
			  ORDER BY created_at, id`
	rows, err := db.db.QueryContext(ctx, query, roomID, date.Format(models.DateLayout), models.RequestPending)
	if err != nil {
		return nil, fmt.Errorf("failed to read pending requests: %w", err)
	}
	defer rows.Close()
	return collectRequests(rows)
}

// CommitRejection moves a pending request to rejected and stores the
// feedback. Zero affected rows means a concurrent transition won.
func (db *DB) CommitRejection(ctx context.Context, requestID, feedback string) error {
	query := `UPDATE reservation_requests
			  SET status = ?, feedback = ?, resolved_at = ?, updated_at = ?
			  WHERE id = ? AND status = ?`
	now := time.Now()
	result, err := db.db.ExecContext(ctx, query, models.RequestRejected, feedback, now, now, requestID, models.RequestPending)
	if err != nil {
		return fmt.Errorf("failed to commit rejection: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		return ErrStaleStatus
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRequest(row rowScanner) (*models.ReservationRequest, error) {
	var req models.ReservationRequest
	var dateStr string
	var startMinute, endMinute int
	var purpose, feedback, scheduleID sql.NullString
	var resolvedAt sql.NullTime

	err := row.Scan(
		&req.ID,
		&req.RoomID,
		&dateStr,
		&startMinute,
		&endMinute,
		&req.Status,
		&req.RequesterID,
		&purpose,
		&feedback,
		&scheduleID,
		&req.CreatedAt,
		&resolvedAt,
		&req.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	date, err := time.Parse(models.DateLayout, dateStr)
	if err != nil {
		return nil, fmt.Errorf("invalid stored date %q: %w", dateStr, err)
	}
	req.Date = date
	req.Interval = timeslot.Interval{Start: timeslot.TimeOfDay(startMinute), End: timeslot.TimeOfDay(endMinute)}
	req.Purpose = purpose.String
	req.Feedback = feedback.String
	req.ScheduleID = scheduleID.String
	if resolvedAt.Valid {
		t := resolvedAt.Time
		req.ResolvedAt = &t
	}
	return &req, nil
}

func collectRequests(rows *sql.Rows) ([]models.ReservationRequest, error) {
	var out []models.ReservationRequest
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan request row: %w", err)
		}
		out = append(out, *req)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
