package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"campusrooms/internal/models"
	"campusrooms/internal/timeslot"
)

const entryColumns = `id, request_id, room_id, date, start_minute, end_minute,
	status, owner_id, purpose, created_at, updated_at`

func (db *DB) ReadSchedules(ctx context.Context, roomID string, date time.Time) ([]models.ScheduleEntry, error) {
	query := `SELECT ` + entryColumns + ` FROM schedule_entries
			  WHERE room_id = ? AND date = ?
			  ORDER BY start_minute, id`
	rows, err := db.db.QueryContext(ctx, query, roomID, date.Format(models.DateLayout))
	if err != nil {
		return nil, fmt.Errorf("failed to read schedules: %w", err)
	}
	defer rows.Close()

	var out []models.ScheduleEntry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan schedule row: %w", err)
		}
		out = append(out, *entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (db *DB) GetScheduleByRequest(ctx context.Context, requestID string) (*models.ScheduleEntry, error) {
	query := `SELECT ` + entryColumns + ` FROM schedule_entries WHERE request_id = ?`
	row := db.db.QueryRowContext(ctx, query, requestID)
	entry, err := scanEntry(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get schedule for request %s: %w", requestID, err)
	}
	return entry, nil
}

// CommitApproval flips a pending request to approved and inserts its bound
// schedule entry in one transaction. Inside the transaction it re-verifies
// that no confirmed entry overlaps the slot and that the request is still
// pending; either failure means a concurrent approval landed first and is
// reported as a conflict-class error.
func (db *DB) CommitApproval(ctx context.Context, requestID string, entry *models.ScheduleEntry) error {
	tx, err := db.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var overlapping int
	queryOverlap := `SELECT COUNT(*) FROM schedule_entries
					 WHERE room_id = ? AND date = ? AND status = ?
					 AND start_minute < ? AND ? < end_minute`
	err = tx.QueryRowContext(ctx, queryOverlap,
		entry.RoomID,
		entry.Date.Format(models.DateLayout),
		models.EntryConfirmed,
		int(entry.Interval.End),
		int(entry.Interval.Start),
	).Scan(&overlapping)
	if err != nil {
		return fmt.Errorf("failed to check overlap in tx: %w", err)
	}
	if overlapping > 0 {
		return ErrScheduleConflict
	}

	now := time.Now()
	queryUpdate := `UPDATE reservation_requests
					SET status = ?, schedule_id = ?, resolved_at = ?, updated_at = ?
					WHERE id = ? AND status = ?`
	result, err := tx.ExecContext(ctx, queryUpdate,
		models.RequestApproved, entry.ID, now, now, requestID, models.RequestPending)
	if err != nil {
		return fmt.Errorf("failed to update request in tx: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		return ErrStaleStatus
	}

	queryInsert := `INSERT INTO schedule_entries (
					id, request_id, room_id, date, start_minute, end_minute,
					status, owner_id, purpose, created_at, updated_at
				) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = tx.ExecContext(ctx, queryInsert,
		entry.ID,
		requestID,
		entry.RoomID,
		entry.Date.Format(models.DateLayout),
		int(entry.Interval.Start),
		int(entry.Interval.End),
		models.EntryConfirmed,
		entry.OwnerID,
		entry.Purpose,
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to insert schedule entry in tx: %w", err)
	}

	entry.RequestID = requestID
	entry.Status = models.EntryConfirmed
	entry.CreatedAt = now
	entry.UpdatedAt = now

	return tx.Commit()
}

// CommitCancellation marks an approved request cancelled and its bound entry
// cancelled in one transaction.
func (db *DB) CommitCancellation(ctx context.Context, requestID, scheduleID, reason string) error {
	tx, err := db.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	now := time.Now()
	queryRequest := `UPDATE reservation_requests
					 SET status = ?, feedback = ?, resolved_at = ?, updated_at = ?
					 WHERE id = ? AND status = ?`
	result, err := tx.ExecContext(ctx, queryRequest,
		models.RequestCancelled, reason, now, now, requestID, models.RequestApproved)
	if err != nil {
		return fmt.Errorf("failed to cancel request in tx: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		return ErrStaleStatus
	}

	queryEntry := `UPDATE schedule_entries SET status = ?, updated_at = ?
				   WHERE id = ? AND status = ?`
	result, err = tx.ExecContext(ctx, queryEntry, models.EntryCancelled, now, scheduleID, models.EntryConfirmed)
	if err != nil {
		return fmt.Errorf("failed to cancel schedule entry in tx: %w", err)
	}
	affected, err = result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}

	return tx.Commit()
}

func scanEntry(row rowScanner) (*models.ScheduleEntry, error) {
	var entry models.ScheduleEntry
	var dateStr string
	var startMinute, endMinute int
	var purpose sql.NullString

	err := row.Scan(
		&entry.ID,
		&entry.RequestID,
		&entry.RoomID,
		&dateStr,
		&startMinute,
		&endMinute,
		&entry.Status,
		&entry.OwnerID,
		&purpose,
		&entry.CreatedAt,
		&entry.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	date, err := time.Parse(models.DateLayout, dateStr)
	if err != nil {
		return nil, fmt.Errorf("invalid stored date %q: %w", dateStr, err)
	}
	entry.Date = date
	entry.Interval = timeslot.Interval{Start: timeslot.TimeOfDay(startMinute), End: timeslot.TimeOfDay(endMinute)}
	entry.Purpose = purpose.String
	return &entry, nil
}
