package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/example/workstation-scheduler/internal/calendar"
	"github.com/example/workstation-scheduler/internal/persistence"
	"github.com/example/workstation-scheduler/internal/scheduler"
)

// ReservationRepository implements persistence.ReservationRepository using SQLite
type ReservationRepository struct {
	pool *Pool
}

func NewReservationRepository(pool *Pool) *ReservationRepository {
	return &ReservationRepository{pool: pool}
}

const reservationColumns = `id, resource_id, user_id, start_date, end_date, purpose, status,
	created_by_role, created_at, updated_at, last_renewed_at`

// GetReservation retrieves a reservation by ID
func (r *ReservationRepository) GetReservation(ctx context.Context, id string) (scheduler.Reservation, error) {
	if id == "" {
		return scheduler.Reservation{}, persistence.ErrNotFound
	}

	query := `SELECT ` + reservationColumns + ` FROM reservations WHERE id = ?`
	reservation, err := scanReservation(r.pool.DB().QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return scheduler.Reservation{}, persistence.ErrNotFound
		}
		return scheduler.Reservation{}, mapError(err)
	}
	return reservation, nil
}

// ListActiveByResource lists the workstation's active reservations, optionally
// limited to those overlapping window.
func (r *ReservationRepository) ListActiveByResource(ctx context.Context, resourceID string, window *calendar.Range) ([]scheduler.Reservation, error) {
	query := `SELECT ` + reservationColumns + `
		FROM reservations
		WHERE resource_id = ? AND status = 'active'`
	args := []any{resourceID}
	if window != nil {
		query += ` AND start_date <= ? AND end_date >= ?`
		args = append(args, window.End.String(), window.Start.String())
	}
	query += ` ORDER BY start_date ASC, id ASC`
	return r.queryReservations(ctx, query, args...)
}

// ListActiveByUser lists the user's active reservations ending on or after from.
func (r *ReservationRepository) ListActiveByUser(ctx context.Context, userID string, from calendar.Date) ([]scheduler.Reservation, error) {
	query := `SELECT ` + reservationColumns + `
		FROM reservations
		WHERE user_id = ? AND status = 'active' AND end_date >= ?
		ORDER BY start_date ASC, id ASC`
	return r.queryReservations(ctx, query, userID, from.String())
}

// ListActive lists active reservations matching the filter.
func (r *ReservationRepository) ListActive(ctx context.Context, filter persistence.ActiveFilter) ([]scheduler.Reservation, error) {
	conditions := []string{"status = 'active'"}
	var args []any
	if filter.ResourceID != "" {
		conditions = append(conditions, "resource_id = ?")
		args = append(args, filter.ResourceID)
	}
	if filter.EndsBefore != nil {
		conditions = append(conditions, "end_date < ?")
		args = append(args, filter.EndsBefore.String())
	}
	if filter.EndsOn != nil {
		conditions = append(conditions, "end_date = ?")
		args = append(args, filter.EndsOn.String())
	}
	if filter.Covers != nil {
		conditions = append(conditions, "start_date <= ? AND end_date >= ?")
		args = append(args, filter.Covers.String(), filter.Covers.String())
	}

	query := `SELECT ` + reservationColumns + ` FROM reservations WHERE ` +
		strings.Join(conditions, " AND ") + ` ORDER BY start_date ASC, id ASC`
	return r.queryReservations(ctx, query, args...)
}

// ApplyChanges writes the change set in one transaction. The overlap check runs
// inside the same transaction after the writes, so a failed check rolls back
// every row. Busy database errors are retried.
func (r *ReservationRepository) ApplyChanges(ctx context.Context, changes persistence.ChangeSet) error {
	if err := changes.Validate(); err != nil {
		return err
	}
	if changes.Empty() {
		return nil
	}

	return r.pool.InTx(ctx, func(tx *sql.Tx) error {
		for _, reservation := range changes.Inserts {
			if err := insertReservation(ctx, tx, reservation); err != nil {
				return err
			}
		}
		for _, reservation := range changes.Updates {
			if err := updateReservation(ctx, tx, reservation); err != nil {
				return err
			}
		}
		for _, list := range [][]scheduler.Reservation{changes.Inserts, changes.Updates} {
			for _, reservation := range list {
				if err := checkNoOverlap(ctx, tx, reservation); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

func insertReservation(ctx context.Context, tx *sql.Tx, res scheduler.Reservation) error {
	query := `INSERT INTO reservations (` + reservationColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := tx.ExecContext(ctx, query,
		res.ID,
		res.ResourceID,
		res.UserID,
		res.Period.Start.String(),
		res.Period.End.String(),
		res.Purpose,
		string(res.Status),
		string(res.CreatedByRole),
		formatTimestamp(res.CreatedAt),
		formatTimestamp(res.UpdatedAt),
		formatTimestamp(res.LastRenewedAt),
	)
	if err != nil {
		return fmt.Errorf("insert reservation %s: %w", res.ID, mapError(err))
	}
	return nil
}

func updateReservation(ctx context.Context, tx *sql.Tx, res scheduler.Reservation) error {
	var resourceID, userID string
	err := tx.QueryRowContext(ctx, `SELECT resource_id, user_id FROM reservations WHERE id = ?`, res.ID).
		Scan(&resourceID, &userID)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: reservation %s", persistence.ErrNotFound, res.ID)
	}
	if err != nil {
		return fmt.Errorf("load reservation %s: %w", res.ID, err)
	}
	if resourceID != res.ResourceID || userID != res.UserID {
		return fmt.Errorf("%w: reservation %s cannot change owner or workstation", persistence.ErrConstraintViolation, res.ID)
	}

	const query = `
		UPDATE reservations
		SET start_date = ?, end_date = ?, purpose = ?, status = ?, updated_at = ?, last_renewed_at = ?
		WHERE id = ?`
	_, err = tx.ExecContext(ctx, query,
		res.Period.Start.String(),
		res.Period.End.String(),
		res.Purpose,
		string(res.Status),
		formatTimestamp(res.UpdatedAt),
		formatTimestamp(res.LastRenewedAt),
		res.ID,
	)
	if err != nil {
		return fmt.Errorf("update reservation %s: %w", res.ID, mapError(err))
	}
	return nil
}

func checkNoOverlap(ctx context.Context, tx *sql.Tx, res scheduler.Reservation) error {
	if !res.IsActive() {
		return nil
	}
	const query = `
		SELECT id FROM reservations
		WHERE resource_id = ? AND status = 'active' AND id <> ?
			AND start_date <= ? AND end_date >= ?
		LIMIT 1`
	var other string
	err := tx.QueryRowContext(ctx, query, res.ResourceID, res.ID, res.Period.End.String(), res.Period.Start.String()).Scan(&other)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil
	case err != nil:
		return fmt.Errorf("check overlap for %s: %w", res.ID, err)
	}
	return fmt.Errorf("%w: %s and %s on %s", persistence.ErrOverlap, res.ID, other, res.ResourceID)
}

func (r *ReservationRepository) queryReservations(ctx context.Context, query string, args ...any) ([]scheduler.Reservation, error) {
	rows, err := r.pool.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var reservations []scheduler.Reservation
	for rows.Next() {
		reservation, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		reservations = append(reservations, reservation)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err)
	}
	return reservations, nil
}

func scanReservation(row rowScanner) (scheduler.Reservation, error) {
	var res scheduler.Reservation
	var startDate, endDate, status, role string
	var createdAt, updatedAt, lastRenewedAt string
	if err := row.Scan(&res.ID, &res.ResourceID, &res.UserID, &startDate, &endDate, &res.Purpose,
		&status, &role, &createdAt, &updatedAt, &lastRenewedAt); err != nil {
		return scheduler.Reservation{}, err
	}

	start, err := calendar.ParseDate(startDate)
	if err != nil {
		return scheduler.Reservation{}, fmt.Errorf("failed to parse start_date: %w", err)
	}
	end, err := calendar.ParseDate(endDate)
	if err != nil {
		return scheduler.Reservation{}, fmt.Errorf("failed to parse end_date: %w", err)
	}
	res.Period = calendar.Range{Start: start, End: end}
	res.Status = scheduler.Status(status)
	res.CreatedByRole = scheduler.Role(role)

	if res.CreatedAt, err = parseTimestamp(createdAt); err != nil {
		return scheduler.Reservation{}, fmt.Errorf("failed to parse created_at: %w", err)
	}
	if res.UpdatedAt, err = parseTimestamp(updatedAt); err != nil {
		return scheduler.Reservation{}, fmt.Errorf("failed to parse updated_at: %w", err)
	}
	if res.LastRenewedAt, err = parseTimestamp(lastRenewedAt); err != nil {
		return scheduler.Reservation{}, fmt.Errorf("failed to parse last_renewed_at: %w", err)
	}
	return res, nil
}
