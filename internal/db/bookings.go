// internal/db/bookings.go
package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/codr1/slotwise/internal/models"
)

var bookingColumns = []string{
	"b.id",
	"b.resource_id",
	"b.user_id",
	"b.start_time",
	"b.end_time",
	"b.status",
	"b.notes",
	"b.created_at",
	"b.updated_at",
	"b.parent_recurrence_id",
}

func (q *Queries) scanBooking(row scanner) (models.Booking, error) {
	var (
		b                                models.Booking
		start, end, createdAt, updatedAt string
		parent                           sql.NullInt64
	)
	if err := row.Scan(
		&b.ID,
		&b.ResourceID,
		&b.UserID,
		&start,
		&end,
		&b.Status,
		&b.Notes,
		&createdAt,
		&updatedAt,
		&parent,
	); err != nil {
		return models.Booking{}, err
	}

	var err error
	if b.StartTime, err = q.parseTime(start); err != nil {
		return models.Booking{}, err
	}
	if b.EndTime, err = q.parseTime(end); err != nil {
		return models.Booking{}, err
	}
	if b.CreatedAt, err = q.parseTime(createdAt); err != nil {
		return models.Booking{}, err
	}
	if b.UpdatedAt, err = q.parseTime(updatedAt); err != nil {
		return models.Booking{}, err
	}
	b.ParentRecurrenceID = nullInt64(parent)
	return b, nil
}

// CreateBooking inserts b. CreatedAt and UpdatedAt must already be set.
func (q *Queries) CreateBooking(ctx context.Context, b models.Booking) (models.Booking, error) {
	var parent any
	if b.ParentRecurrenceID != nil {
		parent = *b.ParentRecurrenceID
	}
	id, err := q.insert(ctx, q.sb.Insert("bookings").
		Columns(
			"resource_id",
			"user_id",
			"start_time",
			"end_time",
			"status",
			"notes",
			"created_at",
			"updated_at",
			"parent_recurrence_id",
		).
		Values(
			b.ResourceID,
			b.UserID,
			formatTime(b.StartTime),
			formatTime(b.EndTime),
			string(b.Status),
			b.Notes,
			formatTime(b.CreatedAt),
			formatTime(b.UpdatedAt),
			parent,
		))
	if err != nil {
		return models.Booking{}, fmt.Errorf("create booking: %w", err)
	}
	b.ID = id
	return b, nil
}

func (q *Queries) GetBooking(ctx context.Context, id int64) (models.Booking, error) {
	row, err := q.queryRow(ctx, q.sb.Select(bookingColumns...).
		From("bookings b").
		Where(sq.Eq{"b.id": id}))
	if err != nil {
		return models.Booking{}, err
	}
	b, err := q.scanBooking(row)
	if err != nil {
		return models.Booking{}, notFound(err, "booking", id)
	}
	return b, nil
}

// ListBookings returns bookings matching filter ordered by start time.
func (q *Queries) ListBookings(ctx context.Context, filter models.BookingFilter) ([]models.Booking, error) {
	builder := q.sb.Select(bookingColumns...).From("bookings b")

	if filter.ResourceID != 0 {
		builder = builder.Where(sq.Eq{"b.resource_id": filter.ResourceID})
	}
	if filter.UserID != 0 {
		builder = builder.Where(sq.Eq{"b.user_id": filter.UserID})
	}
	if filter.ProviderID != 0 {
		builder = builder.
			Join("resources r ON r.id = b.resource_id").
			Where(sq.Eq{"r.provider_id": filter.ProviderID})
	}
	if len(filter.Statuses) > 0 {
		statuses := make([]string, len(filter.Statuses))
		for i, s := range filter.Statuses {
			statuses[i] = string(s)
		}
		builder = builder.Where(sq.Eq{"b.status": statuses})
	}
	if filter.StartsBefore != nil {
		builder = builder.Where(sq.Lt{"b.start_time": formatTime(*filter.StartsBefore)})
	}
	if filter.EndsAfter != nil {
		builder = builder.Where(sq.Gt{"b.end_time": formatTime(*filter.EndsAfter)})
	}
	if filter.EndsBefore != nil {
		builder = builder.Where(sq.Lt{"b.end_time": formatTime(*filter.EndsBefore)})
	}
	if filter.CreatedBefore != nil {
		builder = builder.Where(sq.Lt{"b.created_at": formatTime(*filter.CreatedBefore)})
	}

	rows, err := q.query(ctx, builder.OrderBy("b.start_time", "b.id"))
	if err != nil {
		return nil, fmt.Errorf("list bookings: %w", err)
	}
	defer rows.Close()

	var bookings []models.Booking
	for rows.Next() {
		b, err := q.scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("scan booking: %w", err)
		}
		bookings = append(bookings, b)
	}
	return bookings, rows.Err()
}

// ListBookingsByParent returns the children of a cyclic booking.
func (q *Queries) ListBookingsByParent(ctx context.Context, parentID int64) ([]models.Booking, error) {
	rows, err := q.query(ctx, q.sb.Select(bookingColumns...).
		From("bookings b").
		Where(sq.Eq{"b.parent_recurrence_id": parentID}).
		OrderBy("b.start_time", "b.id"))
	if err != nil {
		return nil, fmt.Errorf("list child bookings: %w", err)
	}
	defer rows.Close()

	var bookings []models.Booking
	for rows.Next() {
		b, err := q.scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("scan booking: %w", err)
		}
		bookings = append(bookings, b)
	}
	return bookings, rows.Err()
}

type UpdateBookingStatusParams struct {
	ID     int64
	Status models.BookingStatus
	// ExpectedStatus guards the update; the row is left alone if its status
	// has changed since it was read.
	ExpectedStatus models.BookingStatus
	// Notes replaces the booking notes when non-nil.
	Notes     *string
	UpdatedAt time.Time
}

// UpdateBookingStatus applies a guarded status change and reports whether a
// row was updated.
func (q *Queries) UpdateBookingStatus(ctx context.Context, arg UpdateBookingStatusParams) (bool, error) {
	builder := q.sb.Update("bookings").
		Set("status", string(arg.Status)).
		Set("updated_at", formatTime(arg.UpdatedAt)).
		Where(sq.Eq{"id": arg.ID})
	if arg.ExpectedStatus != "" {
		builder = builder.Where(sq.Eq{"status": string(arg.ExpectedStatus)})
	}
	if arg.Notes != nil {
		builder = builder.Set("notes", *arg.Notes)
	}

	res, err := q.exec(ctx, builder)
	if err != nil {
		return false, fmt.Errorf("update booking status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (q *Queries) UpdateBookingNotes(ctx context.Context, id int64, notes string, updatedAt time.Time) error {
	res, err := q.exec(ctx, q.sb.Update("bookings").
		Set("notes", notes).
		Set("updated_at", formatTime(updatedAt)).
		Where(sq.Eq{"id": id}))
	if err != nil {
		return fmt.Errorf("update booking notes: %w", err)
	}
	return requireAffected(res, "booking", id)
}

// DeleteBooking removes a booking. Notifications referencing it cascade.
func (q *Queries) DeleteBooking(ctx context.Context, id int64) error {
	res, err := q.exec(ctx, q.sb.Delete("bookings").Where(sq.Eq{"id": id}))
	if err != nil {
		return fmt.Errorf("delete booking: %w", err)
	}
	return requireAffected(res, "booking", id)
}

func (q *Queries) DeleteBookingsByParent(ctx context.Context, parentID int64) (int64, error) {
	res, err := q.exec(ctx, q.sb.Delete("bookings").Where(sq.Eq{"parent_recurrence_id": parentID}))
	if err != nil {
		return 0, fmt.Errorf("delete child bookings: %w", err)
	}
	return res.RowsAffected()
}
