// internal/db/cyclic.go
package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/codr1/slotwise/internal/models"
)

var cyclicColumns = []string{
	"id",
	"user_id",
	"resource_id",
	"start_date",
	"end_date",
	"pattern",
	"day_of_week",
	"day_of_month",
	"start_time",
	"end_time",
	"status",
	"notes",
	"created_at",
	"updated_at",
}

func (q *Queries) scanCyclic(row scanner) (models.CyclicBooking, error) {
	var (
		c                               models.CyclicBooking
		startDate, createdAt, updatedAt string
		endDate                         sql.NullString
		dayOfWeek, dayOfMonth           sql.NullInt64
	)
	if err := row.Scan(
		&c.ID,
		&c.UserID,
		&c.ResourceID,
		&startDate,
		&endDate,
		&c.Pattern,
		&dayOfWeek,
		&dayOfMonth,
		&c.StartTime,
		&c.EndTime,
		&c.Status,
		&c.Notes,
		&createdAt,
		&updatedAt,
	); err != nil {
		return models.CyclicBooking{}, err
	}

	var err error
	if c.StartDate, err = q.parseTime(startDate); err != nil {
		return models.CyclicBooking{}, err
	}
	if c.EndDate, err = q.parseNullTime(endDate); err != nil {
		return models.CyclicBooking{}, err
	}
	if c.CreatedAt, err = q.parseTime(createdAt); err != nil {
		return models.CyclicBooking{}, err
	}
	if c.UpdatedAt, err = q.parseTime(updatedAt); err != nil {
		return models.CyclicBooking{}, err
	}
	if dayOfWeek.Valid {
		d := time.Weekday(dayOfWeek.Int64)
		c.DayOfWeek = &d
	}
	if dayOfMonth.Valid {
		d := int(dayOfMonth.Int64)
		c.DayOfMonth = &d
	}
	return c, nil
}

func (q *Queries) CreateCyclicBooking(ctx context.Context, c models.CyclicBooking) (models.CyclicBooking, error) {
	var dayOfWeek, dayOfMonth any
	if c.DayOfWeek != nil {
		dayOfWeek = int(*c.DayOfWeek)
	}
	if c.DayOfMonth != nil {
		dayOfMonth = *c.DayOfMonth
	}
	id, err := q.insert(ctx, q.sb.Insert("cyclic_bookings").
		Columns(cyclicColumns[1:]...).
		Values(
			c.UserID,
			c.ResourceID,
			formatTime(c.StartDate),
			formatTimePtr(c.EndDate),
			string(c.Pattern),
			dayOfWeek,
			dayOfMonth,
			c.StartTime.String(),
			c.EndTime.String(),
			string(c.Status),
			c.Notes,
			formatTime(c.CreatedAt),
			formatTime(c.UpdatedAt),
		))
	if err != nil {
		return models.CyclicBooking{}, fmt.Errorf("create cyclic booking: %w", err)
	}
	c.ID = id
	return c, nil
}

// GetCyclicBooking loads a cyclic booking together with the IDs of its children.
func (q *Queries) GetCyclicBooking(ctx context.Context, id int64) (models.CyclicBooking, error) {
	row, err := q.queryRow(ctx, q.sb.Select(cyclicColumns...).
		From("cyclic_bookings").
		Where(sq.Eq{"id": id}))
	if err != nil {
		return models.CyclicBooking{}, err
	}
	c, err := q.scanCyclic(row)
	if err != nil {
		return models.CyclicBooking{}, notFound(err, "cyclic booking", id)
	}
	if c.ChildIDs, err = q.childIDs(ctx, id); err != nil {
		return models.CyclicBooking{}, err
	}
	return c, nil
}

func (q *Queries) childIDs(ctx context.Context, parentID int64) ([]int64, error) {
	rows, err := q.query(ctx, q.sb.Select("id").
		From("bookings").
		Where(sq.Eq{"parent_recurrence_id": parentID}).
		OrderBy("start_time", "id"))
	if err != nil {
		return nil, fmt.Errorf("list child ids: %w", err)
	}
	defer rows.Close()

	ids := []int64{}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (q *Queries) ListCyclicBookingsByUser(ctx context.Context, userID int64) ([]models.CyclicBooking, error) {
	rows, err := q.query(ctx, q.sb.Select(cyclicColumns...).
		From("cyclic_bookings").
		Where(sq.Eq{"user_id": userID}).
		OrderBy("start_date", "id"))
	if err != nil {
		return nil, fmt.Errorf("list cyclic bookings: %w", err)
	}

	var cyclics []models.CyclicBooking
	for rows.Next() {
		c, err := q.scanCyclic(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan cyclic booking: %w", err)
		}
		cyclics = append(cyclics, c)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	for i := range cyclics {
		if cyclics[i].ChildIDs, err = q.childIDs(ctx, cyclics[i].ID); err != nil {
			return nil, err
		}
	}
	return cyclics, nil
}

func (q *Queries) UpdateCyclicBookingStatus(ctx context.Context, id int64, status models.BookingStatus, updatedAt time.Time) error {
	res, err := q.exec(ctx, q.sb.Update("cyclic_bookings").
		Set("status", string(status)).
		Set("updated_at", formatTime(updatedAt)).
		Where(sq.Eq{"id": id}))
	if err != nil {
		return fmt.Errorf("update cyclic booking status: %w", err)
	}
	return requireAffected(res, "cyclic booking", id)
}

func (q *Queries) UpdateCyclicBookingNotes(ctx context.Context, id int64, notes string, updatedAt time.Time) error {
	res, err := q.exec(ctx, q.sb.Update("cyclic_bookings").
		Set("notes", notes).
		Set("updated_at", formatTime(updatedAt)).
		Where(sq.Eq{"id": id}))
	if err != nil {
		return fmt.Errorf("update cyclic booking notes: %w", err)
	}
	return requireAffected(res, "cyclic booking", id)
}

func (q *Queries) DeleteCyclicBooking(ctx context.Context, id int64) error {
	res, err := q.exec(ctx, q.sb.Delete("cyclic_bookings").Where(sq.Eq{"id": id}))
	if err != nil {
		return fmt.Errorf("delete cyclic booking: %w", err)
	}
	return requireAffected(res, "cyclic booking", id)
}
