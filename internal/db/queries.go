// internal/db/queries.go
package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/codr1/slotwise/internal/models"
)

// timeLayout is the stored datetime format. Values are always written in UTC so
// that lexicographic comparison in SQL matches chronological order.
const timeLayout = "2006-01-02T15:04:05Z"

// DBTX is satisfied by both *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type Queries struct {
	db  DBTX
	loc *time.Location
	sb  sq.StatementBuilderType
}

// NewQueries binds queries to db. Stored times are returned in loc.
func NewQueries(db DBTX, loc *time.Location) *Queries {
	if loc == nil {
		loc = time.UTC
	}
	return &Queries{
		db:  db,
		loc: loc,
		sb:  sq.StatementBuilder.PlaceholderFormat(sq.Question),
	}
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func formatTimePtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

func (q *Queries) parseTime(raw string) (time.Time, error) {
	t, err := time.Parse(timeLayout, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse stored time %q: %w", raw, err)
	}
	return t.In(q.loc), nil
}

func (q *Queries) parseNullTime(raw sql.NullString) (*time.Time, error) {
	if !raw.Valid {
		return nil, nil
	}
	t, err := q.parseTime(raw.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func nullInt64(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	id := v.Int64
	return &id
}

func (q *Queries) exec(ctx context.Context, builder sq.Sqlizer) (sql.Result, error) {
	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	return q.db.ExecContext(ctx, query, args...)
}

func (q *Queries) insert(ctx context.Context, builder sq.InsertBuilder) (int64, error) {
	res, err := q.exec(ctx, builder)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (q *Queries) query(ctx context.Context, builder sq.SelectBuilder) (*sql.Rows, error) {
	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	return q.db.QueryContext(ctx, query, args...)
}

func (q *Queries) queryRow(ctx context.Context, builder sq.SelectBuilder) (*sql.Row, error) {
	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	return q.db.QueryRowContext(ctx, query, args...), nil
}

// notFound translates sql.ErrNoRows into a typed not-found error.
func notFound(err error, entity string, id any) error {
	if errors.Is(err, sql.ErrNoRows) {
		return &models.NotFoundError{Entity: entity, ID: id}
	}
	return err
}

// scanner is the shared Scan surface of *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// CreateUser inserts a user and returns it with its assigned ID.
func (q *Queries) CreateUser(ctx context.Context, user models.User, now time.Time) (models.User, error) {
	id, err := q.insert(ctx, q.sb.Insert("users").
		Columns("name", "email", "phone", "created_at").
		Values(user.Name, user.Email, user.Phone, formatTime(now)))
	if err != nil {
		return models.User{}, fmt.Errorf("create user: %w", err)
	}
	user.ID = id
	return user, nil
}

func (q *Queries) GetUser(ctx context.Context, id int64) (models.User, error) {
	row, err := q.queryRow(ctx, q.sb.Select("id", "name", "email", "phone").
		From("users").
		Where(sq.Eq{"id": id}))
	if err != nil {
		return models.User{}, err
	}
	var user models.User
	if err := row.Scan(&user.ID, &user.Name, &user.Email, &user.Phone); err != nil {
		return models.User{}, notFound(err, "user", id)
	}
	return user, nil
}

func (q *Queries) CreateResource(ctx context.Context, resource models.Resource) (models.Resource, error) {
	id, err := q.insert(ctx, q.sb.Insert("resources").
		Columns("provider_id", "name", "duration_minutes").
		Values(resource.ProviderID, resource.Name, resource.DurationMinutes))
	if err != nil {
		return models.Resource{}, fmt.Errorf("create resource: %w", err)
	}
	resource.ID = id
	return resource, nil
}

func (q *Queries) GetResource(ctx context.Context, id int64) (models.Resource, error) {
	row, err := q.queryRow(ctx, q.sb.Select("id", "provider_id", "name", "duration_minutes").
		From("resources").
		Where(sq.Eq{"id": id}))
	if err != nil {
		return models.Resource{}, err
	}
	var resource models.Resource
	if err := row.Scan(&resource.ID, &resource.ProviderID, &resource.Name, &resource.DurationMinutes); err != nil {
		return models.Resource{}, notFound(err, "resource", id)
	}
	return resource, nil
}

func (q *Queries) CreateAvailabilityWindow(ctx context.Context, window models.AvailabilityWindow) (models.AvailabilityWindow, error) {
	if err := window.Validate(); err != nil {
		return models.AvailabilityWindow{}, err
	}
	id, err := q.insert(ctx, q.sb.Insert("availability_windows").
		Columns("resource_id", "day_of_week", "start_time", "end_time").
		Values(window.ResourceID, int(window.DayOfWeek), window.StartTime.String(), window.EndTime.String()))
	if err != nil {
		return models.AvailabilityWindow{}, fmt.Errorf("create availability window: %w", err)
	}
	window.ID = id
	return window, nil
}

// ListAvailabilityWindows returns every window of a resource ordered by day and start.
func (q *Queries) ListAvailabilityWindows(ctx context.Context, resourceID int64) ([]models.AvailabilityWindow, error) {
	rows, err := q.query(ctx, q.sb.Select("id", "resource_id", "day_of_week", "start_time", "end_time").
		From("availability_windows").
		Where(sq.Eq{"resource_id": resourceID}).
		OrderBy("day_of_week", "start_time"))
	if err != nil {
		return nil, fmt.Errorf("list availability windows: %w", err)
	}
	defer rows.Close()

	var windows []models.AvailabilityWindow
	for rows.Next() {
		var (
			w   models.AvailabilityWindow
			day int
		)
		if err := rows.Scan(&w.ID, &w.ResourceID, &day, &w.StartTime, &w.EndTime); err != nil {
			return nil, fmt.Errorf("scan availability window: %w", err)
		}
		w.DayOfWeek = time.Weekday(day)
		windows = append(windows, w)
	}
	return windows, rows.Err()
}

func (q *Queries) UpdateAvailabilityWindow(ctx context.Context, window models.AvailabilityWindow) error {
	if err := window.Validate(); err != nil {
		return err
	}
	res, err := q.exec(ctx, q.sb.Update("availability_windows").
		Set("day_of_week", int(window.DayOfWeek)).
		Set("start_time", window.StartTime.String()).
		Set("end_time", window.EndTime.String()).
		Where(sq.Eq{"id": window.ID, "resource_id": window.ResourceID}))
	if err != nil {
		return fmt.Errorf("update availability window: %w", err)
	}
	return requireAffected(res, "availability window", window.ID)
}

func (q *Queries) DeleteAvailabilityWindow(ctx context.Context, id int64) error {
	res, err := q.exec(ctx, q.sb.Delete("availability_windows").Where(sq.Eq{"id": id}))
	if err != nil {
		return fmt.Errorf("delete availability window: %w", err)
	}
	return requireAffected(res, "availability window", id)
}

func (q *Queries) CreateExceptionPeriod(ctx context.Context, period models.ExceptionPeriod) (models.ExceptionPeriod, error) {
	if err := period.Validate(); err != nil {
		return models.ExceptionPeriod{}, err
	}
	id, err := q.insert(ctx, q.sb.Insert("exception_periods").
		Columns("provider_id", "start_time", "end_time", "description").
		Values(period.ProviderID, formatTime(period.StartTime), formatTime(period.EndTime), period.Description))
	if err != nil {
		return models.ExceptionPeriod{}, fmt.Errorf("create exception period: %w", err)
	}
	period.ID = id
	return period, nil
}

// ListExceptionPeriods returns the provider's blackouts intersecting [from,to).
func (q *Queries) ListExceptionPeriods(ctx context.Context, providerID int64, from, to time.Time) ([]models.ExceptionPeriod, error) {
	rows, err := q.query(ctx, q.sb.Select("id", "provider_id", "start_time", "end_time", "description").
		From("exception_periods").
		Where(sq.Eq{"provider_id": providerID}).
		Where(sq.Lt{"start_time": formatTime(to)}).
		Where(sq.Gt{"end_time": formatTime(from)}).
		OrderBy("start_time"))
	if err != nil {
		return nil, fmt.Errorf("list exception periods: %w", err)
	}
	defer rows.Close()

	var periods []models.ExceptionPeriod
	for rows.Next() {
		var (
			p          models.ExceptionPeriod
			start, end string
		)
		if err := rows.Scan(&p.ID, &p.ProviderID, &start, &end, &p.Description); err != nil {
			return nil, fmt.Errorf("scan exception period: %w", err)
		}
		if p.StartTime, err = q.parseTime(start); err != nil {
			return nil, err
		}
		if p.EndTime, err = q.parseTime(end); err != nil {
			return nil, err
		}
		periods = append(periods, p)
	}
	return periods, rows.Err()
}

func (q *Queries) DeleteExceptionPeriod(ctx context.Context, id int64) error {
	res, err := q.exec(ctx, q.sb.Delete("exception_periods").Where(sq.Eq{"id": id}))
	if err != nil {
		return fmt.Errorf("delete exception period: %w", err)
	}
	return requireAffected(res, "exception period", id)
}

func requireAffected(res sql.Result, entity string, id any) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return &models.NotFoundError{Entity: entity, ID: id}
	}
	return nil
}
