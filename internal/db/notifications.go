// internal/db/notifications.go
package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/codr1/slotwise/internal/models"
)

var notificationColumns = []string{
	"id",
	"user_id",
	"title",
	"content",
	"channel",
	"sent",
	"sent_at",
	"booking_id",
	"created_at",
}

func (q *Queries) scanNotification(row scanner) (models.Notification, error) {
	var (
		n         models.Notification
		sentAt    sql.NullString
		bookingID sql.NullInt64
		createdAt string
	)
	if err := row.Scan(
		&n.ID,
		&n.UserID,
		&n.Title,
		&n.Content,
		&n.Channel,
		&n.Sent,
		&sentAt,
		&bookingID,
		&createdAt,
	); err != nil {
		return models.Notification{}, err
	}

	var err error
	if n.SentAt, err = q.parseNullTime(sentAt); err != nil {
		return models.Notification{}, err
	}
	if n.CreatedAt, err = q.parseTime(createdAt); err != nil {
		return models.Notification{}, err
	}
	n.BookingID = nullInt64(bookingID)
	return n, nil
}

func (q *Queries) CreateNotification(ctx context.Context, n models.Notification) (models.Notification, error) {
	var bookingID any
	if n.BookingID != nil {
		bookingID = *n.BookingID
	}
	id, err := q.insert(ctx, q.sb.Insert("notifications").
		Columns(notificationColumns[1:]...).
		Values(
			n.UserID,
			n.Title,
			n.Content,
			string(n.Channel),
			n.Sent,
			formatTimePtr(n.SentAt),
			bookingID,
			formatTime(n.CreatedAt),
		))
	if err != nil {
		return models.Notification{}, fmt.Errorf("create notification: %w", err)
	}
	n.ID = id
	return n, nil
}

func (q *Queries) GetNotification(ctx context.Context, id int64) (models.Notification, error) {
	row, err := q.queryRow(ctx, q.sb.Select(notificationColumns...).
		From("notifications").
		Where(sq.Eq{"id": id}))
	if err != nil {
		return models.Notification{}, err
	}
	n, err := q.scanNotification(row)
	if err != nil {
		return models.Notification{}, notFound(err, "notification", id)
	}
	return n, nil
}

// ListNotifications returns notifications matching filter, oldest first.
func (q *Queries) ListNotifications(ctx context.Context, filter models.NotificationFilter) ([]models.Notification, error) {
	builder := q.sb.Select(notificationColumns...).From("notifications")
	if filter.Channel != "" {
		builder = builder.Where(sq.Eq{"channel": string(filter.Channel)})
	}
	if filter.Unsent {
		builder = builder.Where(sq.Eq{"sent": false})
	}
	if filter.TitleContains != "" {
		builder = builder.Where(sq.Like{"title": "%" + filter.TitleContains + "%"})
	}
	if filter.CreatedBefore != nil {
		builder = builder.Where(sq.Lt{"created_at": formatTime(*filter.CreatedBefore)})
	}

	rows, err := q.query(ctx, builder.OrderBy("created_at", "id"))
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	var notifications []models.Notification
	for rows.Next() {
		n, err := q.scanNotification(rows)
		if err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		notifications = append(notifications, n)
	}
	return notifications, rows.Err()
}

// MarkNotificationSent flags an unsent notification as delivered. It reports
// false when the row was already sent or no longer exists.
func (q *Queries) MarkNotificationSent(ctx context.Context, id int64, sentAt time.Time) (bool, error) {
	res, err := q.exec(ctx, q.sb.Update("notifications").
		Set("sent", true).
		Set("sent_at", formatTime(sentAt)).
		Where(sq.Eq{"id": id, "sent": false}))
	if err != nil {
		return false, fmt.Errorf("mark notification sent: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// DeleteUnsentNotification drops a notification that will never be delivered.
// It reports false when the row was sent in the meantime or is gone.
func (q *Queries) DeleteUnsentNotification(ctx context.Context, id int64) (bool, error) {
	res, err := q.exec(ctx, q.sb.Delete("notifications").
		Where(sq.Eq{"id": id, "sent": false}))
	if err != nil {
		return false, fmt.Errorf("delete notification: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// DeleteNotificationsCreatedBefore purges notifications older than cutoff,
// sent or not.
func (q *Queries) DeleteNotificationsCreatedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := q.exec(ctx, q.sb.Delete("notifications").
		Where(sq.Lt{"created_at": formatTime(cutoff)}))
	if err != nil {
		return 0, fmt.Errorf("purge notifications: %w", err)
	}
	return res.RowsAffected()
}

func (q *Queries) CreateVerificationToken(ctx context.Context, token models.VerificationToken) error {
	_, err := q.exec(ctx, q.sb.Insert("verification_tokens").
		Columns("token", "user_id", "expiry_date", "created_at").
		Values(token.Token, token.UserID, formatTime(token.ExpiryDate), formatTime(token.CreatedAt)))
	if err != nil {
		return fmt.Errorf("create verification token: %w", err)
	}
	return nil
}

func (q *Queries) GetVerificationToken(ctx context.Context, token string) (models.VerificationToken, error) {
	row, err := q.queryRow(ctx, q.sb.Select("token", "user_id", "expiry_date", "created_at").
		From("verification_tokens").
		Where(sq.Eq{"token": token}))
	if err != nil {
		return models.VerificationToken{}, err
	}
	var (
		t                 models.VerificationToken
		expiry, createdAt string
	)
	if err := row.Scan(&t.Token, &t.UserID, &expiry, &createdAt); err != nil {
		return models.VerificationToken{}, notFound(err, "verification token", token)
	}
	if t.ExpiryDate, err = q.parseTime(expiry); err != nil {
		return models.VerificationToken{}, err
	}
	if t.CreatedAt, err = q.parseTime(createdAt); err != nil {
		return models.VerificationToken{}, err
	}
	return t, nil
}

func (q *Queries) DeleteVerificationToken(ctx context.Context, token string) error {
	res, err := q.exec(ctx, q.sb.Delete("verification_tokens").Where(sq.Eq{"token": token}))
	if err != nil {
		return fmt.Errorf("delete verification token: %w", err)
	}
	return requireAffected(res, "verification token", token)
}

// DeleteExpiredVerificationTokens removes tokens whose expiry is before now.
func (q *Queries) DeleteExpiredVerificationTokens(ctx context.Context, now time.Time) (int64, error) {
	res, err := q.exec(ctx, q.sb.Delete("verification_tokens").
		Where(sq.Lt{"expiry_date": formatTime(now)}))
	if err != nil {
		return 0, fmt.Errorf("delete expired verification tokens: %w", err)
	}
	return res.RowsAffected()
}
