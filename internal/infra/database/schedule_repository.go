// internal/infra/database/schedule_repository.go
package database

import (
	"context"
	"database/sql"
	"fmt"

	"class_reminder_bot/internal/domain/schedule"
)

// Custom errors specific to schedule repository
var ErrRecordNotFound = fmt.Errorf("class schedule record not found")
var ErrUnknownKind = fmt.Errorf("unknown notification kind")

const recordColumns = `parent_first_name, parent_last_name, child_first_name, child_last_name,
	phone_number, course_name, class_date, class_time, reminder_date, reminder_time,
	message_date, message_time, class_link, time_zone,
	message_sent, message_sent_time, message_retry,
	reminder_sent, reminder_sent_time, reminder_retry`

// ScheduleRepository implements schedule.Repository on a class_schedule table.
// The row id is the record's write address.
type ScheduleRepository struct {
	db      *sql.DB
	dialect Dialect
}

func NewScheduleRepository(db *sql.DB, dialect Dialect) *ScheduleRepository {
	return &ScheduleRepository{db: db, dialect: dialect}
}

func (r *ScheduleRepository) ListRecords(ctx context.Context) ([]*schedule.Record, error) {
	query := `SELECT id, ` + recordColumns + ` FROM class_schedule ORDER BY id`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("error listing class schedule: %w", err)
	}
	defer rows.Close()

	var records []*schedule.Record
	for rows.Next() {
		rec := &schedule.Record{}
		var messageSentAt, reminderSentAt sql.NullString
		err := rows.Scan(&rec.Row,
			&rec.ParentFirstName, &rec.ParentLastName, &rec.ChildFirstName, &rec.ChildLastName,
			&rec.PhoneNumber, &rec.CourseName, &rec.ClassDate, &rec.ClassTime, &rec.ReminderDate, &rec.ReminderTime,
			&rec.MessageDate, &rec.MessageTime, &rec.ClassLink, &rec.TimeZone,
			&rec.Message.Sent, &messageSentAt, &rec.Message.RetryCount,
			&rec.Reminder.Sent, &reminderSentAt, &rec.Reminder.RetryCount,
		)
		if err != nil {
			return nil, fmt.Errorf("error scanning class schedule row: %w", err)
		}
		rec.Message.SentAt = messageSentAt.String
		rec.Reminder.SentAt = reminderSentAt.String
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating class schedule rows: %w", err)
	}
	return records, nil
}

// CreateRecord inserts a record and sets its Row to the generated id.
func (r *ScheduleRepository) CreateRecord(ctx context.Context, rec *schedule.Record) error {
	query := r.dialect.rebind(`INSERT INTO class_schedule (` + recordColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id`)
	err := r.db.QueryRowContext(ctx, query,
		rec.ParentFirstName, rec.ParentLastName, rec.ChildFirstName, rec.ChildLastName,
		rec.PhoneNumber, rec.CourseName, rec.ClassDate, rec.ClassTime, rec.ReminderDate, rec.ReminderTime,
		rec.MessageDate, rec.MessageTime, rec.ClassLink, rec.TimeZone,
		rec.Message.Sent, nullString(rec.Message.SentAt), rec.Message.RetryCount,
		rec.Reminder.Sent, nullString(rec.Reminder.SentAt), rec.Reminder.RetryCount,
	).Scan(&rec.Row)
	if err != nil {
		return fmt.Errorf("error creating class schedule record: %w", err)
	}
	return nil
}

func (r *ScheduleRepository) MarkSent(ctx context.Context, row int, kind schedule.Kind, sentAt string) error {
	prefix, err := kindColumnPrefix(kind)
	if err != nil {
		return err
	}
	query := r.dialect.rebind(fmt.Sprintf(
		`UPDATE class_schedule SET %[1]s_sent = TRUE, %[1]s_sent_time = ? WHERE id = ?`, prefix))
	return r.execOne(ctx, query, sentAt, row)
}

func (r *ScheduleRepository) SetRetryCount(ctx context.Context, row int, kind schedule.Kind, retryCount int) error {
	prefix, err := kindColumnPrefix(kind)
	if err != nil {
		return err
	}
	query := r.dialect.rebind(fmt.Sprintf(
		`UPDATE class_schedule SET %s_retry = ? WHERE id = ?`, prefix))
	return r.execOne(ctx, query, retryCount, row)
}

func (r *ScheduleRepository) execOne(ctx context.Context, query string, args ...any) error {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("error updating class schedule: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("error checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrRecordNotFound
	}
	return nil
}

func kindColumnPrefix(kind schedule.Kind) (string, error) {
	switch kind {
	case schedule.KindReminder, schedule.KindMessage:
		return string(kind), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
