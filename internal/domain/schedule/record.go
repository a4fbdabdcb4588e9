// internal/domain/schedule/record.go
package schedule

import "context"

// Kind identifies one of the two notifications tracked per class.
type Kind string

const (
	KindReminder Kind = "reminder" // "class starts soon" banner
	KindMessage  Kind = "message"  // class-start message
)

// Kinds lists the kinds in the order a poll cycle evaluates them.
var Kinds = []Kind{KindReminder, KindMessage}

// KindState is the delivery state of one kind on one record.
type KindState struct {
	Sent       bool
	SentAt     string // "H:M" of the successful send, empty until then
	RetryCount int
}

// Record is one scheduled class as stored in the schedule table.
// Temporal fields stay in their stored text form; they are parsed by the poll cycle.
type Record struct {
	Row int // store write address (sheet row number or table id)

	ParentFirstName string
	ParentLastName  string
	ChildFirstName  string
	ChildLastName   string
	PhoneNumber     string
	CourseName      string

	ClassDate    string
	ClassTime    string
	ReminderDate string
	ReminderTime string
	MessageDate  string
	MessageTime  string

	ClassLink string
	TimeZone  string

	Message  KindState
	Reminder KindState

	// Err is set by a store that could not read the record's cells. The
	// poll cycle counts such a record as unreadable and skips it.
	Err error
}

// State returns the delivery state for the given kind.
func (r *Record) State(kind Kind) KindState {
	if kind == KindReminder {
		return r.Reminder
	}
	return r.Message
}

// SetState replaces the delivery state for the given kind.
func (r *Record) SetState(kind Kind, st KindState) {
	if kind == KindReminder {
		r.Reminder = st
		return
	}
	r.Message = st
}

// ScheduledAt returns the stored date and time strings at which the kind is due.
func (r *Record) ScheduledAt(kind Kind) (date, clock string) {
	if kind == KindReminder {
		return r.ReminderDate, r.ReminderTime
	}
	return r.MessageDate, r.MessageTime
}

// Repository is the record store the poll cycle reads and writes.
type Repository interface {
	// ListRecords returns every record, header excluded.
	ListRecords(ctx context.Context) ([]*Record, error)
	// MarkSent sets the sent flag and the send time of a kind.
	MarkSent(ctx context.Context, row int, kind Kind, sentAt string) error
	// SetRetryCount stores a new retry count for a kind.
	SetRetryCount(ctx context.Context, row int, kind Kind, retryCount int) error
}
