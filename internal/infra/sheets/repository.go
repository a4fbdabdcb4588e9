// Package sheets stores the class schedule in a Google Sheets tab.
//
// Column A is not read. Columns B to U hold, in order: parent first/last
// name, child first/last name, phone number, course name, class date/time,
// reminder date/time, message date/time, class link, time zone, then the
// sent flag, send time and retry count of the message and reminder kinds.
package sheets

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"class_reminder_bot/internal/domain/schedule"

	"github.com/sirupsen/logrus"
	"google.golang.org/api/option"
	gsheets "google.golang.org/api/sheets/v4"
)

const (
	colParentFirstName = iota + 1
	colParentLastName
	colChildFirstName
	colChildLastName
	colPhoneNumber
	colCourseName
	colClassDate
	colClassTime
	colReminderDate
	colReminderTime
	colMessageDate
	colMessageTime
	colClassLink
	colTimeZone
	colMessageSent
	colMessageSentTime
	colMessageRetry
	colReminderSent
	colReminderSentTime
	colReminderRetry
)

// NewService builds a Sheets client from a service account key file.
func NewService(ctx context.Context, credentialsFile string) (*gsheets.Service, error) {
	svc, err := gsheets.NewService(ctx,
		option.WithCredentialsFile(credentialsFile),
		option.WithScopes(gsheets.SpreadsheetsScope),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets service: %w", err)
	}
	return svc, nil
}

// Repository implements schedule.Repository over one spreadsheet tab.
type Repository struct {
	svc           *gsheets.Service
	spreadsheetID string
	tab           string
	logger        *logrus.Entry
}

func NewRepository(svc *gsheets.Service, spreadsheetID, tab string, logger *logrus.Entry) *Repository {
	return &Repository{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		tab:           tab,
		logger:        logger,
	}
}

// ListRecords reads the whole tab, header row excluded. A row whose cells
// cannot be decoded is returned with only Row and Err set.
func (r *Repository) ListRecords(ctx context.Context) ([]*schedule.Record, error) {
	resp, err := r.svc.Spreadsheets.Values.Get(r.spreadsheetID, quoteTab(r.tab)).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", r.tab, err)
	}

	var records []*schedule.Record
	for i := 1; i < len(resp.Values); i++ {
		rec, err := DecodeRow(resp.Values[i], i+1)
		if err != nil {
			r.logger.WithError(err).WithField("row", i+1).Debug("Sheet row has unreadable cells")
			rec = &schedule.Record{Row: i + 1, Err: err}
		}
		records = append(records, rec)
	}
	return records, nil
}

func (r *Repository) MarkSent(ctx context.Context, row int, kind schedule.Kind, sentAt string) error {
	col := colMessageSent
	if kind == schedule.KindReminder {
		col = colReminderSent
	}
	return r.update(ctx, CellRange(r.tab, col, row), []interface{}{1, sentAt})
}

func (r *Repository) SetRetryCount(ctx context.Context, row int, kind schedule.Kind, retryCount int) error {
	col := colMessageRetry
	if kind == schedule.KindReminder {
		col = colReminderRetry
	}
	return r.update(ctx, CellRange(r.tab, col, row), []interface{}{retryCount})
}

func (r *Repository) update(ctx context.Context, rng string, cells []interface{}) error {
	body := &gsheets.ValueRange{Values: [][]interface{}{cells}}
	_, err := r.svc.Spreadsheets.Values.Update(r.spreadsheetID, rng, body).
		ValueInputOption("USER_ENTERED").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("failed to update %s: %w", rng, err)
	}
	return nil
}

// DecodeRow turns one sheet row into a record. Trailing empty cells may be
// missing from the row, as the Sheets API omits them.
func DecodeRow(row []interface{}, sheetRow int) (*schedule.Record, error) {
	cell := func(col int) string {
		if col >= len(row) || row[col] == nil {
			return ""
		}
		return strings.TrimSpace(fmt.Sprint(row[col]))
	}

	rec := &schedule.Record{
		Row:             sheetRow,
		ParentFirstName: cell(colParentFirstName),
		ParentLastName:  cell(colParentLastName),
		ChildFirstName:  cell(colChildFirstName),
		ChildLastName:   cell(colChildLastName),
		PhoneNumber:     cell(colPhoneNumber),
		CourseName:      cell(colCourseName),
		ClassDate:       cell(colClassDate),
		ClassTime:       cell(colClassTime),
		ReminderDate:    cell(colReminderDate),
		ReminderTime:    cell(colReminderTime),
		MessageDate:     cell(colMessageDate),
		MessageTime:     cell(colMessageTime),
		ClassLink:       cell(colClassLink),
		TimeZone:        cell(colTimeZone),
	}

	var err error
	if rec.Message, err = decodeState(cell, "message", colMessageSent, colMessageSentTime, colMessageRetry); err != nil {
		return nil, err
	}
	if rec.Reminder, err = decodeState(cell, "reminder", colReminderSent, colReminderSentTime, colReminderRetry); err != nil {
		return nil, err
	}
	return rec, nil
}

func decodeState(cell func(int) string, prefix string, sentCol, sentAtCol, retryCol int) (schedule.KindState, error) {
	var st schedule.KindState

	switch v := cell(sentCol); strings.ToUpper(v) {
	case "", "0", "FALSE":
	case "1", "TRUE":
		st.Sent = true
	default:
		return st, &schedule.ParseError{Field: prefix + "_sent", Value: v, Err: strconv.ErrSyntax}
	}

	st.SentAt = cell(sentAtCol)

	if v := cell(retryCol); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return st, &schedule.ParseError{Field: prefix + "_retry", Value: v, Err: err}
		}
		st.RetryCount = n
	}
	return st, nil
}

// CellRange returns the A1 address of a cell in the tab, e.g. 'Class Schedule'!P5.
func CellRange(tab string, col, row int) string {
	return fmt.Sprintf("%s!%s%d", quoteTab(tab), columnLetter(col), row)
}

func quoteTab(tab string) string {
	return "'" + strings.ReplaceAll(tab, "'", "''") + "'"
}

// columnLetter converts a zero-based column index to its A1 letters.
func columnLetter(col int) string {
	letters := ""
	for col >= 0 {
		letters = string(rune('A'+col%26)) + letters
		col = col/26 - 1
	}
	return letters
}
