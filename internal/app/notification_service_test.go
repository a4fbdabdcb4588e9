package app

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"class_reminder_bot/internal/domain/alert"
	"class_reminder_bot/internal/domain/schedule"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pollAt = time.Date(2024, 12, 25, 13, 45, 0, 0, time.UTC)

func newRecord(row int) *schedule.Record {
	return &schedule.Record{
		Row:             row,
		ParentFirstName: "Priya",
		ChildFirstName:  "Aarav",
		ChildLastName:   "Shah",
		PhoneNumber:     "91-555-9876543210",
		CourseName:      "Robotics",
		ClassDate:       "25/12/2024",
		ClassTime:       "2:00 PM",
		ReminderDate:    "25/12/2024",
		ReminderTime:    "1:30 PM", // already passed at pollAt
		MessageDate:     "25/12/2024",
		MessageTime:     "2:00 PM", // inside [13:45, 14:15]
		ClassLink:       "https://zoom.example/j/1",
		TimeZone:        "IST",
	}
}

func newTestService(repo *fakeRepo, gw *fakeGateway, alerter *fakeAlerter) *NotificationServiceImpl {
	d := NewDispatcher(gw, 30, "Team Wizaru\nwww.wizaru.com", quietLogger())
	var notifier alert.Notifier
	if alerter != nil {
		notifier = alerter
	}
	return NewNotificationServiceImpl(repo, d, notifier, quietLogger(), Options{
		Delay:          30 * time.Minute,
		RetryThreshold: 3,
		PMMarker:       "PM",
		Zones:          schedule.DefaultZones(),
		Location:       time.UTC,
	})
}

func TestRunCycle_SendsDueClassStartMessage(t *testing.T) {
	repo := &fakeRepo{records: []*schedule.Record{newRecord(2)}}
	gw := &fakeGateway{}
	svc := newTestService(repo, gw, nil)

	report, err := svc.RunCycle(context.Background(), pollAt)
	require.NoError(t, err)

	require.Len(t, gw.messages, 1)
	msg := gw.messages[0]
	assert.Equal(t, "919876543210", msg.Destination)
	assert.Contains(t, msg.Text, "*Aarav's* class is booked")
	assert.Contains(t, msg.Text, "*25 Dec 2024* (Wednesday), *02:00 PM IST*")
	assert.Contains(t, msg.Text, "https://zoom.example/j/1")
	assert.NotContains(t, msg.Text, "Gentle Reminder")

	assert.Equal(t, []sentCall{{row: 2, kind: schedule.KindMessage, sentAt: "13:45"}}, repo.sent)
	assert.Empty(t, repo.retries)

	assert.Equal(t, 1, report.Records)
	assert.Equal(t, 1, report.Attempted)
	assert.Equal(t, 1, report.Sent)
	assert.Equal(t, schedule.Stamp(202412251345), report.NowStamp)
	assert.Equal(t, schedule.Stamp(202412251415), report.AheadStamp)
	assert.NotEmpty(t, report.ID)
	assert.Same(t, report, svc.LastReport())
}

func TestRunCycle_ReminderCarriesBanner(t *testing.T) {
	r := newRecord(2)
	r.ReminderTime = "1:50 PM"
	repo := &fakeRepo{records: []*schedule.Record{r}}
	gw := &fakeGateway{}
	svc := newTestService(repo, gw, nil)

	report, err := svc.RunCycle(context.Background(), pollAt)
	require.NoError(t, err)

	require.Len(t, gw.messages, 2)
	assert.True(t, strings.HasPrefix(gw.messages[0].Text, "*Gentle Reminder, class starts in 30 mins*"))
	assert.False(t, strings.HasPrefix(gw.messages[1].Text, "*Gentle Reminder"))
	assert.Equal(t, 2, report.Sent)
	assert.ElementsMatch(t, []sentCall{
		{row: 2, kind: schedule.KindReminder, sentAt: "13:45"},
		{row: 2, kind: schedule.KindMessage, sentAt: "13:45"},
	}, repo.sent)
}

func TestRunCycle_ESTRecordShowsCorrectedTime(t *testing.T) {
	r := newRecord(2)
	r.TimeZone = "EST"
	repo := &fakeRepo{records: []*schedule.Record{r}}
	gw := &fakeGateway{}
	svc := newTestService(repo, gw, nil)

	_, err := svc.RunCycle(context.Background(), pollAt)
	require.NoError(t, err)

	// The zone correction changes the displayed time only, not window membership.
	require.Len(t, gw.messages, 1)
	assert.Contains(t, gw.messages[0].Text, "*25 Dec 2024* (Wednesday), *04:30 AM EST*")
}

func TestRunCycle_GatewayFailureIncrementsRetryOnce(t *testing.T) {
	repo := &fakeRepo{records: []*schedule.Record{newRecord(2)}}
	gw := &fakeGateway{err: errors.New("gupshup: unexpected response status: 500")}
	svc := newTestService(repo, gw, nil)

	report, err := svc.RunCycle(context.Background(), pollAt)
	require.NoError(t, err)

	assert.Equal(t, []retryCall{{row: 2, kind: schedule.KindMessage, retry: 1}}, repo.retries)
	assert.Empty(t, repo.sent)
	stored := repo.records[0].Message
	assert.False(t, stored.Sent)
	assert.Empty(t, stored.SentAt)
	assert.Equal(t, 1, stored.RetryCount)
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, 0, report.Exhausted)
}

func TestRunCycle_CatchUpRetriesAfterWindowCloses(t *testing.T) {
	repo := &fakeRepo{records: []*schedule.Record{newRecord(2)}}
	gw := &fakeGateway{err: errors.New("timeout")}
	svc := newTestService(repo, gw, nil)

	_, err := svc.RunCycle(context.Background(), pollAt)
	require.NoError(t, err)

	// An hour later the message window has closed, but the failed send is retried.
	gw.err = nil
	_, err = svc.RunCycle(context.Background(), pollAt.Add(time.Hour))
	require.NoError(t, err)

	assert.Len(t, gw.messages, 2)
	assert.Equal(t, []sentCall{{row: 2, kind: schedule.KindMessage, sentAt: "14:45"}}, repo.sent)
	assert.True(t, repo.records[0].Message.Sent)
}

func TestRunCycle_ExhaustsAfterThresholdFailuresAndAlertsOnce(t *testing.T) {
	repo := &fakeRepo{records: []*schedule.Record{newRecord(2)}}
	gw := &fakeGateway{err: errors.New("rejected")}
	alerter := &fakeAlerter{}
	svc := newTestService(repo, gw, alerter)

	var exhausted int
	for i := 0; i < 6; i++ {
		report, err := svc.RunCycle(context.Background(), pollAt.Add(time.Duration(i)*5*time.Minute))
		require.NoError(t, err)
		exhausted += report.Exhausted
	}

	assert.Len(t, gw.messages, 3, "no dispatch once exhausted")
	assert.Equal(t, 3, repo.records[0].Message.RetryCount)
	assert.Equal(t, 1, exhausted)
	require.Len(t, alerter.texts, 1)
	assert.Contains(t, alerter.texts[0], "message notification (row 2")
	assert.Contains(t, alerter.texts[0], "after 3 attempts")
}

func TestRunCycle_SkipsExhaustedKindInsideWindow(t *testing.T) {
	r := newRecord(2)
	r.Message.RetryCount = 3
	repo := &fakeRepo{records: []*schedule.Record{r}}
	gw := &fakeGateway{}
	svc := newTestService(repo, gw, nil)

	report, err := svc.RunCycle(context.Background(), pollAt)
	require.NoError(t, err)

	assert.Empty(t, gw.messages)
	assert.Empty(t, repo.sent)
	assert.Empty(t, repo.retries)
	assert.Equal(t, 0, report.Attempted)
}

func TestRunCycle_KindsAreIndependent(t *testing.T) {
	r := newRecord(2)
	r.ReminderTime = "1:50 PM"
	r.Reminder.RetryCount = 3
	repo := &fakeRepo{records: []*schedule.Record{r}}
	gw := &fakeGateway{}
	svc := newTestService(repo, gw, nil)

	_, err := svc.RunCycle(context.Background(), pollAt)
	require.NoError(t, err)

	require.Len(t, gw.messages, 1)
	assert.Equal(t, []sentCall{{row: 2, kind: schedule.KindMessage, sentAt: "13:45"}}, repo.sent)
}

func TestRunCycle_SentKindNeverResent(t *testing.T) {
	repo := &fakeRepo{records: []*schedule.Record{newRecord(2)}}
	gw := &fakeGateway{}
	svc := newTestService(repo, gw, nil)

	for i := 0; i < 5; i++ {
		_, err := svc.RunCycle(context.Background(), pollAt.Add(time.Duration(i)*time.Minute))
		require.NoError(t, err)
	}

	assert.Len(t, gw.messages, 1)
	assert.Len(t, repo.sent, 1)
}

func TestRunCycle_UnreadableRecordDoesNotStopCycle(t *testing.T) {
	bad := newRecord(2)
	bad.MessageTime = "14:00"
	badDate := newRecord(3)
	badDate.ClassDate = "25.12.2024"
	good := newRecord(4)
	repo := &fakeRepo{records: []*schedule.Record{bad, badDate, good}}
	gw := &fakeGateway{}
	svc := newTestService(repo, gw, nil)

	report, err := svc.RunCycle(context.Background(), pollAt)
	require.NoError(t, err)

	assert.Equal(t, 2, report.ParseErrors)
	assert.Equal(t, 1, report.Sent)
	assert.Equal(t, []sentCall{{row: 4, kind: schedule.KindMessage, sentAt: "13:45"}}, repo.sent)
}

func TestRunCycle_StoreWriteFailureIsCounted(t *testing.T) {
	repo := &fakeRepo{records: []*schedule.Record{newRecord(2)}, writeErr: errors.New("quota exceeded")}
	gw := &fakeGateway{}
	svc := newTestService(repo, gw, nil)

	report, err := svc.RunCycle(context.Background(), pollAt)
	require.NoError(t, err)

	assert.Equal(t, 1, report.Sent)
	assert.Equal(t, 1, report.WriteErrors)
	assert.False(t, repo.records[0].Message.Sent, "stored state stays stale")
}

func TestRunCycle_ListError(t *testing.T) {
	repo := &fakeRepo{listErr: errors.New("sheet unavailable")}
	svc := newTestService(repo, &fakeGateway{}, nil)

	report, err := svc.RunCycle(context.Background(), pollAt)
	assert.Nil(t, report)
	assert.ErrorContains(t, err, "sheet unavailable")
	assert.Nil(t, svc.LastReport())
}

func TestRunCycle_RejectsOverlappingCycles(t *testing.T) {
	svc := newTestService(&fakeRepo{}, &fakeGateway{}, nil)

	svc.running.Lock()
	_, err := svc.RunCycle(context.Background(), pollAt)
	svc.running.Unlock()
	assert.ErrorIs(t, err, ErrCycleInProgress)

	_, err = svc.RunCycle(context.Background(), pollAt)
	assert.NoError(t, err)
}

func TestRunCycle_StopsBetweenRecordsWhenCancelled(t *testing.T) {
	repo := &fakeRepo{records: []*schedule.Record{newRecord(2), newRecord(3)}}
	gw := &fakeGateway{}
	svc := newTestService(repo, gw, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	report, err := svc.RunCycle(ctx, pollAt)

	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, report)
	assert.Equal(t, 0, report.Attempted)
	assert.Empty(t, gw.messages)
}

func TestCycleReport_Summary(t *testing.T) {
	r := &CycleReport{ID: "abc", NowStamp: 202412251345, Records: 4, Attempted: 2, Sent: 1, Failed: 1, Exhausted: 1, ParseErrors: 1}
	assert.Equal(t,
		"cycle abc at 202412251345: 4 records, 2 attempted, 1 sent, 1 failed, 1 exhausted, 1 unreadable, 0 write errors",
		r.Summary())
}

func TestRunCycle_CountsRecordsTheStoreCouldNotRead(t *testing.T) {
	unreadable := &schedule.Record{
		Row: 3,
		Err: &schedule.ParseError{Field: "message_retry", Value: "two"},
	}
	repo := &fakeRepo{records: []*schedule.Record{newRecord(2), unreadable}}
	gw := &fakeGateway{}
	svc := newTestService(repo, gw, nil)

	report, err := svc.RunCycle(context.Background(), pollAt)
	require.NoError(t, err)

	assert.Equal(t, 2, report.Records)
	assert.Equal(t, 1, report.ParseErrors)
	assert.Equal(t, 1, report.Sent)
	assert.Equal(t, []sentCall{{row: 2, kind: schedule.KindMessage, sentAt: "13:45"}}, repo.sent)
	assert.Empty(t, repo.retries)
}
