// internal/app/notification_service.go
package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"class_reminder_bot/internal/domain/alert"
	"class_reminder_bot/internal/domain/notification"
	"class_reminder_bot/internal/domain/schedule"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// ErrCycleInProgress is returned when a poll is triggered while another one is still running.
var ErrCycleInProgress = errors.New("poll cycle already in progress")

// NotificationService runs poll cycles over the class schedule.
type NotificationService interface {
	// RunCycle evaluates every record against the window opened at now and
	// dispatches due notifications, one record at a time.
	RunCycle(ctx context.Context, now time.Time) (*CycleReport, error)
	// LastReport returns the report of the most recent finished cycle, or nil.
	LastReport() *CycleReport
}

// Options are the process-wide settings a cycle runs with.
type Options struct {
	Delay          time.Duration // window width
	RetryThreshold int
	PMMarker       string
	Zones          schedule.ZoneTable
	Location       *time.Location // zone the stored dates and times are written in
}

// CycleReport summarizes one poll cycle.
type CycleReport struct {
	ID          string
	StartedAt   time.Time
	Duration    time.Duration
	NowStamp    schedule.Stamp
	AheadStamp  schedule.Stamp
	Records     int
	Attempted   int
	Sent        int
	Failed      int
	Exhausted   int // kinds that ran out of retries during this cycle
	ParseErrors int
	WriteErrors int
}

func (r *CycleReport) Summary() string {
	return fmt.Sprintf("cycle %s at %s: %d records, %d attempted, %d sent, %d failed, %d exhausted, %d unreadable, %d write errors",
		r.ID, r.NowStamp, r.Records, r.Attempted, r.Sent, r.Failed, r.Exhausted, r.ParseErrors, r.WriteErrors)
}

// NotificationServiceImpl implements the NotificationService interface.
type NotificationServiceImpl struct {
	repo       schedule.Repository
	dispatcher *Dispatcher
	alerter    alert.Notifier // optional
	logger     *logrus.Entry
	opts       Options

	running sync.Mutex
	mu      sync.RWMutex
	last    *CycleReport
}

func NewNotificationServiceImpl(
	repo schedule.Repository,
	dispatcher *Dispatcher,
	alerter alert.Notifier,
	logger *logrus.Entry,
	opts Options,
) *NotificationServiceImpl {
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Zones == nil {
		opts.Zones = schedule.DefaultZones()
	}
	return &NotificationServiceImpl{
		repo:       repo,
		dispatcher: dispatcher,
		alerter:    alerter,
		logger:     logger,
		opts:       opts,
	}
}

func (s *NotificationServiceImpl) LastReport() *CycleReport {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.last
}

func (s *NotificationServiceImpl) RunCycle(ctx context.Context, now time.Time) (*CycleReport, error) {
	if !s.running.TryLock() {
		return nil, ErrCycleInProgress
	}
	defer s.running.Unlock()

	started := time.Now()
	now = now.In(s.opts.Location)
	window := schedule.NewWindow(now, s.opts.Delay)
	report := &CycleReport{
		ID:         uuid.NewString(),
		StartedAt:  now,
		NowStamp:   window.NowStamp(),
		AheadStamp: window.AheadStamp(),
	}
	log := s.logger.WithField("cycle_id", report.ID)

	records, err := s.repo.ListRecords(ctx)
	if err != nil {
		log.WithError(err).Error("Failed to load schedule records")
		return nil, fmt.Errorf("failed to list schedule records: %w", err)
	}
	report.Records = len(records)
	log.WithFields(logrus.Fields{
		"records":     len(records),
		"now_stamp":   report.NowStamp,
		"ahead_stamp": report.AheadStamp,
	}).Info("Poll cycle started")

	for _, r := range records {
		if err := ctx.Err(); err != nil {
			log.WithError(err).Warn("Poll cycle interrupted; remaining records left untouched")
			s.finish(report, started)
			return report, err
		}
		s.processRecord(ctx, log, r, window, now, report)
	}

	s.finish(report, started)
	log.WithField("duration", report.Duration).Info(report.Summary())
	return report, nil
}

func (s *NotificationServiceImpl) finish(report *CycleReport, started time.Time) {
	report.Duration = time.Since(started)
	s.mu.Lock()
	s.last = report
	s.mu.Unlock()
}

// processRecord parses a record once, then runs the state machine for each kind.
// A record with any unreadable temporal field is skipped as a whole.
func (s *NotificationServiceImpl) processRecord(ctx context.Context, log *logrus.Entry, r *schedule.Record, w schedule.Window, now time.Time, report *CycleReport) {
	log = log.WithField("row", r.Row)

	if r.Err != nil {
		report.ParseErrors++
		log.WithError(r.Err).Warn("Skipping record with unreadable stored state")
		return
	}

	disp, err := schedule.ComputeDisplay(r, s.opts.Zones, s.opts.PMMarker, s.opts.Location)
	if err != nil {
		report.ParseErrors++
		log.WithError(err).Warn("Skipping record with unreadable class date/time")
		return
	}

	scheduled := make(map[schedule.Kind]time.Time, len(schedule.Kinds))
	for _, kind := range schedule.Kinds {
		t, err := schedule.ScheduledTime(r, kind, s.opts.PMMarker, s.opts.Location)
		if err != nil {
			report.ParseErrors++
			log.WithError(err).WithField("kind", kind).Warn("Skipping record with unreadable schedule")
			return
		}
		scheduled[kind] = t
	}

	for _, kind := range schedule.Kinds {
		s.processKind(ctx, log.WithField("kind", kind), r, kind, scheduled[kind], disp, w, now, report)
	}
}

func (s *NotificationServiceImpl) processKind(
	ctx context.Context,
	log *logrus.Entry,
	r *schedule.Record,
	kind schedule.Kind,
	scheduled time.Time,
	disp schedule.Display,
	w schedule.Window,
	now time.Time,
	report *CycleReport,
) {
	st := r.State(kind)
	state := notification.Evaluate(st, scheduled, w, s.opts.RetryThreshold)
	log.WithFields(logrus.Fields{
		"state":       state,
		"scheduled":   schedule.StampOf(scheduled),
		"retry_count": st.RetryCount,
	}).Debug("Evaluated notification")

	if state != notification.StateDue {
		return
	}

	report.Attempted++
	outcome := s.dispatcher.Dispatch(ctx, r, kind, disp)
	next := notification.Apply(st, outcome, now)
	r.SetState(kind, next)

	var writeErr error
	if outcome == notification.Success {
		report.Sent++
		writeErr = s.repo.MarkSent(ctx, r.Row, kind, next.SentAt)
	} else {
		report.Failed++
		writeErr = s.repo.SetRetryCount(ctx, r.Row, kind, next.RetryCount)
	}
	if writeErr != nil {
		// The stored state no longer matches what happened; a sent message may go out again next cycle.
		report.WriteErrors++
		log.WithError(writeErr).WithField("outcome", outcome).Error("Failed to store notification state")
	}

	if outcome == notification.Failure && next.RetryCount >= s.opts.RetryThreshold {
		report.Exhausted++
		s.reportExhausted(ctx, log, r, kind, next)
	}
}

func (s *NotificationServiceImpl) reportExhausted(ctx context.Context, log *logrus.Entry, r *schedule.Record, kind schedule.Kind, st schedule.KindState) {
	log.WithField("retry_count", st.RetryCount).Warn("Notification retries exhausted; no further attempts will be made")
	if s.alerter == nil {
		return
	}
	text := fmt.Sprintf("Retries exhausted for %s notification (row %d, %s %s, %s, phone %s) after %d attempts.",
		kind, r.Row, r.ChildFirstName, r.ChildLastName, r.CourseName, r.PhoneNumber, st.RetryCount)
	if err := s.alerter.Notify(ctx, text); err != nil {
		log.WithError(err).Warn("Failed to send exhaustion alert")
	}
}
