package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"class_reminder_bot/internal/app" // For NotificationService interface

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

type NotificationScheduler struct {
	cronEngine   *cron.Cron
	notifService app.NotificationService
	logger       *logrus.Entry
	cronSpecPoll string
	clock        func() time.Time
	ctx          context.Context
	cancel       context.CancelFunc
}

func NewNotificationScheduler(
	notifService app.NotificationService,
	logger *logrus.Entry,
	cronSpecPoll string, // e.g., "*/5 * * * *" (every 5 minutes)
	location *time.Location,
) *NotificationScheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &NotificationScheduler{
		cronEngine: cron.New(
			cron.WithLocation(location),
			cron.WithChain(cron.SkipIfStillRunning(cron.PrintfLogger(logger))),
		),
		notifService: notifService,
		logger:       logger,
		cronSpecPoll: cronSpecPoll,
		clock:        time.Now,
		ctx:          ctx,
		cancel:       cancel,
	}
}

func (s *NotificationScheduler) Start() error {
	s.logger.Info("Starting notification scheduler...")

	if _, err := s.cronEngine.AddFunc(s.cronSpecPoll, s.poll); err != nil {
		return fmt.Errorf("could not add poll cron job %q: %w", s.cronSpecPoll, err)
	}

	s.cronEngine.Start()
	s.logger.WithField("spec", s.cronSpecPoll).Info("Notification scheduler started")
	return nil
}

// poll runs one cycle. Errors are logged; the next tick tries again.
func (s *NotificationScheduler) poll() {
	s.logger.Debug("Cron job triggered for poll cycle.")
	_, err := s.notifService.RunCycle(s.ctx, s.clock())
	switch {
	case errors.Is(err, app.ErrCycleInProgress):
		s.logger.Warn("Previous poll cycle still running; tick skipped")
	case err != nil:
		s.logger.WithError(err).Error("Poll cycle failed")
	}
}

func (s *NotificationScheduler) Stop() {
	s.logger.Info("Stopping notification scheduler...")
	// A running cycle stops at the next record once its context is cancelled.
	s.cancel()
	<-s.cronEngine.Stop().Done()
	s.logger.Info("Notification scheduler gracefully stopped.")
}
