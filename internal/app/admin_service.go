package app

import (
	"context"
	"fmt"
	"time"
)

// Custom application-level errors for admin service
var ErrAdminNotAuthorized = fmt.Errorf("performing user is not authorized as an admin")
var ErrNoCycleYet = fmt.Errorf("no poll cycle has finished yet")

// AdminService backs the operator commands of the Telegram bot.
type AdminService struct {
	notifService    NotificationService
	adminTelegramID int64
	clock           func() time.Time
}

func NewAdminService(ns NotificationService, adminID int64) *AdminService {
	return &AdminService{
		notifService:    ns,
		adminTelegramID: adminID,
		clock:           time.Now,
	}
}

// LastCycle returns the report of the most recent poll cycle.
func (s *AdminService) LastCycle(performingAdminID int64) (*CycleReport, error) {
	if performingAdminID != s.adminTelegramID {
		return nil, ErrAdminNotAuthorized
	}
	report := s.notifService.LastReport()
	if report == nil {
		return nil, ErrNoCycleYet
	}
	return report, nil
}

// RunCycleNow triggers a poll cycle outside the cron schedule.
func (s *AdminService) RunCycleNow(ctx context.Context, performingAdminID int64) (*CycleReport, error) {
	if performingAdminID != s.adminTelegramID {
		return nil, ErrAdminNotAuthorized
	}
	report, err := s.notifService.RunCycle(ctx, s.clock())
	if err != nil {
		return nil, fmt.Errorf("failed to run poll cycle: %w", err)
	}
	return report, nil
}
