package telegram

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"class_reminder_bot/internal/app"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

const helpText = "Available commands:\n\n" +
	"/status - summary of the last poll cycle\n" +
	"/poll - run a poll cycle now\n" +
	"/help - show this message"

// RegisterAdminHandlers registers handlers for admin commands.
// It requires the bot instance, admin service, and the configured admin Telegram ID.
func RegisterAdminHandlers(ctx context.Context, b *telebot.Bot, adminService *app.AdminService, adminTelegramID int64, baseLogger *logrus.Entry) {
	b.Handle("/help", func(c telebot.Context) error {
		if c.Sender().ID != adminTelegramID {
			return nil
		}
		return c.Send(helpText)
	})

	b.Handle("/status", func(c telebot.Context) error {
		handlerLogger := baseLogger.WithFields(logrus.Fields{
			"handler":   "/status",
			"sender_id": c.Sender().ID,
		})
		handlerLogger.Info("Command received")

		report, err := adminService.LastCycle(c.Sender().ID)
		if err != nil {
			return c.Send(replyForError(handlerLogger, err))
		}
		return c.Send(FormatReport(report))
	})

	b.Handle("/poll", func(c telebot.Context) error {
		handlerLogger := baseLogger.WithFields(logrus.Fields{
			"handler":   "/poll",
			"sender_id": c.Sender().ID,
		})
		handlerLogger.Info("Command received")

		report, err := adminService.RunCycleNow(ctx, c.Sender().ID)
		if err != nil {
			return c.Send(replyForError(handlerLogger, err))
		}
		handlerLogger.WithField("cycle_id", report.ID).Info("Poll cycle triggered by admin")
		return c.Send(FormatReport(report))
	})
}

func replyForError(log *logrus.Entry, err error) string {
	logWithError := log.WithError(err)
	switch {
	case errors.Is(err, app.ErrAdminNotAuthorized):
		logWithError.Warn("Unauthorized access attempt")
		return "Error: you are not allowed to use this command."
	case errors.Is(err, app.ErrNoCycleYet):
		return "No poll cycle has finished yet."
	case errors.Is(err, app.ErrCycleInProgress):
		logWithError.Info("Poll requested while a cycle is running")
		return "A poll cycle is already running, try again in a moment."
	default:
		logWithError.Error("Admin command failed")
		return fmt.Sprintf("Command failed: %s", err.Error())
	}
}

// FormatReport renders a cycle report for the admin chat.
func FormatReport(r *app.CycleReport) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Cycle %s\n", r.ID)
	fmt.Fprintf(&b, "Started: %s (window %s - %s)\n", r.StartedAt.Format("2006-01-02 15:04"), r.NowStamp, r.AheadStamp)
	fmt.Fprintf(&b, "Records: %d\n", r.Records)
	fmt.Fprintf(&b, "Attempted: %d, sent: %d, failed: %d\n", r.Attempted, r.Sent, r.Failed)
	fmt.Fprintf(&b, "Retries exhausted: %d\n", r.Exhausted)
	fmt.Fprintf(&b, "Unreadable records: %d, store write errors: %d\n", r.ParseErrors, r.WriteErrors)
	fmt.Fprintf(&b, "Took: %s", r.Duration.Round(time.Millisecond))
	return b.String()
}
