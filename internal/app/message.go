// internal/app/message.go
package app

import (
	"fmt"
	"strings"

	"class_reminder_bot/internal/domain/schedule"
)

const messageBody = "Hey Parent,\n\n" +
	"*%s's* class is booked:\n" +
	"📝: *%s* Classes for Kids\n" +
	"📅: *%s* (%s), *%s*\n\n" +
	"Instructions to join:\n" +
	"- Join using Mobile: Download Zoom\n" +
	"- Join using Computer/ desktop:\n" +
	"%s\n\n" +
	"Happy Learning!\n\n" +
	"%s"

// ComposeMessage builds the WhatsApp text for a kind. The two kinds share the
// body; only the reminder carries the leading banner.
func ComposeMessage(r *schedule.Record, kind schedule.Kind, d schedule.Display, leadMinutes int, signature string) string {
	body := fmt.Sprintf(messageBody, r.ChildFirstName, r.CourseName, d.Date, d.Weekday, d.Time, r.ClassLink, signature)
	if kind == schedule.KindReminder {
		return fmt.Sprintf("*Gentle Reminder, class starts in %d mins* \n\n", leadMinutes) + body
	}
	return body
}

// DestinationNumber drops the middle segment of a hyphenated phone number:
// "91-555-9876543210" becomes "919876543210". Numbers without hyphens are kept.
func DestinationNumber(phone string) string {
	parts := strings.Split(strings.TrimSpace(phone), "-")
	if len(parts) == 1 {
		return parts[0]
	}
	return parts[0] + parts[len(parts)-1]
}
