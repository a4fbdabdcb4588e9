// internal/app/dispatcher.go
package app

import (
	"context"

	"class_reminder_bot/internal/domain/gateway"
	"class_reminder_bot/internal/domain/notification"
	"class_reminder_bot/internal/domain/schedule"

	"github.com/sirupsen/logrus"
)

// Dispatcher composes notification texts and hands them to the messaging gateway.
type Dispatcher struct {
	client      gateway.Client
	leadMinutes int
	signature   string
	logger      *logrus.Entry
}

func NewDispatcher(client gateway.Client, leadMinutes int, signature string, logger *logrus.Entry) *Dispatcher {
	return &Dispatcher{
		client:      client,
		leadMinutes: leadMinutes,
		signature:   signature,
		logger:      logger,
	}
}

// Dispatch sends one kind for one record. Transport errors and gateway
// rejections are not told apart: both are a Failure.
func (d *Dispatcher) Dispatch(ctx context.Context, r *schedule.Record, kind schedule.Kind, disp schedule.Display) notification.Outcome {
	msg := gateway.Message{
		Destination: DestinationNumber(r.PhoneNumber),
		Text:        ComposeMessage(r, kind, disp, d.leadMinutes, d.signature),
	}

	log := d.logger.WithFields(logrus.Fields{
		"row":         r.Row,
		"kind":        kind,
		"destination": msg.Destination,
	})

	if err := d.client.Send(ctx, msg); err != nil {
		log.WithError(err).Warn("Gateway rejected notification")
		return notification.Failure
	}
	log.Info("Notification delivered to gateway")
	return notification.Success
}
