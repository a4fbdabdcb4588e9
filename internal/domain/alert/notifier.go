package alert

import "context"

// Notifier delivers operator-facing alerts, e.g. a kind running out of retries.
type Notifier interface {
	Notify(ctx context.Context, text string) error
}
