package gateway

import "context"

// Message is a text message addressed to one WhatsApp number.
type Message struct {
	Destination string // digits only, country code first
	Text        string
}

// Client defines an interface for delivering messages through the messaging gateway.
// A nil error means the gateway accepted the message; any error counts as a failed attempt.
type Client interface {
	Send(ctx context.Context, msg Message) error
}
