// Package transport defines the push gateway the dispatcher delivers
// messages through, and the message shape it accepts.
package transport

import "context"

// Transport delivers push messages.
type Transport interface {
	// Send delivers msg to msg.Token and returns the gateway's message id.
	Send(ctx context.Context, msg Message) (string, error)

	// SendMulticast delivers msg to every token in msg.Tokens. A nil error
	// means the batch was submitted; per-token failures are reported in
	// the response.
	SendMulticast(ctx context.Context, msg Message) (BatchResponse, error)
}

// Message is one push message. Exactly one of Token and Tokens is set.
type Message struct {
	Token  string
	Tokens []string

	Notification Notification

	// Data values are strings only; the gateway rejects any other type.
	Data map[string]string

	Hints Hints
}

// Notification is the human-readable part shown by the device.
type Notification struct {
	Title string
	Body  string
}

// Hints are platform delivery options.
type Hints struct {
	// Priority is the Android delivery priority, "high" or "normal".
	Priority string

	// ChannelID is the Android notification channel.
	ChannelID string

	// Sound names the sound to play on both platforms.
	Sound string

	DefaultSound          bool
	DefaultVibrateTimings bool

	// Badge sets the iOS badge count when non-nil.
	Badge *int
}

// BatchResponse reports the outcome of a multicast send.
type BatchResponse struct {
	SuccessCount int
	FailureCount int

	// Responses has one entry per token, in the order of Message.Tokens.
	Responses []SendResponse
}

// SendResponse is the outcome for one token of a multicast send.
type SendResponse struct {
	Token     string
	MessageID string
	Err       error
}
