package transport

import (
	"context"

	"github.com/google/uuid"

	"github.com/bjaus/pushdispatch/internal/logx"
)

// Logging is a dry-run Transport. It logs each message and reports every
// send as successful.
type Logging struct{}

var _ Transport = Logging{}

// NewLogging returns a dry-run transport.
func NewLogging() Logging {
	return Logging{}
}

func (Logging) Send(ctx context.Context, msg Message) (string, error) {
	id := uuid.NewString()
	logx.From(ctx).Info("dry run: push message",
		"delivery_id", id,
		"title", msg.Notification.Title,
		"body", msg.Notification.Body,
		"data", msg.Data,
	)
	return id, nil
}

func (Logging) SendMulticast(ctx context.Context, msg Message) (BatchResponse, error) {
	resp := BatchResponse{Responses: make([]SendResponse, 0, len(msg.Tokens))}
	for _, token := range msg.Tokens {
		resp.Responses = append(resp.Responses, SendResponse{Token: token, MessageID: uuid.NewString()})
	}
	resp.SuccessCount = len(msg.Tokens)

	logx.From(ctx).Info("dry run: multicast push message",
		"token_count", len(msg.Tokens),
		"title", msg.Notification.Title,
		"body", msg.Notification.Body,
		"data", msg.Data,
	)
	return resp, nil
}
