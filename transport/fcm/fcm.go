// Package fcm delivers push messages through Firebase Cloud Messaging.
package fcm

import (
	"context"
	"fmt"
	"io"
	"strings"

	"firebase.google.com/go/v4/errorutils"
	"firebase.google.com/go/v4/messaging"
	"github.com/tidwall/gjson"

	"github.com/bjaus/pushdispatch/transport"
)

// Sender is the part of *messaging.Client used by Transport.
type Sender interface {
	Send(ctx context.Context, message *messaging.Message) (string, error)
	SendEachForMulticast(ctx context.Context, message *messaging.MulticastMessage) (*messaging.BatchResponse, error)
}

var _ Sender = (*messaging.Client)(nil)

// Transport adapts an FCM client to transport.Transport.
type Transport struct {
	client Sender
}

var _ transport.Transport = (*Transport)(nil)

// New returns a Transport sending through client.
func New(client Sender) *Transport {
	return &Transport{client: client}
}

func (t *Transport) Send(ctx context.Context, msg transport.Message) (string, error) {
	if msg.Token == "" {
		return "", transport.NewDeliveryError(transport.KindInvalidToken, fmt.Errorf("empty registration token"))
	}

	id, err := t.client.Send(ctx, toMessage(msg))
	if err != nil {
		return "", transport.NewDeliveryError(classify(err), err)
	}
	return id, nil
}

func (t *Transport) SendMulticast(ctx context.Context, msg transport.Message) (transport.BatchResponse, error) {
	resp, err := t.client.SendEachForMulticast(ctx, toMulticast(msg))
	if err != nil {
		return transport.BatchResponse{}, transport.NewDeliveryError(classify(err), err)
	}

	out := transport.BatchResponse{
		SuccessCount: resp.SuccessCount,
		FailureCount: resp.FailureCount,
		Responses:    make([]transport.SendResponse, 0, len(resp.Responses)),
	}
	for i, r := range resp.Responses {
		sr := transport.SendResponse{MessageID: r.MessageID}
		if i < len(msg.Tokens) {
			sr.Token = msg.Tokens[i]
		}
		if !r.Success && r.Error != nil {
			sr.Err = transport.NewDeliveryError(classify(r.Error), r.Error)
		}
		out.Responses = append(out.Responses, sr)
	}
	return out, nil
}

// classify maps FCM error codes onto transport error kinds. The HTTP v1 API
// reports both malformed registration tokens and rejected payloads as
// INVALID_ARGUMENT; only the former is a token failure.
func classify(err error) transport.ErrorKind {
	switch {
	case messaging.IsUnregistered(err):
		return transport.KindUnregistered
	case messaging.IsInvalidArgument(err):
		if tokenRejected(err) {
			return transport.KindInvalidToken
		}
		return transport.KindInvalidArgument
	case messaging.IsQuotaExceeded(err):
		return transport.KindQuotaExceeded
	case messaging.IsUnavailable(err):
		return transport.KindUnavailable
	case messaging.IsInternal(err):
		return transport.KindInternal
	case messaging.IsSenderIDMismatch(err), messaging.IsThirdPartyAuthError(err):
		return transport.KindAuth
	default:
		return transport.KindUnknown
	}
}

// tokenRejected reports whether an INVALID_ARGUMENT failure names the
// registration token, either in its message or in a BadRequest field
// violation on message.token.
func tokenRejected(err error) bool {
	if strings.Contains(strings.ToLower(err.Error()), "registration token") {
		return true
	}
	resp := errorutils.HTTPResponse(err)
	if resp == nil || resp.Body == nil {
		return false
	}
	defer resp.Body.Close()
	body, rerr := io.ReadAll(resp.Body)
	if rerr != nil {
		return false
	}
	return tokenViolation(body)
}

// tokenViolation reports whether an error body carries a field violation
// on message.token.
func tokenViolation(body []byte) bool {
	found := false
	gjson.GetBytes(body, "error.details").ForEach(func(_, detail gjson.Result) bool {
		detail.Get("fieldViolations").ForEach(func(_, v gjson.Result) bool {
			found = v.Get("field").String() == "message.token"
			return !found
		})
		return !found
	})
	return found
}

func toMessage(msg transport.Message) *messaging.Message {
	return &messaging.Message{
		Token:        msg.Token,
		Notification: notification(msg.Notification),
		Data:         msg.Data,
		Android:      android(msg.Hints),
		APNS:         apns(msg.Hints),
	}
}

func toMulticast(msg transport.Message) *messaging.MulticastMessage {
	return &messaging.MulticastMessage{
		Tokens:       msg.Tokens,
		Notification: notification(msg.Notification),
		Data:         msg.Data,
		Android:      android(msg.Hints),
		APNS:         apns(msg.Hints),
	}
}

func notification(n transport.Notification) *messaging.Notification {
	return &messaging.Notification{Title: n.Title, Body: n.Body}
}

func android(h transport.Hints) *messaging.AndroidConfig {
	cfg := &messaging.AndroidConfig{
		Priority: h.Priority,
		Notification: &messaging.AndroidNotification{
			Sound:                 h.Sound,
			ChannelID:             h.ChannelID,
			DefaultSound:          h.DefaultSound,
			DefaultVibrateTimings: h.DefaultVibrateTimings,
		},
	}
	if h.Priority == "high" {
		cfg.Notification.Priority = messaging.PriorityHigh
	}
	return cfg
}

func apns(h transport.Hints) *messaging.APNSConfig {
	return &messaging.APNSConfig{
		Payload: &messaging.APNSPayload{
			Aps: &messaging.Aps{
				Sound: h.Sound,
				Badge: h.Badge,
			},
		},
	}
}
