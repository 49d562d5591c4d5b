// Package payload turns domain records into push messages.
//
// The gateway only accepts string data values, so every field placed in a
// message's data block goes through Stringify. Nested payloads are encoded
// as a single JSON string rather than expanded.
package payload

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/bjaus/pushdispatch/model"
	"github.com/bjaus/pushdispatch/transport"
)

// Message types carried in the "type" data field.
const (
	TypeSystemAlert     = "system_alert"
	TypeVisitorArrived  = "visitor_arrived"
	TypeVisitorApproved = "visitor_approved"
	TypeVisitorDenied   = "visitor_denied"
)

// Config holds the fixed strings and delivery hints stamped on every message.
type Config struct {
	// AppName is the fallback title for requests without one.
	AppName string

	// DefaultBody is the fallback body for requests without one.
	DefaultBody string

	// ClickAction tells the app which screen to open on tap.
	ClickAction string

	// ChannelID is the Android notification channel.
	ChannelID string

	// Badge is the iOS badge count; zero leaves the badge alone.
	Badge int
}

// DefaultConfig returns the production message settings.
func DefaultConfig() Config {
	return Config{
		AppName:     "GateKeeper",
		DefaultBody: "You have a new notification",
		ClickAction: "FLUTTER_NOTIFICATION_CLICK",
		ChannelID:   "gatekeeper_notifications",
		Badge:       1,
	}
}

// Builder builds messages for each trigger.
type Builder struct {
	cfg Config
}

// New returns a Builder. Empty fields of cfg take their DefaultConfig value.
func New(cfg Config) *Builder {
	def := DefaultConfig()
	if cfg.AppName == "" {
		cfg.AppName = def.AppName
	}
	if cfg.DefaultBody == "" {
		cfg.DefaultBody = def.DefaultBody
	}
	if cfg.ClickAction == "" {
		cfg.ClickAction = def.ClickAction
	}
	if cfg.ChannelID == "" {
		cfg.ChannelID = def.ChannelID
	}
	return &Builder{cfg: cfg}
}

// Hints returns the delivery hints applied to every message.
func (b *Builder) Hints() transport.Hints {
	h := transport.Hints{
		Priority:              "high",
		ChannelID:             b.cfg.ChannelID,
		Sound:                 "default",
		DefaultSound:          true,
		DefaultVibrateTimings: true,
	}
	if b.cfg.Badge > 0 {
		badge := b.cfg.Badge
		h.Badge = &badge
	}
	return h
}

// ForRequest builds the single-target message for a notification request.
func (b *Builder) ForRequest(notificationID string, req model.NotificationRequest, token string) transport.Message {
	title := req.Title
	if title == "" {
		title = b.cfg.AppName
	}
	body := req.Body
	if body == "" {
		body = b.cfg.DefaultBody
	}
	kind := req.Kind
	if kind == "" {
		kind = TypeSystemAlert
	}

	fields := map[string]any{
		"notificationId": notificationID,
		"type":           kind,
	}
	if extra, ok := encodeExtra(req.ExtraData); ok {
		fields["extraData"] = extra
	}

	return transport.Message{
		Token:        token,
		Notification: transport.Notification{Title: title, Body: body},
		Data:         b.data(fields),
		Hints:        b.Hints(),
	}
}

// ForVisitorArrival builds the multi-target message telling residents a
// visitor is at the gate.
func (b *Builder) ForVisitorArrival(visitorID string, v model.VisitorRecord, tokens []string) transport.Message {
	return transport.Message{
		Tokens: tokens,
		Notification: transport.Notification{
			Title: "New Visitor",
			Body:  fmt.Sprintf("%s is waiting at the gate", v.Name),
		},
		Data: b.data(map[string]any{
			"visitorId":   visitorID,
			"visitorName": v.Name,
			"flatNumber":  v.FlatNumber,
			"type":        TypeVisitorArrived,
		}),
		Hints: b.Hints(),
	}
}

// ForVisitorDecision builds the single-target message telling the guard a
// visitor was approved or denied.
func (b *Builder) ForVisitorDecision(visitorID string, v model.VisitorRecord, token string) transport.Message {
	approved := v.Status == model.StatusApproved

	title, verb, kind := "Visitor Denied", "denied", TypeVisitorDenied
	if approved {
		title, verb, kind = "Visitor Approved", "approved", TypeVisitorApproved
	}

	return transport.Message{
		Token: token,
		Notification: transport.Notification{
			Title: title,
			Body:  fmt.Sprintf("%s was %s by Flat %s", v.Name, verb, v.FlatNumber),
		},
		Data: b.data(map[string]any{
			"visitorId":   visitorID,
			"visitorName": v.Name,
			"flatNumber":  v.FlatNumber,
			"status":      string(v.Status),
			"type":        kind,
		}),
		Hints: b.Hints(),
	}
}

// data stamps the click action and stringifies every field.
func (b *Builder) data(fields map[string]any) map[string]string {
	out := make(map[string]string, len(fields)+1)
	for k, v := range fields {
		out[k] = Stringify(v)
	}
	out["click_action"] = b.cfg.ClickAction
	return out
}

// encodeExtra returns the compact JSON text of a free-form payload.
func encodeExtra(raw json.RawMessage) (string, bool) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return "", false
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, trimmed); err != nil {
		return string(trimmed), true
	}
	return buf.String(), true
}

// Stringify converts a value to its data-block form. Strings pass through,
// scalars use their canonical text, nil becomes "", and anything else is
// JSON-encoded.
func Stringify(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case fmt.Stringer:
		return x.String()
	case bool:
		return strconv.FormatBool(x)
	case int:
		return strconv.Itoa(x)
	case int32:
		return strconv.FormatInt(int64(x), 10)
	case int64:
		return strconv.FormatInt(x, 10)
	case uint:
		return strconv.FormatUint(uint64(x), 10)
	case uint32:
		return strconv.FormatUint(uint64(x), 10)
	case uint64:
		return strconv.FormatUint(x, 10)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case json.RawMessage:
		if s, ok := encodeExtra(x); ok {
			return s
		}
		return ""
	default:
		raw, err := json.Marshal(x)
		if err != nil {
			return fmt.Sprint(x)
		}
		return string(raw)
	}
}
