package payload

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bjaus/pushdispatch/model"
)

func TestStringify(t *testing.T) {
	tests := map[string]struct {
		in   any
		want string
	}{
		"nil":         {nil, ""},
		"string":      {"hello", "hello"},
		"bool":        {true, "true"},
		"int":         {42, "42"},
		"int64":       {int64(-7), "-7"},
		"float whole": {float64(3), "3"},
		"float":       {1.5, "1.5"},
		"status":      {model.StatusApproved, `"approved"`},
		"map":         {map[string]any{"a": 1}, `{"a":1}`},
		"slice":       {[]string{"x", "y"}, `["x","y"]`},
		"raw":         {json.RawMessage(` { "k" : "v" } `), `{"k":"v"}`},
		"raw null":    {json.RawMessage("null"), ""},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tc.want, Stringify(tc.in))
		})
	}
}

func TestNew_FillsDefaults(t *testing.T) {
	b := New(Config{AppName: "Lobby"})

	assert.Equal(t, "Lobby", b.cfg.AppName)
	assert.Equal(t, "You have a new notification", b.cfg.DefaultBody)
	assert.Equal(t, "FLUTTER_NOTIFICATION_CLICK", b.cfg.ClickAction)
	assert.Equal(t, "gatekeeper_notifications", b.cfg.ChannelID)
	assert.Zero(t, b.cfg.Badge)
	assert.Nil(t, b.Hints().Badge)
}

func TestHints(t *testing.T) {
	h := New(DefaultConfig()).Hints()

	assert.Equal(t, "high", h.Priority)
	assert.Equal(t, "gatekeeper_notifications", h.ChannelID)
	assert.Equal(t, "default", h.Sound)
	assert.True(t, h.DefaultSound)
	assert.True(t, h.DefaultVibrateTimings)
	require.NotNil(t, h.Badge)
	assert.Equal(t, 1, *h.Badge)
}

func TestForRequest(t *testing.T) {
	b := New(DefaultConfig())

	t.Run("copies request fields", func(t *testing.T) {
		req := model.NotificationRequest{
			RecipientID: "u1",
			Title:       "Hello",
			Body:        "World",
			Kind:        "maintenance",
			ExtraData:   json.RawMessage(`{"k": "v"}`),
		}

		msg := b.ForRequest("n1", req, "tok1")

		assert.Equal(t, "tok1", msg.Token)
		assert.Empty(t, msg.Tokens)
		assert.Equal(t, "Hello", msg.Notification.Title)
		assert.Equal(t, "World", msg.Notification.Body)
		assert.Equal(t, map[string]string{
			"notificationId": "n1",
			"type":           "maintenance",
			"click_action":   "FLUTTER_NOTIFICATION_CLICK",
			"extraData":      `{"k":"v"}`,
		}, msg.Data)
		assert.Equal(t, b.Hints(), msg.Hints)
	})

	t.Run("falls back for missing fields", func(t *testing.T) {
		msg := b.ForRequest("n2", model.NotificationRequest{RecipientID: "u1"}, "tok1")

		assert.Equal(t, "GateKeeper", msg.Notification.Title)
		assert.Equal(t, "You have a new notification", msg.Notification.Body)
		assert.Equal(t, "system_alert", msg.Data["type"])
		assert.NotContains(t, msg.Data, "extraData")
	})

	t.Run("null extra data is omitted", func(t *testing.T) {
		req := model.NotificationRequest{RecipientID: "u1", ExtraData: json.RawMessage("null")}

		msg := b.ForRequest("n3", req, "tok1")

		assert.NotContains(t, msg.Data, "extraData")
	})
}

func TestForVisitorArrival(t *testing.T) {
	v := model.VisitorRecord{Name: "Ravi", Status: model.StatusPending, FlatNumber: "12B"}

	msg := New(DefaultConfig()).ForVisitorArrival("v1", v, []string{"tok1", "tok2"})

	assert.Empty(t, msg.Token)
	assert.Equal(t, []string{"tok1", "tok2"}, msg.Tokens)
	assert.Equal(t, "New Visitor", msg.Notification.Title)
	assert.Equal(t, "Ravi is waiting at the gate", msg.Notification.Body)
	assert.Equal(t, map[string]string{
		"visitorId":    "v1",
		"visitorName":  "Ravi",
		"flatNumber":   "12B",
		"type":         "visitor_arrived",
		"click_action": "FLUTTER_NOTIFICATION_CLICK",
	}, msg.Data)
}

func TestForVisitorDecision(t *testing.T) {
	tests := map[string]struct {
		status    model.Status
		wantTitle string
		wantBody  string
		wantType  string
	}{
		"approved": {model.StatusApproved, "Visitor Approved", "Ravi was approved by Flat 12B", "visitor_approved"},
		"denied":   {model.StatusDenied, "Visitor Denied", "Ravi was denied by Flat 12B", "visitor_denied"},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			v := model.VisitorRecord{Name: "Ravi", Status: tc.status, FlatNumber: "12B", GuardID: "g1"}

			msg := New(DefaultConfig()).ForVisitorDecision("v1", v, "guardtok")

			assert.Equal(t, "guardtok", msg.Token)
			assert.Equal(t, tc.wantTitle, msg.Notification.Title)
			assert.Equal(t, tc.wantBody, msg.Notification.Body)
			assert.Equal(t, tc.wantType, msg.Data["type"])
			assert.Equal(t, string(tc.status), msg.Data["status"])
			assert.Equal(t, "v1", msg.Data["visitorId"])
			assert.Equal(t, "FLUTTER_NOTIFICATION_CLICK", msg.Data["click_action"])
		})
	}
}
