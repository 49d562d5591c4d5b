package fcm

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
	"google.golang.org/api/option"

	"github.com/bjaus/pushdispatch"
	"github.com/bjaus/pushdispatch/engine"
	"github.com/bjaus/pushdispatch/hygiene"
	"github.com/bjaus/pushdispatch/model"
	"github.com/bjaus/pushdispatch/payload"
	"github.com/bjaus/pushdispatch/recipient"
	"github.com/bjaus/pushdispatch/store"
	"github.com/bjaus/pushdispatch/transport"
)

const (
	bodyUnregistered = `{"error":{"code":404,"message":"Requested entity was not found.","status":"NOT_FOUND",` +
		`"details":[{"@type":"type.googleapis.com/google.firebase.fcm.v1.FcmError","errorCode":"UNREGISTERED"}]}}`

	bodyBadToken = `{"error":{"code":400,"message":"The registration token is not a valid FCM registration token",` +
		`"status":"INVALID_ARGUMENT",` +
		`"details":[{"@type":"type.googleapis.com/google.firebase.fcm.v1.FcmError","errorCode":"INVALID_ARGUMENT"}]}}`

	bodyTooBig = `{"error":{"code":400,"message":"Message is too big","status":"INVALID_ARGUMENT",` +
		`"details":[{"@type":"type.googleapis.com/google.firebase.fcm.v1.FcmError","errorCode":"INVALID_ARGUMENT"}]}}`

	bodyBadData = `{"error":{"code":400,"message":"Invalid value at 'message.data[0].value'","status":"INVALID_ARGUMENT",` +
		`"details":[{"@type":"type.googleapis.com/google.rpc.BadRequest",` +
		`"fieldViolations":[{"field":"message.data[0].value","description":"Invalid value"}]}]}}`
)

type reply struct {
	status int
	body   string
}

// gateway answers FCM send requests by the token they target. Tokens
// without a canned reply are accepted.
type gateway map[string]reply

func (g gateway) RoundTrip(req *http.Request) (*http.Response, error) {
	raw, err := io.ReadAll(req.Body)
	if err != nil {
		return nil, err
	}
	token := gjson.GetBytes(raw, "message.token").String()

	r, ok := g[token]
	if !ok {
		r = reply{status: http.StatusOK, body: `{"name":"projects/test-project/messages/` + token + `"}`}
	}
	return &http.Response{
		StatusCode: r.status,
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       io.NopCloser(strings.NewReader(r.body)),
		Request:    req,
	}, nil
}

func newClient(t *testing.T, g gateway) *messaging.Client {
	t.Helper()
	ctx := context.Background()
	app, err := firebase.NewApp(ctx,
		&firebase.Config{ProjectID: "test-project"},
		option.WithHTTPClient(&http.Client{Transport: g}),
	)
	require.NoError(t, err)
	client, err := app.Messaging(ctx)
	require.NoError(t, err)
	return client
}

func TestClassify_Send(t *testing.T) {
	tests := map[string]struct {
		reply reply
		want  transport.ErrorKind
	}{
		"unregistered":    {reply{http.StatusNotFound, bodyUnregistered}, transport.KindUnregistered},
		"malformed token": {reply{http.StatusBadRequest, bodyBadToken}, transport.KindInvalidToken},
		"oversized body":  {reply{http.StatusBadRequest, bodyTooBig}, transport.KindInvalidArgument},
		"bad data value":  {reply{http.StatusBadRequest, bodyBadData}, transport.KindInvalidArgument},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			tr := New(newClient(t, gateway{"tok1": tc.reply}))
			msg := sampleMessage()
			msg.Token = "tok1"

			_, err := tr.Send(context.Background(), msg)

			require.Error(t, err)
			assert.Equal(t, tc.want, transport.KindOf(err))
		})
	}
}

func TestClassify_SendMulticast(t *testing.T) {
	tr := New(newClient(t, gateway{
		"gone":   {http.StatusNotFound, bodyUnregistered},
		"broken": {http.StatusBadRequest, bodyBadToken},
		"big":    {http.StatusBadRequest, bodyTooBig},
	}))
	msg := sampleMessage()
	msg.Tokens = []string{"ok", "gone", "broken", "big"}

	resp, err := tr.SendMulticast(context.Background(), msg)

	require.NoError(t, err)
	assert.Equal(t, 1, resp.SuccessCount)
	assert.Equal(t, 3, resp.FailureCount)
	require.Len(t, resp.Responses, 4)

	kinds := make(map[string]transport.ErrorKind, len(resp.Responses))
	for _, r := range resp.Responses {
		if r.Err != nil {
			kinds[r.Token] = transport.KindOf(r.Err)
		}
	}
	assert.Equal(t, map[string]transport.ErrorKind{
		"gone":   transport.KindUnregistered,
		"broken": transport.KindInvalidToken,
		"big":    transport.KindInvalidArgument,
	}, kinds)
	assert.NoError(t, resp.Responses[0].Err)
}

func TestTokenViolation(t *testing.T) {
	tests := map[string]struct {
		body string
		want bool
	}{
		"token field": {
			`{"error":{"details":[{"fieldViolations":[{"field":"message.token","description":"Invalid registration token"}]}]}}`,
			true,
		},
		"data field": {bodyBadData, false},
		"no details": {bodyTooBig, false},
		"not json":   {"<html>bad gateway</html>", false},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tc.want, tokenViolation([]byte(tc.body)))
		})
	}
}

func TestRejectedPayloadKeepsToken(t *testing.T) {
	tests := map[string]struct {
		reply      reply
		wantPruned bool
	}{
		"oversized body":  {reply{http.StatusBadRequest, bodyTooBig}, false},
		"malformed token": {reply{http.StatusBadRequest, bodyBadToken}, true},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			st := store.NewMemory()
			st.Put(model.CollectionUsers, "u1", map[string]any{model.FieldFCMToken: "tok1"})
			eng := engine.New(recipient.New(st), New(newClient(t, gateway{"tok1": tc.reply})), hygiene.New(st))

			extra, err := json.Marshal(map[string]string{"blob": strings.Repeat("x", 5<<10)})
			require.NoError(t, err)
			req := model.NotificationRequest{RecipientID: "u1", Title: "Notice", ExtraData: extra}
			b := payload.New(payload.DefaultConfig())

			res := eng.SendToUser(ctx, "u1", func(token string) transport.Message {
				return b.ForRequest("n1", req, token)
			}, engine.PruneInvalidTokens())

			assert.Equal(t, pushdispatch.OutcomeFailed, res.Outcome)
			assert.Equal(t, tc.wantPruned, res.Pruned)

			doc, err := st.Get(ctx, model.CollectionUsers, "u1")
			require.NoError(t, err)
			_, present := doc.Data[model.FieldFCMToken]
			assert.Equal(t, !tc.wantPruned, present)
		})
	}
}
