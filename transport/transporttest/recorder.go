// Package transporttest provides a recording transport for tests.
package transporttest

import (
	"context"
	"fmt"
	"sync"

	"github.com/bjaus/pushdispatch/transport"
)

// Recorder is a transport.Transport that records every message it is given.
//
// By default every send succeeds. Set SendErr to fail single-target sends,
// MulticastErr to fail multicast submission, and FailTokens to fail
// individual tokens of a multicast. Panic makes every call panic with the
// given value.
type Recorder struct {
	SendErr      error
	MulticastErr error
	FailTokens   map[string]error
	Panic        any

	mu         sync.Mutex
	sends      []transport.Message
	multicasts []transport.Message
}

var _ transport.Transport = (*Recorder)(nil)

// Send implements transport.Transport.
func (r *Recorder) Send(_ context.Context, msg transport.Message) (string, error) {
	if r.Panic != nil {
		panic(r.Panic)
	}
	r.mu.Lock()
	r.sends = append(r.sends, msg)
	n := len(r.sends)
	r.mu.Unlock()

	if r.SendErr != nil {
		return "", r.SendErr
	}
	return fmt.Sprintf("msg-%d", n), nil
}

// SendMulticast implements transport.Transport.
func (r *Recorder) SendMulticast(_ context.Context, msg transport.Message) (transport.BatchResponse, error) {
	if r.Panic != nil {
		panic(r.Panic)
	}
	r.mu.Lock()
	r.multicasts = append(r.multicasts, msg)
	r.mu.Unlock()

	if r.MulticastErr != nil {
		return transport.BatchResponse{}, r.MulticastErr
	}

	resp := transport.BatchResponse{Responses: make([]transport.SendResponse, len(msg.Tokens))}
	for i, tok := range msg.Tokens {
		resp.Responses[i].Token = tok
		if err := r.FailTokens[tok]; err != nil {
			resp.Responses[i].Err = err
			resp.FailureCount++
			continue
		}
		resp.Responses[i].MessageID = fmt.Sprintf("msg-%s", tok)
		resp.SuccessCount++
	}
	return resp, nil
}

// Sends returns the single-target messages received so far.
func (r *Recorder) Sends() []transport.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]transport.Message(nil), r.sends...)
}

// Multicasts returns the multicast messages received so far.
func (r *Recorder) Multicasts() []transport.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]transport.Message(nil), r.multicasts...)
}

// Calls returns the total number of transport calls.
func (r *Recorder) Calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sends) + len(r.multicasts)
}
