// Package ingest feeds raw lifecycle events to the router from the network.
package ingest

import (
	"context"

	"github.com/bjaus/pushdispatch"
)

// Processor handles one raw event. *pushdispatch.Router satisfies it.
type Processor interface {
	Process(ctx context.Context, raw []byte) (pushdispatch.Result, error)
}

// Response is the JSON report returned to callers that wait for a result.
type Response struct {
	Outcome      string `json:"outcome"`
	Reason       string `json:"reason,omitempty"`
	DeliveryID   string `json:"deliveryId,omitempty"`
	SuccessCount int    `json:"successCount,omitempty"`
	FailureCount int    `json:"failureCount,omitempty"`
	Pruned       bool   `json:"pruned,omitempty"`
	Error        string `json:"error,omitempty"`
}

func newResponse(res pushdispatch.Result, err error) Response {
	r := Response{
		Outcome:      res.Outcome.String(),
		Reason:       res.Reason,
		DeliveryID:   res.DeliveryID,
		SuccessCount: res.SuccessCount,
		FailureCount: res.FailureCount,
		Pruned:       res.Pruned,
	}
	if err != nil {
		r.Error = err.Error()
	}
	return r
}
