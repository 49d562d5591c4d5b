package pushdispatch

import "fmt"

// Outcome classifies how a handler run ended.
type Outcome int

const (
	// OutcomeSkipped means the pipeline finished without calling the
	// transport: the event was ineligible or required data was missing.
	OutcomeSkipped Outcome = iota

	// OutcomeDelivered means the transport accepted at least one message.
	OutcomeDelivered

	// OutcomeFailed means the pipeline hit an error. The error has already
	// been logged; it is carried here for inspection only.
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSkipped:
		return "skipped"
	case OutcomeDelivered:
		return "delivered"
	case OutcomeFailed:
		return "failed"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Result is the report of a single handler run.
type Result struct {
	Outcome Outcome

	// Reason is a short human-readable explanation for skipped and failed
	// results.
	Reason string

	// DeliveryID is the transport message id for single-target sends.
	DeliveryID string

	// SuccessCount and FailureCount are filled for multi-target sends.
	SuccessCount int
	FailureCount int

	// Pruned reports that a device token was removed after the send failed.
	Pruned bool

	// Err is the underlying error of a failed result.
	Err error
}

// Delivered returns a result for a message accepted by the transport.
func Delivered(deliveryID string) Result {
	return Result{Outcome: OutcomeDelivered, DeliveryID: deliveryID}
}

// Skipped returns a no-op result with the given reason.
func Skipped(reason string) Result {
	return Result{Outcome: OutcomeSkipped, Reason: reason}
}

// Failed returns a failed result wrapping err.
func Failed(err error) Result {
	r := Result{Outcome: OutcomeFailed, Err: err}
	if err != nil {
		r.Reason = err.Error()
	}
	return r
}
