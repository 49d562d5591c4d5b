package transport

import (
	"errors"
	"fmt"
)

// ErrorKind classifies delivery failures.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota

	// KindInvalidToken means the registration token is malformed or was
	// never valid.
	KindInvalidToken

	// KindUnregistered means the token was valid once but the app
	// instance is gone.
	KindUnregistered

	KindInvalidArgument
	KindQuotaExceeded
	KindUnavailable
	KindInternal
	KindAuth
)

var kindNames = map[ErrorKind]string{
	KindUnknown:         "unknown",
	KindInvalidToken:    "invalid-token",
	KindUnregistered:    "unregistered",
	KindInvalidArgument: "invalid-argument",
	KindQuotaExceeded:   "quota-exceeded",
	KindUnavailable:     "unavailable",
	KindInternal:        "internal",
	KindAuth:            "auth",
}

func (k ErrorKind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// TokenFailure reports whether the kind proves the token undeliverable.
func (k ErrorKind) TokenFailure() bool {
	return k == KindInvalidToken || k == KindUnregistered
}

// DeliveryError is a classified transport failure.
type DeliveryError struct {
	Kind ErrorKind
	Err  error
}

// NewDeliveryError wraps err with its classification.
func NewDeliveryError(kind ErrorKind, err error) *DeliveryError {
	return &DeliveryError{Kind: kind, Err: err}
}

func (e *DeliveryError) Error() string {
	if e.Err == nil {
		return "delivery failed: " + e.Kind.String()
	}
	return fmt.Sprintf("delivery failed (%s): %v", e.Kind, e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }

// KindOf returns the classification carried by err, or KindUnknown.
func KindOf(err error) ErrorKind {
	var derr *DeliveryError
	if errors.As(err, &derr) {
		return derr.Kind
	}
	return KindUnknown
}
