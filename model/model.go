// Package model defines the records the dispatcher reads from the document
// store. Only the fields the dispatcher uses are modelled.
package model

import "encoding/json"

// Collection names in the document store.
const (
	CollectionNotifications = "notifications"
	CollectionVisitors      = "visitors"
	CollectionUsers         = "users"
	CollectionFlats         = "flats"
)

// Field names the dispatcher queries or mutates.
const (
	FieldFCMToken   = "fcmToken"
	FieldFlatNumber = "flatNumber"
)

// Status is the lifecycle state of a visitor.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusDenied   Status = "denied"
)

// Resolved reports whether s is a terminal decision.
func (s Status) Resolved() bool {
	return s == StatusApproved || s == StatusDenied
}

// NotificationRequest asks for a push message to one user. It is written
// once by an upstream actor and never mutated by the dispatcher.
type NotificationRequest struct {
	RecipientID string `json:"userId"`
	Title       string `json:"title,omitempty"`
	Body        string `json:"body,omitempty"`
	Kind        string `json:"type,omitempty"`

	// ExtraData is a free-form payload forwarded to the device as one
	// JSON-encoded string field.
	ExtraData json.RawMessage `json:"data,omitempty"`
}

// VisitorRecord is a gate check-in. It is created pending and resolved
// once to approved or denied by a flat resident.
type VisitorRecord struct {
	Name       string `json:"name"`
	Status     Status `json:"status"`
	FlatNumber string `json:"flatNumber"`
	GuardID    string `json:"guardId,omitempty"`
}

// UserRecord is a push recipient. An empty FCMToken means the user cannot
// currently be reached; it is not an error.
type UserRecord struct {
	ID       string `json:"-"`
	FCMToken string `json:"fcmToken,omitempty"`
}

// FlatRecord groups the residents of one flat.
type FlatRecord struct {
	FlatNumber  string   `json:"flatNumber"`
	ResidentIDs []string `json:"residentIds"`
}
