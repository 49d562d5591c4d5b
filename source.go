package pushdispatch

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// EnvelopeSource returns the source for the native event envelope:
//
//	{"eventId": "e1", "eventKind": "updated", "collection": "visitors",
//	 "documentId": "v1", "before": {...}, "after": {...}}
func EnvelopeSource() Source {
	return SourceFunc(
		"envelope",
		And(
			HasFields("eventKind", "collection", "documentId", "after"),
			FieldIn("eventKind", string(Created), string(Updated)),
		),
		parseEnvelope,
	)
}

func parseEnvelope(raw []byte) (Event, error) {
	var ev Event
	if err := json.Unmarshal(raw, &ev); err != nil {
		return Event{}, err
	}
	if ev.Collection == "" || ev.DocumentID == "" {
		return Event{}, errors.New("envelope missing collection or documentId")
	}
	if ev.Kind == Created {
		ev.Before = nil
	}
	return ev, nil
}

const cloudEventTypePrefix = "google.cloud.firestore.document.v1."

// CloudEventSource returns the source for Firestore document events
// delivered as structured-mode CloudEvents with a JSON data payload, as
// pushed by Eventarc:
//
//	{"specversion": "1.0", "id": "...",
//	 "type": "google.cloud.firestore.document.v1.updated",
//	 "document": "visitors/v1",
//	 "data": {"value": {"fields": {...}}, "oldValue": {"fields": {...}}}}
//
// Typed Firestore values are flattened into plain JSON before routing.
func CloudEventSource() Source {
	return SourceFunc(
		"cloudevent",
		And(
			HasFields("specversion", "type", "data"),
			FieldHasPrefix("type", cloudEventTypePrefix),
		),
		parseCloudEvent,
	)
}

type cloudEvent struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Subject  string `json:"subject"`
	Document string `json:"document"`
	Data     struct {
		Value    *firestoreDocument `json:"value"`
		OldValue *firestoreDocument `json:"oldValue"`
	} `json:"data"`
}

type firestoreDocument struct {
	Fields map[string]firestoreValue `json:"fields"`
}

type firestoreValue struct {
	StringValue    *string            `json:"stringValue,omitempty"`
	IntegerValue   json.RawMessage    `json:"integerValue,omitempty"`
	DoubleValue    *float64           `json:"doubleValue,omitempty"`
	BooleanValue   *bool              `json:"booleanValue,omitempty"`
	NullValue      *string            `json:"nullValue,omitempty"`
	TimestampValue *string            `json:"timestampValue,omitempty"`
	ReferenceValue *string            `json:"referenceValue,omitempty"`
	BytesValue     *string            `json:"bytesValue,omitempty"`
	GeoPointValue  *geoPoint          `json:"geoPointValue,omitempty"`
	MapValue       *firestoreDocument `json:"mapValue,omitempty"`
	ArrayValue     *firestoreArray    `json:"arrayValue,omitempty"`
}

type geoPoint struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type firestoreArray struct {
	Values []firestoreValue `json:"values"`
}

func parseCloudEvent(raw []byte) (Event, error) {
	var ce cloudEvent
	if err := json.Unmarshal(raw, &ce); err != nil {
		return Event{}, err
	}

	path := ce.Document
	if path == "" {
		path = strings.TrimPrefix(ce.Subject, "documents/")
	}
	i := strings.LastIndex(path, "/")
	if i <= 0 || i == len(path)-1 {
		return Event{}, fmt.Errorf("cloudevent has no usable document path %q", path)
	}
	ev := Event{ID: ce.ID, Collection: path[:i], DocumentID: path[i+1:]}

	switch strings.TrimPrefix(ce.Type, cloudEventTypePrefix) {
	case "created":
		ev.Kind = Created
	case "updated":
		ev.Kind = Updated
	case "written":
		ev.Kind = Created
		if ce.Data.OldValue != nil {
			ev.Kind = Updated
		}
	default:
		return Event{}, fmt.Errorf("unsupported cloudevent type %q", ce.Type)
	}

	if ce.Data.Value == nil {
		return Event{}, errors.New("cloudevent has no document value")
	}
	after, err := flattenDocument(ce.Data.Value)
	if err != nil {
		return Event{}, fmt.Errorf("flatten value: %w", err)
	}
	ev.After = after

	if ev.Kind == Updated && ce.Data.OldValue != nil {
		before, err := flattenDocument(ce.Data.OldValue)
		if err != nil {
			return Event{}, fmt.Errorf("flatten oldValue: %w", err)
		}
		ev.Before = before
	}
	return ev, nil
}

func flattenDocument(doc *firestoreDocument) (json.RawMessage, error) {
	fields, err := flattenFields(doc.Fields)
	if err != nil {
		return nil, err
	}
	return json.Marshal(fields)
}

func flattenFields(fields map[string]firestoreValue) (map[string]any, error) {
	out := make(map[string]any, len(fields))
	for name, v := range fields {
		plain, err := v.plain()
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", name, err)
		}
		out[name] = plain
	}
	return out, nil
}

func (v firestoreValue) plain() (any, error) {
	switch {
	case v.StringValue != nil:
		return *v.StringValue, nil
	case len(v.IntegerValue) > 0:
		// int64 values are encoded as JSON strings in proto3 JSON.
		n, err := strconv.ParseInt(strings.Trim(string(v.IntegerValue), `"`), 10, 64)
		if err != nil {
			return nil, err
		}
		return n, nil
	case v.DoubleValue != nil:
		return *v.DoubleValue, nil
	case v.BooleanValue != nil:
		return *v.BooleanValue, nil
	case v.NullValue != nil:
		return nil, nil
	case v.TimestampValue != nil:
		return *v.TimestampValue, nil
	case v.ReferenceValue != nil:
		return *v.ReferenceValue, nil
	case v.BytesValue != nil:
		return *v.BytesValue, nil
	case v.GeoPointValue != nil:
		return map[string]any{"latitude": v.GeoPointValue.Latitude, "longitude": v.GeoPointValue.Longitude}, nil
	case v.MapValue != nil:
		return flattenFields(v.MapValue.Fields)
	case v.ArrayValue != nil:
		items := make([]any, 0, len(v.ArrayValue.Values))
		for _, item := range v.ArrayValue.Values {
			p, err := item.plain()
			if err != nil {
				return nil, err
			}
			items = append(items, p)
		}
		return items, nil
	default:
		return nil, nil
	}
}
