package pushdispatch

import (
	"testing"
)

func inspect(t *testing.T, raw string) View {
	t.Helper()
	view, err := JSONInspector().Inspect([]byte(raw))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return view
}

func TestHasFields(t *testing.T) {
	view := inspect(t, `{
		"eventKind": "created",
		"collection": "visitors",
		"after": {"status": "pending"}
	}`)

	t.Run("matches when all fields present", func(t *testing.T) {
		if !HasFields("eventKind", "collection").Match(view) {
			t.Error("expected match")
		}
	})

	t.Run("matches nested fields", func(t *testing.T) {
		if !HasFields("after.status").Match(view) {
			t.Error("expected match")
		}
	})

	t.Run("fails when any field missing", func(t *testing.T) {
		if HasFields("eventKind", "documentId").Match(view) {
			t.Error("expected no match")
		}
	})

	t.Run("matches with no fields", func(t *testing.T) {
		if !HasFields().Match(view) {
			t.Error("expected match for empty field list")
		}
	})
}

func TestFieldIn(t *testing.T) {
	view := inspect(t, `{"eventKind": "updated", "count": 2}`)

	tests := map[string]struct {
		d    Discriminator
		want bool
	}{
		"single value":      {FieldEquals("eventKind", "updated"), true},
		"wrong value":       {FieldEquals("eventKind", "created"), false},
		"one of many":       {FieldIn("eventKind", "created", "updated"), true},
		"none of many":      {FieldIn("eventKind", "deleted", "archived"), false},
		"missing field":     {FieldIn("missing", "updated"), false},
		"non-string field":  {FieldIn("count", "2"), false},
		"empty values list": {FieldIn("eventKind"), false},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			if got := tc.d.Match(view); got != tc.want {
				t.Errorf("Match() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestFieldHasPrefix(t *testing.T) {
	view := inspect(t, `{"type": "google.cloud.firestore.document.v1.created", "n": 1}`)

	if !FieldHasPrefix("type", "google.cloud.firestore.").Match(view) {
		t.Error("expected match")
	}
	if FieldHasPrefix("type", "aws.").Match(view) {
		t.Error("expected no match on other prefix")
	}
	if FieldHasPrefix("n", "1").Match(view) {
		t.Error("expected no match on non-string field")
	}
	if FieldHasPrefix("missing", "").Match(view) {
		t.Error("expected no match on missing field")
	}
}

func TestAnd(t *testing.T) {
	view := inspect(t, `{"eventKind": "created", "collection": "visitors"}`)

	t.Run("matches when all match", func(t *testing.T) {
		d := And(HasFields("collection"), FieldEquals("eventKind", "created"))
		if !d.Match(view) {
			t.Error("expected match")
		}
	})

	t.Run("fails when any fails", func(t *testing.T) {
		d := And(HasFields("collection"), FieldEquals("eventKind", "updated"))
		if d.Match(view) {
			t.Error("expected no match")
		}
	})

	t.Run("empty matches", func(t *testing.T) {
		if !And().Match(view) {
			t.Error("expected match for empty And")
		}
	})
}

func TestOr(t *testing.T) {
	view := inspect(t, `{"specversion": "1.0"}`)

	t.Run("matches when any matches", func(t *testing.T) {
		d := Or(HasFields("eventKind"), HasFields("specversion"))
		if !d.Match(view) {
			t.Error("expected match")
		}
	})

	t.Run("fails when none match", func(t *testing.T) {
		d := Or(HasFields("eventKind"), HasFields("detail-type"))
		if d.Match(view) {
			t.Error("expected no match")
		}
	})

	t.Run("empty never matches", func(t *testing.T) {
		if Or().Match(view) {
			t.Error("expected no match for empty Or")
		}
	})
}

func TestDefaultSourceDiscriminators(t *testing.T) {
	tests := map[string]struct {
		raw        string
		envelope   bool
		cloudEvent bool
	}{
		"envelope": {
			raw:      `{"eventKind":"created","collection":"visitors","documentId":"v1","after":{}}`,
			envelope: true,
		},
		"envelope with unknown kind": {
			raw: `{"eventKind":"deleted","collection":"visitors","documentId":"v1","after":{}}`,
		},
		"firestore cloudevent": {
			raw:        `{"specversion":"1.0","type":"google.cloud.firestore.document.v1.created","data":{}}`,
			cloudEvent: true,
		},
		"other cloudevent": {
			raw: `{"specversion":"1.0","type":"google.cloud.storage.object.v1.finalized","data":{}}`,
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			view := inspect(t, tc.raw)
			if got := EnvelopeSource().Discriminator().Match(view); got != tc.envelope {
				t.Errorf("envelope match = %v, want %v", got, tc.envelope)
			}
			if got := CloudEventSource().Discriminator().Match(view); got != tc.cloudEvent {
				t.Errorf("cloudevent match = %v, want %v", got, tc.cloudEvent)
			}
		})
	}
}
