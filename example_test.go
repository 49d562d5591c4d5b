package pushdispatch_test

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/bjaus/pushdispatch"
)

// Visitor is the record stored under visitors/{visitorId}.
type Visitor struct {
	Name   string `json:"name"`
	Status string `json:"status"`
}

// ArrivalHandler handles newly created visitors.
type ArrivalHandler struct{}

func (h *ArrivalHandler) Handle(ctx context.Context, c pushdispatch.Change[Visitor]) pushdispatch.Result {
	if c.After.Status != "pending" {
		return pushdispatch.Skipped("not pending")
	}
	fmt.Printf("Visitor %s arrived: %s\n", c.Param("visitorId"), c.After.Name)
	return pushdispatch.Delivered("msg-1")
}

func Example() {
	r := pushdispatch.New(
		pushdispatch.WithOnResult(func(ctx context.Context, route string, res pushdispatch.Result, d time.Duration) {
			log.Printf("%s: %s (%v)", route, res.Outcome, d)
		}),
		pushdispatch.WithOnNoRoute(func(ctx context.Context, ev pushdispatch.Event) error {
			return nil // ignore documents nobody listens to
		}),
	)

	pushdispatch.Register(r, pushdispatch.Created, "visitors/{visitorId}", &ArrivalHandler{})

	msg := []byte(`{
		"eventKind": "created",
		"collection": "visitors",
		"documentId": "v42",
		"after": {"name": "Ravi", "status": "pending"}
	}`)

	res, err := r.Process(context.Background(), msg)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	fmt.Println(res.Outcome)
	// Output:
	// Visitor v42 arrived: Ravi
	// delivered
}

func ExampleRegisterFunc() {
	r := pushdispatch.New()

	pushdispatch.RegisterFunc(r, pushdispatch.Updated, "visitors/{visitorId}",
		func(ctx context.Context, c pushdispatch.Change[Visitor]) pushdispatch.Result {
			fmt.Printf("%s: %s -> %s\n", c.DocumentID, c.Before.Status, c.After.Status)
			return pushdispatch.Delivered("")
		})

	msg := []byte(`{
		"eventKind": "updated",
		"collection": "visitors",
		"documentId": "v42",
		"before": {"name": "Ravi", "status": "pending"},
		"after": {"name": "Ravi", "status": "approved"}
	}`)

	_, _ = r.Process(context.Background(), msg)
	// Output: v42: pending -> approved
}

func ExampleRouter_Dispatch() {
	r := pushdispatch.New()
	pushdispatch.Register(r, pushdispatch.Created, "visitors/{visitorId}", &ArrivalHandler{})

	res, _ := r.Dispatch(context.Background(), pushdispatch.Event{
		Kind:       pushdispatch.Created,
		Collection: "visitors",
		DocumentID: "v7",
		After:      json.RawMessage(`{"name": "Asha", "status": "approved"}`),
	})
	fmt.Println(res.Outcome, res.Reason)
	// Output: skipped not pending
}

func ExampleWithFilter() {
	seen := map[string]bool{}
	r := pushdispatch.New(
		pushdispatch.WithFilter(func(ctx context.Context, ev pushdispatch.Event) (bool, string) {
			if seen[ev.ID] {
				return false, "duplicate event"
			}
			seen[ev.ID] = true
			return true, ""
		}),
	)
	pushdispatch.Register(r, pushdispatch.Created, "visitors/{visitorId}", &ArrivalHandler{})

	msg := []byte(`{"eventId": "e1", "eventKind": "created", "collection": "visitors",
		"documentId": "v1", "after": {"name": "Ravi", "status": "pending"}}`)

	for range 2 {
		res, _ := r.Process(context.Background(), msg)
		fmt.Println(res.Outcome, res.Reason)
	}
	// Output:
	// Visitor v1 arrived: Ravi
	// delivered
	// skipped duplicate event
}

func ExampleSourceFunc() {
	// A legacy producer publishes "op|collection/id|{json}" lines.
	legacy := pushdispatch.SourceFunc(
		"legacy",
		pushdispatch.HasFields("line"),
		func(raw []byte) (pushdispatch.Event, error) {
			var env struct {
				Line string `json:"line"`
			}
			if err := json.Unmarshal(raw, &env); err != nil {
				return pushdispatch.Event{}, err
			}
			parts := strings.SplitN(env.Line, "|", 3)
			if len(parts) != 3 {
				return pushdispatch.Event{}, fmt.Errorf("malformed line %q", env.Line)
			}
			collection, id, _ := strings.Cut(parts[1], "/")
			return pushdispatch.Event{
				Kind:       pushdispatch.EventKind(parts[0]),
				Collection: collection,
				DocumentID: id,
				After:      json.RawMessage(parts[2]),
			}, nil
		},
	)

	r := pushdispatch.New(pushdispatch.WithSources(legacy))
	pushdispatch.Register(r, pushdispatch.Created, "visitors/{visitorId}", &ArrivalHandler{})

	_, err := r.Process(context.Background(),
		[]byte(`{"line": "created|visitors/v9|{\"name\":\"Meera\",\"status\":\"pending\"}"}`))
	if err != nil {
		fmt.Println(err)
	}
	// Output: Visitor v9 arrived: Meera
}
