// Package pushdispatch routes document-store lifecycle events to typed
// handlers that deliver push notifications.
//
// A document store emits an event whenever a record is created or updated.
// The router recognises the event envelope, matches the document path
// against registered patterns, decodes the document snapshots into the
// handler's record type, and runs the handler. Handlers report a Result
// instead of returning errors, so a host never sees a failure it might
// retry into duplicate notifications.
//
// # Quick Start
//
//	type Visitor struct {
//	    Name   string `json:"name"`
//	    Status string `json:"status"`
//	}
//
//	r := pushdispatch.New()
//
//	pushdispatch.RegisterFunc(r, pushdispatch.Created, "visitors/{visitorId}",
//	    func(ctx context.Context, c pushdispatch.Change[Visitor]) pushdispatch.Result {
//	        if c.After.Status != "pending" {
//	            return pushdispatch.Skipped("not pending")
//	        }
//	        // notify residents
//	        return pushdispatch.Delivered("")
//	    })
//
//	res, err := r.Process(ctx, rawMessageBytes)
//
// # Sources
//
// A Source turns raw bytes into an Event. Two are installed by default:
//
//   - EnvelopeSource: the native {"eventKind", "collection", "documentId",
//     "before", "after"} envelope
//   - CloudEventSource: Firestore document CloudEvents in structured JSON
//     mode, with typed field values flattened to plain JSON
//
// Sources are matched with a cheap Discriminator before Parse is called,
// and the last successful source is tried first on the next message.
//
// # Routes
//
// Routes bind an EventKind and a document path pattern to a handler.
// Pattern segments of the form {name} capture the matching path segment:
//
//	pushdispatch.Register(r, pushdispatch.Updated, "visitors/{visitorId}", decision)
//
// The handler receives a Change[T] with Before (Updated events only),
// After, and the captured Params.
//
// # Results
//
// Each handler run ends with one of three outcomes:
//
//   - OutcomeDelivered: the transport accepted the message
//   - OutcomeSkipped: nothing to do (ineligible event, missing data)
//   - OutcomeFailed: an error was logged and swallowed
//
// A panicking handler is recovered and reported as OutcomeFailed.
//
// # Hooks
//
// Hooks provide observability without coupling to specific logging or
// metrics systems:
//
//   - WithOnParse: called after parsing, enriches context
//   - WithFilter: may reject a routed event before its handler runs
//   - WithOnDispatch: called just before the handler executes
//   - WithOnResult: called after every handler run
//   - WithOnNoSource, WithOnParseError, WithOnNoRoute, WithOnDecodeError:
//     called on envelope problems; return nil to skip, an error to fail
//
// By default envelope problems are returned from Process as errors.
//
// # Thread Safety
//
// Router is safe for concurrent use after configuration is complete. Do not
// call AddSource or Register after calling Process.
package pushdispatch
