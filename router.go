package pushdispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"
)

var (
	// ErrNoSource is returned by Process when no source recognises the message.
	ErrNoSource = errors.New("no source matched message")

	// ErrNoRoute is returned when no handler is registered for the event.
	ErrNoRoute = errors.New("no route for event")
)

// invoker wraps a typed handler so routes of different record types can be
// stored in one table.
type invoker func(ctx context.Context, ev Event, params map[string]string) (Result, error)

type route struct {
	kind    EventKind
	pattern pattern
	invoke  invoker
}

// key is the identifier used in hooks, logs, and metrics.
func (rt route) key() string {
	return string(rt.kind) + " " + rt.pattern.String()
}

// Router dispatches lifecycle events to handlers bound to
// (event kind, document path pattern) pairs.
//
// Usage:
//  1. Create a router with New
//  2. Add sources with AddSource
//  3. Bind handlers with Register
//  4. Feed raw messages to Process, or decoded events to Dispatch
//
// Router is safe for concurrent use after configuration. Do not call
// AddSource or Register after calling Process.
type Router struct {
	inspector Inspector
	sources   []Source
	routes    []route
	hooks     hooks

	// Adaptive ordering: try last successful source first
	lastMatch atomic.Value // stores string
}

// New creates a Router with the given options.
//
// By default, the router uses JSONInspector for source matching and the
// EnvelopeSource and CloudEventSource formats. Use WithInspector and
// WithSources to override.
//
// Example:
//
//	r := pushdispatch.New(
//	    pushdispatch.WithOnParse(func(ctx context.Context, source string, ev pushdispatch.Event) context.Context {
//	        return logx.WithCtx(ctx, slog.String("document", ev.Path()))
//	    }),
//	    pushdispatch.WithOnResult(func(ctx context.Context, route string, res pushdispatch.Result, d time.Duration) {
//	        metrics.Timing("dispatch."+res.Outcome.String(), d)
//	    }),
//	)
func New(opts ...Option) *Router {
	r := &Router{
		inspector: JSONInspector(),
		sources:   []Source{EnvelopeSource(), CloudEventSource()},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// WithInspector sets the inspector used for source discrimination.
func WithInspector(i Inspector) Option {
	return func(r *Router) {
		r.inspector = i
	}
}

// WithSources replaces the default sources.
func WithSources(sources ...Source) Option {
	return func(r *Router) {
		r.sources = append([]Source(nil), sources...)
	}
}

// AddSource registers an additional source. Sources are matched using their
// Discriminator in registration order.
func (r *Router) AddSource(s Source) {
	r.sources = append(r.sources, s)
}

// Register binds h to events of the given kind whose document path matches
// pattern. Pattern segments of the form {name} capture the corresponding
// path segment into Change.Params.
//
// The first registered matching route handles an event. Register panics on
// a malformed pattern or when the same kind and pattern are bound twice.
//
// This is a package-level function (not a method) due to Go generics
// limitations: methods cannot have type parameters independent of the
// receiver.
//
// Example:
//
//	pushdispatch.Register(r, pushdispatch.Created, "visitors/{visitorId}", arrival)
//	pushdispatch.Register(r, pushdispatch.Updated, "visitors/{visitorId}", decision)
func Register[T any](r *Router, kind EventKind, pat string, h Handler[T]) {
	p, err := parsePattern(pat)
	if err != nil {
		panic(fmt.Sprintf("pushdispatch: %v", err))
	}
	for _, existing := range r.routes {
		if existing.kind == kind && existing.pattern.raw == p.raw {
			panic(fmt.Sprintf("pushdispatch: route %s %s registered twice", kind, p.raw))
		}
	}

	invoke := func(ctx context.Context, ev Event, params map[string]string) (Result, error) {
		change := Change[T]{
			EventID:    ev.ID,
			Kind:       ev.Kind,
			DocumentID: ev.DocumentID,
			Params:     params,
		}
		if err := decodeDocument(ev.After, &change.After); err != nil {
			return Result{}, &decodeError{err: fmt.Errorf("decode after: %w", err)}
		}
		if len(ev.Before) > 0 && string(ev.Before) != "null" {
			var before T
			if err := decodeDocument(ev.Before, &before); err != nil {
				return Result{}, &decodeError{err: fmt.Errorf("decode before: %w", err)}
			}
			change.Before = &before
		}
		return h.Handle(ctx, change), nil
	}

	r.routes = append(r.routes, route{kind: kind, pattern: p, invoke: invoke})
}

// RegisterFunc is a convenience function for registering a handler function.
func RegisterFunc[T any](r *Router, kind EventKind, pat string, fn func(ctx context.Context, change Change[T]) Result) {
	Register(r, kind, pat, HandlerFunc[T](fn))
}

// Routes returns the registered route keys in registration order.
func (r *Router) Routes() []string {
	keys := make([]string, 0, len(r.routes))
	for _, rt := range r.routes {
		keys = append(keys, rt.key())
	}
	return keys
}

// Process parses the raw message and dispatches the resulting event.
//
// The processing flow:
//  1. Use discriminators to find a matching source
//  2. Parse the message with the matched source
//  3. Hand the event to Dispatch
//
// A non-nil error is only returned for envelope problems (no source, parse
// failure, no route, undecodable document) that no hook chose to skip.
// Handler outcomes, including failures, are reported in the Result.
func (r *Router) Process(ctx context.Context, raw []byte) (Result, error) {
	source := r.match(raw)
	if source == nil {
		return Skipped("no source matched"), r.handleNoSource(ctx, raw)
	}

	ev, err := source.Parse(raw)
	if err != nil {
		return Skipped("unparseable message"), r.handleParseError(ctx, source.Name(), err)
	}

	for _, fn := range r.hooks.onParse {
		ctx = fn(ctx, source.Name(), ev)
	}

	return r.Dispatch(ctx, ev)
}

// Dispatch routes an already decoded event. Hosts that receive events in a
// native form can call it directly and skip source matching.
func (r *Router) Dispatch(ctx context.Context, ev Event) (Result, error) {
	rt, params, found := r.lookup(ev)
	if !found {
		return Skipped("no route"), r.handleNoRoute(ctx, ev)
	}
	key := rt.key()

	for _, fn := range r.hooks.filters {
		if admit, reason := fn(ctx, ev); !admit {
			res := Skipped(reason)
			r.callOnResult(ctx, key, res, 0)
			return res, nil
		}
	}

	for _, fn := range r.hooks.onDispatch {
		fn(ctx, key, ev)
	}

	start := time.Now()
	res, err := r.invoke(ctx, rt, ev, params)
	duration := time.Since(start)

	var derr *decodeError
	if errors.As(err, &derr) {
		res = Failed(derr.err)
		r.callOnResult(ctx, key, res, duration)
		return res, r.handleDecodeError(ctx, key, derr.err)
	}

	r.callOnResult(ctx, key, res, duration)
	return res, nil
}

// invoke runs the route handler, converting a panic into a failed result so
// it never reaches the host.
func (r *Router) invoke(ctx context.Context, rt route, ev Event, params map[string]string) (res Result, err error) {
	defer func() {
		if v := recover(); v != nil {
			res, err = Failed(fmt.Errorf("handler panic: %v", v)), nil
		}
	}()
	return rt.invoke(ctx, ev, params)
}

func (r *Router) lookup(ev Event) (route, map[string]string, bool) {
	path := ev.Path()
	for _, rt := range r.routes {
		if rt.kind != ev.Kind {
			continue
		}
		if params, ok := rt.pattern.match(path); ok {
			return rt, params, true
		}
	}
	return route{}, nil, false
}

// match finds a source whose discriminator matches the raw message.
// Uses adaptive ordering to try the last successful source first.
func (r *Router) match(raw []byte) Source {
	view, err := r.inspector.Inspect(raw)
	if err != nil {
		return nil
	}

	// Try last successful source first (fast path)
	if v := r.lastMatch.Load(); v != nil {
		if last, ok := v.(string); ok && last != "" {
			for _, src := range r.sources {
				if src.Name() == last && src.Discriminator().Match(view) {
					return src
				}
			}
		}
	}

	for _, src := range r.sources {
		if src.Discriminator().Match(view) {
			r.lastMatch.Store(src.Name())
			return src
		}
	}
	return nil
}

func (r *Router) callOnResult(ctx context.Context, key string, res Result, d time.Duration) {
	for _, fn := range r.hooks.onResult {
		fn(ctx, key, res, d)
	}
}

// handleNoSource handles the case when no source matches.
func (r *Router) handleNoSource(ctx context.Context, raw []byte) error {
	for _, fn := range r.hooks.onNoSource {
		if err := fn(ctx, raw); err != nil {
			return err
		}
	}
	if len(r.hooks.onNoSource) > 0 {
		return nil
	}
	return ErrNoSource
}

// handleParseError handles the case when a source's Parse method returns an error.
func (r *Router) handleParseError(ctx context.Context, source string, parseErr error) error {
	for _, fn := range r.hooks.onParseError {
		if err := fn(ctx, source, parseErr); err != nil {
			return err
		}
	}
	if len(r.hooks.onParseError) > 0 {
		return nil
	}
	return fmt.Errorf("parse failed for source %s: %w", source, parseErr)
}

// handleNoRoute handles the case when no handler is bound to the event.
func (r *Router) handleNoRoute(ctx context.Context, ev Event) error {
	for _, fn := range r.hooks.onNoRoute {
		if err := fn(ctx, ev); err != nil {
			return err
		}
	}
	if len(r.hooks.onNoRoute) > 0 {
		return nil
	}
	return fmt.Errorf("%w: %s %s", ErrNoRoute, ev.Kind, ev.Path())
}

// handleDecodeError handles documents that do not fit the handler's type.
func (r *Router) handleDecodeError(ctx context.Context, key string, decodeErr error) error {
	for _, fn := range r.hooks.onDecodeError {
		if err := fn(ctx, key, decodeErr); err != nil {
			return err
		}
	}
	if len(r.hooks.onDecodeError) > 0 {
		return nil
	}
	return fmt.Errorf("decode document for %s: %w", key, decodeErr)
}

func decodeDocument(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return errors.New("missing document")
	}
	return json.Unmarshal(raw, v)
}

// decodeError wraps document decoding errors so we can identify them.
type decodeError struct {
	err error
}

func (e *decodeError) Error() string { return e.err.Error() }
func (e *decodeError) Unwrap() error { return e.err }
