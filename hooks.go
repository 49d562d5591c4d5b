package pushdispatch

import (
	"context"
	"time"
)

// OnParseFunc is called after a source successfully parses a message.
// Use this to enrich the context with logging fields or trace spans.
// The returned context is used for the rest of the request.
type OnParseFunc func(ctx context.Context, source string, ev Event) context.Context

// FilterFunc decides whether a routed event may reach its handler. A
// rejected event completes as a skipped result carrying the reason.
type FilterFunc func(ctx context.Context, ev Event) (admit bool, reason string)

// OnDispatchFunc is called just before the handler executes.
type OnDispatchFunc func(ctx context.Context, route string, ev Event)

// OnResultFunc is called after every handler run, whatever the outcome.
type OnResultFunc func(ctx context.Context, route string, res Result, duration time.Duration)

// OnNoSourceFunc is called when no source can parse the message.
// Return nil to skip the message, return an error to fail.
type OnNoSourceFunc func(ctx context.Context, raw []byte) error

// OnParseErrorFunc is called when a matched source fails to parse.
// Return nil to skip, return an error to fail.
type OnParseErrorFunc func(ctx context.Context, source string, err error) error

// OnNoRouteFunc is called when no handler is bound to the event.
// Return nil to skip, return an error to fail.
type OnNoRouteFunc func(ctx context.Context, ev Event) error

// OnDecodeErrorFunc is called when a document cannot be decoded into the
// handler's record type. Return nil to skip, return an error to fail.
type OnDecodeErrorFunc func(ctx context.Context, route string, err error) error

// hooks holds all configured hook functions.
type hooks struct {
	onParse       []OnParseFunc
	filters       []FilterFunc
	onDispatch    []OnDispatchFunc
	onResult      []OnResultFunc
	onNoSource    []OnNoSourceFunc
	onParseError  []OnParseErrorFunc
	onNoRoute     []OnNoRouteFunc
	onDecodeError []OnDecodeErrorFunc
}

// Option configures a Router.
type Option func(*Router)

// WithOnParse adds a hook called after a source successfully parses a message.
// Multiple hooks are called in order, with context chaining through each.
//
// Example:
//
//	pushdispatch.WithOnParse(func(ctx context.Context, source string, ev pushdispatch.Event) context.Context {
//	    return logx.WithCtx(ctx, slog.String("source", source))
//	})
func WithOnParse(fn OnParseFunc) Option {
	return func(r *Router) {
		r.hooks.onParse = append(r.hooks.onParse, fn)
	}
}

// WithFilter adds a gate evaluated after routing and before the handler.
// Filters run in order; the first rejection wins.
func WithFilter(fn FilterFunc) Option {
	return func(r *Router) {
		r.hooks.filters = append(r.hooks.filters, fn)
	}
}

// WithOnDispatch adds a hook called just before the handler executes.
func WithOnDispatch(fn OnDispatchFunc) Option {
	return func(r *Router) {
		r.hooks.onDispatch = append(r.hooks.onDispatch, fn)
	}
}

// WithOnResult adds a hook called after every handler run.
//
// Example:
//
//	pushdispatch.WithOnResult(func(ctx context.Context, route string, res pushdispatch.Result, d time.Duration) {
//	    eventsTotal.WithLabelValues(route, res.Outcome.String()).Inc()
//	})
func WithOnResult(fn OnResultFunc) Option {
	return func(r *Router) {
		r.hooks.onResult = append(r.hooks.onResult, fn)
	}
}

// WithOnNoSource adds a hook called when no source can parse the message.
// Multiple hooks are called in order; first error wins.
func WithOnNoSource(fn OnNoSourceFunc) Option {
	return func(r *Router) {
		r.hooks.onNoSource = append(r.hooks.onNoSource, fn)
	}
}

// WithOnParseError adds a hook called when a source's Parse returns an error.
// Multiple hooks are called in order; first error wins.
func WithOnParseError(fn OnParseErrorFunc) Option {
	return func(r *Router) {
		r.hooks.onParseError = append(r.hooks.onParseError, fn)
	}
}

// WithOnNoRoute adds a hook called when no handler is bound to the event.
// Multiple hooks are called in order; first error wins.
//
// Example:
//
//	pushdispatch.WithOnNoRoute(func(ctx context.Context, ev pushdispatch.Event) error {
//	    logx.From(ctx).Info("ignoring event", "document", ev.Path())
//	    return nil
//	})
func WithOnNoRoute(fn OnNoRouteFunc) Option {
	return func(r *Router) {
		r.hooks.onNoRoute = append(r.hooks.onNoRoute, fn)
	}
}

// WithOnDecodeError adds a hook called when a document does not decode.
// Multiple hooks are called in order; first error wins.
func WithOnDecodeError(fn OnDecodeErrorFunc) Option {
	return func(r *Router) {
		r.hooks.onDecodeError = append(r.hooks.onDecodeError, fn)
	}
}
