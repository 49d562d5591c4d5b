package main

import (
	"context"
	"log/slog"
	"time"

	"github.com/bjaus/pushdispatch"
	"github.com/bjaus/pushdispatch/internal/logx"
)

// routerHooks returns the options every service router carries: log-field
// stamping, result logging, and hooks that log envelope problems and skip
// the event so the host never redelivers it.
func routerHooks() []pushdispatch.Option {
	return []pushdispatch.Option{
		pushdispatch.WithOnParse(func(ctx context.Context, source string, ev pushdispatch.Event) context.Context {
			attrs := []slog.Attr{
				slog.String("source", source),
				slog.String("event_kind", string(ev.Kind)),
				slog.String("document", ev.Path()),
			}
			if ev.ID != "" {
				attrs = append(attrs, slog.String("event_id", ev.ID))
			}
			return logx.WithCtx(ctx, attrs...)
		}),
		pushdispatch.WithOnDispatch(func(ctx context.Context, route string, _ pushdispatch.Event) {
			logx.From(ctx).Debug("dispatching", "route", route)
		}),
		pushdispatch.WithOnResult(func(ctx context.Context, route string, res pushdispatch.Result, d time.Duration) {
			log := logx.From(ctx).With(
				"route", route,
				"outcome", res.Outcome.String(),
				"duration", d,
			)
			switch res.Outcome {
			case pushdispatch.OutcomeFailed:
				log.Warn("event failed", "reason", res.Reason)
			case pushdispatch.OutcomeSkipped:
				log.Info("event skipped", "reason", res.Reason)
			default:
				log.Info("event delivered",
					"delivery_id", res.DeliveryID,
					"success_count", res.SuccessCount,
					"failure_count", res.FailureCount,
				)
			}
		}),
		pushdispatch.WithOnNoSource(func(ctx context.Context, raw []byte) error {
			logx.From(ctx).Warn("unrecognised message, skipping", "bytes", len(raw))
			return nil
		}),
		pushdispatch.WithOnParseError(func(ctx context.Context, source string, err error) error {
			logx.From(ctx).Warn("unparseable message, skipping", "source", source, "error", err)
			return nil
		}),
		pushdispatch.WithOnNoRoute(func(ctx context.Context, ev pushdispatch.Event) error {
			logx.From(ctx).Debug("no route for event, skipping")
			return nil
		}),
		pushdispatch.WithOnDecodeError(func(ctx context.Context, route string, err error) error {
			logx.From(ctx).Error("document does not decode, skipping", "route", route, "error", err)
			return nil
		}),
	}
}
