package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/nats-io/nats.go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/bjaus/pushdispatch/internal/logx"
)

// Subscriber processes events published on a NATS subject. Replicas that
// share a queue group split the subject between them.
type Subscriber struct {
	proc       Processor
	ctx        context.Context
	tracer     trace.Tracer
	propagator propagation.TextMapPropagator
	sub        *nats.Subscription

	// respond sends a reply to a request message.
	respond func(msg *nats.Msg, data []byte) error
}

func newSubscriber(ctx context.Context, p Processor) *Subscriber {
	return &Subscriber{
		proc:       p,
		ctx:        ctx,
		tracer:     otel.Tracer("github.com/bjaus/pushdispatch/internal/ingest"),
		propagator: otel.GetTextMapPropagator(),
		respond:    func(msg *nats.Msg, data []byte) error { return msg.Respond(data) },
	}
}

// Subscribe starts a queue subscription on subject. Messages are handled
// with ctx as their parent context. When a message carries a reply
// subject the Response is sent back.
func Subscribe(ctx context.Context, nc *nats.Conn, subject, queue string, p Processor) (*Subscriber, error) {
	s := newSubscriber(ctx, p)
	sub, err := nc.QueueSubscribe(subject, queue, s.handle)
	if err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", subject, err)
	}
	s.sub = sub
	return s, nil
}

// Drain stops receiving and waits for in-flight messages.
func (s *Subscriber) Drain() error {
	if s.sub == nil {
		return nil
	}
	return s.sub.Drain()
}

func (s *Subscriber) handle(msg *nats.Msg) {
	ctx := s.ctx
	if msg.Header != nil {
		ctx = s.propagator.Extract(ctx, propagation.HeaderCarrier(http.Header(msg.Header)))
	}
	ctx, span := s.tracer.Start(ctx, "pushdispatch.process",
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(attribute.String("messaging.destination.name", msg.Subject)),
	)
	defer span.End()

	ctx = logx.WithCtx(ctx,
		slog.String("ingest", "nats"),
		slog.String("subject", msg.Subject),
	)

	res, err := s.proc.Process(ctx, msg.Data)
	span.SetAttributes(attribute.String("pushdispatch.outcome", res.Outcome.String()))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logx.From(ctx).Warn("event rejected", "error", err)
	}

	if msg.Reply == "" {
		return
	}
	body, mErr := json.Marshal(newResponse(res, err))
	if mErr != nil {
		logx.From(ctx).Error("encode reply", "error", mErr)
		return
	}
	if rErr := s.respond(msg, body); rErr != nil {
		logx.From(ctx).Warn("reply failed", "reply", msg.Reply, "error", rErr)
	}
}
