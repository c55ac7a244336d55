package audit

import (
	"context"

	domorder "github.com/stitchmall/ordercore/internal/domain/order"
	domoutbox "github.com/stitchmall/ordercore/internal/domain/outbox"
	"github.com/stitchmall/ordercore/internal/observability"
	"github.com/stitchmall/ordercore/internal/observability/logctx"
	workerpresentation "github.com/stitchmall/ordercore/internal/presentation/worker"
	"go.opentelemetry.io/otel/trace"
)

const componentAudit = "audit_worker"

// Worker consumes order lifecycle events from the in-process bus, writes the
// audit log line for each, counts them, and optionally forwards them to an
// external publisher (Kafka) for out-of-process consumers.
type Worker struct {
	subscriber domoutbox.Subscriber
	forward    domoutbox.Publisher
	tel        observability.Observability
	log        observability.Logger
	events     observability.Counter
}

func New(subscriber domoutbox.Subscriber, forward domoutbox.Publisher, tel observability.Observability) *Worker {
	if tel == nil {
		tel = observability.Nop()
	}
	return &Worker{
		subscriber: subscriber,
		forward:    forward,
		tel:        tel,
		log:        tel.Logger().With(observability.F("component", componentAudit)),
		events:     tel.Metrics().Counter(observability.MOrderEvents),
	}
}

func (w *Worker) Start() {
	if w.subscriber == nil {
		return
	}
	for _, name := range []string{
		domorder.OrderCreatedEvent{}.EventName(),
		domorder.OrderCancelledEvent{}.EventName(),
		domorder.OrderShippedEvent{}.EventName(),
		domorder.OrderDeliveredEvent{}.EventName(),
	} {
		w.subscriber.Subscribe(name, w.handle)
	}
}

func (w *Worker) handle(ctx context.Context, e domoutbox.Event) error {
	name := e.EventName()
	sc := trace.SpanContextFromContext(ctx)
	ctx = workerpresentation.WithEventContext(ctx, w.log, w.tel, sc.TraceID(), sc.SpanID(), map[string]string{
		"event": name,
	})

	logger := logctx.FromOr(ctx, w.log)
	logger.Info("order_event", observability.F("payload", e))
	w.events.Add(1, observability.L("event", name))

	if w.forward != nil {
		if err := w.forward.Publish(ctx, e); err != nil {
			logger.Warn("event_forward_failed",
				observability.F("event", name),
				observability.F("error", err.Error()),
			)
			return err
		}
	}
	return nil
}
