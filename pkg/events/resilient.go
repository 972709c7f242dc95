package events

import (
	"context"

	"github.com/linkflow-go/templates/pkg/metrics"
	"github.com/linkflow-go/templates/pkg/resilience"
)

// ResilientEventBus guards an EventBus with a circuit breaker so a broker
// outage fails fast instead of stalling every request.
type ResilientEventBus struct {
	next    EventBus
	breaker *resilience.CircuitBreaker
}

func NewResilientEventBus(next EventBus, breaker *resilience.CircuitBreaker) *ResilientEventBus {
	return &ResilientEventBus{next: next, breaker: breaker}
}

func (r *ResilientEventBus) Publish(ctx context.Context, event Event) error {
	err := r.breaker.Do(ctx, func(ctx context.Context) error {
		return r.next.Publish(ctx, event)
	})
	if err != nil {
		metrics.RecordEventPublished(event.Type, "failed")
		return err
	}
	metrics.RecordEventPublished(event.Type, "ok")
	return nil
}

// Unwrap returns the guarded bus.
func (r *ResilientEventBus) Unwrap() EventBus {
	return r.next
}

func (r *ResilientEventBus) Close() error {
	return r.next.Close()
}
