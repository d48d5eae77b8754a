package engine

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/airtrail/airtrail/internal/engine"

type instruments struct {
	framesPublished  metric.Int64Counter
	legsAbandoned    metric.Int64Counter
	snapshotsApplied metric.Int64Counter
	sinkErrors       metric.Int64Counter
	tracked          metric.Int64ObservableGauge
}

func opAttr(op string) attribute.KeyValue {
	return attribute.String("op", op)
}

// newInstruments uses the global meter (no-op if not configured).
func newInstruments(e *Engine) (*instruments, error) {
	m := otel.Meter(instrumentationName)
	in := &instruments{}

	var err error
	if in.framesPublished, err = m.Int64Counter("engine.frames.published",
		metric.WithDescription("Frames sent to the render sink")); err != nil {
		return nil, fmt.Errorf("creating frames counter: %w", err)
	}
	if in.legsAbandoned, err = m.Int64Counter("engine.legs.abandoned",
		metric.WithDescription("Legs superseded by a newer snapshot before finishing")); err != nil {
		return nil, fmt.Errorf("creating legs counter: %w", err)
	}
	if in.snapshotsApplied, err = m.Int64Counter("engine.snapshots.applied",
		metric.WithDescription("Snapshots merged into the trails")); err != nil {
		return nil, fmt.Errorf("creating snapshots counter: %w", err)
	}
	if in.sinkErrors, err = m.Int64Counter("engine.sink.errors",
		metric.WithDescription("Failed render sink calls")); err != nil {
		return nil, fmt.Errorf("creating sink error counter: %w", err)
	}
	if in.tracked, err = m.Int64ObservableGauge("engine.entities.tracked",
		metric.WithDescription("Entities in the latest snapshot")); err != nil {
		return nil, fmt.Errorf("creating tracked gauge: %w", err)
	}

	_, err = m.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		o.ObserveInt64(in.tracked, e.tracked.Load())
		return nil
	}, in.tracked)
	if err != nil {
		return nil, fmt.Errorf("registering tracked callback: %w", err)
	}
	return in, nil
}
