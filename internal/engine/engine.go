// Package engine runs the animation loop. One goroutine owns the current
// leg, the trails, the highlight state and the last published frame; the
// poller and the renderer reach it only through channels.
package engine

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/airtrail/airtrail/internal/feature"
	"github.com/airtrail/airtrail/internal/interaction"
	"github.com/airtrail/airtrail/internal/interp"
	"github.com/airtrail/airtrail/pkg/core"
	"go.opentelemetry.io/otel/metric"
)

// DefaultFrameInterval spreads a 50 step leg over the 1s poll interval.
const DefaultFrameInterval = 20 * time.Millisecond

const pointerBufferSize = 64

// Trails accumulates per-entity polylines across snapshots.
type Trails interface {
	Merge(positions iter.Seq2[core.EntityID, core.Position])
	Trails() map[core.EntityID]core.Polyline
}

// Publisher is the part of the render sink the engine drives.
type Publisher interface {
	RegisterStyle(style feature.Style) error
	ReplacePoints(frame core.RenderFrame) error
	ReplaceTrails(trails map[core.EntityID]core.Polyline) error
}

// Config holds loop settings.
type Config struct {
	Steps         int
	FrameInterval time.Duration
}

// Dependencies holds the collaborators of the engine. Interpolator, Trails
// and Layer are created from Config when nil.
type Dependencies struct {
	Interpolator *interp.Interpolator
	Trails       Trails
	Layer        *interaction.Layer
	Sink         Publisher
	Style        feature.Style
	Logger       *slog.Logger
	OnSelect     func(core.Selection)
	OnDismiss    func()
}

// Stats is a point-in-time view of engine activity.
type Stats struct {
	SnapshotsApplied uint64
	LegsAbandoned    uint64
	FramesPublished  uint64
	SinkErrors       uint64
	TrackedEntities  int
	TrailCount       int
	TrailPoints      int
	Highlighted      int
}

// Engine drives the render sink from snapshots and pointer events.
type Engine struct {
	cfg  Config
	deps Dependencies
	log  *slog.Logger

	// owned by the loop goroutine
	leg        *interp.Leg
	last       core.RenderFrame
	sinkFailed bool

	pointer chan core.PointerEvent

	snapshotsApplied atomic.Uint64
	legsAbandoned    atomic.Uint64
	framesPublished  atomic.Uint64
	sinkErrors       atomic.Uint64
	tracked          atomic.Int64
	trailCount       atomic.Int64
	trailPoints      atomic.Int64
	highlighted      atomic.Int64

	metrics *instruments
}

// New creates an engine.
func New(cfg Config, deps Dependencies) (*Engine, error) {
	if cfg.FrameInterval <= 0 {
		cfg.FrameInterval = DefaultFrameInterval
	}
	if deps.Sink == nil {
		return nil, errors.New("engine requires a render sink")
	}
	if deps.Interpolator == nil {
		steps := cfg.Steps
		if steps == 0 {
			steps = interp.DefaultSteps
		}
		ip, err := interp.New(steps)
		if err != nil {
			return nil, fmt.Errorf("creating interpolator: %w", err)
		}
		deps.Interpolator = ip
	}
	cfg.Steps = deps.Interpolator.Steps()
	if deps.Layer == nil {
		deps.Layer = interaction.New()
	}
	if deps.Trails == nil {
		return nil, errors.New("engine requires a trail accumulator")
	}
	if deps.Logger == nil {
		deps.Logger = slog.New(slog.DiscardHandler)
	}

	e := &Engine{
		cfg:     cfg,
		deps:    deps,
		log:     deps.Logger,
		pointer: make(chan core.PointerEvent, pointerBufferSize),
	}

	m, err := newInstruments(e)
	if err != nil {
		return nil, err
	}
	e.metrics = m
	return e, nil
}

// Pointer returns the channel pointer events are delivered on.
func (e *Engine) Pointer() chan<- core.PointerEvent {
	return e.pointer
}

// Run registers the style and then serves snapshots, pointer events and
// frame ticks until ctx is done. A closed snapshot channel leaves the last
// frame on screen; the loop keeps serving pointer events.
func (e *Engine) Run(ctx context.Context, snapshots <-chan core.Snapshot) error {
	if err := e.deps.Sink.RegisterStyle(e.deps.Style); err != nil {
		e.sinkError("register style", err)
	}

	ticker := time.NewTicker(e.cfg.FrameInterval)
	defer ticker.Stop()

	e.log.Info("Engine started", "steps", e.cfg.Steps, "frameInterval", e.cfg.FrameInterval)
	for {
		select {
		case <-ctx.Done():
			e.log.Info("Engine stopped", "framesPublished", e.framesPublished.Load())
			return nil
		case s, ok := <-snapshots:
			if !ok {
				e.log.Warn("Snapshot channel closed, holding last frame")
				snapshots = nil
				continue
			}
			e.HandleSnapshot(s)
		case ev := <-e.pointer:
			e.HandlePointer(ev)
		case <-ticker.C:
			e.Tick()
		}
	}
}

// HandleSnapshot abandons the current leg wherever it is, starts a new one
// from the last published frame and merges the snapshot into the trails.
// It must only be called from the goroutine running the loop.
func (e *Engine) HandleSnapshot(s core.Snapshot) {
	if e.leg != nil && !e.leg.Done() {
		e.log.Debug("Abandoning leg", "seq", e.last.Seq, "step", e.leg.Step(), "steps", e.leg.Steps())
		e.leg.Cancel()
		e.legsAbandoned.Add(1)
		e.metrics.legsAbandoned.Add(context.Background(), 1)
	}

	e.leg = e.deps.Interpolator.Advance(e.last, s)

	e.deps.Trails.Merge(s.Positions())
	trails := e.deps.Trails.Trails()
	if err := e.deps.Sink.ReplaceTrails(trails); err != nil {
		e.sinkError("replace trails", err)
	} else {
		e.sinkOK()
	}

	points := 0
	for _, t := range trails {
		points += len(t)
	}
	e.tracked.Store(int64(s.Len()))
	e.trailCount.Store(int64(len(trails)))
	e.trailPoints.Store(int64(points))
	e.snapshotsApplied.Add(1)
	e.metrics.snapshotsApplied.Add(context.Background(), 1)

	e.log.Debug("Snapshot applied", "seq", s.Seq, "entities", s.Len(), "trailPoints", points)
}

// Tick publishes the next frame of the current leg. It returns false when
// there is nothing to animate.
func (e *Engine) Tick() bool {
	if e.leg == nil {
		return false
	}
	frame, ok := e.leg.Next()
	if !ok {
		return false
	}
	e.last = frame
	e.publish()
	return true
}

// HandlePointer applies a pointer event. Highlight changes are published
// immediately by re-sending the last frame.
func (e *Engine) HandlePointer(ev core.PointerEvent) {
	layer := e.deps.Layer
	switch ev.Kind {
	case core.PointerEnter:
		if !layer.Enter(ev.ID) {
			e.log.Debug("Ignoring hover on unknown entity", "id", ev.ID)
			return
		}
		e.publish()
	case core.PointerLeave:
		layer.Leave()
		e.publish()
	case core.PointerClick:
		sel, ok := layer.Click(ev.ID)
		if !ok {
			e.log.Debug("Ignoring click on unknown entity", "id", ev.ID)
			return
		}
		if e.deps.OnSelect != nil {
			e.deps.OnSelect(sel)
		}
	case core.PointerDismiss:
		if e.deps.OnDismiss != nil {
			e.deps.OnDismiss()
		}
	default:
		e.log.Debug("Unknown pointer event", "kind", ev.Kind)
	}
	e.highlighted.Store(int64(layer.Len()))
}

func (e *Engine) publish() {
	out := e.deps.Layer.Overlay(e.last)
	if err := e.deps.Sink.ReplacePoints(out); err != nil {
		e.sinkError("replace points", err)
		return
	}
	e.sinkOK()
	e.framesPublished.Add(1)
	e.metrics.framesPublished.Add(context.Background(), 1)
}

// sinkError logs the first failure of a run of failures at warn level.
func (e *Engine) sinkError(op string, err error) {
	e.sinkErrors.Add(1)
	e.metrics.sinkErrors.Add(context.Background(), 1, metric.WithAttributes(opAttr(op)))
	if !e.sinkFailed {
		e.sinkFailed = true
		e.log.Warn("Render sink failed, continuing degraded", "op", op, "error", err)
		return
	}
	e.log.Debug("Render sink still failing", "op", op, "error", err)
}

func (e *Engine) sinkOK() {
	if e.sinkFailed {
		e.sinkFailed = false
		e.log.Info("Render sink recovered")
	}
}

// Stats returns the counters. Safe to call from any goroutine.
func (e *Engine) Stats() Stats {
	return Stats{
		SnapshotsApplied: e.snapshotsApplied.Load(),
		LegsAbandoned:    e.legsAbandoned.Load(),
		FramesPublished:  e.framesPublished.Load(),
		SinkErrors:       e.sinkErrors.Load(),
		TrackedEntities:  int(e.tracked.Load()),
		TrailCount:       int(e.trailCount.Load()),
		TrailPoints:      int(e.trailPoints.Load()),
		Highlighted:      int(e.highlighted.Load()),
	}
}
