// Package interp turns sparse position snapshots into a fixed number of
// evenly spaced animation frames per snapshot transition (a leg).
package interp

import (
	"errors"
	"iter"
	"math"

	"github.com/airtrail/airtrail/pkg/core"
)

// DefaultSteps is the number of frames per leg.
const DefaultSteps = 50

// ErrInvalidSteps is returned when the step count is not positive
var ErrInvalidSteps = errors.New("interpolation steps must be positive")

// Interpolator produces legs between the last rendered frame and a new snapshot.
type Interpolator struct {
	steps int
}

// New creates an interpolator producing steps frames per leg.
func New(steps int) (*Interpolator, error) {
	if steps <= 0 {
		return nil, ErrInvalidSteps
	}
	return &Interpolator{steps: steps}, nil
}

// Steps returns the number of frames per leg.
func (i *Interpolator) Steps() int {
	return i.steps
}

type track struct {
	id      core.EntityID
	start   core.Position
	delta   core.Position
	target  core.Position
	heading float64
	attrs   core.Attributes
}

// Leg is a lazy, finite, non-restartable sequence of frames.
// It is not safe for concurrent use; the engine loop owns it.
type Leg struct {
	seq       uint64
	steps     int
	k         int
	tracks    []track
	cancelled bool
}

// Advance starts a leg moving every entity of target from its position in
// previous (the last published frame) to its snapshot position. Entities
// missing from target are dropped; entities missing from previous appear
// at their target without motion.
func (i *Interpolator) Advance(previous core.RenderFrame, target core.Snapshot) *Leg {
	prev := previous.Index()

	tracks := make([]track, 0, len(target.Entities))
	for _, e := range target.Entities {
		t := track{
			id:     e.ID,
			start:  e.Position,
			target: e.Position,
			attrs:  e.Attributes,
		}
		if e.Heading != nil {
			t.heading = *e.Heading
		}

		if p, ok := prev[e.ID]; ok {
			t.start = p.Position
			t.delta = e.Position.Sub(p.Position)
			if h, moved := Heading(p.Position, e.Position); moved {
				t.heading = h
			} else {
				t.heading = p.Heading
			}
		}
		tracks = append(tracks, t)
	}

	return &Leg{
		seq:    target.Seq,
		steps:  i.steps,
		tracks: tracks,
	}
}

// Next returns the next frame of the leg. It returns false once all steps
// have been produced or the leg was cancelled.
func (l *Leg) Next() (core.RenderFrame, bool) {
	if l.cancelled || l.k >= l.steps {
		return core.RenderFrame{}, false
	}
	l.k++

	frame := core.RenderFrame{
		Seq:    l.seq,
		Step:   l.k,
		Steps:  l.steps,
		Points: make([]core.FramePoint, len(l.tracks)),
	}
	for n, t := range l.tracks {
		frame.Points[n] = core.FramePoint{
			ID:         t.id,
			Position:   l.positionAt(t),
			Heading:    t.heading,
			Icon:       core.IconNormal,
			Attributes: t.attrs,
		}
	}
	return frame, true
}

// positionAt interpolates linearly; the final step lands exactly on target.
func (l *Leg) positionAt(t track) core.Position {
	if l.k == l.steps {
		return t.target
	}
	frac := float64(l.k) / float64(l.steps)
	return core.Position{
		X: t.start.X + t.delta.X*frac,
		Y: t.start.Y + t.delta.Y*frac,
	}
}

// All yields the remaining frames in order.
func (l *Leg) All() iter.Seq[core.RenderFrame] {
	return func(yield func(core.RenderFrame) bool) {
		for {
			frame, ok := l.Next()
			if !ok || !yield(frame) {
				return
			}
		}
	}
}

// Cancel abandons the leg at its current step. Safe to call repeatedly.
func (l *Leg) Cancel() {
	l.cancelled = true
}

// Cancelled reports whether the leg was abandoned.
func (l *Leg) Cancelled() bool {
	return l.cancelled
}

// Done reports whether the leg will produce no more frames.
func (l *Leg) Done() bool {
	return l.cancelled || l.k >= l.steps
}

// Step returns the last produced step, 0 before the first call to Next.
func (l *Leg) Step() int {
	return l.k
}

// Steps returns the leg length.
func (l *Leg) Steps() int {
	return l.steps
}

// Heading returns the direction of travel from one position to another in
// degrees (atan2 convention, 0° along +X, counter-clockwise positive).
// It returns false when there is no displacement.
func Heading(from, to core.Position) (float64, bool) {
	d := to.Sub(from)
	if d.X == 0 && d.Y == 0 {
		return 0, false
	}
	return math.Atan2(d.Y, d.X) * 180 / math.Pi, true
}
