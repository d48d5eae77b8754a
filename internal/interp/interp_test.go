package interp

import (
	"testing"

	"github.com/airtrail/airtrail/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func snapshot(seq uint64, entities ...core.Entity) core.Snapshot {
	return core.Snapshot{Seq: seq, Entities: entities}
}

func entity(id string, x, y float64) core.Entity {
	return core.Entity{ID: core.EntityID(id), Position: core.Position{X: x, Y: y}}
}

// drain runs a leg to completion and returns every produced frame.
func drain(l *Leg) []core.RenderFrame {
	var frames []core.RenderFrame
	for f := range l.All() {
		frames = append(frames, f)
	}
	return frames
}

// lastFrame runs a leg to completion and returns its final frame.
func lastFrame(t *testing.T, l *Leg) core.RenderFrame {
	t.Helper()
	frames := drain(l)
	require.NotEmpty(t, frames)
	return frames[len(frames)-1]
}

func TestNew_RejectsNonPositiveSteps(t *testing.T) {
	_, err := New(0)
	assert.ErrorIs(t, err, ErrInvalidSteps)

	_, err = New(-3)
	assert.ErrorIs(t, err, ErrInvalidSteps)

	ip, err := New(DefaultSteps)
	require.NoError(t, err)
	assert.Equal(t, 50, ip.Steps())
}

func TestAdvance_ProducesStepsInOrder(t *testing.T) {
	ip, err := New(50)
	require.NoError(t, err)

	frames := drain(ip.Advance(core.RenderFrame{}, snapshot(1, entity("A", 0, 0))))

	require.Len(t, frames, 50)
	for i, f := range frames {
		assert.Equal(t, i+1, f.Step)
		assert.Equal(t, 50, f.Steps)
		assert.Equal(t, uint64(1), f.Seq)
	}
}

func TestAdvance_FirstSightingDoesNotMove(t *testing.T) {
	ip, err := New(50)
	require.NoError(t, err)

	frames := drain(ip.Advance(core.RenderFrame{}, snapshot(1, entity("A", 3, 4))))

	require.Len(t, frames, 50)
	for _, f := range frames {
		p, ok := f.Lookup("A")
		require.True(t, ok)
		assert.Equal(t, core.Position{X: 3, Y: 4}, p.Position)
	}
}

func TestAdvance_FirstSightingUsesHeadingHint(t *testing.T) {
	ip, err := New(5)
	require.NoError(t, err)

	hint := 135.0
	e := entity("A", 3, 4)
	e.Heading = &hint

	f := lastFrame(t, ip.Advance(core.RenderFrame{}, snapshot(1, e)))
	p, ok := f.Lookup("A")
	require.True(t, ok)
	assert.Equal(t, 135.0, p.Heading)
}

func TestAdvance_FinalStepEqualsTargetExactly(t *testing.T) {
	ip, err := New(7)
	require.NoError(t, err)

	first := lastFrame(t, ip.Advance(core.RenderFrame{}, snapshot(1, entity("A", 0.1, 0.7))))
	final := lastFrame(t, ip.Advance(first, snapshot(2, entity("A", 1234.5678, -0.3))))

	p, ok := final.Lookup("A")
	require.True(t, ok)
	assert.Equal(t, core.Position{X: 1234.5678, Y: -0.3}, p.Position)
}

func TestAdvance_MidpointAndHeading(t *testing.T) {
	ip, err := New(50)
	require.NoError(t, err)

	first := lastFrame(t, ip.Advance(core.RenderFrame{}, snapshot(1, entity("A", 0, 0))))
	frames := drain(ip.Advance(first, snapshot(2, entity("A", 10, 0))))

	require.Len(t, frames, 50)
	p, ok := frames[24].Lookup("A")
	require.True(t, ok)
	assert.Equal(t, 25, frames[24].Step)
	assert.InDelta(t, 5, p.Position.X, 1e-9)
	assert.InDelta(t, 0, p.Position.Y, 1e-9)
	assert.Equal(t, 0.0, p.Heading)
}

func TestAdvance_HeadingConstantAcrossLeg(t *testing.T) {
	ip, err := New(10)
	require.NoError(t, err)

	first := lastFrame(t, ip.Advance(core.RenderFrame{}, snapshot(1, entity("A", 0, 0))))
	for _, f := range drain(ip.Advance(first, snapshot(2, entity("A", 0, 10)))) {
		p, ok := f.Lookup("A")
		require.True(t, ok)
		assert.Equal(t, 90.0, p.Heading)
	}
}

func TestAdvance_ZeroDisplacementKeepsHeading(t *testing.T) {
	ip, err := New(4)
	require.NoError(t, err)

	f1 := lastFrame(t, ip.Advance(core.RenderFrame{}, snapshot(1, entity("A", 0, 0))))
	f2 := lastFrame(t, ip.Advance(f1, snapshot(2, entity("A", -5, 0))))
	f3 := lastFrame(t, ip.Advance(f2, snapshot(3, entity("A", -5, 0))))

	p, ok := f3.Lookup("A")
	require.True(t, ok)
	assert.Equal(t, 180.0, p.Heading)
	assert.Equal(t, core.Position{X: -5, Y: 0}, p.Position)
}

func TestAdvance_DropsEntitiesMissingFromTarget(t *testing.T) {
	ip, err := New(5)
	require.NoError(t, err)

	first := lastFrame(t, ip.Advance(core.RenderFrame{}, snapshot(1, entity("A", 0, 0), entity("B", 1, 1))))
	for _, f := range drain(ip.Advance(first, snapshot(2, entity("B", 2, 2)))) {
		_, ok := f.Lookup("A")
		assert.False(t, ok, "A must not appear after leaving the snapshot")
		assert.Len(t, f.Points, 1)
	}
}

func TestAdvance_EmptySnapshotYieldsEmptyFrames(t *testing.T) {
	ip, err := New(50)
	require.NoError(t, err)

	first := lastFrame(t, ip.Advance(core.RenderFrame{}, snapshot(1, entity("A", 0, 0))))
	frames := drain(ip.Advance(first, snapshot(2)))

	require.Len(t, frames, 50)
	for _, f := range frames {
		assert.True(t, f.Empty())
	}
}

func TestAdvance_RedirectStartsFromPublishedPosition(t *testing.T) {
	ip, err := New(50)
	require.NoError(t, err)

	origin := lastFrame(t, ip.Advance(core.RenderFrame{}, snapshot(1, entity("A", 0, 0))))
	leg := ip.Advance(origin, snapshot(2, entity("A", 10, 0)))

	var published core.RenderFrame
	for range 10 {
		f, ok := leg.Next()
		require.True(t, ok)
		published = f
	}
	leg.Cancel()

	redirect := ip.Advance(published, snapshot(3, entity("A", 10, 10)))
	f, ok := redirect.Next()
	require.True(t, ok)

	p, ok := f.Lookup("A")
	require.True(t, ok)
	// first step of the new leg is 1/50 of the way from (2,0) to (10,10)
	assert.InDelta(t, 2+8.0/50, p.Position.X, 1e-9)
	assert.InDelta(t, 10.0/50, p.Position.Y, 1e-9)

	h, moved := Heading(core.Position{X: 2, Y: 0}, core.Position{X: 10, Y: 10})
	require.True(t, moved)
	assert.InDelta(t, h, p.Heading, 1e-9)
}

func TestLeg_CancelIsIdempotent(t *testing.T) {
	ip, err := New(50)
	require.NoError(t, err)

	leg := ip.Advance(core.RenderFrame{}, snapshot(1, entity("A", 0, 0)))
	_, ok := leg.Next()
	require.True(t, ok)

	leg.Cancel()
	leg.Cancel()

	assert.True(t, leg.Cancelled())
	assert.True(t, leg.Done())
	assert.Equal(t, 1, leg.Step())
	_, ok = leg.Next()
	assert.False(t, ok)
}

func TestLeg_NotRestartable(t *testing.T) {
	ip, err := New(3)
	require.NoError(t, err)

	leg := ip.Advance(core.RenderFrame{}, snapshot(1, entity("A", 0, 0)))
	assert.Len(t, drain(leg), 3)
	assert.True(t, leg.Done())
	assert.Empty(t, drain(leg))
}

func TestHeading_ScaleInvariant(t *testing.T) {
	origin := core.Position{}
	small, ok := Heading(origin, core.Position{X: 1, Y: 1})
	require.True(t, ok)
	large, ok := Heading(origin, core.Position{X: 10, Y: 10})
	require.True(t, ok)

	assert.Equal(t, small, large)
	assert.InDelta(t, 45, small, 1e-12)
}

func TestHeading_Quadrants(t *testing.T) {
	tests := []struct {
		name string
		to   core.Position
		want float64
	}{
		{name: "east", to: core.Position{X: 1}, want: 0},
		{name: "north", to: core.Position{Y: 1}, want: 90},
		{name: "west", to: core.Position{X: -1}, want: 180},
		{name: "south", to: core.Position{Y: -1}, want: -90},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Heading(core.Position{}, tt.to)
			require.True(t, ok)
			assert.InDelta(t, tt.want, got, 1e-12)
		})
	}
}

func TestHeading_NoDisplacement(t *testing.T) {
	_, ok := Heading(core.Position{X: 4, Y: 4}, core.Position{X: 4, Y: 4})
	assert.False(t, ok)
}
