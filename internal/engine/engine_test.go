package engine

import (
	"context"
	"errors"
	"iter"
	"sync"
	"testing"
	"time"

	"github.com/airtrail/airtrail/internal/feature"
	"github.com/airtrail/airtrail/internal/interaction"
	"github.com/airtrail/airtrail/internal/trail"
	"github.com/airtrail/airtrail/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// spySink records everything the engine publishes.
type spySink struct {
	mu      sync.Mutex
	styles  []feature.Style
	frames  []core.RenderFrame
	trails  []map[core.EntityID]core.Polyline
	failing bool
}

var errSinkDown = errors.New("sink down")

func (s *spySink) RegisterStyle(style feature.Style) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failing {
		return errSinkDown
	}
	s.styles = append(s.styles, style)
	return nil
}

func (s *spySink) ReplacePoints(frame core.RenderFrame) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failing {
		return errSinkDown
	}
	s.frames = append(s.frames, frame)
	return nil
}

func (s *spySink) ReplaceTrails(trails map[core.EntityID]core.Polyline) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failing {
		return errSinkDown
	}
	s.trails = append(s.trails, trails)
	return nil
}

func (s *spySink) setFailing(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failing = v
}

func (s *spySink) lastFrame(t *testing.T) core.RenderFrame {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	require.NotEmpty(t, s.frames, "no frame published")
	return s.frames[len(s.frames)-1]
}

func (s *spySink) frameCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.frames)
}

// countingTrails wraps the accumulator and counts merges.
type countingTrails struct {
	*trail.Accumulator
	merges int
}

func (c *countingTrails) Merge(positions iter.Seq2[core.EntityID, core.Position]) {
	c.merges++
	c.Accumulator.Merge(positions)
}

func snapshot(seq uint64, entities ...core.Entity) core.Snapshot {
	return core.Snapshot{Seq: seq, Entities: entities}
}

func at(id core.EntityID, x, y float64) core.Entity {
	return core.Entity{ID: id, Position: core.Position{X: x, Y: y}, Attributes: core.Attributes{"name": string(id)}}
}

type fixture struct {
	engine   *Engine
	sink     *spySink
	trails   *countingTrails
	selected []core.Selection
	dismiss  int
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		sink:   &spySink{},
		trails: &countingTrails{Accumulator: trail.New()},
	}
	e, err := New(Config{Steps: 50}, Dependencies{
		Trails:    f.trails,
		Layer:     interaction.New(),
		Sink:      f.sink,
		Style:     feature.DefaultStyle(),
		OnSelect:  func(s core.Selection) { f.selected = append(f.selected, s) },
		OnDismiss: func() { f.dismiss++ },
	})
	require.NoError(t, err)
	f.engine = e
	return f
}

func (f *fixture) ticks(n int) {
	for range n {
		f.engine.Tick()
	}
}

func TestNew_RequiresSinkAndTrails(t *testing.T) {
	_, err := New(Config{}, Dependencies{Trails: trail.New()})
	assert.Error(t, err)

	_, err = New(Config{}, Dependencies{Sink: &spySink{}})
	assert.Error(t, err)

	_, err = New(Config{Steps: -1}, Dependencies{Sink: &spySink{}, Trails: trail.New()})
	assert.Error(t, err)
}

func TestTick_IdleWithoutSnapshot(t *testing.T) {
	f := newFixture(t)
	assert.False(t, f.engine.Tick())
	assert.Equal(t, 0, f.sink.frameCount())
}

func TestFirstSightingDoesNotMove(t *testing.T) {
	f := newFixture(t)
	f.engine.HandleSnapshot(snapshot(1, at("A", 3, 4)))

	for range 50 {
		require.True(t, f.engine.Tick())
		assert.Equal(t, core.Position{X: 3, Y: 4}, f.sink.lastFrame(t).Points[0].Position)
	}
	assert.False(t, f.engine.Tick(), "leg is finite")
}

func TestMidpointAndHeading(t *testing.T) {
	f := newFixture(t)
	f.engine.HandleSnapshot(snapshot(1, at("A", 0, 0)))
	f.ticks(50)

	f.engine.HandleSnapshot(snapshot(2, at("A", 10, 0)))
	f.ticks(25)

	p := f.sink.lastFrame(t).Points[0]
	assert.InDelta(t, 5.0, p.Position.X, 1e-9)
	assert.InDelta(t, 0.0, p.Position.Y, 1e-9)
	assert.InDelta(t, 0.0, p.Heading, 1e-9)

	f.ticks(25)
	assert.Equal(t, core.Position{X: 10, Y: 0}, f.sink.lastFrame(t).Points[0].Position)
}

func TestRedirectStartsFromLastPublishedFrame(t *testing.T) {
	f := newFixture(t)
	f.engine.HandleSnapshot(snapshot(1, at("A", 0, 0)))
	f.ticks(50)
	f.engine.HandleSnapshot(snapshot(2, at("A", 10, 0)))
	f.ticks(10)

	require.InDelta(t, 2.0, f.sink.lastFrame(t).Points[0].Position.X, 1e-9)

	f.engine.HandleSnapshot(snapshot(3, at("A", 10, 10)))
	assert.Equal(t, uint64(1), f.engine.Stats().LegsAbandoned)

	f.ticks(1)
	p := f.sink.lastFrame(t).Points[0]
	assert.InDelta(t, 2+8.0/50, p.Position.X, 1e-9)
	assert.InDelta(t, 10.0/50, p.Position.Y, 1e-9)

	f.ticks(49)
	assert.Equal(t, core.Position{X: 10, Y: 10}, f.sink.lastFrame(t).Points[0].Position)
}

func TestMergeOncePerTransition(t *testing.T) {
	f := newFixture(t)
	f.engine.HandleSnapshot(snapshot(1, at("A", 0, 0)))
	f.ticks(50)
	f.engine.HandleSnapshot(snapshot(2, at("A", 1, 0)))
	f.ticks(20)
	f.engine.HandleSnapshot(snapshot(3, at("A", 2, 0)))
	f.ticks(80)

	assert.Equal(t, 3, f.trails.merges)
	assert.Equal(t, 3, f.trails.Len("A"))
	assert.Len(t, f.sink.trails, 3)

	stats := f.engine.Stats()
	assert.Equal(t, uint64(3), stats.SnapshotsApplied)
	assert.Equal(t, 3, stats.TrailPoints)
	assert.Equal(t, 1, stats.TrailCount)
}

func TestDroppedEntityKeepsTrail(t *testing.T) {
	f := newFixture(t)
	f.engine.HandleSnapshot(snapshot(1, at("A", 0, 0), at("B", 5, 5)))
	f.ticks(50)
	f.engine.HandleSnapshot(snapshot(2, at("B", 6, 6)))
	f.ticks(1)

	frame := f.sink.lastFrame(t)
	_, hasA := frame.Lookup("A")
	assert.False(t, hasA)
	_, hasB := frame.Lookup("B")
	assert.True(t, hasB)

	published := f.sink.trails[len(f.sink.trails)-1]
	assert.Equal(t, core.Polyline{{X: 0, Y: 0}}, published["A"])
	assert.Len(t, published["B"], 2)
	assert.Equal(t, 1, f.engine.Stats().TrackedEntities)
}

func TestEmptySnapshotPublishesEmptyFrames(t *testing.T) {
	f := newFixture(t)
	f.engine.HandleSnapshot(snapshot(1, at("A", 0, 0)))
	f.ticks(50)
	f.engine.HandleSnapshot(snapshot(2))

	for range 50 {
		require.True(t, f.engine.Tick())
		assert.Empty(t, f.sink.lastFrame(t).Points)
	}
	assert.False(t, f.engine.Tick())
}

func TestStalledSourceHoldsLastFrame(t *testing.T) {
	f := newFixture(t)
	f.engine.HandleSnapshot(snapshot(1, at("A", 0, 0)))
	f.ticks(50)
	n := f.sink.frameCount()

	f.ticks(100)
	assert.Equal(t, n, f.sink.frameCount())
}

func TestHoverHighlightsAndLeaveResets(t *testing.T) {
	f := newFixture(t)
	f.engine.HandleSnapshot(snapshot(1, at("A", 0, 0), at("B", 1, 1)))
	f.ticks(1)

	f.engine.HandlePointer(core.PointerEvent{Kind: core.PointerEnter, ID: "A"})
	frame := f.sink.lastFrame(t)
	a, _ := frame.Lookup("A")
	b, _ := frame.Lookup("B")
	assert.Equal(t, core.IconHighlighted, a.Icon)
	assert.Equal(t, core.IconNormal, b.Icon)
	assert.Equal(t, 1, f.engine.Stats().Highlighted)

	// highlight survives animation frames
	f.ticks(1)
	a, _ = f.sink.lastFrame(t).Lookup("A")
	assert.Equal(t, core.IconHighlighted, a.Icon)

	f.engine.HandlePointer(core.PointerEvent{Kind: core.PointerEnter, ID: "B"})
	f.engine.HandlePointer(core.PointerEvent{Kind: core.PointerLeave})
	for _, p := range f.sink.lastFrame(t).Points {
		assert.Equal(t, core.IconNormal, p.Icon)
	}
	assert.Equal(t, 0, f.engine.Stats().Highlighted)
}

func TestHoverUnknownEntityIgnored(t *testing.T) {
	f := newFixture(t)
	f.engine.HandleSnapshot(snapshot(1, at("A", 0, 0)))
	f.ticks(1)
	n := f.sink.frameCount()

	f.engine.HandlePointer(core.PointerEvent{Kind: core.PointerEnter, ID: "ZZ"})
	assert.Equal(t, n, f.sink.frameCount())
	assert.Equal(t, 0, f.engine.Stats().Highlighted)
}

func TestClickSelectsAndDismissClears(t *testing.T) {
	f := newFixture(t)
	f.engine.HandleSnapshot(snapshot(1, at("A", 0, 0)))
	f.ticks(1)

	f.engine.HandlePointer(core.PointerEvent{Kind: core.PointerClick, ID: "A"})
	require.Len(t, f.selected, 1)
	assert.Equal(t, core.EntityID("A"), f.selected[0].ID)
	assert.Equal(t, "A", f.selected[0].Attributes["name"])

	// click does not highlight
	a, _ := f.sink.lastFrame(t).Lookup("A")
	assert.Equal(t, core.IconNormal, a.Icon)

	f.engine.HandlePointer(core.PointerEvent{Kind: core.PointerClick, ID: "missing"})
	assert.Len(t, f.selected, 1)

	f.engine.HandlePointer(core.PointerEvent{Kind: core.PointerDismiss})
	assert.Equal(t, 1, f.dismiss)
}

func TestSinkFailureIsNotFatal(t *testing.T) {
	f := newFixture(t)
	f.sink.setFailing(true)

	f.engine.HandleSnapshot(snapshot(1, at("A", 0, 0)))
	assert.True(t, f.engine.Tick())
	assert.True(t, f.engine.Tick())

	stats := f.engine.Stats()
	assert.Equal(t, uint64(3), stats.SinkErrors)
	assert.Equal(t, uint64(0), stats.FramesPublished)

	f.sink.setFailing(false)
	assert.True(t, f.engine.Tick())
	assert.Equal(t, uint64(1), f.engine.Stats().FramesPublished)
	assert.Equal(t, 3, f.sink.lastFrame(t).Step)
}

func TestRun(t *testing.T) {
	sink := &spySink{}
	e, err := New(Config{Steps: 5, FrameInterval: time.Millisecond}, Dependencies{
		Trails: trail.New(),
		Sink:   sink,
		Style:  feature.DefaultStyle(),
	})
	require.NoError(t, err)

	snapshots := make(chan core.Snapshot, 1)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- e.Run(ctx, snapshots) }()

	snapshots <- snapshot(1, at("A", 0, 0))
	require.Eventually(t, func() bool { return e.Stats().FramesPublished >= 5 }, 2*time.Second, time.Millisecond)

	e.Pointer() <- core.PointerEvent{Kind: core.PointerEnter, ID: "A"}
	require.Eventually(t, func() bool { return e.Stats().Highlighted == 1 }, 2*time.Second, time.Millisecond)

	close(snapshots)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("engine did not stop")
	}

	sink.mu.Lock()
	defer sink.mu.Unlock()
	assert.Len(t, sink.styles, 1)
	assert.Equal(t, uint64(1), e.Stats().SnapshotsApplied)
}
