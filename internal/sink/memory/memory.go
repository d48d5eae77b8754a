// internal/sink/memory/memory.go
package memory

import (
	"sync"

	"github.com/airtrail/airtrail/internal/config"
	"github.com/airtrail/airtrail/internal/dispatcher"
	"github.com/airtrail/airtrail/internal/feature"
	"github.com/airtrail/airtrail/internal/geo"
	"github.com/airtrail/airtrail/internal/queue"
	"github.com/airtrail/airtrail/pkg/core"
	geom "github.com/peterstace/simplefeatures/geom"
)

// Sink keeps the latest published collections in memory. It backs headless
// runs and lets callers inject pointer events as if a renderer sent them.
type Sink struct {
	cfg     config.MemoryConfig
	proj    geo.Projection
	onEvent func(dispatcher.Event)

	mu            sync.RWMutex
	style         *feature.Style
	registrations int
	enc           *feature.Encoder
	points        geom.GeoJSONFeatureCollection
	trails        geom.GeoJSONFeatureCollection
	trailCount    int
	selection     *core.Selection
	history       *queue.Queue[core.RenderFrame]
}

// New creates a new memory sink
func New(cfg config.MemoryConfig, proj geo.Projection, onEvent func(dispatcher.Event)) *Sink {
	return &Sink{
		cfg:     cfg,
		proj:    proj,
		onEvent: onEvent,
		enc:     feature.NewEncoder(proj, feature.DefaultStyle()),
		history: queue.NewBounded[core.RenderFrame](cfg.HistorySize),
	}
}

// Init initializes the sink
func (s *Sink) Init() error {
	return nil
}

// Close cleans up resources
func (s *Sink) Close() error {
	return nil
}

// RegisterStyle stores the style and re-creates the encoder for it.
func (s *Sink) RegisterStyle(style feature.Style) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.style != nil && *s.style == style {
		return nil
	}
	st := style
	s.style = &st
	s.registrations++
	s.enc = feature.NewEncoder(s.proj, style)
	return nil
}

// ReplacePoints encodes the frame and records it in the history.
func (s *Sink) ReplacePoints(frame core.RenderFrame) error {
	s.mu.Lock()
	s.points = s.enc.Points(frame)
	s.mu.Unlock()

	s.history.Push(frame.Clone())
	return nil
}

// ReplaceTrails encodes the full trail map.
func (s *Sink) ReplaceTrails(trails map[core.EntityID]core.Polyline) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.trails = s.enc.Trails(trails)
	s.trailCount = len(trails)
	return nil
}

// PublishSelection stores the current selection; nil clears it.
func (s *Sink) PublishSelection(sel *core.Selection) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sel == nil {
		s.selection = nil
		return nil
	}
	cp := *sel
	s.selection = &cp
	return nil
}

// Emit delivers a pointer event as if the renderer had reported it.
func (s *Sink) Emit(e dispatcher.Event) {
	if s.onEvent != nil {
		s.onEvent(e)
	}
}

// Style returns the registered style, if any.
func (s *Sink) Style() (feature.Style, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.style == nil {
		return feature.Style{}, false
	}
	return *s.style, true
}

// Registrations returns how many distinct styles have been registered.
func (s *Sink) Registrations() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.registrations
}

// Points returns the latest point collection.
func (s *Sink) Points() geom.GeoJSONFeatureCollection {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.points
}

// Trails returns the latest trail collection.
func (s *Sink) Trails() geom.GeoJSONFeatureCollection {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.trails
}

// Selection returns the published selection, nil when cleared.
func (s *Sink) Selection() *core.Selection {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.selection
}

// LastFrame returns the most recently published frame.
func (s *Sink) LastFrame() (core.RenderFrame, bool) {
	return s.history.Last()
}

// Frames returns the retained frame history, oldest first.
func (s *Sink) Frames() []core.RenderFrame {
	return s.history.Snapshot()
}

// Stats reports what the sink currently holds.
func (s *Sink) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Stats{
		Points:        len(s.points),
		Trails:        s.trailCount,
		FramesKept:    s.history.Len(),
		FramesEvicted: s.history.Evicted(),
	}
}

// Stats is a point-in-time view of the memory sink.
type Stats struct {
	Points        int
	Trails        int
	FramesKept    int
	FramesEvicted uint64
}
