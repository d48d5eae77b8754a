// Package monitor periodically snapshots engine and poller counters into a
// status file and an InfluxDB point.
package monitor

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/airtrail/airtrail/internal/engine"
	"github.com/airtrail/airtrail/internal/influx"
	"github.com/airtrail/airtrail/internal/session"
	"github.com/airtrail/airtrail/internal/source"
	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"
)

// StatusFileName is written inside the logs directory.
const StatusFileName = "status.json"

// EngineStats reports engine counters.
type EngineStats interface {
	Stats() engine.Stats
}

// PollerStats reports snapshot source counters.
type PollerStats interface {
	Stats() source.Stats
}

// PointWriter accepts performance points.
type PointWriter interface {
	WritePoint(point *influxdb2_write.Point) error
}

// Dependencies holds all dependencies for the monitor service
type Dependencies struct {
	Session  *session.Context
	Engine   EngineStats
	Poller   PollerStats
	Influx   PointWriter // optional
	LogsDir  string
	Interval time.Duration
	Logger   *slog.Logger
	Clock    func() time.Time // optional, defaults to time.Now
}

// Status is one monitor sample.
type Status struct {
	Time    time.Time     `json:"time"`
	Session string        `json:"session"`
	Source  string        `json:"source"`
	Uptime  time.Duration `json:"uptimeNs"`
	Engine  engine.Stats  `json:"engine"`
	Poller  source.Stats  `json:"poller"`
}

// Service manages status monitoring
type Service struct {
	deps      Dependencies
	isRunning bool
	mu        sync.RWMutex
	stopChan  chan struct{}
	done      chan struct{}
}

// NewService creates a new monitor service
func NewService(deps Dependencies) *Service {
	if deps.Logger == nil {
		deps.Logger = slog.New(slog.DiscardHandler)
	}
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	return &Service{deps: deps}
}

// IsRunning returns whether the status monitor is running
func (s *Service) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// StatusPath returns the file the status is written to.
func (s *Service) StatusPath() string {
	return filepath.Join(s.deps.LogsDir, StatusFileName)
}

// GetStatus gathers the current counters.
func (s *Service) GetStatus() Status {
	st := Status{Time: s.deps.Clock().UTC()}
	if s.deps.Session != nil {
		st.Session = s.deps.Session.ID().String()
		st.Source = s.deps.Session.SourceURL()
		st.Uptime = s.deps.Session.Uptime()
	}
	if s.deps.Engine != nil {
		st.Engine = s.deps.Engine.Stats()
	}
	if s.deps.Poller != nil {
		st.Poller = s.deps.Poller.Stats()
	}
	return st
}

// Point converts a status into an engine_performance point.
func Point(st Status) *influxdb2_write.Point {
	tags := map[string]string{}
	if st.Session != "" {
		tags["session"] = st.Session
	}
	fields := map[string]interface{}{
		"tracked":           st.Engine.TrackedEntities,
		"highlighted":       st.Engine.Highlighted,
		"trails":            st.Engine.TrailCount,
		"trail_points":      st.Engine.TrailPoints,
		"frames_published":  st.Engine.FramesPublished,
		"snapshots_applied": st.Engine.SnapshotsApplied,
		"legs_abandoned":    st.Engine.LegsAbandoned,
		"sink_errors":       st.Engine.SinkErrors,
		"polls":             st.Poller.Polls,
		"poll_failures":     st.Poller.Failures,
		"poll_rejected":     st.Poller.Rejected,
		"poll_replaced":     st.Poller.Replaced,
		"last_fetch_ms":     float64(st.Poller.LastFetch.Microseconds()) / 1000,
	}
	return influxdb2_write.NewPoint(influx.MeasurementEngine, tags, fields, st.Time)
}

// Sample takes one status sample, rewrites the status file when it is
// open and forwards the point to influx when configured.
func (s *Service) Sample(statusFile *os.File) Status {
	st := s.GetStatus()

	if statusFile != nil {
		if err := writeStatus(statusFile, st); err != nil {
			s.deps.Logger.Error("Error writing status file", "error", err)
		}
	}

	if s.deps.Influx != nil {
		if err := s.deps.Influx.WritePoint(Point(st)); err != nil {
			s.deps.Logger.Error("Error writing performance point", "error", err)
		}
	}
	return st
}

func writeStatus(f *os.File, st Status) error {
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding status: %w", err)
	}
	if err := f.Truncate(0); err != nil {
		return err
	}
	if _, err := f.Seek(0, 0); err != nil {
		return err
	}
	_, err = f.Write(append(data, '\n'))
	return err
}

// Start starts the status monitor goroutine
func (s *Service) Start() error {
	if s.deps.Interval <= 0 {
		return fmt.Errorf("monitor interval must be positive, got %s", s.deps.Interval)
	}

	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = true
	s.stopChan = make(chan struct{})
	s.done = make(chan struct{})
	stop, done := s.stopChan, s.done
	s.mu.Unlock()

	go func() {
		defer close(done)
		defer func() {
			s.mu.Lock()
			s.isRunning = false
			s.mu.Unlock()
		}()

		logger := s.deps.Logger
		logger.Debug("Starting status monitor", "interval", s.deps.Interval)

		var statusFile *os.File
		if s.deps.LogsDir != "" {
			f, err := os.Create(s.StatusPath())
			if err != nil {
				logger.Error("Error creating status file", "error", err)
			} else {
				statusFile = f
				defer statusFile.Close()
			}
		}

		ticker := time.NewTicker(s.deps.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-stop:
				s.Sample(statusFile)
				return
			case <-ticker.C:
				s.Sample(statusFile)
			}
		}
	}()

	return nil
}

// Stop stops the status monitor and waits for a final sample.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return
	}
	stop, done := s.stopChan, s.done
	s.isRunning = false
	s.mu.Unlock()

	close(stop)
	<-done
}
