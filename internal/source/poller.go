// internal/source/poller.go
package source

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/airtrail/airtrail/internal/channel"
	"github.com/airtrail/airtrail/pkg/core"
)

// Fetcher produces one snapshot per call.
type Fetcher interface {
	Fetch(ctx context.Context) (core.Snapshot, error)
}

// Stats reports poller activity.
type Stats struct {
	Polls        uint64
	Failures     uint64
	Rejected     uint64
	Replaced     uint64
	LastFetch    time.Duration
	LastEntities int
}

// Poller fetches snapshots on a fixed cadence and hands the newest one to
// the engine. A snapshot the engine has not picked up yet is replaced.
// The replaced snapshot is never merged into trails, so its position is
// missing from each entity's trail; every such loss is counted in
// Stats.Replaced and reported as poll_replaced by the monitor.
type Poller struct {
	fetcher  Fetcher
	interval time.Duration
	logger   *slog.Logger
	out      *channel.Latest[core.Snapshot]

	polls        atomic.Uint64
	failures     atomic.Uint64
	rejected     atomic.Uint64
	lastFetch    atomic.Int64
	lastEntities atomic.Int64
}

// NewPoller creates a poller. A nil logger discards output.
func NewPoller(fetcher Fetcher, interval time.Duration, logger *slog.Logger) *Poller {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Poller{
		fetcher:  fetcher,
		interval: interval,
		logger:   logger,
		out:      channel.NewLatest[core.Snapshot](),
	}
}

// Snapshots returns the channel snapshots are delivered on.
func (p *Poller) Snapshots() <-chan core.Snapshot {
	return p.out.Receive()
}

// Run polls immediately and then every interval until ctx is done.
func (p *Poller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.poll(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.poll(ctx)
		}
	}
}

func (p *Poller) poll(ctx context.Context) {
	p.polls.Add(1)
	start := time.Now()
	snap, err := p.fetcher.Fetch(ctx)
	p.lastFetch.Store(int64(time.Since(start)))

	if err != nil {
		if ctx.Err() != nil {
			return
		}
		if errors.Is(err, ErrGeometryMismatch) {
			p.rejected.Add(1)
			p.logger.Warn("Snapshot rejected", "error", err)
			return
		}
		p.failures.Add(1)
		p.logger.Warn("Snapshot fetch failed, skipping cycle", "error", err)
		return
	}

	p.lastEntities.Store(int64(snap.Len()))
	if p.out.Len() > 0 {
		p.logger.Debug("Replacing unprocessed snapshot", "seq", snap.Seq)
	}
	p.out.Send(snap)
}

// Stats returns a point-in-time view of the poller counters.
func (p *Poller) Stats() Stats {
	return Stats{
		Polls:        p.polls.Load(),
		Failures:     p.failures.Load(),
		Rejected:     p.rejected.Load(),
		Replaced:     p.out.Replaced(),
		LastFetch:    time.Duration(p.lastFetch.Load()),
		LastEntities: int(p.lastEntities.Load()),
	}
}
