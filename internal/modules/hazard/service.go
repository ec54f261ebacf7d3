// README: Hazard provider keeps the latest snapshot and refreshes it on a schedule.
package hazard

import (
	"context"
	"sync/atomic"
	"time"

	"saferide/internal/logging"
)

const DefaultRefreshInterval = 3 * time.Minute

// Gauge receives the zone count after each successful refresh.
type Gauge interface {
	SetHazardZones(n int)
}

type Provider struct {
	source   Source
	current  atomic.Pointer[Snapshot]
	interval time.Duration
	log      logging.Logger
	gauge    Gauge
	now      func() time.Time
}

func NewProvider(source Source, interval time.Duration, log logging.Logger, gauge Gauge) *Provider {
	if interval <= 0 {
		interval = DefaultRefreshInterval
	}
	if log == nil {
		log = logging.NopLogger{}
	}
	return &Provider{source: source, interval: interval, log: log, gauge: gauge, now: time.Now}
}

// Current returns the latest snapshot, or nil before the first successful load.
func (p *Provider) Current() *Snapshot {
	return p.current.Load()
}

// Refresh loads zones from the source and swaps in a new snapshot. Malformed
// zones are dropped. On error the previous snapshot stays in place.
func (p *Provider) Refresh(ctx context.Context) (*Snapshot, error) {
	zones, err := p.source.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	valid := zones[:0:0]
	for _, z := range zones {
		if err := z.Validate(); err != nil {
			p.log.Warnf("dropping hazard zone: %v", err)
			continue
		}
		valid = append(valid, z)
	}
	snap := NewSnapshot(valid, p.now())
	p.current.Store(snap)
	if p.gauge != nil {
		p.gauge.SetHazardZones(len(valid))
	}
	p.log.Debugw("hazard snapshot refreshed", map[string]any{"zones": len(valid), "dropped": len(zones) - len(valid)})
	return snap, nil
}

// RunRefresher refreshes immediately and then on every tick until ctx is done.
func (p *Provider) RunRefresher(ctx context.Context) {
	if _, err := p.Refresh(ctx); err != nil {
		p.log.Errorf("initial hazard refresh failed: %v", err)
	}
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := p.Refresh(ctx); err != nil {
				p.log.Errorf("hazard refresh failed, keeping previous snapshot: %v", err)
			}
		}
	}
}
