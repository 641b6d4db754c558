// Package reaper runs the periodic liveness sweep and capacity
// enforcement against the coordinator.
package reaper

import (
	"context"
	"time"

	"github.com/Y-Juice/livestream-prototype/internal/service"
	"github.com/Y-Juice/livestream-prototype/pkg/log"
)

// Reaper periodically removes dead participant records and evicts
// oldest streams and connections past the configured ceilings.
type Reaper struct {
	service  service.Coordinator
	interval time.Duration
}

func New(svc service.Coordinator, interval time.Duration) *Reaper {
	return &Reaper{
		service:  svc,
		interval: interval,
	}
}

// Run blocks until ctx is cancelled, sweeping once per interval.
func (r *Reaper) Run(ctx context.Context) {
	l := log.L()
	l.Info().Dur("interval", r.interval).Msg("reaper started")

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			l.Info().Msg("reaper stopped")
			return
		case <-ticker.C:
			r.service.SweepLiveness(ctx)
			r.service.EnforceCapacity(ctx)
		}
	}
}
