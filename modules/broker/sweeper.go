package broker

import (
	"context"
	"time"

	"github.com/go-monolith/mono/pkg/types"
)

// Sweep timing defaults.
const (
	DefaultSweepInterval = 30 * time.Second
	DefaultIdleTimeout   = 90 * time.Second
	pingWriteTimeout     = 5 * time.Second
)

// Sweeper periodically probes live sessions and tears down the ones
// whose transport has gone silent, guarding against leaked sessions
// when a close event was missed. It is a scheduled job the broker owns;
// tests call SweepOnce directly instead of waiting on real time.
type Sweeper struct {
	broker      *Broker
	interval    time.Duration
	idleTimeout time.Duration
	logger      types.Logger
}

// NewSweeper creates a sweeper over the broker's registry. Non-positive
// durations fall back to the defaults.
func NewSweeper(b *Broker, interval, idleTimeout time.Duration, logger types.Logger) *Sweeper {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	if idleTimeout <= 0 {
		idleTimeout = DefaultIdleTimeout
	}
	return &Sweeper{
		broker:      b,
		interval:    interval,
		idleTimeout: idleTimeout,
		logger:      logger,
	}
}

// Run sweeps on the configured interval until the context is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.SweepOnce(time.Now())
		}
	}
}

// SweepOnce performs one pass: sessions idle past the timeout, or whose
// transport rejects a keepalive probe, are disconnected with full
// teardown. Returns how many sessions were purged.
func (s *Sweeper) SweepOnce(now time.Time) int {
	purged := 0
	for _, session := range s.broker.Registry().Sessions() {
		if now.Sub(session.LastSeen()) > s.idleTimeout {
			s.logger.Info("Purging idle session", "session", session.ID, "user", session.Username)
			s.broker.Disconnect(session)
			purged++
			continue
		}
		if err := session.Ping(now.Add(pingWriteTimeout)); err != nil {
			s.logger.Info("Purging unreachable session", "session", session.ID, "error", err)
			s.broker.Disconnect(session)
			purged++
		}
	}
	return purged
}
