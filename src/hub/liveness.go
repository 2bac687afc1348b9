package hub

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Monitor probes every registered client on a fixed interval and evicts the
// ones that did not answer the previous probe.
type Monitor struct {
	hub      *Hub
	interval time.Duration
	onEvict  func(*Client)
	logger   zerolog.Logger
}

// NewMonitor creates a Monitor. onEvict runs after an unresponsive client is
// closed and may be nil.
func NewMonitor(h *Hub, interval time.Duration, onEvict func(*Client), logger zerolog.Logger) *Monitor {
	return &Monitor{
		hub:      h,
		interval: interval,
		onEvict:  onEvict,
		logger:   logger.With().Str("component", "liveness").Logger(),
	}
}

// Run sweeps until ctx is cancelled.
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Sweep()
		}
	}
}

// Sweep runs one liveness pass and returns the number of evicted clients.
func (m *Monitor) Sweep() int {
	evicted := 0
	for _, c := range m.hub.Clients() {
		if !c.resetAlive() {
			m.logger.Info().Str("client_id", c.ID).Msg("evicting unresponsive client")
			c.Close()
			if m.onEvict != nil {
				m.onEvict(c)
			}
			evicted++
			continue
		}
		if err := c.Probe(); err != nil {
			m.logger.Debug().Err(err).Str("client_id", c.ID).Msg("probe skipped")
		}
	}
	return evicted
}
