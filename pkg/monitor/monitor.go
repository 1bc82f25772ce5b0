// Package monitor polls a grill on a fixed interval and hands each status to
// a set of observers.
package monitor

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/ivanvanderbyl/gmg-smoker/pkg/gmg"
)

// Observer receives every successfully fetched status.
type Observer interface {
	ObserveStatus(ctx context.Context, smoker *gmg.Smoker, status *gmg.Status)
}

// ErrorObserver is implemented by observers that also want failed polls.
type ErrorObserver interface {
	ObservePollError(ctx context.Context, smoker *gmg.Smoker, err error)
}

// StatusFetcher is the part of *gmg.Client the monitor needs.
type StatusFetcher interface {
	Status(ctx context.Context) (*gmg.Status, error)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ctx context.Context, smoker *gmg.Smoker, status *gmg.Status)

func (f ObserverFunc) ObserveStatus(ctx context.Context, smoker *gmg.Smoker, status *gmg.Status) {
	f(ctx, smoker, status)
}

type Monitor struct {
	client    StatusFetcher
	interval  time.Duration
	observers []Observer

	mu     sync.RWMutex
	smoker *gmg.Smoker
}

func New(client StatusFetcher, smoker *gmg.Smoker, interval time.Duration, observers ...Observer) *Monitor {
	if smoker == nil {
		smoker = &gmg.Smoker{}
	}

	return &Monitor{
		client:    client,
		smoker:    smoker,
		interval:  interval,
		observers: observers,
	}
}

// Run polls immediately and then on every interval until ctx is done.
func (m *Monitor) Run(ctx context.Context) error {
	slog.InfoContext(ctx, "Starting grill monitor", "interval", m.interval)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.Poll(ctx)

	for {
		select {
		case <-ticker.C:
			m.Poll(ctx)
		case <-ctx.Done():
			slog.InfoContext(ctx, "Stopping grill monitor")
			return nil
		}
	}
}

// Poll fetches one status and delivers it.
func (m *Monitor) Poll(ctx context.Context) {
	status, err := m.client.Status(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}

		slog.ErrorContext(ctx, "Failed to refresh grill", "error", err)
		smoker := m.Smoker()
		for _, o := range m.observers {
			if eo, ok := o.(ErrorObserver); ok {
				eo.ObservePollError(ctx, smoker, err)
			}
		}
		return
	}

	m.mu.Lock()
	smoker := *m.smoker
	smoker.Status = status
	m.smoker = &smoker
	m.mu.Unlock()

	slog.InfoContext(ctx, "Refreshed grill",
		"state", status.State,
		"grill-temperature", status.CurrentGrillTemp,
		"target-grill-temperature", status.DesiredGrillTemp,
		"food-temperature", status.CurrentFoodTemp,
		"low-pellets", status.LowPelletAlarmActive,
	)

	for _, o := range m.observers {
		o.ObserveStatus(ctx, &smoker, status)
	}
}

// Smoker returns the grill identity with the most recent status.
func (m *Monitor) Smoker() *gmg.Smoker {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.smoker
}

// Latest returns the most recent status, or nil before the first good poll.
func (m *Monitor) Latest() *gmg.Status {
	return m.Smoker().Status
}
