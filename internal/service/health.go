package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"mcpql/internal/datasource"
)

// HealthMonitor periodically probes connected data source instances. A
// failing probe disconnects the instance so the next query reconnects
// from a clean state instead of hitting a dead session.
type HealthMonitor struct {
	registry *datasource.Registry
	logger   *slog.Logger
	sched    *cron.Cron
}

// NewHealthMonitor creates a monitor over the registry's cached instances.
func NewHealthMonitor(registry *datasource.Registry, logger *slog.Logger) *HealthMonitor {
	if logger == nil {
		logger = slog.Default()
	}
	return &HealthMonitor{
		registry: registry,
		logger:   logger.With("component", "health"),
	}
}

// Start schedules probing with a cron expression ("@every 1m", "0 * * * *").
// An empty schedule disables the monitor.
func (m *HealthMonitor) Start(schedule string) error {
	if schedule == "" {
		return nil
	}
	c := cron.New()
	if _, err := c.AddFunc(schedule, m.probe); err != nil {
		return err
	}
	c.Start()
	m.sched = c
	m.logger.Info("health monitor started", "schedule", schedule)
	return nil
}

// Stop halts the probing schedule.
func (m *HealthMonitor) Stop() {
	if m.sched != nil {
		m.sched.Stop()
		m.sched = nil
	}
}

func (m *HealthMonitor) probe() {
	for _, ds := range m.registry.Instances() {
		if ds.State() != datasource.StateConnected {
			continue
		}
		pinger, ok := ds.(datasource.Pinger)
		if !ok {
			continue
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		err := pinger.Ping(ctx)
		cancel()
		if err != nil {
			m.logger.Warn("data source unhealthy, disconnecting", "id", ds.ID(), "error", err)
			if dErr := ds.Disconnect(context.Background()); dErr != nil {
				m.logger.Warn("disconnect failed", "id", ds.ID(), "error", dErr)
			}
		}
	}
}
