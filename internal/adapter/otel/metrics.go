package otel

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "relaymesh.coordinator"

// Metrics holds all coordinator metric instruments.
type Metrics struct {
	LeasesGranted     metric.Int64Counter
	LeasesExpired     metric.Int64Counter
	LeaseConflicts    metric.Int64Counter
	TasksAuctioned    metric.Int64Counter
	TasksAwarded      metric.Int64Counter
	TasksCompleted    metric.Int64Counter
	Elections         metric.Int64Counter
	EventsAppended    metric.Int64Counter
	ConnectionsActive metric.Int64UpDownCounter
	DispatchDuration  metric.Float64Histogram
}

// NewMetrics creates all metric instruments.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(meterName)
	m := &Metrics{}
	var err error

	m.LeasesGranted, err = meter.Int64Counter("coordinator.leases.granted",
		metric.WithDescription("Number of file leases granted"))
	if err != nil {
		return nil, err
	}

	m.LeasesExpired, err = meter.Int64Counter("coordinator.leases.expired",
		metric.WithDescription("Number of file leases expired by the reaper"))
	if err != nil {
		return nil, err
	}

	m.LeaseConflicts, err = meter.Int64Counter("coordinator.leases.conflicts",
		metric.WithDescription("Number of file lease requests rejected for conflict"))
	if err != nil {
		return nil, err
	}

	m.TasksAuctioned, err = meter.Int64Counter("coordinator.tasks.auctioned",
		metric.WithDescription("Number of task auctions opened"))
	if err != nil {
		return nil, err
	}

	m.TasksAwarded, err = meter.Int64Counter("coordinator.tasks.awarded",
		metric.WithDescription("Number of task auctions awarded"))
	if err != nil {
		return nil, err
	}

	m.TasksCompleted, err = meter.Int64Counter("coordinator.tasks.completed",
		metric.WithDescription("Number of tasks completed"))
	if err != nil {
		return nil, err
	}

	m.Elections, err = meter.Int64Counter("coordinator.orchestrator.elections",
		metric.WithDescription("Number of orchestrator elections"))
	if err != nil {
		return nil, err
	}

	m.EventsAppended, err = meter.Int64Counter("coordinator.events.appended",
		metric.WithDescription("Number of events appended to project logs"))
	if err != nil {
		return nil, err
	}

	m.ConnectionsActive, err = meter.Int64UpDownCounter("coordinator.connections.active",
		metric.WithDescription("Number of live WebSocket connections"))
	if err != nil {
		return nil, err
	}

	m.DispatchDuration, err = meter.Float64Histogram("coordinator.dispatch.duration_seconds",
		metric.WithDescription("Time spent processing a request inside a Project actor"))
	if err != nil {
		return nil, err
	}

	return m, nil
}
